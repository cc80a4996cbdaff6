package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/thereayou/taskchat/internal/chat"
)

var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	selfStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	senderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	badgeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11")).Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

var kindIcons = map[chat.FileKind]string{
	chat.FileImage:   "[img]",
	chat.FilePDF:     "[pdf]",
	chat.FileText:    "[txt]",
	chat.FileGeneric: "[file]",
}

func renderRoom(r chat.Room, self uuid.UUID) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(r.Name))
	if r.IsPrivate {
		b.WriteString(" " + dimStyle.Render("(private)"))
	}
	if r.Owner.ID == self {
		b.WriteString(" " + badgeStyle.Render("owner"))
	}
	b.WriteString("\n  " + dimStyle.Render(r.ID.String()))
	names := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		names = append(names, m.Name)
	}
	b.WriteString("\n  members: " + strings.Join(names, ", "))
	return b.String()
}

// renderEntry draws one line of the conversation. baseURL turns attachment
// references into links the terminal can open.
func renderEntry(e chat.Entry, self chat.User, baseURL string) string {
	m := e.Message
	at := m.CreatedAt.Local().Format("15:04")

	who := m.Sender.Name
	style := senderStyle
	if e.IsPending() || m.Sender.ID == self.ID {
		who, style = self.Name, selfStyle
	}
	if who == "" {
		who = "?"
	}

	line := fmt.Sprintf("%s %s %s", dimStyle.Render(at), style.Render(who), m.Content)
	if a := m.Attachment(); a != nil {
		line += "\n      " + renderAttachment(*a, baseURL)
	} else if e.IsPending() && e.AttachmentName != "" {
		line += "\n      " + dimStyle.Render(kindIcons[chat.AttachmentKind(m.AttachmentType)]+" "+e.AttachmentName)
	}

	switch {
	case e.Failed():
		return errorStyle.Render(stripStyles(line) + "  ✗ not sent")
	case e.IsPending():
		return dimStyle.Render(stripStyles(line) + "  …")
	}
	return line
}

func renderAttachment(a chat.Attachment, baseURL string) string {
	icon := kindIcons[chat.AttachmentKind(a.ContentType)]
	label := badgeStyle.Render(chat.AttachmentLabel(a.Path))
	return fmt.Sprintf("%s %s %s", icon, label, chat.ResolveAttachmentURL(baseURL, a.Path))
}

// stripStyles keeps pending and failed lines in a single colour.
func stripStyles(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEsc = true
		case inEsc && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'):
			inEsc = false
		case !inEsc:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// feed prints each entry of a changing visible sequence once, plus pending
// entries again when their status changes.
type feed struct {
	self    chat.User
	baseURL string
	shown   map[int64]bool
	pending map[int64]chat.PendingStatus
}

func newFeed(self chat.User, baseURL string) *feed {
	return &feed{self: self, baseURL: baseURL, shown: map[int64]bool{}, pending: map[int64]chat.PendingStatus{}}
}

// next returns the lines to print for the new visible sequence.
func (f *feed) next(entries []chat.Entry) []string {
	var out []string
	for _, e := range entries {
		id := e.Message.ID
		if !e.IsPending() {
			if !f.shown[id] {
				f.shown[id] = true
				out = append(out, renderEntry(e, f.self, f.baseURL))
			}
			continue
		}
		prev, seen := f.pending[id]
		f.pending[id] = e.Status
		if e.Status == chat.StatusResolved {
			continue
		}
		if !seen || prev != e.Status {
			out = append(out, renderEntry(e, f.self, f.baseURL))
		}
	}
	return out
}
