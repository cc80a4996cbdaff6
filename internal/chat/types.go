package chat

import (
	"io"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
}

type Room struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsPrivate bool      `json:"isPrivate"`
	Owner     User      `json:"owner"`
	Members   []User    `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasMember reports whether userID is the owner or one of the members.
func (r Room) HasMember(userID uuid.UUID) bool {
	if r.Owner.ID == userID {
		return true
	}
	for _, m := range r.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// Attachment is a reference to an uploaded file; the content itself lives in the store.
type Attachment struct {
	Path        string
	ContentType string
}

// Message is immutable once created. Server IDs are positive, provisional IDs negative.
type Message struct {
	ID             int64     `json:"id"`
	RoomID         uuid.UUID `json:"roomId"`
	Sender         User      `json:"sender"`
	Content        string    `json:"content"`
	AttachmentURL  string    `json:"attachmentUrl,omitempty"`
	AttachmentType string    `json:"attachmentType,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (m Message) Attachment() *Attachment {
	if m.AttachmentURL == "" {
		return nil
	}
	return &Attachment{Path: m.AttachmentURL, ContentType: m.AttachmentType}
}

func (m Message) Provisional() bool { return m.ID < 0 }

// Upload is an attachment on its way to the store.
type Upload struct {
	Name        string
	ContentType string
	Body        io.Reader
}

type PendingStatus int

const (
	StatusSubmitting PendingStatus = iota
	// StatusResolved: the store accepted the message, waiting for a fetch to contain it.
	StatusResolved
	StatusFailed
)

func (s PendingStatus) String() string {
	switch s {
	case StatusSubmitting:
		return "submitting"
	case StatusResolved:
		return "resolved"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type PendingEntry struct {
	Message        Message
	Status         PendingStatus
	ServerID       int64
	AttachmentName string
	Err            error
}

type EntryKind int

const (
	KindAuthoritative EntryKind = iota
	KindPending
)

// Entry is one row of the visible sequence: either an authoritative message
// or a pending one with its submission status.
type Entry struct {
	Kind           EntryKind
	Message        Message
	Status         PendingStatus
	AttachmentName string
}

func Authoritative(m Message) Entry {
	return Entry{Kind: KindAuthoritative, Message: m}
}

func Pending(p PendingEntry) Entry {
	return Entry{
		Kind:           KindPending,
		Message:        p.Message,
		Status:         p.Status,
		AttachmentName: p.AttachmentName,
	}
}

func (e Entry) IsPending() bool { return e.Kind == KindPending }

func (e Entry) Failed() bool { return e.Kind == KindPending && e.Status == StatusFailed }

type CreateRoomRequest struct {
	Name      string      `json:"name"`
	IsPrivate bool        `json:"isPrivate"`
	MemberIDs []uuid.UUID `json:"memberIds"`
}
