package chat

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// AttachmentPlaceholder is sent as content when a message carries only an attachment.
const AttachmentPlaceholder = "Attachment"

// Composer submits messages into one room session.
type Composer struct {
	store     MessageStore
	directory *Directory
	session   *RoomSession
	log       zerolog.Logger
}

// NewComposer targets session. A nil session is allowed; Submit then reports
// ErrNoActiveRoom.
func NewComposer(store MessageStore, directory *Directory, session *RoomSession, log zerolog.Logger) *Composer {
	lc := log.With().Str("module", "chat.composer")
	if session != nil {
		lc = lc.Str("room", session.Room().ID.String())
	}
	return &Composer{
		store:     store,
		directory: directory,
		session:   session,
		log:       lc.Logger(),
	}
}

// Submit registers the message as pending, then posts it. The pending entry
// stays visible until a fetch returns its server copy. If the post fails the
// entry is kept and marked failed, and the TransportError is returned with it;
// retrying means calling Submit again. Text is sent as typed.
func (c *Composer) Submit(ctx context.Context, text string, upload *Upload) (PendingEntry, error) {
	blank := strings.TrimSpace(text) == ""
	if blank && upload == nil {
		return PendingEntry{}, &ValidationError{Field: "content", Reason: "message is empty"}
	}
	if c.session == nil {
		c.log.Error().Msg("submit without an active room")
		return PendingEntry{}, ErrNoActiveRoom
	}

	room := c.session.Room()
	user := c.session.user
	if !c.directory.CanWrite(user.ID, room) {
		return PendingEntry{}, &AuthorizationError{UserID: user.ID, RoomID: room.ID, Action: "write"}
	}
	content := text
	if blank {
		content = AttachmentPlaceholder
	}

	entry, err := c.session.addPending(content, upload)
	if err != nil {
		c.log.Error().Err(err).Msg("submit on a stopped session")
		return PendingEntry{}, err
	}

	msg, err := c.store.PostMessage(ctx, room.ID, content, upload)
	if err != nil {
		failed, _ := c.session.failPending(entry.Message.ID, err)
		c.log.Error().Err(err).Int64("local_id", entry.Message.ID).Msg("submit failed")
		if !IsTransport(err) && !IsAuthorization(err) {
			err = &TransportError{Op: "post message", Err: err}
		}
		return failed, err
	}

	resolved, ok := c.session.resolvePending(entry.Message.ID, msg)
	if !ok {
		// The session was stopped while the post was in flight.
		resolved = entry
		resolved.Status = StatusResolved
		resolved.ServerID = msg.ID
	}
	c.session.Refresh()
	return resolved, nil
}
