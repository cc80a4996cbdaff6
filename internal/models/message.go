package models

import (
	"time"

	"github.com/google/uuid"
)

// Message IDs come from a sequence, so they grow with insertion order.
type Message struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	RoomID         uuid.UUID `gorm:"type:uuid;not null;index:idx_room_created,priority:1"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null"`
	Content        string    `gorm:"not null"`
	AttachmentPath string
	AttachmentType string
	CreatedAt      time.Time `gorm:"index:idx_room_created,priority:2"`

	// Связи
	Sender User `gorm:"foreignKey:SenderID"`
	Room   Room `gorm:"foreignKey:RoomID"`
}

func (m *Message) HasAttachment() bool { return m.AttachmentPath != "" }
