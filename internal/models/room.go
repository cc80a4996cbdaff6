package models

import (
	"time"

	"github.com/google/uuid"
)

type Room struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"not null"`
	IsPrivate bool      `gorm:"not null;default:false"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt time.Time

	// Связи
	Owner    User      `gorm:"foreignKey:OwnerID"`
	Members  []User    `gorm:"many2many:room_members"`
	Messages []Message `gorm:"foreignKey:RoomID"`
}

// HasMember reports whether the user is the owner or a member of the room.
func (r *Room) HasMember(userID uuid.UUID) bool {
	if r.OwnerID == userID {
		return true
	}
	for _, m := range r.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}
