package database

import (
	"github.com/google/uuid"
	"github.com/thereayou/taskchat/internal/models"
)

func (d *Database) SaveMessage(message *models.Message) error {
	return d.db.Omit("Sender", "Room").Create(message).Error
}

func (d *Database) GetMessage(id int64) (*models.Message, error) {
	var message models.Message
	if err := d.db.Preload("Sender").First(&message, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &message, nil
}

// GetRoomMessages returns the newest messages of the room, newest first.
// Equal timestamps fall back to id order.
func (d *Database) GetRoomMessages(roomID uuid.UUID, limit int) ([]models.Message, error) {
	var messages []models.Message

	err := d.db.
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Preload("Sender").
		Find(&messages).Error

	return messages, err
}
