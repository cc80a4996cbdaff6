package database

import (
	"github.com/google/uuid"
	"github.com/thereayou/taskchat/internal/models"
	"gorm.io/gorm"
)

// CreateRoom inserts the room and its membership in one transaction. The
// owner always becomes a member.
func (d *Database) CreateRoom(room *models.Room, memberIDs []uuid.UUID) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Members", "Owner").Create(room).Error; err != nil {
			return err
		}

		ids := append([]uuid.UUID{room.OwnerID}, memberIDs...)
		var members []models.User
		if err := tx.Where("id IN ?", ids).Find(&members).Error; err != nil {
			return err
		}
		if err := tx.Model(room).Association("Members").Append(&members); err != nil {
			return err
		}
		return nil
	})
}

func (d *Database) GetRoom(id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := d.db.Preload("Owner").Preload("Members").First(&room, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

// GetUserRooms returns the rooms the user belongs to, with owner and members loaded.
func (d *Database) GetUserRooms(userID uuid.UUID) ([]models.Room, error) {
	var rooms []models.Room
	err := d.db.
		Joins("JOIN room_members rm ON rm.room_id = rooms.id").
		Where("rm.user_id = ?", userID).
		Preload("Owner").
		Preload("Members").
		Order("rooms.created_at DESC").
		Find(&rooms).Error
	return rooms, err
}

func (d *Database) AddUserToRoom(userID, roomID uuid.UUID) error {
	var user models.User
	var room models.Room

	if err := d.db.First(&user, "id = ?", userID).Error; err != nil {
		return notFound(err)
	}

	if err := d.db.First(&room, "id = ?", roomID).Error; err != nil {
		return notFound(err)
	}

	return d.db.Model(&room).Association("Members").Append(&user)
}

func (d *Database) RemoveUserFromRoom(userID, roomID uuid.UUID) error {
	var user models.User
	var room models.Room

	if err := d.db.First(&user, "id = ?", userID).Error; err != nil {
		return notFound(err)
	}

	if err := d.db.First(&room, "id = ?", roomID).Error; err != nil {
		return notFound(err)
	}

	return d.db.Model(&room).Association("Members").Delete(&user)
}
