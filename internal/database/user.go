package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/taskchat/internal/models"
)

func (d *Database) SaveUser(user *models.User) error {
	return d.db.Create(user).Error
}

func (d *Database) GetUser(id uuid.UUID) (*models.User, error) {
	user := models.User{}
	if err := d.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (d *Database) FindUserByEmail(email string) (*models.User, error) {
	user := models.User{}
	if err := d.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// ListUsers returns everyone except the caller, for picking room members.
func (d *Database) ListUsers(excludeID uuid.UUID) ([]models.User, error) {
	var users []models.User
	err := d.db.Where("id <> ?", excludeID).Order("name ASC").Find(&users).Error
	return users, err
}

func (d *Database) UpdateLastSeen(id uuid.UUID) error {
	res := d.db.Model(&models.User{}).Where("id = ?", id).Update("last_seen_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
