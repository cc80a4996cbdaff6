package services

import (
	"github.com/google/uuid"
	"github.com/thereayou/taskchat/internal/models"
)

type UserStore interface {
	SaveUser(user *models.User) error
	GetUser(id uuid.UUID) (*models.User, error)
	FindUserByEmail(email string) (*models.User, error)
	ListUsers(excludeID uuid.UUID) ([]models.User, error)
	UpdateLastSeen(id uuid.UUID) error
}

type RoomStore interface {
	CreateRoom(room *models.Room, memberIDs []uuid.UUID) error
	GetRoom(id uuid.UUID) (*models.Room, error)
	GetUserRooms(userID uuid.UUID) ([]models.Room, error)
	AddUserToRoom(userID, roomID uuid.UUID) error
	RemoveUserFromRoom(userID, roomID uuid.UUID) error
}

type MessageStore interface {
	SaveMessage(message *models.Message) error
	GetMessage(id int64) (*models.Message, error)
	GetRoomMessages(roomID uuid.UUID, limit int) ([]models.Message, error)
}

// ChatStore is everything the chat handlers need from persistence.
type ChatStore interface {
	UserStore
	RoomStore
	MessageStore
}
