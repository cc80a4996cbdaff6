package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/taskchat/internal/models"
)

type CreateRoomRequest struct {
	Name      string      `json:"name"`
	IsPrivate bool        `json:"isPrivate"`
	MemberIDs []uuid.UUID `json:"memberIds"`
}

type AddMemberRequest struct {
	UserID uuid.UUID `json:"userId" binding:"required"`
}

type RoomResponse struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	IsPrivate bool       `json:"isPrivate"`
	Owner     UserInfo   `json:"owner"`
	Members   []UserInfo `json:"members"`
	CreatedAt time.Time  `json:"createdAt"`
}

func NewRoomResponse(r *models.Room) RoomResponse {
	return RoomResponse{
		ID:        r.ID,
		Name:      r.Name,
		IsPrivate: r.IsPrivate,
		Owner:     NewUserInfo(r.Owner),
		Members:   NewUserList(r.Members),
		CreatedAt: r.CreatedAt,
	}
}

func NewRoomList(rooms []models.Room) []RoomResponse {
	out := make([]RoomResponse, len(rooms))
	for i := range rooms {
		out[i] = NewRoomResponse(&rooms[i])
	}
	return out
}
