package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/taskchat/internal/models"
)

// MessagePayload структура для входящих сообщений
type MessagePayload struct {
	Content string `json:"content"`
}

// MessageResponse структура для исходящих сообщений
type MessageResponse struct {
	ID             int64     `json:"id"`
	RoomID         uuid.UUID `json:"roomId"`
	Sender         UserInfo  `json:"sender"`
	Content        string    `json:"content"`
	AttachmentURL  string    `json:"attachmentUrl,omitempty"`
	AttachmentType string    `json:"attachmentType,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type UserInfo struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
}

func NewUserInfo(u models.User) UserInfo {
	return UserInfo{ID: u.ID, Name: u.Name, Email: u.Email}
}

func NewUserList(users []models.User) []UserInfo {
	out := make([]UserInfo, len(users))
	for i, u := range users {
		out[i] = NewUserInfo(u)
	}
	return out
}

func NewMessageResponse(m *models.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		RoomID:         m.RoomID,
		Sender:         NewUserInfo(m.Sender),
		Content:        m.Content,
		AttachmentURL:  m.AttachmentPath,
		AttachmentType: m.AttachmentType,
		CreatedAt:      m.CreatedAt,
	}
}

func NewMessageList(msgs []models.Message) []MessageResponse {
	out := make([]MessageResponse, len(msgs))
	for i := range msgs {
		out[i] = NewMessageResponse(&msgs[i])
	}
	return out
}
