package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thereayou/taskchat/internal/database"
	"github.com/thereayou/taskchat/internal/handlers/dto"
	"github.com/thereayou/taskchat/internal/middleware"
	"github.com/thereayou/taskchat/internal/models"
	"github.com/thereayou/taskchat/internal/services"
)

type RoomHandler struct {
	store services.ChatStore
	log   zerolog.Logger
}

func NewRoomHandler(store services.ChatStore, log zerolog.Logger) *RoomHandler {
	return &RoomHandler{store: store, log: log.With().Str("module", "handlers.room").Logger()}
}

// GetMyRooms получает список комнат пользователя
func (h *RoomHandler) GetMyRooms(c *gin.Context) {
	rooms, err := h.store.GetUserRooms(middleware.CurrentUser(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get rooms"})
		return
	}
	c.JSON(http.StatusOK, dto.NewRoomList(rooms))
}

// CreateRoom создает новую комнату
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID := middleware.CurrentUser(c)

	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Room name is required"})
		return
	}

	// Создатель добавляется автоматически
	seen := map[uuid.UUID]bool{userID: true, uuid.Nil: true}
	var members []uuid.UUID
	for _, id := range req.MemberIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}
	if len(members) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "select at least one member"})
		return
	}
	for _, id := range members {
		if _, err := h.store.GetUser(id); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown user " + id.String()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
			return
		}
	}

	room := &models.Room{
		Name:      name,
		IsPrivate: req.IsPrivate,
		OwnerID:   userID,
		CreatedAt: time.Now(),
	}
	if err := h.store.CreateRoom(room, members); err != nil {
		h.log.Error().Err(err).Msg("create room failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}

	// Загружаем полную информацию о комнате
	full, err := h.store.GetRoom(room.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}

	h.log.Info().Str("room", room.ID.String()).Int("members", len(full.Members)).Msg("room created")
	c.JSON(http.StatusCreated, dto.NewRoomResponse(full))
}

// AddMember добавляет пользователя в комнату. Только владелец.
func (h *RoomHandler) AddMember(c *gin.Context) {
	room, ok := h.ownedRoom(c)
	if !ok {
		return
	}

	var req dto.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !room.HasMember(req.UserID) {
		if _, err := h.store.GetUser(req.UserID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		if err := h.store.AddUserToRoom(req.UserID, room.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add member"})
			return
		}
	}

	full, err := h.store.GetRoom(room.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}
	c.JSON(http.StatusOK, dto.NewRoomResponse(full))
}

// RemoveMember удаляет пользователя из комнаты. Владельца удалить нельзя.
func (h *RoomHandler) RemoveMember(c *gin.Context) {
	room, ok := h.ownedRoom(c)
	if !ok {
		return
	}

	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if userID == room.OwnerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room owner cannot be removed"})
		return
	}
	if !room.HasMember(userID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user is not a member of this room"})
		return
	}

	if err := h.store.RemoveUserFromRoom(userID, room.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove member"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) ownedRoom(c *gin.Context) (*models.Room, bool) {
	room, ok := loadRoom(c, h.store)
	if !ok {
		return nil, false
	}
	if room.OwnerID != middleware.CurrentUser(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only room owner can manage members"})
		return nil, false
	}
	return room, true
}

// loadRoom resolves :id and checks that the caller is a member. On failure
// the response is already written.
func loadRoom(c *gin.Context, store services.RoomStore) (*models.Room, bool) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return nil, false
	}

	room, err := store.GetRoom(roomID)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return nil, false
	}

	// Проверяем, что пользователь состоит в комнате
	if !room.HasMember(middleware.CurrentUser(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this room"})
		return nil, false
	}
	return room, true
}
