package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/taskchat/internal/handlers/dto"
	"github.com/thereayou/taskchat/internal/middleware"
	"github.com/thereayou/taskchat/internal/services"
)

type UserHandler struct {
	users services.UserStore
}

func NewUserHandler(users services.UserStore) *UserHandler {
	return &UserHandler{users: users}
}

// ListUsers returns everyone the caller could add to a room.
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(middleware.CurrentUser(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get users"})
		return
	}
	c.JSON(http.StatusOK, dto.NewUserList(users))
}
