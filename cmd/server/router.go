package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/taskchat/internal/config"
	"github.com/thereayou/taskchat/internal/handlers"
	"github.com/thereayou/taskchat/internal/metrics"
	"github.com/thereayou/taskchat/internal/middleware"
	"github.com/thereayou/taskchat/pkg/auth"
)

type Deps struct {
	Auth      *handlers.AuthHandler
	Rooms     *handlers.RoomHandler
	Users     *handlers.UserHandler
	Messages  *handlers.HTTPMessageHandler
	JWT       *auth.JWTManager
	Blacklist auth.Blacklist
	Metrics   *metrics.Metrics
	UploadDir string
	Ready     func(ctx context.Context) error
}

func APIEndpoints(r *gin.Engine, cfg *config.Config, d Deps) {
	r.Use(gin.Recovery(), requestLogger(), d.Metrics.Middleware())

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if d.Ready != nil {
			if err := d.Ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	uploads := r.Group(staticRoute(cfg.UploadPrefix), uploadHeaders())
	uploads.Static("/", d.UploadDir)

	requireAuth := middleware.AuthMiddleware(d.JWT, d.Blacklist)

	// Auth endpoints
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", d.Auth.Register)
		authGroup.POST("/login", d.Auth.Login)
		authGroup.GET("/me", requireAuth, d.Auth.Me)
		authGroup.POST("/logout", requireAuth, d.Auth.Logout)
	}

	chat := r.Group("/chat", requireAuth)
	{
		chat.GET("/users", d.Users.ListUsers)
		chat.GET("/rooms", d.Rooms.GetMyRooms)
		chat.POST("/rooms", d.Rooms.CreateRoom)
		chat.POST("/rooms/:id/members", d.Rooms.AddMember)
		chat.DELETE("/rooms/:id/members/:userId", d.Rooms.RemoveMember)
		chat.GET("/rooms/:id/messages", d.Messages.GetRoomMessages)
		chat.POST("/rooms/:id/messages",
			middleware.RateLimit(cfg.PostRate, cfg.PostBurst, d.Metrics.RateLimited),
			d.Messages.SendMessage)
	}
}

// staticRoute is where uploads are served. Stored references carry the
// public prefix, which may include the /api/ segment a reverse proxy strips.
func staticRoute(prefix string) string {
	p := strings.Trim(prefix, "/")
	p = strings.TrimPrefix(p, "api/")
	if p == "" || p == "api" {
		p = "uploads"
	}
	return "/" + p
}

// uploadHeaders keeps user files from running as active content on the API origin.
func uploadHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Content-Security-Policy", "sandbox; default-src 'none'")
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := log.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("module", "http").
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
