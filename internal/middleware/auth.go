package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/taskchat/pkg/auth"
)

const (
	UserIDKey = "userID"
	TokenKey  = "token"
)

// AuthMiddleware проверяет JWT токен
func AuthMiddleware(jwtManager *auth.JWTManager, blacklist auth.Blacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractTokenFromHeader(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}

		// Проверяем, не в черном списке ли токен
		revoked, err := blacklist.IsRevoked(c.Request.Context(), token)
		if err != nil {
			log.Error().Err(err).Str("module", "middleware").Msg("blacklist lookup failed")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "cannot verify token"})
			return
		}
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token is blacklisted"})
			return
		}

		userID, err := jwtManager.UserID(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(TokenKey, token)
		c.Next()
	}
}

// CurrentUser returns the id set by AuthMiddleware.
func CurrentUser(c *gin.Context) uuid.UUID {
	return c.MustGet(UserIDKey).(uuid.UUID)
}
