package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ErlanBelekov/devlife/internal/domain"
	ctxlog "github.com/ErlanBelekov/devlife/internal/log"
	"github.com/ErlanBelekov/devlife/internal/usecase"
	"github.com/gin-gonic/gin"
)

const (
	errUnauthorized = "Unauthorized"
	errInternal     = "Internal server error"

	// Keys set on the gin context by the auth middlewares.
	KeyUserID    = "userID"
	KeyUser      = "user"
	KeySessionID = "sessionID"

	SessionCookieName = usecase.SessionCookieName
)

type sessionValidator interface {
	ValidateSession(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error)
}

type tokenValidator interface {
	ValidateAPIToken(ctx context.Context, token string) (*domain.User, error)
}

// SessionAuth admits requests carrying a live session cookie.
func SessionAuth(v sessionValidator, logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With("component", "session_auth")
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookieName)
		if err != nil || id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		s, user, err := v.ValidateSession(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrSessionInvalid) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
				return
			}
			logger.ErrorContext(c.Request.Context(), "validate session", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": errInternal})
			return
		}

		c.Set(KeySessionID, s.ID)
		setUser(c, user)
		c.Next()
	}
}

// APITokenAuth admits requests carrying "Authorization: Bearer <api token>". Cookies are ignored.
func APITokenAuth(v tokenValidator, logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With("component", "api_token_auth")
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		user, err := v.ValidateAPIToken(c.Request.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			if errors.Is(err, domain.ErrTokenInvalid) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
				return
			}
			logger.ErrorContext(c.Request.Context(), "validate api token", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": errInternal})
			return
		}

		setUser(c, user)
		c.Next()
	}
}

func setUser(c *gin.Context, user *domain.User) {
	c.Set(KeyUserID, user.ID)
	c.Set(KeyUser, user)
	c.Request = c.Request.WithContext(ctxlog.WithUserID(c.Request.Context(), user.ID))
}

// CurrentUser returns the user set by SessionAuth or APITokenAuth.
func CurrentUser(c *gin.Context) *domain.User {
	u, _ := c.Get(KeyUser)
	user, _ := u.(*domain.User)
	return user
}
