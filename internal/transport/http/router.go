package httptransport

import (
	"context"
	"log/slog"

	"github.com/ErlanBelekov/devlife/internal/domain"
	"github.com/ErlanBelekov/devlife/internal/transport/http/handler"
	"github.com/ErlanBelekov/devlife/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

// Authenticator resolves both credential channels. Satisfied by *usecase.AuthUsecase.
type Authenticator interface {
	ValidateSession(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error)
	ValidateAPIToken(ctx context.Context, token string) (*domain.User, error)
}

type RouterConfig struct {
	HSTS bool
}

func NewRouter(
	logger *slog.Logger,
	cfg RouterConfig,
	auth Authenticator,
	authHandler *handler.AuthHandler,
	taskHandler *handler.TaskHandler,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security(cfg.HSTS))
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	session := middleware.SessionAuth(auth, logger)
	bearer := middleware.APITokenAuth(auth, logger)

	// Credentials
	r.POST("/signup", authHandler.SignUp)
	r.POST("/signin", authHandler.SignIn)
	r.POST("/signout", authHandler.SignOut)
	r.POST("/cli-signin", authHandler.CLISignIn)
	r.POST("/email-verification", authHandler.VerifyEmail)
	r.POST("/email-verification-request", session, authHandler.RequestVerification)
	r.GET("/user", session, authHandler.CurrentUser)

	// Web task catalogue
	tasks := r.Group("/task")
	tasks.GET("", taskHandler.List)
	tasks.GET("/:id", taskHandler.Get)
	tasks.POST("", session, taskHandler.Create)
	tasks.PUT("/:id", session, taskHandler.Update)
	tasks.DELETE("/:id", session, taskHandler.Delete)
	tasks.GET("/status/:userId", session, taskHandler.Statuses)

	// CLI, bearer token only
	cli := r.Group("/cli", bearer)
	cli.GET("/task", taskHandler.List)
	cli.GET("/task/:id", taskHandler.Get)
	cli.POST("/task", taskHandler.Submit)

	return r
}
