package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/devlife/internal/domain"
	"github.com/ErlanBelekov/devlife/internal/transport/http/middleware"
	"github.com/ErlanBelekov/devlife/internal/usecase"
	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	SignUp(ctx context.Context, email, password string) (*domain.User, *domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context, sessionID string) error
	CLISignIn(ctx context.Context, email, password string) (string, error)
	VerifyEmail(ctx context.Context, in usecase.VerifyEmailInput) (*domain.Session, error)
	RequestVerification(ctx context.Context, userID string) error
	SessionCookie(s *domain.Session) *http.Cookie
	BlankSessionCookie() *http.Cookie
}

type AuthHandler struct {
	authUsecase authUsecaser
	logger      *slog.Logger
}

func NewAuthHandler(authUsecase authUsecaser, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		logger:      logger.With("component", "auth_handler"),
	}
}

type credentialsRequest struct {
	Email    string `json:"email"    binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=6,max=256"`
}

type verifyEmailRequest struct {
	UserID string `json:"userId"`
	Ticket string `json:"ticket"`
	Code   string `json:"code" binding:"required,max=32"`
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Verified: u.Verified}
}

// POST /signup
// Missing or malformed fields are 401, matching the sign-in endpoints.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	user, session, err := h.authUsecase.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": errEmailTaken})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "sign up", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	http.SetCookie(c.Writer, h.authUsecase.SessionCookie(session))
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

// POST /signin
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials})
		return
	}

	session, err := h.authUsecase.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.credentialsError(c, "sign in", err)
		return
	}

	http.SetCookie(c.Writer, h.authUsecase.SessionCookie(session))
	c.Status(http.StatusOK)
}

// POST /cli-signin
// Returns {"token": "<api token>"}; any earlier token of the user stops working.
func (h *AuthHandler) CLISignIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials})
		return
	}

	token, err := h.authUsecase.CLISignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.credentialsError(c, "cli sign in", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *AuthHandler) credentialsError(c *gin.Context, op string, err error) {
	if errors.Is(err, domain.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials})
		return
	}
	h.logger.ErrorContext(c.Request.Context(), op, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
}

// POST /signout
func (h *AuthHandler) SignOut(c *gin.Context) {
	sessionID, _ := c.Cookie(middleware.SessionCookieName)

	if err := h.authUsecase.SignOut(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, domain.ErrNoActiveSession) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": errNoActiveSession})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "sign out", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	http.SetCookie(c.Writer, h.authUsecase.BlankSessionCookie())
	c.Status(http.StatusOK)
}

// POST /email-verification
// The user is named by userId, by the ticket from the email link, or by the session cookie.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sessionID, _ := c.Cookie(middleware.SessionCookieName)

	session, err := h.authUsecase.VerifyEmail(c.Request.Context(), usecase.VerifyEmailInput{
		UserID:    req.UserID,
		Ticket:    req.Ticket,
		SessionID: sessionID,
		Code:      req.Code,
	})
	if err != nil {
		status, msg := verificationError(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(c.Request.Context(), "verify email", "error", err)
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	http.SetCookie(c.Writer, h.authUsecase.SessionCookie(session))
	c.Status(http.StatusOK)
}

func verificationError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrVerificationUserMissing):
		return http.StatusBadRequest, errVerificationMissing
	case errors.Is(err, domain.ErrVerificationCodeExpired):
		return http.StatusBadRequest, errCodeExpired
	case errors.Is(err, domain.ErrVerificationCodeInvalid):
		return http.StatusUnauthorized, errCodeInvalid
	case errors.Is(err, domain.ErrTokenInvalid), errors.Is(err, domain.ErrSessionInvalid):
		return http.StatusUnauthorized, errUnauthorized
	case errors.Is(err, domain.ErrVerificationCodeNotFound):
		return http.StatusNotFound, errCodeNotFound
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, errUserNotFound
	case errors.Is(err, domain.ErrAlreadyVerified):
		return http.StatusConflict, errAlreadyVerified
	default:
		return http.StatusInternalServerError, errInternalServer
	}
}

// POST /email-verification-request (session)
func (h *AuthHandler) RequestVerification(c *gin.Context) {
	user := middleware.CurrentUser(c)

	if err := h.authUsecase.RequestVerification(c.Request.Context(), user.ID); err != nil {
		if errors.Is(err, domain.ErrAlreadyVerified) {
			c.JSON(http.StatusConflict, gin.H{"error": errAlreadyVerified})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "request verification", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.Status(http.StatusOK)
}

// GET /user (session)
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(middleware.CurrentUser(c))})
}
