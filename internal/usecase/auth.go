package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ErlanBelekov/devlife/internal/domain"
	"github.com/ErlanBelekov/devlife/internal/email"
	"github.com/ErlanBelekov/devlife/internal/metrics"
	"github.com/ErlanBelekov/devlife/internal/repository"
	"github.com/ErlanBelekov/devlife/internal/security"
)

const (
	SessionCookieName = "session"

	sessionIDLength = 40
	apiTokenLength  = 64
)

// PasswordHasher is satisfied by *security.Argon2Hasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
}

type AuthOptions struct {
	SessionTTL   time.Duration
	CookieSecure bool
	AppBaseURL   string
}

type AuthUsecase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokens   repository.APITokenRepository
	codes    *VerificationUsecase
	tickets  *TicketSigner
	hasher   PasswordHasher
	email    email.Sender
	opts     AuthOptions
	now      func() time.Time
}

func NewAuthUsecase(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	tokens repository.APITokenRepository,
	codes *VerificationUsecase,
	tickets *TicketSigner,
	hasher PasswordHasher,
	emailSender email.Sender,
	opts AuthOptions,
) *AuthUsecase {
	return &AuthUsecase{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		codes:    codes,
		tickets:  tickets,
		hasher:   hasher,
		email:    emailSender,
		opts:     opts,
		now:      time.Now,
	}
}

// SignUp creates an unverified user with a session and emails a verification code.
// An unverified user holding the email is removed first; a verified one is a conflict.
// If the code cannot be issued or delivered the new user is removed again.
func (u *AuthUsecase) SignUp(ctx context.Context, emailAddr, password string) (*domain.User, *domain.Session, error) {
	existing, err := u.users.FindByEmail(ctx, emailAddr)
	switch {
	case err == nil && existing.Verified:
		metrics.SignupsTotal.WithLabelValues("conflict").Inc()
		return nil, nil, domain.ErrEmailTaken
	case err == nil:
		if _, err := u.users.DeleteUnverified(ctx, emailAddr); err != nil {
			return nil, nil, fmt.Errorf("reclaim unverified email: %w", err)
		}
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, nil, fmt.Errorf("find user: %w", err)
	}

	hash, err := u.hasher.Hash(password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := u.users.CreateWithCredential(ctx, emailAddr, hash)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			metrics.SignupsTotal.WithLabelValues("conflict").Inc()
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	session, err := u.createSession(ctx, user.ID)
	if err == nil {
		err = u.sendVerification(ctx, user)
	}
	if err != nil {
		u.abandonSignUp(ctx, user.Email)
		metrics.SignupsTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}

	metrics.SignupsTotal.WithLabelValues("ok").Inc()
	return user, session, nil
}

func (u *AuthUsecase) abandonSignUp(ctx context.Context, emailAddr string) {
	// The request may already be cancelled; the cleanup must still run.
	_, _ = u.users.DeleteUnverified(context.WithoutCancel(ctx), emailAddr)
}

// SignIn reuses the newest live session of the user, creating one only if none exists.
func (u *AuthUsecase) SignIn(ctx context.Context, emailAddr, password string) (*domain.Session, error) {
	user, err := u.authenticate(ctx, emailAddr, password)
	if err != nil {
		return nil, err
	}

	s, err := u.sessions.FindLatestByUser(ctx, user.ID, u.now())
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, domain.ErrSessionInvalid) {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return u.createSession(ctx, user.ID)
}

// CLISignIn checks credentials and returns a freshly generated API token.
func (u *AuthUsecase) CLISignIn(ctx context.Context, emailAddr, password string) (string, error) {
	user, err := u.authenticate(ctx, emailAddr, password)
	if err != nil {
		return "", err
	}
	return u.GenerateAPIToken(ctx, user.ID)
}

func (u *AuthUsecase) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return domain.ErrNoActiveSession
	}
	if err := u.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// authenticate fails closed: any missing row or mismatch is ErrInvalidCredentials.
func (u *AuthUsecase) authenticate(ctx context.Context, emailAddr, password string) (*domain.User, error) {
	user, err := u.users.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	cred, err := u.users.GetCredential(ctx, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return nil, err
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}

	if !u.hasher.Verify(password, cred.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// ValidateSession resolves a session cookie value. Expired sessions are deleted on sight.
// A session whose user no longer exists is returned together with ErrSessionInvalid.
func (u *AuthUsecase) ValidateSession(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error) {
	if sessionID == "" {
		return nil, nil, domain.ErrSessionInvalid
	}

	s, err := u.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionInvalid) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("find session: %w", err)
	}

	if s.Expired(u.now()) {
		if err := u.sessions.Delete(ctx, s.ID); err != nil {
			return nil, nil, fmt.Errorf("delete expired session: %w", err)
		}
		return nil, nil, domain.ErrSessionInvalid
	}

	user, err := u.users.FindByID(ctx, s.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return s, nil, domain.ErrSessionInvalid
		}
		return nil, nil, fmt.Errorf("find session user: %w", err)
	}
	return s, user, nil
}

func (u *AuthUsecase) ValidateAPIToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}
	user, err := u.tokens.FindUserByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			return nil, err
		}
		return nil, fmt.Errorf("find token: %w", err)
	}
	return user, nil
}

// GenerateAPIToken replaces the user's API token; the previous one stops working.
func (u *AuthUsecase) GenerateAPIToken(ctx context.Context, userID string) (string, error) {
	token, err := security.RandomString(apiTokenLength, security.Alphanumeric)
	if err != nil {
		return "", fmt.Errorf("generate api token: %w", err)
	}
	if err := u.tokens.Upsert(ctx, userID, token); err != nil {
		return "", fmt.Errorf("store api token: %w", err)
	}
	metrics.APITokensIssuedTotal.Inc()
	return token, nil
}

// VerifyEmailInput names the user to verify by exactly one of UserID, Ticket or SessionID,
// tried in that order.
type VerifyEmailInput struct {
	UserID    string
	Ticket    string
	SessionID string
	Code      string
}

// VerifyEmail consumes the code, marks the user verified and replaces every session of
// the user with a fresh one.
func (u *AuthUsecase) VerifyEmail(ctx context.Context, in VerifyEmailInput) (*domain.Session, error) {
	userID, err := u.resolveVerificationUser(ctx, in)
	if err != nil {
		return nil, err
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user.Verified {
		return nil, domain.ErrAlreadyVerified
	}

	if err := u.codes.Validate(ctx, user.ID, in.Code); err != nil {
		metrics.VerificationsTotal.WithLabelValues(verificationOutcome(err)).Inc()
		return nil, err
	}

	if err := u.users.MarkVerified(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}
	if err := u.sessions.DeleteAllForUser(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("invalidate sessions: %w", err)
	}

	s, err := u.createSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	metrics.VerificationsTotal.WithLabelValues("ok").Inc()
	return s, nil
}

func (u *AuthUsecase) resolveVerificationUser(ctx context.Context, in VerifyEmailInput) (string, error) {
	switch {
	case in.UserID != "":
		return in.UserID, nil
	case in.Ticket != "":
		return u.tickets.Parse(in.Ticket)
	case in.SessionID != "":
		_, user, err := u.ValidateSession(ctx, in.SessionID)
		if err != nil {
			return "", err
		}
		return user.ID, nil
	default:
		return "", domain.ErrVerificationUserMissing
	}
}

// RequestVerification issues and sends a new code to a still unverified user.
func (u *AuthUsecase) RequestVerification(ctx context.Context, userID string) error {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if user.Verified {
		return domain.ErrAlreadyVerified
	}
	return u.sendVerification(ctx, user)
}

func (u *AuthUsecase) sendVerification(ctx context.Context, user *domain.User) error {
	code, err := u.codes.Issue(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("issue verification code: %w", err)
	}

	ticket, err := u.tickets.Sign(user.ID)
	if err != nil {
		return err
	}

	subject, body := email.VerificationEmail(u.opts.AppBaseURL, ticket, code)
	if err := u.email.Send(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

func (u *AuthUsecase) createSession(ctx context.Context, userID string) (*domain.Session, error) {
	id, err := security.RandomString(sessionIDLength, security.Alphanumeric)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	s := &domain.Session{ID: id, UserID: userID, ExpiresAt: u.now().Add(u.opts.SessionTTL)}
	if err := u.sessions.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// SessionCookie describes the cookie carrying s. It expires together with the session, so a
// reused session yields a shorter-lived cookie.
func (u *AuthUsecase) SessionCookie(s *domain.Session) *http.Cookie {
	maxAge := int(s.ExpiresAt.Sub(u.now()).Round(time.Second) / time.Second)
	if maxAge <= 0 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    s.ID,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   u.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// BlankSessionCookie clears the session cookie on the client.
func (u *AuthUsecase) BlankSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   u.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func verificationOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrVerificationCodeInvalid):
		return "invalid"
	case errors.Is(err, domain.ErrVerificationCodeExpired):
		return "expired"
	case errors.Is(err, domain.ErrVerificationCodeNotFound):
		return "not_found"
	default:
		return "error"
	}
}
