package usecase_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ErlanBelekov/devlife/internal/domain"
)

// ---- func-field fakes ----

type fakeUserRepo struct {
	createWithCredential func(ctx context.Context, email, passwordHash string) (*domain.User, error)
	findByID             func(ctx context.Context, id string) (*domain.User, error)
	findByEmail          func(ctx context.Context, email string) (*domain.User, error)
	getCredential        func(ctx context.Context, userID string) (*domain.Credential, error)
	markVerified         func(ctx context.Context, userID string) error
	deleteUnverified     func(ctx context.Context, email string) (bool, error)
	purgeUnverified      func(ctx context.Context, cutoff time.Time) (int, error)
}

func (r *fakeUserRepo) CreateWithCredential(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	return r.createWithCredential(ctx, email, passwordHash)
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findByID(ctx, id)
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findByEmail(ctx, email)
}

func (r *fakeUserRepo) GetCredential(ctx context.Context, userID string) (*domain.Credential, error) {
	return r.getCredential(ctx, userID)
}

func (r *fakeUserRepo) MarkVerified(ctx context.Context, userID string) error {
	return r.markVerified(ctx, userID)
}

func (r *fakeUserRepo) DeleteUnverified(ctx context.Context, email string) (bool, error) {
	return r.deleteUnverified(ctx, email)
}

func (r *fakeUserRepo) PurgeUnverified(ctx context.Context, cutoff time.Time) (int, error) {
	return r.purgeUnverified(ctx, cutoff)
}

type fakeEmailSender struct {
	send func(ctx context.Context, to, subject, body string) error
}

func (s *fakeEmailSender) Send(ctx context.Context, to, subject, body string) error {
	return s.send(ctx, to, subject, body)
}

// fakeHasher keeps tests fast; Argon2 itself is covered in internal/security.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (fakeHasher) Verify(password, encoded string) bool { return encoded == "hashed:"+password }

// ---- in-memory stores for stateful properties ----

type memCodeRepo struct {
	mu    sync.Mutex
	codes map[string]domain.VerificationCode
}

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{codes: make(map[string]domain.VerificationCode)}
}

func (r *memCodeRepo) Replace(_ context.Context, c *domain.VerificationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[c.UserID] = *c
	return nil
}

func (r *memCodeRepo) FindByUser(_ context.Context, userID string) (*domain.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[userID]
	if !ok {
		return nil, domain.ErrVerificationCodeNotFound
	}
	return &c, nil
}

func (r *memCodeRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, userID)
	return nil
}

func (r *memCodeRepo) Consume(_ context.Context, userID, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[userID]
	if !ok || c.Code != code {
		return domain.ErrVerificationCodeNotFound
	}
	delete(r.codes, userID)
	return nil
}

func (r *memCodeRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, c := range r.codes {
		if c.Expired(now) {
			delete(r.codes, id)
			n++
		}
	}
	return n, nil
}

func (r *memCodeRepo) has(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.codes[userID]
	return ok
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]domain.Session)}
}

func (r *memSessionRepo) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = *s
	return nil
}

func (r *memSessionRepo) FindByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionInvalid
	}
	return &s, nil
}

func (r *memSessionRepo) FindLatestByUser(_ context.Context, userID string, now time.Time) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Session
	for _, s := range r.sessions {
		if s.UserID != userID || s.Expired(now) {
			continue
		}
		if latest == nil || s.ExpiresAt.After(latest.ExpiresAt) {
			cp := s
			latest = &cp
		}
	}
	if latest == nil {
		return nil, domain.ErrSessionInvalid
	}
	return latest, nil
}

func (r *memSessionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *memSessionRepo) DeleteAllForUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

func (r *memSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) countFor(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

type memTokenRepo struct {
	mu     sync.Mutex
	byUser map[string]string
	users  map[string]*domain.User
}

func newMemTokenRepo(users ...*domain.User) *memTokenRepo {
	r := &memTokenRepo{byUser: make(map[string]string), users: make(map[string]*domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memTokenRepo) Upsert(_ context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = token
	return nil
}

func (r *memTokenRepo) FindUserByToken(_ context.Context, token string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, t := range r.byUser {
		if t == token {
			return r.users[userID], nil
		}
	}
	return nil, domain.ErrTokenInvalid
}

// memUserRepo backs the end-to-end sign-up scenarios.
type memUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[string]*domain.User // by id
	creds  map[string]string       // user id -> hash
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User), creds: make(map[string]string)}
}

func (r *memUserRepo) CreateWithCredential(_ context.Context, email, hash string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return nil, domain.ErrEmailTaken
		}
	}
	r.nextID++
	u := &domain.User{ID: fmt.Sprintf("user-%d", r.nextID), Email: email}
	r.users[u.ID] = u
	r.creds[u.ID] = hash
	return u, nil
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUserRepo) GetCredential(_ context.Context, userID string) (*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.creds[userID]
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	return &domain.Credential{UserID: userID, PasswordHash: h}, nil
}

func (r *memUserRepo) MarkVerified(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Verified = true
	return nil
}

func (r *memUserRepo) DeleteUnverified(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.users {
		if u.Email == email && !u.Verified {
			delete(r.users, id)
			delete(r.creds, id)
			return true, nil
		}
	}
	return false, nil
}

func (r *memUserRepo) PurgeUnverified(context.Context, time.Time) (int, error) { return 0, nil }
