package usecase

import (
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/devlife/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const ticketPurposeVerification = "email_verification"

type ticketClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// TicketSigner issues the signed user reference embedded in verification links, so the
// web client can verify without an active session. It proves nothing on its own: the
// code is still required.
type TicketSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewTicketSigner(key []byte) *TicketSigner {
	return &TicketSigner{key: key, ttl: verificationCodeTTL, now: time.Now}
}

func (s *TicketSigner) Sign(userID string) (string, error) {
	now := s.now()
	claims := ticketClaims{
		Purpose: ticketPurposeVerification,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign ticket: %w", err)
	}
	return signed, nil
}

// Parse returns the user ID carried by a valid ticket, domain.ErrTokenInvalid otherwise.
func (s *TicketSigner) Parse(raw string) (string, error) {
	var claims ticketClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.key, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", domain.ErrTokenInvalid
	}
	if claims.Purpose != ticketPurposeVerification || claims.Subject == "" {
		return "", domain.ErrTokenInvalid
	}
	return claims.Subject, nil
}
