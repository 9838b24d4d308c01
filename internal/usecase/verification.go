package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/devlife/internal/domain"
	"github.com/ErlanBelekov/devlife/internal/repository"
	"github.com/ErlanBelekov/devlife/internal/security"
)

const (
	verificationCodeTTL    = 15 * time.Minute
	verificationCodeLength = 8
)

// VerificationUsecase issues and consumes one-shot email verification codes.
type VerificationUsecase struct {
	codes repository.VerificationCodeRepository
	now   func() time.Time
}

func NewVerificationUsecase(codes repository.VerificationCodeRepository) *VerificationUsecase {
	return &VerificationUsecase{codes: codes, now: time.Now}
}

// Issue replaces any live code of the user with a fresh one and returns it.
func (u *VerificationUsecase) Issue(ctx context.Context, userID string) (string, error) {
	code, err := security.RandomString(verificationCodeLength, security.Digits)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	err = u.codes.Replace(ctx, &domain.VerificationCode{
		UserID:    userID,
		Code:      code,
		ExpiresAt: u.now().Add(verificationCodeTTL),
	})
	if err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// Validate returns nil only for a matching, unexpired code, which is consumed.
// Expired codes are deleted whether or not they match; a mismatch leaves the row in place.
func (u *VerificationUsecase) Validate(ctx context.Context, userID, code string) error {
	stored, err := u.codes.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrVerificationCodeNotFound) {
			return err
		}
		return fmt.Errorf("find code: %w", err)
	}

	if stored.Expired(u.now()) {
		if err := u.codes.Delete(ctx, userID); err != nil {
			return fmt.Errorf("delete expired code: %w", err)
		}
		return domain.ErrVerificationCodeExpired
	}

	if subtle.ConstantTimeCompare([]byte(stored.Code), []byte(code)) != 1 {
		return domain.ErrVerificationCodeInvalid
	}

	// Conditional delete: a concurrent consumer of the same code gets NotFound.
	if err := u.codes.Consume(ctx, userID, code); err != nil {
		if errors.Is(err, domain.ErrVerificationCodeNotFound) {
			return err
		}
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}
