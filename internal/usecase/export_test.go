package usecase

import "time"

func (u *VerificationUsecase) SetClock(now func() time.Time) { u.now = now }

func (u *AuthUsecase) SetClock(now func() time.Time) { u.now = now }

func (s *TicketSigner) SetClock(now func() time.Time) { s.now = now }
