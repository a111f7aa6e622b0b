package service

import (
	"context"
	"fmt"
	"time"

	"pos-settlement-engine/internal/core/ports"
	"pos-settlement-engine/pkg/apperror"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	staffRepo ports.StaffRepository
	hashSvc   ports.HashService
	tokenSvc  ports.TokenService
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	staffRepo ports.StaffRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		staffRepo: staffRepo,
		hashSvc:   hashSvc,
		tokenSvc:  tokenSvc,
	}
}

// Login validates a staff PIN and returns a JWT token. Unknown usernames and
// wrong PINs produce the same error.
func (s *AuthServiceImpl) Login(ctx context.Context, username, pin string) (string, time.Time, error) {
	staff, err := s.staffRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("find staff: %w", err))
	}
	if staff == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(pin, staff.PINHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify pin: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(staff.ID, staff.Username, staff.Role)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}
