package postgres

import (
	"context"
	"errors"
	"fmt"

	"pos-settlement-engine/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// StaffRepo implements ports.StaffRepository.
type StaffRepo struct {
	pool Pool
}

// NewStaffRepo creates a new StaffRepo.
func NewStaffRepo(pool Pool) *StaffRepo {
	return &StaffRepo{pool: pool}
}

// GetByUsername fetches a staff member by username.
func (r *StaffRepo) GetByUsername(ctx context.Context, username string) (*domain.Staff, error) {
	query := `SELECT id, tenant_id, username, pin_hash, role, created_at FROM staff WHERE username = $1`

	s := &domain.Staff{}
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&s.ID, &s.TenantID, &s.Username, &s.PINHash, &s.Role, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan staff: %w", err)
	}
	return s, nil
}
