package domain

import (
	"time"

	"github.com/google/uuid"
)

// StaffRole gates which engine operations a staff member may perform.
type StaffRole string

const (
	StaffRoleCashier StaffRole = "CASHIER"
	StaffRoleManager StaffRole = "MANAGER"
)

// Staff is an authenticated operator of the admin panel. Refunds and manual
// point adjustments require a manager.
type Staff struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Username  string    `json:"username"`
	PINHash   string    `json:"-"` // Argon2id, never expose
	Role      StaffRole `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// CanApproveRefunds reports whether the staff member may process refunds
// and manual adjustments.
func (s *Staff) CanApproveRefunds() bool {
	return s.Role == StaffRoleManager
}
