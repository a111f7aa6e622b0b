package ports

import (
	"context"
	"time"

	"pos-settlement-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderRepository defines persistence operations for the settlement view of
// orders. Methods accepting pgx.Tx run inside transaction blocks and rely on
// pessimistic row locking.
type OrderRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error)
	// UpdateSettlement writes the payment-derived fields of the order. It is
	// only ever called inside the same transaction that writes the payment
	// rows the fields are derived from.
	UpdateSettlement(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, paidAmount, changeAmount int64, status domain.OrderPaymentStatus, method domain.PaymentMethod) error
	// ListPaidByDate returns orders (with items) fully paid on the given day.
	ListPaidByDate(ctx context.Context, tenantID uuid.UUID, dayStart, dayEnd time.Time) ([]domain.Order, error)
}

// PaymentRepository defines persistence operations for the payment ledger.
type PaymentRepository interface {
	Create(ctx context.Context, tx pgx.Tx, p *domain.PaymentRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRecord, error)
	// SumNonFailedByOrder sums Amount over the order's parent rows (legs of
	// MIXED payments excluded) whose status is not FAILED. Refund rows are
	// negative, so the result is the net paid amount.
	SumNonFailedByOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int64, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus) error
	// SumRefundsByOriginal returns the absolute total already refunded
	// against the given original payment.
	SumRefundsByOriginal(ctx context.Context, tx pgx.Tx, originalID uuid.UUID) (int64, error)
	// NextSequence returns the next per-tenant payment sequence for the day.
	NextSequence(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, dayStart, dayEnd time.Time) (int64, error)
	List(ctx context.Context, params PaymentListParams) ([]domain.PaymentRecord, int64, error)
	GetDailySummary(ctx context.Context, tenantID uuid.UUID, dayStart, dayEnd time.Time) (*DailySalesSummary, error)
}

// PaymentListParams holds filter + pagination for listing payments.
type PaymentListParams struct {
	TenantID uuid.UUID
	OrderID  *uuid.UUID
	Method   *domain.PaymentMethod
	Status   *domain.PaymentStatus
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// DailySalesSummary aggregates one day of settlement activity.
type DailySalesSummary struct {
	Date               string                         `json:"date"`
	TotalSales         int64                          `json:"total_sales"`
	TotalTransactions  int64                          `json:"total_transactions"`
	PaymentBreakdown   map[domain.PaymentMethod]int64 `json:"payment_breakdown"`
	RefundsAmount      int64                          `json:"refunds_amount"`
	AverageTransaction int64                          `json:"average_transaction"`
	EstimatedMargin    int64                          `json:"estimated_margin"`
}

// LoyaltyRepository defines persistence for customer point balances and the
// append-only point ledger.
type LoyaltyRepository interface {
	GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*domain.CustomerLoyalty, error)
	GetByCustomerIDForUpdate(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (*domain.CustomerLoyalty, error)
	// UpdateBalances persists the mutable fields of the loyalty row. Only
	// ever called inside the transaction that appends the ledger row the
	// balances are derived from.
	UpdateBalances(ctx context.Context, tx pgx.Tx, loyalty *domain.CustomerLoyalty) error
	// UpdateTier writes the derived tier field. Called outside balance
	// transactions by the recompute worker; tier is a cache, not part of
	// the balance invariant.
	UpdateTier(ctx context.Context, customerID uuid.UUID, tier domain.Tier) error
	CreateTransaction(ctx context.Context, tx pgx.Tx, txn *domain.LoyaltyTransaction) error
	ListRecent(ctx context.Context, customerID uuid.UUID, limit int) ([]domain.LoyaltyTransaction, error)
	// HasBirthdayBonus reports whether an EARNED_BIRTHDAY entry exists for
	// the customer in the given calendar year.
	HasBirthdayBonus(ctx context.Context, tx pgx.Tx, customerID uuid.UUID, year int) (bool, error)
	// ListExpirableEarnings returns earning ledger rows older than the
	// cutoff that have no EXPIRED row linked to them yet.
	ListExpirableEarnings(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) ([]domain.LoyaltyTransaction, error)
}

// StaffRepository defines persistence for staff credentials.
type StaffRepository interface {
	GetByUsername(ctx context.Context, username string) (*domain.Staff, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
