package ports

import (
	"context"
	"time"

	"pos-settlement-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// --- External Collaborator Ports ---

// GatewayAdapter is the host-supplied card/online payment capability. The
// engine never assumes a specific provider. Reverse is the compensation
// half of the saga: it undoes a charge that was accepted but whose
// settlement could not be committed.
type GatewayAdapter interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Reverse(ctx context.Context, reference string) error
}

// ChargeRequest describes one gateway leg.
type ChargeRequest struct {
	Method      domain.PaymentMethod
	Amount      int64
	TerminalID  string
	OrderNumber string
	Metadata    map[string]string
}

// ChargeResult is the gateway's answer to a charge attempt.
type ChargeResult struct {
	Success       bool
	Reference     string
	CardMask      string
	FailureReason string
}

// CostLookup resolves an item's cost-per-unit, used only for informational
// margin fields. Not required for settlement correctness.
type CostLookup interface {
	UnitCost(ctx context.Context, itemID uuid.UUID) (int64, error)
}

// TierQueue hands customer IDs to the background tier recompute worker.
// Delivery is at-least-once; recomputation is idempotent.
type TierQueue interface {
	Enqueue(ctx context.Context, customerID uuid.UUID) error
	// Dequeue blocks up to timeout for the next customer ID. Returns
	// uuid.Nil with no error when the timeout elapses empty.
	Dequeue(ctx context.Context, timeout time.Duration) (uuid.UUID, error)
}

// SummaryCache is a best-effort read-side cache for daily sales summaries.
// Point/payment balances are never cached; only derived reporting output.
type SummaryCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil on miss
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// --- Service Ports (Business Logic) ---

// SettlementService orchestrates single and split payments against orders,
// derives order payment status, and handles refunds.
type SettlementService interface {
	ProcessPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error)
	ProcessRefund(ctx context.Context, req RefundRequest) (*domain.PaymentRecord, error)
}

// SubPayment is one leg of a MIXED payment.
type SubPayment struct {
	Method     domain.PaymentMethod
	Amount     int64
	TerminalID string
}

// PaymentRequest holds validated input for payment processing.
type PaymentRequest struct {
	OrderID      uuid.UUID
	Amount       int64
	Method       domain.PaymentMethod
	CashReceived *int64     // CASH: tendered amount, for change computation
	TerminalID   string     // CARD: required terminal/gateway identifier
	CustomerID   *uuid.UUID // POINTS: paying customer
	SubPayments  []SubPayment
	ProcessedBy  string
}

// PaymentResult is the outcome of a successful settlement.
type PaymentResult struct {
	Payment         *domain.PaymentRecord `json:"payment"`
	Order           *domain.Order         `json:"order"`
	RemainingAmount int64                 `json:"remaining_amount"`
	ChangeAmount    int64                 `json:"change_amount"`
}

// RefundRequest holds validated input for refund processing.
type RefundRequest struct {
	PaymentID   uuid.UUID
	Amount      int64
	Reason      string
	Method      *domain.PaymentMethod // nil = same as original
	ProcessedBy string
}

// LoyaltyService manages point issuance, redemption, expiry, and tier
// transitions for customers.
type LoyaltyService interface {
	AddPoints(ctx context.Context, req AddPointsRequest) (*LedgerResult, error)
	RedeemPoints(ctx context.Context, req RedeemPointsRequest) (*LedgerResult, error)
	// RedeemPointsTx performs a redemption inside an already-open
	// transaction, so a POINTS payment leg and its redemption commit or
	// roll back together.
	RedeemPointsTx(ctx context.Context, tx pgx.Tx, req RedeemPointsRequest) (*LedgerResult, error)
	AdjustPoints(ctx context.Context, customerID uuid.UUID, delta int64, description, createdBy string) (*LedgerResult, error)
	AwardBirthdayBonus(ctx context.Context, customerID uuid.UUID) (*LedgerResult, error)
	RecordVisit(ctx context.Context, req VisitRequest) (*LedgerResult, error)
	ExpireOldPoints(ctx context.Context, tenantID uuid.UUID, daysToExpire int) (*ExpiryReport, error)
	GetCustomerDetails(ctx context.Context, customerID uuid.UUID) (*LoyaltyDetails, error)
	// RecomputeTier re-derives the cached tier from committed aggregate
	// fields. Idempotent; invoked by the background worker.
	RecomputeTier(ctx context.Context, customerID uuid.UUID) error
}

// AddPointsRequest holds input for direct point earning.
type AddPointsRequest struct {
	CustomerID     uuid.UUID
	Points         int64
	Type           domain.LoyaltyTransactionType
	Description    string
	VisitID        *uuid.UUID
	OrderReference *string
	CampaignID     *uuid.UUID
	CreatedBy      string
}

// RedeemPointsRequest holds input for point redemption.
type RedeemPointsRequest struct {
	CustomerID     uuid.UUID
	Points         int64
	Type           domain.LoyaltyTransactionType // REDEEMED_DISCOUNT or REDEEMED_ITEM
	Description    string
	OrderReference *string
	CreatedBy      string
}

// VisitRequest records a completed visit's spend for metric and point accrual.
type VisitRequest struct {
	CustomerID     uuid.UUID
	VisitID        uuid.UUID
	Amount         int64
	OrderReference *string
}

// LedgerResult pairs the updated balance row with the appended ledger entry.
type LedgerResult struct {
	Loyalty     *domain.CustomerLoyalty    `json:"loyalty"`
	Transaction *domain.LoyaltyTransaction `json:"transaction"`
}

// LoyaltyDetails is the read model for a customer's loyalty standing.
type LoyaltyDetails struct {
	Loyalty            *domain.CustomerLoyalty      `json:"loyalty"`
	NextTier           *domain.Tier                 `json:"next_tier"`
	TierProgress       float64                      `json:"tier_progress"`
	Benefits           domain.TierBenefits          `json:"benefits"`
	RecentTransactions []domain.LoyaltyTransaction  `json:"recent_transactions"`
}

// ExpiryReport summarizes one expiry batch run. Per-customer failures are
// skipped and counted, never aborting the batch.
type ExpiryReport struct {
	LotsProcessed     int   `json:"lots_processed"`
	CustomersAffected int   `json:"customers_affected"`
	PointsExpired     int64 `json:"points_expired"`
	Skipped           int   `json:"skipped"`
}

// ReportingService is the read-only reporting surface over the payment ledger.
type ReportingService interface {
	GetDailySalesSummary(ctx context.Context, tenantID uuid.UUID, date time.Time) (*DailySalesSummary, error)
	ListPayments(ctx context.Context, params PaymentListParams) ([]domain.PaymentRecord, int64, error)
}

// AuthService authenticates staff for guarded operations.
type AuthService interface {
	Login(ctx context.Context, username, pin string) (string, time.Time, error) // token, expiry, error
}

// TokenService handles JWT token operations for staff sessions.
type TokenService interface {
	Generate(staffID uuid.UUID, username string, role domain.StaffRole) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	StaffID  uuid.UUID
	Username string
	Role     domain.StaffRole
}

// HashService handles staff PIN hashing (Argon2id).
type HashService interface {
	Hash(pin string) (string, error)
	Verify(pin string, hash string) (bool, error)
}
