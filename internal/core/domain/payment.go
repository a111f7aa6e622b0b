package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentMethod represents how a payment leg is settled.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodCard   PaymentMethod = "CARD"
	PaymentMethodOnline PaymentMethod = "ONLINE"
	PaymentMethodPoints PaymentMethod = "POINTS"
	PaymentMethodMixed  PaymentMethod = "MIXED"
)

// IsValid reports whether m is a known payment method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodOnline,
		PaymentMethodPoints, PaymentMethodMixed:
		return true
	}
	return false
}

// RequiresGateway reports whether the method settles through the external
// gateway adapter.
func (m PaymentMethod) RequiresGateway() bool {
	return m == PaymentMethodCard || m == PaymentMethodOnline
}

// PaymentStatus represents the lifecycle state of a payment record.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// PaymentRecord is an immutable ledger entry for one settlement attempt.
// Refunds are new rows with negative amounts, never mutations of history.
// Legs of a MIXED payment are child rows pointing at the aggregate via
// ParentPaymentID; aggregation queries count only parent rows.
type PaymentRecord struct {
	ID                uuid.UUID     `json:"id"`
	PaymentNumber     string        `json:"payment_number"` // Per-tenant, date-sequenced
	OrderID           uuid.UUID     `json:"order_id"`
	TenantID          uuid.UUID     `json:"tenant_id"`
	Amount            int64         `json:"amount"` // Signed; negative = refund leg
	Method            PaymentMethod `json:"payment_method"`
	Status            PaymentStatus `json:"payment_status"`
	GatewayReference  *string       `json:"gateway_reference,omitempty"`
	CardMask          *string       `json:"card_mask,omitempty"`
	CashReceived      *int64        `json:"cash_received,omitempty"`
	FailureReason     *string       `json:"failure_reason,omitempty"`
	ParentPaymentID   *uuid.UUID    `json:"parent_payment_id,omitempty"`
	OriginalPaymentID *uuid.UUID    `json:"original_payment_id,omitempty"` // Refund linkage
	ProcessedBy       string        `json:"processed_by,omitempty"`
	ProcessedAt       *time.Time    `json:"processed_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}

// IsRefundable returns true if this record can be refunded.
func (p *PaymentRecord) IsRefundable() bool {
	return p.Amount > 0 && p.Status == PaymentStatusPaid
}

// IsRefund returns true if this record is a refund leg.
func (p *PaymentRecord) IsRefund() bool {
	return p.Amount < 0
}

// BuildPaymentNumber formats a per-tenant, date-sequenced payment number,
// e.g. PAY-20260830-0007.
func BuildPaymentNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("PAY-%s-%04d", at.Format("20060102"), seq)
}
