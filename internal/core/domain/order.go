package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// OrderPaymentStatus represents how much of an order has been settled.
type OrderPaymentStatus string

const (
	OrderPaymentPending  OrderPaymentStatus = "PENDING"
	OrderPaymentPartial  OrderPaymentStatus = "PARTIAL"
	OrderPaymentPaid     OrderPaymentStatus = "PAID"
	OrderPaymentFailed   OrderPaymentStatus = "FAILED"
	OrderPaymentRefunded OrderPaymentStatus = "REFUNDED"
)

// Order is the settlement view of an order. The engine only mutates its
// payment fields; the rest is owned by the host system.
type Order struct {
	ID            uuid.UUID          `json:"id"`
	TenantID      uuid.UUID          `json:"tenant_id"`
	OrderNumber   string             `json:"order_number"`
	CustomerID    *uuid.UUID         `json:"customer_id,omitempty"`
	TotalAmount   int64              `json:"total_amount"` // In smallest currency unit
	PaidAmount    int64              `json:"paid_amount"`
	ChangeAmount  int64              `json:"change_amount"`
	PaymentStatus OrderPaymentStatus `json:"payment_status"`
	PaymentMethod *PaymentMethod     `json:"payment_method,omitempty"` // Last used, informational
	Status        OrderStatus        `json:"status"`
	Items         []OrderItem        `json:"items,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// OrderItem is an order line, carried for margin reporting only.
type OrderItem struct {
	ItemID    uuid.UUID `json:"item_id"`
	Quantity  int64     `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
}

// AcceptsPayment returns true if the order can still receive settlements.
func (o *Order) AcceptsPayment() bool {
	return o.Status != OrderStatusCancelled && o.PaymentStatus != OrderPaymentRefunded
}

// DerivePaymentStatus maps a paid total onto the order payment state.
func DerivePaymentStatus(totalPaid, totalAmount int64) OrderPaymentStatus {
	switch {
	case totalPaid >= totalAmount:
		return OrderPaymentPaid
	case totalPaid > 0:
		return OrderPaymentPartial
	default:
		return OrderPaymentPending
	}
}

// DeriveRefundedStatus maps the net paid amount after refunds onto the
// order payment state.
func DeriveRefundedStatus(netPaid, totalAmount int64) OrderPaymentStatus {
	switch {
	case netPaid <= 0:
		return OrderPaymentRefunded
	case netPaid < totalAmount:
		return OrderPaymentPartial
	default:
		return OrderPaymentPaid
	}
}
