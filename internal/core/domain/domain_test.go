package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrder_AcceptsPayment(t *testing.T) {
	tests := []struct {
		name      string
		status    OrderStatus
		payStatus OrderPaymentStatus
		want      bool
	}{
		{"open pending", OrderStatusOpen, OrderPaymentPending, true},
		{"open partial", OrderStatusOpen, OrderPaymentPartial, true},
		{"completed paid", OrderStatusCompleted, OrderPaymentPaid, true},
		{"cancelled", OrderStatusCancelled, OrderPaymentPending, false},
		{"refunded", OrderStatusOpen, OrderPaymentRefunded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{Status: tt.status, PaymentStatus: tt.payStatus}
			assert.Equal(t, tt.want, o.AcceptsPayment())
		})
	}
}

func TestDerivePaymentStatus(t *testing.T) {
	tests := []struct {
		name      string
		totalPaid int64
		total     int64
		want      OrderPaymentStatus
	}{
		{"nothing paid", 0, 100000, OrderPaymentPending},
		{"partially paid", 60000, 100000, OrderPaymentPartial},
		{"exactly paid", 100000, 100000, OrderPaymentPaid},
		{"overpaid", 120000, 100000, OrderPaymentPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivePaymentStatus(tt.totalPaid, tt.total))
		})
	}
}

func TestDeriveRefundedStatus(t *testing.T) {
	tests := []struct {
		name    string
		netPaid int64
		total   int64
		want    OrderPaymentStatus
	}{
		{"fully refunded", 0, 100000, OrderPaymentRefunded},
		{"over refunded", -5000, 100000, OrderPaymentRefunded},
		{"partially refunded", 60000, 100000, OrderPaymentPartial},
		{"nothing refunded", 100000, 100000, OrderPaymentPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveRefundedStatus(tt.netPaid, tt.total))
		})
	}
}

func TestPaymentRecord_IsRefundable(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		status PaymentStatus
		want   bool
	}{
		{"paid payment", 50000, PaymentStatusPaid, true},
		{"failed payment", 50000, PaymentStatusFailed, false},
		{"already refunded", 50000, PaymentStatusRefunded, false},
		{"refund leg", -50000, PaymentStatusRefunded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &PaymentRecord{Amount: tt.amount, Status: tt.status}
			assert.Equal(t, tt.want, p.IsRefundable())
		})
	}
}

func TestPaymentMethod_IsValid(t *testing.T) {
	assert.True(t, PaymentMethodCash.IsValid())
	assert.True(t, PaymentMethodMixed.IsValid())
	assert.False(t, PaymentMethod("VOUCHER").IsValid())
}

func TestPaymentMethod_RequiresGateway(t *testing.T) {
	assert.True(t, PaymentMethodCard.RequiresGateway())
	assert.True(t, PaymentMethodOnline.RequiresGateway())
	assert.False(t, PaymentMethodCash.RequiresGateway())
	assert.False(t, PaymentMethodPoints.RequiresGateway())
}

func TestBuildPaymentNumber(t *testing.T) {
	at := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, "PAY-20260830-0007", BuildPaymentNumber(at, 7))
	assert.Equal(t, "PAY-20260830-1234", BuildPaymentNumber(at, 1234))
}

func TestLoyaltyTransactionType_IsEarning(t *testing.T) {
	assert.True(t, LoyaltyEarnedPurchase.IsEarning())
	assert.True(t, LoyaltyEarnedBirthday.IsEarning())
	assert.True(t, LoyaltyAdjustmentAdd.IsEarning())
	assert.False(t, LoyaltyRedeemedDiscount.IsEarning())
	assert.False(t, LoyaltyExpired.IsEarning())
	assert.False(t, LoyaltyAdjustmentSub.IsEarning())
}
