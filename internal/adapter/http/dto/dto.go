package dto

// LoginRequest is the request body for staff login.
type LoginRequest struct {
	Username string `json:"username" binding:"required,safe_id"`
	PIN      string `json:"pin" binding:"required,min=4,max=12"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// SubPayment is one leg of a MIXED payment request.
type SubPayment struct {
	Method     string `json:"payment_method" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
	TerminalID string `json:"terminal_id,omitempty" binding:"omitempty,safe_id"`
}

// PaymentRequest is the request body for payment processing.
type PaymentRequest struct {
	OrderID      string       `json:"order_id" binding:"required,uuid"`
	Amount       int64        `json:"amount" binding:"required,gt=0"`
	Method       string       `json:"payment_method" binding:"required"`
	CashReceived *int64       `json:"cash_received,omitempty"`
	TerminalID   string       `json:"terminal_id,omitempty" binding:"omitempty,safe_id"`
	CustomerID   *string      `json:"customer_id,omitempty" binding:"omitempty,uuid"`
	SubPayments  []SubPayment `json:"sub_payments,omitempty"`
}

// RefundRequest is the request body for refund processing. A zero or
// omitted amount means a full refund of the original payment.
type RefundRequest struct {
	Amount int64   `json:"amount"`
	Reason string  `json:"reason" binding:"required,max=500"`
	Method *string `json:"payment_method,omitempty"`
}

// PaymentResponse is the response body for a payment ledger row.
type PaymentResponse struct {
	ID                string  `json:"id"`
	PaymentNumber     string  `json:"payment_number"`
	OrderID           string  `json:"order_id"`
	Amount            int64   `json:"amount"`
	Method            string  `json:"payment_method"`
	Status            string  `json:"payment_status"`
	GatewayReference  *string `json:"gateway_reference,omitempty"`
	CardMask          *string `json:"card_mask,omitempty"`
	CashReceived      *int64  `json:"cash_received,omitempty"`
	OriginalPaymentID *string `json:"original_payment_id,omitempty"`
	ProcessedBy       string  `json:"processed_by,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

// PaymentResultResponse is the response body for a completed settlement.
type PaymentResultResponse struct {
	Payment         PaymentResponse `json:"payment"`
	OrderStatus     string          `json:"order_status"`
	PaidAmount      int64           `json:"paid_amount"`
	RemainingAmount int64           `json:"remaining_amount"`
	ChangeAmount    int64           `json:"change_amount"`
}

// PaymentListResponse wraps a paginated payment list.
type PaymentListResponse struct {
	Items      []PaymentResponse `json:"items"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

// AddPointsRequest is the request body for direct point earning.
type AddPointsRequest struct {
	CustomerID     string  `json:"customer_id" binding:"required,uuid"`
	Points         int64   `json:"points" binding:"required,gt=0"`
	Type           string  `json:"transaction_type" binding:"required"`
	Description    string  `json:"description" binding:"required,max=500"`
	OrderReference *string `json:"order_reference,omitempty"`
	CampaignID     *string `json:"campaign_id,omitempty" binding:"omitempty,uuid"`
}

// RedeemPointsRequest is the request body for point redemption.
type RedeemPointsRequest struct {
	CustomerID     string  `json:"customer_id" binding:"required,uuid"`
	Points         int64   `json:"points" binding:"required,gt=0"`
	Type           string  `json:"transaction_type" binding:"required"`
	Description    string  `json:"description" binding:"required,max=500"`
	OrderReference *string `json:"order_reference,omitempty"`
}

// AdjustPointsRequest is the request body for a manual point adjustment.
type AdjustPointsRequest struct {
	CustomerID  string `json:"customer_id" binding:"required,uuid"`
	Delta       int64  `json:"delta" binding:"required"`
	Description string `json:"description" binding:"required,max=500"`
}

// VisitRequest is the request body for recording a completed visit.
type VisitRequest struct {
	CustomerID     string  `json:"customer_id" binding:"required,uuid"`
	VisitID        string  `json:"visit_id" binding:"required,uuid"`
	Amount         int64   `json:"amount" binding:"gte=0"`
	OrderReference *string `json:"order_reference,omitempty"`
}

// ExpirePointsRequest is the request body for an expiry batch run.
type ExpirePointsRequest struct {
	TenantID     string `json:"tenant_id" binding:"required,uuid"`
	DaysToExpire int    `json:"days_to_expire" binding:"required,gt=0"`
}

// LoyaltyTransactionResponse is the response body for a point ledger row.
type LoyaltyTransactionResponse struct {
	ID           string `json:"id"`
	CustomerID   string `json:"customer_id"`
	Type         string `json:"transaction_type"`
	PointsChange int64  `json:"points_change"`
	BalanceAfter int64  `json:"balance_after"`
	Description  string `json:"description"`
	CreatedAt    string `json:"created_at"`
}

// LedgerResultResponse pairs the updated balance with the appended entry.
type LedgerResultResponse struct {
	CurrentPoints int64                      `json:"current_points"`
	TierLevel     string                     `json:"tier_level"`
	Transaction   LoyaltyTransactionResponse `json:"transaction"`
}
