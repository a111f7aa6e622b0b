package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos-settlement-engine/internal/core/domain"
	"pos-settlement-engine/internal/core/ports"
	"pos-settlement-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// SettlementServiceImpl implements ports.SettlementService.
type SettlementServiceImpl struct {
	orderRepo   ports.OrderRepository
	paymentRepo ports.PaymentRepository
	loyaltySvc  ports.LoyaltyService
	gateway     ports.GatewayAdapter
	transactor  ports.DBTransactor
	pointValue  int64 // minor currency units one point is worth at redemption
	log         zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	orderRepo ports.OrderRepository,
	paymentRepo ports.PaymentRepository,
	loyaltySvc ports.LoyaltyService,
	gateway ports.GatewayAdapter,
	transactor ports.DBTransactor,
	pointValue int64,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		loyaltySvc:  loyaltySvc,
		gateway:     gateway,
		transactor:  transactor,
		pointValue:  pointValue,
		log:         log,
	}
}

// chargedLeg pairs a payment leg with its resolved gateway result, if any.
type chargedLeg struct {
	sub    ports.SubPayment
	result *ports.ChargeResult
}

// ProcessPayment settles a single or split payment against an order with
// pessimistic locking. Gateway legs are authorized before the database
// transaction opens; if the settlement cannot commit afterwards, the
// accepted charges are reversed.
func (s *SettlementServiceImpl) ProcessPayment(ctx context.Context, req ports.PaymentRequest) (*ports.PaymentResult, error) {
	legs, err := s.validatePaymentRequest(req)
	if err != nil {
		return nil, err
	}

	// Cheap pre-checks on an unlocked read. All of them are re-validated
	// under the row lock before anything is written.
	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if !order.AcceptsPayment() {
		return nil, apperror.ErrOrderNotPayable(orderState(order))
	}
	if req.Amount > order.TotalAmount-order.PaidAmount {
		return nil, apperror.ErrAmountExceedsBalance(order.TotalAmount - order.PaidAmount)
	}

	// Resolve external gateway legs before opening the transaction so a
	// slow provider never holds a row lock.
	charged, err := s.chargeGatewayLegs(ctx, order, req, legs)
	if err != nil {
		s.recordFailedAttempt(ctx, order, req, err)
		return nil, err
	}

	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		s.reverseCharges(ctx, charged)
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock & re-read order
	order, err = s.orderRepo.GetByIDForUpdate(ctx, dbTx, req.OrderID)
	if err != nil {
		s.reverseCharges(ctx, charged)
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if order == nil {
		s.reverseCharges(ctx, charged)
		return nil, apperror.ErrNotFound("order")
	}
	if !order.AcceptsPayment() {
		s.reverseCharges(ctx, charged)
		return nil, apperror.ErrOrderNotPayable(orderState(order))
	}

	// Re-derive the outstanding balance from the ledger, not the cached
	// order field: a concurrent settlement may have just committed.
	alreadyPaid, err := s.paymentRepo.SumNonFailedByOrder(ctx, dbTx, order.ID)
	if err != nil {
		s.reverseCharges(ctx, charged)
		return nil, apperror.InternalError(fmt.Errorf("sum payments: %w", err))
	}
	if req.Amount > order.TotalAmount-alreadyPaid {
		remaining := order.TotalAmount - alreadyPaid
		s.reverseCharges(ctx, charged)
		// Release the row lock before the side transaction opens.
		dbTx.Rollback(ctx) //nolint:errcheck
		s.recordFailedAttempt(ctx, order, req, apperror.ErrAmountExceedsBalance(remaining))
		return nil, apperror.ErrAmountExceedsBalance(remaining)
	}

	var changeAmount int64
	if req.Method == domain.PaymentMethodCash && req.CashReceived != nil {
		changeAmount = *req.CashReceived - req.Amount
	}

	now := time.Now().UTC()
	dayStart, dayEnd := dayBounds(now)
	seq, err := s.paymentRepo.NextSequence(ctx, dbTx, order.TenantID, dayStart, dayEnd)
	if err != nil {
		s.reverseCharges(ctx, charged)
		return nil, apperror.InternalError(fmt.Errorf("next payment sequence: %w", err))
	}

	parent := &domain.PaymentRecord{
		ID:            uuid.New(),
		PaymentNumber: domain.BuildPaymentNumber(now, seq),
		OrderID:       order.ID,
		TenantID:      order.TenantID,
		Amount:        req.Amount,
		Method:        req.Method,
		Status:        domain.PaymentStatusPaid,
		CashReceived:  req.CashReceived,
		ProcessedBy:   req.ProcessedBy,
		ProcessedAt:   &now,
		CreatedAt:     now,
	}
	if req.Method != domain.PaymentMethodMixed && len(charged) == 1 && charged[0].result != nil {
		parent.GatewayReference = strPtr(charged[0].result.Reference)
		if charged[0].result.CardMask != "" {
			parent.CardMask = strPtr(charged[0].result.CardMask)
		}
	}

	if err := s.paymentRepo.Create(ctx, dbTx, parent); err != nil {
		s.reverseCharges(ctx, charged)
		return nil, apperror.InternalError(fmt.Errorf("create payment: %w", err))
	}

	// Child rows for split legs, point redemption for POINTS legs. A
	// redemption failure rolls the whole settlement back.
	if req.Method == domain.PaymentMethodMixed {
		if err := s.settleLegs(ctx, dbTx, order, parent, charged, req, now); err != nil {
			s.reverseCharges(ctx, charged)
			return nil, err
		}
	} else if req.Method == domain.PaymentMethodPoints {
		if err := s.redeemForLeg(ctx, dbTx, *req.CustomerID, req.Amount, order.OrderNumber, req.ProcessedBy); err != nil {
			return nil, err
		}
	}

	newPaid := alreadyPaid + req.Amount
	newStatus := domain.DerivePaymentStatus(newPaid, order.TotalAmount)
	if err := s.orderRepo.UpdateSettlement(ctx, dbTx, order.ID, newPaid, changeAmount, newStatus, req.Method); err != nil {
		s.reverseCharges(ctx, charged)
		return nil, apperror.InternalError(fmt.Errorf("update order settlement: %w", err))
	}

	// Commit
	if err := dbTx.Commit(ctx); err != nil {
		s.reverseCharges(ctx, charged)
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	order.PaidAmount = newPaid
	order.ChangeAmount = changeAmount
	order.PaymentStatus = newStatus
	order.PaymentMethod = &req.Method

	remaining := order.TotalAmount - newPaid
	if remaining < 0 {
		remaining = 0
	}

	s.log.Info().
		Str("payment_id", parent.ID.String()).
		Str("payment_number", parent.PaymentNumber).
		Str("order_id", order.ID.String()).
		Str("method", string(req.Method)).
		Int64("amount", req.Amount).
		Str("order_payment_status", string(newStatus)).
		Msg("payment settled")

	return &ports.PaymentResult{
		Payment:         parent,
		Order:           order,
		RemainingAmount: remaining,
		ChangeAmount:    changeAmount,
	}, nil
}

// ProcessRefund appends a negative ledger row against an earlier payment and
// re-derives the order payment status from the resulting net.
func (s *SettlementServiceImpl) ProcessRefund(ctx context.Context, req ports.RefundRequest) (*domain.PaymentRecord, error) {
	orig, err := s.paymentRepo.GetByID(ctx, req.PaymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment: %w", err))
	}
	if orig == nil {
		return nil, apperror.ErrNotFound("payment")
	}
	if !orig.IsRefundable() {
		return nil, apperror.ErrNotRefundable()
	}

	refundAmount := orig.Amount
	if req.Amount != 0 {
		if req.Amount < 0 {
			return nil, apperror.ErrInvalidAmount()
		}
		refundAmount = req.Amount
	}
	if refundAmount > orig.Amount {
		return nil, apperror.ErrRefundExceedsOriginal()
	}

	refundMethod := orig.Method
	if req.Method != nil {
		if !req.Method.IsValid() || *req.Method == domain.PaymentMethodMixed {
			return nil, apperror.ErrInvalidMethod(string(*req.Method))
		}
		refundMethod = *req.Method
	}

	// A full refund of a gateway-settled payment reverses the charge with
	// the provider first. Partial amounts stay engine-side; the provider
	// reversal API is all-or-nothing.
	if refundAmount == orig.Amount && orig.Method.RequiresGateway() && orig.GatewayReference != nil {
		if err := s.gateway.Reverse(ctx, *orig.GatewayReference); err != nil {
			return nil, apperror.ErrGatewayUnavailable(fmt.Errorf("reverse charge: %w", err))
		}
	}

	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock & re-read order
	order, err := s.orderRepo.GetByIDForUpdate(ctx, dbTx, orig.OrderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}

	// Cumulative cap, checked under the lock so two racing refunds cannot
	// both pass.
	refundedSoFar, err := s.paymentRepo.SumRefundsByOriginal(ctx, dbTx, orig.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum refunds: %w", err))
	}
	if refundedSoFar+refundAmount > orig.Amount {
		return nil, apperror.ErrRefundExceedsOriginal()
	}

	now := time.Now().UTC()
	dayStart, dayEnd := dayBounds(now)
	seq, err := s.paymentRepo.NextSequence(ctx, dbTx, order.TenantID, dayStart, dayEnd)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("next payment sequence: %w", err))
	}

	refund := &domain.PaymentRecord{
		ID:                uuid.New(),
		PaymentNumber:     domain.BuildPaymentNumber(now, seq),
		OrderID:           order.ID,
		TenantID:          order.TenantID,
		Amount:            -refundAmount,
		Method:            refundMethod,
		Status:            domain.PaymentStatusRefunded,
		FailureReason:     nil,
		OriginalPaymentID: &orig.ID,
		ProcessedBy:       req.ProcessedBy,
		ProcessedAt:       &now,
		CreatedAt:         now,
	}
	if req.Reason != "" {
		refund.FailureReason = strPtr(req.Reason)
	}

	if err := s.paymentRepo.Create(ctx, dbTx, refund); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create refund: %w", err))
	}

	// Fully consumed originals flip to REFUNDED; partial refunds leave the
	// original PAID so the remainder stays refundable.
	if refundedSoFar+refundAmount == orig.Amount {
		if err := s.paymentRepo.UpdateStatus(ctx, dbTx, orig.ID, domain.PaymentStatusRefunded); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("mark original refunded: %w", err))
		}
	}

	netPaid, err := s.paymentRepo.SumNonFailedByOrder(ctx, dbTx, order.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum payments: %w", err))
	}
	newStatus := domain.DeriveRefundedStatus(netPaid, order.TotalAmount)
	if err := s.orderRepo.UpdateSettlement(ctx, dbTx, order.ID, netPaid, order.ChangeAmount, newStatus, refundMethod); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update order settlement: %w", err))
	}

	// Commit
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("refund_id", refund.ID.String()).
		Str("original_payment_id", orig.ID.String()).
		Str("order_id", order.ID.String()).
		Int64("refund_amount", refundAmount).
		Str("order_payment_status", string(newStatus)).
		Msg("refund settled")

	return refund, nil
}

// validatePaymentRequest checks structural validity and normalizes the
// request into its payment legs (a single leg for non-MIXED methods).
func (s *SettlementServiceImpl) validatePaymentRequest(req ports.PaymentRequest) ([]ports.SubPayment, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.Method.IsValid() {
		return nil, apperror.ErrInvalidMethod(string(req.Method))
	}

	if req.Method != domain.PaymentMethodMixed {
		if len(req.SubPayments) > 0 {
			return nil, apperror.Validation("sub_payments are only allowed for MIXED payments")
		}
		if req.Method == domain.PaymentMethodCash {
			if req.CashReceived == nil {
				return nil, apperror.Validation("cash_received is required for CASH payments")
			}
			if *req.CashReceived < req.Amount {
				return nil, apperror.Validation("cash_received is less than the payment amount")
			}
		}
		if req.Method == domain.PaymentMethodCard && req.TerminalID == "" {
			return nil, apperror.Validation("terminal_id is required for CARD payments")
		}
		if req.Method == domain.PaymentMethodPoints && req.CustomerID == nil {
			return nil, apperror.Validation("customer_id is required for POINTS payments")
		}
		return []ports.SubPayment{{Method: req.Method, Amount: req.Amount, TerminalID: req.TerminalID}}, nil
	}

	if len(req.SubPayments) < 2 {
		return nil, apperror.Validation("MIXED payments require at least two sub_payments")
	}
	var sum int64
	for _, sub := range req.SubPayments {
		if sub.Amount <= 0 {
			return nil, apperror.ErrInvalidAmount()
		}
		if !sub.Method.IsValid() || sub.Method == domain.PaymentMethodMixed {
			return nil, apperror.ErrInvalidMethod(string(sub.Method))
		}
		if sub.Method == domain.PaymentMethodCard && sub.TerminalID == "" {
			return nil, apperror.Validation("terminal_id is required for CARD sub_payments")
		}
		if sub.Method == domain.PaymentMethodPoints && req.CustomerID == nil {
			return nil, apperror.Validation("customer_id is required for POINTS sub_payments")
		}
		sum += sub.Amount
	}
	if sum != req.Amount {
		return nil, apperror.ErrSplitMismatch()
	}
	return req.SubPayments, nil
}

// chargeGatewayLegs authorizes every CARD/ONLINE leg with the gateway. If any
// leg fails, charges already accepted are reversed and an error is returned.
func (s *SettlementServiceImpl) chargeGatewayLegs(ctx context.Context, order *domain.Order, req ports.PaymentRequest, legs []ports.SubPayment) ([]chargedLeg, error) {
	charged := make([]chargedLeg, 0, len(legs))
	for _, sub := range legs {
		leg := chargedLeg{sub: sub}
		if sub.Method.RequiresGateway() {
			result, err := s.gateway.Charge(ctx, ports.ChargeRequest{
				Method:      sub.Method,
				Amount:      sub.Amount,
				TerminalID:  sub.TerminalID,
				OrderNumber: order.OrderNumber,
			})
			if err != nil {
				s.reverseCharges(ctx, charged)
				return nil, apperror.ErrGatewayUnavailable(fmt.Errorf("charge %s leg: %w", sub.Method, err))
			}
			if !result.Success {
				s.reverseCharges(ctx, charged)
				return nil, apperror.ErrGatewayFailure(result.FailureReason)
			}
			leg.result = result
		}
		charged = append(charged, leg)
	}
	return charged, nil
}

// reverseCharges undoes every accepted gateway charge. Best-effort: a failed
// reversal is logged for manual reconciliation, never surfaced to the caller.
func (s *SettlementServiceImpl) reverseCharges(ctx context.Context, charged []chargedLeg) {
	for _, leg := range charged {
		if leg.result == nil {
			continue
		}
		if err := s.gateway.Reverse(ctx, leg.result.Reference); err != nil {
			s.log.Error().Err(err).
				Str("gateway_reference", leg.result.Reference).
				Msg("gateway reversal failed, charge needs manual reconciliation")
		}
	}
}

// settleLegs writes the child rows of a MIXED payment and performs point
// redemption for its POINTS legs inside the open transaction.
func (s *SettlementServiceImpl) settleLegs(ctx context.Context, dbTx pgx.Tx, order *domain.Order, parent *domain.PaymentRecord, charged []chargedLeg, req ports.PaymentRequest, now time.Time) error {
	for i, leg := range charged {
		child := &domain.PaymentRecord{
			ID:              uuid.New(),
			PaymentNumber:   fmt.Sprintf("%s-%d", parent.PaymentNumber, i+1),
			OrderID:         order.ID,
			TenantID:        order.TenantID,
			Amount:          leg.sub.Amount,
			Method:          leg.sub.Method,
			Status:          domain.PaymentStatusPaid,
			ParentPaymentID: &parent.ID,
			ProcessedBy:     req.ProcessedBy,
			ProcessedAt:     &now,
			CreatedAt:       now,
		}
		if leg.result != nil {
			child.GatewayReference = strPtr(leg.result.Reference)
			if leg.result.CardMask != "" {
				child.CardMask = strPtr(leg.result.CardMask)
			}
		}
		if err := s.paymentRepo.Create(ctx, dbTx, child); err != nil {
			return apperror.InternalError(fmt.Errorf("create payment leg: %w", err))
		}
		if leg.sub.Method == domain.PaymentMethodPoints {
			if err := s.redeemForLeg(ctx, dbTx, *req.CustomerID, leg.sub.Amount, order.OrderNumber, req.ProcessedBy); err != nil {
				return err
			}
		}
	}
	return nil
}

// redeemForLeg converts a POINTS leg amount into points and redeems them in
// the same transaction, so insufficient balance rolls the settlement back.
func (s *SettlementServiceImpl) redeemForLeg(ctx context.Context, dbTx pgx.Tx, customerID uuid.UUID, amount int64, orderNumber, processedBy string) error {
	points := (amount + s.pointValue - 1) / s.pointValue
	_, err := s.loyaltySvc.RedeemPointsTx(ctx, dbTx, ports.RedeemPointsRequest{
		CustomerID:     customerID,
		Points:         points,
		Type:           domain.LoyaltyRedeemedDiscount,
		Description:    fmt.Sprintf("Payment for order %s", orderNumber),
		OrderReference: &orderNumber,
		CreatedBy:      processedBy,
	})
	return err
}

// recordFailedAttempt persists a FAILED ledger row in its own short
// transaction, outside the settlement path. Best-effort.
func (s *SettlementServiceImpl) recordFailedAttempt(ctx context.Context, order *domain.Order, req ports.PaymentRequest, cause error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("could not record failed payment attempt")
		return
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	dayStart, dayEnd := dayBounds(now)
	seq, err := s.paymentRepo.NextSequence(ctx, dbTx, order.TenantID, dayStart, dayEnd)
	if err != nil {
		s.log.Warn().Err(err).Msg("could not record failed payment attempt")
		return
	}
	reason := cause.Error()
	var appErr *apperror.AppError
	if errors.As(cause, &appErr) {
		reason = appErr.Message
	}
	rec := &domain.PaymentRecord{
		ID:            uuid.New(),
		PaymentNumber: domain.BuildPaymentNumber(now, seq),
		OrderID:       order.ID,
		TenantID:      order.TenantID,
		Amount:        req.Amount,
		Method:        req.Method,
		Status:        domain.PaymentStatusFailed,
		FailureReason: &reason,
		ProcessedBy:   req.ProcessedBy,
		CreatedAt:     now,
	}
	if err := s.paymentRepo.Create(ctx, dbTx, rec); err != nil {
		s.log.Warn().Err(err).Msg("could not record failed payment attempt")
		return
	}
	if err := dbTx.Commit(ctx); err != nil {
		s.log.Warn().Err(err).Msg("could not record failed payment attempt")
	}
}

// orderState names the condition blocking payment, for the error message.
func orderState(o *domain.Order) string {
	if o.Status == domain.OrderStatusCancelled {
		return string(o.Status)
	}
	return string(o.PaymentStatus)
}

// dayBounds returns the UTC day window containing t.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

func strPtr(s string) *string { return &s }
