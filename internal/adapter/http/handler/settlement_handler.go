package handler

import (
	"pos-settlement-engine/internal/adapter/http/dto"
	"pos-settlement-engine/internal/adapter/http/middleware"
	"pos-settlement-engine/internal/core/domain"
	"pos-settlement-engine/internal/core/ports"
	"pos-settlement-engine/pkg/apperror"
	"pos-settlement-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SettlementHandler handles payment and refund endpoints.
type SettlementHandler struct {
	settlementSvc ports.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(settlementSvc ports.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlementSvc: settlementSvc}
}

// ProcessPayment handles POST /api/v1/payments.
func (h *SettlementHandler) ProcessPayment(c *gin.Context) {
	var req dto.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid order_id"))
		return
	}

	svcReq := ports.PaymentRequest{
		OrderID:      orderID,
		Amount:       req.Amount,
		Method:       domain.PaymentMethod(req.Method),
		CashReceived: req.CashReceived,
		TerminalID:   req.TerminalID,
		ProcessedBy:  c.GetString(middleware.CtxUsername),
	}
	if req.CustomerID != nil {
		customerID, err := uuid.Parse(*req.CustomerID)
		if err != nil {
			response.Error(c, apperror.Validation("invalid customer_id"))
			return
		}
		svcReq.CustomerID = &customerID
	}
	for _, sp := range req.SubPayments {
		svcReq.SubPayments = append(svcReq.SubPayments, ports.SubPayment{
			Method:     domain.PaymentMethod(sp.Method),
			Amount:     sp.Amount,
			TerminalID: sp.TerminalID,
		})
	}

	result, err := h.settlementSvc.ProcessPayment(c.Request.Context(), svcReq)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.PaymentResultResponse{
		Payment:         toPaymentResponse(result.Payment),
		OrderStatus:     string(result.Order.PaymentStatus),
		PaidAmount:      result.Order.PaidAmount,
		RemainingAmount: result.RemainingAmount,
		ChangeAmount:    result.ChangeAmount,
	})
}

// ProcessRefund handles POST /api/v1/payments/:id/refund.
func (h *SettlementHandler) ProcessRefund(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid payment id"))
		return
	}

	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	svcReq := ports.RefundRequest{
		PaymentID:   paymentID,
		Amount:      req.Amount,
		Reason:      req.Reason,
		ProcessedBy: c.GetString(middleware.CtxUsername),
	}
	if req.Method != nil {
		method := domain.PaymentMethod(*req.Method)
		svcReq.Method = &method
	}

	refund, err := h.settlementSvc.ProcessRefund(c.Request.Context(), svcReq)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toPaymentResponse(refund))
}

// toPaymentResponse converts domain.PaymentRecord to DTO.
func toPaymentResponse(p *domain.PaymentRecord) dto.PaymentResponse {
	resp := dto.PaymentResponse{
		ID:               p.ID.String(),
		PaymentNumber:    p.PaymentNumber,
		OrderID:          p.OrderID.String(),
		Amount:           p.Amount,
		Method:           string(p.Method),
		Status:           string(p.Status),
		GatewayReference: p.GatewayReference,
		CardMask:         p.CardMask,
		CashReceived:     p.CashReceived,
		ProcessedBy:      p.ProcessedBy,
		CreatedAt:        p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if p.OriginalPaymentID != nil {
		s := p.OriginalPaymentID.String()
		resp.OriginalPaymentID = &s
	}
	return resp
}
