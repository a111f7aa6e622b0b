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

// LoyaltyHandler handles loyalty point endpoints.
type LoyaltyHandler struct {
	loyaltySvc ports.LoyaltyService
}

// NewLoyaltyHandler creates a new LoyaltyHandler.
func NewLoyaltyHandler(loyaltySvc ports.LoyaltyService) *LoyaltyHandler {
	return &LoyaltyHandler{loyaltySvc: loyaltySvc}
}

// AddPoints handles POST /api/v1/loyalty/points.
func (h *LoyaltyHandler) AddPoints(c *gin.Context) {
	var req dto.AddPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid customer_id"))
		return
	}

	svcReq := ports.AddPointsRequest{
		CustomerID:     customerID,
		Points:         req.Points,
		Type:           domain.LoyaltyTransactionType(req.Type),
		Description:    req.Description,
		OrderReference: req.OrderReference,
		CreatedBy:      c.GetString(middleware.CtxUsername),
	}
	if req.CampaignID != nil {
		campaignID, err := uuid.Parse(*req.CampaignID)
		if err != nil {
			response.Error(c, apperror.Validation("invalid campaign_id"))
			return
		}
		svcReq.CampaignID = &campaignID
	}

	result, err := h.loyaltySvc.AddPoints(c.Request.Context(), svcReq)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toLedgerResultResponse(result))
}

// RedeemPoints handles POST /api/v1/loyalty/redeem.
func (h *LoyaltyHandler) RedeemPoints(c *gin.Context) {
	var req dto.RedeemPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid customer_id"))
		return
	}

	result, err := h.loyaltySvc.RedeemPoints(c.Request.Context(), ports.RedeemPointsRequest{
		CustomerID:     customerID,
		Points:         req.Points,
		Type:           domain.LoyaltyTransactionType(req.Type),
		Description:    req.Description,
		OrderReference: req.OrderReference,
		CreatedBy:      c.GetString(middleware.CtxUsername),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toLedgerResultResponse(result))
}

// AdjustPoints handles POST /api/v1/loyalty/adjust. Manager only.
func (h *LoyaltyHandler) AdjustPoints(c *gin.Context) {
	var req dto.AdjustPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid customer_id"))
		return
	}

	result, err := h.loyaltySvc.AdjustPoints(c.Request.Context(), customerID, req.Delta,
		req.Description, c.GetString(middleware.CtxUsername))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toLedgerResultResponse(result))
}

// AwardBirthdayBonus handles POST /api/v1/loyalty/:customer_id/birthday-bonus.
func (h *LoyaltyHandler) AwardBirthdayBonus(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("customer_id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid customer id"))
		return
	}

	result, err := h.loyaltySvc.AwardBirthdayBonus(c.Request.Context(), customerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toLedgerResultResponse(result))
}

// RecordVisit handles POST /api/v1/loyalty/visits.
func (h *LoyaltyHandler) RecordVisit(c *gin.Context) {
	var req dto.VisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid customer_id"))
		return
	}
	visitID, err := uuid.Parse(req.VisitID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid visit_id"))
		return
	}

	result, err := h.loyaltySvc.RecordVisit(c.Request.Context(), ports.VisitRequest{
		CustomerID:     customerID,
		VisitID:        visitID,
		Amount:         req.Amount,
		OrderReference: req.OrderReference,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toLedgerResultResponse(result))
}

// ExpirePoints handles POST /api/v1/loyalty/expire. Manager only.
func (h *LoyaltyHandler) ExpirePoints(c *gin.Context) {
	var req dto.ExpirePointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid tenant_id"))
		return
	}

	report, err := h.loyaltySvc.ExpireOldPoints(c.Request.Context(), tenantID, req.DaysToExpire)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// GetCustomerDetails handles GET /api/v1/loyalty/:customer_id.
func (h *LoyaltyHandler) GetCustomerDetails(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("customer_id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid customer id"))
		return
	}

	details, err := h.loyaltySvc.GetCustomerDetails(c.Request.Context(), customerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, details)
}

// toLedgerResultResponse converts ports.LedgerResult to DTO.
func toLedgerResultResponse(r *ports.LedgerResult) dto.LedgerResultResponse {
	txn := r.Transaction
	return dto.LedgerResultResponse{
		CurrentPoints: r.Loyalty.CurrentPoints,
		TierLevel:     string(r.Loyalty.TierLevel),
		Transaction: dto.LoyaltyTransactionResponse{
			ID:           txn.ID.String(),
			CustomerID:   txn.CustomerID.String(),
			Type:         string(txn.Type),
			PointsChange: txn.PointsChange,
			BalanceAfter: txn.BalanceAfter,
			Description:  txn.Description,
			CreatedAt:    txn.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
	}
}
