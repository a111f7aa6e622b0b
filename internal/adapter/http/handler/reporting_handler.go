package handler

import (
	"math"
	"strconv"
	"time"

	"pos-settlement-engine/internal/adapter/http/dto"
	"pos-settlement-engine/internal/core/domain"
	"pos-settlement-engine/internal/core/ports"
	"pos-settlement-engine/pkg/apperror"
	"pos-settlement-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReportingHandler handles reporting and payment listing endpoints.
type ReportingHandler struct {
	reportingSvc ports.ReportingService
}

// NewReportingHandler creates a new ReportingHandler.
func NewReportingHandler(reportingSvc ports.ReportingService) *ReportingHandler {
	return &ReportingHandler{reportingSvc: reportingSvc}
}

// GetDailySummary handles GET /api/v1/reports/daily-summary.
func (h *ReportingHandler) GetDailySummary(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Query("tenant_id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid tenant_id"))
		return
	}

	date := time.Now().UTC()
	if d := c.Query("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			response.Error(c, apperror.Validation("invalid date, expected YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	summary, err := h.reportingSvc.GetDailySalesSummary(c.Request.Context(), tenantID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// ListPayments handles GET /api/v1/payments.
func (h *ReportingHandler) ListPayments(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Query("tenant_id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid tenant_id"))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	params := ports.PaymentListParams{
		TenantID: tenantID,
		Page:     page,
		PageSize: pageSize,
	}

	if o := c.Query("order_id"); o != "" {
		orderID, err := uuid.Parse(o)
		if err != nil {
			response.Error(c, apperror.Validation("invalid order_id"))
			return
		}
		params.OrderID = &orderID
	}
	if m := c.Query("method"); m != "" {
		method := domain.PaymentMethod(m)
		params.Method = &method
	}
	if s := c.Query("status"); s != "" {
		status := domain.PaymentStatus(s)
		params.Status = &status
	}
	if f := c.Query("from"); f != "" {
		if v, err := time.Parse(time.RFC3339, f); err == nil {
			params.From = &v
		}
	}
	if t := c.Query("to"); t != "" {
		if v, err := time.Parse(time.RFC3339, t); err == nil {
			params.To = &v
		}
	}

	payments, total, err := h.reportingSvc.ListPayments(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.PaymentResponse, 0, len(payments))
	for i := range payments {
		items = append(items, toPaymentResponse(&payments[i]))
	}

	if params.PageSize < 1 {
		params.PageSize = 20
	}
	totalPages := int(math.Ceil(float64(total) / float64(params.PageSize)))

	response.OK(c, dto.PaymentListResponse{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	})
}
