package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pos-settlement-engine/internal/core/domain"
	"pos-settlement-engine/internal/core/ports"
	"pos-settlement-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	summaryCacheTTLToday = 5 * time.Minute
	summaryCacheTTLPast  = 12 * time.Hour
	defaultPageSize      = 20
	maxPageSize          = 100
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	paymentRepo ports.PaymentRepository
	orderRepo   ports.OrderRepository
	costLookup  ports.CostLookup
	cache       ports.SummaryCache
	log         zerolog.Logger
}

// NewReportingService creates a new reporting service.
func NewReportingService(
	paymentRepo ports.PaymentRepository,
	orderRepo ports.OrderRepository,
	costLookup ports.CostLookup,
	cache ports.SummaryCache,
	log zerolog.Logger,
) ports.ReportingService {
	return &reportingService{
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		costLookup:  costLookup,
		cache:       cache,
		log:         log,
	}
}

// GetDailySalesSummary aggregates one day of settlement activity, served from
// the cache when possible. The cache holds derived reporting output only,
// never balances.
func (s *reportingService) GetDailySalesSummary(ctx context.Context, tenantID uuid.UUID, date time.Time) (*ports.DailySalesSummary, error) {
	key := fmt.Sprintf("summary:%s:%s", tenantID, date.UTC().Format("2006-01-02"))

	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("summary cache read failed, falling through to DB")
	}
	if cached != nil {
		summary := &ports.DailySalesSummary{}
		if err := json.Unmarshal(cached, summary); err == nil {
			return summary, nil
		}
		s.log.Warn().Str("key", key).Msg("discarding malformed cached summary")
	}

	dayStart, dayEnd := dayBounds(date.UTC())
	summary, err := s.paymentRepo.GetDailySummary(ctx, tenantID, dayStart, dayEnd)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("daily summary: %w", err))
	}
	summary.EstimatedMargin = s.estimateMargin(ctx, tenantID, dayStart, dayEnd)

	if payload, err := json.Marshal(summary); err == nil {
		ttl := summaryCacheTTLPast
		if dayEnd.After(time.Now().UTC()) {
			ttl = summaryCacheTTLToday
		}
		if err := s.cache.Set(ctx, key, payload, ttl); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to cache summary")
		}
	}

	return summary, nil
}

// estimateMargin walks the day's fully-paid orders and subtracts item costs
// from revenue. Items without a known cost are left out of the estimate.
func (s *reportingService) estimateMargin(ctx context.Context, tenantID uuid.UUID, dayStart, dayEnd time.Time) int64 {
	orders, err := s.orderRepo.ListPaidByDate(ctx, tenantID, dayStart, dayEnd)
	if err != nil {
		s.log.Warn().Err(err).Msg("margin estimation unavailable")
		return 0
	}

	var margin int64
	for _, order := range orders {
		for _, item := range order.Items {
			cost, err := s.costLookup.UnitCost(ctx, item.ItemID)
			if err != nil {
				s.log.Debug().Err(err).Str("item_id", item.ItemID.String()).Msg("no cost for item")
				continue
			}
			margin += (item.UnitPrice - cost) * item.Quantity
		}
	}
	return margin
}

// ListPayments returns a filtered, paginated view of the payment ledger.
func (s *reportingService) ListPayments(ctx context.Context, params ports.PaymentListParams) ([]domain.PaymentRecord, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	payments, total, err := s.paymentRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list payments: %w", err))
	}
	return payments, total, nil
}
