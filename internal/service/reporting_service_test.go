package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"pos-settlement-engine/internal/core/domain"
	"pos-settlement-engine/internal/core/ports"
	"pos-settlement-engine/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type reportingTestDeps struct {
	svc         ports.ReportingService
	paymentRepo *mocks.MockPaymentRepository
	orderRepo   *mocks.MockOrderRepository
	costLookup  *mocks.MockCostLookup
	cache       *mocks.MockSummaryCache
	ctrl        *gomock.Controller
}

func setupReportingService(t *testing.T) *reportingTestDeps {
	ctrl := gomock.NewController(t)
	d := &reportingTestDeps{
		paymentRepo: mocks.NewMockPaymentRepository(ctrl),
		orderRepo:   mocks.NewMockOrderRepository(ctrl),
		costLookup:  mocks.NewMockCostLookup(ctrl),
		cache:       mocks.NewMockSummaryCache(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewReportingService(d.paymentRepo, d.orderRepo, d.costLookup, d.cache, zerolog.Nop())
	return d
}

func TestReportingService_GetDailySalesSummary_CacheMiss(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tenantID := uuid.New()
	date := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	itemID := uuid.New()

	d.cache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.paymentRepo.EXPECT().GetDailySummary(ctx, tenantID, gomock.Any(), gomock.Any()).Return(&ports.DailySalesSummary{
		Date:              "2026-08-29",
		TotalSales:        300000,
		TotalTransactions: 3,
		PaymentBreakdown:  map[domain.PaymentMethod]int64{domain.PaymentMethodCash: 300000},
	}, nil)
	d.orderRepo.EXPECT().ListPaidByDate(ctx, tenantID, gomock.Any(), gomock.Any()).Return([]domain.Order{
		{Items: []domain.OrderItem{{ItemID: itemID, Quantity: 3, UnitPrice: 100000}}},
	}, nil)
	d.costLookup.EXPECT().UnitCost(ctx, itemID).Return(int64(60000), nil)
	d.cache.EXPECT().Set(ctx, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	summary, err := d.svc.GetDailySalesSummary(ctx, tenantID, date)
	require.NoError(t, err)
	assert.Equal(t, int64(300000), summary.TotalSales)
	// (100000 - 60000) * 3
	assert.Equal(t, int64(120000), summary.EstimatedMargin)
}

func TestReportingService_GetDailySalesSummary_CacheHit(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tenantID := uuid.New()
	cached, _ := json.Marshal(&ports.DailySalesSummary{Date: "2026-08-29", TotalSales: 99})

	d.cache.EXPECT().Get(ctx, gomock.Any()).Return(cached, nil)

	summary, err := d.svc.GetDailySalesSummary(ctx, tenantID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(99), summary.TotalSales)
}

func TestReportingService_GetDailySalesSummary_UnknownCostSkipped(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tenantID := uuid.New()
	knownItem, unknownItem := uuid.New(), uuid.New()

	d.cache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.paymentRepo.EXPECT().GetDailySummary(ctx, tenantID, gomock.Any(), gomock.Any()).Return(&ports.DailySalesSummary{}, nil)
	d.orderRepo.EXPECT().ListPaidByDate(ctx, tenantID, gomock.Any(), gomock.Any()).Return([]domain.Order{
		{Items: []domain.OrderItem{
			{ItemID: knownItem, Quantity: 1, UnitPrice: 50000},
			{ItemID: unknownItem, Quantity: 2, UnitPrice: 80000},
		}},
	}, nil)
	d.costLookup.EXPECT().UnitCost(ctx, knownItem).Return(int64(20000), nil)
	d.costLookup.EXPECT().UnitCost(ctx, unknownItem).Return(int64(0), errors.New("not found"))
	d.cache.EXPECT().Set(ctx, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	summary, err := d.svc.GetDailySalesSummary(ctx, tenantID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(30000), summary.EstimatedMargin)
}

func TestReportingService_ListPayments_PaginationDefaults(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tenantID := uuid.New()

	d.paymentRepo.EXPECT().List(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, params ports.PaymentListParams) ([]domain.PaymentRecord, int64, error) {
			assert.Equal(t, 1, params.Page)
			assert.Equal(t, defaultPageSize, params.PageSize)
			return []domain.PaymentRecord{{ID: uuid.New()}}, 1, nil
		})

	payments, total, err := d.svc.ListPayments(ctx, ports.PaymentListParams{TenantID: tenantID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, payments, 1)
}

func TestReportingService_ListPayments_PageSizeCapped(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.paymentRepo.EXPECT().List(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, params ports.PaymentListParams) ([]domain.PaymentRecord, int64, error) {
			assert.Equal(t, maxPageSize, params.PageSize)
			return nil, 0, nil
		})

	_, _, err := d.svc.ListPayments(ctx, ports.PaymentListParams{Page: 2, PageSize: 10000})
	require.NoError(t, err)
}
