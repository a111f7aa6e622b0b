package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"pos-settlement-engine/internal/core/domain"
	"pos-settlement-engine/internal/core/ports"
	"pos-settlement-engine/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type loyaltyTestDeps struct {
	svc         *LoyaltyServiceImpl
	loyaltyRepo *mocks.MockLoyaltyRepository
	transactor  *mocks.MockDBTransactor
	tierQueue   *mocks.MockTierQueue
	ctrl        *gomock.Controller
}

func setupLoyaltyService(t *testing.T) *loyaltyTestDeps {
	ctrl := gomock.NewController(t)
	d := &loyaltyTestDeps{
		loyaltyRepo: mocks.NewMockLoyaltyRepository(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		tierQueue:   mocks.NewMockTierQueue(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewLoyaltyService(d.loyaltyRepo, d.transactor, d.tierQueue, zerolog.Nop())
	return d
}

func bronzeLoyalty(points int64) *domain.CustomerLoyalty {
	return &domain.CustomerLoyalty{
		CustomerID:    uuid.New(),
		TenantID:      uuid.New(),
		CurrentPoints: points,
		PointsEarned:  points,
		TierLevel:     domain.TierBronze,
	}
}

// ==================== AddPoints Tests ====================

func TestLoyaltyService_AddPoints_Success(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	loyalty := bronzeLoyalty(100)
	tx := &mockTx{}

	req := ports.AddPointsRequest{
		CustomerID:  loyalty.CustomerID,
		Points:      50,
		Type:        domain.LoyaltyEarnedBonus,
		Description: "campaign bonus",
		CreatedBy:   "manager-1",
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.loyaltyRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx, loyalty.CustomerID).Return(loyalty, nil)
	d.loyaltyRepo.EXPECT().UpdateBalances(ctx, tx, loyalty).Return(nil)
	d.loyaltyRepo.EXPECT().CreateTransaction(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.LoyaltyTransaction) error {
			assert.Equal(t, int64(50), txn.PointsChange)
			assert.Equal(t, int64(150), txn.BalanceAfter)
			assert.Equal(t, domain.LoyaltyEarnedBonus, txn.Type)
			return nil
		})
	// Recompute is handed off after commit, same as a visit.
	d.tierQueue.EXPECT().Enqueue(ctx, loyalty.CustomerID).Return(nil)

	result, err := d.svc.AddPoints(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(150), result.Loyalty.CurrentPoints)
	assert.Equal(t, int64(150), result.Loyalty.PointsEarned)
}

func TestLoyaltyService_AddPoints_RejectsNonEarningType(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	req := ports.AddPointsRequest{
		CustomerID: uuid.New(),
		Points:     50,
		Type:       domain.LoyaltyRedeemedDiscount,
	}
	result, err := d.svc.AddPoints(context.Background(), req)
	assert.Nil(t, result)
	assertAppError(t, err, "VAL_001")
}

func TestLoyaltyService_AddPoints_RejectsNonPositive(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	req := ports.AddPointsRequest{CustomerID: uuid.New(), Points: 0, Type: domain.LoyaltyEarnedBonus}
	result, err := d.svc.AddPoints(context.Background(), req)
	assert.Nil(t, result)
	assertAppError(t, err, "VAL_002")
}

func TestLoyaltyService_AddPoints_CustomerNotFound(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.loyaltyRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx, customerID).Return(nil, nil)

	result, err := d.svc.AddPoints(ctx, ports.AddPointsRequest{
		CustomerID: customerID, Points: 10, Type: domain.LoyaltyEarnedBonus,
	})
	assert.Nil(t, result)
	assertAppError(t, err, "NF_001")
}

// ==================== RedeemPoints Tests ====================

func TestLoyaltyService_RedeemPoints_Success(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	loyalty := bronzeLoyalty(500)
	tx := &mockTx{}

	req := ports.RedeemPointsRequest{
		CustomerID:  loyalty.CustomerID,
		Points:      200,
		Type:        domain.LoyaltyRedeemedDiscount,
		Description: "discount at checkout",
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.loyaltyRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx, loyalty.CustomerID).Return(loyalty, nil)
	d.loyaltyRepo.EXPECT().UpdateBalances(ctx, tx, loyalty).Return(nil)
	d.loyaltyRepo.EXPECT().CreateTransaction(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.LoyaltyTransaction) error {
			assert.Equal(t, int64(-200), txn.PointsChange)
			assert.Equal(t, int64(300), txn.BalanceAfter)
			return nil
		})

	result, err := d.svc.RedeemPoints(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(300), result.Loyalty.CurrentPoints)
	assert.Equal(t, int64(200), result.Loyalty.PointsRedeemed)
}

func TestLoyaltyService_RedeemPoints_Insufficient(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	loyalty := bronzeLoyalty(100)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.loyaltyRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx, loyalty.CustomerID).Return(loyalty, nil)

	result, err := d.svc.RedeemPoints(ctx, ports.RedeemPointsRequest{
		CustomerID: loyalty.CustomerID, Points: 200, Type: domain.LoyaltyRedeemedItem,
	})
	assert.Nil(t, result)
	assertAppError(t, err, "STATE_004")
	// Balance untouched after the failed attempt.
	assert.Equal(t, int64(100), loyalty.CurrentPoints)
}

func TestLoyaltyService_RedeemPointsTx_RejectsEarningType(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	result, err := d.svc.RedeemPointsTx(context.Background(), &mockTx{}, ports.RedeemPointsRequest{
		CustomerID: uuid.New(), Points: 10, Type: domain.LoyaltyEarnedBonus,
	})
	assert.Nil(t, result)
	assertAppError(t, err, "VAL_001")
}

// ==================== AdjustPoints Tests ====================

func TestLoyaltyService_AdjustPoints_Subtract(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	loyalty := bronzeLoyalty(500)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.loyaltyRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx, loyalty.CustomerID).Return(loyalty, nil)
	d.loyaltyRepo.EXPECT().UpdateBalances(ctx, tx, loyalty).Return(nil)
	d.loyaltyRepo.EXPECT().CreateTransaction(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.LoyaltyTransaction) error {
			assert.Equal(t, domain.LoyaltyAdjustmentSub, txn.Type)
			assert.Equal(t, int64(-150), txn.PointsChange)
			return nil
		})

	result, err := d.svc.AdjustPoints(ctx, loyalty.CustomerID, -150, "entry error fix", "manager-1")
	require.NoError(t, err)
	assert.Equal(t, int64(350), result.Loyalty.CurrentPoints)
}

func TestLoyaltyService_AdjustPoints_CannotGoNegative(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	loyalty := bronzeLoyalty(100)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.loyaltyRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx, loyalty.CustomerID).Return(loyalty, nil)

	result, err := d.svc.AdjustPoints(ctx, loyalty.CustomerID, -200, "oops", "manager-1")
	assert.Nil(t, result)
	assertAppError(t, err, "STATE_004")
}

func TestLoyaltyService_AdjustPoints_ZeroDelta(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	result, err := d.svc.AdjustPoints(context.Background(), uuid.New(), 0, "", "manager-1")
	assert.Nil(t, result)
	assertAppError(t, err, "VAL_002")
}

// ==================== AwardBirthdayBonus Tests ====================

func TestLoyaltyService_AwardBirthdayBonus_TierScaled(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	loyalty := bronzeLoyalty(0)
	loyalty.TierLevel = domain.TierGold
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.loyaltyRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx, loyalty.CustomerID).Return(loyalty, nil)
	d.loyaltyRepo.EXPECT().HasBirthdayBonus(ctx, tx, loyalty.CustomerID, time.Now().UTC().Year()).Return(false, nil)
	d.loyaltyRepo.EXPECT().UpdateBalances(ctx, tx, loyalty).Return(nil)
	d.loyaltyRepo.EXPECT().CreateTransaction(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.LoyaltyTransaction) error {
			assert.Equal(t, domain.LoyaltyEarnedBirthday, txn.Type)
			assert.Equal(t, int64(1000), txn.PointsChange)
			return nil
		})

	result, err := d.svc.AwardBirthdayBonus(ctx, loyalty.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), result.Loyalty.CurrentPoints)
}

func TestLoyaltyService_AwardBirthdayBonus_OncePerYear(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	loyalty := bronzeLoyalty(0)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.loyaltyRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx, loyalty.CustomerID).Return(loyalty, nil)
	d.loyaltyRepo.EXPECT().HasBirthdayBonus(ctx, tx, loyalty.CustomerID, gomock.Any()).Return(true, nil)

	result, err := d.svc.AwardBirthdayBonus(ctx, loyalty.CustomerID)
	assert.Nil(t, result)
	assertAppError(t, err, "STATE_007")
}

// ==================== RecordVisit Tests ====================

func TestLoyaltyService_RecordVisit_AccruesScaledPoints(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	loyalty := bronzeLoyalty(0)
	loyalty.TierLevel = domain.TierSilver // 1.25x multiplier
	tx := &mockTx{}
	visitID := uuid.New()

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.loyaltyRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx, loyalty.CustomerID).Return(loyalty, nil)
	d.loyaltyRepo.EXPECT().UpdateBalances(ctx, tx, loyalty).Return(nil)
	d.loyaltyRepo.EXPECT().CreateTransaction(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.LoyaltyTransaction) error {
			// 100000 spend = 100 base points, 125 at SILVER.
			assert.Equal(t, int64(125), txn.PointsChange)
			assert.Equal(t, domain.LoyaltyEarnedPurchase, txn.Type)
			require.NotNil(t, txn.VisitID)
			assert.Equal(t, visitID, *txn.VisitID)
			return nil
		})
	d.tierQueue.EXPECT().Enqueue(ctx, loyalty.CustomerID).Return(nil)

	result, err := d.svc.RecordVisit(ctx, ports.VisitRequest{
		CustomerID: loyalty.CustomerID,
		VisitID:    visitID,
		Amount:     100000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(125), result.Loyalty.CurrentPoints)
	assert.Equal(t, int64(1), result.Loyalty.TotalVisits)
	assert.Equal(t, int64(100000), result.Loyalty.LifetimeSpent)
	assert.Equal(t, int64(100000), result.Loyalty.CurrentYearSpent)
	require.NotNil(t, result.Loyalty.LastVisitAt)
}

func TestLoyaltyService_RecordVisit_MonthRollover(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	loyalty := bronzeLoyalty(0)
	lastMonth := time.Now().UTC().AddDate(0, -2, 0)
	loyalty.LastVisitAt = &lastMonth
	loyalty.CurrentMonthSpent = 400000
	loyalty.VisitsThisMonth = 5
	loyalty.CurrentYearSpent = 400000
	loyalty.LifetimeSpent = 400000
	loyalty.TotalVisits = 5
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.loyaltyRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx, loyalty.CustomerID).Return(loyalty, nil)
	d.loyaltyRepo.EXPECT().UpdateBalances(ctx, tx, loyalty).Return(nil)
	d.loyaltyRepo.EXPECT().CreateTransaction(ctx, tx, gomock.Any()).Return(nil)
	d.tierQueue.EXPECT().Enqueue(ctx, loyalty.CustomerID).Return(nil)

	result, err := d.svc.RecordVisit(ctx, ports.VisitRequest{
		CustomerID: loyalty.CustomerID,
		VisitID:    uuid.New(),
		Amount:     50000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50000), result.Loyalty.CurrentMonthSpent)
	assert.Equal(t, int64(1), result.Loyalty.VisitsThisMonth)
	assert.Equal(t, int64(6), result.Loyalty.TotalVisits)
	assert.Equal(t, int64(450000), result.Loyalty.LifetimeSpent)
}

func TestLoyaltyService_RecordVisit_SmallSpendNoLedgerRow(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	loyalty := bronzeLoyalty(0)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.loyaltyRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx, loyalty.CustomerID).Return(loyalty, nil)
	d.loyaltyRepo.EXPECT().UpdateBalances(ctx, tx, loyalty).Return(nil)
	// No CreateTransaction: 500 spend earns zero points.
	d.tierQueue.EXPECT().Enqueue(ctx, loyalty.CustomerID).Return(nil)

	result, err := d.svc.RecordVisit(ctx, ports.VisitRequest{
		CustomerID: loyalty.CustomerID,
		VisitID:    uuid.New(),
		Amount:     500,
	})
	require.NoError(t, err)
	assert.Nil(t, result.Transaction)
	assert.Equal(t, int64(1), result.Loyalty.TotalVisits)
}

// ==================== ExpireOldPoints Tests ====================

func TestLoyaltyService_ExpireOldPoints_CappedAtBalance(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tenantID := uuid.New()
	loyalty := bronzeLoyalty(60) // lot is 100 but only 60 remain
	lot := domain.LoyaltyTransaction{
		ID:           uuid.New(),
		CustomerID:   loyalty.CustomerID,
		TenantID:     tenantID,
		Type:         domain.LoyaltyEarnedPurchase,
		PointsChange: 100,
		CreatedAt:    time.Now().UTC().AddDate(-2, 0, 0),
	}
	tx := &mockTx{}

	d.loyaltyRepo.EXPECT().ListExpirableEarnings(ctx, tenantID, gomock.Any()).Return([]domain.LoyaltyTransaction{lot}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.loyaltyRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx, loyalty.CustomerID).Return(loyalty, nil)
	d.loyaltyRepo.EXPECT().UpdateBalances(ctx, tx, loyalty).Return(nil)
	d.loyaltyRepo.EXPECT().CreateTransaction(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.LoyaltyTransaction) error {
			assert.Equal(t, domain.LoyaltyExpired, txn.Type)
			assert.Equal(t, int64(-60), txn.PointsChange)
			assert.Equal(t, int64(0), txn.BalanceAfter)
			require.NotNil(t, txn.RelatedTxID)
			assert.Equal(t, lot.ID, *txn.RelatedTxID)
			return nil
		})

	report, err := d.svc.ExpireOldPoints(ctx, tenantID, 365)
	require.NoError(t, err)
	assert.Equal(t, 1, report.LotsProcessed)
	assert.Equal(t, int64(60), report.PointsExpired)
	assert.Equal(t, 1, report.CustomersAffected)
	assert.Equal(t, 0, report.Skipped)
}

func TestLoyaltyService_ExpireOldPoints_SkipsFailingCustomer(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tenantID := uuid.New()
	okLoyalty := bronzeLoyalty(100)
	badCustomer := uuid.New()
	lots := []domain.LoyaltyTransaction{
		{ID: uuid.New(), CustomerID: badCustomer, PointsChange: 50},
		{ID: uuid.New(), CustomerID: okLoyalty.CustomerID, TenantID: tenantID, PointsChange: 30},
	}
	tx1, tx2 := &mockTx{}, &mockTx{}

	d.loyaltyRepo.EXPECT().ListExpirableEarnings(ctx, tenantID, gomock.Any()).Return(lots, nil)
	// First lot fails at the lock; the batch moves on.
	d.transactor.EXPECT().Begin(ctx).Return(tx1, nil)
	d.loyaltyRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx1, badCustomer).Return(nil, errors.New("connection reset"))
	// Second lot succeeds.
	d.transactor.EXPECT().Begin(ctx).Return(tx2, nil)
	d.loyaltyRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx2, okLoyalty.CustomerID).Return(okLoyalty, nil)
	d.loyaltyRepo.EXPECT().UpdateBalances(ctx, tx2, okLoyalty).Return(nil)
	d.loyaltyRepo.EXPECT().CreateTransaction(ctx, tx2, gomock.Any()).Return(nil)

	report, err := d.svc.ExpireOldPoints(ctx, tenantID, 365)
	require.NoError(t, err)
	assert.Equal(t, 1, report.LotsProcessed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, int64(30), report.PointsExpired)
}

func TestLoyaltyService_ExpireOldPoints_InvalidWindow(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	report, err := d.svc.ExpireOldPoints(context.Background(), uuid.New(), 0)
	assert.Nil(t, report)
	assertAppError(t, err, "VAL_001")
}

// ==================== Tier Tests ====================

func TestLoyaltyService_RecomputeTier_Promotes(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	loyalty := bronzeLoyalty(0)
	loyalty.LifetimeSpent = 6_000_000 // past the SILVER lifetime threshold

	d.loyaltyRepo.EXPECT().GetByCustomerID(ctx, loyalty.CustomerID).Return(loyalty, nil)
	d.loyaltyRepo.EXPECT().UpdateTier(ctx, loyalty.CustomerID, domain.TierSilver).Return(nil)

	require.NoError(t, d.svc.RecomputeTier(ctx, loyalty.CustomerID))
}

func TestLoyaltyService_RecomputeTier_NoChangeNoWrite(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	loyalty := bronzeLoyalty(0)

	d.loyaltyRepo.EXPECT().GetByCustomerID(ctx, loyalty.CustomerID).Return(loyalty, nil)

	require.NoError(t, d.svc.RecomputeTier(ctx, loyalty.CustomerID))
}

func TestLoyaltyService_RecomputeTier_MissingCustomerIsNoop(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerID := uuid.New()
	d.loyaltyRepo.EXPECT().GetByCustomerID(ctx, customerID).Return(nil, nil)

	require.NoError(t, d.svc.RecomputeTier(ctx, customerID))
}

// ==================== GetCustomerDetails Tests ====================

func TestLoyaltyService_GetCustomerDetails(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	loyalty := bronzeLoyalty(250)
	loyalty.TierLevel = domain.TierSilver
	loyalty.LifetimeSpent = 10_000_000 // halfway to GOLD lifetime threshold

	d.loyaltyRepo.EXPECT().GetByCustomerID(ctx, loyalty.CustomerID).Return(loyalty, nil)
	d.loyaltyRepo.EXPECT().ListRecent(ctx, loyalty.CustomerID, recentTransactionLimit).Return([]domain.LoyaltyTransaction{{ID: uuid.New()}}, nil)

	details, err := d.svc.GetCustomerDetails(ctx, loyalty.CustomerID)
	require.NoError(t, err)
	require.NotNil(t, details.NextTier)
	assert.Equal(t, domain.TierGold, *details.NextTier)
	assert.InDelta(t, 50.0, details.TierProgress, 0.01)
	assert.Equal(t, 1.25, details.Benefits.PointsMultiplier)
	assert.Len(t, details.RecentTransactions, 1)
}

func TestLoyaltyService_GetCustomerDetails_NotFound(t *testing.T) {
	d := setupLoyaltyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerID := uuid.New()
	d.loyaltyRepo.EXPECT().GetByCustomerID(ctx, customerID).Return(nil, nil)

	details, err := d.svc.GetCustomerDetails(ctx, customerID)
	assert.Nil(t, details)
	assertAppError(t, err, "NF_001")
}
