package service

import (
	"context"
	"fmt"
	"time"

	"pos-settlement-engine/internal/core/domain"
	"pos-settlement-engine/internal/core/ports"
	"pos-settlement-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const recentTransactionLimit = 10

// LoyaltyServiceImpl implements ports.LoyaltyService.
type LoyaltyServiceImpl struct {
	loyaltyRepo ports.LoyaltyRepository
	transactor  ports.DBTransactor
	tierQueue   ports.TierQueue
	log         zerolog.Logger
}

// NewLoyaltyService creates a new LoyaltyServiceImpl.
func NewLoyaltyService(
	loyaltyRepo ports.LoyaltyRepository,
	transactor ports.DBTransactor,
	tierQueue ports.TierQueue,
	log zerolog.Logger,
) *LoyaltyServiceImpl {
	return &LoyaltyServiceImpl{
		loyaltyRepo: loyaltyRepo,
		transactor:  transactor,
		tierQueue:   tierQueue,
		log:         log,
	}
}

// AddPoints credits points to a customer through an earning-type ledger entry.
func (s *LoyaltyServiceImpl) AddPoints(ctx context.Context, req ports.AddPointsRequest) (*ports.LedgerResult, error) {
	if req.Points <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.Type.IsEarning() {
		return nil, apperror.Validation(fmt.Sprintf("%s is not an earning transaction type", req.Type))
	}

	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	loyalty, err := s.loyaltyRepo.GetByCustomerIDForUpdate(ctx, dbTx, req.CustomerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock loyalty: %w", err))
	}
	if loyalty == nil {
		return nil, apperror.ErrNotFound("customer loyalty")
	}

	now := time.Now().UTC()
	loyalty.CurrentPoints += req.Points
	loyalty.PointsEarned += req.Points
	loyalty.UpdatedAt = now

	txn := &domain.LoyaltyTransaction{
		ID:             uuid.New(),
		CustomerID:     loyalty.CustomerID,
		TenantID:       loyalty.TenantID,
		Type:           req.Type,
		PointsChange:   req.Points,
		BalanceAfter:   loyalty.CurrentPoints,
		Description:    req.Description,
		VisitID:        req.VisitID,
		OrderReference: req.OrderReference,
		CampaignID:     req.CampaignID,
		CreatedBy:      req.CreatedBy,
		CreatedAt:      now,
	}

	if err := s.loyaltyRepo.UpdateBalances(ctx, dbTx, loyalty); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}
	if err := s.loyaltyRepo.CreateTransaction(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}

	// Commit
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	// Recompute runs off the committed aggregate, same as after a visit.
	if err := s.tierQueue.Enqueue(ctx, loyalty.CustomerID); err != nil {
		s.log.Warn().Err(err).
			Str("customer_id", loyalty.CustomerID.String()).
			Msg("failed to enqueue tier recompute")
	}

	s.log.Info().
		Str("customer_id", loyalty.CustomerID.String()).
		Str("type", string(req.Type)).
		Int64("points", req.Points).
		Int64("balance", loyalty.CurrentPoints).
		Msg("points added")

	return &ports.LedgerResult{Loyalty: loyalty, Transaction: txn}, nil
}

// RedeemPoints deducts points in its own transaction.
func (s *LoyaltyServiceImpl) RedeemPoints(ctx context.Context, req ports.RedeemPointsRequest) (*ports.LedgerResult, error) {
	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	result, err := s.RedeemPointsTx(ctx, dbTx, req)
	if err != nil {
		return nil, err
	}

	// Commit
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	return result, nil
}

// RedeemPointsTx deducts points inside the caller's open transaction. The
// balance check happens under the row lock, so two concurrent redemptions of
// the same balance cannot both pass.
func (s *LoyaltyServiceImpl) RedeemPointsTx(ctx context.Context, dbTx pgx.Tx, req ports.RedeemPointsRequest) (*ports.LedgerResult, error) {
	if req.Points <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Type != domain.LoyaltyRedeemedDiscount && req.Type != domain.LoyaltyRedeemedItem {
		return nil, apperror.Validation(fmt.Sprintf("%s is not a redemption transaction type", req.Type))
	}

	loyalty, err := s.loyaltyRepo.GetByCustomerIDForUpdate(ctx, dbTx, req.CustomerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock loyalty: %w", err))
	}
	if loyalty == nil {
		return nil, apperror.ErrNotFound("customer loyalty")
	}
	if loyalty.CurrentPoints < req.Points {
		return nil, apperror.ErrInsufficientPoints()
	}

	now := time.Now().UTC()
	loyalty.CurrentPoints -= req.Points
	loyalty.PointsRedeemed += req.Points
	loyalty.UpdatedAt = now

	txn := &domain.LoyaltyTransaction{
		ID:             uuid.New(),
		CustomerID:     loyalty.CustomerID,
		TenantID:       loyalty.TenantID,
		Type:           req.Type,
		PointsChange:   -req.Points,
		BalanceAfter:   loyalty.CurrentPoints,
		Description:    req.Description,
		OrderReference: req.OrderReference,
		CreatedBy:      req.CreatedBy,
		CreatedAt:      now,
	}

	if err := s.loyaltyRepo.UpdateBalances(ctx, dbTx, loyalty); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}
	if err := s.loyaltyRepo.CreateTransaction(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}

	s.log.Info().
		Str("customer_id", loyalty.CustomerID.String()).
		Str("type", string(req.Type)).
		Int64("points", req.Points).
		Int64("balance", loyalty.CurrentPoints).
		Msg("points redeemed")

	return &ports.LedgerResult{Loyalty: loyalty, Transaction: txn}, nil
}

// AdjustPoints applies a signed manual correction. Negative adjustments may
// not take the balance below zero.
func (s *LoyaltyServiceImpl) AdjustPoints(ctx context.Context, customerID uuid.UUID, delta int64, description, createdBy string) (*ports.LedgerResult, error) {
	if delta == 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	loyalty, err := s.loyaltyRepo.GetByCustomerIDForUpdate(ctx, dbTx, customerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock loyalty: %w", err))
	}
	if loyalty == nil {
		return nil, apperror.ErrNotFound("customer loyalty")
	}

	txType := domain.LoyaltyAdjustmentAdd
	if delta < 0 {
		if loyalty.CurrentPoints < -delta {
			return nil, apperror.ErrInsufficientPoints()
		}
		txType = domain.LoyaltyAdjustmentSub
	}

	now := time.Now().UTC()
	loyalty.CurrentPoints += delta
	if delta > 0 {
		loyalty.PointsEarned += delta
	} else {
		loyalty.PointsRedeemed += -delta
	}
	loyalty.UpdatedAt = now

	txn := &domain.LoyaltyTransaction{
		ID:           uuid.New(),
		CustomerID:   loyalty.CustomerID,
		TenantID:     loyalty.TenantID,
		Type:         txType,
		PointsChange: delta,
		BalanceAfter: loyalty.CurrentPoints,
		Description:  description,
		CreatedBy:    createdBy,
		CreatedAt:    now,
	}

	if err := s.loyaltyRepo.UpdateBalances(ctx, dbTx, loyalty); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}
	if err := s.loyaltyRepo.CreateTransaction(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}

	// Commit
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("customer_id", loyalty.CustomerID.String()).
		Int64("delta", delta).
		Int64("balance", loyalty.CurrentPoints).
		Str("created_by", createdBy).
		Msg("points adjusted")

	return &ports.LedgerResult{Loyalty: loyalty, Transaction: txn}, nil
}

// AwardBirthdayBonus credits the tier-dependent birthday bonus, at most once
// per calendar year. Idempotency is enforced against the ledger under the
// row lock, not against a client-supplied flag.
func (s *LoyaltyServiceImpl) AwardBirthdayBonus(ctx context.Context, customerID uuid.UUID) (*ports.LedgerResult, error) {
	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	loyalty, err := s.loyaltyRepo.GetByCustomerIDForUpdate(ctx, dbTx, customerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock loyalty: %w", err))
	}
	if loyalty == nil {
		return nil, apperror.ErrNotFound("customer loyalty")
	}

	now := time.Now().UTC()
	awarded, err := s.loyaltyRepo.HasBirthdayBonus(ctx, dbTx, customerID, now.Year())
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check birthday bonus: %w", err))
	}
	if awarded {
		return nil, apperror.ErrAlreadyAwarded()
	}

	bonus := domain.BenefitsFor(loyalty.TierLevel).BirthdayBonus
	loyalty.CurrentPoints += bonus
	loyalty.PointsEarned += bonus
	loyalty.UpdatedAt = now

	txn := &domain.LoyaltyTransaction{
		ID:           uuid.New(),
		CustomerID:   loyalty.CustomerID,
		TenantID:     loyalty.TenantID,
		Type:         domain.LoyaltyEarnedBirthday,
		PointsChange: bonus,
		BalanceAfter: loyalty.CurrentPoints,
		Description:  fmt.Sprintf("Birthday bonus (%s)", loyalty.TierLevel),
		CreatedAt:    now,
	}

	if err := s.loyaltyRepo.UpdateBalances(ctx, dbTx, loyalty); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}
	if err := s.loyaltyRepo.CreateTransaction(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}

	// Commit
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("customer_id", loyalty.CustomerID.String()).
		Str("tier", string(loyalty.TierLevel)).
		Int64("bonus", bonus).
		Msg("birthday bonus awarded")

	return &ports.LedgerResult{Loyalty: loyalty, Transaction: txn}, nil
}

// RecordVisit rolls the customer's spend/visit metrics forward and accrues
// purchase points at the tier multiplier. Month and year counters reset when
// the calendar rolls over since the last visit.
func (s *LoyaltyServiceImpl) RecordVisit(ctx context.Context, req ports.VisitRequest) (*ports.LedgerResult, error) {
	if req.Amount < 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	loyalty, err := s.loyaltyRepo.GetByCustomerIDForUpdate(ctx, dbTx, req.CustomerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock loyalty: %w", err))
	}
	if loyalty == nil {
		return nil, apperror.ErrNotFound("customer loyalty")
	}

	now := time.Now().UTC()
	if loyalty.LastVisitAt != nil {
		last := loyalty.LastVisitAt.UTC()
		if last.Year() != now.Year() {
			loyalty.CurrentYearSpent = 0
		}
		if last.Year() != now.Year() || last.Month() != now.Month() {
			loyalty.CurrentMonthSpent = 0
			loyalty.VisitsThisMonth = 0
		}
	}

	loyalty.TotalVisits++
	loyalty.VisitsThisMonth++
	loyalty.LifetimeSpent += req.Amount
	loyalty.CurrentYearSpent += req.Amount
	loyalty.CurrentMonthSpent += req.Amount
	loyalty.LastVisitAt = &now
	loyalty.UpdatedAt = now

	var txn *domain.LoyaltyTransaction
	base := domain.PointsForAmount(req.Amount)
	points := domain.ScalePoints(base, domain.BenefitsFor(loyalty.TierLevel).PointsMultiplier)
	if points > 0 {
		loyalty.CurrentPoints += points
		loyalty.PointsEarned += points
		txn = &domain.LoyaltyTransaction{
			ID:             uuid.New(),
			CustomerID:     loyalty.CustomerID,
			TenantID:       loyalty.TenantID,
			Type:           domain.LoyaltyEarnedPurchase,
			PointsChange:   points,
			BalanceAfter:   loyalty.CurrentPoints,
			Description:    fmt.Sprintf("Purchase of %d", req.Amount),
			VisitID:        &req.VisitID,
			OrderReference: req.OrderReference,
			CreatedAt:      now,
		}
	}

	if err := s.loyaltyRepo.UpdateBalances(ctx, dbTx, loyalty); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}
	if txn != nil {
		if err := s.loyaltyRepo.CreateTransaction(ctx, dbTx, txn); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
		}
	}

	// Commit
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	// The visit changed tier inputs; hand the recompute to the worker.
	if err := s.tierQueue.Enqueue(ctx, loyalty.CustomerID); err != nil {
		s.log.Warn().Err(err).
			Str("customer_id", loyalty.CustomerID.String()).
			Msg("failed to enqueue tier recompute")
	}

	s.log.Info().
		Str("customer_id", loyalty.CustomerID.String()).
		Int64("amount", req.Amount).
		Int64("points_earned", points).
		Int64("total_visits", loyalty.TotalVisits).
		Msg("visit recorded")

	return &ports.LedgerResult{Loyalty: loyalty, Transaction: txn}, nil
}

// ExpireOldPoints expires earning lots older than the cutoff. Each lot is
// processed in its own transaction; a failing customer is skipped and counted,
// never aborting the batch. An EXPIRED row linked to the lot makes the run
// idempotent: processed lots stop matching the expirable query.
func (s *LoyaltyServiceImpl) ExpireOldPoints(ctx context.Context, tenantID uuid.UUID, daysToExpire int) (*ports.ExpiryReport, error) {
	if daysToExpire <= 0 {
		return nil, apperror.Validation("daysToExpire must be positive")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -daysToExpire)
	lots, err := s.loyaltyRepo.ListExpirableEarnings(ctx, tenantID, cutoff)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list expirable earnings: %w", err))
	}

	report := &ports.ExpiryReport{}
	touched := make(map[uuid.UUID]struct{})

	for _, lot := range lots {
		expired, err := s.expireLot(ctx, lot)
		if err != nil {
			report.Skipped++
			s.log.Warn().Err(err).
				Str("lot_id", lot.ID.String()).
				Str("customer_id", lot.CustomerID.String()).
				Msg("skipping expiry lot")
			continue
		}
		report.LotsProcessed++
		report.PointsExpired += expired
		if expired > 0 {
			touched[lot.CustomerID] = struct{}{}
		}
	}
	report.CustomersAffected = len(touched)

	s.log.Info().
		Str("tenant_id", tenantID.String()).
		Int("lots_processed", report.LotsProcessed).
		Int64("points_expired", report.PointsExpired).
		Int("skipped", report.Skipped).
		Msg("point expiry batch finished")

	return report, nil
}

// expireLot expires a single earning lot, capped at the current balance so
// the balance never goes negative.
func (s *LoyaltyServiceImpl) expireLot(ctx context.Context, lot domain.LoyaltyTransaction) (int64, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	loyalty, err := s.loyaltyRepo.GetByCustomerIDForUpdate(ctx, dbTx, lot.CustomerID)
	if err != nil {
		return 0, fmt.Errorf("lock loyalty: %w", err)
	}
	if loyalty == nil {
		return 0, fmt.Errorf("customer loyalty %s not found", lot.CustomerID)
	}

	expire := lot.PointsChange
	if expire > loyalty.CurrentPoints {
		expire = loyalty.CurrentPoints
	}

	now := time.Now().UTC()
	loyalty.CurrentPoints -= expire
	loyalty.PointsExpired += expire
	loyalty.UpdatedAt = now

	// Written even when the effective amount is zero, so the lot is marked
	// processed and never revisited.
	txn := &domain.LoyaltyTransaction{
		ID:           uuid.New(),
		CustomerID:   loyalty.CustomerID,
		TenantID:     loyalty.TenantID,
		Type:         domain.LoyaltyExpired,
		PointsChange: -expire,
		BalanceAfter: loyalty.CurrentPoints,
		Description:  fmt.Sprintf("Expired points from %s", lot.CreatedAt.Format("2006-01-02")),
		RelatedTxID:  &lot.ID,
		CreatedAt:    now,
	}

	if err := s.loyaltyRepo.UpdateBalances(ctx, dbTx, loyalty); err != nil {
		return 0, fmt.Errorf("update balances: %w", err)
	}
	if err := s.loyaltyRepo.CreateTransaction(ctx, dbTx, txn); err != nil {
		return 0, fmt.Errorf("create ledger entry: %w", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return expire, nil
}

// GetCustomerDetails returns the read model for a customer's standing.
func (s *LoyaltyServiceImpl) GetCustomerDetails(ctx context.Context, customerID uuid.UUID) (*ports.LoyaltyDetails, error) {
	loyalty, err := s.loyaltyRepo.GetByCustomerID(ctx, customerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get loyalty: %w", err))
	}
	if loyalty == nil {
		return nil, apperror.ErrNotFound("customer loyalty")
	}

	recent, err := s.loyaltyRepo.ListRecent(ctx, customerID, recentTransactionLimit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list recent transactions: %w", err))
	}

	next, progress := domain.TierProgress(
		loyalty.TierLevel,
		loyalty.LifetimeSpent,
		loyalty.TotalVisits,
		loyalty.CurrentYearSpent,
	)

	return &ports.LoyaltyDetails{
		Loyalty:            loyalty,
		NextTier:           next,
		TierProgress:       progress,
		Benefits:           domain.BenefitsFor(loyalty.TierLevel),
		RecentTransactions: recent,
	}, nil
}

// RecomputeTier re-derives the cached tier from committed aggregates. Safe
// to run any number of times for the same customer.
func (s *LoyaltyServiceImpl) RecomputeTier(ctx context.Context, customerID uuid.UUID) error {
	loyalty, err := s.loyaltyRepo.GetByCustomerID(ctx, customerID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get loyalty: %w", err))
	}
	if loyalty == nil {
		// Customer gone between enqueue and dequeue; nothing to do.
		return nil
	}

	tier := domain.CalculateTier(loyalty.LifetimeSpent, loyalty.TotalVisits, loyalty.CurrentYearSpent)
	if tier == loyalty.TierLevel {
		return nil
	}

	if err := s.loyaltyRepo.UpdateTier(ctx, customerID, tier); err != nil {
		return apperror.InternalError(fmt.Errorf("update tier: %w", err))
	}

	s.log.Info().
		Str("customer_id", customerID.String()).
		Str("from", string(loyalty.TierLevel)).
		Str("to", string(tier)).
		Msg("tier recomputed")

	return nil
}
