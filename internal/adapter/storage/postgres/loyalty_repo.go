package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos-settlement-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LoyaltyRepo implements ports.LoyaltyRepository.
type LoyaltyRepo struct {
	pool Pool
}

// NewLoyaltyRepo creates a new LoyaltyRepo.
func NewLoyaltyRepo(pool Pool) *LoyaltyRepo {
	return &LoyaltyRepo{pool: pool}
}

const loyaltyColumns = `customer_id, tenant_id, current_points, points_earned, points_redeemed,
	points_expired, tier_level, lifetime_spent, current_year_spent, current_month_spent,
	total_visits, visits_this_month, last_visit_at, created_at, updated_at`

const loyaltyTxColumns = `id, customer_id, tenant_id, transaction_type, points_change, balance_after,
	description, visit_id, order_reference, campaign_id, related_tx_id, created_by, created_at`

// GetByCustomerID fetches a customer's loyalty row.
func (r *LoyaltyRepo) GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*domain.CustomerLoyalty, error) {
	query := fmt.Sprintf(`SELECT %s FROM customer_loyalty WHERE customer_id = $1`, loyaltyColumns)
	return r.scanLoyalty(r.pool.QueryRow(ctx, query, customerID))
}

// GetByCustomerIDForUpdate fetches a customer's loyalty row with a row lock,
// within a database transaction.
func (r *LoyaltyRepo) GetByCustomerIDForUpdate(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (*domain.CustomerLoyalty, error) {
	query := fmt.Sprintf(`SELECT %s FROM customer_loyalty WHERE customer_id = $1 FOR UPDATE`, loyaltyColumns)
	return r.scanLoyalty(tx.QueryRow(ctx, query, customerID))
}

// UpdateBalances persists the mutable balance and metric fields within a
// database transaction. The tier field is owned by UpdateTier.
func (r *LoyaltyRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, loyalty *domain.CustomerLoyalty) error {
	query := `UPDATE customer_loyalty SET current_points = $1, points_earned = $2, points_redeemed = $3,
		points_expired = $4, lifetime_spent = $5, current_year_spent = $6, current_month_spent = $7,
		total_visits = $8, visits_this_month = $9, last_visit_at = $10, updated_at = $11
		WHERE customer_id = $12`

	tag, err := tx.Exec(ctx, query,
		loyalty.CurrentPoints, loyalty.PointsEarned, loyalty.PointsRedeemed,
		loyalty.PointsExpired, loyalty.LifetimeSpent, loyalty.CurrentYearSpent,
		loyalty.CurrentMonthSpent, loyalty.TotalVisits, loyalty.VisitsThisMonth,
		loyalty.LastVisitAt, time.Now(), loyalty.CustomerID,
	)
	if err != nil {
		return fmt.Errorf("update loyalty balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("loyalty not found: %s", loyalty.CustomerID)
	}
	return nil
}

// UpdateTier writes the derived tier cache field.
func (r *LoyaltyRepo) UpdateTier(ctx context.Context, customerID uuid.UUID, tier domain.Tier) error {
	query := `UPDATE customer_loyalty SET tier_level = $1, updated_at = $2 WHERE customer_id = $3`

	tag, err := r.pool.Exec(ctx, query, tier, time.Now(), customerID)
	if err != nil {
		return fmt.Errorf("update loyalty tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("loyalty not found: %s", customerID)
	}
	return nil
}

// CreateTransaction appends a point ledger row within a database transaction.
func (r *LoyaltyRepo) CreateTransaction(ctx context.Context, tx pgx.Tx, txn *domain.LoyaltyTransaction) error {
	query := `INSERT INTO loyalty_transactions (id, customer_id, tenant_id, transaction_type, points_change,
		balance_after, description, visit_id, order_reference, campaign_id, related_tx_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, query,
		txn.ID, txn.CustomerID, txn.TenantID, txn.Type, txn.PointsChange,
		txn.BalanceAfter, txn.Description, txn.VisitID, txn.OrderReference,
		txn.CampaignID, txn.RelatedTxID, txn.CreatedBy, txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert loyalty transaction: %w", err)
	}
	return nil
}

// ListRecent fetches the newest ledger rows for a customer.
func (r *LoyaltyRepo) ListRecent(ctx context.Context, customerID uuid.UUID, limit int) ([]domain.LoyaltyTransaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM loyalty_transactions
		WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2`, loyaltyTxColumns)

	rows, err := r.pool.Query(ctx, query, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list loyalty transactions: %w", err)
	}
	defer rows.Close()
	return r.collectTransactions(rows)
}

// HasBirthdayBonus reports whether an EARNED_BIRTHDAY entry exists for the
// customer in the given calendar year, within a database transaction.
func (r *LoyaltyRepo) HasBirthdayBonus(ctx context.Context, tx pgx.Tx, customerID uuid.UUID, year int) (bool, error) {
	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := yearStart.AddDate(1, 0, 0)
	query := `SELECT EXISTS(SELECT 1 FROM loyalty_transactions
		WHERE customer_id = $1 AND transaction_type = 'EARNED_BIRTHDAY' AND created_at >= $2 AND created_at < $3)`

	var exists bool
	if err := tx.QueryRow(ctx, query, customerID, yearStart, yearEnd).Scan(&exists); err != nil {
		return false, fmt.Errorf("check birthday bonus: %w", err)
	}
	return exists, nil
}

// ListExpirableEarnings fetches earning ledger rows older than the cutoff
// that have not yet been consumed by an EXPIRED row.
func (r *LoyaltyRepo) ListExpirableEarnings(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) ([]domain.LoyaltyTransaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM loyalty_transactions lt
		WHERE lt.tenant_id = $1 AND lt.points_change > 0
		AND lt.transaction_type IN ('EARNED_PURCHASE', 'EARNED_BONUS', 'EARNED_REFERRAL', 'EARNED_BIRTHDAY', 'ADJUSTMENT_ADD')
		AND lt.created_at < $2
		AND NOT EXISTS (SELECT 1 FROM loyalty_transactions e
			WHERE e.transaction_type = 'EXPIRED' AND e.related_tx_id = lt.id)
		ORDER BY lt.created_at`, loyaltyTxColumns)

	rows, err := r.pool.Query(ctx, query, tenantID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expirable earnings: %w", err)
	}
	defer rows.Close()
	return r.collectTransactions(rows)
}

func (r *LoyaltyRepo) collectTransactions(rows pgx.Rows) ([]domain.LoyaltyTransaction, error) {
	var txns []domain.LoyaltyTransaction
	for rows.Next() {
		t := domain.LoyaltyTransaction{}
		err := rows.Scan(
			&t.ID, &t.CustomerID, &t.TenantID, &t.Type, &t.PointsChange,
			&t.BalanceAfter, &t.Description, &t.VisitID, &t.OrderReference,
			&t.CampaignID, &t.RelatedTxID, &t.CreatedBy, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan loyalty transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loyalty transaction rows: %w", err)
	}
	return txns, nil
}

// scanLoyalty is a helper to scan a single row into a CustomerLoyalty.
func (r *LoyaltyRepo) scanLoyalty(row pgx.Row) (*domain.CustomerLoyalty, error) {
	l := &domain.CustomerLoyalty{}
	err := row.Scan(
		&l.CustomerID, &l.TenantID, &l.CurrentPoints, &l.PointsEarned,
		&l.PointsRedeemed, &l.PointsExpired, &l.TierLevel, &l.LifetimeSpent,
		&l.CurrentYearSpent, &l.CurrentMonthSpent, &l.TotalVisits,
		&l.VisitsThisMonth, &l.LastVisitAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan loyalty: %w", err)
	}
	return l, nil
}
