package domain

import (
	"time"

	"github.com/google/uuid"
)

// LoyaltyTransactionType classifies a point ledger entry.
type LoyaltyTransactionType string

const (
	LoyaltyEarnedPurchase   LoyaltyTransactionType = "EARNED_PURCHASE"
	LoyaltyEarnedBonus      LoyaltyTransactionType = "EARNED_BONUS"
	LoyaltyEarnedReferral   LoyaltyTransactionType = "EARNED_REFERRAL"
	LoyaltyEarnedBirthday   LoyaltyTransactionType = "EARNED_BIRTHDAY"
	LoyaltyRedeemedDiscount LoyaltyTransactionType = "REDEEMED_DISCOUNT"
	LoyaltyRedeemedItem     LoyaltyTransactionType = "REDEEMED_ITEM"
	LoyaltyAdjustmentAdd    LoyaltyTransactionType = "ADJUSTMENT_ADD"
	LoyaltyAdjustmentSub    LoyaltyTransactionType = "ADJUSTMENT_SUBTRACT"
	LoyaltyExpired          LoyaltyTransactionType = "EXPIRED"
)

// IsEarning reports whether the type adds points to the balance.
func (t LoyaltyTransactionType) IsEarning() bool {
	switch t {
	case LoyaltyEarnedPurchase, LoyaltyEarnedBonus, LoyaltyEarnedReferral,
		LoyaltyEarnedBirthday, LoyaltyAdjustmentAdd:
		return true
	}
	return false
}

// CustomerLoyalty is the per-customer point balance and spend/visit metrics.
// Invariant: CurrentPoints == PointsEarned - PointsRedeemed - PointsExpired,
// and CurrentPoints >= 0, at all times.
type CustomerLoyalty struct {
	CustomerID        uuid.UUID  `json:"customer_id"`
	TenantID          uuid.UUID  `json:"tenant_id"`
	CurrentPoints     int64      `json:"current_points"`
	PointsEarned      int64      `json:"points_earned"`
	PointsRedeemed    int64      `json:"points_redeemed"`
	PointsExpired     int64      `json:"points_expired"`
	TierLevel         Tier       `json:"tier_level"`
	LifetimeSpent     int64      `json:"lifetime_spent"`
	CurrentYearSpent  int64      `json:"current_year_spent"`
	CurrentMonthSpent int64      `json:"current_month_spent"`
	TotalVisits       int64      `json:"total_visits"`
	VisitsThisMonth   int64      `json:"visits_this_month"`
	LastVisitAt       *time.Time `json:"last_visit_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// LoyaltyTransaction is an immutable append-only point ledger row.
// BalanceAfter snapshots the running sum; the newest entry's BalanceAfter
// always equals CustomerLoyalty.CurrentPoints.
type LoyaltyTransaction struct {
	ID             uuid.UUID              `json:"id"`
	CustomerID     uuid.UUID              `json:"customer_id"`
	TenantID       uuid.UUID              `json:"tenant_id"`
	Type           LoyaltyTransactionType `json:"transaction_type"`
	PointsChange   int64                  `json:"points_change"` // Signed
	BalanceAfter   int64                  `json:"balance_after"`
	Description    string                 `json:"description"`
	VisitID        *uuid.UUID             `json:"visit_id,omitempty"`
	OrderReference *string                `json:"order_reference,omitempty"`
	CampaignID     *uuid.UUID             `json:"campaign_id,omitempty"`
	RelatedTxID    *uuid.UUID             `json:"related_tx_id,omitempty"` // EXPIRED -> earning lot
	CreatedBy      string                 `json:"created_by,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}
