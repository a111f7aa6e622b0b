package domain

import "math"

// Tier is a loyalty rank derived from spend/visit metrics.
type Tier string

const (
	TierBronze   Tier = "BRONZE"
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
)

// TierThresholds are the requirements to reach a tier. A customer qualifies
// by meeting ANY of the three (best-of-three progression).
type TierThresholds struct {
	LifetimeSpend int64
	Visits        int64
	YearlySpend   int64
}

// TierBenefits are the perks granted by a tier.
type TierBenefits struct {
	PointsMultiplier float64 `json:"points_multiplier"`
	BirthdayBonus    int64   `json:"birthday_bonus"`
	DiscountPercent  int     `json:"discount_percent"`
}

var tierOrder = []Tier{TierBronze, TierSilver, TierGold, TierPlatinum}

var tierThresholds = map[Tier]TierThresholds{
	TierSilver:   {LifetimeSpend: 5_000_000, Visits: 30, YearlySpend: 3_000_000},
	TierGold:     {LifetimeSpend: 20_000_000, Visits: 100, YearlySpend: 10_000_000},
	TierPlatinum: {LifetimeSpend: 50_000_000, Visits: 200, YearlySpend: 20_000_000},
}

var tierBenefits = map[Tier]TierBenefits{
	TierBronze:   {PointsMultiplier: 1.0, BirthdayBonus: 200, DiscountPercent: 10},
	TierSilver:   {PointsMultiplier: 1.25, BirthdayBonus: 500, DiscountPercent: 15},
	TierGold:     {PointsMultiplier: 1.5, BirthdayBonus: 1000, DiscountPercent: 20},
	TierPlatinum: {PointsMultiplier: 2.0, BirthdayBonus: 2000, DiscountPercent: 25},
}

// pointsPerUnit is the currency-minor-units per loyalty point.
const pointsPerUnit = 1000

// PointsForAmount converts a spent amount into earned points:
// one point per 1,000 currency-minor-units, floored.
func PointsForAmount(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	return amount / pointsPerUnit
}

// ScalePoints applies a tier multiplier to a base point count, floored.
func ScalePoints(base int64, multiplier float64) int64 {
	if base <= 0 {
		return 0
	}
	return int64(math.Floor(float64(base) * multiplier))
}

// CalculateTier derives the tier a customer qualifies for. Each tier is
// reached by meeting any one of its thresholds; the highest reached wins.
func CalculateTier(lifetimeSpent, totalVisits, currentYearSpent int64) Tier {
	result := TierBronze
	for _, tier := range tierOrder[1:] {
		th := tierThresholds[tier]
		if lifetimeSpent >= th.LifetimeSpend ||
			totalVisits >= th.Visits ||
			currentYearSpent >= th.YearlySpend {
			result = tier
		}
	}
	return result
}

// BenefitsFor returns the benefits table entry for a tier. Unknown tiers
// fall back to BRONZE.
func BenefitsFor(tier Tier) TierBenefits {
	if b, ok := tierBenefits[tier]; ok {
		return b
	}
	return tierBenefits[TierBronze]
}

// NextTier returns the tier above the given one, or nil for PLATINUM.
func NextTier(tier Tier) *Tier {
	for i, t := range tierOrder {
		if t == tier && i+1 < len(tierOrder) {
			next := tierOrder[i+1]
			return &next
		}
	}
	return nil
}

// RequirementsFor returns the thresholds to reach a tier.
func RequirementsFor(tier Tier) (TierThresholds, bool) {
	th, ok := tierThresholds[tier]
	return th, ok
}

// TierProgress reports progress toward the next tier as a percentage:
// the best of the three individual threshold ratios, each capped at 100.
// PLATINUM reports 100 with a nil next tier.
func TierProgress(current Tier, lifetimeSpent, totalVisits, currentYearSpent int64) (*Tier, float64) {
	next := NextTier(current)
	if next == nil {
		return nil, 100
	}
	th := tierThresholds[*next]
	progress := math.Max(
		ratio(lifetimeSpent, th.LifetimeSpend),
		math.Max(
			ratio(totalVisits, th.Visits),
			ratio(currentYearSpent, th.YearlySpend),
		),
	)
	return next, progress
}

func ratio(have, need int64) float64 {
	if need <= 0 {
		return 100
	}
	p := float64(have) / float64(need) * 100
	return math.Min(p, 100)
}
