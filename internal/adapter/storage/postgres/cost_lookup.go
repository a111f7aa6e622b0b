package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrCostUnknown is returned when no cost row exists for an item.
var ErrCostUnknown = errors.New("item cost unknown")

// CostLookup implements ports.CostLookup over the item_costs table.
type CostLookup struct {
	pool Pool
}

// NewCostLookup creates a new CostLookup.
func NewCostLookup(pool Pool) *CostLookup {
	return &CostLookup{pool: pool}
}

// UnitCost returns the cost-per-unit for an item.
func (r *CostLookup) UnitCost(ctx context.Context, itemID uuid.UUID) (int64, error) {
	query := `SELECT unit_cost FROM item_costs WHERE item_id = $1`

	var cost int64
	err := r.pool.QueryRow(ctx, query, itemID).Scan(&cost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCostUnknown
		}
		return 0, fmt.Errorf("get unit cost: %w", err)
	}
	return cost, nil
}
