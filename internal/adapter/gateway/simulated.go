package gateway

import (
	"context"
	"fmt"
	"sync"

	"pos-settlement-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Simulated implements ports.GatewayAdapter without an external provider.
// Used for local development and demos; production deployments supply their
// own adapter.
type Simulated struct {
	log zerolog.Logger

	mu      sync.Mutex
	charges map[string]int64
}

// NewSimulated creates a new simulated gateway.
func NewSimulated(log zerolog.Logger) *Simulated {
	return &Simulated{
		log:     log,
		charges: make(map[string]int64),
	}
}

// Charge approves every request and issues a synthetic reference.
func (g *Simulated) Charge(ctx context.Context, req ports.ChargeRequest) (*ports.ChargeResult, error) {
	ref := fmt.Sprintf("SIM-%s", uuid.New().String()[:8])

	g.mu.Lock()
	g.charges[ref] = req.Amount
	g.mu.Unlock()

	g.log.Info().
		Str("reference", ref).
		Str("method", string(req.Method)).
		Int64("amount", req.Amount).
		Msg("simulated charge approved")

	return &ports.ChargeResult{
		Success:   true,
		Reference: ref,
		CardMask:  "**** **** **** 4242",
	}, nil
}

// Reverse voids a previously issued charge.
func (g *Simulated) Reverse(ctx context.Context, reference string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.charges[reference]; !ok {
		return fmt.Errorf("unknown gateway reference: %s", reference)
	}
	delete(g.charges, reference)

	g.log.Info().Str("reference", reference).Msg("simulated charge reversed")
	return nil
}
