package service

import (
	"context"
	"sync"
	"time"

	"pos-settlement-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const tierDequeueTimeout = 2 * time.Second

// TierWorker drains the tier recompute queue in the background. Delivery is
// at-least-once and recomputation is idempotent, so duplicate queue entries
// are harmless.
type TierWorker struct {
	queue      ports.TierQueue
	loyaltySvc ports.LoyaltyService
	log        zerolog.Logger
	wg         sync.WaitGroup
}

// NewTierWorker creates a new TierWorker.
func NewTierWorker(queue ports.TierQueue, loyaltySvc ports.LoyaltyService, log zerolog.Logger) *TierWorker {
	return &TierWorker{
		queue:      queue,
		loyaltySvc: loyaltySvc,
		log:        log,
	}
}

// Start launches the worker loop. It runs until ctx is cancelled.
func (w *TierWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.log.Info().Msg("tier worker started")
		for {
			select {
			case <-ctx.Done():
				w.log.Info().Msg("tier worker stopped")
				return
			default:
			}

			customerID, err := w.queue.Dequeue(ctx, tierDequeueTimeout)
			if err != nil {
				if ctx.Err() != nil {
					w.log.Info().Msg("tier worker stopped")
					return
				}
				w.log.Warn().Err(err).Msg("tier queue dequeue failed")
				continue
			}
			if customerID == uuid.Nil {
				continue
			}

			if err := w.loyaltySvc.RecomputeTier(ctx, customerID); err != nil {
				w.log.Error().Err(err).
					Str("customer_id", customerID.String()).
					Msg("tier recompute failed")
			}
		}
	}()
}

// Wait blocks until the worker loop has exited.
func (w *TierWorker) Wait() {
	w.wg.Wait()
}
