package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mkravets/signalbot/internal/domain"
	"github.com/mkravets/signalbot/internal/signal"
)

// Runner reads raw feed messages from a channel, interprets them as trading
// signals, deduplicates, and dispatches trades on the engine. Each trade runs
// in its own goroutine so a slow bundle confirmation never stalls the feed;
// the engine's per-asset exit lock and the dedup window keep concurrent
// dispatches safe.
type Runner struct {
	messages <-chan domain.RawMessage
	engine   *Engine
	dedup    *Dedup
	logger   *slog.Logger

	cleanupInterval time.Duration
	inflight        sync.WaitGroup
}

// NewRunner creates a Runner consuming from messages.
func NewRunner(messages <-chan domain.RawMessage, eng *Engine, dedupTTL time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		messages:        messages,
		engine:          eng,
		dedup:           NewDedup(dedupTTL),
		logger:          logger.With(slog.String("component", "runner")),
		cleanupInterval: 30 * time.Second,
	}
}

// Run processes messages until the context is cancelled or the channel
// closes, then waits for in-flight trades to finish.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("runner started")
	defer r.logger.Info("runner stopped")
	defer r.inflight.Wait()

	cleanupTicker := time.NewTicker(r.cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-r.messages:
			if !ok {
				return nil
			}
			r.process(ctx, msg)

		case <-cleanupTicker.C:
			r.dedup.Cleanup()
		}
	}
}

// process interprets one raw message and dispatches the resulting trade.
func (r *Runner) process(ctx context.Context, msg domain.RawMessage) {
	sig, ok := signal.Parse(msg)
	if !ok {
		r.logger.Debug("message carries no signal")
		return
	}

	log := r.logger.With(
		slog.String("kind", string(sig.Kind)),
		slog.String("asset", sig.AssetID),
	)

	if r.dedup.IsDuplicate(string(sig.Kind) + ":" + sig.AssetID) {
		log.Debug("signal deduplicated, skipping")
		return
	}

	log.Info("signal accepted")
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		switch sig.Kind {
		case domain.SignalBuy:
			if err := r.engine.Buy(ctx, sig.AssetID); err != nil {
				log.Error("buy failed", slog.String("error", err.Error()))
			}
		case domain.SignalSell:
			outcome, err := r.engine.Sell(ctx, sig.AssetID, domain.TriggerSignal)
			if err != nil {
				log.Error("sell failed",
					slog.String("outcome", string(outcome)),
					slog.String("error", err.Error()),
				)
				return
			}
			log.Info("sell handled", slog.String("outcome", string(outcome)))
		}
	}()
}
