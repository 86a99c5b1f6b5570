// Package monitor implements the stop-loss watchdog. It continuously walks
// the open positions, compares each asset's current price against its
// stop-loss floor, and fires a forced exit when the floor is breached.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mkravets/signalbot/internal/domain"
)

// Seller launches exits. The engine satisfies this.
type Seller interface {
	Sell(ctx context.Context, assetID string, trigger domain.ExitTrigger) (domain.SellOutcome, error)
}

// PriceSource reports the current price of an asset.
type PriceSource interface {
	Price(ctx context.Context, mint string) (float64, error)
}

// BalanceReader reads SPL token balances from the chain.
type BalanceReader interface {
	TokenBalance(ctx context.Context, owner, mint string) (uint64, error)
}

// Config holds monitor parameters.
type Config struct {
	// WalletAddress is the trading wallet whose balances are checked.
	WalletAddress string
	// ScanInterval is the pause between consecutive position checks. It
	// bounds the request rate against the price service regardless of how
	// many positions are open.
	ScanInterval time.Duration
	// MaxPriceStale bounds how old a cached price may be when the live
	// lookup fails. Older cache entries are ignored and the position is
	// skipped until the next scan.
	MaxPriceStale time.Duration
}

// Monitor walks open positions and triggers stop-loss exits.
type Monitor struct {
	cfg       Config
	positions domain.PositionStore
	prices    domain.PriceCache
	priceSrc  PriceSource
	chain     BalanceReader
	seller    Seller
	logger    *slog.Logger

	inflight sync.WaitGroup
}

// New creates a Monitor.
func New(
	cfg Config,
	positions domain.PositionStore,
	prices domain.PriceCache,
	priceSrc PriceSource,
	chain BalanceReader,
	seller Seller,
	logger *slog.Logger,
) *Monitor {
	return &Monitor{
		cfg:       cfg,
		positions: positions,
		prices:    prices,
		priceSrc:  priceSrc,
		chain:     chain,
		seller:    seller,
		logger:    logger.With(slog.String("component", "monitor")),
	}
}

// Run scans until the context is cancelled, then waits for in-flight exits.
// Scan errors are logged and retried on the next cycle; only cancellation
// stops the loop.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started",
		slog.Duration("scan_interval", m.cfg.ScanInterval),
	)
	defer m.logger.Info("monitor stopped")
	defer m.inflight.Wait()

	for {
		if err := m.scan(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			m.logger.Error("scan failed", slog.String("error", err.Error()))
		}
		if err := m.pause(ctx); err != nil {
			return err
		}
	}
}

// scan checks every open position once, pausing between positions.
func (m *Monitor) scan(ctx context.Context) error {
	positions, err := m.positions.ListOpen(ctx)
	if err != nil {
		return err
	}

	for i, pos := range positions {
		if i > 0 {
			if err := m.pause(ctx); err != nil {
				return err
			}
		}
		m.check(ctx, pos)
	}
	return nil
}

// check evaluates one position against its stop-loss floor.
func (m *Monitor) check(ctx context.Context, pos domain.Position) {
	log := m.logger.With(slog.String("asset", pos.AssetID))

	balance, err := m.chain.TokenBalance(ctx, m.cfg.WalletAddress, pos.AssetID)
	if err != nil {
		log.Warn("balance read failed", slog.String("error", err.Error()))
		return
	}
	if balance == 0 {
		// Nothing to protect. The sell path reconciles empties; the
		// monitor never deletes on its own.
		log.Debug("balance empty, skipping")
		return
	}

	price, ok := m.currentPrice(ctx, log, pos.AssetID)
	if !ok {
		return
	}

	// The exit fires only strictly below the floor; a price sitting exactly
	// on it holds.
	if price >= pos.StopLossPrice {
		return
	}

	log.Warn("stop-loss breached",
		slog.Float64("price", price),
		slog.Float64("floor", pos.StopLossPrice),
	)

	// Fire and forget: confirmation can take minutes and must not stall
	// the scan. The engine's exit lock stops repeat triggers from
	// subsequent scans while this one is pending.
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		outcome, err := m.seller.Sell(ctx, pos.AssetID, domain.TriggerStopLoss)
		if err != nil {
			log.Error("stop-loss sell failed",
				slog.String("outcome", string(outcome)),
				slog.String("error", err.Error()),
			)
			return
		}
		log.Info("stop-loss sell handled", slog.String("outcome", string(outcome)))
	}()
}

// currentPrice returns the asset's price from the live service, falling back
// to the cache when the lookup fails and the cached observation is fresh
// enough.
func (m *Monitor) currentPrice(ctx context.Context, log *slog.Logger, assetID string) (float64, bool) {
	price, err := m.priceSrc.Price(ctx, assetID)
	if err == nil {
		if cacheErr := m.prices.SetPrice(ctx, assetID, price, time.Now().UTC()); cacheErr != nil {
			log.Warn("price cache write failed", slog.String("error", cacheErr.Error()))
		}
		return price, true
	}

	log.Warn("price lookup failed, trying cache", slog.String("error", err.Error()))

	cached, ts, cacheErr := m.prices.GetPrice(ctx, assetID)
	if cacheErr != nil {
		log.Warn("no cached price, skipping position")
		return 0, false
	}
	if time.Since(ts) > m.cfg.MaxPriceStale {
		log.Warn("cached price too stale, skipping position",
			slog.Time("observed_at", ts),
		)
		return 0, false
	}
	return cached, true
}

// pause sleeps for the scan interval or until cancellation.
func (m *Monitor) pause(ctx context.Context) error {
	timer := time.NewTimer(m.cfg.ScanInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
