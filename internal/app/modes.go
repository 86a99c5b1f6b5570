package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkravets/signalbot/internal/engine"
	"github.com/mkravets/signalbot/internal/feed"
	"github.com/mkravets/signalbot/internal/monitor"
)

// buildEngine constructs the execution engine from wired dependencies.
func (a *App) buildEngine(deps *Dependencies) *engine.Engine {
	return engine.New(
		engine.Config{
			InputMint:    a.cfg.Trade.InputMint,
			BuyAmountSOL: a.cfg.Trade.BuyAmountSOL,
			SlippageBps:  a.cfg.Trade.SlippageBps,
			ExitLockTTL:  a.cfg.Trade.ExitLockTTL.Duration,
		},
		deps.PositionStore,
		deps.FillStore,
		deps.AuditStore,
		deps.PriceCache,
		deps.LockManager,
		deps.Jupiter,
		deps.Jupiter,
		deps.Relay,
		deps.Chain,
		deps.Wallet,
		deps.Notifier,
		a.logger,
	)
}

// buildMonitor constructs the stop-loss monitor around the engine.
func (a *App) buildMonitor(deps *Dependencies, eng *engine.Engine) *monitor.Monitor {
	return monitor.New(
		monitor.Config{
			WalletAddress: deps.Wallet.Address(),
			ScanInterval:  a.cfg.Monitor.ScanInterval.Duration,
			MaxPriceStale: a.cfg.Monitor.MaxPriceStale.Duration,
		},
		deps.PositionStore,
		deps.PriceCache,
		deps.Jupiter,
		deps.Chain,
		eng,
		a.logger,
	)
}

// TradeMode runs the full pipeline: signal feed, trade runner, stop-loss
// monitor, and the fill archiver when enabled.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	g, ctx := errgroup.WithContext(ctx)

	eng := a.buildEngine(deps)

	tgFeed := feed.NewTelegram(feed.Config{
		BotToken:       a.cfg.Feed.BotToken,
		ChatID:         a.cfg.Feed.ChatID,
		PollTimeoutSec: a.cfg.Feed.PollTimeoutSec,
	}, a.logger)
	g.Go(func() error {
		return tgFeed.Run(ctx)
	})

	runner := engine.NewRunner(tgFeed.Messages(), eng, a.cfg.Trade.DedupTTL.Duration, a.logger)
	g.Go(func() error {
		return runner.Run(ctx)
	})

	mon := a.buildMonitor(deps, eng)
	g.Go(func() error {
		return mon.Run(ctx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveLoop(ctx, deps)
		})
	}

	return g.Wait()
}

// MonitorMode runs only the stop-loss monitor (and the archiver when
// enabled); no signals are consumed and no entries are made.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	eng := a.buildEngine(deps)
	mon := a.buildMonitor(deps, eng)
	g.Go(func() error {
		return mon.Run(ctx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveLoop(ctx, deps)
		})
	}

	return g.Wait()
}

// archiveLoop periodically exports aged fills to blob storage.
func (a *App) archiveLoop(ctx context.Context, deps *Dependencies) error {
	log := a.logger.With(slog.String("component", "archive_loop"))
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(a.cfg.Archive.Interval.Duration)
	defer ticker.Stop()

	log.Info("archive loop started",
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retention)
			count, err := deps.Archiver.ArchiveFills(ctx, cutoff)
			if err != nil {
				log.Error("fill archive failed", slog.String("error", err.Error()))
				continue
			}
			if count > 0 {
				log.Info("fills archived", slog.Int64("count", count))
			}
		}
	}
}
