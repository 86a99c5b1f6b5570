// Package engine implements the trade execution pipeline: quote, build, sign,
// relay, confirm, and the position lifecycle bookkeeping around each fill.
// One engine serves both entry and exit; exits are parameterized by the
// trigger that initiated them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sdk "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/mkravets/signalbot/internal/domain"
	"github.com/mkravets/signalbot/internal/platform/jupiter"
)

const lamportsPerSOL = 1_000_000_000

// Quoter computes swap routes and builds unsigned swap transactions.
type Quoter interface {
	Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (jupiter.Quote, error)
	SwapTransaction(ctx context.Context, quote jupiter.Quote, userPublicKey string) (string, error)
}

// PriceSource reports the current price of an asset in the quote currency.
type PriceSource interface {
	Price(ctx context.Context, mint string) (float64, error)
}

// Relayer lands a signed swap transaction on-chain and reports whether the
// bundle confirmed.
type Relayer interface {
	Submit(ctx context.Context, swapTx *sdk.Transaction) (domain.BundleSubmission, error)
}

// BalanceReader reads SPL token balances from the chain.
type BalanceReader interface {
	TokenBalance(ctx context.Context, owner, mint string) (uint64, error)
}

// Signer signs swap transactions and identifies the trading wallet.
type Signer interface {
	SignBase64(txBase64 string) (*sdk.Transaction, string, error)
	Address() string
}

// Notifier delivers operator alerts. notify.Notifier satisfies this.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the execution parameters injected at construction.
type Config struct {
	// InputMint is the quote currency of every swap (wrapped SOL).
	InputMint string
	// BuyAmountSOL is the SOL spent on every entry.
	BuyAmountSOL float64
	SlippageBps  int
	// ExitLockTTL bounds how long the per-asset exit lock may be held.
	ExitLockTTL time.Duration
}

// Engine executes entries and exits and maintains position state.
type Engine struct {
	cfg       Config
	positions domain.PositionStore
	fills     domain.FillStore
	audit     domain.AuditStore
	prices    domain.PriceCache
	locks     domain.LockManager
	quoter    Quoter
	priceSrc  PriceSource
	relay     Relayer
	chain     BalanceReader
	signer    Signer
	notifier  Notifier
	logger    *slog.Logger
}

// New creates an Engine.
func New(
	cfg Config,
	positions domain.PositionStore,
	fills domain.FillStore,
	audit domain.AuditStore,
	prices domain.PriceCache,
	locks domain.LockManager,
	quoter Quoter,
	priceSrc PriceSource,
	relay Relayer,
	chain BalanceReader,
	signer Signer,
	notifier Notifier,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:       cfg,
		positions: positions,
		fills:     fills,
		audit:     audit,
		prices:    prices,
		locks:     locks,
		quoter:    quoter,
		priceSrc:  priceSrc,
		relay:     relay,
		chain:     chain,
		signer:    signer,
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "engine")),
	}
}

// Buy executes an entry: swap the configured SOL amount into the asset, await
// bundle confirmation, then open a position with the stop-loss armed at half
// the observed entry price. A buy for an asset that already has an open
// position records the fill but leaves the existing position untouched.
func (e *Engine) Buy(ctx context.Context, assetID string) error {
	log := e.logger.With(slog.String("asset", assetID))
	lamports := uint64(e.cfg.BuyAmountSOL * lamportsPerSOL)

	quote, err := e.quoter.Quote(ctx, e.cfg.InputMint, assetID, lamports, e.cfg.SlippageBps)
	if err != nil {
		return fmt.Errorf("engine: buy quote %s: %w", assetID, err)
	}

	sub, sig, err := e.execute(ctx, quote)
	if err != nil {
		return fmt.Errorf("engine: buy %s: %w", assetID, err)
	}
	if !sub.Confirmed {
		e.reportUnconfirmed(ctx, log, assetID, "buy", sub)
		return fmt.Errorf("engine: buy %s: %w", assetID, domain.ErrNotConfirmed)
	}

	price, priced := e.entryPrice(ctx, assetID)
	now := time.Now().UTC()

	pos := domain.Position{
		AssetID:       assetID,
		BuyPrice:      price,
		StopLossPrice: price / 2,
		ExitTier:      0,
		OpenedAt:      now,
		UpdatedAt:     now,
	}
	if !priced {
		// A zero floor never triggers; the position stays open but
		// unprotected until the operator intervenes.
		log.Error("entry price unavailable, stop-loss disarmed")
		e.auditLog(ctx, "buy.price_unavailable", map[string]any{
			"asset":     assetID,
			"bundle_id": sub.BundleID,
		})
	}
	if err := e.positions.Create(ctx, pos); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			log.Warn("position already open, keeping existing state")
		} else {
			return fmt.Errorf("engine: open position %s: %w", assetID, err)
		}
	}

	e.recordFill(ctx, log, domain.Fill{
		ID:          uuid.New().String(),
		AssetID:     assetID,
		Side:        domain.FillBuy,
		Reason:      string(domain.TriggerSignal),
		Amount:      lamports,
		Price:       price,
		TxSignature: sig,
		BundleID:    sub.BundleID,
		ExecutedAt:  now,
	})

	log.Info("buy filled",
		slog.Float64("price", price),
		slog.Float64("stop_loss", pos.StopLossPrice),
		slog.String("tx", solscanURL(sig)),
	)
	e.notify(ctx, "buy_filled", "Buy filled",
		fmt.Sprintf("%s at %.12g\n%s", assetID, price, solscanURL(sig)))
	return nil
}

// Sell executes an exit for the asset's open position. Signal-triggered sells
// liquidate the ladder fraction for the position's current tier; stop-loss
// sells liquidate everything and close the position. At most one exit per
// asset is in flight at a time; a second attempt while one is pending is
// skipped, not queued.
func (e *Engine) Sell(ctx context.Context, assetID string, trigger domain.ExitTrigger) (domain.SellOutcome, error) {
	log := e.logger.With(
		slog.String("asset", assetID),
		slog.String("trigger", string(trigger)),
	)

	// Existence check comes first so a sell for an unknown asset costs
	// nothing on the network.
	if _, err := e.positions.Get(ctx, assetID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Debug("no open position, ignoring sell")
			return domain.SellNoPosition, nil
		}
		return domain.SellFailed, fmt.Errorf("engine: load position %s: %w", assetID, err)
	}

	unlock, err := e.locks.Acquire(ctx, "exit:"+assetID, e.cfg.ExitLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			log.Info("exit already in flight, skipping")
			return domain.SellSkipped, nil
		}
		return domain.SellFailed, fmt.Errorf("engine: exit lock %s: %w", assetID, err)
	}
	defer unlock()

	// Another exit may have committed between the lookup and the acquire.
	// The tier and floor mutated below must come from a read taken under
	// the lock.
	pos, err := e.positions.Get(ctx, assetID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Debug("position closed while waiting for exit lock")
			return domain.SellNoPosition, nil
		}
		return domain.SellFailed, fmt.Errorf("engine: load position %s: %w", assetID, err)
	}

	balance, err := e.chain.TokenBalance(ctx, e.signer.Address(), assetID)
	if err != nil {
		return domain.SellFailed, fmt.Errorf("engine: balance %s: %w", assetID, err)
	}
	if balance == 0 {
		// Sold out elsewhere (or dusted away); reconcile the store.
		if err := e.positions.Delete(ctx, assetID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.SellFailed, fmt.Errorf("engine: close empty position %s: %w", assetID, err)
		}
		log.Info("balance empty, position closed")
		e.auditLog(ctx, "position.closed_empty", map[string]any{"asset": assetID})
		return domain.SellAlreadyClosed, nil
	}

	fraction := domain.ExitFraction(pos.ExitTier)
	if trigger == domain.TriggerStopLoss {
		fraction = 1.0
	}
	amount := uint64(float64(balance) * fraction)
	if amount == 0 || amount > balance {
		amount = balance
	}
	fullExit := amount == balance

	quote, err := e.quoter.Quote(ctx, assetID, e.cfg.InputMint, amount, e.cfg.SlippageBps)
	if err != nil {
		return domain.SellFailed, fmt.Errorf("engine: sell quote %s: %w", assetID, err)
	}

	sub, sig, err := e.execute(ctx, quote)
	if err != nil {
		return domain.SellFailed, fmt.Errorf("engine: sell %s: %w", assetID, err)
	}
	if !sub.Confirmed {
		e.reportUnconfirmed(ctx, log, assetID, "sell", sub)
		return domain.SellFailed, fmt.Errorf("engine: sell %s: %w", assetID, domain.ErrNotConfirmed)
	}

	now := time.Now().UTC()
	if fullExit {
		if err := e.positions.Delete(ctx, assetID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.SellFailed, fmt.Errorf("engine: close position %s: %w", assetID, err)
		}
	} else {
		if pos.ExitTier == 0 {
			// First partial exit moves the floor up to break-even.
			pos.StopLossPrice = pos.BuyPrice
		}
		pos.ExitTier++
		pos.UpdatedAt = now
		if err := e.positions.Update(ctx, pos); err != nil {
			return domain.SellFailed, fmt.Errorf("engine: advance position %s: %w", assetID, err)
		}
	}

	price := e.exitPrice(ctx, assetID, quote)
	e.recordFill(ctx, log, domain.Fill{
		ID:          uuid.New().String(),
		AssetID:     assetID,
		Side:        domain.FillSell,
		Reason:      string(trigger),
		Amount:      amount,
		Price:       price,
		TxSignature: sig,
		BundleID:    sub.BundleID,
		ExecutedAt:  now,
	})

	log.Info("sell filled",
		slog.Uint64("amount", amount),
		slog.Float64("fraction", fraction),
		slog.Bool("closed", fullExit),
		slog.String("tx", solscanURL(sig)),
	)

	event, title := "sell_filled", "Sell filled"
	if trigger == domain.TriggerStopLoss {
		event, title = "stop_loss", "Stop-loss triggered"
	}
	e.notify(ctx, event, title,
		fmt.Sprintf("%s sold %d (%.0f%%)\n%s", assetID, amount, fraction*100, solscanURL(sig)))
	return domain.SellFilled, nil
}

// execute runs the shared tail of both pipelines: build the swap transaction
// from a quote, sign it, and relay the bundle. It returns the submission and
// the swap signature.
func (e *Engine) execute(ctx context.Context, quote jupiter.Quote) (domain.BundleSubmission, string, error) {
	swapB64, err := e.quoter.SwapTransaction(ctx, quote, e.signer.Address())
	if err != nil {
		return domain.BundleSubmission{}, "", fmt.Errorf("build swap: %w", err)
	}
	tx, sig, err := e.signer.SignBase64(swapB64)
	if err != nil {
		return domain.BundleSubmission{}, "", fmt.Errorf("sign swap: %w", err)
	}
	sub, err := e.relay.Submit(ctx, tx)
	if err != nil {
		return domain.BundleSubmission{}, "", fmt.Errorf("relay: %w", err)
	}
	return sub, sig, nil
}

// entryPrice reads the asset's price for a new position and caches it. The
// ratio implied by an entry quote is in raw token units, a different scale
// from the price feed the stop-loss floor is compared against, so when the
// service is unreachable the position is opened unpriced rather than seeded
// with a cross-scale number.
func (e *Engine) entryPrice(ctx context.Context, assetID string) (float64, bool) {
	price, err := e.priceSrc.Price(ctx, assetID)
	if err != nil {
		e.logger.Warn("entry price lookup failed",
			slog.String("asset", assetID),
			slog.String("error", err.Error()),
		)
		return 0, false
	}
	e.cachePrice(ctx, assetID, price)
	return price, true
}

// exitPrice reads the asset's price for fill bookkeeping after an exit,
// falling back to the price implied by the quote that just executed. The
// fallback is raw-unit scaled and goes on the fill record only, never into
// the cache.
func (e *Engine) exitPrice(ctx context.Context, assetID string, quote jupiter.Quote) float64 {
	price, err := e.priceSrc.Price(ctx, assetID)
	if err != nil {
		e.logger.Warn("price lookup failed, using quote-implied price",
			slog.String("asset", assetID),
			slog.String("error", err.Error()),
		)
		implied := quote.ImpliedPrice()
		if implied != 0 {
			// A sell quote is token in, SOL out; invert to SOL per token.
			implied = 1 / implied
		}
		return implied
	}
	e.cachePrice(ctx, assetID, price)
	return price
}

func (e *Engine) cachePrice(ctx context.Context, assetID string, price float64) {
	if price <= 0 {
		return
	}
	if err := e.prices.SetPrice(ctx, assetID, price, time.Now().UTC()); err != nil {
		e.logger.Warn("price cache write failed",
			slog.String("asset", assetID),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) reportUnconfirmed(ctx context.Context, log *slog.Logger, assetID, side string, sub domain.BundleSubmission) {
	log.Error("bundle not confirmed",
		slog.String("side", side),
		slog.String("bundle_id", sub.BundleID),
	)
	e.auditLog(ctx, side+".unconfirmed", map[string]any{
		"asset":     assetID,
		"bundle_id": sub.BundleID,
		"swap_tx":   sub.SwapTxSignature,
	})
	e.notify(ctx, "relay_failed", "Bundle not confirmed",
		fmt.Sprintf("%s %s bundle %s", side, assetID, sub.BundleID))
}

// recordFill persists the fill and audit trail. Bookkeeping failures are
// logged, not surfaced: the trade already happened on-chain.
func (e *Engine) recordFill(ctx context.Context, log *slog.Logger, fill domain.Fill) {
	if err := e.fills.Create(ctx, fill); err != nil {
		log.Error("fill record failed", slog.String("error", err.Error()))
	}
	e.auditLog(ctx, "fill."+string(fill.Side), map[string]any{
		"asset":     fill.AssetID,
		"reason":    fill.Reason,
		"amount":    fill.Amount,
		"price":     fill.Price,
		"tx":        fill.TxSignature,
		"bundle_id": fill.BundleID,
	})
}

func (e *Engine) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := e.audit.Log(ctx, event, detail); err != nil {
		e.logger.Error("audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) notify(ctx context.Context, event, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, message); err != nil {
		e.logger.Warn("notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func solscanURL(sig string) string {
	return "https://solscan.io/tx/" + sig
}
