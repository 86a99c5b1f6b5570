package domain

import "time"

// Position is one open holding of a traded token. There is at most one open
// position per asset mint; a position exists exactly while it is open and is
// deleted from the store when it closes.
type Position struct {
	AssetID       string  // token mint address, unique key
	BuyPrice      float64 // price observed after the entry trade confirmed
	StopLossPrice float64 // force-exit threshold; buy_price/2 at entry, buy_price after the first partial exit
	ExitTier      int     // number of confirmed partial exits, never decremented
	OpenedAt      time.Time
	UpdatedAt     time.Time
}

// ExitTrigger says why a sell was initiated.
type ExitTrigger string

const (
	// TriggerSignal is a sell driven by an external sell signal; it liquidates
	// the ladder fraction for the position's current tier.
	TriggerSignal ExitTrigger = "signal"
	// TriggerStopLoss is a monitor-driven forced exit; it liquidates the full
	// remaining balance and closes the position.
	TriggerStopLoss ExitTrigger = "stop_loss"
)

// ExitFraction returns the share of the *current* balance to liquidate at the
// given take-profit tier. Each exit sells a fraction of what remains, so the
// cumulative schedule decays geometrically instead of splitting the entry
// size into fixed slices. Tiers past the end of the ladder liquidate
// everything.
func ExitFraction(tier int) float64 {
	switch tier {
	case 0:
		return 0.40
	case 1:
		return 0.50
	case 2:
		return 0.60
	default:
		return 1.0
	}
}

// SellOutcome summarises what a sell attempt did.
type SellOutcome string

const (
	SellFilled        SellOutcome = "filled"         // bundle confirmed, state updated
	SellNoPosition    SellOutcome = "no_position"    // nothing held for the asset
	SellAlreadyClosed SellOutcome = "already_closed" // on-chain balance was zero; position cleaned up
	SellSkipped       SellOutcome = "skipped"        // an exit for the asset is already in flight
	SellFailed        SellOutcome = "failed"         // quote/build/sign/relay failure; state untouched
)
