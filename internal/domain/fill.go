package domain

import "time"

// FillSide is the direction of an executed swap.
type FillSide string

const (
	FillBuy  FillSide = "buy"
	FillSell FillSide = "sell"
)

// Fill records one confirmed swap execution. Fills are append-only history;
// they are never read back on the trading path, only for notifications and
// archival.
type Fill struct {
	ID          string // UUID
	AssetID     string
	Side        FillSide
	Reason      string // "signal" or "stop_loss" for sells, "signal" for buys
	Amount      uint64 // raw token units swapped (lamports for buys)
	Price       float64
	TxSignature string
	BundleID    string
	ExecutedAt  time.Time
}
