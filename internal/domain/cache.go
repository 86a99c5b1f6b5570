package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the most recently observed price per
// asset. The monitor writes every observation; readers use it as a stale-but-
// bounded fallback when the live price service is unreachable.
type PriceCache interface {
	SetPrice(ctx context.Context, assetID string, price float64, ts time.Time) error
	// GetPrice returns the cached price and its observation time, or
	// ErrNotFound when nothing has been cached for the asset.
	GetPrice(ctx context.Context, assetID string) (float64, time.Time, error)
}

// LockManager provides per-key locking. The engine acquires an exit lock for
// an asset before launching a sell pipeline so that a second exit cannot
// start while one is awaiting bundle confirmation.
type LockManager interface {
	// Acquire obtains the lock for key with the given TTL, returning an
	// unlock function on success and ErrLockHeld when another holder owns it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
