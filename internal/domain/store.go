package domain

import (
	"context"
	"time"
)

// PositionStore persists open positions keyed by asset mint. Implementations
// must serialise writes per key; the engine additionally holds a per-asset
// lock around the whole exit pipeline.
type PositionStore interface {
	// Create inserts a new open position. It returns ErrAlreadyExists when a
	// position for the asset is already open.
	Create(ctx context.Context, pos Position) error
	// Update replaces the mutable fields (stop-loss price, exit tier) of an
	// open position. It returns ErrNotFound when no position exists.
	Update(ctx context.Context, pos Position) error
	// Delete removes a position, closing it. It returns ErrNotFound when no
	// position exists.
	Delete(ctx context.Context, assetID string) error
	// Get returns the open position for an asset, or ErrNotFound.
	Get(ctx context.Context, assetID string) (Position, error)
	// ListOpen returns every open position in insertion order.
	ListOpen(ctx context.Context) ([]Position, error)
}

// FillStore persists the append-only log of confirmed swap executions.
type FillStore interface {
	Create(ctx context.Context, fill Fill) error
	// ListBefore returns fills executed strictly before the cutoff, oldest
	// first. Used by the archiver.
	ListBefore(ctx context.Context, before time.Time) ([]Fill, error)
	// DeleteBefore prunes fills executed strictly before the cutoff and
	// returns the number of rows removed.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of lifecycle events.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, limit int) ([]AuditEntry, error)
}
