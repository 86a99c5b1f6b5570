package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkravets/signalbot/internal/domain"
)

// FillStore implements domain.FillStore using PostgreSQL.
type FillStore struct {
	pool *pgxpool.Pool
}

// NewFillStore creates a new FillStore backed by the given connection pool.
func NewFillStore(pool *pgxpool.Pool) *FillStore {
	return &FillStore{pool: pool}
}

// Create appends one confirmed execution to the fill log.
func (s *FillStore) Create(ctx context.Context, f domain.Fill) error {
	const query = `
		INSERT INTO fills (
			id, asset_id, side, reason, amount, price,
			tx_signature, bundle_id, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		f.ID, f.AssetID, string(f.Side), f.Reason,
		int64(f.Amount), f.Price,
		f.TxSignature, f.BundleID, f.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create fill %s: %w", f.ID, err)
	}
	return nil
}

// ListBefore returns fills executed strictly before the cutoff, oldest first.
func (s *FillStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Fill, error) {
	const query = `
		SELECT id, asset_id, side, reason, amount, price,
		       tx_signature, bundle_id, executed_at
		FROM fills
		WHERE executed_at < $1
		ORDER BY executed_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills before %s: %w", before, err)
	}
	defer rows.Close()

	var fills []domain.Fill
	for rows.Next() {
		var f domain.Fill
		var side string
		var amount int64

		if err := rows.Scan(
			&f.ID, &f.AssetID, &side, &f.Reason, &amount, &f.Price,
			&f.TxSignature, &f.BundleID, &f.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan fill: %w", err)
		}
		f.Side = domain.FillSide(side)
		f.Amount = uint64(amount)
		fills = append(fills, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list fills rows: %w", err)
	}
	return fills, nil
}

// DeleteBefore prunes fills executed strictly before the cutoff.
func (s *FillStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM fills WHERE executed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete fills before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}
