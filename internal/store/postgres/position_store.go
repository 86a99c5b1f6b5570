package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkravets/signalbot/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL. The asset
// mint is the primary key, so the one-open-position-per-asset invariant is
// enforced by the schema itself.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `asset_id, buy_price, stop_loss_price, exit_tier, opened_at, updated_at`

func scanPositionRow(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	err := row.Scan(
		&p.AssetID, &p.BuyPrice, &p.StopLossPrice, &p.ExitTier,
		&p.OpenedAt, &p.UpdatedAt,
	)
	return p, err
}

// Create inserts a new open position.
func (s *PositionStore) Create(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (asset_id, buy_price, stop_loss_price, exit_tier, opened_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`

	_, err := s.pool.Exec(ctx, query,
		p.AssetID, p.BuyPrice, p.StopLossPrice, p.ExitTier, p.OpenedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create position %s: %w", p.AssetID, err)
	}
	return nil
}

// Update replaces the mutable fields of an open position.
func (s *PositionStore) Update(ctx context.Context, p domain.Position) error {
	const query = `
		UPDATE positions SET
			buy_price       = $2,
			stop_loss_price = $3,
			exit_tier       = $4,
			updated_at      = NOW()
		WHERE asset_id = $1`

	tag, err := s.pool.Exec(ctx, query,
		p.AssetID, p.BuyPrice, p.StopLossPrice, p.ExitTier,
	)
	if err != nil {
		return fmt.Errorf("postgres: update position %s: %w", p.AssetID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a position, closing it.
func (s *PositionStore) Delete(ctx context.Context, assetID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE asset_id = $1`, assetID)
	if err != nil {
		return fmt.Errorf("postgres: delete position %s: %w", assetID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get returns the open position for an asset.
func (s *PositionStore) Get(ctx context.Context, assetID string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE asset_id = $1`, assetID)

	p, err := scanPositionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", assetID, err)
	}
	return p, nil
}

// ListOpen returns every open position in the order they were opened.
func (s *PositionStore) ListOpen(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions ORDER BY opened_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPositionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list open positions rows: %w", err)
	}
	return positions, nil
}
