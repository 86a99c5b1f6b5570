package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mkravets/signalbot/internal/domain"
)

const testMint = "MintAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

type fakePositions struct {
	open []domain.Position
	err  error
}

func (s *fakePositions) Create(ctx context.Context, p domain.Position) error { return nil }
func (s *fakePositions) Update(ctx context.Context, p domain.Position) error { return nil }
func (s *fakePositions) Delete(ctx context.Context, assetID string) error    { return nil }

func (s *fakePositions) Get(ctx context.Context, assetID string) (domain.Position, error) {
	return domain.Position{}, domain.ErrNotFound
}

func (s *fakePositions) ListOpen(ctx context.Context) ([]domain.Position, error) {
	return s.open, s.err
}

type fakePrices struct {
	price float64
	ts    time.Time
	set   []float64
}

func (c *fakePrices) SetPrice(ctx context.Context, assetID string, price float64, ts time.Time) error {
	c.set = append(c.set, price)
	c.price, c.ts = price, ts
	return nil
}

func (c *fakePrices) GetPrice(ctx context.Context, assetID string) (float64, time.Time, error) {
	if c.ts.IsZero() {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return c.price, c.ts, nil
}

type fakePriceSource struct {
	price float64
	err   error
}

func (p *fakePriceSource) Price(ctx context.Context, mint string) (float64, error) {
	return p.price, p.err
}

type fakeChain struct {
	balance uint64
	err     error
}

func (c *fakeChain) TokenBalance(ctx context.Context, owner, mint string) (uint64, error) {
	return c.balance, c.err
}

type fakeSeller struct {
	mu    sync.Mutex
	sells []string
}

func (s *fakeSeller) Sell(ctx context.Context, assetID string, trigger domain.ExitTrigger) (domain.SellOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sells = append(s.sells, assetID+":"+string(trigger))
	return domain.SellFilled, nil
}

func (s *fakeSeller) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sells)
}

func newMonitor(positions *fakePositions, prices *fakePrices, src *fakePriceSource, chain *fakeChain, seller *fakeSeller) *Monitor {
	return New(Config{
		WalletAddress: "WalletPub111111111111111111111111111111111",
		ScanInterval:  time.Millisecond,
		MaxPriceStale: 15 * time.Second,
	}, positions, prices, src, chain, seller,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func openPosition(floor float64) domain.Position {
	return domain.Position{
		AssetID:       testMint,
		BuyPrice:      2.0,
		StopLossPrice: floor,
		OpenedAt:      time.Now().UTC(),
	}
}

func TestScanTriggersStopLoss(t *testing.T) {
	seller := &fakeSeller{}
	m := newMonitor(
		&fakePositions{open: []domain.Position{openPosition(1.0)}},
		&fakePrices{},
		&fakePriceSource{price: 0.9},
		&fakeChain{balance: 1_000_000},
		seller,
	)

	if err := m.scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}
	m.inflight.Wait()

	if seller.count() != 1 {
		t.Fatalf("sells = %d, want 1", seller.count())
	}
	if seller.sells[0] != testMint+":stop_loss" {
		t.Errorf("sell = %q", seller.sells[0])
	}
}

func TestScanHoldsAboveFloor(t *testing.T) {
	seller := &fakeSeller{}
	m := newMonitor(
		&fakePositions{open: []domain.Position{openPosition(1.0)}},
		&fakePrices{},
		&fakePriceSource{price: 1.5},
		&fakeChain{balance: 1_000_000},
		seller,
	)

	if err := m.scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}
	m.inflight.Wait()

	if seller.count() != 0 {
		t.Errorf("sells = %d, want 0", seller.count())
	}
}

func TestScanHoldsAtExactFloor(t *testing.T) {
	seller := &fakeSeller{}
	m := newMonitor(
		&fakePositions{open: []domain.Position{openPosition(1.0)}},
		&fakePrices{},
		&fakePriceSource{price: 1.0},
		&fakeChain{balance: 1_000_000},
		seller,
	)

	if err := m.scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}
	m.inflight.Wait()

	// Only a price strictly below the floor triggers the exit.
	if seller.count() != 0 {
		t.Errorf("sells = %d, want 0 at the exact floor", seller.count())
	}
}

func TestScanCachesObservedPrice(t *testing.T) {
	prices := &fakePrices{}
	m := newMonitor(
		&fakePositions{open: []domain.Position{openPosition(1.0)}},
		prices,
		&fakePriceSource{price: 1.5},
		&fakeChain{balance: 1_000_000},
		&fakeSeller{},
	)

	if err := m.scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(prices.set) != 1 || prices.set[0] != 1.5 {
		t.Errorf("cache writes = %v, want one write of 1.5", prices.set)
	}
}

func TestScanSkipsEmptyBalance(t *testing.T) {
	seller := &fakeSeller{}
	src := &fakePriceSource{price: 0.1}
	m := newMonitor(
		&fakePositions{open: []domain.Position{openPosition(1.0)}},
		&fakePrices{},
		src,
		&fakeChain{balance: 0},
		seller,
	)

	if err := m.scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}
	m.inflight.Wait()

	if seller.count() != 0 {
		t.Error("sold a position with no balance")
	}
}

func TestScanFallsBackToFreshCache(t *testing.T) {
	seller := &fakeSeller{}
	prices := &fakePrices{price: 0.5, ts: time.Now().Add(-5 * time.Second)}
	m := newMonitor(
		&fakePositions{open: []domain.Position{openPosition(1.0)}},
		prices,
		&fakePriceSource{err: errors.New("price api down")},
		&fakeChain{balance: 1_000_000},
		seller,
	)

	if err := m.scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}
	m.inflight.Wait()

	if seller.count() != 1 {
		t.Errorf("sells = %d, want 1 from cached price", seller.count())
	}
}

func TestScanSkipsStaleCache(t *testing.T) {
	seller := &fakeSeller{}
	prices := &fakePrices{price: 0.5, ts: time.Now().Add(-time.Minute)}
	m := newMonitor(
		&fakePositions{open: []domain.Position{openPosition(1.0)}},
		prices,
		&fakePriceSource{err: errors.New("price api down")},
		&fakeChain{balance: 1_000_000},
		seller,
	)

	if err := m.scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}
	m.inflight.Wait()

	if seller.count() != 0 {
		t.Error("sold on a stale cached price")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	m := newMonitor(
		&fakePositions{},
		&fakePrices{},
		&fakePriceSource{price: 1.0},
		&fakeChain{},
		&fakeSeller{},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run err = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunSurvivesListErrors(t *testing.T) {
	positions := &fakePositions{err: errors.New("db down")}
	m := newMonitor(positions, &fakePrices{}, &fakePriceSource{}, &fakeChain{}, &fakeSeller{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	// Let several failing scans elapse, then stop.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
