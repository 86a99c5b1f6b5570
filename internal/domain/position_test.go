package domain

import "testing"

func TestExitFractionLadder(t *testing.T) {
	cases := []struct {
		tier int
		want float64
	}{
		{0, 0.40},
		{1, 0.50},
		{2, 0.60},
		{3, 1.0},
		{4, 1.0},
		{10, 1.0},
	}
	for _, tc := range cases {
		if got := ExitFraction(tc.tier); got != tc.want {
			t.Errorf("ExitFraction(%d) = %v, want %v", tc.tier, got, tc.want)
		}
	}
}

func TestExitFractionCompounds(t *testing.T) {
	// The ladder applies to the balance remaining at each exit, so three
	// exits from 1,000,000 units leave 1e6 * 0.6 * 0.5 * 0.4 = 120,000.
	balance := uint64(1_000_000)
	for tier := 0; tier < 3; tier++ {
		sold := uint64(float64(balance) * ExitFraction(tier))
		balance -= sold
	}
	if balance != 120_000 {
		t.Fatalf("remaining balance after three tier exits = %d, want 120000", balance)
	}
	// Tier 3 liquidates the remainder.
	if sold := uint64(float64(balance) * ExitFraction(3)); sold != balance {
		t.Fatalf("tier 3 sold %d, want full remainder %d", sold, balance)
	}
}
