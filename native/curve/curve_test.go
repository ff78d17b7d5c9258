package curve

import (
	"testing"

	"github.com/holiman/uint256"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

// 0.0001 and 0.00000001 at 18 decimals.
var (
	testBase  = u(100_000_000_000_000)
	testSlope = u(10_000_000_000)
)

func TestPriceLinearInSold(t *testing.T) {
	zero, err := Price(testBase, testSlope, u(0))
	if err != nil {
		t.Fatalf("price at zero: %v", err)
	}
	if zero.Cmp(testBase) != 0 {
		t.Fatalf("price at zero sold = %s, want base %s", zero, testBase)
	}
	oneUnit := new(uint256.Int).Mul(u(1), scale)
	next, err := Price(testBase, testSlope, oneUnit)
	if err != nil {
		t.Fatalf("price at one unit: %v", err)
	}
	want := new(uint256.Int).Add(testBase, testSlope)
	if next.Cmp(want) != 0 {
		t.Fatalf("price at one unit = %s, want %s", next, want)
	}
	if next.Cmp(zero) <= 0 {
		t.Fatalf("price must strictly increase with positive slope")
	}
}

func TestTotalCostAtZero(t *testing.T) {
	cost, err := TotalCost(testBase, testSlope, u(0))
	if err != nil {
		t.Fatalf("total cost: %v", err)
	}
	if !cost.IsZero() {
		t.Fatalf("total cost at zero sold = %s, want 0", cost)
	}
}

func TestUnitsForSpendMatchesCostIntegral(t *testing.T) {
	spend := new(uint256.Int).Mul(u(10), scale)
	units, err := UnitsForSpend(testBase, testSlope, u(0), spend)
	if err != nil {
		t.Fatalf("units for spend: %v", err)
	}
	if units.IsZero() {
		t.Fatalf("expected a non-zero purchase")
	}
	cost, err := TotalCost(testBase, testSlope, units)
	if err != nil {
		t.Fatalf("total cost: %v", err)
	}
	// The root is truncated, so the realised cost may undershoot the spend
	// by at most one marginal unit price.
	if cost.Cmp(spend) > 0 {
		t.Fatalf("realised cost %s exceeds spend %s", cost, spend)
	}
	diff := new(uint256.Int).Sub(spend, cost)
	marginal, err := Price(testBase, testSlope, units)
	if err != nil {
		t.Fatalf("marginal price: %v", err)
	}
	if diff.Cmp(marginal) > 0 {
		t.Fatalf("cost undershoots spend by %s, more than one unit at %s", diff, marginal)
	}
}

func TestUnitsForSpendZeroSlope(t *testing.T) {
	spend := new(uint256.Int).Mul(u(5), scale)
	units, err := UnitsForSpend(testBase, u(0), u(0), spend)
	if err != nil {
		t.Fatalf("linear fallback: %v", err)
	}
	// 5 / 0.0001 = 50000 units.
	want := new(uint256.Int).Mul(u(50_000), scale)
	if units.Cmp(want) != 0 {
		t.Fatalf("linear units = %s, want %s", units, want)
	}
}

func TestUnitsForSpendZeroSlopeZeroBase(t *testing.T) {
	if _, err := UnitsForSpend(u(0), u(0), u(0), u(1)); err != ErrZeroBasePrice {
		t.Fatalf("expected ErrZeroBasePrice, got %v", err)
	}
}

func TestUnitsForSpendZeroSpendReturnsZero(t *testing.T) {
	for _, sold := range []*uint256.Int{u(0), new(uint256.Int).Mul(u(1_000_000), scale)} {
		units, err := UnitsForSpend(testBase, testSlope, sold, u(0))
		if err != nil {
			t.Fatalf("zero spend at sold=%s: %v", sold, err)
		}
		if !units.IsZero() {
			t.Fatalf("zero spend minted %s units at sold=%s", units, sold)
		}
	}
}

func TestSpendForUnitsRoundTrip(t *testing.T) {
	spend := new(uint256.Int).Mul(u(10), scale)
	sold := new(uint256.Int).Mul(u(1_000), scale)
	units, err := UnitsForSpend(testBase, testSlope, sold, spend)
	if err != nil {
		t.Fatalf("units for spend: %v", err)
	}
	newSold := new(uint256.Int).Add(sold, units)
	refund, err := SpendForUnits(testBase, testSlope, newSold, units)
	if err != nil {
		t.Fatalf("spend for units: %v", err)
	}
	if refund.Cmp(spend) > 0 {
		t.Fatalf("round trip refund %s exceeds spend %s", refund, spend)
	}
	diff := new(uint256.Int).Sub(spend, refund)
	marginal, err := Price(testBase, testSlope, newSold)
	if err != nil {
		t.Fatalf("marginal price: %v", err)
	}
	if diff.Cmp(marginal) > 0 {
		t.Fatalf("round trip leaked %s, more than one marginal unit %s", diff, marginal)
	}
}

func TestSpendForUnitsRejectsOversell(t *testing.T) {
	sold := new(uint256.Int).Mul(u(10), scale)
	units := new(uint256.Int).Mul(u(11), scale)
	if _, err := SpendForUnits(testBase, testSlope, sold, units); err != ErrInsufficientSold {
		t.Fatalf("expected ErrInsufficientSold, got %v", err)
	}
}

func TestSqrt(t *testing.T) {
	cases := []struct {
		in, want uint64
	}{
		{0, 0},
		{1, 1},
		{3, 1},
		{4, 2},
		{15, 3},
		{16, 4},
		{1 << 62, 1 << 31},
	}
	for _, tc := range cases {
		if got := Sqrt(u(tc.in)); got.Cmp(u(tc.want)) != 0 {
			t.Fatalf("sqrt(%d) = %s, want %d", tc.in, got, tc.want)
		}
	}
	// Large perfect square beyond 64 bits.
	big := new(uint256.Int).Mul(u(1e18), u(1e18))
	if got := Sqrt(big); got.Cmp(u(1e18)) != 0 {
		t.Fatalf("sqrt(1e36) = %s, want 1e18", got)
	}
}

func TestOverflowIsHardFailure(t *testing.T) {
	max := new(uint256.Int).Not(new(uint256.Int))
	if _, err := TotalCost(max, max, max); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if _, err := Price(max, max, max); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}
