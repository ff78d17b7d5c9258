package curve

import (
	"errors"

	"github.com/holiman/uint256"
)

// All quantities are unsigned fixed-point with 18 decimals: unit amounts,
// prices, and spend values share the same scale so the cost integral stays in
// scaled units throughout. Arithmetic is done on 256-bit words and any carry
// out of an addition or multiplication aborts the computation.

var (
	// ErrOverflow is returned when an intermediate product or sum exceeds
	// 256 bits. Curve maths must never wrap silently.
	ErrOverflow = errors.New("curve: arithmetic overflow")
	// ErrZeroBasePrice is returned when the base price is zero and the
	// linear fallback would divide by zero.
	ErrZeroBasePrice = errors.New("curve: base price must be positive")
	// ErrInsufficientSold is returned when a sale inverse requests more
	// units than the curve has cumulatively sold.
	ErrInsufficientSold = errors.New("curve: units exceed cumulative sold")
)

// scale is the fixed-point multiplier (10^18).
var scale = uint256.NewInt(1e18)

var two = uint256.NewInt(2)

// Price returns the spot price b + s·n at the supplied cumulative sold amount.
func Price(base, slope, sold *uint256.Int) (*uint256.Int, error) {
	premium, overflow := new(uint256.Int).MulOverflow(slope, sold)
	if overflow {
		return nil, ErrOverflow
	}
	premium.Div(premium, scale)
	price, overflow := new(uint256.Int).AddOverflow(base, premium)
	if overflow {
		return nil, ErrOverflow
	}
	return price, nil
}

// TotalCost returns the integral of the price function from zero to sold:
// b·n + s·n²/2, in scaled value units.
func TotalCost(base, slope, sold *uint256.Int) (*uint256.Int, error) {
	linear, overflow := new(uint256.Int).MulOverflow(base, sold)
	if overflow {
		return nil, ErrOverflow
	}
	linear.Div(linear, scale)

	squared, overflow := new(uint256.Int).MulOverflow(sold, sold)
	if overflow {
		return nil, ErrOverflow
	}
	quadratic, overflow := new(uint256.Int).MulOverflow(slope, squared)
	if overflow {
		return nil, ErrOverflow
	}
	quadratic.Div(quadratic, new(uint256.Int).Mul(scale, scale))
	quadratic.Div(quadratic, two)

	total, overflow := new(uint256.Int).AddOverflow(linear, quadratic)
	if overflow {
		return nil, ErrOverflow
	}
	return total, nil
}

// UnitsForSpend solves totalCost(n0+Δ) − totalCost(n0) = spend for Δ.
//
// The quadratic in n = n0+Δ is s·n²/2 + b·n − C = 0 with C the cumulative
// cost target, giving n = (√(b² + 2·s·C) − b) / s. A zero slope degrades to
// the exact linear solution Δ = spend/b. Returns zero when the computed root
// does not exceed n0 at the current precision.
func UnitsForSpend(base, slope, sold, spend *uint256.Int) (*uint256.Int, error) {
	if slope.IsZero() {
		if base.IsZero() {
			return nil, ErrZeroBasePrice
		}
		units, overflow := new(uint256.Int).MulOverflow(spend, scale)
		if overflow {
			return nil, ErrOverflow
		}
		return units.Div(units, base), nil
	}

	costAtSold, err := TotalCost(base, slope, sold)
	if err != nil {
		return nil, err
	}
	target, overflow := new(uint256.Int).AddOverflow(costAtSold, spend)
	if overflow {
		return nil, ErrOverflow
	}

	// Discriminant b² + 2·s·C, both terms carrying scale².
	bSquared, overflow := new(uint256.Int).MulOverflow(base, base)
	if overflow {
		return nil, ErrOverflow
	}
	cross, overflow := new(uint256.Int).MulOverflow(slope, target)
	if overflow {
		return nil, ErrOverflow
	}
	cross, overflow = cross.MulOverflow(cross, two)
	if overflow {
		return nil, ErrOverflow
	}
	discriminant, overflow := new(uint256.Int).AddOverflow(bSquared, cross)
	if overflow {
		return nil, ErrOverflow
	}

	root := Sqrt(discriminant)
	if root.Cmp(base) <= 0 {
		return new(uint256.Int), nil
	}
	numerator, overflow := new(uint256.Int).MulOverflow(new(uint256.Int).Sub(root, base), scale)
	if overflow {
		return nil, ErrOverflow
	}
	total := numerator.Div(numerator, slope)
	if total.Cmp(sold) <= 0 {
		return new(uint256.Int), nil
	}
	return new(uint256.Int).Sub(total, sold), nil
}

// SpendForUnits returns the exact value released by selling units back into
// the curve: totalCost(n0) − totalCost(n0−Δ). Requesting more than the
// cumulative sold amount is a hard precondition failure, not a clamp.
func SpendForUnits(base, slope, sold, units *uint256.Int) (*uint256.Int, error) {
	if units.Cmp(sold) > 0 {
		return nil, ErrInsufficientSold
	}
	costAtSold, err := TotalCost(base, slope, sold)
	if err != nil {
		return nil, err
	}
	remaining := new(uint256.Int).Sub(sold, units)
	costAtRemaining, err := TotalCost(base, slope, remaining)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Sub(costAtSold, costAtRemaining), nil
}

// Sqrt computes the integer square root via the Babylonian method, iterating
// until the estimate stops decreasing.
func Sqrt(x *uint256.Int) *uint256.Int {
	if x.IsZero() {
		return new(uint256.Int)
	}
	z := new(uint256.Int).Set(x)
	y := new(uint256.Int).Add(x, uint256.NewInt(1))
	y.Rsh(y, 1)
	quot := new(uint256.Int)
	for y.Cmp(z) < 0 {
		z.Set(y)
		quot.Div(x, z)
		y.Add(quot, z)
		y.Rsh(y, 1)
	}
	return z
}
