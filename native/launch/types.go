package launch

import "math/big"

// Market is the authoritative record for a single curve-priced launch. The
// quorum workflow creates it, the trading engine mutates Raised/UnitsSold,
// the graduation path flips Graduated exactly once, and pause plumbing
// toggles Active. Records are never deleted.
type Market struct {
	ID          uint64
	Asset       string
	Members     [][20]byte
	Weights     []uint64
	TargetRaise *big.Int
	Raised      *big.Int
	UnitsSold   *big.Int
	BasePrice   *big.Int
	Slope       *big.Int
	CurveSupply *big.Int
	TotalSupply *big.Int
	Graduated   bool
	Active      bool
	Thesis      string
	Pool        string
	CreatedAt   int64
}

// Clone returns a deep copy so callers can inspect a market without aliasing
// engine-owned big integers.
func (m *Market) Clone() *Market {
	if m == nil {
		return nil
	}
	clone := *m
	clone.Members = make([][20]byte, len(m.Members))
	copy(clone.Members, m.Members)
	clone.Weights = append([]uint64(nil), m.Weights...)
	clone.TargetRaise = copyBig(m.TargetRaise)
	clone.Raised = copyBig(m.Raised)
	clone.UnitsSold = copyBig(m.UnitsSold)
	clone.BasePrice = copyBig(m.BasePrice)
	clone.Slope = copyBig(m.Slope)
	clone.CurveSupply = copyBig(m.CurveSupply)
	clone.TotalSupply = copyBig(m.TotalSupply)
	return &clone
}

// IsMember reports whether the address currently sits on the market's quorum.
func (m *Market) IsMember(addr [20]byte) bool {
	if m == nil {
		return false
	}
	for _, member := range m.Members {
		if member == addr {
			return true
		}
	}
	return false
}

// RemainingCurveSupply returns the curve allocation still held by the vault.
func (m *Market) RemainingCurveSupply() *big.Int {
	if m == nil || m.CurveSupply == nil {
		return big.NewInt(0)
	}
	sold := m.UnitsSold
	if sold == nil {
		sold = big.NewInt(0)
	}
	remaining := new(big.Int).Sub(m.CurveSupply, sold)
	if remaining.Sign() < 0 {
		return big.NewInt(0)
	}
	return remaining
}

// MarketParams carries the asset metadata a quorum supplies at formation.
type MarketParams struct {
	Symbol      string
	Name        string
	TotalSupply *big.Int
	BasePrice   *big.Int
	Slope       *big.Int
	TargetRaise *big.Int
	Thesis      string
}

// PauseRequest arms the two-step administrative pause: the request records
// when the pause becomes executable and a separate call applies it.
type PauseRequest struct {
	MarketID     uint64
	RequestedAt  int64
	ExecuteAfter int64
}

// TradeReceipt summarises an executed buy or sell for the caller and the RPC
// layer.
type TradeReceipt struct {
	MarketID  uint64
	Trader    [20]byte
	Units     *big.Int
	Spend     *big.Int
	Fee       *big.Int
	Net       *big.Int
	Graduated bool
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
