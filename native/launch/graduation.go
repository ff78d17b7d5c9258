package launch

import (
	"fmt"
	"math/big"
)

// graduate performs the one-way transition off the curve. The caller has
// already loaded and validated the market; on return the record is persisted
// with Graduated set and, when a liquidity provider is configured, the pool
// handle recorded. Seeding failure aborts the whole surrounding operation.
func (e *Engine) graduate(market *Market, forced bool) error {
	if market.Graduated {
		return errMarketGraduated
	}
	market.Graduated = true

	if e.liquidity == nil {
		if err := e.state.LaunchPutMarket(market); err != nil {
			return err
		}
		e.emit(graduatedEvent(market, forced))
		return nil
	}

	remaining := market.RemainingCurveSupply()
	value := copyBig(market.Raised)
	minUnits := applyTolerance(remaining, e.params.ToleranceBps)
	minValue := applyTolerance(value, e.params.ToleranceBps)
	deadline := e.now() + int64(e.params.GraduationSeconds)

	unitsUsed, valueUsed, _, err := e.liquidity.AddLiquidity(
		market.Asset, remaining, minUnits, value, minValue, e.vault, deadline)
	if err != nil {
		return fmt.Errorf("launch: seed liquidity: %w", err)
	}
	if unitsUsed == nil || valueUsed == nil {
		return fmt.Errorf("launch: liquidity provider returned nil amounts")
	}
	if unitsUsed.Cmp(remaining) > 0 || unitsUsed.Cmp(minUnits) < 0 {
		return fmt.Errorf("launch: liquidity units %s outside tolerance", unitsUsed)
	}
	if valueUsed.Cmp(value) > 0 || valueUsed.Cmp(minValue) < 0 {
		return fmt.Errorf("launch: liquidity value %s outside tolerance", valueUsed)
	}

	provider := e.liquidity.Address()
	if unitsUsed.Sign() > 0 {
		if err := e.assets.Transfer(market.Asset, e.vault, provider, unitsUsed); err != nil {
			return err
		}
	}
	if valueUsed.Sign() > 0 {
		if err := e.debit(e.vault, valueUsed); err != nil {
			return err
		}
		if err := e.credit(provider, valueUsed); err != nil {
			return err
		}
	}
	if pool, ok := e.liquidity.GetPool(market.Asset); ok {
		market.Pool = pool
	}

	if err := e.state.LaunchPutMarket(market); err != nil {
		return err
	}
	e.emit(graduatedEvent(market, forced))
	if market.Pool != "" {
		e.emit(poolSeededEvent(market, unitsUsed.String(), valueUsed.String()))
	}
	return nil
}

// ForceGraduate retires a market from its curve before the raise target is
// met. Only the configured governance identity may trigger it.
func (e *Engine) ForceGraduate(marketID uint64, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.governance {
		return errNotGovernance
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	market, ok, err := e.state.LaunchGetMarket(marketID)
	if err != nil {
		return err
	}
	if !ok || market == nil {
		return errMarketNotFound
	}
	return e.graduate(market, true)
}

func applyTolerance(amount *big.Int, toleranceBps uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	keep := 10_000 - int64(toleranceBps)
	if keep < 0 {
		keep = 0
	}
	out := new(big.Int).Mul(amount, big.NewInt(keep))
	return out.Div(out, big.NewInt(10_000))
}
