package launch

import (
	"errors"
	"math/big"

	"agora/core/types"
)

var errExceedsSurplus = errors.New("launch: amount exceeds unreserved surplus")

// Reserve accounting. Funds raised by a market stay reserved until that
// market graduates; the pause flag has no bearing on the reservation. Only
// the surplus above the cross-market reserved sum (direct transfers,
// rounding dust) is ever withdrawable by the administrator.

// ReservedValue sums the raised balances of every non-graduated market.
func (e *Engine) ReservedValue() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.LaunchMarketIDs()
	if err != nil {
		return nil, err
	}
	reserved := big.NewInt(0)
	for _, id := range ids {
		market, ok, err := e.state.LaunchGetMarket(id)
		if err != nil {
			return nil, err
		}
		if !ok || market == nil || market.Graduated {
			continue
		}
		if market.Raised != nil {
			reserved.Add(reserved, market.Raised)
		}
	}
	return reserved, nil
}

// WithdrawableValue returns the vault balance in excess of the reserved sum.
func (e *Engine) WithdrawableValue() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	account, err := e.state.GetAccount(e.vault[:])
	if err != nil {
		return nil, err
	}
	account = types.EnsureAccount(account)
	reserved, err := e.ReservedValue()
	if err != nil {
		return nil, err
	}
	surplus := new(big.Int).Sub(account.Balance, reserved)
	if surplus.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return surplus, nil
}

// ReservedAsset sums the unsold curve allocation of every non-graduated
// market trading the supplied asset.
func (e *Engine) ReservedAsset(asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.LaunchMarketIDs()
	if err != nil {
		return nil, err
	}
	reserved := big.NewInt(0)
	for _, id := range ids {
		market, ok, err := e.state.LaunchGetMarket(id)
		if err != nil {
			return nil, err
		}
		if !ok || market == nil || market.Graduated || market.Asset != asset {
			continue
		}
		reserved.Add(reserved, market.RemainingCurveSupply())
	}
	return reserved, nil
}

// WithdrawableAsset returns the vault's token balance in excess of the
// reserved curve allocation for the asset.
func (e *Engine) WithdrawableAsset(asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.assets == nil {
		return nil, errNilAssets
	}
	held, err := e.assets.BalanceOf(asset, e.vault)
	if err != nil {
		return nil, err
	}
	reserved, err := e.ReservedAsset(asset)
	if err != nil {
		return nil, err
	}
	surplus := new(big.Int).Sub(held, reserved)
	if surplus.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return surplus, nil
}

// EmergencyWithdrawValue moves unreserved vault value to the supplied
// recipient. The reserved sum is recomputed inside the call so a concurrent
// pause can never widen the withdrawable amount.
func (e *Engine) EmergencyWithdrawValue(caller [20]byte, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.authority {
		return errNotAuthority
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	withdrawable, err := e.WithdrawableValue()
	if err != nil {
		return err
	}
	if amount.Cmp(withdrawable) > 0 {
		return errExceedsSurplus
	}
	if err := e.debit(e.vault, amount); err != nil {
		return err
	}
	if err := e.credit(to, amount); err != nil {
		return err
	}
	e.emit(surplusWithdrawnEvent("value", to, amount.String()))
	return nil
}

// EmergencyWithdrawAsset moves unreserved vault tokens to the supplied
// recipient.
func (e *Engine) EmergencyWithdrawAsset(caller [20]byte, asset string, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.assets == nil {
		return errNilAssets
	}
	if caller != e.authority {
		return errNotAuthority
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	withdrawable, err := e.WithdrawableAsset(asset)
	if err != nil {
		return err
	}
	if amount.Cmp(withdrawable) > 0 {
		return errExceedsSurplus
	}
	if err := e.assets.Transfer(asset, e.vault, to, amount); err != nil {
		return err
	}
	e.emit(surplusWithdrawnEvent("asset", to, amount.String()))
	return nil
}
