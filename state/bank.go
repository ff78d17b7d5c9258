package state

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
)

var (
	// ErrInsufficientFunds is returned when a transfer exceeds the sender's
	// balance.
	ErrInsufficientFunds = errors.New("state: insufficient funds")
	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("state: amount must be non-negative")
)

// Bank is the fungible-asset ledger backing launched market tokens. Balances
// and per-asset total supply live in the same backend as everything else, so
// bank writes participate in the manager's transactions.
type Bank struct {
	manager *Manager
}

// NewBank wraps the state manager in an asset ledger.
func NewBank(manager *Manager) *Bank {
	return &Bank{manager: manager}
}

func (b *Bank) loadBalance(key []byte) (*big.Int, error) {
	raw, ok, err := b.manager.get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	balance := new(big.Int)
	if err := rlp.DecodeBytes(raw, balance); err != nil {
		return nil, err
	}
	return balance, nil
}

func (b *Bank) storeBalance(key []byte, balance *big.Int) error {
	raw, err := rlp.EncodeToBytes(balance)
	if err != nil {
		return err
	}
	return b.manager.put(key, raw)
}

// Mint creates amount new units of asset and credits them to the recipient.
func (b *Bank) Mint(asset string, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	balance, err := b.loadBalance(bankBalanceKey(asset, to))
	if err != nil {
		return err
	}
	if err := b.storeBalance(bankBalanceKey(asset, to), balance.Add(balance, amount)); err != nil {
		return err
	}
	supply, err := b.loadBalance(bankSupplyKey(asset))
	if err != nil {
		return err
	}
	return b.storeBalance(bankSupplyKey(asset), supply.Add(supply, amount))
}

// Transfer moves amount units of asset between holders.
func (b *Bank) Transfer(asset string, from [20]byte, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	fromBalance, err := b.loadBalance(bankBalanceKey(asset, from))
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	if err := b.storeBalance(bankBalanceKey(asset, from), fromBalance.Sub(fromBalance, amount)); err != nil {
		return err
	}
	toBalance, err := b.loadBalance(bankBalanceKey(asset, to))
	if err != nil {
		return err
	}
	return b.storeBalance(bankBalanceKey(asset, to), toBalance.Add(toBalance, amount))
}

// BalanceOf returns the holder's balance in asset. Unknown holders have a
// zero balance.
func (b *Bank) BalanceOf(asset string, holder [20]byte) (*big.Int, error) {
	return b.loadBalance(bankBalanceKey(asset, holder))
}

// TotalSupply returns the minted supply of asset.
func (b *Bank) TotalSupply(asset string) (*big.Int, error) {
	return b.loadBalance(bankSupplyKey(asset))
}
