package types

import "math/big"

// Account tracks the value balance for a single address. The launch engine
// debits and credits these records for every trade; token balances live in
// the asset ledger instead.
type Account struct {
	Balance *big.Int `json:"balance"`
	Nonce   uint64   `json:"nonce"`
}

// EnsureAccount normalises a possibly-nil account into a usable zero value.
func EnsureAccount(acc *Account) *Account {
	if acc == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}
