package launch

import (
	"errors"
	"math/big"
	"testing"

	"agora/core/types"
)

func TestPauseTimelockFlow(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	market := createTestMarket(t, engine)

	now := int64(1_700_000_000)
	engine.SetNowFunc(func() int64 { return now })

	if _, err := engine.RequestPause(market.ID, addr(5)); !errors.Is(err, errNotAuthority) {
		t.Fatalf("expected authority gate, got %v", err)
	}
	req, err := engine.RequestPause(market.ID, authorityAddr)
	if err != nil {
		t.Fatalf("request pause: %v", err)
	}
	if req.ExecuteAfter != now+86_400 {
		t.Fatalf("execute after = %d, want %d", req.ExecuteAfter, now+86_400)
	}
	if _, err := engine.RequestPause(market.ID, authorityAddr); !errors.Is(err, errPauseAlreadyPending) {
		t.Fatalf("expected duplicate-request rejection, got %v", err)
	}
	if err := engine.ExecutePause(market.ID, authorityAddr); !errors.Is(err, errPauseTimelockActive) {
		t.Fatalf("expected timelock rejection, got %v", err)
	}

	now += 86_401
	if err := engine.ExecutePause(market.ID, authorityAddr); err != nil {
		t.Fatalf("execute pause: %v", err)
	}
	stored, _, _ := state.LaunchGetMarket(market.ID)
	if stored.Active {
		t.Fatalf("market should be paused")
	}

	buyer := addr(9)
	fund(t, state, buyer, e18(10))
	if _, err := engine.Buy(market.ID, buyer, e18(1), nil); !errors.Is(err, errMarketInactive) {
		t.Fatalf("paused buy: got %v", err)
	}

	if err := engine.Unpause(market.ID, authorityAddr); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := engine.Buy(market.ID, buyer, e18(1), nil); err != nil {
		t.Fatalf("post-unpause buy: %v", err)
	}
}

func TestCancelPause(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	market := createTestMarket(t, engine)

	if err := engine.CancelPause(market.ID, authorityAddr); !errors.Is(err, errPauseNotRequested) {
		t.Fatalf("expected missing-request rejection, got %v", err)
	}
	if _, err := engine.RequestPause(market.ID, authorityAddr); err != nil {
		t.Fatalf("request pause: %v", err)
	}
	if err := engine.CancelPause(market.ID, authorityAddr); err != nil {
		t.Fatalf("cancel pause: %v", err)
	}
	if err := engine.ExecutePause(market.ID, authorityAddr); !errors.Is(err, errPauseNotRequested) {
		t.Fatalf("cancelled request still executable: %v", err)
	}
}

func TestEmergencyPauseBypassesTimelock(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	market := createTestMarket(t, engine)

	if _, err := engine.RequestPause(market.ID, authorityAddr); err != nil {
		t.Fatalf("request pause: %v", err)
	}
	if err := engine.EmergencyPause(market.ID, authorityAddr); err != nil {
		t.Fatalf("emergency pause: %v", err)
	}
	stored, _, _ := state.LaunchGetMarket(market.ID)
	if stored.Active {
		t.Fatalf("market should be paused")
	}
	// The staged request is cleared alongside.
	if _, pending, _ := state.LaunchPauseRequestGet(market.ID); pending {
		t.Fatalf("pending request should be cleared")
	}
}

func TestPauseDoesNotChangeReservedValue(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	market := createTestMarket(t, engine)
	buyer := addr(9)
	fund(t, state, buyer, e18(100))
	if _, err := engine.Buy(market.ID, buyer, e18(5), nil); err != nil {
		t.Fatalf("buy: %v", err)
	}
	// Surplus above the raised sum, e.g. a direct transfer into the vault.
	vaultAcc, _ := state.GetAccount(vaultAddr[:])
	vaultAcc.Balance = new(big.Int).Add(vaultAcc.Balance, e18(7))
	if err := state.PutAccount(vaultAddr[:], vaultAcc); err != nil {
		t.Fatalf("top up vault: %v", err)
	}

	before, err := engine.WithdrawableValue()
	if err != nil {
		t.Fatalf("withdrawable: %v", err)
	}
	if before.Cmp(e18(7)) != 0 {
		t.Fatalf("withdrawable = %s, want 7e18", before)
	}

	if err := engine.EmergencyPause(market.ID, authorityAddr); err != nil {
		t.Fatalf("pause: %v", err)
	}
	after, err := engine.WithdrawableValue()
	if err != nil {
		t.Fatalf("withdrawable: %v", err)
	}
	if after.Cmp(before) != 0 {
		t.Fatalf("pausing changed withdrawable surplus: %s -> %s", before, after)
	}
}

func TestEmergencyWithdrawValueBoundedBySurplus(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	market := createTestMarket(t, engine)
	buyer := addr(9)
	recipient := addr(7)
	fund(t, state, buyer, e18(100))
	if _, err := engine.Buy(market.ID, buyer, e18(5), nil); err != nil {
		t.Fatalf("buy: %v", err)
	}
	vaultAcc, _ := state.GetAccount(vaultAddr[:])
	vaultAcc.Balance = new(big.Int).Add(vaultAcc.Balance, e18(3))
	if err := state.PutAccount(vaultAddr[:], vaultAcc); err != nil {
		t.Fatalf("top up vault: %v", err)
	}

	if err := engine.EmergencyWithdrawValue(addr(5), recipient, e18(1)); !errors.Is(err, errNotAuthority) {
		t.Fatalf("expected authority gate, got %v", err)
	}
	if err := engine.EmergencyWithdrawValue(authorityAddr, recipient, e18(4)); !errors.Is(err, errExceedsSurplus) {
		t.Fatalf("expected surplus bound, got %v", err)
	}
	if err := engine.EmergencyWithdrawValue(authorityAddr, recipient, e18(3)); err != nil {
		t.Fatalf("withdraw surplus: %v", err)
	}
	got, _ := state.GetAccount(recipient[:])
	if got.Balance.Cmp(e18(3)) != 0 {
		t.Fatalf("recipient = %s, want 3e18", got.Balance)
	}
	// Reserved user funds must remain untouched.
	vaultAcc, _ = state.GetAccount(vaultAddr[:])
	stored, _, _ := state.LaunchGetMarket(market.ID)
	if vaultAcc.Balance.Cmp(stored.Raised) < 0 {
		t.Fatalf("vault %s dropped below raised %s", vaultAcc.Balance, stored.Raised)
	}
}

func TestEmergencyWithdrawAssetBoundedByCurveAllocation(t *testing.T) {
	engine, _, ledger := newTestEngine(t)
	market := createTestMarket(t, engine)
	recipient := addr(7)

	// Vault holds exactly the curve allocation, so nothing is withdrawable.
	if err := engine.EmergencyWithdrawAsset(authorityAddr, market.Asset, recipient, big.NewInt(1)); !errors.Is(err, errExceedsSurplus) {
		t.Fatalf("expected surplus bound, got %v", err)
	}

	// Stray tokens sent to the vault become withdrawable.
	if err := ledger.Mint(market.Asset, vaultAddr, e18(42)); err != nil {
		t.Fatalf("mint stray: %v", err)
	}
	if err := engine.EmergencyWithdrawAsset(authorityAddr, market.Asset, recipient, e18(42)); err != nil {
		t.Fatalf("withdraw stray: %v", err)
	}
	got, _ := ledger.BalanceOf(market.Asset, recipient)
	if got.Cmp(e18(42)) != 0 {
		t.Fatalf("recipient tokens = %s, want 42e18", got)
	}
}

func TestGraduationFreesReservedValue(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	market := createTestMarket(t, engine)
	buyer := addr(9)
	fund(t, state, buyer, e18(100))
	if _, err := engine.Buy(market.ID, buyer, e18(11), nil); err != nil {
		t.Fatalf("graduating buy: %v", err)
	}
	stored, _, _ := state.LaunchGetMarket(market.ID)
	if !stored.Graduated {
		t.Fatalf("market should be graduated")
	}
	reserved, err := engine.ReservedValue()
	if err != nil {
		t.Fatalf("reserved: %v", err)
	}
	if reserved.Sign() != 0 {
		t.Fatalf("graduated market still reserves %s", reserved)
	}
}

func TestWithdrawableValueClampsAtZero(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	market := createTestMarket(t, engine)
	buyer := addr(9)
	fund(t, state, buyer, e18(100))
	if _, err := engine.Buy(market.ID, buyer, e18(5), nil); err != nil {
		t.Fatalf("buy: %v", err)
	}
	// Force the vault below the reserved sum.
	if err := state.PutAccount(vaultAddr[:], &types.Account{Balance: big.NewInt(0)}); err != nil {
		t.Fatalf("drain vault: %v", err)
	}
	withdrawable, err := engine.WithdrawableValue()
	if err != nil {
		t.Fatalf("withdrawable: %v", err)
	}
	if withdrawable.Sign() != 0 {
		t.Fatalf("withdrawable = %s, want 0", withdrawable)
	}
}
