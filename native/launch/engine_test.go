package launch

import (
	"errors"
	"math/big"
	"sort"
	"testing"

	"agora/core/types"
)

type mockState struct {
	markets  map[uint64]*Market
	pauses   map[uint64]*PauseRequest
	accounts map[string]*types.Account
	nextID   uint64
}

func newMockState() *mockState {
	return &mockState{
		markets:  make(map[uint64]*Market),
		pauses:   make(map[uint64]*PauseRequest),
		accounts: make(map[string]*types.Account),
	}
}

func (m *mockState) LaunchNextMarketID() (uint64, error) {
	m.nextID++
	return m.nextID, nil
}

func (m *mockState) LaunchPutMarket(market *Market) error {
	m.markets[market.ID] = market.Clone()
	return nil
}

func (m *mockState) LaunchGetMarket(id uint64) (*Market, bool, error) {
	market, ok := m.markets[id]
	if !ok {
		return nil, false, nil
	}
	return market.Clone(), true, nil
}

func (m *mockState) LaunchMarketIDs() ([]uint64, error) {
	ids := make([]uint64, 0, len(m.markets))
	for id := range m.markets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *mockState) LaunchPauseRequestGet(marketID uint64) (*PauseRequest, bool, error) {
	req, ok := m.pauses[marketID]
	if !ok {
		return nil, false, nil
	}
	clone := *req
	return &clone, true, nil
}

func (m *mockState) LaunchPauseRequestPut(req *PauseRequest) error {
	clone := *req
	m.pauses[req.MarketID] = &clone
	return nil
}

func (m *mockState) LaunchPauseRequestDelete(marketID uint64) error {
	delete(m.pauses, marketID)
	return nil
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	account, ok := m.accounts[string(addr)]
	if !ok {
		return nil, nil
	}
	clone := *account
	if account.Balance != nil {
		clone.Balance = new(big.Int).Set(account.Balance)
	}
	return &clone, nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	clone := *account
	if account.Balance != nil {
		clone.Balance = new(big.Int).Set(account.Balance)
	}
	m.accounts[string(addr)] = &clone
	return nil
}

type mockLedger struct {
	balances map[string]map[[20]byte]*big.Int
}

func newMockLedger() *mockLedger {
	return &mockLedger{balances: make(map[string]map[[20]byte]*big.Int)}
}

func (l *mockLedger) Mint(asset string, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.New("mint: invalid amount")
	}
	if l.balances[asset] == nil {
		l.balances[asset] = make(map[[20]byte]*big.Int)
	}
	cur := l.balances[asset][to]
	if cur == nil {
		cur = big.NewInt(0)
	}
	l.balances[asset][to] = new(big.Int).Add(cur, amount)
	return nil
}

func (l *mockLedger) Transfer(asset string, from [20]byte, to [20]byte, amount *big.Int) error {
	holders := l.balances[asset]
	if holders == nil || holders[from] == nil || holders[from].Cmp(amount) < 0 {
		return errors.New("transfer: insufficient balance")
	}
	holders[from] = new(big.Int).Sub(holders[from], amount)
	if holders[to] == nil {
		holders[to] = big.NewInt(0)
	}
	holders[to] = new(big.Int).Add(holders[to], amount)
	return nil
}

func (l *mockLedger) BalanceOf(asset string, holder [20]byte) (*big.Int, error) {
	holders := l.balances[asset]
	if holders == nil || holders[holder] == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(holders[holder]), nil
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

var (
	authorityAddr  = addr(0xAA)
	governanceAddr = addr(0xB0)
	treasuryAddr   = addr(0xFE)
	vaultAddr      = addr(0xEE)
)

func newTestEngine(t *testing.T) (*Engine, *mockState, *mockLedger) {
	t.Helper()
	state := newMockState()
	ledger := newMockLedger()
	engine := NewEngine()
	engine.SetState(state)
	engine.SetAssets(ledger)
	engine.SetAuthority(authorityAddr)
	engine.SetGovernance(governanceAddr)
	engine.SetTreasury(treasuryAddr)
	engine.SetVault(vaultAddr)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return engine, state, ledger
}

func e18(v int64) *big.Int {
	out := big.NewInt(v)
	return out.Mul(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// 0.0001 base price and 0.00000001 slope at 18 decimals.
func testMarketParams() MarketParams {
	return MarketParams{
		Symbol:      "AURA",
		Name:        "Aura Collective",
		TotalSupply: e18(1_000_000),
		BasePrice:   big.NewInt(100_000_000_000_000),
		Slope:       big.NewInt(10_000_000_000),
		TargetRaise: e18(10),
		Thesis:      "agentic media index",
	}
}

func testMembers() ([][20]byte, []uint64) {
	return [][20]byte{addr(1), addr(2), addr(3)}, []uint64{40, 35, 25}
}

func createTestMarket(t *testing.T, engine *Engine) *Market {
	t.Helper()
	members, weights := testMembers()
	market, err := engine.CreateMarket(members, weights, testMarketParams())
	if err != nil {
		t.Fatalf("create market: %v", err)
	}
	return market
}

func fund(t *testing.T, state *mockState, who [20]byte, amount *big.Int) {
	t.Helper()
	if err := state.PutAccount(who[:], &types.Account{Balance: amount}); err != nil {
		t.Fatalf("fund account: %v", err)
	}
}

func TestCreateMarketAllocations(t *testing.T) {
	engine, _, ledger := newTestEngine(t)
	market := createTestMarket(t, engine)

	if market.ID != 1 {
		t.Fatalf("market id = %d, want 1", market.ID)
	}
	// 80% of supply on the curve, remainder split 40/35/25.
	if market.CurveSupply.Cmp(e18(800_000)) != 0 {
		t.Fatalf("curve supply = %s, want 800000e18", market.CurveSupply)
	}
	vaultBal, _ := ledger.BalanceOf("AURA", vaultAddr)
	if vaultBal.Cmp(e18(800_000)) != 0 {
		t.Fatalf("vault balance = %s, want 800000e18", vaultBal)
	}
	wantShares := map[[20]byte]*big.Int{
		addr(1): e18(80_000),
		addr(2): e18(70_000),
		addr(3): e18(50_000),
	}
	for member, want := range wantShares {
		got, _ := ledger.BalanceOf("AURA", member)
		if got.Cmp(want) != 0 {
			t.Fatalf("member %x allocation = %s, want %s", member, got, want)
		}
	}
	if !market.Active || market.Graduated {
		t.Fatalf("new market should be active and not graduated")
	}
}

func TestCreateMarketRejectsBadWeights(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	members, _ := testMembers()
	if _, err := engine.CreateMarket(members, []uint64{40, 35, 24}, testMarketParams()); err == nil {
		t.Fatalf("expected weight-sum rejection")
	}
}

func TestBuyMintsUnitsAndCollectsFee(t *testing.T) {
	engine, state, ledger := newTestEngine(t)
	market := createTestMarket(t, engine)
	buyer := addr(9)
	fund(t, state, buyer, e18(100))

	spend := e18(2)
	receipt, err := engine.Buy(market.ID, buyer, spend, nil)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if receipt.Units.Sign() <= 0 {
		t.Fatalf("expected units out, got %s", receipt.Units)
	}
	wantFee := new(big.Int).Div(spend, big.NewInt(100))
	if receipt.Fee.Cmp(wantFee) != 0 {
		t.Fatalf("fee = %s, want %s", receipt.Fee, wantFee)
	}

	stored, _, _ := state.LaunchGetMarket(market.ID)
	if stored.Raised.Cmp(receipt.Net) != 0 {
		t.Fatalf("raised = %s, want net %s", stored.Raised, receipt.Net)
	}
	if stored.UnitsSold.Cmp(receipt.Units) != 0 {
		t.Fatalf("units sold = %s, want %s", stored.UnitsSold, receipt.Units)
	}

	buyerTokens, _ := ledger.BalanceOf("AURA", buyer)
	if buyerTokens.Cmp(receipt.Units) != 0 {
		t.Fatalf("buyer tokens = %s, want %s", buyerTokens, receipt.Units)
	}
	treasuryAcc, _ := state.GetAccount(treasuryAddr[:])
	if treasuryAcc.Balance.Cmp(wantFee) != 0 {
		t.Fatalf("treasury = %s, want %s", treasuryAcc.Balance, wantFee)
	}
	vaultAcc, _ := state.GetAccount(vaultAddr[:])
	if vaultAcc.Balance.Cmp(receipt.Net) != 0 {
		t.Fatalf("vault = %s, want %s", vaultAcc.Balance, receipt.Net)
	}
}

func TestBuyPriceIncreasesMonotonically(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	market := createTestMarket(t, engine)
	buyer := addr(9)
	fund(t, state, buyer, e18(100))

	before, err := engine.CurrentPrice(market.ID)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if _, err := engine.Buy(market.ID, buyer, e18(1), nil); err != nil {
		t.Fatalf("buy: %v", err)
	}
	after, err := engine.CurrentPrice(market.ID)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if after.Cmp(before) <= 0 {
		t.Fatalf("price did not increase: %s -> %s", before, after)
	}
}

func TestBuyEnforcesDustFloorAndSlippage(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	market := createTestMarket(t, engine)
	buyer := addr(9)
	fund(t, state, buyer, e18(100))

	if _, err := engine.Buy(market.ID, buyer, big.NewInt(1), nil); !errors.Is(err, errBelowMinimumPurchase) {
		t.Fatalf("expected dust rejection, got %v", err)
	}
	// Ask for far more units than 1 value can mint at ~0.0001/unit.
	if _, err := engine.Buy(market.ID, buyer, e18(1), e18(1_000_000)); !errors.Is(err, errSlippageExceeded) {
		t.Fatalf("expected slippage rejection, got %v", err)
	}
	stored, _, _ := state.LaunchGetMarket(market.ID)
	if stored.Raised.Sign() != 0 || stored.UnitsSold.Sign() != 0 {
		t.Fatalf("failed buys must leave no partial state")
	}
}

func TestBuyRejectsInsufficientBalance(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	market := createTestMarket(t, engine)
	buyer := addr(9)
	fund(t, state, buyer, e18(1))
	if _, err := engine.Buy(market.ID, buyer, e18(2), nil); !errors.Is(err, errInsufficientBalance) {
		t.Fatalf("expected balance rejection, got %v", err)
	}
}

func TestBuyTriggersGraduationAtTarget(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	market := createTestMarket(t, engine)
	buyer := addr(9)
	fund(t, state, buyer, e18(100))

	// 10.5 gross leaves 10.395 net of the 1% fee, crossing the 10 target.
	spend := new(big.Int).Add(e18(10), new(big.Int).Div(e18(1), big.NewInt(2)))
	receipt, err := engine.Buy(market.ID, buyer, spend, nil)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if !receipt.Graduated {
		t.Fatalf("expected graduation receipt flag")
	}
	stored, _, _ := state.LaunchGetMarket(market.ID)
	if !stored.Graduated {
		t.Fatalf("market should be graduated")
	}
	if stored.Raised.Cmp(stored.TargetRaise) < 0 {
		t.Fatalf("raised %s below target %s at graduation", stored.Raised, stored.TargetRaise)
	}

	if _, err := engine.Buy(market.ID, buyer, e18(1), nil); !errors.Is(err, errMarketGraduated) {
		t.Fatalf("post-graduation buy: got %v", err)
	}
	if _, err := engine.Sell(market.ID, buyer, receipt.Units, nil); !errors.Is(err, errMarketGraduated) {
		t.Fatalf("post-graduation sell: got %v", err)
	}
}

func TestSellRoundTripLosesOnlyFees(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	market := createTestMarket(t, engine)
	buyer := addr(9)
	fund(t, state, buyer, e18(100))

	spend := e18(2)
	bought, err := engine.Buy(market.ID, buyer, spend, nil)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	sold, err := engine.Sell(market.ID, buyer, bought.Units, nil)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if sold.Net.Cmp(spend) >= 0 {
		t.Fatalf("round trip returned %s for %s spent", sold.Net, spend)
	}
	// The loss is the two fee cuts plus at most rounding dust of one
	// marginal unit price.
	loss := new(big.Int).Sub(spend, sold.Net)
	fees := new(big.Int).Add(bought.Fee, sold.Fee)
	slack := new(big.Int).Sub(loss, fees)
	if slack.Sign() < 0 {
		t.Fatalf("loss %s below fee total %s", loss, fees)
	}
	price, _ := engine.CurrentPrice(market.ID)
	if slack.Cmp(price) > 0 {
		t.Fatalf("rounding loss %s exceeds one unit price %s", slack, price)
	}

	stored, _, _ := state.LaunchGetMarket(market.ID)
	if stored.UnitsSold.Sign() != 0 {
		t.Fatalf("units sold should return to zero, got %s", stored.UnitsSold)
	}
}

func TestSellRejectsMoreThanCurveSold(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	market := createTestMarket(t, engine)
	// Founder addr(1) holds 80000e18 from formation but the curve has sold
	// nothing, so any sale must be rejected outright.
	founder := addr(1)
	fund(t, state, founder, e18(1))
	if _, err := engine.Sell(market.ID, founder, e18(1), nil); err == nil {
		t.Fatalf("expected formation-allocation sale to be rejected")
	}

	buyer := addr(9)
	fund(t, state, buyer, e18(100))
	bought, err := engine.Buy(market.ID, buyer, e18(2), nil)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	over := new(big.Int).Add(bought.Units, big.NewInt(1))
	if _, err := engine.Sell(market.ID, buyer, over, nil); err == nil {
		t.Fatalf("expected oversell rejection")
	}
}

func TestSellSlippageBound(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	market := createTestMarket(t, engine)
	buyer := addr(9)
	fund(t, state, buyer, e18(100))
	bought, err := engine.Buy(market.ID, buyer, e18(2), nil)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := engine.Sell(market.ID, buyer, bought.Units, e18(3)); !errors.Is(err, errSlippageExceeded) {
		t.Fatalf("expected slippage rejection, got %v", err)
	}
}

func TestQuotesMatchExecution(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	market := createTestMarket(t, engine)
	buyer := addr(9)
	fund(t, state, buyer, e18(100))

	spend := e18(3)
	quoted, err := engine.CalculatePurchaseReturn(market.ID, spend)
	if err != nil {
		t.Fatalf("purchase quote: %v", err)
	}
	receipt, err := engine.Buy(market.ID, buyer, spend, nil)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if quoted.Cmp(receipt.Units) != 0 {
		t.Fatalf("quote %s != executed %s", quoted, receipt.Units)
	}

	saleQuote, err := engine.CalculateSaleReturn(market.ID, receipt.Units)
	if err != nil {
		t.Fatalf("sale quote: %v", err)
	}
	sold, err := engine.Sell(market.ID, buyer, receipt.Units, nil)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if saleQuote.Cmp(sold.Net) != 0 {
		t.Fatalf("sale quote %s != executed %s", saleQuote, sold.Net)
	}
}

// reentrantLedger calls back into the engine mid-transfer, mimicking a
// malicious token hook.
type reentrantLedger struct {
	*mockLedger
	engine   *Engine
	marketID uint64
	caller   [20]byte
	reErr    error
	fired    bool
}

func (l *reentrantLedger) Transfer(asset string, from [20]byte, to [20]byte, amount *big.Int) error {
	if !l.fired {
		l.fired = true
		_, l.reErr = l.engine.Buy(l.marketID, l.caller, e18(1), nil)
	}
	return l.mockLedger.Transfer(asset, from, to, amount)
}

func TestBuyRejectsReentrancy(t *testing.T) {
	engine, state, ledger := newTestEngine(t)
	market := createTestMarket(t, engine)
	buyer := addr(9)
	fund(t, state, buyer, e18(100))

	hook := &reentrantLedger{mockLedger: ledger, engine: engine, marketID: market.ID, caller: buyer}
	engine.SetAssets(hook)

	if _, err := engine.Buy(market.ID, buyer, e18(1), nil); err != nil {
		t.Fatalf("outer buy: %v", err)
	}
	if !hook.fired {
		t.Fatalf("reentrant hook did not fire")
	}
	if !errors.Is(hook.reErr, errReentrantCall) {
		t.Fatalf("inner buy error = %v, want errReentrantCall", hook.reErr)
	}
}

type mockProvider struct {
	addr      [20]byte
	pool      string
	calls     int
	failOnce  bool
	lastUnits *big.Int
	lastValue *big.Int
}

func (p *mockProvider) Address() [20]byte { return p.addr }

func (p *mockProvider) AddLiquidity(asset string, desiredUnits, minUnits, desiredValue, minValue *big.Int, recipient [20]byte, deadline int64) (*big.Int, *big.Int, *big.Int, error) {
	p.calls++
	if p.failOnce {
		p.failOnce = false
		return nil, nil, nil, errors.New("router: expired")
	}
	p.lastUnits = new(big.Int).Set(desiredUnits)
	p.lastValue = new(big.Int).Set(desiredValue)
	return p.lastUnits, p.lastValue, big.NewInt(1), nil
}

func (p *mockProvider) GetPool(asset string) (string, bool) { return p.pool, p.pool != "" }

func TestGraduationSeedsLiquidityPool(t *testing.T) {
	engine, state, ledger := newTestEngine(t)
	provider := &mockProvider{addr: addr(0xCC), pool: "AURA/AGO"}
	engine.SetLiquidity(provider)
	market := createTestMarket(t, engine)
	buyer := addr(9)
	fund(t, state, buyer, e18(100))

	spend := e18(11)
	if _, err := engine.Buy(market.ID, buyer, spend, nil); err != nil {
		t.Fatalf("graduating buy: %v", err)
	}
	stored, _, _ := state.LaunchGetMarket(market.ID)
	if !stored.Graduated {
		t.Fatalf("market should be graduated")
	}
	if stored.Pool != "AURA/AGO" {
		t.Fatalf("pool handle = %q, want AURA/AGO", stored.Pool)
	}
	if provider.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", provider.calls)
	}
	providerTokens, _ := ledger.BalanceOf("AURA", provider.addr)
	if providerTokens.Cmp(provider.lastUnits) != 0 {
		t.Fatalf("provider tokens = %s, want %s", providerTokens, provider.lastUnits)
	}
	providerAcc, _ := state.GetAccount(provider.addr[:])
	if providerAcc.Balance.Cmp(provider.lastValue) != 0 {
		t.Fatalf("provider value = %s, want %s", providerAcc.Balance, provider.lastValue)
	}
}

func TestGraduationFailureAbortsBuy(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	provider := &mockProvider{addr: addr(0xCC), pool: "AURA/AGO", failOnce: true}
	engine.SetLiquidity(provider)
	market := createTestMarket(t, engine)
	buyer := addr(9)
	fund(t, state, buyer, e18(100))

	if _, err := engine.Buy(market.ID, buyer, e18(11), nil); err == nil {
		t.Fatalf("expected graduating buy to fail with provider error")
	}
}

func TestGraduationWithoutProviderIsTerminal(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	market := createTestMarket(t, engine)
	buyer := addr(9)
	fund(t, state, buyer, e18(100))
	if _, err := engine.Buy(market.ID, buyer, e18(11), nil); err != nil {
		t.Fatalf("graduating buy: %v", err)
	}
	stored, _, _ := state.LaunchGetMarket(market.ID)
	if !stored.Graduated || stored.Pool != "" {
		t.Fatalf("expected graduated market with no pool, got graduated=%v pool=%q", stored.Graduated, stored.Pool)
	}
}

func TestForceGraduateRequiresGovernance(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	market := createTestMarket(t, engine)

	if err := engine.ForceGraduate(market.ID, addr(5)); !errors.Is(err, errNotGovernance) {
		t.Fatalf("expected governance gate, got %v", err)
	}
	if err := engine.ForceGraduate(market.ID, governanceAddr); err != nil {
		t.Fatalf("force graduate: %v", err)
	}
	stored, _, _ := state.LaunchGetMarket(market.ID)
	if !stored.Graduated {
		t.Fatalf("market should be graduated")
	}
	if err := engine.ForceGraduate(market.ID, governanceAddr); !errors.Is(err, errMarketGraduated) {
		t.Fatalf("second force graduate: got %v", err)
	}
}
