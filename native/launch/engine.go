package launch

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/holiman/uint256"

	"agora/core/events"
	"agora/core/types"
	"agora/native/curve"
)

var (
	errNilState              = errors.New("launch: state not configured")
	errNilAssets             = errors.New("launch: asset ledger not configured")
	errMarketNotFound        = errors.New("launch: market not found")
	errMarketInactive        = errors.New("launch: market is paused")
	errMarketGraduated       = errors.New("launch: market has graduated")
	errBelowMinimumPurchase  = errors.New("launch: spend below minimum purchase")
	errZeroUnits             = errors.New("launch: spend too small for one unit")
	errSlippageExceeded      = errors.New("launch: slippage bound exceeded")
	errCurveSupplyExhausted  = errors.New("launch: curve allocation exhausted")
	errInsufficientLiquidity = errors.New("launch: refund exceeds curve reserves")
	errInsufficientBalance   = errors.New("launch: insufficient balance")
	errInvalidAmount         = errors.New("launch: amount must be positive")
	errAmountOverflow        = errors.New("launch: amount exceeds 256 bits")
	errReentrantCall         = errors.New("launch: reentrant call rejected")
	errNotAuthority          = errors.New("launch: caller is not the authority")
	errNotGovernance         = errors.New("launch: caller is not governance")
	errInvalidMarketParams   = errors.New("launch: invalid market parameters")
)

const weightTotal = 100

// Params carries the runtime knobs applied to every market.
type Params struct {
	FeeBps             uint64
	MinimumPurchase    *big.Int
	PauseDelaySeconds  uint64
	GraduationSeconds  uint64
	ToleranceBps       uint64
	CurveAllocationBps uint64
}

// DefaultParams returns the production defaults: a 1% protocol fee, a 24 hour
// pause timelock, a 5% graduation tolerance band, and 80% of supply on the
// curve.
func DefaultParams() Params {
	return Params{
		FeeBps:             100,
		MinimumPurchase:    big.NewInt(1_000_000_000_000),
		PauseDelaySeconds:  86_400,
		GraduationSeconds:  300,
		ToleranceBps:       500,
		CurveAllocationBps: 8_000,
	}
}

// AssetLedger is the external fungible-token collaborator. Standard
// mint/transfer balance semantics are assumed, not reimplemented here.
type AssetLedger interface {
	Mint(asset string, to [20]byte, amount *big.Int) error
	Transfer(asset string, from [20]byte, to [20]byte, amount *big.Int) error
	BalanceOf(asset string, holder [20]byte) (*big.Int, error)
}

// LiquidityProvider is the external pool collaborator used only at
// graduation to seed public trading.
type LiquidityProvider interface {
	Address() [20]byte
	AddLiquidity(asset string, desiredUnits, minUnits, desiredValue, minValue *big.Int, recipient [20]byte, deadline int64) (unitsUsed, valueUsed, poolTokens *big.Int, err error)
	GetPool(asset string) (string, bool)
}

type engineState interface {
	LaunchNextMarketID() (uint64, error)
	LaunchPutMarket(m *Market) error
	LaunchGetMarket(id uint64) (*Market, bool, error)
	LaunchMarketIDs() ([]uint64, error)
	LaunchPauseRequestGet(marketID uint64) (*PauseRequest, bool, error)
	LaunchPauseRequestPut(req *PauseRequest) error
	LaunchPauseRequestDelete(marketID uint64) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// Engine executes curve trades and owns the market lifecycle. Every public
// entry point is a serialized atomic unit: the hosting environment runs one
// operation to completion before the next, and the busy flag rejects
// reentrant calls from collaborators mid-operation.
type Engine struct {
	state     engineState
	assets    AssetLedger
	liquidity LiquidityProvider
	emitter   events.Emitter
	nowFn     func() int64
	params    Params

	authority  [20]byte
	governance [20]byte
	treasury   [20]byte
	vault      [20]byte

	busy bool
}

// NewEngine constructs a launch engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		params:  DefaultParams(),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAssets configures the fungible-token collaborator.
func (e *Engine) SetAssets(assets AssetLedger) { e.assets = assets }

// SetLiquidity configures the optional pool collaborator used at graduation.
// A nil provider means graduation completes without pool seeding.
func (e *Engine) SetLiquidity(provider LiquidityProvider) { e.liquidity = provider }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetParams updates the runtime trading parameters.
func (e *Engine) SetParams(params Params) {
	if params.MinimumPurchase == nil {
		params.MinimumPurchase = big.NewInt(0)
	}
	e.params = params
}

// Params returns the currently configured runtime parameters.
func (e *Engine) Params() Params { return e.params }

// SetAuthority configures the administrative identity for pause and
// emergency-withdrawal operations.
func (e *Engine) SetAuthority(addr [20]byte) { e.authority = addr }

// SetGovernance configures the identity permitted to force-graduate markets.
func (e *Engine) SetGovernance(addr [20]byte) { e.governance = addr }

// SetTreasury configures the protocol fee recipient.
func (e *Engine) SetTreasury(addr [20]byte) { e.treasury = addr }

// SetVault configures the account holding curve reserves and unsold supply.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// Vault returns the reserve-holding account address.
func (e *Engine) Vault() [20]byte { return e.vault }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) enter() error {
	if e.busy {
		return errReentrantCall
	}
	e.busy = true
	return nil
}

func (e *Engine) exit() { e.busy = false }

func toU256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, errAmountOverflow
	}
	return u, nil
}

// CreateMarket registers a new curve market, mints its supply, and
// distributes the non-curve allocation to the founding quorum pro rata by
// weight. The quorum formation workflow is the only production caller; the
// engine still re-validates the essentials.
func (e *Engine) CreateMarket(members [][20]byte, weights []uint64, params MarketParams) (*Market, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.assets == nil {
		return nil, errNilAssets
	}
	if len(members) == 0 || len(members) != len(weights) {
		return nil, errInvalidMarketParams
	}
	var sum uint64
	for _, w := range weights {
		sum += w
	}
	if sum != weightTotal {
		return nil, fmt.Errorf("launch: weights sum to %d, want %d", sum, weightTotal)
	}
	if params.Symbol == "" {
		return nil, errInvalidMarketParams
	}
	if params.TotalSupply == nil || params.TotalSupply.Sign() <= 0 {
		return nil, errInvalidMarketParams
	}
	if params.BasePrice == nil || params.BasePrice.Sign() <= 0 {
		return nil, errInvalidMarketParams
	}
	if params.TargetRaise == nil || params.TargetRaise.Sign() <= 0 {
		return nil, errInvalidMarketParams
	}
	if params.Slope != nil && params.Slope.Sign() < 0 {
		return nil, errInvalidMarketParams
	}

	id, err := e.state.LaunchNextMarketID()
	if err != nil {
		return nil, err
	}

	curveSupply := new(big.Int).Mul(params.TotalSupply, new(big.Int).SetUint64(e.params.CurveAllocationBps))
	curveSupply.Div(curveSupply, big.NewInt(10_000))
	founderSupply := new(big.Int).Sub(params.TotalSupply, curveSupply)

	if err := e.assets.Mint(params.Symbol, e.vault, curveSupply); err != nil {
		return nil, err
	}
	distributed := big.NewInt(0)
	for i, member := range members {
		share := new(big.Int).Mul(founderSupply, new(big.Int).SetUint64(weights[i]))
		share.Div(share, big.NewInt(weightTotal))
		if share.Sign() == 0 {
			continue
		}
		if err := e.assets.Mint(params.Symbol, member, share); err != nil {
			return nil, err
		}
		distributed.Add(distributed, share)
	}
	// Rounding dust from the pro-rata split stays with the vault.
	if dust := new(big.Int).Sub(founderSupply, distributed); dust.Sign() > 0 {
		if err := e.assets.Mint(params.Symbol, e.vault, dust); err != nil {
			return nil, err
		}
	}

	market := &Market{
		ID:          id,
		Asset:       params.Symbol,
		Members:     append([][20]byte(nil), members...),
		Weights:     append([]uint64(nil), weights...),
		TargetRaise: new(big.Int).Set(params.TargetRaise),
		Raised:      big.NewInt(0),
		UnitsSold:   big.NewInt(0),
		BasePrice:   new(big.Int).Set(params.BasePrice),
		Slope:       copyBig(params.Slope),
		CurveSupply: curveSupply,
		TotalSupply: new(big.Int).Set(params.TotalSupply),
		Active:      true,
		Thesis:      params.Thesis,
		CreatedAt:   e.now(),
	}
	if err := e.state.LaunchPutMarket(market); err != nil {
		return nil, err
	}
	e.emit(marketCreatedEvent(market))
	return market.Clone(), nil
}

// Buy spends value against the market's curve. The fee comes off the top,
// the net amount prices the units, and market state commits before any
// balance movement so a collaborator callback can never observe stale
// counters. Crossing the raise target graduates the market in the same
// operation.
func (e *Engine) Buy(marketID uint64, buyer [20]byte, spend *big.Int, minUnitsOut *big.Int) (*TradeReceipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.assets == nil {
		return nil, errNilAssets
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	if spend == nil || spend.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	market, ok, err := e.state.LaunchGetMarket(marketID)
	if err != nil {
		return nil, err
	}
	if !ok || market == nil {
		return nil, errMarketNotFound
	}
	if market.Graduated {
		return nil, errMarketGraduated
	}
	if !market.Active {
		return nil, errMarketInactive
	}
	if e.params.MinimumPurchase != nil && spend.Cmp(e.params.MinimumPurchase) < 0 {
		return nil, errBelowMinimumPurchase
	}

	fee := new(big.Int).Mul(spend, new(big.Int).SetUint64(e.params.FeeBps))
	fee.Div(fee, big.NewInt(10_000))
	net := new(big.Int).Sub(spend, fee)

	base, err := toU256(market.BasePrice)
	if err != nil {
		return nil, err
	}
	slope, err := toU256(market.Slope)
	if err != nil {
		return nil, err
	}
	sold, err := toU256(market.UnitsSold)
	if err != nil {
		return nil, err
	}
	netU, err := toU256(net)
	if err != nil {
		return nil, err
	}
	unitsU, err := curve.UnitsForSpend(base, slope, sold, netU)
	if err != nil {
		return nil, fmt.Errorf("launch: purchase pricing: %w", err)
	}
	if unitsU.IsZero() {
		return nil, errZeroUnits
	}
	units := unitsU.ToBig()
	if minUnitsOut != nil && units.Cmp(minUnitsOut) < 0 {
		return nil, errSlippageExceeded
	}
	newSold := new(big.Int).Add(market.UnitsSold, units)
	if newSold.Cmp(market.CurveSupply) > 0 {
		return nil, errCurveSupplyExhausted
	}

	buyerAcc, err := e.state.GetAccount(buyer[:])
	if err != nil {
		return nil, err
	}
	buyerAcc = types.EnsureAccount(buyerAcc)
	if buyerAcc.Balance.Cmp(spend) < 0 {
		return nil, errInsufficientBalance
	}

	// Commit the market counters before any balance movement.
	market.Raised = new(big.Int).Add(market.Raised, net)
	market.UnitsSold = newSold
	if err := e.state.LaunchPutMarket(market); err != nil {
		return nil, err
	}

	buyerAcc.Balance = new(big.Int).Sub(buyerAcc.Balance, spend)
	if err := e.state.PutAccount(buyer[:], buyerAcc); err != nil {
		return nil, err
	}
	if err := e.credit(e.vault, net); err != nil {
		return nil, err
	}
	if fee.Sign() > 0 {
		if err := e.credit(e.treasury, fee); err != nil {
			return nil, err
		}
	}
	if err := e.assets.Transfer(market.Asset, e.vault, buyer, units); err != nil {
		return nil, err
	}

	receipt := &TradeReceipt{
		MarketID: marketID,
		Trader:   buyer,
		Units:    units,
		Spend:    new(big.Int).Set(spend),
		Fee:      fee,
		Net:      net,
	}
	e.emit(tradeEvent(EventTypeBuy, receipt))

	if market.Raised.Cmp(market.TargetRaise) >= 0 {
		if err := e.graduate(market, false); err != nil {
			return nil, err
		}
		receipt.Graduated = true
	}
	return receipt, nil
}

// Sell returns units to the curve for the exact integral refund. Only
// curve-originated units are refundable: the sale inverse is bounded by the
// running UnitsSold counter, so formation allocations can never drain
// reserves they did not contribute to.
func (e *Engine) Sell(marketID uint64, seller [20]byte, units *big.Int, minSpendOut *big.Int) (*TradeReceipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.assets == nil {
		return nil, errNilAssets
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	if units == nil || units.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	market, ok, err := e.state.LaunchGetMarket(marketID)
	if err != nil {
		return nil, err
	}
	if !ok || market == nil {
		return nil, errMarketNotFound
	}
	if market.Graduated {
		return nil, errMarketGraduated
	}
	if !market.Active {
		return nil, errMarketInactive
	}

	base, err := toU256(market.BasePrice)
	if err != nil {
		return nil, err
	}
	slope, err := toU256(market.Slope)
	if err != nil {
		return nil, err
	}
	sold, err := toU256(market.UnitsSold)
	if err != nil {
		return nil, err
	}
	unitsU, err := toU256(units)
	if err != nil {
		return nil, err
	}
	refundU, err := curve.SpendForUnits(base, slope, sold, unitsU)
	if err != nil {
		return nil, fmt.Errorf("launch: sale pricing: %w", err)
	}
	refund := refundU.ToBig()
	if refund.Cmp(market.Raised) > 0 {
		return nil, errInsufficientLiquidity
	}

	fee := new(big.Int).Mul(refund, new(big.Int).SetUint64(e.params.FeeBps))
	fee.Div(fee, big.NewInt(10_000))
	net := new(big.Int).Sub(refund, fee)
	if minSpendOut != nil && net.Cmp(minSpendOut) < 0 {
		return nil, errSlippageExceeded
	}

	// Commit the market counters before any balance movement.
	market.Raised = new(big.Int).Sub(market.Raised, refund)
	market.UnitsSold = new(big.Int).Sub(market.UnitsSold, units)
	if err := e.state.LaunchPutMarket(market); err != nil {
		return nil, err
	}

	if err := e.assets.Transfer(market.Asset, seller, e.vault, units); err != nil {
		return nil, err
	}
	if err := e.debit(e.vault, refund); err != nil {
		return nil, err
	}
	if err := e.credit(seller, net); err != nil {
		return nil, err
	}
	if fee.Sign() > 0 {
		if err := e.credit(e.treasury, fee); err != nil {
			return nil, err
		}
	}

	receipt := &TradeReceipt{
		MarketID: marketID,
		Trader:   seller,
		Units:    new(big.Int).Set(units),
		Spend:    refund,
		Fee:      fee,
		Net:      net,
	}
	e.emit(tradeEvent(EventTypeSell, receipt))
	return receipt, nil
}

// GetMarket returns a defensive copy of the stored market record.
func (e *Engine) GetMarket(marketID uint64) (*Market, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	market, ok, err := e.state.LaunchGetMarket(marketID)
	if err != nil {
		return nil, err
	}
	if !ok || market == nil {
		return nil, errMarketNotFound
	}
	return market.Clone(), nil
}

// CurrentPrice projects the spot price at the market's live sold counter.
func (e *Engine) CurrentPrice(marketID uint64) (*big.Int, error) {
	market, err := e.GetMarket(marketID)
	if err != nil {
		return nil, err
	}
	base, err := toU256(market.BasePrice)
	if err != nil {
		return nil, err
	}
	slope, err := toU256(market.Slope)
	if err != nil {
		return nil, err
	}
	sold, err := toU256(market.UnitsSold)
	if err != nil {
		return nil, err
	}
	price, err := curve.Price(base, slope, sold)
	if err != nil {
		return nil, err
	}
	return price.ToBig(), nil
}

// CalculatePurchaseReturn quotes the units a spend would mint right now,
// after the protocol fee, without touching state.
func (e *Engine) CalculatePurchaseReturn(marketID uint64, spend *big.Int) (*big.Int, error) {
	if spend == nil || spend.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	market, err := e.GetMarket(marketID)
	if err != nil {
		return nil, err
	}
	fee := new(big.Int).Mul(spend, new(big.Int).SetUint64(e.params.FeeBps))
	fee.Div(fee, big.NewInt(10_000))
	net := new(big.Int).Sub(spend, fee)

	base, err := toU256(market.BasePrice)
	if err != nil {
		return nil, err
	}
	slope, err := toU256(market.Slope)
	if err != nil {
		return nil, err
	}
	sold, err := toU256(market.UnitsSold)
	if err != nil {
		return nil, err
	}
	netU, err := toU256(net)
	if err != nil {
		return nil, err
	}
	units, err := curve.UnitsForSpend(base, slope, sold, netU)
	if err != nil {
		return nil, err
	}
	return units.ToBig(), nil
}

// CalculateSaleReturn quotes the net value a sale would release right now.
func (e *Engine) CalculateSaleReturn(marketID uint64, units *big.Int) (*big.Int, error) {
	if units == nil || units.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	market, err := e.GetMarket(marketID)
	if err != nil {
		return nil, err
	}
	base, err := toU256(market.BasePrice)
	if err != nil {
		return nil, err
	}
	slope, err := toU256(market.Slope)
	if err != nil {
		return nil, err
	}
	sold, err := toU256(market.UnitsSold)
	if err != nil {
		return nil, err
	}
	unitsU, err := toU256(units)
	if err != nil {
		return nil, err
	}
	refundU, err := curve.SpendForUnits(base, slope, sold, unitsU)
	if err != nil {
		return nil, err
	}
	refund := refundU.ToBig()
	fee := new(big.Int).Mul(refund, new(big.Int).SetUint64(e.params.FeeBps))
	fee.Div(fee, big.NewInt(10_000))
	return refund.Sub(refund, fee), nil
}

func (e *Engine) credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	account, err := e.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	account = types.EnsureAccount(account)
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return e.state.PutAccount(addr[:], account)
}

func (e *Engine) debit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	account, err := e.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	account = types.EnsureAccount(account)
	if account.Balance.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	account.Balance = new(big.Int).Sub(account.Balance, amount)
	return e.state.PutAccount(addr[:], account)
}
