package quorum

import (
	"errors"
	"fmt"
	"time"

	"agora/core/events"
	"agora/core/types"
	"agora/native/launch"
)

const (
	minMembers = 3
	maxMembers = 10
	// weightTotal is the exact sum every founding weight vector must reach.
	weightTotal = 100
	// approvalPeriodSeconds bounds how long a formation proposal may collect
	// approvals before it lapses.
	approvalPeriodSeconds = 7 * 24 * 60 * 60
)

var (
	errNilState         = errors.New("quorum: state not configured")
	errNilFactory       = errors.New("quorum: market factory not configured")
	errMemberCount      = errors.New("quorum: member count must be between 3 and 10")
	errWeightMismatch   = errors.New("quorum: one weight required per member")
	errDuplicateMember  = errors.New("quorum: duplicate member")
	errProposerNotInSet = errors.New("quorum: proposer must be a listed member")
	errNotFound         = errors.New("quorum: proposal not found")
	errAlreadyExecuted  = errors.New("quorum: proposal already executed")
	errDeadlinePassed   = errors.New("quorum: approval deadline passed")
	errNotCandidate     = errors.New("quorum: caller is not a listed member")
	errAlreadyApproved  = errors.New("quorum: member already approved")
)

// MarketFactory creates the market once formation completes. The launch
// engine satisfies it.
type MarketFactory interface {
	CreateMarket(members [][20]byte, weights []uint64, params launch.MarketParams) (*launch.Market, error)
}

type engineState interface {
	QuorumNextProposalID() (uint64, error)
	QuorumPutProposal(p *Proposal) error
	QuorumGetProposal(id uint64) (*Proposal, bool, error)
	QuorumWeightPut(marketID uint64, member [20]byte, weight uint64) error
	QuorumTotalWeightPut(marketID uint64, total uint64) error
}

// Engine runs the unanimous-consent formation workflow. Formation is a
// one-time irreversible commitment of capital and distribution, so every
// candidate must approve; there is no majority path.
type Engine struct {
	state   engineState
	factory MarketFactory
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs a formation engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetFactory configures the market factory invoked on final approval.
func (e *Engine) SetFactory(factory MarketFactory) { e.factory = factory }

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

// Propose opens a formation proposal. The proposer's approval is recorded
// immediately; the remaining candidates approve via Approve.
func (e *Engine) Propose(proposer [20]byte, members [][20]byte, weights []uint64, params launch.MarketParams) (*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if len(members) < minMembers || len(members) > maxMembers {
		return nil, errMemberCount
	}
	if len(weights) != len(members) {
		return nil, errWeightMismatch
	}
	seen := make(map[[20]byte]struct{}, len(members))
	var sum uint64
	for i, member := range members {
		if _, dup := seen[member]; dup {
			return nil, errDuplicateMember
		}
		seen[member] = struct{}{}
		if weights[i] == 0 {
			return nil, fmt.Errorf("quorum: member %d has zero weight", i)
		}
		sum += weights[i]
	}
	if sum != weightTotal {
		return nil, fmt.Errorf("quorum: weights sum to %d, want %d", sum, weightTotal)
	}
	if _, ok := seen[proposer]; !ok {
		return nil, errProposerNotInSet
	}

	id, err := e.state.QuorumNextProposalID()
	if err != nil {
		return nil, err
	}
	now := e.now()
	proposal := &Proposal{
		ID:        id,
		Proposer:  proposer,
		Members:   append([][20]byte(nil), members...),
		Weights:   append([]uint64(nil), weights...),
		Params:    params,
		Approvals: [][20]byte{proposer},
		Deadline:  now + approvalPeriodSeconds,
		CreatedAt: now,
	}
	if err := e.state.QuorumPutProposal(proposal); err != nil {
		return nil, err
	}
	e.emit(proposedEvent(proposal))

	// A three-member minimum means a single approval can never complete
	// formation here, but the invariant is cheap to keep in one place.
	if len(proposal.Approvals) == len(proposal.Members) {
		if err := e.execute(proposal); err != nil {
			return nil, err
		}
	}
	return proposal.Clone(), nil
}

// Approve records a candidate's consent. The final approval auto-executes
// formation: the market is created and each member's weight is snapshotted
// into the governance weight store.
func (e *Engine) Approve(proposalID uint64, member [20]byte) (*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	proposal, ok, err := e.state.QuorumGetProposal(proposalID)
	if err != nil {
		return nil, err
	}
	if !ok || proposal == nil {
		return nil, errNotFound
	}
	if proposal.Executed {
		return nil, errAlreadyExecuted
	}
	if e.now() >= proposal.Deadline {
		return nil, errDeadlinePassed
	}
	if !proposal.hasMember(member) {
		return nil, errNotCandidate
	}
	if proposal.HasApproved(member) {
		return nil, errAlreadyApproved
	}

	proposal.Approvals = append(proposal.Approvals, member)
	if err := e.state.QuorumPutProposal(proposal); err != nil {
		return nil, err
	}
	e.emit(approvedEvent(proposal, member))

	if len(proposal.Approvals) == len(proposal.Members) {
		if err := e.execute(proposal); err != nil {
			return nil, err
		}
	}
	return proposal.Clone(), nil
}

// GetProposal returns a defensive copy of the stored proposal.
func (e *Engine) GetProposal(proposalID uint64) (*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	proposal, ok, err := e.state.QuorumGetProposal(proposalID)
	if err != nil {
		return nil, err
	}
	if !ok || proposal == nil {
		return nil, errNotFound
	}
	return proposal.Clone(), nil
}

// execute runs exactly once, on the approval that completes the set. The
// weight snapshot is written as an independent ledger so later governance
// reads never depend on the mutable member list.
func (e *Engine) execute(proposal *Proposal) error {
	if e.factory == nil {
		return errNilFactory
	}
	market, err := e.factory.CreateMarket(proposal.Members, proposal.Weights, proposal.Params)
	if err != nil {
		return fmt.Errorf("quorum: create market: %w", err)
	}
	for i, member := range proposal.Members {
		if err := e.state.QuorumWeightPut(market.ID, member, proposal.Weights[i]); err != nil {
			return err
		}
	}
	if err := e.state.QuorumTotalWeightPut(market.ID, weightTotal); err != nil {
		return err
	}
	proposal.Executed = true
	proposal.MarketID = market.ID
	if err := e.state.QuorumPutProposal(proposal); err != nil {
		return err
	}
	e.emit(executedEvent(proposal))
	return nil
}
