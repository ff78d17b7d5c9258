package governance

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"agora/core/events"
	"agora/core/types"
	"agora/native/launch"
)

var (
	errNilState        = errors.New("governance: state not configured")
	errMarketNotFound  = errors.New("governance: market not found")
	errNotMember       = errors.New("governance: caller holds no voting weight")
	errInvalidAction   = errors.New("governance: invalid action kind")
	errNotFound        = errors.New("governance: proposal not found")
	errNotActive       = errors.New("governance: proposal not active")
	errAlreadyVoted    = errors.New("governance: member already voted")
	errVotingClosed    = errors.New("governance: voting period closed")
	errVotingOpen      = errors.New("governance: voting still in progress")
	errWindowExpired   = errors.New("governance: execution window expired")
	errReentrantCall   = errors.New("governance: reentrant call rejected")
	errTallyOverflow   = errors.New("governance: tally overflow")
	errWeightOverflow  = errors.New("governance: weight grant overflow")
	errTargetIsMember  = errors.New("governance: target already a member")
	errTargetNotMember = errors.New("governance: target is not a member")
	errZeroTarget      = errors.New("governance: target address required")
	errFeeOutOfRange   = errors.New("governance: fee exceeds 10000 bps")
)

// Policy captures the runtime knobs for proposal timing and quorum.
type Policy struct {
	VotingPeriodSeconds    uint64
	ExecutionWindowSeconds uint64
	QuorumBps              uint64
}

// DefaultPolicy returns the production defaults: a 3 day voting period, a
// 7 day execution window, and a two-thirds participation quorum.
func DefaultPolicy() Policy {
	return Policy{
		VotingPeriodSeconds:    3 * 24 * 60 * 60,
		ExecutionWindowSeconds: 7 * 24 * 60 * 60,
		QuorumBps:              6_666,
	}
}

// Graduator retires a market from its curve; the launch engine satisfies it.
type Graduator interface {
	ForceGraduate(marketID uint64, caller [20]byte) error
}

type engineState interface {
	GovernanceNextProposalID() (uint64, error)
	GovernancePutProposal(p *Proposal) error
	GovernanceGetProposal(id uint64) (*Proposal, bool, error)
	GovernanceGetVote(id uint64, voter [20]byte) (*Vote, bool, error)
	GovernancePutVote(v *Vote) error
	QuorumWeightGet(marketID uint64, member [20]byte) (uint64, bool, error)
	QuorumWeightPut(marketID uint64, member [20]byte, weight uint64) error
	QuorumWeightDelete(marketID uint64, member [20]byte) error
	QuorumTotalWeightGet(marketID uint64) (uint64, bool, error)
	QuorumTotalWeightPut(marketID uint64, total uint64) error
	LaunchGetMarket(id uint64) (*launch.Market, bool, error)
	LaunchPutMarket(m *launch.Market) error
}

// Engine runs the proposal lifecycle for formed quorums. Voting weight is
// always pulled from the snapshot ledger written at formation and updated
// only by executed membership proposals, never re-derived from the market's
// member list mid-vote.
type Engine struct {
	state    engineState
	grad     Graduator
	emitter  events.Emitter
	nowFn    func() int64
	policy   Policy
	identity [20]byte
	busy     bool
}

// NewEngine constructs a governance engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		policy:  DefaultPolicy(),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetGraduator configures the collaborator invoked by force-graduate
// proposals. Nil leaves force-graduation as an approved-intent event only.
func (e *Engine) SetGraduator(grad Graduator) { e.grad = grad }

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

// SetPolicy updates the runtime voting policy.
func (e *Engine) SetPolicy(policy Policy) { e.policy = policy }

// SetIdentity configures the address this engine presents to collaborators
// gated on the governance role.
func (e *Engine) SetIdentity(addr [20]byte) { e.identity = addr }

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

// Propose opens a governance proposal against an existing market. Only
// members holding snapshot weight may propose.
func (e *Engine) Propose(marketID uint64, proposer [20]byte, action ActionKind, target [20]byte, value *big.Int, payload, description string) (*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if !action.Valid() {
		return nil, errInvalidAction
	}
	market, ok, err := e.state.LaunchGetMarket(marketID)
	if err != nil {
		return nil, err
	}
	if !ok || market == nil {
		return nil, errMarketNotFound
	}
	weight, ok, err := e.state.QuorumWeightGet(marketID, proposer)
	if err != nil {
		return nil, err
	}
	if !ok || weight == 0 {
		return nil, errNotMember
	}

	var zero [20]byte
	switch action {
	case ActionAddMember:
		if target == zero {
			return nil, errZeroTarget
		}
		if _, exists, err := e.state.QuorumWeightGet(marketID, target); err != nil {
			return nil, err
		} else if exists {
			return nil, errTargetIsMember
		}
		if value != nil && value.Sign() > 0 && !value.IsUint64() {
			return nil, errWeightOverflow
		}
	case ActionRemoveMember:
		if _, exists, err := e.state.QuorumWeightGet(marketID, target); err != nil {
			return nil, err
		} else if !exists {
			return nil, errTargetNotMember
		}
	case ActionFeeAdjustment:
		if value != nil && value.Cmp(big.NewInt(10_000)) > 0 {
			return nil, errFeeOutOfRange
		}
	}

	id, err := e.state.GovernanceNextProposalID()
	if err != nil {
		return nil, err
	}
	now := e.now()
	proposal := &Proposal{
		ID:           id,
		MarketID:     marketID,
		Proposer:     proposer,
		Action:       action,
		Target:       target,
		Value:        copyValue(value),
		Payload:      payload,
		Description:  description,
		VoteDeadline: now + int64(e.policy.VotingPeriodSeconds),
		ExecuteBy:    now + int64(e.policy.VotingPeriodSeconds) + int64(e.policy.ExecutionWindowSeconds),
		Status:       ProposalStatusActive,
		CreatedAt:    now,
	}
	if err := e.state.GovernancePutProposal(proposal); err != nil {
		return nil, err
	}
	e.emit(proposedEvent(proposal))
	return proposal.Clone(), nil
}

// Vote records a member's ballot. Each member votes at most once and only
// strictly before the deadline; the weight comes from the snapshot ledger.
func (e *Engine) Vote(proposalID uint64, voter [20]byte, support bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	proposal, ok, err := e.state.GovernanceGetProposal(proposalID)
	if err != nil {
		return err
	}
	if !ok || proposal == nil {
		return errNotFound
	}
	if proposal.Status != ProposalStatusActive {
		return errNotActive
	}
	now := e.now()
	if now >= proposal.VoteDeadline {
		return errVotingClosed
	}
	weight, ok, err := e.state.QuorumWeightGet(proposal.MarketID, voter)
	if err != nil {
		return err
	}
	if !ok || weight == 0 {
		return errNotMember
	}
	if _, voted, err := e.state.GovernanceGetVote(proposalID, voter); err != nil {
		return err
	} else if voted {
		return errAlreadyVoted
	}

	if support {
		if math.MaxUint64-proposal.ForWeight < weight {
			return errTallyOverflow
		}
		proposal.ForWeight += weight
	} else {
		if math.MaxUint64-proposal.AgainstWeight < weight {
			return errTallyOverflow
		}
		proposal.AgainstWeight += weight
	}
	vote := &Vote{
		ProposalID: proposalID,
		Voter:      voter,
		Support:    support,
		Weight:     weight,
		Timestamp:  now,
	}
	if err := e.state.GovernancePutVote(vote); err != nil {
		return err
	}
	if err := e.state.GovernancePutProposal(proposal); err != nil {
		return err
	}
	e.emit(voteEvent(vote))
	return nil
}

// Execute finalises a proposal once voting has closed. It is callable only
// inside the execution window; a proposal nobody executes in time becomes
// permanently unexecutable. Participation below quorum, an against-majority,
// and a tie all finalise as Failed.
func (e *Engine) Execute(proposalID uint64) (ProposalStatus, error) {
	if e == nil || e.state == nil {
		return ProposalStatusUnspecified, errNilState
	}
	if err := e.enter(); err != nil {
		return ProposalStatusUnspecified, err
	}
	defer e.exit()

	proposal, ok, err := e.state.GovernanceGetProposal(proposalID)
	if err != nil {
		return ProposalStatusUnspecified, err
	}
	if !ok || proposal == nil {
		return ProposalStatusUnspecified, errNotFound
	}
	if proposal.Status != ProposalStatusActive {
		return proposal.Status, errNotActive
	}
	now := e.now()
	if now < proposal.VoteDeadline {
		return ProposalStatusUnspecified, errVotingOpen
	}
	if now > proposal.ExecuteBy {
		return ProposalStatusUnspecified, errWindowExpired
	}

	total, ok, err := e.state.QuorumTotalWeightGet(proposal.MarketID)
	if err != nil {
		return ProposalStatusUnspecified, err
	}
	if !ok || total == 0 {
		return ProposalStatusUnspecified, fmt.Errorf("governance: missing weight snapshot for market %d", proposal.MarketID)
	}

	if math.MaxUint64-proposal.ForWeight < proposal.AgainstWeight {
		return ProposalStatusUnspecified, errTallyOverflow
	}
	participation := proposal.ForWeight + proposal.AgainstWeight
	if participation > math.MaxUint64/10_000 || total > math.MaxUint64/e.policy.QuorumBps {
		return ProposalStatusUnspecified, errTallyOverflow
	}
	if participation*10_000 < total*e.policy.QuorumBps {
		return e.finalise(proposal, ProposalStatusFailed, "quorum not reached")
	}
	if proposal.ForWeight <= proposal.AgainstWeight {
		return e.finalise(proposal, ProposalStatusFailed, "against majority or tie")
	}

	proposal.Status = ProposalStatusPassed
	if err := e.dispatch(proposal); err != nil {
		if _, ferr := e.finalise(proposal, ProposalStatusFailed, "dispatch failed"); ferr != nil {
			return ProposalStatusUnspecified, ferr
		}
		return ProposalStatusFailed, err
	}
	return e.finalise(proposal, ProposalStatusExecuted, "")
}

// RecordDispatchFailure finalises an active proposal as Failed after its
// approved action could not be applied. Callers discard the partial dispatch
// writes first so only the failure record survives.
func (e *Engine) RecordDispatchFailure(proposalID uint64) (ProposalStatus, error) {
	if e == nil || e.state == nil {
		return ProposalStatusUnspecified, errNilState
	}
	proposal, ok, err := e.state.GovernanceGetProposal(proposalID)
	if err != nil {
		return ProposalStatusUnspecified, err
	}
	if !ok || proposal == nil {
		return ProposalStatusUnspecified, errNotFound
	}
	if proposal.Status != ProposalStatusActive {
		return proposal.Status, errNotActive
	}
	return e.finalise(proposal, ProposalStatusFailed, "dispatch failed")
}

// GetProposal returns a defensive copy of the stored proposal.
func (e *Engine) GetProposal(proposalID uint64) (*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	proposal, ok, err := e.state.GovernanceGetProposal(proposalID)
	if err != nil {
		return nil, err
	}
	if !ok || proposal == nil {
		return nil, errNotFound
	}
	return proposal.Clone(), nil
}

func (e *Engine) finalise(proposal *Proposal, status ProposalStatus, reason string) (ProposalStatus, error) {
	proposal.Status = status
	if err := e.state.GovernancePutProposal(proposal); err != nil {
		return ProposalStatusUnspecified, err
	}
	switch status {
	case ProposalStatusExecuted:
		e.emit(executedEvent(proposal))
	case ProposalStatusFailed:
		e.emit(failedEvent(proposal, reason))
	}
	return status, nil
}

// dispatch applies the approved action. Membership changes mutate both the
// market record and the weight snapshot; the spend, fee, and graduation
// actions are authorisation decisions recorded as events, with graduation
// additionally driven through the launch engine because this module owns
// that transition.
func (e *Engine) dispatch(proposal *Proposal) error {
	switch proposal.Action {
	case ActionAddMember:
		return e.addMember(proposal)
	case ActionRemoveMember:
		return e.removeMember(proposal)
	case ActionTreasurySpend, ActionFeeAdjustment:
		e.emit(actionApprovedEvent(proposal))
		return nil
	case ActionForceGraduate:
		e.emit(actionApprovedEvent(proposal))
		if e.grad == nil {
			return nil
		}
		return e.grad.ForceGraduate(proposal.MarketID, e.identity)
	default:
		return errInvalidAction
	}
}

func (e *Engine) addMember(proposal *Proposal) error {
	market, ok, err := e.state.LaunchGetMarket(proposal.MarketID)
	if err != nil {
		return err
	}
	if !ok || market == nil {
		return errMarketNotFound
	}
	grant := uint64(0)
	if proposal.Value != nil && proposal.Value.Sign() > 0 {
		if !proposal.Value.IsUint64() {
			return errWeightOverflow
		}
		grant = proposal.Value.Uint64()
	}
	// Every check runs before the first write: a rejected grant must leave
	// neither an orphaned membership nor a stray weight entry behind.
	var existing, total uint64
	if grant > 0 {
		existing, _, err = e.state.QuorumWeightGet(proposal.MarketID, proposal.Target)
		if err != nil {
			return err
		}
		if math.MaxUint64-existing < grant {
			return errWeightOverflow
		}
		total, _, err = e.state.QuorumTotalWeightGet(proposal.MarketID)
		if err != nil {
			return err
		}
		if math.MaxUint64-total < grant {
			return errWeightOverflow
		}
	}
	if !market.IsMember(proposal.Target) {
		market.Members = append(market.Members, proposal.Target)
		market.Weights = append(market.Weights, grant)
		if err := e.state.LaunchPutMarket(market); err != nil {
			return err
		}
	}
	if grant > 0 {
		if err := e.state.QuorumWeightPut(proposal.MarketID, proposal.Target, existing+grant); err != nil {
			return err
		}
		if err := e.state.QuorumTotalWeightPut(proposal.MarketID, total+grant); err != nil {
			return err
		}
	}
	e.emit(memberAddedEvent(proposal, grant))
	return nil
}

func (e *Engine) removeMember(proposal *Proposal) error {
	market, ok, err := e.state.LaunchGetMarket(proposal.MarketID)
	if err != nil {
		return err
	}
	if !ok || market == nil {
		return errMarketNotFound
	}
	for i, member := range market.Members {
		if member == proposal.Target {
			market.Members = append(market.Members[:i], market.Members[i+1:]...)
			market.Weights = append(market.Weights[:i], market.Weights[i+1:]...)
			break
		}
	}
	if err := e.state.LaunchPutMarket(market); err != nil {
		return err
	}
	weight, ok, err := e.state.QuorumWeightGet(proposal.MarketID, proposal.Target)
	if err != nil {
		return err
	}
	if ok {
		total, _, err := e.state.QuorumTotalWeightGet(proposal.MarketID)
		if err != nil {
			return err
		}
		if total < weight {
			return fmt.Errorf("governance: total weight %d below member weight %d", total, weight)
		}
		if err := e.state.QuorumTotalWeightPut(proposal.MarketID, total-weight); err != nil {
			return err
		}
		if err := e.state.QuorumWeightDelete(proposal.MarketID, proposal.Target); err != nil {
			return err
		}
	}
	e.emit(memberRemovedEvent(proposal, weight))
	return nil
}

func copyValue(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
