package governance

import "math/big"

// ActionKind is the closed set of governance actions a quorum can take on
// its market. Dispatch matches on it exhaustively at execution time.
type ActionKind uint8

const (
	// ActionUnspecified marks an unset action and is never persisted.
	ActionUnspecified ActionKind = iota
	// ActionAddMember registers a new quorum member and optionally grants
	// voting weight.
	ActionAddMember
	// ActionRemoveMember clears a member's registration and weight.
	ActionRemoveMember
	// ActionTreasurySpend authorises a treasury disbursement for an
	// external executor; no funds move here.
	ActionTreasurySpend
	// ActionFeeAdjustment authorises a protocol fee change for an external
	// executor.
	ActionFeeAdjustment
	// ActionForceGraduate retires the market from its curve ahead of the
	// raise target.
	ActionForceGraduate
)

// Valid reports whether the kind is a known governance action.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionAddMember, ActionRemoveMember, ActionTreasurySpend, ActionFeeAdjustment, ActionForceGraduate:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer for logging and event emission.
func (k ActionKind) String() string {
	switch k {
	case ActionAddMember:
		return "addMember"
	case ActionRemoveMember:
		return "removeMember"
	case ActionTreasurySpend:
		return "treasurySpend"
	case ActionFeeAdjustment:
		return "feeAdjustment"
	case ActionForceGraduate:
		return "forceGraduate"
	default:
		return "unspecified"
	}
}

// ParseAction maps the wire representation back to an ActionKind.
func ParseAction(s string) (ActionKind, bool) {
	switch s {
	case "addMember":
		return ActionAddMember, true
	case "removeMember":
		return ActionRemoveMember, true
	case "treasurySpend":
		return ActionTreasurySpend, true
	case "feeAdjustment":
		return ActionFeeAdjustment, true
	case "forceGraduate":
		return ActionForceGraduate, true
	default:
		return ActionUnspecified, false
	}
}

// ProposalStatus enumerates the proposal lifecycle. A proposal transitions
// out of Active exactly once, inside the execution window.
type ProposalStatus uint8

const (
	// ProposalStatusUnspecified indicates an uninitialised proposal.
	ProposalStatusUnspecified ProposalStatus = iota
	// ProposalStatusActive identifies proposals accepting votes or awaiting
	// execution.
	ProposalStatusActive
	// ProposalStatusPassed is the transient outcome between tallying and
	// dispatch; it is persisted only when dispatch fails mid-flight.
	ProposalStatusPassed
	// ProposalStatusFailed marks proposals that missed quorum, lost the
	// vote, tied, or failed during dispatch.
	ProposalStatusFailed
	// ProposalStatusExecuted marks proposals whose action was applied.
	ProposalStatusExecuted
)

// StatusString provides the textual representation used in events and APIs.
func (s ProposalStatus) StatusString() string {
	switch s {
	case ProposalStatusActive:
		return "active"
	case ProposalStatusPassed:
		return "passed"
	case ProposalStatusFailed:
		return "failed"
	case ProposalStatusExecuted:
		return "executed"
	default:
		return "unspecified"
	}
}

// Proposal captures a pending governance decision for one market's quorum.
// Vote tallies accumulate snapshot weight, never live membership reads.
type Proposal struct {
	ID            uint64
	MarketID      uint64
	Proposer      [20]byte
	Action        ActionKind
	Target        [20]byte
	Value         *big.Int
	Payload       string
	Description   string
	ForWeight     uint64
	AgainstWeight uint64
	VoteDeadline  int64
	ExecuteBy     int64
	Status        ProposalStatus
	CreatedAt     int64
}

// Clone returns a deep copy of the proposal.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Value != nil {
		clone.Value = new(big.Int).Set(p.Value)
	}
	return &clone
}

// Vote records a single member's weighted ballot.
type Vote struct {
	ProposalID uint64
	Voter      [20]byte
	Support    bool
	Weight     uint64
	Timestamp  int64
}
