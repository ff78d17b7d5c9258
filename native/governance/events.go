package governance

import (
	"encoding/hex"
	"strconv"

	"agora/core/events"
	"agora/core/types"
)

const (
	// EventTypeProposed is emitted when a new proposal is accepted.
	EventTypeProposed = "gov.proposed"
	// EventTypeVoteCast is emitted when a member records a ballot.
	EventTypeVoteCast = "gov.vote"
	// EventTypeExecuted marks proposals whose action has been applied.
	EventTypeExecuted = "gov.executed"
	// EventTypeFailed marks proposals finalised without execution.
	EventTypeFailed = "gov.failed"
	// EventTypeActionApproved records an approved intent for an external
	// executor (treasury spend, fee adjustment, force graduation).
	EventTypeActionApproved = "gov.action.approved"
	// EventTypeMemberAdded is emitted when an add-member proposal executes.
	EventTypeMemberAdded = "gov.member.added"
	// EventTypeMemberRemoved is emitted when a remove-member proposal
	// executes.
	EventTypeMemberRemoved = "gov.member.removed"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func proposedEvent(p *Proposal) *types.Event {
	return &types.Event{
		Type: EventTypeProposed,
		Attributes: map[string]string{
			"proposalId":   strconv.FormatUint(p.ID, 10),
			"marketId":     strconv.FormatUint(p.MarketID, 10),
			"proposer":     hexAddr(p.Proposer),
			"action":       p.Action.String(),
			"voteDeadline": strconv.FormatInt(p.VoteDeadline, 10),
			"executeBy":    strconv.FormatInt(p.ExecuteBy, 10),
		},
	}
}

func voteEvent(v *Vote) *types.Event {
	return &types.Event{
		Type: EventTypeVoteCast,
		Attributes: map[string]string{
			"proposalId": strconv.FormatUint(v.ProposalID, 10),
			"voter":      hexAddr(v.Voter),
			"support":    strconv.FormatBool(v.Support),
			"weight":     strconv.FormatUint(v.Weight, 10),
		},
	}
}

func executedEvent(p *Proposal) *types.Event {
	return &types.Event{
		Type: EventTypeExecuted,
		Attributes: map[string]string{
			"proposalId": strconv.FormatUint(p.ID, 10),
			"marketId":   strconv.FormatUint(p.MarketID, 10),
			"action":     p.Action.String(),
			"for":        strconv.FormatUint(p.ForWeight, 10),
			"against":    strconv.FormatUint(p.AgainstWeight, 10),
		},
	}
}

func failedEvent(p *Proposal, reason string) *types.Event {
	return &types.Event{
		Type: EventTypeFailed,
		Attributes: map[string]string{
			"proposalId": strconv.FormatUint(p.ID, 10),
			"marketId":   strconv.FormatUint(p.MarketID, 10),
			"action":     p.Action.String(),
			"for":        strconv.FormatUint(p.ForWeight, 10),
			"against":    strconv.FormatUint(p.AgainstWeight, 10),
			"reason":     reason,
		},
	}
}

func actionApprovedEvent(p *Proposal) *types.Event {
	attrs := map[string]string{
		"proposalId": strconv.FormatUint(p.ID, 10),
		"marketId":   strconv.FormatUint(p.MarketID, 10),
		"action":     p.Action.String(),
		"target":     hexAddr(p.Target),
	}
	if p.Value != nil {
		attrs["value"] = p.Value.String()
	}
	if p.Payload != "" {
		attrs["payload"] = p.Payload
	}
	return &types.Event{Type: EventTypeActionApproved, Attributes: attrs}
}

func memberAddedEvent(p *Proposal, grant uint64) *types.Event {
	return &types.Event{
		Type: EventTypeMemberAdded,
		Attributes: map[string]string{
			"proposalId": strconv.FormatUint(p.ID, 10),
			"marketId":   strconv.FormatUint(p.MarketID, 10),
			"member":     hexAddr(p.Target),
			"weight":     strconv.FormatUint(grant, 10),
		},
	}
}

func memberRemovedEvent(p *Proposal, weight uint64) *types.Event {
	return &types.Event{
		Type: EventTypeMemberRemoved,
		Attributes: map[string]string{
			"proposalId": strconv.FormatUint(p.ID, 10),
			"marketId":   strconv.FormatUint(p.MarketID, 10),
			"member":     hexAddr(p.Target),
			"weight":     strconv.FormatUint(weight, 10),
		},
	}
}
