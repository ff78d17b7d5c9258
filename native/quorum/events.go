package quorum

import (
	"encoding/hex"
	"strconv"

	"agora/core/events"
	"agora/core/types"
)

const (
	// EventTypeProposed is emitted when a formation proposal opens.
	EventTypeProposed = "quorum.proposed"
	// EventTypeApproved is emitted for every recorded candidate approval.
	EventTypeApproved = "quorum.approved"
	// EventTypeExecuted is emitted when unanimous approval forms the market.
	EventTypeExecuted = "quorum.executed"
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
			"proposalId": strconv.FormatUint(p.ID, 10),
			"proposer":   hexAddr(p.Proposer),
			"members":    strconv.Itoa(len(p.Members)),
			"symbol":     p.Params.Symbol,
			"deadline":   strconv.FormatInt(p.Deadline, 10),
		},
	}
}

func approvedEvent(p *Proposal, member [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeApproved,
		Attributes: map[string]string{
			"proposalId": strconv.FormatUint(p.ID, 10),
			"member":     hexAddr(member),
			"approvals":  strconv.Itoa(len(p.Approvals)),
			"required":   strconv.Itoa(len(p.Members)),
		},
	}
}

func executedEvent(p *Proposal) *types.Event {
	return &types.Event{
		Type: EventTypeExecuted,
		Attributes: map[string]string{
			"proposalId": strconv.FormatUint(p.ID, 10),
			"marketId":   strconv.FormatUint(p.MarketID, 10),
			"symbol":     p.Params.Symbol,
		},
	}
}
