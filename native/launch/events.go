package launch

import (
	"encoding/hex"
	"strconv"

	"agora/core/events"
	"agora/core/types"
)

const (
	// EventTypeMarketCreated is emitted when a quorum launches a market.
	EventTypeMarketCreated = "launch.market.created"
	// EventTypeBuy is emitted for every executed curve purchase.
	EventTypeBuy = "launch.trade.buy"
	// EventTypeSell is emitted for every executed curve sale.
	EventTypeSell = "launch.trade.sell"
	// EventTypeGraduated is emitted when a market leaves its curve.
	EventTypeGraduated = "launch.market.graduated"
	// EventTypePoolSeeded is emitted when graduation seeds a liquidity pool.
	EventTypePoolSeeded = "launch.market.poolSeeded"
	// EventTypePauseRequested is emitted when the pause timelock is armed.
	EventTypePauseRequested = "launch.pause.requested"
	// EventTypePauseExecuted is emitted when a pending pause is applied.
	EventTypePauseExecuted = "launch.pause.executed"
	// EventTypePauseCancelled is emitted when a pending pause is withdrawn.
	EventTypePauseCancelled = "launch.pause.cancelled"
	// EventTypeEmergencyPause is emitted when a market is paused immediately.
	EventTypeEmergencyPause = "launch.pause.emergency"
	// EventTypeUnpaused is emitted when trading resumes.
	EventTypeUnpaused = "launch.unpaused"
	// EventTypeSurplusWithdrawn is emitted for emergency surplus withdrawals.
	EventTypeSurplusWithdrawn = "launch.surplus.withdrawn"
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

func marketCreatedEvent(m *Market) *types.Event {
	attrs := map[string]string{
		"marketId": strconv.FormatUint(m.ID, 10),
		"asset":    m.Asset,
		"members":  strconv.Itoa(len(m.Members)),
	}
	if m.TargetRaise != nil {
		attrs["targetRaise"] = m.TargetRaise.String()
	}
	if m.TotalSupply != nil {
		attrs["totalSupply"] = m.TotalSupply.String()
	}
	return &types.Event{Type: EventTypeMarketCreated, Attributes: attrs}
}

func tradeEvent(eventType string, r *TradeReceipt) *types.Event {
	attrs := map[string]string{
		"marketId": strconv.FormatUint(r.MarketID, 10),
		"trader":   hexAddr(r.Trader),
		"units":    r.Units.String(),
		"spend":    r.Spend.String(),
		"fee":      r.Fee.String(),
		"net":      r.Net.String(),
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func graduatedEvent(m *Market, forced bool) *types.Event {
	attrs := map[string]string{
		"marketId": strconv.FormatUint(m.ID, 10),
		"asset":    m.Asset,
		"raised":   m.Raised.String(),
		"forced":   strconv.FormatBool(forced),
	}
	return &types.Event{Type: EventTypeGraduated, Attributes: attrs}
}

func poolSeededEvent(m *Market, unitsUsed, valueUsed string) *types.Event {
	return &types.Event{
		Type: EventTypePoolSeeded,
		Attributes: map[string]string{
			"marketId":  strconv.FormatUint(m.ID, 10),
			"asset":     m.Asset,
			"pool":      m.Pool,
			"unitsUsed": unitsUsed,
			"valueUsed": valueUsed,
		},
	}
}

func pauseEvent(eventType string, marketID uint64, executeAfter int64) *types.Event {
	attrs := map[string]string{
		"marketId": strconv.FormatUint(marketID, 10),
	}
	if executeAfter > 0 {
		attrs["executeAfter"] = strconv.FormatInt(executeAfter, 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func surplusWithdrawnEvent(kind string, to [20]byte, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeSurplusWithdrawn,
		Attributes: map[string]string{
			"kind":   kind,
			"to":     hexAddr(to),
			"amount": amount,
		},
	}
}
