package launch

import "errors"

var (
	errPauseAlreadyPending = errors.New("launch: pause already requested")
	errPauseNotRequested   = errors.New("launch: no pause requested")
	errPauseTimelockActive = errors.New("launch: pause timelock not yet elapsed")
)

// RequestPause arms the administrative pause timelock for a market. A
// separate ExecutePause call is required once the delay has elapsed, and the
// request can be cancelled at any point before that.
func (e *Engine) RequestPause(marketID uint64, caller [20]byte) (*PauseRequest, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if caller != e.authority {
		return nil, errNotAuthority
	}
	market, ok, err := e.state.LaunchGetMarket(marketID)
	if err != nil {
		return nil, err
	}
	if !ok || market == nil {
		return nil, errMarketNotFound
	}
	if _, pending, err := e.state.LaunchPauseRequestGet(marketID); err != nil {
		return nil, err
	} else if pending {
		return nil, errPauseAlreadyPending
	}
	now := e.now()
	req := &PauseRequest{
		MarketID:     marketID,
		RequestedAt:  now,
		ExecuteAfter: now + int64(e.params.PauseDelaySeconds),
	}
	if err := e.state.LaunchPauseRequestPut(req); err != nil {
		return nil, err
	}
	e.emit(pauseEvent(EventTypePauseRequested, marketID, req.ExecuteAfter))
	return req, nil
}

// ExecutePause applies a previously requested pause once its timelock has
// elapsed. Pausing stops trading but never alters reserve accounting.
func (e *Engine) ExecutePause(marketID uint64, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.authority {
		return errNotAuthority
	}
	req, ok, err := e.state.LaunchPauseRequestGet(marketID)
	if err != nil {
		return err
	}
	if !ok || req == nil {
		return errPauseNotRequested
	}
	if e.now() < req.ExecuteAfter {
		return errPauseTimelockActive
	}
	market, ok, err := e.state.LaunchGetMarket(marketID)
	if err != nil {
		return err
	}
	if !ok || market == nil {
		return errMarketNotFound
	}
	market.Active = false
	if err := e.state.LaunchPutMarket(market); err != nil {
		return err
	}
	if err := e.state.LaunchPauseRequestDelete(marketID); err != nil {
		return err
	}
	e.emit(pauseEvent(EventTypePauseExecuted, marketID, 0))
	return nil
}

// CancelPause withdraws a pending pause request before execution.
func (e *Engine) CancelPause(marketID uint64, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.authority {
		return errNotAuthority
	}
	_, ok, err := e.state.LaunchPauseRequestGet(marketID)
	if err != nil {
		return err
	}
	if !ok {
		return errPauseNotRequested
	}
	if err := e.state.LaunchPauseRequestDelete(marketID); err != nil {
		return err
	}
	e.emit(pauseEvent(EventTypePauseCancelled, marketID, 0))
	return nil
}

// EmergencyPause halts trading immediately, bypassing the timelock. Any
// pending staged request is cleared alongside.
func (e *Engine) EmergencyPause(marketID uint64, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.authority {
		return errNotAuthority
	}
	market, ok, err := e.state.LaunchGetMarket(marketID)
	if err != nil {
		return err
	}
	if !ok || market == nil {
		return errMarketNotFound
	}
	market.Active = false
	if err := e.state.LaunchPutMarket(market); err != nil {
		return err
	}
	if _, pending, err := e.state.LaunchPauseRequestGet(marketID); err != nil {
		return err
	} else if pending {
		if err := e.state.LaunchPauseRequestDelete(marketID); err != nil {
			return err
		}
	}
	e.emit(pauseEvent(EventTypeEmergencyPause, marketID, 0))
	return nil
}

// Unpause resumes trading on a paused market.
func (e *Engine) Unpause(marketID uint64, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.authority {
		return errNotAuthority
	}
	market, ok, err := e.state.LaunchGetMarket(marketID)
	if err != nil {
		return err
	}
	if !ok || market == nil {
		return errMarketNotFound
	}
	market.Active = true
	if err := e.state.LaunchPutMarket(market); err != nil {
		return err
	}
	e.emit(pauseEvent(EventTypeUnpaused, marketID, 0))
	return nil
}
