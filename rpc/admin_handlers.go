package rpc

import (
	"net/http"
	"strings"

	"agora/observability/metrics"
)

type adminPauseParams struct {
	MarketID uint64 `json:"marketId"`
	From     string `json:"from"`
}

type adminWithdrawParams struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Asset  string `json:"asset,omitempty"`
	Amount string `json:"amount"`
}

type pauseResponse struct {
	MarketID     uint64 `json:"marketId"`
	RequestedAt  int64  `json:"requestedAt,omitempty"`
	ExecuteAfter int64  `json:"executeAfter,omitempty"`
	OK           bool   `json:"ok"`
}

type reservesResponse struct {
	ReservedValue     string `json:"reservedValue"`
	WithdrawableValue string `json:"withdrawableValue"`
	ReservedAsset     string `json:"reservedAsset,omitempty"`
	WithdrawableAsset string `json:"withdrawableAsset,omitempty"`
}

func (s *Server) adminPauseCall(w http.ResponseWriter, r *http.Request, req *RPCRequest, kind string, call func(marketID uint64, caller [20]byte) error) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params adminPauseParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	txErr := s.withTransaction(func() error {
		return call(params.MarketID, caller)
	})
	if txErr != nil {
		writeEngineError(w, req.ID, txErr)
		return
	}
	metrics.Launch().RecordPause(kind)
	writeResult(w, req.ID, pauseResponse{MarketID: params.MarketID, OK: true})
}

func (s *Server) handleAdminRequestPause(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params adminPauseParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	resp := pauseResponse{MarketID: params.MarketID, OK: true}
	txErr := s.withTransaction(func() error {
		request, err := s.launch.RequestPause(params.MarketID, caller)
		if err != nil {
			return err
		}
		resp.RequestedAt = request.RequestedAt
		resp.ExecuteAfter = request.ExecuteAfter
		return nil
	})
	if txErr != nil {
		writeEngineError(w, req.ID, txErr)
		return
	}
	metrics.Launch().RecordPause("requested")
	writeResult(w, req.ID, resp)
}

func (s *Server) handleAdminExecutePause(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.adminPauseCall(w, r, req, "executed", s.launch.ExecutePause)
}

func (s *Server) handleAdminCancelPause(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.adminPauseCall(w, r, req, "cancelled", s.launch.CancelPause)
}

func (s *Server) handleAdminEmergencyPause(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.adminPauseCall(w, r, req, "emergency", s.launch.EmergencyPause)
}

func (s *Server) handleAdminUnpause(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.adminPauseCall(w, r, req, "unpaused", s.launch.Unpause)
}

type reservesParams struct {
	Asset string `json:"asset,omitempty"`
}

func (s *Server) handleAdminReserves(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params reservesParams
	if len(req.Params) > 0 {
		if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
	}
	reserved, err := s.launch.ReservedValue()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	withdrawable, err := s.launch.WithdrawableValue()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	resp := reservesResponse{
		ReservedValue:     formatAmount(reserved),
		WithdrawableValue: formatAmount(withdrawable),
	}
	if asset := strings.TrimSpace(params.Asset); asset != "" {
		reservedAsset, err := s.launch.ReservedAsset(asset)
		if err != nil {
			writeEngineError(w, req.ID, err)
			return
		}
		withdrawableAsset, err := s.launch.WithdrawableAsset(asset)
		if err != nil {
			writeEngineError(w, req.ID, err)
			return
		}
		resp.ReservedAsset = formatAmount(reservedAsset)
		resp.WithdrawableAsset = formatAmount(withdrawableAsset)
	}
	writeResult(w, req.ID, resp)
}

func (s *Server) handleAdminWithdrawValue(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params adminWithdrawParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	to, err := parseAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parsePositiveAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	txErr := s.withTransaction(func() error {
		return s.launch.EmergencyWithdrawValue(caller, to, amount)
	})
	if txErr != nil {
		writeEngineError(w, req.ID, txErr)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleAdminWithdrawAsset(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params adminWithdrawParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	to, err := parseAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if strings.TrimSpace(params.Asset) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "asset is required", nil)
		return
	}
	amount, err := parsePositiveAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	txErr := s.withTransaction(func() error {
		return s.launch.EmergencyWithdrawAsset(caller, params.Asset, to, amount)
	})
	if txErr != nil {
		writeEngineError(w, req.ID, txErr)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}
