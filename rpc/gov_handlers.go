package rpc

import (
	"net/http"
	"strings"

	"agora/native/governance"
	"agora/observability/metrics"
)

type govProposeParams struct {
	MarketID    uint64 `json:"marketId"`
	From        string `json:"from"`
	Action      string `json:"action"`
	Target      string `json:"target,omitempty"`
	Value       string `json:"value,omitempty"`
	Payload     string `json:"payload,omitempty"`
	Description string `json:"description,omitempty"`
}

type govVoteParams struct {
	ProposalID uint64 `json:"proposalId"`
	From       string `json:"from"`
	Support    bool   `json:"support"`
}

type govIDParams struct {
	ProposalID uint64 `json:"proposalId"`
}

type govExecuteResponse struct {
	ProposalID uint64 `json:"proposalId"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) handleGovPropose(w http.ResponseWriter, req *RPCRequest) {
	var params govProposeParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	proposer, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	action, ok := governance.ParseAction(strings.TrimSpace(params.Action))
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "unknown action kind", params.Action)
		return
	}
	var target [20]byte
	if strings.TrimSpace(params.Target) != "" {
		if target, err = parseAddress(params.Target); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
	}
	value, err := parseNonNegativeAmount(params.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}

	var view *govProposalView
	txErr := s.withTransaction(func() error {
		proposal, err := s.governance.Propose(params.MarketID, proposer, action, target, value, params.Payload, params.Description)
		if err != nil {
			return err
		}
		view = newGovProposalView(proposal)
		return nil
	})
	if txErr != nil {
		writeEngineError(w, req.ID, txErr)
		return
	}
	writeResult(w, req.ID, view)
}

func (s *Server) handleGovVote(w http.ResponseWriter, req *RPCRequest) {
	var params govVoteParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	voter, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	txErr := s.withTransaction(func() error {
		return s.governance.Vote(params.ProposalID, voter, params.Support)
	})
	if txErr != nil {
		writeEngineError(w, req.ID, txErr)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleGovExecute(w http.ResponseWriter, req *RPCRequest) {
	var params govIDParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	var status governance.ProposalStatus
	var forced bool
	var dispatchErr error
	txErr := s.withTransaction(func() error {
		proposal, err := s.governance.GetProposal(params.ProposalID)
		if err != nil {
			return err
		}
		forced = proposal.Action == governance.ActionForceGraduate
		status, err = s.governance.Execute(params.ProposalID)
		return err
	})
	if txErr != nil {
		if status != governance.ProposalStatusFailed {
			writeEngineError(w, req.ID, txErr)
			return
		}
		// Dispatch failed after the vote passed. The rollback above discarded
		// any partial action writes; persist the failure record alone.
		dispatchErr = txErr
		ferr := s.withTransaction(func() error {
			var err error
			status, err = s.governance.RecordDispatchFailure(params.ProposalID)
			return err
		})
		if ferr != nil {
			writeEngineError(w, req.ID, ferr)
			return
		}
	}
	if status == governance.ProposalStatusExecuted && forced {
		metrics.Launch().RecordGraduation("forced")
	}
	resp := govExecuteResponse{ProposalID: params.ProposalID, Status: status.StatusString()}
	if dispatchErr != nil {
		resp.Error = dispatchErr.Error()
	}
	writeResult(w, req.ID, resp)
}

func (s *Server) handleGovGetProposal(w http.ResponseWriter, req *RPCRequest) {
	var params govIDParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	proposal, err := s.governance.GetProposal(params.ProposalID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newGovProposalView(proposal))
}
