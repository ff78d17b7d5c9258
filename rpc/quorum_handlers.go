package rpc

import (
	"net/http"

	"agora/native/launch"
	"agora/observability/metrics"
)

type quorumProposeParams struct {
	From        string   `json:"from"`
	Members     []string `json:"members"`
	Weights     []uint64 `json:"weights"`
	Symbol      string   `json:"symbol"`
	Name        string   `json:"name,omitempty"`
	TotalSupply string   `json:"totalSupply"`
	BasePrice   string   `json:"basePrice"`
	Slope       string   `json:"slope"`
	TargetRaise string   `json:"targetRaise"`
	Thesis      string   `json:"thesis,omitempty"`
}

type quorumApproveParams struct {
	ProposalID uint64 `json:"proposalId"`
	From       string `json:"from"`
}

type quorumIDParams struct {
	ProposalID uint64 `json:"proposalId"`
}

func (s *Server) handleQuorumPropose(w http.ResponseWriter, req *RPCRequest) {
	var params quorumProposeParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	proposer, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	members := make([][20]byte, len(params.Members))
	for i, raw := range params.Members {
		member, err := parseAddress(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		members[i] = member
	}
	totalSupply, err := parsePositiveAmount(params.TotalSupply)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "totalSupply: "+err.Error(), nil)
		return
	}
	basePrice, err := parsePositiveAmount(params.BasePrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "basePrice: "+err.Error(), nil)
		return
	}
	slope, err := parseNonNegativeAmount(params.Slope)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "slope: "+err.Error(), nil)
		return
	}
	targetRaise, err := parsePositiveAmount(params.TargetRaise)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "targetRaise: "+err.Error(), nil)
		return
	}

	marketParams := launch.MarketParams{
		Symbol:      params.Symbol,
		Name:        params.Name,
		TotalSupply: totalSupply,
		BasePrice:   basePrice,
		Slope:       slope,
		TargetRaise: targetRaise,
		Thesis:      params.Thesis,
	}

	var view *quorumProposalView
	txErr := s.withTransaction(func() error {
		proposal, err := s.quorum.Propose(proposer, members, params.Weights, marketParams)
		if err != nil {
			return err
		}
		view = newQuorumProposalView(proposal)
		return nil
	})
	if txErr != nil {
		writeEngineError(w, req.ID, txErr)
		return
	}
	writeResult(w, req.ID, view)
}

func (s *Server) handleQuorumApprove(w http.ResponseWriter, req *RPCRequest) {
	var params quorumApproveParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	member, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}

	var view *quorumProposalView
	txErr := s.withTransaction(func() error {
		proposal, err := s.quorum.Approve(params.ProposalID, member)
		if err != nil {
			return err
		}
		view = newQuorumProposalView(proposal)
		return nil
	})
	if txErr != nil {
		writeEngineError(w, req.ID, txErr)
		return
	}
	if view.Executed {
		metrics.Launch().RecordMarketCreated()
	}
	writeResult(w, req.ID, view)
}

func (s *Server) handleQuorumGetProposal(w http.ResponseWriter, req *RPCRequest) {
	var params quorumIDParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	proposal, err := s.quorum.GetProposal(params.ProposalID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newQuorumProposalView(proposal))
}
