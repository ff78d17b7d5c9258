package state

import (
	"math/big"

	"agora/native/governance"
	"agora/native/launch"
	"agora/native/quorum"
)

// RLP has no signed integer encoding, so the codec structs carry Unix
// timestamps as uint64. All persisted timestamps are non-negative by
// construction.

type marketCodec struct {
	ID          uint64
	Asset       string
	Members     [][20]byte
	Weights     []uint64
	TargetRaise *big.Int
	Raised      *big.Int
	UnitsSold   *big.Int
	BasePrice   *big.Int
	Slope       *big.Int
	CurveSupply *big.Int
	TotalSupply *big.Int
	Graduated   bool
	Active      bool
	Thesis      string
	Pool        string
	CreatedAt   uint64
}

func encodeMarket(m *launch.Market) *marketCodec {
	return &marketCodec{
		ID:          m.ID,
		Asset:       m.Asset,
		Members:     m.Members,
		Weights:     m.Weights,
		TargetRaise: nonNil(m.TargetRaise),
		Raised:      nonNil(m.Raised),
		UnitsSold:   nonNil(m.UnitsSold),
		BasePrice:   nonNil(m.BasePrice),
		Slope:       nonNil(m.Slope),
		CurveSupply: nonNil(m.CurveSupply),
		TotalSupply: nonNil(m.TotalSupply),
		Graduated:   m.Graduated,
		Active:      m.Active,
		Thesis:      m.Thesis,
		Pool:        m.Pool,
		CreatedAt:   uint64(m.CreatedAt),
	}
}

func (c *marketCodec) decode() *launch.Market {
	return &launch.Market{
		ID:          c.ID,
		Asset:       c.Asset,
		Members:     c.Members,
		Weights:     c.Weights,
		TargetRaise: nonNil(c.TargetRaise),
		Raised:      nonNil(c.Raised),
		UnitsSold:   nonNil(c.UnitsSold),
		BasePrice:   nonNil(c.BasePrice),
		Slope:       nonNil(c.Slope),
		CurveSupply: nonNil(c.CurveSupply),
		TotalSupply: nonNil(c.TotalSupply),
		Graduated:   c.Graduated,
		Active:      c.Active,
		Thesis:      c.Thesis,
		Pool:        c.Pool,
		CreatedAt:   int64(c.CreatedAt),
	}
}

type pauseCodec struct {
	MarketID     uint64
	RequestedAt  uint64
	ExecuteAfter uint64
}

func encodePause(req *launch.PauseRequest) *pauseCodec {
	return &pauseCodec{
		MarketID:     req.MarketID,
		RequestedAt:  uint64(req.RequestedAt),
		ExecuteAfter: uint64(req.ExecuteAfter),
	}
}

func (c *pauseCodec) decode() *launch.PauseRequest {
	return &launch.PauseRequest{
		MarketID:     c.MarketID,
		RequestedAt:  int64(c.RequestedAt),
		ExecuteAfter: int64(c.ExecuteAfter),
	}
}

type marketParamsCodec struct {
	Symbol      string
	Name        string
	TotalSupply *big.Int
	BasePrice   *big.Int
	Slope       *big.Int
	TargetRaise *big.Int
	Thesis      string
}

type quorumProposalCodec struct {
	ID        uint64
	Proposer  [20]byte
	Members   [][20]byte
	Weights   []uint64
	Params    marketParamsCodec
	Approvals [][20]byte
	Deadline  uint64
	Executed  bool
	MarketID  uint64
	CreatedAt uint64
}

func encodeQuorumProposal(p *quorum.Proposal) *quorumProposalCodec {
	return &quorumProposalCodec{
		ID:       p.ID,
		Proposer: p.Proposer,
		Members:  p.Members,
		Weights:  p.Weights,
		Params: marketParamsCodec{
			Symbol:      p.Params.Symbol,
			Name:        p.Params.Name,
			TotalSupply: nonNil(p.Params.TotalSupply),
			BasePrice:   nonNil(p.Params.BasePrice),
			Slope:       nonNil(p.Params.Slope),
			TargetRaise: nonNil(p.Params.TargetRaise),
			Thesis:      p.Params.Thesis,
		},
		Approvals: p.Approvals,
		Deadline:  uint64(p.Deadline),
		Executed:  p.Executed,
		MarketID:  p.MarketID,
		CreatedAt: uint64(p.CreatedAt),
	}
}

func (c *quorumProposalCodec) decode() *quorum.Proposal {
	return &quorum.Proposal{
		ID:       c.ID,
		Proposer: c.Proposer,
		Members:  c.Members,
		Weights:  c.Weights,
		Params: launch.MarketParams{
			Symbol:      c.Params.Symbol,
			Name:        c.Params.Name,
			TotalSupply: nonNil(c.Params.TotalSupply),
			BasePrice:   nonNil(c.Params.BasePrice),
			Slope:       nonNil(c.Params.Slope),
			TargetRaise: nonNil(c.Params.TargetRaise),
			Thesis:      c.Params.Thesis,
		},
		Approvals: c.Approvals,
		Deadline:  int64(c.Deadline),
		Executed:  c.Executed,
		MarketID:  c.MarketID,
		CreatedAt: int64(c.CreatedAt),
	}
}

type govProposalCodec struct {
	ID            uint64
	MarketID      uint64
	Proposer      [20]byte
	Action        uint8
	Target        [20]byte
	Value         *big.Int
	Payload       string
	Description   string
	ForWeight     uint64
	AgainstWeight uint64
	VoteDeadline  uint64
	ExecuteBy     uint64
	Status        uint8
	CreatedAt     uint64
}

func encodeGovProposal(p *governance.Proposal) *govProposalCodec {
	return &govProposalCodec{
		ID:            p.ID,
		MarketID:      p.MarketID,
		Proposer:      p.Proposer,
		Action:        uint8(p.Action),
		Target:        p.Target,
		Value:         nonNil(p.Value),
		Payload:       p.Payload,
		Description:   p.Description,
		ForWeight:     p.ForWeight,
		AgainstWeight: p.AgainstWeight,
		VoteDeadline:  uint64(p.VoteDeadline),
		ExecuteBy:     uint64(p.ExecuteBy),
		Status:        uint8(p.Status),
		CreatedAt:     uint64(p.CreatedAt),
	}
}

func (c *govProposalCodec) decode() *governance.Proposal {
	return &governance.Proposal{
		ID:            c.ID,
		MarketID:      c.MarketID,
		Proposer:      c.Proposer,
		Action:        governance.ActionKind(c.Action),
		Target:        c.Target,
		Value:         nonNil(c.Value),
		Payload:       c.Payload,
		Description:   c.Description,
		ForWeight:     c.ForWeight,
		AgainstWeight: c.AgainstWeight,
		VoteDeadline:  int64(c.VoteDeadline),
		ExecuteBy:     int64(c.ExecuteBy),
		Status:        governance.ProposalStatus(c.Status),
		CreatedAt:     int64(c.CreatedAt),
	}
}

type voteCodec struct {
	ProposalID uint64
	Voter      [20]byte
	Support    bool
	Weight     uint64
	Timestamp  uint64
}

func encodeVote(v *governance.Vote) *voteCodec {
	return &voteCodec{
		ProposalID: v.ProposalID,
		Voter:      v.Voter,
		Support:    v.Support,
		Weight:     v.Weight,
		Timestamp:  uint64(v.Timestamp),
	}
}

func (c *voteCodec) decode() *governance.Vote {
	return &governance.Vote{
		ProposalID: c.ProposalID,
		Voter:      c.Voter,
		Support:    c.Support,
		Weight:     c.Weight,
		Timestamp:  int64(c.Timestamp),
	}
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
