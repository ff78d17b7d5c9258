package quorum

import "agora/native/launch"

// Proposal is a pending request to form a market. Every listed candidate must
// approve before the deadline; the final approval auto-executes formation.
// The record is kept after execution for auditability.
type Proposal struct {
	ID        uint64
	Proposer  [20]byte
	Members   [][20]byte
	Weights   []uint64
	Params    launch.MarketParams
	Approvals [][20]byte
	Deadline  int64
	Executed  bool
	MarketID  uint64
	CreatedAt int64
}

// Clone returns a deep copy of the proposal.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Members = make([][20]byte, len(p.Members))
	copy(clone.Members, p.Members)
	clone.Weights = append([]uint64(nil), p.Weights...)
	clone.Approvals = make([][20]byte, len(p.Approvals))
	copy(clone.Approvals, p.Approvals)
	return &clone
}

// HasApproved reports whether the member already recorded an approval.
func (p *Proposal) HasApproved(member [20]byte) bool {
	if p == nil {
		return false
	}
	for _, approved := range p.Approvals {
		if approved == member {
			return true
		}
	}
	return false
}

func (p *Proposal) hasMember(member [20]byte) bool {
	if p == nil {
		return false
	}
	for _, candidate := range p.Members {
		if candidate == member {
			return true
		}
	}
	return false
}
