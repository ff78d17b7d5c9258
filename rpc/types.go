package rpc

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"agora/native/governance"
	"agora/native/launch"
	"agora/native/quorum"
)

// parseAddress decodes a 0x-prefixed 20-byte hex address.
func parseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return addr, fmt.Errorf("address is required")
	}
	trimmed = strings.TrimPrefix(trimmed, "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address: %w", err)
	}
	if len(raw) != 20 {
		return addr, fmt.Errorf("invalid address: want 20 bytes, got %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

func formatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// parsePositiveAmount parses a strictly positive decimal integer.
func parsePositiveAmount(value string) (*big.Int, error) {
	amount, err := parseNonNegativeAmount(value)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

// parseNonNegativeAmount parses a non-negative decimal integer; empty means
// zero.
func parseNonNegativeAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	normalized := strings.TrimPrefix(trimmed, "+")
	if strings.HasPrefix(normalized, "-") {
		return nil, fmt.Errorf("amount must not be negative")
	}
	amount, ok := new(big.Int).SetString(normalized, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	return amount, nil
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// marketView is the JSON projection of a market record.
type marketView struct {
	ID          uint64   `json:"id"`
	Asset       string   `json:"asset"`
	Members     []string `json:"members"`
	Weights     []uint64 `json:"weights"`
	TargetRaise string   `json:"targetRaise"`
	Raised      string   `json:"raised"`
	UnitsSold   string   `json:"unitsSold"`
	BasePrice   string   `json:"basePrice"`
	Slope       string   `json:"slope"`
	CurveSupply string   `json:"curveSupply"`
	TotalSupply string   `json:"totalSupply"`
	Graduated   bool     `json:"graduated"`
	Active      bool     `json:"active"`
	Thesis      string   `json:"thesis,omitempty"`
	Pool        string   `json:"pool,omitempty"`
	CreatedAt   int64    `json:"createdAt"`
}

func newMarketView(m *launch.Market) *marketView {
	if m == nil {
		return nil
	}
	members := make([]string, len(m.Members))
	for i, member := range m.Members {
		members[i] = formatAddress(member)
	}
	return &marketView{
		ID:          m.ID,
		Asset:       m.Asset,
		Members:     members,
		Weights:     append([]uint64(nil), m.Weights...),
		TargetRaise: formatAmount(m.TargetRaise),
		Raised:      formatAmount(m.Raised),
		UnitsSold:   formatAmount(m.UnitsSold),
		BasePrice:   formatAmount(m.BasePrice),
		Slope:       formatAmount(m.Slope),
		CurveSupply: formatAmount(m.CurveSupply),
		TotalSupply: formatAmount(m.TotalSupply),
		Graduated:   m.Graduated,
		Active:      m.Active,
		Thesis:      m.Thesis,
		Pool:        m.Pool,
		CreatedAt:   m.CreatedAt,
	}
}

// receiptView is the JSON projection of a trade receipt.
type receiptView struct {
	MarketID  uint64 `json:"marketId"`
	Trader    string `json:"trader"`
	Units     string `json:"units"`
	Spend     string `json:"spend"`
	Fee       string `json:"fee"`
	Net       string `json:"net"`
	Graduated bool   `json:"graduated"`
}

func newReceiptView(r *launch.TradeReceipt) *receiptView {
	if r == nil {
		return nil
	}
	return &receiptView{
		MarketID:  r.MarketID,
		Trader:    formatAddress(r.Trader),
		Units:     formatAmount(r.Units),
		Spend:     formatAmount(r.Spend),
		Fee:       formatAmount(r.Fee),
		Net:       formatAmount(r.Net),
		Graduated: r.Graduated,
	}
}

// quorumProposalView is the JSON projection of a formation proposal.
type quorumProposalView struct {
	ID        uint64   `json:"id"`
	Proposer  string   `json:"proposer"`
	Members   []string `json:"members"`
	Weights   []uint64 `json:"weights"`
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name,omitempty"`
	Thesis    string   `json:"thesis,omitempty"`
	Approvals []string `json:"approvals"`
	Deadline  int64    `json:"deadline"`
	Executed  bool     `json:"executed"`
	MarketID  uint64   `json:"marketId,omitempty"`
	CreatedAt int64    `json:"createdAt"`
}

func newQuorumProposalView(p *quorum.Proposal) *quorumProposalView {
	if p == nil {
		return nil
	}
	members := make([]string, len(p.Members))
	for i, member := range p.Members {
		members[i] = formatAddress(member)
	}
	approvals := make([]string, len(p.Approvals))
	for i, approval := range p.Approvals {
		approvals[i] = formatAddress(approval)
	}
	return &quorumProposalView{
		ID:        p.ID,
		Proposer:  formatAddress(p.Proposer),
		Members:   members,
		Weights:   append([]uint64(nil), p.Weights...),
		Symbol:    p.Params.Symbol,
		Name:      p.Params.Name,
		Thesis:    p.Params.Thesis,
		Approvals: approvals,
		Deadline:  p.Deadline,
		Executed:  p.Executed,
		MarketID:  p.MarketID,
		CreatedAt: p.CreatedAt,
	}
}

// govProposalView is the JSON projection of a governance proposal.
type govProposalView struct {
	ID            uint64 `json:"id"`
	MarketID      uint64 `json:"marketId"`
	Proposer      string `json:"proposer"`
	Action        string `json:"action"`
	Target        string `json:"target,omitempty"`
	Value         string `json:"value"`
	Payload       string `json:"payload,omitempty"`
	Description   string `json:"description,omitempty"`
	ForWeight     uint64 `json:"forWeight"`
	AgainstWeight uint64 `json:"againstWeight"`
	VoteDeadline  int64  `json:"voteDeadline"`
	ExecuteBy     int64  `json:"executeBy"`
	Status        string `json:"status"`
	CreatedAt     int64  `json:"createdAt"`
}

func newGovProposalView(p *governance.Proposal) *govProposalView {
	if p == nil {
		return nil
	}
	var zero [20]byte
	target := ""
	if p.Target != zero {
		target = formatAddress(p.Target)
	}
	return &govProposalView{
		ID:            p.ID,
		MarketID:      p.MarketID,
		Proposer:      formatAddress(p.Proposer),
		Action:        p.Action.String(),
		Target:        target,
		Value:         formatAmount(p.Value),
		Payload:       p.Payload,
		Description:   p.Description,
		ForWeight:     p.ForWeight,
		AgainstWeight: p.AgainstWeight,
		VoteDeadline:  p.VoteDeadline,
		ExecuteBy:     p.ExecuteBy,
		Status:        p.Status.StatusString(),
		CreatedAt:     p.CreatedAt,
	}
}
