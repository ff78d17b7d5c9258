package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	errInvalidMinimumPurchase = errors.New("config: MinimumPurchase must be a non-negative decimal integer")
	errMissingAddress         = errors.New("config: address not set")
)

// ParseAddress decodes a 0x-prefixed 20-byte hex address.
func ParseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return addr, errMissingAddress
	}
	trimmed = strings.TrimPrefix(trimmed, "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("config: invalid address %q: %w", s, err)
	}
	if len(raw) != 20 {
		return addr, fmt.Errorf("config: invalid address %q: want 20 bytes, got %d", s, len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// Roles bundles the parsed protocol addresses.
type Roles struct {
	Authority  [20]byte
	Governance [20]byte
	Treasury   [20]byte
	Vault      [20]byte
}

// Validate checks the basis-point bounds and parses the role addresses. All
// four addresses are required for the daemon to start.
func (c *Config) Validate() (Roles, error) {
	var roles Roles
	if c.FeeBps > 10_000 {
		return roles, fmt.Errorf("config: FeeBps %d exceeds 10000", c.FeeBps)
	}
	if c.ToleranceBps > 10_000 {
		return roles, fmt.Errorf("config: ToleranceBps %d exceeds 10000", c.ToleranceBps)
	}
	if c.CurveAllocationBps == 0 || c.CurveAllocationBps > 10_000 {
		return roles, fmt.Errorf("config: CurveAllocationBps %d outside (0, 10000]", c.CurveAllocationBps)
	}
	if c.QuorumBps == 0 || c.QuorumBps > 10_000 {
		return roles, fmt.Errorf("config: QuorumBps %d outside (0, 10000]", c.QuorumBps)
	}
	if _, err := c.LaunchParams(); err != nil {
		return roles, err
	}

	var err error
	if roles.Authority, err = ParseAddress(c.AuthorityAddress); err != nil {
		return roles, fmt.Errorf("config: AuthorityAddress: %w", err)
	}
	if roles.Governance, err = ParseAddress(c.GovernanceAddress); err != nil {
		return roles, fmt.Errorf("config: GovernanceAddress: %w", err)
	}
	if roles.Treasury, err = ParseAddress(c.TreasuryAddress); err != nil {
		return roles, fmt.Errorf("config: TreasuryAddress: %w", err)
	}
	if roles.Vault, err = ParseAddress(c.VaultAddress); err != nil {
		return roles, fmt.Errorf("config: VaultAddress: %w", err)
	}
	return roles, nil
}
