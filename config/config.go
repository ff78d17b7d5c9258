package config

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"agora/native/governance"
	"agora/native/launch"
)

type Config struct {
	ListenAddress  string `toml:"ListenAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	NetworkName    string `toml:"NetworkName"`

	LogLevel string `toml:"LogLevel"`
	LogFile  string `toml:"LogFile"`

	AuthorityAddress  string `toml:"AuthorityAddress"`
	GovernanceAddress string `toml:"GovernanceAddress"`
	TreasuryAddress   string `toml:"TreasuryAddress"`
	VaultAddress      string `toml:"VaultAddress"`

	// AdminToken guards the administrative RPC methods. AdminTokenEnv names
	// an environment variable consulted when the inline value is empty, so
	// deployments can keep the secret out of the config file.
	AdminToken    string `toml:"AdminToken"`
	AdminTokenEnv string `toml:"AdminTokenEnv"`

	FeeBps             uint64 `toml:"FeeBps"`
	MinimumPurchase    string `toml:"MinimumPurchase"`
	PauseDelaySeconds  uint64 `toml:"PauseDelaySeconds"`
	GraduationSeconds  uint64 `toml:"GraduationSeconds"`
	ToleranceBps       uint64 `toml:"ToleranceBps"`
	CurveAllocationBps uint64 `toml:"CurveAllocationBps"`

	VotingPeriodSeconds    uint64 `toml:"VotingPeriodSeconds"`
	ExecutionWindowSeconds uint64 `toml:"ExecutionWindowSeconds"`
	QuorumBps              uint64 `toml:"QuorumBps"`

	RPCRateLimit       float64 `toml:"RPCRateLimit"`
	RPCRateBurst       int     `toml:"RPCRateBurst"`
	RPCReadTimeout     uint64  `toml:"RPCReadTimeout"`
	RPCWriteTimeout    uint64  `toml:"RPCWriteTimeout"`
	RPCIdleTimeout     uint64  `toml:"RPCIdleTimeout"`
	RPCMaxRequestBytes int64   `toml:"RPCMaxRequestBytes"`
}

// Load reads the configuration at path, creating a default file when none
// exists. Unset fields fall back to defaults; address fields are checked
// separately via Validate.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	defaults := defaultConfig()
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = defaults.ListenAddress
	}
	if strings.TrimSpace(c.MetricsAddress) == "" {
		c.MetricsAddress = defaults.MetricsAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaults.DataDir
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = defaults.NetworkName
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.FeeBps == 0 {
		c.FeeBps = defaults.FeeBps
	}
	if strings.TrimSpace(c.MinimumPurchase) == "" {
		c.MinimumPurchase = defaults.MinimumPurchase
	}
	if c.PauseDelaySeconds == 0 {
		c.PauseDelaySeconds = defaults.PauseDelaySeconds
	}
	if c.GraduationSeconds == 0 {
		c.GraduationSeconds = defaults.GraduationSeconds
	}
	if c.ToleranceBps == 0 {
		c.ToleranceBps = defaults.ToleranceBps
	}
	if c.CurveAllocationBps == 0 {
		c.CurveAllocationBps = defaults.CurveAllocationBps
	}
	if c.VotingPeriodSeconds == 0 {
		c.VotingPeriodSeconds = defaults.VotingPeriodSeconds
	}
	if c.ExecutionWindowSeconds == 0 {
		c.ExecutionWindowSeconds = defaults.ExecutionWindowSeconds
	}
	if c.QuorumBps == 0 {
		c.QuorumBps = defaults.QuorumBps
	}
	if c.RPCRateLimit == 0 {
		c.RPCRateLimit = defaults.RPCRateLimit
	}
	if c.RPCRateBurst == 0 {
		c.RPCRateBurst = defaults.RPCRateBurst
	}
	if c.RPCReadTimeout == 0 {
		c.RPCReadTimeout = defaults.RPCReadTimeout
	}
	if c.RPCWriteTimeout == 0 {
		c.RPCWriteTimeout = defaults.RPCWriteTimeout
	}
	if c.RPCIdleTimeout == 0 {
		c.RPCIdleTimeout = defaults.RPCIdleTimeout
	}
	if c.RPCMaxRequestBytes == 0 {
		c.RPCMaxRequestBytes = defaults.RPCMaxRequestBytes
	}
}

func defaultConfig() *Config {
	base := launch.DefaultParams()
	policy := governance.DefaultPolicy()
	return &Config{
		ListenAddress:          ":8545",
		MetricsAddress:         ":9091",
		DataDir:                "./agora-data",
		NetworkName:            "agora-local",
		LogLevel:               "info",
		FeeBps:                 base.FeeBps,
		MinimumPurchase:        base.MinimumPurchase.String(),
		PauseDelaySeconds:      base.PauseDelaySeconds,
		GraduationSeconds:      base.GraduationSeconds,
		ToleranceBps:           base.ToleranceBps,
		CurveAllocationBps:     base.CurveAllocationBps,
		VotingPeriodSeconds:    policy.VotingPeriodSeconds,
		ExecutionWindowSeconds: policy.ExecutionWindowSeconds,
		QuorumBps:              policy.QuorumBps,
		RPCRateLimit:           50,
		RPCRateBurst:           100,
		RPCReadTimeout:         15,
		RPCWriteTimeout:        30,
		RPCIdleTimeout:         120,
		RPCMaxRequestBytes:     1 << 20,
	}
}

// createDefault creates and saves a default configuration file. The address
// fields are left empty: the operator must fill them in before the daemon
// passes Validate.
func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// ResolveAdminToken returns the administrative bearer token, consulting the
// configured environment variable when the inline value is empty.
func (c *Config) ResolveAdminToken() string {
	if token := strings.TrimSpace(c.AdminToken); token != "" {
		return token
	}
	if env := strings.TrimSpace(c.AdminTokenEnv); env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// LaunchParams converts the configured trading knobs into engine parameters.
func (c *Config) LaunchParams() (launch.Params, error) {
	minimum, ok := new(big.Int).SetString(strings.TrimSpace(c.MinimumPurchase), 10)
	if !ok || minimum.Sign() < 0 {
		return launch.Params{}, errInvalidMinimumPurchase
	}
	return launch.Params{
		FeeBps:             c.FeeBps,
		MinimumPurchase:    minimum,
		PauseDelaySeconds:  c.PauseDelaySeconds,
		GraduationSeconds:  c.GraduationSeconds,
		ToleranceBps:       c.ToleranceBps,
		CurveAllocationBps: c.CurveAllocationBps,
	}, nil
}

// GovernancePolicy converts the configured voting knobs into a policy.
func (c *Config) GovernancePolicy() governance.Policy {
	return governance.Policy{
		VotingPeriodSeconds:    c.VotingPeriodSeconds,
		ExecutionWindowSeconds: c.ExecutionWindowSeconds,
		QuorumBps:              c.QuorumBps,
	}
}
