package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agora/config"
	"agora/native/governance"
	"agora/native/launch"
	"agora/native/quorum"
	"agora/observability/logging"
	"agora/rpc"
	"agora/state"
	"agora/storage"
)

func main() {
	configFile := flag.String("config", "./launchd.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("AGORA_ENV"))
	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("launchd", env, logging.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})

	roles, err := cfg.Validate()
	if err != nil {
		logger.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	params, err := cfg.LaunchParams()
	if err != nil {
		logger.Error("Invalid trading parameters", slog.Any("error", err))
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		panic(fmt.Sprintf("Failed to prepare data directory: %v", err))
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "launchpad"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager := state.NewManager(db)
	bank := state.NewBank(manager)

	launchEngine := launch.NewEngine()
	launchEngine.SetState(manager)
	launchEngine.SetAssets(bank)
	launchEngine.SetParams(params)
	launchEngine.SetAuthority(roles.Authority)
	launchEngine.SetGovernance(roles.Governance)
	launchEngine.SetTreasury(roles.Treasury)
	launchEngine.SetVault(roles.Vault)

	quorumEngine := quorum.NewEngine()
	quorumEngine.SetState(manager)
	quorumEngine.SetFactory(launchEngine)

	governanceEngine := governance.NewEngine()
	governanceEngine.SetState(manager)
	governanceEngine.SetPolicy(cfg.GovernancePolicy())
	governanceEngine.SetGraduator(launchEngine)
	governanceEngine.SetIdentity(roles.Governance)

	adminToken := cfg.ResolveAdminToken()
	if adminToken == "" {
		logger.Warn("No admin token configured; administrative RPC methods are disabled")
	}

	if cfg.MetricsAddress != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			server := &http.Server{
				Addr:         cfg.MetricsAddress,
				Handler:      mux,
				ReadTimeout:  5 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			logger.Info("starting metrics server", "addr", cfg.MetricsAddress)
			if err := server.ListenAndServe(); err != nil {
				logger.Error("Metrics server stopped", slog.Any("error", err))
			}
		}()
	}

	server := rpc.NewServer(launchEngine, quorumEngine, governanceEngine, manager, adminToken, logger, rpc.Options{
		RateLimit:       cfg.RPCRateLimit,
		RateBurst:       cfg.RPCRateBurst,
		ReadTimeout:     time.Duration(cfg.RPCReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(cfg.RPCWriteTimeout) * time.Second,
		IdleTimeout:     time.Duration(cfg.RPCIdleTimeout) * time.Second,
		MaxRequestBytes: cfg.RPCMaxRequestBytes,
	})
	logger.Info("launchpad ready",
		"network", cfg.NetworkName,
		"dataDir", cfg.DataDir,
		"feeBps", params.FeeBps,
	)
	if err := server.Start(cfg.ListenAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
