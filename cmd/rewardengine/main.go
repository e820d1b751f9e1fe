package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/finova-oss/rewardengine/internal/antibot"
	"github.com/finova-oss/rewardengine/internal/audit"
	"github.com/finova-oss/rewardengine/internal/config"
	"github.com/finova-oss/rewardengine/internal/engine"
	"github.com/finova-oss/rewardengine/internal/logging"
	"github.com/finova-oss/rewardengine/internal/metrics"
	"github.com/finova-oss/rewardengine/internal/model"
	"github.com/finova-oss/rewardengine/internal/reward"
	"github.com/finova-oss/rewardengine/internal/store"
	"github.com/finova-oss/rewardengine/internal/store/cache"
	"github.com/finova-oss/rewardengine/internal/store/memory"
	"github.com/finova-oss/rewardengine/internal/store/postgres"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	appName = "rewardengine"
	version = "v0.1.0"
)

// cfgPath is bound by the root command's persistent --config flag; every
// subcommand reads it via newRuntime.
var cfgPath string

var rootCmd = &cobra.Command{
	Use:     appName,
	Short:   "Off-chain reward and integrity engine for a social-mining platform",
	Version: version,
	Long: `rewardengine is the reference operator CLI for the off-chain reward and
integrity engine (spec §9): it drives submitActivity, getUserState,
recomputeReferralTier and evaluateHumanProbability in-process against a
memory or Postgres-backed state store — there is no RPC boundary in this
build, so the CLI stands in for one.`,
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file (defaults if unset)")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(referralCmd)
	rootCmd.AddCommand(antibotCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(metricsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime bundles everything a subcommand needs: the engine, the
// concrete store (subcommands like seed reach past the interface to
// CreateUser/SetNetworkState), the metrics registry, and a close func
// for backends that hold a connection open.
type runtime struct {
	engine   *engine.Engine
	store    store.Store
	metrics  *metrics.Registry
	gatherer prometheus.Gatherer
	log      zerolog.Logger
	close    func() error
}

// newRuntime loads config.Config from cfgPath (or built-in defaults),
// wires the selected store backend, and constructs an Engine — mirroring
// the teacher's cmd_health.go pattern of one load-then-build helper shared
// across every subcommand's RunE.
func newRuntime() (*runtime, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logging.New(cfg.Logging, os.Stderr)
	sink := audit.NewChannelSink(cfg.AuditBufferCapacity, log)

	var (
		st        store.Store
		closeFunc = func() error { return nil }
	)
	switch cfg.StoreBackend {
	case "postgres":
		pgStore, err := postgres.Open(cfg.Postgres, sink)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		st = pgStore
		closeFunc = pgStore.Close
	default:
		st = memory.New(sink, model.NetworkState{
			TotalUsers:      0,
			Phase:           model.PhasePioneer,
			LastRefresh:     time.Now(),
			DailyRewardPool: reward.DailyCap,
		})
	}

	var stateCache cache.Cache
	if cfg.Redis.Addr != "" {
		stateCache = cache.NewRedis(cfg.Redis)
	} else {
		stateCache = cache.NewMemory()
	}

	// A fresh registry per runtime, rather than prometheus.DefaultRegisterer,
	// keeps repeated newRuntime calls (one per CLI invocation, or one per
	// test) from colliding on duplicate collector registration.
	promReg := prometheus.NewRegistry()
	reg := metrics.NewRegistry(promReg)
	eng := engine.New(st, engine.Config{
		Quality:  cfg.Quality,
		AntiBot:  cfg.AntiBot,
		Referral: cfg.Referral,
		Reward:   cfg.Reward,
		Detector: antibot.NoopDetector{},
		Cache:    stateCache,
	}, reg, log)

	return &runtime{engine: eng, store: st, metrics: reg, gatherer: promReg, log: log, close: closeFunc}, nil
}

// wantJSONOutput decides a subcommand's rendering mode: an explicit --json
// flag always wins, otherwise a non-interactive stdout (piped into jq,
// redirected to a file) defaults to JSON rather than the human table, the
// same way the teacher's cmd/cryptorun/main.go picks its output mode off
// term.IsTerminal instead of always defaulting to one rendering.
func wantJSONOutput(explicit bool) bool {
	return explicit || !term.IsTerminal(int(os.Stdout.Fd()))
}
