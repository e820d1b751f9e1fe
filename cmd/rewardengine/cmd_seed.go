package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/finova-oss/rewardengine/internal/model"
	"github.com/finova-oss/rewardengine/internal/store/memory"
)

// seedCmd groups local fixture-building subcommands used to exercise the
// engine against the in-memory store without a Postgres instance —
// grounded on the teacher's "pairs sync" data-bootstrap command
// (cmd/cryptorun/main.go's runPairsSync).
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed local fixtures against the in-memory store",
}

var seedUserCmd = &cobra.Command{
	Use:   "user <user-id>",
	Short: "Create a fresh user account",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeedUser,
}

var seedNetworkCmd = &cobra.Command{
	Use:   "network",
	Short: "Set the global NetworkState (total users, phase)",
	RunE:  runSeedNetwork,
}

var (
	seedNetworkTotalUsers uint64
	seedNetworkPhase      string
)

func init() {
	seedCmd.AddCommand(seedUserCmd)
	seedCmd.AddCommand(seedNetworkCmd)

	seedNetworkCmd.Flags().Uint64Var(&seedNetworkTotalUsers, "total-users", 500, "total registered users")
	seedNetworkCmd.Flags().StringVar(&seedNetworkPhase, "phase", string(model.PhasePioneer), "mining phase (Pioneer|Growth|Maturity|Stability)")
}

func runSeedUser(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	acc, err := rt.store.CreateUser(ctx, args[0], time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("created user %s at %s\n", acc.ID, acc.CreatedAt.Format(time.RFC3339))
	return nil
}

func runSeedNetwork(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	memStore, ok := rt.store.(*memory.Store)
	if !ok {
		return fmt.Errorf("seed network only supports the in-memory store backend")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	current, err := memStore.GetNetworkState(ctx)
	if err != nil {
		return err
	}

	memStore.SetNetworkState(model.NetworkState{
		TotalUsers:      seedNetworkTotalUsers,
		Phase:           model.Phase(seedNetworkPhase),
		DailyRewardPool: current.DailyRewardPool,
		LastRefresh:     time.Now(),
	})
	fmt.Printf("network state set: total_users=%d phase=%s\n", seedNetworkTotalUsers, seedNetworkPhase)
	return nil
}
