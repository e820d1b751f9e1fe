package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state <user-id>",
	Short: "Print a user's current UserAccountView",
	Long:  "Drives engine.GetUserState — the CLI equivalent of getUserState(user_id) (spec §6).",
	Args:  cobra.ExactArgs(1),
	RunE:  runState,
}

var stateJSON bool

func init() {
	stateCmd.Flags().BoolVar(&stateJSON, "json", false, "print the UserAccountView as JSON")
}

func runState(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	view, err := rt.engine.GetUserState(ctx, args[0])
	if err != nil {
		return err
	}

	if wantJSONOutput(stateJSON) {
		b, _ := json.MarshalIndent(view, "", "  ")
		fmt.Println(string(b))
		return nil
	}

	fmt.Printf("user          %s\n", view.ID)
	fmt.Printf("created_at    %s\n", view.CreatedAt.Format(time.RFC3339))
	fmt.Printf("last_event_at %s\n", view.LastEventAt.Format(time.RFC3339))
	fmt.Printf("kyc_verified  %v\n", view.KYCVerified)
	fmt.Printf("total_mined   %s\n", view.TotalMined.String())
	fmt.Printf("holdings      %s\n", view.Holdings.String())
	fmt.Printf("mined_today   %s\n", view.MinedToday.String())
	fmt.Printf("xp_total      %d (level %d)\n", view.XPTotal, view.XPLevel)
	fmt.Printf("rp_total      %s (tier %s)\n", view.RPTotal.String(), view.RPTier)
	fmt.Printf("streak_days   %d\n", view.StreakDays)
	return nil
}
