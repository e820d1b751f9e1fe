package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var referralCmd = &cobra.Command{
	Use:   "referral <user-id>",
	Short: "Recompute and commit a user's referral tier",
	Long: `Drives engine.RecomputeReferralTier — the CLI equivalent of
recomputeReferralTier(user_id) -> {rp_total, tier, breakdown} (spec §6).`,
	Args: cobra.ExactArgs(1),
	RunE: runReferral,
}

var referralJSON bool

func init() {
	referralCmd.Flags().BoolVar(&referralJSON, "json", false, "print the Breakdown as JSON")
}

func runReferral(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	breakdown, err := rt.engine.RecomputeReferralTier(ctx, args[0])
	if err != nil {
		return err
	}

	if wantJSONOutput(referralJSON) {
		b, _ := json.MarshalIndent(breakdown, "", "  ")
		fmt.Println(string(b))
		return nil
	}

	fmt.Printf("rp_total           %s\n", breakdown.RPTotal.String())
	fmt.Printf("tier               %s\n", breakdown.Tier)
	fmt.Printf("direct_rp          %s\n", breakdown.DirectRP.String())
	fmt.Printf("l2_rp              %s\n", breakdown.L2RP.String())
	fmt.Printf("l3_rp              %s\n", breakdown.L3RP.String())
	fmt.Printf("quality            %.4f\n", breakdown.Quality)
	fmt.Printf("diversity          %.4f\n", breakdown.Diversity)
	fmt.Printf("network_regression %.4f\n", breakdown.NetworkRegression)
	return nil
}
