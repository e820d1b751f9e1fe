package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var antibotCmd = &cobra.Command{
	Use:   "antibot <user-id>",
	Short: "Evaluate a behavioral sample without mutating state",
	Long: `Drives engine.EvaluateHumanProbability — the CLI equivalent of
evaluateHumanProbability(user_id, BehavioralSample) -> AntiBotResult
(spec §6). Does not commit any reward or gate outcome; pass --bot to
evaluate a mechanical-looking sample.`,
	Args: cobra.ExactArgs(1),
	RunE: runAntiBot,
}

var (
	antibotAsBot bool
	antibotJSON  bool
)

func init() {
	antibotCmd.Flags().BoolVar(&antibotAsBot, "bot", false, "evaluate a bot-shaped sample instead of a human-shaped one")
	antibotCmd.Flags().BoolVar(&antibotJSON, "json", false, "print the Result as JSON")
}

func runAntiBot(cmd *cobra.Command, args []string) error {
	userID := args[0]
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	var sample = humanShapedSample(userID, "cli-device")
	if antibotAsBot {
		sample = botShapedSample(userID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := rt.engine.EvaluateHumanProbability(ctx, userID, sample)
	if err != nil {
		return err
	}

	if wantJSONOutput(antibotJSON) {
		b, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(b))
		return nil
	}

	fmt.Printf("human_probability %.4f\n", result.HumanProbability)
	fmt.Printf("risk              %s\n", result.Risk)
	fmt.Printf("action            %s\n", result.Action)
	fmt.Printf("confidence        %.4f\n", result.Confidence)
	for name, v := range result.Breakdown {
		fmt.Printf("  %-20s %.4f\n", name, v)
	}
	return nil
}
