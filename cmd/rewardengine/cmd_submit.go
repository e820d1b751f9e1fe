package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/finova-oss/rewardengine/internal/errs"
	"github.com/finova-oss/rewardengine/internal/model"
)

var submitCmd = &cobra.Command{
	Use:   "submit <user-id>",
	Short: "Submit one ActivityEvent alongside a BehavioralSample",
	Long: `Drives engine.SubmitActivity for a single user — the CLI equivalent of
the wire contract's submitActivity(ActivityEvent, BehavioralSample) call
(spec §6). Behavioral signals default to a plausible "human" session;
pass --bot to exercise the anti-bot gate instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

var (
	submitEventID           string
	submitKind              string
	submitPlatform          string
	submitTextHash          string
	submitDeviceFP          string
	submitCountry           string
	submitConnType          string
	submitAsBot             bool
	submitJSON              bool
	submitUnsafeTermHits    uint32
	submitGenericPhraseHits uint32
)

func init() {
	submitCmd.Flags().StringVar(&submitEventID, "event-id", "", "event id (random uuid if unset)")
	submitCmd.Flags().StringVar(&submitKind, "kind", string(model.KindPost), "activity kind")
	submitCmd.Flags().StringVar(&submitPlatform, "platform", string(model.PlatformTikTok), "originating platform")
	submitCmd.Flags().StringVar(&submitTextHash, "text-hash", "", "content text hash (defaults to a random value)")
	submitCmd.Flags().StringVar(&submitDeviceFP, "device", "cli-device", "device fingerprint")
	submitCmd.Flags().StringVar(&submitCountry, "country", "US", "originating country (ISO alpha-2/3)")
	submitCmd.Flags().StringVar(&submitConnType, "connection", "wifi", "connection type")
	submitCmd.Flags().BoolVar(&submitAsBot, "bot", false, "submit a bot-shaped behavioral sample to exercise the gate")
	submitCmd.Flags().BoolVar(&submitJSON, "json", false, "print the RewardOutcome as JSON")
	submitCmd.Flags().Uint32Var(&submitUnsafeTermHits, "unsafe-term-hits", 0, "upstream unsafe-lexicon hit count for this content (stands in for the content-analyzer service)")
	submitCmd.Flags().Uint32Var(&submitGenericPhraseHits, "generic-phrase-hits", 0, "upstream generic/low-effort phrase hit count for this content")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	userID := args[0]

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	eventID := submitEventID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	textHash := submitTextHash
	if textHash == "" {
		textHash = uuid.NewString()
	}

	event := model.ActivityEvent{
		EventID:   eventID,
		UserID:    userID,
		Kind:      model.ActivityKind(submitKind),
		Platform:  model.Platform(submitPlatform),
		Timestamp: time.Now(),
		Content: &model.ContentPayload{
			TextHash:          textHash,
			UnsafeTermHits:    submitUnsafeTermHits,
			GenericPhraseHits: submitGenericPhraseHits,
		},
		Device:    model.DeviceDescriptor{FingerprintHex: submitDeviceFP, Primary: true},
		Network:   model.NetworkDescriptor{Country: submitCountry, ConnectionType: submitConnType},
	}

	var sample model.BehavioralSample
	if submitAsBot {
		sample = botShapedSample(userID)
	} else {
		sample = humanShapedSample(userID, submitDeviceFP)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	outcome, err := rt.engine.SubmitActivity(ctx, event, sample)
	if err != nil {
		if ee, ok := errs.AsEngineError(err); ok && ee.Kind == errs.KindGated {
			printOutcome(outcome)
			fmt.Fprintf(os.Stderr, "gated: %s (action=%s, human_probability=%.3f)\n", ee.Message, outcome.GateAction, outcome.HumanProbability)
			return nil
		}
		return err
	}
	printOutcome(outcome)
	return nil
}

func printOutcome(outcome model.RewardOutcome) {
	if wantJSONOutput(submitJSON) {
		b, _ := json.MarshalIndent(outcome, "", "  ")
		fmt.Println(string(b))
		return
	}
	fmt.Printf("event=%s user=%s mining=+%s xp=+%d rp=+%s cap_hit=%v gated=%v\n",
		outcome.EventID, outcome.UserID, outcome.MiningDelta.String(), outcome.XPDelta,
		outcome.RPDelta.String(), outcome.CapHit, outcome.Gated)
	for _, m := range outcome.Multipliers {
		fmt.Printf("  %-24s %.4f\n", m.Name, m.Value)
	}
}

// humanShapedSample fabricates a plausible human browsing session: varied
// click intervals, daytime activity, a stable primary device.
func humanShapedSample(userID, deviceID string) model.BehavioralSample {
	intervals := make([]float64, 0, 40)
	for i := 0; i < 40; i++ {
		intervals = append(intervals, 700+float64(i%9)*90)
	}
	hist := [24]uint32{}
	for h := 8; h <= 22; h++ {
		hist[h] = 8
	}
	return model.BehavioralSample{
		UserID:              userID,
		ClickIntervalsMS:    intervals,
		SessionStart:        time.Now().Add(-90 * time.Minute),
		SessionEnd:          time.Now(),
		HourOfDayHistogram:  hist,
		DeviceID:            deviceID,
		RecentDeviceIDs:     []string{deviceID, deviceID, deviceID, deviceID},
		ConnectionAuthentic: 0.9,
		ContentHash:         uuid.NewString(),
		MutualConnections:   12,
		ConnectionAgeDays:   180,
	}
}

// botShapedSample fabricates a mechanical session: uniform click cadence,
// an off-hours burst, a rotating device pool and a repeated content hash.
func botShapedSample(userID string) model.BehavioralSample {
	intervals := make([]float64, 0, 40)
	for i := 0; i < 40; i++ {
		intervals = append(intervals, 500)
	}
	hist := [24]uint32{}
	for h := 2; h <= 4; h++ {
		hist[h] = 12
	}
	return model.BehavioralSample{
		UserID:              userID,
		ClickIntervalsMS:    intervals,
		SessionStart:        time.Now().Add(-45 * time.Second),
		SessionEnd:          time.Now(),
		HourOfDayHistogram:  hist,
		DeviceID:            "bot-device-1",
		RecentDeviceIDs:     strings.Split("d1,d2,d3,d4,d5,d6", ","),
		ConnectionAuthentic: 0.1,
		ContentHash:         "repeated-bot-hash",
		MutualConnections:   0,
		ConnectionAgeDays:   0,
	}
}
