package antibot_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finova-oss/rewardengine/internal/antibot"
	"github.com/finova-oss/rewardengine/internal/model"
)

func humanSample() model.BehavioralSample {
	intervals := make([]float64, 0, 50)
	for i := 0; i < 50; i++ {
		intervals = append(intervals, 800+float64(i%7)*120)
	}
	hist := [24]uint32{}
	for h := 9; h <= 21; h++ {
		hist[h] = 10
	}
	return model.BehavioralSample{
		UserID:              "u1",
		ClickIntervalsMS:    intervals,
		SessionStart:        time.Now().Add(-2 * time.Hour),
		SessionEnd:          time.Now(),
		HourOfDayHistogram:  hist,
		DeviceID:            "dev-a",
		RecentDeviceIDs:     []string{"dev-a", "dev-a", "dev-a", "dev-a", "dev-b"},
		ConnectionAuthentic: 0.9,
		ContentHash:         "freshhash1",
		MutualConnections:   15,
		ConnectionAgeDays:   200,
	}
}

func botSample() model.BehavioralSample {
	intervals := make([]float64, 0, 50)
	for i := 0; i < 50; i++ {
		intervals = append(intervals, 500) // zero variance
	}
	hist := [24]uint32{}
	for h := 1; h <= 5; h++ {
		hist[h] = 10
	}
	return model.BehavioralSample{
		UserID:              "u2",
		ClickIntervalsMS:    intervals,
		SessionStart:        time.Now().Add(-1 * time.Minute),
		SessionEnd:          time.Now(),
		HourOfDayHistogram:  hist,
		DeviceID:            "dev-z",
		RecentDeviceIDs:     []string{"d1", "d2", "d3", "d4", "d5", "d6"},
		ConnectionAuthentic: 0.1,
		ContentHash:         "samehash",
		MutualConnections:   0,
		ConnectionAgeDays:   0,
	}
}

func TestHumanSampleScoresHigherThanBotSample(t *testing.T) {
	s := antibot.NewScorer(antibot.DefaultConfig(), antibot.NoopDetector{})

	human, err := s.Evaluate(humanSample(), nil)
	require.NoError(t, err)

	bot, err := s.Evaluate(botSample(), []string{"samehash", "samehash", "samehash"})
	require.NoError(t, err)

	assert.Greater(t, human.HumanProbability, bot.HumanProbability)
	assert.Equal(t, model.RiskCritical, bot.Risk)
}

func TestConfidenceFloorIsHalf(t *testing.T) {
	s := antibot.NewScorer(antibot.DefaultConfig(), antibot.NoopDetector{})
	r, err := s.Evaluate(humanSample(), nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, r.Confidence, 0.5)
}

func TestActionThresholds(t *testing.T) {
	assert.Equal(t, model.ActionSuspend, actionForProb(t, 0.1))
	assert.Equal(t, model.ActionVerify, actionForProb(t, 0.4))
	assert.Equal(t, model.ActionWatch, actionForProb(t, 0.7))
	assert.Equal(t, model.ActionNone, actionForProb(t, 0.95))
}

// actionForProb drives the scorer with a detector forced to the probability
// under test by isolating the ML blend (weight 0.3) and zeroing the
// heuristic factors is impractical; instead we exercise the boundary table
// directly via the detector, blending 0 heuristic with a crafted ML input
// is also indirect, so this test fixes MLBlendWeight to 1.0 to isolate the
// action-threshold mapping from the heuristic blend.
func actionForProb(t *testing.T, mlHumanProb float64) model.GateAction {
	t.Helper()
	cfg := antibot.DefaultConfig()
	cfg.MLBlendWeight = 1.0
	s := antibot.NewScorer(cfg, constDetector{anomaly: 1.0 - mlHumanProb})
	r, err := s.Evaluate(humanSample(), nil)
	require.NoError(t, err)
	return r.Action
}

type constDetector struct{ anomaly float64 }

func (c constDetector) Score(model.BehavioralSample) (float64, error) { return c.anomaly, nil }
