package quality_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finova-oss/rewardengine/internal/model"
	"github.com/finova-oss/rewardengine/internal/quality"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, quality.DefaultConfig().Validate())
}

func TestAssessEmptyContentYieldsFloor(t *testing.T) {
	a := quality.NewAssessor(quality.DefaultConfig())
	sig := a.Assess(nil, model.PlatformTikTok, nil)
	assert.Equal(t, 0.5, sig.Score)
}

func TestAssessWithinBounds(t *testing.T) {
	a := quality.NewAssessor(quality.DefaultConfig())
	content := &model.ContentPayload{TextHash: "abcdef1234567890abcdef1234567890"}
	sig := a.Assess(content, model.PlatformTikTok, []string{"1111111111111111111111111111aaaa"})
	assert.GreaterOrEqual(t, sig.Score, 0.5)
	assert.LessOrEqual(t, sig.Score, 2.0)
}

func TestAssessIdenticalFingerprintLowersOriginality(t *testing.T) {
	a := quality.NewAssessor(quality.DefaultConfig())
	hash := "deadbeefdeadbeefdeadbeefdeadbeef"
	fresh := a.Assess(&model.ContentPayload{TextHash: hash}, model.PlatformX, nil)
	repeated := a.Assess(&model.ContentPayload{TextHash: hash}, model.PlatformX, []string{hash})
	assert.Less(t, repeated.Components.Originality, fresh.Components.Originality)
}

func TestSafetyFloorForcesMinimumScore(t *testing.T) {
	cfg := quality.DefaultConfig()
	a := quality.NewAssessor(cfg)
	content := &model.ContentPayload{
		TextHash:       "0123456789abcdef0123456789abcdef",
		UnsafeTermHits: 3, // 1 - 3 * SafetyPenaltyPerHit(0.3) = 0.1 safety, well under SafetyFloor(0.3)
	}
	sig := a.Assess(content, model.PlatformX, nil)
	assert.Less(t, sig.Components.Safety, cfg.SafetyFloor)
	assert.Equal(t, 0.5, sig.Score)
}

// TestSafetyScoreIgnoresHashContentsUsesHitCount guards against regressing
// to pattern-matching the hex digest itself: a real hex TextHash (which can
// never contain a lexicon term, since hex digits are only [0-9a-f]) with
// zero flagged hits must score a perfect safety/human-authored signal, and
// an identical hash with flagged hits must score strictly lower.
func TestSafetyScoreIgnoresHashContentsUsesHitCount(t *testing.T) {
	a := quality.NewAssessor(quality.DefaultConfig())
	hash := "deadbeef0123456789abcdef01234567"

	clean := a.Assess(&model.ContentPayload{TextHash: hash}, model.PlatformX, nil)
	assert.Equal(t, 1.0, clean.Components.Safety)
	assert.Equal(t, 1.0, clean.Components.HumanAuthored)

	flagged := a.Assess(&model.ContentPayload{
		TextHash:          hash,
		UnsafeTermHits:    1,
		GenericPhraseHits: 1,
	}, model.PlatformX, nil)
	assert.Less(t, flagged.Components.Safety, clean.Components.Safety)
	assert.Less(t, flagged.Components.HumanAuthored, clean.Components.HumanAuthored)
}

func TestAttributionSumsToOne(t *testing.T) {
	a := quality.NewAssessor(quality.DefaultConfig())
	content := &model.ContentPayload{TextHash: "0123456789abcdef0123456789abcdef"}
	sig := a.Assess(content, model.PlatformYouTube, nil)
	total := 0.0
	for _, v := range sig.Attribution {
		total += v
	}
	assert.InDelta(t, 1.0, total, 0.01)
}
