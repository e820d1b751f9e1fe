package intake_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finova-oss/rewardengine/internal/errs"
	"github.com/finova-oss/rewardengine/internal/intake"
	"github.com/finova-oss/rewardengine/internal/model"
)

func validEvent() model.ActivityEvent {
	return model.ActivityEvent{
		EventID:   "evt-1",
		UserID:    "u1",
		Kind:      model.KindPost,
		Platform:  model.PlatformTikTok,
		Timestamp: time.Now(),
		Device:    model.DeviceDescriptor{FingerprintHex: "abc123", Primary: true},
		Network:   model.NetworkDescriptor{Country: "US", ConnectionType: "wifi"},
	}
}

func TestValidateAcceptsWellFormedEvent(t *testing.T) {
	require.NoError(t, intake.Validate(validEvent()))
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	e := validEvent()
	e.Kind = "NotAKind"
	err := intake.Validate(e)
	require.Error(t, err)
	eng, ok := errs.AsEngineError(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindSchemaError, eng.Kind)
}

func TestValidateRejectsUnknownPlatform(t *testing.T) {
	e := validEvent()
	e.Platform = "MySpace"
	require.Error(t, intake.Validate(e))
}

func TestValidateRejectsMissingFingerprint(t *testing.T) {
	e := validEvent()
	e.Device.FingerprintHex = ""
	require.Error(t, intake.Validate(e))
}

func TestValidateSampleRejectsInvertedSession(t *testing.T) {
	now := time.Now()
	sample := model.BehavioralSample{UserID: "u1", SessionStart: now, SessionEnd: now.Add(-time.Minute)}
	require.Error(t, intake.ValidateSample(sample))
}
