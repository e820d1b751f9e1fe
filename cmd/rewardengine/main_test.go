package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finova-oss/rewardengine/internal/model"
)

func testCLIEvent(userID, eventID string) model.ActivityEvent {
	return model.ActivityEvent{
		EventID:   eventID,
		UserID:    userID,
		Kind:      model.KindPost,
		Platform:  model.PlatformTikTok,
		Timestamp: time.Now(),
		Content:   &model.ContentPayload{TextHash: "cli-text-hash-0123456789abcdef"},
		Device:    model.DeviceDescriptor{FingerprintHex: "cli-device", Primary: true},
		Network:   model.NetworkDescriptor{Country: "US", ConnectionType: "wifi"},
	}
}

func TestNewRuntimeDefaultsToMemoryStore(t *testing.T) {
	cfgPath = ""
	rt, err := newRuntime()
	require.NoError(t, err)
	defer rt.close()

	assert.NotNil(t, rt.engine)
	assert.NotNil(t, rt.store)
}

func TestRuntimeSubmitThenStateRoundTrips(t *testing.T) {
	cfgPath = ""
	rt, err := newRuntime()
	require.NoError(t, err)
	defer rt.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = rt.store.CreateUser(ctx, "cli-user", time.Now())
	require.NoError(t, err)

	sample := humanShapedSample("cli-user", "dev-1")
	event := testCLIEvent("cli-user", "cli-ev-1")

	outcome, err := rt.engine.SubmitActivity(ctx, event, sample)
	require.NoError(t, err)
	assert.False(t, outcome.Gated)

	view, err := rt.engine.GetUserState(ctx, "cli-user")
	require.NoError(t, err)
	assert.Equal(t, outcome.XPDelta, view.XPTotal)
}
