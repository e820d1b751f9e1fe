package phase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finova-oss/rewardengine/internal/kernel"
	"github.com/finova-oss/rewardengine/internal/model"
	"github.com/finova-oss/rewardengine/internal/phase"
)

func TestResolveBoundaries(t *testing.T) {
	cases := []struct {
		total uint64
		want  model.Phase
	}{
		{0, model.PhasePioneer},
		{99_999, model.PhasePioneer},
		{100_000, model.PhaseGrowth},
		{999_999, model.PhaseGrowth},
		{1_000_000, model.PhaseMaturity},
		{9_999_999, model.PhaseMaturity},
		{10_000_000, model.PhaseStability},
		{50_000_000, model.PhaseStability},
	}
	for _, c := range cases {
		got := phase.Resolve(c.total)
		assert.Equal(t, c.want, got.Phase, "total_users=%d", c.total)
	}
}

func TestPioneerMultiplierDecaysThenFloors(t *testing.T) {
	r0 := phase.Resolve(0)
	assert.InDelta(t, 2.0, r0.Pioneer.Float64(), 0.0001)

	rMid := phase.Resolve(50_000)
	assert.InDelta(t, 1.95, rMid.Pioneer.Float64(), 0.0001)

	rEdge := phase.Resolve(99_999)
	assert.True(t, rEdge.Pioneer.GreaterThanOrEqual(kernel.One))
}

func TestPioneerMultiplierIsOneOutsidePioneerPhase(t *testing.T) {
	r := phase.Resolve(200_000)
	assert.InDelta(t, 1.0, r.Pioneer.Float64(), 0.0001)
}
