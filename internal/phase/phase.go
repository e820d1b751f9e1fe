// Package phase implements the mining-phase oracle: a piecewise step
// function over the network's total user count (spec §4.2).
package phase

import (
	"github.com/finova-oss/rewardengine/internal/kernel"
	"github.com/finova-oss/rewardengine/internal/model"
)

// band is one row of the phase table. Ranges are half-open [Floor, next
// band's Floor) — the boundary itself belongs to the upper phase.
type band struct {
	Floor    uint64
	Phase    model.Phase
	BaseRate kernel.Amount
}

// table is ordered ascending by Floor; Resolve walks it and returns the
// last band whose Floor the total user count has reached or passed.
var table = []band{
	{Floor: 0, Phase: model.PhasePioneer, BaseRate: kernel.FromFloat(0.10)},
	{Floor: 100_000, Phase: model.PhaseGrowth, BaseRate: kernel.FromFloat(0.05)},
	{Floor: 1_000_000, Phase: model.PhaseMaturity, BaseRate: kernel.FromFloat(0.025)},
	{Floor: 10_000_000, Phase: model.PhaseStability, BaseRate: kernel.FromFloat(0.01)},
}

// pioneerCap is the ceiling on the Pioneer-phase bonus multiplier.
var pioneerCap = kernel.FromFloat(2.0)

// Result is the oracle's output for a given NetworkState.
type Result struct {
	Phase    model.Phase
	BaseRate kernel.Amount
	// Pioneer is the pioneer(total_users) multiplier — 1.0 outside the
	// Pioneer phase.
	Pioneer kernel.Amount
}

// Resolve maps totalUsers onto a phase and its base_rate, and computes the
// Pioneer-phase decaying bonus multiplier (spec §4.4):
//
//	pioneer(total_users) = max(1.0, min(2.0, 2.0 - total_users/1_000_000))
//
// outside the Pioneer phase the multiplier is 1.0. Boundary crossings only
// affect events processed after the NetworkState that carries the new
// total_users is observed — the oracle itself is pure and stateless, so
// that guarantee is the caller's responsibility (it must not reuse a stale
// NetworkState across a boundary).
func Resolve(totalUsers uint64) Result {
	chosen := table[0]
	for _, b := range table {
		if totalUsers >= b.Floor {
			chosen = b
		} else {
			break
		}
	}

	pioneerMult := kernel.One
	if chosen.Phase == model.PhasePioneer {
		ratio := kernel.FromFloat(float64(totalUsers) / 1_000_000.0)
		diff := kernel.SaturatingSub(pioneerCap, ratio)
		// SaturatingSub clamps at 0, but pioneer() bottoms out at 1.0, not 0.
		pioneerMult = kernel.Max(kernel.One, kernel.Min(pioneerCap, diff))
	}

	return Result{
		Phase:    chosen.Phase,
		BaseRate: chosen.BaseRate,
		Pioneer:  pioneerMult,
	}
}
