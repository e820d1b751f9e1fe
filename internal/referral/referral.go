// Package referral implements the referral network evaluator (spec §4.5):
// hop-decayed aggregation across direct/L2/L3 referees, quality and
// diversity bonuses, a network-size regression term, and the RP tier
// ladder.
package referral

import (
	"time"

	"github.com/finova-oss/rewardengine/internal/kernel"
	"github.com/finova-oss/rewardengine/internal/model"
)

// Config holds the evaluator's tunable constants. All are fixed by spec
// §4.5; they are still exposed as config (rather than inlined) in the
// teacher's style of pulling formula constants into a loaded struct.
type Config struct {
	L2Weight              float64 `yaml:"l2_weight"`
	L3Weight              float64 `yaml:"l3_weight"`
	TimeDecayFloor        float64 `yaml:"time_decay_floor"`
	TimeDecayHorizonDays  float64 `yaml:"time_decay_horizon_days"`
	NetworkRegressionRate float64 `yaml:"network_regression_rate"`
	MaxDepth              int     `yaml:"max_depth"`
}

func DefaultConfig() Config {
	return Config{
		L2Weight:              0.3,
		L3Weight:              0.1,
		TimeDecayFloor:        0.5,
		TimeDecayHorizonDays:  730,
		NetworkRegressionRate: 0.0001,
		MaxDepth:              3,
	}
}

// Tier band table (spec §4.5), ascending by floor.
type tierBand struct {
	Floor kernel.Amount
	Tier  model.RPTier
}

var tierTable = []tierBand{
	{Floor: kernel.FromFloat(0), Tier: model.TierExplorer},
	{Floor: kernel.FromFloat(1_000), Tier: model.TierConnector},
	{Floor: kernel.FromFloat(5_000), Tier: model.TierInfluencer},
	{Floor: kernel.FromFloat(15_000), Tier: model.TierLeader},
	{Floor: kernel.FromFloat(50_000), Tier: model.TierAmbassador},
}

// TierFor derives the RP tier from an rp_total (re-derived on every RP
// change, per spec).
func TierFor(rpTotal kernel.Amount) model.RPTier {
	chosen := tierTable[0].Tier
	for _, b := range tierTable {
		if rpTotal.GreaterThanOrEqual(b.Floor) {
			chosen = b.Tier
		} else {
			break
		}
	}
	return chosen
}

// Breakdown is the evaluator's full output (spec §6
// recomputeReferralTier's "breakdown" field).
type Breakdown struct {
	DirectRP          kernel.Amount
	L2RP              kernel.Amount
	L3RP              kernel.Amount
	Quality           float64
	Diversity         float64
	NetworkRegression float64
	RPTotal           kernel.Amount
	Tier              model.RPTier
}

// Evaluator computes referral aggregates from a ReferralSnapshot.
type Evaluator struct {
	cfg Config
}

func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate computes rp_total and the tier for snap, evaluated as of now.
func (e *Evaluator) Evaluate(snap model.ReferralSnapshot, now time.Time) Breakdown {
	directRP := e.sumActivityScoreDecay(snap.Direct, now)
	l2Sum := e.sumActivityOnly(snap.L2)
	l3Sum := e.sumActivityOnly(snap.L3)

	l2RP := kernel.FromFloat(l2Sum * e.cfg.L2Weight)
	l3RP := kernel.FromFloat(l3Sum * e.cfg.L3Weight)

	quality := qualityScore(snap)
	diversity := diversityScore(snap)
	networkSize := len(snap.Direct) + len(snap.L2) + len(snap.L3)
	networkRegression := networkRegressionFactor(networkSize, quality, e.cfg.NetworkRegressionRate)

	subtotal, err := kernel.Add(directRP, l2RP)
	if err != nil {
		subtotal = kernel.Max(directRP, l2RP)
	}
	subtotal, err = kernel.Add(subtotal, l3RP)
	if err != nil {
		subtotal = kernel.Max(subtotal, l3RP)
	}

	rpTotal, err := kernel.MulChain(subtotal, kernel.FromFloat(quality), kernel.FromFloat(diversity), kernel.FromFloat(networkRegression))
	if err != nil {
		rpTotal = kernel.Zero
	}

	return Breakdown{
		DirectRP:          directRP,
		L2RP:              l2RP,
		L3RP:              l3RP,
		Quality:           quality,
		Diversity:         diversity,
		NetworkRegression: networkRegression,
		RPTotal:           rpTotal,
		Tier:              TierFor(rpTotal),
	}
}

// activityScore scales a referee's 30-day XP gain into [0,2], per spec:
// "activity_score is the referee's own 30-day XP gain scaled into [0, 2]".
// 2000 XP in 30 days (the per-event XP ceiling applied once a day) maps to
// the top of the range.
func activityScore(xpGain30d uint64) float64 {
	scaled := float64(xpGain30d) / 1000.0
	if scaled > 2.0 {
		return 2.0
	}
	return scaled
}

// levelFactor scales contribution by the referee's own level, modestly.
func levelFactor(level uint32) float64 {
	f := 1.0 + float64(level)/200.0
	if f > 1.5 {
		return 1.5
	}
	return f
}

func timeDecay(daysSinceJoined float64, floor, horizonDays float64) float64 {
	d := 1.0 - daysSinceJoined/horizonDays
	if d < floor {
		return floor
	}
	if d > 1.0 {
		return 1.0
	}
	return d
}

func (e *Evaluator) sumActivityScoreDecay(members []model.ReferralMember, now time.Time) kernel.Amount {
	total := 0.0
	for _, m := range members {
		days := now.Sub(m.JoinedAt).Hours() / 24
		if days < 0 {
			days = 0
		}
		decay := timeDecay(days, e.cfg.TimeDecayFloor, e.cfg.TimeDecayHorizonDays)
		total += activityScore(m.XPGain30d) * levelFactor(m.XPLevel) * decay
	}
	return kernel.FromFloat(total)
}

func (e *Evaluator) sumActivityOnly(members []model.ReferralMember) float64 {
	total := 0.0
	for _, m := range members {
		total += activityScore(m.XPGain30d)
	}
	return total
}

// qualityScore blends active ratio, mean level and platform/country
// diversity into [0,1] (spec §4.5).
func qualityScore(snap model.ReferralSnapshot) float64 {
	direct := snap.Direct
	if len(direct) == 0 {
		return 0
	}
	active := 0
	levelSum := 0
	for _, m := range direct {
		if m.Active30d {
			active++
		}
		levelSum += int(m.XPLevel)
	}
	activeRatio := float64(active) / float64(len(direct))
	meanLevel := float64(levelSum) / float64(len(direct)) / 100.0
	if meanLevel > 1.0 {
		meanLevel = 1.0
	}
	div := platformCountryDiversity(direct)
	return clamp01(0.4*activeRatio + 0.3*meanLevel + 0.3*div)
}

func platformCountryDiversity(members []model.ReferralMember) float64 {
	platforms := make(map[model.Platform]struct{})
	countries := make(map[string]struct{})
	for _, m := range members {
		platforms[m.Platform] = struct{}{}
		countries[m.Country] = struct{}{}
	}
	platformScore := clamp01(float64(len(platforms)) / 7.0)
	countryScore := clamp01(float64(len(countries)) / 5.0)
	return (platformScore + countryScore) / 2.0
}

// diversityScore is in [1.0, 1.5]: +0.1 per distinct platform up to 5, +0.1
// per distinct country up to 3, +0.1 per distinct activity-pattern up to 3.
// Activity pattern is approximated by the distinct set of ActivityKind
// implied by XP-gain buckets, since a ReferralMember doesn't carry a raw
// event history — only its 30-day aggregate.
func diversityScore(snap model.ReferralSnapshot) float64 {
	platforms := make(map[model.Platform]struct{})
	countries := make(map[string]struct{})
	patterns := make(map[int]struct{})
	for _, m := range snap.Direct {
		platforms[m.Platform] = struct{}{}
		countries[m.Country] = struct{}{}
		patterns[activityPatternBucket(m.XPGain30d)] = struct{}{}
	}

	score := 1.0
	score += 0.1 * float64(minInt(len(platforms), 5))
	score += 0.1 * float64(minInt(len(countries), 3))
	score += 0.1 * float64(minInt(len(patterns), 3))
	if score > 1.5 {
		return 1.5
	}
	return score
}

func activityPatternBucket(xpGain30d uint64) int {
	switch {
	case xpGain30d < 500:
		return 0
	case xpGain30d < 2000:
		return 1
	case xpGain30d < 10000:
		return 2
	default:
		return 3
	}
}

func networkRegressionFactor(networkSize int, quality float64, rate float64) float64 {
	return kernel.ExpNeg(kernel.FromFloat(rate * float64(networkSize) * quality)).Float64()
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// WouldCycle reports whether setting candidateUpline as newUserID's direct
// referrer would create a cycle, by walking candidateUpline's own upline
// chain (via resolveReferrer) up to MaxDepth hops. Insertion-time callers
// must run this before persisting a referral edge (spec §4.5 "cycles
// refused at insertion time"); the reward/tier computation path never
// needs to re-check it.
func WouldCycle(newUserID, candidateUpline string, maxDepth int, resolveReferrer func(userID string) (string, bool)) bool {
	visited := map[string]struct{}{newUserID: {}}
	current := candidateUpline
	for depth := 0; depth < maxDepth; depth++ {
		if current == "" {
			return false
		}
		if _, seen := visited[current]; seen {
			return true
		}
		visited[current] = struct{}{}
		next, ok := resolveReferrer(current)
		if !ok {
			return false
		}
		current = next
	}
	return false
}
