// Package reward implements the reward calculator (spec §4.4): the
// integrated mining-rate, per-event payout, XP-gain and anti-whale
// taxation formulas, evaluated with a fixed left-to-right multiplier
// order via internal/kernel.MulChain for bit-stable replays.
package reward

import (
	"github.com/finova-oss/rewardengine/internal/kernel"
	"github.com/finova-oss/rewardengine/internal/model"
	"github.com/finova-oss/rewardengine/internal/phase"
)

// DailyCap is the per-UTC-day mining ceiling (spec §3: "mined_today ≤
// DAILY_CAP (15.0 in base units)").
var DailyCap = kernel.FromFloat(15.0)

// Config holds the calculator's tunable tables. All values are fixed by
// spec §4.4; kept as a loaded struct (rather than inlined literals) in the
// teacher's config-driven style.
type Config struct {
	BaseXP           map[model.ActivityKind]float64 `yaml:"base_xp"`
	PlatformMult     map[model.Platform]float64     `yaml:"platform_mult"`
	DailySoftLimits  map[model.ActivityKind]uint32   `yaml:"daily_soft_limits"`
	RPFactor         map[model.RPTier]float64        `yaml:"rp_factor"`
	WhaleThreshold   float64                         `yaml:"whale_threshold"`
	WhaleTaxScale    float64                         `yaml:"whale_tax_scale"`
	WhaleTaxMax      float64                         `yaml:"whale_tax_max"`
	RegressionRate   float64                         `yaml:"regression_rate"`
}

func DefaultConfig() Config {
	return Config{
		BaseXP: map[model.ActivityKind]float64{
			model.KindPost: 50, model.KindComment: 25, model.KindLike: 5,
			model.KindShare: 15, model.KindFollow: 20, model.KindStory: 25,
			model.KindVideo: 150, model.KindLiveStream: 200, model.KindDailyLogin: 10,
			model.KindQuestComplete: 100, model.KindMilestone: 500, model.KindViralContent: 1000,
		},
		PlatformMult: map[model.Platform]float64{
			model.PlatformTikTok: 1.3, model.PlatformYouTube: 1.4, model.PlatformInstagram: 1.2,
			model.PlatformX: 1.2, model.PlatformFacebook: 1.1, model.PlatformLinkedIn: 1.1,
			model.PlatformOwnApp: 1.0,
		},
		DailySoftLimits: map[model.ActivityKind]uint32{
			model.KindPost: 20, model.KindComment: 100, model.KindLike: 200,
			model.KindShare: 50, model.KindFollow: 25, model.KindVideo: 10, model.KindStory: 50,
		},
		RPFactor: map[model.RPTier]float64{
			model.TierExplorer: 1.0, model.TierConnector: 1.2, model.TierInfluencer: 1.5,
			model.TierLeader: 2.0, model.TierAmbassador: 3.0,
		},
		WhaleThreshold: 100_000,
		WhaleTaxScale:  1_000_000,
		WhaleTaxMax:    0.5,
		RegressionRate: 0.001,
	}
}

// MiningInput is everything the mining-rate formula needs (spec §4.4).
type MiningInput struct {
	NetworkState          model.NetworkState
	ActiveReferrals30d    uint32
	KYCVerified           bool
	TotalMined            kernel.Amount // H, cumulative mined — drives regression
	XPLevel               uint32
	RPTier                model.RPTier
	Quality               float64 // from internal/quality
	ReferralNetworkSize   int
	ReferralQualityScore  float64
	HoursSinceLastClaim   float64
	MinedToday            kernel.Amount
	Holdings              kernel.Amount
}

// MiningResult carries the computed rate, the per-event payout before/after
// cap and whale tax, and the ordered multiplier trail for RewardOutcome.
type MiningResult struct {
	Rate           kernel.Amount
	EventMined     kernel.Amount // after daily cap, before whale tax
	FinalMined     kernel.Amount // after whale tax
	CapHit         bool
	Multipliers    []model.MultiplierBreakdown
}

// ComputeMining implements the mining rate and per-event payout formulas
// (spec §4.4), applying multipliers strictly in the order the spec lists
// them ("Determinism and ordering").
func ComputeMining(in MiningInput, cfg Config) (MiningResult, error) {
	ph := phase.Resolve(in.NetworkState.TotalUsers)

	referralFactor := minFloat(3.5, 1.0+0.1*float64(in.ActiveReferrals30d))

	securityFactor := 0.8
	if in.KYCVerified {
		securityFactor = 1.2
	}

	regression := kernel.ExpNeg(kernel.FromFloat(cfg.RegressionRate * in.TotalMined.Float64())).Float64()

	xpFactor := xpFactorFor(in.XPLevel)
	rpFactor := cfg.RPFactor[in.RPTier]
	if rpFactor == 0 {
		rpFactor = 1.0
	}

	networkEffect := minFloat(2.0, 1.0+0.01*float64(in.ReferralNetworkSize)*in.ReferralQualityScore)

	factors := []kernel.Amount{
		ph.BaseRate,
		ph.Pioneer,
		kernel.FromFloat(referralFactor),
		kernel.FromFloat(securityFactor),
		kernel.FromFloat(regression),
		kernel.FromFloat(xpFactor),
		kernel.FromFloat(rpFactor),
		kernel.FromFloat(in.Quality),
		kernel.FromFloat(networkEffect),
	}
	rate, err := kernel.MulChain(factors...)
	if err != nil {
		return MiningResult{}, err
	}

	trail := []model.MultiplierBreakdown{
		{Name: "base_rate", Value: ph.BaseRate.Float64()},
		{Name: "pioneer", Value: ph.Pioneer.Float64()},
		{Name: "referral_factor", Value: referralFactor},
		{Name: "security_factor", Value: securityFactor},
		{Name: "regression", Value: regression},
		{Name: "xp_factor", Value: xpFactor},
		{Name: "rp_factor", Value: rpFactor},
		{Name: "quality", Value: in.Quality},
		{Name: "network_effect", Value: networkEffect},
	}

	eventMined, err := kernel.Mul(rate, kernel.FromFloat(in.HoursSinceLastClaim))
	if err != nil {
		return MiningResult{}, err
	}

	remaining := kernel.SaturatingSub(DailyCap, in.MinedToday)
	capHit := false
	if in.MinedToday.GreaterThanOrEqual(DailyCap) {
		eventMined = kernel.Zero
		capHit = true
	} else if eventMined.GreaterThan(remaining) {
		eventMined = remaining
		capHit = true
	}

	finalMined := applyWhaleTax(eventMined, in.Holdings, cfg)

	return MiningResult{
		Rate:        rate,
		EventMined:  eventMined,
		FinalMined:  finalMined,
		CapHit:      capHit,
		Multipliers: trail,
	}, nil
}

// applyWhaleTax is evaluated strictly after the daily cap clamp (spec
// §4.4: "apply ... after daily cap" — see DESIGN.md Open Question
// decision).
func applyWhaleTax(mined kernel.Amount, holdings kernel.Amount, cfg Config) kernel.Amount {
	threshold := kernel.FromFloat(cfg.WhaleThreshold)
	if holdings.LessThanOrEqual(threshold) {
		return mined
	}
	excess := kernel.SaturatingSub(holdings, threshold)
	taxRate := minFloat(cfg.WhaleTaxMax, excess.Float64()/cfg.WhaleTaxScale)
	retained := 1.0 - taxRate
	taxed, err := kernel.Mul(mined, kernel.FromFloat(retained))
	if err != nil {
		return mined
	}
	return taxed
}

// xpFactorFor implements the piecewise xp_factor(level) table (spec
// §4.4).
func xpFactorFor(level uint32) float64 {
	l := float64(level)
	switch {
	case level >= 1 && level <= 10:
		return 1.0 + 0.02*(l-1)
	case level >= 11 && level <= 25:
		return 1.2 + 0.04*(l-10)
	case level >= 26 && level <= 50:
		return 1.8 + 0.028*(l-25)
	case level >= 51 && level <= 75:
		return 2.5 + 0.028*(l-50)
	case level >= 76 && level <= 100:
		return 3.2 + 0.032*(l-75)
	case level > 100:
		return minFloat(5.0, 4.0+0.01*(l-100))
	default: // level == 0, treated as level 1's floor
		return 1.0
	}
}

// XPInput is everything the XP-gain formula needs (spec §4.4).
type XPInput struct {
	Kind                model.ActivityKind
	Platform            model.Platform
	Quality             float64
	StreakDays          uint32
	Level               uint32
	RecentCountForKind  uint32 // actions_by_type[kind] before this event
	IsGated             bool   // anti-bot action in {VERIFY, SUSPEND}
}

// XPResult carries the computed delta and its multiplier trail.
type XPResult struct {
	Delta       uint64
	Multipliers []model.MultiplierBreakdown
}

// ComputeXP implements the XP-gain formula (spec §4.4), including the
// anti-spam and daily-activity-factor dampers and the gated-event 10%
// floor (spec §4.6: "XP is still accrued at 10% of its otherwise value").
func ComputeXP(in XPInput, cfg Config) XPResult {
	base := cfg.BaseXP[in.Kind]
	platformMult := cfg.PlatformMult[in.Platform]
	if platformMult == 0 {
		platformMult = 1.0
	}
	streakBonus := streakBonusFor(in.StreakDays)
	levelProgression := kernel.ExpNeg(kernel.FromFloat(0.01 * float64(in.Level))).Float64()
	antiSpam := antiSpamFactor(in.Kind, in.RecentCountForKind, cfg.DailySoftLimits)
	// daily_activity_factor has no separate definition anywhere in the spec
	// (only anti_spam's soft-limit ratio table exists), so it reuses that
	// ratio directly rather than inventing an undocumented second formula —
	// see DESIGN.md's Open Question decisions.
	dailyActivityFactor := antiSpam

	raw := base * platformMult * in.Quality * streakBonus * levelProgression * antiSpam * dailyActivityFactor

	trail := []model.MultiplierBreakdown{
		{Name: "base_xp", Value: base},
		{Name: "platform_mult", Value: platformMult},
		{Name: "quality", Value: in.Quality},
		{Name: "streak_bonus", Value: streakBonus},
		{Name: "level_progression", Value: levelProgression},
		{Name: "anti_spam", Value: antiSpam},
		{Name: "daily_activity_factor", Value: dailyActivityFactor},
	}

	if in.IsGated {
		raw *= 0.10
		trail = append(trail, model.MultiplierBreakdown{Name: "gate_floor", Value: 0.10})
	}

	delta := clampXP(raw)
	return XPResult{Delta: delta, Multipliers: trail}
}

func clampXP(raw float64) uint64 {
	if raw < 1 {
		return 1
	}
	if raw > 2000 {
		return 2000
	}
	return uint64(raw)
}

func streakBonusFor(days uint32) float64 {
	switch {
	case days < 3:
		return 1.0
	case days < 7:
		return 1.2
	case days < 14:
		return 1.5
	case days < 30:
		return 2.0
	default:
		return 3.0
	}
}

// antiSpamFactor implements the per-kind soft-limit usage ratio damper
// (spec §4.4).
func antiSpamFactor(kind model.ActivityKind, recentCount uint32, limits map[model.ActivityKind]uint32) float64 {
	limit, ok := limits[kind]
	if !ok || limit == 0 {
		return 1.0
	}
	ratio := float64(recentCount) / float64(limit)
	switch {
	case ratio < 0.7:
		return 1.0
	case ratio < 0.9:
		return 0.6
	case ratio < 1.0:
		return 0.2
	default:
		return 0.0
	}
}

// levelBand is one row of the XP-to-level table (spec §4.4: "bands at 0,
// 1 000, 5 000, 20 000, 50 000, 100 000, and linear inside each band with
// band-specific step").
type levelBand struct {
	FloorXP   uint64
	FloorLvl  uint32
	XPPerLvl  uint64
	CeilLvl   uint32
}

var levelBands = []levelBand{
	{FloorXP: 0, FloorLvl: 1, XPPerLvl: 100, CeilLvl: 10},
	{FloorXP: 1_000, FloorLvl: 11, XPPerLvl: 267, CeilLvl: 25},
	{FloorXP: 5_000, FloorLvl: 26, XPPerLvl: 600, CeilLvl: 50},
	{FloorXP: 20_000, FloorLvl: 51, XPPerLvl: 1200, CeilLvl: 75},
	{FloorXP: 50_000, FloorLvl: 76, XPPerLvl: 2000, CeilLvl: 100},
	{FloorXP: 100_000, FloorLvl: 101, XPPerLvl: 5000, CeilLvl: 0}, // unbounded top band
}

// LevelFromXP maps xp_total onto xp_level via the fixed monotone table,
// recomputed on every XP change per the UserAccount invariant.
func LevelFromXP(xpTotal uint64) uint32 {
	chosen := levelBands[0]
	for _, b := range levelBands {
		if xpTotal >= b.FloorXP {
			chosen = b
		} else {
			break
		}
	}
	steps := (xpTotal - chosen.FloorXP) / chosen.XPPerLvl
	level := chosen.FloorLvl + uint32(steps)
	if chosen.CeilLvl > 0 && level > chosen.CeilLvl {
		level = chosen.CeilLvl
	}
	return level
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
