// Package quality implements the content quality assessor (spec §4.3): a
// weighted blend of five bounded signals, affine-mapped onto [0.5, 2.0].
//
// Weighting and attribution follow the teacher's quality-residual pattern
// (components struct + configured weights + per-signal attribution map);
// see Config and Signal below.
package quality

import (
	"fmt"

	"github.com/finova-oss/rewardengine/internal/model"
)

// Config holds the assessor's tunable weights, penalties and per-platform
// bands. Weights are expected to sum to 1.0; Validate checks this.
type Config struct {
	OriginalityWeight float64 `yaml:"originality_weight"`
	EngagementWeight   float64 `yaml:"engagement_weight"`
	PlatformWeight     float64 `yaml:"platform_weight"`
	SafetyWeight       float64 `yaml:"safety_weight"`
	HumanAuthoredWeight float64 `yaml:"human_authored_weight"`

	// SafetyFloor is the per-signal threshold below which the whole score
	// is forced to the minimum regardless of other signals (spec §4.3:
	// "Safety signal alone < 0.3 forces q = 0.5").
	SafetyFloor float64 `yaml:"safety_floor"`

	// SafetyPenaltyPerHit is subtracted from a perfect safety score for
	// each upstream-flagged unsafe-term hit on the submission
	// (model.ContentPayload.UnsafeTermHits).
	SafetyPenaltyPerHit float64 `yaml:"safety_penalty_per_hit"`

	// GenericPenaltyPerHit is subtracted from a perfect human-authored
	// score for each upstream-flagged generic/low-effort phrase hit
	// (model.ContentPayload.GenericPhraseHits).
	GenericPenaltyPerHit float64 `yaml:"generic_penalty_per_hit"`

	// PlatformBands gives the ideal content-length band per platform for
	// the platform-relevance signal, keyed by model.Platform.
	PlatformBands map[model.Platform]LengthBand `yaml:"platform_bands"`

	// ShingleSize is the rolling-window width (in hex characters of the
	// content fingerprint) used to build the shingle set for the
	// Jaccard-similarity originality check.
	ShingleSize int `yaml:"shingle_size"`
}

// LengthBand is an inclusive ideal range for fingerprint-derived content
// length proxies (characters of hex digest used as a stand-in — see the
// shingles doc comment for why raw text is unavailable here).
type LengthBand struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// DefaultConfig returns the weights and constants named in the spec.
func DefaultConfig() Config {
	return Config{
		OriginalityWeight:   0.30,
		EngagementWeight:    0.25,
		PlatformWeight:      0.20,
		SafetyWeight:        0.15,
		HumanAuthoredWeight: 0.10,
		SafetyFloor:          0.3,
		ShingleSize:          4,
		SafetyPenaltyPerHit:  0.3,
		GenericPenaltyPerHit: 0.25,
		PlatformBands: map[model.Platform]LengthBand{
			model.PlatformTikTok:    {Min: 8, Max: 64},
			model.PlatformYouTube:   {Min: 16, Max: 256},
			model.PlatformInstagram: {Min: 8, Max: 128},
			model.PlatformFacebook:  {Min: 8, Max: 256},
			model.PlatformX:         {Min: 4, Max: 56},
			model.PlatformLinkedIn:  {Min: 16, Max: 192},
			model.PlatformOwnApp:    {Min: 4, Max: 256},
		},
	}
}

func (c Config) Validate() error {
	sum := c.OriginalityWeight + c.EngagementWeight + c.PlatformWeight +
		c.SafetyWeight + c.HumanAuthoredWeight
	if sum < 0.999 || sum > 1.001 {
		return errWeightsNotNormalized(sum)
	}
	return nil
}

type errWeightsNotNormalized float64

func (e errWeightsNotNormalized) Error() string {
	return fmt.Sprintf("quality: config weights must sum to 1.0, got %.4f", float64(e))
}

// Signal is the per-assessment breakdown, mirroring the teacher's
// QualitySignal/QualityComponents/attribution trio.
type Signal struct {
	Score       float64
	Components  Components
	Attribution map[string]float64
}

type Components struct {
	Originality   float64
	Engagement    float64
	Platform      float64
	Safety        float64
	HumanAuthored float64
}

// Assessor evaluates content quality against a user's recent fingerprint
// history.
type Assessor struct {
	cfg Config
}

func NewAssessor(cfg Config) *Assessor {
	return &Assessor{cfg: cfg}
}

// Assess scores one piece of content. recentFingerprints is the user's
// trailing window of content text hashes (most recent last); the engine
// passes its count-bounded window (the last 50 hashes), which is not
// filtered by age. An empty
// payload (nil content) yields the floor score per spec.
func (a *Assessor) Assess(content *model.ContentPayload, platform model.Platform, recentFingerprints []string) Signal {
	if content == nil || content.TextHash == "" {
		return floorSignal()
	}

	comp := Components{
		Originality:   originalityScore(content.TextHash, recentFingerprints, a.cfg.ShingleSize),
		Engagement:    engagementScore(content.TextHash, platform, a.cfg.PlatformBands),
		Platform:      platformRelevanceScore(content.TextHash, platform, a.cfg.PlatformBands),
		Safety:        safetyScore(content.UnsafeTermHits, a.cfg.SafetyPenaltyPerHit),
		HumanAuthored: humanAuthoredScore(content.GenericPhraseHits, a.cfg.GenericPenaltyPerHit),
	}

	if comp.Safety < a.cfg.SafetyFloor {
		return Signal{
			Score:      0.5,
			Components: comp,
			Attribution: map[string]float64{
				"safety_floor_triggered": 1.0,
			},
		}
	}

	weighted := a.cfg.OriginalityWeight*comp.Originality +
		a.cfg.EngagementWeight*comp.Engagement +
		a.cfg.PlatformWeight*comp.Platform +
		a.cfg.SafetyWeight*comp.Safety +
		a.cfg.HumanAuthoredWeight*comp.HumanAuthored

	// Affine-map the [0,1] weighted sum onto [0.5, 2.0] and clamp.
	score := 0.5 + weighted*1.5
	if score < 0.5 {
		score = 0.5
	}
	if score > 2.0 {
		score = 2.0
	}

	return Signal{
		Score:       score,
		Components:  comp,
		Attribution: attribution(a.cfg, comp),
	}
}

func floorSignal() Signal {
	return Signal{Score: 0.5, Attribution: map[string]float64{"empty_content": 1.0}}
}

func attribution(cfg Config, c Components) map[string]float64 {
	contribs := map[string]float64{
		"originality":    cfg.OriginalityWeight * c.Originality,
		"engagement":     cfg.EngagementWeight * c.Engagement,
		"platform":       cfg.PlatformWeight * c.Platform,
		"safety":         cfg.SafetyWeight * c.Safety,
		"human_authored": cfg.HumanAuthoredWeight * c.HumanAuthored,
	}
	total := 0.0
	for _, v := range contribs {
		total += v
	}
	out := make(map[string]float64, len(contribs))
	if total <= 0 {
		even := 1.0 / float64(len(contribs))
		for k := range contribs {
			out[k] = even
		}
		return out
	}
	for k, v := range contribs {
		out[k] = v / total
	}
	return out
}

// shingles splits a hex fingerprint into overlapping substrings of size n.
// Raw post text never reaches this layer (the wire schema only carries a
// content hash, spec §6) so the fingerprint hex itself stands in as the
// shingled artifact — same Jaccard-over-shingles approach as the reference
// originality detector, applied to the hash rather than the source text.
func shingles(hash string, n int) map[string]struct{} {
	set := make(map[string]struct{})
	if len(hash) < n {
		set[hash] = struct{}{}
		return set
	}
	for i := 0; i+n <= len(hash); i++ {
		set[hash[i:i+n]] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// originalityScore is 1 - max similarity to any recent fingerprint.
func originalityScore(hash string, recent []string, shingleSize int) float64 {
	if len(recent) == 0 {
		return 1.0
	}
	current := shingles(hash, shingleSize)
	maxSim := 0.0
	for _, r := range recent {
		sim := jaccard(current, shingles(r, shingleSize))
		if sim > maxSim {
			maxSim = sim
		}
	}
	return 1.0 - maxSim
}

// engagementScore proxies length/structure heuristics off the fingerprint
// length against the platform's ideal band, since raw text is unavailable.
func engagementScore(hash string, platform model.Platform, bands map[model.Platform]LengthBand) float64 {
	band, ok := bands[platform]
	if !ok {
		return 0.5
	}
	n := len(hash)
	if n < band.Min || n > band.Max {
		return 0.4
	}
	mid := float64(band.Min+band.Max) / 2
	spread := float64(band.Max-band.Min) / 2
	if spread == 0 {
		return 1.0
	}
	distance := absFloat(float64(n) - mid)
	return clamp01(1.0 - distance/spread)
}

func platformRelevanceScore(hash string, platform model.Platform, bands map[model.Platform]LengthBand) float64 {
	if _, ok := bands[platform]; !ok {
		return 0.5
	}
	return engagementScore(hash, platform, bands)
}

// safetyScore scores the brand-safety signal off a hit count an upstream
// text-analysis step already extracted from the raw content (spec §4.3's
// "unsafe-term lexicon" penalty) — the wire schema never carries raw text,
// only content.TextHash, so the lexicon match itself cannot happen here.
func safetyScore(unsafeTermHits uint32, penaltyPerHit float64) float64 {
	return clamp01(1.0 - penaltyPerHit*float64(unsafeTermHits))
}

// humanAuthoredScore mirrors safetyScore for the generic/low-effort
// phrasing signal.
func humanAuthoredScore(genericPhraseHits uint32, penaltyPerHit float64) float64 {
	return clamp01(1.0 - penaltyPerHit*float64(genericPhraseHits))
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

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
