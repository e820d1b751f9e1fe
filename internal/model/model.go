// Package model defines the engine's wire-stable and persisted record
// shapes (spec §3): UserAccount, NetworkState, ActivityEvent,
// BehavioralSample, ReferralSnapshot and RewardOutcome.
package model

import (
	"time"

	"github.com/finova-oss/rewardengine/internal/kernel"
)

// ActivityKind enumerates the action types an ActivityEvent may carry.
type ActivityKind string

const (
	KindPost                    ActivityKind = "Post"
	KindComment                 ActivityKind = "Comment"
	KindLike                    ActivityKind = "Like"
	KindShare                   ActivityKind = "Share"
	KindFollow                  ActivityKind = "Follow"
	KindStory                   ActivityKind = "Story"
	KindVideo                   ActivityKind = "Video"
	KindLiveStream              ActivityKind = "LiveStream"
	KindDailyLogin               ActivityKind = "DailyLogin"
	KindQuestComplete           ActivityKind = "QuestComplete"
	KindMilestone               ActivityKind = "Milestone"
	KindViralContent            ActivityKind = "ViralContent"
	KindReferralL1ActivityDecay ActivityKind = "ReferralL1ActivityDecay"
	KindReferralL2ActivityDecay ActivityKind = "ReferralL2ActivityDecay"
	KindReferralL3ActivityDecay ActivityKind = "ReferralL3ActivityDecay"
)

// validActivityKinds backs ActivityKind.Valid — a tagged-enum check rather
// than accepting any string, per the wire schema's "unknown enum values are
// rejected" rule.
var validActivityKinds = map[ActivityKind]struct{}{
	KindPost: {}, KindComment: {}, KindLike: {}, KindShare: {}, KindFollow: {},
	KindStory: {}, KindVideo: {}, KindLiveStream: {}, KindDailyLogin: {},
	KindQuestComplete: {}, KindMilestone: {}, KindViralContent: {},
	KindReferralL1ActivityDecay: {}, KindReferralL2ActivityDecay: {}, KindReferralL3ActivityDecay: {},
}

func (k ActivityKind) Valid() bool {
	_, ok := validActivityKinds[k]
	return ok
}

// Platform enumerates the social platform an event originated from.
type Platform string

const (
	PlatformTikTok    Platform = "TikTok"
	PlatformYouTube   Platform = "YouTube"
	PlatformInstagram Platform = "Instagram"
	PlatformFacebook  Platform = "Facebook"
	PlatformX         Platform = "X"
	PlatformLinkedIn  Platform = "LinkedIn"
	PlatformOwnApp    Platform = "OwnApp"
)

var validPlatforms = map[Platform]struct{}{
	PlatformTikTok: {}, PlatformYouTube: {}, PlatformInstagram: {}, PlatformFacebook: {},
	PlatformX: {}, PlatformLinkedIn: {}, PlatformOwnApp: {},
}

func (p Platform) Valid() bool {
	_, ok := validPlatforms[p]
	return ok
}

// RPTier enumerates the referral-point tier ladder (spec §4.5).
type RPTier string

const (
	TierExplorer   RPTier = "Explorer"
	TierConnector  RPTier = "Connector"
	TierInfluencer RPTier = "Influencer"
	TierLeader     RPTier = "Leader"
	TierAmbassador RPTier = "Ambassador"
)

// RiskClass enumerates the anti-bot scorer's risk classification.
type RiskClass string

const (
	RiskLow      RiskClass = "LOW"
	RiskMedium   RiskClass = "MEDIUM"
	RiskHigh     RiskClass = "HIGH"
	RiskCritical RiskClass = "CRITICAL"
)

// GateAction enumerates the anti-bot scorer's recommended action.
type GateAction string

const (
	ActionNone    GateAction = "NONE"
	ActionWatch   GateAction = "WATCH"
	ActionVerify  GateAction = "VERIFY"
	ActionSuspend GateAction = "SUSPEND"
)

// DailyCounter tracks a user's per-UTC-day mining and activity counts (spec
// §3 UserAccount.daily_counter).
type DailyCounter struct {
	UTCDate      string                 // YYYY-MM-DD
	MinedToday   kernel.Amount
	ActionsByKind map[ActivityKind]uint32
}

// NewDailyCounter returns a freshly rolled-over counter for utcDate.
func NewDailyCounter(utcDate string) DailyCounter {
	return DailyCounter{
		UTCDate:       utcDate,
		MinedToday:    kernel.Zero,
		ActionsByKind: make(map[ActivityKind]uint32),
	}
}

// UserAccount is the owned-by-the-store aggregate for a single subject
// (spec §3). Every mutation must leave xp_level and rp_tier consistent with
// xp_total and rp_total respectively — see internal/reward for the derived
// mappings. The stores apply each mutator as given and do not re-check these
// invariants after a write.
type UserAccount struct {
	ID            string
	CreatedAt     time.Time
	LastEventAt   time.Time
	KYCVerified   bool
	TotalMined    kernel.Amount
	Holdings      kernel.Amount
	XPTotal       uint64
	XPLevel       uint32
	RPTotal       kernel.Amount
	RPTier        RPTier
	StreakDays    uint32
	StakedAmount  kernel.Amount
	StakingTierID string
	StakeStartedAt *time.Time
	DirectReferrerID *string
	DailyCounter  DailyCounter

	// RecentContentHashes is a bounded trailing window of the subject's
	// own content fingerprints, consumed by the quality assessor's
	// originality signal and the anti-bot scorer's content-originality
	// factor. Most recent last.
	RecentContentHashes []string

	// ProcessedEventIDs is the idempotency ledger (spec §5 Cancellation):
	// (user_id, event_id) pairs already applied. Neither the in-memory nor
	// the Postgres store prunes it: every entry is kept for the account's
	// lifetime.
	ProcessedEventIDs map[string]RewardOutcome
}

// UserAccountView is the read-only projection returned by getUserState —
// the internal ProcessedEventIDs ledger and raw daily counter map are never
// exposed to callers.
type UserAccountView struct {
	ID           string
	CreatedAt    time.Time
	LastEventAt  time.Time
	KYCVerified  bool
	TotalMined   kernel.Amount
	Holdings     kernel.Amount
	XPTotal      uint64
	XPLevel      uint32
	RPTotal      kernel.Amount
	RPTier       RPTier
	StreakDays   uint32
	MinedToday   kernel.Amount
}

func (u *UserAccount) View() UserAccountView {
	return UserAccountView{
		ID:          u.ID,
		CreatedAt:   u.CreatedAt,
		LastEventAt: u.LastEventAt,
		KYCVerified: u.KYCVerified,
		TotalMined:  u.TotalMined,
		Holdings:    u.Holdings,
		XPTotal:     u.XPTotal,
		XPLevel:     u.XPLevel,
		RPTotal:     u.RPTotal,
		RPTier:      u.RPTier,
		StreakDays:  u.StreakDays,
		MinedToday:  u.DailyCounter.MinedToday,
	}
}

// Phase enumerates the mining-phase regimes (spec §4.2).
type Phase string

const (
	PhasePioneer   Phase = "Pioneer"
	PhaseGrowth    Phase = "Growth"
	PhaseMaturity  Phase = "Maturity"
	PhaseStability Phase = "Stability"
)

// NetworkState is the single global record the phase oracle reads (spec
// §3). It is owned by an external job; the engine treats it as a read-only,
// at-most-5-minutes-stale snapshot.
type NetworkState struct {
	TotalUsers     uint64
	Phase          Phase
	DailyRewardPool kernel.Amount
	LastRefresh    time.Time
}

// ContentPayload is the optional content descriptor on an ActivityEvent.
type ContentPayload struct {
	TextHash       string
	MediaDescriptor *string

	// UnsafeTermHits and GenericPhraseHits are lexicon-match counts
	// extracted upstream, before the raw text is discarded and only its
	// hash crosses the wire (spec §6's event schema never carries raw
	// text) — internal/quality's safety and human-authorship signals
	// score these counts directly rather than pattern-matching TextHash,
	// which is a hex digest and so can never contain a lexicon term.
	UnsafeTermHits    uint32
	GenericPhraseHits uint32
}

// DeviceDescriptor identifies the originating device.
type DeviceDescriptor struct {
	FingerprintHex string
	Primary        bool
}

// NetworkDescriptor identifies the originating network (spec §6 wire
// schema).
type NetworkDescriptor struct {
	Country        string // ISO 3166 alpha-2/3
	ConnectionType string
}

// ActivityEvent is an immutable, wire-stable record of a single user action
// (spec §3, §6).
type ActivityEvent struct {
	EventID   string
	UserID    string
	Kind      ActivityKind
	Platform  Platform
	Timestamp time.Time
	Content   *ContentPayload
	Device    DeviceDescriptor
	Network   NetworkDescriptor
}

// BehavioralSample carries the raw signals the anti-bot scorer consumes
// (spec §3, §4.6).
type BehavioralSample struct {
	UserID              string
	ClickIntervalsMS    []float64
	SessionStart        time.Time
	SessionEnd          time.Time
	HourOfDayHistogram  [24]uint32
	DeviceID            string
	RecentDeviceIDs     []string // devices used in the trailing window
	ConnectionAuthentic float64  // [0,1], externally attested connection authenticity
	ContentHash         string
	MutualConnections   uint32
	ConnectionAgeDays   uint32
}

// ReferralMember describes one referee in a ReferralSnapshot.
type ReferralMember struct {
	UserID     string
	Active30d  bool
	XPLevel    uint32
	JoinedAt   time.Time
	Platform   Platform
	Country    string
	XPGain30d  uint64
}

// ReferralSnapshot is a bounded-depth, cacheable (<=1h) view of a user's
// downstream referral network (spec §3, §4.5).
type ReferralSnapshot struct {
	UserID    string
	Direct    []ReferralMember
	L2        []ReferralMember
	L3        []ReferralMember
	ComputedAt time.Time
}

// MultiplierBreakdown names one contributing factor and its numeric value,
// in the order it was applied — the reward outcome's "reason trail" (spec
// §3 RewardOutcome).
type MultiplierBreakdown struct {
	Name  string
	Value float64
}

// RewardOutcome is the result of processing a single ActivityEvent (spec
// §3). It is returned to the caller and never persisted standalone — the
// state store persists the UserAccount mutation it caused, not the outcome
// record itself (the idempotency ledger is the one exception, see
// UserAccount.ProcessedEventIDs).
type RewardOutcome struct {
	EventID      string
	UserID       string
	MiningDelta  kernel.Amount
	XPDelta      uint64
	RPDelta      kernel.Amount
	Multipliers  []MultiplierBreakdown
	CapHit       bool
	Gated        bool
	GateAction   GateAction
	HumanProbability float64
}
