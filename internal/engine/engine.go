// Package engine wires the domain packages into the four external
// interface methods named by the wire contract (spec §6): submitActivity,
// getUserState, recomputeReferralTier and evaluateHumanProbability. It is
// the only package that knows the control-flow order — intake, quality,
// anti-bot gate, reward, referral, store — everything downstream of it is a
// pure function of its inputs.
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/finova-oss/rewardengine/internal/antibot"
	"github.com/finova-oss/rewardengine/internal/errs"
	"github.com/finova-oss/rewardengine/internal/intake"
	"github.com/finova-oss/rewardengine/internal/kernel"
	"github.com/finova-oss/rewardengine/internal/metrics"
	"github.com/finova-oss/rewardengine/internal/model"
	"github.com/finova-oss/rewardengine/internal/quality"
	"github.com/finova-oss/rewardengine/internal/referral"
	"github.com/finova-oss/rewardengine/internal/resilience"
	"github.com/finova-oss/rewardengine/internal/reward"
	"github.com/finova-oss/rewardengine/internal/store"
	"github.com/finova-oss/rewardengine/internal/store/cache"
)

// maxRecentFingerprints bounds the trailing content-hash window carried on
// UserAccount, consumed by the quality assessor's originality signal and the
// anti-bot scorer's content-originality factor.
const maxRecentFingerprints = 50

// Config bundles the sub-package configs the engine composes, plus the
// pluggable anomaly detector (spec §5: "read-mostly and may be replaced
// atomically").
type Config struct {
	Quality  quality.Config
	AntiBot  antibot.Config
	Referral referral.Config
	Reward   reward.Config
	Detector antibot.AnomalyDetector

	// Cache fronts the read-mostly state-store calls (network state,
	// referral snapshot) within the staleness bounds spec §4.7 allows.
	// A nil Cache disables it and every call hits the store directly.
	Cache cache.Cache
}

// Engine is the reference implementation of the external interface.
type Engine struct {
	store    store.Store
	quality  *quality.Assessor
	antibot  *antibot.Scorer
	referral *referral.Evaluator
	rewardCfg reward.Config

	metrics *metrics.Registry

	// stateBreaker guards the read-mostly state-store calls (network state,
	// referral snapshot) against a flapping backend; UpdateUser is not
	// routed through it since its errors carry domain meaning (e.g.
	// DuplicateEvent) that a breaker must never reclassify as Transient.
	stateBreaker *resilience.Breaker
	limiter      *resilience.Limiter
	cache        cache.Cache

	log zerolog.Logger
}

// New builds an Engine. reg must be non-nil: SubmitActivity records every
// event on it. A quick-start caller can pass metrics.NewRegistry with a
// fresh prometheus.Registerer and logging.Default(); cmd/rewardengine wires
// its own.
func New(st store.Store, cfg Config, reg *metrics.Registry, log zerolog.Logger) *Engine {
	return &Engine{
		store:        st,
		quality:      quality.NewAssessor(cfg.Quality),
		antibot:      antibot.NewScorer(cfg.AntiBot, cfg.Detector),
		referral:     referral.NewEvaluator(cfg.Referral),
		rewardCfg:    cfg.Reward,
		metrics:      reg,
		stateBreaker: resilience.NewBreaker(resilience.DefaultBreakerConfig("state-store")),
		limiter:      resilience.NewLimiter(50, 10),
		cache:        cfg.Cache,
		log:          log.With().Str("component", "engine").Logger(),
	}
}

// SubmitActivity processes one ActivityEvent alongside its accompanying
// BehavioralSample (spec §6: "submitActivity(ActivityEvent,
// BehavioralSample) -> RewardOutcome | EngineError"). The mutator below runs
// under the store's own per-user serialization — see store.Store.UpdateUser
// — so every read of the account it makes is already linearized against
// concurrent submissions for the same user; the engine does not need a
// second lock layer on top of it.
//
// A DuplicateEvent replay aborts the mutator entirely (no mutation) and
// returns the prior outcome alongside the error, per spec §7 ("surface
// idempotently with prior outcome"). A Gated result, by contrast, commits a
// reduced reward (10% XP, mining frozen) and is reported as an error
// alongside the committed outcome, matching spec §7's "Gated ... partial XP
// applied" wording rather than an aborted transaction.
func (e *Engine) SubmitActivity(ctx context.Context, event model.ActivityEvent, sample model.BehavioralSample) (model.RewardOutcome, error) {
	if err := intake.Validate(event); err != nil {
		e.metrics.EventsProcessed.WithLabelValues(string(event.Kind), "schema_error").Inc()
		return model.RewardOutcome{}, err
	}
	if err := intake.ValidateSample(sample); err != nil {
		e.metrics.EventsProcessed.WithLabelValues(string(event.Kind), "schema_error").Inc()
		return model.RewardOutcome{}, err
	}

	netState, err := e.fetchNetworkState(ctx)
	if err != nil {
		return model.RewardOutcome{}, err
	}
	snap, err := e.fetchReferralSnapshot(ctx, event.UserID)
	if err != nil {
		return model.RewardOutcome{}, err
	}
	refBreakdown := e.referral.Evaluate(snap, event.Timestamp)

	var (
		outcome    model.RewardOutcome
		gateResult antibot.Result
		duplicate  bool
	)

	mutator := func(acc *model.UserAccount) error {
		if prior, ok := acc.ProcessedEventIDs[event.EventID]; ok {
			outcome = prior
			duplicate = true
			return errs.DuplicateEvent(event.EventID)
		}

		rollDailyCounter(acc, event.Timestamp)
		updateStreak(acc, event.Timestamp)

		qualitySignal := e.quality.Assess(event.Content, event.Platform, acc.RecentContentHashes)

		var gateErr error
		gateResult, gateErr = e.antibot.Evaluate(sample, acc.RecentContentHashes)
		if gateErr != nil {
			return errs.Transient("antibot.Evaluate", gateErr)
		}
		gated := gateResult.Action == model.ActionVerify || gateResult.Action == model.ActionSuspend

		miningIn := reward.MiningInput{
			NetworkState:         netState,
			ActiveReferrals30d:   countActive30d(snap),
			KYCVerified:          acc.KYCVerified,
			TotalMined:           acc.TotalMined,
			XPLevel:              acc.XPLevel,
			RPTier:               acc.RPTier,
			Quality:              qualitySignal.Score,
			ReferralNetworkSize:  len(snap.Direct) + len(snap.L2) + len(snap.L3),
			ReferralQualityScore: refBreakdown.Quality,
			HoursSinceLastClaim:  event.Timestamp.Sub(acc.LastEventAt).Hours(),
			MinedToday:           acc.DailyCounter.MinedToday,
			Holdings:             acc.Holdings,
		}
		if gated {
			// Mining is frozen for a flagged event: the rate is still
			// computed (for the outcome's multiplier trail) but zero hours
			// are claimed against it.
			miningIn.HoursSinceLastClaim = 0
		}
		miningResult, err := reward.ComputeMining(miningIn, e.rewardCfg)
		if err != nil {
			return errs.NumericOverflow("reward.ComputeMining", err)
		}

		xpResult := reward.ComputeXP(reward.XPInput{
			Kind:               event.Kind,
			Platform:           event.Platform,
			Quality:            qualitySignal.Score,
			StreakDays:         acc.StreakDays,
			Level:              acc.XPLevel,
			RecentCountForKind: acc.DailyCounter.ActionsByKind[event.Kind],
			IsGated:            gated,
		}, e.rewardCfg)

		oldRPTotal := acc.RPTotal

		newTotalMined, err := kernel.Add(acc.TotalMined, miningResult.FinalMined)
		if err != nil {
			return errs.NumericOverflow("total_mined", err)
		}
		newHoldings, err := kernel.Add(acc.Holdings, miningResult.FinalMined)
		if err != nil {
			return errs.NumericOverflow("holdings", err)
		}
		newMinedToday, err := kernel.Add(acc.DailyCounter.MinedToday, miningResult.FinalMined)
		if err != nil {
			return errs.NumericOverflow("mined_today", err)
		}

		acc.TotalMined = newTotalMined
		acc.Holdings = newHoldings
		acc.DailyCounter.MinedToday = newMinedToday
		acc.DailyCounter.ActionsByKind[event.Kind]++
		acc.XPTotal += xpResult.Delta
		acc.XPLevel = reward.LevelFromXP(acc.XPTotal)

		// Referral points are recomputed from the snapshot on every event
		// that isn't gated; a gated event freezes rp_total the same way it
		// freezes mining (spec §4.4: RP applied in the same transaction,
		// frozen when gated — see DESIGN.md Open Question decision).
		if !gated {
			acc.RPTotal = refBreakdown.RPTotal
			acc.RPTier = refBreakdown.Tier
		}
		rpDelta, err := kernel.Sub(acc.RPTotal, oldRPTotal)
		if err != nil {
			rpDelta = kernel.Zero
		}

		if event.Content != nil && event.Content.TextHash != "" {
			acc.RecentContentHashes = appendBounded(acc.RecentContentHashes, event.Content.TextHash, maxRecentFingerprints)
		}

		acc.LastEventAt = event.Timestamp

		trail := append(append([]model.MultiplierBreakdown{}, miningResult.Multipliers...), xpResult.Multipliers...)
		outcome = model.RewardOutcome{
			EventID:          event.EventID,
			UserID:           event.UserID,
			MiningDelta:      miningResult.FinalMined,
			XPDelta:          xpResult.Delta,
			RPDelta:          rpDelta,
			Multipliers:      trail,
			CapHit:           miningResult.CapHit,
			Gated:            gated,
			GateAction:       gateResult.Action,
			HumanProbability: gateResult.HumanProbability,
		}
		acc.ProcessedEventIDs[event.EventID] = outcome
		return nil
	}

	_, updateErr := e.resilientUpdate(ctx, event.UserID, mutator)

	switch {
	case duplicate:
		e.metrics.EventsProcessed.WithLabelValues(string(event.Kind), "duplicate").Inc()
		return outcome, updateErr
	case updateErr != nil:
		e.metrics.EventsProcessed.WithLabelValues(string(event.Kind), "error").Inc()
		return model.RewardOutcome{}, updateErr
	}

	if gateResult.Action != model.ActionNone {
		e.metrics.GateTrips.WithLabelValues(string(gateResult.Risk)).Inc()
		e.store.LogSuspicious(store.AuditRecord{
			UserID:           event.UserID,
			EventID:          event.EventID,
			Risk:             gateResult.Risk,
			HumanProbability: gateResult.HumanProbability,
			FactorBreakdown:  gateResult.Breakdown,
			Timestamp:        event.Timestamp,
		})
	}
	if outcome.CapHit {
		e.metrics.DailyCapHits.Inc()
	}

	result := "ok"
	if outcome.Gated {
		result = "gated"
	} else if outcome.CapHit {
		result = "cap_reached"
	}
	e.metrics.EventsProcessed.WithLabelValues(string(event.Kind), result).Inc()

	if outcome.Gated {
		return outcome, errs.New(errs.KindGated, "anti-bot gate triggered, partial reward applied")
	}
	return outcome, nil
}

// GetUserState returns the read-only projection of a user's account (spec
// §6: "getUserState(user_id) -> UserAccountView").
func (e *Engine) GetUserState(ctx context.Context, userID string) (model.UserAccountView, error) {
	acc, err := e.resilientGet(ctx, userID)
	if err != nil {
		return model.UserAccountView{}, err
	}
	return acc.View(), nil
}

// RecomputeReferralTier re-evaluates a user's referral network and commits
// the resulting rp_total/tier unconditionally (spec §6:
// "recomputeReferralTier(user_id) -> {rp_total, tier, breakdown}"). Unlike
// SubmitActivity, there is no gate to freeze here — the caller explicitly
// asked for a recompute.
func (e *Engine) RecomputeReferralTier(ctx context.Context, userID string) (referral.Breakdown, error) {
	snap, err := e.fetchReferralSnapshot(ctx, userID)
	if err != nil {
		return referral.Breakdown{}, err
	}
	breakdown := e.referral.Evaluate(snap, time.Now())

	_, err = e.resilientUpdate(ctx, userID, func(acc *model.UserAccount) error {
		acc.RPTotal = breakdown.RPTotal
		acc.RPTier = breakdown.Tier
		return nil
	})
	if err != nil {
		return referral.Breakdown{}, err
	}
	return breakdown, nil
}

// EvaluateHumanProbability runs the anti-bot scorer against a standalone
// BehavioralSample without mutating any state (spec §6:
// "evaluateHumanProbability(user_id, BehavioralSample) -> AntiBotResult").
// Suspicious results are still logged to the audit channel even though
// nothing is gated here — a caller may invoke this ahead of submitActivity
// to pre-screen a session.
func (e *Engine) EvaluateHumanProbability(ctx context.Context, userID string, sample model.BehavioralSample) (antibot.Result, error) {
	if err := intake.ValidateSample(sample); err != nil {
		return antibot.Result{}, err
	}
	acc, err := e.resilientGet(ctx, userID)
	if err != nil {
		return antibot.Result{}, err
	}

	result, err := e.antibot.Evaluate(sample, acc.RecentContentHashes)
	if err != nil {
		return antibot.Result{}, errs.Transient("antibot.Evaluate", err)
	}
	if result.Action != model.ActionNone {
		e.store.LogSuspicious(store.AuditRecord{
			UserID:           userID,
			Risk:             result.Risk,
			HumanProbability: result.HumanProbability,
			FactorBreakdown:  result.Breakdown,
			Timestamp:        time.Now(),
		})
	}
	return result, nil
}

const networkStateCacheKey = "network_state"

// fetchNetworkState serves out of the cache within NetworkStateTTL (spec
// §4.7: "at most 5 minutes stale") before falling back to the
// breaker-guarded store read.
func (e *Engine) fetchNetworkState(ctx context.Context) (model.NetworkState, error) {
	if e.cache != nil {
		var cached model.NetworkState
		if cache.JSONGet(ctx, e.cache, networkStateCacheKey, &cached) {
			return cached, nil
		}
	}
	v, err := e.stateBreaker.Execute(func() (interface{}, error) {
		return e.store.GetNetworkState(ctx)
	})
	if err != nil {
		return model.NetworkState{}, err
	}
	netState := v.(model.NetworkState)
	if e.cache != nil {
		_ = cache.JSONSet(ctx, e.cache, networkStateCacheKey, netState, cache.NetworkStateTTL)
	}
	return netState, nil
}

func referralSnapshotCacheKey(userID string) string { return "referral_snapshot:" + userID }

// fetchReferralSnapshot serves out of the cache within
// cache.ReferralSnapshotTTL (spec §4.7: "<= 1h stale acceptable") before
// falling back to the breaker-guarded store read.
func (e *Engine) fetchReferralSnapshot(ctx context.Context, userID string) (model.ReferralSnapshot, error) {
	key := referralSnapshotCacheKey(userID)
	if e.cache != nil {
		var cached model.ReferralSnapshot
		if cache.JSONGet(ctx, e.cache, key, &cached) {
			return cached, nil
		}
	}
	v, err := e.stateBreaker.Execute(func() (interface{}, error) {
		return e.store.GetReferralSnapshot(ctx, userID)
	})
	if err != nil {
		return model.ReferralSnapshot{}, err
	}
	snap := v.(model.ReferralSnapshot)
	if e.cache != nil {
		_ = cache.JSONSet(ctx, e.cache, key, snap, cache.ReferralSnapshotTTL)
	}
	return snap, nil
}

// resilientUpdate retries only Transient failures; UnknownUser, DuplicateEvent
// and every other domain error returned by the mutator propagate on the
// first attempt, per the recovery policy (spec §7).
func (e *Engine) resilientUpdate(ctx context.Context, userID string, mutator store.Mutator) (*model.UserAccount, error) {
	var updated *model.UserAccount
	err := resilience.RetryTransient(ctx, e.limiter, userID, func() error {
		acc, err := e.store.UpdateUser(ctx, userID, mutator)
		if err != nil {
			return err
		}
		updated = acc
		return nil
	})
	return updated, err
}

func (e *Engine) resilientGet(ctx context.Context, userID string) (*model.UserAccount, error) {
	var acc *model.UserAccount
	err := resilience.RetryTransient(ctx, e.limiter, userID, func() error {
		a, err := e.store.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		acc = a
		return nil
	})
	return acc, err
}

func rollDailyCounter(acc *model.UserAccount, now time.Time) {
	today := utcDate(now)
	if acc.DailyCounter.UTCDate != today {
		acc.DailyCounter = model.NewDailyCounter(today)
	}
}

// updateStreak implements the streak-day rule on UserAccount.StreakDays:
// at most one increment per UTC day, and only while the gap since
// the last event stays within 48h; otherwise the streak resets to 1.
func updateStreak(acc *model.UserAccount, now time.Time) {
	if acc.LastEventAt.IsZero() {
		acc.StreakDays = 1
		return
	}
	if utcDate(now) == utcDate(acc.LastEventAt) {
		return
	}
	if now.Sub(acc.LastEventAt) <= 48*time.Hour {
		acc.StreakDays++
	} else {
		acc.StreakDays = 1
	}
}

func utcDate(t time.Time) string { return t.UTC().Format("2006-01-02") }

func countActive30d(snap model.ReferralSnapshot) uint32 {
	var n uint32
	for _, m := range snap.Direct {
		if m.Active30d {
			n++
		}
	}
	return n
}

// appendBounded appends v to the slice, trimming from the front so it never
// exceeds max entries.
func appendBounded(s []string, v string, max int) []string {
	s = append(s, v)
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}
