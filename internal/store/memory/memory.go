// Package memory is the in-process reference implementation of
// internal/store.Store: a sync.Map-backed per-user registry with
// sync.Mutex-guarded updates, grounded on the teacher's per-host limiter
// map (internal/net/ratelimit/limiter.go) generalized from per-host to
// per-user.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/finova-oss/rewardengine/internal/audit"
	"github.com/finova-oss/rewardengine/internal/errs"
	"github.com/finova-oss/rewardengine/internal/kernel"
	"github.com/finova-oss/rewardengine/internal/model"
	"github.com/finova-oss/rewardengine/internal/store"
)

type userSlot struct {
	mu      sync.Mutex
	account *model.UserAccount
}

// Store is an in-memory Store implementation suitable for tests and the
// reference CLI. It is safe for concurrent use across distinct user ids;
// within one id, UpdateUser serializes callers via the slot's mutex.
type Store struct {
	slots sync.Map // string -> *userSlot

	netMu sync.RWMutex
	net   model.NetworkState

	refMu  sync.RWMutex
	refs   map[string]model.ReferralSnapshot

	sink audit.Sink
}

func New(sink audit.Sink, initialNetworkState model.NetworkState) *Store {
	if sink == nil {
		sink = noopSink{}
	}
	return &Store{
		net:  initialNetworkState,
		refs: make(map[string]model.ReferralSnapshot),
		sink: sink,
	}
}

func (s *Store) slotFor(id string) *userSlot {
	v, _ := s.slots.LoadOrStore(id, &userSlot{})
	return v.(*userSlot)
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.UserAccount, error) {
	slot := s.slotFor(id)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.account == nil {
		return nil, errs.UnknownUser(id)
	}
	return cloneAccount(slot.account), nil
}

func (s *Store) CreateUser(ctx context.Context, id string, now time.Time) (*model.UserAccount, error) {
	slot := s.slotFor(id)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.account != nil {
		return cloneAccount(slot.account), nil
	}
	slot.account = &model.UserAccount{
		ID:                id,
		CreatedAt:         now,
		LastEventAt:       now,
		TotalMined:        kernel.Zero,
		Holdings:          kernel.Zero,
		RPTotal:           kernel.Zero,
		RPTier:            model.TierExplorer,
		StakedAmount:      kernel.Zero,
		DailyCounter:      model.NewDailyCounter(utcDate(now)),
		ProcessedEventIDs: make(map[string]model.RewardOutcome),
	}
	return cloneAccount(slot.account), nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, mutator store.Mutator) (*model.UserAccount, error) {
	slot := s.slotFor(id)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.account == nil {
		return nil, errs.UnknownUser(id)
	}

	working := cloneAccount(slot.account)
	if err := mutator(working); err != nil {
		return nil, err
	}
	slot.account = working
	return cloneAccount(slot.account), nil
}

func (s *Store) GetNetworkState(ctx context.Context) (model.NetworkState, error) {
	s.netMu.RLock()
	defer s.netMu.RUnlock()
	return s.net, nil
}

// SetNetworkState lets an external job (simulated here) publish a fresh
// snapshot — the engine itself only ever reads via GetNetworkState.
func (s *Store) SetNetworkState(n model.NetworkState) {
	s.netMu.Lock()
	defer s.netMu.Unlock()
	s.net = n
}

func (s *Store) GetReferralSnapshot(ctx context.Context, id string) (model.ReferralSnapshot, error) {
	s.refMu.RLock()
	defer s.refMu.RUnlock()
	snap, ok := s.refs[id]
	if !ok {
		return model.ReferralSnapshot{UserID: id, ComputedAt: time.Now()}, nil
	}
	return snap, nil
}

// SetReferralSnapshot lets a caller seed or refresh a user's referral view.
func (s *Store) SetReferralSnapshot(snap model.ReferralSnapshot) {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	s.refs[snap.UserID] = snap
}

func (s *Store) LogSuspicious(record store.AuditRecord) {
	s.sink.Publish(record)
}

func utcDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func cloneAccount(a *model.UserAccount) *model.UserAccount {
	c := *a
	c.DailyCounter.ActionsByKind = make(map[model.ActivityKind]uint32, len(a.DailyCounter.ActionsByKind))
	for k, v := range a.DailyCounter.ActionsByKind {
		c.DailyCounter.ActionsByKind[k] = v
	}
	c.ProcessedEventIDs = make(map[string]model.RewardOutcome, len(a.ProcessedEventIDs))
	for k, v := range a.ProcessedEventIDs {
		c.ProcessedEventIDs[k] = v
	}
	c.RecentContentHashes = make([]string, len(a.RecentContentHashes))
	copy(c.RecentContentHashes, a.RecentContentHashes)
	return &c
}

type noopSink struct{}

func (noopSink) Publish(store.AuditRecord)           {}
func (noopSink) Drain(int) []store.AuditRecord       { return nil }
