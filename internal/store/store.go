// Package store defines the abstract state store interface (spec §4.7).
// No storage technology is implied here; internal/store/memory and
// internal/store/postgres provide concrete implementations, and
// internal/store/cache is a TTL cache used alongside them, not a Store.
package store

import (
	"context"
	"time"

	"github.com/finova-oss/rewardengine/internal/model"
)

// Mutator transforms a UserAccount in place and returns an error to abort
// the mutation (the store must leave the prior state untouched on error).
// update_user(id, mutator) must be atomic per user — see Store.UpdateUser.
type Mutator func(account *model.UserAccount) error

// AuditRecord is the wire shape appended to the audit channel (spec §6).
type AuditRecord struct {
	UserID           string
	EventID          string
	Risk             model.RiskClass
	HumanProbability float64
	FactorBreakdown  map[string]float64
	Timestamp        time.Time
}

// Store is the engine's sole persistence contract.
type Store interface {
	// GetUser returns the account for id, or an errs.UnknownUser-kind
	// error if it has never been created and the caller's policy forbids
	// auto-create.
	GetUser(ctx context.Context, id string) (*model.UserAccount, error)

	// CreateUser creates a fresh account for id if one does not already
	// exist; implementations must make this idempotent.
	CreateUser(ctx context.Context, id string, now time.Time) (*model.UserAccount, error)

	// UpdateUser applies mutator atomically per user: the whole mutator
	// either commits or the account is left unchanged. Implementations
	// must serialize concurrent UpdateUser calls for the same id.
	UpdateUser(ctx context.Context, id string, mutator Mutator) (*model.UserAccount, error)

	// GetNetworkState returns a read-only snapshot, at-most 5 minutes
	// stale.
	GetNetworkState(ctx context.Context) (model.NetworkState, error)

	// GetReferralSnapshot returns a possibly up-to-1h-stale view of id's
	// downstream referral network.
	GetReferralSnapshot(ctx context.Context, id string) (model.ReferralSnapshot, error)

	// LogSuspicious is best-effort and must never block the caller.
	LogSuspicious(record AuditRecord)
}
