package postgres

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finova-oss/rewardengine/internal/errs"
	"github.com/finova-oss/rewardengine/internal/model"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "postgres")
	cfg := DefaultConfig()
	return &Store{db: sqlxDB, cfg: cfg, sink: noopSink{}}, mock
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
}

func TestGetUserNotFoundReturnsUnknownUser(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT \* FROM user_accounts WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(nil))

	_, err := s.GetUser(context.Background(), "ghost")
	require.Error(t, err)
	e, ok := errs.AsEngineError(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindUnknownUser, e.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserScansRow(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	cols := []string{
		"id", "created_at", "last_event_at", "kyc_verified", "total_mined", "holdings",
		"xp_total", "xp_level", "rp_total", "rp_tier", "streak_days", "staked_amount",
		"staking_tier_id", "direct_referrer_id", "daily_utc_date", "daily_mined_today",
		"daily_action_counts",
	}
	rows := sqlmock.NewRows(cols).AddRow(
		"u1", now, now, true, "1.000000000000000000", "2.000000000000000000",
		100, 2, "0.000000000000000000", "Explorer", 1, "0.000000000000000000",
		nil, nil, "2026-07-30", "0.000000000000000000", []byte("{}"),
	)
	mock.ExpectQuery(`SELECT \* FROM user_accounts WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(rows)

	account, err := s.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", account.ID)
	assert.Equal(t, uint64(100), account.XPTotal)
	require.NoError(t, mock.ExpectationsWereMet())
}

var userRowCols = []string{
	"id", "created_at", "last_event_at", "kyc_verified", "total_mined", "holdings",
	"xp_total", "xp_level", "rp_total", "rp_tier", "streak_days", "staked_amount",
	"staking_tier_id", "direct_referrer_id", "daily_utc_date", "daily_mined_today",
	"daily_action_counts", "processed_event_ids", "recent_content_hashes",
}

func freshUserRow(id string, now time.Time, processedEventIDs []byte) []driver.Value {
	if processedEventIDs == nil {
		processedEventIDs = []byte("{}")
	}
	return []driver.Value{
		id, now, now, false, "0.000000000000000000", "0.000000000000000000",
		0, 1, "0.000000000000000000", "Explorer", 0, "0.000000000000000000",
		nil, nil, now.UTC().Format("2006-01-02"), "0.000000000000000000",
		[]byte("{}"), processedEventIDs, []byte("[]"),
	}
}

// jsonContains matches an exec argument (the marshaled processed_event_ids
// JSON blob) that contains the given substring, without depending on Go
// map-iteration order of the marshaled JSON.
type jsonContains string

func (j jsonContains) Match(v driver.Value) bool {
	b, ok := v.([]byte)
	if !ok {
		return false
	}
	return strings.Contains(string(b), string(j))
}

// TestUpdateUserPersistsProcessedEventIDs covers spec §8 testable property
// 8 (Idempotence) for the Postgres backend: a mutator that records a new
// processed event must have that record reach the UPDATE statement's
// processed_event_ids column, not just the in-memory account snapshot.
func TestUpdateUserPersistsProcessedEventIDs(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM user_accounts WHERE id = \$1 FOR UPDATE`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userRowCols).AddRow(freshUserRow("u1", now, nil)...))
	mock.ExpectExec(`UPDATE user_accounts SET`).
		WithArgs(
			"u1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), jsonContains(`"ev1"`), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := s.UpdateUser(context.Background(), "u1", func(acc *model.UserAccount) error {
		acc.ProcessedEventIDs["ev1"] = model.RewardOutcome{EventID: "ev1", UserID: "u1"}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestUpdateUserRejectsDuplicateEventUsingPersistedOutcome covers spec §8
// scenario S6 against the Postgres backend: a row whose persisted
// processed_event_ids already carries "ev1" must let a mutator see that
// prior outcome and reject the replay, the same way the memory store does.
func TestUpdateUserRejectsDuplicateEventUsingPersistedOutcome(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	prior := map[string]model.RewardOutcome{
		"ev1": {EventID: "ev1", UserID: "u1", XPDelta: 42},
	}
	priorJSON, err := json.Marshal(prior)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM user_accounts WHERE id = \$1 FOR UPDATE`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userRowCols).AddRow(freshUserRow("u1", now, priorJSON)...))
	mock.ExpectRollback()

	var seenPrior model.RewardOutcome
	_, updateErr := s.UpdateUser(context.Background(), "u1", func(acc *model.UserAccount) error {
		outcome, ok := acc.ProcessedEventIDs["ev1"]
		if !ok {
			return errs.New(errs.KindInvariantViolation, "expected a persisted prior outcome")
		}
		seenPrior = outcome
		return errs.DuplicateEvent("ev1")
	})
	require.Error(t, updateErr)
	ee, ok := errs.AsEngineError(updateErr)
	require.True(t, ok)
	assert.Equal(t, errs.KindDuplicateEvent, ee.Kind)
	assert.Equal(t, uint64(42), seenPrior.XPDelta)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestUpdateUserPersistsRecentContentHashes covers the quality assessor's
// originality signal and the anti-bot content-originality factor, both of
// which depend on UserAccount.RecentContentHashes surviving a round trip
// through the Postgres backend rather than resetting to empty on every load.
func TestUpdateUserPersistsRecentContentHashes(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM user_accounts WHERE id = \$1 FOR UPDATE`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userRowCols).AddRow(freshUserRow("u1", now, nil)...))
	mock.ExpectExec(`UPDATE user_accounts SET`).
		WithArgs(
			"u1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), jsonContains(`deadbeef`),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := s.UpdateUser(context.Background(), "u1", func(acc *model.UserAccount) error {
		acc.RecentContentHashes = append(acc.RecentContentHashes, "deadbeef0123456789abcdef01234567")
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestGetUserLoadsPersistedRecentContentHashes confirms rowToAccount
// unmarshals the stored JSON array back into UserAccount.RecentContentHashes
// instead of discarding it.
func TestGetUserLoadsPersistedRecentContentHashes(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	hashesJSON, err := json.Marshal([]string{"aaaa0000", "bbbb1111"})
	require.NoError(t, err)

	rows := sqlmock.NewRows(userRowCols).AddRow(append(
		freshUserRow("u1", now, nil)[:len(userRowCols)-1], hashesJSON)...)
	mock.ExpectQuery(`SELECT \* FROM user_accounts WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(rows)

	account, err := s.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaa0000", "bbbb1111"}, account.RecentContentHashes)
	require.NoError(t, mock.ExpectationsWereMet())
}
