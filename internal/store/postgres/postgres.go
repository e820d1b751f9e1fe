// Package postgres implements internal/store.Store over PostgreSQL via
// sqlx + lib/pq, grounded on the teacher's persistence layer
// (internal/persistence/postgres/premove_repo.go and
// internal/infrastructure/db/connection.go): per-call context timeouts,
// insert-on-conflict-do-nothing user creation, and a pooled *sqlx.DB
// configured from Config and pinged once on Open.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/finova-oss/rewardengine/internal/audit"
	"github.com/finova-oss/rewardengine/internal/errs"
	"github.com/finova-oss/rewardengine/internal/kernel"
	"github.com/finova-oss/rewardengine/internal/model"
	"github.com/finova-oss/rewardengine/internal/store"
)

// Config mirrors the teacher's db.Config: pool sizing, lifetimes and a
// per-call query timeout loaded from YAML with env overrides.
type Config struct {
	DSN             string        `yaml:"dsn" env:"PG_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"PG_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"PG_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	QueryTimeout    time.Duration `yaml:"query_timeout" env:"PG_QUERY_TIMEOUT"`
}

func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		QueryTimeout:    5 * time.Second,
	}
}

// Store is the PostgreSQL-backed state store. Per-user atomicity is
// delegated to Postgres row-level locking (SELECT ... FOR UPDATE inside a
// transaction) rather than an in-process mutex, since multiple engine
// processes may share one database.
type Store struct {
	db      *sqlx.DB
	cfg     Config
	sink    audit.Sink
}

// Open connects and verifies connectivity, mirroring the teacher's
// NewManager ping-on-construct pattern.
func Open(cfg Config, sink audit.Sink) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: DSN is required")
	}
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}
	if sink == nil {
		sink = noopSink{}
	}
	return &Store{db: db, cfg: cfg, sink: sink}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// userRow is the sqlx scan target for the user_accounts table.
type userRow struct {
	ID                string         `db:"id"`
	CreatedAt         time.Time      `db:"created_at"`
	LastEventAt       time.Time      `db:"last_event_at"`
	KYCVerified       bool           `db:"kyc_verified"`
	TotalMined        string         `db:"total_mined"`
	Holdings          string         `db:"holdings"`
	XPTotal           int64          `db:"xp_total"`
	XPLevel           int32          `db:"xp_level"`
	RPTotal           string         `db:"rp_total"`
	RPTier            string         `db:"rp_tier"`
	StreakDays        int32          `db:"streak_days"`
	StakedAmount      string         `db:"staked_amount"`
	StakingTierID     sql.NullString `db:"staking_tier_id"`
	DirectReferrerID  sql.NullString `db:"direct_referrer_id"`
	DailyUTCDate      string         `db:"daily_utc_date"`
	DailyMinedToday   string         `db:"daily_mined_today"`
	DailyActionCounts []byte         `db:"daily_action_counts"`
	ProcessedEventIDs []byte         `db:"processed_event_ids"`
	RecentContentHashes []byte       `db:"recent_content_hashes"`
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.UserAccount, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM user_accounts WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, errs.UnknownUser(id)
	}
	if err != nil {
		return nil, errs.Transient("postgres.GetUser", err)
	}
	return rowToAccount(row)
}

func (s *Store) CreateUser(ctx context.Context, id string, now time.Time) (*model.UserAccount, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	counts, _ := json.Marshal(map[string]uint32{})
	processed, _ := json.Marshal(map[string]model.RewardOutcome{})
	hashes, _ := json.Marshal([]string{})
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_accounts
		(id, created_at, last_event_at, kyc_verified, total_mined, holdings,
		 xp_total, xp_level, rp_total, rp_tier, streak_days, staked_amount,
		 daily_utc_date, daily_mined_today, daily_action_counts, processed_event_ids,
		 recent_content_hashes)
		VALUES ($1,$2,$3,false,'0','0',0,1,'0','Explorer',0,'0',$4,'0',$5,$6,$7)
		ON CONFLICT (id) DO NOTHING`,
		id, now, now, utcDate(now), counts, processed, hashes)
	if err != nil {
		return nil, errs.Transient("postgres.CreateUser", err)
	}
	return s.GetUser(ctx, id)
}

// UpdateUser wraps the mutator in a single transaction, pessimistically
// locking the row with SELECT ... FOR UPDATE so concurrent updates to the
// same id across processes serialize the way spec §5 requires within one
// process via a mutex.
func (s *Store) UpdateUser(ctx context.Context, id string, mutator store.Mutator) (*model.UserAccount, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errs.Transient("postgres.UpdateUser.begin", err)
	}
	defer tx.Rollback()

	var row userRow
	err = tx.GetContext(ctx, &row, `SELECT * FROM user_accounts WHERE id = $1 FOR UPDATE`, id)
	if err == sql.ErrNoRows {
		return nil, errs.UnknownUser(id)
	}
	if err != nil {
		return nil, errs.Transient("postgres.UpdateUser.select", err)
	}

	account, err := rowToAccount(row)
	if err != nil {
		return nil, err
	}
	if err := mutator(account); err != nil {
		return nil, err
	}

	counts, err := json.Marshal(account.DailyCounter.ActionsByKind)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvariantViolation, "marshal daily counters", err)
	}
	processed, err := json.Marshal(account.ProcessedEventIDs)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvariantViolation, "marshal processed event ids", err)
	}
	hashes, err := json.Marshal(account.RecentContentHashes)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvariantViolation, "marshal recent content hashes", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE user_accounts SET
			last_event_at=$2, kyc_verified=$3, total_mined=$4, holdings=$5,
			xp_total=$6, xp_level=$7, rp_total=$8, rp_tier=$9, streak_days=$10,
			staked_amount=$11, staking_tier_id=$12, direct_referrer_id=$13,
			daily_utc_date=$14, daily_mined_today=$15, daily_action_counts=$16,
			processed_event_ids=$17, recent_content_hashes=$18
		WHERE id=$1`,
		id, account.LastEventAt, account.KYCVerified, account.TotalMined.String(),
		account.Holdings.String(), account.XPTotal, account.XPLevel,
		account.RPTotal.String(), string(account.RPTier), account.StreakDays,
		account.StakedAmount.String(), nullableString(account.StakingTierID),
		nullableStringPtr(account.DirectReferrerID), account.DailyCounter.UTCDate,
		account.DailyCounter.MinedToday.String(), counts, processed, hashes)
	if err != nil {
		return nil, errs.Transient("postgres.UpdateUser.update", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.Transient("postgres.UpdateUser.commit", err)
	}
	return account, nil
}

func (s *Store) GetNetworkState(ctx context.Context) (model.NetworkState, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	var row struct {
		TotalUsers      int64     `db:"total_users"`
		Phase           string    `db:"phase"`
		DailyRewardPool string    `db:"daily_reward_pool"`
		LastRefresh     time.Time `db:"last_refresh"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT * FROM network_state WHERE id = 1`)
	if err != nil {
		return model.NetworkState{}, errs.Transient("postgres.GetNetworkState", err)
	}
	pool, err := kernel.FromString(row.DailyRewardPool)
	if err != nil {
		return model.NetworkState{}, errs.NumericOverflow("postgres.GetNetworkState", err)
	}
	return model.NetworkState{
		TotalUsers:      uint64(row.TotalUsers),
		Phase:           model.Phase(row.Phase),
		DailyRewardPool: pool,
		LastRefresh:     row.LastRefresh,
	}, nil
}

func (s *Store) GetReferralSnapshot(ctx context.Context, id string) (model.ReferralSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	type memberRow struct {
		UserID    string    `db:"user_id"`
		Active30d bool      `db:"active_30d"`
		XPLevel   int32     `db:"xp_level"`
		JoinedAt  time.Time `db:"joined_at"`
		Platform  string    `db:"platform"`
		Country   string    `db:"country"`
		XPGain30d int64     `db:"xp_gain_30d"`
		HopLevel  int       `db:"hop_level"`
	}
	var rows []memberRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT user_id, active_30d, xp_level, joined_at, platform, country, xp_gain_30d, hop_level
		FROM referral_members WHERE upline_id = $1 AND hop_level <= 3`, id)
	if err != nil {
		return model.ReferralSnapshot{}, errs.Transient("postgres.GetReferralSnapshot", err)
	}

	snap := model.ReferralSnapshot{UserID: id, ComputedAt: time.Now()}
	for _, r := range rows {
		m := model.ReferralMember{
			UserID:    r.UserID,
			Active30d: r.Active30d,
			XPLevel:   uint32(r.XPLevel),
			JoinedAt:  r.JoinedAt,
			Platform:  model.Platform(r.Platform),
			Country:   r.Country,
			XPGain30d: uint64(r.XPGain30d),
		}
		switch r.HopLevel {
		case 1:
			snap.Direct = append(snap.Direct, m)
		case 2:
			snap.L2 = append(snap.L2, m)
		case 3:
			snap.L3 = append(snap.L3, m)
		}
	}
	return snap, nil
}

func (s *Store) LogSuspicious(record store.AuditRecord) {
	s.sink.Publish(record)
}

func rowToAccount(row userRow) (*model.UserAccount, error) {
	totalMined, err := kernel.FromString(row.TotalMined)
	if err != nil {
		return nil, errs.NumericOverflow("postgres.rowToAccount.total_mined", err)
	}
	holdings, err := kernel.FromString(row.Holdings)
	if err != nil {
		return nil, errs.NumericOverflow("postgres.rowToAccount.holdings", err)
	}
	rpTotal, err := kernel.FromString(row.RPTotal)
	if err != nil {
		return nil, errs.NumericOverflow("postgres.rowToAccount.rp_total", err)
	}
	stakedAmount, err := kernel.FromString(row.StakedAmount)
	if err != nil {
		return nil, errs.NumericOverflow("postgres.rowToAccount.staked_amount", err)
	}
	dailyMinedToday, err := kernel.FromString(row.DailyMinedToday)
	if err != nil {
		return nil, errs.NumericOverflow("postgres.rowToAccount.daily_mined_today", err)
	}

	var counts map[model.ActivityKind]uint32
	if len(row.DailyActionCounts) > 0 {
		if err := json.Unmarshal(row.DailyActionCounts, &counts); err != nil {
			return nil, errs.Wrap(errs.KindInvariantViolation, "unmarshal daily action counts", err)
		}
	} else {
		counts = make(map[model.ActivityKind]uint32)
	}

	processed := make(map[string]model.RewardOutcome)
	if len(row.ProcessedEventIDs) > 0 {
		if err := json.Unmarshal(row.ProcessedEventIDs, &processed); err != nil {
			return nil, errs.Wrap(errs.KindInvariantViolation, "unmarshal processed event ids", err)
		}
	}

	var hashes []string
	if len(row.RecentContentHashes) > 0 {
		if err := json.Unmarshal(row.RecentContentHashes, &hashes); err != nil {
			return nil, errs.Wrap(errs.KindInvariantViolation, "unmarshal recent content hashes", err)
		}
	}

	account := &model.UserAccount{
		ID:            row.ID,
		CreatedAt:     row.CreatedAt,
		LastEventAt:   row.LastEventAt,
		KYCVerified:   row.KYCVerified,
		TotalMined:    totalMined,
		Holdings:      holdings,
		XPTotal:       uint64(row.XPTotal),
		XPLevel:       uint32(row.XPLevel),
		RPTotal:       rpTotal,
		RPTier:        model.RPTier(row.RPTier),
		StreakDays:    uint32(row.StreakDays),
		StakedAmount:  stakedAmount,
		StakingTierID: row.StakingTierID.String,
		DailyCounter: model.DailyCounter{
			UTCDate:       row.DailyUTCDate,
			MinedToday:    dailyMinedToday,
			ActionsByKind: counts,
		},
		ProcessedEventIDs:   processed,
		RecentContentHashes: hashes,
	}
	if row.DirectReferrerID.Valid {
		v := row.DirectReferrerID.String
		account.DirectReferrerID = &v
	}
	return account, nil
}

func utcDate(t time.Time) string { return t.UTC().Format("2006-01-02") }

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

type noopSink struct{}

func (noopSink) Publish(store.AuditRecord)     {}
func (noopSink) Drain(int) []store.AuditRecord { return nil }
