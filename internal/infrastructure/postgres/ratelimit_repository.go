package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fluxo/internal/ratelimit"
)

// RateLimitRepository implements ratelimit.CounterStore on PostgreSQL so
// the per-user window stays correct when several processor instances drain
// the queue in parallel.
type RateLimitRepository struct {
	db *DB
}

// NewRateLimitRepository creates a new PostgreSQL rate-limit counter store.
func NewRateLimitRepository(db *DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// Take implements ratelimit.CounterStore. Expired hits for the key are
// pruned, the in-window count checked, and the hit recorded only when
// under the limit, all inside one database transaction.
func (r *RateLimitRepository) Take(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (bool, time.Time, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	cutoff := now.Add(-window)

	if _, err := dbTx.ExecContext(ctx, `
		DELETE FROM rate_limit_hits WHERE key = $1 AND hit_at <= $2
	`, key, cutoff); err != nil {
		return false, time.Time{}, fmt.Errorf("failed to prune rate-limit hits: %w", err)
	}

	var count int
	var oldest sql.NullTime
	err = dbTx.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(hit_at) FROM rate_limit_hits WHERE key = $1
	`, key).Scan(&count, &oldest)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("failed to count rate-limit hits: %w", err)
	}

	if count >= limit {
		if err := dbTx.Commit(); err != nil {
			return false, time.Time{}, fmt.Errorf("failed to commit: %w", err)
		}
		return false, oldest.Time, nil
	}

	if _, err := dbTx.ExecContext(ctx, `
		INSERT INTO rate_limit_hits (key, hit_at) VALUES ($1, $2)
	`, key, now); err != nil {
		return false, time.Time{}, fmt.Errorf("failed to record rate-limit hit: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return false, time.Time{}, fmt.Errorf("failed to commit: %w", err)
	}

	return true, time.Time{}, nil
}

var _ ratelimit.CounterStore = (*RateLimitRepository)(nil)
