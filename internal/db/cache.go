package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// DefaultStageCacheTTL is how long validated stage outputs stay servable
// across runs.
const DefaultStageCacheTTL = 7 * 24 * time.Hour

// StageCache is a database-backed stage output cache shared across runs.
// It satisfies the pipeline Cache interface; a fingerprint hit means the
// identical stage call was completed before, possibly by another run.
type StageCache struct {
	db  *DB
	ttl time.Duration
}

// NewStageCache returns a cache over db's stage_cache table. A zero or
// negative TTL means entries never expire.
func NewStageCache(db *DB, ttl time.Duration) *StageCache {
	return &StageCache{db: db, ttl: ttl}
}

// Get returns the stored payload for fingerprint if present and unexpired.
func (c *StageCache) Get(ctx context.Context, fingerprint string) (string, bool, error) {
	var payload string
	err := c.db.pool.QueryRow(ctx,
		`SELECT payload FROM stage_cache
		 WHERE fingerprint = $1 AND (expires_at IS NULL OR expires_at > NOW())`,
		fingerprint,
	).Scan(&payload)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read stage cache: %w", err)
	}
	return payload, true, nil
}

// Put stores payload under fingerprint, resetting its expiry.
func (c *StageCache) Put(ctx context.Context, fingerprint, payload string) error {
	var expiresAt *time.Time
	if c.ttl > 0 {
		t := time.Now().Add(c.ttl)
		expiresAt = &t
	}

	_, err := c.db.pool.Exec(ctx,
		`INSERT INTO stage_cache (fingerprint, payload, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (fingerprint) DO UPDATE SET
		     payload = EXCLUDED.payload,
		     created_at = NOW(),
		     expires_at = EXCLUDED.expires_at`,
		fingerprint, payload, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to write stage cache: %w", err)
	}
	return nil
}

// PurgeExpired deletes entries whose expiry has passed and returns how
// many rows were removed.
func (c *StageCache) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := c.db.pool.Exec(ctx,
		`DELETE FROM stage_cache WHERE expires_at IS NOT NULL AND expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stage cache: %w", err)
	}
	return result.RowsAffected(), nil
}
