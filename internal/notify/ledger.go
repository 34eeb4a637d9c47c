package notify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const ledgerTimeLayout = "2006-01-02 15:04:05"

// SQLLedger keeps dispatch keys in the dispatch_log table.
type SQLLedger struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLLedger creates a ledger over db.
func NewSQLLedger(db *sql.DB) *SQLLedger {
	return &SQLLedger{db: db, now: time.Now}
}

// Claim inserts key; a key that already exists is not claimed again.
func (l *SQLLedger) Claim(ctx context.Context, key string) (bool, error) {
	res, err := l.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO dispatch_log (dispatch_key, created_at) VALUES (?, ?)",
		key, l.now().UTC().Format(ledgerTimeLayout))
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Cleanup removes keys older than the given number of days.
func (l *SQLLedger) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := l.now().UTC().AddDate(0, 0, -olderThanDays).Format(ledgerTimeLayout)
	res, err := l.db.ExecContext(ctx, "DELETE FROM dispatch_log WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean dispatch log: %w", err)
	}
	return res.RowsAffected()
}

const redisKeyPrefix = "diet-agent:dispatch:"

// RedisLedger keeps dispatch keys in Redis with a TTL, for deployments running several schedulers.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLedger creates a ledger. Keys expire after ttl (two days when zero).
func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &RedisLedger{client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// Claim sets key only when absent.
func (l *RedisLedger) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, redisKeyPrefix+key, 1, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", key, err)
	}
	return ok, nil
}
