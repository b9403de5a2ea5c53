// Package distlock guards single-writer sections, such as one campaign send,
// across processes. Redis is preferred; Postgres advisory locks are the
// fallback when no Redis client is configured.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotAcquired is returned by Run when another holder owns the lock.
	ErrNotAcquired = errors.New("distlock: lock held by another process")

	// ErrLockLost is returned by Refresh when the hold expired and the lock
	// may now belong to someone else.
	ErrLockLost = errors.New("distlock: lock lost")
)

// DistLock is a single acquisition of a named lock. Instances are not
// safe for concurrent use; build one per critical section.
type DistLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Extender is implemented by locks whose hold expires. Extend renews the
// hold for ttl, or for the lock's own TTL when ttl is zero, and reports
// false when the lock is no longer held by this instance.
type Extender interface {
	Extend(ctx context.Context, ttl time.Duration) (bool, error)
}

// Refresh renews lock for its own TTL. Locks without an expiry, like the
// Postgres advisory lock, are held until released and need no renewal.
func Refresh(ctx context.Context, lock DistLock) error {
	ext, ok := lock.(Extender)
	if !ok {
		return nil
	}
	held, err := ext.Extend(ctx, 0)
	if err != nil {
		return fmt.Errorf("distlock: extend: %w", err)
	}
	if !held {
		return ErrLockLost
	}
	return nil
}

// Factory builds named locks against whichever backend is configured.
type Factory struct {
	redis  *redis.Client
	db     *sql.DB
	ttl    time.Duration
	prefix string
}

// NewFactory returns a lock factory. redisClient may be nil.
func NewFactory(redisClient *redis.Client, db *sql.DB, prefix string, ttl time.Duration) *Factory {
	return &Factory{redis: redisClient, db: db, ttl: ttl, prefix: prefix}
}

// For returns a lock for the given key, namespaced by the factory prefix.
func (f *Factory) For(key string) DistLock {
	return NewLock(f.redis, f.db, f.prefix+":"+key, f.ttl)
}

// NewLock creates a lock on the best available backend.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// Run acquires lock, runs fn and releases the lock with a detached context
// so cancellation of ctx does not leave the lock behind.
func Run(ctx context.Context, lock DistLock, fn func(ctx context.Context) error) error {
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}()
	return fn(ctx)
}

// PGAdvisoryLock implements DistLock with pg_try_advisory_lock. The lock is
// session scoped, so it is dropped if the connection dies.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewPGAdvisoryLock derives a stable 64-bit lock id from key.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

// Acquire pins a connection so the unlock runs on the same session.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("distlock: open conn: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("distlock: try advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release unlocks and returns the pinned connection to the pool.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Close()
		l.conn = nil
	}()
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
