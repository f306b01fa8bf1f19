package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store wraps the gorm handle with the timeout and retry discipline every unit of work follows:
// each attempt runs in its own transaction under StoreTimeout, transient failures are retried
// with fresh reads, and exhaustion surfaces as ErrTransientStore.
type Store struct {
	DB         *gorm.DB
	Timeout    time.Duration
	MaxRetries uint
	Log        *zap.Logger
}

func NewStore(db *gorm.DB, timeout time.Duration, maxRetries uint, log *zap.Logger) *Store {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if maxRetries == 0 {
		maxRetries = 3
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{DB: db, Timeout: timeout, MaxRetries: maxRetries, Log: log}
}

// Tx runs fn inside a transaction, retrying transient failures.
func (s *Store) Tx(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	return s.run(ctx, op, func(c context.Context) error {
		return s.DB.WithContext(c).Transaction(fn)
	})
}

// Read runs a non-transactional query under the same timeout and retry policy.
func (s *Store) Read(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	return s.run(ctx, op, func(c context.Context) error {
		return fn(s.DB.WithContext(c))
	})
}

func (s *Store) run(ctx context.Context, op string, attempt func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	tries := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		tries++
		c, cancel := context.WithTimeout(ctx, s.Timeout)
		defer cancel()

		err := attempt(c)
		if err == nil {
			return struct{}{}, nil
		}
		if ctx.Err() == nil && isTransient(err) {
			s.Log.Debug("retrying transient store error",
				zap.String("op", op), zap.Int("attempt", tries), zap.Error(err))
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.MaxRetries))

	if err != nil && isTransient(err) {
		s.Log.Warn("store operation exhausted retries",
			zap.String("op", op), zap.Int("attempts", tries), zap.Error(err))
		return fmt.Errorf("%s: %w: %v", op, ErrTransientStore, err)
	}
	return err
}

// isTransient classifies errors worth retrying: timeouts, lock/serialization conflicts and
// optimistic version races.
func isTransient(err error) bool {
	if errors.Is(err, errVersionConflict) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "57014":
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// isUniqueViolation reports a uniqueness constraint failure from any supported driver.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
