package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/lorekit/lorekit/internal/core/domain"
	"github.com/lorekit/lorekit/internal/logger"
)

// Contention retry bounds. The base delay doubles on each attempt, so a
// fully contended store is retried for roughly 100+200+400+800ms before
// the operation fails with domain.ErrStoreBusy.
const (
	maxRetryAttempts = 5
	retryBaseDelay   = 100 * time.Millisecond
)

// withRetry runs op, retrying on transient lock contention with bounded
// exponential backoff. Non-contention errors return immediately.
func withRetry(ctx context.Context, name string, op func() error) error {
	delay := retryBaseDelay

	var err error
	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		err = op()
		if err == nil || !isBusy(err) {
			return err
		}

		if attempt == maxRetryAttempts {
			break
		}

		logger.Debug("Store busy during %s (attempt %d/%d), backing off %s",
			name, attempt, maxRetryAttempts, delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	logger.Warn("Store still busy after %d attempts during %s", maxRetryAttempts, name)
	return domain.ErrStoreBusy
}

// isBusy reports whether err is SQLite lock contention.
// modernc.org/sqlite surfaces SQLITE_BUSY and SQLITE_LOCKED as plain
// errors carrying the code text.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
