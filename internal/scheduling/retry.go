package scheduling

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	redisclient "github.com/mydoc/practice-scheduling/internal/redis"
)

// ErrStoreBusy is what callers see after transient contention survives every
// retry. The raw engine error never travels past the command layer; it is
// logged with the correlation id instead.
var ErrStoreBusy = errors.New("storage busy, try again")

const (
	defaultMaxRetries  = 2
	defaultBackoffStep = 50 * time.Millisecond
)

// transient pg error codes: serialization_failure, deadlock_detected,
// lock_not_available, query_canceled (statement timeout).
var transientPgCodes = map[string]bool{
	"40001": true,
	"40P01": true,
	"55P03": true,
	"57014": true,
}

// IsTransient reports whether err is infrastructure contention worth
// retrying. Domain errors are deterministic and must never retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return transientPgCodes[pgErr.Code]
	}
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// withRetry runs fn up to 1+maxRetries times with linearly increasing
// backoff, retrying only transient errors. backoffStep <= 0 falls back to
// the default; maxRetries < 0 falls back to the default.
func withRetry(ctx context.Context, maxRetries int, backoffStep time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	if backoffStep <= 0 {
		backoffStep = defaultBackoffStep
	}

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn(ctx)
		if err == nil || !IsTransient(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffStep * time.Duration(attempt+1)):
		}
	}
	return fmt.Errorf("%w (after %d attempts)", ErrStoreBusy, maxRetries+1)
}
