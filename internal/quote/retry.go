package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/rsicalc/internal/utils"
)

const maxBackoff = time.Minute

// permanentError marks an error that retrying cannot fix.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

func permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// retry calls fn up to attempts times with exponential backoff starting at delay.
// It stops early on a permanent error or when ctx is done.
func retry(ctx context.Context, source string, attempts int, delay time.Duration, fn func() error) error {
	backoff := delay
	var err error
	for i := 1; i <= attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i == attempts {
			break
		}
		utils.GetLogger().Printf("Quote | %s retry attempt %d/%d failed: %v. Backing off for %v", source, i, attempts, err, backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return fmt.Errorf("all %d retry attempts failed: %w", attempts, err)
}
