// Package retry provides the single bounded-retry policy shared by the
// notification dispatcher and the extraction fallback pass.
package retry

import (
	"context"
	"time"
)

// Policy bounds repeated attempts of a fallible operation. Delay is the
// pause between attempts; when Backoff > 1 each subsequent pause is
// multiplied by it.
type Policy struct {
	Attempts int
	Delay    time.Duration
	Backoff  float64
}

// Do runs fn until it succeeds, attempts are exhausted, or the context is
// cancelled. The last error is returned on exhaustion.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.Delay
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			if p.Backoff > 1 {
				delay = time.Duration(float64(delay) * p.Backoff)
			}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err = fn(); err == nil {
			return nil
		}
	}

	return err
}
