// Package integration routes failures from the engine's external
// collaborators (the LLM provider, agent execution, checkpoint I/O)
// through a single retry policy instead of leaving each caller to
// reinvent backoff and classification.
package integration

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/orchestr8/engine/internal/orcherr"
)

// Policy controls the exponential backoff applied to a retried
// operation. The zero value is not usable; use DefaultPolicy.
type Policy struct {
	BaseInterval time.Duration
	Multiplier   float64
	MaxInterval  time.Duration
	MaxRetries   uint64
}

// DefaultPolicy is the documented default: base 1s, multiplier 2,
// capped at 30s, at most 3 retries after the initial attempt.
func DefaultPolicy() Policy {
	return Policy{
		BaseInterval: time.Second,
		Multiplier:   2,
		MaxInterval:  30 * time.Second,
		MaxRetries:   3,
	}
}

// Classify reports whether err is worth retrying. Typed *orcherr.Error
// values carry their own recoverability (UpstreamError and
// OperationTimeout are recoverable, everything else is not); any other
// error is treated as non-recoverable, since only collaborators that go
// through orcherr are expected to fail in a retry-safe way.
func Classify(err error) bool {
	oe, ok := err.(*orcherr.Error)
	if !ok {
		return false
	}
	return oe.Recoverable()
}

// Do runs fn, retrying per p while Classify(err) reports the failure as
// recoverable, until success, a non-recoverable error, context
// cancellation, or p.MaxRetries is exhausted, whichever comes first.
func Do(ctx context.Context, logger *slog.Logger, component, op string, p Policy, fn func(context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BaseInterval
	eb.Multiplier = p.Multiplier
	eb.MaxInterval = p.MaxInterval
	eb.MaxElapsedTime = 0 // bounded by MaxRetries, not wall-clock

	bo := backoff.WithContext(backoff.WithMaxRetries(eb, p.MaxRetries), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !Classify(err) {
			return backoff.Permanent(err)
		}
		if logger != nil {
			logger.Warn("retrying after recoverable error", "component", component, "op", op, "attempt", attempt, "error", err)
		}
		return err
	}

	err := backoff.Retry(operation, bo)
	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	var oe *orcherr.Error
	if errors.As(err, &oe) {
		return oe
	}
	return orcherr.UpstreamError(component, op, "exhausted retries", err)
}
