// README: Reusable retry policy with linear backoff and idempotency re-check.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDispatchFailed is returned once the attempt budget is exhausted.
var ErrDispatchFailed = errors.New("dispatch failed after retries")

// Policy bounds one coordinated backend operation: per-attempt timeout,
// attempt budget, and delay = attempt * BaseDelay between attempts.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	CallTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		CallTimeout: 10 * time.Second,
	}
}

// Hooks customize one Do run. Retryable decides whether an error counts as
// transient. AlreadyDone is consulted before every retry: a successful
// operation must never be silently repeated, so an interrupted attempt whose
// effect already landed is treated as success. OnTransient fires once per
// transient failure.
type Hooks struct {
	Retryable   func(error) bool
	AlreadyDone func(context.Context) bool
	OnTransient func()
}

// Do runs op under the policy. Timeouts count as transient failures and feed
// the backoff loop rather than surfacing immediately.
func (p Policy) Do(ctx context.Context, op func(context.Context) error, h Hooks) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		opCtx := ctx
		var cancel context.CancelFunc
		if p.CallTimeout > 0 {
			opCtx, cancel = context.WithTimeout(ctx, p.CallTimeout)
		}
		err := op(opCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		if h.Retryable != nil && !h.Retryable(err) {
			return err
		}
		lastErr = err
		if h.OnTransient != nil {
			h.OnTransient()
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * p.BaseDelay):
		}

		if h.AlreadyDone != nil && h.AlreadyDone(ctx) {
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrDispatchFailed, lastErr)
}
