// Package retry classifies exchange failures and runs bounded retries with
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/xiaot623/gogo/streamchat/internal/adapter/llm"
)

// Class is the retry classification of an error.
type Class int

const (
	// Cancelled errors come from a user stop and are not failures.
	Cancelled Class = iota
	// Transient errors are safe to retry: network failures, 429 and 5xx.
	Transient
	// Fatal errors are never retried.
	Fatal
)

func (c Class) String() string {
	switch c {
	case Cancelled:
		return "cancelled"
	case Transient:
		return "transient"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify maps err to a retry class. Errors without a status code are
// treated as network failures.
func Classify(err error) Class {
	if errors.Is(err, context.Canceled) {
		return Cancelled
	}
	status, ok := llm.StatusCode(err)
	if !ok {
		return Transient
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return Transient
	}
	return Fatal
}

// Policy configures retries.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	JitterMax   time.Duration
	// Rand returns a value in [0, 1). Nil means math/rand.
	Rand func() float64
}

// DefaultPolicy is the interactive policy.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Base: 500 * time.Millisecond, JitterMax: 300 * time.Millisecond}
}

// TestPolicy keeps the algorithm but shrinks delays for automated tests.
// Backoff caps jitter at 2*Base, so with the 10ms base jitter stays under
// 20ms even though JitterMax is 300ms.
func TestPolicy() Policy {
	return Policy{MaxAttempts: 3, Base: 10 * time.Millisecond, JitterMax: 300 * time.Millisecond}
}

// Backoff returns the delay after the given number of failed attempts
// (1-based): base*2^attempt plus jitter. Jitter is bounded by 2*base so
// delays never shrink as attempts grow.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.Base << uint(attempt)

	ceiling := p.JitterMax
	if limit := 2 * p.Base; ceiling > limit {
		ceiling = limit
	}
	if ceiling <= 0 {
		return delay
	}
	r := p.Rand
	if r == nil {
		r = rand.Float64
	}
	return delay + time.Duration(r()*float64(ceiling))
}

// Attempt runs one try. The attempt number is 1-based.
type Attempt func(ctx context.Context, attempt int) error

// Hooks observe the retry loop.
type Hooks struct {
	// OnFailure is called after every failed attempt that is not a cancellation.
	OnFailure func(err error, class Class, attempt int)
	// Retryable may veto a retry of a transient error, e.g. once content
	// has been delivered.
	Retryable func(err error) bool
}

// Do runs fn until it succeeds, fails fatally, or attempts run out. Backoff
// waits end early when ctx is cancelled. The returned error is the last
// failure, or ctx.Err() after cancellation.
func (p Policy) Do(ctx context.Context, fn Attempt, hooks Hooks) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		class := Classify(err)
		if class == Cancelled {
			return err
		}
		if hooks.OnFailure != nil {
			hooks.OnFailure(err, class, attempt)
		}
		if class == Fatal || attempt >= maxAttempts {
			return err
		}
		if hooks.Retryable != nil && !hooks.Retryable(err) {
			return err
		}

		if err := sleep(ctx, p.Backoff(attempt)); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
