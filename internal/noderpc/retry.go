package noderpc

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 1 * time.Second
	DefaultMultiplier  = 2.0
	DefaultMaxDelay    = 8 * time.Second
	DefaultJitter      = 0.25
)

// RetryPolicy configures bounded exponential backoff. It is a value: a client keeps the
// copy it was built with. The zero value makes a single attempt.
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	Multiplier     float64
	MaxDelay       time.Duration // cap applied before jitter; <= 0 means uncapped
	JitterFraction float64       // jitter is uniform in [0, JitterFraction*delay]
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns base=1s, multiplier=2, cap=8s, 4 attempts, 25% jitter, 10s per attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    DefaultMaxAttempts,
		BaseDelay:      DefaultBaseDelay,
		Multiplier:     DefaultMultiplier,
		MaxDelay:       DefaultMaxDelay,
		JitterFraction: DefaultJitter,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	return p
}

// Delay returns the wait after failed attempt n (1-indexed) before attempt n+1.
func (p RetryPolicy) Delay(n int) time.Duration {
	return p.delayAt(n, rand.Float64())
}

// delayAt computes min(base*mult^(n-1), cap) plus u*JitterFraction of that, for u in [0,1).
func (p RetryPolicy) delayAt(n int, u float64) time.Duration {
	p = p.normalized()
	if n < 1 {
		n = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(n-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	d += d * p.JitterFraction * u
	return time.Duration(d)
}

func (p RetryPolicy) backoff() retry.Backoff {
	p = p.normalized()
	n := 0
	next := retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		return p.Delay(n), false
	})
	return retry.WithMaxRetries(uint64(p.MaxAttempts-1), next)
}

// Classifier decides whether a failed attempt may be retried.
type Classifier func(*CallError) bool

// RetryTransient retries timeouts, refused connections and 5xx responses.
func RetryTransient(ce *CallError) bool { return ce.Retryable() }

// NeverRetry makes every failure terminal.
func NeverRetry(*CallError) bool { return false }

// CallResult is the outcome of one logical call, including every retry it took.
type CallResult[T any] struct {
	Success  bool          `json:"success"`
	Payload  T             `json:"payload"`
	Err      *CallError    `json:"error,omitempty"`
	Attempts int           `json:"attempts"`
	Elapsed  time.Duration `json:"elapsed"`
}

// AsError returns the failure as an error, or nil on success.
func (r CallResult[T]) AsError() error {
	if r.Err == nil {
		return nil
	}
	return r.Err
}

// Category returns the failure taxonomy, or "" on success.
func (r CallResult[T]) Category() Category {
	if r.Err == nil {
		return ""
	}
	return r.Err.Category()
}

// Execute runs fn under policy until it succeeds, fails terminally, or attempts run out.
// It never returns an error: failures are carried in the result.
func Execute[T any](
	ctx context.Context,
	name string,
	policy RetryPolicy,
	classify Classifier,
	fn func(ctx context.Context) (T, error),
) CallResult[T] {
	if classify == nil {
		classify = RetryTransient
	}
	start := time.Now()

	var (
		attempts int
		payload  T
		last     *CallError
	)

	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		attempts++
		v, err := fn(ctx)
		if err == nil {
			payload = v
			last = nil
			return nil
		}

		last = AsCallError(err)
		if !classify(last) {
			return last
		}

		log.Warn().
			Str("call", name).
			Int("attempt", attempts).
			Int("max_attempts", policy.normalized().MaxAttempts).
			Str("kind", string(last.Kind)).
			Msg("retryable rpc failure")
		return retry.RetryableError(last)
	})

	res := CallResult[T]{Attempts: attempts, Elapsed: time.Since(start)}
	switch {
	case err == nil:
		res.Success = true
		res.Payload = payload
	case last != nil && last.Kind == KindCanceled:
		res.Err = last
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		msg := ctx.Err().Error()
		if last != nil {
			msg += " (last error: " + last.Error() + ")"
		}
		res.Err = &CallError{Kind: KindCanceled, Message: msg, err: ctx.Err()}
	default:
		if last == nil {
			last = AsCallError(err)
		}
		res.Err = last
	}
	return res
}
