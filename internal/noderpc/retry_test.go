package noderpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_DelayBounds(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts:    6,
		BaseDelay:      time.Second,
		Multiplier:     2,
		JitterFraction: 0.25,
	}
	for n := 1; n <= 6; n++ {
		lower := time.Duration(float64(time.Second) * math.Pow(2, float64(n-1)))
		upper := time.Duration(float64(lower) * 1.25)

		assert.Equal(t, lower, p.delayAt(n, 0), "attempt %d without jitter", n)
		assert.LessOrEqual(t, p.delayAt(n, 0.999999), upper, "attempt %d max jitter", n)

		for i := 0; i < 200; i++ {
			d := p.Delay(n)
			require.GreaterOrEqual(t, d, lower, "attempt %d", n)
			require.LessOrEqual(t, d, upper, "attempt %d", n)
		}
	}
}

func TestRetryPolicy_DelayCapped(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, time.Second, p.delayAt(1, 0))
	assert.Equal(t, 4*time.Second, p.delayAt(3, 0))
	assert.Equal(t, 8*time.Second, p.delayAt(4, 0))
	assert.Equal(t, 8*time.Second, p.delayAt(10, 0))
	assert.Equal(t, 10*time.Second, p.delayAt(10, 1))
}

func TestRetryPolicy_ZeroValueIsSingleAttempt(t *testing.T) {
	calls := 0
	res := Execute(context.Background(), "status", RetryPolicy{}, RetryTransient, func(context.Context) (int, error) {
		calls++
		return 0, &CallError{Kind: KindTimeout, Message: "slow"}
	})
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, calls)
	assert.Equal(t, KindTimeout, res.Err.Kind)
}

func TestExecute_RetryableThenSuccess(t *testing.T) {
	kinds := map[string]*CallError{
		"timeout":            {Kind: KindTimeout, Message: "slow"},
		"connection refused": {Kind: KindConnectionRefused, Message: "refused"},
		"server error":       {Kind: KindHTTPError, Status: 502, Message: "bad gateway"},
	}
	const maxAttempts = 5
	for name, failure := range kinds {
		for failures := 0; failures < maxAttempts; failures++ {
			t.Run(fmt.Sprintf("%s x%d", name, failures), func(t *testing.T) {
				calls := 0
				res := Execute(context.Background(), "status", fastPolicy(maxAttempts), RetryTransient, func(context.Context) (string, error) {
					calls++
					if calls <= failures {
						return "", failure
					}
					return "ok", nil
				})
				require.True(t, res.Success)
				assert.Nil(t, res.Err)
				assert.Equal(t, "ok", res.Payload)
				assert.Equal(t, failures+1, res.Attempts)
				assert.Equal(t, failures+1, calls)
			})
		}
	}
}

func TestExecute_TerminalErrorsStopImmediately(t *testing.T) {
	terminal := []*CallError{
		{Kind: KindHTTPError, Status: 400, Message: "bad request"},
		{Kind: KindHTTPError, Status: 404, Message: "not found"},
		{Kind: KindMalformedResponse, Message: "invalid json"},
		{Kind: KindRPCError, Status: -32602, Message: "invalid params"},
	}
	for _, failure := range terminal {
		t.Run(failure.Error(), func(t *testing.T) {
			calls := 0
			res := Execute(context.Background(), "block", fastPolicy(10), RetryTransient, func(context.Context) (int, error) {
				calls++
				return 0, failure
			})
			assert.False(t, res.Success)
			assert.Equal(t, 1, res.Attempts)
			assert.Equal(t, 1, calls)
			assert.Equal(t, failure.Kind, res.Err.Kind)
			assert.Equal(t, CategoryProtocolError, res.Category())
		})
	}
}

func TestExecute_ExhaustedCarriesLastError(t *testing.T) {
	calls := 0
	res := Execute(context.Background(), "status", fastPolicy(3), RetryTransient, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, &CallError{Kind: KindTimeout, Message: "slow"}
		}
		return 0, &CallError{Kind: KindConnectionRefused, Message: "refused"}
	})
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, KindConnectionRefused, res.Err.Kind)
	assert.Equal(t, CategoryUnreachable, res.Category())
	assert.Error(t, res.AsError())
}

func TestExecute_UnknownErrorIsTerminal(t *testing.T) {
	res := Execute(context.Background(), "status", fastPolicy(4), RetryTransient, func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, KindMalformedResponse, res.Err.Kind)
}

func TestExecute_NeverRetry(t *testing.T) {
	res := Execute(context.Background(), "broadcast_tx_sync", fastPolicy(4), NeverRetry, func(context.Context) (int, error) {
		return 0, &CallError{Kind: KindConnectionRefused, Message: "refused"}
	})
	assert.Equal(t, 1, res.Attempts)
}

func TestExecute_CanceledDuringBackoff(t *testing.T) {
	policy := fastPolicy(5)
	policy.BaseDelay = time.Hour
	policy.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res := Execute(ctx, "status", policy, RetryTransient, func(context.Context) (int, error) {
		return 0, &CallError{Kind: KindTimeout, Message: "slow"}
	})
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, KindCanceled, res.Err.Kind)
	assert.Contains(t, res.Err.Message, "last error")
}

func TestExecute_AlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	res := Execute(ctx, "status", fastPolicy(3), RetryTransient, func(context.Context) (int, error) {
		calls++
		return 1, nil
	})
	assert.False(t, res.Success)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, res.Attempts)
	assert.Equal(t, KindCanceled, res.Err.Kind)
}

func TestExecute_CanceledKeepsSentFlag(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	res := Execute(ctx, "broadcast_tx_sync", fastPolicy(2), RetryTransient, func(context.Context) (int, error) {
		cancel()
		return 0, &CallError{Kind: KindCanceled, Message: "context canceled", Sent: true}
	})
	require.NotNil(t, res.Err)
	assert.Equal(t, KindCanceled, res.Err.Kind)
	assert.True(t, res.Err.Sent)
}

func TestCallResult_SuccessHasNoCategory(t *testing.T) {
	res := CallResult[int]{Success: true, Payload: 1, Attempts: 1}
	assert.NoError(t, res.AsError())
	assert.Equal(t, Category(""), res.Category())
}
