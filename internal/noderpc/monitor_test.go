package noderpc

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckHealth_SyncedNode(t *testing.T) {
	ts := newRPCServer(t, func(rpcRequest) (int, string) {
		return http.StatusOK, rpcResult(`{"sync_info":{"catching_up":false,"latest_block_height":"100"}}`)
	})
	c, err := New(testEndpoint(ts.URL), fastPolicy(3))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	report := c.CheckHealth(context.Background())
	assert.True(t, report.Healthy)
	assert.Equal(t, int64(100), report.Height)
	assert.False(t, report.CatchingUp)
	assert.Equal(t, PhaseSynced, report.State.Phase)
	assert.Equal(t, PhaseSynced, c.State().Phase)
	assert.Equal(t, 1, report.Attempts)
	assert.Nil(t, report.Err)
	require.NotNil(t, report.Status)
}

func TestCheckHealth_RefusedThenCatchingUp(t *testing.T) {
	c, fc := newFakeClient(t, fastPolicy(4), refused(), refused(), refused(), statusStep(57, true))

	report := c.CheckHealth(context.Background())
	assert.True(t, report.Healthy)
	assert.Equal(t, 4, report.Attempts)
	assert.Equal(t, 4, fc.Calls())
	assert.True(t, report.CatchingUp)
	assert.Equal(t, PhaseSyncing, report.State.Phase)
	assert.Equal(t, int64(57), c.State().Height)
}

func TestCheckHealth_RecoversFromUnreachable(t *testing.T) {
	c, _ := newFakeClient(t, fastPolicy(2), statusStep(10, true), refused(), refused(), statusStep(12, false))

	first := c.CheckHealth(context.Background())
	require.Equal(t, PhaseSyncing, first.State.Phase)

	down := c.CheckHealth(context.Background())
	assert.False(t, down.Healthy)
	assert.Equal(t, PhaseUnreachable, down.State.Phase)
	assert.Equal(t, int64(10), down.State.Height, "last known height survives")
	assert.Equal(t, CategoryUnreachable, down.Err.Category())
	assert.Equal(t, 2, down.Attempts)

	up := c.CheckHealth(context.Background())
	assert.True(t, up.Healthy)
	assert.Equal(t, PhaseSynced, up.State.Phase)
	assert.Equal(t, int64(12), up.Height)
}

func TestCheckHealth_SyncedCanRegress(t *testing.T) {
	c, _ := newFakeClient(t, fastPolicy(1), statusStep(200, false), statusStep(150, true))

	assert.Equal(t, PhaseSynced, c.CheckHealth(context.Background()).State.Phase)
	assert.Equal(t, PhaseSyncing, c.CheckHealth(context.Background()).State.Phase)
}

func TestCheckHealth_TerminalErrorIsUnreachable(t *testing.T) {
	c, fc := newFakeClient(t, fastPolicy(4), httpStatus(http.StatusBadRequest))

	report := c.CheckHealth(context.Background())
	assert.False(t, report.Healthy)
	assert.Equal(t, 1, fc.Calls())
	assert.Equal(t, PhaseUnreachable, report.State.Phase)
	assert.Equal(t, CategoryProtocolError, report.Err.Category())
}

func TestCheckHealth_CancelLeavesStateAlone(t *testing.T) {
	c, _ := newFakeClient(t, fastPolicy(1), statusStep(5, false))
	require.Equal(t, PhaseSynced, c.CheckHealth(context.Background()).State.Phase)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := c.CheckHealth(ctx)
	assert.False(t, report.Healthy)
	assert.Equal(t, KindCanceled, report.Err.Kind)
	assert.Equal(t, PhaseSynced, report.State.Phase)
	assert.Equal(t, PhaseSynced, c.State().Phase)
}

func TestCheckHealth_Concurrent(t *testing.T) {
	c, _ := newFakeClient(t, fastPolicy(1), statusStep(9, false))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.CheckHealth(context.Background())
			_ = c.State()
		}()
	}
	wg.Wait()

	s := c.State()
	assert.Equal(t, PhaseSynced, s.Phase)
	assert.Equal(t, int64(9), s.Height)
}

func TestState_DoesNotTouchNetwork(t *testing.T) {
	c, fc := newFakeClient(t, fastPolicy(1), statusStep(1, false))
	for i := 0; i < 5; i++ {
		assert.Equal(t, PhaseUnknown, c.State().Phase)
	}
	assert.Equal(t, 0, fc.Calls())
}

func TestWaitForSync_NeverSynced(t *testing.T) {
	c, fc := newFakeClient(t, fastPolicy(1), statusStep(300, true))

	res := c.WaitForSync(context.Background(), 3, 0)
	assert.False(t, res.Synced)
	assert.False(t, res.Canceled)
	assert.Equal(t, 3, res.Polls)
	assert.Equal(t, 3, fc.Calls())
	assert.Equal(t, int64(300), res.FinalHeight)
	assert.Equal(t, PhaseSyncing, res.State.Phase)
}

func TestWaitForSync_ReturnsOnceSynced(t *testing.T) {
	c, fc := newFakeClient(t, fastPolicy(1), statusStep(1, true), statusStep(2, true), statusStep(3, false))

	res := c.WaitForSync(context.Background(), 10, time.Millisecond)
	assert.True(t, res.Synced)
	assert.Equal(t, 3, res.Polls)
	assert.Equal(t, 3, fc.Calls())
	assert.Equal(t, int64(3), res.FinalHeight)
}

func TestWaitForSync_UnreachableKeepsPolling(t *testing.T) {
	c, _ := newFakeClient(t, fastPolicy(1), refused(), refused(), statusStep(40, false))

	res := c.WaitForSync(context.Background(), 5, 0)
	assert.True(t, res.Synced)
	assert.Equal(t, 3, res.Polls)
}

func TestWaitForSync_Canceled(t *testing.T) {
	c, _ := newFakeClient(t, fastPolicy(1), statusStep(7, true))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res := c.WaitForSync(ctx, 1000, 10*time.Millisecond)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, res.Canceled)
	assert.False(t, res.Synced)
	assert.Less(t, res.Polls, 1000)
	assert.Equal(t, int64(7), res.FinalHeight)
}

func TestWaitForSync_CanceledDoesNotTrustCachedState(t *testing.T) {
	c, fc := newFakeClient(t, fastPolicy(1), statusStep(11, false))
	require.Equal(t, PhaseSynced, c.CheckHealth(context.Background()).State.Phase)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := c.WaitForSync(ctx, 5, 0)
	assert.True(t, res.Canceled)
	assert.False(t, res.Synced)
	assert.Equal(t, 1, res.Polls)
	assert.Equal(t, int64(11), res.FinalHeight)
	assert.Equal(t, PhaseSynced, res.State.Phase)
	assert.Equal(t, 1, fc.Calls())
}

func TestWaitForSync_IndependentCallers(t *testing.T) {
	var calls atomic.Int32
	ts := newRPCServer(t, func(rpcRequest) (int, string) {
		calls.Add(1)
		return http.StatusOK, rpcResult(statusJSON(5, true))
	})
	c, err := New(testEndpoint(ts.URL), fastPolicy(1))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	var wg sync.WaitGroup
	results := make([]SyncWaitResult, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.WaitForSync(context.Background(), 2, 0)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, 2, r.Polls)
		assert.False(t, r.Synced)
	}
	assert.Equal(t, int32(6), calls.Load())
}

func TestSleepCtx(t *testing.T) {
	assert.True(t, sleepCtx(context.Background(), 0))
	assert.True(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepCtx(ctx, time.Hour))
	assert.False(t, sleepCtx(ctx, 0))
}
