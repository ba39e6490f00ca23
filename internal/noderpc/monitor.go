package noderpc

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultSyncPolls    = 60
	DefaultSyncInterval = 5 * time.Second
)

// Phase is the coarse sync state of the node.
type Phase string

const (
	PhaseUnknown     Phase = "unknown"
	PhaseUnreachable Phase = "unreachable"
	PhaseSyncing     Phase = "syncing"
	PhaseSynced      Phase = "synced"
)

// SyncState is the last known view of the node. Height and CatchingUp keep their last
// observed values while the node is unreachable.
type SyncState struct {
	Phase      Phase     `json:"phase"`
	Height     int64     `json:"height"`
	CatchingUp bool      `json:"catching_up"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HealthReport is the snapshot returned by CheckHealth. Healthy only means the node
// answered; whether it finished syncing is carried by CatchingUp and State.
type HealthReport struct {
	Healthy    bool        `json:"healthy"`
	Height     int64       `json:"height"`
	CatchingUp bool        `json:"catching_up"`
	State      SyncState   `json:"state"`
	Attempts   int         `json:"attempts"`
	Err        *CallError  `json:"error,omitempty"`
	Status     *NodeStatus `json:"status,omitempty"`
	CheckedAt  time.Time   `json:"checked_at"`
}

// SyncWaitResult reports how WaitForSync ended. Not being synced is a normal outcome.
type SyncWaitResult struct {
	Synced      bool          `json:"synced"`
	FinalHeight int64         `json:"final_height"`
	Polls       int           `json:"polls"`
	State       SyncState     `json:"state"`
	Elapsed     time.Duration `json:"elapsed"`
	Canceled    bool          `json:"canceled"`
}

// State returns the last known sync state without touching the network.
func (c *Client) State() SyncState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// nextState applies one status observation to prev.
func nextState(prev SyncState, res CallResult[NodeStatus], now time.Time) SyncState {
	if !res.Success {
		return SyncState{
			Phase:      PhaseUnreachable,
			Height:     prev.Height,
			CatchingUp: prev.CatchingUp,
			UpdatedAt:  now,
		}
	}
	info := res.Payload.SyncInfo
	next := SyncState{
		Phase:      PhaseSynced,
		Height:     int64(info.LatestBlockHeight),
		CatchingUp: info.CatchingUp,
		UpdatedAt:  now,
	}
	if info.CatchingUp {
		next.Phase = PhaseSyncing
	}
	return next
}

// CheckHealth performs one status call (with retries) and updates the sync state.
// A call abandoned because ctx ended does not count as the node being unreachable.
func (c *Client) CheckHealth(ctx context.Context) HealthReport {
	started := time.Now()
	res := c.GetNodeStatus(ctx)

	report := HealthReport{
		Healthy:   res.Success,
		Attempts:  res.Attempts,
		Err:       res.Err,
		CheckedAt: time.Now(),
	}
	if res.Success {
		status := res.Payload
		report.Status = &status
		report.Height = int64(status.SyncInfo.LatestBlockHeight)
		report.CatchingUp = status.SyncInfo.CatchingUp
	}

	if res.Err != nil && res.Err.Kind == KindCanceled {
		report.State = c.State()
		return report
	}

	c.mu.Lock()
	prev := c.state
	// A slower concurrent check that started earlier must not overwrite a newer observation.
	if !started.Before(c.observedAt) {
		c.state = nextState(prev, res, report.CheckedAt)
		c.observedAt = started
	}
	current := c.state
	c.mu.Unlock()

	report.State = current
	c.metrics.observeState(current)

	if prev.Phase != current.Phase {
		log.Info().
			Str("from", string(prev.Phase)).
			Str("to", string(current.Phase)).
			Int64("height", current.Height).
			Msg("node sync state changed")
	}
	return report
}

// WaitForSync polls CheckHealth every interval until the node is synced, maxAttempts
// polls were made, or ctx ends. maxAttempts <= 0 and interval < 0 select the defaults.
func (c *Client) WaitForSync(ctx context.Context, maxAttempts int, interval time.Duration) SyncWaitResult {
	if maxAttempts <= 0 {
		maxAttempts = DefaultSyncPolls
	}
	if interval < 0 {
		interval = DefaultSyncInterval
	}

	log.Info().
		Int("max_attempts", maxAttempts).
		Str("interval", interval.String()).
		Msg("waiting for node to sync")

	start := time.Now()
	var out SyncWaitResult
	for poll := 1; poll <= maxAttempts; poll++ {
		report := c.CheckHealth(ctx)
		out.Polls = poll
		out.State = report.State
		out.FinalHeight = report.State.Height

		// a canceled poll only echoes the cached state, which proves nothing about sync
		if report.Err != nil && report.Err.Kind == KindCanceled {
			out.Canceled = true
			break
		}
		if report.State.Phase == PhaseSynced {
			out.Synced = true
			break
		}
		if ctx.Err() != nil {
			out.Canceled = true
			break
		}
		log.Debug().
			Int("poll", poll).
			Int("max_attempts", maxAttempts).
			Int64("height", report.State.Height).
			Str("phase", string(report.State.Phase)).
			Msg("node not synced yet")
		if poll == maxAttempts {
			break
		}
		if !sleepCtx(ctx, interval) {
			out.Canceled = true
			break
		}
	}
	out.Elapsed = time.Since(start)

	if out.Synced {
		log.Info().Int("polls", out.Polls).Int64("height", out.FinalHeight).Msg("node synced")
	} else {
		log.Warn().
			Int("polls", out.Polls).
			Bool("canceled", out.Canceled).
			Str("phase", string(out.State.Phase)).
			Msg("node did not sync within the wait window")
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
