package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bridgeguard/nodeguard/internal/noderpc"
)

func TestPhase_DistinctRendering(t *testing.T) {
	p := NewPrinterTo(&bytes.Buffer{}, FormatText)

	synced := p.Phase(noderpc.SyncState{Phase: noderpc.PhaseSynced})
	syncing := p.Phase(noderpc.SyncState{Phase: noderpc.PhaseSyncing})
	down := p.Phase(noderpc.SyncState{Phase: noderpc.PhaseUnreachable})
	unknown := p.Phase(noderpc.SyncState{})

	assert.Contains(t, synced, "In sync")
	assert.Contains(t, syncing, "Catching up")
	assert.Contains(t, down, "Unreachable")
	assert.Contains(t, unknown, "Unknown")
	assert.NotEqual(t, syncing, down)
}

func TestHealth_Text(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterTo(&buf, FormatText)

	p.Health(noderpc.HealthReport{
		Attempts: 4,
		State:    noderpc.SyncState{Phase: noderpc.PhaseUnreachable, Height: 1200},
		Err:      &noderpc.CallError{Kind: noderpc.KindConnectionRefused, Message: "refused"},
	})

	out := buf.String()
	assert.Contains(t, out, "Node Health")
	assert.Contains(t, out, "unreachable")
	assert.Contains(t, out, "1200")
	assert.Contains(t, out, "[unreachable] connection_refused: refused")
}

func TestHealth_JSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterTo(&buf, FormatJSON)
	p.Health(noderpc.HealthReport{Healthy: true, Height: 5, State: noderpc.SyncState{Phase: noderpc.PhaseSynced, Height: 5}})

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, true, got["healthy"])
	assert.Equal(t, "synced", got["state"].(map[string]any)["phase"])
}

func TestSyncWait(t *testing.T) {
	tests := []struct {
		name string
		res  noderpc.SyncWaitResult
		want string
	}{
		{"synced", noderpc.SyncWaitResult{Synced: true, Polls: 2, FinalHeight: 10}, "node synced after 2 polls"},
		{"canceled", noderpc.SyncWaitResult{Canceled: true, Polls: 1}, "wait canceled"},
		{"unreachable", noderpc.SyncWaitResult{Polls: 3, State: noderpc.SyncState{Phase: noderpc.PhaseUnreachable}}, "node unreachable"},
		{"catching up", noderpc.SyncWaitResult{Polls: 3, Elapsed: time.Second, State: noderpc.SyncState{Phase: noderpc.PhaseSyncing}}, "still catching up"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewPrinterTo(&buf, FormatText).SyncWait(tt.res)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestFailure_Ambiguous(t *testing.T) {
	var buf bytes.Buffer
	NewPrinterTo(&buf, FormatText).Failure("broadcast", &noderpc.CallError{Kind: noderpc.KindAmbiguousOutcome, Message: "no response"}, 1)
	assert.Contains(t, buf.String(), "transaction hash")
}

func TestFailure_Category(t *testing.T) {
	var buf bytes.Buffer
	NewPrinterTo(&buf, FormatText).Failure("block", &noderpc.CallError{Kind: noderpc.KindHTTPError, Status: 400, Message: "bad"}, 1)
	assert.Contains(t, buf.String(), "[PROTOCOL_ERROR]")
}

func TestNewPrinter_UnknownFormatIsText(t *testing.T) {
	assert.False(t, NewPrinterTo(&bytes.Buffer{}, "yaml").IsJSON())
	assert.True(t, NewPrinterTo(&bytes.Buffer{}, "json").IsJSON())
}
