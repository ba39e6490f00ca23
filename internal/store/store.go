// Package store persists health snapshots produced by the watcher.
package store

import (
	"context"

	"github.com/bridgeguard/nodeguard/internal/noderpc"
)

// DefaultHistory is how many snapshots a store keeps besides the latest one.
const DefaultHistory = 100

// SnapshotStore keeps the latest health report and a bounded history, newest first.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, report noderpc.HealthReport) error
	// LatestSnapshot returns false when nothing was saved yet.
	LatestSnapshot(ctx context.Context) (noderpc.HealthReport, bool, error)
	History(ctx context.Context, limit int) ([]noderpc.HealthReport, error)
	Close()
}
