package scheduler

import "context"

// BlockCallback is a callback that triggers every N blocks
// WARN: if the watcher misses several intervals (node unreachable, long poll interval),
// the callback fires once for the gap instead of once per missed interval.
type BlockCallback struct {
	LastTriggerAtBlock int64
	// interval is the number of blocks between triggers
	interval  int64
	name      string
	executeFn func(ctx context.Context, height int64) error
}

type CallbackHandler interface {
	// Determines if the callback should trigger at the given node height
	ShouldTrigger(height int64) bool
	// Executes the callback logic and returns an error if it fails
	Execute(ctx context.Context, height int64) error
	// Records a successful run at height
	MarkTriggered(height int64)
	// Returns the name of the callback, which may be inferred from the function name
	GetName() string
}
