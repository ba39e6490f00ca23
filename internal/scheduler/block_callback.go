package scheduler

import "context"

// NewBlockCallback creates a new BlockCallback that triggers every N blocks
func NewBlockCallback(interval int64, execute func(ctx context.Context, height int64) error) *BlockCallback {
	if interval < 1 {
		interval = 1
	}
	return &BlockCallback{
		LastTriggerAtBlock: -1,
		interval:           interval,
		executeFn:          execute,
	}
}

// Named sets the name reported by GetName instead of the inferred one.
func (bc *BlockCallback) Named(name string) *BlockCallback {
	bc.name = name
	return bc
}

// ShouldTrigger checks if the callback should trigger based on block interval and missed blocks
func (bc *BlockCallback) ShouldTrigger(height int64) bool {
	if height <= 0 {
		return false
	}

	// If this is the first time, trigger if we're at the right interval
	if bc.LastTriggerAtBlock <= 0 {
		return height%bc.interval == 0
	}

	// A lower height means the node was reset or resynced from a snapshot
	if height < bc.LastTriggerAtBlock {
		bc.LastTriggerAtBlock = -1
		return height%bc.interval == 0
	}

	return height-bc.LastTriggerAtBlock >= bc.interval
}

// Execute runs the callback. The caller marks it triggered only on success so
// failed executions retry on the next observed height.
func (bc *BlockCallback) Execute(ctx context.Context, height int64) error {
	return bc.executeFn(ctx, height)
}

func (bc *BlockCallback) MarkTriggered(height int64) {
	bc.LastTriggerAtBlock = height
}

// GetName returns the callback name
func (bc *BlockCallback) GetName() string {
	if bc.name != "" {
		return bc.name
	}
	return InferNameFromFunc(bc.executeFn)
}
