package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/bridgeguard/nodeguard/internal/noderpc"
	"github.com/bridgeguard/nodeguard/internal/scheduler"
	"github.com/bridgeguard/nodeguard/internal/store"
)

const DefaultInterval = 5 * time.Second

// HealthChecker is the part of noderpc.Client the watcher drives.
type HealthChecker interface {
	CheckHealth(ctx context.Context) noderpc.HealthReport
}

type Watcher struct {
	Client   HealthChecker
	Store    store.SnapshotStore
	Interval time.Duration

	mu        sync.Mutex
	callbacks []scheduler.CallbackHandler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}
