// Package watcher keeps the node's sync state fresh in the background.
package watcher

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bridgeguard/nodeguard/internal/noderpc"
	"github.com/bridgeguard/nodeguard/internal/scheduler"
	"github.com/bridgeguard/nodeguard/internal/store"
)

func NewWatcher(client HealthChecker, snapshots store.SnapshotStore, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if snapshots == nil {
		snapshots = store.NewMemoryStore(store.DefaultHistory)
	}
	return &Watcher{
		Client:   client,
		Store:    snapshots,
		Interval: interval,
	}
}

func (w *Watcher) RegisterCallback(callback scheduler.CallbackHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
	log.Debug().Str("callback", callback.GetName()).Msg("Registered callback")
}

// RegisterHeightCheckpoint logs the node height every `every` blocks.
func (w *Watcher) RegisterHeightCheckpoint(every int64) {
	w.RegisterCallback(scheduler.NewBlockCallback(every, func(_ context.Context, height int64) error {
		log.Info().Int64("height", height).Int64("every", every).Msg("height checkpoint")
		return nil
	}).Named("height-checkpoint"))
}

// Poll runs one health check, stores the snapshot and fires due callbacks.
func (w *Watcher) Poll(ctx context.Context) noderpc.HealthReport {
	report := w.Client.CheckHealth(ctx)
	if ctx.Err() != nil {
		return report
	}

	if err := w.Store.SaveSnapshot(ctx, report); err != nil {
		log.Error().Err(err).Msg("Failed to save health snapshot")
	}

	log.Debug().
		Bool("healthy", report.Healthy).
		Int64("height", report.State.Height).
		Str("phase", string(report.State.Phase)).
		Int("attempts", report.Attempts).
		Msg("Polled node health")

	if report.Healthy {
		w.onBlockUpdate(ctx, report.Height)
	}
	return report
}

func (w *Watcher) onBlockUpdate(ctx context.Context, height int64) {
	w.mu.Lock()
	callbacks := append([]scheduler.CallbackHandler(nil), w.callbacks...)
	w.mu.Unlock()

	for _, callback := range callbacks {
		if !callback.ShouldTrigger(height) {
			continue
		}
		log.Info().
			Str("callback", callback.GetName()).
			Int64("height", height).
			Msg("Executing callback")

		if err := callback.Execute(ctx, height); err != nil {
			log.Error().
				Err(err).
				Str("callback", callback.GetName()).
				Msg("Failed to execute callback")
			continue
		}
		callback.MarkTriggered(height)
	}
}

// Start polls immediately and then every Interval until Stop or ctx is canceled.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.runTicker(ctx, w.Interval, func() {
		w.Poll(ctx)
	})
	log.Info().Str("interval", w.Interval.String()).Msg("Watcher started")
}

// runTicker runs fn now and then periodically until the provided context is canceled.
// Runs are sequential so a slow health check never overlaps the next one.
func (w *Watcher) runTicker(ctx context.Context, d time.Duration, fn func()) {
	defer w.wg.Done()
	t := time.NewTicker(d)
	defer t.Stop()

	fn()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}

// Stop cancels the polling loop and waits for it to finish.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	log.Info().Msg("Watcher stopped")
}
