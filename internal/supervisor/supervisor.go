// Package supervisor starts and stops the local node binary. The RPC client never
// depends on it; callers combine the two (e.g. start, then wait for sync).
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/bridgeguard/nodeguard/internal/config"
)

const (
	pidFileName = "nodeguard.pid"
	logFileName = "nodeguard.log"

	DefaultStopGrace = 10 * time.Second
	stopPollInterval = 100 * time.Millisecond
)

var (
	ErrAlreadyRunning = errors.New("node is already running")
	ErrNotRunning     = errors.New("node is not running")
)

// Supervisor controls the node process.
type Supervisor interface {
	Start(ctx context.Context) (int, error)
	Stop(ctx context.Context) error
	IsRunning() bool
	PID() (int, bool)
}

// ProcessStats is a point-in-time resource reading of the node process.
type ProcessStats struct {
	PID           int     `json:"pid"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float32 `json:"memory_percent"`
	RSSBytes      uint64  `json:"rss_bytes"`
}

// ProcessSupervisor runs `<binary> start --home <home>` and tracks it through a pid file
// in the node home, so a later invocation can stop a node it did not start.
type ProcessSupervisor struct {
	Binary    string
	Home      string
	StopGrace time.Duration

	mu sync.Mutex
}

func New(binary, home string, grace time.Duration) *ProcessSupervisor {
	if grace <= 0 {
		grace = DefaultStopGrace
	}
	return &ProcessSupervisor{
		Binary:    binary,
		Home:      config.ExpandHome(home),
		StopGrace: grace,
	}
}

func NewFromConfig(cfg *config.NodeEnvConfig) *ProcessSupervisor {
	return New(cfg.Binary, cfg.Home, cfg.StopGrace)
}

func (s *ProcessSupervisor) pidFile() string { return filepath.Join(s.Home, pidFileName) }

// LogFile is where the node's stdout and stderr are appended.
func (s *ProcessSupervisor) LogFile() string { return filepath.Join(s.Home, logFileName) }

// Start launches the node in the background and returns its pid.
func (s *ProcessSupervisor) Start(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if pid, ok := s.PID(); ok {
		return pid, ErrAlreadyRunning
	}
	if strings.TrimSpace(s.Binary) == "" {
		return 0, fmt.Errorf("node binary cannot be empty")
	}
	bin, err := exec.LookPath(s.Binary)
	if err != nil {
		return 0, fmt.Errorf("node binary %q not found: %w", s.Binary, err)
	}
	if err := os.MkdirAll(s.Home, 0o755); err != nil {
		return 0, fmt.Errorf("create node home %s: %w", s.Home, err)
	}
	logf, err := os.OpenFile(s.LogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open node log: %w", err)
	}

	// Not tied to ctx: the node must outlive the command that started it.
	cmd := exec.Command(bin, "start", "--home", s.Home)
	cmd.Stdout = logf
	cmd.Stderr = logf
	if err := cmd.Start(); err != nil {
		_ = logf.Close()
		return 0, fmt.Errorf("start node: %w", err)
	}
	pid := cmd.Process.Pid

	go func() {
		err := cmd.Wait()
		_ = logf.Close()
		log.Info().Err(err).Int("pid", pid).Msg("node process exited")
	}()

	if err := os.WriteFile(s.pidFile(), []byte(strconv.Itoa(pid)), 0o644); err != nil {
		_ = cmd.Process.Kill()
		return 0, fmt.Errorf("write pid file: %w", err)
	}

	log.Info().
		Int("pid", pid).
		Str("binary", bin).
		Str("home", s.Home).
		Str("log", s.LogFile()).
		Msg("node started")
	return pid, nil
}

// Stop sends SIGTERM and escalates to SIGKILL after StopGrace or when ctx ends.
func (s *ProcessSupervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pid, ok := s.PID()
	if !ok {
		_ = os.Remove(s.pidFile())
		return ErrNotRunning
	}
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		_ = os.Remove(s.pidFile())
		return ErrNotRunning
	}

	log.Info().Int("pid", pid).Str("grace", s.StopGrace.String()).Msg("stopping node")
	if err := p.TerminateWithContext(ctx); err != nil {
		return fmt.Errorf("signal node %d: %w", pid, err)
	}

	graceCtx, cancel := context.WithTimeout(ctx, s.StopGrace)
	defer cancel()
	if !waitExit(graceCtx, pid) {
		log.Warn().Int("pid", pid).Msg("node did not stop within grace period, killing")
		if err := p.Kill(); err != nil && pidAlive(pid) {
			return fmt.Errorf("kill node %d: %w", pid, err)
		}
		killCtx, cancelKill := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelKill()
		if !waitExit(killCtx, pid) {
			return fmt.Errorf("node %d still running after kill", pid)
		}
	}

	_ = os.Remove(s.pidFile())
	log.Info().Int("pid", pid).Msg("node stopped")
	return nil
}

// IsRunning reports whether the recorded node process is alive.
func (s *ProcessSupervisor) IsRunning() bool {
	_, ok := s.PID()
	return ok
}

// PID returns the recorded pid when that process is alive.
func (s *ProcessSupervisor) PID() (int, bool) {
	b, err := os.ReadFile(s.pidFile())
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, pidAlive(pid)
}

// Stats reads cpu and memory usage of the running node.
func (s *ProcessSupervisor) Stats(ctx context.Context) (ProcessStats, error) {
	pid, ok := s.PID()
	if !ok {
		return ProcessStats{}, ErrNotRunning
	}
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return ProcessStats{}, err
	}
	stats := ProcessStats{PID: pid}
	if v, err := p.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = v
	}
	if v, err := p.MemoryPercentWithContext(ctx); err == nil {
		stats.MemoryPercent = v
	}
	if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
		stats.RSSBytes = mi.RSS
	}
	return stats, nil
}

func pidAlive(pid int) bool {
	exists, err := process.PidExists(int32(pid))
	if err != nil || !exists {
		return false
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	status, err := p.Status()
	if err != nil {
		return true
	}
	return !slices.Contains(status, process.Zombie)
}

func waitExit(ctx context.Context, pid int) bool {
	t := time.NewTicker(stopPollInterval)
	defer t.Stop()
	for {
		if !pidAlive(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return !pidAlive(pid)
		case <-t.C:
		}
	}
}
