package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bridgeguard/nodeguard/internal/noderpc"
	"github.com/bridgeguard/nodeguard/internal/supervisor"
)

type statusView struct {
	Running bool                     `json:"running"`
	PID     int                      `json:"pid,omitempty"`
	Process *supervisor.ProcessStats `json:"process,omitempty"`
	Health  noderpc.HealthReport     `json:"health"`
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show process and sync status of the local node",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			defer c.Close()

			sup := supervisor.NewFromConfig(&a.cfg.NodeEnvConfig)
			view := statusView{Health: c.CheckHealth(cmd.Context())}
			if pid, ok := sup.PID(); ok {
				view.Running = true
				view.PID = pid
				if st, err := sup.Stats(cmd.Context()); err == nil {
					view.Process = &st
				}
			}

			if a.printer.IsJSON() {
				a.printer.JSON(view)
				return unhealthy(view.Health)
			}
			a.printer.Header("Process")
			if view.Running {
				a.printer.KV("Running", a.printer.Colors.Success(fmt.Sprintf("yes (pid %d)", view.PID)))
			} else {
				a.printer.KV("Running", a.printer.Colors.Warning("no"))
			}
			if view.Process != nil {
				a.printer.KV("CPU", fmt.Sprintf("%.1f%%", view.Process.CPUPercent))
				a.printer.KV("Memory", fmt.Sprintf("%.1f%% (%d MiB)", view.Process.MemoryPercent, view.Process.RSSBytes>>20))
			}
			a.printer.KV("Home", sup.Home)
			a.printer.Separator(40)
			a.printer.Health(view.Health)
			return unhealthy(view.Health)
		},
	}
}

// unhealthy turns an unreachable node into a failed exit once the report is printed.
func unhealthy(r noderpc.HealthReport) error {
	if !r.Healthy {
		return errReported
	}
	return nil
}

func newStartCmd(a *app) *cobra.Command {
	var wait bool
	var maxPolls int
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the node in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			sup := supervisor.NewFromConfig(&a.cfg.NodeEnvConfig)
			pid, err := sup.Start(cmd.Context())
			already := errors.Is(err, supervisor.ErrAlreadyRunning)
			if err != nil && !already {
				return err
			}
			switch {
			case a.printer.IsJSON():
				if !wait {
					a.printer.JSON(map[string]any{"pid": pid, "already_running": already, "log": sup.LogFile()})
				}
			case already:
				a.printer.Warn(fmt.Sprintf("node already running (pid %d)", pid))
			default:
				a.printer.Success(fmt.Sprintf("node started (pid %d), logs at %s", pid, sup.LogFile()))
			}
			if !wait {
				return nil
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			defer c.Close()
			if !cmd.Flags().Changed("max-polls") {
				maxPolls = a.cfg.SyncMaxPolls
			}
			if !cmd.Flags().Changed("interval") {
				interval = a.cfg.SyncPollInterval
			}
			return waitSync(cmd.Context(), a, c, maxPolls, interval)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the node to sync after starting")
	cmd.Flags().IntVar(&maxPolls, "max-polls", noderpc.DefaultSyncPolls, "Maximum status polls with --wait")
	cmd.Flags().DurationVar(&interval, "interval", noderpc.DefaultSyncInterval, "Delay between polls with --wait")
	return cmd
}

func newStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the node started by start",
		RunE: func(cmd *cobra.Command, args []string) error {
			sup := supervisor.NewFromConfig(&a.cfg.NodeEnvConfig)
			if err := sup.Stop(cmd.Context()); err != nil {
				if errors.Is(err, supervisor.ErrNotRunning) {
					a.printer.Warn("node is not running")
					return nil
				}
				return err
			}
			a.printer.Success("node stopped")
			return nil
		},
	}
}
