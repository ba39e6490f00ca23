package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bridgeguard/nodeguard/internal/config"
	"github.com/bridgeguard/nodeguard/internal/noderpc"
	"github.com/bridgeguard/nodeguard/internal/ui"
	"github.com/bridgeguard/nodeguard/internal/utils/logger"
)

// errReported marks a failure the command already printed.
var errReported = errors.New("reported")

type rootFlags struct {
	home     string
	bin      string
	rpc      string
	output   string
	logLevel string
	timeout  time.Duration
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	flags   *rootFlags
	out     io.Writer
	cfg     *config.AppConfig
	printer ui.Printer
}

// newRootCmd wires the CLI surface. Persistent flags override values loaded from the environment.
func newRootCmd(out io.Writer) *cobra.Command {
	flags := &rootFlags{}
	a := &app{flags: flags, out: out}

	root := &cobra.Command{
		Use:           "nodectl",
		Short:         "Operate and query a local chain node",
		Long:          "Check health, wait for sync, query state and broadcast transactions against a node's RPC endpoint.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.home, "home", "", "Node home directory (overrides NODE_HOME)")
	pf.StringVar(&flags.bin, "bin", "", "Node binary (overrides NODE_BINARY)")
	pf.StringVar(&flags.rpc, "rpc", "", "Node RPC base URL (overrides NODE_RPC_URL)")
	pf.StringVarP(&flags.output, "output", "o", ui.FormatText, "Output format: json|text")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
	pf.DurationVar(&flags.timeout, "timeout", 0, "Per-attempt RPC timeout (overrides NODE_RPC_TIMEOUT)")

	root.AddCommand(
		newHealthCmd(a),
		newStatusCmd(a),
		newWaitSyncCmd(a),
		newBlockCmd(a),
		newBalanceCmd(a),
		newValidatorCmd(a),
		newBroadcastCmd(a),
		newStartCmd(a),
		newStopCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Show version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "nodectl", version)
			},
		},
	)
	return root
}

var version = "dev"

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	root := newRootCmd(os.Stdout)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

func (a *app) load() error {
	switch a.flags.output {
	case ui.FormatJSON, ui.FormatText, "":
	default:
		return fmt.Errorf("invalid --output: %s (use json|text)", a.flags.output)
	}

	logger.Init()
	if a.flags.logLevel != "" && !logger.SetLevel(a.flags.logLevel) {
		return fmt.Errorf("invalid --log-level: %s", a.flags.logLevel)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if a.flags.home != "" {
		cfg.Home = a.flags.home
	}
	if a.flags.bin != "" {
		cfg.Binary = a.flags.bin
	}
	if a.flags.rpc != "" {
		cfg.RPCURL = a.flags.rpc
	}
	if a.flags.timeout > 0 {
		cfg.RequestTimeout = a.flags.timeout
	}
	a.cfg = cfg
	a.printer = ui.NewPrinterTo(a.out, a.flags.output)
	log.Debug().Str("rpc", cfg.RPCURL).Str("home", cfg.NodeHome()).Msg("configuration loaded")
	return nil
}

// client builds an RPC client from the loaded configuration. Callers close it.
func (a *app) client() (*noderpc.Client, error) {
	c, err := noderpc.NewFromConfig(a.cfg)
	if err != nil {
		return nil, fmt.Errorf("create rpc client: %w", err)
	}
	return c, nil
}

// report prints a failed call result and returns errReported, or nil on success.
func report[T any](p ui.Printer, what string, res noderpc.CallResult[T]) error {
	if res.Success {
		return nil
	}
	p.Failure(what, res.Err, res.Attempts)
	return errReported
}
