package main

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bridgeguard/nodeguard/internal/noderpc"
)

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check RPC reachability and sync state",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			defer c.Close()

			r := c.CheckHealth(cmd.Context())
			a.printer.Health(r)
			return unhealthy(r)
		},
	}
}

func newWaitSyncCmd(a *app) *cobra.Command {
	var maxPolls int
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "wait-sync",
		Short: "Poll the node until it reports synced",
		RunE: func(cmd *cobra.Command, args []string) error {
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
	cmd.Flags().IntVar(&maxPolls, "max-polls", noderpc.DefaultSyncPolls, "Maximum status polls (overrides SYNC_MAX_POLLS)")
	cmd.Flags().DurationVar(&interval, "interval", noderpc.DefaultSyncInterval, "Delay between polls (overrides SYNC_POLL_INTERVAL)")
	return cmd
}

func waitSync(ctx context.Context, a *app, c *noderpc.Client, maxPolls int, interval time.Duration) error {
	if !a.printer.IsJSON() {
		a.printer.Info(fmt.Sprintf("waiting for %s to sync (max %d polls, every %s)", c.Endpoint().URL, maxPolls, interval))
	}
	res := c.WaitForSync(ctx, maxPolls, interval)
	a.printer.SyncWait(res)
	if !res.Synced {
		return errReported
	}
	return nil
}

func newBlockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "block",
		Short: "Show the latest block",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			defer c.Close()

			res := c.GetLatestBlock(cmd.Context())
			if err := report(a.printer, "latest block", res); err != nil {
				return err
			}
			if a.printer.IsJSON() {
				a.printer.JSON(res.Payload)
				return nil
			}
			b := res.Payload
			a.printer.Header("Latest Block")
			a.printer.KV("Chain", b.ChainID)
			a.printer.KV("Height", b.Height)
			a.printer.KV("Hash", b.Hash)
			a.printer.KV("Time", b.Time.Format(time.RFC3339))
			a.printer.KV("Proposer", b.Proposer)
			a.printer.KV("Txs", b.NumTxs)
			return nil
		},
	}
}

func newBalanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Query an account balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			defer c.Close()

			res := c.QueryBalance(cmd.Context(), args[0])
			if err := report(a.printer, "balance query", res); err != nil {
				return err
			}
			if a.printer.IsJSON() {
				a.printer.JSON(res.Payload)
				return nil
			}
			b := res.Payload
			a.printer.Header("Balance")
			a.printer.KV("Address", b.Address)
			a.printer.KV("Denom", b.Denom)
			a.printer.KV("Height", b.Height)
			a.printer.KV("Found", b.Found)
			if b.Found {
				a.printer.KV("Value", base64.StdEncoding.EncodeToString(b.Value))
			}
			return nil
		},
	}
}

func newValidatorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validator <valoper-address>",
		Short: "Query a validator record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			defer c.Close()

			res := c.GetValidatorInfo(cmd.Context(), args[0])
			if err := report(a.printer, "validator query", res); err != nil {
				return err
			}
			if a.printer.IsJSON() {
				a.printer.JSON(res.Payload)
				return nil
			}
			v := res.Payload
			a.printer.Header("Validator")
			a.printer.KV("Address", v.Address)
			a.printer.KV("Height", v.Height)
			a.printer.KV("Found", v.Found)
			if !v.Found && v.Log != "" {
				a.printer.KV("Log", v.Log)
			}
			return nil
		},
	}
}

func newBroadcastCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "broadcast <base64-tx|@file>",
		Short: "Broadcast a signed transaction",
		Long:  "Broadcast a signed transaction given as base64 or 0x-prefixed hex, or read raw bytes from a file with @path.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := readTx(args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			defer c.Close()

			res := c.BroadcastTransaction(cmd.Context(), tx)
			if err := report(a.printer, "broadcast", res); err != nil {
				return err
			}
			if a.printer.IsJSON() {
				a.printer.JSON(res.Payload)
				return nil
			}
			b := res.Payload
			if b.Accepted() {
				a.printer.Success("transaction accepted " + b.Hash)
				return nil
			}
			a.printer.Error(fmt.Sprintf("transaction rejected with code %d (%s): %s", b.Code, b.Codespace, b.Log))
			return errReported
		},
	}
}

// readTx decodes a transaction argument: @path reads raw bytes, 0x-prefixed is hex, anything else base64.
func readTx(arg string) ([]byte, error) {
	arg = strings.TrimSpace(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read transaction file: %w", err)
		}
		if len(b) == 0 {
			return nil, fmt.Errorf("transaction file %s is empty", path)
		}
		return b, nil
	}
	if arg == "" {
		return nil, fmt.Errorf("transaction cannot be empty")
	}
	if h, ok := strings.CutPrefix(arg, "0x"); ok {
		b, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("decode hex transaction: %w", err)
		}
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(arg)
	if err != nil {
		return nil, fmt.Errorf("decode base64 transaction: %w", err)
	}
	return b, nil
}
