// Package ui renders command output as styled text or JSON.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/bridgeguard/nodeguard/internal/noderpc"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Printer centralizes output formatting for commands.
type Printer struct {
	format string
	out    io.Writer
	Colors *ColorConfig
}

func NewPrinter(format string) Printer {
	return NewPrinterTo(os.Stdout, format)
}

func NewPrinterTo(out io.Writer, format string) Printer {
	if format != FormatJSON {
		format = FormatText
	}
	return Printer{format: format, out: out, Colors: NewColorConfig(out)}
}

func (p Printer) IsJSON() bool { return p.format == FormatJSON }

// JSON pretty-prints v.
func (p Printer) JSON(v any) {
	b, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(p.out, "{\"error\":%q}\n", err.Error())
		return
	}
	fmt.Fprintln(p.out, string(b))
}

func (p Printer) Success(msg string) { fmt.Fprintln(p.out, p.Colors.Success("✓"), msg) }

func (p Printer) Info(msg string) { fmt.Fprintln(p.out, p.Colors.Info("ℹ"), msg) }

func (p Printer) Warn(msg string) { fmt.Fprintln(p.out, p.Colors.Warning("!"), msg) }

func (p Printer) Error(msg string) { fmt.Fprintln(p.out, p.Colors.Error("✗"), msg) }

func (p Printer) Header(title string) { fmt.Fprintln(p.out, p.Colors.Header(" "+title+" ")) }

func (p Printer) Separator(n int) { fmt.Fprintln(p.out, p.Colors.Separator(n)) }

// KV prints an aligned key/value line.
func (p Printer) KV(key string, value any) {
	fmt.Fprintf(p.out, "  %s %v\n", p.Colors.Key(fmt.Sprintf("%-12s", key+":")), value)
}

// Phase renders a sync phase. Unreachable and syncing look different on purpose:
// one means the node is down, the other that it is catching up.
func (p Printer) Phase(s noderpc.SyncState) string {
	c := p.Colors
	switch s.Phase {
	case noderpc.PhaseSynced:
		return c.Success("● In sync")
	case noderpc.PhaseSyncing:
		return c.Warning("◐ Catching up")
	case noderpc.PhaseUnreachable:
		return c.Error("✗ Unreachable")
	}
	return c.Dim("? Unknown")
}

// Health prints a health report.
func (p Printer) Health(r noderpc.HealthReport) {
	if p.IsJSON() {
		p.JSON(r)
		return
	}
	p.Header("Node Health")
	reach := p.Colors.Success("reachable")
	if !r.Healthy {
		reach = p.Colors.Error("unreachable")
	}
	p.KV("RPC", reach)
	p.KV("Sync", p.Phase(r.State))
	p.KV("Height", heightOrDash(r.State.Height))
	p.KV("Attempts", r.Attempts)
	if r.Status != nil {
		p.KV("Moniker", r.Status.NodeInfo.Moniker)
		p.KV("Network", r.Status.NodeInfo.Network)
	}
	if r.Err != nil {
		p.KV("Error", fmt.Sprintf("[%s] %s", r.Err.Category(), r.Err.Error()))
	}
}

// SyncWait prints the outcome of waiting for sync.
func (p Printer) SyncWait(r noderpc.SyncWaitResult) {
	if p.IsJSON() {
		p.JSON(r)
		return
	}
	summary := fmt.Sprintf("after %d polls (%s), height %s", r.Polls, r.Elapsed.Round(time.Millisecond), heightOrDash(r.FinalHeight))
	switch {
	case r.Synced:
		p.Success("node synced " + summary)
	case r.Canceled:
		p.Warn("wait canceled " + summary)
	case r.State.Phase == noderpc.PhaseUnreachable:
		p.Error("node unreachable " + summary)
	default:
		p.Warn("node still catching up " + summary)
	}
}

// Failure prints a failed call with its category so operators can tell a down node
// from a protocol problem or an ambiguous broadcast.
func (p Printer) Failure(what string, ce *noderpc.CallError, attempts int) {
	if ce == nil {
		return
	}
	if p.IsJSON() {
		p.JSON(map[string]any{"ok": false, "error": ce, "category": ce.Category(), "attempts": attempts})
		return
	}
	msg := fmt.Sprintf("%s failed after %d attempt(s): %s", what, attempts, ce.Error())
	if ce.Kind == noderpc.KindAmbiguousOutcome {
		p.Warn(msg)
		p.Info("the node may have accepted it; look up the transaction hash before resubmitting")
		return
	}
	p.Error(fmt.Sprintf("[%s] %s", strings.ToUpper(string(ce.Category())), msg))
}

func heightOrDash(h int64) string {
	if h <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", h)
}
