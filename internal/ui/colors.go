package ui

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ColorConfig holds the styles used by Printer. Colors are dropped automatically
// when the writer is not a terminal.
type ColorConfig struct {
	success lipgloss.Style
	info    lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	header  lipgloss.Style
	key     lipgloss.Style
	dim     lipgloss.Style
}

func NewColorConfig(out io.Writer) *ColorConfig {
	r := lipgloss.NewRenderer(out)
	return &ColorConfig{
		success: r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		info:    r.NewStyle().Foreground(lipgloss.Color("39")),
		warning: r.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		err:     r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		header:  r.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("63")).Bold(true),
		key:     r.NewStyle().Foreground(lipgloss.Color("245")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

func (c *ColorConfig) Success(s string) string { return c.success.Render(s) }
func (c *ColorConfig) Info(s string) string    { return c.info.Render(s) }
func (c *ColorConfig) Warning(s string) string { return c.warning.Render(s) }
func (c *ColorConfig) Error(s string) string   { return c.err.Render(s) }
func (c *ColorConfig) Header(s string) string  { return c.header.Render(s) }
func (c *ColorConfig) Key(s string) string     { return c.key.Render(s) }
func (c *ColorConfig) Dim(s string) string     { return c.dim.Render(s) }

func (c *ColorConfig) Separator(n int) string { return c.dim.Render(strings.Repeat("─", n)) }
