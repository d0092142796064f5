package color

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Color represents a colorizer that can be enabled or disabled
type Color struct {
	enabled bool

	add     *color.Color
	change  *color.Color
	destroy *color.Color
	bold    *color.Color
	cyan    *color.Color
}

// New creates a new Color instance. Color is also turned off when stdout is
// not a terminal or NO_COLOR is set.
func New(enabled bool) *Color {
	c := &Color{
		enabled: enabled && shouldEnableColor(),
		add:     color.New(color.FgGreen),
		change:  color.New(color.FgYellow),
		destroy: color.New(color.FgRed),
		bold:    color.New(color.Bold),
		cyan:    color.New(color.FgCyan),
	}
	for _, p := range []*color.Color{c.add, c.change, c.destroy, c.bold, c.cyan} {
		if c.enabled {
			p.EnableColor()
		} else {
			p.DisableColor()
		}
	}
	return c
}

func shouldEnableColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if term := os.Getenv("TERM"); term == "dumb" {
		return false
	}
	return !color.NoColor
}

// Enabled reports whether output is colored.
func (c *Color) Enabled() bool { return c.enabled }

// Add colors a string to indicate additions (green)
func (c *Color) Add(text string) string { return c.add.Sprint(text) }

// Change colors a string to indicate modifications and warnings (yellow)
func (c *Color) Change(text string) string { return c.change.Sprint(text) }

// Destroy colors a string to indicate deletions and errors (red)
func (c *Color) Destroy(text string) string { return c.destroy.Sprint(text) }

// Bold makes text bold
func (c *Color) Bold(text string) string { return c.bold.Sprint(text) }

// Cyan colors headers and labels
func (c *Color) Cyan(text string) string { return c.cyan.Sprint(text) }

// Warn formats a warning line.
func (c *Color) Warn(text string) string {
	return c.Change("Warning: " + text)
}

// PlanSymbol returns the symbol for an action: add, change or drop.
func (c *Color) PlanSymbol(action string) string {
	switch action {
	case "add", "create":
		return c.Add("+")
	case "change", "modify", "alter", "rename":
		return c.Change("~")
	case "destroy", "drop", "delete":
		return c.Destroy("-")
	default:
		return " "
	}
}

// FormatPlanLine formats one planned change, e.g. "  + create_table public.users".
func (c *Color) FormatPlanLine(action, kind, subject string) string {
	return fmt.Sprintf("  %s %s %s", c.PlanSymbol(action), kind, subject)
}

// FormatPlanHeader formats the summary of a plan
func (c *Color) FormatPlanHeader(added, modified, dropped int) string {
	// Always show all three categories, even if zero
	parts := []string{
		c.Add(fmt.Sprintf("%d to add", added)),
		c.Change(fmt.Sprintf("%d to modify", modified)),
		c.Destroy(fmt.Sprintf("%d to drop", dropped)),
	}
	return fmt.Sprintf("Plan: %s.", strings.Join(parts, ", "))
}
