package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Output receives everything the Print functions write
var Output io.Writer = os.Stdout

var (
	// Color palette
	primaryColor   = lipgloss.Color("#FF7A1A") // Forge orange
	secondaryColor = lipgloss.Color("#00D9FF") // Cyan
	successColor   = lipgloss.Color("#04B575") // Green
	errorColor     = lipgloss.Color("#FF5F87") // Pink/Red
	warningColor   = lipgloss.Color("#FFAF00") // Orange
	mutedColor     = lipgloss.Color("#808080") // Gray
	accentColor    = lipgloss.Color("#FFD700") // Gold

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginTop(1).
			MarginBottom(1).
			PaddingLeft(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(secondaryColor).
			MarginTop(1).
			PaddingLeft(1)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	infoStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	keyStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)

	checkmark = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true).
			SetString("✓")

	cross = lipgloss.NewStyle().
		Foreground(errorColor).
		Bold(true).
		SetString("✗")

	arrow = lipgloss.NewStyle().
		Foreground(secondaryColor).
		SetString("→")

	dot = lipgloss.NewStyle().
		Foreground(mutedColor).
		SetString("•")

	star = lipgloss.NewStyle().
		Foreground(accentColor).
		SetString("★")

	stepStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	itemStyle = lipgloss.NewStyle().
			PaddingLeft(4).
			Foreground(lipgloss.Color("#FAFAFA"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1).
			MarginTop(1).
			MarginBottom(1)
)

func emit(s string) {
	fmt.Fprintln(Output, s)
}

// PrintTitle prints a major title (for app name or major sections)
func PrintTitle(title string) {
	emit(titleStyle.Render("╭─ " + title + " ─╮"))
}

// PrintHeader prints a section header
func PrintHeader(title string) {
	emit(headerStyle.Render("\n▸ " + title))
}

// PrintStep prints a step with indentation
func PrintStep(step string) {
	emit(stepStyle.Render(arrow.String() + " " + step))
}

// PrintItem prints an item in a list
func PrintItem(item string) {
	emit(itemStyle.Render(dot.String() + " " + item))
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	emit(stepStyle.Render(checkmark.String() + " " + successStyle.Render(message)))
}

// PrintError prints an error message
func PrintError(message string) {
	emit(stepStyle.Render(cross.String() + " " + errorStyle.Render(message)))
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	emit(stepStyle.Render("⚠ " + warningStyle.Render(message)))
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	emit(stepStyle.Render(infoStyle.Render(message)))
}

// PrintHighlight prints highlighted text
func PrintHighlight(message string) {
	emit(stepStyle.Render(star.String() + " " + highlightStyle.Render(message)))
}

// PrintBox prints text in a rounded box
func PrintBox(content string) {
	emit(boxStyle.Render(content))
}

// PrintList prints a titled list of items
func PrintList(title string, items []string) {
	emit(stepStyle.Render(title + ":"))
	for _, item := range items {
		PrintItem(item)
	}
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	emit(infoStyle.Render("─────────────────────────────────────────────"))
}

// PrintKeyValue prints a key-value pair with nice formatting
func PrintKeyValue(key, value string) {
	emit(stepStyle.Render(keyStyle.Render(key+":") + " " + value))
}

// Table prints aligned rows with fixed column widths
type Table struct {
	Widths []int
}

// NewTable creates a table with the given column widths
func NewTable(widths ...int) *Table {
	return &Table{Widths: widths}
}

func (t *Table) format(columns []string, truncate func(col string, width int) string) string {
	row := ""
	for i, col := range columns {
		if i >= len(t.Widths) {
			break
		}
		if len(col) > t.Widths[i] {
			col = truncate(col, t.Widths[i])
		} else {
			col = col + strings.Repeat(" ", t.Widths[i]-len(col))
		}
		row += col
		if i < len(columns)-1 && i < len(t.Widths)-1 {
			row += " │ "
		}
	}
	return row
}

// Row prints a formatted table row, long columns are cut with "..."
func (t *Table) Row(columns ...string) {
	if len(columns) == 0 {
		return
	}
	emit(stepStyle.Render(t.format(columns, func(col string, width int) string {
		if width <= 3 {
			return col[:width]
		}
		return col[:width-3] + "..."
	})))
}

// Header prints the header row followed by a separator line
func (t *Table) Header(headers ...string) {
	emit(stepStyle.Render(keyStyle.Render(t.format(headers, func(col string, width int) string {
		return col[:width]
	}))))

	separator := ""
	for i := range headers {
		if i >= len(t.Widths) {
			break
		}
		separator += strings.Repeat("─", t.Widths[i])
		if i < len(headers)-1 && i < len(t.Widths)-1 {
			separator += "─┼─"
		}
	}
	emit(stepStyle.Render(infoStyle.Render(separator)))
}

// IsVerbose checks if verbose output is enabled
func IsVerbose() bool {
	// Check for CI environment variable or --progress=plain flag
	if os.Getenv("CI") != "" {
		return true
	}
	for _, arg := range os.Args {
		if arg == "--progress=plain" {
			return true
		}
	}
	return false
}

// PrintProgress prints a progress indicator
func PrintProgress(current, total int, message string) {
	if IsVerbose() || total <= 0 {
		return
	}

	barWidth := 30
	filled := (current * barWidth) / total
	if filled > barWidth {
		filled = barWidth
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	pct := (current * 100) / total

	// Use carriage return to overwrite the line
	fmt.Fprintf(Output, "\r  [%s] %d%% %s", bar, pct, message)

	if current >= total {
		fmt.Fprintln(Output)
	}
}
