package cmd

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderForgeHelp renders the help text for the forge command with lipgloss styling
func renderForgeHelp() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginTop(1)

	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("10"))

	commandStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("14"))

	commentStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Italic(true)

	flagStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Examples"))
	b.WriteString("\n\n")

	examples := []struct {
		title   string
		command []string
	}{
		{"Place a HueForge print on a base", []string{
			"smithforge forge -f hueforge.3mf -b base.stl -o combined.3mf",
		}},
		{"Rotate the base and nudge the overlay", []string{
			"smithforge forge -f hueforge.3mf -b base.stl \\",
			"  --rotatebase 90 --xshift 2.5 --zshift -0.2",
		}},
		{"Keep the HueForge colour swaps for Bambu Studio", []string{
			"smithforge forge -f hueforge.3mf -b base.stl \\",
			"  --preserve-colors --output-format bambu",
		}},
		{"Apply swap instructions copied from HueForge", []string{
			"smithforge forge -f hueforge.stl -b base.3mf --inject-colors-text swaps.txt",
		}},
	}
	for _, ex := range examples {
		b.WriteString(sectionStyle.Render(ex.title))
		b.WriteString("\n")
		for _, line := range ex.command {
			b.WriteString("  " + commandStyle.Render(line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(sectionStyle.Render("Placement order:"))
	b.WriteString("\n")

	steps := []struct {
		flag string
		desc string
	}{
		{"--rotatebase", "Base is rotated around its own centre"},
		{"-s / --scaledown", "Overlay is scaled in XY to cover the base"},
		{"--x/y/zshift", "Overlay is moved, then centred and lowered onto the base"},
		{"--fill-gaps", "Gap under the overlay is filled up to its bottom"},
	}

	maxWidth := 0
	for _, s := range steps {
		if len(s.flag) > maxWidth {
			maxWidth = len(s.flag)
		}
	}
	for _, s := range steps {
		padding := strings.Repeat(" ", maxWidth-len(s.flag)+2)
		b.WriteString("  " + flagStyle.Render(s.flag) + padding + commentStyle.Render(s.desc))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Colour sources are exclusive"))
	b.WriteString("\n")
	b.WriteString("  " + commentStyle.Render("--preserve-colors and --inject-colors-text cannot be combined"))
	b.WriteString("\n")

	return b.String()
}
