package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Styled-output palette and styles for the status command.
var (
	primaryColor   = lipgloss.Color("#FF79C6")
	secondaryColor = lipgloss.Color("#8BE9FD")
	accentColor    = lipgloss.Color("#50FA7B")
	warningColor   = lipgloss.Color("#FFB86C")
	dangerColor    = lipgloss.Color("#FF5555")
	mutedColor     = lipgloss.Color("#6272A4")
	bgLightColor   = lipgloss.Color("#44475A")
	fgColor        = lipgloss.Color("#F8F8F2")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2).
			MarginBottom(1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(20)

	valueStyle = lipgloss.NewStyle().
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(secondaryColor).
			Background(bgLightColor).
			Padding(0, 1)

	rowStyle = lipgloss.NewStyle().
			Padding(0, 1)

	iconStyle = lipgloss.NewStyle().
			MarginRight(1)
)

// createPanel wraps content in a bordered panel with a title line.
func createPanel(title, icon, content string, width int) string {
	panel := panelStyle
	if width > 0 {
		panel = panel.Width(width)
	}

	titleLine := iconStyle.Render(icon) + titleStyle.Render(title)
	inner := lipgloss.JoinVertical(lipgloss.Left, titleLine, content)
	return panel.Render(inner)
}

// stateStyle picks a color per synchronization-point state.
func stateStyle(state string) lipgloss.Style {
	switch state {
	case "SYNCHRONIZED":
		return lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	case "ERROR":
		return lipgloss.NewStyle().Foreground(dangerColor).Bold(true)
	case "ACHIEVED":
		return lipgloss.NewStyle().Foreground(warningColor)
	case "ANNOUNCED":
		return lipgloss.NewStyle().Foreground(secondaryColor)
	default:
		return lipgloss.NewStyle().Foreground(mutedColor)
	}
}

// styledRunStatus renders one run's snapshot as panels and a point table.
func styledRunStatus(result StatusResult) string {
	var sections []string

	metrics := []struct {
		label string
		value string
		style lipgloss.Style
	}{
		{"Run", result.RunID, valueStyle},
		{"Federation", result.Federation, valueStyle},
		{"Federate", result.Federate, valueStyle},
		{"Snapshot Seq", fmt.Sprintf("%d", result.Seq), valueStyle},
	}
	if result.TakenAt != "" {
		metrics = append(metrics, struct {
			label string
			value string
			style lipgloss.Style
		}{"Taken At", result.TakenAt, valueStyle})
	}

	var lines []string
	for _, m := range metrics {
		lines = append(lines, labelStyle.Render(m.label+":")+" "+m.style.Render(m.value))
	}
	sections = append(sections, createPanel("Run Snapshot", "⛭", strings.Join(lines, "\n"), 0))

	if len(result.Points) > 0 {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(bgLightColor)).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == 0 {
					return headerStyle
				}
				return rowStyle.Foreground(fgColor)
			})

		t.Headers("#", "LABEL", "STATE", "AT")
		for i, p := range result.Points {
			t.Row(
				fmt.Sprintf("%d", i+1),
				p.Label,
				stateStyle(p.State).Render(p.State),
				p.At,
			)
		}
		sections = append(sections, createPanel("Synchronization Points", "◆", t.Render(), 0))
	}

	if len(result.Tally) > 0 {
		var tallyLines []string
		for _, state := range []string{"UNREGISTERED", "ANNOUNCED", "ACHIEVED", "SYNCHRONIZED", "ERROR"} {
			if n, ok := result.Tally[state]; ok {
				tallyLines = append(tallyLines,
					labelStyle.Render(state+":")+" "+stateStyle(state).Render(fmt.Sprintf("%d", n)))
			}
		}
		sections = append(sections, createPanel("State Tally", "Σ", strings.Join(tallyLines, "\n"), 0))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// styledRunList renders the run listing as a table panel.
func styledRunList(summaries []RunSummary) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(bgLightColor)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == 0 {
				return headerStyle
			}
			return rowStyle.Foreground(fgColor)
		})

	t.Headers("RUN", "FEDERATION", "FEDERATE", "SNAPSHOTS", "LATEST SEQ")
	for _, s := range summaries {
		t.Row(
			s.RunID,
			s.Federation,
			s.Federate,
			fmt.Sprintf("%d", s.Snapshots),
			fmt.Sprintf("%d", s.LatestSeq),
		)
	}

	return createPanel("Recorded Runs", "⛁", t.Render(), 0)
}
