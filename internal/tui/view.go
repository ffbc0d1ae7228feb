package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tracediff/internal/model"
	"tracediff/internal/trace"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	changedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")) // Orange

	leftOnlyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")) // Red

	rightOnlyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")) // Green

	borderColor = lipgloss.Color("63")
	activeColor = lipgloss.Color("205")
)

// panelLayout splits the window into the hunk list and the hunk view.
// Subtracting 6 for horizontal margin (borders x2 + buffer) and 6 for the
// footer and borders.
func panelLayout(width, height int) (leftWidth, rightWidth, interiorHeight int) {
	netWidth := max(width-6, 40)
	leftWidth = netWidth / 3
	rightWidth = netWidth - leftWidth

	boxHeight := max(height-6, 6)
	interiorHeight = max(boxHeight-2, 2)
	return leftWidth, rightWidth, interiorHeight
}

func (m AppModel) View() string {
	if m.Loading {
		return "\n  Comparing traces... please wait.\n"
	}
	if m.Err != nil {
		return fmt.Sprintf("\n  Error: %v\n\n  Press r to retry, q to quit.\n", m.Err)
	}
	if m.ShowHelp {
		return m.renderHelpDialog()
	}
	if m.ShowStats {
		return m.renderStatsPopup()
	}

	leftWidth, rightWidth, interiorHeight := panelLayout(m.WindowSize.Width, m.WindowSize.Height)

	// LEFT PANEL: hunk list
	var leftView strings.Builder
	leftView.WriteString(headingStyle.Render(fmt.Sprintf("Hunks (%d)", len(m.Report.Hunks))))
	leftView.WriteString("\n\n")

	// Windowing: header is 2 lines (title + blank line)
	visibleItems := max(interiorHeight-2, 1)
	startIdx := 0
	endIdx := len(m.FilteredIndices)
	if len(m.FilteredIndices) > visibleItems {
		if m.SelectedIdx >= visibleItems/2 {
			startIdx = m.SelectedIdx - (visibleItems / 2)
		}
		if startIdx+visibleItems > len(m.FilteredIndices) {
			startIdx = len(m.FilteredIndices) - visibleItems
		}
		endIdx = startIdx + visibleItems
	}

	for i := startIdx; i < endIdx; i++ {
		idx := m.FilteredIndices[i]
		line := truncate(hunkSummary(idx, m.Report.Hunks[idx]), leftWidth-2)
		if i == m.SelectedIdx {
			leftView.WriteString(selectedStyle.Render(line))
		} else {
			leftView.WriteString(normalStyle.Render(line))
		}
		leftView.WriteString("\n")
	}
	if len(m.FilteredIndices) == 0 {
		if m.SearchActive {
			leftView.WriteString(dimStyle.Render("No hunk touches that PC."))
		} else {
			leftView.WriteString(dimStyle.Render(model.IconMatch + " Traces are identical."))
		}
	}

	lBorderColor, rBorderColor := activeColor, borderColor
	if m.RightFocus {
		lBorderColor, rBorderColor = borderColor, activeColor
	}

	left := lipgloss.NewStyle().
		Width(leftWidth).
		Height(interiorHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(lBorderColor).
		Render(strings.TrimSuffix(leftView.String(), "\n"))

	// RIGHT PANEL: side-by-side view of the selected hunk
	title := "Details"
	if _, idx, ok := m.selectedHunk(); ok {
		title = fmt.Sprintf("Hunk #%d", idx+1)
	}
	right := lipgloss.NewStyle().
		Width(rightWidth).
		Height(interiorHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(rBorderColor).
		Render(headingStyle.Render(title) + "\n\n" + m.DetailsViewport.View())

	// Footer
	s := m.Report.Stats
	summary := fmt.Sprintf("%s vs %s  %s %.2f%% match  -%d +%d  %s %d loops",
		nameOr(m.Report.Left.Name, "left"), nameOr(m.Report.Right.Name, "right"),
		model.IconMatch, s.MatchPercent, s.LeftOnly, s.RightOnly, model.IconLoop, s.PatternCount)

	help := "Help: ↑/↓ or n/p: Hunk • Tab: Scroll Hunk • /: Find PC • d: Stats • s: Save • r: Rerun • ?: Help • q: Quit"
	if m.RightFocus {
		help = "Hunk Mode: ↑/↓: Scroll • PgUp/PgDn: Page • n/p: Hunk • Tab: Return to List • ?: Help • q: Quit"
	}

	footer := "\n" + dimStyle.Render(summary) + "\n" + help
	if m.InputMode {
		footer = fmt.Sprintf("\n%s\nFind PC: %s", dimStyle.Render(summary), m.InputBuffer.View())
	} else if m.StatusMsg != "" {
		footer += "\n" + changedStyle.Render(m.StatusMsg)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, left, right) + footer
}

// hunkSummary is one line of the hunk list.
func hunkSummary(idx int, h model.Hunk) string {
	del, ins := 0, 0
	for _, op := range h.Ops {
		switch op.Kind {
		case model.OpLeftOnly:
			del++
		case model.OpRightOnly:
			ins++
		}
	}
	return fmt.Sprintf("%3d. -%d,%d +%d,%d  %s%d %s%d",
		idx+1, h.LeftStart+1, h.LeftCount(), h.RightStart+1, h.RightCount(),
		model.IconLeftOnly, del, model.IconRightOnly, ins)
}

// renderHunk lays a hunk out in two columns, left trace first.
func renderHunk(h model.Hunk, idx, width int) string {
	colWidth := max((width-5)/2, 12)

	var sb strings.Builder
	sb.WriteString(dimStyle.Render(fmt.Sprintf("@@ HUNK #%d @@ -%d,%d +%d,%d",
		idx+1, h.LeftStart+1, h.LeftCount(), h.RightStart+1, h.RightCount())))
	sb.WriteString("\n")

	for _, row := range trace.PairRows(h) {
		var icon string
		var style lipgloss.Style
		switch row.Kind {
		case trace.RowSame:
			icon, style = model.IconMatch, normalStyle
		case trace.RowChanged:
			icon, style = model.IconChanged, changedStyle
		case trace.RowLeftOnly:
			icon, style = model.IconLeftOnly, leftOnlyStyle
		case trace.RowRightOnly:
			icon, style = model.IconRightOnly, rightOnlyStyle
		}

		// Matches carry only the left entry, so its line number is
		// meaningless in the right column.
		sb.WriteString(cell(row.Left, true, colWidth, style))
		sb.WriteString(" " + style.Render(icon) + " ")
		sb.WriteString(cell(row.Right, row.Kind != trace.RowSame, colWidth, style))
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func cell(e *model.TraceEntry, lineNumber bool, width int, style lipgloss.Style) string {
	if e == nil {
		return dimStyle.Render(pad(truncate(model.MissingPlaceholder, width), width))
	}
	text := fmt.Sprintf("%6s %s", "", e.Original)
	if lineNumber {
		text = fmt.Sprintf("%6d %s", e.LineNumber, e.Original)
	}
	return style.Render(pad(truncate(text, width), width))
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}

func pad(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// renderPopup draws scrollable text centred on the screen.
func (m AppModel) renderPopup(title, body, hint string, scrollY int, color lipgloss.Color) string {
	w, h := m.WindowSize.Width, m.WindowSize.Height
	if w < 20 || h < 10 {
		return "Window too small"
	}

	popupWidth := min(max(w*90/100, 40), w-4)
	popupHeight := max(h-6, 5)

	lines := strings.Split(body, "\n")
	contentHeight := max(popupHeight-4, 1) // minus title and footer

	startY := min(scrollY, len(lines)-contentHeight)
	startY = max(startY, 0)
	endY := min(startY+contentHeight, len(lines))

	content := strings.Join(lines[startY:endY], "\n")
	footer := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("\n" + hint)

	dialog := lipgloss.NewStyle().
		Width(popupWidth).
		Height(popupHeight).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Render(titleStyle.Render(title) + "\n\n" + content + footer)

	return lipgloss.Place(w, h,
		lipgloss.Center, lipgloss.Center,
		dialog,
	)
}

func (m AppModel) renderStatsPopup() string {
	body := trace.GenerateReport(m.Report, m.Source.ReportOpts)
	return m.renderPopup("Comparison Report", body,
		"Press 's' to save, 'd'/Esc to close", m.StatsScrollY, lipgloss.Color("208"))
}

func (m AppModel) renderHelpDialog() string {
	return m.renderPopup("Help", m.HelpContent, "Press '?'/Esc to close", m.HelpScrollY, borderColor)
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, InitCompareCmd(m.Source))
}
