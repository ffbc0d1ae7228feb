package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"tracediff/internal/model"
	"tracediff/internal/trace"
)

// MsgReportReady carries a finished comparison. The watcher sends it too.
type MsgReportReady model.Report

// MsgError indicates an error occurred.
type MsgError error

// MsgSaved reports the outcome of writing the text report.
type MsgSaved struct {
	Path string
	Err  error
}

// Update handles events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.WindowSize = msg
		_, rightWidth, interiorHeight := panelLayout(msg.Width, msg.Height)
		m.DetailsViewport.Width = rightWidth
		m.DetailsViewport.Height = max(interiorHeight-2, 1) // minus title and blank line
		m.refreshDetails()
		return m, nil

	case MsgReportReady:
		m.Loading = false
		m.Err = nil
		m.Report = model.Report(msg)
		m.performSearch()
		m.Source.Logger.Debug("Report loaded", zap.String("id", m.Report.ID), zap.Int("hunks", len(m.Report.Hunks)))
		return m, nil

	case MsgError:
		m.Err = msg
		m.Loading = false
		return m, nil

	case MsgSaved:
		if msg.Err != nil {
			m.StatusMsg = fmt.Sprintf("Save failed: %v", msg.Err)
		} else {
			m.StatusMsg = fmt.Sprintf("Report saved to %s", msg.Path)
		}
		return m, nil

	case tea.KeyMsg:
		if m.InputMode {
			switch msg.Type {
			case tea.KeyEnter:
				m.InputMode = false
				m.InputBuffer.Blur()
				m.performSearch()
				return m, nil
			case tea.KeyEsc:
				m.InputMode = false
				m.InputBuffer.Blur()
				m.InputBuffer.SetValue("")
				m.performSearch()
				return m, nil
			}
			m.InputBuffer, cmd = m.InputBuffer.Update(msg)
			return m, cmd
		}

		if m.ShowHelp || m.ShowStats {
			return m.updatePopup(msg)
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc":
			if m.SearchActive {
				m.InputBuffer.SetValue("")
				m.performSearch()
				return m, nil
			}
			m.RightFocus = false
		case "tab":
			m.RightFocus = !m.RightFocus
		case "up", "k":
			if m.RightFocus {
				m.DetailsViewport.LineUp(1)
			} else {
				m.moveSelection(-1)
			}
		case "down", "j":
			if m.RightFocus {
				m.DetailsViewport.LineDown(1)
			} else {
				m.moveSelection(1)
			}
		case "p":
			m.moveSelection(-1)
		case "n":
			m.moveSelection(1)
		case "pgup":
			m.DetailsViewport.ViewUp()
		case "pgdown", " ":
			m.DetailsViewport.ViewDown()
		case "home", "g":
			m.SelectedIdx = 0
			m.refreshDetails()
		case "end", "G":
			m.SelectedIdx = max(len(m.FilteredIndices)-1, 0)
			m.refreshDetails()
		case "d":
			m.ShowStats = true
			m.StatsScrollY = 0
		case "?":
			m.ShowHelp = true
			m.HelpScrollY = 0
		case "s":
			if !m.Loading && m.Err == nil {
				return m, SaveReportCmd(m.Report, m.Source.ReportOpts, m.Source.SavePath)
			}
		case "r":
			m.Loading = true
			m.StatusMsg = ""
			return m, InitCompareCmd(m.Source)
		case "/", "w":
			m.InputMode = true
			m.InputBuffer.SetValue("")
			m.InputBuffer.Focus()
			return m, textinput.Blink
		}
	}

	return m, cmd
}

func (m AppModel) updatePopup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	scroll := &m.StatsScrollY
	if m.ShowHelp {
		scroll = &m.HelpScrollY
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc", "?", "d":
		m.ShowHelp = false
		m.ShowStats = false
	case "up", "k":
		if *scroll > 0 {
			*scroll--
		}
	case "down", "j":
		*scroll++
	case "pgup":
		*scroll = max(*scroll-10, 0)
	case "pgdown", " ":
		*scroll += 10
	case "s":
		if m.ShowStats {
			return m, SaveReportCmd(m.Report, m.Source.ReportOpts, m.Source.SavePath)
		}
	}
	return m, nil
}

func (m *AppModel) moveSelection(delta int) {
	next := m.SelectedIdx + delta
	if next < 0 || next >= len(m.FilteredIndices) {
		return
	}
	m.SelectedIdx = next
	m.refreshDetails()
}

// performSearch keeps only the hunks touching a PC that contains the typed
// hex digits.
func (m *AppModel) performSearch() {
	term := strings.ToUpper(strings.TrimSpace(m.InputBuffer.Value()))
	term = strings.TrimPrefix(term, "0X")

	var result []int
	if term == "" {
		m.SearchActive = false
		for i := range m.Report.Hunks {
			result = append(result, i)
		}
	} else {
		m.SearchActive = true
		for i, h := range m.Report.Hunks {
			for _, op := range h.Ops {
				if strings.Contains(op.Entry.PC, term) {
					result = append(result, i)
					break
				}
			}
		}
	}
	m.FilteredIndices = result

	// Bounds check
	if m.SelectedIdx >= len(m.FilteredIndices) {
		m.SelectedIdx = max(len(m.FilteredIndices)-1, 0)
	}
	m.refreshDetails()
}

// refreshDetails renders the selected hunk into the viewport.
func (m *AppModel) refreshDetails() {
	h, idx, ok := m.selectedHunk()
	if !ok {
		m.DetailsViewport.SetContent("No differences to show.")
		return
	}
	m.DetailsViewport.SetContent(renderHunk(h, idx, m.DetailsViewport.Width))
	m.DetailsViewport.GotoTop()
}

// InitCompareCmd runs the comparison in the background.
func InitCompareCmd(src Source) tea.Cmd {
	return func() tea.Msg {
		report, err := src.Comparator.CompareFiles(src.Context, src.LeftPath, src.RightPath, src.Dialect)
		if err != nil {
			src.Logger.Error("Comparison failed", zap.Error(err))
			return MsgError(err)
		}
		return MsgReportReady(report)
	}
}

// SaveReportCmd writes the text report to path.
func SaveReportCmd(r model.Report, opts trace.ReportOptions, path string) tea.Cmd {
	return func() tea.Msg {
		err := os.WriteFile(path, []byte(trace.GenerateReport(r, opts)), 0o644)
		return MsgSaved{Path: path, Err: err}
	}
}
