package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"tracediff/internal/model"
	"tracediff/internal/trace"
)

// Source names the two traces and how to compare them.
type Source struct {
	LeftPath   string
	RightPath  string
	Dialect    trace.Dialect // nil sniffs each file
	Comparator *trace.Comparator
	ReportOpts trace.ReportOptions
	SavePath   string // Where 's' writes the text report
	Logger     *zap.Logger
	Context    context.Context // Cancels running comparisons; nil means never
}

// AppModel holds the TUI state.
type AppModel struct {
	// Data
	Source  Source
	Report  model.Report
	Loading bool
	Err     error

	// UI State
	SelectedIdx int // Index into FilteredIndices
	WindowSize  tea.WindowSizeMsg
	RightFocus  bool // Arrow keys scroll the hunk instead of the list
	StatusMsg   string

	// Popups
	ShowStats    bool
	StatsScrollY int
	ShowHelp     bool
	HelpScrollY  int
	HelpContent  string

	// Search State
	InputMode       bool
	InputBuffer     textinput.Model
	FilteredIndices []int // Indices of Report.Hunks to show
	SearchActive    bool

	// Components
	DetailsViewport viewport.Model
}

// InitialModel returns the initial state.
func InitialModel(src Source, helpContent string) AppModel {
	ti := textinput.New()
	ti.Placeholder = "PC (hex)..."
	ti.CharLimit = 18
	ti.Width = 20

	if src.Comparator == nil {
		src.Comparator = trace.NewComparator()
	}
	if src.Logger == nil {
		src.Logger = zap.NewNop()
	}
	if src.Context == nil {
		src.Context = context.Background()
	}
	if src.SavePath == "" {
		src.SavePath = "tracediff-report.txt"
	}

	return AppModel{
		Source:          src,
		Loading:         true,
		InputBuffer:     ti,
		HelpContent:     helpContent,
		DetailsViewport: viewport.New(40, 10),
	}
}

// selectedHunk returns the hunk under the cursor.
func (m AppModel) selectedHunk() (model.Hunk, int, bool) {
	if m.SelectedIdx < 0 || m.SelectedIdx >= len(m.FilteredIndices) {
		return model.Hunk{}, 0, false
	}
	idx := m.FilteredIndices[m.SelectedIdx]
	return m.Report.Hunks[idx], idx, true
}
