package trace

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"tracediff/internal/model"
)

// ReportOptions controls the plain-text report.
type ReportOptions struct {
	MaxPatterns int  // Loop patterns listed before summarizing; <= 0 lists all
	MaxHunks    int  // Hunks printed before summarizing; <= 0 prints all
	Verbose     bool // Prefix every diff line with its source line numbers
}

// DefaultReportOptions lists the first ten loop patterns and every hunk.
func DefaultReportOptions() ReportOptions {
	return ReportOptions{MaxPatterns: 10}
}

// GenerateReport renders a report as human-readable text.
func GenerateReport(r model.Report, opts ReportOptions) string {
	var sb strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&sb, format, args...)
		sb.WriteString("\n")
	}

	line("TRACE COMPARISON REPORT")
	line("%s", strings.Repeat("=", 70))
	line("Left (reference):  %s", describeTrace(r.Left))
	line("Right (candidate): %s", describeTrace(r.Right))
	if r.ID != "" {
		line("Report ID:         %s", r.ID)
	}
	if !r.GeneratedAt.IsZero() {
		line("Generated:         %s", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	}
	line("")

	s := r.Stats
	line("COMPARISON STATISTICS")
	line("%s", strings.Repeat("-", 30))
	line("Left entries (after cleanup):   %s", humanize.Comma(int64(s.LeftEntries)))
	line("Right entries (after cleanup):  %s", humanize.Comma(int64(s.RightEntries)))
	line("Infinite loops removed:         %s", humanize.Comma(int64(s.LoopsRemoved)))
	line("LCS length:                     %s", humanize.Comma(int64(s.LCSLength)))
	line("")
	line("Perfect matches:                %s", humanize.Comma(int64(s.Matches)))
	line("Deletions (left only):          %s", humanize.Comma(int64(s.LeftOnly)))
	line("Insertions (right only):        %s", humanize.Comma(int64(s.RightOnly)))
	line("Match percentage:               %.2f%%", s.MatchPercent)
	line("")

	if len(r.Patterns) > 0 {
		line("INFINITE LOOP PATTERNS DETECTED")
		line("%s", strings.Repeat("-", 40))
		shown := r.Patterns
		if opts.MaxPatterns > 0 && len(shown) > opts.MaxPatterns {
			shown = shown[:opts.MaxPatterns]
		}
		for i, p := range shown {
			line("Pattern %d (%s): %d instructions x %s repetitions", i+1, p.Side, p.Length, humanize.Comma(int64(p.Repetitions)))
			line("  Location: Line %d, Removed: %s entries", p.StartLine, humanize.Comma(int64(p.EntriesRemoved)))
		}
		if rest := len(r.Patterns) - len(shown); rest > 0 {
			line("  ... and %d more patterns", rest)
		}
		line("")
	}

	if r.Identical() {
		line("NO DIFFERENCES FOUND - PERFECT MATCH")
		line("All entries match exactly including register values.")
		return sb.String()
	}

	line("DETAILED DIFFERENCES (Unified Diff Style)")
	line("%s", strings.Repeat("-", 50))
	line("Legend: - = left only, + = right only")
	line("")

	shown := r.Hunks
	if opts.MaxHunks > 0 && len(shown) > opts.MaxHunks {
		shown = shown[:opts.MaxHunks]
	}
	for i, h := range shown {
		if opts.Verbose {
			line("@@ HUNK #%d @@ -%d,%d +%d,%d", i+1, h.LeftStart+1, h.LeftCount(), h.RightStart+1, h.RightCount())
		} else {
			line("@@ HUNK #%d @@", i+1)
		}
		for _, op := range h.Ops {
			if opts.Verbose {
				line("%s %6d  %s", model.Marker(op.Kind), op.Entry.LineNumber, op.Entry.Original)
			} else {
				line("%s %s", model.Marker(op.Kind), op.Entry.Original)
			}
		}
		line("")
	}
	if rest := len(r.Hunks) - len(shown); rest > 0 {
		line("... and %d more difference hunks", rest)
	}

	return sb.String()
}

func describeTrace(t model.TraceInfo) string {
	name := t.Name
	if name == "" {
		name = "(unnamed)"
	}
	if t.Digest == "" {
		return name
	}
	digest := t.Digest
	if len(digest) > 12 {
		digest = digest[:12]
	}
	return fmt.Sprintf("%s (%s lines, blake3 %s)", name, humanize.Comma(int64(t.Lines)), digest)
}
