package trace

import (
	"bytes"
	"fmt"
	"io"

	"github.com/sourcegraph/go-diff/diff"

	"tracediff/internal/model"
)

// UnifiedDiff converts the report's hunks into a unified diff. Line numbers
// are positions in the loop-suppressed traces, and lines are the original
// trace text.
func UnifiedDiff(r model.Report) *diff.FileDiff {
	fd := &diff.FileDiff{
		OrigName: nameOr(r.Left.Name, "left"),
		NewName:  nameOr(r.Right.Name, "right"),
	}

	for i, h := range r.Hunks {
		var body bytes.Buffer
		for _, op := range h.Ops {
			switch op.Kind {
			case model.OpMatch:
				body.WriteByte(' ')
			case model.OpLeftOnly:
				body.WriteByte('-')
			case model.OpRightOnly:
				body.WriteByte('+')
			}
			body.WriteString(op.Entry.Original)
			body.WriteByte('\n')
		}

		leftCount, rightCount := h.LeftCount(), h.RightCount()
		fd.Hunks = append(fd.Hunks, &diff.Hunk{
			OrigStartLine: unifiedStart(h.LeftStart, leftCount),
			OrigLines:     int32(leftCount),
			NewStartLine:  unifiedStart(h.RightStart, rightCount),
			NewLines:      int32(rightCount),
			Section:       fmt.Sprintf("hunk %d", i+1),
			Body:          body.Bytes(),
		})
	}
	return fd
}

// WriteUnified writes the report's hunks as a unified diff.
func WriteUnified(w io.Writer, r model.Report) error {
	if r.Identical() {
		return nil
	}
	out, err := diff.PrintFileDiff(UnifiedDiff(r))
	if err != nil {
		return fmt.Errorf("print unified diff: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// unifiedStart follows the diff(1) convention: a side with no lines in the
// hunk reports the line before the hunk.
func unifiedStart(start, count int) int32 {
	if count == 0 {
		return int32(start)
	}
	return int32(start + 1)
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
