package trace

import (
	"errors"
	"fmt"
	"math"

	"tracediff/internal/model"
)

// TiePreference decides the traceback step when skipping a right entry and
// skipping a left entry keep the same LCS length. Reports produced so far
// attribute such changes to the right (candidate) side; keep it that way so
// hunks stay comparable across runs.
const TiePreference = model.OpRightOnly

// DefaultMaxCells bounds the LCS table (int32 cells, so 1 GiB).
const DefaultMaxCells = 1 << 28

// ErrResourceExceeded is returned when an alignment would need a table
// larger than the configured limit.
var ErrResourceExceeded = errors.New("alignment table exceeds resource limit")

// ResourceError describes an alignment that was refused for size.
type ResourceError struct {
	Rows  int   // len(left)+1 after trimming the common suffix
	Cols  int   // len(right)+1 after trimming the common suffix
	Limit int64 // Maximum number of cells allowed
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("alignment needs a %dx%d table, limit is %d cells: %v", e.Rows, e.Cols, e.Limit, ErrResourceExceeded)
}

func (e *ResourceError) Unwrap() error {
	return ErrResourceExceeded
}

// Aligner computes LCS alignments between two traces.
type Aligner struct {
	MaxCells int64 // Largest table Align will allocate; <= 0 means DefaultMaxCells
}

// Align aligns two traces with the default table limit.
func Align(left, right []model.TraceEntry) ([]model.EditOp, error) {
	return (&Aligner{}).Align(left, right)
}

// AlignWithLimit aligns two traces refusing tables above maxCells.
func AlignWithLimit(left, right []model.TraceEntry, maxCells int64) ([]model.EditOp, error) {
	return (&Aligner{MaxCells: maxCells}).Align(left, right)
}

// Align returns the edit script of an optimal longest-common-subsequence
// alignment, in forward order. Entries are equal when their FullKey matches.
func (a *Aligner) Align(left, right []model.TraceEntry) ([]model.EditOp, error) {
	lk, rk := internKeys(left, right)

	// The traceback starts at (m, n) and matches equal tails first, so the
	// common suffix can be emitted without ever entering the table.
	m, n := len(left), len(right)
	for m > 0 && n > 0 && lk[m-1] == rk[n-1] {
		m--
		n--
	}
	suffix := len(left) - m

	table, err := a.fill(lk[:m], rk[:n])
	if err != nil {
		return nil, err
	}

	ops := make([]model.EditOp, 0, len(left)+len(right)-suffix)
	for k := 0; k < suffix; k++ {
		ops = append(ops, model.Match(len(left)-1-k, len(right)-1-k, left[len(left)-1-k]))
	}

	cols := n + 1
	i, j := m, n
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && lk[i-1] == rk[j-1]:
			ops = append(ops, model.Match(i-1, j-1, left[i-1]))
			i--
			j--
		case j > 0 && (i == 0 || preferRight(table[i*cols+j-1], table[(i-1)*cols+j])):
			ops = append(ops, model.RightOnly(j-1, right[j-1]))
			j--
		default:
			ops = append(ops, model.LeftOnly(i-1, left[i-1]))
			i--
		}
	}

	for l, r := 0, len(ops)-1; l < r; l, r = l+1, r-1 {
		ops[l], ops[r] = ops[r], ops[l]
	}
	return ops, nil
}

// preferRight reports whether the traceback should consume a right entry
// given the LCS values after skipping right (skipRight) or left (skipLeft).
func preferRight(skipRight, skipLeft int32) bool {
	if skipRight != skipLeft {
		return skipRight > skipLeft
	}
	return TiePreference == model.OpRightOnly
}

// LCSLength returns the length of the longest common subsequence.
func (a *Aligner) LCSLength(left, right []model.TraceEntry) (int, error) {
	lk, rk := internKeys(left, right)
	table, err := a.fill(lk, rk)
	if err != nil {
		return 0, err
	}
	return int(table[len(table)-1]), nil
}

// fill builds the (m+1)x(n+1) LCS table in row-major order.
func (a *Aligner) fill(lk, rk []int32) ([]int32, error) {
	rows, cols := len(lk)+1, len(rk)+1

	limit := a.MaxCells
	if limit <= 0 {
		limit = DefaultMaxCells
	}
	if int64(rows) > math.MaxInt64/int64(cols) || int64(rows)*int64(cols) > limit {
		return nil, &ResourceError{Rows: rows, Cols: cols, Limit: limit}
	}

	table := make([]int32, rows*cols)
	for i := 1; i < rows; i++ {
		cur := table[i*cols : (i+1)*cols]
		prev := table[(i-1)*cols : i*cols]
		key := lk[i-1]
		for j := 1; j < cols; j++ {
			if key == rk[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
	}
	return table, nil
}

// internKeys maps every FullKey to a dense id so the table fill compares
// integers instead of strings.
func internKeys(left, right []model.TraceEntry) ([]int32, []int32) {
	ids := make(map[string]int32, len(left))
	intern := func(entries []model.TraceEntry) []int32 {
		out := make([]int32, len(entries))
		for i, e := range entries {
			k := e.FullKey()
			id, ok := ids[k]
			if !ok {
				id = int32(len(ids))
				ids[k] = id
			}
			out[i] = id
		}
		return out
	}
	return intern(left), intern(right)
}
