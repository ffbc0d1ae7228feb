package model

import (
	"fmt"
	"time"
)

// OpKind tags an edit-script operation.
type OpKind int

const (
	OpMatch     OpKind = iota // present and unchanged on both sides
	OpLeftOnly                // present only in the reference (left) trace
	OpRightOnly               // present only in the candidate (right) trace
)

func (k OpKind) String() string {
	switch k {
	case OpMatch:
		return "equal"
	case OpLeftOnly:
		return "delete"
	case OpRightOnly:
		return "insert"
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// MarshalText encodes the kind as its String form.
func (k OpKind) MarshalText() ([]byte, error) {
	switch k {
	case OpMatch, OpLeftOnly, OpRightOnly:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("invalid op kind %d", int(k))
}

// UnmarshalText decodes "equal", "delete" or "insert".
func (k *OpKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "equal":
		*k = OpMatch
	case "delete":
		*k = OpLeftOnly
	case "insert":
		*k = OpRightOnly
	default:
		return fmt.Errorf("invalid op kind %q", string(b))
	}
	return nil
}

// EditOp is one step of the edit script. The index of the side an op does
// not touch is -1.
type EditOp struct {
	Kind       OpKind     `json:"kind"`
	LeftIndex  int        `json:"leftIndex"`
	RightIndex int        `json:"rightIndex"`
	Entry      TraceEntry `json:"entry"`
}

// Match builds an op for an entry present on both sides.
func Match(left, right int, e TraceEntry) EditOp {
	return EditOp{Kind: OpMatch, LeftIndex: left, RightIndex: right, Entry: e}
}

// LeftOnly builds an op for an entry only the left trace has.
func LeftOnly(left int, e TraceEntry) EditOp {
	return EditOp{Kind: OpLeftOnly, LeftIndex: left, RightIndex: -1, Entry: e}
}

// RightOnly builds an op for an entry only the right trace has.
func RightOnly(right int, e TraceEntry) EditOp {
	return EditOp{Kind: OpRightOnly, LeftIndex: -1, RightIndex: right, Entry: e}
}

// PatternRecord describes one suppressed loop.
type PatternRecord struct {
	Side           string `json:"side,omitempty"` // "left" or "right", set by the comparator
	Length         int    `json:"length"`         // Instructions per iteration
	Repetitions    int    `json:"repetitions"`    // Consecutive iterations found
	StartIndex     int    `json:"startIndex"`     // Index of the first iteration in the parsed trace
	StartLine      int    `json:"startLine"`      // Source line of the first iteration
	EntriesRemoved int    `json:"entriesRemoved"` // (Repetitions-2) * Length
}

// Hunk is a group of changes with surrounding context.
type Hunk struct {
	LeftStart  int      `json:"leftStart"`  // Position in the cleaned left trace where the hunk begins
	RightStart int      `json:"rightStart"` // Position in the cleaned right trace where the hunk begins
	Ops        []EditOp `json:"ops"`
}

// LeftCount is the number of left-side entries the hunk covers.
func (h Hunk) LeftCount() int {
	n := 0
	for _, op := range h.Ops {
		if op.Kind != OpRightOnly {
			n++
		}
	}
	return n
}

// RightCount is the number of right-side entries the hunk covers.
func (h Hunk) RightCount() int {
	n := 0
	for _, op := range h.Ops {
		if op.Kind != OpLeftOnly {
			n++
		}
	}
	return n
}

// Statistics are the aggregate counters of one comparison.
type Statistics struct {
	LeftParsed   int     `json:"leftParsed"`   // Entries parsed before loop suppression
	RightParsed  int     `json:"rightParsed"`
	LeftEntries  int     `json:"leftEntries"`  // Entries after loop suppression
	RightEntries int     `json:"rightEntries"`
	LoopsRemoved int     `json:"loopsRemoved"` // Entries dropped by loop suppression, both sides
	PatternCount int     `json:"patternCount"` // Loops detected, both sides
	LCSLength    int     `json:"lcsLength"`
	Matches      int     `json:"matches"`
	LeftOnly     int     `json:"leftOnly"`
	RightOnly    int     `json:"rightOnly"`
	MatchPercent float64 `json:"matchPercent"`
}

// TraceInfo identifies one input trace.
type TraceInfo struct {
	Name   string `json:"name"`
	Digest string `json:"digest,omitempty"` // BLAKE3 of the decompressed contents
	Lines  int    `json:"lines"`            // Raw lines read, parsed or not
}

// Report is the result of one comparison. It is never modified after
// construction.
type Report struct {
	ID          string          `json:"id"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Left        TraceInfo       `json:"left"`
	Right       TraceInfo       `json:"right"`
	Stats       Statistics      `json:"stats"`
	Patterns    []PatternRecord `json:"patterns"`
	EditScript  []EditOp        `json:"editScript"`
	Hunks       []Hunk          `json:"hunks"`
}

// Identical reports whether the traces aligned without a single change.
func (r Report) Identical() bool {
	return len(r.Hunks) == 0
}
