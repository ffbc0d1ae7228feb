package trace

import (
	"fmt"
	"strings"

	"tracediff/internal/model"
)

// mk builds an entry the way ParseEntry would for "0x<pc> (0x<insn>) <extra>".
func mk(pc, insn, extra string) model.TraceEntry {
	original := fmt.Sprintf("0x%s (0x%s)", strings.ToLower(pc), strings.ToLower(insn))
	if extra != "" {
		original += " " + extra
	}
	return model.TraceEntry{
		PC:          strings.ToUpper(pc),
		Instruction: strings.ToUpper(insn),
		Extra:       extra,
		Original:    original,
	}
}

// seq builds a trace from single-letter symbols; equal letters are equal
// entries. Line numbers are assigned 1..n.
func seq(symbols string) []model.TraceEntry {
	out := make([]model.TraceEntry, 0, len(symbols))
	for i, r := range symbols {
		e := mk(fmt.Sprintf("%X", 0x1000+4*int(r-'A')), "13", "x1 0x"+string(r))
		e.LineNumber = i + 1
		out = append(out, e)
	}
	return out
}

// scriptOf builds an edit script from kinds: M = match, L = left only,
// R = right only.
func scriptOf(kinds string) []model.EditOp {
	var ops []model.EditOp
	l, r := 0, 0
	for i, k := range kinds {
		e := mk(fmt.Sprintf("%X", 0x2000+4*i), "13", "")
		e.LineNumber = i + 1
		switch k {
		case 'M':
			ops = append(ops, model.Match(l, r, e))
			l++
			r++
		case 'L':
			ops = append(ops, model.LeftOnly(l, e))
			l++
		case 'R':
			ops = append(ops, model.RightOnly(r, e))
			r++
		}
	}
	return ops
}

func kindsOf(ops []model.EditOp) string {
	var sb strings.Builder
	for _, op := range ops {
		switch op.Kind {
		case model.OpMatch:
			sb.WriteByte('M')
		case model.OpLeftOnly:
			sb.WriteByte('L')
		case model.OpRightOnly:
			sb.WriteByte('R')
		}
	}
	return sb.String()
}

func repeat(symbols string, n int) string {
	return strings.Repeat(symbols, n)
}
