package trace

import (
	"tracediff/internal/model"
)

// RowKind classifies one side-by-side row.
type RowKind int

const (
	RowSame      RowKind = iota // context, identical on both sides
	RowChanged                  // same PC, different encoding or side effects
	RowLeftOnly                 // nothing on the right
	RowRightOnly                // nothing on the left
)

// Row is one line of a side-by-side view. Left or Right is nil when that
// side has nothing to show.
type Row struct {
	Kind  RowKind
	Left  *model.TraceEntry
	Right *model.TraceEntry
}

// PairRows lays a hunk out side by side. Inside each block of consecutive
// changes, right-only entries keep their order and are paired with the first
// unused left-only entry at the same PC; unpaired left-only entries follow.
func PairRows(h model.Hunk) []Row {
	var rows []Row
	ops := h.Ops
	i := 0
	for i < len(ops) {
		if ops[i].Kind == model.OpMatch {
			e := ops[i].Entry
			rows = append(rows, Row{Kind: RowSame, Left: &e, Right: &e})
			i++
			continue
		}

		var lefts, rights []model.TraceEntry
		for i < len(ops) && ops[i].Kind != model.OpMatch {
			switch ops[i].Kind {
			case model.OpLeftOnly:
				lefts = append(lefts, ops[i].Entry)
			case model.OpRightOnly:
				rights = append(rights, ops[i].Entry)
			}
			i++
		}
		rows = append(rows, pairBlock(lefts, rights)...)
	}
	return rows
}

func pairBlock(lefts, rights []model.TraceEntry) []Row {
	byPC := make(map[string][]int, len(lefts))
	for idx, e := range lefts {
		byPC[e.PC] = append(byPC[e.PC], idx)
	}
	used := make([]bool, len(lefts))

	rows := make([]Row, 0, len(lefts)+len(rights))
	for k := range rights {
		r := rights[k]
		if cands := byPC[r.PC]; len(cands) > 0 {
			idx := cands[0]
			byPC[r.PC] = cands[1:]
			used[idx] = true
			l := lefts[idx]
			rows = append(rows, Row{Kind: RowChanged, Left: &l, Right: &r})
			continue
		}
		rows = append(rows, Row{Kind: RowRightOnly, Right: &r})
	}
	for idx := range lefts {
		if !used[idx] {
			l := lefts[idx]
			rows = append(rows, Row{Kind: RowLeftOnly, Left: &l})
		}
	}
	return rows
}
