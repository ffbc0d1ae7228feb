package trace

import (
	"tracediff/internal/model"
)

const (
	DefaultMinPatternLength = 3
	DefaultMinRepetitions   = 20
	// MaxPatternLength caps the loop body length that is searched for.
	MaxPatternLength = 30
	// keptOccurrences is how many iterations of a detected loop stay in the
	// trace, so the loop remains visible in the diff.
	keptOccurrences = 2
)

// SuppressLoops removes long runs of a repeating PC/instruction pattern.
//
// Pattern lengths are tried shortest first and removals are committed
// immediately, so longer lengths only examine entries that survived the
// shorter passes. A repetition only counts when every entry of its window is
// still kept, so a loop already collapsed at a shorter length is not recorded
// again at a multiple of that length. This deliberately differs from counting
// over the raw trace, which would report ABC x60 a second time as a length-6
// pattern. This is a greedy heuristic, not a global optimum. The input slice
// is never modified.
func SuppressLoops(entries []model.TraceEntry, minPatternLength, minRepetitions int) ([]model.TraceEntry, []model.PatternRecord) {
	if minPatternLength < 1 || minRepetitions <= keptOccurrences {
		return entries, nil
	}
	if len(entries) < minPatternLength*minRepetitions {
		return entries, nil
	}

	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.PatternKey()
	}
	kept := make([]bool, len(entries))
	for i := range kept {
		kept[i] = true
	}

	var patterns []model.PatternRecord
	maxLen := min(MaxPatternLength, len(entries)/minRepetitions)
	for l := minPatternLength; l <= maxLen; l++ {
		patterns = detectPatternLength(keys, kept, l, minRepetitions, entries, patterns)
	}

	if len(patterns) == 0 {
		return entries, nil
	}

	out := make([]model.TraceEntry, 0, len(entries))
	for i, e := range entries {
		if kept[i] {
			out = append(out, e)
		}
	}
	return out, patterns
}

// detectPatternLength runs one left-to-right pass for a single pattern length.
func detectPatternLength(keys []string, kept []bool, l, minRepetitions int, entries []model.TraceEntry, patterns []model.PatternRecord) []model.PatternRecord {
	i := 0
	for i <= len(keys)-l*minRepetitions {
		if !windowKept(kept, i, l) {
			i++
			continue
		}

		reps := 1
		pos := i + l
		for pos+l <= len(keys) && windowKept(kept, pos, l) && windowEqual(keys, i, pos, l) {
			reps++
			pos += l
		}

		if reps < minRepetitions {
			i++
			continue
		}

		removeStart := i + keptOccurrences*l
		removeEnd := i + reps*l
		for idx := removeStart; idx < removeEnd; idx++ {
			kept[idx] = false
		}

		patterns = append(patterns, model.PatternRecord{
			Length:         l,
			Repetitions:    reps,
			StartIndex:     i,
			StartLine:      entries[i].LineNumber,
			EntriesRemoved: (reps - keptOccurrences) * l,
		})
		i = removeEnd
	}
	return patterns
}

// windowKept reports whether no entry in kept[a:a+l] was removed by an
// earlier pass. Windows that reach into removed entries are not counted, so
// later passes only see what survived.
func windowKept(kept []bool, a, l int) bool {
	for k := 0; k < l; k++ {
		if !kept[a+k] {
			return false
		}
	}
	return true
}

func windowEqual(keys []string, a, b, l int) bool {
	for k := 0; k < l; k++ {
		if keys[a+k] != keys[b+k] {
			return false
		}
	}
	return true
}
