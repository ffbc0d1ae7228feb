package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracediff/internal/model"
)

func TestSuppressLoops_ScenarioC(t *testing.T) {
	entries := seq(repeat("ABC", 25) + "D")
	require.Len(t, entries, 76)

	cleaned, patterns := SuppressLoops(entries, 3, 20)

	require.Len(t, cleaned, 7)
	for i, want := range "ABCABCD" {
		assert.Equal(t, seq(string(want))[0].FullKey(), cleaned[i].FullKey())
	}
	// Survivors keep their original line numbers.
	assert.Equal(t, 76, cleaned[6].LineNumber)

	require.Len(t, patterns, 1)
	assert.Equal(t, model.PatternRecord{
		Length:         3,
		Repetitions:    25,
		StartIndex:     0,
		StartLine:      1,
		EntriesRemoved: 69,
	}, patterns[0])
}

func TestSuppressLoops_ShortTraceUntouched(t *testing.T) {
	entries := seq(repeat("AB", 20)) // 40 < 3*20
	cleaned, patterns := SuppressLoops(entries, 3, 20)

	assert.Equal(t, entries, cleaned)
	assert.Empty(t, patterns)
}

func TestSuppressLoops_BelowThreshold(t *testing.T) {
	entries := seq("XY" + repeat("ABC", 19) + "ZZZ")
	cleaned, patterns := SuppressLoops(entries, 3, 20)

	assert.Len(t, cleaned, len(entries))
	assert.Empty(t, patterns)
}

func TestSuppressLoops_IgnoresValueDrift(t *testing.T) {
	// Same PC and encoding, counter value changes every iteration.
	var entries []model.TraceEntry
	for i := 0; i < 30; i++ {
		entries = append(entries,
			mk("100", "00150513", "x10 0x"+string(rune('0'+i%10))),
			mk("104", "FE051EE3", ""),
			mk("108", "0000006F", ""),
		)
	}

	cleaned, patterns := SuppressLoops(entries, 3, 20)
	require.Len(t, patterns, 1)
	assert.Equal(t, 30, patterns[0].Repetitions)
	assert.Equal(t, 84, patterns[0].EntriesRemoved)
	assert.Len(t, cleaned, 6)
}

func TestSuppressLoops_LoopInTheMiddle(t *testing.T) {
	prefix := "QRSTUVWXYZ"
	entries := seq(prefix + repeat("ABCD", 22) + "PONM")

	cleaned, patterns := SuppressLoops(entries, 3, 20)
	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, 4, p.Length)
	assert.Equal(t, 22, p.Repetitions)
	assert.Equal(t, len(prefix), p.StartIndex)
	assert.Equal(t, len(prefix)+1, p.StartLine)
	assert.Equal(t, 80, p.EntriesRemoved)
	assert.Len(t, cleaned, len(entries)-80)
}

func TestSuppressLoops_ShorterLengthWins(t *testing.T) {
	// "ABCABC" repeated is also a length-6 loop; the length-3 pass runs first
	// and claims it.
	entries := seq(repeat("ABC", 40))
	_, patterns := SuppressLoops(entries, 3, 20)

	require.Len(t, patterns, 1)
	assert.Equal(t, 3, patterns[0].Length)
	assert.Equal(t, 40, patterns[0].Repetitions)
}

func TestSuppressLoops_CollapsedLoopNotRecordedAgain(t *testing.T) {
	// Length 6 is searched too (180/20 = 9), but only two ABC copies survive
	// the length-3 pass.
	cleaned, patterns := SuppressLoops(seq(repeat("ABC", 60)), 3, 20)

	require.Len(t, patterns, 1)
	assert.Equal(t, 3, patterns[0].Length)
	assert.Equal(t, 60, patterns[0].Repetitions)
	assert.Equal(t, 174, patterns[0].EntriesRemoved)
	assert.Equal(t, seq("ABCABC"), cleaned)
}

func TestSuppressLoops_Idempotent(t *testing.T) {
	inputs := []string{
		repeat("ABC", 25) + "D",
		"XY" + repeat("ABCD", 30) + "Z" + repeat("EFG", 21),
		repeat("ABCDEFGHIJ", 25),
		"ABCDEFG",
	}
	for _, in := range inputs {
		once, _ := SuppressLoops(seq(in), 3, 20)
		twice, patterns := SuppressLoops(once, 3, 20)

		assert.Empty(t, patterns, "input %q", in)
		assert.Equal(t, once, twice)
	}
}

func TestSuppressLoops_DoesNotMutateInput(t *testing.T) {
	entries := seq(repeat("ABC", 25))
	snapshot := append([]model.TraceEntry(nil), entries...)

	_, _ = SuppressLoops(entries, 3, 20)
	assert.Equal(t, snapshot, entries)
}

func TestSuppressLoops_InvalidParameters(t *testing.T) {
	entries := seq(repeat("ABC", 25))

	cleaned, patterns := SuppressLoops(entries, 0, 20)
	assert.Len(t, cleaned, 75)
	assert.Empty(t, patterns)

	cleaned, patterns = SuppressLoops(entries, 3, 2)
	assert.Len(t, cleaned, 75)
	assert.Empty(t, patterns)
}

func TestSuppressLoops_MultiplePatterns(t *testing.T) {
	entries := seq(repeat("ABC", 20) + "XYZ" + repeat("DEFG", 20))
	cleaned, patterns := SuppressLoops(entries, 3, 20)

	require.Len(t, patterns, 2)
	assert.Equal(t, 3, patterns[0].Length)
	assert.Equal(t, 4, patterns[1].Length)
	assert.Equal(t, 63, patterns[1].StartIndex)
	assert.Len(t, cleaned, 6+3+8)
}
