package trace

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracediff/internal/model"
)

// referenceAlign is the textbook table fill and traceback, with no suffix
// trimming or key interning.
func referenceAlign(left, right []model.TraceEntry) []model.EditOp {
	m, n := len(left), len(right)
	t := make([][]int, m+1)
	for i := range t {
		t[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if left[i-1].Equal(right[j-1]) {
				t[i][j] = t[i-1][j-1] + 1
			} else {
				t[i][j] = max(t[i-1][j], t[i][j-1])
			}
		}
	}

	ops := []model.EditOp{}
	i, j := m, n
	for i > 0 || j > 0 {
		if i > 0 && j > 0 && left[i-1].Equal(right[j-1]) {
			ops = append(ops, model.Match(i-1, j-1, left[i-1]))
			i--
			j--
		} else if j > 0 && (i == 0 || t[i][j-1] >= t[i-1][j]) {
			ops = append(ops, model.RightOnly(j-1, right[j-1]))
			j--
		} else {
			ops = append(ops, model.LeftOnly(i-1, left[i-1]))
			i--
		}
	}
	for a, b := 0, len(ops)-1; a < b; a, b = a+1, b-1 {
		ops[a], ops[b] = ops[b], ops[a]
	}
	return ops
}

// bruteLCS is an independent memoized recursion.
func bruteLCS(a, b string) int {
	memo := map[[2]int]int{}
	var rec func(i, j int) int
	rec = func(i, j int) int {
		if i == len(a) || j == len(b) {
			return 0
		}
		k := [2]int{i, j}
		if v, ok := memo[k]; ok {
			return v
		}
		var v int
		if a[i] == b[j] {
			v = 1 + rec(i+1, j+1)
		} else {
			v = max(rec(i+1, j), rec(i, j+1))
		}
		memo[k] = v
		return v
	}
	return rec(0, 0)
}

func randomSymbols(rng *rand.Rand, alphabet string, maxLen int) string {
	n := rng.Intn(maxLen + 1)
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return string(b)
}

func TestAlign_ScenarioA_LeftOnly(t *testing.T) {
	e := mk("100", "13", "x1=5")
	ops, err := Align([]model.TraceEntry{e}, nil)
	require.NoError(t, err)

	if diff := cmp.Diff([]model.EditOp{model.LeftOnly(0, e)}, ops); diff != "" {
		t.Errorf("edit script mismatch (-want +got):\n%s", diff)
	}
}

func TestAlign_ScenarioB_Identical(t *testing.T) {
	left := seq("ABCDE")
	right := seq("ABCDE")
	ops, err := Align(left, right)
	require.NoError(t, err)

	require.Len(t, ops, 5)
	for i, op := range ops {
		assert.Equal(t, model.Match(i, i, left[i]), op)
	}
}

func TestAlign_ScenarioD_TieBreakPrefersRightOnly(t *testing.T) {
	left := seq("ABC")
	right := seq("AXC")
	ops, err := Align(left, right)
	require.NoError(t, err)

	want := []model.EditOp{
		model.Match(0, 0, left[0]),
		model.LeftOnly(1, left[1]),
		model.RightOnly(1, right[1]),
		model.Match(2, 2, left[2]),
	}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Errorf("edit script mismatch (-want +got):\n%s", diff)
	}
}

func TestAlign_TiePreferenceConstant(t *testing.T) {
	assert.Equal(t, model.OpRightOnly, TiePreference)
	assert.True(t, preferRight(2, 2))
	assert.True(t, preferRight(3, 2))
	assert.False(t, preferRight(1, 2))

	// With nothing in common every tie goes right first during traceback,
	// so after reversal the left-only entries lead.
	ops, err := Align(seq("AB"), seq("XY"))
	require.NoError(t, err)
	assert.Equal(t, "LLRR", kindsOf(ops))
}

func TestAlign_EmptySides(t *testing.T) {
	ops, err := Align(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, ops)

	right := seq("ABC")
	ops, err = Align(nil, right)
	require.NoError(t, err)
	assert.Equal(t, "RRR", kindsOf(ops))
	for i, op := range ops {
		assert.Equal(t, i, op.RightIndex)
		assert.Equal(t, -1, op.LeftIndex)
	}
}

func TestAlign_ExtraValuesMatter(t *testing.T) {
	left := []model.TraceEntry{mk("100", "13", "x1 0x5"), mk("104", "93", "x2 0x1")}
	right := []model.TraceEntry{mk("100", "13", "x1 0x6"), mk("104", "93", "x2 0x1")}

	ops, err := Align(left, right)
	require.NoError(t, err)
	assert.Equal(t, "LRM", kindsOf(ops))
}

func TestAlign_MatchesReferenceImplementation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for n := 0; n < 300; n++ {
		a := randomSymbols(rng, "ABC", 14)
		b := randomSymbols(rng, "ABC", 14)

		got, err := Align(seq(a), seq(b))
		require.NoError(t, err)
		if diff := cmp.Diff(referenceAlign(seq(a), seq(b)), got); diff != "" {
			t.Fatalf("Align(%q, %q) differs from reference (-want +got):\n%s", a, b, diff)
		}
	}
}

func TestAlign_BothEmptyMatchesReference(t *testing.T) {
	got, err := Align(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, cmp.Diff(referenceAlign(nil, nil), got))
}

func TestAlign_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 300; n++ {
		a := randomSymbols(rng, "ABCD", 16)
		b := randomSymbols(rng, "ABCD", 16)
		left, right := seq(a), seq(b)

		ops, err := Align(left, right)
		require.NoError(t, err)

		// Optimality: matches equal the LCS length.
		matches := 0
		for _, op := range ops {
			if op.Kind == model.OpMatch {
				matches++
			}
		}
		want := bruteLCS(a, b)
		assert.Equal(t, want, matches, "a=%q b=%q", a, b)

		lcs, err := (&Aligner{}).LCSLength(left, right)
		require.NoError(t, err)
		assert.Equal(t, want, lcs)

		// Order: each side is reproduced exactly, indices ascending.
		var gotLeft, gotRight []model.TraceEntry
		for _, op := range ops {
			switch op.Kind {
			case model.OpMatch:
				gotLeft = append(gotLeft, left[op.LeftIndex])
				gotRight = append(gotRight, right[op.RightIndex])
				assert.True(t, left[op.LeftIndex].Equal(right[op.RightIndex]))
			case model.OpLeftOnly:
				gotLeft = append(gotLeft, left[op.LeftIndex])
			case model.OpRightOnly:
				gotRight = append(gotRight, right[op.RightIndex])
			}
		}
		assert.Equal(t, len(left), len(gotLeft))
		assert.Equal(t, len(right), len(gotRight))
		for i := range gotLeft {
			assert.Equal(t, left[i], gotLeft[i])
		}
		for i := range gotRight {
			assert.Equal(t, right[i], gotRight[i])
		}

		// Determinism.
		again, err := Align(left, right)
		require.NoError(t, err)
		assert.Equal(t, ops, again)
	}
}

func TestAlign_ResourceExceeded(t *testing.T) {
	left := seq("ABCDEFGH")
	right := seq("HGFEDCBA")

	_, err := AlignWithLimit(left, right, 50)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResourceExceeded))

	var re *ResourceError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 9, re.Rows)
	assert.Equal(t, 9, re.Cols)
	assert.EqualValues(t, 50, re.Limit)

	_, err = AlignWithLimit(left, right, 81)
	assert.NoError(t, err)
}

func TestAlign_CommonSuffixNeedsNoTable(t *testing.T) {
	// Identical traces never allocate a table beyond 1x1.
	big := seq(repeat("ABCDEFGHIJ", 50))
	ops, err := AlignWithLimit(big, big, 1)
	require.NoError(t, err)
	assert.Len(t, ops, 500)
	for _, op := range ops {
		require.Equal(t, model.OpMatch, op.Kind)
	}
}
