package search

import (
	"math"
	"reflect"
	"testing"

	"github.com/rankfuse/rankfuse/internal/store"
)

// floatTolerance absorbs the rounding of summed reciprocals; individual
// terms are exact.
const floatTolerance = 1e-12

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= floatTolerance
}

// ranked builds a candidate list from ids in rank order. Native scores are
// deliberately arbitrary: fusion must only look at positions.
func ranked(ids ...int64) []store.Candidate {
	out := make([]store.Candidate, len(ids))
	for i, id := range ids {
		out[i] = store.Candidate{ID: id, Score: float64(100 - i)}
	}
	return out
}

// ============================================================
// Score arithmetic
// ============================================================

func TestFuseBothRankOne(t *testing.T) {
	// Ranked first by both lists: 1/(k+1) + 1/(k+1) = 2/61, the maximum
	// possible fused score for two lists at k=60.
	fused := Fuse(60, ranked(7), ranked(7))

	if len(fused) != 1 {
		t.Fatalf("Fuse() returned %d candidates, want 1", len(fused))
	}
	if want := 2.0 / 61.0; !almostEqual(fused[0].Score, want) {
		t.Errorf("Fuse() score = %.9f, want %.9f", fused[0].Score, want)
	}
}

func TestFuseSingleListContribution(t *testing.T) {
	// A candidate found by only one list at rank r scores exactly 1/(k+r).
	fused := Fuse(60, nil, ranked(11, 12, 13, 14))

	if len(fused) != 4 {
		t.Fatalf("Fuse() returned %d candidates, want 4", len(fused))
	}
	for i, c := range fused {
		rank := i + 1
		if want := 1.0 / float64(60+rank); !almostEqual(c.Score, want) {
			t.Errorf("rank %d: score = %.9f, want %.9f", rank, c.Score, want)
		}
	}
}

func TestFuseRankMonotonicity(t *testing.T) {
	// For a fixed k, a better rank strictly beats a worse one.
	fused := Fuse(60, ranked(1, 2, 3, 4, 5))

	for i := 1; i < len(fused); i++ {
		if fused[i].Score >= fused[i-1].Score {
			t.Errorf("rank %d score %.9f not strictly below rank %d score %.9f",
				i+1, fused[i].Score, i, fused[i-1].Score)
		}
	}
}

func TestFuseKDampening(t *testing.T) {
	tests := []struct {
		name string
		k    int
		want float64
	}{
		{"k=1 both rank one", 1, 1.0},            // 1/2 + 1/2
		{"k=60 both rank one", 60, 2.0 / 61.0},   // standard constant
		{"k=600 both rank one", 600, 2.0 / 601.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fused := Fuse(tt.k, ranked(1), ranked(1))
			if len(fused) != 1 {
				t.Fatalf("Fuse() returned %d candidates, want 1", len(fused))
			}
			if !almostEqual(fused[0].Score, tt.want) {
				t.Errorf("score = %.9f, want %.9f", fused[0].Score, tt.want)
			}
		})
	}
}

// ============================================================
// Union + ordering
// ============================================================

func TestFuseUnionKeepsSingleListCandidates(t *testing.T) {
	// A candidate found by only one ranker must survive fusion.
	fused := Fuse(60, ranked(1, 2), ranked(3, 4))

	seen := make(map[int64]bool, len(fused))
	for _, c := range fused {
		seen[c.ID] = true
	}
	for _, id := range []int64{1, 2, 3, 4} {
		if !seen[id] {
			t.Errorf("candidate %d missing from fused union", id)
		}
	}
}

func TestFuseOverlapOrdering(t *testing.T) {
	// Vector ranking [A, B, C], keyword ranking [B, D]:
	//   B = 1/62 + 1/61 (in both), A = 1/61, D = 1/62, C = 1/63.
	// Consensus wins: B ranks above A even though A beat it on the
	// vector side.
	const (
		a int64 = 10
		b int64 = 20
		c int64 = 30
		d int64 = 40
	)
	fused := Fuse(60, ranked(a, b, c), ranked(b, d))

	wantOrder := []int64{b, a, d, c}
	wantScore := map[int64]float64{
		a: 1.0 / 61.0,
		b: 1.0/62.0 + 1.0/61.0,
		c: 1.0 / 63.0,
		d: 1.0 / 62.0,
	}

	if len(fused) != len(wantOrder) {
		t.Fatalf("Fuse() returned %d candidates, want %d", len(fused), len(wantOrder))
	}
	for i, cand := range fused {
		if cand.ID != wantOrder[i] {
			t.Errorf("position %d: id = %d, want %d", i, cand.ID, wantOrder[i])
		}
		if want := wantScore[cand.ID]; !almostEqual(cand.Score, want) {
			t.Errorf("candidate %d: score = %.9f, want %.9f", cand.ID, cand.Score, want)
		}
	}
}

func TestFusePreservesSingleListOrder(t *testing.T) {
	// With one empty list, fusion degenerates to the other list's order.
	input := []int64{42, 7, 99, 3}
	fused := Fuse(60, ranked(input...), nil)

	if len(fused) != len(input) {
		t.Fatalf("Fuse() returned %d candidates, want %d", len(fused), len(input))
	}
	for i, c := range fused {
		if c.ID != input[i] {
			t.Errorf("position %d: id = %d, want %d", i, c.ID, input[i])
		}
	}
}

// ============================================================
// Determinism
// ============================================================

func TestFuseTieBreakAscendingID(t *testing.T) {
	// Two candidates each ranked first by exactly one list score the same
	// 1/61; the lower id must come first, whichever list it was found by.
	tests := []struct {
		name      string
		vector    []store.Candidate
		keyword   []store.Candidate
		wantOrder []int64
	}{
		{"lower id from vector list", ranked(5), ranked(9), []int64{5, 9}},
		{"lower id from keyword list", ranked(9), ranked(5), []int64{5, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fused := Fuse(60, tt.vector, tt.keyword)
			if len(fused) != len(tt.wantOrder) {
				t.Fatalf("Fuse() returned %d candidates, want %d", len(fused), len(tt.wantOrder))
			}
			for i, c := range fused {
				if c.ID != tt.wantOrder[i] {
					t.Errorf("position %d: id = %d, want %d", i, c.ID, tt.wantOrder[i])
				}
			}
		})
	}
}

func TestFuseDeterministic(t *testing.T) {
	// Identical inputs produce identical output, byte for byte — map
	// iteration order must never leak through.
	vector := ranked(3, 1, 4, 15, 5, 9, 2, 6)
	keyword := ranked(2, 7, 1, 8)

	first := Fuse(60, vector, keyword)
	for i := 0; i < 50; i++ {
		if again := Fuse(60, vector, keyword); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d: Fuse() output differs:\nfirst = %v\nagain = %v", i, first, again)
		}
	}
}

func TestFuseEmptyInputs(t *testing.T) {
	if fused := Fuse(60); len(fused) != 0 {
		t.Errorf("Fuse() with no lists returned %d candidates, want 0", len(fused))
	}
	if fused := Fuse(60, nil, nil); len(fused) != 0 {
		t.Errorf("Fuse() with empty lists returned %d candidates, want 0", len(fused))
	}
}
