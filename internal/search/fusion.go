package search

import (
	"sort"

	"github.com/rankfuse/rankfuse/internal/store"
)

// DefaultRRFK is the standard dampening constant from the RRF literature.
// Larger values flatten the advantage of top-ranked candidates.
const DefaultRRFK = 60

// Fuse combines ranked candidate lists into a single ranking using
// Reciprocal Rank Fusion:
//
//	fused(c) = Σ over lists containing c of 1 / (k + rank(c))
//
// where rank is the 1-based position of c within a list. Only positions
// matter; the native scores carried by the inputs are ignored, and the
// returned Score is the fused score.
//
// Fusion is a union: a candidate found by any list appears in the output.
// Appearing in several lists sums contributions, which is what pushes
// consensus candidates to the top. The result is ordered by fused score
// descending, ties broken by ascending id, so equal inputs always produce
// identical output. With two lists the score is bounded by 2/(k+1).
//
// k must be positive; callers normalize zero/negative to DefaultRRFK.
func Fuse(k int, lists ...[]store.Candidate) []store.Candidate {
	scores := make(map[int64]float64)
	for _, list := range lists {
		for i, c := range list {
			scores[c.ID] += 1.0 / float64(k+i+1)
		}
	}
	if len(scores) == 0 {
		return nil
	}

	fused := make([]store.Candidate, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, store.Candidate{ID: id, Score: score})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ID < fused[j].ID
	})
	return fused
}
