package matching

import "sort"

// Rank scores every candidate against local and returns them ordered by
// similarity, highest first. Candidates with equal scores keep their catalog order.
func Rank(local LocalRecord, candidates []CandidateRecord) []ScoredCandidate {
	scored := make([]ScoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = ScoredCandidate{Candidate: c, Similarity: ScoreCandidate(local, c)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	return scored
}

// BestSimilarity returns the highest similarity across candidates, or 0 when
// there are none.
func BestSimilarity(local LocalRecord, candidates []CandidateRecord) int {
	best := 0
	for _, c := range candidates {
		if s := ScoreCandidate(local, c); s > best {
			best = s
		}
	}
	return best
}

// Best returns the top-ranked candidate, if any.
func Best(ranked []ScoredCandidate) (ScoredCandidate, bool) {
	if len(ranked) == 0 {
		return ScoredCandidate{}, false
	}
	return ranked[0], true
}
