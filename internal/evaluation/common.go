// Package evaluation scores ranked runs against relevance judgments.
//
// Kernels work on flattened, index-aligned pair slices so they never touch
// the nested run structure. Batch drivers fan queries out over a fixed-size
// worker pool; every query writes only its own output slot.
package evaluation

// FilterRelevant returns the pairs with a relevance above zero, in input
// order. The input is not modified.
func FilterRelevant(qrels []Pair) []Pair {
	out := make([]Pair, 0, len(qrels))
	for _, p := range qrels {
		if p.Value > 0 {
			out = append(out, p)
		}
	}
	return out
}

// ResolveCutoff returns the number of run positions to consider: the whole
// list when k <= 0, otherwise min(k, len(run)).
func ResolveCutoff(k int, run []Pair) int {
	if k <= 0 || k > len(run) {
		return len(run)
	}
	return k
}

// relevanceIndex maps each relevant document to its judgment.
func relevanceIndex(relevant []Pair) map[string]float64 {
	idx := make(map[string]float64, len(relevant))
	for _, p := range relevant {
		idx[p.ID] = p.Value
	}
	return idx
}
