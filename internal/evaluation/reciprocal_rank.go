package evaluation

// ReciprocalRank returns 1/rank of the first relevant document within the
// cutoff, or 0 when there is none. Queries without any relevant judgment
// score 0.
func ReciprocalRank(qrels, run []Pair, k int) float64 {
	relevant := FilterRelevant(qrels)
	if len(relevant) == 0 {
		return 0
	}
	idx := relevanceIndex(relevant)

	cut := ResolveCutoff(k, run)
	for i := 0; i < cut; i++ {
		if _, ok := idx[run[i].ID]; ok {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// ReciprocalRankBatch scores many queries on the shared pool. qrels[i] and
// runs[i] must describe the same query. k < 0 is rejected before any query
// is scored.
func ReciprocalRankBatch(qrels, runs [][]Pair, k int) ([]float64, error) {
	return EvaluateBatch(nil, ReciprocalRank, qrels, runs, k)
}
