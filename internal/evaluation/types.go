package evaluation

import (
	"time"
)

// Pair is one (document id, value) row of a flattened query. For qrels the
// value is a relevance judgment, for runs it is a retrieval score.
type Pair struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

// Kernel scores one query. The run must already be ordered by descending
// score; k <= 0 means the whole run.
type Kernel func(qrels, run []Pair, k int) float64

// Report holds per-query scores and means for one evaluated run.
type Report struct {
	ID        string               `json:"id"`
	RunName   string               `json:"run_name,omitempty"`
	QueryIDs  []string             `json:"query_ids"`
	Metrics   []string             `json:"metrics"`
	Scores    map[string][]float64 `json:"scores"` // metric -> score per QueryIDs entry
	Means     map[string]float64   `json:"means"`
	CreatedAt time.Time            `json:"created_at"`
}

// QueryScores returns every metric's score for one query.
func (r *Report) QueryScores(queryID string) (map[string]float64, bool) {
	for i, q := range r.QueryIDs {
		if q != queryID {
			continue
		}
		out := make(map[string]float64, len(r.Metrics))
		for _, m := range r.Metrics {
			out[m] = r.Scores[m][i]
		}
		return out, true
	}
	return nil, false
}
