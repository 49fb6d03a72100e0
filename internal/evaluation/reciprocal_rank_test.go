package evaluation

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

func pairs(kv ...any) []Pair {
	out := make([]Pair, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		out = append(out, Pair{ID: kv[i].(string), Value: toFloat(kv[i+1])})
	}
	return out
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int:
		return float64(x)
	case float64:
		return x
	default:
		panic(fmt.Sprintf("unsupported value %T", v))
	}
}

func TestFilterRelevant(t *testing.T) {
	in := pairs("d1", 1, "d2", 0, "d3", -1, "d4", 2)
	orig := append([]Pair(nil), in...)

	got := FilterRelevant(in)
	assert.Equal(t, pairs("d1", 1, "d4", 2), got)
	assert.Equal(t, orig, in, "input must not be modified")
	assert.Empty(t, FilterRelevant(nil))
}

func TestResolveCutoff(t *testing.T) {
	run := pairs("a", 3, "b", 2, "c", 1)

	tests := []struct {
		k    int
		want int
	}{
		{0, 3},
		{-5, 3},
		{1, 1},
		{3, 3},
		{10, 3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("k=%d", tt.k), func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveCutoff(tt.k, run))
		})
	}
	assert.Equal(t, 0, ResolveCutoff(5, nil))
}

func TestReciprocalRank_Scenario(t *testing.T) {
	qrels := pairs("d1", 1, "d2", 0)
	run := pairs("d2", 5, "d1", 3)

	assert.Equal(t, 0.5, ReciprocalRank(qrels, run, 0))
}

func TestReciprocalRank_NoRelevant(t *testing.T) {
	qrels := pairs("d1", 0)
	run := pairs("d1", 9, "d2", 1)

	for _, k := range []int{0, 1, 2, 100} {
		assert.Equal(t, 0.0, ReciprocalRank(qrels, run, k), "k=%d", k)
	}
	assert.Equal(t, 0.0, ReciprocalRank(nil, run, 0))
	assert.Equal(t, 0.0, ReciprocalRank(pairs("d1", -2), nil, 0))
}

func TestReciprocalRank_FirstHit(t *testing.T) {
	run := pairs("a", 10, "b", 9, "c", 8, "d", 7, "e", 6)

	for i, p := range run {
		qrels := pairs(p.ID, 1)
		assert.Equal(t, 1/float64(i+1), ReciprocalRank(qrels, run, 0), "doc %s", p.ID)
		assert.Equal(t, 1/float64(i+1), ReciprocalRank(qrels, run, i+1), "doc %s within k", p.ID)
	}

	// Only the first relevant position counts.
	assert.Equal(t, 1.0/3, ReciprocalRank(pairs("c", 1, "e", 3), run, 0))
}

func TestReciprocalRank_Cutoff(t *testing.T) {
	qrels := pairs("d", 1)
	run := pairs("a", 4, "b", 3, "c", 2, "d", 1)

	assert.Equal(t, 0.25, ReciprocalRank(qrels, run, 0))
	assert.Equal(t, 0.25, ReciprocalRank(qrels, run, 4))
	assert.Equal(t, 0.0, ReciprocalRank(qrels, run, 3))
	assert.Equal(t, 0.0, ReciprocalRank(qrels, run, 1))
}

func TestReciprocalRank_EmptyRun(t *testing.T) {
	assert.Equal(t, 0.0, ReciprocalRank(pairs("d1", 1), nil, 0))
	assert.Equal(t, 0.0, ReciprocalRank(pairs("d1", 1), []Pair{}, 5))
}

func TestReciprocalRankBatch(t *testing.T) {
	qrels := [][]Pair{
		pairs("d1", 1, "d2", 0),
		pairs("d1", 0),
		pairs("x", 2),
	}
	runs := [][]Pair{
		pairs("d2", 5, "d1", 3),
		pairs("d1", 1),
		pairs("a", 3, "b", 2, "x", 1),
	}

	scores, err := ReciprocalRankBatch(qrels, runs, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0, 1.0 / 3}, scores)

	scores, err = ReciprocalRankBatch(qrels, runs, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0, 0}, scores)
}

func TestReciprocalRankBatch_Validation(t *testing.T) {
	_, err := ReciprocalRankBatch([][]Pair{pairs("d1", 1)}, [][]Pair{pairs("d1", 1)}, -1)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = ReciprocalRankBatch([][]Pair{pairs("d1", 1)}, nil, 0)
	assert.True(t, apperrors.IsValidation(err))
}

func TestReciprocalRankBatch_Empty(t *testing.T) {
	scores, err := ReciprocalRankBatch(nil, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func randomBatch(rng *rand.Rand, n int) (qrels, runs [][]Pair) {
	qrels = make([][]Pair, n)
	runs = make([][]Pair, n)
	for i := 0; i < n; i++ {
		docs := 1 + rng.Intn(50)
		for j := 0; j < docs; j++ {
			id := fmt.Sprintf("d%d", rng.Intn(200))
			runs[i] = append(runs[i], Pair{ID: id, Value: float64(docs - j)})
		}
		for j := 0; j < rng.Intn(6); j++ {
			id := fmt.Sprintf("d%d", rng.Intn(200))
			qrels[i] = append(qrels[i], Pair{ID: id, Value: float64(rng.Intn(3))})
		}
	}
	return qrels, runs
}

func TestEvaluateBatch_PoolSizeInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	qrels, runs := randomBatch(rng, 2000)

	want := make([]float64, len(qrels))
	for i := range qrels {
		want[i] = ReciprocalRank(qrels[i], runs[i], 10)
	}

	for _, size := range []int{1, 2, 8, 64} {
		t.Run(fmt.Sprintf("workers=%d", size), func(t *testing.T) {
			pool, err := NewPool(size)
			require.NoError(t, err)
			defer pool.Release()

			for _, kernel := range []Kernel{ReciprocalRank, NDCG} {
				got, err := EvaluateBatch(pool, kernel, qrels, runs, 10)
				require.NoError(t, err)
				if assert.Len(t, got, len(qrels)) {
					for i := range got {
						assert.Equal(t, kernel(qrels[i], runs[i], 10), got[i], "query %d", i)
					}
				}
			}

			got, err := EvaluateBatch(pool, ReciprocalRank, qrels, runs, 10)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}
