package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// Relevant: d1 (3) and d2 (2). The run finds d1 at rank 2 and d2 at rank 4.
var (
	metricQrels = pairs("d1", 3, "d2", 2, "d3", 0)
	metricRun   = pairs("d4", 5, "d1", 4, "d3", 3, "d2", 2, "d5", 1)
)

func TestPrecision(t *testing.T) {
	assert.InDelta(t, 0.4, Precision(metricQrels, metricRun, 0), 1e-12)
	assert.InDelta(t, 0.5, Precision(metricQrels, metricRun, 2), 1e-12)
	assert.Equal(t, 0.0, Precision(metricQrels, metricRun, 1))
	assert.Equal(t, 0.0, Precision(metricQrels, nil, 0))
	assert.Equal(t, 0.0, Precision(pairs("d1", 0), metricRun, 0))
}

func TestRecall(t *testing.T) {
	assert.Equal(t, 1.0, Recall(metricQrels, metricRun, 0))
	assert.Equal(t, 0.5, Recall(metricQrels, metricRun, 2))
	assert.Equal(t, 0.0, Recall(metricQrels, metricRun, 1))
	assert.Equal(t, 0.0, Recall(nil, metricRun, 0))
}

func TestAveragePrecision(t *testing.T) {
	// (1/2 + 2/4) / 2
	assert.InDelta(t, 0.5, AveragePrecision(metricQrels, metricRun, 0), 1e-12)
	// Only d1 within k=2: (1/2) / 2
	assert.InDelta(t, 0.25, AveragePrecision(metricQrels, metricRun, 2), 1e-12)
	assert.Equal(t, 0.0, AveragePrecision(pairs("d1", 0), metricRun, 0))
}

func TestNDCG(t *testing.T) {
	idcg := 3/math.Log2(2) + 2/math.Log2(3)

	full := (3/math.Log2(3) + 2/math.Log2(5)) / idcg
	assert.InDelta(t, full, NDCG(metricQrels, metricRun, 0), 1e-12)

	top2 := (3 / math.Log2(3)) / idcg
	assert.InDelta(t, top2, NDCG(metricQrels, metricRun, 2), 1e-12)

	perfect := pairs("d1", 2, "d2", 1)
	assert.InDelta(t, 1.0, NDCG(metricQrels, perfect, 0), 1e-12)
	assert.Equal(t, 0.0, NDCG(pairs("d1", 0), perfect, 0))
}

func TestMetrics_EmptyRelevanceIsZero(t *testing.T) {
	for name, kernel := range kernels {
		t.Run(name, func(t *testing.T) {
			for _, k := range []int{0, 1, 10} {
				assert.Equal(t, 0.0, kernel(pairs("d1", 0, "d2", -1), metricRun, k))
			}
		})
	}
}

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		k       int
		str     string
		wantErr bool
	}{
		{in: "mrr", name: MetricMRR, str: "mrr"},
		{in: "MRR@10", name: MetricMRR, k: 10, str: "mrr@10"},
		{in: " ndcg@5 ", name: MetricNDCG, k: 5, str: "ndcg@5"},
		{in: "precision@0", name: MetricPrecision, str: "precision"},
		{in: "map@100", name: MetricMAP, k: 100, str: "map@100"},
		{in: "recall@3", name: MetricRecall, k: 3, str: "recall@3"},
		{in: "mrr@-1", wantErr: true},
		{in: "mrr@ten", wantErr: true},
		{in: "bleu", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			spec, err := ParseMetric(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, spec.Name)
			assert.Equal(t, tt.k, spec.K)
			assert.Equal(t, tt.str, spec.String())
			assert.NotNil(t, spec.Kernel)
		})
	}
}

func TestMetricNames(t *testing.T) {
	assert.Equal(t, []string{"map", "mrr", "ndcg", "precision", "recall"}, MetricNames())
}
