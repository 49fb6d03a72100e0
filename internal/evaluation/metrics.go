package evaluation

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// Metric names accepted by ParseMetric.
const (
	MetricMRR       = "mrr"
	MetricPrecision = "precision"
	MetricRecall    = "recall"
	MetricMAP       = "map"
	MetricNDCG      = "ndcg"
)

var kernels = map[string]Kernel{
	MetricMRR:       ReciprocalRank,
	MetricPrecision: Precision,
	MetricRecall:    Recall,
	MetricMAP:       AveragePrecision,
	MetricNDCG:      NDCG,
}

// MetricNames lists the supported metric names in sorted order.
func MetricNames() []string {
	names := make([]string, 0, len(kernels))
	for name := range kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MetricSpec is a parsed metric such as "ndcg@10".
type MetricSpec struct {
	Name   string
	K      int
	Kernel Kernel
}

// String renders the metric the way ParseMetric accepts it.
func (m MetricSpec) String() string {
	if m.K > 0 {
		return fmt.Sprintf("%s@%d", m.Name, m.K)
	}
	return m.Name
}

// ParseMetric parses "name" or "name@k".
func ParseMetric(spec string) (MetricSpec, error) {
	name, rawK, hasK := strings.Cut(strings.ToLower(strings.TrimSpace(spec)), "@")

	kernel, ok := kernels[name]
	if !ok {
		return MetricSpec{}, apperrors.ValidationErrorf(
			"unknown metric %q (supported: %s)", name, strings.Join(MetricNames(), ", "))
	}

	k := 0
	if hasK {
		var err error
		k, err = strconv.Atoi(rawK)
		if err != nil {
			return MetricSpec{}, apperrors.ValidationErrorf("metric %q: invalid cutoff %q", spec, rawK)
		}
		if k < 0 {
			return MetricSpec{}, apperrors.ValidationErrorf("metric %q: k must be >= 0, got %d", spec, k)
		}
	}

	return MetricSpec{Name: name, K: k, Kernel: kernel}, nil
}

// hits counts relevant documents in the first cut positions.
func hits(idx map[string]float64, run []Pair, cut int) int {
	n := 0
	for i := 0; i < cut; i++ {
		if _, ok := idx[run[i].ID]; ok {
			n++
		}
	}
	return n
}

// Precision is the fraction of retrieved documents within the cutoff that
// are relevant.
func Precision(qrels, run []Pair, k int) float64 {
	relevant := FilterRelevant(qrels)
	cut := ResolveCutoff(k, run)
	if len(relevant) == 0 || cut == 0 {
		return 0
	}
	return float64(hits(relevanceIndex(relevant), run, cut)) / float64(cut)
}

// Recall is the fraction of relevant documents retrieved within the cutoff.
func Recall(qrels, run []Pair, k int) float64 {
	relevant := FilterRelevant(qrels)
	if len(relevant) == 0 {
		return 0
	}
	cut := ResolveCutoff(k, run)
	return float64(hits(relevanceIndex(relevant), run, cut)) / float64(len(relevant))
}

// AveragePrecision averages precision at every relevant position within
// the cutoff over the number of relevant documents.
func AveragePrecision(qrels, run []Pair, k int) float64 {
	relevant := FilterRelevant(qrels)
	if len(relevant) == 0 {
		return 0
	}
	idx := relevanceIndex(relevant)

	cut := ResolveCutoff(k, run)
	found := 0
	sumPrecision := 0.0
	for i := 0; i < cut; i++ {
		if _, ok := idx[run[i].ID]; ok {
			found++
			sumPrecision += float64(found) / float64(i+1)
		}
	}
	return sumPrecision / float64(len(relevant))
}

// NDCG is DCG of the run over DCG of the ideal ordering of the judgments,
// both truncated at k, with gain equal to the judgment and a log2(rank+1)
// discount.
func NDCG(qrels, run []Pair, k int) float64 {
	relevant := FilterRelevant(qrels)
	if len(relevant) == 0 {
		return 0
	}
	idx := relevanceIndex(relevant)

	cut := ResolveCutoff(k, run)
	dcg := 0.0
	for i := 0; i < cut; i++ {
		dcg += idx[run[i].ID] / math.Log2(float64(i+2))
	}

	ideal := make([]Pair, len(relevant))
	copy(ideal, relevant)
	sort.SliceStable(ideal, func(i, j int) bool {
		return ideal[i].Value > ideal[j].Value
	})

	idcg := 0.0
	for i := 0; i < ResolveCutoff(k, ideal); i++ {
		idcg += ideal[i].Value / math.Log2(float64(i+2))
	}

	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}
