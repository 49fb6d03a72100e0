package evaluation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
	"github.com/ricesearch/rice-eval/internal/ranking"
)

// Recorder receives timing for every metric computed.
type Recorder interface {
	RecordEvaluation(metric string, queries int, elapsed time.Duration)
}

// Evaluator flattens qrels and runs and scores them on a worker pool.
type Evaluator struct {
	pool     *Pool
	log      *logger.Logger
	recorder Recorder
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithPool scores on p instead of the default pool.
func WithPool(p *Pool) Option {
	return func(e *Evaluator) {
		e.pool = p
	}
}

// WithRecorder reports metric timings to r.
func WithRecorder(r Recorder) Option {
	return func(e *Evaluator) {
		e.recorder = r
	}
}

// NewEvaluator creates a new evaluator.
func NewEvaluator(log *logger.Logger, opts ...Option) *Evaluator {
	if log == nil {
		log = logger.Discard()
	}
	e := &Evaluator{log: log}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Flatten aligns qrels and run into pair rows, one per qrels query in
// ascending id order. Queries missing from the run get an empty row; run
// queries without judgments are left out. Both inputs are sorted first.
func Flatten(qrels *ranking.Qrels, run *ranking.Run) (queryIDs []string, qrelRows, runRows [][]Pair) {
	qrels.Sort()
	run.Sort()

	queryIDs = qrels.QueryIDs()
	qrelRows = make([][]Pair, len(queryIDs))
	runRows = make([][]Pair, len(queryIDs))
	for i, q := range queryIDs {
		judged, _ := qrels.Ranked(q)
		qrelRows[i] = toPairs(judged)
		if run.Has(q) {
			ranked, _ := run.Ranked(q)
			runRows[i] = toPairs(ranked)
		}
	}
	return queryIDs, qrelRows, runRows
}

func toPairs(docs []ranking.DocScore) []Pair {
	pairs := make([]Pair, len(docs))
	for i, d := range docs {
		pairs[i] = Pair{ID: d.DocID, Value: d.Score}
	}
	return pairs
}

// Evaluate scores run against qrels for every metric spec ("mrr",
// "ndcg@10", ...). Specs are validated before any scoring starts; distinct
// metrics are computed concurrently.
func (e *Evaluator) Evaluate(ctx context.Context, qrels *ranking.Qrels, run *ranking.Run, metrics ...string) (*Report, error) {
	if qrels == nil || run == nil {
		return nil, apperrors.ValidationError("qrels and run are required")
	}
	specs, err := parseSpecs(metrics)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := e.log.WithContext(ctx).WithRun(run.Name)
	queryIDs, qrelRows, runRows := Flatten(qrels, run)
	if skipped := countUnjudged(qrels, run); skipped > 0 {
		log.Debug("Ignoring run queries without judgments", "queries", skipped)
	}

	results := make([][]float64, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			scores, err := EvaluateBatch(e.pool, spec.Kernel, qrelRows, runRows, spec.K)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)
			results[i] = scores
			if e.recorder != nil {
				e.recorder.RecordEvaluation(spec.Name, len(scores), elapsed)
			}
			log.WithMetric(spec.String()).Debug("Metric computed",
				"queries", len(scores),
				"duration", elapsed,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		ID:        uuid.NewString(),
		RunName:   run.Name,
		QueryIDs:  queryIDs,
		Metrics:   make([]string, len(specs)),
		Scores:    make(map[string][]float64, len(specs)),
		Means:     make(map[string]float64, len(specs)),
		CreatedAt: time.Now().UTC(),
	}
	for i, spec := range specs {
		name := spec.String()
		report.Metrics[i] = name
		report.Scores[name] = results[i]
		report.Means[name] = mean(results[i])
	}

	log.Info("Evaluation complete",
		"report_id", report.ID,
		"queries", len(queryIDs),
		"metrics", len(specs),
	)
	return report, nil
}

func parseSpecs(metrics []string) ([]MetricSpec, error) {
	if len(metrics) == 0 {
		return nil, apperrors.ValidationError("at least one metric is required")
	}
	seen := make(map[string]bool, len(metrics))
	specs := make([]MetricSpec, 0, len(metrics))
	for _, m := range metrics {
		spec, err := ParseMetric(m)
		if err != nil {
			return nil, err
		}
		if seen[spec.String()] {
			continue
		}
		seen[spec.String()] = true
		specs = append(specs, spec)
	}
	return specs, nil
}

func countUnjudged(qrels *ranking.Qrels, run *ranking.Run) int {
	n := 0
	for _, q := range run.QueryIDs() {
		if !qrels.Has(q) {
			n++
		}
	}
	return n
}

func mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
