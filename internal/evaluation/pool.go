package evaluation

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// chunksPerWorker controls how finely a batch is split. A few chunks per
// worker smooths out queries of uneven length.
const chunksPerWorker = 4

// Pool is a fixed-size worker pool for data-parallel scoring. It keeps no
// per-batch state and can be shared by concurrent callers.
type Pool struct {
	pool *ants.Pool
	size int
}

// NewPool creates a pool with size workers. size <= 0 uses GOMAXPROCS.
func NewPool(size int) (*Pool, error) {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create scoring pool: %w", err)
	}
	return &Pool{pool: p, size: size}, nil
}

var defaultPool = sync.OnceValues(func() (*Pool, error) {
	return NewPool(0)
})

// DefaultPool returns the process-wide pool, creating it on first use.
func DefaultPool() (*Pool, error) {
	return defaultPool()
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Release stops the workers. The default pool should never be released.
func (p *Pool) Release() {
	p.pool.Release()
}

// Run calls fn(i) for every i in [0, n) and waits for all calls to finish.
// Indices are handed out in contiguous chunks; fn must only write state
// owned by its index. A panic in fn stops its chunk and is returned as an
// error once every chunk has finished.
func (p *Pool) Run(n int, fn func(i int)) error {
	if n <= 0 {
		return nil
	}

	chunks := min(p.size*chunksPerWorker, n)
	step := (n + chunks - 1) / chunks

	var (
		wg        sync.WaitGroup
		panicOnce sync.Once
		panicErr  error
		submitErr error
	)
	for start := 0; start < n; start += step {
		end := min(start+step, n)
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			i := start
			defer func() {
				if r := recover(); r != nil {
					panicOnce.Do(func() {
						panicErr = fmt.Errorf("scoring task panicked at index %d: %v", i, r)
					})
				}
			}()
			for ; i < end; i++ {
				fn(i)
			}
		})
		if err != nil {
			wg.Done()
			submitErr = fmt.Errorf("submit scoring task: %w", err)
			break
		}
	}
	wg.Wait()

	if panicErr != nil {
		return panicErr
	}
	return submitErr
}

// EvaluateBatch applies kernel to every query. qrels and runs are
// index-aligned; the result has one score per query in the same order and
// does not depend on the pool size. A nil pool uses DefaultPool.
func EvaluateBatch(pool *Pool, kernel Kernel, qrels, runs [][]Pair, k int) ([]float64, error) {
	if k < 0 {
		return nil, apperrors.ValidationErrorf("k must be >= 0, got %d", k)
	}
	if len(qrels) != len(runs) {
		return nil, apperrors.ValidationErrorf(
			"qrels and runs must be aligned: %d vs %d queries", len(qrels), len(runs))
	}

	if pool == nil {
		var err error
		if pool, err = DefaultPool(); err != nil {
			return nil, apperrors.InternalError("default scoring pool", err)
		}
	}

	scores := make([]float64, len(qrels))
	err := pool.Run(len(qrels), func(i int) {
		scores[i] = kernel(qrels[i], runs[i], k)
	})
	if err != nil {
		return nil, apperrors.InternalError("batch scoring", err)
	}
	return scores, nil
}
