// Package ranking holds runs and relevance judgments as ordered, nested
// query -> document -> score mappings.
//
// A Run and a Qrels share the same container. Mutating a single entry marks
// the container Dirty; bulk insertion and bulk construction leave it Sorted.
// Anything that depends on rank order (persistence, flattening, rank lookups)
// re-sorts first. Containers are not safe for concurrent writers.
package ranking

import (
	"fmt"
	"math"
	"sort"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// State records whether a container is in canonical order.
type State int

const (
	// Dirty means the content may be out of canonical order.
	Dirty State = iota
	// Sorted means query ids ascend and documents descend by score.
	Sorted
)

func (s State) String() string {
	if s == Sorted {
		return "sorted"
	}
	return "dirty"
}

// DocScore is one document and its score within a query.
type DocScore struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

type query struct {
	id   string
	docs []DocScore
	pos  map[string]int
}

func newQuery(id string) *query {
	return &query{
		id:  id,
		pos: make(map[string]int),
	}
}

func (q *query) set(doc string, score float64) {
	if i, ok := q.pos[doc]; ok {
		q.docs[i].Score = score
		return
	}
	q.pos[doc] = len(q.docs)
	q.docs = append(q.docs, DocScore{DocID: doc, Score: score})
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ranksBefore orders by descending score with NaN last, so the order stays
// total for scores added through AddScore.
func ranksBefore(a, b float64) bool {
	if math.IsNaN(b) {
		return !math.IsNaN(a)
	}
	return a > b
}

// sort orders documents by descending score. Equal scores keep their
// current relative order so ranks are reproducible.
func (q *query) sort() {
	sort.SliceStable(q.docs, func(i, j int) bool {
		return ranksBefore(q.docs[i].Score, q.docs[j].Score)
	})
	for i, d := range q.docs {
		q.pos[d.DocID] = i
	}
}

func (q *query) snapshot() map[string]float64 {
	m := make(map[string]float64, len(q.docs))
	for _, d := range q.docs {
		m[d.DocID] = d.Score
	}
	return m
}

// table is the ordered container shared by Run and Qrels.
type table struct {
	queries []*query
	index   map[string]int
	state   State
}

func newTable() table {
	return table{
		index: make(map[string]int),
		state: Sorted,
	}
}

func (t *table) lookup(id string) *query {
	if t.index == nil {
		return nil
	}
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	return t.queries[i]
}

func (t *table) getOrCreate(id string) *query {
	if q := t.lookup(id); q != nil {
		return q
	}
	if t.index == nil {
		t.index = make(map[string]int)
	}
	q := newQuery(id)
	t.index[id] = len(t.queries)
	t.queries = append(t.queries, q)
	return q
}

// AddScore sets the score of doc within query, creating either if needed.
// A NaN score ranks after every other document.
func (t *table) AddScore(queryID, docID string, score float64) {
	t.getOrCreate(queryID).set(docID, score)
	t.state = Dirty
}

// Add merges one query's documents and leaves the container sorted.
func (t *table) Add(queryID string, docIDs []string, scores []float64) error {
	return t.AddMulti([]string{queryID}, [][]string{docIDs}, [][]float64{scores})
}

// AddMulti merges several queries at once. Documents already present are
// updated in place; new ones are appended before sorting. Nothing is
// modified when the input is malformed.
func (t *table) AddMulti(queryIDs []string, docIDs [][]string, scores [][]float64) error {
	if len(queryIDs) != len(docIDs) || len(queryIDs) != len(scores) {
		return apperrors.ValidationErrorf(
			"length mismatch: %d queries, %d document lists, %d score lists",
			len(queryIDs), len(docIDs), len(scores))
	}
	for i, q := range queryIDs {
		if len(docIDs[i]) == 0 {
			return apperrors.ValidationErrorf("query %q has no documents", q)
		}
		if len(docIDs[i]) != len(scores[i]) {
			return apperrors.ValidationErrorf(
				"query %q: %d documents but %d scores", q, len(docIDs[i]), len(scores[i]))
		}
		for j, s := range scores[i] {
			if !isFinite(s) {
				return apperrors.ValidationErrorf("query %q: score of %q is not finite", q, docIDs[i][j])
			}
		}
	}

	for i, qid := range queryIDs {
		q := t.getOrCreate(qid)
		for j, doc := range docIDs[i] {
			q.set(doc, scores[i][j])
		}
	}

	t.state = Dirty
	t.Sort()
	return nil
}

// Sort puts the container in canonical order. It is a no-op when already
// sorted.
func (t *table) Sort() {
	if t.state == Sorted {
		return
	}
	sort.Slice(t.queries, func(i, j int) bool {
		return t.queries[i].id < t.queries[j].id
	})
	for i, q := range t.queries {
		t.index[q.id] = i
		q.sort()
	}
	t.state = Sorted
}

// State reports whether the container is currently sorted.
func (t *table) State() State {
	return t.state
}

// Len returns the number of queries.
func (t *table) Len() int {
	return len(t.queries)
}

// Size is an alias for Len.
func (t *table) Size() int {
	return len(t.queries)
}

// QueryIDs returns query ids in their current order.
func (t *table) QueryIDs() []string {
	ids := make([]string, len(t.queries))
	for i, q := range t.queries {
		ids[i] = q.id
	}
	return ids
}

// Has reports whether a query is present.
func (t *table) Has(queryID string) bool {
	return t.lookup(queryID) != nil
}

// Get returns a copy of one query's document scores.
func (t *table) Get(queryID string) (map[string]float64, error) {
	q := t.lookup(queryID)
	if q == nil {
		return nil, apperrors.NotFoundError(fmt.Sprintf("query %q", queryID))
	}
	return q.snapshot(), nil
}

// Ranked returns one query's documents in rank order, sorting first if
// needed.
func (t *table) Ranked(queryID string) ([]DocScore, error) {
	q := t.lookup(queryID)
	if q == nil {
		return nil, apperrors.NotFoundError(fmt.Sprintf("query %q", queryID))
	}
	t.Sort()
	out := make([]DocScore, len(q.docs))
	copy(out, q.docs)
	return out, nil
}

// ToDict returns a plain nested map copy of the current content.
func (t *table) ToDict() map[string]map[string]float64 {
	d := make(map[string]map[string]float64, len(t.queries))
	for _, q := range t.queries {
		d[q.id] = q.snapshot()
	}
	return d
}

// fill loads a nested map into an empty table and sorts it. Go maps carry
// no insertion order, so documents are first laid out by id to make ties
// deterministic.
func (t *table) fill(d map[string]map[string]float64) error {
	queryIDs := make([]string, 0, len(d))
	for q, docs := range d {
		if len(docs) == 0 {
			return apperrors.ValidationErrorf("query %q has no documents", q)
		}
		for doc, s := range docs {
			if !isFinite(s) {
				return apperrors.ValidationErrorf("query %q: score of %q is not finite", q, doc)
			}
		}
		queryIDs = append(queryIDs, q)
	}
	sort.Strings(queryIDs)

	for _, qid := range queryIDs {
		docs := d[qid]
		docIDs := make([]string, 0, len(docs))
		for doc := range docs {
			docIDs = append(docIDs, doc)
		}
		sort.Strings(docIDs)

		q := t.getOrCreate(qid)
		for _, doc := range docIDs {
			q.set(doc, docs[doc])
		}
	}

	t.state = Dirty
	t.Sort()
	return nil
}

func (t *table) String() string {
	return fmt.Sprintf("queries=%d docs=%d state=%s", len(t.queries), t.docCount(), t.state)
}
