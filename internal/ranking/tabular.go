package ranking

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// Default column names for tabular import and export.
const (
	ColumnQueryID = "q_id"
	ColumnDocID   = "doc_id"
	ColumnScore   = "score"
)

// TableSchema is the layout produced by ToTable.
var TableSchema = arrow.NewSchema([]arrow.Field{
	{Name: ColumnQueryID, Type: arrow.BinaryTypes.String},
	{Name: ColumnDocID, Type: arrow.BinaryTypes.String},
	{Name: ColumnScore, Type: arrow.PrimitiveTypes.Float64},
}, nil)

// RunFromTable groups the rows of rec by query and builds a sorted run.
// The query and document columns must be strings and the score column a
// float; this is checked before any row is read.
func RunFromTable(rec arrow.Record, queryCol, docCol, scoreCol string) (*Run, error) {
	d, err := groupTable(rec, queryCol, docCol, scoreCol, false)
	if err != nil {
		return nil, err
	}
	return RunFromDict(d)
}

// QrelsFromTable is RunFromTable for judgments. Integer relevance columns
// are accepted as well as floats.
func QrelsFromTable(rec arrow.Record, queryCol, docCol, relCol string) (*Qrels, error) {
	d, err := groupTable(rec, queryCol, docCol, relCol, true)
	if err != nil {
		return nil, err
	}
	return QrelsFromDict(d)
}

// ToTable exports the run in rank order using TableSchema. The caller owns
// the returned record and must Release it.
func (r *Run) ToTable(mem memory.Allocator) arrow.Record {
	return tableRecord(mem, &r.table)
}

// ToTable exports the qrels using TableSchema.
func (q *Qrels) ToTable(mem memory.Allocator) arrow.Record {
	return tableRecord(mem, &q.table)
}

func tableRecord(mem memory.Allocator, t *table) arrow.Record {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	t.Sort()

	b := array.NewRecordBuilder(mem, TableSchema)
	defer b.Release()

	qb := b.Field(0).(*array.StringBuilder)
	db := b.Field(1).(*array.StringBuilder)
	sb := b.Field(2).(*array.Float64Builder)
	for _, q := range t.queries {
		for _, d := range q.docs {
			qb.Append(q.id)
			db.Append(d.DocID)
			sb.Append(d.Score)
		}
	}
	return b.NewRecord()
}

func column(rec arrow.Record, name string) (arrow.Array, error) {
	idx := rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil, apperrors.ValidationErrorf("column %q not found", name)
	}
	return rec.Column(idx[0]), nil
}

func stringColumn(rec arrow.Record, name string) (func(int) string, arrow.Array, error) {
	col, err := column(rec, name)
	if err != nil {
		return nil, nil, err
	}
	switch c := col.(type) {
	case *array.String:
		return c.Value, col, nil
	case *array.LargeString:
		return c.Value, col, nil
	default:
		return nil, nil, apperrors.ValidationErrorf(
			"column %q must be string typed, got %s", name, col.DataType())
	}
}

func numberColumn(rec arrow.Record, name string, allowInt bool) (func(int) float64, arrow.Array, error) {
	col, err := column(rec, name)
	if err != nil {
		return nil, nil, err
	}
	switch c := col.(type) {
	case *array.Float64:
		return c.Value, col, nil
	case *array.Float32:
		return func(i int) float64 { return float64(c.Value(i)) }, col, nil
	case *array.Int64:
		if allowInt {
			return func(i int) float64 { return float64(c.Value(i)) }, col, nil
		}
	case *array.Int32:
		if allowInt {
			return func(i int) float64 { return float64(c.Value(i)) }, col, nil
		}
	}
	want := "float"
	if allowInt {
		want = "float or integer"
	}
	return nil, nil, apperrors.ValidationErrorf(
		"column %q must be %s typed, got %s", name, want, col.DataType())
}

func groupTable(rec arrow.Record, queryCol, docCol, valueCol string, allowInt bool) (map[string]map[string]float64, error) {
	if rec == nil {
		return nil, apperrors.ValidationError("table is nil")
	}

	queryAt, qArr, err := stringColumn(rec, queryCol)
	if err != nil {
		return nil, err
	}
	docAt, dArr, err := stringColumn(rec, docCol)
	if err != nil {
		return nil, err
	}
	valueAt, vArr, err := numberColumn(rec, valueCol, allowInt)
	if err != nil {
		return nil, err
	}

	d := make(map[string]map[string]float64)
	for i := 0; i < int(rec.NumRows()); i++ {
		if qArr.IsNull(i) || dArr.IsNull(i) || vArr.IsNull(i) {
			return nil, apperrors.ValidationErrorf("row %d has a null value", i)
		}
		v := valueAt(i)
		if !isFinite(v) {
			return nil, apperrors.ValidationErrorf("row %d: score %v is not finite", i, v)
		}
		q := queryAt(i)
		docs, ok := d[q]
		if !ok {
			docs = make(map[string]float64)
			d[q] = docs
		}
		docs[docAt(i)] = v
	}
	return d, nil
}
