package ranking

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

type tableRow struct {
	q, d string
	v    float64
}

func buildRecord(t *testing.T, mem memory.Allocator, scoreType arrow.DataType, rows []tableRow) arrow.Record {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "query", Type: arrow.BinaryTypes.String},
		{Name: "doc", Type: arrow.BinaryTypes.String},
		{Name: "value", Type: scoreType},
	}, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for _, r := range rows {
		b.Field(0).(*array.StringBuilder).Append(r.q)
		b.Field(1).(*array.StringBuilder).Append(r.d)
		switch vb := b.Field(2).(type) {
		case *array.Float64Builder:
			vb.Append(r.v)
		case *array.Float32Builder:
			vb.Append(float32(r.v))
		case *array.Int64Builder:
			vb.Append(int64(r.v))
		default:
			t.Fatalf("unsupported builder %T", vb)
		}
	}
	return b.NewRecord()
}

func TestRunFromTable(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := buildRecord(t, mem, arrow.PrimitiveTypes.Float64, []tableRow{
		{"q2", "d1", 0.5},
		{"q1", "d1", 1.5},
		{"q1", "d2", 2.5},
		{"q1", "d1", 3.5},
	})
	defer rec.Release()

	r, err := RunFromTable(rec, "query", "doc", "value")
	require.NoError(t, err)
	assert.Equal(t, Sorted, r.State())
	assert.Equal(t, map[string]map[string]float64{
		"q1": {"d1": 3.5, "d2": 2.5},
		"q2": {"d1": 0.5},
	}, r.ToDict(), "the last duplicate row wins")
}

func TestRunFromTable_Float32(t *testing.T) {
	rec := buildRecord(t, memory.NewGoAllocator(), arrow.PrimitiveTypes.Float32, []tableRow{
		{"q1", "d1", 0.5},
	})
	defer rec.Release()

	r, err := RunFromTable(rec, "query", "doc", "value")
	require.NoError(t, err)
	docs, _ := r.Get("q1")
	assert.Equal(t, 0.5, docs["d1"])
}

func TestRunFromTable_Validation(t *testing.T) {
	mem := memory.NewGoAllocator()
	intRec := buildRecord(t, mem, arrow.PrimitiveTypes.Int64, []tableRow{{"q1", "d1", 1}})
	defer intRec.Release()
	floatRec := buildRecord(t, mem, arrow.PrimitiveTypes.Float64, []tableRow{{"q1", "d1", 1}})
	defer floatRec.Release()

	tests := []struct {
		name                 string
		rec                  arrow.Record
		queryCol, doc, score string
	}{
		{"integer scores", intRec, "query", "doc", "value"},
		{"float query column", floatRec, "value", "doc", "value"},
		{"float doc column", floatRec, "query", "value", "value"},
		{"string score column", floatRec, "query", "doc", "doc"},
		{"missing column", floatRec, "query", "doc", "nope"},
		{"nil record", nil, "query", "doc", "value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RunFromTable(tt.rec, tt.queryCol, tt.doc, tt.score)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}

func TestRunFromTable_Nulls(t *testing.T) {
	mem := memory.NewGoAllocator()
	b := array.NewRecordBuilder(mem, TableSchema)
	defer b.Release()

	b.Field(0).(*array.StringBuilder).Append("q1")
	b.Field(1).(*array.StringBuilder).AppendNull()
	b.Field(2).(*array.Float64Builder).Append(1)
	rec := b.NewRecord()
	defer rec.Release()

	_, err := RunFromTable(rec, ColumnQueryID, ColumnDocID, ColumnScore)
	assert.True(t, apperrors.IsValidation(err))
}

func TestRunFromTable_NonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		rec := buildRecord(t, memory.NewGoAllocator(), arrow.PrimitiveTypes.Float64, []tableRow{
			{"q1", "d1", 2},
			{"q1", "d2", v},
		})
		_, err := RunFromTable(rec, "query", "doc", "value")
		rec.Release()
		require.Error(t, err, "score %v", v)
		assert.True(t, apperrors.IsValidation(err))
		assert.Contains(t, err.Error(), "row 1")
	}
}

func TestQrelsFromTable_Integers(t *testing.T) {
	rec := buildRecord(t, memory.NewGoAllocator(), arrow.PrimitiveTypes.Int64, []tableRow{
		{"q1", "d1", 2},
		{"q1", "d2", 0},
	})
	defer rec.Release()

	q, err := QrelsFromTable(rec, "query", "doc", "value")
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]float64{"q1": {"d1": 2, "d2": 0}}, q.ToDict())
}

func TestToTable_RoundTrip(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	r := sampleRun(t)
	rec := r.ToTable(mem)
	defer rec.Release()

	assert.Equal(t, int64(3), rec.NumRows())
	assert.Equal(t, "q1", rec.Column(0).(*array.String).Value(0))
	assert.Equal(t, "d2", rec.Column(1).(*array.String).Value(0))
	assert.Equal(t, 5.0, rec.Column(2).(*array.Float64).Value(0))

	back, err := RunFromTable(rec, ColumnQueryID, ColumnDocID, ColumnScore)
	require.NoError(t, err)
	assert.Equal(t, r.ToDict(), back.ToDict())
}

func TestParquet_RoundTrip(t *testing.T) {
	r := sampleRun(t)
	path := filepath.Join(t.TempDir(), "run.parquet")

	require.NoError(t, r.SaveParquet(path))

	loaded, err := RunFromParquet(path)
	require.NoError(t, err)
	assert.Equal(t, r.ToDict(), loaded.ToDict())
	assert.Equal(t, Sorted, loaded.State())
}

func TestRunFromParquet_Missing(t *testing.T) {
	_, err := RunFromParquet(filepath.Join(t.TempDir(), "missing.parquet"))
	assert.True(t, apperrors.IsNotFound(err))
}
