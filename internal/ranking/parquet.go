package ranking

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/parquet-go/parquet-go"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// parquetRow is one (query, doc, score) row in a Parquet run file.
type parquetRow struct {
	QueryID string  `parquet:"q_id"`
	DocID   string  `parquet:"doc_id"`
	Score   float64 `parquet:"score"`
}

// SaveParquet writes the run in rank order as a zstd compressed Parquet
// file with columns q_id, doc_id and score.
func (r *Run) SaveParquet(path string) (err error) {
	r.Sort()

	f, err := os.Create(path)
	if err != nil {
		return apperrors.InternalError(fmt.Sprintf("creating %s", path), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = apperrors.InternalError(fmt.Sprintf("closing %s", path), cerr)
		}
	}()

	rows := make([]parquetRow, 0, r.docCount())
	for _, q := range r.queries {
		for _, d := range q.docs {
			rows = append(rows, parquetRow{QueryID: q.id, DocID: d.DocID, Score: d.Score})
		}
	}

	pw := parquet.NewGenericWriter[parquetRow](f, parquet.Compression(&parquet.Zstd))
	if _, err := pw.Write(rows); err != nil {
		_ = pw.Close()
		return apperrors.InternalError("writing parquet rows", err)
	}
	if err := pw.Close(); err != nil {
		return apperrors.InternalError("closing parquet writer", err)
	}
	return nil
}

// RunFromParquet reads a Parquet run file. Rows go through an Arrow record
// so the same column checks as RunFromTable apply.
func RunFromParquet(path string) (*Run, error) {
	rows, err := readParquetRows(path)
	if err != nil {
		return nil, err
	}

	b := array.NewRecordBuilder(memory.DefaultAllocator, TableSchema)
	defer b.Release()

	qb := b.Field(0).(*array.StringBuilder)
	db := b.Field(1).(*array.StringBuilder)
	sb := b.Field(2).(*array.Float64Builder)
	for _, row := range rows {
		qb.Append(row.QueryID)
		db.Append(row.DocID)
		sb.Append(row.Score)
	}

	rec := b.NewRecord()
	defer rec.Release()

	return RunFromTable(rec, ColumnQueryID, ColumnDocID, ColumnScore)
}

func readParquetRows(path string) ([]parquetRow, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.FileNotFoundError(path, err)
		}
		return nil, apperrors.InternalError(fmt.Sprintf("opening %s", path), err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, apperrors.InternalError(fmt.Sprintf("stat %s", path), err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, apperrors.MalformedError("parquet file", err)
	}

	pr := parquet.NewGenericReader[parquetRow](pf)
	defer pr.Close()

	rows := make([]parquetRow, pr.NumRows())
	total := 0
	for total < len(rows) {
		n, err := pr.Read(rows[total:])
		total += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, apperrors.InternalError("reading parquet rows", err)
		}
		if n == 0 {
			break
		}
	}
	return rows[:total], nil
}

func (t *table) docCount() int {
	n := 0
	for _, q := range t.queries {
		n += len(q.docs)
	}
	return n
}
