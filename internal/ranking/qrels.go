package ranking

import (
	"fmt"
	"io"
)

// Qrels stores relevance judgments per query. A relevance of zero or less
// means not relevant.
type Qrels struct {
	table
}

// NewQrels creates an empty judgment set.
func NewQrels() *Qrels {
	return &Qrels{table: newTable()}
}

// QrelsFromDict builds sorted qrels from {query: {doc: relevance}}.
func QrelsFromDict(d map[string]map[string]float64) (*Qrels, error) {
	q := NewQrels()
	if err := q.fill(d); err != nil {
		return nil, err
	}
	return q, nil
}

// QrelsFromFile parses TREC (`query 0 doc rel`) or JSON qrels.
func QrelsFromFile(path string, format Format) (*Qrels, error) {
	f, err := openFile(path, format)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadQrels(f, format)
}

// ReadQrels parses qrels from r.
func ReadQrels(r io.Reader, format Format) (*Qrels, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	if format == FormatJSON {
		d, err := readJSON(r)
		if err != nil {
			return nil, err
		}
		return QrelsFromDict(d)
	}

	q := NewQrels()
	if err := readTRECQrels(r, &q.table); err != nil {
		return nil, err
	}
	return q, nil
}

// Save writes the qrels to path, sorting first.
func (q *Qrels) Save(path string, format Format) error {
	return saveFile(path, format, func(w io.Writer) error {
		return q.Write(w, format)
	})
}

// Write serializes the qrels to w, sorting first.
func (q *Qrels) Write(w io.Writer, format Format) error {
	if err := format.Validate(); err != nil {
		return err
	}
	q.Sort()
	if format == FormatJSON {
		return writeJSON(w, &q.table)
	}
	return writeTRECQrels(w, &q.table)
}

func (q *Qrels) String() string {
	return fmt.Sprintf("Qrels(%s)", q.table.String())
}
