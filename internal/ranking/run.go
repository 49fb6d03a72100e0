package ranking

import (
	"fmt"
	"io"
)

// Run stores the scores a system under evaluation assigned to documents,
// per query.
type Run struct {
	table

	// Name is the TREC run tag.
	Name string
}

// NewRun creates an empty run.
func NewRun() *Run {
	return &Run{table: newTable()}
}

// RunFromDict builds a sorted run from {query: {doc: score}}. Every query
// must have at least one document.
func RunFromDict(d map[string]map[string]float64) (*Run, error) {
	r := NewRun()
	if err := r.fill(d); err != nil {
		return nil, err
	}
	return r, nil
}

// RunFromFile parses a TREC or JSON run. For TREC the run name is taken
// from the first line.
func RunFromFile(path string, format Format) (*Run, error) {
	f, err := openFile(path, format)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadRun(f, format)
}

// ReadRun parses a run from r.
func ReadRun(r io.Reader, format Format) (*Run, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	if format == FormatJSON {
		d, err := readJSON(r)
		if err != nil {
			return nil, err
		}
		return RunFromDict(d)
	}

	run := NewRun()
	name, err := readTRECRun(r, &run.table)
	if err != nil {
		return nil, err
	}
	run.Name = name
	return run, nil
}

// Save writes the run to path, sorting it first.
func (r *Run) Save(path string, format Format) error {
	return saveFile(path, format, func(w io.Writer) error {
		return r.Write(w, format)
	})
}

// Write serializes the run to w, sorting it first.
func (r *Run) Write(w io.Writer, format Format) error {
	if err := format.Validate(); err != nil {
		return err
	}
	r.Sort()
	if format == FormatJSON {
		return writeJSON(w, &r.table)
	}
	return writeTRECRun(w, &r.table, r.Name)
}

func (r *Run) String() string {
	return fmt.Sprintf("Run(name=%q %s)", r.Name, r.table.String())
}
