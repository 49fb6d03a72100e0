package ranking

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// DefaultRunName is written in the TREC tag column when a run has no name.
const DefaultRunName = "run"

// maxLineSize bounds a single TREC line.
const maxLineSize = 1 << 20

// writeLines writes one line per (query, doc) in canonical order with no
// trailing newline.
func writeLines(w io.Writer, t *table, line func(q string, rank int, d DocScore) string) error {
	t.Sort()

	bw := bufio.NewWriter(w)
	first := true
	for _, q := range t.queries {
		for i, d := range q.docs {
			if !first {
				if err := bw.WriteByte('\n'); err != nil {
					return apperrors.InternalError("writing trec", err)
				}
			}
			first = false
			if _, err := bw.WriteString(line(q.id, i+1, d)); err != nil {
				return apperrors.InternalError("writing trec", err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return apperrors.InternalError("writing trec", err)
	}
	return nil
}

// runTag makes name usable as the last TREC field: whitespace runs become
// underscores and an empty name becomes DefaultRunName.
func runTag(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return DefaultRunName
	}
	return strings.Join(fields, "_")
}

// writeTRECRun writes `<query> Q0 <doc> <rank> <score> <name>` lines.
func writeTRECRun(w io.Writer, t *table, name string) error {
	name = runTag(name)
	return writeLines(w, t, func(q string, rank int, d DocScore) string {
		return fmt.Sprintf("%s Q0 %s %d %s %s", q, d.DocID, rank, formatScore(d.Score), name)
	})
}

// writeTRECQrels writes `<query> 0 <doc> <relevance>` lines.
func writeTRECQrels(w io.Writer, t *table) error {
	return writeLines(w, t, func(q string, _ int, d DocScore) string {
		return fmt.Sprintf("%s 0 %s %s", q, d.DocID, formatScore(d.Score))
	})
}

// scanFields calls fn with the fields of every non-blank line.
func scanFields(r io.Reader, fn func(lineNo int, fields []string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if err := fn(lineNo, fields); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return apperrors.InternalError("reading trec", err)
	}
	return nil
}

func parseValue(lineNo int, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !isFinite(v) {
		return 0, apperrors.ValidationErrorf("line %d: invalid score %q", lineNo, raw)
	}
	return v, nil
}

// readTRECRun loads run lines into t in file order and returns the tag of
// the first line.
func readTRECRun(r io.Reader, t *table) (string, error) {
	name := ""
	err := scanFields(r, func(lineNo int, f []string) error {
		if len(f) != 6 {
			return apperrors.ValidationErrorf("line %d: expected 6 fields, got %d", lineNo, len(f))
		}
		score, err := parseValue(lineNo, f[4])
		if err != nil {
			return err
		}
		t.getOrCreate(f[0]).set(f[2], score)
		if name == "" {
			name = f[5]
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	t.state = Dirty
	t.Sort()
	return name, nil
}

// readTRECQrels loads judgment lines into t in file order.
func readTRECQrels(r io.Reader, t *table) error {
	err := scanFields(r, func(lineNo int, f []string) error {
		if len(f) != 4 {
			return apperrors.ValidationErrorf("line %d: expected 4 fields, got %d", lineNo, len(f))
		}
		rel, err := parseValue(lineNo, f[3])
		if err != nil {
			return err
		}
		t.getOrCreate(f[0]).set(f[2], rel)
		return nil
	})
	if err != nil {
		return err
	}
	t.state = Dirty
	t.Sort()
	return nil
}
