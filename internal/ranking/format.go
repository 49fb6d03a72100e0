package ranking

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// Format selects a text serialization.
type Format string

const (
	// FormatTREC is the whitespace separated TREC layout.
	FormatTREC Format = "trec"
	// FormatJSON is a single {query: {doc: score}} object.
	FormatJSON Format = "json"
)

// ParseFormat validates a format selector.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if err := f.Validate(); err != nil {
		return "", err
	}
	return f, nil
}

// Validate fails unless f is trec or json.
func (f Format) Validate() error {
	switch f {
	case FormatTREC, FormatJSON:
		return nil
	default:
		return apperrors.ValidationErrorf("format must be 'trec' or 'json', got %q", string(f))
	}
}

// formatScore renders a score with the fewest digits that parse back to the
// same float64.
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(w io.Writer, t *table) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(t.ToDict()); err != nil {
		return apperrors.InternalError("encoding json", err)
	}
	return nil
}

func readJSON(r io.Reader) (map[string]map[string]float64, error) {
	var d map[string]map[string]float64
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, apperrors.MalformedError("json", err)
	}
	return d, nil
}

// saveFile validates the format, then writes through encode.
func saveFile(path string, format Format, encode func(io.Writer) error) (err error) {
	if err := format.Validate(); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return apperrors.InternalError(fmt.Sprintf("creating %s", path), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = apperrors.InternalError(fmt.Sprintf("closing %s", path), cerr)
		}
	}()

	return encode(f)
}

// openFile validates the format and opens path for reading.
func openFile(path string, format Format) (*os.File, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.FileNotFoundError(path, err)
		}
		return nil, apperrors.InternalError(fmt.Sprintf("opening %s", path), err)
	}
	return f, nil
}
