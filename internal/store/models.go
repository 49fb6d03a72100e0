// Package store persists named runs and qrels.
// A document is the dict form of a run or a judgment set, stored under a
// (kind, name) pair.
package store

import (
	"regexp"
	"time"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/ranking"
)

// Kind tells runs and qrels apart.
type Kind string

const (
	KindRun   Kind = "run"
	KindQrels Kind = "qrels"
)

// Validate checks that k is a known kind.
func (k Kind) Validate() error {
	switch k {
	case KindRun, KindQrels:
		return nil
	}
	return apperrors.ValidationErrorf("unknown document kind %q", string(k))
}

// Document is a stored run or judgment set.
type Document struct {
	Name      string                        `json:"name"`
	Kind      Kind                          `json:"kind"`
	RunName   string                        `json:"run_name,omitempty"`
	Data      map[string]map[string]float64 `json:"data"`
	UpdatedAt time.Time                     `json:"updated_at"`
}

// Summary is the listing view of a document.
type Summary struct {
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	RunName   string    `json:"run_name,omitempty"`
	Queries   int       `json:"queries"`
	Docs      int       `json:"docs"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summarize counts the queries and documents held by d.
func (d *Document) Summarize() Summary {
	docs := 0
	for _, scores := range d.Data {
		docs += len(scores)
	}
	return Summary{
		Name:      d.Name,
		Kind:      d.Kind,
		RunName:   d.RunName,
		Queries:   len(d.Data),
		Docs:      docs,
		UpdatedAt: d.UpdatedAt,
	}
}

// NewRunDocument captures run as a document.
func NewRunDocument(name string, run *ranking.Run) *Document {
	return &Document{
		Name:      name,
		Kind:      KindRun,
		RunName:   run.Name,
		Data:      run.ToDict(),
		UpdatedAt: time.Now().UTC(),
	}
}

// NewQrelsDocument captures qrels as a document.
func NewQrelsDocument(name string, qrels *ranking.Qrels) *Document {
	return &Document{
		Name:      name,
		Kind:      KindQrels,
		Data:      qrels.ToDict(),
		UpdatedAt: time.Now().UTC(),
	}
}

// Run rebuilds the stored run.
func (d *Document) Run() (*ranking.Run, error) {
	if d.Kind != KindRun {
		return nil, apperrors.ValidationErrorf("%s %q is not a run", d.Kind, d.Name)
	}
	run, err := ranking.RunFromDict(d.Data)
	if err != nil {
		return nil, err
	}
	run.Name = d.RunName
	return run, nil
}

// Qrels rebuilds the stored judgments.
func (d *Document) Qrels() (*ranking.Qrels, error) {
	if d.Kind != KindQrels {
		return nil, apperrors.ValidationErrorf("%s %q is not a qrels set", d.Kind, d.Name)
	}
	return ranking.QrelsFromDict(d.Data)
}

func (d *Document) clone() *Document {
	c := *d
	c.Data = make(map[string]map[string]float64, len(d.Data))
	for q, scores := range d.Data {
		inner := make(map[string]float64, len(scores))
		for doc, s := range scores {
			inner[doc] = s
		}
		c.Data[q] = inner
	}
	return &c
}

var (
	// nameRegex allows lowercase alphanumerics plus dots, underscores and hyphens.
	nameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

	// MaxNameLength is the maximum length of a document name.
	MaxNameLength = 128
)

// ValidateName validates a document name.
func ValidateName(name string) error {
	if name == "" {
		return apperrors.ValidationError("name cannot be empty")
	}

	if len(name) > MaxNameLength {
		return apperrors.ValidationErrorf("name cannot exceed %d characters", MaxNameLength)
	}

	if !nameRegex.MatchString(name) {
		return apperrors.ValidationError("name must be lowercase alphanumeric with dots, underscores or hyphens")
	}

	return nil
}

// Validate checks name, kind and data.
func (d *Document) Validate() error {
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	if err := d.Kind.Validate(); err != nil {
		return err
	}
	for q, scores := range d.Data {
		if len(scores) == 0 {
			return apperrors.ValidationErrorf("query %q has no documents", q)
		}
	}
	return nil
}
