package canalyzer

import (
	"errors"
	"time"

	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
)

// Warning kinds.
const (
	WarnMissingField = "missing_field"
	WarnMissingID    = "missing_id"
	WarnDuplicateID  = "duplicate_id"
)

// Warning is a per-record problem that was recovered.
type Warning struct {
	Kind    string `json:"kind"`
	Record  int    `json:"record"`
	ID      string `json:"id,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func newWarning(kind string, err *internalerr.RecordError) Warning {
	return Warning{
		Kind:    kind,
		Record:  err.Index,
		ID:      err.ID,
		Field:   err.Field,
		Message: err.Error(),
		Err:     err,
	}
}

// Report summarizes one fit pass. A failed pass still returns the counts
// reached before the failure.
type Report struct {
	RunID       string         `json:"run_id"`
	ContentType string         `json:"content_type,omitempty"`
	Started     time.Time      `json:"started"`
	Duration    time.Duration  `json:"duration"`
	Records     int            `json:"records"`
	Contents    int            `json:"contents"`
	Skipped     int            `json:"skipped"`
	Refactored  []string       `json:"refactored,omitempty"`
	Committed   map[string]int `json:"committed"`
	Warnings    []Warning      `json:"warnings,omitempty"`
}

// WarningsOf returns the warnings of one kind.
func (r *Report) WarningsOf(kind string) []Warning {
	var out []Warning
	for _, w := range r.Warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

func warningKind(err error) string {
	switch {
	case errors.Is(err, internalerr.ErrMissingID):
		return WarnMissingID
	case errors.Is(err, internalerr.ErrDuplicate):
		return WarnDuplicateID
	default:
		return WarnMissingField
	}
}
