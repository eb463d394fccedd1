// Package source defines the raw record sequence the analyzer consumes and a
// few concrete readers for it.
//
// A Source is lazy, finite and restartable: every Iterate call walks the
// records again from the beginning, in the same order. Collection-based
// techniques rely on this to make a statistics pass before production.
package source

import (
	"context"
	"errors"
)

// Record is one raw item: field name -> raw value.
type Record map[string]string

// Get returns the raw value of a field and whether the field is present.
func (r Record) Get(field string) (string, bool) {
	v, ok := r[field]
	return v, ok
}

// Source yields records in a stable order.
type Source interface {
	// Iterate calls fn for each record until the source is exhausted, fn
	// returns an error, or ctx is done. Returning ErrStop ends the walk
	// without error.
	Iterate(ctx context.Context, fn func(Record) error) error
}

// ErrStop can be returned from an Iterate callback to stop early.
var ErrStop = errors.New("stop iteration")

// Memory is an in-memory source, mostly for tests and programmatic use.
type Memory struct {
	records []Record
}

// NewMemory returns a source over the given records.
func NewMemory(records ...Record) *Memory {
	return &Memory{records: records}
}

// Iterate implements Source.
func (m *Memory) Iterate(ctx context.Context, fn func(Record) error) error {
	for _, r := range m.records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Len returns the number of records.
func (m *Memory) Len() int { return len(m.records) }
