package content

import (
	"fmt"

	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
)

type entry struct {
	id  string
	rep Representation
}

// Field holds the representations computed for one named record attribute.
// Representations keep insertion order, which is pipeline order. Each one is
// addressable by its position (internal index) or by its pipeline id.
type Field struct {
	Name    string
	entries []entry
	alias   map[string]int
	sealed  bool
}

// NewField returns an empty field.
func NewField(name string) *Field {
	return &Field{Name: name, alias: make(map[string]int)}
}

// Append adds a representation under id. Ids are unique within the field.
func (f *Field) Append(id string, rep Representation) error {
	if f.sealed {
		return fmt.Errorf("field %q: %w", f.Name, internalerr.ErrSealed)
	}
	if rep == nil {
		return fmt.Errorf("field %q: nil representation: %w", f.Name, internalerr.ErrInvalidInput)
	}
	if f.alias == nil {
		f.alias = make(map[string]int)
	}
	if _, dup := f.alias[id]; dup {
		return fmt.Errorf("field %q: representation %q: %w", f.Name, id, internalerr.ErrDuplicate)
	}
	f.alias[id] = len(f.entries)
	f.entries = append(f.entries, entry{id: id, rep: rep})
	return nil
}

// Get returns the representation stored under id.
func (f *Field) Get(id string) (Representation, bool) {
	i, ok := f.alias[id]
	if !ok {
		return nil, false
	}
	return f.entries[i].rep, true
}

// At returns the i-th representation in insertion order.
func (f *Field) At(i int) (Representation, bool) {
	if i < 0 || i >= len(f.entries) {
		return nil, false
	}
	return f.entries[i].rep, true
}

// Len returns the number of representations.
func (f *Field) Len() int { return len(f.entries) }

// IDs returns the representation ids in insertion order.
func (f *Field) IDs() []string {
	ids := make([]string, len(f.entries))
	for i, e := range f.entries {
		ids[i] = e.id
	}
	return ids
}

// Representations returns the representations in insertion order.
func (f *Field) Representations() []Representation {
	reps := make([]Representation, len(f.entries))
	for i, e := range f.entries {
		reps[i] = e.rep
	}
	return reps
}
