package content

import (
	"fmt"

	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
)

// Content is the structured representation of one raw record, identified by
// the value of the configured id field.
type Content struct {
	ID     string
	fields []*Field
	index  map[string]int
	sealed bool
}

// New creates an empty content.
func New(id string) *Content {
	return &Content{ID: id, index: make(map[string]int)}
}

// Append adds a field. Field names are unique within a content.
func (c *Content) Append(f *Field) error {
	if c.sealed {
		return fmt.Errorf("content %q: %w", c.ID, internalerr.ErrSealed)
	}
	if f == nil {
		return fmt.Errorf("content %q: nil field: %w", c.ID, internalerr.ErrInvalidInput)
	}
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if _, dup := c.index[f.Name]; dup {
		return fmt.Errorf("content %q: field %q: %w", c.ID, f.Name, internalerr.ErrDuplicate)
	}
	c.index[f.Name] = len(c.fields)
	c.fields = append(c.fields, f)
	return nil
}

// Remove deletes the named field. It fails with ErrNotFound for an unknown
// name and with ErrSealed once the content is sealed.
func (c *Content) Remove(name string) error {
	if c.sealed {
		return fmt.Errorf("content %q: %w", c.ID, internalerr.ErrSealed)
	}
	i, ok := c.index[name]
	if !ok {
		return fmt.Errorf("content %q: field %q: %w", c.ID, name, internalerr.ErrNotFound)
	}
	c.fields = append(c.fields[:i], c.fields[i+1:]...)
	delete(c.index, name)
	for j := i; j < len(c.fields); j++ {
		c.index[c.fields[j].Name] = j
	}
	return nil
}

// Field returns the named field.
func (c *Content) Field(name string) (*Field, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.fields[i], true
}

// Fields returns the fields in insertion order.
func (c *Content) Fields() []*Field {
	out := make([]*Field, len(c.fields))
	copy(out, c.fields)
	return out
}

// Seal freezes the content and its fields. Writers seal a content when they
// commit it; further mutation fails with ErrSealed.
func (c *Content) Seal() {
	c.sealed = true
	for _, f := range c.fields {
		f.sealed = true
	}
}

// Sealed reports whether the content has been sealed.
func (c *Content) Sealed() bool { return c.sealed }
