package content

import (
	"bufio"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// Collection is an ordered, appendable set of contents that serializes as a
// batch of JSON lines.
type Collection struct {
	items []*Content
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Append adds a content at the end.
func (c *Collection) Append(item *Content) {
	c.items = append(c.items, item)
}

// Len returns the number of contents.
func (c *Collection) Len() int { return len(c.items) }

// At returns the i-th content.
func (c *Collection) At(i int) *Content {
	if i < 0 || i >= len(c.items) {
		return nil
	}
	return c.items[i]
}

// Contents returns a copy of the backing slice.
func (c *Collection) Contents() []*Content {
	out := make([]*Content, len(c.items))
	copy(out, c.items)
	return out
}

// IDs returns content ids in order.
func (c *Collection) IDs() []string {
	ids := make([]string, len(c.items))
	for i, item := range c.items {
		ids[i] = item.ID
	}
	return ids
}

// WriteJSONLines writes one JSON document per content.
func (c *Collection) WriteJSONLines(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, item := range c.items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal content %q: %w", item.ID, err)
		}
		if _, err := bw.Write(data); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadJSONLines decodes a batch written by WriteJSONLines.
func ReadJSONLines(r io.Reader) (*Collection, error) {
	out := NewCollection()
	dec := json.NewDecoder(r)
	for {
		var item Content
		if err := dec.Decode(&item); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return nil, fmt.Errorf("decode content %d: %w", out.Len(), err)
		}
		out.Append(&item)
	}
}
