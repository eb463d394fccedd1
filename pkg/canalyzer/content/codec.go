package content

import (
	"fmt"

	"github.com/goccy/go-json"
)

type wireRepresentation struct {
	ID   string          `json:"id"`
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type wireField struct {
	Name            string               `json:"name"`
	Representations []wireRepresentation `json:"representations"`
}

type wireContent struct {
	ID     string      `json:"id"`
	Fields []wireField `json:"fields"`
}

// MarshalJSON writes the content with an explicit kind tag per representation.
func (c *Content) MarshalJSON() ([]byte, error) {
	wc := wireContent{ID: c.ID, Fields: make([]wireField, 0, len(c.fields))}
	for _, f := range c.fields {
		wf, err := toWireField(f)
		if err != nil {
			return nil, fmt.Errorf("content %q: %w", c.ID, err)
		}
		wc.Fields = append(wc.Fields, wf)
	}
	return json.Marshal(wc)
}

// UnmarshalJSON restores a content. Decoded contents come from persisted state
// and are returned sealed.
func (c *Content) UnmarshalJSON(data []byte) error {
	var wc wireContent
	if err := json.Unmarshal(data, &wc); err != nil {
		return err
	}
	*c = Content{ID: wc.ID, index: make(map[string]int, len(wc.Fields))}
	for _, wf := range wc.Fields {
		f, err := fromWireField(wf)
		if err != nil {
			return fmt.Errorf("content %q: %w", wc.ID, err)
		}
		if err := c.Append(f); err != nil {
			return err
		}
	}
	c.Seal()
	return nil
}

// MarshalJSON writes a single field in the same layout used inside contents.
func (f *Field) MarshalJSON() ([]byte, error) {
	wf, err := toWireField(f)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wf)
}

// UnmarshalJSON restores a single field.
func (f *Field) UnmarshalJSON(data []byte) error {
	var wf wireField
	if err := json.Unmarshal(data, &wf); err != nil {
		return err
	}
	decoded, err := fromWireField(wf)
	if err != nil {
		return err
	}
	*f = *decoded
	return nil
}

func toWireField(f *Field) (wireField, error) {
	wf := wireField{Name: f.Name, Representations: make([]wireRepresentation, 0, len(f.entries))}
	for _, e := range f.entries {
		data, err := json.Marshal(e.rep)
		if err != nil {
			return wireField{}, fmt.Errorf("field %q representation %q: %w", f.Name, e.id, err)
		}
		wf.Representations = append(wf.Representations, wireRepresentation{
			ID:   e.id,
			Kind: e.rep.Kind(),
			Data: data,
		})
	}
	return wf, nil
}

func fromWireField(wf wireField) (*Field, error) {
	f := NewField(wf.Name)
	for _, wr := range wf.Representations {
		rep, err := DecodeRepresentation(wr.Kind, wr.Data)
		if err != nil {
			return nil, fmt.Errorf("field %q representation %q: %w", wf.Name, wr.ID, err)
		}
		if err := f.Append(wr.ID, rep); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// DecodeRepresentation decodes data into the variant named by kind.
func DecodeRepresentation(kind Kind, data []byte) (Representation, error) {
	var rep Representation
	switch kind {
	case KindFeaturesBag:
		rep = NewFeaturesBag()
	case KindEmbedding:
		rep = &Embedding{}
	case KindGraph:
		rep = &Graph{}
	default:
		return nil, fmt.Errorf("unknown representation kind %q", kind)
	}
	if err := json.Unmarshal(data, rep); err != nil {
		return nil, err
	}
	return rep, nil
}
