// Package pipeline binds a preprocessing chain to a production technique and
// runs it over one field of one raw record.
package pipeline

import (
	"context"
	"fmt"

	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
	"github.com/cognicore/canalyzer/pkg/canalyzer/preprocess"
	"github.com/cognicore/canalyzer/pkg/canalyzer/source"
	"github.com/cognicore/canalyzer/pkg/canalyzer/technique"
)

// Pipeline orchestrates the flow for one field:
// raw value → preprocessors (in order) → technique
type Pipeline struct {
	ID            string
	Preprocessors []preprocess.Preprocessor
	Technique     technique.Technique
}

// New creates a pipeline. An empty id is assigned when the config is bound.
func New(id string, t technique.Technique, steps ...preprocess.Preprocessor) *Pipeline {
	return &Pipeline{ID: id, Preprocessors: steps, Technique: t}
}

// Preprocess runs the preprocessors in order on a raw value.
func (p *Pipeline) Preprocess(raw string) (preprocess.Value, error) {
	v := preprocess.Raw(raw)
	for _, step := range p.Preprocessors {
		next, err := step.Process(v)
		if err != nil {
			return preprocess.Value{}, &internalerr.TechniqueError{Technique: step.Name(), Err: err}
		}
		v = next
	}
	return v, nil
}

// Execute produces the representation of field for one record.
func Execute(ctx context.Context, p *Pipeline, field string, rec source.Record) (content.Representation, error) {
	raw, ok := rec.Get(field)
	if !ok {
		return nil, &internalerr.RecordError{Index: -1, Field: field, Err: internalerr.ErrMissingField}
	}
	v, err := p.Preprocess(raw)
	if err != nil {
		return nil, withField(err, field)
	}
	rep, err := p.Technique.Produce(ctx, technique.Input{Field: field, Value: v, Record: rec})
	if err != nil {
		return nil, err
	}
	if rep == nil {
		return nil, &internalerr.TechniqueError{
			Technique: p.Technique.Name(),
			Field:     field,
			Err:       fmt.Errorf("%w: nil representation", internalerr.ErrInvalidInput),
		}
	}
	return rep, nil
}

func withField(err error, field string) error {
	if te, ok := err.(*internalerr.TechniqueError); ok && te.Field == "" {
		te.Field = field
	}
	return err
}

// Corpus walks the preprocessed values of one field over a whole source. It
// implements technique.Corpus.
type Corpus struct {
	src   source.Source
	field string
	p     *Pipeline
}

// NewCorpus builds the refactor corpus of field under p's preprocessing.
func NewCorpus(src source.Source, field string, p *Pipeline) *Corpus {
	return &Corpus{src: src, field: field, p: p}
}

// Field implements technique.Corpus.
func (c *Corpus) Field() string { return c.field }

// Each implements technique.Corpus. Records missing the field are skipped.
func (c *Corpus) Each(ctx context.Context, fn func(preprocess.Value) error) error {
	return c.src.Iterate(ctx, func(rec source.Record) error {
		raw, ok := rec.Get(c.field)
		if !ok {
			return nil
		}
		v, err := c.p.Preprocess(raw)
		if err != nil {
			return withField(err, c.field)
		}
		return fn(v)
	})
}
