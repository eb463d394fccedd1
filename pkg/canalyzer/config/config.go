// Package config holds the analyzer configuration: which source to read,
// which id field names contents, which pipelines run on which fields, and
// where contents are written.
//
// A Config is validated and normalized by New before any source or backend
// I/O happens. Load builds one from a YAML file spec.
package config

import (
	"strconv"
	"strings"

	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory"
	"github.com/cognicore/canalyzer/pkg/canalyzer/pipeline"
	"github.com/cognicore/canalyzer/pkg/canalyzer/source"
)

// IDPolicy decides what happens to a record whose id is missing or repeats
// an earlier record's id.
type IDPolicy string

const (
	// IDPolicyAbort fails the fit pass. It is the default.
	IDPolicyAbort IDPolicy = "abort"
	// IDPolicySkip drops the record and reports a warning.
	IDPolicySkip IDPolicy = "skip"
)

// Config is a validated analyzer configuration.
type Config struct {
	ContentType string
	IDField     string
	IDPolicy    IDPolicy
	Source      source.Source
	Fields      []FieldConfig
	// Output receives every field of every content. It may be nil when
	// every field has its own writer.
	Output memory.Backend
}

// FieldConfig binds pipelines to one raw field.
type FieldConfig struct {
	Name      string
	Pipelines []*pipeline.Pipeline
	// Writer optionally receives this field only.
	Writer memory.Backend
}

// New validates cfg and returns a normalized copy: content type lower-cased,
// default id policy applied, empty pipeline ids assigned from position.
// Pipelines are copied so the caller's values are left untouched.
func New(cfg Config) (*Config, error) {
	out := cfg
	out.ContentType = strings.ToLower(cfg.ContentType)
	if out.IDPolicy == "" {
		out.IDPolicy = IDPolicyAbort
	}

	out.Fields = make([]FieldConfig, len(cfg.Fields))
	for i, f := range cfg.Fields {
		nf := FieldConfig{Name: f.Name, Writer: f.Writer, Pipelines: make([]*pipeline.Pipeline, len(f.Pipelines))}
		for j, p := range f.Pipelines {
			if p == nil {
				continue
			}
			cp := *p
			if cp.ID == "" {
				cp.ID = strconv.Itoa(j)
			}
			nf.Pipelines[j] = &cp
		}
		out.Fields[i] = nf
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Validate checks the structural rules of a configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.IDField) == "" {
		return &internalerr.ConfigurationError{Reason: "id field is required"}
	}
	if c.Source == nil {
		return &internalerr.ConfigurationError{Reason: "source is required"}
	}
	switch c.IDPolicy {
	case IDPolicyAbort, IDPolicySkip:
	default:
		return &internalerr.ConfigurationError{Reason: "unknown id policy " + strconv.Quote(string(c.IDPolicy))}
	}
	if len(c.Fields) == 0 {
		return &internalerr.ConfigurationError{Reason: "at least one field is required"}
	}

	hasWriter := c.Output != nil
	names := make(map[string]struct{}, len(c.Fields))
	for _, f := range c.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return &internalerr.ConfigurationError{Reason: "field name is required"}
		}
		if _, dup := names[f.Name]; dup {
			return &internalerr.ConfigurationError{Field: f.Name, Reason: "field configured twice"}
		}
		names[f.Name] = struct{}{}

		if len(f.Pipelines) == 0 {
			return &internalerr.ConfigurationError{Field: f.Name, Reason: "at least one pipeline is required"}
		}
		ids := make(map[string]struct{}, len(f.Pipelines))
		for _, p := range f.Pipelines {
			if p == nil {
				return &internalerr.ConfigurationError{Field: f.Name, Reason: "nil pipeline"}
			}
			if p.Technique == nil {
				return &internalerr.ConfigurationError{Field: f.Name, Pipeline: p.ID, Reason: "pipeline has no technique"}
			}
			if p.ID == "" {
				return &internalerr.ConfigurationError{Field: f.Name, Reason: "pipeline id is empty"}
			}
			if _, dup := ids[p.ID]; dup {
				return &internalerr.ConfigurationError{Field: f.Name, Pipeline: p.ID, Reason: "duplicate pipeline id"}
			}
			ids[p.ID] = struct{}{}
			for _, step := range p.Preprocessors {
				if step == nil {
					return &internalerr.ConfigurationError{Field: f.Name, Pipeline: p.ID, Reason: "nil preprocessor"}
				}
			}
		}
		if f.Writer != nil {
			hasWriter = true
		}
	}
	if !hasWriter {
		return &internalerr.ConfigurationError{Reason: "no output or field writer configured"}
	}
	return nil
}

// Backends returns every distinct writer backend: the output first, then
// field writers in field order.
func (c *Config) Backends() []memory.Backend {
	var out []memory.Backend
	seen := make(map[memory.Backend]struct{})
	add := func(b memory.Backend) {
		if b == nil {
			return
		}
		if _, ok := seen[b]; ok {
			return
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	add(c.Output)
	for _, f := range c.Fields {
		add(f.Writer)
	}
	return out
}

// Routes maps each backend to the field names it receives, in field order.
// The output receives every field; a field writer receives its own field.
func (c *Config) Routes() map[memory.Backend][]string {
	routes := make(map[memory.Backend][]string)
	for _, f := range c.Fields {
		if c.Output != nil {
			routes[c.Output] = append(routes[c.Output], f.Name)
		}
		if f.Writer != nil && f.Writer != c.Output {
			routes[f.Writer] = append(routes[f.Writer], f.Name)
		}
	}
	return routes
}
