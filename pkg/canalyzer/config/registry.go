package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory/badgerstore"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory/filestore"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory/index"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory/memstore"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory/sqlitestore"
	"github.com/cognicore/canalyzer/pkg/canalyzer/pipeline"
	"github.com/cognicore/canalyzer/pkg/canalyzer/preprocess"
	"github.com/cognicore/canalyzer/pkg/canalyzer/source"
	"github.com/cognicore/canalyzer/pkg/canalyzer/technique"
	"github.com/cognicore/canalyzer/pkg/canalyzer/technique/embsource"
)

// Options are the free-form options of a step.
type Options map[string]any

// String returns a string option or def.
func (o Options) String(key, def string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	return fmt.Sprint(v)
}

// Float returns a numeric option or def.
func (o Options) Float(key string, def float64) (float64, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("option %s: %w", key, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("option %s: not a number: %v", key, v)
}

// Int returns an integer option or def.
func (o Options) Int(key string, def int) (int, error) {
	f, err := o.Float(key, float64(def))
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("option %s: not an integer: %v", key, f)
	}
	return int(f), nil
}

// Strings returns a list option. A single string is a one-element list.
func (o Options) Strings(key string) []string {
	switch v := o[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			out = append(out, fmt.Sprint(x))
		}
		return out
	case string:
		return []string{v}
	}
	return nil
}

// Build carries what factories need while a FileSpec is assembled.
type Build struct {
	Ctx     context.Context
	BaseDir string
	closers []func() error
}

// Path resolves p against the config file's directory.
func (b *Build) Path(p string) string { return resolvePath(b.BaseDir, p) }

// OnClose registers a cleanup run by Assembly.Close.
func (b *Build) OnClose(fn func() error) { b.closers = append(b.closers, fn) }

type (
	PreprocessorFactory func(b *Build, opts Options) (preprocess.Preprocessor, error)
	TechniqueFactory    func(b *Build, opts Options) (technique.Technique, error)
	SourceFactory       func(b *Build, spec SourceSpec) (source.Source, error)
	WriterFactory       func(b *Build, name string, spec WriterSpec) (memory.Backend, error)
)

// Registry maps component kinds to factories.
type Registry struct {
	Preprocessors map[string]PreprocessorFactory
	Techniques    map[string]TechniqueFactory
	Sources       map[string]SourceFactory
	Writers       map[string]WriterFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		Preprocessors: make(map[string]PreprocessorFactory),
		Techniques:    make(map[string]TechniqueFactory),
		Sources:       make(map[string]SourceFactory),
		Writers:       make(map[string]WriterFactory),
	}
}

// DefaultRegistry knows every built-in component.
//
// Preprocessors: html_text, lowercase, tokenizer, multitoken, lexicon.
// Techniques: term_frequency, tfidf, cooccurrence_graph, taxonomy_graph,
// embedding. Sources: jsonl, csv, sqlite. Writers: memory, file, sqlite,
// index, badger.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Preprocessors["html_text"] = func(*Build, Options) (preprocess.Preprocessor, error) {
		return preprocess.HTMLText{}, nil
	}
	r.Preprocessors["lowercase"] = func(*Build, Options) (preprocess.Preprocessor, error) {
		return preprocess.Lowercase{}, nil
	}
	r.Preprocessors["tokenizer"] = buildTokenizer
	r.Preprocessors["multitoken"] = func(b *Build, o Options) (preprocess.Preprocessor, error) {
		path := o.String("dict", "")
		if path == "" {
			return nil, fmt.Errorf("multitoken: dict is required")
		}
		entries, err := LoadDict(b.Path(path))
		if err != nil {
			return nil, err
		}
		return preprocess.NewMultiTokenParser(entries), nil
	}
	r.Preprocessors["lexicon"] = func(b *Build, o Options) (preprocess.Preprocessor, error) {
		path := o.String("path", "")
		if path == "" {
			return nil, fmt.Errorf("lexicon: path is required")
		}
		return preprocess.LoadLexicon(b.Path(path))
	}

	r.Techniques["term_frequency"] = func(*Build, Options) (technique.Technique, error) {
		return technique.TermFrequency{}, nil
	}
	r.Techniques["tfidf"] = func(*Build, Options) (technique.Technique, error) {
		return technique.NewTFIDF(), nil
	}
	r.Techniques["cooccurrence_graph"] = func(_ *Build, o Options) (technique.Technique, error) {
		minNPMI, err := o.Float("min_npmi", 0)
		if err != nil {
			return nil, err
		}
		minDF, err := o.Int("min_df", 1)
		if err != nil {
			return nil, err
		}
		return technique.NewCooccurrenceGraph(minNPMI, int64(minDF)), nil
	}
	r.Techniques["taxonomy_graph"] = func(b *Build, o Options) (technique.Technique, error) {
		path := o.String("taxonomy", "")
		if path == "" {
			return nil, fmt.Errorf("taxonomy_graph: taxonomy is required")
		}
		file, err := LoadTaxonomy(b.Path(path))
		if err != nil {
			return nil, err
		}
		return technique.NewTaxonomyGraph(file.Build()), nil
	}
	r.Techniques["embedding"] = buildEmbedding

	r.Sources["jsonl"] = func(b *Build, s SourceSpec) (source.Source, error) {
		return source.NewJSONLines(b.Path(s.Path)), nil
	}
	r.Sources["csv"] = func(b *Build, s SourceSpec) (source.Source, error) {
		return source.NewCSV(b.Path(s.Path)), nil
	}
	r.Sources["sqlite"] = func(b *Build, s SourceSpec) (source.Source, error) {
		if s.Table == "" {
			return nil, fmt.Errorf("sqlite source: table is required")
		}
		db, err := sql.Open("sqlite", b.Path(s.Path))
		if err != nil {
			return nil, err
		}
		src, err := source.NewSQL(db, s.Table, s.OrderBy)
		if err != nil {
			db.Close()
			return nil, err
		}
		b.OnClose(db.Close)
		return src, nil
	}

	r.Writers["memory"] = func(_ *Build, name string, _ WriterSpec) (memory.Backend, error) {
		return memstore.New(name), nil
	}
	r.Writers["index"] = func(_ *Build, name string, _ WriterSpec) (memory.Backend, error) {
		return index.New(name), nil
	}
	r.Writers["file"] = func(b *Build, _ string, w WriterSpec) (memory.Backend, error) {
		if w.Path == "" {
			return nil, fmt.Errorf("file writer: path is required")
		}
		c, err := filestore.ParseCompression(w.Compression)
		if err != nil {
			return nil, err
		}
		return filestore.New(b.Path(w.Path), filestore.WithCompression(c)), nil
	}
	r.Writers["sqlite"] = func(b *Build, _ string, w WriterSpec) (memory.Backend, error) {
		if w.Path == "" {
			return nil, fmt.Errorf("sqlite writer: path is required")
		}
		return sqlitestore.New(b.Path(w.Path)), nil
	}
	r.Writers["badger"] = func(b *Build, _ string, w WriterSpec) (memory.Backend, error) {
		s := badgerstore.New(b.Path(w.Path))
		b.OnClose(s.Shutdown)
		return s, nil
	}
	return r
}

func buildTokenizer(b *Build, o Options) (preprocess.Preprocessor, error) {
	stops := o.Strings("stopwords")
	if path := o.String("stoplist", ""); path != "" {
		sl, err := LoadStoplist(b.Path(path))
		if err != nil {
			return nil, err
		}
		stops = append(stops, sl.Terms...)
	}
	tok := preprocess.NewTokenizer(stops)
	if path := o.String("lexicon", ""); path != "" {
		lex, err := preprocess.LoadLexicon(b.Path(path))
		if err != nil {
			return nil, err
		}
		tok.SetLexicon(lex)
	}
	return tok, nil
}

func buildEmbedding(b *Build, o Options) (technique.Technique, error) {
	var src technique.EmbeddingSource
	switch {
	case o.String("vectors", "") != "":
		m, err := embsource.LoadWord2VecText(b.Path(o.String("vectors", "")))
		if err != nil {
			return nil, err
		}
		src = m
	case o.String("sqlite", "") != "":
		size, err := o.Int("size", 0)
		if err != nil {
			return nil, err
		}
		if size <= 0 {
			return nil, fmt.Errorf("embedding: size is required with sqlite")
		}
		s, err := embsource.OpenSQLite(b.Ctx, b.Path(o.String("sqlite", "")), size)
		if err != nil {
			return nil, err
		}
		b.OnClose(s.Close)
		src = s
	default:
		return nil, fmt.Errorf("embedding: vectors or sqlite is required")
	}

	emb := technique.NewEmbedding(src)
	g, err := technique.ParseGranularity(o.String("granularity", "word"))
	if err != nil {
		return nil, err
	}
	emb.Granularity = g
	switch strings.ToLower(o.String("combiner", "centroid")) {
	case "centroid", "mean":
		emb.Combiner = technique.Centroid{}
	case "max":
		emb.Combiner = technique.ElementwiseMax{}
	default:
		return nil, fmt.Errorf("embedding: unknown combiner %q", o.String("combiner", ""))
	}
	return emb, nil
}

// Assembly is a Config built from a FileSpec, with the named writers and
// the resources the components hold open.
type Assembly struct {
	Config  *Config
	Writers map[string]memory.Backend
	closers []func() error
}

// Close releases sources, embedding tables and databases opened by the
// build, in reverse order.
func (a *Assembly) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// Build turns a validated FileSpec into a Config. Every component is created
// here; no record is read and no writer is opened.
func (r *Registry) Build(spec *FileSpec, baseDir string) (asm *Assembly, err error) {
	b := &Build{Ctx: context.Background(), BaseDir: baseDir}
	asm = &Assembly{Writers: make(map[string]memory.Backend)}
	defer func() {
		asm.closers = b.closers
		if err != nil {
			asm.Close()
			asm = nil
		}
	}()

	newSource, ok := r.Sources[spec.Source.Kind]
	if !ok {
		return asm, &internalerr.ConfigurationError{Reason: fmt.Sprintf("unknown source kind %q", spec.Source.Kind)}
	}
	src, err := newSource(b, spec.Source)
	if err != nil {
		return asm, &internalerr.ConfigurationError{Reason: "source: " + err.Error()}
	}

	for _, name := range sortedKeys(spec.Writers) {
		w := spec.Writers[name]
		newWriter, ok := r.Writers[w.Kind]
		if !ok {
			return asm, &internalerr.ConfigurationError{Reason: fmt.Sprintf("writer %q: unknown kind %q", name, w.Kind)}
		}
		backend, err := newWriter(b, name, w)
		if err != nil {
			return asm, &internalerr.ConfigurationError{Reason: fmt.Sprintf("writer %q: %v", name, err)}
		}
		asm.Writers[name] = backend
	}

	cfg := Config{
		ContentType: spec.ContentType,
		IDField:     spec.IDField,
		IDPolicy:    IDPolicy(spec.IDPolicy),
		Source:      src,
		Output:      asm.Writers[spec.Output],
	}
	for _, fs := range spec.Fields {
		fc := FieldConfig{Name: fs.Name, Writer: asm.Writers[fs.Writer]}
		for i, ps := range fs.Pipelines {
			p, err := r.buildPipeline(b, ps)
			if err != nil {
				var ce *internalerr.ConfigurationError
				if !errors.As(err, &ce) {
					id := ps.ID
					if id == "" {
						id = strconv.Itoa(i)
					}
					err = &internalerr.ConfigurationError{Field: fs.Name, Pipeline: id, Reason: err.Error()}
				} else if ce.Field == "" {
					ce.Field = fs.Name
				}
				return asm, err
			}
			fc.Pipelines = append(fc.Pipelines, p)
		}
		cfg.Fields = append(cfg.Fields, fc)
	}

	asm.Config, err = New(cfg)
	return asm, err
}

func (r *Registry) buildPipeline(b *Build, ps PipelineSpec) (*pipeline.Pipeline, error) {
	newTechnique, ok := r.Techniques[ps.Technique.Kind]
	if !ok {
		return nil, &internalerr.ConfigurationError{Pipeline: ps.ID, Reason: fmt.Sprintf("unknown technique kind %q", ps.Technique.Kind)}
	}
	t, err := newTechnique(b, ps.Technique.Options)
	if err != nil {
		return nil, err
	}

	steps := make([]preprocess.Preprocessor, 0, len(ps.Preprocess))
	for _, st := range ps.Preprocess {
		newStep, ok := r.Preprocessors[st.Kind]
		if !ok {
			return nil, &internalerr.ConfigurationError{Pipeline: ps.ID, Reason: fmt.Sprintf("unknown preprocessor kind %q", st.Kind)}
		}
		step, err := newStep(b, st.Options)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return pipeline.New(ps.ID, t, steps...), nil
}
