package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
	"github.com/cognicore/canalyzer/pkg/canalyzer/logging"
)

// EnvPrefix prefixes every environment override, e.g. CANALYZER_ID_POLICY.
const EnvPrefix = "CANALYZER_"

// FileSpec is the YAML form of an analyzer configuration. Components are
// named by kind and built by a Registry.
//
//	content_type: movie
//	id_field: title
//	source: {kind: jsonl, path: movies.jsonl}
//	writers:
//	  out: {kind: file, path: out, compression: zstd}
//	output: out
//	fields:
//	  - name: plot
//	    pipelines:
//	      - id: tfidf
//	        preprocess: [{kind: html_text}, {kind: tokenizer}]
//	        technique: {kind: tfidf}
type FileSpec struct {
	ContentType string                `koanf:"content_type"`
	IDField     string                `koanf:"id_field" validate:"required"`
	IDPolicy    string                `koanf:"id_policy" validate:"omitempty,oneof=abort skip"`
	Log         logging.Config        `koanf:"log"`
	Source      SourceSpec            `koanf:"source"`
	Writers     map[string]WriterSpec `koanf:"writers" validate:"dive"`
	Output      string                `koanf:"output"`
	Fields      []FieldSpec           `koanf:"fields" validate:"required,min=1,dive"`
}

// SourceSpec selects the raw record source.
type SourceSpec struct {
	Kind    string `koanf:"kind" validate:"required"`
	Path    string `koanf:"path" validate:"required"`
	Table   string `koanf:"table"`
	OrderBy string `koanf:"order_by"`
}

// WriterSpec declares a named writer backend.
type WriterSpec struct {
	Kind        string `koanf:"kind" validate:"required"`
	Path        string `koanf:"path"`
	Compression string `koanf:"compression"`
}

// FieldSpec binds pipelines, and optionally a writer, to one raw field.
type FieldSpec struct {
	Name      string         `koanf:"name" validate:"required"`
	Writer    string         `koanf:"writer"`
	Pipelines []PipelineSpec `koanf:"pipelines" validate:"required,min=1,dive"`
}

// PipelineSpec is a preprocessing chain and a technique.
type PipelineSpec struct {
	ID         string     `koanf:"id"`
	Preprocess []StepSpec `koanf:"preprocess" validate:"dive"`
	Technique  StepSpec   `koanf:"technique"`
}

// StepSpec names a component kind with its options.
type StepSpec struct {
	Kind    string         `koanf:"kind" validate:"required"`
	Options map[string]any `koanf:"options"`
}

func defaultFileSpec() *FileSpec {
	return &FileSpec{
		IDPolicy: string(IDPolicyAbort),
		Log:      logging.Config{Level: "info", Format: "json"},
	}
}

// envMappings maps lower-cased variable names (prefix removed) to koanf
// paths. Lists cannot be overridden from the environment.
var envMappings = map[string]string{
	"content_type":    "content_type",
	"id_field":        "id_field",
	"id_policy":       "id_policy",
	"output":          "output",
	"log_level":       "log.level",
	"log_format":      "log.format",
	"log_caller":      "log.caller",
	"source_kind":     "source.kind",
	"source_path":     "source.path",
	"source_table":    "source.table",
	"source_order_by": "source.order_by",
}

func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return envMappings[key]
}

// LoadFile reads a FileSpec: defaults, then the YAML file, then
// CANALYZER_* environment variables. The result is validated.
func LoadFile(path string) (*FileSpec, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultFileSpec(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config file %s: %w", path, err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	spec := &FileSpec{}
	if err := k.Unmarshal("", spec); err != nil {
		return nil, &internalerr.ConfigurationError{Reason: "decode " + path + ": " + err.Error()}
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// Validate checks struct tags and writer references.
func (s *FileSpec) Validate() error {
	if err := getValidator().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return &internalerr.ConfigurationError{Reason: strings.Join(msgs, "; ")}
		}
		return &internalerr.ConfigurationError{Reason: err.Error()}
	}

	if s.Output != "" {
		if _, ok := s.Writers[s.Output]; !ok {
			return &internalerr.ConfigurationError{Reason: fmt.Sprintf("output refers to undefined writer %q", s.Output)}
		}
	}
	for _, f := range s.Fields {
		if f.Writer == "" {
			continue
		}
		if _, ok := s.Writers[f.Writer]; !ok {
			return &internalerr.ConfigurationError{Field: f.Name, Reason: fmt.Sprintf("undefined writer %q", f.Writer)}
		}
	}
	return nil
}

// Load reads the file at path and builds it with reg. Relative paths in the
// file resolve against the file's directory.
func Load(path string, reg *Registry) (*Assembly, *FileSpec, error) {
	spec, err := LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, err
	}
	asm, err := reg.Build(spec, filepath.Dir(abs))
	if err != nil {
		return nil, nil, err
	}
	return asm, spec, nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) || base == "" {
		return p
	}
	if strings.HasPrefix(p, "~"+string(os.PathSeparator)) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return filepath.Join(base, p)
}
