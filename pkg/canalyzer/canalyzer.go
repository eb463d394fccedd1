// Package canalyzer turns raw item records into multi-representation
// contents and writes them to pluggable backends.
//
// An Analyzer runs one fit pass over a validated config.Config:
//
//  1. every collection-based (field, technique) pair is refactored once over
//     the whole source;
//  2. a writer session is opened on every distinct backend;
//  3. the source is read once, in order, and each record becomes a Content
//     whose fields are routed to the output and to per-field writers;
//  4. every session is stopped, which finalizes the backends.
//
// A failure aborts the pass and releases every session. Contents committed
// before the failure stay committed.
package canalyzer

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/cognicore/canalyzer/pkg/canalyzer/config"
	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
	"github.com/cognicore/canalyzer/pkg/canalyzer/logging"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory"
	"github.com/cognicore/canalyzer/pkg/canalyzer/metrics"
	"github.com/cognicore/canalyzer/pkg/canalyzer/pipeline"
	"github.com/cognicore/canalyzer/pkg/canalyzer/source"
	"github.com/cognicore/canalyzer/pkg/canalyzer/technique"
)

// Analyzer drives fit passes for one configuration.
type Analyzer struct {
	cfg  *config.Config
	log  zerolog.Logger
	now  func() time.Time
	plan []refactorStep

	mu       sync.Mutex
	entropy  *ulid.MonotonicEntropy
	sessions []*memory.Session
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger. The default is the "analyzer" component of
// the global logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Analyzer) { a.log = l }
}

// WithClock overrides the time source used for run ids and durations.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

type refactorStep struct {
	field     string
	pipeline  *pipeline.Pipeline
	technique technique.CollectionBased
}

// New binds an analyzer to cfg. Technique capabilities are resolved here,
// once, rather than per record.
func New(cfg *config.Config, opts ...Option) *Analyzer {
	a := &Analyzer{
		cfg:     cfg,
		log:     logging.Component("analyzer"),
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(a)
	}
	if cfg != nil {
		a.plan = planRefactor(cfg)
	}
	return a
}

type refactorKey struct {
	technique technique.CollectionBased
	field     string
}

// planRefactor lists the collection-based pairs in field then pipeline
// order. A technique instance bound twice to the same field is refactored
// with the first pipeline's preprocessing only.
func planRefactor(cfg *config.Config) []refactorStep {
	var plan []refactorStep
	seen := make(map[refactorKey]struct{})
	for _, f := range cfg.Fields {
		for _, p := range f.Pipelines {
			if p == nil {
				continue
			}
			cb, ok := p.Technique.(technique.CollectionBased)
			if !ok {
				continue
			}
			key := refactorKey{technique: cb, field: f.Name}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			plan = append(plan, refactorStep{field: f.Name, pipeline: p, technique: cb})
		}
	}
	return plan
}

// Config returns the bound configuration.
func (a *Analyzer) Config() *config.Config { return a.cfg }

// Sessions returns the writer sessions of the last pass, output first. After
// a successful pass they are CLOSED and can serve frequency lookups.
func (a *Analyzer) Sessions() []*memory.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*memory.Session(nil), a.sessions...)
}

// Session returns the last pass's session for backend b.
func (a *Analyzer) Session(b memory.Backend) (*memory.Session, bool) {
	for _, s := range a.Sessions() {
		if s.Backend() == b {
			return s, true
		}
	}
	return nil, false
}

// Fit runs one full pass. The returned report is never nil.
func (a *Analyzer) Fit(ctx context.Context) (*Report, error) {
	start := a.now()
	report := &Report{RunID: a.newRunID(start), Started: start, Committed: make(map[string]int)}

	err := a.fit(ctx, report)
	report.Duration = a.now().Sub(start)
	metrics.RecordFit(report.Duration, err)

	log := a.log.With().Str("run_id", report.RunID).Logger()
	if err != nil {
		log.Error().Err(err).
			Int("records", report.Records).
			Int("contents", report.Contents).
			Msg("fit failed")
		return report, err
	}
	log.Info().
		Int("records", report.Records).
		Int("contents", report.Contents).
		Int("skipped", report.Skipped).
		Int("warnings", len(report.Warnings)).
		Dur("duration", report.Duration).
		Msg("fit finished")
	return report, nil
}

func (a *Analyzer) newRunID(t time.Time) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), a.entropy).String()
}

func (a *Analyzer) fit(ctx context.Context, report *Report) error {
	if a.cfg == nil {
		return &internalerr.ConfigurationError{Reason: "no configuration"}
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	report.ContentType = a.cfg.ContentType
	log := a.log.With().Str("run_id", report.RunID).Logger()
	log.Info().
		Str("content_type", a.cfg.ContentType).
		Int("fields", len(a.cfg.Fields)).
		Int("refactor_pairs", len(a.plan)).
		Msg("fit started")

	if err := a.refactor(ctx, log, report); err != nil {
		return err
	}

	sessions, err := a.openSessions(ctx)
	if err != nil {
		return err
	}
	done := false
	defer func() {
		if !done {
			for _, s := range sessions {
				if aerr := s.Abort(); aerr != nil {
					log.Warn().Err(aerr).Str("backend", s.Backend().Name()).Msg("abort failed")
				}
			}
		}
	}()

	if err := a.produce(ctx, log, sessions, report); err != nil {
		return err
	}

	done = true
	var first error
	for _, s := range sessions {
		if err := s.StopWriting(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (a *Analyzer) refactor(ctx context.Context, log zerolog.Logger, report *Report) error {
	for _, step := range a.plan {
		if err := ctx.Err(); err != nil {
			return err
		}
		started := a.now()
		rebuild := !step.technique.NeedsRefactor(step.field)
		corpus := pipeline.NewCorpus(a.cfg.Source, step.field, step.pipeline)
		if err := step.technique.Refactor(ctx, corpus); err != nil {
			var te *internalerr.TechniqueError
			if errors.As(err, &te) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return &internalerr.TechniqueError{Technique: step.technique.Name(), Field: step.field, Err: fmt.Errorf("refactor: %w", err)}
		}
		d := a.now().Sub(started)
		metrics.RecordRefactor(step.field, step.technique.Name(), d)
		report.Refactored = append(report.Refactored, step.field+"/"+step.technique.Name())
		log.Debug().
			Str("field", step.field).
			Str("technique", step.technique.Name()).
			Bool("rebuild", rebuild).
			Dur("took", d).
			Msg("refactored")
	}
	return nil
}

// openSessions acquires every backend. On failure the sessions already
// opened are aborted.
func (a *Analyzer) openSessions(ctx context.Context) ([]*memory.Session, error) {
	backends := a.cfg.Backends()
	sessions := make([]*memory.Session, 0, len(backends))
	for _, b := range backends {
		s := memory.NewSession(b)
		if err := s.InitWriting(ctx); err != nil {
			for _, opened := range sessions {
				_ = opened.Abort()
			}
			return nil, err
		}
		sessions = append(sessions, s)
	}

	a.mu.Lock()
	a.sessions = sessions
	a.mu.Unlock()
	return sessions, nil
}

func (a *Analyzer) produce(ctx context.Context, log zerolog.Logger, sessions []*memory.Session, report *Report) error {
	routes := a.cfg.Routes()
	seen := make(map[string]int)
	index := -1

	return a.cfg.Source.Iterate(ctx, func(rec source.Record) error {
		index++
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Records++

		id, err := a.resolveID(rec, index, seen)
		if err != nil {
			var re *internalerr.RecordError
			if a.cfg.IDPolicy == config.IDPolicySkip && errors.As(err, &re) {
				a.warn(log, report, newWarning(warningKind(err), re))
				report.Skipped++
				metrics.RecordRecord("skipped")
				return nil
			}
			metrics.RecordRecord("failed")
			return err
		}
		seen[id] = index

		fields, err := a.buildFields(ctx, log, rec, index, id, report)
		if err != nil {
			metrics.RecordRecord("failed")
			return err
		}

		for _, s := range sessions {
			if err := commit(ctx, s, id, routes[s.Backend()], fields); err != nil {
				metrics.RecordRecord("failed")
				return err
			}
			report.Committed[s.Backend().Name()]++
			metrics.RecordCommit(s.Backend().Name())
		}
		report.Contents++
		metrics.RecordRecord("committed")
		return nil
	})
}

func (a *Analyzer) resolveID(rec source.Record, index int, seen map[string]int) (string, error) {
	raw, ok := rec.Get(a.cfg.IDField)
	id := strings.TrimSpace(raw)
	if !ok || id == "" {
		return "", &internalerr.RecordError{Index: index, Field: a.cfg.IDField, Err: internalerr.ErrMissingID}
	}
	if first, dup := seen[id]; dup {
		return "", &internalerr.RecordError{
			Index: index,
			ID:    id,
			Field: a.cfg.IDField,
			Err:   fmt.Errorf("%w: id already used by record %d", internalerr.ErrDuplicate, first),
		}
	}
	return id, nil
}

// buildFields runs every pipeline of every field. A missing field yields an
// empty Field and a warning.
func (a *Analyzer) buildFields(ctx context.Context, log zerolog.Logger, rec source.Record, index int, id string, report *Report) (map[string]*content.Field, error) {
	fields := make(map[string]*content.Field, len(a.cfg.Fields))
	for _, fc := range a.cfg.Fields {
		f := content.NewField(fc.Name)
		fields[fc.Name] = f

		if _, ok := rec.Get(fc.Name); !ok {
			a.warn(log, report, newWarning(WarnMissingField, &internalerr.RecordError{
				Index: index, ID: id, Field: fc.Name, Err: internalerr.ErrMissingField,
			}))
			continue
		}
		for _, p := range fc.Pipelines {
			rep, err := pipeline.Execute(ctx, p, fc.Name, rec)
			if err != nil {
				return nil, &internalerr.RecordError{Index: index, ID: id, Field: fc.Name, Err: err}
			}
			if err := f.Append(p.ID, rep); err != nil {
				return nil, &internalerr.RecordError{Index: index, ID: id, Field: fc.Name, Err: err}
			}
		}
	}
	return fields, nil
}

func commit(ctx context.Context, s *memory.Session, id string, names []string, fields map[string]*content.Field) error {
	if err := s.BeginContent(id); err != nil {
		return err
	}
	for _, name := range names {
		if err := s.AddField(fields[name]); err != nil {
			return err
		}
	}
	return s.CommitContent(ctx)
}

func (a *Analyzer) warn(log zerolog.Logger, report *Report, w Warning) {
	report.Warnings = append(report.Warnings, w)
	metrics.RecordWarning(w.Kind)
	log.Warn().
		Str("kind", w.Kind).
		Int("record", w.Record).
		Str("id", w.ID).
		Str("field", w.Field).
		Msg("record warning")
}
