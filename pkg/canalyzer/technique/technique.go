// Package technique defines the production ports a pipeline ends with and the
// stock techniques that implement them.
//
// # Capabilities
//
// Every technique implements Technique. Techniques that need corpus-wide
// statistics also implement CollectionBased: the analyzer hands them the
// whole field corpus once through Refactor before any Produce call for that
// field. Artifacts are kept per field, so one instance can serve several
// fields.
//
// # Fallbacks
//
// Per-unit lookup misses are not errors. A technique that finds nothing
// returns its declared fallback (an empty bag, a zero vector, an empty graph).
// Only unrecoverable failures, such as an unreachable embedding store, are
// returned as errors.
package technique

import (
	"context"
	"sync"

	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
	"github.com/cognicore/canalyzer/pkg/canalyzer/preprocess"
	"github.com/cognicore/canalyzer/pkg/canalyzer/source"
)

// Input is everything a technique sees for one record.
type Input struct {
	Field  string
	Value  preprocess.Value
	Record source.Record
}

// Technique turns a preprocessed field value into a representation.
type Technique interface {
	Name() string
	Produce(ctx context.Context, in Input) (content.Representation, error)
}

// Corpus is the preprocessed values of one field over the whole raw source.
type Corpus interface {
	Field() string
	Each(ctx context.Context, fn func(preprocess.Value) error) error
}

// CollectionBased is a technique that needs a corpus pass before production.
type CollectionBased interface {
	Technique
	// NeedsRefactor reports whether field is still unrefactored.
	NeedsRefactor(field string) bool
	// Refactor computes the field-scoped artifact from scratch.
	Refactor(ctx context.Context, corpus Corpus) error
}

// IsCollectionBased reports whether t requires a refactor pass.
func IsCollectionBased(t Technique) bool {
	_, ok := t.(CollectionBased)
	return ok
}

// fieldStates tracks the UNREFACTORED -> REFACTORED transition per field and
// holds the artifact built by the refactor pass.
type fieldStates[A any] struct {
	mu        sync.RWMutex
	artifacts map[string]A
}

func (s *fieldStates[A]) done(field string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.artifacts[field]
	return ok
}

func (s *fieldStates[A]) get(field string) (A, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[field]
	return a, ok
}

func (s *fieldStates[A]) set(field string, a A) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifacts == nil {
		s.artifacts = make(map[string]A)
	}
	s.artifacts[field] = a
}

// uniqueWords returns the distinct words of v in first-seen order.
func uniqueWords(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
