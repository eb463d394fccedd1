// Package memory defines the writer backends contents are persisted to and
// the Session that drives a backend through one write pass.
package memory

import (
	"context"
	"math"

	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
)

// Backend is a persistence target for committed contents.
//
// The Session guarantees the call order Open, Commit*, Finalize, Close (or
// Open, Commit*, Close on abort). Backends do not need to re-check it.
type Backend interface {
	Name() string
	Open(ctx context.Context) error
	// Commit durably writes one sealed content.
	Commit(ctx context.Context, c *content.Content) error
	// Finalize completes the pass (manifests, derived tables).
	Finalize(ctx context.Context) error
	Close() error
}

// FrequencyIndex is implemented by backends that can answer per-content
// term frequency queries once a pass has been finalized.
type FrequencyIndex interface {
	Frequencies(ctx context.Context, contentID, field string) (map[string]float64, error)
}

// Reader is implemented by backends that can read a committed content back.
type Reader interface {
	Get(ctx context.Context, id string) (*content.Content, error)
}

// TermScores sums the scores of every features-bag representation of f.
// Index-capable backends index a field by these scores.
func TermScores(f *content.Field) map[string]float64 {
	out := make(map[string]float64)
	for _, rep := range f.Representations() {
		bag, ok := rep.(*content.FeaturesBag)
		if !ok {
			continue
		}
		for term, score := range bag.Features {
			out[term] += score
		}
	}
	return out
}

// IDF is the smoothed inverse document frequency shared by the index-capable
// backends: ln((1 + n) / (1 + df)) + 1.
func IDF(n, df int64) float64 {
	return math.Log(float64(1+n)/float64(1+df)) + 1
}
