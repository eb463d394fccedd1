// Package content holds the in-memory model of one processed record: a Content
// made of named Fields, each carrying one Representation per pipeline.
package content

import (
	"sort"
)

// Kind tags a representation variant. It is set by the producing technique and
// written explicitly on serialization.
type Kind string

const (
	KindFeaturesBag Kind = "features_bag"
	KindEmbedding   Kind = "embedding"
	KindGraph       Kind = "graph"
)

// Representation is one computed view of a field value.
type Representation interface {
	Kind() Kind
}

// FeaturesBag is a sparse feature -> score mapping.
type FeaturesBag struct {
	Features map[string]float64 `json:"features"`
}

// NewFeaturesBag returns an empty bag.
func NewFeaturesBag() *FeaturesBag {
	return &FeaturesBag{Features: make(map[string]float64)}
}

func (b *FeaturesBag) Kind() Kind { return KindFeaturesBag }

// Get returns the score of a feature and whether it is present.
func (b *FeaturesBag) Get(feature string) (float64, bool) {
	v, ok := b.Features[feature]
	return v, ok
}

// Set assigns a score, replacing any previous one.
func (b *FeaturesBag) Set(feature string, score float64) {
	if b.Features == nil {
		b.Features = make(map[string]float64)
	}
	b.Features[feature] = score
}

// Len returns the number of features.
func (b *FeaturesBag) Len() int { return len(b.Features) }

// SortedKeys returns the features in lexical order.
func (b *FeaturesBag) SortedKeys() []string {
	keys := make([]string, 0, len(b.Features))
	for k := range b.Features {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Embedding is a dense vector with its declared dimensionality.
type Embedding struct {
	Vector []float64 `json:"vector"`
	Dim    int       `json:"dim"`
}

// NewEmbedding wraps v; the dimensionality is len(v).
func NewEmbedding(v []float64) *Embedding {
	return &Embedding{Vector: v, Dim: len(v)}
}

func (e *Embedding) Kind() Kind { return KindEmbedding }

// Node is a vertex of a Graph representation.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// Edge is a directed, optionally weighted, labelled arc.
type Edge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Label  string  `json:"label,omitempty"`
	Weight float64 `json:"weight,omitempty"`
}

// Graph is a graph-structured representation produced by graph-mapping
// techniques.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

func (g *Graph) Kind() Kind { return KindGraph }

// HasNode reports whether a node with the given id exists.
func (g *Graph) HasNode(id string) bool {
	for _, n := range g.Nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}

// Neighbors returns the targets of edges leaving id, in edge order.
func (g *Graph) Neighbors(id string) []string {
	var out []string
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e.To)
		}
	}
	return out
}
