package technique

import (
	"context"
	"math"

	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
	"github.com/cognicore/canalyzer/pkg/canalyzer/preprocess"
)

// TermFrequency is a single-content technique: raw term counts of the value.
type TermFrequency struct{}

func (TermFrequency) Name() string { return "term_frequency" }

// Produce implements Technique.
func (TermFrequency) Produce(ctx context.Context, in Input) (content.Representation, error) {
	bag := content.NewFeaturesBag()
	for _, w := range in.Value.Words() {
		bag.Features[w]++
	}
	return bag, nil
}

// TFIDF weighs term counts by smoothed inverse document frequency computed
// over the field corpus:
//
//	idf(t) = ln((1 + N) / (1 + df(t))) + 1
//
// The document-frequency table is the field-scoped artifact.
type TFIDF struct {
	states fieldStates[*Counter]
}

// NewTFIDF returns an unrefactored TF-IDF technique.
func NewTFIDF() *TFIDF { return &TFIDF{} }

func (t *TFIDF) Name() string { return "tfidf" }

// NeedsRefactor implements CollectionBased.
func (t *TFIDF) NeedsRefactor(field string) bool { return !t.states.done(field) }

// Refactor rebuilds the document-frequency table for corpus.Field().
func (t *TFIDF) Refactor(ctx context.Context, corpus Corpus) error {
	counter := NewCounter()
	err := corpus.Each(ctx, func(v preprocess.Value) error {
		counter.AddDocument(uniqueWords(v.Words()))
		return nil
	})
	if err != nil {
		return err
	}
	t.states.set(corpus.Field(), counter)
	return nil
}

// Artifact returns the document-frequency table for field.
func (t *TFIDF) Artifact(field string) (*Counter, bool) {
	return t.states.get(field)
}

// IDF returns the smoothed inverse document frequency of term in field.
func (t *TFIDF) IDF(field, term string) float64 {
	c, ok := t.states.get(field)
	if !ok {
		return 0
	}
	return idf(c, term)
}

// Produce implements Technique.
func (t *TFIDF) Produce(ctx context.Context, in Input) (content.Representation, error) {
	counter, ok := t.states.get(in.Field)
	if !ok {
		return nil, &internalerr.TechniqueError{Technique: t.Name(), Field: in.Field, Err: internalerr.ErrNotRefactored}
	}

	tf := make(map[string]float64)
	for _, w := range in.Value.Words() {
		tf[w]++
	}
	bag := content.NewFeaturesBag()
	for term, n := range tf {
		bag.Set(term, n*idf(counter, term))
	}
	return bag, nil
}

func idf(c *Counter, term string) float64 {
	n := float64(c.TotalDocs())
	df := float64(c.GetTokenCount(term))
	return math.Log((1+n)/(1+df)) + 1
}
