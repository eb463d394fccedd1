package technique

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
	"github.com/cognicore/canalyzer/pkg/canalyzer/preprocess"
)

// EmbeddingSource maps a unit (word, sentence or document) to a vector.
// A missing unit is (nil, false, nil); a non-nil error means the source
// itself failed.
type EmbeddingSource interface {
	Lookup(unit string) ([]float64, bool, error)
	Size() int
}

// Combiner folds several vectors of the same size into one.
type Combiner interface {
	Combine(vectors [][]float64, size int) []float64
}

// Centroid is the elementwise mean.
type Centroid struct{}

// Combine implements Combiner.
func (Centroid) Combine(vectors [][]float64, size int) []float64 {
	out := make([]float64, size)
	if len(vectors) == 0 {
		return out
	}
	for _, v := range vectors {
		for i := 0; i < size && i < len(v); i++ {
			out[i] += v[i]
		}
	}
	n := float64(len(vectors))
	for i := range out {
		out[i] /= n
	}
	return out
}

// ElementwiseMax keeps the largest value per dimension.
type ElementwiseMax struct{}

// Combine implements Combiner.
func (ElementwiseMax) Combine(vectors [][]float64, size int) []float64 {
	out := make([]float64, size)
	if len(vectors) == 0 {
		return out
	}
	copy(out, vectors[0])
	for _, v := range vectors[1:] {
		for i := 0; i < size && i < len(v); i++ {
			if v[i] > out[i] {
				out[i] = v[i]
			}
		}
	}
	return out
}

// Granularity selects the unit looked up in the embedding source.
type Granularity int

const (
	Word Granularity = iota
	Sentence
	Document
)

func (g Granularity) String() string {
	switch g {
	case Word:
		return "word"
	case Sentence:
		var sentences [][]float64
		for _, words := range e.sentenceUnits(in.Value) {
			found, serr := e.lookupAll(words)
			if serr != nil {
				err = serr
				break
			}
			if len(found) > 0 {
				sentences = append(sentences, combiner.Combine(found, size))
			}
		}
		if err == nil {
			vec = combiner.Combine(sentences, size)
		}
	default:
		vec, err = e.combineUnits(in.Value.Words(), combiner, size)
	}
	if err != nil {
		return nil, &internalerr.TechniqueError{Technique: e.Name(), Field: in.Field, Err: err}
	}
	return content.NewEmbedding(vec), nil
}

func (e *Embedding) combineUnits(units []string, c Combiner, size int) ([]float64, error) {
	found, err := e.lookupAll(units)
	if err != nil {
		return nil, err
	}
	return c.Combine(found, size), nil
}

// lookupAll returns the vectors of the units that were found; misses are
// skipped.
func (e *Embedding) lookupAll(units []string) ([][]float64, error) {
	var found [][]float64
	for _, u := range units {
		if u == "" {
			continue
		}
		v, ok, err := e.Source.Lookup(u)
		if err != nil {
			return nil, fmt.Errorf("lookup %q: %w", u, err)
		}
		if ok {
			found = append(found, v)
		}
	}
	return found, nil
}

// sentenceUnits returns the words of each sentence. A tokenized value keeps
// the tokens the pipeline produced, grouped by the boundaries it recorded;
// raw text is split by the sentence detector.
func (e *Embedding) sentenceUnits(v preprocess.Value) [][]string {
	if v.Tokenized() {
		return v.Sentences()
	}
	detector := e.Sentences
	if detector == nil {
		detector = PunctSentences{}
	}
	var out [][]string
	for _, s := range detector.Sentences(v.Text) {
		out = append(out, sentenceWords(s))
	}
	return out
}

func sentenceWords(s string) []string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool { return unicode.IsPunct(r) })
		if w != "" {
			out = append(out, strings.ToLower(w))
		}
	}
	return out
}
