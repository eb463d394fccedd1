package technique

import (
	"context"
	"sort"

	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
	"github.com/cognicore/canalyzer/pkg/canalyzer/preprocess"
)

// CooccurrenceGraph links the tokens of a value whose corpus-wide NPMI is at
// least MinNPMI. Edge weights are the NPMI scores.
type CooccurrenceGraph struct {
	MinNPMI float64
	MinDF   int64 // pairs seen in fewer documents are ignored

	calc   *PMICalculator
	states fieldStates[*Counter]
}

// NewCooccurrenceGraph returns an unrefactored graph technique.
func NewCooccurrenceGraph(minNPMI float64, minDF int64) *CooccurrenceGraph {
	if minDF < 1 {
		minDF = 1
	}
	return &CooccurrenceGraph{MinNPMI: minNPMI, MinDF: minDF, calc: NewPMICalculator(1.0)}
}

func (g *CooccurrenceGraph) Name() string { return "cooccurrence_graph" }

// NeedsRefactor implements CollectionBased.
func (g *CooccurrenceGraph) NeedsRefactor(field string) bool { return !g.states.done(field) }

// Refactor rebuilds the pair statistics for corpus.Field().
func (g *CooccurrenceGraph) Refactor(ctx context.Context, corpus Corpus) error {
	counter := NewCounter()
	err := corpus.Each(ctx, func(v preprocess.Value) error {
		counter.AddDocumentPairs(uniqueWords(v.Words()))
		return nil
	})
	if err != nil {
		return err
	}
	g.states.set(corpus.Field(), counter)
	return nil
}

// Artifact returns the pair statistics for field.
func (g *CooccurrenceGraph) Artifact(field string) (*Counter, bool) {
	return g.states.get(field)
}

// Produce implements Technique. Nodes are the value's distinct tokens in
// lexical order; edges are sorted by (from, to).
func (g *CooccurrenceGraph) Produce(ctx context.Context, in Input) (content.Representation, error) {
	counter, ok := g.states.get(in.Field)
	if !ok {
		return nil, &internalerr.TechniqueError{Technique: g.Name(), Field: in.Field, Err: internalerr.ErrNotRefactored}
	}
	calc := g.calc
	if calc == nil {
		calc = NewPMICalculator(1.0)
	}

	tokens := uniqueWords(in.Value.Words())
	sort.Strings(tokens)

	out := &content.Graph{Nodes: make([]content.Node, 0, len(tokens)), Edges: []content.Edge{}}
	for _, tok := range tokens {
		out.Nodes = append(out.Nodes, content.Node{ID: tok})
	}
	for i := 0; i < len(tokens); i++ {
		for j := i + 1; j < len(tokens); j++ {
			a, b := tokens[i], tokens[j]
			nAB := counter.GetPairCount(a, b)
			if nAB < g.MinDF {
				continue
			}
			score := calc.NPMI(nAB, counter.GetTokenCount(a), counter.GetTokenCount(b), counter.TotalDocs())
			if score < g.MinNPMI {
				continue
			}
			out.Edges = append(out.Edges, content.Edge{From: a, To: b, Label: "cooccurs", Weight: score})
		}
	}
	return out, nil
}
