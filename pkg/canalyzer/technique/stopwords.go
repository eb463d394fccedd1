package technique

import (
	"sort"

	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
)

// StopwordCandidate is a token that behaves like a stopword in a field
// corpus: it shows up in many documents and associates with nothing.
type StopwordCandidate struct {
	Token     string
	DF        int64
	DFPercent float64
	MaxNPMI   float64 // strongest association with any other token
	Score     float64 // higher is more confident
}

// StopwordThresholds defines criteria for stopword identification.
type StopwordThresholds struct {
	DFPercent float64 // e.g. 60: appears in more than 60% of documents
	MaxNPMI   float64 // e.g. 0.15: no association stronger than this
}

// DefaultStopwordThresholds returns sensible default thresholds on the NPMI
// scale.
func DefaultStopwordThresholds() StopwordThresholds {
	return StopwordThresholds{DFPercent: 60, MaxNPMI: 0.15}
}

// SuggestStopwords ranks tokens of a refactored field whose document
// frequency is above th.DFPercent and whose best NPMI is below th.MaxNPMI.
// Tokens for which known returns true are left out. Results are sorted by
// score, highest first.
func (g *CooccurrenceGraph) SuggestStopwords(field string, th StopwordThresholds, known func(string) bool) ([]StopwordCandidate, error) {
	counter, ok := g.states.get(field)
	if !ok {
		return nil, &internalerr.TechniqueError{Technique: g.Name(), Field: field, Err: internalerr.ErrNotRefactored}
	}
	calc := g.calc
	if calc == nil {
		calc = NewPMICalculator(1.0)
	}
	return suggestStopwords(counter, calc, th, known), nil
}

func suggestStopwords(c *Counter, calc *PMICalculator, th StopwordThresholds, known func(string) bool) []StopwordCandidate {
	if c.N == 0 {
		return nil
	}

	// Tokens that never co-occur keep a best association of 0.
	best := make(map[string]float64, len(c.Nx))
	seen := make(map[string]bool, len(c.Nx))
	for pair, nAB := range c.Nxy {
		score := calc.NPMI(nAB, c.Nx[pair.T1], c.Nx[pair.T2], c.N)
		for _, tok := range []string{pair.T1, pair.T2} {
			if !seen[tok] || score > best[tok] {
				best[tok] = score
				seen[tok] = true
			}
		}
	}

	var out []StopwordCandidate
	for tok, df := range c.Nx {
		if known != nil && known(tok) {
			continue
		}
		pct := 100 * float64(df) / float64(c.N)
		if pct <= th.DFPercent {
			continue
		}
		maxNPMI := best[tok]
		if maxNPMI >= th.MaxNPMI {
			continue
		}
		out = append(out, StopwordCandidate{
			Token:     tok,
			DF:        df,
			DFPercent: pct,
			MaxNPMI:   maxNPMI,
			Score:     (pct/100 + (1 - maxNPMI)) / 2,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Token < out[j].Token
	})
	return out
}
