package technique

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounterMultipleDocuments(t *testing.T) {
	counter := NewCounter()
	for _, doc := range [][]string{
		{"a", "b"},
		{"a", "c"},
		{"b", "c"},
		{"a", "b", "c"},
	} {
		counter.AddDocumentPairs(doc)
	}

	assert.EqualValues(t, 4, counter.TotalDocs())
	assert.EqualValues(t, 3, counter.GetTokenCount("a"), "document frequency of a")
	assert.EqualValues(t, 2, counter.GetPairCount("a", "b"))
	assert.Equal(t, counter.GetPairCount("a", "c"), counter.GetPairCount("c", "a"), "pair counts are symmetric")
	assert.EqualValues(t, 3, counter.UniqueTokens())
	assert.EqualValues(t, 3, counter.UniquePairs())
}

func TestCounterDocumentOnly(t *testing.T) {
	counter := NewCounter()
	counter.AddDocument([]string{"a", "b"})
	counter.AddDocument([]string{})

	assert.EqualValues(t, 2, counter.TotalDocs(), "empty documents still count")
	assert.EqualValues(t, 0, counter.UniquePairs(), "AddDocument records no pairs")
	assert.EqualValues(t, 0, counter.GetTokenCount("nonexistent"))
}

func TestCounterEqual(t *testing.T) {
	a, b := NewCounter(), NewCounter()
	for _, c := range []*Counter{a, b} {
		c.AddDocumentPairs([]string{"x", "y"})
		c.AddDocumentPairs([]string{"y"})
	}
	assert.True(t, a.Equal(b))

	b.AddDocument([]string{"z"})
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(nil))
}

func TestPMIAssociation(t *testing.T) {
	calc := NewPMICalculator(1.0)

	assert.Greater(t, calc.PMI(8, 10, 10, 20), 0.0, "strong association")
	assert.InDelta(t, 0, calc.PMI(25, 50, 50, 100), 0.5, "independent terms")
	assert.Less(t, calc.PMI(5, 50, 50, 100), 0.0, "anti-correlated terms")
	assert.False(t, math.IsInf(calc.PMI(0, 10, 10, 100), -1), "smoothing keeps PMI finite")
	assert.Zero(t, calc.PMI(0, 0, 0, 0))
}

func TestNPMIRange(t *testing.T) {
	calc := NewPMICalculator(0)

	npmi := calc.NPMI(15, 20, 20, 100)
	assert.GreaterOrEqual(t, npmi, -1.0)
	assert.LessOrEqual(t, npmi, 1.0)
	assert.Zero(t, calc.NPMI(0, 20, 20, 100), "pairs that never co-occur")
}
