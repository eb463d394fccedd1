package index

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory/memorytest"
)

var (
	_ memory.Backend        = (*Index)(nil)
	_ memory.FrequencyIndex = (*Index)(nil)
	_ memory.Reader         = (*Index)(nil)
)

func TestIndexPostings(t *testing.T) {
	ix := New("")
	contents, order := memorytest.Corpus(t)
	memorytest.Write(t, ix, contents, order)

	assert.Equal(t, []string{"m1", "m2", "m3"}, ix.Postings("plot", "dog"))
	assert.Equal(t, []string{"m1"}, ix.Postings("plot", "cat"))
	assert.Nil(t, ix.Postings("plot", "robot"))
	assert.Equal(t, []string{"m3"}, ix.Postings("title", "alien"))

	assert.Equal(t, []string{"m2"}, ix.All("plot", "dog", "bird"))
	assert.Nil(t, ix.All("plot", "dog", "robot"))
	assert.Equal(t, int64(3), ix.DocumentFrequency("plot", "dog"))

	memorytest.AssertRoundTrip(t, ix, contents)
}

func TestIndexFrequencies(t *testing.T) {
	ctx := context.Background()
	ix := New("ix")
	contents, order := memorytest.Corpus(t)
	memorytest.Write(t, ix, contents, order)

	freqs, err := ix.Frequencies(ctx, "m1", "plot")
	require.NoError(t, err)
	assert.InDelta(t, 2*(math.Log(4.0/2.0)+1), freqs["cat"], 1e-9)
	assert.InDelta(t, 1.0, freqs["dog"], 1e-9)

	_, err = ix.Frequencies(ctx, "missing", "plot")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
}

func TestIndexRequiresFinalize(t *testing.T) {
	ctx := context.Background()
	ix := New("ix")
	require.NoError(t, ix.Open(ctx))
	require.NoError(t, ix.Commit(ctx, content.New("m1")))
	assert.ErrorIs(t, ix.Commit(ctx, content.New("m1")), internalerr.ErrDuplicate)

	_, err := ix.Frequencies(ctx, "m1", "plot")
	assert.ErrorIs(t, err, internalerr.ErrSequence)
	require.NoError(t, ix.Close())
}
