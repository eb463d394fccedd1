package sqlitestore

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory/memorytest"
)

var (
	_ memory.Backend        = (*Store)(nil)
	_ memory.FrequencyIndex = (*Store)(nil)
	_ memory.Reader         = (*Store)(nil)
)

func TestStoreFrequencies(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "contents.db"))

	contents, order := memorytest.Corpus(t)
	memorytest.Write(t, s, contents, order)

	freqs, err := s.Frequencies(ctx, "m1", "plot")
	require.NoError(t, err)
	assert.InDelta(t, 2*(math.Log(4.0/2.0)+1), freqs["cat"], 1e-9)
	assert.InDelta(t, 1.0, freqs["dog"], 1e-9)
	assert.Greater(t, freqs["cat"], freqs["dog"])

	df, err := s.DocumentFrequency(ctx, "plot", "dog")
	require.NoError(t, err)
	assert.Equal(t, int64(3), df)

	empty, err := s.Frequencies(ctx, "m1", "title")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = s.Frequencies(ctx, "nope", "plot")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
}

func TestStoreReadsBackAfterClose(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "contents.db"))

	contents, order := memorytest.Corpus(t)
	memorytest.Write(t, s, contents, order)

	memorytest.AssertRoundTrip(t, s, contents)

	ids, err := s.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, order, ids)

	terms, err := s.Terms(ctx, "plot")
	require.NoError(t, err)
	assert.Equal(t, []string{"bird", "cat", "dog"}, terms)
}

func TestStoreNewPassReplacesOld(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "contents.db"))

	contents, order := memorytest.Corpus(t)
	memorytest.Write(t, s, contents, order)
	memorytest.Write(t, s, map[string][]*content.Field{
		"x": {memorytest.Field(t, "plot", map[string]float64{"cat": 1})},
	}, []string{"x"})

	ids, err := s.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, ids)
}

func TestStoreDuplicateCommitRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "contents.db"))
	require.NoError(t, s.Open(ctx))
	defer s.Close()

	c := content.New("m1")
	require.NoError(t, c.Append(memorytest.Field(t, "plot", map[string]float64{"cat": 1})))
	require.NoError(t, s.Commit(ctx, c))
	assert.ErrorIs(t, s.Commit(ctx, c), internalerr.ErrDuplicate)

	assert.ErrorIs(t, s.Open(ctx), internalerr.ErrStoreUnavailable)
}
