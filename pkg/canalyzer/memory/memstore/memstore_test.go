package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory/memorytest"
)

var (
	_ memory.Backend = (*Store)(nil)
	_ memory.Reader  = (*Store)(nil)
)

func TestStoreRoundTrip(t *testing.T) {
	s := New("")
	assert.Equal(t, "memory", s.Name())

	contents, order := memorytest.Corpus(t)
	memorytest.Write(t, s, contents, order)

	assert.Equal(t, order, s.Collection().IDs())
	memorytest.AssertRoundTrip(t, s, contents)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
}

func TestStoreRejectsDuplicateAndClosedCommit(t *testing.T) {
	ctx := context.Background()
	s := New("out")

	assert.ErrorIs(t, s.Commit(ctx, content.New("m1")), internalerr.ErrStoreUnavailable)

	require.NoError(t, s.Open(ctx))
	assert.ErrorIs(t, s.Open(ctx), internalerr.ErrStoreUnavailable)
	require.NoError(t, s.Commit(ctx, content.New("m1")))
	assert.ErrorIs(t, s.Commit(ctx, content.New("m1")), internalerr.ErrDuplicate)
	require.NoError(t, s.Close())
}

func TestStoreOpenStartsFresh(t *testing.T) {
	ctx := context.Background()
	s := New("out")
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Commit(ctx, content.New("m1")))
	require.NoError(t, s.Close())

	require.NoError(t, s.Open(ctx))
	assert.Equal(t, 0, s.Collection().Len())
	require.NoError(t, s.Close())
}
