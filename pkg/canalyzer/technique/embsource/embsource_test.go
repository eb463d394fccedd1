package embsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
	"github.com/cognicore/canalyzer/pkg/canalyzer/technique"
)

var (
	_ technique.EmbeddingSource = (*Map)(nil)
	_ technique.EmbeddingSource = (*SQLite)(nil)
)

func TestLoadWord2VecText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.txt")
	data := "2 3\nspace 1 0 0.5\nalien 0 1 -0.5\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	m, err := LoadWord2VecText(path)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Size())
	assert.Equal(t, 2, m.Len())

	v, ok, err := m.Lookup("alien")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1, -0.5}, v)

	_, ok, err = m.Lookup("robot")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadWord2VecTextWithoutHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.txt")
	require.NoError(t, os.WriteFile(path, []byte("cat 0.1 0.2\ndog 0.3 0.4\n"), 0o644))

	m, err := LoadWord2VecText(path)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Size())
}

func TestLoadWord2VecTextErrors(t *testing.T) {
	dir := t.TempDir()

	ragged := filepath.Join(dir, "ragged.txt")
	require.NoError(t, os.WriteFile(ragged, []byte("cat 0.1 0.2\ndog 0.3\n"), 0o644))
	_, err := LoadWord2VecText(ragged)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)

	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("cat x y\n"), 0o644))
	_, err = LoadWord2VecText(bad)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)

	_, err = LoadWord2VecText(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestSQLiteSource(t *testing.T) {
	ctx := context.Background()
	src, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "emb.db"), 2)
	require.NoError(t, err)
	defer src.Close()

	require.NoError(t, src.Put(ctx, "space", []float64{1.5, -2}))
	require.NoError(t, src.Put(ctx, "space", []float64{3, 4}))
	assert.ErrorIs(t, src.Put(ctx, "bad", []float64{1}), internalerr.ErrInvalidInput)

	v, ok, err := src.Lookup("space")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{3, 4}, v)

	_, ok, err = src.Lookup("robot")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteSourceClosedIsFatal(t *testing.T) {
	ctx := context.Background()
	src, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "emb.db"), 2)
	require.NoError(t, err)
	require.NoError(t, src.Close())

	_, _, err = src.Lookup("space")
	assert.ErrorIs(t, err, internalerr.ErrStoreUnavailable)
}
