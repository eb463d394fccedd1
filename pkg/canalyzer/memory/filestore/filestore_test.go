package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

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
	for _, c := range []Compression{Zstd, LZ4} {
		t.Run(string(c), func(t *testing.T) {
			dir := t.TempDir()
			fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			s := New(dir, WithCompression(c), WithClock(func() time.Time { return fixed }))

			contents, order := memorytest.Corpus(t)
			memorytest.Write(t, s, contents, order)

			for _, id := range order {
				_, err := os.Stat(filepath.Join(dir, id+c.Ext()))
				require.NoError(t, err)
			}
			_, err := os.Stat(filepath.Join(dir, lockName))
			assert.True(t, os.IsNotExist(err), "lock is released after the pass")

			memorytest.AssertRoundTrip(t, s, contents)

			all, err := LoadAll(dir)
			require.NoError(t, err)
			assert.Equal(t, order, all.IDs())

			m, err := ReadManifest(dir)
			require.NoError(t, err)
			assert.Equal(t, c, m.Compression)
			assert.True(t, fixed.Equal(m.WrittenAt))
		})
	}
}

func TestStoreLockExcludesSecondWriter(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := New(dir)
	require.NoError(t, first.Open(ctx))

	second := New(dir)
	assert.ErrorIs(t, second.Open(ctx), internalerr.ErrStoreUnavailable)

	require.NoError(t, first.Close())
	require.NoError(t, second.Open(ctx))
	require.NoError(t, second.Close())
}

func TestStoreSanitizedNames(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, s.Open(ctx))
	defer s.Close()

	require.NoError(t, s.Commit(ctx, content.New("tt/0001:a")))
	_, err := os.Stat(filepath.Join(dir, "tt0001a.json.zst"))
	require.NoError(t, err)

	assert.ErrorIs(t, s.Commit(ctx, content.New("tt0001-a")), internalerr.ErrDuplicate)
	assert.ErrorIs(t, s.Commit(ctx, content.New("///")), internalerr.ErrInvalidInput)

	got, err := Load(dir, "tt/0001:a")
	require.NoError(t, err)
	assert.Equal(t, "tt/0001:a", got.ID)
}

func TestAbortedPassKeepsCommittedFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := memory.NewSession(New(dir))

	require.NoError(t, s.InitWriting(ctx))
	require.NoError(t, s.BeginContent("m1"))
	require.NoError(t, s.CommitContent(ctx))
	require.NoError(t, s.Abort())

	_, err := Load(dir, "m1")
	require.NoError(t, err)
	_, err = ReadManifest(dir)
	assert.ErrorIs(t, err, internalerr.ErrNotFound, "no manifest without finalize")
}

func writePass(t *testing.T, dir string, c Compression, ids ...string) {
	t.Helper()
	ctx := context.Background()
	err := memory.WithWriting(ctx, memory.NewSession(New(dir, WithCompression(c))), func(s *memory.Session) error {
		for _, id := range ids {
			if err := s.BeginContent(id); err != nil {
				return err
			}
			if err := s.CommitContent(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestNewPassClearsPreviousContents(t *testing.T) {
	dir := t.TempDir()
	writePass(t, dir, Zstd, "old", "keep")
	writePass(t, dir, LZ4, "keep")

	m, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, []ManifestEntry{{ID: "keep", File: "keep.json.lz4"}}, m.Contents)

	_, err = Load(dir, "old")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
	_, err = os.Stat(filepath.Join(dir, "keep.json.zst"))
	assert.True(t, os.IsNotExist(err), "files of the other codec are removed too")

	got, err := Load(dir, "keep")
	require.NoError(t, err)
	assert.Equal(t, "keep", got.ID)
}

func TestOpenLeavesForeignFiles(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("x"), 0o644))

	writePass(t, dir, Zstd, "m1")
	_, err := os.Stat(notes)
	assert.NoError(t, err)
}

func TestLoadRejectsSanitizedNameCollision(t *testing.T) {
	dir := t.TempDir()
	writePass(t, dir, Zstd, "ab")

	_, err := Load(dir, "a.b")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)

	got, err := Load(dir, "ab")
	require.NoError(t, err)
	assert.Equal(t, "ab", got.ID)
}

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, "tt0001", SanitizeID("tt-0001"))
	assert.Equal(t, "Amélie 2001", SanitizeID("Amélie (2001)"))
	assert.Equal(t, "a_b", SanitizeID("a_b"))
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, Zstd, c)

	c, err = ParseCompression("lz4")
	require.NoError(t, err)
	assert.Equal(t, ".json.lz4", c.Ext())

	_, err = ParseCompression("gzip")
	assert.Error(t, err)
}
