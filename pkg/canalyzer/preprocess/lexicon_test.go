package preprocess

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
)

func TestLexiconNormalize(t *testing.T) {
	lex := NewLexicon()
	lex.AddSynonymGroup("Game", []string{"games", "GAMING", "gamer", "game"})

	tests := []struct {
		in, want string
	}{
		{"gaming", "game"},
		{"Gamer", "game"},
		{"game", "game"},
		{"unknown", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, lex.Normalize(tt.in), "Normalize(%q)", tt.in)
	}

	assert.Equal(t, []string{"game", "games", "gaming", "gamer"}, lex.Variants("gamer"))
	assert.Equal(t, []string{"other"}, lex.Variants("other"))
}

func TestLexiconRegroupCleansReverseIndex(t *testing.T) {
	lex := NewLexicon()
	lex.AddSynonymGroup("car", []string{"automobile", "auto"})
	lex.AddSynonymGroup("car", []string{"vehicle"})

	assert.False(t, lex.HasSynonyms("auto"), "old variants are dropped on regroup")
	assert.Equal(t, "car", lex.Normalize("vehicle"))
}

func TestLoadLexicon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	data := `synonyms:
  - canonical: ml
    variants: [machine-learning, ML]
  - canonical: analyze
    variants: [analysis, analytical]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	lex, err := LoadLexicon(path)
	require.NoError(t, err)
	assert.Equal(t, "analyze", lex.Normalize("analytical"))
	assert.Equal(t, "ml", lex.Normalize("machine-learning"))

	_, err = LoadLexicon(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLexiconProcess(t *testing.T) {
	lex := NewLexicon()
	lex.AddSynonymGroup("film", []string{"movie", "movies"})

	v, err := lex.Process(Value{Tokens: []string{"Movies", "about", "space"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"film", "about", "space"}, v.Tokens)
}

func TestLexiconProcessPhrases(t *testing.T) {
	lex := NewLexicon()
	lex.AddSynonymGroup("scifi", []string{"science fiction", "Sci Fi"})

	v, err := lex.Process(Value{Tokens: []string{"classic", "Science", "fiction", "and", "sci", "fi", "science"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"classic", "scifi", "and", "scifi", "science"}, v.Tokens)
}

func TestLoadLexiconRejectsEmptyCanonical(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("synonyms:\n  - variants: [a]\n"), 0o644))

	_, err := LoadLexicon(path)
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}
