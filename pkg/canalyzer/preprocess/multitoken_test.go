package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiTokenBasic(t *testing.T) {
	parser := NewMultiTokenParser([]DictEntry{
		{Canonical: "machine learning", Variants: []string{"ml"}, Category: "ai"},
		{Canonical: "neural network", Variants: []string{"nn"}, Category: "ai"},
	})

	result := parser.Parse([]string{"deep", "machine", "learning", "uses", "neural", "network"})
	assert.Equal(t, []string{"deep", "machine learning", "uses", "neural network"}, result)
}

func TestMultiTokenSynonymNormalization(t *testing.T) {
	parser := NewMultiTokenParser([]DictEntry{
		{Canonical: "machine learning", Variants: []string{"ml"}, Category: "ai"},
	})

	result := parser.Parse([]string{"using", "ML", "for", "prediction"})
	assert.Equal(t, []string{"using", "machine learning", "for", "prediction"}, result)
}

func TestMultiTokenGreedyLongest(t *testing.T) {
	parser := NewMultiTokenParser([]DictEntry{
		{Canonical: "language model", Category: "ai"},
		{Canonical: "large language model", Variants: []string{"llm"}, Category: "ai"},
	})

	result := parser.Parse([]string{"large", "language", "model", "training"})
	assert.Equal(t, []string{"large language model", "training"}, result)
}

func TestMultiTokenEmpty(t *testing.T) {
	parser := NewMultiTokenParser(nil)

	assert.Empty(t, parser.Parse(nil))
	assert.Equal(t, []string{"plain"}, parser.Parse([]string{"plain"}), "unknown tokens pass through")
}

func TestMultiTokenProcessUsesWords(t *testing.T) {
	parser := NewMultiTokenParser([]DictEntry{{Canonical: "new york"}})

	v, err := parser.Process(Raw("flights to new york"))
	require.NoError(t, err)
	assert.Equal(t, []string{"flights", "to", "new york"}, v.Tokens)
}
