package preprocess

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into lower-case word tokens.
type Tokenizer struct {
	stopwords map[string]struct{}
	lexicon   *Lexicon
}

// NewTokenizer returns a tokenizer dropping the given stopwords.
func NewTokenizer(stopwords []string) *Tokenizer {
	stops := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stops[strings.ToLower(w)] = struct{}{}
	}
	return &Tokenizer{stopwords: stops}
}

// SetLexicon canonicalizes every token through lex ("gaming" -> "game").
func (t *Tokenizer) SetLexicon(lex *Lexicon) {
	t.lexicon = lex
}

func (t *Tokenizer) Name() string { return "tokenizer" }

// Process tokenizes the value text sentence by sentence and records the
// boundaries in Ends. An already tokenized value is tokenized again within its
// existing sentences so stopwords and cleaning apply uniformly.
func (t *Tokenizer) Process(v Value) (Value, error) {
	retokenize := func(ts []string) []string { return t.Tokenize(strings.Join(ts, " ")) }
	if v.Tokens != nil {
		return v.perSentence(retokenize), nil
	}
	out := Value{Text: v.Text, Tokens: []string{}, Ends: []int{}}
	for _, s := range SplitSentences(v.Text) {
		out.Tokens = append(out.Tokens, t.Tokenize(s)...)
		out.Ends = append(out.Ends, len(out.Tokens))
	}
	return out, nil
}

// Tokenize splits text on runs of anything but letters, digits and hyphens,
// lower-cases each piece and drops single characters, bare numbers and
// stopwords. With a lexicon set, tokens are canonicalized before the
// stopword check.
func (t *Tokenizer) Tokenize(text string) []string {
	var tokens []string
	pieces := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '-'
	})
	for _, p := range pieces {
		word := trimHyphens(p)
		if len(word) <= 1 || numeric(word) {
			continue
		}
		if t.lexicon != nil {
			word = t.lexicon.Normalize(word)
		}
		if t.isStopword(word) {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// trimHyphens drops edge hyphens and collapses inner runs to one.
func trimHyphens(s string) string {
	var b strings.Builder
	prev := true
	for _, r := range s {
		if r == '-' {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteRune(r)
	}
	return strings.TrimRight(b.String(), "-")
}

// numeric reports whether s holds only digits and hyphens ("2024", "1-2").
func numeric(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) && r != '-' }) < 0
}

func (t *Tokenizer) isStopword(word string) bool {
	_, ok := t.stopwords[word]
	return ok
}

// AddStopword drops word from future output.
func (t *Tokenizer) AddStopword(word string) {
	t.stopwords[strings.ToLower(word)] = struct{}{}
}

// RemoveStopword keeps word in future output.
func (t *Tokenizer) RemoveStopword(word string) {
	delete(t.stopwords, strings.ToLower(word))
}
