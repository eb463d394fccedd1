package preprocess

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
)

// Lexicon rewrites tokens to a canonical form. A group holds a canonical
// term and its variants; variants may span several words ("science fiction"),
// in which case the longest matching run of tokens is replaced.
type Lexicon struct {
	groups    map[string][]string // canonical -> canonical first, then variants
	canonical map[string]string   // variant (space-joined) -> canonical
	maxWords  int
}

// NewLexicon returns an empty lexicon.
func NewLexicon() *Lexicon {
	return &Lexicon{
		groups:    make(map[string][]string),
		canonical: make(map[string]string),
		maxWords:  1,
	}
}

type lexiconFile struct {
	Synonyms []struct {
		Canonical string   `yaml:"canonical"`
		Variants  []string `yaml:"variants"`
	} `yaml:"synonyms"`
}

// LoadLexicon reads a YAML file of synonym groups:
//
//	synonyms:
//	  - canonical: film
//	    variants: [movie, movies, motion picture]
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	var file lexiconFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parse lexicon %s: %v", internalerr.ErrInvalidConfig, path, err)
	}

	lex := NewLexicon()
	for i, g := range file.Synonyms {
		if strings.TrimSpace(g.Canonical) == "" {
			return nil, fmt.Errorf("%w: lexicon %s: group %d has no canonical term", internalerr.ErrInvalidConfig, path, i)
		}
		lex.AddSynonymGroup(g.Canonical, g.Variants)
	}
	return lex, nil
}

// AddSynonymGroup registers canonical and its variants, case-folded.
// Registering the same canonical again replaces the earlier group.
func (l *Lexicon) AddSynonymGroup(canonical string, variants []string) {
	canonical = normPhrase(canonical)
	for _, old := range l.groups[canonical] {
		delete(l.canonical, old)
	}

	group := []string{canonical}
	l.canonical[canonical] = canonical
	for _, v := range variants {
		v = normPhrase(v)
		if v == "" {
			continue
		}
		if l.canonical[v] == canonical {
			continue
		}
		group = append(group, v)
		l.canonical[v] = canonical
		if n := len(strings.Fields(v)); n > l.maxWords {
			l.maxWords = n
		}
	}
	l.groups[canonical] = group
}

// Normalize maps a token or phrase to its canonical form. Unknown input is
// returned lower-cased.
func (l *Lexicon) Normalize(token string) string {
	token = normPhrase(token)
	if c, ok := l.canonical[token]; ok {
		return c
	}
	return token
}

// Variants returns the group containing token, canonical first, or a
// single-element slice when the token is unknown.
func (l *Lexicon) Variants(token string) []string {
	token = normPhrase(token)
	if c, ok := l.canonical[token]; ok {
		return l.groups[c]
	}
	return []string{token}
}

// HasSynonyms reports whether token belongs to a group.
func (l *Lexicon) HasSynonyms(token string) bool {
	_, ok := l.canonical[normPhrase(token)]
	return ok
}

func (l *Lexicon) Name() string { return "lexicon" }

// Process replaces every known word or phrase with its canonical form.
// Phrases do not span sentence boundaries.
func (l *Lexicon) Process(v Value) (Value, error) {
	return v.perSentence(l.rewrite), nil
}

func (l *Lexicon) rewrite(words []string) []string {
	out := make([]string, 0, len(words))
	for i := 0; i < len(words); {
		n, c := l.match(words[i:])
		if n == 0 {
			out = append(out, strings.ToLower(words[i]))
			i++
			continue
		}
		out = append(out, c)
		i += n
	}
	return out
}

// match finds the longest phrase at the head of words.
func (l *Lexicon) match(words []string) (int, string) {
	limit := min(l.maxWords, len(words))
	for n := limit; n > 0; n-- {
		if c, ok := l.canonical[normPhrase(strings.Join(words[:n], " "))]; ok {
			return n, c
		}
	}
	return 0, ""
}

func normPhrase(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
