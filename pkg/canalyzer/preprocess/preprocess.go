// Package preprocess defines the transform applied to a raw field value before
// a production technique sees it, plus the stock adapters.
//
// A Preprocessor is a pure function of its input. Chains run in order, each
// step consuming the previous step's output; the first step receives Raw(v).
package preprocess

import (
	"strings"
	"unicode"
)

// Value is a field value moving through a preprocessing chain. Tokens is nil
// until some step tokenizes the text.
//
// Ends records sentence boundaries over Tokens: sentence i spans
// Tokens[Ends[i-1]:Ends[i]]. It is nil when no step has split sentences.
type Value struct {
	Text   string
	Tokens []string
	Ends   []int
}

// Raw wraps an untouched field value.
func Raw(s string) Value {
	return Value{Text: s}
}

// Tokenized reports whether a step has produced tokens.
func (v Value) Tokenized() bool { return v.Tokens != nil }

// Words returns the tokens, or a whitespace split of the text when no step
// has tokenized it.
func (v Value) Words() []string {
	if v.Tokens != nil {
		return v.Tokens
	}
	return strings.Fields(v.Text)
}

// Sentences returns the tokens grouped by sentence. Without recorded
// boundaries every word belongs to a single sentence.
func (v Value) Sentences() [][]string {
	words := v.Words()
	if v.Ends == nil {
		if len(words) == 0 {
			return nil
		}
		return [][]string{words}
	}
	out := make([][]string, 0, len(v.Ends))
	start := 0
	for _, end := range v.Ends {
		out = append(out, words[start:end])
		start = end
	}
	return out
}

// perSentence rewrites the tokens one sentence at a time so phrase matching
// never crosses a boundary and Ends stays aligned with the new tokens.
func (v Value) perSentence(fn func([]string) []string) Value {
	if v.Ends == nil {
		tokens := fn(v.Words())
		if tokens == nil {
			tokens = []string{}
		}
		return Value{Text: v.Text, Tokens: tokens}
	}
	out := Value{Text: v.Text, Tokens: []string{}, Ends: make([]int, 0, len(v.Ends))}
	for _, s := range v.Sentences() {
		out.Tokens = append(out.Tokens, fn(s)...)
		out.Ends = append(out.Ends, len(out.Tokens))
	}
	return out
}

// SplitSentences splits text after '.', '!' or '?' when followed by
// whitespace or the end of text. Empty sentences are dropped.
func SplitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// Preprocessor transforms a field value.
type Preprocessor interface {
	Name() string
	Process(v Value) (Value, error)
}

// Func adapts a plain function to Preprocessor.
type Func struct {
	Label string
	Fn    func(Value) (Value, error)
}

func (f Func) Name() string                   { return f.Label }
func (f Func) Process(v Value) (Value, error) { return f.Fn(v) }

// Lowercase lower-cases text and tokens.
type Lowercase struct{}

func (Lowercase) Name() string { return "lowercase" }

func (Lowercase) Process(v Value) (Value, error) {
	if v.Tokens == nil {
		return Value{Text: strings.ToLower(v.Text)}, nil
	}
	out := v.perSentence(func(ts []string) []string {
		lower := make([]string, len(ts))
		for i, t := range ts {
			lower[i] = strings.ToLower(t)
		}
		return lower
	})
	out.Text = strings.ToLower(v.Text)
	return out, nil
}

// Chain runs preprocessors in order starting from Raw(raw).
func Chain(raw string, steps ...Preprocessor) (Value, error) {
	v := Raw(raw)
	for _, p := range steps {
		next, err := p.Process(v)
		if err != nil {
			return Value{}, err
		}
		v = next
	}
	return v, nil
}
