package preprocess

import "strings"

// MultiTokenParser merges known multi-word phrases into single tokens
type MultiTokenParser struct {
	dict   map[string]DictEntry // phrase → entry
	maxLen int
}

// DictEntry is a dictionary phrase with its variants
type DictEntry struct {
	Canonical string
	Category  string
	Variants  []string
}

// NewMultiTokenParser creates a new parser with the given dictionary
func NewMultiTokenParser(entries []DictEntry) *MultiTokenParser {
	dict := make(map[string]DictEntry)
	maxLen := 1
	add := func(phrase string, e DictEntry) {
		phrase = strings.ToLower(phrase)
		dict[phrase] = e
		if l := phraseLen(phrase); l > maxLen {
			maxLen = l
		}
	}
	for _, e := range entries {
		add(e.Canonical, e)
		for _, v := range e.Variants {
			add(v, e)
		}
	}
	return &MultiTokenParser{dict: dict, maxLen: maxLen}
}

func (p *MultiTokenParser) Name() string { return "multitoken" }

// Process merges phrases within each sentence of the value.
func (p *MultiTokenParser) Process(v Value) (Value, error) {
	return v.perSentence(p.Parse), nil
}

// Parse applies greedy longest-match to recognize multi-token phrases
func (p *MultiTokenParser) Parse(tokens []string) []string {
	result := make([]string, 0, len(tokens))
	i := 0

	for i < len(tokens) {
		matched := ""
		matchLen := 1

		maxPhrase := p.maxLen
		if remaining := len(tokens) - i; maxPhrase > remaining {
			maxPhrase = remaining
		}
		for n := maxPhrase; n >= 2; n-- {
			phrase := strings.ToLower(strings.Join(tokens[i:i+n], " "))
			if entry, ok := p.dict[phrase]; ok {
				matched = entry.Canonical
				matchLen = n
				break
			}
		}

		if matched != "" {
			result = append(result, matched)
			i += matchLen
			continue
		}

		// single-token variants map to their canonical form
		if entry, ok := p.dict[strings.ToLower(tokens[i])]; ok {
			result = append(result, entry.Canonical)
		} else {
			result = append(result, tokens[i])
		}
		i++
	}

	return result
}

func phraseLen(phrase string) int {
	if phrase == "" {
		return 1
	}
	return len(strings.Fields(phrase))
}
