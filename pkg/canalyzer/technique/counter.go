package technique

import "sort"

// Counter maintains document and co-occurrence counts over a field corpus.
// It is the artifact of the collection-based techniques.
type Counter struct {
	N   int64               // total number of documents
	Nx  map[string]int64    // document frequency per token
	Nxy map[TokenPair]int64 // co-occurrence count per token pair
}

// TokenPair represents an ordered pair of tokens (t1 < t2)
type TokenPair struct {
	T1, T2 string
}

// NewCounter creates a new co-occurrence counter
func NewCounter() *Counter {
	return &Counter{
		Nx:  make(map[string]int64),
		Nxy: make(map[TokenPair]int64),
	}
}

// AddDocument updates document frequencies for a document with unique tokens.
func (c *Counter) AddDocument(uniqueTokens []string) {
	c.N++
	for _, t := range uniqueTokens {
		c.Nx[t]++
	}
}

// AddDocumentPairs updates document frequencies and pair counts.
func (c *Counter) AddDocumentPairs(uniqueTokens []string) {
	c.AddDocument(uniqueTokens)

	sorted := make([]string, len(uniqueTokens))
	copy(sorted, uniqueTokens)
	sort.Strings(sorted)

	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			c.Nxy[TokenPair{T1: sorted[i], T2: sorted[j]}]++
		}
	}
}

// GetPairCount returns the co-occurrence count for a token pair
func (c *Counter) GetPairCount(t1, t2 string) int64 {
	if t1 > t2 {
		t1, t2 = t2, t1
	}
	return c.Nxy[TokenPair{T1: t1, T2: t2}]
}

// GetTokenCount returns the document frequency for a token
func (c *Counter) GetTokenCount(t string) int64 {
	return c.Nx[t]
}

// TotalDocs returns the total number of documents processed
func (c *Counter) TotalDocs() int64 {
	return c.N
}

// UniqueTokens returns the number of unique tokens
func (c *Counter) UniqueTokens() int {
	return len(c.Nx)
}

// UniquePairs returns the number of unique token pairs
func (c *Counter) UniquePairs() int {
	return len(c.Nxy)
}

// Equal reports whether two counters hold identical counts.
func (c *Counter) Equal(other *Counter) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.N != other.N || len(c.Nx) != len(other.Nx) || len(c.Nxy) != len(other.Nxy) {
		return false
	}
	for k, v := range c.Nx {
		if other.Nx[k] != v {
			return false
		}
	}
	for k, v := range c.Nxy {
		if other.Nxy[k] != v {
			return false
		}
	}
	return true
}
