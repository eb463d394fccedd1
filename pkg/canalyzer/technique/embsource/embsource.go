// Package embsource provides embedding sources for the embedding technique:
// an in-memory map, a word2vec text file loader and a SQLite-backed table.
package embsource

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
)

// Map is an in-memory embedding source. Lookups are exact.
type Map struct {
	vectors map[string][]float64
	size    int
}

// NewMap returns an empty source of the given dimensionality.
func NewMap(size int) *Map {
	return &Map{vectors: make(map[string][]float64), size: size}
}

// Add stores a vector. It must match the source size.
func (m *Map) Add(unit string, vec []float64) error {
	if len(vec) != m.size {
		return fmt.Errorf("%w: vector for %q has %d dims, want %d", internalerr.ErrInvalidInput, unit, len(vec), m.size)
	}
	m.vectors[unit] = vec
	return nil
}

// Lookup implements technique.EmbeddingSource.
func (m *Map) Lookup(unit string) ([]float64, bool, error) {
	v, ok := m.vectors[unit]
	return v, ok, nil
}

// Size implements technique.EmbeddingSource.
func (m *Map) Size() int { return m.size }

// Len returns the number of stored units.
func (m *Map) Len() int { return len(m.vectors) }

// LoadWord2VecText reads the word2vec text format: an optional "<count> <dim>"
// header followed by one "<unit> <v1> ... <vdim>" line per unit.
func LoadWord2VecText(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open embeddings: %w", err)
	}
	defer f.Close()

	var m *Map
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if lineNo == 1 && len(fields) == 2 {
			if dim, err := strconv.Atoi(fields[1]); err == nil {
				if _, err := strconv.Atoi(fields[0]); err == nil {
					m = NewMap(dim)
					continue
				}
			}
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: %s:%d: no vector", internalerr.ErrInvalidInput, path, lineNo)
		}
		vec := make([]float64, len(fields)-1)
		for i, s := range fields[1:] {
			vec[i], err = strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s:%d: %v", internalerr.ErrInvalidInput, path, lineNo, err)
			}
		}
		if m == nil {
			m = NewMap(len(vec))
		}
		if err := m.Add(fields[0], vec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read embeddings: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: %s: no vectors", internalerr.ErrInvalidInput, path)
	}
	return m, nil
}
