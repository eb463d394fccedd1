package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/canalyzer/pkg/canalyzer/preprocess"
	"github.com/cognicore/canalyzer/pkg/canalyzer/technique"
)

// TaxonomyFile is the on-disk taxonomy format:
//
//	facets:
//	  genre:
//	    scifi: [alien, spaceship]
//	entities:
//	  person:
//	    ripley: [ripley, ellen ripley]
type TaxonomyFile struct {
	Facets   map[string]map[string][]string `yaml:"facets"`
	Entities map[string]map[string][]string `yaml:"entities"`
}

// LoadTaxonomy loads a taxonomy from a YAML file
func LoadTaxonomy(path string) (*TaxonomyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tax TaxonomyFile
	if err := yaml.Unmarshal(data, &tax); err != nil {
		return nil, fmt.Errorf("parse taxonomy %s: %w", path, err)
	}
	return &tax, nil
}

// Build converts the file into a technique.Taxonomy.
func (f *TaxonomyFile) Build() *technique.Taxonomy {
	tax := technique.NewTaxonomy()
	for _, facet := range sortedKeys(f.Facets) {
		cats := f.Facets[facet]
		for _, name := range sortedKeys(cats) {
			tax.AddCategory(facet, name, cats[name])
		}
	}
	for _, typ := range sortedKeys(f.Entities) {
		names := f.Entities[typ]
		for _, name := range sortedKeys(names) {
			tax.AddEntity(typ, name, names[name])
		}
	}
	return tax
}

// Stoplist represents the stopword list configuration
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stopwords from a YAML file
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, fmt.Errorf("parse stoplist %s: %w", path, err)
	}
	return &sl, nil
}

// LoadDict loads the multi-token dictionary from a file.
// Format: canonical|variant1|variant2|category
func LoadDict(path string) ([]preprocess.DictEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	entries := []preprocess.DictEntry{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		entries = append(entries, preprocess.DictEntry{
			Canonical: parts[0],
			Variants:  parts[1 : len(parts)-1],
			Category:  parts[len(parts)-1],
		})
	}
	return entries, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
