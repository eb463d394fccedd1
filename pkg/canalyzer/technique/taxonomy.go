package technique

import (
	"context"
	"sort"
	"strings"

	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
)

// Taxonomy maps keywords to categories and entity names. Categories are
// grouped by facet (genre, region, ...) so a graph can label the edge.
type Taxonomy struct {
	facets   map[string]map[string][]string // facet → category → keywords (lowercase)
	entities map[string]map[string][]string // type → name → keywords (lowercase)
}

// NewTaxonomy creates an empty taxonomy.
func NewTaxonomy() *Taxonomy {
	return &Taxonomy{
		facets:   make(map[string]map[string][]string),
		entities: make(map[string]map[string][]string),
	}
}

// AddCategory registers a category under a facet with its keywords.
func (t *Taxonomy) AddCategory(facet, name string, keywords []string) {
	if t.facets[facet] == nil {
		t.facets[facet] = make(map[string][]string)
	}
	t.facets[facet][name] = lowerAll(keywords)
}

// AddEntity adds an entity type with name and keywords
func (t *Taxonomy) AddEntity(entityType, name string, keywords []string) {
	if t.entities[entityType] == nil {
		t.entities[entityType] = make(map[string][]string)
	}
	t.entities[entityType][name] = lowerAll(keywords)
}

// Category is a matched taxonomy category.
type Category struct {
	Facet   string
	Name    string
	Keyword string // first token that matched
}

// Entity represents a recognized entity
type Entity struct {
	Type  string
	Value string
}

// AssignCategories determines which categories apply to the given tokens.
// Results are sorted by facet then name.
func (t *Taxonomy) AssignCategories(tokens []string) []Category {
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		tokenSet[strings.ToLower(tok)] = struct{}{}
	}

	var out []Category
	for facet, cats := range t.facets {
		for name, keywords := range cats {
			for _, kw := range keywords {
				if _, ok := tokenSet[kw]; ok {
					out = append(out, Category{Facet: facet, Name: name, Keyword: kw})
					break
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Facet != out[j].Facet {
			return out[i].Facet < out[j].Facet
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ExtractEntities finds entities mentioned in the text, sorted by type then
// value.
func (t *Taxonomy) ExtractEntities(text string) []Entity {
	var entities []Entity
	lowerText := strings.ToLower(text)

	for entityType, named := range t.entities {
		for name, keywords := range named {
			for _, kw := range keywords {
				if kw != "" && strings.Contains(lowerText, kw) {
					entities = append(entities, Entity{Type: entityType, Value: name})
					break
				}
			}
		}
	}
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Type != entities[j].Type {
			return entities[i].Type < entities[j].Type
		}
		return entities[i].Value < entities[j].Value
	})
	return entities
}

// TaxonomyGraph is a single-content graph technique. Each matched category
// becomes a node linked from the keyword token that hit it; each entity
// becomes a node linked from a "content" root.
type TaxonomyGraph struct {
	Taxonomy *Taxonomy
}

// NewTaxonomyGraph wraps a taxonomy.
func NewTaxonomyGraph(tax *Taxonomy) *TaxonomyGraph {
	return &TaxonomyGraph{Taxonomy: tax}
}

func (g *TaxonomyGraph) Name() string { return "taxonomy_graph" }

// Produce implements Technique. A value with no matches yields an empty graph.
func (g *TaxonomyGraph) Produce(ctx context.Context, in Input) (content.Representation, error) {
	out := &content.Graph{Nodes: []content.Node{}, Edges: []content.Edge{}}
	if g.Taxonomy == nil {
		return out, nil
	}

	nodes := make(map[string]content.Node)
	addNode := func(n content.Node) {
		if _, ok := nodes[n.ID]; !ok {
			nodes[n.ID] = n
		}
	}

	for _, c := range g.Taxonomy.AssignCategories(in.Value.Words()) {
		catID := c.Facet + ":" + c.Name
		addNode(content.Node{ID: c.Keyword, Label: "token"})
		addNode(content.Node{ID: catID, Label: c.Facet})
		out.Edges = append(out.Edges, content.Edge{From: c.Keyword, To: catID, Label: "in_category", Weight: 1})
	}

	text := in.Value.Text
	if text == "" {
		text = strings.Join(in.Value.Words(), " ")
	}
	entities := g.Taxonomy.ExtractEntities(text)
	if len(entities) > 0 {
		addNode(content.Node{ID: "content", Label: "root"})
	}
	for _, e := range entities {
		entID := e.Type + ":" + e.Value
		addNode(content.Node{ID: entID, Label: e.Type})
		out.Edges = append(out.Edges, content.Edge{From: "content", To: entID, Label: "mentions", Weight: 1})
	}

	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out.Nodes = append(out.Nodes, nodes[id])
	}
	return out, nil
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
