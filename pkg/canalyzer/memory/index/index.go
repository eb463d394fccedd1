// Package index is an in-memory, index-capable writer backend. Each field
// keeps an inverted index from term to the contents carrying it, with roaring
// bitmaps as posting lists.
package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory"
)

// Index implements memory.Backend, memory.FrequencyIndex and memory.Reader.
type Index struct {
	name string

	mu        sync.RWMutex
	open      bool
	finalized bool
	ids       []string          // ordinal → content id
	ordinals  map[string]uint32 // content id → ordinal
	contents  []*content.Content
	postings  map[string]map[string]*roaring.Bitmap // field → term → contents
	fieldDocs map[string]*roaring.Bitmap            // field → contents with terms
	tf        map[uint32]map[string]map[string]float64
}

// New returns an empty index.
func New(name string) *Index {
	if name == "" {
		name = "index"
	}
	ix := &Index{name: name}
	ix.reset()
	return ix
}

func (ix *Index) reset() {
	ix.ids = nil
	ix.contents = nil
	ix.ordinals = make(map[string]uint32)
	ix.postings = make(map[string]map[string]*roaring.Bitmap)
	ix.fieldDocs = make(map[string]*roaring.Bitmap)
	ix.tf = make(map[uint32]map[string]map[string]float64)
}

// Name implements memory.Backend.
func (ix *Index) Name() string { return ix.name }

// Open implements memory.Backend. Each pass rebuilds the index.
func (ix *Index) Open(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.open {
		return fmt.Errorf("%w: %s already open", internalerr.ErrStoreUnavailable, ix.name)
	}
	ix.open = true
	ix.finalized = false
	ix.reset()
	return nil
}

// Commit indexes the term scores of every field of c.
func (ix *Index) Commit(ctx context.Context, c *content.Content) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if !ix.open {
		return fmt.Errorf("%w: %s is closed", internalerr.ErrStoreUnavailable, ix.name)
	}
	if _, dup := ix.ordinals[c.ID]; dup {
		return fmt.Errorf("content %q: %w", c.ID, internalerr.ErrDuplicate)
	}

	ord := uint32(len(ix.ids))
	ix.ids = append(ix.ids, c.ID)
	ix.contents = append(ix.contents, c)
	ix.ordinals[c.ID] = ord

	perField := make(map[string]map[string]float64)
	for _, f := range c.Fields() {
		scores := memory.TermScores(f)
		if len(scores) == 0 {
			continue
		}
		perField[f.Name] = scores

		terms := ix.postings[f.Name]
		if terms == nil {
			terms = make(map[string]*roaring.Bitmap)
			ix.postings[f.Name] = terms
		}
		for term := range scores {
			bm := terms[term]
			if bm == nil {
				bm = roaring.New()
				terms[term] = bm
			}
			bm.Add(ord)
		}
		docs := ix.fieldDocs[f.Name]
		if docs == nil {
			docs = roaring.New()
			ix.fieldDocs[f.Name] = docs
		}
		docs.Add(ord)
	}
	ix.tf[ord] = perField
	return nil
}

// Finalize optimizes the posting lists.
func (ix *Index) Finalize(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, terms := range ix.postings {
		for _, bm := range terms {
			bm.RunOptimize()
		}
	}
	ix.finalized = true
	return nil
}

// Close implements memory.Backend. The index stays queryable.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.open = false
	return nil
}

// Postings returns the ids of the contents whose field contains term, in
// commit order.
func (ix *Index) Postings(field, term string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	bm := ix.postings[field][term]
	if bm == nil {
		return nil
	}
	out := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, ix.ids[it.Next()])
	}
	return out
}

// All returns the contents whose field contains every term.
func (ix *Index) All(field string, terms ...string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(terms) == 0 {
		return nil
	}
	var acc *roaring.Bitmap
	for _, term := range terms {
		bm := ix.postings[field][term]
		if bm == nil {
			return nil
		}
		if acc == nil {
			acc = bm.Clone()
			continue
		}
		acc.And(bm)
	}
	out := make([]string, 0, acc.GetCardinality())
	for _, ord := range acc.ToArray() {
		out = append(out, ix.ids[ord])
	}
	return out
}

// DocumentFrequency returns the number of contents whose field contains term.
func (ix *Index) DocumentFrequency(field, term string) int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if bm := ix.postings[field][term]; bm != nil {
		return int64(bm.GetCardinality())
	}
	return 0
}

// Frequencies implements memory.FrequencyIndex.
func (ix *Index) Frequencies(ctx context.Context, contentID, field string) (map[string]float64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.finalized {
		return nil, internalerr.Sequence(ix.name, "frequencies", "index not finalized")
	}
	ord, ok := ix.ordinals[contentID]
	if !ok {
		return nil, fmt.Errorf("content %q: %w", contentID, internalerr.ErrNotFound)
	}
	var n int64
	if docs := ix.fieldDocs[field]; docs != nil {
		n = int64(docs.GetCardinality())
	}
	out := make(map[string]float64)
	for term, tf := range ix.tf[ord][field] {
		df := int64(ix.postings[field][term].GetCardinality())
		out[term] = tf * memory.IDF(n, df)
	}
	return out, nil
}

// Get implements memory.Reader.
func (ix *Index) Get(ctx context.Context, id string) (*content.Content, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ord, ok := ix.ordinals[id]
	if !ok {
		return nil, fmt.Errorf("content %q: %w", id, internalerr.ErrNotFound)
	}
	return ix.contents[ord], nil
}
