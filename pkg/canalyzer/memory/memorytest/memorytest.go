// Package memorytest holds shared fixtures for writer backend tests.
package memorytest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory"
)

// Bag builds a features bag from term scores.
func Bag(pairs map[string]float64) *content.FeaturesBag {
	b := content.NewFeaturesBag()
	for k, v := range pairs {
		b.Set(k, v)
	}
	return b
}

// Field builds a field with one features bag under id "0".
func Field(t testing.TB, name string, terms map[string]float64) *content.Field {
	t.Helper()
	f := content.NewField(name)
	require.NoError(t, f.Append("0", Bag(terms)))
	return f
}

// Write runs one full pass over b, committing one content per fields entry.
func Write(t testing.TB, b memory.Backend, contents map[string][]*content.Field, order []string) {
	t.Helper()
	ctx := context.Background()
	s := memory.NewSession(b)
	err := memory.WithWriting(ctx, s, func(s *memory.Session) error {
		for _, id := range order {
			if err := s.BeginContent(id); err != nil {
				return err
			}
			for _, f := range contents[id] {
				if err := s.AddField(f); err != nil {
					return err
				}
			}
			if err := s.CommitContent(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

// Corpus is a small three-content fixture over the "plot" field.
func Corpus(t testing.TB) (map[string][]*content.Field, []string) {
	t.Helper()
	return map[string][]*content.Field{
		"m1": {Field(t, "plot", map[string]float64{"cat": 2, "dog": 1})},
		"m2": {Field(t, "plot", map[string]float64{"dog": 1, "bird": 1})},
		"m3": {Field(t, "plot", map[string]float64{"dog": 1}), Field(t, "title", map[string]float64{"alien": 1})},
	}, []string{"m1", "m2", "m3"}
}

// AssertRoundTrip checks that r returns each content with the given fields.
func AssertRoundTrip(t testing.TB, r memory.Reader, contents map[string][]*content.Field) {
	t.Helper()
	ctx := context.Background()
	for id, fields := range contents {
		got, err := r.Get(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, id, got.ID)
		require.Len(t, got.Fields(), len(fields), id)
		for _, want := range fields {
			f, ok := got.Field(want.Name)
			require.True(t, ok, "%s/%s", id, want.Name)
			rep, ok := f.Get("0")
			require.True(t, ok)
			wantRep, _ := want.Get("0")
			assert.Equal(t, wantRep, rep)
		}
	}
}
