package canalyzer_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/canalyzer/pkg/canalyzer"
	"github.com/cognicore/canalyzer/pkg/canalyzer/config"
	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory/badgerstore"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory/filestore"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory/index"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory/memstore"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory/sqlitestore"
	"github.com/cognicore/canalyzer/pkg/canalyzer/pipeline"
	"github.com/cognicore/canalyzer/pkg/canalyzer/preprocess"
	"github.com/cognicore/canalyzer/pkg/canalyzer/source"
	"github.com/cognicore/canalyzer/pkg/canalyzer/technique"
	"github.com/cognicore/canalyzer/pkg/canalyzer/technique/embsource"
)

func movies() []source.Record {
	return []source.Record{
		{"title": "m1", "plot": "cat cat dog", "genre": "drama"},
		{"title": "m2", "plot": "dog bird", "genre": "comedy"},
		{"title": "m3", "plot": "dog", "genre": "drama"},
	}
}

func tokenized(id string, t technique.Technique) *pipeline.Pipeline {
	return pipeline.New(id, t, preprocess.NewTokenizer(nil))
}

func newConfig(t *testing.T, src source.Source, out memory.Backend, mutate ...func(*config.Config)) *config.Config {
	t.Helper()
	c := config.Config{
		ContentType: "Movie",
		IDField:     "title",
		Source:      src,
		Output:      out,
		Fields: []config.FieldConfig{
			{Name: "plot", Pipelines: []*pipeline.Pipeline{
				tokenized("tf", technique.TermFrequency{}),
				tokenized("tfidf", technique.NewTFIDF()),
			}},
			{Name: "genre", Pipelines: []*pipeline.Pipeline{
				tokenized("", technique.TermFrequency{}),
			}},
		},
	}
	for _, m := range mutate {
		m(&c)
	}
	cfg, err := config.New(c)
	require.NoError(t, err)
	return cfg
}

func newAnalyzer(cfg *config.Config) *canalyzer.Analyzer {
	return canalyzer.New(cfg, canalyzer.WithLogger(zerolog.Nop()))
}

func bag(t *testing.T, c *content.Content, field, id string) *content.FeaturesBag {
	t.Helper()
	f, ok := c.Field(field)
	require.True(t, ok, "field %s", field)
	rep, ok := f.Get(id)
	require.True(t, ok, "representation %s/%s", field, id)
	b, ok := rep.(*content.FeaturesBag)
	require.True(t, ok)
	return b
}

func TestFitBuildsOneContentPerRecord(t *testing.T) {
	out := memstore.New("out")
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := canalyzer.New(newConfig(t, source.NewMemory(movies()...), out),
		canalyzer.WithLogger(zerolog.Nop()),
		canalyzer.WithClock(func() time.Time { return clock }))

	report, err := a.Fit(context.Background())
	require.NoError(t, err)

	assert.Len(t, report.RunID, 26)
	assert.Equal(t, "movie", report.ContentType)
	assert.Equal(t, 3, report.Records)
	assert.Equal(t, 3, report.Contents)
	assert.Zero(t, report.Skipped)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, []string{"plot/tfidf"}, report.Refactored)
	assert.Equal(t, 3, report.Committed["out"])

	coll := out.Collection()
	assert.Equal(t, []string{"m1", "m2", "m3"}, coll.IDs(), "source order")
	assert.True(t, out.Finalized())

	m1 := coll.At(0)
	assert.True(t, m1.Sealed())
	plot, _ := m1.Field("plot")
	assert.Equal(t, []string{"tf", "tfidf"}, plot.IDs(), "pipeline order")
	genre, _ := m1.Field("genre")
	assert.Equal(t, []string{"0"}, genre.IDs(), "auto-assigned pipeline id")

	tf := bag(t, m1, "plot", "tf")
	assert.Equal(t, 2.0, tf.Features["cat"])
	tfidf := bag(t, m1, "plot", "tfidf")
	assert.InDelta(t, 2*(math.Log(2)+1), tfidf.Features["cat"], 1e-9)
	assert.InDelta(t, 1.0, tfidf.Features["dog"], 1e-9)

	for _, s := range a.Sessions() {
		assert.Equal(t, memory.Closed, s.State())
	}
}

func TestMissingFieldKeepsEmptyField(t *testing.T) {
	recs := movies()
	delete(recs[1], "genre")
	out := memstore.New("out")

	report, err := newAnalyzer(newConfig(t, source.NewMemory(recs...), out)).Fit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Contents)
	require.Len(t, report.Warnings, 1)
	w := report.Warnings[0]
	assert.Equal(t, canalyzer.WarnMissingField, w.Kind)
	assert.Equal(t, 1, w.Record)
	assert.Equal(t, "m2", w.ID)
	assert.Equal(t, "genre", w.Field)
	assert.ErrorIs(t, w.Err, internalerr.ErrMissingField)

	m2 := out.Collection().At(1)
	genre, ok := m2.Field("genre")
	require.True(t, ok, "missing field is kept")
	assert.Zero(t, genre.Len())

	m3 := out.Collection().At(2)
	assert.Equal(t, 1.0, bag(t, m3, "genre", "0").Features["drama"], "later records unaffected")
}

func TestJSONNullIsMissingField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.jsonl")
	data := `{"title": "m1", "plot": "cat dog", "genre": "drama"}
{"title": "m2", "plot": "dog", "genre": null}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	report, err := newAnalyzer(newConfig(t, source.NewJSONLines(path), memstore.New("out"))).Fit(context.Background())
	require.NoError(t, err)

	missing := report.WarningsOf(canalyzer.WarnMissingField)
	require.Len(t, missing, 1)
	assert.Equal(t, "m2", missing[0].ID)
	assert.Equal(t, "genre", missing[0].Field)
}

func TestFitIsDeterministic(t *testing.T) {
	vectors := embsource.NewMap(2)
	require.NoError(t, vectors.Add("cat", []float64{1, 0}))
	require.NoError(t, vectors.Add("dog", []float64{0, 1}))

	out := memstore.New("out")
	cfg := newConfig(t, source.NewMemory(movies()...), out, func(c *config.Config) {
		c.Fields[0].Pipelines = append(c.Fields[0].Pipelines,
			tokenized("cooc", technique.NewCooccurrenceGraph(0, 1)),
			tokenized("vec", technique.NewEmbedding(vectors)),
		)
	})
	a := newAnalyzer(cfg)

	_, err := a.Fit(context.Background())
	require.NoError(t, err)
	first := out.Collection()

	_, err = a.Fit(context.Background())
	require.NoError(t, err)
	second := out.Collection()

	require.NotSame(t, first, second)
	require.Equal(t, first.IDs(), second.IDs())
	for i := 0; i < first.Len(); i++ {
		assert.Equal(t, first.At(i), second.At(i), "content %s", first.At(i).ID)
	}
}

func TestEmbeddingWithoutKnownUnitsCommitsZeroVector(t *testing.T) {
	vectors := embsource.NewMap(3)
	require.NoError(t, vectors.Add("spaceship", []float64{1, 2, 3}))

	out := memstore.New("out")
	cfg := newConfig(t, source.NewMemory(movies()...), out, func(c *config.Config) {
		c.Fields = []config.FieldConfig{{Name: "plot", Pipelines: []*pipeline.Pipeline{
			tokenized("vec", technique.NewEmbedding(vectors)),
		}}}
	})

	report, err := newAnalyzer(cfg).Fit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, 3, report.Contents)

	for _, id := range out.Collection().IDs() {
		c, err := out.Get(context.Background(), id)
		require.NoError(t, err)
		plot, ok := c.Field("plot")
		require.True(t, ok)
		rep, ok := plot.Get("vec")
		require.True(t, ok)
		assert.Equal(t, content.NewEmbedding([]float64{0, 0, 0}), rep, "content %s", id)
	}
}

func TestIDPolicy(t *testing.T) {
	missing := func() []source.Record {
		recs := movies()
		delete(recs[1], "title")
		return recs
	}
	duplicate := func() []source.Record {
		recs := movies()
		recs[2]["title"] = "m1"
		return recs
	}

	cases := []struct {
		name     string
		records  func() []source.Record
		sentinel error
		kind     string
		kept     []string
	}{
		{"missing", missing, internalerr.ErrMissingID, canalyzer.WarnMissingID, []string{"m1", "m3"}},
		{"duplicate", duplicate, internalerr.ErrDuplicate, canalyzer.WarnDuplicateID, []string{"m1", "m2"}},
	}

	for _, tc := range cases {
		t.Run(tc.name+"/abort", func(t *testing.T) {
			out := memstore.New("out")
			cfg := newConfig(t, source.NewMemory(tc.records()...), out)
			require.Equal(t, config.IDPolicyAbort, cfg.IDPolicy)

			report, err := newAnalyzer(cfg).Fit(context.Background())
			require.Error(t, err)
			var re *internalerr.RecordError
			require.True(t, errors.As(err, &re))
			assert.ErrorIs(t, err, tc.sentinel)
			assert.Equal(t, "title", re.Field)

			assert.NotEmpty(t, out.Collection().IDs(), "earlier commits stay")
			assert.False(t, out.Finalized(), "aborted pass is not finalized")
			assert.NotNil(t, report)
		})

		t.Run(tc.name+"/skip", func(t *testing.T) {
			out := memstore.New("out")
			cfg := newConfig(t, source.NewMemory(tc.records()...), out, func(c *config.Config) {
				c.IDPolicy = config.IDPolicySkip
			})

			report, err := newAnalyzer(cfg).Fit(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 3, report.Records)
			assert.Equal(t, 2, report.Contents)
			assert.Equal(t, 1, report.Skipped)
			require.Len(t, report.WarningsOf(tc.kind), 1)
			assert.ErrorIs(t, report.Warnings[0].Err, tc.sentinel)
			assert.Equal(t, tc.kept, out.Collection().IDs())
		})
	}
}

func TestBlankIDIsMissing(t *testing.T) {
	recs := movies()
	recs[0]["title"] = "   "
	out := memstore.New("out")
	_, err := newAnalyzer(newConfig(t, source.NewMemory(recs...), out)).Fit(context.Background())
	assert.ErrorIs(t, err, internalerr.ErrMissingID)
	assert.Zero(t, out.Collection().Len())
}

type countingTFIDF struct {
	*technique.TFIDF
	refactors map[string]int
}

func newCountingTFIDF() *countingTFIDF {
	return &countingTFIDF{TFIDF: technique.NewTFIDF(), refactors: make(map[string]int)}
}

func (c *countingTFIDF) Refactor(ctx context.Context, corpus technique.Corpus) error {
	c.refactors[corpus.Field()]++
	return c.TFIDF.Refactor(ctx, corpus)
}

func TestRefactorOncePerFieldPerRun(t *testing.T) {
	shared := newCountingTFIDF()
	cfg := newConfig(t, source.NewMemory(movies()...), memstore.New("out"), func(c *config.Config) {
		c.Fields[0].Pipelines = []*pipeline.Pipeline{tokenized("a", shared), tokenized("b", shared)}
		c.Fields[1].Pipelines = []*pipeline.Pipeline{tokenized("a", shared)}
	})
	a := newAnalyzer(cfg)

	report, err := a.Fit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"plot": 1, "genre": 1}, shared.refactors)
	assert.Equal(t, []string{"plot/tfidf", "genre/tfidf"}, report.Refactored)

	_, err = a.Fit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"plot": 2, "genre": 2}, shared.refactors, "each run refactors again")
}

type failingCorpusTechnique struct{ *technique.TFIDF }

func (failingCorpusTechnique) Refactor(context.Context, technique.Corpus) error {
	return errors.New("corpus exploded")
}

func TestRefactorFailureStopsBeforeWriting(t *testing.T) {
	out := memstore.New("out")
	cfg := newConfig(t, source.NewMemory(movies()...), out, func(c *config.Config) {
		c.Fields[0].Pipelines = []*pipeline.Pipeline{tokenized("x", failingCorpusTechnique{technique.NewTFIDF()})}
	})
	a := newAnalyzer(cfg)
	_, err := a.Fit(context.Background())

	var te *internalerr.TechniqueError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "plot", te.Field)
	assert.Empty(t, a.Sessions(), "no session was opened")
	assert.Zero(t, out.Collection().Len())
}

type boom struct{ failOn string }

func (boom) Name() string { return "boom" }

func (b boom) Produce(_ context.Context, in technique.Input) (content.Representation, error) {
	if in.Record["title"] == b.failOn {
		return nil, &internalerr.TechniqueError{Technique: "boom", Field: in.Field, Err: errors.New("model crashed")}
	}
	return content.NewFeaturesBag(), nil
}

func TestTechniqueFailureKeepsEarlierCommits(t *testing.T) {
	out := memstore.New("out")
	plotIndex := index.New("plot-index")
	cfg := newConfig(t, source.NewMemory(movies()...), out, func(c *config.Config) {
		c.Fields[0].Writer = plotIndex
		c.Fields[1].Pipelines = append(c.Fields[1].Pipelines, pipeline.New("boom", boom{failOn: "m2"}))
	})
	a := newAnalyzer(cfg)

	report, err := a.Fit(context.Background())
	var te *internalerr.TechniqueError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "boom", te.Technique)
	var re *internalerr.RecordError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 1, re.Index)
	assert.Equal(t, "m2", re.ID)

	assert.Equal(t, 2, report.Records)
	assert.Equal(t, 1, report.Contents)
	assert.Equal(t, []string{"m1"}, out.Collection().IDs())
	assert.Equal(t, []string{"m1"}, plotIndex.Postings("plot", "cat"))

	for _, s := range a.Sessions() {
		assert.Equal(t, memory.Closed, s.State(), "sessions released on failure")
	}
	_, err = a.Sessions()[1].Frequencies(context.Background(), "m1", "plot")
	assert.ErrorIs(t, err, internalerr.ErrSequence, "aborted pass has no frequency index")

	again := memory.NewSession(out)
	require.NoError(t, again.InitWriting(context.Background()), "backend can be acquired again")
	require.NoError(t, again.Abort())
}

func TestRoutingAndFrequencies(t *testing.T) {
	out := memstore.New("out")
	plotIndex := index.New("plot-index")
	cfg := newConfig(t, source.NewMemory(movies()...), out, func(c *config.Config) {
		c.Fields[0].Pipelines = []*pipeline.Pipeline{tokenized("tf", technique.TermFrequency{})}
		c.Fields[0].Writer = plotIndex
	})
	a := newAnalyzer(cfg)

	report, err := a.Fit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"out": 3, "plot-index": 3}, report.Committed)

	m1, err := plotIndex.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Len(t, m1.Fields(), 1, "field writer receives its field only")
	_, hasGenre := m1.Field("genre")
	assert.False(t, hasGenre)

	full := out.Collection().At(0)
	assert.Len(t, full.Fields(), 2, "output receives every field")

	s, ok := a.Session(plotIndex)
	require.True(t, ok)
	freqs, err := s.Frequencies(context.Background(), "m1", "plot")
	require.NoError(t, err)
	assert.InDelta(t, 2*(math.Log(2)+1), freqs["cat"], 1e-9)
	assert.InDelta(t, 1.0, freqs["dog"], 1e-9)

	outSession, _ := a.Session(out)
	_, err = outSession.Frequencies(context.Background(), "m1", "plot")
	assert.ErrorIs(t, err, internalerr.ErrUnsupported)
}

func TestSharedWriterGetsFieldOnce(t *testing.T) {
	out := memstore.New("out")
	cfg := newConfig(t, source.NewMemory(movies()...), out, func(c *config.Config) {
		c.Fields[0].Writer = out
	})
	a := newAnalyzer(cfg)
	_, err := a.Fit(context.Background())
	require.NoError(t, err)
	assert.Len(t, a.Sessions(), 1)
	assert.Len(t, out.Collection().At(0).Fields(), 2)
}

type failingOpen struct{ *memstore.Store }

func (failingOpen) Open(context.Context) error { return errors.New("disk full") }

func TestInitFailureReleasesOpenedSessions(t *testing.T) {
	out := memstore.New("out")
	cfg := newConfig(t, source.NewMemory(movies()...), out, func(c *config.Config) {
		c.Fields[1].Writer = failingOpen{memstore.New("broken")}
	})
	_, err := newAnalyzer(cfg).Fit(context.Background())

	var ie *internalerr.InterfaceError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "open", ie.Op)

	again := memory.NewSession(out)
	require.NoError(t, again.InitWriting(context.Background()), "output was released")
	require.NoError(t, again.Abort())
}

type cancelAfter struct {
	source.Source
	n      int
	cancel context.CancelFunc
}

func (c *cancelAfter) Iterate(ctx context.Context, fn func(source.Record) error) error {
	seen := 0
	return c.Source.Iterate(ctx, func(r source.Record) error {
		if err := fn(r); err != nil {
			return err
		}
		seen++
		if seen == c.n {
			c.cancel()
		}
		return nil
	})
}

func TestCancellationBetweenRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := memstore.New("out")
	src := &cancelAfter{Source: source.NewMemory(movies()...), n: 1, cancel: cancel}
	cfg := newConfig(t, src, out, func(c *config.Config) {
		c.Fields[0].Pipelines = []*pipeline.Pipeline{tokenized("tf", technique.TermFrequency{})}
	})
	a := newAnalyzer(cfg)

	_, err := a.Fit(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"m1"}, out.Collection().IDs())
	assert.Equal(t, memory.Closed, a.Sessions()[0].State())
}

type countingSource struct {
	source.Source
	iterations int
}

func (c *countingSource) Iterate(ctx context.Context, fn func(source.Record) error) error {
	c.iterations++
	return c.Source.Iterate(ctx, fn)
}

func TestSourceReadOncePlusRefactors(t *testing.T) {
	src := &countingSource{Source: source.NewMemory(movies()...)}
	_, err := newAnalyzer(newConfig(t, src, memstore.New("out"))).Fit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.iterations, "one refactor pass for plot/tfidf plus the production pass")
}

func TestInvalidConfigFailsBeforeIO(t *testing.T) {
	src := &countingSource{Source: source.NewMemory(movies()...)}
	cfg := newConfig(t, src, memstore.New("out"))
	cfg.IDField = ""

	report, err := newAnalyzer(cfg).Fit(context.Background())
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
	assert.Zero(t, src.iterations)
	assert.NotNil(t, report)

	_, err = newAnalyzer(nil).Fit(context.Background())
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestPersistentBackendsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	files := filestore.New(filepath.Join(dir, "contents"), filestore.WithCompression(filestore.LZ4))
	terms := sqlitestore.New(filepath.Join(dir, "terms.db"))
	kv := badgerstore.New(filepath.Join(dir, "badger"))
	t.Cleanup(func() { _ = kv.Shutdown() })

	cfg := newConfig(t, source.NewMemory(movies()...), files, func(c *config.Config) {
		c.Fields[0].Pipelines = []*pipeline.Pipeline{tokenized("tf", technique.TermFrequency{})}
		c.Fields[0].Writer = terms
		c.Fields[1].Writer = kv
	})
	a := newAnalyzer(cfg)
	_, err := a.Fit(context.Background())
	require.NoError(t, err)
	ctx := context.Background()

	coll, err := filestore.LoadAll(files.Dir())
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3"}, coll.IDs())
	assert.Equal(t, 2.0, bag(t, coll.At(0), "plot", "tf").Features["cat"])

	s, ok := a.Session(terms)
	require.True(t, ok)
	freqs, err := s.Frequencies(ctx, "m1", "plot")
	require.NoError(t, err)
	assert.InDelta(t, 2*(math.Log(2)+1), freqs["cat"], 1e-9)

	g, err := kv.Get(ctx, "m3")
	require.NoError(t, err)
	assert.Equal(t, 1.0, bag(t, g, "genre", "0").Features["drama"])
	_, hasPlot := g.Field("plot")
	assert.False(t, hasPlot)
	n, err := kv.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}
