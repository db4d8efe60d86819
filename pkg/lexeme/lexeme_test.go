package lexeme

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/lexindex/pkg/db"
	"github.com/japaniel/lexindex/pkg/dictionary"
	"github.com/japaniel/lexindex/pkg/features"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func seedRun(t *testing.T, conn *sql.DB) {
	t.Helper()
	_, err := dictionary.NewImporter(conn, nil).Import(context.Background(), []dictionary.Row{
		{Line: 1, Rank: 1, POS: "verb", Word: "run"},
		{Line: 2, Rank: 15000, POS: "noun", Word: "run"},
	})
	require.NoError(t, err)
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Running!":   "running",
		"don't":      "dont",
		"  ＡＢＣ ":     "abc",
		"Straße":     "strasse",
		"1990s":      "1990s",
		"...":        "",
		"well-known": "wellknown",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestSuffixLemma(t *testing.T) {
	tests := map[string]string{
		"studies": "study",
		"boxes":   "box",
		"cats":    "cat",
		"glass":   "glass",
		"running": "run",
		"playing": "play",
		"walked":  "walk",
		"is":      "is",
		"sing":    "sing",
	}
	for in, want := range tests {
		assert.Equal(t, want, SuffixLemma(in), in)
	}
}

func TestSnowballStemmer(t *testing.T) {
	tests := map[string]string{
		"running":  "run",
		"runs":     "run",
		"ran":      "run",
		"children": "child",
		"studies":  "study",
		"went":     "go",
	}
	for in, want := range tests {
		got, err := SnowballStemmer{}.Stem(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestNewStemmer(t *testing.T) {
	s, err := NewStemmer("suffix")
	require.NoError(t, err)
	assert.IsType(t, SuffixStemmer{}, s)

	s, err = NewStemmer("")
	require.NoError(t, err)
	assert.IsType(t, SnowballStemmer{}, s)

	_, err = NewStemmer("porter3")
	assert.Error(t, err)
}

func TestResolveCollapsesLemma(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	seedRun(t, conn)
	r := NewResolver(SnowballStemmer{}, features.Rules{}, dictionary.NewMatcher(conn, nil), nil)

	var ids []string
	for _, surface := range []string{"running", "runs", "ran"} {
		res, err := r.Resolve(ctx, conn, surface, nil)
		require.NoError(t, err)
		assert.Equal(t, "run", res.Lemma)
		ids = append(ids, res.WordID)
	}
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])

	w, err := db.GetWord(ctx, conn, ids[0])
	require.NoError(t, err)
	assert.Equal(t, db.MatchFound, w.MatchState)
	require.NotNil(t, w.Rank)
	assert.Equal(t, 1, *w.Rank)
	require.NotNil(t, w.Difficulty)
	assert.Equal(t, 1, *w.Difficulty)

	entry, err := db.GetEntry(ctx, conn, w.DictionaryEntryID)
	require.NoError(t, err)
	assert.Equal(t, "verb", entry.POS)
}

func TestResolvePrefersBaseSurface(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	r := NewResolver(SnowballStemmer{}, nil, nil, nil)

	first, err := r.Resolve(ctx, conn, "running", nil)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Nil(t, first.Match)

	second, err := r.Resolve(ctx, conn, "run", nil)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.True(t, second.SurfaceUpdated)

	third, err := r.Resolve(ctx, conn, "runs", nil)
	require.NoError(t, err)
	assert.False(t, third.SurfaceUpdated)

	w, err := db.GetWord(ctx, conn, first.WordID)
	require.NoError(t, err)
	assert.Equal(t, "run", w.SurfaceForm)
	assert.Equal(t, db.MatchUnmatched, w.MatchState)
}

func TestPreferSurface(t *testing.T) {
	tests := []struct {
		candidate, current, lemma string
		want                      bool
	}{
		{"run", "running", "run", true},
		{"Run", "running", "run", true},
		{"run", "run", "run", false},
		{"runs", "running", "run", false},
		{"study", "studies", "study", true},
		{"runner", "ran", "run", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, preferSurface(tt.candidate, tt.current, tt.lemma), "%s over %s", tt.candidate, tt.current)
	}
}

type failingProvider struct{}

func (failingProvider) Analyze(context.Context, string, []string) (features.Features, error) {
	return features.Features{}, errors.New("tagger offline")
}

func (failingProvider) Name() string { return "failing" }

type failingMatcher struct{}

func (failingMatcher) Match(context.Context, db.Executor, string, string) (dictionary.Match, error) {
	return dictionary.Match{}, errors.New("dictionary offline")
}

func TestResolveDegradesOnDependencyFailure(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	broken := StemFunc(func(string) (string, error) { return "", errors.New("stemmer offline") })
	r := NewResolver(broken, failingProvider{}, failingMatcher{}, nil)

	res, err := r.Resolve(ctx, conn, "Cats", []string{"the", "Cats", "sat"})
	require.NoError(t, err)
	assert.Equal(t, "cat", res.Lemma)
	assert.True(t, res.Created)
	assert.Nil(t, res.Match)

	w, err := db.GetWord(ctx, conn, res.WordID)
	require.NoError(t, err)
	assert.Equal(t, features.Unknown("Cats").JSON(), w.Features)
	assert.Equal(t, db.MatchUnmatched, w.MatchState)
}

func TestResolveRejectsEmpty(t *testing.T) {
	conn := setupTestDB(t)
	r := NewResolver(nil, nil, nil, nil)
	_, err := r.Resolve(context.Background(), conn, "--", nil)
	assert.ErrorIs(t, err, db.ErrValidation)
}

type recordingProvider struct {
	got []string
}

func (p *recordingProvider) Analyze(_ context.Context, word string, context []string) (features.Features, error) {
	p.got = context
	return features.Unknown(word), nil
}

func (p *recordingProvider) Name() string { return "recording" }

func TestResolvePassesContextWindow(t *testing.T) {
	conn := setupTestDB(t)
	p := &recordingProvider{}
	r := NewResolver(SuffixStemmer{}, p, nil, nil)
	tokens := []string{"a", "b", "c", "d", "target", "e", "f", "g", "h"}

	_, err := r.Resolve(context.Background(), conn, "target", tokens)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d", "target", "e", "f", "g"}, p.got)
}

func TestWindow(t *testing.T) {
	tokens := []string{"one", "two", "three", "four", "five"}
	assert.Equal(t, []string{"one", "two"}, Window(tokens, "one", 1))
	assert.Equal(t, []string{"four", "five"}, Window(tokens, "five", 1))
	assert.Equal(t, []string{"one", "two", "three"}, Window(tokens, "missing", 1))
	assert.Nil(t, Window(nil, "one", 3))
	assert.Equal(t, tokens, Window(tokens, "three", 5))
}
