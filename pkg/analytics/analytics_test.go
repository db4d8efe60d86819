package analytics

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/lexindex/pkg/db"
	"github.com/japaniel/lexindex/pkg/dictionary"
	"github.com/japaniel/lexindex/pkg/features"
	"github.com/japaniel/lexindex/pkg/ingest"
	"github.com/japaniel/lexindex/pkg/lexeme"
	"github.com/japaniel/lexindex/pkg/wordlist"
)

type fixture struct {
	conn   *sql.DB
	engine *Engine
	docA   string
	docB   string
}

// setupFixture records two documents:
//
//	a: running x2, runs x1, cat x3, zebra x4
//	b: dog x1
//
// and a wordlist "core" holding run, cat and analyse.
func setupFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	conn, err := db.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = dictionary.NewImporter(conn, nil).Import(ctx, []dictionary.Row{
		{Line: 1, Rank: 1, POS: "verb", Word: "run"},
		{Line: 2, Rank: 500, POS: "noun", Word: "cat"},
		{Line: 3, Rank: 3000, POS: "verb", Word: "analyse"},
	})
	require.NoError(t, err)

	matcher := dictionary.NewMatcher(conn, nil)
	resolver := lexeme.NewResolver(lexeme.SnowballStemmer{}, features.Rules{}, matcher, nil)
	ledger := ingest.NewLedger(conn, resolver, nil)

	record := func(fingerprint string, freq map[string]int) string {
		doc, _, err := db.CreateOrGetDocument(ctx, conn, db.Document{Filename: fingerprint + ".txt", Fingerprint: fingerprint})
		require.NoError(t, err)
		_, err = ledger.Record(ctx, doc.ID, ingest.Observation{Frequencies: freq})
		require.NoError(t, err)
		return doc.ID
	}
	f := fixture{conn: conn, engine: NewEngine(conn, resolver, nil)}
	f.docA = record("a", map[string]int{"running": 2, "runs": 1, "cat": 3, "zebra": 4})
	f.docB = record("b", map[string]int{"dog": 1})

	wl := wordlist.NewEngine(conn, matcher, nil)
	_, err = wl.AddWords(ctx, "core", []string{"run", "cat", "analyse"})
	require.NoError(t, err)
	_, _, err = wl.Create(ctx, "empty", "")
	require.NoError(t, err)
	return f
}

func TestCoverage(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)

	res, err := f.engine.Coverage(ctx, f.docA, "core")
	require.NoError(t, err)
	assert.Equal(t, 3, res.MemberCount)
	assert.Equal(t, 2, res.Covered)
	assert.InDelta(t, 200.0/3, res.CoveragePct, 1e-9)
	assert.Equal(t, 6, res.CoveredFrequency)
	assert.Equal(t, 10, res.TotalTokens)
	assert.InDelta(t, 60.0, res.WeightedCoverage, 1e-9)

	empty, err := f.engine.Coverage(ctx, f.docA, "empty")
	require.NoError(t, err)
	assert.Zero(t, empty.MemberCount)
	assert.Zero(t, empty.CoveragePct)

	missing, err := f.engine.Coverage(ctx, f.docA, "missing")
	require.NoError(t, err)
	assert.Equal(t, CoverageResult{DocumentID: f.docA, Wordlist: "missing"}, missing)

	none, err := f.engine.Coverage(ctx, "no-such-doc", "core")
	require.NoError(t, err)
	assert.Zero(t, none.Covered)
	assert.Zero(t, none.WeightedCoverage)
}

func TestCoverageAll(t *testing.T) {
	f := setupFixture(t)
	all, err := f.engine.CoverageAll(context.Background(), f.docA)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "core", all[0].Wordlist)
	assert.Equal(t, "empty", all[1].Wordlist)
	for _, r := range all {
		assert.GreaterOrEqual(t, r.CoveragePct, 0.0)
		assert.LessOrEqual(t, r.CoveragePct, 100.0)
	}
}

func TestSimilarity(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)

	self, err := f.engine.Similarity(ctx, f.docA, f.docA)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, self.Cosine, 1e-9)
	assert.InDelta(t, 1.0, self.Jaccard, 1e-9)
	assert.Equal(t, 3, self.SharedLemmas)

	disjoint, err := f.engine.Similarity(ctx, f.docA, f.docB)
	require.NoError(t, err)
	assert.Zero(t, disjoint.Jaccard)
	assert.Zero(t, disjoint.Cosine)
	assert.Equal(t, 4, disjoint.UnionLemmas)

	unknown, err := f.engine.Similarity(ctx, f.docA, "no-such-doc")
	require.NoError(t, err)
	assert.Zero(t, unknown.Cosine)
}

func TestJaccardAndCosine(t *testing.T) {
	tests := []struct {
		name            string
		a, b            map[string]float64
		jaccard, cosine float64
	}{
		{"both empty", nil, nil, 0, 0},
		{"one empty", map[string]float64{"run": 1}, nil, 0, 0},
		{"identical", map[string]float64{"run": 0.5, "cat": 0.5}, map[string]float64{"run": 0.5, "cat": 0.5}, 1, 1},
		{"half overlap", map[string]float64{"run": 1}, map[string]float64{"run": 1, "cat": 1}, 0.5, 1 / 1.4142135623730951},
		{"zero weights", map[string]float64{"run": 0}, map[string]float64{"run": 1}, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.jaccard, Jaccard(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.cosine, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

func TestVariants(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)

	res, err := f.engine.Variants(ctx, "ran", "")
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, "run", res.Lemma)
	require.Len(t, res.Forms, 2)
	assert.Equal(t, "running", res.Forms[0].SurfaceForm)
	assert.Equal(t, 2, res.Forms[0].Observations)
	assert.Equal(t, 3, res.Frequency)
	assert.Equal(t, 1, res.Documents)

	inB, err := f.engine.Variants(ctx, "run", f.docB)
	require.NoError(t, err)
	assert.True(t, inB.Found)
	assert.Zero(t, inB.Frequency)
	assert.Empty(t, inB.Forms)

	missing, err := f.engine.Variants(ctx, "quixotic", "")
	require.NoError(t, err)
	assert.False(t, missing.Found)
}

func TestLemmaStats(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)

	res, err := f.engine.LemmaStats(ctx, f.docA)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Words)
	assert.Equal(t, 1, res.MultiVariant)
	assert.Equal(t, 10, res.Frequency)
	require.Len(t, res.Lemmas, 3)
	assert.Equal(t, "zebra", res.Lemmas[0].Lemma)
	assert.Equal(t, "cat", res.Lemmas[1].Lemma)

	global, err := f.engine.LemmaStats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 4, global.Words)
	assert.Equal(t, 11, global.Frequency)
}

func TestDifficulty(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)

	run, err := db.GetWordByLemma(ctx, f.conn, "run")
	require.NoError(t, err)
	require.NoError(t, db.SetPersonalStatus(ctx, f.conn, run.ID, db.PersonalKnow, nil))

	res, err := f.engine.Difficulty(ctx, f.docA)
	require.NoError(t, err)
	assert.Equal(t, 10, res.TotalFrequency)
	assert.InDelta(t, 70.0, res.Score, 1e-9)
	assert.Equal(t, StatusBucket{Words: 1, Frequency: 3}, *res.ByStatus[db.PersonalKnow])
	assert.Equal(t, StatusBucket{Words: 2, Frequency: 7}, *res.ByStatus[db.PersonalNew])
	require.Len(t, res.Recommended, 2)
	assert.Equal(t, "zebra", res.Recommended[0].Lemma)
	assert.Equal(t, "cat", res.Recommended[1].Lemma)
	require.NotNil(t, res.Recommended[1].Rank)
	assert.Equal(t, 500, *res.Recommended[1].Rank)

	low, err := f.engine.Difficulty(ctx, f.docB)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, low.Score, 1e-9)
	assert.Empty(t, low.Recommended)

	none, err := f.engine.Difficulty(ctx, "no-such-doc")
	require.NoError(t, err)
	assert.Zero(t, none.Score)
}

func TestPOSDistributionAndDatabaseStats(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)

	pos, err := f.engine.POSDistribution(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, pos.Total)
	var sum float64
	for _, p := range pos.Percentages {
		sum += p
	}
	assert.InDelta(t, 100.0, sum, 1e-9)

	st, err := f.engine.DatabaseStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Tables.Documents)
	assert.Equal(t, 4, st.Tables.Words)
	assert.Equal(t, 3, st.Dictionary.Entries)
	assert.Equal(t, 2, st.MatchStates[db.MatchFound])
	assert.Equal(t, 2, st.MatchStates[db.MatchNotFound])
	assert.InDelta(t, 50.0, st.MatchRate, 1e-9)
	assert.Equal(t, 4, st.Statuses[db.PersonalNew])
}
