package dictionary

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/lexindex/pkg/db"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestParseCSV(t *testing.T) {
	input := `RANK,POS,WORD,LEMMA,DEFINITION
1,V,Run,run,move fast
2,n,time
x,N,bad
3,J,a
4
5,ADV,quickly
`
	rows, errs, err := ParseCSV(strings.NewReader(input), ParseOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, Row{Line: 2, Rank: 1, POS: "verb", Word: "run", Definition: "move fast"}, rows[0])
	assert.Equal(t, "noun", rows[1].POS)
	assert.Equal(t, "time", rows[1].Word)
	assert.Equal(t, "adverb", rows[2].POS)

	require.Len(t, errs, 3)
	assert.Equal(t, 4, errs[0].Line)
	assert.Contains(t, errs[0].Reason, "invalid rank")
	assert.Contains(t, errs[1].Reason, "shorter than 2")
	assert.Contains(t, errs[2].Reason, "at least 3 columns")
}

func TestParseCSVNoHeaderAndLimit(t *testing.T) {
	rows, errs, err := ParseCSV(strings.NewReader("1,V,run\n2,N,time\n3,N,year\n"), ParseOptions{MaxRows: 2})
	require.NoError(t, err)
	assert.Empty(t, errs)
	require.Len(t, rows, 2)
	assert.Equal(t, "run", rows[0].Word)
}

func TestStandardizePOS(t *testing.T) {
	tests := map[string]string{
		"N": "noun", "n": "noun", "V": "verb", "J": "adjective", "a": "adjective",
		"ADJ": "adjective", "R": "adverb", "adv": "adverb", "NOUN": "noun", "Prep": "prep",
	}
	for in, want := range tests {
		assert.Equal(t, want, StandardizePOS(in), in)
	}
}

func TestDifficultyForRank(t *testing.T) {
	tests := []struct {
		rank, want int
	}{
		{1, 1}, {2000, 1}, {2001, 2}, {5000, 2}, {5001, 3}, {15000, 3}, {15001, 4}, {35000, 4}, {35001, 5}, {90000, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DifficultyForRank(tt.rank), "rank %d", tt.rank)
	}
}

func TestImportMonotonic(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	im := NewImporter(conn, nil)

	res, err := im.Import(ctx, []Row{{Line: 1, Rank: 200, POS: "verb", Word: "run"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	res, err = im.Import(ctx, []Row{{Line: 1, Rank: 500, POS: "verb", Word: "run"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unchanged)

	entries, err := db.FindEntries(ctx, conn, "run")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 200, entries[0].Rank)

	res, err = im.Import(ctx, []Row{{Line: 1, Rank: 100, POS: "verb", Word: "run"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Improved)

	entries, err = db.FindEntries(ctx, conn, "run")
	require.NoError(t, err)
	assert.Equal(t, 100, entries[0].Rank)
	assert.Equal(t, 1, entries[0].Difficulty)
}

func TestImportSkipsProperNounsAndBatches(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	im := NewImporter(conn, nil)
	im.BatchSize = 2

	rows := []Row{
		{Line: 1, Rank: 1, POS: "verb", Word: "run"},
		{Line: 2, Rank: 2, POS: "noun", Word: "London"},
		{Line: 3, Rank: 3, POS: "noun", Word: "time"},
		{Line: 4, Rank: 4, POS: "noun", Word: "NASA"},
		{Line: 5, Rank: 15000, POS: "noun", Word: "run"},
		{Line: 6, Rank: 6, POS: "noun", Word: "year"},
	}
	res, err := im.Import(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Processed)
	assert.Equal(t, 2, res.SkippedProperNouns)
	assert.Equal(t, 4, res.Imported)
	assert.Zero(t, res.FailedBatches)
	assert.Empty(t, res.Errors)

	im.SkipProperNouns = false
	res, err = im.Import(ctx, []Row{{Line: 1, Rank: 2, POS: "noun", Word: "London"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	entries, err := db.FindEntries(ctx, conn, "london")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestImportReportsInvalidRows(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	im := NewImporter(conn, nil)

	res, err := im.Import(ctx, []Row{
		{Line: 1, Rank: 1, POS: "verb", Word: "run"},
		{Line: 2, Rank: 0, POS: "noun", Word: "zero"},
		{Line: 3, Rank: 3, POS: "noun", Word: "time"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Line)
	assert.Equal(t, "zero", res.Errors[0].Word)
}

func TestImportReportsEveryRowOfRolledBackBatch(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	_, err := conn.Exec(`CREATE TRIGGER no_boom BEFORE INSERT ON dictionary_entries
		WHEN NEW.word = 'boom' BEGIN SELECT RAISE(ABORT, 'boom is banned'); END`)
	require.NoError(t, err)
	im := NewImporter(conn, nil)
	im.BatchSize = 4

	res, err := im.Import(ctx, []Row{
		{Line: 1, Rank: 1, POS: "noun", Word: "alpha"},
		{Line: 2, Rank: 2, POS: "noun", Word: "boom"},
		{Line: 3, Rank: 3, POS: "noun", Word: "gamma"},
		{Line: 4, Rank: 4, POS: "noun", Word: "delta"},
		{Line: 5, Rank: 5, POS: "noun", Word: "epsilon"},
		{Line: 6, Rank: 6, POS: "noun", Word: "zeta"},
	})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Processed)
	assert.Equal(t, 1, res.FailedBatches)
	assert.Equal(t, 2, res.Imported)

	var failed []string
	for _, e := range res.Errors {
		assert.Contains(t, e.Reason, "batch rolled back")
		failed = append(failed, e.Word)
	}
	assert.Equal(t, []string{"alpha", "boom", "gamma", "delta"}, failed)
	assert.Equal(t, res.Processed, res.Imported+res.Improved+res.Unchanged+res.SkippedProperNouns+len(res.Errors))

	entries, err := db.FindEntries(ctx, conn, "alpha")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImportCanceled(t *testing.T) {
	conn := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewImporter(conn, nil).Import(ctx, []Row{{Line: 1, Rank: 1, POS: "verb", Word: "run"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func seedRun(t *testing.T, conn *sql.DB) {
	t.Helper()
	_, err := NewImporter(conn, nil).Import(context.Background(), []Row{
		{Line: 1, Rank: 1, POS: "verb", Word: "run"},
		{Line: 2, Rank: 15000, POS: "noun", Word: "run"},
	})
	require.NoError(t, err)
}

func TestMatchPrefersLemmaAndLowestRank(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	seedRun(t, conn)
	m := NewMatcher(conn, nil)

	got, err := m.Match(ctx, conn, "running", "run")
	require.NoError(t, err)
	require.True(t, got.Found())
	assert.Equal(t, "verb", got.POS)
	assert.Equal(t, 1, *got.Rank)
	assert.Equal(t, 1, *got.Difficulty)

	// Surface fallback when the lemma is unknown.
	got, err = m.Match(ctx, conn, "run", "runn")
	require.NoError(t, err)
	assert.True(t, got.Found())

	got, err = m.Match(ctx, conn, "zebras", "zebra")
	require.NoError(t, err)
	assert.Equal(t, db.MatchNotFound, got.State)
	assert.Nil(t, got.Rank)
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	seedRun(t, conn)
	m := NewMatcher(conn, nil)

	entries, err := m.Lookup(ctx, conn, " RUN ")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Rank)

	entries, err = m.Lookup(ctx, conn, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemediateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	m := NewMatcher(conn, nil)

	w, err := db.InsertWord(ctx, conn, db.Word{SurfaceForm: "zebras", Lemma: "zebra", NormalizedForm: "zebras"})
	require.NoError(t, err)
	miss, err := m.Match(ctx, conn, w.NormalizedForm, w.Lemma)
	require.NoError(t, err)
	require.NoError(t, Attach(ctx, conn, w.ID, miss))

	unmatched, err := db.InsertWord(ctx, conn, db.Word{SurfaceForm: "runs", Lemma: "run", NormalizedForm: "runs"})
	require.NoError(t, err)

	res, err := m.Remediate(ctx)
	require.NoError(t, err)
	assert.Equal(t, RemediationResult{Scanned: 2, NotFound: 2}, res)

	got, err := db.GetWord(ctx, conn, unmatched.ID)
	require.NoError(t, err)
	assert.Equal(t, db.MatchNotFound, got.MatchState)

	seedRun(t, conn)
	_, err = NewImporter(conn, nil).Import(ctx, []Row{{Line: 1, Rank: 9000, POS: "noun", Word: "zebra"}})
	require.NoError(t, err)

	res, err = m.Remediate(ctx)
	require.NoError(t, err)
	assert.Equal(t, RemediationResult{Scanned: 2, Matched: 2}, res)

	got, err = db.GetWord(ctx, conn, w.ID)
	require.NoError(t, err)
	assert.Equal(t, db.MatchFound, got.MatchState)
	require.NotNil(t, got.Difficulty)
	assert.Equal(t, 3, *got.Difficulty)

	res, err = m.Remediate(ctx)
	require.NoError(t, err)
	assert.Equal(t, RemediationResult{}, res)
}
