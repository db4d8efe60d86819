package db

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMigrateIsRepeatable(t *testing.T) {
	conn := setupTestDB(t)
	require.NoError(t, Migrate(context.Background(), conn))

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'occurrences'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestCreateOrGetDocumentDedupesFingerprint(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)

	first, created, err := CreateOrGetDocument(ctx, conn, Document{Filename: "a.txt", Fingerprint: "abc"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StatusPending, first.Status)

	second, created, err := CreateOrGetDocument(ctx, conn, Document{Filename: "b.txt", Fingerprint: "abc"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "a.txt", second.Filename)
}

func TestCreateOrGetDocumentConcurrent(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, _, err := CreateOrGetDocument(ctx, conn, Document{Filename: "same.txt", Fingerprint: "fp"})
			if err == nil {
				ids[i] = d.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestCreateOrGetDocumentValidation(t *testing.T) {
	conn := setupTestDB(t)
	_, _, err := CreateOrGetDocument(context.Background(), conn, Document{Filename: "x"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTransitionDocument(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	doc, _, err := CreateOrGetDocument(ctx, conn, Document{Filename: "a.txt", Fingerprint: "f1"})
	require.NoError(t, err)

	_, err = TransitionDocument(ctx, conn, doc.ID, StatusCompleted, nil)
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	doc, err = TransitionDocument(ctx, conn, doc.ID, StatusProcessing, map[string]any{"total_words": 3})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, doc.Status)
	assert.Nil(t, doc.ProcessedAt)

	doc, err = TransitionDocument(ctx, conn, doc.ID, StatusCompleted, map[string]any{"unique_words": 2})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, doc.Status)
	require.NotNil(t, doc.ProcessedAt)
	assert.EqualValues(t, 3, doc.Metadata["total_words"])
	assert.EqualValues(t, 2, doc.Metadata["unique_words"])

	_, err = TransitionDocument(ctx, conn, "missing", StatusProcessing, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to DocumentStatus
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCompleted, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusCompleted, StatusProcessing, true},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusPending, true},
		{StatusFailed, StatusProcessing, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestUpsertEntryMonotonic(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)

	out, err := UpsertEntry(ctx, conn, DictionaryEntry{Word: "run", POS: "verb", Rank: 200, Difficulty: 1})
	require.NoError(t, err)
	assert.Equal(t, EntryInserted, out)

	out, err = UpsertEntry(ctx, conn, DictionaryEntry{Word: "run", POS: "verb", Rank: 500, Difficulty: 1})
	require.NoError(t, err)
	assert.Equal(t, EntryUnchanged, out)

	out, err = UpsertEntry(ctx, conn, DictionaryEntry{Word: "run", POS: "verb", Rank: 200, Difficulty: 1})
	require.NoError(t, err)
	assert.Equal(t, EntryUnchanged, out)

	out, err = UpsertEntry(ctx, conn, DictionaryEntry{Word: "run", POS: "verb", Rank: 100, Difficulty: 1, Definition: "move fast"})
	require.NoError(t, err)
	assert.Equal(t, EntryImproved, out)

	entries, err := FindEntries(ctx, conn, "run")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 100, entries[0].Rank)
	assert.Equal(t, "move fast", entries[0].Definition)
}

func TestFindEntriesOrdersByRank(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	_, err := UpsertEntry(ctx, conn, DictionaryEntry{Word: "run", POS: "noun", Rank: 15000, Difficulty: 3})
	require.NoError(t, err)
	_, err = UpsertEntry(ctx, conn, DictionaryEntry{Word: "run", POS: "verb", Rank: 1, Difficulty: 1})
	require.NoError(t, err)

	entries, err := FindEntries(ctx, conn, "run")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "verb", entries[0].POS)

	filtered, err := ListEntries(ctx, conn, EntryFilter{POS: "noun"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, 15000, filtered[0].Rank)

	st, err := GetDictionaryStats(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Entries)
	assert.Equal(t, 1, st.DistinctWords)
	assert.Equal(t, 1, st.MultiPOSWords)
	assert.Equal(t, 1, st.ByDifficulty[3])
}

func TestInsertWordLemmaConflict(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	_, err := InsertWord(ctx, conn, Word{SurfaceForm: "runs", Lemma: "run", NormalizedForm: "runs"})
	require.NoError(t, err)

	_, err = InsertWord(ctx, conn, Word{SurfaceForm: "running", Lemma: "run", NormalizedForm: "running"})
	assert.True(t, IsRetryable(err))
}

func TestReplaceOccurrencesAndCascade(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	doc, _, err := CreateOrGetDocument(ctx, conn, Document{Filename: "a.txt", Fingerprint: "f"})
	require.NoError(t, err)
	w, err := InsertWord(ctx, conn, Word{SurfaceForm: "run", Lemma: "run", NormalizedForm: "run"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, WithTx(ctx, conn, func(tx *sql.Tx) error {
			return ReplaceOccurrences(ctx, tx, doc.ID, []Occurrence{{WordID: w.ID, Frequency: 5, TF: 1}})
		}))
	}
	words, err := ListDocumentWords(ctx, conn, doc.ID)
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, 5, words[0].Frequency)
	assert.Empty(t, words[0].Positions)

	deleted, err := DeleteDocument(ctx, conn, doc.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	counts, err := CountTables(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Occurrences)
	assert.Equal(t, 1, counts.Words)
}

func TestMembershipIdempotent(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	_, err := UpsertEntry(ctx, conn, DictionaryEntry{Word: "analyse", POS: "verb", Rank: 3000, Difficulty: 2})
	require.NoError(t, err)
	entries, err := FindEntries(ctx, conn, "analyse")
	require.NoError(t, err)

	wl, created, err := CreateOrGetWordlist(ctx, conn, "AWL", "")
	require.NoError(t, err)
	assert.True(t, created)

	m := Membership{DictionaryEntryID: entries[0].ID, WordlistID: wl.ID, OriginalWord: "ANALYSE", MatchedWord: "analyse"}
	added, err := AddMembership(ctx, conn, m)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = AddMembership(ctx, conn, m)
	require.NoError(t, err)
	assert.False(t, added)

	n, err := RefreshWordlistCount(ctx, conn, wl.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := IsMember(ctx, conn, wl.ID, "analyse")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetPersonalStatus(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	w, err := InsertWord(ctx, conn, Word{SurfaceForm: "cat", Lemma: "cat", NormalizedForm: "cat"})
	require.NoError(t, err)
	assert.Equal(t, PersonalNew, w.PersonalStatus)

	notes := "seen in chapter 1"
	require.NoError(t, SetPersonalStatus(ctx, conn, w.ID, PersonalKnow, &notes))
	require.NoError(t, SetPersonalStatus(ctx, conn, w.ID, PersonalMaster, nil))

	got, err := GetWord(ctx, conn, w.ID)
	require.NoError(t, err)
	assert.Equal(t, PersonalMaster, got.PersonalStatus)
	assert.Equal(t, notes, got.PersonalNotes)
	assert.NotNil(t, got.StatusUpdatedAt)

	assert.ErrorIs(t, SetPersonalStatus(ctx, conn, w.ID, "bogus", nil), ErrValidation)
	assert.ErrorIs(t, SetPersonalStatus(ctx, conn, "missing", PersonalKnow, nil), ErrNotFound)

	counts, err := CountWordsByStatus(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[PersonalMaster])
	assert.Equal(t, 0, counts[PersonalNew])
}

func TestListWordsFilters(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	insert := func(lemma string, rank int, state MatchState) *Word {
		w, err := InsertWord(ctx, conn, Word{SurfaceForm: lemma, Lemma: lemma, NormalizedForm: lemma})
		require.NoError(t, err)
		var r *int
		if rank > 0 {
			r = &rank
		}
		require.NoError(t, SetWordMatch(ctx, conn, w.ID, "", r, nil, state))
		return w
	}
	insert("zebra", 40, MatchNotFound)
	cat := insert("cat", 500, MatchNotFound)
	insert("apple", 0, MatchUnmatched)
	require.NoError(t, SetPersonalStatus(ctx, conn, cat.ID, PersonalLearn, nil))

	lemmas := func(ws []Word) []string {
		out := make([]string, 0, len(ws))
		for _, w := range ws {
			out = append(out, w.Lemma)
		}
		return out
	}

	all, err := ListWords(ctx, conn, WordFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "cat", "zebra"}, lemmas(all))

	ranked, err := ListWords(ctx, conn, WordFilter{ByRank: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"zebra", "cat", "apple"}, lemmas(ranked))

	notFound, err := ListWords(ctx, conn, WordFilter{MatchStates: []MatchState{MatchNotFound}, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"zebra"}, lemmas(notFound))

	learning, err := ListWords(ctx, conn, WordFilter{Status: PersonalLearn})
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, lemmas(learning))
}
