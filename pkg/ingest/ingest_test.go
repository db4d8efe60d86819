package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/lexindex/pkg/db"
	"github.com/japaniel/lexindex/pkg/dictionary"
	"github.com/japaniel/lexindex/pkg/extract"
	"github.com/japaniel/lexindex/pkg/features"
	"github.com/japaniel/lexindex/pkg/lexeme"
	"github.com/japaniel/lexindex/pkg/tokenize"
)

func setupDB(t testing.TB) *sql.DB {
	t.Helper()
	conn, err := db.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newTestIngester(conn *sql.DB) *Ingester {
	resolver := lexeme.NewResolver(lexeme.SnowballStemmer{}, features.Rules{}, dictionary.NewMatcher(conn, nil), nil)
	return NewIngester(conn, NewLedger(conn, resolver, nil), tokenize.English{}, nil)
}

func textSource(name, text string) Source {
	return Source{Content: extract.Text(name, text)}
}

func TestIngestTextLifecycle(t *testing.T) {
	ctx := context.Background()
	conn := setupDB(t)
	ig := newTestIngester(conn)

	res, err := ig.IngestText(ctx, textSource("a.txt", "The cat runs. The cats were running!"))
	require.NoError(t, err)
	require.NotNil(t, res.Document)
	assert.False(t, res.Duplicate)
	assert.Equal(t, db.StatusCompleted, res.Document.Status)
	assert.NotNil(t, res.Document.ProcessedAt)
	assert.EqualValues(t, 7, res.Document.Metadata["total_words"])
	assert.Equal(t, 7, res.Record.TotalTokens)

	words, err := db.ListDocumentWords(ctx, conn, res.Document.ID)
	require.NoError(t, err)
	freq := map[string]int{}
	for _, w := range words {
		freq[w.Lemma] = w.Frequency
	}
	assert.Equal(t, 2, freq["the"])
	assert.Equal(t, 2, freq["cat"])
	assert.Equal(t, 2, freq["run"])
	assert.Equal(t, 1, freq["be"])
}

func TestIngestTextDeduplicatesFingerprint(t *testing.T) {
	ctx := context.Background()
	conn := setupDB(t)
	ig := newTestIngester(conn)

	first, err := ig.IngestText(ctx, textSource("a.txt", "run run run run run"))
	require.NoError(t, err)
	second, err := ig.IngestText(ctx, textSource("copy.txt", "run  run run\nrun run"))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Document.ID, second.Document.ID)

	docs, err := db.ListDocuments(ctx, conn, "")
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	ig.Reprocess = true
	again, err := ig.IngestText(ctx, textSource("a.txt", "run run run run run"))
	require.NoError(t, err)
	assert.False(t, again.Duplicate)
	assert.Equal(t, db.StatusCompleted, again.Document.Status)

	words, err := db.ListDocumentWords(ctx, conn, first.Document.ID)
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, 5, words[0].Frequency)
}

func TestIngestAllKeepsOrder(t *testing.T) {
	ctx := context.Background()
	conn := setupDB(t)
	ig := newTestIngester(conn)
	ig.Workers = 3

	var sources []Source
	for i := 0; i < 12; i++ {
		sources = append(sources, textSource(fmt.Sprintf("doc%02d.txt", i), fmt.Sprintf("story number %s about cats", lexemeWord(i))))
	}
	var progress []int
	ig.OnProgress = func(current, total int) {
		assert.Equal(t, 12, total)
		progress = append(progress, current)
	}

	results, err := ig.IngestAll(ctx, sources)
	require.NoError(t, err)
	require.Len(t, results, 12)
	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, fmt.Sprintf("doc%02d.txt", i), r.Document.Filename)
		assert.Equal(t, db.StatusCompleted, r.Document.Status)
	}
	assert.Equal(t, 12, progress[len(progress)-1])
	assert.Len(t, progress, 12)
}

// lexemeWord gives every generated document distinct content.
func lexemeWord(i int) string {
	return string(rune('a'+i)) + "word"
}

func TestIngestAllContextCancel(t *testing.T) {
	conn := setupDB(t)
	ig := newTestIngester(conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := ig.IngestAll(ctx, []Source{textSource("a.txt", "one two"), textSource("b.txt", "three four")})
	assert.ErrorIs(t, err, context.Canceled)
	for _, r := range results {
		assert.Nil(t, r.Document)
	}
}

// failingPool always returns an error on Submit to simulate producer error.
type failingPool struct{}

func (f *failingPool) Start(ctx context.Context) {}
func (f *failingPool) Submit(job Job) error      { return errors.New("submit failed") }
func (f *failingPool) SubmitCtx(ctx context.Context, job Job) error {
	return errors.New("submit failed")
}
func (f *failingPool) Close() {}

func TestIngestAllHandlesSubmitError(t *testing.T) {
	conn := setupDB(t)
	ig := newTestIngester(conn)
	ig.PoolFactory = func(workers, queue int) WorkerPoolInterface { return &failingPool{} }

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := ig.IngestAll(ctx, []Source{textSource("a.txt", "one two")})
	if err == nil {
		t.Fatalf("expected submit error, got nil")
	}
	assert.Contains(t, err.Error(), "submit failed")
}

func TestIngestRetriesFailedDocument(t *testing.T) {
	ctx := context.Background()
	conn := setupDB(t)
	ig := newTestIngester(conn)

	src := textSource("a.txt", "cats and dogs")
	doc, _, err := db.CreateOrGetDocument(ctx, conn, db.Document{Filename: "a.txt", Fingerprint: src.Content.Fingerprint})
	require.NoError(t, err)
	_, err = db.TransitionDocument(ctx, conn, doc.ID, db.StatusProcessing, nil)
	require.NoError(t, err)
	_, err = db.TransitionDocument(ctx, conn, doc.ID, db.StatusFailed, nil)
	require.NoError(t, err)

	// A failed document is reset to pending and processed again.
	res, err := ig.IngestText(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, res.Document.ID)
	assert.Equal(t, db.StatusCompleted, res.Document.Status)
}

func TestIngestResolverErrorFailsDocument(t *testing.T) {
	ctx := context.Background()
	conn := setupDB(t)
	ig := newTestIngester(conn)
	_, err := conn.Exec(`CREATE TRIGGER no_words BEFORE INSERT ON words BEGIN SELECT RAISE(ABORT, 'words are read only'); END`)
	require.NoError(t, err)

	res, err := ig.IngestText(ctx, textSource("a.txt", "cats and dogs"))
	require.Error(t, err)
	require.NotNil(t, res.Document)
	assert.Equal(t, db.StatusFailed, res.Document.Status)
	assert.Contains(t, res.Document.Metadata["error"], "read only")
}

// panicTokenizer crashes on texts containing "boom".
type panicTokenizer struct{ tokenize.English }

func (p panicTokenizer) Tokenize(text string) []tokenize.Token {
	if strings.Contains(text, "boom") {
		panic("dictionary not loaded")
	}
	return p.English.Tokenize(text)
}

func TestIngestAllReportsTokenizerPanic(t *testing.T) {
	conn := setupDB(t)
	ig := newTestIngester(conn)
	ig.Tokenizer = panicTokenizer{}
	ig.Workers = 2

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	results, err := ig.IngestAll(ctx, []Source{
		textSource("a.txt", "cats run"),
		textSource("b.txt", "boom goes the parser"),
		textSource("c.txt", "dogs swim"),
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	assert.Contains(t, results[1].Err.Error(), "b.txt")
	assert.Nil(t, results[1].Document)
	assert.NoError(t, results[2].Err)
}
