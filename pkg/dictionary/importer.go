// Package dictionary imports ranked frequency lists into the reference
// dictionary and matches words against it.
package dictionary

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"

	"github.com/japaniel/lexindex/pkg/db"
	"github.com/japaniel/lexindex/pkg/logger"
)

// DefaultBatchSize is the number of rows committed per import transaction.
const DefaultBatchSize = 1000

// ImportResult summarizes an import.
type ImportResult struct {
	Processed          int        `json:"processed"`
	Imported           int        `json:"imported"`
	Improved           int        `json:"improved"`
	Unchanged          int        `json:"unchanged"`
	SkippedProperNouns int        `json:"skipped_proper_nouns"`
	Errors             []RowError `json:"errors,omitempty"`
	FailedBatches      int        `json:"failed_batches"`
}

// Importer loads rows into dictionary_entries.
type Importer struct {
	conn            *sql.DB
	BatchSize       int
	SkipProperNouns bool
	Log             *logger.Logger
}

// NewImporter creates an Importer with the default batch size that skips
// proper nouns.
func NewImporter(conn *sql.DB, log *logger.Logger) *Importer {
	return &Importer{
		conn:            conn,
		BatchSize:       DefaultBatchSize,
		SkipProperNouns: true,
		Log:             logger.OrNop(log).With("component", "dictionary_importer"),
	}
}

// batchState collects outcomes of the batch being written. It is only touched
// on the batch writer's committer goroutine.
type batchState struct {
	imported, improved, unchanged int
	errs                          []RowError
}

// submittedRows records rows in submission order. Batches finish in the same
// order, so each finished batch of n writes owns the next n rows.
type submittedRows struct {
	mu       sync.Mutex
	rows     []Row
	finished int
}

func (s *submittedRows) add(r Row) {
	s.mu.Lock()
	s.rows = append(s.rows, r)
	s.mu.Unlock()
}

func (s *submittedRows) next(n int) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	end := min(s.finished+n, len(s.rows))
	batch := s.rows[s.finished:end]
	s.finished = end
	return batch
}

// Import upserts rows in batches, one transaction per batch. An existing
// (word, pos) entry is only updated when the new rank is strictly lower. A
// failed batch is rolled back and counted; the remaining batches still run.
func (im *Importer) Import(ctx context.Context, rows []Row) (ImportResult, error) {
	var (
		res     ImportResult
		pending   batchState
		submitted submittedRows
		log       = logger.OrNop(im.Log)
	)

	bw := db.NewBatchWriter(ctx, im.conn, im.BatchSize)
	bw.OnCommit = func(n int) {
		submitted.next(n)
		res.Imported += pending.imported
		res.Improved += pending.improved
		res.Unchanged += pending.unchanged
		res.Errors = append(res.Errors, pending.errs...)
		pending = batchState{}
		log.Info("dictionary batch committed", "rows", n, "imported", res.Imported, "improved", res.Improved)
	}
	bw.OnError = func(n int, err error) {
		res.FailedBatches++
		for _, r := range submitted.next(n) {
			res.Errors = append(res.Errors, RowError{Line: r.Line, Word: r.Word, Reason: "batch rolled back: " + err.Error()})
		}
		pending = batchState{}
		log.Error("dictionary batch failed", "rows", n, "error", err)
	}

	var submitErr error
	for _, row := range rows {
		res.Processed++
		if im.SkipProperNouns && isProperNoun(row.Word) {
			res.SkippedProperNouns++
			continue
		}
		submitted.add(row)
		err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
			out, err := db.UpsertEntry(ctx, tx, entryFromRow(row))
			if errors.Is(err, db.ErrValidation) {
				pending.errs = append(pending.errs, RowError{Line: row.Line, Word: row.Word, Reason: err.Error()})
				return nil
			}
			if err != nil {
				return err
			}
			switch out {
			case db.EntryInserted:
				pending.imported++
			case db.EntryImproved:
				pending.improved++
			default:
				pending.unchanged++
			}
			return nil
		})
		if err != nil {
			submitErr = err
			break
		}
	}

	closeErr := bw.Close()
	if submitErr != nil {
		return res, submitErr
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if closeErr != nil {
		log.Warn("dictionary import finished with failed batches", "failed_batches", res.FailedBatches)
	}
	log.Info("dictionary import finished",
		"processed", res.Processed,
		"imported", res.Imported,
		"improved", res.Improved,
		"skipped_proper_nouns", res.SkippedProperNouns,
		"errors", len(res.Errors),
	)
	return res, nil
}

func entryFromRow(r Row) db.DictionaryEntry {
	word := strings.ToLower(r.Word)
	return db.DictionaryEntry{
		Word:       word,
		Lemma:      word,
		POS:        r.POS,
		Definition: r.Definition,
		Rank:       r.Rank,
		Difficulty: DifficultyForRank(r.Rank),
		Provenance: map[string]any{"source_pos": r.POS, "source_rank": r.Rank},
	}
}

// isProperNoun reports whether word carries any upper case letter.
func isProperNoun(word string) bool {
	return word != strings.ToLower(word)
}
