package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// UpsertOutcome tells what UpsertEntry did with a row.
type UpsertOutcome int

const (
	// EntryInserted means no (word, pos) row existed.
	EntryInserted UpsertOutcome = iota
	// EntryImproved means the stored rank was replaced by a strictly better one.
	EntryImproved
	// EntryUnchanged means the stored row won; equal ranks never downgrade.
	EntryUnchanged
)

const entryColumns = `id, word, lemma, pos, definition, frequency_rank, difficulty, provenance, created_at, updated_at`

// UpsertEntry inserts e or, when (word, pos) exists, replaces the stored rank
// only if e.Rank is strictly lower.
func UpsertEntry(ctx context.Context, ex Executor, e DictionaryEntry) (UpsertOutcome, error) {
	e.Word = strings.TrimSpace(e.Word)
	if e.Word == "" {
		return 0, NewValidationError("word", "must be non-empty")
	}
	if e.POS == "" {
		return 0, NewValidationError("pos", "must be non-empty")
	}
	if e.Rank <= 0 {
		return 0, NewValidationError("rank", "must be positive")
	}
	if e.Lemma == "" {
		e.Lemma = e.Word
	}
	prov, err := encodeJSON(e.Provenance)
	if err != nil {
		return 0, err
	}

	var (
		id   string
		rank int
	)
	err = ex.QueryRowContext(ctx, `SELECT id, frequency_rank FROM dictionary_entries WHERE word = ? AND pos = ?`, e.Word, e.POS).Scan(&id, &rank)
	now := time.Now().UTC()
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err := ex.ExecContext(ctx,
			`INSERT INTO dictionary_entries (id, word, lemma, pos, definition, frequency_rank, difficulty, provenance, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), e.Word, e.Lemma, e.POS, e.Definition, e.Rank, e.Difficulty, prov, now, now,
		)
		if err != nil {
			return 0, wrapWriteErr("insert dictionary entry", err)
		}
		return EntryInserted, nil
	case err != nil:
		return 0, fmt.Errorf("lookup dictionary entry: %w", err)
	}

	if e.Rank >= rank {
		return EntryUnchanged, nil
	}
	_, err = ex.ExecContext(ctx,
		`UPDATE dictionary_entries
		 SET frequency_rank = ?, difficulty = ?, lemma = ?, definition = CASE WHEN ? <> '' THEN ? ELSE definition END,
		     provenance = ?, updated_at = ?
		 WHERE id = ?`,
		e.Rank, e.Difficulty, e.Lemma, e.Definition, e.Definition, prov, now, id,
	)
	if err != nil {
		return 0, wrapWriteErr("update dictionary entry", err)
	}
	return EntryImproved, nil
}

// FindEntries returns every entry whose word or lemma equals term, lowest
// rank first.
func FindEntries(ctx context.Context, ex Executor, term string) ([]DictionaryEntry, error) {
	rows, err := ex.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM dictionary_entries WHERE word = ? OR lemma = ? ORDER BY frequency_rank, pos`,
		term, term,
	)
	if err != nil {
		return nil, fmt.Errorf("find dictionary entries: %w", err)
	}
	return collectEntries(rows)
}

// GetEntry returns the entry with id, or nil.
func GetEntry(ctx context.Context, ex Executor, id string) (*DictionaryEntry, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM dictionary_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// EntryFilter narrows ListEntries. Zero fields are ignored.
type EntryFilter struct {
	POS        string
	Difficulty int
	MaxRank    int
	Limit      uint64
	Offset     uint64
}

// ListEntries returns entries matching f ordered by rank.
func ListEntries(ctx context.Context, ex Executor, f EntryFilter) ([]DictionaryEntry, error) {
	b := sq.Select(strings.Split(entryColumns, ", ")...).From("dictionary_entries")
	if f.POS != "" {
		b = b.Where(sq.Eq{"pos": f.POS})
	}
	if f.Difficulty > 0 {
		b = b.Where(sq.Eq{"difficulty": f.Difficulty})
	}
	if f.MaxRank > 0 {
		b = b.Where(sq.LtOrEq{"frequency_rank": f.MaxRank})
	}
	b = b.OrderBy("frequency_rank", "pos")
	if f.Limit > 0 {
		b = b.Limit(f.Limit).Offset(f.Offset)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build entry query: %w", err)
	}
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dictionary entries: %w", err)
	}
	return collectEntries(rows)
}

// DictionaryStats summarizes the reference dictionary.
type DictionaryStats struct {
	Entries        int            `json:"entries"`
	DistinctWords  int            `json:"distinct_words"`
	MultiPOSWords  int            `json:"multi_pos_words"`
	WithDefinition int            `json:"with_definition"`
	ByPOS          map[string]int `json:"by_pos"`
	ByDifficulty   map[int]int    `json:"by_difficulty"`
}

// GetDictionaryStats computes DictionaryStats.
func GetDictionaryStats(ctx context.Context, ex Executor) (DictionaryStats, error) {
	st := DictionaryStats{ByPOS: map[string]int{}, ByDifficulty: map[int]int{}}
	err := ex.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT word), COALESCE(SUM(CASE WHEN definition <> '' THEN 1 ELSE 0 END), 0) FROM dictionary_entries`,
	).Scan(&st.Entries, &st.DistinctWords, &st.WithDefinition)
	if err != nil {
		return st, fmt.Errorf("count dictionary entries: %w", err)
	}
	err = ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM (SELECT word FROM dictionary_entries GROUP BY word HAVING COUNT(*) > 1)`,
	).Scan(&st.MultiPOSWords)
	if err != nil {
		return st, fmt.Errorf("count multi-pos words: %w", err)
	}

	if err := countInto(ctx, ex, `SELECT pos, COUNT(*) FROM dictionary_entries GROUP BY pos`, func(rows *sql.Rows) error {
		var (
			pos string
			n   int
		)
		if err := rows.Scan(&pos, &n); err != nil {
			return err
		}
		st.ByPOS[pos] = n
		return nil
	}); err != nil {
		return st, err
	}
	err = countInto(ctx, ex, `SELECT difficulty, COUNT(*) FROM dictionary_entries GROUP BY difficulty`, func(rows *sql.Rows) error {
		var d, n int
		if err := rows.Scan(&d, &n); err != nil {
			return err
		}
		st.ByDifficulty[d] = n
		return nil
	})
	return st, err
}

func countInto(ctx context.Context, ex Executor, query string, fn func(*sql.Rows) error) error {
	rows, err := ex.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return fmt.Errorf("scan counts: %w", err)
		}
	}
	return rows.Err()
}

func collectEntries(rows *sql.Rows) ([]DictionaryEntry, error) {
	defer rows.Close()
	var out []DictionaryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanEntry(s scanner) (*DictionaryEntry, error) {
	var (
		e    DictionaryEntry
		prov string
	)
	if err := s.Scan(&e.ID, &e.Word, &e.Lemma, &e.POS, &e.Definition, &e.Rank, &e.Difficulty, &prov, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan dictionary entry: %w", err)
	}
	if err := json.Unmarshal([]byte(prov), &e.Provenance); err != nil {
		return nil, fmt.Errorf("decode provenance: %w", err)
	}
	return &e, nil
}
