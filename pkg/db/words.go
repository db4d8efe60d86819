package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

const wordColumns = `id, surface_form, lemma, normalized_form, features, dictionary_entry_id, match_state, dictionary_rank, difficulty, personal_status, personal_notes, status_updated_at, created_at, updated_at`

// GetWord returns the word with id, or nil.
func GetWord(ctx context.Context, ex Executor, id string) (*Word, error) {
	return queryWord(ctx, ex, `SELECT `+wordColumns+` FROM words WHERE id = ?`, id)
}

// GetWordByLemma returns the word keyed by lemma, or nil.
func GetWordByLemma(ctx context.Context, ex Executor, lemma string) (*Word, error) {
	return queryWord(ctx, ex, `SELECT `+wordColumns+` FROM words WHERE lemma = ?`, lemma)
}

// FindWord looks a word up by lemma, then by stored surface or normalized form.
func FindWord(ctx context.Context, ex Executor, term string) (*Word, error) {
	w, err := GetWordByLemma(ctx, ex, term)
	if err != nil || w != nil {
		return w, err
	}
	return queryWord(ctx, ex,
		`SELECT `+wordColumns+` FROM words WHERE surface_form = ? OR normalized_form = ? ORDER BY created_at LIMIT 1`,
		term, term,
	)
}

func queryWord(ctx context.Context, ex Executor, query string, args ...any) (*Word, error) {
	w, err := scanWord(ex.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

// InsertWord creates w and returns the stored record. A lemma collision is
// reported as a ConflictError.
func InsertWord(ctx context.Context, ex Executor, w Word) (*Word, error) {
	if strings.TrimSpace(w.Lemma) == "" {
		return nil, NewValidationError("lemma", "must be non-empty")
	}
	if w.Features == "" {
		w.Features = "{}"
	}
	if w.MatchState == "" {
		w.MatchState = MatchUnmatched
	}
	if w.PersonalStatus == "" {
		w.PersonalStatus = PersonalNew
	}
	w.ID = uuid.NewString()
	now := time.Now().UTC()
	_, err := ex.ExecContext(ctx,
		`INSERT INTO words (id, surface_form, lemma, normalized_form, features, match_state, personal_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.SurfaceForm, w.Lemma, w.NormalizedForm, w.Features, string(w.MatchState), string(w.PersonalStatus), now, now,
	)
	if err != nil {
		return nil, wrapWriteErr("insert word", err)
	}
	return GetWord(ctx, ex, w.ID)
}

// UpdateSurfaceForm replaces the display form of a word.
func UpdateSurfaceForm(ctx context.Context, ex Executor, id, surface string) error {
	_, err := ex.ExecContext(ctx, `UPDATE words SET surface_form = ?, updated_at = ? WHERE id = ?`, surface, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update surface form: %w", err)
	}
	return nil
}

// SetWordMatch stores the dictionary matching outcome for a word.
func SetWordMatch(ctx context.Context, ex Executor, id string, entryID string, rank, difficulty *int, state MatchState) error {
	var entry any
	if entryID != "" {
		entry = entryID
	}
	_, err := ex.ExecContext(ctx,
		`UPDATE words SET dictionary_entry_id = ?, dictionary_rank = ?, difficulty = ?, match_state = ?, updated_at = ? WHERE id = ?`,
		entry, rank, difficulty, string(state), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set word match: %w", err)
	}
	return nil
}

// ReplaceWordForms swaps the spellings recorded for a document with forms.
// A spelling already recorded for the document keeps its first_seen_at.
// Callers should pass the transaction that replaces the occurrences.
func ReplaceWordForms(ctx context.Context, ex Executor, documentID string, forms []WordForm) error {
	firstSeen, err := documentFormsFirstSeen(ctx, ex, documentID)
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, `DELETE FROM word_forms WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("clear word forms: %w", err)
	}
	now := time.Now().UTC()
	for _, f := range forms {
		if f.Observations < 1 {
			continue
		}
		first, ok := firstSeen[f.WordID+"\x00"+f.SurfaceForm]
		if !ok {
			first = now
		}
		_, err := ex.ExecContext(ctx,
			`INSERT INTO word_forms (document_id, word_id, surface_form, observations, first_seen_at, last_seen_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(document_id, word_id, surface_form) DO UPDATE SET
			   observations = word_forms.observations + excluded.observations`,
			documentID, f.WordID, f.SurfaceForm, f.Observations, first, now,
		)
		if err != nil {
			return wrapWriteErr("insert word form", err)
		}
	}
	return nil
}

func documentFormsFirstSeen(ctx context.Context, ex Executor, documentID string) (map[string]time.Time, error) {
	rows, err := ex.QueryContext(ctx,
		`SELECT word_id, surface_form, first_seen_at FROM word_forms WHERE document_id = ?`, documentID)
	if err != nil {
		return nil, fmt.Errorf("read word forms: %w", err)
	}
	defer rows.Close()
	out := make(map[string]time.Time)
	for rows.Next() {
		var wordID, surface string
		var first time.Time
		if err := rows.Scan(&wordID, &surface, &first); err != nil {
			return nil, fmt.Errorf("scan word form: %w", err)
		}
		out[wordID+"\x00"+surface] = first
	}
	return out, rows.Err()
}

// ListWordForms returns the observed spellings of a word, most seen first.
// Observations are summed over documents, or limited to one document when
// documentID is set.
func ListWordForms(ctx context.Context, ex Executor, wordID, documentID string) ([]WordForm, error) {
	b := sq.Select("surface_form", "observations", "first_seen_at", "last_seen_at").
		From("word_forms").
		Where(sq.Eq{"word_id": wordID})
	if documentID != "" {
		b = b.Where(sq.Eq{"document_id": documentID})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build word form query: %w", err)
	}
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list word forms: %w", err)
	}
	defer rows.Close()

	bySurface := make(map[string]*WordForm)
	for rows.Next() {
		var f WordForm
		if err := rows.Scan(&f.SurfaceForm, &f.Observations, &f.FirstSeenAt, &f.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan word form: %w", err)
		}
		cur, ok := bySurface[f.SurfaceForm]
		if !ok {
			f.WordID = wordID
			bySurface[f.SurfaceForm] = &f
			continue
		}
		cur.Observations += f.Observations
		if f.FirstSeenAt.Before(cur.FirstSeenAt) {
			cur.FirstSeenAt = f.FirstSeenAt
		}
		if f.LastSeenAt.After(cur.LastSeenAt) {
			cur.LastSeenAt = f.LastSeenAt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]WordForm, 0, len(bySurface))
	for _, f := range bySurface {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Observations != out[j].Observations {
			return out[i].Observations > out[j].Observations
		}
		return out[i].SurfaceForm < out[j].SurfaceForm
	})
	return out, nil
}

// WordFilter narrows ListWords. Zero fields are ignored.
type WordFilter struct {
	MatchStates []MatchState
	Status      PersonalStatus
	Difficulty  int
	Limit       uint64
	Offset      uint64
	// ByRank orders by dictionary rank (unranked last) instead of lemma.
	ByRank bool
}

// ListWords returns words matching f.
func ListWords(ctx context.Context, ex Executor, f WordFilter) ([]Word, error) {
	b := sq.Select(strings.Split(wordColumns, ", ")...).From("words")
	if len(f.MatchStates) > 0 {
		states := make([]string, 0, len(f.MatchStates))
		for _, s := range f.MatchStates {
			states = append(states, string(s))
		}
		b = b.Where(sq.Eq{"match_state": states})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"personal_status": string(f.Status)})
	}
	if f.Difficulty > 0 {
		b = b.Where(sq.Eq{"difficulty": f.Difficulty})
	}
	if f.ByRank {
		b = b.OrderBy("dictionary_rank IS NULL", "dictionary_rank", "lemma")
	} else {
		b = b.OrderBy("lemma")
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit).Offset(f.Offset)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build word query: %w", err)
	}
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list words: %w", err)
	}
	defer rows.Close()
	var out []Word
	for rows.Next() {
		w, err := scanWord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// SetPersonalStatus updates the status of a word. notes is left untouched
// when nil.
func SetPersonalStatus(ctx context.Context, ex Executor, id string, status PersonalStatus, notes *string) error {
	if !status.Valid() {
		return NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	now := time.Now().UTC()
	res, err := ex.ExecContext(ctx,
		`UPDATE words SET personal_status = ?, personal_notes = COALESCE(?, personal_notes), status_updated_at = ?, updated_at = ? WHERE id = ?`,
		string(status), notes, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("set personal status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("word %s: %w", id, ErrNotFound)
	}
	return nil
}

// CountWordsByStatus returns the number of words in each personal status.
func CountWordsByStatus(ctx context.Context, ex Executor) (map[PersonalStatus]int, error) {
	out := make(map[PersonalStatus]int, len(PersonalStatuses))
	for _, s := range PersonalStatuses {
		out[s] = 0
	}
	err := countInto(ctx, ex, `SELECT personal_status, COUNT(*) FROM words GROUP BY personal_status`, func(rows *sql.Rows) error {
		var (
			s string
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return err
		}
		out[PersonalStatus(s)] = n
		return nil
	})
	return out, err
}

// CountWordsByMatchState returns the number of words in each match state.
func CountWordsByMatchState(ctx context.Context, ex Executor) (map[MatchState]int, error) {
	out := map[MatchState]int{MatchUnmatched: 0, MatchFound: 0, MatchNotFound: 0}
	err := countInto(ctx, ex, `SELECT match_state, COUNT(*) FROM words GROUP BY match_state`, func(rows *sql.Rows) error {
		var (
			s string
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return err
		}
		out[MatchState(s)] = n
		return nil
	})
	return out, err
}

// CountWordsByFeature groups words by a top-level key of the feature blob.
func CountWordsByFeature(ctx context.Context, ex Executor, key string) (map[string]int, error) {
	out := map[string]int{}
	err := countInto(ctx, ex,
		`SELECT COALESCE(json_extract(features, '$.`+sanitizeJSONKey(key)+`'), 'UNKNOWN'), COUNT(*) FROM words GROUP BY 1`,
		func(rows *sql.Rows) error {
			var (
				v string
				n int
			)
			if err := rows.Scan(&v, &n); err != nil {
				return err
			}
			out[v] = n
			return nil
		})
	return out, err
}

func sanitizeJSONKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func scanWord(s scanner) (*Word, error) {
	var (
		w           Word
		entryID     sql.NullString
		state       string
		status      string
		rank, diff  sql.NullInt64
		statusStamp sql.NullTime
	)
	err := s.Scan(&w.ID, &w.SurfaceForm, &w.Lemma, &w.NormalizedForm, &w.Features, &entryID, &state,
		&rank, &diff, &status, &w.PersonalNotes, &statusStamp, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan word: %w", err)
	}
	w.DictionaryEntryID = entryID.String
	w.MatchState = MatchState(state)
	w.PersonalStatus = PersonalStatus(status)
	if rank.Valid {
		r := int(rank.Int64)
		w.Rank = &r
	}
	if diff.Valid {
		d := int(diff.Int64)
		w.Difficulty = &d
	}
	if statusStamp.Valid {
		t := statusStamp.Time
		w.StatusUpdatedAt = &t
	}
	return &w, nil
}
