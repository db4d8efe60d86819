package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// ReplaceOccurrences deletes every occurrence of the document and inserts occ.
// Callers should pass a transaction so the swap is atomic, and replace the
// document's word forms in the same transaction.
func ReplaceOccurrences(ctx context.Context, ex Executor, documentID string, occ []Occurrence) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM occurrences WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("clear occurrences: %w", err)
	}
	for _, o := range occ {
		positions := o.Positions
		if positions == nil {
			positions = []int{}
		}
		raw, err := json.Marshal(positions)
		if err != nil {
			return fmt.Errorf("encode positions: %w", err)
		}
		_, err = ex.ExecContext(ctx,
			`INSERT INTO occurrences (document_id, word_id, frequency, tf_score, positions, first_position, last_position)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			documentID, o.WordID, o.Frequency, o.TF, string(raw), o.FirstPosition, o.LastPosition,
		)
		if err != nil {
			return wrapWriteErr("insert occurrence", err)
		}
	}
	return nil
}

// DocumentWord is an occurrence joined with its word.
type DocumentWord struct {
	Occurrence
	Lemma             string         `json:"lemma"`
	SurfaceForm       string         `json:"surface_form"`
	PersonalStatus    PersonalStatus `json:"personal_status"`
	DictionaryEntryID string         `json:"dictionary_entry_id,omitempty"`
	Rank              *int           `json:"rank,omitempty"`
	Difficulty        *int           `json:"difficulty,omitempty"`
}

// ListDocumentWords returns the occurrences of a document, most frequent first.
func ListDocumentWords(ctx context.Context, ex Executor, documentID string) ([]DocumentWord, error) {
	rows, err := ex.QueryContext(ctx,
		`SELECT o.document_id, o.word_id, o.frequency, o.tf_score, o.positions, o.first_position, o.last_position,
		        w.lemma, w.surface_form, w.personal_status, w.dictionary_entry_id, w.dictionary_rank, w.difficulty
		 FROM occurrences o JOIN words w ON w.id = o.word_id
		 WHERE o.document_id = ?
		 ORDER BY o.frequency DESC, w.lemma`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list document words: %w", err)
	}
	defer rows.Close()

	var out []DocumentWord
	for rows.Next() {
		var (
			dw          DocumentWord
			raw         string
			first, last sql.NullInt64
			status      string
			entryID     sql.NullString
			rank, diff  sql.NullInt64
		)
		if err := rows.Scan(&dw.DocumentID, &dw.WordID, &dw.Frequency, &dw.TF, &raw, &first, &last,
			&dw.Lemma, &dw.SurfaceForm, &status, &entryID, &rank, &diff); err != nil {
			return nil, fmt.Errorf("scan document word: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &dw.Positions); err != nil {
			return nil, fmt.Errorf("decode positions: %w", err)
		}
		dw.FirstPosition = nullInt(first)
		dw.LastPosition = nullInt(last)
		dw.PersonalStatus = PersonalStatus(status)
		dw.DictionaryEntryID = entryID.String
		dw.Rank = nullInt(rank)
		dw.Difficulty = nullInt(diff)
		out = append(out, dw)
	}
	return out, rows.Err()
}

// LemmaTF returns lemma -> term frequency for a document.
func LemmaTF(ctx context.Context, ex Executor, documentID string) (map[string]float64, error) {
	rows, err := ex.QueryContext(ctx,
		`SELECT w.lemma, o.tf_score FROM occurrences o JOIN words w ON w.id = o.word_id WHERE o.document_id = ?`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("lemma tf: %w", err)
	}
	defer rows.Close()
	out := map[string]float64{}
	for rows.Next() {
		var (
			lemma string
			tf    float64
		)
		if err := rows.Scan(&lemma, &tf); err != nil {
			return nil, fmt.Errorf("scan lemma tf: %w", err)
		}
		out[lemma] = tf
	}
	return out, rows.Err()
}

// DocumentTokenTotal returns the summed frequency of a document's occurrences.
func DocumentTokenTotal(ctx context.Context, ex Executor, documentID string) (int, error) {
	var total int
	err := ex.QueryRowContext(ctx, `SELECT COALESCE(SUM(frequency), 0) FROM occurrences WHERE document_id = ?`, documentID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("document token total: %w", err)
	}
	return total, nil
}

// WordFrequency returns the summed frequency of a word, across all documents
// when documentID is empty.
func WordFrequency(ctx context.Context, ex Executor, wordID, documentID string) (freq, documents int, err error) {
	query := `SELECT COALESCE(SUM(frequency), 0), COUNT(*) FROM occurrences WHERE word_id = ?`
	args := []any{wordID}
	if documentID != "" {
		query += ` AND document_id = ?`
		args = append(args, documentID)
	}
	if err := ex.QueryRowContext(ctx, query, args...).Scan(&freq, &documents); err != nil {
		return 0, 0, fmt.Errorf("word frequency: %w", err)
	}
	return freq, documents, nil
}

// WordlistCoverage returns how many words of a document link to a dictionary
// entry of the wordlist, and their summed frequency.
func WordlistCoverage(ctx context.Context, ex Executor, documentID, wordlistID string) (words, frequency int, err error) {
	err = ex.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(o.frequency), 0)
		 FROM occurrences o JOIN words w ON w.id = o.word_id
		 WHERE o.document_id = ?
		   AND w.dictionary_entry_id IN (SELECT dictionary_entry_id FROM wordlist_memberships WHERE wordlist_id = ?)`,
		documentID, wordlistID,
	).Scan(&words, &frequency)
	if err != nil {
		return 0, 0, fmt.Errorf("wordlist coverage: %w", err)
	}
	return words, frequency, nil
}

// LemmaVariant aggregates the observed spellings of one word.
type LemmaVariant struct {
	WordID      string `json:"word_id"`
	Lemma       string `json:"lemma"`
	SurfaceForm string `json:"surface_form"`
	Variants    int    `json:"variants"`
	Frequency   int    `json:"frequency"`
}

// ListLemmaVariants returns every word with occurrences, most frequent first.
// When documentID is set both the variant count and the frequency are limited
// to that document.
func ListLemmaVariants(ctx context.Context, ex Executor, documentID string) ([]LemmaVariant, error) {
	query := `SELECT w.id, w.lemma, w.surface_form,
	                 (SELECT COUNT(DISTINCT f.surface_form) FROM word_forms f
	                  WHERE f.word_id = w.id AND (? = '' OR f.document_id = ?)),
	                 SUM(o.frequency)
	          FROM words w JOIN occurrences o ON o.word_id = w.id`
	args := []any{documentID, documentID}
	if documentID != "" {
		query += ` WHERE o.document_id = ?`
		args = append(args, documentID)
	}
	query += ` GROUP BY w.id ORDER BY 5 DESC, w.lemma`

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lemma variants: %w", err)
	}
	defer rows.Close()
	var out []LemmaVariant
	for rows.Next() {
		var v LemmaVariant
		if err := rows.Scan(&v.WordID, &v.Lemma, &v.SurfaceForm, &v.Variants, &v.Frequency); err != nil {
			return nil, fmt.Errorf("scan lemma variant: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
