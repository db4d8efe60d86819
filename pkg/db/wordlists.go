package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const wordlistColumns = `id, name, description, word_count, created_at, updated_at`

// CreateOrGetWordlist returns the wordlist called name, creating it if needed.
func CreateOrGetWordlist(ctx context.Context, ex Executor, name, description string) (*Wordlist, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, NewValidationError("name", "must be non-empty")
	}

	const maxRetries = 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		wl, err := GetWordlistByName(ctx, ex, name)
		if err != nil {
			return nil, false, err
		}
		if wl != nil {
			return wl, false, nil
		}
		now := time.Now().UTC()
		id := uuid.NewString()
		_, err = ex.ExecContext(ctx,
			`INSERT INTO wordlists (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			id, name, description, now, now,
		)
		if err != nil {
			if isUniqueConstraintErr(err) {
				continue
			}
			return nil, false, fmt.Errorf("insert wordlist: %w", err)
		}
		wl, err = GetWordlistByName(ctx, ex, name)
		return wl, true, err
	}
	return nil, false, &ConflictError{Op: "create wordlist", Err: fmt.Errorf("gave up after %d retries", maxRetries)}
}

// GetWordlistByName returns the wordlist called name, or nil.
func GetWordlistByName(ctx context.Context, ex Executor, name string) (*Wordlist, error) {
	wl, err := scanWordlist(ex.QueryRowContext(ctx, `SELECT `+wordlistColumns+` FROM wordlists WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return wl, err
}

// ListWordlists returns every wordlist ordered by name.
func ListWordlists(ctx context.Context, ex Executor) ([]Wordlist, error) {
	rows, err := ex.QueryContext(ctx, `SELECT `+wordlistColumns+` FROM wordlists ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list wordlists: %w", err)
	}
	defer rows.Close()
	var out []Wordlist
	for rows.Next() {
		wl, err := scanWordlist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *wl)
	}
	return out, rows.Err()
}

// DeleteWordlist removes a wordlist and its memberships.
func DeleteWordlist(ctx context.Context, ex Executor, name string) (bool, error) {
	wl, err := GetWordlistByName(ctx, ex, name)
	if err != nil || wl == nil {
		return false, err
	}
	if _, err := ex.ExecContext(ctx, `DELETE FROM wordlist_memberships WHERE wordlist_id = ?`, wl.ID); err != nil {
		return false, fmt.Errorf("delete memberships: %w", err)
	}
	if _, err := ex.ExecContext(ctx, `DELETE FROM wordlists WHERE id = ?`, wl.ID); err != nil {
		return false, fmt.Errorf("delete wordlist: %w", err)
	}
	return true, nil
}

// AddMembership links an entry to a wordlist. It reports false when the link
// already existed.
func AddMembership(ctx context.Context, ex Executor, m Membership) (bool, error) {
	if m.Confidence == 0 {
		m.Confidence = 1.0
	}
	res, err := ex.ExecContext(ctx,
		`INSERT INTO wordlist_memberships (dictionary_entry_id, wordlist_id, confidence, original_word, matched_word, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(dictionary_entry_id, wordlist_id) DO NOTHING`,
		m.DictionaryEntryID, m.WordlistID, m.Confidence, m.OriginalWord, m.MatchedWord, time.Now().UTC(),
	)
	if err != nil {
		return false, wrapWriteErr("insert membership", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RefreshWordlistCount recomputes the cached member count and returns it.
func RefreshWordlistCount(ctx context.Context, ex Executor, wordlistID string) (int, error) {
	_, err := ex.ExecContext(ctx,
		`UPDATE wordlists SET word_count = (SELECT COUNT(*) FROM wordlist_memberships WHERE wordlist_id = ?), updated_at = ? WHERE id = ?`,
		wordlistID, time.Now().UTC(), wordlistID,
	)
	if err != nil {
		return 0, fmt.Errorf("refresh wordlist count: %w", err)
	}
	var n int
	if err := ex.QueryRowContext(ctx, `SELECT word_count FROM wordlists WHERE id = ?`, wordlistID).Scan(&n); err != nil {
		return 0, fmt.Errorf("read wordlist count: %w", err)
	}
	return n, nil
}

// Member is a wordlist membership joined with its dictionary entry.
type Member struct {
	Membership
	Word       string `json:"word"`
	POS        string `json:"pos"`
	Rank       int    `json:"rank,omitempty"`
	Difficulty int    `json:"difficulty,omitempty"`
}

// ListMembers returns the members of a wordlist by rank.
func ListMembers(ctx context.Context, ex Executor, wordlistID string) ([]Member, error) {
	rows, err := ex.QueryContext(ctx,
		`SELECT m.dictionary_entry_id, m.wordlist_id, m.confidence, m.original_word, m.matched_word, m.created_at,
		        d.word, d.pos, d.frequency_rank, d.difficulty
		 FROM wordlist_memberships m JOIN dictionary_entries d ON d.id = m.dictionary_entry_id
		 WHERE m.wordlist_id = ?
		 ORDER BY d.frequency_rank, d.pos`,
		wordlistID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.DictionaryEntryID, &m.WordlistID, &m.Confidence, &m.OriginalWord, &m.MatchedWord, &m.CreatedAt,
			&m.Word, &m.POS, &m.Rank, &m.Difficulty); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// IsMember reports whether any dictionary entry spelled word belongs to the wordlist.
func IsMember(ctx context.Context, ex Executor, wordlistID, word string) (bool, error) {
	var n int
	err := ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wordlist_memberships m JOIN dictionary_entries d ON d.id = m.dictionary_entry_id
		 WHERE m.wordlist_id = ? AND (d.word = ? OR d.lemma = ?)`,
		wordlistID, word, word,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("is member: %w", err)
	}
	return n > 0, nil
}

func scanWordlist(s scanner) (*Wordlist, error) {
	var wl Wordlist
	if err := s.Scan(&wl.ID, &wl.Name, &wl.Description, &wl.WordCount, &wl.CreatedAt, &wl.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan wordlist: %w", err)
	}
	return &wl, nil
}
