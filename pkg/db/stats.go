package db

import (
	"context"
	"fmt"
)

// TableCounts holds the row count of every table.
type TableCounts struct {
	Documents   int `json:"documents"`
	Entries     int `json:"dictionary_entries"`
	Words       int `json:"words"`
	WordForms   int `json:"word_forms"`
	Occurrences int `json:"occurrences"`
	Wordlists   int `json:"wordlists"`
	Memberships int `json:"wordlist_memberships"`
}

// CountTables returns TableCounts.
func CountTables(ctx context.Context, ex Executor) (TableCounts, error) {
	var c TableCounts
	err := ex.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM documents),
		(SELECT COUNT(*) FROM dictionary_entries),
		(SELECT COUNT(*) FROM words),
		(SELECT COUNT(*) FROM (SELECT DISTINCT word_id, surface_form FROM word_forms)),
		(SELECT COUNT(*) FROM occurrences),
		(SELECT COUNT(*) FROM wordlists),
		(SELECT COUNT(*) FROM wordlist_memberships)`,
	).Scan(&c.Documents, &c.Entries, &c.Words, &c.WordForms, &c.Occurrences, &c.Wordlists, &c.Memberships)
	if err != nil {
		return c, fmt.Errorf("count tables: %w", err)
	}
	return c, nil
}
