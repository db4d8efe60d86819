package dictionary

import (
	"context"
	"database/sql"
	"strings"

	"github.com/japaniel/lexindex/pkg/db"
	"github.com/japaniel/lexindex/pkg/logger"
)

// Match is the outcome of matching a word against the reference dictionary.
// EntryID, Rank and Difficulty are set only when State is db.MatchFound.
type Match struct {
	EntryID    string        `json:"entry_id,omitempty"`
	Word       string        `json:"word,omitempty"`
	POS        string        `json:"pos,omitempty"`
	Rank       *int          `json:"rank,omitempty"`
	Difficulty *int          `json:"difficulty,omitempty"`
	State      db.MatchState `json:"state"`
}

// Found reports whether the match links a dictionary entry.
func (m Match) Found() bool { return m.State == db.MatchFound }

// Matcher links words to dictionary entries.
type Matcher struct {
	conn *sql.DB
	Log  *logger.Logger
}

// NewMatcher creates a Matcher over conn.
func NewMatcher(conn *sql.DB, log *logger.Logger) *Matcher {
	return &Matcher{conn: conn, Log: logger.OrNop(log).With("component", "dictionary_matcher")}
}

// Match looks the lemma up first across every part of speech and falls back
// to the surface form. The lowest ranked entry wins.
func (m *Matcher) Match(ctx context.Context, ex db.Executor, surface, lemma string) (Match, error) {
	for _, term := range candidates(surface, lemma) {
		entries, err := db.FindEntries(ctx, ex, term)
		if err != nil {
			return Match{}, err
		}
		if len(entries) > 0 {
			// FindEntries orders by rank.
			return matchFromEntry(entries[0]), nil
		}
	}
	return Match{State: db.MatchNotFound}, nil
}

func candidates(surface, lemma string) []string {
	lemma = strings.ToLower(strings.TrimSpace(lemma))
	surface = strings.ToLower(strings.TrimSpace(surface))
	var out []string
	if lemma != "" {
		out = append(out, lemma)
	}
	if surface != "" && surface != lemma {
		out = append(out, surface)
	}
	return out
}

func matchFromEntry(e db.DictionaryEntry) Match {
	rank, diff := e.Rank, e.Difficulty
	return Match{
		EntryID:    e.ID,
		Word:       e.Word,
		POS:        e.POS,
		Rank:       &rank,
		Difficulty: &diff,
		State:      db.MatchFound,
	}
}

// Attach stores m on the word.
func Attach(ctx context.Context, ex db.Executor, wordID string, m Match) error {
	if !m.Found() {
		return db.SetWordMatch(ctx, ex, wordID, "", nil, nil, db.MatchNotFound)
	}
	return db.SetWordMatch(ctx, ex, wordID, m.EntryID, m.Rank, m.Difficulty, db.MatchFound)
}

// Lookup returns every dictionary entry spelled word, best rank first.
func (m *Matcher) Lookup(ctx context.Context, ex db.Executor, word string) ([]db.DictionaryEntry, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return nil, nil
	}
	return db.FindEntries(ctx, ex, word)
}

// RemediationResult summarizes a remediation pass.
type RemediationResult struct {
	Scanned  int `json:"scanned"`
	Matched  int `json:"matched"`
	NotFound int `json:"not_found"`
}

// Remediate re-matches every word that is not found or was never matched
// against the current dictionary, in one transaction. Running it again
// without dictionary changes updates nothing.
func (m *Matcher) Remediate(ctx context.Context) (RemediationResult, error) {
	var res RemediationResult
	err := db.WithTx(ctx, m.conn, func(tx *sql.Tx) error {
		words, err := db.ListWords(ctx, tx, db.WordFilter{
			MatchStates: []db.MatchState{db.MatchNotFound, db.MatchUnmatched},
		})
		if err != nil {
			return err
		}
		for _, w := range words {
			res.Scanned++
			match, err := m.Match(ctx, tx, w.NormalizedForm, w.Lemma)
			if err != nil {
				return err
			}
			if !match.Found() {
				res.NotFound++
				if w.MatchState == db.MatchNotFound {
					continue
				}
			} else {
				res.Matched++
			}
			if err := Attach(ctx, tx, w.ID, match); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return RemediationResult{}, err
	}
	logger.OrNop(m.Log).Info("dictionary remediation finished", "scanned", res.Scanned, "matched", res.Matched, "not_found", res.NotFound)
	return res, nil
}
