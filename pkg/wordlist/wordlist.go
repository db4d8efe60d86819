// Package wordlist manages named vocabulary collections attached to
// reference dictionary entries.
package wordlist

import (
	"context"
	"database/sql"
	"strings"

	"github.com/japaniel/lexindex/pkg/db"
	"github.com/japaniel/lexindex/pkg/logger"
)

// Dictionary finds the reference entries spelled word.
type Dictionary interface {
	Lookup(ctx context.Context, ex db.Executor, word string) ([]db.DictionaryEntry, error)
}

// Engine adds words to wordlists and answers membership queries.
type Engine struct {
	conn       *sql.DB
	Dictionary Dictionary
	MinLength  int
	MaxLength  int
	Log        *logger.Logger
}

// NewEngine creates an Engine with the default length bounds.
func NewEngine(conn *sql.DB, dict Dictionary, log *logger.Logger) *Engine {
	return &Engine{
		conn:       conn,
		Dictionary: dict,
		MinLength:  DefaultMinLength,
		MaxLength:  DefaultMaxLength,
		Log:        logger.OrNop(log).With("component", "wordlist"),
	}
}

// AddResult summarizes an AddWords call. Matched counts requested words
// with at least one dictionary entry; Added and AlreadyMember count
// membership rows.
type AddResult struct {
	Wordlist      string      `json:"wordlist"`
	Requested     int         `json:"requested"`
	Matched       int         `json:"matched"`
	Added         int         `json:"added"`
	AlreadyMember int         `json:"already_member"`
	Unmatched     []string    `json:"unmatched,omitempty"`
	Rejected      []Rejection `json:"rejected,omitempty"`
	WordCount     int         `json:"word_count"`
}

// AddWords links every dictionary entry matching each word to the wordlist
// called name, creating the list when missing. A word with several parts of
// speech adds one membership per entry. Invalid and unmatched words are
// reported, never dropped silently.
func (e *Engine) AddWords(ctx context.Context, name string, words []string) (AddResult, error) {
	res := AddResult{Wordlist: strings.TrimSpace(name), Requested: len(words)}
	err := db.WithTx(ctx, e.conn, func(tx *sql.Tx) error {
		res = AddResult{Wordlist: res.Wordlist, Requested: len(words)}
		wl, _, err := db.CreateOrGetWordlist(ctx, tx, name, "")
		if err != nil {
			return err
		}
		for _, requested := range words {
			clean, rej := e.Validate(requested)
			if rej != nil {
				res.Rejected = append(res.Rejected, *rej)
				continue
			}
			entries, err := e.Dictionary.Lookup(ctx, tx, strings.ToLower(clean))
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				res.Unmatched = append(res.Unmatched, requested)
				continue
			}
			res.Matched++
			for _, entry := range entries {
				added, err := db.AddMembership(ctx, tx, db.Membership{
					DictionaryEntryID: entry.ID,
					WordlistID:        wl.ID,
					Confidence:        1.0,
					OriginalWord:      requested,
					MatchedWord:       entry.Word,
				})
				if err != nil {
					return err
				}
				if added {
					res.Added++
				} else {
					res.AlreadyMember++
				}
			}
		}
		res.WordCount, err = db.RefreshWordlistCount(ctx, tx, wl.ID)
		return err
	})
	if err != nil {
		return AddResult{Wordlist: res.Wordlist, Requested: len(words)}, err
	}
	logger.OrNop(e.Log).Info("words added to wordlist",
		"wordlist", res.Wordlist,
		"matched", res.Matched,
		"added", res.Added,
		"unmatched", len(res.Unmatched),
		"rejected", len(res.Rejected),
	)
	return res, nil
}

// Create makes an empty wordlist. created is false when it already existed.
func (e *Engine) Create(ctx context.Context, name, description string) (*db.Wordlist, bool, error) {
	return db.CreateOrGetWordlist(ctx, e.conn, name, description)
}

// Get returns the wordlist called name, or nil.
func (e *Engine) Get(ctx context.Context, name string) (*db.Wordlist, error) {
	return db.GetWordlistByName(ctx, e.conn, strings.TrimSpace(name))
}

// List returns every wordlist.
func (e *Engine) List(ctx context.Context) ([]db.Wordlist, error) {
	return db.ListWordlists(ctx, e.conn)
}

// Delete removes a wordlist and its memberships.
func (e *Engine) Delete(ctx context.Context, name string) (bool, error) {
	var deleted bool
	err := db.WithTx(ctx, e.conn, func(tx *sql.Tx) error {
		var err error
		deleted, err = db.DeleteWordlist(ctx, tx, strings.TrimSpace(name))
		return err
	})
	return deleted, err
}

// Members returns the entries of the wordlist called name, best rank first.
// An unknown wordlist has no members.
func (e *Engine) Members(ctx context.Context, name string) ([]db.Member, error) {
	wl, err := e.Get(ctx, name)
	if err != nil || wl == nil {
		return nil, err
	}
	return db.ListMembers(ctx, e.conn, wl.ID)
}

// Contains reports whether word belongs to the wordlist called name.
func (e *Engine) Contains(ctx context.Context, name, word string) (bool, error) {
	wl, err := e.Get(ctx, name)
	if err != nil || wl == nil {
		return false, err
	}
	return db.IsMember(ctx, e.conn, wl.ID, strings.ToLower(strings.TrimSpace(word)))
}
