// Package personal tracks the learner's mastery status of stored words.
package personal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/japaniel/lexindex/pkg/db"
	"github.com/japaniel/lexindex/pkg/lexeme"
	"github.com/japaniel/lexindex/pkg/logger"
)

// Manager reads and writes personal status on words.
type Manager struct {
	conn     *sql.DB
	Resolver *lexeme.Resolver
	Log      *logger.Logger
}

// NewManager creates a Manager. The resolver finds words by lemma and
// creates missing ones.
func NewManager(conn *sql.DB, resolver *lexeme.Resolver, log *logger.Logger) *Manager {
	return &Manager{
		conn:     conn,
		Resolver: resolver,
		Log:      logger.OrNop(log).With("component", "personal"),
	}
}

// ParseStatus reads a status label, ignoring case and surrounding space.
func ParseStatus(s string) (db.PersonalStatus, error) {
	st := db.PersonalStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", db.NewValidationError("status", fmt.Sprintf("unknown status %q", s))
	}
	return st, nil
}

// SetResult reports the word a status was written to.
type SetResult struct {
	Word    string            `json:"word"`
	WordID  string            `json:"word_id"`
	Lemma   string            `json:"lemma"`
	Status  db.PersonalStatus `json:"status"`
	Created bool              `json:"created"`
}

// SetStatus sets the status of word. A word that was never observed is
// created when create is set, otherwise ErrNotFound is returned.
func (m *Manager) SetStatus(ctx context.Context, word string, status db.PersonalStatus, create bool) (SetResult, error) {
	var res SetResult
	err := db.WithTx(ctx, m.conn, func(tx *sql.Tx) error {
		var err error
		res, err = m.set(ctx, tx, Item{Word: word, Status: status}, create)
		return err
	})
	if err != nil {
		return SetResult{}, err
	}
	logger.OrNop(m.Log).Info("personal status set", "word", res.Word, "status", res.Status, "created", res.Created)
	return res, nil
}

// SetNotes replaces the notes of word and leaves its status untouched.
func (m *Manager) SetNotes(ctx context.Context, word, notes string) error {
	return db.WithTx(ctx, m.conn, func(tx *sql.Tx) error {
		w, err := m.find(ctx, tx, word)
		if err != nil {
			return err
		}
		if w == nil {
			return fmt.Errorf("word %q: %w", word, db.ErrNotFound)
		}
		return db.SetPersonalStatus(ctx, tx, w.ID, w.PersonalStatus, &notes)
	})
}

// Status returns the stored word for word, or nil.
func (m *Manager) Status(ctx context.Context, word string) (*db.Word, error) {
	return m.find(ctx, m.conn, word)
}

func (m *Manager) find(ctx context.Context, ex db.Executor, word string) (*db.Word, error) {
	normalized := lexeme.Normalize(word)
	if normalized == "" {
		return nil, db.NewValidationError("word", fmt.Sprintf("%q has no letters or digits", word))
	}
	w, err := db.GetWordByLemma(ctx, ex, m.Resolver.Lemma(normalized))
	if err != nil || w != nil {
		return w, err
	}
	return db.FindWord(ctx, ex, normalized)
}

func (m *Manager) set(ctx context.Context, ex db.Executor, it Item, create bool) (SetResult, error) {
	res := SetResult{Word: strings.TrimSpace(it.Word), Status: it.Status}
	if !it.Status.Valid() {
		return res, db.NewValidationError("status", fmt.Sprintf("unknown status %q", it.Status))
	}
	w, err := m.find(ctx, ex, it.Word)
	if err != nil {
		return res, err
	}
	switch {
	case w != nil:
		res.WordID, res.Lemma = w.ID, w.Lemma
	case create:
		r, err := m.Resolver.Resolve(ctx, ex, it.Word, nil)
		if err != nil {
			return res, err
		}
		res.WordID, res.Lemma, res.Created = r.WordID, r.Lemma, r.Created
	default:
		return res, fmt.Errorf("word %q: %w", it.Word, db.ErrNotFound)
	}
	var notes *string
	if it.Notes != "" {
		notes = &it.Notes
	}
	return res, db.SetPersonalStatus(ctx, ex, res.WordID, it.Status, notes)
}

// Item is one requested status change.
type Item struct {
	Word   string            `json:"word"`
	Status db.PersonalStatus `json:"status"`
	Notes  string            `json:"notes,omitempty"`
}

// Failure is an item that could not be applied.
type Failure struct {
	Line   int    `json:"line,omitempty"`
	Word   string `json:"word"`
	Reason string `json:"reason"`
}

// BatchResult summarizes a batch of status changes.
type BatchResult struct {
	Requested int       `json:"requested"`
	Updated   int       `json:"updated"`
	Created   int       `json:"created"`
	Failed    []Failure `json:"failed,omitempty"`
}

// BatchSetStatus applies items in one transaction. Invalid items and
// unknown words are reported per item and do not stop the others; a storage
// error rolls the whole batch back.
func (m *Manager) BatchSetStatus(ctx context.Context, items []Item, create bool) (BatchResult, error) {
	var res BatchResult
	err := db.WithTx(ctx, m.conn, func(tx *sql.Tx) error {
		res = BatchResult{Requested: len(items)}
		for _, it := range items {
			r, err := m.set(ctx, tx, it, create)
			switch {
			case err == nil:
				if r.Created {
					res.Created++
				} else {
					res.Updated++
				}
			case errors.Is(err, db.ErrValidation), errors.Is(err, db.ErrNotFound):
				res.Failed = append(res.Failed, Failure{Word: it.Word, Reason: err.Error()})
			default:
				return fmt.Errorf("set status of %q: %w", it.Word, err)
			}
		}
		return nil
	})
	if err != nil {
		return BatchResult{Requested: len(items)}, err
	}
	logger.OrNop(m.Log).Info("personal statuses set",
		"requested", res.Requested,
		"updated", res.Updated,
		"created", res.Created,
		"failed", len(res.Failed),
	)
	return res, nil
}

// Statistics is the distribution of personal status over stored words.
type Statistics struct {
	Total             int                           `json:"total"`
	ByStatus          map[db.PersonalStatus]int     `json:"by_status"`
	Percentages       map[db.PersonalStatus]float64 `json:"percentages"`
	DictionaryMatched int                           `json:"dictionary_matched"`
	// LearningProgress is the percentage of words known or mastered.
	LearningProgress float64 `json:"learning_progress"`
}

// Statistics counts words per status.
func (m *Manager) Statistics(ctx context.Context) (Statistics, error) {
	byStatus, err := db.CountWordsByStatus(ctx, m.conn)
	if err != nil {
		return Statistics{}, err
	}
	states, err := db.CountWordsByMatchState(ctx, m.conn)
	if err != nil {
		return Statistics{}, err
	}
	st := Statistics{
		ByStatus:          byStatus,
		Percentages:       make(map[db.PersonalStatus]float64, len(byStatus)),
		DictionaryMatched: states[db.MatchFound],
	}
	for _, n := range byStatus {
		st.Total += n
	}
	for s, n := range byStatus {
		st.Percentages[s] = percent(n, st.Total)
	}
	st.LearningProgress = percent(byStatus[db.PersonalKnow]+byStatus[db.PersonalMaster], st.Total)
	return st, nil
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(n) / float64(total)
}

// WordsByStatus lists words in status, most common dictionary rank first.
// limit 0 lists them all.
func (m *Manager) WordsByStatus(ctx context.Context, status db.PersonalStatus, limit int) ([]db.Word, error) {
	if !status.Valid() {
		return nil, db.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	f := db.WordFilter{Status: status, ByRank: true}
	if limit > 0 {
		f.Limit = uint64(limit)
	}
	return db.ListWords(ctx, m.conn, f)
}
