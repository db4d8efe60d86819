package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/japaniel/lexindex/pkg/db"
	"github.com/japaniel/lexindex/pkg/lexeme"
	"github.com/japaniel/lexindex/pkg/logger"
)

// Observation is the raw word data of one document.
type Observation struct {
	Frequencies map[string]int
	// Positions are optional token offsets per surface form.
	Positions map[string][]int
	// Context is the document token sequence new words are analyzed in.
	Context []string
}

// Rejection is a surface form the ledger refused.
type Rejection struct {
	Surface string `json:"surface"`
	Reason  string `json:"reason"`
}

// RecordResult summarizes a Record call.
type RecordResult struct {
	DocumentID     string      `json:"document_id"`
	TotalTokens    int         `json:"total_tokens"`
	UniqueWords    int         `json:"unique_words"`
	NewWords       int         `json:"new_words"`
	SurfaceUpdates int         `json:"surface_updates"`
	Rejected       []Rejection `json:"rejected,omitempty"`
}

// Ledger persists per document word frequencies.
type Ledger struct {
	conn     *sql.DB
	Resolver *lexeme.Resolver
	Log      *logger.Logger
}

// NewLedger creates a Ledger writing through resolver.
func NewLedger(conn *sql.DB, resolver *lexeme.Resolver, log *logger.Logger) *Ledger {
	return &Ledger{conn: conn, Resolver: resolver, Log: logger.OrNop(log).With("component", "ledger")}
}

type tally struct {
	freq      int
	positions map[int]struct{}
	forms     map[string]int
}

// Record resolves every surface form of obs and replaces the occurrence and
// word form rows of the document in one transaction, so recording the same
// document again leaves the ledger unchanged. Surface forms sharing a lemma are
// summed onto one row. Malformed surface forms are rejected without aborting
// the call. Documents in the failed state are refused.
func (l *Ledger) Record(ctx context.Context, documentID string, obs Observation) (RecordResult, error) {
	res := RecordResult{DocumentID: documentID}
	err := db.WithTx(ctx, l.conn, func(tx *sql.Tx) error {
		res = RecordResult{DocumentID: documentID}
		doc, err := db.GetDocument(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("document %s: %w", documentID, db.ErrNotFound)
		}
		if doc.Status == db.StatusFailed {
			return fmt.Errorf("document %s: %w", documentID, db.ErrDocumentFailed)
		}

		surfaces := make([]string, 0, len(obs.Frequencies))
		for s := range obs.Frequencies {
			surfaces = append(surfaces, s)
		}
		sort.Strings(surfaces)

		byWord := make(map[string]*tally)
		var order []string
		for _, surface := range surfaces {
			freq := obs.Frequencies[surface]
			if freq <= 0 {
				res.Rejected = append(res.Rejected, Rejection{Surface: surface, Reason: "frequency must be positive"})
				continue
			}
			r, err := l.Resolver.Resolve(ctx, tx, surface, obs.Context)
			if errors.Is(err, db.ErrValidation) {
				res.Rejected = append(res.Rejected, Rejection{Surface: surface, Reason: err.Error()})
				continue
			}
			if err != nil {
				return fmt.Errorf("resolve %q: %w", surface, err)
			}
			if r.Created {
				res.NewWords++
			}
			if r.SurfaceUpdated {
				res.SurfaceUpdates++
			}
			t, ok := byWord[r.WordID]
			if !ok {
				t = &tally{positions: make(map[int]struct{}), forms: make(map[string]int)}
				byWord[r.WordID] = t
				order = append(order, r.WordID)
			}
			t.freq += freq
			t.forms[strings.TrimSpace(surface)] += freq
			for _, p := range obs.Positions[surface] {
				if p >= 0 {
					t.positions[p] = struct{}{}
				}
			}
			res.TotalTokens += freq
		}

		occ := make([]db.Occurrence, 0, len(order))
		var forms []db.WordForm
		for _, wordID := range order {
			t := byWord[wordID]
			for surface, n := range t.forms {
				forms = append(forms, db.WordForm{WordID: wordID, SurfaceForm: surface, Observations: n})
			}
			o := db.Occurrence{
				DocumentID: documentID,
				WordID:     wordID,
				Frequency:  t.freq,
				TF:         float64(t.freq) / float64(res.TotalTokens),
				Positions:  sortedPositions(t.positions),
			}
			if n := len(o.Positions); n > 0 {
				first, last := o.Positions[0], o.Positions[n-1]
				o.FirstPosition, o.LastPosition = &first, &last
			}
			occ = append(occ, o)
		}
		res.UniqueWords = len(occ)
		if err := db.ReplaceOccurrences(ctx, tx, documentID, occ); err != nil {
			return err
		}
		return db.ReplaceWordForms(ctx, tx, documentID, forms)
	})
	if err != nil {
		return RecordResult{DocumentID: documentID}, err
	}
	if len(res.Rejected) > 0 {
		logger.OrNop(l.Log).Warn("surface forms rejected", "document", documentID, "rejected", len(res.Rejected))
	}
	return res, nil
}

func sortedPositions(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
