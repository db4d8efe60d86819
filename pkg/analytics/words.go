package analytics

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/japaniel/lexindex/pkg/db"
	"github.com/japaniel/lexindex/pkg/lexeme"
)

// VariantResult lists the observed spellings of the word a query resolves to.
type VariantResult struct {
	Query       string        `json:"query"`
	Found       bool          `json:"found"`
	WordID      string        `json:"word_id,omitempty"`
	Lemma       string        `json:"lemma,omitempty"`
	SurfaceForm string        `json:"surface_form,omitempty"`
	Forms       []db.WordForm `json:"forms,omitempty"`
	// Forms, Frequency and Documents are limited to one document when one
	// is given.
	Frequency int `json:"frequency"`
	Documents int `json:"documents"`
}

// Variants reports the spellings collapsed onto the word for query.
func (e *Engine) Variants(ctx context.Context, query, documentID string) (VariantResult, error) {
	res := VariantResult{Query: query}
	normalized := lexeme.Normalize(query)
	if normalized == "" {
		return res, nil
	}
	w, err := db.GetWordByLemma(ctx, e.conn, e.Resolver.Lemma(normalized))
	if err == nil && w == nil {
		w, err = db.FindWord(ctx, e.conn, normalized)
	}
	if err != nil || w == nil {
		return res, err
	}

	res.Found = true
	res.WordID, res.Lemma, res.SurfaceForm = w.ID, w.Lemma, w.SurfaceForm
	if res.Forms, err = db.ListWordForms(ctx, e.conn, w.ID, documentID); err != nil {
		return res, err
	}
	if res.Frequency, res.Documents, err = db.WordFrequency(ctx, e.conn, w.ID, documentID); err != nil {
		return res, err
	}
	return res, nil
}

// LemmaStatsResult groups ledger words by lemma.
type LemmaStatsResult struct {
	DocumentID string `json:"document_id,omitempty"`
	Words      int    `json:"words"`
	// MultiVariant counts words observed under more than one spelling.
	MultiVariant int               `json:"multi_variant"`
	Frequency    int               `json:"frequency"`
	Lemmas       []db.LemmaVariant `json:"lemmas"`
}

// LemmaStats aggregates variants and frequency per lemma, for one document
// or across the ledger when documentID is empty.
func (e *Engine) LemmaStats(ctx context.Context, documentID string) (LemmaStatsResult, error) {
	res := LemmaStatsResult{DocumentID: documentID}
	lemmas, err := db.ListLemmaVariants(ctx, e.conn, documentID)
	if err != nil {
		return res, err
	}
	res.Lemmas = lemmas
	res.Words = len(lemmas)
	for _, l := range lemmas {
		res.Frequency += l.Frequency
		if l.Variants > 1 {
			res.MultiVariant++
		}
	}
	return res, nil
}

// Recommendation thresholds.
const (
	RecommendMinFrequency = 3
	RecommendLimit        = 20
)

// StatusBucket is the share of a document held by one personal status.
type StatusBucket struct {
	Words     int `json:"words"`
	Frequency int `json:"frequency"`
}

// RecommendedWord is a frequent word the learner has not mastered.
type RecommendedWord struct {
	Lemma       string            `json:"lemma"`
	SurfaceForm string            `json:"surface_form"`
	Frequency   int               `json:"frequency"`
	Status      db.PersonalStatus `json:"status"`
	Rank        *int              `json:"rank,omitempty"`
	Difficulty  *int              `json:"difficulty,omitempty"`
}

// DifficultyResult scores a document against the learner's statuses.
type DifficultyResult struct {
	DocumentID     string                              `json:"document_id"`
	TotalFrequency int                                 `json:"total_frequency"`
	ByStatus       map[db.PersonalStatus]*StatusBucket `json:"by_status"`
	// Score is the percentage of token mass in new or learn words.
	Score       float64           `json:"score"`
	Recommended []RecommendedWord `json:"recommended"`
}

// Difficulty buckets the document's occurrences by personal status.
func (e *Engine) Difficulty(ctx context.Context, documentID string) (DifficultyResult, error) {
	res := DifficultyResult{
		DocumentID:  documentID,
		ByStatus:    make(map[db.PersonalStatus]*StatusBucket, len(db.PersonalStatuses)),
		Recommended: []RecommendedWord{},
	}
	for _, s := range db.PersonalStatuses {
		res.ByStatus[s] = &StatusBucket{}
	}
	words, err := db.ListDocumentWords(ctx, e.conn, documentID)
	if err != nil {
		return res, err
	}

	var unfamiliar int
	for _, w := range words {
		b, ok := res.ByStatus[w.PersonalStatus]
		if !ok {
			b = &StatusBucket{}
			res.ByStatus[w.PersonalStatus] = b
		}
		b.Words++
		b.Frequency += w.Frequency
		res.TotalFrequency += w.Frequency
		if !learning(w.PersonalStatus) {
			continue
		}
		unfamiliar += w.Frequency
		// words arrive most frequent first.
		if w.Frequency >= RecommendMinFrequency && len(res.Recommended) < RecommendLimit {
			res.Recommended = append(res.Recommended, RecommendedWord{
				Lemma:       w.Lemma,
				SurfaceForm: w.SurfaceForm,
				Frequency:   w.Frequency,
				Status:      w.PersonalStatus,
				Rank:        w.Rank,
				Difficulty:  w.Difficulty,
			})
		}
	}
	res.Score = ratio(unfamiliar, res.TotalFrequency)
	return res, nil
}

func learning(s db.PersonalStatus) bool {
	return s == db.PersonalNew || s == db.PersonalLearn
}

// POSDistribution is the part of speech spread of stored words.
type POSDistribution struct {
	Total       int                `json:"total"`
	Counts      map[string]int     `json:"counts"`
	Percentages map[string]float64 `json:"percentages"`
}

// POSDistribution groups stored words by the pos_type feature.
func (e *Engine) POSDistribution(ctx context.Context) (POSDistribution, error) {
	counts, err := db.CountWordsByFeature(ctx, e.conn, "pos_type")
	if err != nil {
		return POSDistribution{}, err
	}
	res := POSDistribution{Counts: make(map[string]int, len(counts)), Percentages: make(map[string]float64, len(counts))}
	for k, n := range counts {
		k = strings.ToLower(k)
		res.Counts[k] += n
		res.Total += n
	}
	for k, n := range res.Counts {
		res.Percentages[k] = ratio(n, res.Total)
	}
	return res, nil
}

// DatabaseStats summarizes the whole store.
type DatabaseStats struct {
	Tables      db.TableCounts            `json:"tables"`
	Dictionary  db.DictionaryStats        `json:"dictionary"`
	MatchStates map[db.MatchState]int     `json:"match_states"`
	Statuses    map[db.PersonalStatus]int `json:"personal_statuses"`
	// MatchRate is the percentage of words linked to a dictionary entry.
	MatchRate float64 `json:"match_rate"`
}

// DatabaseStats collects table counts, dictionary statistics and word
// states concurrently.
func (e *Engine) DatabaseStats(ctx context.Context) (DatabaseStats, error) {
	var st DatabaseStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.Tables, err = db.CountTables(gctx, e.conn)
		return err
	})
	g.Go(func() (err error) {
		st.Dictionary, err = db.GetDictionaryStats(gctx, e.conn)
		return err
	})
	g.Go(func() (err error) {
		st.MatchStates, err = db.CountWordsByMatchState(gctx, e.conn)
		return err
	})
	g.Go(func() (err error) {
		st.Statuses, err = db.CountWordsByStatus(gctx, e.conn)
		return err
	})
	if err := g.Wait(); err != nil {
		return DatabaseStats{}, err
	}
	var words int
	for _, n := range st.MatchStates {
		words += n
	}
	st.MatchRate = ratio(st.MatchStates[db.MatchFound], words)
	return st, nil
}
