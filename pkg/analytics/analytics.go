// Package analytics derives read-only views from the occurrence ledger:
// coverage, similarity, lemma variants and personal difficulty.
package analytics

import (
	"context"
	"database/sql"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/japaniel/lexindex/pkg/db"
	"github.com/japaniel/lexindex/pkg/lexeme"
	"github.com/japaniel/lexindex/pkg/logger"
)

// Engine answers analytics queries. Unknown documents, words and wordlists
// yield zero results rather than errors.
type Engine struct {
	conn     *sql.DB
	Resolver *lexeme.Resolver
	Log      *logger.Logger
}

// NewEngine creates an Engine. The resolver maps query words to lemmas.
func NewEngine(conn *sql.DB, resolver *lexeme.Resolver, log *logger.Logger) *Engine {
	return &Engine{
		conn:     conn,
		Resolver: resolver,
		Log:      logger.OrNop(log).With("component", "analytics"),
	}
}

// CoverageResult is the share of a wordlist observed in a document.
type CoverageResult struct {
	DocumentID  string `json:"document_id"`
	Wordlist    string `json:"wordlist"`
	MemberCount int    `json:"member_count"`
	Covered     int    `json:"covered"`
	// CoveragePct is Covered / MemberCount as a percentage in [0, 100].
	CoveragePct float64 `json:"coverage_pct"`
	// WeightedCoverage is the percentage of document tokens whose word
	// belongs to the wordlist.
	WeightedCoverage float64 `json:"weighted_coverage"`
	CoveredFrequency int     `json:"covered_frequency"`
	TotalTokens      int     `json:"total_tokens"`
}

// Coverage measures how much of the wordlist called name occurs in the
// document.
func (e *Engine) Coverage(ctx context.Context, documentID, name string) (CoverageResult, error) {
	res := CoverageResult{DocumentID: documentID, Wordlist: name}
	wl, err := db.GetWordlistByName(ctx, e.conn, name)
	if err != nil || wl == nil {
		return res, err
	}
	return e.coverage(ctx, documentID, *wl)
}

func (e *Engine) coverage(ctx context.Context, documentID string, wl db.Wordlist) (CoverageResult, error) {
	res := CoverageResult{DocumentID: documentID, Wordlist: wl.Name, MemberCount: wl.WordCount}
	var err error
	if res.Covered, res.CoveredFrequency, err = db.WordlistCoverage(ctx, e.conn, documentID, wl.ID); err != nil {
		return res, err
	}
	if res.TotalTokens, err = db.DocumentTokenTotal(ctx, e.conn, documentID); err != nil {
		return res, err
	}
	res.CoveragePct = clampPct(ratio(res.Covered, res.MemberCount))
	res.WeightedCoverage = clampPct(ratio(res.CoveredFrequency, res.TotalTokens))
	return res, nil
}

// CoverageAll measures the document against every wordlist, best covered
// first.
func (e *Engine) CoverageAll(ctx context.Context, documentID string) ([]CoverageResult, error) {
	lists, err := db.ListWordlists(ctx, e.conn)
	if err != nil {
		return nil, err
	}
	out := make([]CoverageResult, 0, len(lists))
	for _, wl := range lists {
		res, err := e.coverage(ctx, documentID, wl)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CoveragePct > out[j].CoveragePct })
	return out, nil
}

func ratio(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return 100 * float64(n) / float64(d)
}

func clampPct(p float64) float64 {
	return math.Max(0, math.Min(100, p))
}

// SimilarityResult compares the lemma vectors of two documents.
type SimilarityResult struct {
	DocumentA    string  `json:"document_a"`
	DocumentB    string  `json:"document_b"`
	Jaccard      float64 `json:"jaccard"`
	Cosine       float64 `json:"cosine"`
	SharedLemmas int     `json:"shared_lemmas"`
	UnionLemmas  int     `json:"union_lemmas"`
}

// Similarity loads the lemma to TF maps of both documents and compares them.
func (e *Engine) Similarity(ctx context.Context, a, b string) (SimilarityResult, error) {
	var tfA, tfB map[string]float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tfA, err = db.LemmaTF(gctx, e.conn, a)
		return err
	})
	g.Go(func() error {
		var err error
		tfB, err = db.LemmaTF(gctx, e.conn, b)
		return err
	})
	if err := g.Wait(); err != nil {
		return SimilarityResult{DocumentA: a, DocumentB: b}, err
	}

	shared, union := overlap(tfA, tfB)
	return SimilarityResult{
		DocumentA:    a,
		DocumentB:    b,
		Jaccard:      Jaccard(tfA, tfB),
		Cosine:       Cosine(tfA, tfB),
		SharedLemmas: shared,
		UnionLemmas:  union,
	}, nil
}

func overlap(a, b map[string]float64) (shared, union int) {
	for k := range a {
		if _, ok := b[k]; ok {
			shared++
		}
	}
	return shared, len(a) + len(b) - shared
}

// Jaccard is |A ∩ B| / |A ∪ B| over the keys of a and b, 0 when both are
// empty.
func Jaccard(a, b map[string]float64) float64 {
	shared, union := overlap(a, b)
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// Cosine is the cosine of the angle between a and b, 0 when either has zero
// norm.
func Cosine(a, b map[string]float64) float64 {
	var dot, na, nb float64
	for k, va := range a {
		na += va * va
		dot += va * b[k]
	}
	for _, vb := range b {
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
