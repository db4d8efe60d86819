// Package lexeme canonicalizes observed surface forms to lemma keyed Word
// records.
package lexeme

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/japaniel/lexindex/pkg/db"
	"github.com/japaniel/lexindex/pkg/dictionary"
	"github.com/japaniel/lexindex/pkg/features"
	"github.com/japaniel/lexindex/pkg/logger"
)

// Matcher finds the dictionary entry for a new word.
type Matcher interface {
	Match(ctx context.Context, ex db.Executor, surface, lemma string) (dictionary.Match, error)
}

// DefaultWindow is the number of context tokens taken on each side of a word.
const DefaultWindow = 3

// Resolver maps surface forms to Word ids. All surface forms sharing a lemma
// resolve to the same Word.
type Resolver struct {
	Stemmer  Stemmer
	Features features.Provider
	Matcher  Matcher
	Log      *logger.Logger
	// Window is the context half width handed to the feature provider.
	Window int
}

// NewResolver creates a Resolver. A nil stemmer falls back to SuffixStemmer
// and a nil provider to features.Noop.
func NewResolver(stemmer Stemmer, provider features.Provider, matcher Matcher, log *logger.Logger) *Resolver {
	if stemmer == nil {
		stemmer = SuffixStemmer{}
	}
	if provider == nil {
		provider = features.Noop{}
	}
	return &Resolver{
		Stemmer:  stemmer,
		Features: provider,
		Matcher:  matcher,
		Log:      logger.OrNop(log).With("component", "resolver"),
		Window:   DefaultWindow,
	}
}

// Resolution is the outcome of resolving one surface form.
type Resolution struct {
	WordID         string
	Lemma          string
	Normalized     string
	Created        bool
	SurfaceUpdated bool
	// Match is set only when the word was created by this call.
	Match *dictionary.Match
}

// Lemma returns the lemma of a normalized word. Stemmer failures and empty
// results fall back to the suffix rules; Lemma never fails.
func (r *Resolver) Lemma(normalized string) string {
	if normalized == "" {
		return ""
	}
	lemma, err := r.Stemmer.Stem(normalized)
	if err != nil {
		r.Log.Warn("stemmer failed, using suffix rules", "word", normalized, "error", err)
		lemma = SuffixLemma(normalized)
	}
	lemma = Normalize(lemma)
	if lemma == "" {
		return normalized
	}
	return lemma
}

// Resolve returns the Word id for surface, creating the Word on first sight
// of its lemma. contextTokens, when given, feed the feature provider.
// ex should be the caller's transaction when resolution is part of a larger
// write. Observation counts are not touched; the ledger owns them.
func (r *Resolver) Resolve(ctx context.Context, ex db.Executor, surface string, contextTokens []string) (Resolution, error) {
	surface = strings.TrimSpace(surface)
	normalized := Normalize(surface)
	if normalized == "" {
		return Resolution{}, db.NewValidationError("surface_form", fmt.Sprintf("%q has no letters or digits", surface))
	}
	lemma := r.Lemma(normalized)
	res := Resolution{Lemma: lemma, Normalized: normalized}

	w, err := db.GetWordByLemma(ctx, ex, lemma)
	if err != nil {
		return res, err
	}
	if w == nil {
		created, err := r.create(ctx, ex, surface, normalized, lemma, contextTokens)
		switch {
		case err == nil:
			res.WordID = created.ID
			res.Created = true
		case db.IsRetryable(err):
			// Lost an insert race on the lemma; the winner's row is reused.
			w, err = db.GetWordByLemma(ctx, ex, lemma)
			if err != nil {
				return res, err
			}
			if w == nil {
				return res, fmt.Errorf("word %q vanished after conflict: %w", lemma, db.ErrConflict)
			}
		default:
			return res, err
		}
	}

	if res.Created {
		m := r.match(ctx, ex, res.WordID, normalized, lemma)
		res.Match = m
	} else {
		res.WordID = w.ID
		if preferSurface(surface, w.SurfaceForm, lemma) {
			if err := db.UpdateSurfaceForm(ctx, ex, w.ID, surface); err != nil {
				return res, err
			}
			res.SurfaceUpdated = true
		}
	}
	return res, nil
}

func (r *Resolver) create(ctx context.Context, ex db.Executor, surface, normalized, lemma string, contextTokens []string) (*db.Word, error) {
	feats, err := r.Features.Analyze(ctx, surface, Window(contextTokens, normalized, r.Window))
	if err != nil {
		r.Log.Warn("feature provider failed, storing unknown features", "word", surface, "error", err)
		feats = features.Unknown(surface)
	}
	return db.InsertWord(ctx, ex, db.Word{
		SurfaceForm:    surface,
		Lemma:          lemma,
		NormalizedForm: normalized,
		Features:       feats.JSON(),
	})
}

// match runs the one-shot dictionary match for a new word. A matcher error
// leaves the word unmatched for remediation.
func (r *Resolver) match(ctx context.Context, ex db.Executor, wordID, normalized, lemma string) *dictionary.Match {
	if r.Matcher == nil {
		return nil
	}
	m, err := r.Matcher.Match(ctx, ex, normalized, lemma)
	if err == nil {
		err = dictionary.Attach(ctx, ex, wordID, m)
	}
	if err != nil {
		r.Log.Warn("dictionary match failed, word left unmatched", "lemma", lemma, "error", err)
		return nil
	}
	return &m
}

// preferSurface reports whether candidate should replace the stored display
// form: it spells the lemma, the stored form does not, and it is no longer.
func preferSurface(candidate, current, lemma string) bool {
	return strings.ToLower(candidate) == lemma &&
		strings.ToLower(current) != lemma &&
		utf8.RuneCountInString(candidate) <= utf8.RuneCountInString(current)
}

// Window returns up to half tokens on each side of the first token that
// normalizes to word, or the leading 2*half+1 tokens when word is absent.
func Window(tokens []string, word string, half int) []string {
	if len(tokens) == 0 {
		return nil
	}
	if half < 0 {
		half = 0
	}
	for i, t := range tokens {
		if Normalize(t) != word {
			continue
		}
		lo, hi := i-half, i+half+1
		if lo < 0 {
			lo = 0
		}
		if hi > len(tokens) {
			hi = len(tokens)
		}
		return tokens[lo:hi]
	}
	if n := 2*half + 1; n < len(tokens) {
		return tokens[:n]
	}
	return tokens
}
