// Package features computes linguistic features (part of speech and
// morphology) for newly observed words.
package features

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Morphology describes affixes detected on a word.
type Morphology struct {
	Prefix        string `json:"prefix,omitempty"`
	Suffix        string `json:"suffix,omitempty"`
	SuffixMeaning string `json:"suffix_meaning,omitempty"`
	RootLength    int    `json:"root_length"`
	Complexity    string `json:"complexity"`
}

// Features is the linguistic record stored on a Word.
type Features struct {
	POSTag         string     `json:"pos_tag"`
	POSType        string     `json:"pos_type"`
	POSSubtype     string     `json:"pos_subtype"`
	POSDescription string     `json:"pos_description"`
	WordLength     int        `json:"word_length"`
	HasPrefix      bool       `json:"has_prefix"`
	HasSuffix      bool       `json:"has_suffix"`
	Capitalized    bool       `json:"capitalized"`
	AllCaps        bool       `json:"all_caps"`
	Reading        string     `json:"reading,omitempty"`
	Morphology     Morphology `json:"morphology"`
	Provider       string     `json:"provider"`
}

// JSON encodes f for storage.
func (f Features) JSON() string {
	b, err := json.Marshal(f)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Provider analyzes a word given its surrounding tokens. Implementations
// may fail; callers degrade to Unknown.
type Provider interface {
	Analyze(ctx context.Context, word string, context []string) (Features, error)
	Name() string
}

// Unknown is the degraded record used when no provider could analyze word.
func Unknown(word string) Features {
	f := surfaceFeatures(word)
	f.POSTag = "UNKNOWN"
	f.POSType = "unknown"
	f.POSSubtype = "unknown"
	f.POSDescription = "unavailable"
	f.Morphology = Morphology{RootLength: f.WordLength, Complexity: "simple"}
	f.Provider = "unknown"
	return f
}

// Noop always returns Unknown. It stands in when no analyzer is available.
type Noop struct{}

func (Noop) Analyze(_ context.Context, word string, _ []string) (Features, error) {
	return Unknown(word), nil
}

func (Noop) Name() string { return "unknown" }

func surfaceFeatures(word string) Features {
	f := Features{
		WordLength: utf8.RuneCountInString(word),
		HasPrefix:  detectPrefix(word),
		HasSuffix:  detectSuffix(word),
	}
	if r, _ := utf8.DecodeRuneInString(word); r != utf8.RuneError {
		f.Capitalized = unicode.IsUpper(r)
	}
	f.AllCaps = word != "" && strings.ToUpper(word) == word && strings.ToLower(word) != word
	return f
}

var (
	morphPrefixes = []string{"un", "re", "pre", "dis", "mis", "over", "under", "out"}
	flagPrefixes  = []string{"un", "re", "pre", "dis", "mis", "over", "under", "out", "in", "im"}
	flagSuffixes  = []string{"ing", "ed", "er", "est", "ly", "tion", "ness", "ment", "ful", "less"}
)

type suffixRule struct {
	suffix, meaning string
}

// morphSuffixes is checked in order; the first match wins.
var morphSuffixes = []suffixRule{
	{"ing", "progressive/gerund"},
	{"ed", "past/past_participle"},
	{"er", "comparative/agent"},
	{"est", "superlative"},
	{"ly", "adverbial"},
	{"tion", "nominalization"},
	{"sion", "nominalization"},
	{"ness", "nominalization"},
	{"ment", "nominalization"},
	{"ful", "adjectival"},
	{"less", "adjectival"},
	{"s", "plural/3rd_person"},
	{"es", "plural/3rd_person"},
}

// affixed reports whether w carries affix with at least three letters left over.
func affixed(w, affix string, prefix bool) bool {
	if len(w) <= len(affix)+2 {
		return false
	}
	if prefix {
		return strings.HasPrefix(w, affix)
	}
	return strings.HasSuffix(w, affix)
}

func detectPrefix(word string) bool {
	w := strings.ToLower(word)
	for _, p := range flagPrefixes {
		if affixed(w, p, true) {
			return true
		}
	}
	return false
}

func detectSuffix(word string) bool {
	w := strings.ToLower(word)
	for _, s := range flagSuffixes {
		if affixed(w, s, false) {
			return true
		}
	}
	return false
}

// AnalyzeMorphology detects the first known prefix and suffix of word.
func AnalyzeMorphology(word string) Morphology {
	w := strings.ToLower(word)
	m := Morphology{RootLength: utf8.RuneCountInString(w), Complexity: "simple"}
	for _, p := range morphPrefixes {
		if affixed(w, p, true) {
			m.Prefix = p
			m.RootLength -= len(p)
			m.Complexity = "prefixed"
			break
		}
	}
	for _, s := range morphSuffixes {
		if affixed(w, s.suffix, false) {
			m.Suffix = s.suffix
			m.SuffixMeaning = s.meaning
			if m.Prefix != "" {
				m.Complexity = "complex"
			} else {
				m.Complexity = "suffixed"
			}
			break
		}
	}
	return m
}
