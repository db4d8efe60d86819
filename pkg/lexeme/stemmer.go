package lexeme

import (
	"fmt"
	"strings"

	"github.com/kljensen/snowball/english"
)

// Stemmer maps a normalized word to its lemma. Implementations must be
// deterministic.
type Stemmer interface {
	Stem(word string) (string, error)
}

// StemFunc adapts a function to Stemmer.
type StemFunc func(string) (string, error)

func (f StemFunc) Stem(word string) (string, error) { return f(word) }

// SuffixStemmer is the rule based fallback lemmatizer.
type SuffixStemmer struct{}

// Stem implements Stemmer.
func (SuffixStemmer) Stem(word string) (string, error) {
	return SuffixLemma(word), nil
}

// doubledFinals are consonants doubled before -ing (running, stopping).
const doubledFinals = "bdfglmnprt"

// SuffixLemma strips common English inflections: ies->y, es, s (not ss),
// ing with doubled consonant undo, and ed.
func SuffixLemma(word string) string {
	w := strings.ToLower(word)
	switch {
	case strings.HasSuffix(w, "ies") && len(w) > 4:
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "es") && len(w) > 3:
		return w[:len(w)-2]
	case strings.HasSuffix(w, "s") && len(w) > 2 && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}

	switch {
	case strings.HasSuffix(w, "ing") && len(w) > 4:
		base := w[:len(w)-3]
		n := len(base)
		if n > 2 && base[n-1] == base[n-2] && strings.IndexByte(doubledFinals, base[n-1]) >= 0 {
			return base[:n-1]
		}
		return base
	case strings.HasSuffix(w, "ed") && len(w) > 3:
		return w[:len(w)-2]
	}
	return w
}

// stemCorrections repairs common over-stemming.
var stemCorrections = map[string]string{
	"studi":   "study",
	"fli":     "fly",
	"happi":   "happy",
	"univers": "university",
}

// irregularForms maps irregular inflections to their base form before
// stemming, which cannot recover them.
var irregularForms = map[string]string{
	"ran": "run", "went": "go", "gone": "go", "was": "be", "were": "be", "been": "be", "am": "be", "is": "be", "are": "be",
	"had": "have", "has": "have", "did": "do", "done": "do", "does": "do",
	"saw": "see", "seen": "see", "took": "take", "taken": "take", "came": "come", "gave": "give", "given": "give",
	"got": "get", "gotten": "get", "made": "make", "knew": "know", "known": "know", "thought": "think",
	"told": "tell", "found": "find", "left": "leave", "felt": "feel", "brought": "bring", "bought": "buy",
	"began": "begin", "begun": "begin", "wrote": "write", "written": "write", "spoke": "speak", "spoken": "speak",
	"ate": "eat", "eaten": "eat", "drove": "drive", "driven": "drive", "flew": "fly", "flown": "fly",
	"swam": "swim", "swum": "swim", "sang": "sing", "sung": "sing", "drank": "drink", "drunk": "drink",
	"fell": "fall", "fallen": "fall", "held": "hold", "kept": "keep", "slept": "sleep", "met": "meet",
	"paid": "pay", "said": "say", "sold": "sell", "sent": "send", "spent": "spend", "stood": "stand",
	"taught": "teach", "caught": "catch", "fought": "fight", "won": "win", "wore": "wear", "worn": "wear",
	"children": "child", "men": "man", "women": "woman", "feet": "foot", "teeth": "tooth", "mice": "mouse",
	"geese": "goose", "people": "person", "better": "good", "best": "good", "worse": "bad", "worst": "bad",
}

// SnowballStemmer lemmatizes with an irregular form table, the Snowball
// English stemmer and a correction table.
type SnowballStemmer struct{}

// Stem implements Stemmer. Snowball panics are reported as errors so the
// resolver can fall back.
func (SnowballStemmer) Stem(word string) (lemma string, err error) {
	w := strings.ToLower(word)
	if base, ok := irregularForms[w]; ok {
		return base, nil
	}
	defer func() {
		if r := recover(); r != nil {
			lemma, err = "", fmt.Errorf("snowball: %v", r)
		}
	}()
	lemma = english.Stem(w, false)
	if fixed, ok := stemCorrections[lemma]; ok {
		lemma = fixed
	}
	return lemma, nil
}

// NewStemmer returns the stemmer named by kind: snowball or suffix.
func NewStemmer(kind string) (Stemmer, error) {
	switch strings.ToLower(kind) {
	case "snowball", "":
		return SnowballStemmer{}, nil
	case "suffix":
		return SuffixStemmer{}, nil
	default:
		return nil, fmt.Errorf("unknown stemmer %q", kind)
	}
}
