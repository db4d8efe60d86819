package features

import (
	"context"
	"fmt"

	"github.com/japaniel/lexindex/pkg/tokenize"
)

// ipaTypes maps IPA primary parts of speech to coarse types.
var ipaTypes = map[string]string{
	"名詞":   "noun",
	"動詞":   "verb",
	"形容詞":  "adjective",
	"形容動詞": "adjective",
	"副詞":   "adverb",
	"連体詞":  "determiner",
	"接続詞":  "conjunction",
	"感動詞":  "interjection",
	"助詞":   "particle",
	"助動詞":  "auxiliary",
	"接頭詞":  "prefix",
	"記号":   "symbol",
	"フィラー": "filler",
}

// Kagome tags Japanese words with the IPA dictionary.
type Kagome struct {
	Analyzer *tokenize.Japanese
}

func (Kagome) Name() string { return "kagome" }

// Analyze implements Provider.
func (k Kagome) Analyze(_ context.Context, word string, _ []string) (Features, error) {
	toks := k.Analyzer.Analyze(word)
	if len(toks) == 0 || len(toks[0].POS) == 0 {
		return Features{}, fmt.Errorf("kagome: no analysis for %q", word)
	}
	t := toks[0]
	f := surfaceFeatures(word)
	f.POSTag = t.POS[0]
	f.POSType = ipaTypes[t.POS[0]]
	if f.POSType == "" {
		f.POSType = "unknown"
	}
	if len(t.POS) > 1 && t.POS[1] != "*" {
		f.POSSubtype = t.POS[1]
	}
	f.POSDescription = t.POS[0]
	f.Reading = t.Reading
	f.Morphology = Morphology{RootLength: f.WordLength, Complexity: "simple"}
	if len(toks) > 1 {
		f.Morphology.Complexity = "complex"
	}
	f.Provider = k.Name()
	return f, nil
}
