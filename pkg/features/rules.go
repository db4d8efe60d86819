package features

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rules is a heuristic English tagger driven by closed-class words, suffixes
// and the previous token of the context window.
type Rules struct{}

func (Rules) Name() string { return "rules" }

// Analyze implements Provider.
func (r Rules) Analyze(_ context.Context, word string, context []string) (Features, error) {
	tag := r.Tag(word, previous(word, context))
	f := surfaceFeatures(word)
	info, ok := pennTags[tag]
	if !ok {
		info = posInfo{"unknown", "unknown", "unknown tag " + tag}
	}
	f.POSTag = tag
	f.POSType = info.typ
	f.POSSubtype = info.subtype
	f.POSDescription = info.description
	f.Morphology = AnalyzeMorphology(word)
	f.Provider = r.Name()
	return f, nil
}

// Tag returns a Penn tag for word given the preceding token (may be empty).
func (Rules) Tag(word, prev string) string {
	w := strings.ToLower(word)
	p := strings.ToLower(prev)
	if tag, ok := closedClass[w]; ok {
		return tag
	}
	if isNumber(w) {
		return "CD"
	}
	if r, _ := utf8.DecodeRuneInString(word); unicode.IsUpper(r) && prev != "" {
		if strings.HasSuffix(w, "s") {
			return "NNPS"
		}
		return "NNP"
	}

	prevTag := closedClass[p]
	if (prevTag == "MD" || prevTag == "TO") && !strings.HasSuffix(w, "ing") && !strings.HasSuffix(w, "ed") {
		return "VB"
	}

	switch {
	case strings.HasSuffix(w, "ly") && len(w) > 4:
		return "RB"
	case strings.HasSuffix(w, "ing") && len(w) > 4:
		if determinerTags[prevTag] {
			return "NN"
		}
		return "VBG"
	case strings.HasSuffix(w, "ed") && len(w) > 3:
		if perfectAux[p] {
			return "VBN"
		}
		return "VBD"
	case strings.HasSuffix(w, "est") && len(w) > 5:
		return "JJS"
	case hasAnySuffix(w, nounSuffixes...):
		return "NN"
	case strings.HasSuffix(w, "s") && hasAnySuffix(w[:len(w)-1], nounSuffixes...):
		return "NNS"
	case hasAnySuffix(w, "ful", "less", "ous", "ive", "able", "ible", "al", "ic", "ish"):
		return "JJ"
	case strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && len(w) > 3:
		if subjectTags[prevTag] {
			return "VBZ"
		}
		return "NNS"
	}
	if subjectTags[prevTag] {
		return "VBP"
	}
	return "NN"
}

var nounSuffixes = []string{"tion", "sion", "ness", "ment", "ity", "ance", "ence", "ship", "ism"}

func hasAnySuffix(w string, suffixes ...string) bool {
	for _, s := range suffixes {
		if len(w) > len(s)+2 && strings.HasSuffix(w, s) {
			return true
		}
	}
	return false
}

func isNumber(w string) bool {
	if w == "" {
		return false
	}
	for _, r := range w {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return false
		}
	}
	return true
}

// previous returns the token before word in context, or "".
func previous(word string, context []string) string {
	w := strings.ToLower(word)
	for i, tok := range context {
		if strings.ToLower(tok) == w {
			if i > 0 {
				return context[i-1]
			}
			return ""
		}
	}
	return ""
}
