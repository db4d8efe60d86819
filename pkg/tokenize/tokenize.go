// Package tokenize turns extracted document text into the frequency,
// position and context maps consumed by the occurrence ledger.
package tokenize

// Token is a single word observed in a text.
type Token struct {
	Surface  string
	Lemma    string   // dictionary form when the tokenizer knows it
	POS      []string // tokenizer specific part of speech labels
	Reading  string
	Position int // index among the kept tokens of the document
}

// Tokenizer splits text into word tokens.
type Tokenizer interface {
	Tokenize(text string) []Token
}

// Result aggregates the tokens of one document.
type Result struct {
	Frequencies map[string]int
	Positions   map[string][]int
	// Sequence is every kept token in document order.
	Sequence []string
	Total    int
}

// Count aggregates tokens by surface form.
func Count(tokens []Token) Result {
	res := Result{
		Frequencies: make(map[string]int),
		Positions:   make(map[string][]int),
		Sequence:    make([]string, 0, len(tokens)),
	}
	for _, t := range tokens {
		res.Frequencies[t.Surface]++
		res.Positions[t.Surface] = append(res.Positions[t.Surface], t.Position)
		res.Sequence = append(res.Sequence, t.Surface)
	}
	res.Total = len(tokens)
	return res
}

// Text tokenizes text with tk and counts the result.
func Text(tk Tokenizer, text string) Result {
	return Count(tk.Tokenize(text))
}
