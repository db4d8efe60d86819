package tokenize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// wordRegex matches runs of letters, allowing inner apostrophes (don't).
var wordRegex = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// English is a regex word tokenizer for space separated languages. Tokens
// are lowercased.
type English struct {
	// MinLength drops shorter tokens. Zero means 2.
	MinLength int
}

// Tokenize implements Tokenizer.
func (e English) Tokenize(text string) []Token {
	minLen := e.MinLength
	if minLen <= 0 {
		minLen = 2
	}
	matches := wordRegex.FindAllString(strings.ToLower(text), -1)
	tokens := make([]Token, 0, len(matches))
	for _, m := range matches {
		m = strings.ReplaceAll(m, "’", "'")
		if utf8.RuneCountInString(m) < minLen {
			continue
		}
		tokens = append(tokens, Token{Surface: m, Position: len(tokens)})
	}
	return tokens
}
