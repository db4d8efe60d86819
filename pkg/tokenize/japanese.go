package tokenize

import (
	"fmt"
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// Japanese segments text with kagome and the IPA dictionary.
type Japanese struct {
	t *tokenizer.Tokenizer
}

// NewJapanese creates a kagome backed tokenizer.
func NewJapanese() (*Japanese, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("kagome tokenizer: %w", err)
	}
	return &Japanese{t: t}, nil
}

// Analyze returns every non-blank morpheme of text with base form and a
// hiragana reading.
func (j *Japanese) Analyze(text string) []Token {
	var out []Token
	for _, tok := range j.t.Tokenize(text) {
		if tok.Class == tokenizer.DUMMY || strings.TrimSpace(tok.Surface) == "" {
			continue
		}
		// IPA features: 0-3 part of speech, 4-5 conjugation, 6 base form, 7 reading.
		features := tok.Features()
		base := tok.Surface
		if len(features) > 6 && features[6] != "*" {
			base = features[6]
		}
		reading := ""
		if len(features) > 7 && features[7] != "*" {
			reading = features[7]
		}
		out = append(out, Token{
			Surface: tok.Surface,
			Lemma:   base,
			Reading: ToHiragana(reading),
			POS:     features,
		})
	}
	return out
}

// Tokenize implements Tokenizer. Symbols, particles, auxiliary verbs and
// numbers are dropped; each kept token is keyed by its base form.
func (j *Japanese) Tokenize(text string) []Token {
	var tokens []Token
	for _, sentence := range splitSentences(text) {
		for _, t := range j.Analyze(sentence) {
			if !contentWord(t) {
				continue
			}
			t.Surface = t.Lemma
			t.Position = len(tokens)
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// Stem returns the kagome base form of word, making Japanese a pluggable
// lemmatizer for the identity resolver.
func (j *Japanese) Stem(word string) (string, error) {
	toks := j.Analyze(word)
	if len(toks) == 0 {
		return "", fmt.Errorf("no morpheme in %q", word)
	}
	if len(toks) > 1 {
		// Compound input keeps its full spelling.
		return word, nil
	}
	return toks[0].Lemma, nil
}

func contentWord(t Token) bool {
	if len(t.POS) == 0 {
		return false
	}
	switch t.POS[0] {
	case "記号", "補助記号", "助詞", "助動詞":
		return false
	}
	if len(t.POS) > 1 && t.POS[1] == "数" {
		return false
	}
	return true
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		// 。！？ and newlines end a sentence.
		if r == '。' || r == '！' || r == '？' || r == '\n' {
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

// ToHiragana converts Katakana to Hiragana.
func ToHiragana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r >= 0x30A1 && r <= 0x30F6 {
			runes[i] = r - 0x60
		}
	}
	return string(runes)
}
