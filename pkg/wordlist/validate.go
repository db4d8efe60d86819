package wordlist

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rejection explains why an input word was refused.
type Rejection struct {
	Line   int    `json:"line,omitempty"`
	Word   string `json:"word"`
	Reason string `json:"reason"`
}

// Default length bounds of a valid word.
const (
	DefaultMinLength = 2
	DefaultMaxLength = 50
)

// Validate cleans word and checks it is a plausible vocabulary item. The
// cleaned spelling keeps its case.
func (e *Engine) Validate(word string) (string, *Rejection) {
	reject := func(format string, args ...any) (string, *Rejection) {
		return "", &Rejection{Word: word, Reason: fmt.Sprintf(format, args...)}
	}

	w := strings.TrimSpace(word)
	if w == "" {
		return reject("empty")
	}
	if isDigits(w) {
		return reject("numeric")
	}
	decade := isDecade(w)
	if !decade && strings.IndexFunc(w, unicode.IsDigit) >= 0 {
		return reject("embedded digits")
	}

	w = strings.TrimRight(w, "*")
	w = strings.Trim(w, "[](){}")
	w = strings.Trim(w, `"'`)
	if strings.Contains(w, "-") {
		w = strings.Trim(w, "-")
		if parts := strings.Split(w, "-"); len(parts) == 2 && len(parts[0]) <= 2 && len(parts[1]) <= 2 {
			return reject("looks like numbering")
		}
	}

	n := utf8.RuneCountInString(w)
	if n < e.minLength() {
		return reject("shorter than %d characters", e.minLength())
	}
	if n > e.maxLength() {
		return reject("longer than %d characters", e.maxLength())
	}

	hasLetter := false
	for _, r := range w {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case r == '-' || r == '\'':
		case decade && unicode.IsDigit(r):
		default:
			return reject("invalid character %q", r)
		}
	}
	if !hasLetter {
		return reject("no letters")
	}
	return w, nil
}

func (e *Engine) minLength() int {
	if e.MinLength <= 0 {
		return DefaultMinLength
	}
	return e.MinLength
}

func (e *Engine) maxLength() int {
	if e.MaxLength <= 0 {
		return DefaultMaxLength
	}
	return e.MaxLength
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// isDecade matches spellings like 1990s.
func isDecade(s string) bool {
	return len(s) >= 5 && strings.HasSuffix(s, "s") && isDigits(s[:len(s)-1])
}

// ParseResult holds the words read from a wordlist file.
type ParseResult struct {
	Words   []string    `json:"words"`
	Skipped []Rejection `json:"skipped,omitempty"`
}

var titlePrefixes = []string{"word list", "wordlist", "list ", "unit ", "lesson ", "part "}

func isTitle(line string) bool {
	l := strings.ToLower(line)
	switch l {
	case "word", "words", "headword", "headwords":
		return true
	}
	for _, p := range titlePrefixes {
		if strings.HasPrefix(l, p) {
			return true
		}
	}
	return false
}

// ParseFile reads a wordlist: one word per line, the first column of tab
// separated lines, or every item of comma separated lines. Title lines,
// invalid words and repeats are skipped with a reason.
func (e *Engine) ParseFile(r io.Reader) (ParseResult, error) {
	var (
		res   ParseResult
		seen  = make(map[string]int)
		lineN int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineN++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if isTitle(line) {
			res.Skipped = append(res.Skipped, Rejection{Line: lineN, Word: line, Reason: "title line"})
			continue
		}

		var candidates []string
		switch {
		case strings.Contains(line, "\t"):
			candidates = []string{strings.Split(line, "\t")[0]}
		case strings.Contains(line, ","):
			for _, w := range strings.Split(line, ",") {
				if w = strings.TrimSpace(w); w != "" {
					candidates = append(candidates, w)
				}
			}
		default:
			candidates = strings.Fields(line)[:1]
		}

		for _, c := range candidates {
			clean, rej := e.Validate(c)
			if rej != nil {
				rej.Line = lineN
				res.Skipped = append(res.Skipped, *rej)
				continue
			}
			key := strings.ToLower(clean)
			if first, dup := seen[key]; dup {
				res.Skipped = append(res.Skipped, Rejection{Line: lineN, Word: clean, Reason: fmt.Sprintf("duplicate of line %d", first)})
				continue
			}
			seen[key] = lineN
			res.Words = append(res.Words, clean)
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("read wordlist: %w", err)
	}
	return res, nil
}
