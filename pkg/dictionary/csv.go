package dictionary

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Row is one ranked word of a frequency list.
type Row struct {
	Line       int
	Rank       int
	POS        string
	Word       string
	Definition string
}

// RowError reports a row that could not be imported.
type RowError struct {
	Line   int    `json:"line"`
	Word   string `json:"word,omitempty"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	if e.Word == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("line %d (%s): %s", e.Line, e.Word, e.Reason)
}

// ParseOptions controls ParseCSV.
type ParseOptions struct {
	// MaxRows stops parsing after this many accepted rows. Zero means no limit.
	MaxRows int
}

var headerFields = map[string]bool{"RANK": true, "POS": true, "WORD": true, "LEMMA": true, "TOTAL": true}

// ParseCSV reads a ranked frequency list. Rows are rank,pos,word with an
// optional fourth lowercase word column that takes precedence and an
// optional fifth definition column. A header line is detected and skipped.
// Malformed rows are returned as RowErrors and never abort the parse.
func ParseCSV(r io.Reader, opts ParseOptions) ([]Row, []RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var (
		rows   []Row
		errs   []RowError
		header = true
	)
	for {
		if opts.MaxRows > 0 && len(rows) >= opts.MaxRows {
			break
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				errs = append(errs, RowError{Line: pe.Line, Reason: pe.Err.Error()})
				continue
			}
			return rows, errs, fmt.Errorf("read dictionary csv: %w", err)
		}
		line, _ := reader.FieldPos(0)

		if header {
			header = false
			if isHeader(record) {
				continue
			}
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		row, rowErr := parseRow(line, record)
		if rowErr != nil {
			errs = append(errs, *rowErr)
			continue
		}
		rows = append(rows, row)
	}
	return rows, errs, nil
}

func isHeader(record []string) bool {
	for _, f := range record {
		if headerFields[strings.ToUpper(strings.TrimSpace(f))] {
			return true
		}
	}
	return false
}

func parseRow(line int, record []string) (Row, *RowError) {
	if len(record) < 3 {
		return Row{}, &RowError{Line: line, Reason: fmt.Sprintf("expected at least 3 columns, got %d", len(record))}
	}
	word := strings.TrimSpace(record[2])
	if len(record) > 3 && strings.TrimSpace(record[3]) != "" {
		word = strings.TrimSpace(record[3])
	}
	rank, err := strconv.Atoi(strings.TrimSpace(record[0]))
	if err != nil {
		return Row{}, &RowError{Line: line, Word: word, Reason: fmt.Sprintf("invalid rank %q", record[0])}
	}
	if rank <= 0 {
		return Row{}, &RowError{Line: line, Word: word, Reason: "rank must be positive"}
	}
	pos := StandardizePOS(record[1])
	if pos == "" {
		return Row{}, &RowError{Line: line, Word: word, Reason: "missing part of speech"}
	}
	if utf8.RuneCountInString(word) < 2 {
		return Row{}, &RowError{Line: line, Word: word, Reason: "word shorter than 2 characters"}
	}
	row := Row{Line: line, Rank: rank, POS: pos, Word: word}
	if len(record) > 4 {
		row.Definition = strings.TrimSpace(record[4])
	}
	return row, nil
}

var posNames = map[string]string{
	"N":    "noun",
	"NOUN": "noun",
	"V":    "verb",
	"VERB": "verb",
	"J":    "adjective",
	"A":    "adjective",
	"ADJ":  "adjective",
	"R":    "adverb",
	"ADV":  "adverb",
}

// StandardizePOS maps frequency list part-of-speech codes to names. Unknown
// codes are lowercased.
func StandardizePOS(code string) string {
	code = strings.TrimSpace(code)
	if name, ok := posNames[strings.ToUpper(code)]; ok {
		return name
	}
	return strings.ToLower(code)
}

// DifficultyForRank buckets a frequency rank into a 1-5 difficulty tier.
func DifficultyForRank(rank int) int {
	switch {
	case rank <= 2000:
		return 1
	case rank <= 5000:
		return 2
	case rank <= 15000:
		return 3
	case rank <= 35000:
		return 4
	default:
		return 5
	}
}
