package personal

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/japaniel/lexindex/pkg/db"
)

// Format is the layout of a personal status file.
type Format string

const (
	// FormatCSV is word,status[,notes] with an optional header row.
	FormatCSV Format = "csv"
	// FormatTXT is one word or word:status per line; # starts a comment.
	FormatTXT Format = "txt"
	// FormatJSON is {"word": "status"} or [{"word", "status", "notes"}].
	FormatJSON Format = "json"
)

// FormatFromPath picks a format from the file extension, defaulting to txt.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	default:
		return FormatTXT
	}
}

// ParseItems reads status items from r. Lines with an unknown status are
// returned as failures.
func ParseItems(r io.Reader, format Format) ([]Item, []Failure, error) {
	switch format {
	case FormatCSV:
		return parseCSV(r)
	case FormatTXT:
		return parseTXT(r)
	case FormatJSON:
		return parseJSON(r)
	}
	return nil, nil, db.NewValidationError("format", fmt.Sprintf("unsupported format %q", format))
}

// Import parses r and applies every valid item with BatchSetStatus. Words
// never observed are created.
func (m *Manager) Import(ctx context.Context, r io.Reader, format Format) (BatchResult, error) {
	items, failures, err := ParseItems(r, format)
	if err != nil {
		return BatchResult{}, err
	}
	res, err := m.BatchSetStatus(ctx, items, true)
	if err != nil {
		return res, err
	}
	res.Requested += len(failures)
	res.Failed = append(failures, res.Failed...)
	return res, nil
}

func item(line int, word, status, notes string) (Item, *Failure) {
	word = strings.TrimSpace(word)
	if word == "" {
		return Item{}, &Failure{Line: line, Reason: "empty word"}
	}
	st := db.PersonalNew
	if strings.TrimSpace(status) != "" {
		var err error
		if st, err = ParseStatus(status); err != nil {
			return Item{}, &Failure{Line: line, Word: word, Reason: err.Error()}
		}
	}
	return Item{Word: word, Status: st, Notes: strings.TrimSpace(notes)}, nil
}

func parseCSV(r io.Reader) ([]Item, []Failure, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		items    []Item
		failures []Failure
		first    = true
	)
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				failures = append(failures, Failure{Line: perr.Line, Reason: perr.Err.Error()})
				continue
			}
			return items, failures, fmt.Errorf("read status csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(rec[0]), "word") {
				continue
			}
		}
		var status, notes string
		if len(rec) > 1 {
			status = rec[1]
		}
		if len(rec) > 2 {
			notes = rec[2]
		}
		it, fail := item(line, rec[0], status, notes)
		if fail != nil {
			failures = append(failures, *fail)
			continue
		}
		items = append(items, it)
	}
	return items, failures, nil
}

func parseTXT(r io.Reader) ([]Item, []Failure, error) {
	var (
		items    []Item
		failures []Failure
		line     int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		word, status, _ := strings.Cut(text, ":")
		it, fail := item(line, word, status, "")
		if fail != nil {
			failures = append(failures, *fail)
			continue
		}
		items = append(items, it)
	}
	if err := sc.Err(); err != nil {
		return items, failures, fmt.Errorf("read status file: %w", err)
	}
	return items, failures, nil
}

type jsonItem struct {
	Word   string `json:"word"`
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func parseJSON(r io.Reader) ([]Item, []Failure, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read status json: %w", err)
	}

	var entries []jsonItem
	var byWord map[string]string
	if err := json.Unmarshal(raw, &byWord); err == nil {
		words := make([]string, 0, len(byWord))
		for w := range byWord {
			words = append(words, w)
		}
		sort.Strings(words)
		for _, w := range words {
			entries = append(entries, jsonItem{Word: w, Status: byWord[w]})
		}
	} else if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, nil, db.NewValidationError("json", "expected an object of word to status or an array of items")
	}

	var (
		items    []Item
		failures []Failure
	)
	for i, e := range entries {
		it, fail := item(0, e.Word, e.Status, e.Notes)
		if fail != nil {
			if fail.Word == "" {
				fail.Reason = fmt.Sprintf("item %d: %s", i, fail.Reason)
			}
			failures = append(failures, *fail)
			continue
		}
		items = append(items, it)
	}
	return items, failures, nil
}
