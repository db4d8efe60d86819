// Package extract supplies document text and its content fingerprint.
package extract

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/text/unicode/norm"
)

// Content is the extracted text of a document.
type Content struct {
	Filename    string
	FilePath    string
	Title       string
	Text        string
	Size        int64
	Fingerprint string
}

// Fingerprint is the hex sha256 of text after NFKC normalization and
// whitespace collapsing, so trivially reformatted copies dedupe.
func Fingerprint(text string) string {
	normalized := strings.Join(strings.Fields(norm.NFKC.String(text)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Text wraps already extracted text.
func Text(filename, text string) Content {
	return Content{
		Filename:    filename,
		Text:        text,
		Size:        int64(len(text)),
		Fingerprint: Fingerprint(text),
	}
}

// HTML extracts the article text of an HTML document. pageURL may be nil.
func HTML(filename string, r io.Reader, pageURL *url.URL) (Content, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Content{}, fmt.Errorf("read html: %w", err)
	}
	if pageURL == nil {
		pageURL = &url.URL{Scheme: "file", Path: "/" + filename}
	}
	article, err := readability.FromReader(bytes.NewReader(SanitizeRuby(raw)), pageURL)
	if err != nil {
		return Content{}, fmt.Errorf("readability: %w", err)
	}
	c := Text(filename, article.TextContent)
	c.Title = article.Title
	c.Size = int64(len(raw))
	return c, nil
}

// File reads path, extracting HTML when the extension says so.
func File(path string) (Content, error) {
	f, err := os.Open(path)
	if err != nil {
		return Content{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	var c Content
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		c, err = HTML(name, f, nil)
		if err != nil {
			return Content{}, err
		}
	default:
		raw, err := io.ReadAll(f)
		if err != nil {
			return Content{}, fmt.Errorf("read %s: %w", path, err)
		}
		c = Text(name, string(raw))
	}
	c.FilePath = path
	return c, nil
}

var (
	// (?s) allows dot to match newlines
	// (?i) makes it case-insensitive
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
)

// SanitizeRuby removes ruby text (<rt>) and ruby parentheses (<rp>) so
// furigana is not counted twice ("漢字" would read "漢字かんじ").
func SanitizeRuby(content []byte) []byte {
	cleaned := reRT.ReplaceAll(content, []byte{})
	return reRP.ReplaceAll(cleaned, []byte{})
}
