package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// MaxBodySize bounds the HTML read from a URL.
const MaxBodySize = 10 * 1024 * 1024

// DefaultClient is used by Fetch when no client is given.
var DefaultClient = &http.Client{Timeout: 30 * time.Second}

// Fetch downloads rawURL and extracts its article text. The content's
// FilePath is the URL.
func Fetch(ctx context.Context, client *http.Client, rawURL string) (Content, error) {
	if client == nil {
		client = DefaultClient
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return Content{}, fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Content{}, fmt.Errorf("create request: %w", err)
	}
	// Some sites refuse requests without browser-like headers.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,ja;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return Content{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Content{}, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	if resp.ContentLength > MaxBodySize {
		return Content{}, fmt.Errorf("fetch %s: content length %d exceeds %d bytes", rawURL, resp.ContentLength, MaxBodySize)
	}

	// One byte past the limit tells a truncated body from an exact fit.
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return Content{}, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if len(body) > MaxBodySize {
		return Content{}, fmt.Errorf("fetch %s: body exceeds %d bytes", rawURL, MaxBodySize)
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = u.Host
	}
	c, err := HTML(name, bytes.NewReader(body), u)
	if err != nil {
		return Content{}, err
	}
	c.FilePath = rawURL
	return c, nil
}
