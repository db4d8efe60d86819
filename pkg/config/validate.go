package config

import (
	"fmt"
	"strings"
)

// Validate checks the loaded configuration. Load calls it automatically.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path must be set")
	}
	if c.Import.BatchSize < 1 {
		return fmt.Errorf("import.batch_size must be >= 1 (got %d)", c.Import.BatchSize)
	}
	if c.Import.MaxWords < 0 {
		return fmt.Errorf("import.max_words must be >= 0 (got %d)", c.Import.MaxWords)
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest.workers must be >= 1 (got %d)", c.Ingest.Workers)
	}
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest.batch_size must be >= 1 (got %d)", c.Ingest.BatchSize)
	}
	if c.Ingest.ContextWindow < 0 {
		return fmt.Errorf("ingest.context_window must be >= 0 (got %d)", c.Ingest.ContextWindow)
	}
	if c.Wordlist.MinLength < 1 || c.Wordlist.MinLength > c.Wordlist.MaxLength {
		return fmt.Errorf("wordlist lengths must satisfy 1 <= min <= max (got %d, %d)", c.Wordlist.MinLength, c.Wordlist.MaxLength)
	}

	switch strings.ToLower(c.Lexeme.Stemmer) {
	case "snowball", "suffix":
	default:
		return fmt.Errorf("lexeme.stemmer must be snowball or suffix (got %q)", c.Lexeme.Stemmer)
	}
	switch strings.ToLower(c.Lexeme.Language) {
	case "en", "ja":
	default:
		return fmt.Errorf("lexeme.language must be en or ja (got %q)", c.Lexeme.Language)
	}
	switch strings.ToLower(c.Log.Mode) {
	case "dev", "development", "prod", "production", "nop":
	default:
		return fmt.Errorf("log.mode must be dev, prod or nop (got %q)", c.Log.Mode)
	}
	return nil
}
