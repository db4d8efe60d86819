// Package engine constructs the indexing engine from configuration and owns
// the lifecycle of its store.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/japaniel/lexindex/pkg/analytics"
	"github.com/japaniel/lexindex/pkg/config"
	"github.com/japaniel/lexindex/pkg/db"
	"github.com/japaniel/lexindex/pkg/dictionary"
	"github.com/japaniel/lexindex/pkg/extract"
	"github.com/japaniel/lexindex/pkg/features"
	"github.com/japaniel/lexindex/pkg/ingest"
	"github.com/japaniel/lexindex/pkg/lexeme"
	"github.com/japaniel/lexindex/pkg/logger"
	"github.com/japaniel/lexindex/pkg/personal"
	"github.com/japaniel/lexindex/pkg/tokenize"
	"github.com/japaniel/lexindex/pkg/wordlist"
)

// Engine holds every component wired to one store.
type Engine struct {
	DB         *sql.DB
	Config     *config.Config
	Log        *logger.Logger
	Capability features.Capability

	Resolver  *lexeme.Resolver
	Matcher   *dictionary.Matcher
	Importer  *dictionary.Importer
	Ledger    *ingest.Ledger
	Ingester  *ingest.Ingester
	Wordlists *wordlist.Engine
	Personal  *personal.Manager
	Analytics *analytics.Engine
}

// New opens the store named by cfg, applies migrations and builds every
// component. The caller must Close the engine.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	log = logger.OrNop(log)

	stemmer, err := lexeme.NewStemmer(cfg.Lexeme.Stemmer)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	var tk tokenize.Tokenizer = tokenize.English{}
	var ja *tokenize.Japanese
	if strings.EqualFold(cfg.Lexeme.Language, "ja") {
		if ja, err = tokenize.NewJapanese(); err != nil {
			log.Warn("japanese tokenizer unavailable, falling back to english rules", "error", err)
			ja = nil
		} else {
			tk, stemmer = ja, ja
		}
	}
	capability := features.Detect(strings.ToLower(cfg.Lexeme.Language), ja, log)

	conn, err := db.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	e := &Engine{DB: conn, Config: cfg, Log: log, Capability: capability}
	e.Matcher = dictionary.NewMatcher(conn, log)
	e.Resolver = lexeme.NewResolver(stemmer, capability.Provider, e.Matcher, log)
	e.Resolver.Window = cfg.Ingest.ContextWindow

	e.Importer = dictionary.NewImporter(conn, log)
	e.Importer.BatchSize = cfg.Import.BatchSize
	e.Importer.SkipProperNouns = cfg.Import.SkipProperNouns

	e.Ledger = ingest.NewLedger(conn, e.Resolver, log)
	e.Ingester = ingest.NewIngester(conn, e.Ledger, tk, log)
	e.Ingester.Workers = cfg.Ingest.Workers

	e.Wordlists = wordlist.NewEngine(conn, e.Matcher, log)
	e.Wordlists.MinLength = cfg.Wordlist.MinLength
	e.Wordlists.MaxLength = cfg.Wordlist.MaxLength

	e.Personal = personal.NewManager(conn, e.Resolver, log)
	e.Analytics = analytics.NewEngine(conn, e.Resolver, log)

	log.Info("engine ready",
		"database", cfg.Database.Path,
		"stemmer", cfg.Lexeme.Stemmer,
		"language", cfg.Lexeme.Language,
		"features", capability.Provider.Name(),
		"degraded", capability.Degraded,
	)
	return e, nil
}

// Close closes the store.
func (e *Engine) Close() error {
	if e.DB == nil {
		return nil
	}
	err := e.DB.Close()
	e.DB = nil
	return err
}

// ImportDictionary parses a ranked CSV from r and imports it. Parse errors
// are reported with the import errors.
func (e *Engine) ImportDictionary(ctx context.Context, r io.Reader) (dictionary.ImportResult, error) {
	rows, parseErrs, err := dictionary.ParseCSV(r, dictionary.ParseOptions{MaxRows: e.Config.Import.MaxWords})
	if err != nil {
		return dictionary.ImportResult{}, err
	}
	res, err := e.Importer.Import(ctx, rows)
	res.Processed += len(parseErrs)
	res.Errors = append(parseErrs, res.Errors...)
	return res, err
}

// IngestFiles extracts and ingests paths in batches of the configured size.
// A file that cannot be read is reported in its result.
func (e *Engine) IngestFiles(ctx context.Context, paths []string, docType db.DocumentType) ([]ingest.IngestResult, error) {
	results := make([]ingest.IngestResult, 0, len(paths))
	batch := e.Config.Ingest.BatchSize
	if batch < 1 {
		batch = len(paths)
	}
	for start := 0; start < len(paths); start += batch {
		end := min(start+batch, len(paths))
		var (
			sources []ingest.Source
			slots   []int
		)
		for _, p := range paths[start:end] {
			c, err := extract.File(p)
			if err != nil {
				results = append(results, ingest.IngestResult{Err: err})
				continue
			}
			slots = append(slots, len(results))
			results = append(results, ingest.IngestResult{})
			sources = append(sources, ingest.Source{Content: c, Type: docType})
		}
		out, err := e.Ingester.IngestAll(ctx, sources)
		for i, r := range out {
			results[slots[i]] = r
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// Documents lists documents, optionally in one status.
func (e *Engine) Documents(ctx context.Context, status db.DocumentStatus) ([]db.Document, error) {
	return db.ListDocuments(ctx, e.DB, status)
}

// Purge deletes a document and its occurrences.
func (e *Engine) Purge(ctx context.Context, documentID string) (bool, error) {
	var deleted bool
	err := db.WithTx(ctx, e.DB, func(tx *sql.Tx) error {
		var err error
		deleted, err = db.DeleteDocument(ctx, tx, documentID)
		return err
	})
	if err == nil && deleted {
		e.Log.Info("document purged", "document", documentID)
	}
	return deleted, err
}
