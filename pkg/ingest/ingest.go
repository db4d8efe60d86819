// Package ingest records documents into the occurrence ledger and drives
// the document lifecycle.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/japaniel/lexindex/pkg/db"
	"github.com/japaniel/lexindex/pkg/extract"
	"github.com/japaniel/lexindex/pkg/logger"
	"github.com/japaniel/lexindex/pkg/tokenize"
)

// Source is one document to ingest.
type Source struct {
	Content  extract.Content
	Type     db.DocumentType
	Metadata map[string]any
}

// IngestResult is the outcome of ingesting one Source.
type IngestResult struct {
	Document *db.Document `json:"document,omitempty"`
	// Duplicate is set when a completed document with the same fingerprint
	// already existed and was returned untouched.
	Duplicate bool          `json:"duplicate"`
	Record    RecordResult  `json:"record"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Err       error         `json:"-"`
}

// Ingester tokenizes sources and records them through the Ledger.
type Ingester struct {
	DB        *sql.DB
	Ledger    *Ledger
	Tokenizer tokenize.Tokenizer
	// Reprocess re-records documents that are already completed.
	Reprocess bool
	Workers   int
	Log       *logger.Logger
	// OnProgress is called after each document of IngestAll is written.
	OnProgress func(current, total int)

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewIngester creates a new Ingester.
func NewIngester(conn *sql.DB, ledger *Ledger, tk tokenize.Tokenizer, log *logger.Logger) *Ingester {
	return &Ingester{
		DB:        conn,
		Ledger:    ledger,
		Tokenizer: tk,
		Workers:   4,
		Log:       logger.OrNop(log).With("component", "ingester"),
	}
}

// tokenized holds a source after the CPU bound tokenization step.
type tokenized struct {
	index  int
	source Source
	result tokenize.Result
	err    error
}

func (ig *Ingester) tokenize(index int, src Source) tokenized {
	return tokenized{index: index, source: src, result: tokenize.Text(ig.Tokenizer, src.Content.Text)}
}

// IngestText tokenizes and records one source.
func (ig *Ingester) IngestText(ctx context.Context, src Source) (IngestResult, error) {
	t := ig.tokenize(0, src)
	res := ig.write(ctx, t)
	return res, res.Err
}

// write runs the document lifecycle for a tokenized source: create or reuse
// the document, move it to processing, record, then complete or fail it.
func (ig *Ingester) write(ctx context.Context, t tokenized) IngestResult {
	start := time.Now()
	log := logger.OrNop(ig.Log)
	c := t.source.Content
	res := IngestResult{}
	if t.err != nil {
		log.Error("tokenization failed", "filename", c.Filename, "error", t.err)
		res.Err = t.err
		return res
	}

	doc, created, err := db.CreateOrGetDocument(ctx, ig.DB, db.Document{
		Filename:    c.Filename,
		FilePath:    c.FilePath,
		Fingerprint: c.Fingerprint,
		FileSize:    c.Size,
		Type:        t.source.Type,
		Metadata:    withTitle(t.source.Metadata, c.Title),
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.Document = doc

	if !created {
		switch doc.Status {
		case db.StatusCompleted:
			if !ig.Reprocess {
				res.Duplicate = true
				log.Info("document already ingested", "document", doc.ID, "filename", doc.Filename)
				return res
			}
		case db.StatusFailed:
			if doc, err = db.TransitionDocument(ctx, ig.DB, doc.ID, db.StatusPending, nil); err != nil {
				res.Err = err
				return res
			}
		}
	}

	if doc.Status != db.StatusProcessing {
		doc, err = db.TransitionDocument(ctx, ig.DB, doc.ID, db.StatusProcessing, map[string]any{
			"total_words":          t.result.Total,
			"unique_surface_forms": len(t.result.Frequencies),
		})
		if err != nil {
			res.Err = err
			return res
		}
	}

	rec, err := ig.Ledger.Record(ctx, doc.ID, Observation{
		Frequencies: t.result.Frequencies,
		Positions:   t.result.Positions,
		Context:     t.result.Sequence,
	})
	res.Record = rec
	if err != nil {
		res.Err = fmt.Errorf("record %s: %w", c.Filename, err)
		if errors.Is(err, db.ErrDocumentFailed) {
			return res
		}
		// A canceled context cannot write the failure either.
		if failed, ferr := db.TransitionDocument(context.WithoutCancel(ctx), ig.DB, doc.ID, db.StatusFailed, map[string]any{"error": err.Error()}); ferr == nil {
			res.Document = failed
		} else {
			log.Error("could not mark document failed", "document", doc.ID, "error", ferr)
		}
		log.Error("document ingestion failed", "document", doc.ID, "error", err)
		return res
	}

	res.Elapsed = time.Since(start)
	doc, err = db.TransitionDocument(ctx, ig.DB, doc.ID, db.StatusCompleted, map[string]any{
		"unique_words":       rec.UniqueWords,
		"new_words":          rec.NewWords,
		"rejected":           len(rec.Rejected),
		"processing_time_ms": res.Elapsed.Milliseconds(),
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.Document = doc
	log.Info("document ingested",
		"document", doc.ID,
		"filename", doc.Filename,
		"tokens", rec.TotalTokens,
		"unique_words", rec.UniqueWords,
		"new_words", rec.NewWords,
	)
	return res
}

func withTitle(meta map[string]any, title string) map[string]any {
	if title == "" {
		return meta
	}
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out["title"] = title
	return out
}

func (ig *Ingester) workers() int {
	if ig.Workers <= 0 {
		return 1
	}
	return ig.Workers
}

// IngestAll tokenizes sources in parallel on a worker pool and writes them
// one at a time in input order. A failing document is reported in its
// IngestResult and does not stop the others. The returned error is set only
// when the run itself was interrupted.
func (ig *Ingester) IngestAll(ctx context.Context, sources []Source) ([]IngestResult, error) {
	results := make([]IngestResult, len(sources))
	if len(sources) == 0 {
		return results, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wp WorkerPoolInterface
	if ig.PoolFactory != nil {
		wp = ig.PoolFactory(ig.workers(), ig.workers()*2)
	} else {
		wp = NewWorkerPool(ig.workers(), ig.workers()*2)
	}
	wp.Start(ctx)

	resultCh := make(chan tokenized, ig.workers()*2)
	submitErr := make(chan error, 1)

	go func() {
		defer close(submitErr)
		for idx := range sources {
			job := func(ctx context.Context) (err error) {
				t := tokenized{index: idx, source: sources[idx]}
				// The writer waits on every index, so a panicking
				// tokenizer must still deliver a result.
				defer func() {
					if r := recover(); r != nil {
						t.err = fmt.Errorf("tokenize %s: %v", sources[idx].Content.Filename, r)
						err = t.err
					}
					select {
					case resultCh <- t:
					case <-ctx.Done():
					}
				}()
				t = ig.tokenize(idx, sources[idx])
				return nil
			}
			if err := wp.SubmitCtx(ctx, job); err != nil {
				submitErr <- err
				return
			}
		}
	}()

	stop := func(err error) ([]IngestResult, error) {
		cancel()
		wp.Close()
		return results, err
	}

	buffer := make(map[int]tokenized)
	next := 0
	for next < len(sources) {
		if err := ctx.Err(); err != nil {
			return stop(err)
		}
		select {
		case <-ctx.Done():
			return stop(ctx.Err())
		case err, ok := <-submitErr:
			if ok && err != nil {
				return stop(fmt.Errorf("submit tokenization job: %w", err))
			}
			// Every job is queued; a nil channel is never selected again.
			submitErr = nil
		case t := <-resultCh:
			buffer[t.index] = t
			for {
				item, ok := buffer[next]
				if !ok {
					break
				}
				delete(buffer, next)
				results[next] = ig.write(ctx, item)
				next++
				if ig.OnProgress != nil {
					ig.OnProgress(next, len(sources))
				}
			}
		}
	}
	wp.Close()
	if fp, ok := wp.(interface{ Failures() int64 }); ok && fp.Failures() > 0 {
		logger.OrNop(ig.Log).Warn("tokenization jobs failed", "failed", fp.Failures(), "documents", len(sources))
	}
	return results, nil
}
