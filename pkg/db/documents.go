package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// transitions lists the allowed document status changes.
var transitions = map[DocumentStatus][]DocumentStatus{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusProcessing},
	StatusFailed:     {StatusPending},
}

// CanTransition reports whether a document may move from one status to another.
func CanTransition(from, to DocumentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

const documentColumns = `id, filename, file_path, fingerprint, file_size, document_type, status, metadata, processed_at, created_at, updated_at`

// CreateOrGetDocument inserts d as a pending document unless a document with
// the same fingerprint exists, in which case the stored one is returned.
// created reports whether a new row was written.
func CreateOrGetDocument(ctx context.Context, ex Executor, d Document) (doc *Document, created bool, err error) {
	if strings.TrimSpace(d.Fingerprint) == "" {
		return nil, false, NewValidationError("fingerprint", "must be non-empty")
	}
	if strings.TrimSpace(d.Filename) == "" {
		return nil, false, NewValidationError("filename", "must be non-empty")
	}
	if d.Type == "" {
		d.Type = DocumentText
	}
	meta, err := encodeJSON(d.Metadata)
	if err != nil {
		return nil, false, err
	}

	const maxRetries = 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		existing, err := GetDocumentByFingerprint(ctx, ex, d.Fingerprint)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}

		now := time.Now().UTC()
		id := uuid.NewString()
		_, err = ex.ExecContext(ctx,
			`INSERT INTO documents (id, filename, file_path, fingerprint, file_size, document_type, status, metadata, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, d.Filename, d.FilePath, d.Fingerprint, d.FileSize, string(d.Type), string(StatusPending), meta, now, now,
		)
		if err != nil {
			// Another writer inserted the same fingerprint; retry the lookup.
			if isUniqueConstraintErr(err) {
				continue
			}
			return nil, false, fmt.Errorf("insert document: %w", err)
		}
		doc, err := GetDocument(ctx, ex, id)
		return doc, true, err
	}
	return nil, false, &ConflictError{Op: "create document", Err: fmt.Errorf("gave up after %d retries", maxRetries)}
}

// GetDocument returns the document with id, or nil if none exists.
func GetDocument(ctx context.Context, ex Executor, id string) (*Document, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// GetDocumentByFingerprint returns the document with the fingerprint, or nil.
func GetDocumentByFingerprint(ctx context.Context, ex Executor, fingerprint string) (*Document, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE fingerprint = ?`, fingerprint)
	return scanDocument(row)
}

// ListDocuments returns documents newest first. An empty status lists all.
func ListDocuments(ctx context.Context, ex Executor, status DocumentStatus) ([]Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// TransitionDocument moves a document to status to. metadata, when non-nil,
// is merged into the stored metadata. Entering completed stamps processed_at.
func TransitionDocument(ctx context.Context, ex Executor, id string, to DocumentStatus, metadata map[string]any) (*Document, error) {
	doc, err := GetDocument(ctx, ex, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if !CanTransition(doc.Status, to) {
		return nil, &TransitionError{From: doc.Status, To: to}
	}

	merged := doc.Metadata
	if merged == nil {
		merged = map[string]any{}
	}
	for k, v := range metadata {
		merged[k] = v
	}
	meta, err := encodeJSON(merged)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var processedAt any
	if to == StatusCompleted {
		processedAt = now
	} else if doc.ProcessedAt != nil {
		processedAt = *doc.ProcessedAt
	}

	// The status guard makes a concurrent transition lose instead of silently overwriting.
	res, err := ex.ExecContext(ctx,
		`UPDATE documents SET status = ?, metadata = ?, processed_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), meta, processedAt, now, id, string(doc.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("update document status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &ConflictError{Op: "transition document", Err: fmt.Errorf("status of %s changed concurrently", id)}
	}
	return GetDocument(ctx, ex, id)
}

// DeleteDocument removes a document with its occurrences and recorded
// spellings. It reports whether a document was deleted.
func DeleteDocument(ctx context.Context, ex Executor, id string) (bool, error) {
	// Children first so no occurrence outlives its document even without
	// foreign key enforcement.
	if _, err := ex.ExecContext(ctx, `DELETE FROM occurrences WHERE document_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete occurrences: %w", err)
	}
	if _, err := ex.ExecContext(ctx, `DELETE FROM word_forms WHERE document_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete word forms: %w", err)
	}
	res, err := ex.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*Document, error) {
	var (
		d           Document
		docType     string
		status      string
		meta        string
		processedAt sql.NullTime
	)
	err := s.Scan(&d.ID, &d.Filename, &d.FilePath, &d.Fingerprint, &d.FileSize, &docType, &status, &meta, &processedAt, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	d.Type = DocumentType(docType)
	d.Status = DocumentStatus(status)
	if processedAt.Valid {
		t := processedAt.Time
		d.ProcessedAt = &t
	}
	if err := json.Unmarshal([]byte(meta), &d.Metadata); err != nil {
		return nil, fmt.Errorf("decode document metadata: %w", err)
	}
	return &d, nil
}

// encodeJSON encodes a metadata object. nil encodes as an empty object.
func encodeJSON(v map[string]any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(b), nil
}
