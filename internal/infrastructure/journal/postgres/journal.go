// Package postgres persists the audit journal: every document mutation and
// every answered query consumed off the event bus lands in one of two
// append-only tables.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/autoquest/autoquest/internal/core/domain"
)

type Journal struct {
	db *sql.DB
}

func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (j *Journal) EnsureSchema(ctx context.Context) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082401)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS document_events (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	document_id TEXT NOT NULL,
	file_name TEXT,
	file_type TEXT,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_document_events_document_id ON document_events(document_id);
CREATE INDEX IF NOT EXISTS idx_document_events_occurred_at ON document_events(occurred_at DESC);

CREATE TABLE IF NOT EXISTS query_log (
	id TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	top_k INTEGER NOT NULL,
	source_count INTEGER NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	model TEXT,
	duration_ms DOUBLE PRECISION NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_query_log_occurred_at ON query_log(occurred_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// RecordDocumentEvent is idempotent on the event id so redelivered events do
// not duplicate rows.
func (j *Journal) RecordDocumentEvent(ctx context.Context, event domain.DocumentEvent) error {
	_, err := j.db.ExecContext(ctx, `
INSERT INTO document_events (id, kind, document_id, file_name, file_type, chunk_count, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO NOTHING
`,
		event.ID, string(event.Kind), event.DocumentID, event.FileName, string(event.FileType),
		event.ChunkCount, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert document event: %w", err)
	}
	return nil
}

func (j *Journal) RecordQuery(ctx context.Context, event domain.QueryEvent) error {
	_, err := j.db.ExecContext(ctx, `
INSERT INTO query_log (id, question, top_k, source_count, confidence, model, duration_ms, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO NOTHING
`,
		event.ID, event.Question, event.TopK, event.SourceCount, event.Confidence,
		event.Model, event.DurationMS, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert query event: %w", err)
	}
	return nil
}
