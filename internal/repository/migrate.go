package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"

	"github.com/joseph-ayodele/docproc/internal/common"
)

const (
	documentsTable = "processed_documents"
	pagesTable     = "processed_pages"
)

var schemaStatements = map[string][]string{
	dialect.SQLite: {
		`CREATE TABLE IF NOT EXISTS processed_documents (
			id TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			filename TEXT NOT NULL,
			document_type TEXT NOT NULL,
			total_pages INTEGER NOT NULL,
			full_text TEXT NOT NULL,
			average_confidence REAL NOT NULL,
			processing_notes TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS processed_documents_content_hash ON processed_documents (content_hash)`,
		`CREATE TABLE IF NOT EXISTS processed_pages (
			document_id TEXT NOT NULL REFERENCES processed_documents (id) ON DELETE CASCADE,
			page_number INTEGER NOT NULL,
			extracted_text TEXT NOT NULL,
			confidence REAL NOT NULL,
			extraction_method TEXT NOT NULL,
			preprocessing_applied TEXT NOT NULL,
			quality TEXT NOT NULL,
			PRIMARY KEY (document_id, page_number)
		)`,
	},
	dialect.Postgres: {
		`CREATE TABLE IF NOT EXISTS processed_documents (
			id TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			filename TEXT NOT NULL,
			document_type TEXT NOT NULL,
			total_pages INTEGER NOT NULL,
			full_text TEXT NOT NULL,
			average_confidence DOUBLE PRECISION NOT NULL,
			processing_notes TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS processed_documents_content_hash ON processed_documents (content_hash)`,
		`CREATE TABLE IF NOT EXISTS processed_pages (
			document_id TEXT NOT NULL REFERENCES processed_documents (id) ON DELETE CASCADE,
			page_number INTEGER NOT NULL,
			extracted_text TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			extraction_method TEXT NOT NULL,
			preprocessing_applied TEXT NOT NULL,
			quality TEXT NOT NULL,
			PRIMARY KEY (document_id, page_number)
		)`,
	},
}

// Migrate creates the tables if they do not exist.
func (d *DB) Migrate(ctx context.Context) error {
	stmts, ok := schemaStatements[d.dialect]
	if !ok {
		return fmt.Errorf("%w: no schema for dialect %q", common.ErrDatabase, d.dialect)
	}
	for _, s := range stmts {
		if err := d.drv.Exec(ctx, s, []any{}, nil); err != nil {
			d.logger.Error("migration failed", "error", err)
			return common.NewAppError(common.CodeDatabase, "migrate", fmt.Errorf("%w: %w", common.ErrDatabase, err))
		}
	}
	d.logger.Info("database schema ready", "dialect", d.dialect)
	return nil
}
