package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/docproc/internal/repository"
)

// Service produces XLSX exports of stored documents.
type Service struct {
	repo   repository.DocumentRepository
	logger *slog.Logger
}

func NewService(repo repository.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportDocumentsXLSX exports the newest limit documents with their pages.
func (s *Service) ExportDocumentsXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	recs, err := s.repo.List(ctx, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	entries := make([]Entry, 0, len(recs))
	for _, r := range recs {
		full, err := s.repo.Get(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("load document %s: %w", r.ID, err)
		}
		entries = append(entries, FromRecord(full))
	}

	b, err := WriteXLSX(entries)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"rows", len(entries),
		"bytes", len(b),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b, nil
}

// FromRecord maps a stored document onto an export entry.
func FromRecord(r *repository.DocumentRecord) Entry {
	doc := r.ProcessedDocument
	return Entry{
		ID:          r.ID.String(),
		ContentHash: r.ContentHash,
		CreatedAt:   r.CreatedAt,
		Document:    &doc,
	}
}
