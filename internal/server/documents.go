// Package server exposes the document pipeline over gRPC, HTTP and MCP.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docproc/constants"
	"github.com/joseph-ayodele/docproc/internal/common"
	"github.com/joseph-ayodele/docproc/internal/document"
	"github.com/joseph-ayodele/docproc/internal/pipeline"
	"github.com/joseph-ayodele/docproc/internal/repository"
)

// Processor is satisfied by *pipeline.Processor.
type Processor interface {
	Process(ctx context.Context, data []byte, filename string) (*document.ProcessedDocument, error)
	Capabilities() pipeline.Capabilities
}

// Result is a processed document plus its storage identity. ID is empty
// when persistence is disabled.
type Result struct {
	ID          string `json:"id,omitempty"`
	ContentHash string `json:"content_hash"`
	*document.ProcessedDocument
}

// DocumentService is the transport-independent core shared by every server.
type DocumentService struct {
	proc   Processor
	repo   repository.DocumentRepository
	logger *slog.Logger
}

// NewDocumentService wires the service; repo may be nil.
func NewDocumentService(proc Processor, repo repository.DocumentRepository, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{proc: proc, repo: repo, logger: logger}
}

func (s *DocumentService) Capabilities() pipeline.Capabilities {
	return s.proc.Capabilities()
}

// Process runs the pipeline and stores the result when a repository is set.
func (s *DocumentService) Process(ctx context.Context, data []byte, filename string) (*Result, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", common.ErrInvalidInput)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	doc, err := s.proc.Process(ctx, data, filename)
	if err != nil {
		s.logger.Warn("process document failed", "request_id", rid, "filename", filename, "error", err)
		return nil, err
	}
	res := &Result{ContentHash: hash, ProcessedDocument: doc}
	if s.repo != nil {
		rec, err := s.repo.Save(ctx, doc, hash)
		if err != nil {
			return nil, err
		}
		res.ID = rec.ID.String()
	}
	s.logger.Info("document processed",
		"request_id", rid,
		"id", res.ID,
		"filename", filename,
		"pages", doc.TotalPages,
		"average_confidence", doc.AverageConfidence,
	)
	return res, nil
}

// ProcessPath reads a local file and processes it under its base name.
func (s *DocumentService) ProcessPath(ctx context.Context, path string) (*Result, error) {
	data, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return s.Process(ctx, data, filepath.Base(path))
}

// Classify reports the document type of a local file without processing it.
func (s *DocumentService) Classify(path string) (constants.DocumentType, error) {
	data, err := readDocument(path)
	if err != nil {
		return constants.Unknown, err
	}
	return document.Classify(data, filepath.Base(path)), nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*repository.DocumentRecord, error) {
	if s.repo == nil {
		return nil, common.NewAppError(common.CodeNotFound, "persistence is disabled", common.ErrNotFound)
	}
	id = strings.TrimSpace(id)
	if err := common.ValidateAndReturnError(common.NewValidator().Field("id", id, common.Required, common.UUID)); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, uuid.MustParse(id))
}

func (s *DocumentService) List(ctx context.Context, limit, offset int) ([]repository.DocumentRecord, error) {
	if s.repo == nil {
		return []repository.DocumentRecord{}, nil
	}
	return s.repo.List(ctx, limit, offset)
}

func readDocument(path string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: path is required", common.ErrInvalidInput)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", common.ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
