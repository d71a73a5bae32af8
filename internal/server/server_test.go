package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docproc/constants"
	"github.com/joseph-ayodele/docproc/internal/common"
	"github.com/joseph-ayodele/docproc/internal/document"
	"github.com/joseph-ayodele/docproc/internal/pipeline"
	"github.com/joseph-ayodele/docproc/internal/repository"
)

type stubProcessor struct{}

func (stubProcessor) Process(_ context.Context, data []byte, filename string) (*document.ProcessedDocument, error) {
	if string(data) == "bad" {
		return nil, common.UnsupportedFormatError("no renderer for %s", filename)
	}
	return document.Assemble(filename, document.Classify(data, filename), []document.ProcessedPage{
		{PageNumber: 1, ExtractedText: string(data), Confidence: 0.8, ExtractionMethod: constants.OCR},
	}), nil
}

func (stubProcessor) Capabilities() pipeline.Capabilities {
	return pipeline.Capabilities{OCR: true}
}

func newRepo(t *testing.T) repository.DocumentRepository {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenSQLite(ctx, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	return repository.NewDocumentRepository(db)
}

func newService(t *testing.T) (*DocumentService, repository.DocumentRepository) {
	repo := newRepo(t)
	return NewDocumentService(stubProcessor{}, repo, nil), repo
}
