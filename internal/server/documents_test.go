package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docproc/constants"
	"github.com/joseph-ayodele/docproc/internal/common"
)

func TestDocumentServiceProcessStores(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	res, err := svc.Process(ctx, []byte("hello"), "note.png")
	require.NoError(t, err)
	require.NotEmpty(t, res.ID)
	assert.Len(t, res.ContentHash, 64)
	assert.Equal(t, "hello", res.FullText)

	ok, err := repo.ExistsByHash(ctx, res.ContentHash)
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := svc.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "note.png", rec.Filename)

	recs, err := svc.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestDocumentServiceWithoutRepository(t *testing.T) {
	svc := NewDocumentService(stubProcessor{}, nil, nil)
	ctx := context.Background()

	res, err := svc.Process(ctx, []byte("hello"), "note.png")
	require.NoError(t, err)
	assert.Empty(t, res.ID)

	_, err = svc.Get(ctx, "0b6e7f2c-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, common.ErrNotFound)

	recs, err := svc.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDocumentServiceErrors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Process(ctx, []byte("x"), "  ")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = svc.Process(ctx, []byte("bad"), "x.bin")
	assert.ErrorIs(t, err, common.ErrUnsupportedFormat)

	_, err = svc.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Contains(t, err.Error(), "must be a valid UUID")
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))

	_, err = svc.Get(ctx, " ")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Contains(t, err.Error(), "is required")

	_, err = svc.ProcessPath(ctx, filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDocumentServiceClassify(t *testing.T) {
	svc, _ := newService(t)
	dir := t.TempDir()
	native := filepath.Join(dir, "lease.pdf")
	require.NoError(t, os.WriteFile(native, []byte("%PDF-1.4 /Type /Page BT (x) Tj ET"), 0o644))
	scanned := filepath.Join(dir, "scan.PDF")
	require.NoError(t, os.WriteFile(scanned, []byte("%PDF-1.4 /Type /Page /XObject"), 0o644))

	got, err := svc.Classify(native)
	require.NoError(t, err)
	assert.Equal(t, constants.NativePDF, got)
	got, err = svc.Classify(scanned)
	require.NoError(t, err)
	assert.Equal(t, constants.ScannedPDF, got)
}
