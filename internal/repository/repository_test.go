package repository

import (
	"context"
	"testing"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docproc/constants"
	"github.com/joseph-ayodele/docproc/internal/common"
	"github.com/joseph-ayodele/docproc/internal/document"
	"github.com/joseph-ayodele/docproc/internal/imaging"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{Driver: "sqlite", DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func sampleDoc(name string) *document.ProcessedDocument {
	return document.Assemble(name, constants.ScannedPDF, []document.ProcessedPage{
		{
			PageNumber:           2,
			ExtractedText:        "second",
			Confidence:           0.3,
			ExtractionMethod:     constants.OCR,
			PreprocessingApplied: []string{"grayscale_conversion", "deskew_2.0_degrees"},
			Quality:              imaging.QualityMetrics{QualityScore: 35, IsLowQuality: true},
		},
		{
			PageNumber:       1,
			ExtractedText:    "first",
			Confidence:       0.9,
			ExtractionMethod: constants.VisionModel,
		},
	})
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(openTestDB(t))

	rec, err := repo.Save(ctx, sampleDoc("lease.pdf"), "abc123")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, rec.ID)

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "abc123", got.ContentHash)
	assert.Equal(t, "lease.pdf", got.Filename)
	assert.Equal(t, constants.ScannedPDF, got.DocumentType)
	assert.Equal(t, 2, got.TotalPages)
	assert.Equal(t, "first"+document.PageBreak+"second", got.FullText)
	assert.InDelta(t, 0.6, got.AverageConfidence, 1e-9)
	assert.Equal(t, []string{"Page 2: Low confidence extraction (0.30)"}, got.ProcessingNotes)
	assert.WithinDuration(t, rec.CreatedAt, got.CreatedAt, time.Microsecond)

	require.Len(t, got.Pages, 2)
	assert.Equal(t, 1, got.Pages[0].PageNumber)
	assert.Equal(t, constants.VisionModel, got.Pages[0].ExtractionMethod)
	assert.Empty(t, got.Pages[0].PreprocessingApplied)
	assert.Equal(t, []string{"grayscale_conversion", "deskew_2.0_degrees"}, got.Pages[1].PreprocessingApplied)
	assert.True(t, got.Pages[1].Quality.IsLowQuality)
	assert.Equal(t, 35.0, got.Pages[1].Quality.QualityScore)
}

func TestSaveReplacesSameHash(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(openTestDB(t))

	first, err := repo.Save(ctx, sampleDoc("a.pdf"), "h1")
	require.NoError(t, err)
	second, err := repo.Save(ctx, sampleDoc("a-renamed.pdf"), "h1")
	require.NoError(t, err)

	_, err = repo.Get(ctx, first.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	got, err := repo.GetByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, "a-renamed.pdf", got.Filename)
	assert.Len(t, got.Pages, 2)
}

func TestExistsByHash(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(openTestDB(t))

	ok, err := repo.ExistsByHash(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Save(ctx, document.Assemble("empty.png", constants.Image, nil), "h-empty")
	require.NoError(t, err)
	ok, err = repo.ExistsByHash(ctx, "h-empty")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewDocumentRepository(db).(*documentRepository)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		at := base.Add(time.Duration(i) * time.Minute)
		repo.now = func() time.Time { return at }
		_, err := repo.Save(ctx, sampleDoc(name), name)
		require.NoError(t, err)
	}

	recs, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c.pdf", recs[0].Filename)
	assert.Equal(t, "b.pdf", recs[1].Filename)
	assert.Nil(t, recs[0].Pages)

	recs, err = repo.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a.pdf", recs[0].Filename)
}

func TestGetMissing(t *testing.T) {
	_, err := NewDocumentRepository(openTestDB(t)).Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveNil(t *testing.T) {
	_, err := NewDocumentRepository(openTestDB(t)).Save(context.Background(), nil, "h")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.HealthCheck(context.Background(), time.Second))
	assert.Equal(t, "sqlite3", db.Dialect())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"}, nil)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func insertRawDocument(t *testing.T, db *DB, id, createdAt string) {
	t.Helper()
	q, args := entsql.Dialect(db.Dialect()).Insert(documentsTable).
		Columns(documentColumns...).
		Values(id, "h-"+id, "x.png", "image", 0, "", 0.0, "[]", createdAt).
		Query()
	require.NoError(t, db.drv.Exec(context.Background(), q, args, nil))
}

func TestListRejectsCorruptRows(t *testing.T) {
	ctx := context.Background()

	db := openTestDB(t)
	insertRawDocument(t, db, "not-a-uuid", "2024-01-02T03:04:05.000000000Z")
	_, err := NewDocumentRepository(db).List(ctx, 10, 0)
	assert.ErrorIs(t, err, common.ErrDatabase)
	assert.Contains(t, err.Error(), "parse document id")

	db = openTestDB(t)
	insertRawDocument(t, db, uuid.NewString(), "yesterday")
	_, err = NewDocumentRepository(db).List(ctx, 10, 0)
	assert.ErrorIs(t, err, common.ErrDatabase)
	assert.Contains(t, err.Error(), "parse created_at")
}
