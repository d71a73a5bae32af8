package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docproc/constants"
	"github.com/joseph-ayodele/docproc/internal/common"
	"github.com/joseph-ayodele/docproc/internal/document"
	"github.com/joseph-ayodele/docproc/internal/imaging"
)

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DocumentRecord is a stored ProcessedDocument. Page images are not kept.
type DocumentRecord struct {
	ID          uuid.UUID `json:"id"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
	document.ProcessedDocument
}

type DocumentRepository interface {
	// Save stores doc, replacing an earlier record with the same content hash.
	Save(ctx context.Context, doc *document.ProcessedDocument, contentHash string) (*DocumentRecord, error)
	Get(ctx context.Context, id uuid.UUID) (*DocumentRecord, error)
	GetByHash(ctx context.Context, contentHash string) (*DocumentRecord, error)
	ExistsByHash(ctx context.Context, contentHash string) (bool, error)
	// List returns records newest first, without pages.
	List(ctx context.Context, limit, offset int) ([]DocumentRecord, error)
}

type documentRepository struct {
	db  *DB
	now func() time.Time
}

func NewDocumentRepository(db *DB) DocumentRepository {
	return &documentRepository{db: db, now: time.Now}
}

var documentColumns = []string{
	"id", "content_hash", "filename", "document_type", "total_pages",
	"full_text", "average_confidence", "processing_notes", "created_at",
}

var pageColumns = []string{
	"document_id", "page_number", "extracted_text", "confidence",
	"extraction_method", "preprocessing_applied", "quality",
}

func (r *documentRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.dialect)
}

func (r *documentRepository) Save(ctx context.Context, doc *document.ProcessedDocument, contentHash string) (*DocumentRecord, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", common.ErrInvalidInput)
	}
	rec := &DocumentRecord{
		ID:                uuid.New(),
		ContentHash:       contentHash,
		CreatedAt:         r.now().UTC(),
		ProcessedDocument: *doc,
	}
	notes, err := json.Marshal(nonNil(doc.ProcessingNotes))
	if err != nil {
		return nil, err
	}

	tx, err := r.db.drv.Tx(ctx)
	if err != nil {
		return nil, r.dbError("begin tx", err)
	}
	if err := r.save(ctx, tx, rec, string(notes)); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			r.db.logger.Warn("rollback failed", "error", rerr)
		}
		r.db.logger.Error("failed to save document", "filename", doc.Filename, "hash", contentHash, "error", err)
		return nil, r.dbError("save document", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, r.dbError("commit", err)
	}
	r.db.logger.Info("document saved", "id", rec.ID, "filename", rec.Filename, "pages", rec.TotalPages)
	return rec, nil
}

func (r *documentRepository) save(ctx context.Context, tx dialect.Tx, rec *DocumentRecord, notes string) error {
	b := r.builder()

	prior, err := r.idsByHash(ctx, tx, rec.ContentHash)
	if err != nil {
		return err
	}
	if len(prior) > 0 {
		ids := make([]any, len(prior))
		for i, id := range prior {
			ids[i] = id
		}
		q, args := b.Delete(pagesTable).Where(entsql.In("document_id", ids...)).Query()
		if err := tx.Exec(ctx, q, args, nil); err != nil {
			return err
		}
		q, args = b.Delete(documentsTable).Where(entsql.In("id", ids...)).Query()
		if err := tx.Exec(ctx, q, args, nil); err != nil {
			return err
		}
	}

	q, args := b.Insert(documentsTable).
		Columns(documentColumns...).
		Values(
			rec.ID.String(), rec.ContentHash, rec.Filename, string(rec.DocumentType), rec.TotalPages,
			rec.FullText, rec.AverageConfidence, notes, rec.CreatedAt.Format(timeLayout),
		).Query()
	if err := tx.Exec(ctx, q, args, nil); err != nil {
		return err
	}
	if len(rec.Pages) == 0 {
		return nil
	}

	ins := b.Insert(pagesTable).Columns(pageColumns...)
	for _, p := range rec.Pages {
		applied, err := json.Marshal(nonNil(p.PreprocessingApplied))
		if err != nil {
			return err
		}
		quality, err := json.Marshal(p.Quality)
		if err != nil {
			return err
		}
		ins.Values(rec.ID.String(), p.PageNumber, p.ExtractedText, p.Confidence,
			string(p.ExtractionMethod), string(applied), string(quality))
	}
	q, args = ins.Query()
	return tx.Exec(ctx, q, args, nil)
}

func (r *documentRepository) idsByHash(ctx context.Context, tx dialect.Tx, hash string) ([]string, error) {
	q, args := r.builder().Select("id").
		From(entsql.Table(documentsTable)).
		Where(entsql.EQ("content_hash", hash)).
		Query()
	rows := &entsql.Rows{}
	if err := tx.Query(ctx, q, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *documentRepository) Get(ctx context.Context, id uuid.UUID) (*DocumentRecord, error) {
	return r.getOne(ctx, entsql.EQ("id", id.String()), id.String())
}

func (r *documentRepository) GetByHash(ctx context.Context, contentHash string) (*DocumentRecord, error) {
	return r.getOne(ctx, entsql.EQ("content_hash", contentHash), contentHash)
}

func (r *documentRepository) ExistsByHash(ctx context.Context, contentHash string) (bool, error) {
	_, err := r.GetByHash(ctx, contentHash)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (r *documentRepository) getOne(ctx context.Context, pred *entsql.Predicate, key string) (*DocumentRecord, error) {
	recs, err := r.query(ctx, pred, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, common.NewAppError(common.CodeNotFound, "document "+key, common.ErrNotFound)
	}
	rec := &recs[0]
	if rec.Pages, err = r.pages(ctx, rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *documentRepository) List(ctx context.Context, limit, offset int) ([]DocumentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.query(ctx, nil, limit, offset)
}

func (r *documentRepository) query(ctx context.Context, pred *entsql.Predicate, limit, offset int) ([]DocumentRecord, error) {
	sel := r.builder().Select(documentColumns...).
		From(entsql.Table(documentsTable)).
		OrderBy(entsql.Desc("created_at")).
		Limit(limit)
	if offset > 0 {
		sel.Offset(offset)
	}
	if pred != nil {
		sel.Where(pred)
	}
	q, args := sel.Query()

	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, q, args, rows); err != nil {
		return nil, r.dbError("query documents", err)
	}
	defer rows.Close()

	var out []DocumentRecord
	for rows.Next() {
		var (
			rec              DocumentRecord
			id, docType      string
			notes, createdAt string
			err              error
		)
		if err = rows.Scan(&id, &rec.ContentHash, &rec.Filename, &docType, &rec.TotalPages,
			&rec.FullText, &rec.AverageConfidence, &notes, &createdAt); err != nil {
			return nil, r.dbError("scan document", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, r.dbError("parse document id", err)
		}
		rec.DocumentType, _ = constants.ParseDocumentType(docType)
		if err := json.Unmarshal([]byte(notes), &rec.ProcessingNotes); err != nil {
			return nil, r.dbError("decode notes", err)
		}
		if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, r.dbError("parse created_at", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, r.dbError("iterate documents", err)
	}
	return out, nil
}

func (r *documentRepository) pages(ctx context.Context, id uuid.UUID) ([]document.ProcessedPage, error) {
	q, args := r.builder().Select(pageColumns[1:]...).
		From(entsql.Table(pagesTable)).
		Where(entsql.EQ("document_id", id.String())).
		OrderBy(entsql.Asc("page_number")).
		Query()

	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, q, args, rows); err != nil {
		return nil, r.dbError("query pages", err)
	}
	defer rows.Close()

	var out []document.ProcessedPage
	for rows.Next() {
		var (
			p                document.ProcessedPage
			method           string
			applied, quality string
		)
		if err := rows.Scan(&p.PageNumber, &p.ExtractedText, &p.Confidence, &method, &applied, &quality); err != nil {
			return nil, r.dbError("scan page", err)
		}
		p.ExtractionMethod, _ = constants.ParseExtractionMethod(method)
		if err := json.Unmarshal([]byte(applied), &p.PreprocessingApplied); err != nil {
			return nil, r.dbError("decode preprocessing", err)
		}
		var qm imaging.QualityMetrics
		if err := json.Unmarshal([]byte(quality), &qm); err != nil {
			return nil, r.dbError("decode quality", err)
		}
		p.Quality = qm
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, r.dbError("iterate pages", err)
	}
	return out, nil
}

func (r *documentRepository) dbError(msg string, err error) error {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return common.NewAppError(common.CodeDatabase, msg, fmt.Errorf("%w: %w", common.ErrDatabase, err))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
