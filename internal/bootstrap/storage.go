package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/docproc/constants"
	"github.com/joseph-ayodele/docproc/internal/async"
	"github.com/joseph-ayodele/docproc/internal/common"
	"github.com/joseph-ayodele/docproc/internal/repository"
)

// OpenRepository connects, pings and migrates the configured database.
func OpenRepository(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repository.DB, repository.DocumentRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := repository.Open(ctx, repository.ConfigFrom(cfg), logger)
	if err != nil {
		return nil, nil, err
	}
	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, repository.NewDocumentRepository(db), nil
}

// Persist returns a queue handler that stores every processed document
// under its job's content hash, then calls next when set.
func Persist(repo repository.DocumentRepository, logger *slog.Logger, next async.ResultHandler) async.ResultHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, o async.Outcome) {
		if o.Status == constants.JobStatusProcessed && o.Document != nil {
			if _, err := repo.Save(ctx, o.Document, o.Job.HashHex); err != nil {
				logger.Error("failed to store processed document", "path", o.Job.Path, "error", err)
				o.Status, o.Err = constants.JobStatusFailed, err
			}
		}
		if next != nil {
			next(ctx, o)
		}
	}
}
