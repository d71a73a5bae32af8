package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/docproc/constants"
	"github.com/joseph-ayodele/docproc/internal/common"
)

// FSIngestor reads documents from the local filesystem and fingerprints
// them by content. A file is deduplicated when its hash was already seen
// in this ingestor's lifetime or is known to the HashIndex.
type FSIngestor struct {
	index  HashIndex
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]string // hash -> first path
}

// NewFSIngestor returns an ingestor; index may be nil.
func NewFSIngestor(index HashIndex, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{
		index:  index,
		logger: logger,
		seen:   make(map[string]string),
	}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (Result, error) {
	var out Result

	abs, err := filepath.Abs(path)
	if err != nil {
		i.logger.Error("abs path error", "path", path, "error", err)
		return out, err
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		i.logger.Warn("unsupported or missing extension", "path", abs, "ext", ext)
		return out, common.UnsupportedFormatError("unsupported or missing extension %q", ext)
	}

	sum, size, err := hashFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out, fmt.Errorf("%w: %s", common.ErrNotFound, abs)
		}
		i.logger.Error("hash error", "path", abs, "error", err)
		return out, err
	}
	hashHex := hex.EncodeToString(sum)

	dedup, err := i.markSeen(ctx, hashHex, abs)
	if err != nil {
		return out, err
	}

	out = Result{
		SourcePath:   abs,
		HashHex:      hashHex,
		FileExt:      ext,
		Size:         size,
		Deduplicated: dedup,
		IngestedAt:   time.Now().UTC(),
	}
	i.logger.Debug("ingested file", "path", abs, "hash", hashHex, "deduplicated", dedup)
	return out, nil
}

func (i *FSIngestor) markSeen(ctx context.Context, hashHex, path string) (bool, error) {
	i.mu.Lock()
	first, ok := i.seen[hashHex]
	if !ok {
		i.seen[hashHex] = path
	}
	i.mu.Unlock()
	if ok {
		return first != path, nil
	}
	if i.index == nil {
		return false, nil
	}
	exists, err := i.index.ExistsByHash(ctx, hashHex)
	if err != nil {
		i.logger.Error("hash lookup failed", "hash", hashHex, "error", err)
		return false, fmt.Errorf("lookup hash: %w", err)
	}
	return exists, nil
}

func hashFile(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, 0, err
	}
	return h.Sum(nil), n, nil
}

// IngestDirectory walks root, skips hidden if requested,
// and calls IngestPath for each file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]Result, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, fmt.Errorf("%w: root path is required", common.ErrInvalidInput)
	}

	var results []Result
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Result{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			results = append(results, Result{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}

		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})

	i.logger.Info("directory ingested",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
