package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

type ctxKey string

const (
	ctxKeyContentHash ctxKey = "ocr.content_hash_hex"
)

// WithContentHash stores the hex-encoded SHA256 for downstream reuse.
func WithContentHash(ctx context.Context, hex string) context.Context {
	return context.WithValue(ctx, ctxKeyContentHash, hex)
}

func contentHashFromCtx(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyContentHash).(string)
	return v, ok && v != ""
}

// HEICConverter turns HEIC/HEIF phone photos into PNG bytes with an external
// tool. When a cache dir is configured, results are kept at
//
//	{cacheDir}/{sha256}.png
//
// and reused for identical content.
type HEICConverter struct {
	converter string
	cacheDir  string
	runner    Runner
	logger    *slog.Logger
}

func NewHEICConverter(cfg Config, runner Runner, logger *slog.Logger) *HEICConverter {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return &HEICConverter{
		converter: cfg.HeicConverter,
		cacheDir:  cfg.ArtifactCacheDir,
		runner:    runner,
		logger:    logger,
	}
}

func (c *HEICConverter) ConvertToPNG(ctx context.Context, data []byte) ([]byte, error) {
	hashHex, ok := contentHashFromCtx(ctx)
	if !ok {
		sum := sha256.Sum256(data)
		hashHex = hex.EncodeToString(sum[:])
	}

	var cached string
	if c.cacheDir != "" {
		cached = filepath.Join(c.cacheDir, hashHex+".png")
		if b, err := os.ReadFile(cached); err == nil {
			c.logger.Debug("using cached heic->png", "cache", cached)
			return b, nil
		}
	}

	tmpDir, err := os.MkdirTemp("", "docproc-heic-*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	in := filepath.Join(tmpDir, "in.heic")
	out := filepath.Join(tmpDir, "page.png")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, err
	}

	switch c.converter {
	case "heif-convert":
		if _, errb, err := c.runner.Run(ctx, "heif-convert", in, out); err != nil {
			return nil, fmt.Errorf("heif-convert failed: %w: %s", err, truncate(string(errb), 512))
		}
	case "magick":
		if _, errb, err := c.runner.Run(ctx, "magick", in, out); err != nil {
			return nil, fmt.Errorf("magick convert failed: %w: %s", err, truncate(string(errb), 512))
		}
	case "sips":
		if _, errb, err := c.runner.Run(ctx, "sips", "-s", "format", "png", in, "--out", out); err != nil {
			return nil, fmt.Errorf("sips convert failed: %w: %s", err, truncate(string(errb), 512))
		}
	default:
		return nil, fmt.Errorf("HEIC not supported: set the HEIC converter to one of: heif-convert | magick | sips")
	}

	b, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}

	if cached != "" {
		if err := writeFileAtomic(cached, b); err != nil {
			// the PNG is still usable without the cache
			c.logger.Warn("failed to cache heic->png", "cache", cached, "error", err)
		} else {
			c.logger.Debug("cached heic->png", "cache", cached)
		}
	}
	return b, nil
}

func writeFileAtomic(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".heic-*.png")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
