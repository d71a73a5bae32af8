package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
)

// ChainRenderer tries each renderer in order and returns the first success.
type ChainRenderer struct {
	renderers []PDFRenderer
	logger    *slog.Logger
}

func NewChainRenderer(logger *slog.Logger, renderers ...PDFRenderer) *ChainRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChainRenderer{renderers: renderers, logger: logger}
}

func (c *ChainRenderer) Name() string { return "chain" }

func (c *ChainRenderer) RenderPages(ctx context.Context, data []byte, dpi int) ([]image.Image, error) {
	if len(c.renderers) == 0 {
		return nil, errors.New("no pdf renderers configured")
	}
	var errs []error
	for _, r := range c.renderers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages, err := r.RenderPages(ctx, data, dpi)
		if err == nil {
			return pages, nil
		}
		c.logger.Warn("pdf renderer failed, trying next", "renderer", rendererName(r), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", rendererName(r), err))
	}
	return nil, errors.Join(errs...)
}
