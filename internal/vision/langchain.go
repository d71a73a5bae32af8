package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/docproc/internal/extract"
	"github.com/joseph-ayodele/docproc/internal/ocr"
)

// LangChainExtractor adapts any langchaingo model with image input to the
// extraction capability.
type LangChainExtractor struct {
	model   llms.Model
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ extract.Extractor = (*LangChainExtractor)(nil)

func NewLangChainExtractor(model llms.Model, cfg Config, logger *slog.Logger) *LangChainExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LangChainExtractor{model: model, cfg: cfg, limiter: cfg.limiter(), logger: logger}
}

// NewOpenAIModel builds a langchaingo OpenAI model from cfg.
func NewOpenAIModel(cfg Config) (llms.Model, error) {
	cfg = cfg.withDefaults()
	opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithBaseURL(cfg.BaseURL)}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init langchain openai: %w", err)
	}
	return m, nil
}

func (e *LangChainExtractor) Extract(ctx context.Context, img image.Image) (extract.Result, error) {
	start := time.Now()
	if err := e.limiter.Wait(ctx); err != nil {
		return extract.Result{}, fmt.Errorf("rate limit wait: %w", err)
	}
	pngBytes, err := encodeForUpload(img, e.cfg.MaxImageMB<<20)
	if err != nil {
		return extract.Result{}, err
	}

	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart("image/png", pngBytes),
				llms.TextPart("Transcribe this page."),
			},
		},
	}
	resp, err := e.model.GenerateContent(ctx, msgs,
		llms.WithTemperature(float64(e.cfg.Temperature)),
		llms.WithMaxTokens(4096),
	)
	if err != nil {
		e.logger.Error("vision.langchain.error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return extract.Result{}, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return extract.Result{}, errors.New("empty response from model")
	}

	text, conf, _ := parseReply(resp.Choices[0].Content)
	e.logger.Info("vision.langchain.ok", "chars", len(text), "confidence", conf, "elapsed_ms", time.Since(start).Milliseconds())
	return extract.Result{Text: ocr.Normalize(text), Confidence: conf}, nil
}
