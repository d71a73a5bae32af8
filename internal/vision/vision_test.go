package vision

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func page(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 13), B: uint8(x ^ y), A: 255})
		}
	}
	return img
}

func chatServer(t *testing.T, content string, check func(body map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if check != nil {
			check(body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
	}))
}

func TestClientStructuredReply(t *testing.T) {
	srv := chatServer(t, `{"text": "INVOICE\t\t#42\n\n\n\nTotal  9.99", "confidence": 0.93}`, func(body map[string]any) {
		assert.Equal(t, "gpt-4o-mini", body["model"])
		msgs := body["messages"].([]any)
		require.Len(t, msgs, 2)
		parts := msgs[1].(map[string]any)["content"].([]any)
		url := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
		assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

		img, err := DecodeImageBase64(url)
		require.NoError(t, err)
		assert.Equal(t, 20, img.Bounds().Dx())
	})
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil)
	res, err := c.Extract(context.Background(), page(20, 10))
	require.NoError(t, err)
	assert.Equal(t, "INVOICE #42\n\nTotal 9.99", res.Text)
	assert.Equal(t, 0.93, res.Confidence)
}

func TestClientUnstructuredReplyUsesDefaultConfidence(t *testing.T) {
	srv := chatServer(t, "Dear tenant,\nrent is due.", nil)
	defer srv.Close()

	res, err := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil).Extract(context.Background(), page(4, 4))
	require.NoError(t, err)
	assert.Equal(t, "Dear tenant,\nrent is due.", res.Text)
	assert.Equal(t, DefaultConfidence, res.Confidence)
}

func TestClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil).Extract(context.Background(), page(4, 4))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestClientHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(Config{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1", RequestsPerSecond: 0.001}, nil)
	_, err := c.Extract(ctx, page(4, 4))
	require.Error(t, err)
}

func TestParseReply(t *testing.T) {
	text, conf, ok := parseReply("```json\n{\"text\": \"hello\"}\n```")
	assert.True(t, ok)
	assert.Equal(t, "hello", text)
	assert.Equal(t, DefaultConfidence, conf)

	// out of range confidence fails the schema, so the whole reply is text
	text, conf, ok = parseReply(`{"text": "x", "confidence": 7}`)
	assert.False(t, ok)
	assert.Equal(t, `{"text": "x", "confidence": 7}`, text)
	assert.Equal(t, DefaultConfidence, conf)

	_, _, ok = parseReply(`{"confidence": 0.5}`)
	assert.False(t, ok)
}

func TestEncodeForUploadDownscales(t *testing.T) {
	img := page(400, 300)
	full, err := encodeForUpload(img, 0)
	require.NoError(t, err)

	limit := len(full) / 4
	small, err := encodeForUpload(img, limit)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(small), limit)

	decoded, err := DecodeImageBase64(dataURL(small))
	require.NoError(t, err)
	assert.Less(t, decoded.Bounds().Dx(), 400)
}

func TestImageBase64RoundTrip(t *testing.T) {
	s, err := EncodeImageBase64(page(5, 3))
	require.NoError(t, err)
	img, err := DecodeImageBase64(s)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 3), img.Bounds())

	_, err = DecodeImageBase64("%%%")
	assert.Error(t, err)
}

type fakeModel struct {
	content string
	err     error
	got     []llms.MessageContent
}

func (f *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = msgs
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.content}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, opts...)
}

func TestLangChainExtractor(t *testing.T) {
	m := &fakeModel{content: `{"text": "Section 1. Term", "confidence": 0.7}`}
	res, err := NewLangChainExtractor(m, Config{}, nil).Extract(context.Background(), page(6, 6))
	require.NoError(t, err)
	assert.Equal(t, "Section 1. Term", res.Text)
	assert.Equal(t, 0.7, res.Confidence)

	require.Len(t, m.got, 2)
	bin, ok := m.got[1].Parts[0].(llms.BinaryContent)
	require.True(t, ok)
	assert.Equal(t, "image/png", bin.MIMEType)

	m.err = errors.New("model offline")
	_, err = NewLangChainExtractor(m, Config{}, nil).Extract(context.Background(), page(6, 6))
	assert.ErrorContains(t, err, "model offline")
}
