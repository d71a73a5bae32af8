package vision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DefaultConfidence is reported when the model does not give one.
const DefaultConfidence = 0.85

const systemPrompt = `You are a document OCR specialist. Extract ALL text from this document image.

Instructions:
1. Extract every word, number, and symbol visible
2. Preserve the document structure (paragraphs, lists, tables)
3. For tables, use | to separate columns
4. Include headers, footers, and any fine print
5. If text is unclear, make your best interpretation and mark with [unclear]
6. Do not add any commentary

Reply with a JSON object {"text": "<extracted text>", "confidence": <0..1>} and nothing else.`

// replySchema returns the JSON Schema a structured reply must satisfy.
func replySchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"text"},
		"properties": map[string]any{
			"text":       map[string]any{"type": "string"},
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
	}
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(replySchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("vision_reply.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("vision_reply.json")
})

// validateReply checks data against the reply schema.
func validateReply(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

type reply struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
}

// parseReply reads a model answer. Schema-valid JSON yields its text and
// confidence; anything else is taken verbatim as the transcription.
func parseReply(content string) (text string, confidence float64, structured bool) {
	raw := stripFences(strings.TrimSpace(content))
	if err := validateReply([]byte(raw)); err != nil {
		return content, DefaultConfidence, false
	}
	var r reply
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return content, DefaultConfidence, false
	}
	confidence = DefaultConfidence
	if r.Confidence != nil {
		confidence = *r.Confidence
	}
	return r.Text, confidence, true
}

// stripFences removes a surrounding ```json ... ``` block.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
