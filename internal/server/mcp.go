package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers the document tools on an MCP server.
func (s *DocumentService) RegisterMCP(srv *mcp.Server) {
	srv.AddTool(&mcp.Tool{
		Name:        "process_document",
		Description: "Extract text from a PDF or image file, page by page, with confidence and extraction method per page.",
		InputSchema: pathSchema("Path of the document to process"),
	}, s.toolHandler(func(ctx context.Context, path string) (any, error) {
		return s.ProcessPath(ctx, path)
	}))

	srv.AddTool(&mcp.Tool{
		Name:        "classify_document",
		Description: "Classify a file as native_pdf, scanned_pdf, image or unknown without extracting text.",
		InputSchema: pathSchema("Path of the document to classify"),
	}, s.toolHandler(func(_ context.Context, path string) (any, error) {
		t, err := s.Classify(path)
		if err != nil {
			return nil, err
		}
		return map[string]string{"path": path, "document_type": string(t)}, nil
	}))
}

func pathSchema(description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": description},
		},
		"required": []string{"path"},
	}
}

type pathArgs struct {
	Path string `json:"path"`
}

func (s *DocumentService) toolHandler(fn func(context.Context, string) (any, error)) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args pathArgs
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
		}
		out, err := fn(ctx, args.Path)
		if err != nil {
			s.logger.Warn("mcp.tool.failed", "tool", req.Params.Name, "path", args.Path, "error", err)
			return toolError(err), nil
		}
		data, err := json.Marshal(out)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	}
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
