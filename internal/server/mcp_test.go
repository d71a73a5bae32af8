package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMCPImpl = &mcp.Implementation{Name: "docproc-test", Version: "0.1.0"}

func mcpSession(t *testing.T, svc *DocumentService) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	svc.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	session, err := mcp.NewClient(testMCPImpl, nil).Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, s *mcp.ClientSession, name string, args any) *mcp.CallToolResult {
	t.Helper()
	res, err := s.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func toolText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NoError(t, res.GetError())
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected TextContent")
	return tc.Text
}

func TestMCPTools(t *testing.T) {
	svc, _ := newService(t)
	session := mcpSession(t, svc)

	tools, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"process_document", "classify_document"}, names)

	path := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("kitchen receipt"), 0o644))

	var processed Result
	require.NoError(t, json.Unmarshal([]byte(toolText(t, callTool(t, session, "process_document", map[string]any{"path": path}))), &processed))
	assert.NotEmpty(t, processed.ID)
	assert.Equal(t, "photo.jpg", processed.Filename)
	assert.Equal(t, "kitchen receipt", processed.FullText)

	var classified map[string]string
	require.NoError(t, json.Unmarshal([]byte(toolText(t, callTool(t, session, "classify_document", map[string]any{"path": path}))), &classified))
	assert.Equal(t, "image", classified["document_type"])
}

func TestMCPToolErrors(t *testing.T) {
	svc, _ := newService(t)
	session := mcpSession(t, svc)

	res := callTool(t, session, "process_document", map[string]any{"path": filepath.Join(t.TempDir(), "missing.pdf")})
	assert.True(t, res.IsError)

	res = callTool(t, session, "classify_document", map[string]any{"path": ""})
	assert.True(t, res.IsError)
}
