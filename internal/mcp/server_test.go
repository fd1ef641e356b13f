package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/doc-intake/internal/extract"
	"github.com/joseph-ayodele/doc-intake/internal/ingest"
	"github.com/joseph-ayodele/doc-intake/internal/ocr"
	"github.com/joseph-ayodele/doc-intake/internal/pipeline"
)

const card = "Name: Ravi Kumar\nDOB: 05/03/1988\nGender: F\n1234 5678 9012"

func newServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fx, err := extract.NewRulesExtractor(nil, true, logger)
	require.NoError(t, err)
	tx := extract.NewOCRAdapter(ocr.NewExtractor(ocr.Config{ArtifactCacheDir: t.TempDir()}, logger))
	proc := pipeline.NewProcessor(logger, ingest.NewFSIngestor(nil, logger), tx, fx, nil, pipeline.Config{})
	s, err := NewServer(Config{}, proc, logger)
	require.NoError(t, err)
	return s
}

func call(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func TestNewServer_NilProcessor(t *testing.T) {
	_, err := NewServer(Config{}, nil, nil)
	assert.Error(t, err)
}

func TestHandleExtractFields(t *testing.T) {
	s := newServer(t)

	res, err := s.handleExtractFields(context.Background(), call(map[string]any{"text": card}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var out toolResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, "Ravi Kumar", out.Fields.FullName)
	assert.Equal(t, "1988-03-05", out.Fields.DateOfBirth)
	assert.Equal(t, "1234 5678 9012", out.Fields.IDNumber)
	assert.Equal(t, "Female", out.Fields.Gender)
	assert.False(t, out.NeedsReview)

	res, err = s.handleExtractFields(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleOCRDocument(t *testing.T) {
	s := newServer(t)
	p := filepath.Join(t.TempDir(), "card.txt")
	require.NoError(t, os.WriteFile(p, []byte(card), 0o644))

	res, err := s.handleOCRDocument(context.Background(), call(map[string]any{"path": p}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	var out toolResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, "plain-text", out.Method)
	assert.Equal(t, "Ravi Kumar", out.Fields.FullName)

	res, err = s.handleOCRDocument(context.Background(), call(map[string]any{"path": filepath.Join(t.TempDir(), "card.docx")}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServe(t *testing.T) {
	s := newServer(t)
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"extract_identity_fields","arguments":{"text":"Passport No: K1234567"}}}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, s.Serve(context.Background(), strings.NewReader(in), &out))

	responses := map[float64]map[string]any{}
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var msg map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &msg))
		if id, ok := msg["id"].(float64); ok {
			responses[id] = msg
		}
	}
	require.Len(t, responses, 3)

	tools := responses[2]["result"].(map[string]any)["tools"].([]any)
	var names []string
	for _, tl := range tools {
		names = append(names, tl.(map[string]any)["name"].(string))
	}
	assert.ElementsMatch(t, []string{ToolExtractFields, ToolOCRDocument}, names)

	content := responses[3]["result"].(map[string]any)["content"].([]any)
	assert.Contains(t, content[0].(map[string]any)["text"], `"documentNumber": "K1234567"`)
}
