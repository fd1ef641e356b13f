package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joseph-ayodele/doc-intake/internal/extract"
	"github.com/joseph-ayodele/doc-intake/internal/fields"
	"github.com/joseph-ayodele/doc-intake/internal/pipeline"
)

const (
	ToolExtractFields = "extract_identity_fields"
	ToolOCRDocument   = "ocr_identity_document"
)

// Config names the server and the owner files are ingested for.
type Config struct {
	Name    string
	Version string
	OwnerID string
}

// Server exposes field extraction as MCP tools.
type Server struct {
	cfg       Config
	processor *pipeline.Processor
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg Config, proc *pipeline.Processor, logger *slog.Logger) (*Server, error) {
	if proc == nil {
		return nil, errors.New("processor cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "doc-intake"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.OwnerID == "" {
		cfg.OwnerID = "local"
	}

	s := &Server{
		cfg:       cfg,
		processor: proc,
		logger:    logger,
		mcpServer: server.NewMCPServer(
			cfg.Name,
			cfg.Version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	extractTool := mcp.NewTool(
		ToolExtractFields,
		mcp.WithDescription("Extract identity fields (name, date of birth, Aadhar number, gender, address, document number) from OCR text"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Recognized text of an identity document"),
		),
		mcp.WithBoolean("clean",
			mcp.Description("Strip OCR noise before extracting"),
			mcp.DefaultBool(true),
		),
	)
	s.mcpServer.AddTool(extractTool, s.handleExtractFields)

	ocrTool := mcp.NewTool(
		ToolOCRDocument,
		mcp.WithDescription("Run OCR on an identity document (PDF, image or text file) and extract its fields"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the document"),
		),
	)
	s.mcpServer.AddTool(ocrTool, s.handleOCRDocument)
}

type toolResult struct {
	Fields      fields.ExtractedFields `json:"fields"`
	NeedsReview bool                   `json:"needsReview"`
	Reasons     []string               `json:"reasons,omitempty"`
	Method      string                 `json:"method,omitempty"`
	Pages       int                    `json:"pages,omitempty"`
	Confidence  float32                `json:"ocrConfidence,omitempty"`
	Warnings    []string               `json:"warnings,omitempty"`
	Text        string                 `json:"text,omitempty"`
}

func (s *Server) handleExtractFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hints := map[string]string{
		extract.HintPreClean: strconv.FormatBool(request.GetBool("clean", true)),
	}
	x, err := s.processor.ProcessText(ctx, text, hints)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.jsonResult(toolResult{
		Fields:      x.Fields.Fields,
		NeedsReview: x.NeedsReview,
		Reasons:     x.Reasons,
	})
}

func (s *Server) handleOCRDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	x, err := s.processor.ProcessFile(ctx, s.cfg.OwnerID, path)
	if err != nil {
		s.logger.Warn("mcp.ocr.failed", "path", path, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.jsonResult(toolResult{
		Fields:      x.Fields.Fields,
		NeedsReview: x.NeedsReview,
		Reasons:     x.Reasons,
		Method:      x.OCR.Method,
		Pages:       x.OCR.Pages,
		Confidence:  x.OCR.Confidence,
		Warnings:    x.Warnings,
		Text:        x.OCR.Text,
	})
}

func (s *Server) jsonResult(v toolResult) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// Run serves the tools over stdio until the input closes or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads JSON-RPC requests from in and writes responses to out.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("starting mcp server on stdio", "name", s.cfg.Name, "version", s.cfg.Version)
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	if err := stdio.Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
