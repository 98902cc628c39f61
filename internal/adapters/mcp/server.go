// Package mcpadapter exposes the assistant as MCP tools over stdio.
package mcpadapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/uniconnect/internal/core/domain"
	"github.com/kirillkom/uniconnect/internal/core/ports"
)

const serverName = "uniconnect"

type Server struct {
	assistant ports.Assistant
	mcp       *server.MCPServer
	logger    *slog.Logger
}

func NewServer(assistant ports.Assistant, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		assistant: assistant,
		logger:    logger,
		mcp: server.NewMCPServer(serverName, version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
			server.WithInstructions("Answers questions for international students using the indexed university documents. Call process_documents once before asking."),
		),
	}

	s.mcp.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Answer a question using the indexed documents and cite the sources."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question to answer.")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleAsk)

	s.mcp.AddTool(mcp.NewTool("process_documents",
		mcp.WithDescription("Rebuild the semantic index from every document in the documents directory."),
		mcp.WithDestructiveHintAnnotation(false),
	), s.handleProcessDocuments)

	s.mcp.AddTool(mcp.NewTool("add_document",
		mcp.WithDescription("Append one document to the current index without reprocessing the others."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the PDF, text or spreadsheet file.")),
		mcp.WithDestructiveHintAnnotation(false),
	), s.handleAddDocument)

	s.mcp.AddTool(mcp.NewTool("clear_memory",
		mcp.WithDescription("Forget the conversation history."),
	), s.handleClearMemory)

	s.mcp.AddTool(mcp.NewTool("index_status",
		mcp.WithDescription("Report whether an index is loaded and how it was built."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleIndexStatus)

	return s
}

// MCPServer returns the underlying server, mainly for tests.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Serve speaks JSON-RPC on in/out until ctx is done or in is closed.
// stdout belongs to the protocol, so transport errors go to the logger.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("mcp_server_started", "transport", "stdio")
	return stdio.Listen(ctx, in, out)
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answer, err := s.assistant.Ask(ctx, question)
	if err != nil {
		return s.toolError("ask", err), nil
	}
	return mcp.NewToolResultStructured(answer, formatAnswer(answer)), nil
}

func (s *Server) handleProcessDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.assistant.ProcessDocuments(ctx)
	if err != nil {
		return s.toolError("process_documents", err), nil
	}
	text := fmt.Sprintf("Processed %d documents into %d chunks.", report.Documents, report.Chunks)
	if len(report.Failed) > 0 {
		lines := []string{text, fmt.Sprintf("%d files could not be read:", len(report.Failed))}
		for _, failure := range report.Failed {
			lines = append(lines, fmt.Sprintf("- %s: %s", failure.Path, failure.Error))
		}
		text = strings.Join(lines, "\n")
	}
	return mcp.NewToolResultStructured(report, text), nil
}

func (s *Server) handleAddDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	chunks, err := s.assistant.AddDocument(ctx, path)
	if err != nil {
		return s.toolError("add_document", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Added %s (%d chunks).", path, chunks)), nil
}

func (s *Server) handleClearMemory(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.assistant.ClearMemory()
	return mcp.NewToolResultText("Conversation history cleared."), nil
}

func (s *Server) handleIndexStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := s.assistant.Status()
	text := "No index loaded. Run process_documents first."
	if status.Ready {
		text = fmt.Sprintf("Index ready: %d entries, embedding model %s.", status.Entries, status.EmbeddingModel)
	}
	return mcp.NewToolResultStructured(status, text), nil
}

func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.logger.Warn("mcp_tool_failed", "tool", tool, "error", err)
	if domain.IsKind(err, domain.ErrIndexUnavailable) {
		return mcp.NewToolResultError("Documents have not been processed yet. Call process_documents first.")
	}
	return mcp.NewToolResultError(err.Error())
}

func formatAnswer(answer *domain.Answer) string {
	if len(answer.Sources) == 0 {
		return answer.Text
	}
	var b strings.Builder
	b.WriteString(answer.Text)
	b.WriteString("\n\nSources:")
	for _, src := range answer.Sources {
		fmt.Fprintf(&b, "\n- %s (page %s)", src.Source, src.Page)
	}
	return b.String()
}
