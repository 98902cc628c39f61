package mcpadapter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/uniconnect/internal/core/domain"
)

type assistantFake struct {
	answer  *domain.Answer
	askErr  error
	report  *domain.ProcessReport
	added   []string
	cleared int
	ready   bool
}

func (f *assistantFake) ProcessDocuments(context.Context) (*domain.ProcessReport, error) {
	f.ready = true
	return f.report, nil
}

func (f *assistantFake) Initialize(context.Context) (bool, error) { return f.ready, nil }

func (f *assistantFake) AddDocument(_ context.Context, path string) (int, error) {
	f.added = append(f.added, path)
	return 2, nil
}

func (f *assistantFake) Ask(context.Context, string) (*domain.Answer, error) {
	if f.askErr != nil {
		return nil, f.askErr
	}
	return f.answer, nil
}

func (f *assistantFake) ClearMemory()                       { f.cleared++ }
func (f *assistantFake) History() []domain.ConversationTurn { return nil }

func (f *assistantFake) Status() domain.IndexStatus {
	return domain.IndexStatus{Ready: f.ready, Entries: 12, EmbeddingModel: "ollama/nomic-embed-text"}
}

func callTool(t *testing.T, s *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.MCPServer().GetTool(name)
	if tool == nil {
		t.Fatalf("tool %q is not registered", name)
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := tool.Handler(context.Background(), req)
	if err != nil {
		t.Fatalf("%s: handler error = %v", name, err)
	}
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatalf("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	return text.Text
}

func TestToolsAreRegistered(t *testing.T) {
	s := NewServer(&assistantFake{}, "test", nil)
	for _, name := range []string{"ask", "process_documents", "add_document", "clear_memory", "index_status"} {
		if s.MCPServer().GetTool(name) == nil {
			t.Fatalf("tool %q missing", name)
		}
	}
}

func TestAskToolFormatsSources(t *testing.T) {
	s := NewServer(&assistantFake{answer: &domain.Answer{
		Text: "Apply up to 90 days before your program end date.",
		Sources: []domain.SourceAttribution{
			{Content: "OPT applications may be filed 90 days before...", Source: "OPT_Guide.pdf", Page: "4"},
		},
	}}, "test", nil)

	result := callTool(t, s, "ask", map[string]any{"question": "How to apply for OPT?"})
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	text := resultText(t, result)
	if !strings.Contains(text, "90 days") || !strings.Contains(text, "- OPT_Guide.pdf (page 4)") {
		t.Fatalf("unexpected text: %q", text)
	}
	if result.StructuredContent == nil {
		t.Fatalf("expected structured answer")
	}
}

func TestAskToolReportsErrorsAsToolResults(t *testing.T) {
	s := NewServer(&assistantFake{
		askErr: domain.WrapError(domain.ErrIndexUnavailable, "ask", errors.New("not processed")),
	}, "test", nil)

	result := callTool(t, s, "ask", map[string]any{"question": "I-20 documents needed?"})
	if !result.IsError || !strings.Contains(resultText(t, result), "process_documents") {
		t.Fatalf("expected a not-ready tool error, got %#v", result)
	}

	result = callTool(t, s, "ask", map[string]any{})
	if !result.IsError {
		t.Fatalf("missing question must be a tool error")
	}
}

func TestProcessAndAddTools(t *testing.T) {
	assistant := &assistantFake{report: &domain.ProcessReport{
		Documents: 5,
		Chunks:    11,
		Failed:    []domain.IngestionFailure{{Path: "scan.pdf", Error: "no text layer"}},
	}}
	s := NewServer(assistant, "test", nil)

	text := resultText(t, callTool(t, s, "process_documents", nil))
	if !strings.HasPrefix(text, "Processed 5 documents into 11 chunks.") || !strings.Contains(text, "- scan.pdf: no text layer") {
		t.Fatalf("unexpected process text: %q", text)
	}

	text = resultText(t, callTool(t, s, "add_document", map[string]any{"path": "data/pdfs/Visa_Guide.pdf"}))
	if text != "Added data/pdfs/Visa_Guide.pdf (2 chunks)." || len(assistant.added) != 1 {
		t.Fatalf("unexpected add text: %q", text)
	}

	_ = callTool(t, s, "clear_memory", nil)
	if assistant.cleared != 1 {
		t.Fatalf("expected memory to be cleared once")
	}

	text = resultText(t, callTool(t, s, "index_status", nil))
	if text != "Index ready: 12 entries, embedding model ollama/nomic-embed-text." {
		t.Fatalf("unexpected status text: %q", text)
	}
}
