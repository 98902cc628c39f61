package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/uniconnect/internal/config"
	"github.com/kirillkom/uniconnect/internal/core/domain"
	"github.com/kirillkom/uniconnect/internal/observability/metrics"
)

type assistantFake struct {
	mu sync.Mutex

	answer     *domain.Answer
	askErr     error
	processErr error
	initErr    error
	addErr     error
	ready      bool
	turns      []domain.ConversationTurn

	questions []string
	added     []string
	cleared   int
}

func (f *assistantFake) ProcessDocuments(context.Context) (*domain.ProcessReport, error) {
	if f.processErr != nil {
		return nil, f.processErr
	}
	f.ready = true
	return &domain.ProcessReport{
		Documents: 3,
		Chunks:    7,
		Failed:    []domain.IngestionFailure{{Path: "broken.pdf", Error: "malformed"}},
	}, nil
}

func (f *assistantFake) Initialize(context.Context) (bool, error) {
	if f.initErr != nil {
		return false, f.initErr
	}
	return f.ready, nil
}

func (f *assistantFake) AddDocument(_ context.Context, path string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return 0, f.addErr
	}
	f.added = append(f.added, path)
	f.ready = true
	return 4, nil
}

func (f *assistantFake) Ask(_ context.Context, question string) (*domain.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, question)
	if f.askErr != nil {
		return nil, f.askErr
	}
	if f.answer != nil {
		return f.answer, nil
	}
	return &domain.Answer{Text: "ok", Sources: []domain.SourceAttribution{}}, nil
}

func (f *assistantFake) ClearMemory() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	f.turns = nil
}

func (f *assistantFake) History() []domain.ConversationTurn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.turns
}

func (f *assistantFake) Status() domain.IndexStatus {
	if !f.ready {
		return domain.IndexStatus{}
	}
	return domain.IndexStatus{Ready: true, Entries: 7, EmbeddingModel: "ollama/nomic-embed-text", Dimension: 768}
}

func testConfig() config.Config {
	return config.Config{DocumentsDir: "data/pdfs"}
}

func newTestHandler(t *testing.T, cfg config.Config, assistant *assistantFake) http.Handler {
	t.Helper()
	handler, err := NewRouter(cfg, assistant, metrics.NewHTTPServerMetrics("uniconnect-test"), nil).Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	return handler
}

func doJSON(handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", res.Body.String(), err)
	}
	return out
}

func TestAskReturnsAnswerWithSources(t *testing.T) {
	assistant := &assistantFake{
		ready: true,
		answer: &domain.Answer{
			Text: "Keep full-time enrollment.",
			Sources: []domain.SourceAttribution{
				{Content: "F-1 students must maintain full-time enrollment.", Source: "Visa_Guide.pdf", Page: "2"},
			},
		},
	}
	handler := newTestHandler(t, testConfig(), assistant)

	res := doJSON(handler, http.MethodPost, "/v1/ask", `{"question":"What enrollment does an F-1 student need?"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var got domain.Answer
	if err := json.Unmarshal(res.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if got.Text != "Keep full-time enrollment." || len(got.Sources) != 1 || got.Sources[0].Page != "2" {
		t.Fatalf("unexpected answer: %#v", got)
	}
	if assistant.questions[0] != "What enrollment does an F-1 student need?" {
		t.Fatalf("question not forwarded: %#v", assistant.questions)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestAskRejectsBodiesOutsideSchema(t *testing.T) {
	assistant := &assistantFake{ready: true}
	handler := newTestHandler(t, testConfig(), assistant)

	cases := []struct {
		name string
		body string
	}{
		{name: "missing question", body: `{}`},
		{name: "empty question", body: `{"question":""}`},
		{name: "wrong type", body: `{"question":42}`},
		{name: "unknown field", body: `{"question":"OPT?","top_k":9}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := doJSON(handler, http.MethodPost, "/v1/ask", tc.body)
			if res.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", res.Code, res.Body.String())
			}
			if decodeBody(t, res)["code"] != "invalid_request" {
				t.Fatalf("unexpected error body: %s", res.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"OPT?"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without content type, got %d", res.Code)
	}
	if len(assistant.questions) != 0 {
		t.Fatalf("invalid requests must not reach the assistant")
	}
}

func TestProcessDocumentsReturnsReport(t *testing.T) {
	handler := newTestHandler(t, testConfig(), &assistantFake{})

	res := doJSON(handler, http.MethodPost, "/v1/documents/process", "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var report domain.ProcessReport
	if err := json.Unmarshal(res.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Documents != 3 || report.Chunks != 7 || len(report.Failed) != 1 {
		t.Fatalf("unexpected report: %#v", report)
	}
}

func TestAddDocumentStaysInsideDocumentsDir(t *testing.T) {
	assistant := &assistantFake{}
	handler := newTestHandler(t, testConfig(), assistant)

	res := doJSON(handler, http.MethodPost, "/v1/documents", `{"path":"OPT_Guide.pdf"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	root, _ := filepath.Abs("data/pdfs")
	if want := filepath.Join(root, "OPT_Guide.pdf"); assistant.added[0] != want {
		t.Fatalf("expected %s, got %s", want, assistant.added[0])
	}
	if decodeBody(t, res)["chunks"] != float64(4) {
		t.Fatalf("unexpected body: %s", res.Body.String())
	}

	for _, path := range []string{"../secrets.pdf", "/etc/passwd"} {
		res := doJSON(handler, http.MethodPost, "/v1/documents", `{"path":"`+path+`"}`)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, res.Code)
		}
	}
	if len(assistant.added) != 1 {
		t.Fatalf("escaping paths must not reach the assistant: %#v", assistant.added)
	}
}

func TestAddDocumentRejectsSymlinksLeavingDocumentsDir(t *testing.T) {
	base := t.TempDir()
	docs := filepath.Join(base, "docs")
	outside := filepath.Join(base, "private")
	for _, dir := range []string{docs, outside} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	for _, path := range []string{filepath.Join(outside, "secret.pdf"), filepath.Join(docs, "Housing.pdf")} {
		if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	links := map[string]string{
		"leak.pdf":     filepath.Join(outside, "secret.pdf"),
		"private":      outside,
		"dangling.pdf": filepath.Join(outside, "later.pdf"),
		"alias.pdf":    filepath.Join(docs, "Housing.pdf"),
	}
	for name, target := range links {
		if err := os.Symlink(target, filepath.Join(docs, name)); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
	}

	assistant := &assistantFake{}
	handler := newTestHandler(t, config.Config{DocumentsDir: docs}, assistant)
	for _, path := range []string{"leak.pdf", "private/secret.pdf", "dangling.pdf"} {
		res := doJSON(handler, http.MethodPost, "/v1/documents", `{"path":"`+path+`"}`)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", path, res.Code, res.Body.String())
		}
	}
	if len(assistant.added) != 0 {
		t.Fatalf("escaping symlinks must not reach the assistant: %#v", assistant.added)
	}

	for _, path := range []string{"alias.pdf", "Housing.pdf", "not-yet-uploaded.pdf"} {
		res := doJSON(handler, http.MethodPost, "/v1/documents", `{"path":"`+path+`"}`)
		if res.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, res.Code, res.Body.String())
		}
	}
}

func TestReadyzFollowsIndexState(t *testing.T) {
	assistant := &assistantFake{}
	handler := newTestHandler(t, testConfig(), assistant)

	res := doJSON(handler, http.MethodGet, "/readyz", "")
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before indexing, got %d", res.Code)
	}

	assistant.ready = true
	res = doJSON(handler, http.MethodGet, "/readyz", "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 once ready, got %d", res.Code)
	}

	res = doJSON(handler, http.MethodGet, "/v1/index", "")
	if res.Code != http.StatusOK || decodeBody(t, res)["embedding_model"] != "ollama/nomic-embed-text" {
		t.Fatalf("unexpected index status: %d %s", res.Code, res.Body.String())
	}
}

func TestHistoryAndClear(t *testing.T) {
	assistant := &assistantFake{turns: []domain.ConversationTurn{{Question: "OPT?", Answer: "Apply 90 days early."}}}
	handler := newTestHandler(t, testConfig(), assistant)

	res := doJSON(handler, http.MethodGet, "/v1/history", "")
	var body struct {
		Turns []domain.ConversationTurn `json:"turns"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(body.Turns) != 1 || body.Turns[0].Answer != "Apply 90 days early." {
		t.Fatalf("unexpected history: %#v", body.Turns)
	}

	res = doJSON(handler, http.MethodDelete, "/v1/history", "")
	if res.Code != http.StatusNoContent || assistant.cleared != 1 {
		t.Fatalf("expected 204 and one clear, got %d/%d", res.Code, assistant.cleared)
	}

	res = doJSON(handler, http.MethodGet, "/v1/history", "")
	if !strings.Contains(res.Body.String(), `"turns":[]`) {
		t.Fatalf("expected empty turns array, got %s", res.Body.String())
	}
}

func TestSuggestions(t *testing.T) {
	handler := newTestHandler(t, testConfig(), &assistantFake{})

	res := doJSON(handler, http.MethodGet, "/v1/suggestions", "")
	var body struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode suggestions: %v", err)
	}
	if len(body.Questions) != 3 || body.Questions[1] != "How to apply for OPT?" {
		t.Fatalf("unexpected suggestions: %#v", body.Questions)
	}
}

func TestMetricsEndpointReportsRequests(t *testing.T) {
	handler := newTestHandler(t, testConfig(), &assistantFake{})
	_ = doJSON(handler, http.MethodGet, "/healthz", "")

	res := doJSON(handler, http.MethodGet, "/metrics", "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `uniconnect_http_requests_total{`) {
		t.Fatalf("expected request counter in scrape:\n%s", res.Body.String())
	}
}
