package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/uniconnect/internal/config"
	"github.com/kirillkom/uniconnect/internal/core/domain"
	"github.com/kirillkom/uniconnect/internal/core/ports"
	"github.com/kirillkom/uniconnect/internal/observability/metrics"
)

const (
	serviceName  = "api"
	maxBodyBytes = 1 << 20
)

// SuggestedQuestions are offered to clients that have nothing to ask yet.
var SuggestedQuestions = []string{
	"F-1 visa requirements?",
	"How to apply for OPT?",
	"I-20 documents needed?",
}

type Router struct {
	assistant    ports.Assistant
	metrics      *metrics.HTTPServerMetrics
	logger       *slog.Logger
	documentsDir string
	rateRPS      float64
	rateBurst    int
}

func NewRouter(cfg config.Config, assistant ports.Assistant, httpMetrics *metrics.HTTPServerMetrics, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		assistant:    assistant,
		metrics:      httpMetrics,
		logger:       logger,
		documentsDir: cfg.DocumentsDir,
		rateRPS:      cfg.APIRateLimitRPS,
		rateBurst:    cfg.APIRateLimitBurst,
	}
}

// Handler assembles routes and middleware. It fails only if the embedded
// OpenAPI document is invalid.
func (rt *Router) Handler() (http.Handler, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /readyz", rt.readyz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("POST /v1/documents/process", rt.processDocuments)
	mux.HandleFunc("POST /v1/documents", rt.addDocument)
	mux.HandleFunc("POST /v1/index/initialize", rt.initializeIndex)
	mux.HandleFunc("GET /v1/index", rt.indexStatus)
	mux.HandleFunc("POST /v1/ask", rt.ask)
	mux.HandleFunc("GET /v1/history", rt.history)
	mux.HandleFunc("DELETE /v1/history", rt.clearHistory)
	mux.HandleFunc("GET /v1/suggestions", rt.suggestions)

	var handler http.Handler = validator.middleware(mux)
	handler = rt.rateLimitMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = rt.accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler, nil
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readyz(w http.ResponseWriter, _ *http.Request) {
	if !rt.assistant.Status().Ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "index_not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (rt *Router) processDocuments(w http.ResponseWriter, r *http.Request) {
	report, err := rt.assistant.ProcessDocuments(r.Context())
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) addDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	path, err := rt.resolveDocumentPath(req.Path)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}

	chunks, err := rt.assistant.AddDocument(r.Context(), path)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":   path,
		"chunks": chunks,
		"index":  rt.assistant.Status(),
	})
}

func (rt *Router) initializeIndex(w http.ResponseWriter, r *http.Request) {
	loaded, err := rt.assistant.Initialize(r.Context())
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"loaded": loaded,
		"index":  rt.assistant.Status(),
	})
}

func (rt *Router) indexStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.assistant.Status())
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	answer, err := rt.assistant.Ask(r.Context(), req.Question)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) history(w http.ResponseWriter, _ *http.Request) {
	turns := rt.assistant.History()
	if turns == nil {
		turns = []domain.ConversationTurn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func (rt *Router) clearHistory(w http.ResponseWriter, _ *http.Request) {
	rt.assistant.ClearMemory()
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) suggestions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"questions": SuggestedQuestions})
}

// resolveDocumentPath keeps HTTP callers inside the documents directory.
// Relative paths are taken relative to it.
func (rt *Router) resolveDocumentPath(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "add document", errors.New("path is required"))
	}
	root, err := filepath.Abs(rt.documentsDir)
	if err != nil {
		return "", fmt.Errorf("resolve documents dir: %w", err)
	}
	path := raw
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	outside := domain.WrapError(domain.ErrInvalidInput, "add document", fmt.Errorf("path %q is outside the documents directory", raw))
	if !within(root, path) {
		return "", outside
	}

	// Symlinks inside the directory must not lead out of it.
	realRoot, err := evalExisting(root)
	if err != nil {
		return "", fmt.Errorf("resolve documents dir: %w", err)
	}
	realPath, err := evalExisting(path)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "add document", err)
	}
	if !within(realRoot, realPath) {
		return "", outside
	}
	return path, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// evalExisting resolves symlinks in the longest existing prefix of path and
// appends the missing remainder unchanged.
func evalExisting(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	if _, lerr := os.Lstat(path); lerr == nil {
		return "", fmt.Errorf("%s is a dangling symlink", path)
	}
	parent := filepath.Dir(path)
	if parent == path {
		return path, nil
	}
	resolvedParent, err := evalExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(path)), nil
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapError(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"code", code,
			"error", err,
		)
	}
	writeError(w, status, code, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
