package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "UNICONNECT_CONFIG", "CHUNK_SIZE", "CHUNK_OVERLAP", "RAG_TOP_K", "RAG_PREVIEW_CHARS",
		"DOCUMENTS_DIR", "INDEX_DIR", "DOCUMENT_EXTENSIONS", "LLM_PROVIDER", "LLM_TEMPERATURE", "NATS_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Fatalf("expected 1000/200 chunking, got %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.RAGTopK != 4 || cfg.RAGPreviewChars != 300 {
		t.Fatalf("expected top k 4 and preview 300, got %d/%d", cfg.RAGTopK, cfg.RAGPreviewChars)
	}
	if cfg.DocumentsDir != "./data/pdfs" || cfg.IndexDir != "./data/vector_store" {
		t.Fatalf("unexpected dirs %q %q", cfg.DocumentsDir, cfg.IndexDir)
	}
	if !slices.Equal(cfg.DocumentExtensions, []string{".pdf"}) {
		t.Fatalf("unexpected extensions %v", cfg.DocumentExtensions)
	}
	if cfg.LLMProvider != ProviderOllama || cfg.LLMTemperature != 0.7 {
		t.Fatalf("unexpected llm defaults %q %v", cfg.LLMProvider, cfg.LLMTemperature)
	}
	if cfg.NATSURL != "" {
		t.Fatalf("queue must be disabled by default")
	}
}

func TestLoadYAMLOverlayBelowEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uniconnect.yaml")
	yaml := strings.Join([]string{
		"CHUNK_SIZE: 800",
		"CHUNK_OVERLAP: 100",
		"RAG_TOP_K: 6",
		"document_extensions: [.pdf, .xlsx, .md]",
		"WATCH_DOCUMENTS: true",
	}, "\n")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	clearEnv(t, "CHUNK_SIZE", "CHUNK_OVERLAP", "DOCUMENT_EXTENSIONS", "WATCH_DOCUMENTS", "LLM_PROVIDER")
	t.Setenv("UNICONNECT_CONFIG", path)
	t.Setenv("RAG_TOP_K", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkSize != 800 || cfg.ChunkOverlap != 100 {
		t.Fatalf("expected yaml chunking, got %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.RAGTopK != 3 {
		t.Fatalf("environment must win over yaml, got %d", cfg.RAGTopK)
	}
	if !slices.Equal(cfg.DocumentExtensions, []string{".pdf", ".xlsx", ".md"}) {
		t.Fatalf("unexpected extensions %v", cfg.DocumentExtensions)
	}
	if !cfg.WatchDocuments {
		t.Fatalf("expected watcher enabled from yaml")
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "unknown provider", env: map[string]string{"LLM_PROVIDER": "bard"}, want: "LLM_PROVIDER"},
		{name: "openai without key", env: map[string]string{"LLM_PROVIDER": "openai", "OPENAI_API_KEY": ""}, want: "OPENAI_API_KEY"},
		{name: "overlap too large", env: map[string]string{"CHUNK_SIZE": "100", "CHUNK_OVERLAP": "100"}, want: "CHUNK_OVERLAP"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t, "UNICONNECT_CONFIG", "LLM_PROVIDER", "OPENAI_API_KEY", "CHUNK_SIZE", "CHUNK_OVERLAP")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}

func TestResilienceConversion(t *testing.T) {
	cfg := build(func(string) string { return "" })
	rc := cfg.Resilience()
	if rc.RetryMaxAttempts != 3 || rc.RetryInitialBackoff != 200*time.Millisecond || rc.BreakerOpenTimeout != 30*time.Second {
		t.Fatalf("unexpected resilience config: %#v", rc)
	}
	if cfg.LLMTimeout() != 120*time.Second {
		t.Fatalf("unexpected llm timeout %v", cfg.LLMTimeout())
	}
}
