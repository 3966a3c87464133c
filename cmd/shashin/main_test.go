package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/shashin/internal/models"
)

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"sunset"}, "sunset"},
		{"multiple words", []string{"sunset", "beach"}, "sunset beach"},
		{"single quoted phrase", []string{"dog on the beach"}, "dog on the beach"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
storage:
  database_path: "./photos.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS the cwd can be /private/var/... while t.TempDir() is /var/...
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "custom.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestLoadConfig_missingFile(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestSearchViaHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/search" {
			http.NotFound(w, r)
			return
		}
		var q models.SearchQuery
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if q.Query == "fail" {
			http.Error(w, `{"error":"query too long"}`, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(models.SearchResponse{
			Query:        q.Query,
			Results:      []*models.SearchResult{{PhotoID: 7, Filename: "sunset.jpg", Rank: 1}},
			TotalResults: 1,
		})
	}))
	defer srv.Close()

	resp, err := searchViaHTTP(srv.URL+"/", &models.SearchQuery{Query: "sunset", TopK: 3})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Query != "sunset" || resp.TotalResults != 1 || resp.Results[0].PhotoID != 7 {
		t.Errorf("unexpected response: %+v", resp)
	}

	_, err = searchViaHTTP(srv.URL, &models.SearchQuery{Query: "fail"})
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("expected 400 error, got %v", err)
	}
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("shashin %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestVersionCmd(t *testing.T) {
	out := execute(t, "version")
	if out != "shashin version test\n" {
		t.Errorf("version output = %q", out)
	}
}

func TestCommands_IngestSearchStats(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./photos.db"
  bleve_index_path: "./keyword.bleve"
  vector_index_path: "./photos.idx"
  upload_dir: "./uploads"
embedding:
  dimensions: 16
  cache_size: 16
search:
  max_distance: 4
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	photos := filepath.Join(dir, "inbox")
	if err := os.MkdirAll(photos, 0755); err != nil {
		t.Fatal(err)
	}
	for name, body := range map[string]string{
		"sunset.jpg":   "sunset pixels",
		"mountain.png": "mountain pixels",
		"notes.txt":    "not an image",
	} {
		if err := os.WriteFile(filepath.Join(photos, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}

	out := execute(t, "--config", configPath, "ingest", photos)
	if !strings.Contains(out, "Ingested 2 photo(s)") {
		t.Errorf("ingest output = %q", out)
	}

	var stats models.Stats
	out = execute(t, "--config", configPath, "stats", "-o", "json")
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats %q: %v", out, err)
	}
	if stats.TotalPhotos != 2 || stats.TotalEmbeddings != 2 || stats.Dimension != 16 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	var resp models.SearchResponse
	out = execute(t, "--config", configPath, "search", "sunset", "-o", "json")
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode search %q: %v", out, err)
	}
	found := false
	for _, r := range resp.Results {
		if r.Filename == "sunset.jpg" {
			found = true
		}
	}
	if !found {
		t.Errorf("sunset.jpg not in results: %+v", resp.Results)
	}

	out = execute(t, "--config", configPath, "reindex")
	if !strings.HasPrefix(out, "Re-embedded 2 photo(s)") {
		t.Errorf("reindex output = %q", out)
	}
}

func TestWatchCmd_AddListRemove(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  port: 9000\n"), 0600); err != nil {
		t.Fatal(err)
	}
	inbox := filepath.Join(dir, "inbox")

	out := execute(t, "--config", configPath, "watch", "add", inbox)
	if out != "Added: "+inbox+"\n" {
		t.Errorf("add output = %q", out)
	}
	out = execute(t, "--config", configPath, "watch", "add", inbox)
	if !strings.HasPrefix(out, "Already watched") {
		t.Errorf("second add output = %q", out)
	}
	out = execute(t, "--config", configPath, "watch", "list")
	if out != inbox+"\n" {
		t.Errorf("list output = %q", out)
	}

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("saved config lost server port: %d", cfg.Server.Port)
	}

	execute(t, "--config", configPath, "watch", "remove", inbox)
	out = execute(t, "--config", configPath, "watch", "list")
	if out != "" {
		t.Errorf("list after remove = %q", out)
	}
}
