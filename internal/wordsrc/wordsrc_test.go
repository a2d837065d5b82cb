package wordsrc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// ///////////////////////////////////////////////
// Parse
// ///////////////////////////////////////////////

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		isJSON bool
		want   []string
	}{
		{"lines", "كتاب\n\n  قلم \r\n", false, []string{"كتاب", "قلم"}},
		{"bom", "\xef\xbb\xbfword\n", false, []string{"word"}},
		{"json array", `["a","b"]`, true, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.data), tt.isJSON)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := Parse([]byte(`{"not":"an array"}`), true); err == nil {
		t.Error("expected error for non-array JSON")
	}
}

// ///////////////////////////////////////////////
// File Source
// ///////////////////////////////////////////////

func TestFetchFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "words.json")
	if err := os.WriteFile(p, []byte(`["alpha","beta"]`), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Fetch(context.Background(), Source{Kind: "file", File: p}, filepath.Join(dir, "cache.json"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if diff := cmp.Diff([]string{"alpha", "beta"}, got); diff != "" {
		t.Errorf("words mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchFileMissing(t *testing.T) {
	_, err := Fetch(context.Background(), Source{Kind: "file", File: filepath.Join(t.TempDir(), "none.txt")}, "")
	if err == nil {
		t.Fatal("expected error for missing word list")
	}
}

func TestFetchUnknownKind(t *testing.T) {
	if _, err := Fetch(context.Background(), Source{Kind: "ftp"}, ""); err == nil {
		t.Fatal("expected error for unknown source kind")
	}
}

// ///////////////////////////////////////////////
// URL Source (via httptest)
// ///////////////////////////////////////////////

func TestFetchURLWritesCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("كتاب\nقلم\n"))
	}))
	defer server.Close()

	cache := filepath.Join(t.TempDir(), "words-cache.json")
	got, err := Fetch(context.Background(), Source{Kind: "url", URL: server.URL}, cache)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if diff := cmp.Diff([]string{"كتاب", "قلم"}, got); diff != "" {
		t.Errorf("words mismatch (-want +got):\n%s", diff)
	}
	data, err := os.ReadFile(cache)
	if err != nil {
		t.Fatalf("cache not written: %v", err)
	}
	if !strings.Contains(string(data), "قلم") {
		t.Errorf("cache content = %q", data)
	}
}

func TestFetchURLFallsBackToCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cache := filepath.Join(t.TempDir(), "words-cache.json")
	if err := os.WriteFile(cache, []byte(`["cached"]`), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Fetch(context.Background(), Source{Kind: "url", URL: server.URL}, cache)
	if err == nil {
		t.Fatal("expected non-nil error signalling cache fallback")
	}
	if diff := cmp.Diff([]string{"cached"}, got); diff != "" {
		t.Errorf("words mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchURLAndCacheFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	got, err := Fetch(context.Background(), Source{Kind: "url", URL: server.URL}, filepath.Join(t.TempDir(), "none.json"))
	if err == nil || got != nil {
		t.Fatalf("Fetch = (%v, %v), want (nil, error)", got, err)
	}
	if !strings.Contains(err.Error(), "all word sources failed") {
		t.Errorf("unexpected error: %v", err)
	}
}
