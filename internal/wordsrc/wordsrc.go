// Package wordsrc loads the candidate word pool from a local file or a
// remote URL.
//
// Remote lists use a double fallback: URL first, then the on-disk cache
// written after the last successful download. If both fail, no pool is
// available and the run cannot start.
package wordsrc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"tools.zach/dev/wordsynth/internal/atomicfile"
)

// maxResponseBytes bounds a remote word list.
const maxResponseBytes = 64 << 20

// httpClient is a lazily-initialized retryablehttp client shared across
// fetches. Initialized once via httpClientOnce.
var (
	httpClient     *retryablehttp.Client
	httpClientOnce sync.Once
)

// getHTTPClient returns the shared retryable HTTP client, initializing it on
// first call.
func getHTTPClient() *retryablehttp.Client {
	httpClientOnce.Do(func() {
		httpClient = retryablehttp.NewClient()
		httpClient.RetryMax = 2
		httpClient.HTTPClient.Timeout = 10 * time.Second
		httpClient.Logger = nil
	})
	return httpClient
}

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Source describes where the word list lives.
type Source struct {
	// Kind is "file" or "url".
	Kind string
	// File is a newline list, or a JSON array when it ends in .json.
	File string
	// URL is fetched when Kind is "url".
	URL string
}

// ///////////////////////////////////////////////
// Fetch
// ///////////////////////////////////////////////

// Fetch returns the raw word list. For "url" sources the cache file at
// cachePath is refreshed on success and read when the download fails; the
// returned error is non-nil when the words came from the cache.
func Fetch(ctx context.Context, src Source, cachePath string) ([]string, error) {
	switch src.Kind {
	case "file":
		data, err := os.ReadFile(src.File)
		if err != nil {
			return nil, fmt.Errorf("read word list: %w", err)
		}
		return Parse(data, strings.EqualFold(filepath.Ext(src.File), ".json"))
	case "url":
		return fetchWithFallback(cachePath, func() ([]string, error) {
			return fetchFromURL(ctx, src.URL)
		})
	default:
		return nil, fmt.Errorf("unknown word source %q", src.Kind)
	}
}

// fetchWithFallback attempts the primary fetch, then the cache.
func fetchWithFallback(cachePath string, primary func() ([]string, error)) ([]string, error) {
	words, err := primary()
	if err == nil {
		if cacheErr := atomicfile.WriteJSON(cachePath, words, 0o644); cacheErr != nil {
			slog.Warn("failed to write word cache", "error", cacheErr)
		}
		return words, nil
	}
	slog.Warn("failed to fetch word list, trying cache", "error", err)

	data, cacheErr := os.ReadFile(cachePath)
	if cacheErr == nil {
		var cached []string
		if cacheErr = json.Unmarshal(data, &cached); cacheErr == nil {
			return cached, fmt.Errorf("using cached words: primary fetch failed: %w", err)
		}
	}
	return nil, fmt.Errorf("all word sources failed: primary: %w; cache: %w", err, cacheErr)
}

// fetchFromURL downloads and parses a word list. JSON is detected from the
// response content type or a leading '['.
func fetchFromURL(ctx context.Context, url string) ([]string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	if int64(len(body)) > maxResponseBytes {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", url, maxResponseBytes)
	}

	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "json") ||
		bytes.HasPrefix(bytes.TrimSpace(body), []byte("["))
	return Parse(body, isJSON)
}

// ///////////////////////////////////////////////
// Parsing
// ///////////////////////////////////////////////

// Parse decodes a word list. Plain lists hold one word per line; blank
// lines are skipped and a UTF-8 BOM is tolerated.
func Parse(data []byte, isJSON bool) ([]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if isJSON {
		var words []string
		if err := json.Unmarshal(data, &words); err != nil {
			return nil, fmt.Errorf("parse word list: %w", err)
		}
		return words, nil
	}

	var words []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if w := strings.TrimSpace(sc.Text()); w != "" {
			words = append(words, w)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parse word list: %w", err)
	}
	return words, nil
}
