package loader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// HTTP fetches templates from a base URL and keeps a copy of each one in
// Dir. Cached copies are revalidated with ETag/Last-Modified and served
// as-is when the server cannot be reached.
type HTTP struct {
	BaseURL   string
	Dir       string
	Extension string
	Client    *http.Client
	Logger    *slog.Logger
	// Backoff is the wait before the first retry of a failed fetch. It
	// doubles on each further attempt.
	Backoff time.Duration
}

// NewHTTP returns a loader with a reasonable default HTTP client.
func NewHTTP(baseURL, dir string) *HTTP {
	return &HTTP{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Dir:       dir,
		Extension: DefaultExtension,
		Client:    &http.Client{Timeout: 30 * time.Second},
		Logger:    slog.Default(),
		Backoff:   time.Second,
	}
}

type meta struct {
	URL          string `json:"url"`
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	DataFile     string `json:"data_file"`
}

func (l *HTTP) Load(name string) (string, error) {
	return l.LoadContext(context.Background(), name)
}

// LoadContext is Load with cancellation.
func (l *HTTP) LoadContext(ctx context.Context, name string) (string, error) {
	path, err := l.fetch(ctx, l.url(name))
	if err != nil {
		if err == errMissing {
			return "", &NotFoundError{Name: name}
		}
		return "", fmt.Errorf("fetch %s: %w", name, err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (l *HTTP) url(name string) string {
	name = strings.TrimPrefix(name, "/")
	if l.Extension != "" && !strings.HasSuffix(name, l.Extension) {
		name += l.Extension
	}
	return l.BaseURL + "/" + name
}

type statusError int

func (e statusError) Error() string { return fmt.Sprintf("HTTP %d", int(e)) }

var errMissing = statusError(http.StatusNotFound)

// fetch returns the local path of an up to date copy of url.
func (l *HTTP) fetch(ctx context.Context, url string) (string, error) {
	key := hash(url)
	mpath := filepath.Join(l.Dir, key+".json")
	dataFile := key + ".data"
	var m meta
	if b, err := os.ReadFile(mpath); err == nil {
		_ = json.Unmarshal(b, &m)
		if m.URL != url || m.DataFile == "" || !fileExists(filepath.Join(l.Dir, m.DataFile)) {
			m = meta{}
		}
	}

	if m.DataFile != "" {
		path, err := l.get(ctx, url, &m, mpath, dataFile)
		if err == nil {
			return path, nil
		}
		if err == errMissing {
			return "", err
		}
		l.logger().Warn("revalidation failed, serving cached template", "url", url, "error", err)
		return filepath.Join(l.Dir, m.DataFile), nil
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		path, err := l.get(ctx, url, &meta{}, mpath, dataFile)
		if err == nil {
			return path, nil
		}
		if code, ok := err.(statusError); ok && code < 500 {
			return "", err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.Backoff << attempt):
		}
	}
	return "", lastErr
}

// get performs one request, conditional when m carries validators, and
// stores a fresh body together with its metadata.
func (l *HTTP) get(ctx context.Context, url string, m *meta, mpath, dataFile string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if m.ETag != "" {
		req.Header.Set("If-None-Match", m.ETag)
	}
	if m.LastModified != "" {
		req.Header.Set("If-Modified-Since", m.LastModified)
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotModified && m.DataFile != "" {
		l.logger().Debug("template not modified", "url", url)
		return filepath.Join(l.Dir, m.DataFile), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(resp.StatusCode)
	}
	path := filepath.Join(l.Dir, dataFile)
	if err := streamToFile(resp.Body, path, 0o644); err != nil {
		return "", err
	}
	nm := meta{
		URL:          url,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		DataFile:     dataFile,
	}
	if err := writeMeta(mpath, nm); err != nil {
		return "", err
	}
	l.logger().Debug("template downloaded", "url", url, "path", path)
	return path, nil
}

func (l *HTTP) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func streamToFile(r io.Reader, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	if err := os.Chmod(f.Name(), mode); err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	return renameOrRemove(f.Name(), dst)
}

func writeMeta(path string, m meta) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return streamToFile(bytes.NewReader(b), path, 0o644)
}

// renameOrRemove moves a finished temp file into place, dropping it on failure.
func renameOrRemove(tmp, dst string) error {
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
