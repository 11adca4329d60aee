package artifacts

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"bindery/internal/config"
)

// ErrNotFound indicates a reference with no stored document behind it.
var ErrNotFound = errors.New("artifact not found")

// Store persists generated documents and resolves references into URLs the
// print vendor can fetch.
type Store interface {
	// Put writes a document and returns its durable reference.
	Put(ctx context.Context, orderID, name string, data []byte, contentType string) (string, error)
	// URL resolves a reference into a fetchable URL.
	URL(ref string) (string, error)
	// Open returns the stored bytes for a reference.
	Open(ref string) ([]byte, error)
}

// FileStore keeps documents on the local filesystem under a documents
// directory that a fronting web server exposes at a public base URL.
type FileStore struct {
	root    string
	baseURL string
}

// NewFileStore builds a FileStore from configuration.
func NewFileStore(cfg *config.Config) (*FileStore, error) {
	root := strings.TrimSpace(cfg.Paths.DocumentsDir)
	if root == "" {
		return nil, errors.New("documents directory not configured")
	}
	baseURL := strings.TrimSpace(cfg.Documents.PublicBaseURL)
	if baseURL == "" {
		return nil, errors.New("documents public base url not configured")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse public base url: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create documents directory: %w", err)
	}
	return &FileStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put stores document bytes under a fresh unique reference. An existing
// file is never overwritten.
func (s *FileStore) Put(ctx context.Context, orderID, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("refusing to store empty document")
	}
	orderID = sanitizeSegment(orderID)
	if orderID == "" {
		return "", errors.New("order id required")
	}

	ext := extensionFor(contentType, name)
	base := sanitizeSegment(strings.TrimSuffix(name, filepath.Ext(name)))
	if base == "" {
		base = "document"
	}
	ref := path.Join(orderID, fmt.Sprintf("%s-%s%s", base, uuid.NewString()[:8], ext))

	fullPath := filepath.Join(s.root, filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}

	// Exclusive create keeps references write-once even on a uuid clash.
	file, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create artifact file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}
	return ref, nil
}

// URL maps a stored reference to its public URL.
func (s *FileStore) URL(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("empty artifact reference")
	}
	escaped := make([]string, 0, 4)
	for _, segment := range strings.Split(ref, "/") {
		escaped = append(escaped, url.PathEscape(segment))
	}
	return s.baseURL + "/" + strings.Join(escaped, "/"), nil
}

// Open reads back a stored document.
func (s *FileStore) Open(ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.Contains(ref, "..") {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(ref)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

func extensionFor(contentType, name string) string {
	switch contentType {
	case "application/pdf":
		return ".pdf"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	}
	if ext := filepath.Ext(name); ext != "" {
		return ext
	}
	return ".bin"
}

func sanitizeSegment(value string) string {
	var builder strings.Builder
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			builder.WriteRune(r)
		case r == ' ':
			builder.WriteRune('-')
		}
	}
	return builder.String()
}
