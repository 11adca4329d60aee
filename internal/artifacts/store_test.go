package artifacts

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"bindery/internal/config"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DocumentsDir = t.TempDir()
	cfg.Documents.PublicBaseURL = "https://docs.example.com/books"

	store, err := NewFileStore(&cfg)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return store
}

func TestPutAndOpenRoundTrip(t *testing.T) {
	store := newTestStore(t)
	payload := []byte("%PDF-1.4 fake interior")

	ref, err := store.Put(context.Background(), "order-1", "interior", payload, "application/pdf")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasPrefix(ref, "order-1/") || !strings.HasSuffix(ref, ".pdf") {
		t.Fatalf("unexpected reference shape: %q", ref)
	}

	got, err := store.Open(ref)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("stored bytes differ from input")
	}
}

func TestPutNeverReusesReferences(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Put(ctx, "order-1", "cover", []byte("v1"), "application/pdf")
	if err != nil {
		t.Fatalf("first put: %v", err)
	}
	second, err := store.Put(ctx, "order-1", "cover", []byte("v2"), "application/pdf")
	if err != nil {
		t.Fatalf("second put: %v", err)
	}
	if first == second {
		t.Fatalf("regeneration reused reference %q", first)
	}

	old, err := store.Open(first)
	if err != nil {
		t.Fatalf("open first: %v", err)
	}
	if string(old) != "v1" {
		t.Fatal("earlier artifact was mutated by regeneration")
	}
}

func TestPutRejectsEmptyDocument(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Put(context.Background(), "order-1", "interior", nil, "application/pdf"); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestURLIsUnderPublicBase(t *testing.T) {
	store := newTestStore(t)

	ref, err := store.Put(context.Background(), "order 7", "interior", []byte("x"), "application/pdf")
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	fetchURL, err := store.URL(ref)
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	if !strings.HasPrefix(fetchURL, "https://docs.example.com/books/") {
		t.Fatalf("url %q not under public base", fetchURL)
	}
	if strings.Contains(fetchURL, " ") {
		t.Fatalf("url %q contains unescaped space", fetchURL)
	}
}

func TestOpenUnknownReference(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Open("order-1/missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Open("../etc/passwd"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for traversal, got %v", err)
	}
}
