package books_test

import (
	"context"
	"path/filepath"
	"testing"

	"bindery/internal/books"
)

func openStore(t *testing.T) *books.Store {
	t.Helper()
	store, err := books.OpenPath(filepath.Join(t.TempDir(), "books.db"))
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndFetchBook(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	cover := books.CoverDesign{
		Title:      "Our Summer",
		Subtitle:   "A Family Story",
		AuthorLine: "by the Harpers",
		Theme:      "sunset",
		Dedication: "For Grandma",
	}
	book, err := store.CreateBook(ctx, "Summer Trip", cover)
	if err != nil {
		t.Fatalf("CreateBook failed: %v", err)
	}
	if book.ID == "" {
		t.Fatal("expected book id")
	}

	fetched, err := store.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("GetBook failed: %v", err)
	}
	if fetched == nil || fetched.Title != "Summer Trip" {
		t.Fatalf("unexpected book: %#v", fetched)
	}
	if fetched.Cover.Theme != "sunset" || fetched.Cover.Dedication != "For Grandma" {
		t.Fatalf("unexpected cover design: %#v", fetched.Cover)
	}
	if fetched.CoverTitle() != "Our Summer" {
		t.Fatalf("expected cover title override, got %q", fetched.CoverTitle())
	}
}

func TestCreateBookRequiresTitle(t *testing.T) {
	store := openStore(t)
	if _, err := store.CreateBook(context.Background(), "  ", books.CoverDesign{}); err == nil {
		t.Fatal("expected error for empty title")
	}
}

func TestContentPagesOrderedWithImages(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	book, err := store.CreateBook(ctx, "Pages", books.CoverDesign{})
	if err != nil {
		t.Fatalf("CreateBook failed: %v", err)
	}

	first, err := store.AddPage(ctx, book.ID, "The Beach", "We built a castle.")
	if err != nil {
		t.Fatalf("AddPage failed: %v", err)
	}
	second, err := store.AddPage(ctx, book.ID, "", "Ice cream after.")
	if err != nil {
		t.Fatalf("AddPage failed: %v", err)
	}
	if _, err := store.AddImage(ctx, first.ID, "/img/beach.jpg", "/img/beach_styled.png", 2400, 2400); err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}
	if _, err := store.AddImage(ctx, first.ID, "/img/castle.jpg", "", 1200, 900); err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}

	pages, err := store.ContentPages(ctx, book.ID)
	if err != nil {
		t.Fatalf("ContentPages failed: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[0].Ordinal != 1 || pages[1].Ordinal != 2 {
		t.Fatalf("unexpected ordinals: %d, %d", pages[0].Ordinal, pages[1].Ordinal)
	}
	if pages[0].ID != first.ID || pages[1].ID != second.ID {
		t.Fatal("pages returned out of order")
	}
	if len(pages[0].Images) != 2 {
		t.Fatalf("expected 2 images on first page, got %d", len(pages[0].Images))
	}
	if got := pages[0].Images[0].EffectivePath(); got != "/img/beach_styled.png" {
		t.Fatalf("expected processed variant preferred, got %q", got)
	}
	if got := pages[0].Images[1].EffectivePath(); got != "/img/castle.jpg" {
		t.Fatalf("expected source fallback, got %q", got)
	}
}

func TestValidateOrdinals(t *testing.T) {
	valid := []books.ContentPage{{Ordinal: 1}, {Ordinal: 2}, {Ordinal: 3}}
	if err := books.ValidateOrdinals(valid); err != nil {
		t.Fatalf("expected valid ordinals, got %v", err)
	}

	gap := []books.ContentPage{{Ordinal: 1}, {Ordinal: 3}}
	if err := books.ValidateOrdinals(gap); err == nil {
		t.Fatal("expected error for ordinal gap")
	}

	dup := []books.ContentPage{{Ordinal: 1}, {Ordinal: 1}}
	if err := books.ValidateOrdinals(dup); err == nil {
		t.Fatal("expected error for duplicate ordinal")
	}
}
