package compose

import (
	"bytes"
	"testing"

	"bindery/internal/books"
	"bindery/internal/printspec"
)

func TestCoverRendersSinglePage(t *testing.T) {
	spec, err := printspec.Compute(40)
	if err != nil {
		t.Fatalf("compute spec: %v", err)
	}
	result, err := New(nil).Cover(testBook(), spec)
	if err != nil {
		t.Fatalf("cover: %v", err)
	}
	if result.PageCount != 1 {
		t.Fatalf("cover page count = %d, want 1", result.PageCount)
	}
	if !bytes.HasPrefix(result.Data, []byte("%PDF")) {
		t.Fatal("output does not look like a PDF")
	}
}

func TestCoverThinAndThickSpines(t *testing.T) {
	// 5 content pages lands in the thinnest spine band, below the legible
	// text minimum; 90 pages lands at the widest.
	for _, contentPages := range []int{5, 90} {
		spec, err := printspec.Compute(contentPages)
		if err != nil {
			t.Fatalf("compute spec for %d: %v", contentPages, err)
		}
		if _, err := New(nil).Cover(testBook(), spec); err != nil {
			t.Errorf("cover for %d content pages: %v", contentPages, err)
		}
	}
}

func TestCoverWithHeroImage(t *testing.T) {
	dir := t.TempDir()
	book := testBook()
	book.Cover.HeroImage = writeTestPNG(t, dir, 1200, 900)

	spec, err := printspec.Compute(10)
	if err != nil {
		t.Fatalf("compute spec: %v", err)
	}
	result, err := New(nil).Cover(book, spec)
	if err != nil {
		t.Fatalf("cover with hero: %v", err)
	}
	if result.PageCount != 1 {
		t.Fatalf("cover page count = %d, want 1", result.PageCount)
	}
}

func TestCoverSurvivesMissingHero(t *testing.T) {
	book := testBook()
	book.Cover.HeroImage = "/nonexistent/hero.jpg"

	spec, err := printspec.Compute(10)
	if err != nil {
		t.Fatalf("compute spec: %v", err)
	}
	if _, err := New(nil).Cover(book, spec); err != nil {
		t.Fatalf("cover should degrade to text-only, got %v", err)
	}
}

func TestCoverRequiresTitle(t *testing.T) {
	spec, err := printspec.Compute(10)
	if err != nil {
		t.Fatalf("compute spec: %v", err)
	}
	if _, err := New(nil).Cover(books.Book{}, spec); err == nil {
		t.Fatal("expected error for untitled book")
	}
}

func TestCoverIsDeterministic(t *testing.T) {
	spec, err := printspec.Compute(10)
	if err != nil {
		t.Fatalf("compute spec: %v", err)
	}
	first, err := New(nil).Cover(testBook(), spec)
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	second, err := New(nil).Cover(testBook(), spec)
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatal("unchanged book produced different cover bytes")
	}
}

func TestThemeFallback(t *testing.T) {
	if got := ThemeByName("no-such-theme"); got.Name != defaultTheme {
		t.Fatalf("unknown theme resolved to %q, want %q", got.Name, defaultTheme)
	}
	if got := ThemeByName(" Sunset "); got.Name != "sunset" {
		t.Fatalf("theme lookup should be case-insensitive, got %q", got.Name)
	}
}

func TestGradientColorEndpoints(t *testing.T) {
	theme := ThemeByName("classic")
	if got := theme.gradientColor(0); got != theme.Primary {
		t.Fatalf("gradient start = %+v, want primary %+v", got, theme.Primary)
	}
	if got := theme.gradientColor(1); got != theme.Secondary {
		t.Fatalf("gradient end = %+v, want secondary %+v", got, theme.Secondary)
	}
}
