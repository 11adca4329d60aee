package books

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CoverDesign carries the optional cover overrides for a book. Empty fields
// fall back to book-level values or are omitted from the rendered cover.
type CoverDesign struct {
	Title      string
	Subtitle   string
	AuthorLine string
	HeroImage  string
	Theme      string
	Dedication string
}

// Book is the unit the pipeline prints. The editing subsystem creates and
// mutates books; the pipeline only reads them.
type Book struct {
	ID        string
	Title     string
	Cover     CoverDesign
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CoverTitle returns the cover title override or the cleaned book title.
func (b Book) CoverTitle() string {
	if title := strings.TrimSpace(b.Cover.Title); title != "" {
		return title
	}
	return b.DisplayTitle()
}

// DisplayTitle returns the book title cleaned for print and vendor
// submission. Editor imports can leave slug-like titles such as
// "summer_trip_2025": separator runs collapse to single spaces, and an
// all-lowercase result is title-cased.
func (b Book) DisplayTitle() string {
	title := strings.TrimSpace(b.Title)
	if title == "" {
		return ""
	}
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range title {
		switch {
		case r == '_' || r == '.' || unicode.IsSpace(r):
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		default:
			cleaned.WriteRune(r)
			prevSpace = false
		}
	}
	title = strings.TrimSpace(cleaned.String())
	if title == strings.ToLower(title) {
		title = cases.Title(language.Und).String(title)
	}
	return title
}

// PageImage is one raster associated with a content page. ProcessedPath
// points at the most-processed available variant; SourcePath is the
// original upload.
type PageImage struct {
	ID            string
	PageID        string
	Position      int
	SourcePath    string
	ProcessedPath string
	WidthPx       int
	HeightPx      int
}

// EffectivePath returns the most-processed raster available for embedding.
func (i PageImage) EffectivePath() string {
	if path := strings.TrimSpace(i.ProcessedPath); path != "" {
		return path
	}
	return strings.TrimSpace(i.SourcePath)
}

// ContentPage is one entry in a book: an ordinal position, an optional
// title and caption, and zero or more images.
type ContentPage struct {
	ID      string
	BookID  string
	Ordinal int
	Title   string
	Caption string
	Images  []PageImage
}

// ValidateOrdinals checks that page ordinals are unique and contiguous
// starting at 1. The pipeline refuses to lay out books that violate this.
func ValidateOrdinals(pages []ContentPage) error {
	seen := make(map[int]struct{}, len(pages))
	for _, page := range pages {
		if _, dup := seen[page.Ordinal]; dup {
			return fmt.Errorf("duplicate page ordinal %d", page.Ordinal)
		}
		seen[page.Ordinal] = struct{}{}
	}
	for i := 1; i <= len(pages); i++ {
		if _, ok := seen[i]; !ok {
			return fmt.Errorf("page ordinals not contiguous: missing %d", i)
		}
	}
	return nil
}
