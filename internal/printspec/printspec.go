package printspec

import (
	"errors"
	"fmt"
)

// Vendor package constants, in inches. These must match the print vendor's
// published specification for the square photo book package exactly;
// submitting documents at other dimensions is rejected at intake.
const (
	TrimWidth  = 8.5
	TrimHeight = 8.5
	Bleed      = 0.125
	SafeMargin = 0.25
	WrapMargin = 0.75

	// MinPrintedPages is the smallest interior the vendor will bind.
	MinPrintedPages = 24

	// MinSpineTextWidth is the narrowest spine that still gets printed
	// title text. Thinner spines render blank rather than illegible.
	MinSpineTextWidth = 0.5
)

// spineSteps maps a maximum printed page count to the spine width the
// vendor assigns for that band. Bands are evaluated in order.
var spineSteps = []struct {
	maxPages int
	width    float64
}{
	{84, 0.25},
	{140, 0.5},
	{168, 0.625},
}

// spineWidthMax applies above the last step band.
const spineWidthMax = 0.75

// ErrNoContent is returned when a book has no content pages to lay out.
var ErrNoContent = errors.New("book has no content pages")

// Spec is the derived print geometry for one book. It is computed once per
// generation run and handed to both compositors; it is never persisted.
type Spec struct {
	ContentPages int
	PrintedPages int
	FrontMatter  int
	BackMatter   int

	SpineWidth  float64
	CoverWidth  float64
	CoverHeight float64

	// Panel left edges, measured from the left edge of the full cover
	// sheet. Back, spine, and front tile left to right; each panel is
	// exactly TrimWidth (or SpineWidth) wide.
	BackPanelLeft  float64
	SpinePanelLeft float64
	FrontPanelLeft float64
}

// FrontMatterPages returns the number of front-matter pages for a book with
// the given content page count. Short books get two extra filler pages so
// they clear the vendor minimum without long runs of empty spreads; back
// matter mirrors front matter.
func FrontMatterPages(contentPages int) int {
	if contentPages <= 9 {
		return 4
	}
	return 2
}

// PrintedPageCount maps a content page count to the total physical pages in
// the interior document: front matter, one two-page spread per content
// page, and mirrored back matter, floored at the vendor minimum and rounded
// up to an even count.
func PrintedPageCount(contentPages int) int {
	front := FrontMatterPages(contentPages)
	pages := front + contentPages*2 + front
	if pages < MinPrintedPages {
		pages = MinPrintedPages
	}
	if pages%2 != 0 {
		pages++
	}
	return pages
}

// SpineWidth returns the spine width in inches for a printed page count.
// The step table is monotonically non-decreasing in page count.
func SpineWidth(printedPages int) float64 {
	for _, step := range spineSteps {
		if printedPages <= step.maxPages {
			return step.width
		}
	}
	return spineWidthMax
}

// Compute derives the full print geometry for a content page count.
func Compute(contentPages int) (Spec, error) {
	if contentPages < 1 {
		return Spec{}, ErrNoContent
	}

	front := FrontMatterPages(contentPages)
	printed := PrintedPageCount(contentPages)
	spine := SpineWidth(printed)

	spec := Spec{
		ContentPages: contentPages,
		PrintedPages: printed,
		FrontMatter:  front,
		BackMatter:   front,
		SpineWidth:   spine,
	}
	spec.CoverWidth, spec.CoverHeight = coverSheet(spine)

	// Panels tile left to right with no gaps: the outer wrap and bleed
	// allowances sit outside the back panel's left edge and the front
	// panel's right edge.
	spec.BackPanelLeft = Bleed + 2*WrapMargin
	spec.SpinePanelLeft = spec.BackPanelLeft + TrimWidth
	spec.FrontPanelLeft = spec.SpinePanelLeft + spine

	return spec, nil
}

// coverSheet returns the full wrap-around sheet dimensions for a spine
// width: two trim panels plus the spine, with wrap and bleed on all sides.
func coverSheet(spine float64) (width, height float64) {
	width = 2*Bleed + 4*WrapMargin + 2*TrimWidth + spine
	height = 2*Bleed + 2*WrapMargin + TrimHeight
	return width, height
}

// SpineTitleFits reports whether the spine is wide enough for legible
// rotated title text.
func (s Spec) SpineTitleFits() bool {
	return s.SpineWidth >= MinSpineTextWidth
}

// CoverTop is the vertical offset of the panel content area from the top of
// the cover sheet.
func (s Spec) CoverTop() float64 {
	return Bleed + WrapMargin
}

// PanelHeight is the height of the back, spine, and front panels.
func (s Spec) PanelHeight() float64 {
	return TrimHeight
}

func (s Spec) String() string {
	return fmt.Sprintf("%d content pages -> %d printed pages, spine %.3fin, cover %.3fx%.3fin",
		s.ContentPages, s.PrintedPages, s.SpineWidth, s.CoverWidth, s.CoverHeight)
}
