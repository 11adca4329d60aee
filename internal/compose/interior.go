package compose

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"bindery/internal/books"
	"bindery/internal/logging"
	"bindery/internal/printspec"
)

const (
	fontSerif = "Times"
	fontSans  = "Helvetica"

	// targetDPI is the vendor's nominal print resolution. Images below it
	// for their printed size come out soft; that is logged, not rejected.
	targetDPI = 300

	defaultDedication = "For the ones who were there."
	closingMark       = "~ fin ~"
)

// Result is one rendered document.
type Result struct {
	Data      []byte
	PageCount int
}

// Compositor renders interiors and cover wraps.
type Compositor struct {
	logger *slog.Logger
}

// New returns a Compositor that logs render warnings to the given logger.
func New(logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Compositor{logger: logger}
}

// Interior renders the book's interior document. The emitted page count
// always equals the geometry's printed page count; a mismatch is an error,
// never a silently short document.
func (c *Compositor) Interior(book books.Book, pages []books.ContentPage, spec printspec.Spec) (*Result, error) {
	if strings.TrimSpace(book.Title) == "" {
		return nil, errors.New("book has no title")
	}
	if len(pages) == 0 {
		return nil, printspec.ErrNoContent
	}
	if err := books.ValidateOrdinals(pages); err != nil {
		return nil, err
	}
	if spec.ContentPages != len(pages) {
		return nil, fmt.Errorf("geometry computed for %d content pages, got %d", spec.ContentPages, len(pages))
	}

	pdf := newDocument(printspec.TrimWidth, printspec.TrimHeight, book.DisplayTitle())

	c.titlePage(pdf, book)
	c.dedicationPage(pdf, book)
	if spec.FrontMatter > 2 {
		// Short books carry two filler pages so the interior clears the
		// vendor minimum without long runs of empty spreads.
		c.fillerPage(pdf)
		c.fillerPage(pdf)
	}
	for _, page := range pages {
		c.contentSpread(pdf, book, page)
	}
	c.endPage(pdf)

	if pdf.PageCount() > spec.PrintedPages {
		return nil, fmt.Errorf("interior overshot printed page count: emitted %d, expected %d", pdf.PageCount(), spec.PrintedPages)
	}
	for pdf.PageCount() < spec.PrintedPages {
		pdf.AddPage()
	}

	result, err := finalize(pdf)
	if err != nil {
		return nil, fmt.Errorf("finalize interior: %w", err)
	}
	if result.PageCount != spec.PrintedPages {
		return nil, fmt.Errorf("interior page count %d does not match printed page count %d", result.PageCount, spec.PrintedPages)
	}
	return result, nil
}

func (c *Compositor) titlePage(pdf *gofpdf.Fpdf, book books.Book) {
	pdf.AddPage()
	width, height := pdf.GetPageSize()

	pdf.SetFont(fontSerif, "B", 28)
	y := height * 0.38
	for _, line := range wrapText(book.DisplayTitle(), width-2*printspec.SafeMargin, pdf.GetStringWidth) {
		centerText(pdf, line, y)
		y += 0.5
	}

	if subtitle := strings.TrimSpace(book.Cover.Subtitle); subtitle != "" {
		pdf.SetFont(fontSerif, "I", 16)
		y += 0.2
		centerText(pdf, subtitle, y)
		y += 0.35
	}
	if author := strings.TrimSpace(book.Cover.AuthorLine); author != "" {
		pdf.SetFont(fontSans, "", 12)
		y += 0.3
		centerText(pdf, author, y)
	}
}

func (c *Compositor) dedicationPage(pdf *gofpdf.Fpdf, book books.Book) {
	pdf.AddPage()
	width, height := pdf.GetPageSize()

	dedication := strings.TrimSpace(book.Cover.Dedication)
	if dedication == "" {
		dedication = defaultDedication
	}

	pdf.SetFont(fontSerif, "I", 13)
	lines := wrapText(dedication, width*0.6, pdf.GetStringWidth)
	y := height/2 - float64(len(lines))*0.15
	for _, line := range lines {
		centerText(pdf, line, y)
		y += 0.3
	}
}

func (c *Compositor) fillerPage(pdf *gofpdf.Fpdf) {
	pdf.AddPage()
	_, height := pdf.GetPageSize()
	pdf.SetFont(fontSerif, "", 14)
	centerText(pdf, "•", height/2)
}

// contentSpread emits the two pages for one content entry. The first page
// carries the primary image with the page title near the bottom; the
// second carries a second image when present, otherwise the caption.
func (c *Compositor) contentSpread(pdf *gofpdf.Fpdf, book books.Book, page books.ContentPage) {
	width, height := printspec.TrimWidth, printspec.TrimHeight

	pdf.AddPage()
	imageTop := printspec.SafeMargin
	imageBottom := height - 0.9
	if len(page.Images) > 0 {
		c.placeImage(pdf, book, page.Images[0], printspec.SafeMargin, imageTop, width-2*printspec.SafeMargin, imageBottom-imageTop)
	}
	if title := strings.TrimSpace(page.Title); title != "" {
		pdf.SetFont(fontSans, "", 11)
		centerText(pdf, title, height-0.55)
	}

	pdf.AddPage()
	if len(page.Images) > 1 {
		c.placeImage(pdf, book, page.Images[1], printspec.SafeMargin, printspec.SafeMargin, width-2*printspec.SafeMargin, height-2*printspec.SafeMargin)
		return
	}
	if caption := strings.TrimSpace(page.Caption); caption != "" {
		pdf.SetFont(fontSerif, "", 12)
		lines := wrapText(caption, width-2.0, pdf.GetStringWidth)
		y := height/2 - float64(len(lines))*0.14
		for _, line := range lines {
			centerText(pdf, line, y)
			y += 0.28
		}
	}
}

func (c *Compositor) endPage(pdf *gofpdf.Fpdf) {
	pdf.AddPage()
	_, height := pdf.GetPageSize()
	pdf.SetFont(fontSerif, "I", 14)
	centerText(pdf, closingMark, height/2)
}

// placeImage embeds a raster scaled to fit the given box, preserving
// aspect ratio. An unreadable image leaves its slot empty; the rest of the
// book still renders.
func (c *Compositor) placeImage(pdf *gofpdf.Fpdf, book books.Book, img books.PageImage, x, y, boxW, boxH float64) {
	path := img.EffectivePath()
	if path == "" {
		c.logger.Warn("content image has no raster path, leaving slot empty",
			logging.String(logging.FieldBookID, book.ID),
			logging.String("image_id", img.ID))
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Warn("content image unreadable, leaving slot empty",
			logging.String(logging.FieldBookID, book.ID),
			logging.String("path", path),
			logging.Error(err))
		return
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		c.logger.Warn("content image undecodable, leaving slot empty",
			logging.String(logging.FieldBookID, book.ID),
			logging.String("path", path),
			logging.Error(err))
		return
	}

	imageType := strings.ToUpper(format)
	if imageType == "JPEG" {
		imageType = "JPG"
	}

	w, h := fitBox(float64(cfg.Width), float64(cfg.Height), boxW, boxH)
	if float64(cfg.Width) < w*targetDPI {
		c.logger.Warn("image below target print resolution",
			logging.String(logging.FieldBookID, book.ID),
			logging.String("path", path),
			logging.Int("width_px", cfg.Width),
			logging.Int("needed_px", int(w*targetDPI)))
	}

	name := img.ID
	if name == "" {
		name = path
	}
	options := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: false}
	pdf.RegisterImageOptionsReader(name, options, bytes.NewReader(data))
	if pdf.Err() {
		c.logger.Warn("image embedding failed, leaving slot empty",
			logging.String(logging.FieldBookID, book.ID),
			logging.String("path", path),
			logging.Error(pdf.Error()))
		pdf.ClearError()
		return
	}
	pdf.ImageOptions(name, x+(boxW-w)/2, y+(boxH-h)/2, w, h, false, options, 0, "")
}

// fitBox scales source dimensions to the largest size fitting inside the
// box with aspect ratio preserved.
func fitBox(srcW, srcH, boxW, boxH float64) (float64, float64) {
	if srcW <= 0 || srcH <= 0 {
		return boxW, boxH
	}
	scale := boxW / srcW
	if alt := boxH / srcH; alt < scale {
		scale = alt
	}
	return srcW * scale, srcH * scale
}

func centerText(pdf *gofpdf.Fpdf, text string, y float64) {
	width, _ := pdf.GetPageSize()
	pdf.Text((width-pdf.GetStringWidth(text))/2, y, text)
}

func newDocument(width, height float64, title string) *gofpdf.Fpdf {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "in",
		Size:           gofpdf.SizeType{Wd: width, Ht: height},
	})
	pdf.SetTitle(title, true)
	// Fixed metadata keeps regeneration byte-stable for unchanged input.
	pdf.SetCreationDate(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	return pdf
}

func finalize(pdf *gofpdf.Fpdf) (*Result, error) {
	pageCount := pdf.PageCount()
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return &Result{Data: buf.Bytes(), PageCount: pageCount}, nil
}
