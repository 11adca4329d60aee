package compose

import (
	"bytes"
	"errors"
	"image"
	"os"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"bindery/internal/books"
	"bindery/internal/logging"
	"bindery/internal/printspec"
)

// gradientBands is the number of horizontal rectangles approximating the
// cover's background gradient.
const gradientBands = 48

// Cover renders the single-page cover wrap: back panel, spine, and front
// panel tiled left to right on one sheet sized to the full wrap.
func (c *Compositor) Cover(book books.Book, spec printspec.Spec) (*Result, error) {
	title := book.CoverTitle()
	if title == "" {
		return nil, errors.New("book has no title")
	}

	pdf := newDocument(spec.CoverWidth, spec.CoverHeight, title)
	pdf.AddPage()

	theme := ThemeByName(book.Cover.Theme)
	c.paintGradient(pdf, theme, spec)
	pdf.SetTextColor(theme.Ink.R, theme.Ink.G, theme.Ink.B)

	c.backPanel(pdf, book, spec)
	c.spinePanel(pdf, title, spec)
	c.frontPanel(pdf, book, title, spec)

	result, err := finalize(pdf)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Compositor) paintGradient(pdf *gofpdf.Fpdf, theme Theme, spec printspec.Spec) {
	bandHeight := spec.CoverHeight / gradientBands
	for i := 0; i < gradientBands; i++ {
		color := theme.gradientColor(float64(i) / (gradientBands - 1))
		pdf.SetFillColor(color.R, color.G, color.B)
		// Slight overdraw avoids hairline seams between bands.
		pdf.Rect(0, float64(i)*bandHeight, spec.CoverWidth, bandHeight+0.01, "F")
	}
}

func (c *Compositor) backPanel(pdf *gofpdf.Fpdf, book books.Book, spec printspec.Spec) {
	text := strings.TrimSpace(book.Cover.Dedication)
	if text == "" {
		text = defaultDedication
	}

	left := spec.BackPanelLeft + printspec.SafeMargin
	width := printspec.TrimWidth - 2*printspec.SafeMargin

	pdf.SetFont(fontSerif, "I", 12)
	lines := wrapText(text, width, pdf.GetStringWidth)
	y := spec.CoverTop() + spec.PanelHeight()/2 - float64(len(lines))*0.13
	for _, line := range lines {
		pdf.Text(left+(width-pdf.GetStringWidth(line))/2, y, line)
		y += 0.26
	}
}

// spinePanel draws the title rotated along the spine. Spines below the
// legible minimum stay blank.
func (c *Compositor) spinePanel(pdf *gofpdf.Fpdf, title string, spec printspec.Spec) {
	if !spec.SpineTitleFits() {
		return
	}

	pdf.SetFont(fontSans, "B", 14)
	maxWidth := spec.PanelHeight() - 1.0
	for pdf.GetStringWidth(title) > maxWidth {
		if len(title) <= 4 {
			break
		}
		title = strings.TrimSpace(title[:len(title)-4]) + "…"
	}

	centerX := spec.SpinePanelLeft + spec.SpineWidth/2
	centerY := spec.CoverHeight / 2
	pdf.TransformBegin()
	pdf.TransformRotate(-90, centerX, centerY)
	pdf.Text(centerX-pdf.GetStringWidth(title)/2, centerY+0.07, title)
	pdf.TransformEnd()
}

func (c *Compositor) frontPanel(pdf *gofpdf.Fpdf, book books.Book, title string, spec printspec.Spec) {
	left := spec.FrontPanelLeft + printspec.SafeMargin
	width := printspec.TrimWidth - 2*printspec.SafeMargin
	top := spec.CoverTop() + printspec.SafeMargin

	// Hero image occupies the top portion of the panel when present.
	heroBottom := top
	if hero := strings.TrimSpace(book.Cover.HeroImage); hero != "" {
		heroHeight := spec.PanelHeight() * 0.6
		c.placeHero(pdf, book, hero, left, top, width, heroHeight)
		heroBottom = top + heroHeight + 0.3
	} else {
		heroBottom = spec.CoverTop() + spec.PanelHeight()*0.35
	}

	pdf.SetFont(fontSerif, "B", 26)
	y := heroBottom + 0.4
	for _, line := range wrapText(title, width, pdf.GetStringWidth) {
		pdf.Text(left+(width-pdf.GetStringWidth(line))/2, y, line)
		y += 0.45
	}
	if subtitle := strings.TrimSpace(book.Cover.Subtitle); subtitle != "" {
		pdf.SetFont(fontSerif, "I", 15)
		y += 0.15
		pdf.Text(left+(width-pdf.GetStringWidth(subtitle))/2, y, subtitle)
		y += 0.3
	}
	if author := strings.TrimSpace(book.Cover.AuthorLine); author != "" {
		pdf.SetFont(fontSans, "", 12)
		y += 0.25
		pdf.Text(left+(width-pdf.GetStringWidth(author))/2, y, author)
	}
}

func (c *Compositor) placeHero(pdf *gofpdf.Fpdf, book books.Book, path string, x, y, boxW, boxH float64) {
	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Warn("hero image unreadable, rendering text-only cover",
			logging.String(logging.FieldBookID, book.ID),
			logging.String("path", path),
			logging.Error(err))
		return
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		c.logger.Warn("hero image undecodable, rendering text-only cover",
			logging.String(logging.FieldBookID, book.ID),
			logging.String("path", path),
			logging.Error(err))
		return
	}

	imageType := strings.ToUpper(format)
	if imageType == "JPEG" {
		imageType = "JPG"
	}
	options := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: false}
	name := "hero-" + book.ID
	pdf.RegisterImageOptionsReader(name, options, bytes.NewReader(data))
	if pdf.Err() {
		c.logger.Warn("hero image embedding failed, rendering text-only cover",
			logging.String(logging.FieldBookID, book.ID),
			logging.String("path", path),
			logging.Error(pdf.Error()))
		pdf.ClearError()
		return
	}

	w, h := fitBox(float64(cfg.Width), float64(cfg.Height), boxW, boxH)
	pdf.ImageOptions(name, x+(boxW-w)/2, y+(boxH-h)/2, w, h, false, options, 0, "")
}
