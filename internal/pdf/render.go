package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

// PageImage is a rendered page, PNG encoded.
type PageImage struct {
	Number int
	PNG    []byte
	// Width and Height are the page size in PDF points, so that image
	// coordinates can be mapped back onto the page.
	Width  float64
	Height float64
}

// Renderer rasterizes document pages for OCR.
type Renderer interface {
	Render(ctx context.Context, data []byte, dpi float64) ([]PageImage, error)
}

// FitzRenderer renders pages with MuPDF through go-fitz
type FitzRenderer struct{}

// NewFitzRenderer creates a MuPDF backed renderer
func NewFitzRenderer() *FitzRenderer {
	return &FitzRenderer{}
}

// Render converts every page of the document to a PNG at the given resolution
func (r *FitzRenderer) Render(ctx context.Context, data []byte, dpi float64) ([]PageImage, error) {
	if dpi <= 0 {
		dpi = 144
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	pages := make([]PageImage, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			return nil, fmt.Errorf("rendering page %d: %w", i+1, err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding page %d: %w", i+1, err)
		}

		bounds := img.Bounds()
		pages = append(pages, PageImage{
			Number: i + 1,
			PNG:    buf.Bytes(),
			Width:  float64(bounds.Dx()) * 72 / dpi,
			Height: float64(bounds.Dy()) * 72 / dpi,
		})
	}
	return pages, nil
}
