package pdf

import "fmt"

// Default page geometry in PDF points, used when a page carries no usable MediaBox.
const (
	DefaultPageWidth  = 612.0
	DefaultPageHeight = 792.0
)

// Extraction methods recorded on a Document.
const (
	MethodText  = "text"
	MethodOCR   = "ocr"
	MethodCloud = "cloud"
)

// BBox is an axis-aligned box in PDF points with a top-left origin.
// Estimated marks a synthesized box that is only a visual hint.
type BBox struct {
	X0        float64 `json:"x0"`
	Y0        float64 `json:"y0"`
	X1        float64 `json:"x1"`
	Y1        float64 `json:"y1"`
	Estimated bool    `json:"estimated,omitempty"`
}

// Valid reports whether the box has finite, ordered, non-negative coordinates.
func (b BBox) Valid() bool {
	for _, v := range []float64{b.X0, b.Y0, b.X1, b.Y1} {
		if v != v || v < 0 || v > 1e6 {
			return false
		}
	}
	return b.X1 >= b.X0 && b.Y1 >= b.Y0
}

// Union returns the smallest box containing both boxes.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		X0:        min(b.X0, o.X0),
		Y0:        min(b.Y0, o.Y0),
		X1:        max(b.X1, o.X1),
		Y1:        max(b.Y1, o.Y1),
		Estimated: b.Estimated || o.Estimated,
	}
}

func (b BBox) String() string {
	return fmt.Sprintf("(%.1f,%.1f,%.1f,%.1f)", b.X0, b.Y0, b.X1, b.Y1)
}

// Span is a run of text positioned on a page.
type Span struct {
	Text       string  `json:"text"`
	BBox       BBox    `json:"bbox"`
	Page       int     `json:"page"`
	Confidence float64 `json:"confidence"`
	FontSize   float64 `json:"font_size,omitempty"`
}

// Page holds the spans of one page in reading order plus the joined page text.
type Page struct {
	Number int     `json:"number"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Text   string  `json:"text"`
	Spans  []Span  `json:"spans"`
}

// CharCount returns the number of non-space characters on the page.
func (p Page) CharCount() int {
	n := 0
	for _, r := range p.Text {
		if r != ' ' && r != '\n' && r != '\t' && r != '\r' {
			n++
		}
	}
	return n
}

// Document is the positioned text of a whole PDF.
type Document struct {
	Pages    []Page   `json:"pages"`
	Method   string   `json:"method"`
	Warnings []string `json:"warnings,omitempty"`
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// FormValue is a filled interactive form field read from the AcroForm dictionary.
type FormValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  string `json:"type"`
	Page  int    `json:"page"`
	BBox  BBox   `json:"bbox"`
}
