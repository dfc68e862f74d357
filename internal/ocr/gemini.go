package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/a3tai/mcp-pdf-forms/internal/gemini"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
)

// boxScale is the coordinate range Gemini uses for normalized boxes
const boxScale = 1000.0

// defaultLineConfidence is assigned when the model omits a confidence
const defaultLineConfidence = 0.9

const recognizePrompt = `Transcribe every line of text on this scanned form page.
Return only a JSON array. Each element is one line:
{"text": "<line text>", "bbox": [ymin, xmin, ymax, xmax], "confidence": <0..1>}
Coordinates are normalized to 0-1000 with the origin at the top-left corner.
Keep a label and the value written next to it on the same line, separated by
three spaces. Do not add commentary.`

var _ Engine = (*GeminiEngine)(nil)

// GeminiEngine recognizes page images with a Gemini vision model
type GeminiEngine struct {
	client *gemini.Client
}

// NewGeminiEngine creates an engine that sends page images to Gemini
func NewGeminiEngine(client *gemini.Client) *GeminiEngine {
	return &GeminiEngine{client: client}
}

// recognizedLine is one element of the model's response
type recognizedLine struct {
	Text       string    `json:"text"`
	BBox       []float64 `json:"bbox"`
	Confidence float64   `json:"confidence"`
}

// Recognize transcribes one page image into positioned spans
func (e *GeminiEngine) Recognize(ctx context.Context, img pdf.PageImage) ([]pdf.Span, error) {
	body, err := e.client.GenerateJSON(ctx,
		genai.ImageData("png", img.PNG),
		genai.Text(recognizePrompt),
	)
	if err != nil {
		return nil, err
	}
	return parseLines(body, img)
}

// parseLines converts the model's normalized boxes into page points
func parseLines(body string, img pdf.PageImage) ([]pdf.Span, error) {
	var lines []recognizedLine
	if err := json.Unmarshal([]byte(body), &lines); err != nil {
		return nil, fmt.Errorf("unmarshaling OCR lines: %w", err)
	}

	width, height := img.Width, img.Height
	if width <= 0 || height <= 0 {
		width, height = pdf.DefaultPageWidth, pdf.DefaultPageHeight
	}

	spans := make([]pdf.Span, 0, len(lines))
	for _, l := range lines {
		text := strings.TrimSpace(l.Text)
		if text == "" || len(l.BBox) != 4 {
			continue
		}

		confidence := l.Confidence
		if confidence <= 0 {
			confidence = defaultLineConfidence
		}

		ymin, xmin, ymax, xmax := l.BBox[0], l.BBox[1], l.BBox[2], l.BBox[3]
		spans = append(spans, pdf.Span{
			Text: text,
			BBox: pdf.BBox{
				X0: xmin / boxScale * width,
				Y0: ymin / boxScale * height,
				X1: xmax / boxScale * width,
				Y1: ymax / boxScale * height,
			},
			Page:       img.Number,
			Confidence: confidence,
		})
	}
	return spans, nil
}
