package extraction

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/a3tai/mcp-pdf-forms/internal/intelligence"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
)

// Constants for table detection
const (
	defaultMinColumns     = 3
	defaultMinRows        = 2
	defaultCellConfidence = 0.7
)

// columnSeparator splits a line on column gaps: three or more spaces, or tabs.
var columnSeparator = regexp.MustCompile(`\s{3,}|\t+`)

// TableConfig holds the tunables of table detection
type TableConfig struct {
	MinColumns     int     `json:"min_columns"`
	MinRows        int     `json:"min_rows"`
	CellConfidence float64 `json:"cell_confidence"`
}

// DefaultTableConfig returns the default table detection configuration
func DefaultTableConfig() TableConfig {
	return TableConfig{
		MinColumns:     defaultMinColumns,
		MinRows:        defaultMinRows,
		CellConfidence: defaultCellConfidence,
	}
}

// TableDetector finds column-aligned blocks in page text
type TableDetector struct {
	config TableConfig
	logger *slog.Logger
}

// NewTableDetector creates a table detector with custom configuration
func NewTableDetector(config TableConfig, logger *slog.Logger) *TableDetector {
	if config.MinColumns < 2 {
		config.MinColumns = defaultMinColumns
	}
	if config.MinRows < 2 {
		config.MinRows = defaultMinRows
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TableDetector{config: config, logger: logger}
}

// tableLine is one column-split line with the boxes of its cells
type tableLine struct {
	parts []string
	boxes []pdf.BBox
}

// Detect returns at most one table per page. Every line with at least
// MinColumns non-empty parts is a table row; a page needs MinRows such lines.
// The first row supplies the headers and later rows are cut to the header
// width.
func (t *TableDetector) Detect(doc *pdf.Document) []intelligence.Table {
	if doc == nil {
		return nil
	}

	var tables []intelligence.Table
	for _, page := range doc.Pages {
		if table, ok := t.detectPage(page); ok {
			tables = append(tables, table)
		}
	}

	if len(tables) > 0 {
		t.logger.Debug("tables detected", "count", len(tables))
	}
	return tables
}

func (t *TableDetector) detectPage(page pdf.Page) (intelligence.Table, bool) {
	if page.Text == "" {
		return intelligence.Table{}, false
	}

	spanLines := pdf.GroupLines(page.Spans)
	textLines := strings.Split(page.Text, "\n")
	aligned := len(spanLines) == len(textLines)

	var rows []tableLine
	offset := 0
	for i, line := range textLines {
		var spans []pdf.Span
		if aligned {
			spans = spanLines[i]
		}
		if row, ok := t.splitLine(page.Text, line, offset, spans); ok {
			rows = append(rows, row)
		}
		offset += len(line) + 1
	}

	if len(rows) < t.config.MinRows {
		return intelligence.Table{}, false
	}

	headers := rows[0].parts
	table := intelligence.Table{
		Page:       page.Number,
		Headers:    headers,
		Confidence: t.config.CellConfidence,
	}

	bbox := rows[0].boxes[0]
	for _, b := range rows[0].boxes {
		bbox = bbox.Union(b)
	}
	for _, row := range rows[1:] {
		cells := make([]intelligence.TableCell, 0, len(headers))
		for c, text := range row.parts {
			if c >= len(headers) {
				break
			}
			cells = append(cells, intelligence.TableCell{
				Text:       text,
				BBox:       row.boxes[c],
				Confidence: t.config.CellConfidence,
			})
			bbox = bbox.Union(row.boxes[c])
		}
		table.Rows = append(table.Rows, cells)
	}
	table.BBox = bbox
	return table, true
}

// splitLine splits one line of page text into cells. Cell boxes come from the
// line's spans when they correspond one to one with the parts, otherwise
// they are estimated from the text position.
func (t *TableDetector) splitLine(pageText, line string, offset int, spans []pdf.Span) (tableLine, bool) {
	locs := columnSeparator.FindAllStringIndex(line, -1)

	var row tableLine
	start := 0
	emit := func(end int) {
		part := line[start:end]
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			return
		}
		lead := strings.Index(part, trimmed)
		from := offset + start + lead
		row.parts = append(row.parts, trimmed)
		row.boxes = append(row.boxes, EstimateBBox(pageText, from, from+len(trimmed)))
	}
	for _, loc := range locs {
		emit(loc[0])
		start = loc[1]
	}
	emit(len(line))

	if len(row.parts) < t.config.MinColumns {
		return tableLine{}, false
	}

	if len(spans) == len(row.parts) {
		for i, s := range spans {
			if strings.TrimSpace(s.Text) == row.parts[i] {
				row.boxes[i] = s.BBox
			}
		}
	}
	return row, true
}
