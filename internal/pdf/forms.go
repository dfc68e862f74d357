package pdf

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// AcroForm field types as reported on FormValue.Type
const (
	FormTypeText      = "text"
	FormTypeCheckbox  = "checkbox"
	FormTypeRadio     = "radio"
	FormTypeChoice    = "choice"
	FormTypeSignature = "signature"
	FormTypeButton    = "button"
	FormTypeUnknown   = "unknown"
)

// maxFieldDepth bounds recursion through the field hierarchy.
const maxFieldDepth = 32

// AcroFormReader reads filled interactive form values using pdfcpu
type AcroFormReader struct {
	logger *slog.Logger
}

// NewAcroFormReader creates a new AcroForm reader
func NewAcroFormReader(logger *slog.Logger) *AcroFormReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &AcroFormReader{logger: logger}
}

// pageInfo locates a page dictionary by object number
type pageInfo struct {
	number int
	height float64
}

// ReadValues returns every terminal field that carries a non-empty value.
// Documents without an AcroForm yield no values and no error.
func (r *AcroFormReader) ReadValues(data []byte) (values []FormValue, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			values = nil
			err = fmt.Errorf("panic reading form fields: %v", rec)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil, nil
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return nil, nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil, nil
	}
	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	pages := r.pageIndex(ctx)
	for _, fieldObj := range fieldsArray {
		values = r.walkField(ctx, fieldObj, "", pages, 0, values)
	}
	r.logger.Debug("acroform read", "fields", len(fieldsArray), "filled", len(values))
	return values, nil
}

// pageIndex maps page object numbers to page numbers and heights
func (r *AcroFormReader) pageIndex(ctx *model.Context) map[int]pageInfo {
	index := make(map[int]pageInfo, ctx.PageCount)
	for i := 1; i <= ctx.PageCount; i++ {
		pageDict, ref, _, err := ctx.PageDict(i, false)
		if err != nil || ref == nil {
			continue
		}
		index[ref.ObjectNumber.Value()] = pageInfo{number: i, height: mediaBoxHeight(ctx, pageDict)}
	}
	return index
}

func mediaBoxHeight(ctx *model.Context, pageDict types.Dict) float64 {
	obj, found := pageDict.Find("MediaBox")
	if !found {
		return DefaultPageHeight
	}
	arr, err := ctx.DereferenceArray(obj)
	if err != nil || len(arr) != 4 {
		return DefaultPageHeight
	}
	lly, err1 := ctx.DereferenceNumber(arr[1])
	ury, err2 := ctx.DereferenceNumber(arr[3])
	if err1 != nil || err2 != nil || ury <= lly {
		return DefaultPageHeight
	}
	return ury - lly
}

// walkField descends the field tree, qualifying names with their parents
func (r *AcroFormReader) walkField(ctx *model.Context, fieldObj types.Object, parent string, pages map[int]pageInfo, depth int, out []FormValue) []FormValue {
	if depth > maxFieldDepth {
		return out
	}

	fieldDict, err := ctx.DereferenceDict(fieldObj)
	if err != nil || fieldDict == nil {
		return out
	}

	name := parent
	if nameObj, found := fieldDict.Find("T"); found {
		if partial, err := ctx.DereferenceStringOrHexLiteral(nameObj, model.V10, nil); err == nil && partial != "" {
			if name != "" {
				name += "."
			}
			name += partial
		}
	}

	// Kids carrying their own T entry are child fields; otherwise they are widgets.
	if kidsObj, found := fieldDict.Find("Kids"); found {
		if kids, err := ctx.DereferenceArray(kidsObj); err == nil {
			hasChildFields := false
			for _, kid := range kids {
				kidDict, err := ctx.DereferenceDict(kid)
				if err != nil || kidDict == nil {
					continue
				}
				if _, ok := kidDict.Find("T"); ok {
					hasChildFields = true
					out = r.walkField(ctx, kid, name, pages, depth+1, out)
				}
			}
			if hasChildFields {
				return out
			}
		}
	}

	fieldType := r.fieldType(ctx, fieldDict, 0)
	valueObj, found := r.inherited(ctx, fieldDict, "V", 0)
	if !found {
		return out
	}

	value := r.fieldValue(ctx, valueObj, fieldType)
	if value == "" || name == "" {
		return out
	}

	bbox, page := r.fieldBounds(ctx, fieldDict, pages)
	return append(out, FormValue{
		Name:  name,
		Value: value,
		Type:  fieldType,
		Page:  page,
		BBox:  bbox,
	})
}

// inherited looks up an inheritable entry on the field or its ancestors
func (r *AcroFormReader) inherited(ctx *model.Context, dict types.Dict, key string, depth int) (types.Object, bool) {
	if obj, found := dict.Find(key); found {
		return obj, true
	}
	if depth > maxFieldDepth {
		return nil, false
	}
	if parentObj, found := dict.Find("Parent"); found {
		if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
			return r.inherited(ctx, parentDict, key, depth+1)
		}
	}
	return nil, false
}

// fieldType determines the field type from the FT entry and button flags
func (r *AcroFormReader) fieldType(ctx *model.Context, fieldDict types.Dict, depth int) string {
	ftObj, found := r.inherited(ctx, fieldDict, "FT", depth)
	if !found {
		return FormTypeUnknown
	}
	ftName, err := ctx.DereferenceName(ftObj, model.V10, nil)
	if err != nil {
		return FormTypeUnknown
	}

	switch ftName {
	case "Btn":
		if flagsObj, found := r.inherited(ctx, fieldDict, "Ff", depth); found {
			if flags, err := ctx.DereferenceInteger(flagsObj); err == nil && flags != nil {
				if (*flags & (1 << 15)) != 0 {
					return FormTypeRadio
				} else if (*flags & (1 << 16)) != 0 {
					return FormTypeButton
				}
			}
		}
		return FormTypeCheckbox
	case "Tx":
		return FormTypeText
	case "Ch":
		return FormTypeChoice
	case "Sig":
		return FormTypeSignature
	default:
		return FormTypeUnknown
	}
}

// fieldValue renders a field value as text. Unchecked boxes yield "".
func (r *AcroFormReader) fieldValue(ctx *model.Context, valueObj types.Object, fieldType string) string {
	switch fieldType {
	case FormTypeText, FormTypeUnknown:
		if val, err := ctx.DereferenceStringOrHexLiteral(valueObj, model.V10, nil); err == nil {
			return strings.TrimSpace(val)
		}
	case FormTypeCheckbox, FormTypeRadio:
		if name, err := ctx.DereferenceName(valueObj, model.V10, nil); err == nil && name != "Off" {
			return string(name)
		}
	case FormTypeChoice:
		if val, err := ctx.DereferenceStringOrHexLiteral(valueObj, model.V10, nil); err == nil {
			return strings.TrimSpace(val)
		}
		if arr, err := ctx.DereferenceArray(valueObj); err == nil {
			var selected []string
			for _, item := range arr {
				if s, err := ctx.DereferenceStringOrHexLiteral(item, model.V10, nil); err == nil {
					selected = append(selected, s)
				}
			}
			return strings.Join(selected, ", ")
		}
	}
	return ""
}

// fieldBounds returns the widget rectangle in top-left page coordinates
func (r *AcroFormReader) fieldBounds(ctx *model.Context, fieldDict types.Dict, pages map[int]pageInfo) (BBox, int) {
	widget := fieldDict
	if _, found := fieldDict.Find("Rect"); !found {
		if kidsObj, found := fieldDict.Find("Kids"); found {
			if kids, err := ctx.DereferenceArray(kidsObj); err == nil && len(kids) > 0 {
				if kidDict, err := ctx.DereferenceDict(kids[0]); err == nil && kidDict != nil {
					widget = kidDict
				}
			}
		}
	}

	info := pageInfo{number: 1, height: DefaultPageHeight}
	if pObj, found := widget.Find("P"); found {
		if ref, ok := pObj.(types.IndirectRef); ok {
			if p, ok := pages[ref.ObjectNumber.Value()]; ok {
				info = p
			}
		}
	}

	rectObj, found := widget.Find("Rect")
	if !found {
		return BBox{}, info.number
	}
	rect, err := ctx.DereferenceArray(rectObj)
	if err != nil || len(rect) != 4 {
		return BBox{}, info.number
	}

	coords := make([]float64, 4)
	for i, c := range rect {
		if f, err := ctx.DereferenceNumber(c); err == nil {
			coords[i] = f
		}
	}

	llx, lly, urx, ury := min(coords[0], coords[2]), min(coords[1], coords[3]), max(coords[0], coords[2]), max(coords[1], coords[3])
	return BBox{
		X0: llx,
		Y0: max(0, info.height-ury),
		X1: urx,
		Y1: max(0, info.height-lly),
	}, info.number
}
