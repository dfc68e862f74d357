package cloud

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/aws/smithy-go"

	"github.com/a3tai/mcp-pdf-forms/internal/intelligence"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
)

// Textract pricing per page for the forms feature
const textractCostPerPage = 0.05

// TextractAPI is the subset of the Textract client used by the provider
type TextractAPI interface {
	AnalyzeDocument(ctx context.Context, params *textract.AnalyzeDocumentInput, optFns ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error)
}

var _ Provider = (*TextractProvider)(nil)

// TextractProvider analyzes documents with AWS Textract forms analysis
type TextractProvider struct {
	api TextractAPI
	assembler
}

// NewTextractProvider creates a provider from an existing Textract client
func NewTextractProvider(api TextractAPI, aggregator *intelligence.Aggregator, logger *slog.Logger) *TextractProvider {
	return &TextractProvider{
		api:       api,
		assembler: newAssembler("textract", aggregator, logger),
	}
}

// NewTextractProviderFromRegion loads the default AWS credential chain for
// region. An empty region yields an unconfigured provider.
func NewTextractProviderFromRegion(ctx context.Context, region string, aggregator *intelligence.Aggregator, logger *slog.Logger) (*TextractProvider, error) {
	if region == "" {
		return NewTextractProvider(nil, aggregator, logger), nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return NewTextractProvider(textract.NewFromConfig(cfg), aggregator, logger), nil
}

// Name returns the provider name
func (p *TextractProvider) Name() string { return p.provider }

// IsConfigured reports whether a Textract client is available
func (p *TextractProvider) IsConfigured() bool { return p.api != nil }

// EstimateCost returns the expected charge for pages
func (p *TextractProvider) EstimateCost(pages int) float64 {
	return float64(pages) * textractCostPerPage
}

// Extract runs forms analysis and canonicalizes the key-value sets
func (p *TextractProvider) Extract(ctx context.Context, data []byte) (*intelligence.ParseResult, error) {
	if !p.IsConfigured() {
		return nil, ErrNotConfigured
	}

	out, err := p.api.AnalyzeDocument(ctx, &textract.AnalyzeDocumentInput{
		Document:     &types.Document{Bytes: data},
		FeatureTypes: []types.FeatureType{types.FeatureTypeForms},
	})
	if err != nil {
		where := p.provider
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			where += ": " + apiErr.ErrorCode()
		}
		p.logger.Warn("textract analysis failed", "err", err)
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeProviderFailure, err).WithContext(where)
	}

	pairs, pages := textractPairs(out.Blocks)
	return p.assemble(pairs, max(pages, 1)), nil
}

// textractPairs resolves KEY blocks to their VALUE blocks and the words under
// each, returning the pairs in block order and the page count.
func textractPairs(blocks []types.Block) ([]pair, int) {
	byID := make(map[string]types.Block, len(blocks))
	pages := 0
	for _, b := range blocks {
		if b.Id != nil {
			byID[*b.Id] = b
		}
		if b.BlockType == types.BlockTypePage {
			pages++
		}
	}

	var pairs []pair
	for _, b := range blocks {
		if b.BlockType != types.BlockTypeKeyValueSet || !hasEntity(b, types.EntityTypeKey) {
			continue
		}

		key := blockText(b, byID)
		var valueBlock *types.Block
		for _, rel := range b.Relationships {
			if rel.Type != types.RelationshipTypeValue {
				continue
			}
			for _, id := range rel.Ids {
				if v, ok := byID[id]; ok {
					valueBlock = &v
					break
				}
			}
		}
		if valueBlock == nil {
			continue
		}

		value := blockText(*valueBlock, byID)
		if key == "" || value == "" {
			continue
		}

		confidence := float64(aws.ToFloat32(valueBlock.Confidence)) / 100
		if k := float64(aws.ToFloat32(b.Confidence)) / 100; k < confidence {
			confidence = k
		}

		pairs = append(pairs, pair{
			key:        key,
			value:      value,
			confidence: confidence,
			page:       int(aws.ToInt32(valueBlock.Page)),
			bbox:       geometryBox(valueBlock.Geometry),
		})
	}
	return pairs, pages
}

func hasEntity(b types.Block, entity types.EntityType) bool {
	for _, e := range b.EntityTypes {
		if e == entity {
			return true
		}
	}
	return false
}

// blockText joins the words and selection marks under a block
func blockText(b types.Block, byID map[string]types.Block) string {
	var words []string
	for _, rel := range b.Relationships {
		if rel.Type != types.RelationshipTypeChild {
			continue
		}
		for _, id := range rel.Ids {
			child, ok := byID[id]
			if !ok {
				continue
			}
			switch child.BlockType {
			case types.BlockTypeWord:
				words = append(words, aws.ToString(child.Text))
			case types.BlockTypeSelectionElement:
				if child.SelectionStatus == types.SelectionStatusSelected {
					words = append(words, "X")
				}
			}
		}
	}
	return strings.TrimSpace(strings.Join(words, " "))
}

func geometryBox(g *types.Geometry) pdf.BBox {
	if g == nil || g.BoundingBox == nil {
		return pdf.BBox{Estimated: true}
	}
	bb := g.BoundingBox
	left, top := float64(bb.Left), float64(bb.Top)
	return normalizedBox(left, top, left+float64(bb.Width), top+float64(bb.Height))
}
