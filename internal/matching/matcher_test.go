package matching

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-forms/internal/intelligence"
)

func chosenField(canonical, value string) intelligence.Field {
	f := intelligence.Field{
		Canonical:  canonical,
		Candidates: []intelligence.Candidate{{Value: value, Confidence: 0.95, Page: 1}},
	}
	f.Chosen = &f.Candidates[0]
	return f
}

// keywordEmbedder puts texts mentioning mail or contact on one axis and
// everything else on the other.
type keywordEmbedder struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (k *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	k.calls.Add(1)
	if k.delay > 0 {
		time.Sleep(k.delay)
	}
	if k.err != nil {
		return nil, k.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if strings.Contains(t, "mail") || strings.Contains(t, "contact") {
			out[i] = []float64{1, 0}
		} else {
			out[i] = []float64{0, 1}
		}
	}
	return out, nil
}

func TestDomInput_Label(t *testing.T) {
	in := DomInput{LabelText: "  First   Name ", Name: "FName", ID: "first-name"}
	assert.Equal(t, "first name fname first-name", in.Label())
	assert.Equal(t, "", DomInput{Selector: "#x"}.Label())
}

func TestMatcher_Tier(t *testing.T) {
	m := NewMatcher(DefaultMatcherConfig(), nil, nil)

	tests := []struct {
		score float64
		want  string
	}{
		{1.0, TierHigh},
		{0.92, TierHigh},
		{0.91999, TierMedium},
		{0.80, TierMedium},
		{0.79999, TierLow},
		{0.1, TierLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Tier(tt.score), "score %v", tt.score)
	}
}

func TestMatcher_SocialSecurityLabel(t *testing.T) {
	m := NewMatcher(DefaultMatcherConfig(), nil, nil)

	result, err := m.Match(context.Background(),
		[]intelligence.Field{chosenField(intelligence.SSN, "123-45-6789")},
		[]DomInput{
			{Selector: "#email", LabelText: "Email"},
			{Selector: "#ssn", LabelText: "Social Security Number"},
		})
	require.NoError(t, err)

	require.Len(t, result.High, 1)
	match := result.High[0]
	assert.Equal(t, "#ssn", match.Selector)
	assert.Equal(t, intelligence.SSN, match.Canonical)
	assert.Equal(t, "123-45-6789", match.Value)
	assert.GreaterOrEqual(t, match.Confidence, 0.80)
	assert.Equal(t, match.FuzzyScore, match.Confidence)
}

func TestMatcher_TieBreakPrefersCloserLabel(t *testing.T) {
	m := NewMatcher(DefaultMatcherConfig(), nil, nil)
	inputs := []DomInput{
		{Selector: "#first", LabelText: "First Name"},
		{Selector: "#full", LabelText: "Full Name"},
	}

	result, err := m.Match(context.Background(), []intelligence.Field{
		chosenField(intelligence.FullName, "Jane Public"),
		chosenField(intelligence.FirstName, "Jane"),
	}, inputs)
	require.NoError(t, err)

	require.Len(t, result.High, 2)
	assert.Equal(t, "#full", result.High[0].Selector)
	assert.Equal(t, "#first", result.High[1].Selector)
}

func TestMatcher_SkipsFieldsWithoutValue(t *testing.T) {
	m := NewMatcher(DefaultMatcherConfig(), nil, nil)

	unchosen := intelligence.Field{
		Canonical:  intelligence.Email,
		Candidates: []intelligence.Candidate{{Value: "a@b.co", Confidence: 0.4}},
	}
	result, err := m.Match(context.Background(),
		[]intelligence.Field{unchosen, chosenField(intelligence.Unknown, "zz9")},
		[]DomInput{{Selector: "#email", LabelText: "Email"}})
	require.NoError(t, err)
	assert.Empty(t, result.All())
}

func TestMatcher_LowTierPolicy(t *testing.T) {
	fields := []intelligence.Field{chosenField(intelligence.Email, "jane@example.com")}
	inputs := []DomInput{{Selector: "#box", LabelText: "Mail Box"}}

	m := NewMatcher(DefaultMatcherConfig(), nil, nil)
	result, err := m.Match(context.Background(), fields, inputs)
	require.NoError(t, err)
	require.Len(t, result.Low, 1)
	assert.Greater(t, result.Low[0].Confidence, 0.0)
	assert.Less(t, result.Low[0].Confidence, 0.80)

	cfg := DefaultMatcherConfig()
	cfg.DropLow = true
	result, err = NewMatcher(cfg, nil, nil).Match(context.Background(), fields, inputs)
	require.NoError(t, err)
	assert.Empty(t, result.All())

	cfg = DefaultMatcherConfig()
	cfg.LowFloor = 0.75
	result, err = NewMatcher(cfg, nil, nil).Match(context.Background(), fields, inputs)
	require.NoError(t, err)
	assert.Empty(t, result.All())
}

func TestMatcher_NoOverlapProducesNothing(t *testing.T) {
	m := NewMatcher(DefaultMatcherConfig(), nil, nil)
	result, err := m.Match(context.Background(),
		[]intelligence.Field{chosenField(intelligence.Email, "jane@example.com")},
		[]DomInput{{Selector: "#z", LabelText: "zzzz"}, {Selector: "#blank"}})
	require.NoError(t, err)
	assert.Empty(t, result.All())
}

func TestMatcher_SemanticBlend(t *testing.T) {
	cfg := DefaultMatcherConfig()
	cfg.SemanticWeight = 1.0
	index := NewSemanticIndex(&keywordEmbedder{})
	m := NewMatcher(cfg, index, nil)

	result, err := m.Match(context.Background(),
		[]intelligence.Field{chosenField(intelligence.Email, "jane@example.com")},
		[]DomInput{{Selector: "#a", LabelText: "zzzz"}, {Selector: "#b", LabelText: "Contact"}})
	require.NoError(t, err)

	require.Len(t, result.High, 1)
	match := result.High[0]
	assert.Equal(t, "#b", match.Selector)
	assert.InDelta(t, 1.0, match.SemanticScore, 1e-9)
	assert.InDelta(t, 1.0, match.Confidence, 1e-9)
	assert.True(t, index.Ready())
}

func TestMatcher_EmbedderFailureFallsBackToFuzzy(t *testing.T) {
	index := NewSemanticIndex(&keywordEmbedder{err: errors.New("backend down")})
	m := NewMatcher(DefaultMatcherConfig(), index, nil)

	result, err := m.Match(context.Background(),
		[]intelligence.Field{chosenField(intelligence.SSN, "123-45-6789")},
		[]DomInput{{Selector: "#ssn", LabelText: "Social Security Number"}})
	require.NoError(t, err)

	require.Len(t, result.High, 1)
	assert.Zero(t, result.High[0].SemanticScore)
	assert.InDelta(t, 1.0, result.High[0].Confidence, 1e-9)
	assert.False(t, index.Ready())
}

func TestMatcher_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMatcher(DefaultMatcherConfig(), nil, nil).Match(ctx,
		[]intelligence.Field{chosenField(intelligence.SSN, "123-45-6789")},
		[]DomInput{{Selector: "#ssn", LabelText: "SSN"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSemanticIndex_InitializeOnce(t *testing.T) {
	embedder := &keywordEmbedder{delay: 20 * time.Millisecond}
	index := NewSemanticIndex(embedder)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, index.Initialize(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), embedder.calls.Load())
	require.NoError(t, index.Initialize(context.Background()))
	assert.Equal(t, int32(1), embedder.calls.Load())
	assert.Len(t, index.TermVectors(intelligence.SSN), len(intelligence.SearchTerms(intelligence.SSN)))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Zero(t, cosine([]float64{1}, []float64{1, 2}))
	assert.Zero(t, cosine([]float64{0, 0}, []float64{1, 2}))
	assert.Zero(t, maxCosine([]float64{1, 0}, [][]float64{{-1, 0}}))
}
