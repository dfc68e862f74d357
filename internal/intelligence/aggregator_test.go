package intelligence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
)

func raw(key, value string, confidence float64) RawField {
	return RawField{
		Key:        key,
		Value:      value,
		BBox:       pdf.BBox{X0: 72, Y0: 72, X1: 100, Y1: 88},
		Page:       1,
		Confidence: confidence,
		SourceText: key + ": " + value,
	}
}

func TestAggregator_Aggregate(t *testing.T) {
	agg := NewAggregator(DefaultAggregatorConfig(), nil, nil)

	fields := agg.Aggregate([]RawField{
		raw("First Name", "John", 0.8),
		raw("ssn", "123-45-6789", 0.95),
		raw("Given Name", "Johnny", 0.9),
		raw("Qwerty", "zz9", 0.8),
	})

	require.Len(t, fields, 2, "unknown pairs are excluded by default")
	assert.Equal(t, FirstName, fields[0].Canonical)
	assert.Equal(t, SSN, fields[1].Canonical)

	first := fields[0]
	require.Len(t, first.Candidates, 2)
	assert.Equal(t, "Johnny", first.Candidates[0].Value)
	assert.InDelta(t, 0.9, first.Candidates[0].Confidence, 1e-9)
	assert.Equal(t, "John", first.Candidates[1].Value)
	assert.InDelta(t, 0.8, first.Candidates[1].Confidence, 1e-9)
	require.NotNil(t, first.Chosen)
	assert.Same(t, &first.Candidates[0], first.Chosen)

	ssn := fields[1]
	require.NotNil(t, ssn.Chosen)
	assert.Equal(t, "123-45-6789", ssn.ChosenValue())
	assert.InDelta(t, 0.95, ssn.Chosen.Confidence, 1e-9)
}

func TestAggregator_MatchConfidenceLimitsCandidate(t *testing.T) {
	agg := NewAggregator(DefaultAggregatorConfig(), nil, nil)

	// value-shape inference caps confidence at 0.7 even for a perfect extraction
	fields := agg.Aggregate([]RawField{raw("", "Jane Q Public", 1.0)})
	require.Len(t, fields, 1)
	assert.Equal(t, FullName, fields[0].Canonical)
	assert.InDelta(t, 0.7, fields[0].Candidates[0].Confidence, 1e-9)
}

func TestAggregator_ChoiceFloor(t *testing.T) {
	agg := NewAggregator(DefaultAggregatorConfig(), nil, nil)

	fields := agg.Aggregate([]RawField{raw("email", "a@b.co", 0.5)})
	require.Len(t, fields, 1)
	assert.Nil(t, fields[0].Chosen)
	assert.Len(t, fields[0].Candidates, 1, "candidates below the floor are kept")
	assert.Equal(t, "", fields[0].ChosenValue())
}

func TestAggregator_StableOrderAndCap(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{AutoChooseFloor: 0.6, MaxCandidates: 3}, nil, nil)

	fields := agg.Aggregate([]RawField{
		raw("city", "Austin", 0.7),
		raw("city", "Boston", 0.9),
		raw("city", "Chicago", 0.7),
		raw("city", "Boston", 0.8),
		raw("city", "Denver", 0.7),
	})

	require.Len(t, fields, 1)
	var values []string
	for _, c := range fields[0].Candidates {
		values = append(values, c.Value)
	}
	// ties keep detection order; Chicago and Denver fall off the cap
	assert.Equal(t, []string{"Boston", "Boston", "Austin"}, values)
	assert.InDelta(t, 0.8, fields[0].Candidates[1].Confidence, 1e-9, "repeated values keep their own confidence")
}

func TestAggregator_IncludeUnknown(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{AutoChooseFloor: 0.6, MaxCandidates: 3, IncludeUnknown: true}, nil, nil)

	fields := agg.Aggregate([]RawField{raw("Qwerty", "zz9", 0.8)})
	require.Len(t, fields, 1)
	assert.Equal(t, Unknown, fields[0].Canonical)
	assert.Nil(t, fields[0].Chosen, "unknown match confidence is zero")
}

func TestAggregator_Invariants(t *testing.T) {
	agg := NewAggregator(DefaultAggregatorConfig(), nil, nil)
	fields := agg.Aggregate([]RawField{
		raw("phone", "555-123-4567", 0.85),
		raw("Telephone", "(555) 987-6543", 0.8),
		raw("Zip", "94107", 0.85),
		raw("postal", "10001", 0.95),
		raw("DOB", "01/02/1980", 0.9),
	})

	for _, f := range fields {
		assert.True(t, IsCanonical(f.Canonical))
		for i := 1; i < len(f.Candidates); i++ {
			assert.GreaterOrEqual(t, f.Candidates[i-1].Confidence, f.Candidates[i].Confidence)
		}
		if f.Chosen != nil {
			assert.Same(t, &f.Candidates[0], f.Chosen)
		}
	}
}

func TestNewRawField(t *testing.T) {
	box := pdf.BBox{X0: 1, Y0: 1, X1: 2, Y1: 2}
	long := make([]rune, 300)
	for i := range long {
		long[i] = 'x'
	}

	rf, err := NewRawField("  Name ", " John ", box, 1, 1.5, "Name: John")
	require.NoError(t, err)
	assert.Equal(t, "Name", rf.Key)
	assert.Equal(t, "John", rf.Value)
	assert.Equal(t, 1.0, rf.Confidence)

	rf, err = NewRawField("notes", string(long), box, 1, 0.8, "")
	require.NoError(t, err)
	assert.Len(t, []rune(rf.Value), MaxValueLength)

	bad := []struct {
		name  string
		key   string
		value string
		box   pdf.BBox
		page  int
	}{
		{name: "empty key", key: "", value: "v", box: box, page: 1},
		{name: "long key", key: string(long[:65]), value: "v", box: box, page: 1},
		{name: "empty value", key: "k", value: "   ", box: box, page: 1},
		{name: "bad page", key: "k", value: "v", box: box, page: 0},
		{name: "inverted box", key: "k", value: "v", box: pdf.BBox{X0: 5, X1: 1}, page: 1},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRawField(tt.key, tt.value, tt.box, tt.page, 0.8, "")
			assert.Error(t, err)
		})
	}
}
