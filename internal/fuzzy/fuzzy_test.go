package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  First   Name: ", "first name"},
		{"E-mail", "e mail"},
		{"DOB (MM/DD/YYYY)", "dob mm dd yyyy"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("", ""))
	assert.Equal(t, 1.0, Ratio("ssn", "ssn"))
	assert.Equal(t, 0.0, Ratio("ssn", ""))
	assert.InDelta(t, 0.75, Ratio("abcd", "abce"), 1e-9)
	assert.InDelta(t, 0.0, Ratio("abc", "xyz"), 1e-9)
}

func TestTokenSortRatio(t *testing.T) {
	assert.Equal(t, 1.0, TokenSortRatio("Name First", "first name"))
	assert.Less(t, TokenSortRatio("employer", "first name"), 0.5)
}

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{name: "subset label", a: "Social Security Number", b: "social security", min: 1.0, max: 1.0},
		{name: "identical", a: "zip code", b: "Zip Code", min: 1.0, max: 1.0},
		{name: "disjoint", a: "phone", b: "employer", min: 0.0, max: 0.5},
		{name: "empty side", a: "", b: "email", min: 0.0, max: 0.0},
		{name: "partial overlap", a: "home phone number", b: "phone extension", min: 0.3, max: 0.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokenSetRatio(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
			assert.Equal(t, got, TokenSetRatio(tt.b, tt.a), "score must be symmetric")
		})
	}
}

func TestBest(t *testing.T) {
	score, idx := Best("surname", []string{"first name", "surname", "last name"}, TokenSortRatio)
	assert.Equal(t, 1.0, score)
	assert.Equal(t, 1, idx)

	score, idx = Best("anything", nil, TokenSortRatio)
	assert.Equal(t, 0.0, score)
	assert.Equal(t, -1, idx)
}
