package validation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-forms/internal/intelligence"
)

var fixedNow = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

func newTestValidator() *Validator {
	return NewValidatorWithClock(func() time.Time { return fixedNow })
}

// passed flattens validations to rule=passed pairs for compact assertions
func passed(vs []intelligence.Validation) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = fmt.Sprintf("%s=%t", v.Rule, v.Passed)
	}
	return out
}

func TestValidator_Validate(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name      string
		canonical string
		value     string
		want      []string
	}{
		{name: "valid ssn", canonical: intelligence.SSN, value: "123-45-6789", want: []string{"format=true", "checksum=true"}},
		{name: "ssn without dashes", canonical: intelligence.SSN, value: "123456789", want: []string{"format=true", "checksum=true"}},
		{name: "ssn area 000", canonical: intelligence.SSN, value: "000-12-3456", want: []string{"format=true", "checksum=false"}},
		{name: "ssn area 666", canonical: intelligence.SSN, value: "666-12-3456", want: []string{"format=true", "checksum=false"}},
		{name: "ssn area 9xx", canonical: intelligence.SSN, value: "912-34-5678", want: []string{"format=true", "checksum=false"}},
		{name: "ssn bad format", canonical: intelligence.SSN, value: "12-345-6789", want: []string{"format=false", "checksum=true"}},
		{name: "ssn too short", canonical: intelligence.SSN, value: "123-45", want: []string{"format=false", "checksum=false"}},
		{name: "valid ein", canonical: intelligence.EIN, value: "12-3456789", want: []string{"format=true", "prefix=true"}},
		{name: "ein unassigned prefix", canonical: intelligence.EIN, value: "07-1234567", want: []string{"format=true", "prefix=false"}},
		{name: "valid email", canonical: intelligence.Email, value: "jane.doe@example.com", want: []string{"format=true"}},
		{name: "email without tld", canonical: intelligence.Email, value: "jane@example", want: []string{"format=false"}},
		{name: "ten digit phone", canonical: intelligence.Phone, value: "(555) 123-4567", want: []string{"format=true"}},
		{name: "eleven digit phone", canonical: intelligence.Phone, value: "+1 555 123 4567", want: []string{"format=true"}},
		{name: "eleven digits not starting with 1", canonical: intelligence.Phone, value: "25551234567", want: []string{"format=false"}},
		{name: "short phone", canonical: intelligence.Phone, value: "123-4567", want: []string{"format=false"}},
		{name: "zip", canonical: intelligence.Zip, value: "94107", want: []string{"format=true"}},
		{name: "zip plus four", canonical: intelligence.Zip, value: "94107-1234", want: []string{"format=true"}},
		{name: "bad zip", canonical: intelligence.Zip, value: "9410", want: []string{"format=false"}},
		{name: "state", canonical: intelligence.State, value: "CA", want: []string{"code=true"}},
		{name: "territory lower case", canonical: intelligence.State, value: "pr", want: []string{"code=true"}},
		{name: "unknown state", canonical: intelligence.State, value: "ZZ", want: []string{"code=false"}},
		{name: "us date", canonical: intelligence.DOB, value: "01/15/1990", want: []string{"format=true", "range=true"}},
		{name: "dashed date", canonical: intelligence.DOB, value: "01-15-1990", want: []string{"format=true", "range=true"}},
		{name: "iso date", canonical: intelligence.DOB, value: "1990-01-15", want: []string{"format=true", "range=true"}},
		{name: "short year", canonical: intelligence.DOB, value: "01/15/90", want: []string{"format=true", "range=true"}},
		{name: "future date", canonical: intelligence.DOB, value: "01/15/2030", want: []string{"format=true", "range=false"}},
		{name: "before 1900", canonical: intelligence.DOB, value: "1899-12-31", want: []string{"format=true", "range=false"}},
		{name: "older than 120", canonical: intelligence.DOB, value: "1901-06-01", want: []string{"format=true", "range=false"}},
		{name: "unparseable date", canonical: intelligence.DOB, value: "last tuesday", want: []string{"format=false", "range=false"}},
		{name: "no rules", canonical: intelligence.Employer, value: "Acme", want: []string{"none=true"}},
		{name: "unknown canonical", canonical: intelligence.Unknown, value: "x", want: []string{"none=true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, passed(v.Validate(tt.canonical, tt.value)))
		})
	}
}

func TestValidator_FailureMessages(t *testing.T) {
	v := newTestValidator()

	got := v.Validate(intelligence.SSN, "666-12-3456")
	require.Len(t, got, 2)
	assert.Empty(t, got[0].Message)
	assert.Equal(t, "Invalid SSN area number", got[1].Message)

	got = v.Validate(intelligence.DOB, "01/15/2030")
	require.Len(t, got, 2)
	assert.Equal(t, "Date of birth is in the future", got[1].Message)

	got = v.Validate(intelligence.DOB, "13/45/1990")
	require.Len(t, got, 2)
	assert.Contains(t, got[0].Message, "13/45/1990")
}

func TestValidator_SSNChecksumProperty(t *testing.T) {
	v := newTestValidator()
	for _, area := range []string{"000", "666", "900", "950", "999"} {
		value := area + "-45-6789"
		got := v.Validate(intelligence.SSN, value)
		require.Len(t, got, 2)
		assert.False(t, got[1].Passed, value)
	}
}

func TestValidator_ValidateField(t *testing.T) {
	v := newTestValidator()

	field := intelligence.Field{
		Canonical:  intelligence.SSN,
		Candidates: []intelligence.Candidate{{Value: "123-45-6789", Confidence: 0.95, Page: 1}},
	}
	field.Chosen = &field.Candidates[0]

	v.ValidateField(&field)
	assert.Equal(t, []intelligence.Validation{
		{Rule: RuleFormat, Passed: true},
		{Rule: RuleChecksum, Passed: true},
	}, field.Validations)

	unchosen := intelligence.Field{
		Canonical:   intelligence.SSN,
		Candidates:  []intelligence.Candidate{{Value: "123-45-6789", Confidence: 0.4}},
		Validations: []intelligence.Validation{{Rule: "stale"}},
	}
	v.ValidateField(&unchosen)
	assert.Empty(t, unchosen.Validations, "fields without a chosen value are not validated")

	v.ValidateField(nil)
}

func TestValidator_ValidateFields(t *testing.T) {
	v := newTestValidator()
	fields := []intelligence.Field{
		{Canonical: intelligence.Zip, Candidates: []intelligence.Candidate{{Value: "94107"}}},
		{Canonical: intelligence.City, Candidates: []intelligence.Candidate{{Value: "Boston"}}},
	}
	for i := range fields {
		fields[i].Chosen = &fields[i].Candidates[0]
	}

	v.ValidateFields(fields)
	assert.Equal(t, []string{"format=true"}, passed(fields[0].Validations))
	assert.Equal(t, []string{"none=true"}, passed(fields[1].Validations))
}

func TestHasRules(t *testing.T) {
	assert.True(t, HasRules(intelligence.DOB))
	assert.True(t, HasRules(intelligence.State))
	assert.False(t, HasRules(intelligence.City))
}
