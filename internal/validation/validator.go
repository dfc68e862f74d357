// Package validation checks chosen field values against per-type format and
// semantic rules. A failed rule is metadata on the field, never an error.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/a3tai/mcp-pdf-forms/internal/intelligence"
)

// Rule names attached to Validation results
const (
	RuleNone     = "none"
	RuleFormat   = "format"
	RuleChecksum = "checksum"
	RulePrefix   = "prefix"
	RuleRange    = "range"
	RuleCode     = "code"
)

// Limits for the date of birth range rule
const (
	minBirthYear = 1900
	maxAgeYears  = 120
	daysPerYear  = 365.25
)

var (
	ssnFormat   = regexp.MustCompile(`^\d{3}-?\d{2}-?\d{4}$`)
	einFormat   = regexp.MustCompile(`^\d{2}-?\d{7}$`)
	emailFormat = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	zipFormat   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	nonDigits   = regexp.MustCompile(`\D`)
)

// dateLayouts are tried in order. Single-digit layout elements also accept
// zero-padded input.
var dateLayouts = []string{
	"1/2/2006",
	"1-2-2006",
	"2006-1-2",
	"1/2/06",
	"1-2-06",
}

// stateCodes holds the 50 states, DC and the inhabited territories
var stateCodes = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true, "CT": true,
	"DE": true, "FL": true, "GA": true, "HI": true, "ID": true, "IL": true, "IN": true,
	"IA": true, "KS": true, "KY": true, "LA": true, "ME": true, "MD": true, "MA": true,
	"MI": true, "MN": true, "MS": true, "MO": true, "MT": true, "NE": true, "NV": true,
	"NH": true, "NJ": true, "NM": true, "NY": true, "NC": true, "ND": true, "OH": true,
	"OK": true, "OR": true, "PA": true, "RI": true, "SC": true, "SD": true, "TN": true,
	"TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true, "WI": true,
	"WY": true, "DC": true,
	"PR": true, "VI": true, "GU": true, "AS": true, "MP": true,
}

// Validator runs the rules registered for each canonical field type
type Validator struct {
	now func() time.Time
}

// NewValidator creates a validator that checks dates against the wall clock
func NewValidator() *Validator {
	return NewValidatorWithClock(time.Now)
}

// NewValidatorWithClock creates a validator whose notion of "today" comes
// from now, so range checks are reproducible.
func NewValidatorWithClock(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

// Validate runs every rule registered for canonical against value, in a
// fixed order. Types without rules yield a single passing "none" result.
func (v *Validator) Validate(canonical, value string) []intelligence.Validation {
	value = strings.TrimSpace(value)

	switch canonical {
	case intelligence.SSN:
		return []intelligence.Validation{
			check(RuleFormat, ssnFormat.MatchString(value), "SSN must be 9 digits as XXX-XX-XXXX"),
			ssnChecksum(value),
		}
	case intelligence.EIN:
		return []intelligence.Validation{
			check(RuleFormat, einFormat.MatchString(value), "EIN must be 9 digits as XX-XXXXXXX"),
			check(RulePrefix, intelligence.ValidEINPrefix(value), "EIN prefix is not assigned"),
		}
	case intelligence.Email:
		return []intelligence.Validation{
			check(RuleFormat, emailFormat.MatchString(value), "Invalid email address"),
		}
	case intelligence.Phone:
		return []intelligence.Validation{
			check(RuleFormat, validPhoneDigits(value), "Phone must have 10 digits, or 11 starting with 1"),
		}
	case intelligence.Zip:
		return []intelligence.Validation{
			check(RuleFormat, zipFormat.MatchString(value), "ZIP must be XXXXX or XXXXX-XXXX"),
		}
	case intelligence.DOB:
		return v.validateDOB(value)
	case intelligence.State:
		return []intelligence.Validation{
			check(RuleCode, stateCodes[strings.ToUpper(value)], fmt.Sprintf("Unknown state code %q", value)),
		}
	default:
		return []intelligence.Validation{{Rule: RuleNone, Passed: true}}
	}
}

// ValidateField replaces the field's validations with the results for its
// chosen value. Fields without a chosen candidate are left unvalidated.
func (v *Validator) ValidateField(field *intelligence.Field) {
	if field == nil {
		return
	}
	if field.Chosen == nil {
		field.Validations = nil
		return
	}
	field.Validations = v.Validate(field.Canonical, field.Chosen.Value)
}

// ValidateFields validates every field in place
func (v *Validator) ValidateFields(fields []intelligence.Field) {
	for i := range fields {
		v.ValidateField(&fields[i])
	}
}

// HasRules reports whether canonical has any rule besides the pass-through
func HasRules(canonical string) bool {
	switch canonical {
	case intelligence.SSN, intelligence.EIN, intelligence.Email, intelligence.Phone,
		intelligence.Zip, intelligence.DOB, intelligence.State:
		return true
	}
	return false
}

func (v *Validator) validateDOB(value string) []intelligence.Validation {
	date, ok := ParseDate(value)
	if !ok {
		return []intelligence.Validation{
			check(RuleFormat, false, fmt.Sprintf("Unrecognized date %q, expected MM/DD/YYYY", value)),
			check(RuleRange, false, "Cannot check the range of an unparseable date"),
		}
	}

	formatOK := check(RuleFormat, true, "")
	now := v.now()
	switch {
	case date.Year() < minBirthYear:
		return []intelligence.Validation{formatOK, check(RuleRange, false, fmt.Sprintf("Year %d is before %d", date.Year(), minBirthYear))}
	case date.After(now):
		return []intelligence.Validation{formatOK, check(RuleRange, false, "Date of birth is in the future")}
	case now.Sub(date).Hours()/24/daysPerYear > maxAgeYears:
		return []intelligence.Validation{formatOK, check(RuleRange, false, fmt.Sprintf("Implied age exceeds %d years", maxAgeYears))}
	}
	return []intelligence.Validation{formatOK, check(RuleRange, true, "")}
}

// ParseDate parses value with the accepted date layouts
func ParseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func ssnChecksum(value string) intelligence.Validation {
	area, group, serial, ok := intelligence.SplitSSN(value)
	switch {
	case !ok:
		return check(RuleChecksum, false, "SSN must have 9 digits")
	case area == 0 || area == 666 || area >= 900:
		return check(RuleChecksum, false, "Invalid SSN area number")
	case group == 0:
		return check(RuleChecksum, false, "Invalid SSN group number")
	case serial == 0:
		return check(RuleChecksum, false, "Invalid SSN serial number")
	}
	return check(RuleChecksum, true, "")
}

func validPhoneDigits(value string) bool {
	digits := nonDigits.ReplaceAllString(value, "")
	return len(digits) == 10 || (len(digits) == 11 && digits[0] == '1')
}

func check(rule string, passed bool, failure string) intelligence.Validation {
	if passed {
		return intelligence.Validation{Rule: rule, Passed: true}
	}
	return intelligence.Validation{Rule: rule, Passed: false, Message: failure}
}
