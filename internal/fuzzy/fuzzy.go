// Package fuzzy provides normalized string similarity scores in [0,1].
//
// Ratio is the Levenshtein similarity 1 - distance/maxLen. TokenSortRatio and
// TokenSetRatio make the comparison insensitive to word order and, for the
// set variant, to extra words present on only one side.
package fuzzy

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Normalize lower-cases s, turns punctuation into spaces and collapses runs of whitespace.
func Normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// Ratio returns the normalized Levenshtein similarity of a and b.
// Two empty strings are identical; one empty string scores zero.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if la == 0 || lb == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}

// TokenSortRatio compares the normalized inputs after sorting their words.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedTokens(Normalize(a)), sortedTokens(Normalize(b)))
}

// TokenSetRatio compares the shared words of a and b against each side's
// full word set and returns the best of the three pairings. A label that
// contains every word of the other input scores 1.0.
func TokenSetRatio(a, b string) float64 {
	setA := tokenSet(Normalize(a))
	setB := tokenSet(Normalize(b))
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	var common, onlyA, onlyB []string
	for tok := range setA {
		if setB[tok] {
			common = append(common, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range setB {
		if !setA[tok] {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	if len(common) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 1.0
	}

	t0 := strings.Join(common, " ")
	t1 := joinNonEmpty(t0, strings.Join(onlyA, " "))
	t2 := joinNonEmpty(t0, strings.Join(onlyB, " "))

	best := Ratio(t1, t2)
	if t0 != "" {
		best = max(best, Ratio(t0, t1), Ratio(t0, t2))
	}
	return best
}

// Best scores query against every term and returns the highest score with
// the index of its term, or -1 when terms is empty. Ties keep the earliest term.
func Best(query string, terms []string, scorer func(a, b string) float64) (float64, int) {
	bestScore, bestIdx := 0.0, -1
	for i, term := range terms {
		if s := scorer(query, term); bestIdx == -1 || s > bestScore {
			bestScore, bestIdx = s, i
		}
	}
	return bestScore, bestIdx
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
