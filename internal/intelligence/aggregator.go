package intelligence

import (
	"log/slog"
	"sort"
)

// AggregatorConfig controls how candidates are ranked and chosen
type AggregatorConfig struct {
	// AutoChooseFloor is the minimum confidence for the top candidate to be chosen.
	AutoChooseFloor float64 `json:"auto_choose_floor"`
	// MaxCandidates caps each field's candidate list.
	MaxCandidates int `json:"max_candidates"`
	// IncludeUnknown keeps pairs that matched no canonical name as an "unknown" field.
	IncludeUnknown bool `json:"include_unknown"`
}

// DefaultAggregatorConfig returns the default aggregation configuration
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		AutoChooseFloor: 0.60,
		MaxCandidates:   3,
		IncludeUnknown:  false,
	}
}

// Aggregator turns raw pairs into ranked canonical fields
type Aggregator struct {
	config     AggregatorConfig
	classifier *Classifier
	logger     *slog.Logger
}

// NewAggregator creates an aggregator using classifier for canonicalization
func NewAggregator(config AggregatorConfig, classifier *Classifier, logger *slog.Logger) *Aggregator {
	if classifier == nil {
		classifier = NewClassifier()
	}
	if config.MaxCandidates < 1 {
		config.MaxCandidates = DefaultAggregatorConfig().MaxCandidates
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{config: config, classifier: classifier, logger: logger}
}

// Aggregate groups raw pairs by canonical name in first-seen order. Each
// candidate's confidence is the lower of its extraction and match scores.
// Candidates are stably sorted by descending confidence and capped; candidates
// past the cap are dropped, never merged into the ones kept. The top
// candidate is chosen only when it reaches the auto-choose floor.
func (a *Aggregator) Aggregate(raw []RawField) []Field {
	var order []string
	groups := make(map[string][]Candidate)

	for _, rf := range raw {
		inf := a.classifier.Infer(rf.Key, rf.Value)
		if inf.Canonical == Unknown && !a.config.IncludeUnknown {
			a.logger.Debug("pair matched no canonical field", "key", rf.Key, "page", rf.Page)
			continue
		}

		if _, seen := groups[inf.Canonical]; !seen {
			order = append(order, inf.Canonical)
		}
		groups[inf.Canonical] = append(groups[inf.Canonical], Candidate{
			Value:      rf.Value,
			Confidence: min(rf.Confidence, inf.Confidence),
			BBox:       rf.BBox,
			SourceText: rf.SourceText,
			Page:       rf.Page,
		})
	}

	fields := make([]Field, 0, len(order))
	for _, canonical := range order {
		fields = append(fields, a.buildField(canonical, groups[canonical]))
	}
	return fields
}

// buildField ranks, caps and chooses for one canonical name
func (a *Aggregator) buildField(canonical string, candidates []Candidate) Field {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	n := min(len(candidates), a.config.MaxCandidates)
	ranked := candidates[:n:n]

	field := Field{Canonical: canonical, Candidates: ranked}
	if len(ranked) > 0 && ranked[0].Confidence >= a.config.AutoChooseFloor {
		field.Chosen = &field.Candidates[0]
	}
	return field
}
