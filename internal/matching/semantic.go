package matching

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/a3tai/mcp-pdf-forms/internal/intelligence"
)

// Embedder turns texts into vectors, one per input text and in input order
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// SemanticIndex holds the embeddings of every canonical search term. It is
// built once by Initialize and read-only afterwards.
type SemanticIndex struct {
	embedder Embedder
	group    singleflight.Group

	mu    sync.RWMutex
	ready bool
	terms map[string][][]float64
}

// NewSemanticIndex creates an uninitialized index backed by embedder
func NewSemanticIndex(embedder Embedder) *SemanticIndex {
	return &SemanticIndex{embedder: embedder}
}

// Ready reports whether the term embeddings have been computed
func (s *SemanticIndex) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Initialize embeds every search term of the vocabulary. It is idempotent;
// concurrent first calls share one computation. A failure leaves the index
// uninitialized so a later call can retry.
func (s *SemanticIndex) Initialize(ctx context.Context) error {
	if s.Ready() {
		return nil
	}

	_, err, _ := s.group.Do("initialize", func() (any, error) {
		if s.Ready() {
			return nil, nil
		}

		var (
			texts  []string
			owners []string
		)
		for _, canonical := range intelligence.CanonicalNames() {
			for _, term := range intelligence.SearchTerms(canonical) {
				texts = append(texts, term)
				owners = append(owners, canonical)
			}
		}

		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding search terms: %w", err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embedding search terms: got %d vectors for %d terms", len(vectors), len(texts))
		}

		terms := make(map[string][][]float64)
		for i, canonical := range owners {
			terms[canonical] = append(terms[canonical], vectors[i])
		}

		s.mu.Lock()
		s.terms = terms
		s.ready = true
		s.mu.Unlock()
		return nil, nil
	})
	return err
}

// TermVectors returns the embeddings of a canonical name's search terms
func (s *SemanticIndex) TermVectors(canonical string) [][]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.terms[canonical]
}

// EmbedLabels embeds the labels of one match call. Empty labels get a nil
// vector and are not sent to the embedder.
func (s *SemanticIndex) EmbedLabels(ctx context.Context, labels []string) ([][]float64, error) {
	out := make([][]float64, len(labels))

	var (
		texts []string
		slots []int
	)
	for i, l := range labels {
		if l != "" {
			texts = append(texts, l)
			slots = append(slots, i)
		}
	}
	if len(texts) == 0 {
		return out, nil
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("got %d vectors for %d labels", len(vectors), len(texts))
	}
	for i, slot := range slots {
		out[slot] = vectors[i]
	}
	return out, nil
}

// maxCosine returns the best cosine similarity of v against any of terms,
// clamped to [0,1].
func maxCosine(v []float64, terms [][]float64) float64 {
	best := 0.0
	for _, t := range terms {
		best = math.Max(best, cosine(v, t))
	}
	return math.Min(best, 1)
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
