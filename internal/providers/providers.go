// Package providers is the scanner's pluggable-component registry: lazy
// singleton factories for face detection, AI-generated-image detection,
// and match scoring, selected by name from config. Grounded on the
// teacher's internal/ai/providers/factory.go switch-on-name pattern and on
// the original implementation's providers/__init__.py module-level
// singleton factories.
package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/divavault/scanner-core/internal/models"
)

// DetectedFace is one face found in an image, with its embedding.
type DetectedFace struct {
	Vector         [models.EmbeddingDim]float32
	DetectionScore float32
	BoundingBox    [4]int // x, y, w, h
}

// FaceDetectionProvider detects faces and generates embeddings in a single
// pass over an image file.
type FaceDetectionProvider interface {
	Name() string
	Detect(ctx context.Context, imagePath string) ([]DetectedFace, error)
}

// AIClassification is the result of AI-generated-content classification.
type AIClassification struct {
	IsAIGenerated bool
	Score         float32
	Generator     string
}

// AIDetectionProvider classifies whether an image is AI-generated.
type AIDetectionProvider interface {
	Name() string
	Classify(ctx context.Context, imageURL string) (*AIClassification, error)
}

// MatchScorerProvider maps raw cosine similarity to a confidence tier.
type MatchScorerProvider interface {
	Score(similarity float32) models.ConfidenceTier
}

// Registry holds the lazily-constructed provider singletons for one
// process. Unlike the teacher's package-level globals, this is an
// explicit struct so tests can build independent registries.
type Registry struct {
	mu sync.Mutex

	faceDetectionName string
	aiDetectionName   string
	matchScoringName  string

	faceDetection FaceDetectionProvider
	aiDetection   AIDetectionProvider
	matchScoring  MatchScorerProvider

	faceDetectionFactories map[string]func() (FaceDetectionProvider, error)
	aiDetectionFactories   map[string]func() (AIDetectionProvider, error)
	matchScoringFactories  map[string]func() (MatchScorerProvider, error)
}

// NewRegistry builds a registry that will construct providers by name on
// first use. Factories are supplied by the caller (cmd/scanner wiring) so
// this package has no hard dependency on concrete provider implementations.
func NewRegistry(faceDetectionName, aiDetectionName, matchScoringName string) *Registry {
	return &Registry{
		faceDetectionName:      faceDetectionName,
		aiDetectionName:        aiDetectionName,
		matchScoringName:       matchScoringName,
		faceDetectionFactories: make(map[string]func() (FaceDetectionProvider, error)),
		aiDetectionFactories:   make(map[string]func() (AIDetectionProvider, error)),
		matchScoringFactories:  make(map[string]func() (MatchScorerProvider, error)),
	}
}

// RegisterFaceDetection adds a constructible face detection implementation
// under the given name.
func (r *Registry) RegisterFaceDetection(name string, factory func() (FaceDetectionProvider, error)) {
	r.faceDetectionFactories[name] = factory
}

// RegisterAIDetection adds a constructible AI detection implementation
// under the given name.
func (r *Registry) RegisterAIDetection(name string, factory func() (AIDetectionProvider, error)) {
	r.aiDetectionFactories[name] = factory
}

// RegisterMatchScoring adds a constructible match scoring implementation
// under the given name.
func (r *Registry) RegisterMatchScoring(name string, factory func() (MatchScorerProvider, error)) {
	r.matchScoringFactories[name] = factory
}

// FaceDetection returns the configured face detection provider, building it
// on first call.
func (r *Registry) FaceDetection() (FaceDetectionProvider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.faceDetection != nil {
		return r.faceDetection, nil
	}
	factory, ok := r.faceDetectionFactories[r.faceDetectionName]
	if !ok {
		return nil, fmt.Errorf("providers: unknown face detection provider %q", r.faceDetectionName)
	}
	p, err := factory()
	if err != nil {
		return nil, fmt.Errorf("providers: construct face detection provider %q: %w", r.faceDetectionName, err)
	}
	r.faceDetection = p
	return p, nil
}

// AIDetection returns the configured AI detection provider, building it on
// first call.
func (r *Registry) AIDetection() (AIDetectionProvider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.aiDetection != nil {
		return r.aiDetection, nil
	}
	factory, ok := r.aiDetectionFactories[r.aiDetectionName]
	if !ok {
		return nil, fmt.Errorf("providers: unknown AI detection provider %q", r.aiDetectionName)
	}
	p, err := factory()
	if err != nil {
		return nil, fmt.Errorf("providers: construct AI detection provider %q: %w", r.aiDetectionName, err)
	}
	r.aiDetection = p
	return p, nil
}

// MatchScoring returns the configured match scoring provider, building it
// on first call.
func (r *Registry) MatchScoring() (MatchScorerProvider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.matchScoring != nil {
		return r.matchScoring, nil
	}
	factory, ok := r.matchScoringFactories[r.matchScoringName]
	if !ok {
		return nil, fmt.Errorf("providers: unknown match scoring provider %q", r.matchScoringName)
	}
	p, err := factory()
	if err != nil {
		return nil, fmt.Errorf("providers: construct match scoring provider %q: %w", r.matchScoringName, err)
	}
	r.matchScoring = p
	return p, nil
}
