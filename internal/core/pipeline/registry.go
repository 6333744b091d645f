// Package pipeline provides step registration and preset workflow building.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/heraldbot/herald/internal/integrations/gemini"
	"github.com/heraldbot/herald/internal/integrations/github"
	"github.com/heraldbot/herald/internal/integrations/qdrant"
)

// Approver is the external confirmation contract consulted before a write
// when interactive approval is enabled. A false return or an error means
// the dispatch is suppressed.
type Approver interface {
	Approve(ctx context.Context, preview string) (bool, error)
}

// Dependencies holds the external collaborators injected into steps.
// All of them are narrow contracts so tests can substitute fakes.
type Dependencies struct {
	// Tracker is the issue tracker (GitHub) client.
	Tracker github.Tracker

	// Classifier assigns one label in triage mode.
	Classifier gemini.Classifier

	// Judge supplies the question / feature-request signals used by the
	// gate in answer mode.
	Judge gemini.Judge

	// Composer drafts the answer text from retrieved documents.
	Composer gemini.Composer

	// Embedder turns issue content into a retrieval query vector.
	Embedder gemini.TextEmbedder

	// Search is the document store queried for supporting evidence.
	Search qdrant.VectorStore

	// Approver gates dispatch when interactive approval is enabled.
	Approver Approver

	// DryRun suppresses all writes; decisions are logged instead.
	DryRun bool
}

// Close releases any closable collaborators.
func (d *Dependencies) Close() {
	for _, c := range []interface{}{d.Embedder, d.Search, d.Classifier} {
		if closer, ok := c.(io.Closer); ok && closer != nil {
			_ = closer.Close()
		}
	}
}

// StepFactory is a function that creates a Step from the injected
// dependencies.
type StepFactory func(deps *Dependencies) (Step, error)

// Registry holds registered step factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]StepFactory
}

// NewRegistry creates a new step registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]StepFactory),
	}
}

// Register adds a step factory to the registry.
func (r *Registry) Register(name string, factory StepFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get retrieves a step factory by name.
func (r *Registry) Get(name string) (StepFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[name]
	return factory, ok
}

// BuildFromNames creates a pipeline from a list of step names.
func (r *Registry) BuildFromNames(names []string, deps *Dependencies) (*Pipeline, error) {
	var steps []Step
	for _, name := range names {
		factory, ok := r.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown step: %s", name)
		}
		step, err := factory(deps)
		if err != nil {
			return nil, fmt.Errorf("failed to create step '%s': %w", name, err)
		}
		steps = append(steps, step)
	}
	return New(steps...), nil
}

// Presets defines the two built-in decision pipelines. Both share the same
// engine; the mode on the Context selects the gate's rule set.
var Presets = map[string][]string{
	// issue-triage: assign exactly one label from the closed enumeration.
	"issue-triage": {
		"gatekeeper",
		"classifier",
		"action_executor",
	},

	// issue-answer: retrieval-grounded first response with citations.
	"issue-answer": {
		"gatekeeper",
		"retriever",
		"response_builder",
		"action_executor",
	},
}

// PresetForMode returns the step names for a pipeline mode.
func PresetForMode(mode Mode) ([]string, error) {
	switch mode {
	case ModeTriage:
		return Presets["issue-triage"], nil
	case ModeAnswer:
		return Presets["issue-answer"], nil
	default:
		return nil, fmt.Errorf("unknown pipeline mode: %s", mode)
	}
}
