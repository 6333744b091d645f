package steps

import (
	"github.com/heraldbot/herald/internal/core/pipeline"
)

// RegisterAll registers every built-in step factory with the registry.
func RegisterAll(registry *pipeline.Registry) {
	registry.Register("gatekeeper", func(deps *pipeline.Dependencies) (pipeline.Step, error) {
		return NewGatekeeper(deps), nil
	})
	registry.Register("classifier", func(deps *pipeline.Dependencies) (pipeline.Step, error) {
		return NewClassifier(deps), nil
	})
	registry.Register("retriever", func(deps *pipeline.Dependencies) (pipeline.Step, error) {
		return NewRetriever(deps), nil
	})
	registry.Register("response_builder", func(deps *pipeline.Dependencies) (pipeline.Step, error) {
		return NewResponseBuilder(), nil
	})
	registry.Register("action_executor", func(deps *pipeline.Dependencies) (pipeline.Step, error) {
		return NewActionExecutor(deps), nil
	})
}
