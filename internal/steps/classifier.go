package steps

import (
	"log"

	"github.com/heraldbot/herald/internal/core/pipeline"
	"github.com/heraldbot/herald/internal/integrations/gemini"
	"github.com/heraldbot/herald/internal/utils/text"
)

// Classifier asks the LLM for exactly one label from the closed
// enumeration. Anything outside the enumeration is a classification
// failure: the instance skips and the raw output is logged for audit.
type Classifier struct {
	llm gemini.Classifier
}

// NewClassifier creates a new classifier step.
func NewClassifier(deps *pipeline.Dependencies) *Classifier {
	return &Classifier{llm: deps.Classifier}
}

// Name returns the step name.
func (s *Classifier) Name() string {
	return "classifier"
}

// Run classifies the issue. The classifier is billed per call, so at most
// one call is made per Act verdict and failures are never retried here.
func (s *Classifier) Run(ctx *pipeline.Context) error {
	if ctx.Verdict == nil || !ctx.Verdict.IsAct() {
		log.Printf("[classifier] no act verdict for issue #%d, nothing to classify", ctx.Issue.Number)
		return pipeline.ErrSkipPipeline
	}

	options := make([]gemini.LabelOption, 0, len(ctx.Config.Labels))
	for _, l := range ctx.Config.Labels {
		options = append(options, gemini.LabelOption{Name: l.Name, Hint: l.Hint})
	}

	callCtx, cancel := requestContext(ctx)
	defer cancel()

	classification, err := s.llm.ClassifyIssue(callCtx, issueInput(ctx), options)
	if err != nil {
		log.Printf("[classifier] classification call failed for issue #%d: %v", ctx.Issue.Number, err)
		return ctx.Skip(s.Name(), pipeline.SkipClassificationFailed)
	}

	if classification.Label == "" || !ctx.Config.LabelAllowed(classification.Label) {
		failure := &pipeline.ClassificationFailure{Raw: classification.Raw}
		log.Printf("[classifier] issue #%d: %v (label %q)",
			ctx.Issue.Number, failure, classification.Label)
		return ctx.Skip(s.Name(), pipeline.SkipClassificationFailed)
	}

	ctx.Label = classification.Label
	log.Printf("[classifier] issue #%d classified as %q: %s",
		ctx.Issue.Number, classification.Label, text.Truncate(classification.Reasoning, 120))
	return nil
}
