// Package steps contains the modular pipeline steps. Each step implements
// the pipeline.Step interface.
package steps

import (
	"context"
	"log"
	"regexp"
	"strings"

	"github.com/heraldbot/herald/internal/core/pipeline"
	"github.com/heraldbot/herald/internal/integrations/gemini"
)

// agentMarkerPattern matches comments left by this or a sibling agent
// ("Response from XXX Agent"), case-insensitive.
var agentMarkerPattern = regexp.MustCompile(`(?i)response from [^\n]*agent`)

// Gatekeeper is the eligibility gate: a deterministic, ordered rule set
// deciding whether an issue qualifies for automated action. Rules are
// applied in order and the first matching skip wins. The only fuzzy
// signals (question / feature-request detection) come from the injected
// judge, so the deterministic rules stay testable without a real model.
type Gatekeeper struct {
	judge gemini.Judge
}

// NewGatekeeper creates a new gatekeeper step.
func NewGatekeeper(deps *pipeline.Dependencies) *Gatekeeper {
	return &Gatekeeper{judge: deps.Judge}
}

// Name returns the step name.
func (s *Gatekeeper) Name() string {
	return "gatekeeper"
}

// Run evaluates the issue and installs the verdict on the context.
func (s *Gatekeeper) Run(ctx *pipeline.Context) error {
	issue := ctx.Issue

	// Scope restriction: never act outside the configured repository.
	if issue.Org != ctx.Config.Owner || issue.Repo != ctx.Config.Repo {
		log.Printf("[gatekeeper] issue #%d belongs to %s/%s, outside scope %s",
			issue.Number, issue.Org, issue.Repo, ctx.Config.Scope())
		return ctx.Skip(s.Name(), pipeline.SkipOutOfScope)
	}

	if strings.EqualFold(issue.State, "closed") {
		return ctx.Skip(s.Name(), pipeline.SkipClosed)
	}

	switch ctx.Mode {
	case pipeline.ModeTriage:
		// Existing labels are authoritative and never revised.
		if len(issue.Labels) > 0 {
			return ctx.Skip(s.Name(), pipeline.SkipAlreadyLabeled)
		}

	case pipeline.ModeAnswer:
		if last := ctx.LastComment(); last != nil {
			if !strings.EqualFold(last.Author, issue.Author) {
				return ctx.Skip(s.Name(), pipeline.SkipNotReporter)
			}
			if HasAgentMarker(last.Body) {
				return ctx.Skip(s.Name(), pipeline.SkipAlreadyResponded)
			}
		}
		if err := s.judgeContent(ctx); err != nil {
			return err
		}
	}

	ctx.Verdict = pipeline.NewActVerdict()
	log.Printf("[gatekeeper] issue #%d qualifies for %s", issue.Number, ctx.Mode)
	return nil
}

// judgeContent asks the judge for the question / feature-request signals.
// With no comments, the issue title and body are judged instead.
func (s *Gatekeeper) judgeContent(ctx *pipeline.Context) error {
	latest := ""
	if last := ctx.LastComment(); last != nil {
		latest = last.Body
	}

	callCtx, cancel := requestContext(ctx)
	defer cancel()

	judgment, err := s.judge.JudgeContent(callCtx, issueInput(ctx), latest)
	if err != nil {
		// Unusable classifier output degrades to a skip, never a crash.
		log.Printf("[gatekeeper] judge failed for issue #%d: %v", ctx.Issue.Number, err)
		return ctx.Skip(s.Name(), pipeline.SkipClassificationFailed)
	}

	if judgment.IsFeatureRequest {
		return ctx.Skip(s.Name(), pipeline.SkipFeatureRequest)
	}
	if !judgment.IsQuestion {
		return ctx.Skip(s.Name(), pipeline.SkipNotAQuestion)
	}
	return nil
}

// HasAgentMarker reports whether a comment body carries an agent
// attribution marker.
func HasAgentMarker(body string) bool {
	return agentMarkerPattern.MatchString(body)
}

// requestContext bounds one external call by the configured request
// timeout. A zero timeout means the caller's context alone governs.
func requestContext(ctx *pipeline.Context) (context.Context, context.CancelFunc) {
	if ctx.Config.Timeouts.Request <= 0 {
		return context.WithCancel(ctx.Ctx)
	}
	return context.WithTimeout(ctx.Ctx, ctx.Config.Timeouts.Request)
}

// issueInput converts the pipeline issue snapshot into the LLM input shape.
func issueInput(ctx *pipeline.Context) *gemini.IssueInput {
	in := &gemini.IssueInput{
		Title:  ctx.Issue.Title,
		Body:   ctx.Issue.Body,
		Author: ctx.Issue.Author,
	}
	for _, c := range ctx.Comments {
		in.Comments = append(in.Comments, gemini.CommentInput{Author: c.Author, Body: c.Body})
	}
	return in
}
