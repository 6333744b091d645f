package steps

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/heraldbot/herald/internal/core/pipeline"
	"github.com/heraldbot/herald/internal/integrations/github"
	"github.com/heraldbot/herald/internal/utils/text"
)

// ActionExecutor is the dispatcher: it consumes the verdict exactly once
// and performs at most one write call against the tracker — a label in
// triage mode XOR a comment in answer mode. Write failures are surfaced,
// never retried: retrying a comment post risks duplicates.
type ActionExecutor struct {
	tracker  github.Tracker
	approver pipeline.Approver
	dryRun   bool
}

// NewActionExecutor creates a new action executor step.
func NewActionExecutor(deps *pipeline.Dependencies) *ActionExecutor {
	return &ActionExecutor{
		tracker:  deps.Tracker,
		approver: deps.Approver,
		dryRun:   deps.DryRun,
	}
}

// Name returns the step name.
func (s *ActionExecutor) Name() string {
	return "action_executor"
}

// Run consumes the verdict and dispatches.
func (s *ActionExecutor) Run(ctx *pipeline.Context) error {
	if ctx.Verdict == nil {
		return &pipeline.DispatchError{Op: "consume", Err: fmt.Errorf("no verdict on context")}
	}

	act, reason, err := ctx.Verdict.Consume()
	if err != nil {
		// Double-dispatch attempt; the first write already happened.
		return &pipeline.DispatchError{Op: "consume", Err: err}
	}
	if !act {
		ctx.Result.Skipped = true
		ctx.Result.SkipReason = reason
		return nil
	}

	preview := s.preview(ctx)

	if ctx.Config.Interactive {
		approved, err := s.awaitApproval(ctx, preview)
		if err != nil || !approved {
			// The verdict is already consumed, so record the skip on the
			// result directly.
			denial := &pipeline.ApprovalDenied{TimedOut: err != nil}
			log.Printf("[action_executor] issue #%d: %v", ctx.Issue.Number, denial)
			ctx.Result.Skipped = true
			ctx.Result.SkipReason = pipeline.SkipDenied
			return nil
		}
	}

	if s.dryRun {
		log.Printf("[action_executor] DRY RUN for issue #%d:\n%s", ctx.Issue.Number, preview)
		return nil
	}

	switch ctx.Mode {
	case pipeline.ModeTriage:
		return s.applyLabel(ctx)
	case pipeline.ModeAnswer:
		return s.postComment(ctx)
	default:
		return &pipeline.DispatchError{Op: "dispatch", Err: fmt.Errorf("unknown mode %q", ctx.Mode)}
	}
}

// awaitApproval blocks on the external confirmation signal, bounded by the
// configured approval timeout. A timeout counts as a denial so a batch run
// can never hang on an unattended prompt.
func (s *ActionExecutor) awaitApproval(ctx *pipeline.Context, preview string) (bool, error) {
	if s.approver == nil {
		return false, fmt.Errorf("interactive approval enabled but no approver configured")
	}

	waitCtx, cancel := context.WithTimeout(ctx.Ctx, ctx.Config.Timeouts.Approval)
	defer cancel()

	return s.approver.Approve(waitCtx, preview)
}

// applyLabel performs the single triage write. Existing labels are never
// removed or altered; the endpoint appends.
func (s *ActionExecutor) applyLabel(ctx *pipeline.Context) error {
	labels := []string{ctx.Label}
	if ctx.Config.BotLabel != "" {
		labels = append(labels, ctx.Config.BotLabel)
	}

	writeCtx, cancel := requestContext(ctx)
	defer cancel()

	if err := s.tracker.AddLabels(writeCtx, ctx.Issue.Org, ctx.Issue.Repo, ctx.Issue.Number, labels); err != nil {
		return &pipeline.DispatchError{Op: "add label", Err: err}
	}

	ctx.Result.Acted = true
	ctx.Result.Label = ctx.Label
	log.Printf("[action_executor] applied label %q to issue #%d", ctx.Label, ctx.Issue.Number)
	return nil
}

// postComment performs the single answer write.
func (s *ActionExecutor) postComment(ctx *pipeline.Context) error {
	if strings.TrimSpace(ctx.CommentBody) == "" {
		return &pipeline.DispatchError{Op: "post comment", Err: fmt.Errorf("empty comment body")}
	}

	writeCtx, cancel := requestContext(ctx)
	defer cancel()

	comment, err := s.tracker.CreateComment(writeCtx, ctx.Issue.Org, ctx.Issue.Repo, ctx.Issue.Number, ctx.CommentBody)
	if err != nil {
		return &pipeline.DispatchError{Op: "post comment", Err: err}
	}

	ctx.Result.Acted = true
	if comment != nil {
		ctx.Result.CommentID = comment.GetID()
		ctx.Result.CommentURL = comment.GetHTMLURL()
	}
	log.Printf("[action_executor] posted answer on issue #%d", ctx.Issue.Number)
	return nil
}

// preview renders the pending action for the approval prompt and dry runs.
func (s *ActionExecutor) preview(ctx *pipeline.Context) string {
	switch ctx.Mode {
	case pipeline.ModeTriage:
		return fmt.Sprintf("Apply label %q to issue #%d (%s)", ctx.Label, ctx.Issue.Number, text.Truncate(ctx.Issue.Title, 80))
	case pipeline.ModeAnswer:
		return fmt.Sprintf("Post on issue #%d (%s):\n\n%s", ctx.Issue.Number, text.Truncate(ctx.Issue.Title, 80), ctx.CommentBody)
	default:
		return ""
	}
}
