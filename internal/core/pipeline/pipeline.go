// Package pipeline provides the core decision engine for Herald.
// It defines the Step interface and the Context that flows through the
// eligibility gate, the classifier/retriever adapters and the dispatcher.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/heraldbot/herald/internal/core/config"
)

// ErrSkipPipeline indicates that the pipeline should stop gracefully.
// This is not an error condition, just an early exit: the issue did not
// qualify for action and the skip reason has been recorded on the Result.
var ErrSkipPipeline = errors.New("skip remaining pipeline steps")

// Mode selects which decision pipeline is running.
type Mode string

const (
	// ModeTriage assigns exactly one label from the closed enumeration.
	ModeTriage Mode = "triage"

	// ModeAnswer composes and posts a retrieval-grounded reply.
	ModeAnswer Mode = "answer"
)

// Step defines the interface that all pipeline steps must implement.
type Step interface {
	// Name returns the unique identifier for this step.
	Name() string

	// Run executes the step's logic. It returns ErrSkipPipeline to stop
	// the pipeline gracefully, or any other error to indicate failure.
	Run(ctx *Context) error
}

// Issue is an immutable snapshot of a tracker issue, fetched once per
// engine invocation. It is never mutated locally; all mutations go through
// the dispatcher against the remote tracker.
type Issue struct {
	Org    string   `json:"org"`
	Repo   string   `json:"repo"`
	Number int      `json:"number"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	State  string   `json:"state"` // "open" or "closed"
	Labels []string `json:"labels"`
	Author string   `json:"author"`
	URL    string   `json:"url"`
}

// Comment is one entry of an issue's comment sequence, ordered by fetch
// position. The gate only ever inspects the tail.
type Comment struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}

// DocumentRef is one retrieved supporting document, in retrieval-rank order.
type DocumentRef struct {
	Path    string  `json:"path"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Citation pairs a document-store path with its rewritten public URL.
type Citation struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// Result is the structured outcome record of one pipeline run.
type Result struct {
	IssueNumber int        `json:"issue_number"`
	Acted       bool       `json:"acted"`
	Skipped     bool       `json:"skipped"`
	SkipReason  SkipReason `json:"skip_reason,omitempty"`
	Label       string     `json:"label,omitempty"`
	CommentID   int64      `json:"comment_id,omitempty"`
	CommentURL  string     `json:"comment_url,omitempty"`
	Citations   []Citation `json:"citations,omitempty"`
}

// Context carries data through the pipeline steps for one issue instance.
type Context struct {
	// Ctx is the Go context for cancellation and timeouts.
	Ctx context.Context

	// Mode selects the triage or answering rule set.
	Mode Mode

	// Issue is the issue being processed.
	Issue *Issue

	// Comments is the issue's comment sequence in creation order.
	Comments []Comment

	// Config is the loaded configuration, read-only.
	Config *config.Config

	// Verdict is set by the gate and consumed exactly once by the
	// dispatcher. Intermediate steps may degrade it to Skip.
	Verdict *Verdict

	// Label is the classified label awaiting dispatch (triage mode).
	Label string

	// Draft is the composed answer text awaiting citation footnotes
	// (answer mode).
	Draft string

	// Documents are the supporting documents in retrieval-rank order.
	Documents []DocumentRef

	// CommentBody is the final composed comment awaiting dispatch.
	CommentBody string

	// Result accumulates the processing outcome.
	Result *Result
}

// NewContext creates a new pipeline context for an issue.
func NewContext(ctx context.Context, mode Mode, issue *Issue, comments []Comment, cfg *config.Config) *Context {
	return &Context{
		Ctx:      ctx,
		Mode:     mode,
		Issue:    issue,
		Comments: comments,
		Config:   cfg,
		Result:   &Result{IssueNumber: issue.Number},
	}
}

// LastComment returns the tail of the comment sequence, or nil when the
// issue has no comments.
func (c *Context) LastComment() *Comment {
	if len(c.Comments) == 0 {
		return nil
	}
	return &c.Comments[len(c.Comments)-1]
}

// Skip records a skip verdict with the given reason and returns
// ErrSkipPipeline so the caller can exit the pipeline gracefully. If the
// gate already produced an Act verdict, it is degraded in place so the
// dispatcher can never fire for this instance.
func (c *Context) Skip(step string, reason SkipReason) error {
	if c.Verdict == nil {
		c.Verdict = NewSkipVerdict(reason)
	} else if err := c.Verdict.Degrade(reason); err != nil {
		// A consumed verdict cannot be degraded; the dispatch already
		// happened and this skip is a no-op.
		log.Printf("[%s] cannot degrade verdict: %v", step, err)
		return ErrSkipPipeline
	}
	c.Result.Skipped = true
	c.Result.SkipReason = reason
	log.Printf("[%s] issue #%d skipped: %s", step, c.Issue.Number, reason)
	return ErrSkipPipeline
}

// Pipeline executes a sequence of steps.
type Pipeline struct {
	steps []Step
}

// New creates a new pipeline with the given steps.
func New(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Run executes all steps in order. It stops on the first error, except
// ErrSkipPipeline which is a graceful exit.
func (p *Pipeline) Run(ctx *Context) error {
	for _, step := range p.steps {
		if err := step.Run(ctx); err != nil {
			if errors.Is(err, ErrSkipPipeline) {
				return nil
			}
			return fmt.Errorf("step '%s' failed: %w", step.Name(), err)
		}
	}
	return nil
}

// Steps returns the list of steps (for introspection and decoration).
func (p *Pipeline) Steps() []Step {
	return p.steps
}
