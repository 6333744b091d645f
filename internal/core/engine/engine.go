// Package engine drives the decision pipelines: one issue per invocation,
// strictly sequential in batch mode, with per-issue failure isolation.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"

	gh "github.com/google/go-github/v60/github"
	"github.com/google/uuid"

	"github.com/heraldbot/herald/internal/core/config"
	"github.com/heraldbot/herald/internal/core/pipeline"
)

// State is one phase of an issue instance's lifecycle. Transitions are
// linear: Idle → Fetching → Evaluating → Acting|Skipping → Done. Failed
// instances jump straight to Done with the error recorded on the Outcome.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateEvaluating
	StateActing
	StateSkipping
	StateDone
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateEvaluating:
		return "evaluating"
	case StateActing:
		return "acting"
	case StateSkipping:
		return "skipping"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the terminal record of one issue instance.
type Outcome struct {
	RunID       string
	IssueNumber int
	Acted       bool
	Skipped     bool
	SkipReason  pipeline.SkipReason
	Label       string
	CommentURL  string
	Err         error
}

// Line renders the outcome as a single report line.
func (o *Outcome) Line() string {
	switch {
	case o.Err != nil:
		return fmt.Sprintf("issue #%d: error: %v", o.IssueNumber, o.Err)
	case o.Acted && o.Label != "":
		return fmt.Sprintf("issue #%d: labeled %q", o.IssueNumber, o.Label)
	case o.Acted:
		return fmt.Sprintf("issue #%d: answered (%s)", o.IssueNumber, o.CommentURL)
	case o.Skipped:
		return fmt.Sprintf("issue #%d: skipped (%s)", o.IssueNumber, o.SkipReason)
	default:
		return fmt.Sprintf("issue #%d: no action", o.IssueNumber)
	}
}

// Decorator wraps a step, typically to report progress to a UI.
type Decorator func(pipeline.Step) pipeline.Step

// Engine runs the triage and answer pipelines against the tracker.
type Engine struct {
	cfg      *config.Config
	deps     *pipeline.Dependencies
	registry *pipeline.Registry
	decorate Decorator
	observe  func(issueNumber int, state State)
}

// New creates an engine over the given collaborators.
func New(cfg *config.Config, deps *pipeline.Dependencies, registry *pipeline.Registry) *Engine {
	return &Engine{cfg: cfg, deps: deps, registry: registry}
}

// WithDecorator wraps every pipeline step with d before execution.
func (e *Engine) WithDecorator(d Decorator) *Engine {
	e.decorate = d
	return e
}

// WithObserver registers a state-transition callback.
func (e *Engine) WithObserver(fn func(issueNumber int, state State)) *Engine {
	e.observe = fn
	return e
}

func (e *Engine) setState(issueNumber int, s State) {
	if e.observe != nil {
		e.observe(issueNumber, s)
	}
	log.Printf("[engine] issue #%d: %s", issueNumber, s)
}

// RunOnce processes a single issue through the pipeline for the given
// mode and returns its outcome. Errors are recorded on the outcome, not
// returned: the caller decides how a failed instance affects the run.
func (e *Engine) RunOnce(ctx context.Context, mode pipeline.Mode, number int) *Outcome {
	outcome := &Outcome{RunID: uuid.NewString(), IssueNumber: number}

	e.setState(number, StateFetching)
	issue, comments, err := e.fetch(ctx, number)
	if err != nil {
		outcome.Err = err
		e.setState(number, StateDone)
		return outcome
	}

	e.run(ctx, mode, issue, comments, outcome)
	return outcome
}

// RunBatch processes up to count recent open issues, strictly one at a
// time in the order the tracker returns them (newest first). One failed
// instance never aborts the rest of the batch.
func (e *Engine) RunBatch(ctx context.Context, mode pipeline.Mode, count int) ([]*Outcome, error) {
	if count <= 0 {
		count = e.cfg.BatchSize
	}

	listCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeouts.Request)
	issues, err := e.deps.Tracker.ListRecentIssues(listCtx, e.cfg.Owner, e.cfg.Repo, count, mode == pipeline.ModeTriage)
	cancel()
	if err != nil {
		return nil, &pipeline.FetchError{Op: "recent issues", Err: err}
	}

	if len(issues) == 0 {
		log.Printf("[engine] no candidate issues in %s", e.cfg.Scope())
		return nil, nil
	}

	outcomes := make([]*Outcome, 0, len(issues))
	for _, raw := range issues {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		number := raw.GetNumber()
		outcome := &Outcome{RunID: uuid.NewString(), IssueNumber: number}

		// The search result lacks the comment history; refetch the full
		// snapshot so the gate sees the same data as a single-issue run.
		e.setState(number, StateFetching)
		issue, comments, err := e.fetch(ctx, number)
		if err != nil {
			outcome.Err = err
			e.setState(number, StateDone)
			outcomes = append(outcomes, outcome)
			continue
		}

		e.run(ctx, mode, issue, comments, outcome)
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// run executes the pipeline for one fetched issue, recording the terminal
// result on the outcome. A pipeline error marks only this instance.
func (e *Engine) run(ctx context.Context, mode pipeline.Mode, issue *pipeline.Issue, comments []pipeline.Comment, outcome *Outcome) {
	e.setState(issue.Number, StateEvaluating)

	pctx := pipeline.NewContext(ctx, mode, issue, comments, e.cfg)
	pipe, err := e.buildPipeline(mode)
	if err != nil {
		outcome.Err = err
		e.setState(issue.Number, StateDone)
		return
	}

	if err := pipe.Run(pctx); err != nil {
		outcome.Err = err
		e.setState(issue.Number, StateDone)
		return
	}

	result := pctx.Result
	outcome.Acted = result.Acted
	outcome.Skipped = result.Skipped
	outcome.SkipReason = result.SkipReason
	outcome.Label = result.Label
	outcome.CommentURL = result.CommentURL

	if result.Acted {
		e.setState(issue.Number, StateActing)
	} else {
		e.setState(issue.Number, StateSkipping)
	}
	e.setState(issue.Number, StateDone)
}

// buildPipeline assembles the preset for the mode, applying the decorator.
func (e *Engine) buildPipeline(mode pipeline.Mode) (*pipeline.Pipeline, error) {
	names, err := pipeline.PresetForMode(mode)
	if err != nil {
		return nil, err
	}

	pipe, err := e.registry.BuildFromNames(names, e.deps)
	if err != nil {
		return nil, err
	}

	if e.decorate == nil {
		return pipe, nil
	}
	decorated := make([]pipeline.Step, 0, len(pipe.Steps()))
	for _, s := range pipe.Steps() {
		decorated = append(decorated, e.decorate(s))
	}
	return pipeline.New(decorated...), nil
}

// fetch reads the issue snapshot and its full comment sequence, each call
// bounded by the request timeout.
func (e *Engine) fetch(ctx context.Context, number int) (*pipeline.Issue, []pipeline.Comment, error) {
	issueCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeouts.Request)
	raw, err := e.deps.Tracker.GetIssue(issueCtx, e.cfg.Owner, e.cfg.Repo, number)
	cancel()
	if err != nil {
		return nil, nil, &pipeline.FetchError{Op: "issue", Err: err}
	}

	commentsCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeouts.Request)
	rawComments, err := e.deps.Tracker.ListComments(commentsCtx, e.cfg.Owner, e.cfg.Repo, number)
	cancel()
	if err != nil {
		return nil, nil, &pipeline.FetchError{Op: "comments", Err: err}
	}

	issue := convertIssue(raw, e.cfg.Owner, e.cfg.Repo)
	comments := make([]pipeline.Comment, 0, len(rawComments))
	for _, c := range rawComments {
		comments = append(comments, pipeline.Comment{
			Author: c.GetUser().GetLogin(),
			Body:   c.GetBody(),
		})
	}
	return issue, comments, nil
}

// convertIssue maps the tracker's issue shape onto the pipeline snapshot.
// The org/repo come from the repository URL when the tracker supplies one
// (search results do), otherwise from the configured scope.
func convertIssue(raw *gh.Issue, owner, repo string) *pipeline.Issue {
	issue := &pipeline.Issue{
		Org:    owner,
		Repo:   repo,
		Number: raw.GetNumber(),
		Title:  raw.GetTitle(),
		Body:   raw.GetBody(),
		State:  raw.GetState(),
		Author: raw.GetUser().GetLogin(),
		URL:    raw.GetHTMLURL(),
	}

	if org, name, ok := splitRepositoryURL(raw.GetRepositoryURL()); ok {
		issue.Org = org
		issue.Repo = name
	}

	for _, l := range raw.Labels {
		issue.Labels = append(issue.Labels, l.GetName())
	}
	return issue
}

// splitRepositoryURL extracts "org, repo" from an API repository URL such
// as https://api.github.com/repos/acme/widgets.
func splitRepositoryURL(url string) (string, string, bool) {
	const marker = "/repos/"
	idx := strings.Index(url, marker)
	if idx < 0 {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(url[idx+len(marker):], "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
