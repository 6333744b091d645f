package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gh "github.com/google/go-github/v60/github"

	"github.com/heraldbot/herald/internal/core/config"
	"github.com/heraldbot/herald/internal/core/pipeline"
	"github.com/heraldbot/herald/internal/integrations/gemini"
	"github.com/heraldbot/herald/internal/integrations/qdrant"
	"github.com/heraldbot/herald/internal/steps"
)

// fakeTracker serves canned issues and records writes, mutating its own
// state so a second run over the same issue sees the first run's effects.
type fakeTracker struct {
	issues   map[int]*gh.Issue
	comments map[int][]*gh.IssueComment

	getErr        error
	getErrFor     map[int]error
	labelCalls    int
	commentCalls  int
	nextCommentID int64
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		issues:        map[int]*gh.Issue{},
		comments:      map[int][]*gh.IssueComment{},
		nextCommentID: 100,
	}
}

func (f *fakeTracker) addIssue(number int, title, body, state, author string, labels ...string) {
	issue := &gh.Issue{
		Number:        gh.Int(number),
		Title:         gh.String(title),
		Body:          gh.String(body),
		State:         gh.String(state),
		User:          &gh.User{Login: gh.String(author)},
		RepositoryURL: gh.String("https://api.github.com/repos/acme/widgets"),
	}
	for _, l := range labels {
		issue.Labels = append(issue.Labels, &gh.Label{Name: gh.String(l)})
	}
	f.issues[number] = issue
}

func (f *fakeTracker) GetIssue(ctx context.Context, org, repo string, number int) (*gh.Issue, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if err := f.getErrFor[number]; err != nil {
		return nil, err
	}
	issue, ok := f.issues[number]
	if !ok {
		return nil, errors.New("404 not found")
	}
	return issue, nil
}

func (f *fakeTracker) ListComments(ctx context.Context, org, repo string, number int) ([]*gh.IssueComment, error) {
	return f.comments[number], nil
}

func (f *fakeTracker) CreateComment(ctx context.Context, org, repo string, number int, body string) (*gh.IssueComment, error) {
	f.commentCalls++
	f.nextCommentID++
	comment := &gh.IssueComment{
		ID:      gh.Int64(f.nextCommentID),
		Body:    gh.String(body),
		User:    &gh.User{Login: gh.String("herald[bot]")},
		HTMLURL: gh.String("https://github.com/acme/widgets/issues/1#issuecomment-1"),
	}
	f.comments[number] = append(f.comments[number], comment)
	return comment, nil
}

func (f *fakeTracker) AddLabels(ctx context.Context, org, repo string, number int, labels []string) error {
	f.labelCalls++
	issue := f.issues[number]
	for _, l := range labels {
		issue.Labels = append(issue.Labels, &gh.Label{Name: gh.String(l)})
	}
	return nil
}

func (f *fakeTracker) ListRecentIssues(ctx context.Context, org, repo string, count int, unlabeledOnly bool) ([]*gh.Issue, error) {
	var out []*gh.Issue
	for _, issue := range f.issues {
		if issue.GetState() != "open" {
			continue
		}
		if unlabeledOnly && len(issue.Labels) > 0 {
			continue
		}
		out = append(out, issue)
		if len(out) == count {
			break
		}
	}
	return out, nil
}

type fakeClassifier struct {
	label string
	err   error
}

func (f *fakeClassifier) ClassifyIssue(ctx context.Context, issue *gemini.IssueInput, labels []gemini.LabelOption) (*gemini.Classification, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &gemini.Classification{Label: f.label, Reasoning: "canned"}, nil
}

type fakeJudge struct {
	isQuestion, isFeature bool
}

func (f *fakeJudge) JudgeContent(ctx context.Context, issue *gemini.IssueInput, latestComment string) (*gemini.Judgment, error) {
	return &gemini.Judgment{IsQuestion: f.isQuestion, IsFeatureRequest: f.isFeature}, nil
}

type fakeComposer struct {
	answer string
}

func (f *fakeComposer) ComposeAnswer(ctx context.Context, issue *gemini.IssueInput, docs []gemini.DocumentInput) (*gemini.Composition, error) {
	return &gemini.Composition{CanAnswer: f.answer != "", Answer: f.answer}, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeStore struct {
	hits []*qdrant.SearchResult
}

func (f *fakeStore) Search(ctx context.Context, collection string, vector []float32, limit int, threshold float64) ([]*qdrant.SearchResult, error) {
	return f.hits, nil
}

func (f *fakeStore) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Owner:        "acme",
		Repo:         "widgets",
		Organization: "acme",
		BatchSize:    3,
		BotLabel:     "herald",
		Labels: []config.LabelRule{
			{Name: "core"},
			{Name: "tools"},
		},
		Answer: config.AnswerConfig{
			Marker:             "Response from Herald Answering Agent",
			RelevanceThreshold: 0.65,
			MaxDocuments:       5,
		},
		Qdrant: config.QdrantConfig{Collection: "docs"},
		Timeouts: config.TimeoutConfig{
			Request:  5 * time.Second,
			Approval: time.Second,
		},
	}
}

func newTestEngine(cfg *config.Config, deps *pipeline.Dependencies) *Engine {
	registry := pipeline.NewRegistry()
	steps.RegisterAll(registry)
	return New(cfg, deps, registry)
}

func TestRunOnceTriage(t *testing.T) {
	tracker := newFakeTracker()
	tracker.addIssue(1, "tool calls fail", "calling a tool panics", "open", "reporter")

	deps := &pipeline.Dependencies{
		Tracker:    tracker,
		Classifier: &fakeClassifier{label: "tools"},
	}
	eng := newTestEngine(testConfig(), deps)

	outcome := eng.RunOnce(context.Background(), pipeline.ModeTriage, 1)
	if outcome.Err != nil {
		t.Fatalf("outcome error = %v", outcome.Err)
	}
	if !outcome.Acted || outcome.Label != "tools" {
		t.Fatalf("outcome = %+v, want acted with label tools", outcome)
	}
	if outcome.RunID == "" {
		t.Error("outcome has no run ID")
	}
	if tracker.labelCalls != 1 {
		t.Errorf("label writes = %d, want 1", tracker.labelCalls)
	}

	got := tracker.issues[1].Labels
	if len(got) != 2 || got[0].GetName() != "tools" || got[1].GetName() != "herald" {
		t.Errorf("labels on issue = %v, want [tools herald]", got)
	}
}

func TestRunOnceTriageSkipsClosedIssue(t *testing.T) {
	tracker := newFakeTracker()
	tracker.addIssue(2, "old problem", "", "closed", "reporter")

	deps := &pipeline.Dependencies{Tracker: tracker, Classifier: &fakeClassifier{label: "core"}}
	eng := newTestEngine(testConfig(), deps)

	outcome := eng.RunOnce(context.Background(), pipeline.ModeTriage, 2)
	if outcome.Err != nil {
		t.Fatalf("outcome error = %v", outcome.Err)
	}
	if !outcome.Skipped || outcome.SkipReason != pipeline.SkipClosed {
		t.Fatalf("outcome = %+v, want skipped (closed)", outcome)
	}
	if tracker.labelCalls != 0 {
		t.Errorf("label writes = %d on a closed issue, want 0", tracker.labelCalls)
	}
}

func TestRunOnceAnswer(t *testing.T) {
	tracker := newFakeTracker()
	tracker.addIssue(3, "How do I configure retries?", "Nothing in the docs.", "open", "reporter")

	deps := &pipeline.Dependencies{
		Tracker:  tracker,
		Judge:    &fakeJudge{isQuestion: true},
		Embedder: fakeEmbedder{},
		Search: &fakeStore{hits: []*qdrant.SearchResult{
			{ID: "a", Score: 0.9, Payload: map[string]interface{}{
				"path":    "gs://docs/widgets/docs/retries.html",
				"snippet": "Retries are configured via max_retries.",
			}},
		}},
		Composer: &fakeComposer{answer: "Set max_retries in your config."},
	}
	eng := newTestEngine(testConfig(), deps)

	outcome := eng.RunOnce(context.Background(), pipeline.ModeAnswer, 3)
	if outcome.Err != nil {
		t.Fatalf("outcome error = %v", outcome.Err)
	}
	if !outcome.Acted || outcome.CommentURL == "" {
		t.Fatalf("outcome = %+v, want acted with comment URL", outcome)
	}
	if tracker.commentCalls != 1 {
		t.Fatalf("comment writes = %d, want 1", tracker.commentCalls)
	}

	posted := tracker.comments[3][0].GetBody()
	if !strings.Contains(posted, "**Response from Herald Answering Agent**") {
		t.Errorf("posted body missing attribution marker:\n%s", posted)
	}
	if !strings.Contains(posted, "[1] https://github.com/acme/widgets/blob/main/docs/retries.md") {
		t.Errorf("posted body missing rewritten citation:\n%s", posted)
	}
}

func TestRunOnceAnswerSecondRunSuppressed(t *testing.T) {
	tracker := newFakeTracker()
	tracker.addIssue(4, "How do I configure retries?", "Nothing in the docs.", "open", "reporter")

	deps := &pipeline.Dependencies{
		Tracker:  tracker,
		Judge:    &fakeJudge{isQuestion: true},
		Embedder: fakeEmbedder{},
		Search: &fakeStore{hits: []*qdrant.SearchResult{
			{ID: "a", Score: 0.9, Payload: map[string]interface{}{
				"path": "gs://docs/widgets/docs/retries.md",
			}},
		}},
		Composer: &fakeComposer{answer: "Set max_retries."},
	}
	eng := newTestEngine(testConfig(), deps)

	first := eng.RunOnce(context.Background(), pipeline.ModeAnswer, 4)
	if !first.Acted {
		t.Fatalf("first run = %+v, want acted", first)
	}

	// The posted answer is now the latest comment; its author is not the
	// reporter, so the gate refuses a second reply.
	second := eng.RunOnce(context.Background(), pipeline.ModeAnswer, 4)
	if second.Err != nil {
		t.Fatalf("second run error = %v", second.Err)
	}
	if second.Acted {
		t.Fatal("second run posted again")
	}
	if tracker.commentCalls != 1 {
		t.Fatalf("comment writes = %d after two runs, want 1", tracker.commentCalls)
	}
}

func TestRunOnceAnswerNoEvidence(t *testing.T) {
	tracker := newFakeTracker()
	tracker.addIssue(5, "How does chunking work?", "", "open", "reporter")

	deps := &pipeline.Dependencies{
		Tracker:  tracker,
		Judge:    &fakeJudge{isQuestion: true},
		Embedder: fakeEmbedder{},
		Search:   &fakeStore{},
		Composer: &fakeComposer{answer: "unused"},
	}
	eng := newTestEngine(testConfig(), deps)

	outcome := eng.RunOnce(context.Background(), pipeline.ModeAnswer, 5)
	if !outcome.Skipped || outcome.SkipReason != pipeline.SkipNoEvidence {
		t.Fatalf("outcome = %+v, want skipped (no-evidence)", outcome)
	}
	if tracker.commentCalls != 0 {
		t.Errorf("comment writes = %d without evidence, want 0", tracker.commentCalls)
	}
}

func TestRunOnceFetchFailure(t *testing.T) {
	tracker := newFakeTracker()
	tracker.getErr = errors.New("502 bad gateway")

	deps := &pipeline.Dependencies{Tracker: tracker, Classifier: &fakeClassifier{label: "core"}}
	eng := newTestEngine(testConfig(), deps)

	outcome := eng.RunOnce(context.Background(), pipeline.ModeTriage, 9)
	var fetchErr *pipeline.FetchError
	if !errors.As(outcome.Err, &fetchErr) {
		t.Fatalf("outcome error = %v, want FetchError", outcome.Err)
	}
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	tracker := newFakeTracker()
	tracker.addIssue(1, "a", "", "open", "reporter")
	tracker.addIssue(2, "b", "", "open", "reporter")
	tracker.addIssue(3, "c", "", "open", "reporter")
	// Refetching issue 2 fails mid-batch; the other two must still act.
	tracker.getErrFor = map[int]error{2: errors.New("502 bad gateway")}

	deps := &pipeline.Dependencies{Tracker: tracker, Classifier: &fakeClassifier{label: "core"}}
	eng := newTestEngine(testConfig(), deps)

	outcomes, err := eng.RunBatch(context.Background(), pipeline.ModeTriage, 3)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(outcomes))
	}

	var failed, acted int
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			failed++
			if o.IssueNumber != 2 {
				t.Errorf("issue #%d failed: %v", o.IssueNumber, o.Err)
			}
		case o.Acted:
			acted++
		}
	}
	if failed != 1 || acted != 2 {
		t.Errorf("failed = %d, acted = %d; want 1 and 2", failed, acted)
	}
	if tracker.labelCalls != 2 {
		t.Errorf("label writes = %d, want 2", tracker.labelCalls)
	}
}

func TestRunBatchSkipsLabeledInTriageMode(t *testing.T) {
	tracker := newFakeTracker()
	tracker.addIssue(1, "a", "", "open", "reporter", "bug")
	tracker.addIssue(2, "b", "", "open", "reporter")

	deps := &pipeline.Dependencies{Tracker: tracker, Classifier: &fakeClassifier{label: "core"}}
	eng := newTestEngine(testConfig(), deps)

	outcomes, err := eng.RunBatch(context.Background(), pipeline.ModeTriage, 5)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1 (labeled issue excluded from listing)", len(outcomes))
	}
	if outcomes[0].IssueNumber != 2 {
		t.Errorf("processed issue #%d, want #2", outcomes[0].IssueNumber)
	}
}

func TestRunBatchEmpty(t *testing.T) {
	tracker := newFakeTracker()
	deps := &pipeline.Dependencies{Tracker: tracker, Classifier: &fakeClassifier{label: "core"}}
	eng := newTestEngine(testConfig(), deps)

	outcomes, err := eng.RunBatch(context.Background(), pipeline.ModeTriage, 3)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if len(outcomes) != 0 {
		t.Fatalf("outcomes = %d, want 0", len(outcomes))
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateIdle:       "idle",
		StateFetching:   "fetching",
		StateEvaluating: "evaluating",
		StateActing:     "acting",
		StateSkipping:   "skipping",
		StateDone:       "done",
	}
	for s, want := range states {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestOutcomeLine(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    string
	}{
		{"labeled", Outcome{IssueNumber: 1, Acted: true, Label: "core"}, `issue #1: labeled "core"`},
		{"answered", Outcome{IssueNumber: 2, Acted: true, CommentURL: "u"}, "issue #2: answered (u)"},
		{"skipped", Outcome{IssueNumber: 3, Skipped: true, SkipReason: pipeline.SkipClosed}, "issue #3: skipped (closed)"},
		{"failed", Outcome{IssueNumber: 4, Err: errors.New("boom")}, "issue #4: error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outcome.Line(); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestObserverSeesLifecycle(t *testing.T) {
	tracker := newFakeTracker()
	tracker.addIssue(1, "a", "", "open", "reporter")

	deps := &pipeline.Dependencies{Tracker: tracker, Classifier: &fakeClassifier{label: "core"}}

	var seen []State
	eng := newTestEngine(testConfig(), deps).WithObserver(func(_ int, s State) {
		seen = append(seen, s)
	})

	if outcome := eng.RunOnce(context.Background(), pipeline.ModeTriage, 1); outcome.Err != nil {
		t.Fatalf("outcome error = %v", outcome.Err)
	}

	want := []State{StateFetching, StateEvaluating, StateActing, StateDone}
	if len(seen) != len(want) {
		t.Fatalf("states = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("states = %v, want %v", seen, want)
		}
	}
}
