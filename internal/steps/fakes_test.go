package steps

import (
	"context"
	"time"

	gh "github.com/google/go-github/v60/github"

	"github.com/heraldbot/herald/internal/core/config"
	"github.com/heraldbot/herald/internal/core/pipeline"
	"github.com/heraldbot/herald/internal/integrations/gemini"
	"github.com/heraldbot/herald/internal/integrations/qdrant"
)

// fakeJudge returns a canned judgment.
type fakeJudge struct {
	judgment gemini.Judgment
	err      error
	calls    int
}

func (f *fakeJudge) JudgeContent(ctx context.Context, issue *gemini.IssueInput, latestComment string) (*gemini.Judgment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	j := f.judgment
	return &j, nil
}

// fakeClassifier returns a canned classification.
type fakeClassifier struct {
	classification gemini.Classification
	err            error
	calls          int
}

func (f *fakeClassifier) ClassifyIssue(ctx context.Context, issue *gemini.IssueInput, labels []gemini.LabelOption) (*gemini.Classification, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	c := f.classification
	return &c, nil
}

// fakeComposer returns a canned composition and records its input docs.
type fakeComposer struct {
	composition gemini.Composition
	err         error
	gotDocs     []gemini.DocumentInput
	calls       int
}

func (f *fakeComposer) ComposeAnswer(ctx context.Context, issue *gemini.IssueInput, docs []gemini.DocumentInput) (*gemini.Composition, error) {
	f.calls++
	f.gotDocs = docs
	if f.err != nil {
		return nil, f.err
	}
	c := f.composition
	return &c, nil
}

// fakeEmbedder returns a fixed vector.
type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, content string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

// fakeStore returns canned search hits.
type fakeStore struct {
	hits  []*qdrant.SearchResult
	err   error
	calls int
}

func (f *fakeStore) Search(ctx context.Context, collection string, vector []float32, limit int, threshold float64) ([]*qdrant.SearchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeStore) Close() error { return nil }

// fakeTracker counts writes so tests can assert the at-most-one-write
// invariant.
type fakeTracker struct {
	labelCalls   int
	commentCalls int
	gotLabels    []string
	gotBody      string
	labelErr     error
	commentErr   error
}

func (f *fakeTracker) GetIssue(ctx context.Context, org, repo string, number int) (*gh.Issue, error) {
	return nil, nil
}

func (f *fakeTracker) ListComments(ctx context.Context, org, repo string, number int) ([]*gh.IssueComment, error) {
	return nil, nil
}

func (f *fakeTracker) CreateComment(ctx context.Context, org, repo string, number int, body string) (*gh.IssueComment, error) {
	f.commentCalls++
	f.gotBody = body
	if f.commentErr != nil {
		return nil, f.commentErr
	}
	return &gh.IssueComment{
		ID:      gh.Int64(9001),
		HTMLURL: gh.String("https://github.com/acme/widgets/issues/7#issuecomment-9001"),
	}, nil
}

func (f *fakeTracker) AddLabels(ctx context.Context, org, repo string, number int, labels []string) error {
	f.labelCalls++
	f.gotLabels = labels
	return f.labelErr
}

func (f *fakeTracker) ListRecentIssues(ctx context.Context, org, repo string, count int, unlabeledOnly bool) ([]*gh.Issue, error) {
	return nil, nil
}

// fakeApprover answers the confirmation prompt without a terminal.
type fakeApprover struct {
	approve bool
	err     error
	calls   int
	preview string
}

func (f *fakeApprover) Approve(ctx context.Context, preview string) (bool, error) {
	f.calls++
	f.preview = preview
	return f.approve, f.err
}

func judgment(isQuestion, isFeatureRequest bool) gemini.Judgment {
	return gemini.Judgment{IsQuestion: isQuestion, IsFeatureRequest: isFeatureRequest}
}

func judgmentQuestion() gemini.Judgment {
	return judgment(true, false)
}

func testConfig() *config.Config {
	return &config.Config{
		Owner:        "acme",
		Repo:         "widgets",
		Organization: "acme",
		BatchSize:    3,
		BotLabel:     "herald",
		Labels: []config.LabelRule{
			{Name: "core", Hint: "orchestration"},
			{Name: "tools", Hint: "tool calling"},
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

func testIssue() *pipeline.Issue {
	return &pipeline.Issue{
		Org:    "acme",
		Repo:   "widgets",
		Number: 7,
		Title:  "How do I configure retries?",
		Body:   "The docs do not mention retry settings.",
		State:  "open",
		Author: "reporter",
	}
}

func testContext(mode pipeline.Mode, issue *pipeline.Issue, comments []pipeline.Comment) *pipeline.Context {
	return pipeline.NewContext(context.Background(), mode, issue, comments, testConfig())
}
