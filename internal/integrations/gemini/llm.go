package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// IssueInput is the issue context handed to the LLM.
type IssueInput struct {
	Title    string
	Body     string
	Author   string
	Comments []CommentInput
}

// CommentInput is one comment of the issue's history, oldest first.
type CommentInput struct {
	Author string
	Body   string
}

// LabelOption is one entry of the closed label enumeration plus its
// routing hint for the prompt.
type LabelOption struct {
	Name string
	Hint string
}

// Classification is the raw triage output. Raw carries the verbatim model
// text so out-of-enumeration answers can be logged for audit.
type Classification struct {
	Label     string `json:"label"`
	Reasoning string `json:"reasoning"`
	Raw       string `json:"-"`
}

// Judgment carries the fuzzy eligibility signals the deterministic gate
// cannot compute itself.
type Judgment struct {
	IsQuestion       bool   `json:"is_question"`
	IsFeatureRequest bool   `json:"is_feature_request"`
	Reasoning        string `json:"reasoning"`
}

// DocumentInput is one retrieved document excerpt offered as evidence.
type DocumentInput struct {
	Path    string
	Snippet string
}

// Composition is the drafted answer. CanAnswer is false when the model
// judged the provided excerpts insufficient; the engine must then skip
// rather than post an unfounded reply.
type Composition struct {
	CanAnswer bool   `json:"can_answer"`
	Answer    string `json:"answer"`
}

// Classifier assigns a label to an issue.
type Classifier interface {
	ClassifyIssue(ctx context.Context, issue *IssueInput, labels []LabelOption) (*Classification, error)
}

// Judge decides whether issue content is information-seeking and whether
// it is a feature request.
type Judge interface {
	JudgeContent(ctx context.Context, issue *IssueInput, latestComment string) (*Judgment, error)
}

// Composer drafts an answer strictly from the supplied documents.
type Composer interface {
	ComposeAnswer(ctx context.Context, issue *IssueInput, docs []DocumentInput) (*Composition, error)
}

// LLMClient implements Classifier, Judge and Composer on top of Gemini.
type LLMClient struct {
	client      *genai.Client
	model       string
	retryConfig RetryConfig
}

var (
	_ Classifier = (*LLMClient)(nil)
	_ Judge      = (*LLMClient)(nil)
	_ Composer   = (*LLMClient)(nil)
)

// NewLLMClient creates a new Gemini LLM client.
func NewLLMClient(apiKey, model string) (*LLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if model == "" {
		model = "gemini-2.0-flash-lite"
	}

	return &LLMClient{
		client:      client,
		model:       model,
		retryConfig: DefaultRetryConfig(),
	}, nil
}

// Close closes the Gemini client.
func (l *LLMClient) Close() error {
	return l.client.Close()
}

// generateJSON runs one prompt expecting a JSON object back. The response
// text is returned verbatim so callers can keep it for audit.
func (l *LLMClient) generateJSON(ctx context.Context, operation, prompt string) (string, error) {
	model := l.client.GenerativeModel(l.model)
	model.SetTemperature(0.3) // lower temperature for consistent decisions
	model.ResponseMIMEType = "application/json"

	resp, err := withRetry(ctx, l.retryConfig, operation, func() (*genai.GenerateContentResponse, error) {
		return model.GenerateContent(ctx, genai.Text(prompt))
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", operation, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%s: empty response from LLM", operation)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	return text.String(), nil
}

// ClassifyIssue asks the model for exactly one label from the enumeration.
// Validation against the enumeration is the caller's job; the raw text is
// preserved either way.
func (l *LLMClient) ClassifyIssue(ctx context.Context, issue *IssueInput, labels []LabelOption) (*Classification, error) {
	raw, err := l.generateJSON(ctx, "ClassifyIssue", buildClassifyPrompt(issue, labels))
	if err != nil {
		return nil, err
	}
	return parseClassification(raw)
}

// JudgeContent assesses whether the latest content is information-seeking
// and whether the issue is a feature request.
func (l *LLMClient) JudgeContent(ctx context.Context, issue *IssueInput, latestComment string) (*Judgment, error) {
	raw, err := l.generateJSON(ctx, "JudgeContent", buildJudgePrompt(issue, latestComment))
	if err != nil {
		return nil, err
	}

	var j Judgment
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return nil, fmt.Errorf("failed to parse judgment response: %w", err)
	}
	return &j, nil
}

// ComposeAnswer drafts a reply from the retrieved excerpts only.
func (l *LLMClient) ComposeAnswer(ctx context.Context, issue *IssueInput, docs []DocumentInput) (*Composition, error) {
	raw, err := l.generateJSON(ctx, "ComposeAnswer", buildComposePrompt(issue, docs))
	if err != nil {
		return nil, err
	}

	var c Composition
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("failed to parse composition response: %w", err)
	}
	c.Answer = strings.TrimSpace(c.Answer)
	return &c, nil
}

// parseClassification decodes the classifier's JSON reply, keeping the raw
// text for audit. A non-JSON reply is not an error here: the caller
// validates the (empty) label against the enumeration and logs Raw.
func parseClassification(raw string) (*Classification, error) {
	c := &Classification{Raw: raw}
	if err := json.Unmarshal([]byte(raw), c); err != nil {
		return c, nil
	}
	c.Label = strings.TrimSpace(c.Label)
	return c, nil
}
