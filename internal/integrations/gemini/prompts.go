package gemini

import (
	"fmt"
	"strings"
)

// renderIssue formats the issue context shared by all prompts.
func renderIssue(issue *IssueInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", issue.Title)
	fmt.Fprintf(&sb, "Reporter: %s\n", issue.Author)
	fmt.Fprintf(&sb, "Body:\n%s\n", strings.TrimSpace(issue.Body))
	if len(issue.Comments) > 0 {
		sb.WriteString("\nComments (oldest first):\n")
		for _, c := range issue.Comments {
			fmt.Fprintf(&sb, "- %s: %s\n", c.Author, c.Body)
		}
	}
	return sb.String()
}

// buildClassifyPrompt produces the triage classification prompt. The model
// must pick exactly one label or report that none fits; it never invents
// labels outside the enumeration.
func buildClassifyPrompt(issue *IssueInput, labels []LabelOption) string {
	var sb strings.Builder

	sb.WriteString("You are a triage assistant for a GitHub repository. ")
	sb.WriteString("Classify the issue below with exactly one of the allowed labels.\n\n")

	sb.WriteString("Allowed labels:\n")
	for _, l := range labels {
		if l.Hint != "" {
			fmt.Fprintf(&sb, "- %s: %s\n", l.Name, l.Hint)
		} else {
			fmt.Fprintf(&sb, "- %s\n", l.Name)
		}
	}

	sb.WriteString("\nIssue:\n")
	sb.WriteString(renderIssue(issue))

	sb.WriteString(`
Respond with a JSON object:
{"label": "<one allowed label, or empty string if none fits>", "reasoning": "<one or two sentences>"}

Rules:
- Pick the single best matching label from the allowed list.
- If no allowed label fits, return an empty label. Do not invent labels.
`)

	return sb.String()
}

// buildJudgePrompt produces the question / feature-request judgment prompt
// used by the answering gate.
func buildJudgePrompt(issue *IssueInput, latestComment string) string {
	var sb strings.Builder

	sb.WriteString("You judge GitHub issue content for an answering bot.\n\n")
	sb.WriteString("Issue:\n")
	sb.WriteString(renderIssue(issue))

	if strings.TrimSpace(latestComment) != "" {
		sb.WriteString("\nLatest comment (judge this text):\n")
		sb.WriteString(latestComment)
		sb.WriteString("\n")
	} else {
		sb.WriteString("\nThere are no comments; judge the issue title and body.\n")
	}

	sb.WriteString(`
Respond with a JSON object:
{"is_question": <true if the text asks a question or requests information>,
 "is_feature_request": <true if the issue asks for new functionality>,
 "reasoning": "<one sentence>"}
`)

	return sb.String()
}

// buildComposePrompt produces the answer drafting prompt. The model is
// restricted to the supplied excerpts so the engine never posts an answer
// without retrieval support.
func buildComposePrompt(issue *IssueInput, docs []DocumentInput) string {
	var sb strings.Builder

	sb.WriteString("You answer questions on a GitHub repository. ")
	sb.WriteString("Use ONLY the documentation excerpts below; do not rely on outside knowledge.\n\n")

	sb.WriteString("Issue:\n")
	sb.WriteString(renderIssue(issue))

	sb.WriteString("\nDocumentation excerpts:\n")
	for i, d := range docs {
		fmt.Fprintf(&sb, "[%d] %s\n%s\n\n", i+1, d.Path, d.Snippet)
	}

	sb.WriteString(`Respond with a JSON object:
{"can_answer": <true only if the excerpts contain enough information>,
 "answer": "<the reply in GitHub markdown, empty if can_answer is false>"}

Rules:
- If the excerpts do not answer the question, set can_answer to false. Never guess.
- Do not include citations or footnotes in the answer text; they are appended separately.
- Write the answer to the issue reporter in a helpful, direct tone.
`)

	return sb.String()
}
