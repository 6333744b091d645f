package steps

import (
	"fmt"
	"log"
	"strings"

	"github.com/heraldbot/herald/internal/citations"
	"github.com/heraldbot/herald/internal/core/pipeline"
)

// ResponseBuilder composes the final comment body: the drafted answer, a
// trailing bolded attribution marker, and a numbered footnote list of
// rewritten citation URLs in retrieval-rank order.
type ResponseBuilder struct{}

// NewResponseBuilder creates a new response builder step.
func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{}
}

// Name returns the step name.
func (s *ResponseBuilder) Name() string {
	return "response_builder"
}

// Run builds the comment. One malformed document reference aborts the
// whole answer; a reply with a corrupted citation must never be posted.
func (s *ResponseBuilder) Run(ctx *pipeline.Context) error {
	if ctx.Verdict == nil || !ctx.Verdict.IsAct() {
		return pipeline.ErrSkipPipeline
	}
	if strings.TrimSpace(ctx.Draft) == "" {
		log.Printf("[response_builder] no draft for issue #%d", ctx.Issue.Number)
		return ctx.Skip(s.Name(), pipeline.SkipNoEvidence)
	}

	rewriter := citations.NewRewriter(ctx.Config.Organization)

	cites := make([]pipeline.Citation, 0, len(ctx.Documents))
	for _, doc := range ctx.Documents {
		url, err := rewriter.Rewrite(doc.Path)
		if err != nil {
			log.Printf("[response_builder] issue #%d: %v", ctx.Issue.Number, err)
			return ctx.Skip(s.Name(), pipeline.SkipMalformedCitation)
		}
		cites = append(cites, pipeline.Citation{Path: doc.Path, URL: url})
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(ctx.Draft))
	fmt.Fprintf(&sb, "\n\n**%s**\n", ctx.Config.Answer.Marker)
	for i, c := range cites {
		fmt.Fprintf(&sb, "\n[%d] %s", i+1, c.URL)
	}

	ctx.CommentBody = sb.String()
	ctx.Result.Citations = cites
	log.Printf("[response_builder] built comment for issue #%d with %d citations",
		ctx.Issue.Number, len(cites))
	return nil
}
