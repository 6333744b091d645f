package steps

import (
	"log"

	"github.com/heraldbot/herald/internal/core/pipeline"
	"github.com/heraldbot/herald/internal/integrations/gemini"
	"github.com/heraldbot/herald/internal/integrations/qdrant"
	"github.com/heraldbot/herald/internal/utils/text"
)

// Retriever finds supporting documents for the question and drafts the
// answer from them. Without supporting evidence the instance always
// skips: the engine never fabricates an answer.
type Retriever struct {
	embedder gemini.TextEmbedder
	store    qdrant.VectorStore
	composer gemini.Composer
}

// NewRetriever creates a new retriever step.
func NewRetriever(deps *pipeline.Dependencies) *Retriever {
	return &Retriever{
		embedder: deps.Embedder,
		store:    deps.Search,
		composer: deps.Composer,
	}
}

// Name returns the step name.
func (s *Retriever) Name() string {
	return "retriever"
}

// Run performs one embedding call, one search and one composition call.
// Retrieval is billed externally and not safe to retry blindly, so each
// happens at most once per Act verdict.
func (s *Retriever) Run(ctx *pipeline.Context) error {
	if ctx.Verdict == nil || !ctx.Verdict.IsAct() {
		log.Printf("[retriever] no act verdict for issue #%d, nothing to retrieve", ctx.Issue.Number)
		return pipeline.ErrSkipPipeline
	}

	query := buildQuery(ctx)
	embedCtx, cancelEmbed := requestContext(ctx)
	vector, err := s.embedder.Embed(embedCtx, query)
	cancelEmbed()
	if err != nil {
		log.Printf("[retriever] embedding failed for issue #%d: %v", ctx.Issue.Number, err)
		return ctx.Skip(s.Name(), pipeline.SkipClassificationFailed)
	}

	searchCtx, cancelSearch := requestContext(ctx)
	hits, err := s.store.Search(searchCtx, ctx.Config.Qdrant.Collection, vector,
		ctx.Config.Answer.MaxDocuments, ctx.Config.Answer.RelevanceThreshold)
	cancelSearch()
	if err != nil {
		log.Printf("[retriever] search failed for issue #%d: %v", ctx.Issue.Number, err)
		return ctx.Skip(s.Name(), pipeline.SkipNoEvidence)
	}

	docs := documentsFromHits(hits)
	if len(docs) == 0 {
		log.Printf("[retriever] no supporting documents above threshold for issue #%d", ctx.Issue.Number)
		return ctx.Skip(s.Name(), pipeline.SkipNoEvidence)
	}

	inputs := make([]gemini.DocumentInput, len(docs))
	for i, d := range docs {
		inputs[i] = gemini.DocumentInput{Path: d.Path, Snippet: d.Snippet}
	}

	composeCtx, cancelCompose := requestContext(ctx)
	composition, err := s.composer.ComposeAnswer(composeCtx, issueInput(ctx), inputs)
	cancelCompose()
	if err != nil {
		log.Printf("[retriever] composition failed for issue #%d: %v", ctx.Issue.Number, err)
		return ctx.Skip(s.Name(), pipeline.SkipClassificationFailed)
	}
	if !composition.CanAnswer || composition.Answer == "" {
		log.Printf("[retriever] model found the evidence insufficient for issue #%d", ctx.Issue.Number)
		return ctx.Skip(s.Name(), pipeline.SkipNoEvidence)
	}

	ctx.Draft = composition.Answer
	ctx.Documents = docs
	log.Printf("[retriever] drafted answer for issue #%d from %d documents", ctx.Issue.Number, len(docs))
	return nil
}

// buildQuery renders the issue and its comments as the retrieval query.
func buildQuery(ctx *pipeline.Context) string {
	comments := make([]text.Comment, len(ctx.Comments))
	for i, c := range ctx.Comments {
		comments[i] = text.Comment{Author: c.Author, Body: c.Body}
	}
	return text.BuildQueryContent(ctx.Issue.Title, ctx.Issue.Body, comments)
}

// documentsFromHits extracts document references from search hits,
// preserving retrieval-rank order. Hits without a stored path are dropped.
func documentsFromHits(hits []*qdrant.SearchResult) []pipeline.DocumentRef {
	docs := make([]pipeline.DocumentRef, 0, len(hits))
	for _, hit := range hits {
		path, _ := hit.Payload["path"].(string)
		if path == "" {
			log.Printf("[retriever] dropping hit %s: payload has no document path", hit.ID)
			continue
		}
		snippet, _ := hit.Payload["snippet"].(string)
		docs = append(docs, pipeline.DocumentRef{
			Path:    path,
			Snippet: snippet,
			Score:   float64(hit.Score),
		})
	}
	return docs
}
