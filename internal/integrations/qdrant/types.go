// Package qdrant provides the retrieval-service integration. The engine
// only consumes rank order and the stored document path; scoring is the
// collaborator's concern. The collection is populated by an external sync
// pipeline, never by this process.
package qdrant

import "context"

// SearchResult is one ranked hit from a similarity search. The payload
// carries at least "path" (document-store path) and "snippet" (excerpt).
type SearchResult struct {
	ID      string                 `json:"id"`
	Score   float32                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

// VectorStore defines the read-only view of the document store.
type VectorStore interface {
	// Search finds the nearest neighbors above threshold for a vector.
	Search(ctx context.Context, collection string, vector []float32, limit int, threshold float64) ([]*SearchResult, error)

	// Close closes the connection to the store.
	Close() error
}
