// Package citations rewrites document-store paths into public GitHub URLs.
//
// The retrieval corpus mirrors repository content under a bucket layout of
// the form gs://<bucket>/<repo>/<relative-path>. Answers posted back to the
// tracker must cite the canonical source on GitHub instead, so every
// retrieved path is rewritten before it reaches a comment body.
package citations

import (
	"fmt"
	"strings"
)

// StoreScheme is the only accepted document-store scheme.
const StoreScheme = "gs://"

// MalformedReferenceError indicates a document path that does not match the
// expected store layout. The caller must drop the answer rather than post a
// guessed citation.
type MalformedReferenceError struct {
	Path   string
	Reason string
}

func (e *MalformedReferenceError) Error() string {
	return fmt.Sprintf("malformed document reference %q: %s", e.Path, e.Reason)
}

// Rewriter maps internal document-store paths to public GitHub blob URLs.
// The mapping is a pure function: equal inputs always yield equal outputs.
type Rewriter struct {
	org string
}

// NewRewriter creates a rewriter that targets the given GitHub organization.
func NewRewriter(org string) *Rewriter {
	return &Rewriter{org: org}
}

// Rewrite converts "gs://<bucket>/<repo>/<path>" into
// "https://github.com/<org>/<repo>/blob/main/<path>".
//
// The store serves an HTML mirror of markdown sources, so a trailing ".html"
// extension maps back to ".md".
func (r *Rewriter) Rewrite(docPath string) (string, error) {
	if !strings.HasPrefix(docPath, StoreScheme) {
		return "", &MalformedReferenceError{Path: docPath, Reason: "missing " + StoreScheme + " scheme"}
	}

	// <bucket>/<repo>/<relative-path>
	parts := strings.SplitN(strings.TrimPrefix(docPath, StoreScheme), "/", 3)
	if len(parts) < 3 {
		return "", &MalformedReferenceError{Path: docPath, Reason: "expected bucket/repo/path segments"}
	}
	bucket, repo, rel := parts[0], parts[1], parts[2]
	if bucket == "" || repo == "" || rel == "" {
		return "", &MalformedReferenceError{Path: docPath, Reason: "empty path segment"}
	}

	if strings.HasSuffix(rel, ".html") {
		rel = strings.TrimSuffix(rel, ".html") + ".md"
	}

	return fmt.Sprintf("https://github.com/%s/%s/blob/main/%s", r.org, repo, rel), nil
}
