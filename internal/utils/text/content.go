package text

import (
	"fmt"
	"strings"
)

// Comment is one issue comment for content-building purposes.
type Comment struct {
	Author string
	Body   string
}

// BuildQueryContent constructs the text used as the retrieval query.
// It combines title, body and comment history into a single string;
// comments with empty bodies are skipped.
func BuildQueryContent(title, body string, comments []Comment) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n\n", title)

	if b := strings.TrimSpace(body); b != "" {
		fmt.Fprintf(&sb, "Body: %s\n\n", b)
	}

	hasHeader := false
	for _, c := range comments {
		if strings.TrimSpace(c.Body) == "" {
			continue
		}
		if !hasHeader {
			sb.WriteString("Comments:\n")
			hasHeader = true
		}
		fmt.Fprintf(&sb, "- %s: %s\n", c.Author, c.Body)
	}

	return sb.String()
}

// Truncate shortens s to at most n runes, appending an ellipsis when
// anything was cut. Used to keep log lines and previews readable.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
