package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/multiview/internal/model"
)

const (
	noDocuments     = "No additional documents."
	truncatedSuffix = "... (truncated)"
)

// BuildDocumentsSummary renders one preview line per document for the
// analysis prompt.
func BuildDocumentsSummary(docs []model.Document, previewChars int) string {
	if len(docs) == 0 {
		return noDocuments
	}
	lines := make([]string, 0, len(docs))
	for i, d := range docs {
		preview, _ := truncateRunes(d.Content, previewChars)
		lines = append(lines, fmt.Sprintf("Document %d: %s (preview: %s...)", i+1, docName(d), preview))
	}
	return strings.Join(lines, "\n")
}

// BuildDocumentsContent renders every document's text, each capped at
// maxChars runes, for the perspective prompts.
func BuildDocumentsContent(docs []model.Document, maxChars int) string {
	if len(docs) == 0 {
		return noDocuments
	}
	blocks := make([]string, 0, len(docs))
	for i, d := range docs {
		text, cut := truncateRunes(d.Content, maxChars)
		if cut {
			text += truncatedSuffix
		}
		blocks = append(blocks, fmt.Sprintf("--- START Document %d: %s ---\n%s\n--- END Document %d ---", i+1, docName(d), text, i+1))
	}
	return strings.Join(blocks, "\n\n")
}

func docName(d model.Document) string {
	if strings.TrimSpace(d.Name) == "" {
		return "N/A"
	}
	return d.Name
}

// truncateRunes returns the first n runes of s and whether anything was cut.
func truncateRunes(s string, n int) (string, bool) {
	if n <= 0 {
		return "", s != ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}
