package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/multiview/internal/model"
)

func TestBuildDocumentsSummary_NoDocuments(t *testing.T) {
	assert.Equal(t, "No additional documents.", BuildDocumentsSummary(nil, 100))
}

func TestBuildDocumentsSummary_PreviewPerDocument(t *testing.T) {
	docs := []model.Document{
		{Name: "notes.txt", Content: "short"},
		{Name: "", Content: strings.Repeat("a", 150)},
	}

	got := BuildDocumentsSummary(docs, 100)
	lines := strings.Split(got, "\n")

	assert.Len(t, lines, 2)
	assert.Equal(t, "Document 1: notes.txt (preview: short...)", lines[0])
	assert.Equal(t, "Document 2: N/A (preview: "+strings.Repeat("a", 100)+"...)", lines[1])
}

func TestBuildDocumentsContent_NoDocuments(t *testing.T) {
	assert.Equal(t, "No additional documents.", BuildDocumentsContent(nil, 4000))
}

func TestBuildDocumentsContent_Blocks(t *testing.T) {
	docs := []model.Document{
		{Name: "a.md", Content: "alpha"},
		{Name: "b.md", Content: "beta"},
	}

	got := BuildDocumentsContent(docs, 4000)
	want := "--- START Document 1: a.md ---\nalpha\n--- END Document 1 ---\n\n" +
		"--- START Document 2: b.md ---\nbeta\n--- END Document 2 ---"
	assert.Equal(t, want, got)
}

func TestBuildDocumentsContent_Truncates(t *testing.T) {
	docs := []model.Document{{Name: "long.txt", Content: strings.Repeat("x", 20)}}

	got := BuildDocumentsContent(docs, 10)
	assert.Contains(t, got, strings.Repeat("x", 10)+"... (truncated)\n")
	assert.NotContains(t, got, strings.Repeat("x", 11))
}

func TestBuildDocumentsContent_ExactLimitNotMarked(t *testing.T) {
	docs := []model.Document{{Name: "exact.txt", Content: "12345"}}
	assert.NotContains(t, BuildDocumentsContent(docs, 5), "truncated")
}

func TestTruncateRunes_MultiByte(t *testing.T) {
	got, cut := truncateRunes("zażółć gęślą", 4)
	assert.True(t, cut)
	assert.Equal(t, "zażó", got)

	got, cut = truncateRunes("abc", 10)
	assert.False(t, cut)
	assert.Equal(t, "abc", got)
}
