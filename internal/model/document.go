package model

// Document is caller-supplied supporting text for a query. Content is
// already extracted to plain text.
type Document struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Size    int    `json:"size"`
}
