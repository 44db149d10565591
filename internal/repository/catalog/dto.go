package catalog

import (
	"github.com/kailas-cloud/librarian/internal/db"
	"github.com/kailas-cloud/librarian/internal/domain/book"
)

// Hash field names.
const (
	fieldTitle    = "title"
	fieldTitleKey = "title_key"
	fieldSummary  = "summary"
	fieldThemes   = "themes"
	fieldContent  = "__content"
	fieldVector   = "__vector"
)

// returnFields are the hash fields loaded for hits; the vector is never returned.
var returnFields = []string{fieldTitle, fieldSummary, fieldThemes, fieldContent}

// buildHashFields converts a Book and its embedding into a flat map for HSET.
func buildHashFields(b *book.Book, vector []float32) map[string]string {
	return map[string]string{
		fieldTitle:    b.Title(),
		fieldTitleKey: b.TitleKey(),
		fieldSummary:  b.Summary(),
		fieldThemes:   book.JoinThemes(b.Themes()),
		fieldContent:  b.Document(),
		fieldVector:   db.VectorBytes(vector),
	}
}

// parseHashFields converts stored fields back into a Book.
func parseHashFields(id string, m map[string]string) book.Book {
	themes := book.SplitThemes(m[fieldThemes])
	doc := m[fieldContent]
	if doc == "" {
		doc = book.DocumentText(m[fieldTitle], m[fieldSummary], themes)
	}
	return book.Reconstruct(id, m[fieldTitle], m[fieldSummary], themes, doc)
}
