package book

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var (
	slugRegex  = regexp.MustCompile(`[^a-z0-9]+`)
	spaceRegex = regexp.MustCompile(`\s+`)
	plainKey   = regexp.MustCompile(`^[a-z0-9]+( [a-z0-9]+)*$`)
)

// themeSeparator joins themes in storage and splits them on read.
const themeSeparator = ", "

// Book is a catalog entry (immutable value object).
type Book struct {
	id       string
	title    string
	summary  string
	themes   []string
	document string
}

// New validates and creates a Book. The id is derived from the title,
// themes are trimmed and lowercased, and the document text is built from all three fields.
func New(title, summary string, themes []string) (Book, error) {
	title = strings.TrimSpace(title)
	summary = strings.TrimSpace(summary)
	if title == "" {
		return Book{}, fmt.Errorf("title is required")
	}
	if summary == "" {
		return Book{}, fmt.Errorf("summary is required")
	}

	normalized := make([]string, 0, len(themes))
	for _, t := range themes {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			normalized = append(normalized, t)
		}
	}

	return Book{
		id:       NewID(title),
		title:    title,
		summary:  summary,
		themes:   normalized,
		document: DocumentText(title, summary, normalized),
	}, nil
}

// Reconstruct creates a Book without validation (storage hydration).
func Reconstruct(id, title, summary string, themes []string, document string) Book {
	return Book{id: id, title: title, summary: summary, themes: themes, document: document}
}

// ID returns the slug identifier.
func (b *Book) ID() string { return b.id }

// Title returns the published title as stored.
func (b *Book) Title() string { return b.title }

// Summary returns the stored summary, verbatim.
func (b *Book) Summary() string { return b.summary }

// Themes returns the ordered lowercase theme phrases.
func (b *Book) Themes() []string { return b.themes }

// Document returns the text that was embedded for this entry.
func (b *Book) Document() string { return b.document }

// TitleKey returns the case-insensitive lookup key for the title.
func (b *Book) TitleKey() string { return TitleKey(b.title) }

// Slugify renders a title as lowercase ASCII alphanumerics joined by dashes.
func Slugify(title string) string {
	s := slugRegex.ReplaceAllString(strings.ToLower(strings.TrimSpace(title)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "untitled"
	}
	return s
}

// NewID derives the storage id for a title. Titles made only of lowercase ASCII words
// keep their bare slug. Any other title gets a short hash of its TitleKey appended,
// so titles that slug the same ("Anna Karenina", "Anna-Karenina", non-Latin scripts)
// still get distinct ids.
func NewID(title string) string {
	key := TitleKey(title)
	slug := Slugify(key)
	if plainKey.MatchString(key) {
		return slug
	}
	sum := sha256.Sum256([]byte(key))
	return slug + "-" + hex.EncodeToString(sum[:4])
}

// TitleKey casefolds a title and collapses whitespace. Two titles with the same key
// are the same catalog entry.
func TitleKey(title string) string {
	return strings.ToLower(spaceRegex.ReplaceAllString(strings.TrimSpace(title), " "))
}

// DocumentText renders the embedded representation of an entry.
func DocumentText(title, summary string, themes []string) string {
	return "Title: " + title + "\nSummary: " + summary + "\nThemes: " + JoinThemes(themes)
}

// JoinThemes renders themes for storage.
func JoinThemes(themes []string) string {
	return strings.Join(themes, themeSeparator)
}

// SplitThemes parses a stored theme string into trimmed phrases, dropping empties.
func SplitThemes(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
