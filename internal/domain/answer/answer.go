package answer

import "github.com/kailas-cloud/librarian/internal/domain/book"

// Outcome is the terminal state the pipeline reached for a query.
type Outcome string

// Outcome values.
const (
	OutcomeUnsafe       Outcome = "unsafe"
	OutcomeDeclined     Outcome = "declined"
	OutcomeExactBlocked Outcome = "exact_blocked"
	OutcomeNoHits       Outcome = "no_hits"
	OutcomeNoSelection  Outcome = "no_selection"
	OutcomeComposed     Outcome = "composed"
)

// ContextItem is a retrieved candidate shown back to the caller.
type ContextItem struct {
	Title  string
	Themes []string
}

// Selection is the model's pick among the candidates. An empty title means none fit.
type Selection struct {
	Title  string
	Reason string
}

// IsEmpty reports whether the model declined to choose.
func (s Selection) IsEmpty() bool { return s.Title == "" }

// Answer is the final response for one query.
type Answer struct {
	Query       string
	ChosenTitle *string
	Text        string
	Context     []ContextItem
	Outcome     Outcome
	Language    string
}

// Refusal builds a terminal answer with no chosen title.
func Refusal(query, text string, outcome Outcome, ctx []ContextItem) Answer {
	if ctx == nil {
		ctx = []ContextItem{}
	}
	return Answer{Query: query, Text: text, Context: ctx, Outcome: outcome}
}

// Composed builds the successful terminal answer.
func Composed(query, title, text string, ctx []ContextItem) Answer {
	return Answer{Query: query, ChosenTitle: &title, Text: text, Context: ctx, Outcome: OutcomeComposed}
}

// ContextFromHits projects hits to the caller-visible context list.
func ContextFromHits(hits []book.Hit) []ContextItem {
	out := make([]ContextItem, len(hits))
	for i := range hits {
		out[i] = ContextItem{Title: hits[i].Title(), Themes: hits[i].Themes()}
	}
	return out
}
