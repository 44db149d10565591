package classification

import "strings"

// Intent is the classified purpose of a query.
type Intent string

// Intent values.
const (
	IntentBookRequest Intent = "book_request"
	IntentChitChat    Intent = "chit_chat"
	IntentOther       Intent = "other"
)

// EntityType is the kind of named entity found in a query.
type EntityType string

// EntityType values.
const (
	EntityTitle  EntityType = "title"
	EntityAuthor EntityType = "author"
	EntityPerson EntityType = "person"
	EntityNone   EntityType = "none"
)

// FallbackReason marks a classification produced because the model reply was unusable.
const FallbackReason = "parser_fallback"

// NamedEntity is a specific title, author or person mentioned in a query.
type NamedEntity struct {
	Text string
	Type EntityType
}

// Classification is the immutable output of the intent classifier.
type Classification struct {
	Intent         Intent
	Entity         NamedEntity
	MustExactMatch bool
	Reason         string
}

// Fallback is the safe default: out of scope, no entity, no exact-match demand.
func Fallback() Classification {
	return Classification{
		Intent: IntentOther,
		Entity: NamedEntity{Type: EntityNone},
		Reason: FallbackReason,
	}
}

// IsBookRequest reports whether the query is in scope.
func (c Classification) IsBookRequest() bool {
	return c.Intent == IntentBookRequest
}

// DemandsExactEntity reports whether the guard must verify the entity against the catalog.
func (c Classification) DemandsExactEntity() bool {
	if !c.MustExactMatch || strings.TrimSpace(c.Entity.Text) == "" {
		return false
	}
	switch c.Entity.Type {
	case EntityTitle, EntityAuthor, EntityPerson:
		return true
	default:
		return false
	}
}

// ParseIntent normalizes a raw intent label. Unknown labels map to IntentOther.
func ParseIntent(s string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentBookRequest:
		return IntentBookRequest
	case IntentChitChat:
		return IntentChitChat
	default:
		return IntentOther
	}
}

// ParseEntityType normalizes a raw entity type. Unknown or empty types map to EntityNone.
func ParseEntityType(s string) EntityType {
	switch EntityType(strings.ToLower(strings.TrimSpace(s))) {
	case EntityTitle:
		return EntityTitle
	case EntityAuthor:
		return EntityAuthor
	case EntityPerson:
		return EntityPerson
	default:
		return EntityNone
	}
}
