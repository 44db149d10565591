package guard

import (
	"fmt"
	"strings"
)

// Policy decides when a normalized entity counts as present in a normalized title.
type Policy string

const (
	// PolicySubstring matches when the entity equals or is contained in a title.
	PolicySubstring Policy = "substring"
	// PolicyToken matches only on whole-word boundaries, so "ann" does not match "Annabel".
	PolicyToken Policy = "token"
)

// ParsePolicy validates a configured policy name. Empty means substring.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicySubstring:
		return PolicySubstring, nil
	case PolicyToken:
		return PolicyToken, nil
	default:
		return "", fmt.Errorf("unknown exact match policy %q", s)
	}
}

func (p Policy) matches(entity, title string) bool {
	if p == PolicyToken {
		e, t := tokens(entity), tokens(title)
		if e == "" {
			return false
		}
		return strings.Contains(" "+t+" ", " "+e+" ")
	}
	return entity == title || strings.Contains(title, entity)
}
