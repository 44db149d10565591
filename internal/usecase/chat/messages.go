package chat

import "fmt"

// Fixed English responses. All but the unsafe refusal are localized before returning.
const (
	MessageUnsafe      = "⚠️ Please use respectful language. I can only help with book-related queries."
	MessageDecline     = "I only handle book recommendations based on themes, vibes or titles. Try: 'a book about friendship and magic' or 'something dystopian but hopeful'."
	MessageNoHits      = "I couldn’t find relevant matches in the collection."
	MessageNoSelection = "I couldn’t find a suitable match in the collection. Try a different theme or vibe."
)

// MessageExactBlocked names the entity the catalog does not hold.
func MessageExactBlocked(entity string) string {
	return fmt.Sprintf("I can only recommend from the stored collection and I couldn't find an exact match for '%s'. "+
		"Try asking by theme or vibe instead (e.g., 'a memoir about resilience').", entity)
}
