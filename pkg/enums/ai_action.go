package enums

import "fmt"

// AIAction names a generation endpoint under /api/resources/{id}/ai/{action}.
type AIAction string

const (
	AIActionSummary    AIAction = "summary"
	AIActionFlashcards AIAction = "flashcards"
	AIActionChat       AIAction = "chat"
)

var validAIActions = []AIAction{AIActionSummary, AIActionFlashcards, AIActionChat}

func (a AIAction) IsValid() bool {
	for _, candidate := range validAIActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAIAction converts the path segment into an AIAction.
func ParseAIAction(value string) (AIAction, error) {
	for _, candidate := range validAIActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("unsupported action %q", value)
}
