package tickets

import (
	"strings"

	"github.com/ternarybob/tessera/internal/models"
)

// NormalizeJiraCategory maps a Jira statusCategory key onto the normalized
// status vocabulary. Jira's own keys already use "new"/"indeterminate"/"done";
// anything else (including the empty string) is undefined.
func NormalizeJiraCategory(key string) models.StatusCategory {
	switch strings.ToLower(key) {
	case "new":
		return models.StatusCategoryNew
	case "indeterminate":
		return models.StatusCategoryIndeterminate
	case "done":
		return models.StatusCategoryDone
	default:
		return models.StatusCategoryUndefined
	}
}

// NormalizeZendeskStatus maps a Zendesk ticket status onto the normalized
// status vocabulary.
func NormalizeZendeskStatus(status string) models.StatusCategory {
	switch strings.ToLower(status) {
	case "new":
		return models.StatusCategoryNew
	case "open", "pending", "hold":
		return models.StatusCategoryIndeterminate
	case "solved", "closed":
		return models.StatusCategoryDone
	default:
		return models.StatusCategoryUndefined
	}
}
