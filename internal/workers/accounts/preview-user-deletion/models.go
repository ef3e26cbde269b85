// internal/workers/accounts/preview-user-deletion/models.go
package previewuserdeletion

import (
	"time"

	"eduprima/internal/deletion"
)

type Input struct {
	UserID string `json:"userId"`
}

// Output is shown to the operator in full before confirmation is allowed.
type Output struct {
	UserID      string           `json:"userId"`
	Entries     []deletion.Entry `json:"entries"`
	TotalRows   int64            `json:"totalRows"`
	Source      string           `json:"previewSource"`
	Degraded    bool             `json:"previewDegraded"`
	Warning     string           `json:"previewWarning,omitempty"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

const inputSchema = `{
  "type": "object",
  "required": ["userId"],
  "properties": {
    "userId": {"type": "string", "minLength": 1}
  }
}`
