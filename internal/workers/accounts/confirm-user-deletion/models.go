// internal/workers/accounts/confirm-user-deletion/models.go
package confirmuserdeletion

import (
	"time"

	"eduprima/internal/deletion"
)

// Input names the confirming actor directly or through their access token.
type Input struct {
	UserID      string `json:"userId"`
	ActorID     string `json:"actorId,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
}

type Output struct {
	Deleted       bool             `json:"deleted"`
	UserID        string           `json:"userId"`
	AuditID       string           `json:"auditId"`
	ActorID       string           `json:"actorId"`
	DeletedAt     time.Time        `json:"deletedAt"`
	RemovedRows   int64            `json:"removedRows"`
	PreviewSource string           `json:"previewSource"`
	Entries       []deletion.Entry `json:"entries"`
}

const inputSchema = `{
  "type": "object",
  "required": ["userId"],
  "properties": {
    "userId": {"type": "string", "minLength": 1},
    "actorId": {"type": "string"},
    "accessToken": {"type": "string"}
  },
  "anyOf": [
    {"required": ["actorId"]},
    {"required": ["accessToken"]}
  ]
}`
