// Package candidates loads tutor candidates for the scoring engine.
package candidates

import (
	"context"

	"eduprima/internal/matching"
)

// Source returns the candidate set a search query is scored against.
type Source interface {
	Candidates(ctx context.Context, query matching.SearchQuery) ([]matching.Candidate, error)
}
