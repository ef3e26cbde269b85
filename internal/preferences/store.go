// Package preferences persists per-user matching weight profiles in Redis.
package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"eduprima/internal/matching"
)

const keyPrefix = "weights:"

// Store reads and writes WeightProfiles keyed by user id.
type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewStore returns a Store. A zero ttl keeps profiles until overwritten.
func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func Key(userID string) string {
	return keyPrefix + userID
}

// Get returns the user's saved profile, or matching.DefaultWeights when none is stored.
func (s *Store) Get(ctx context.Context, userID string) (matching.WeightProfile, error) {
	if userID == "" {
		return matching.DefaultWeights, nil
	}

	raw, err := s.client.Get(ctx, Key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return matching.DefaultWeights, nil
	}
	if err != nil {
		return matching.WeightProfile{}, fmt.Errorf("get weights for %s: %w", userID, err)
	}

	var w matching.WeightProfile
	if err := json.Unmarshal(raw, &w); err != nil {
		return matching.WeightProfile{}, fmt.Errorf("decode weights for %s: %w", userID, err)
	}
	return w, nil
}

// Save validates and stores a profile.
func (s *Store) Save(ctx context.Context, userID string, w matching.WeightProfile) error {
	if userID == "" {
		return &matching.ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	if err := w.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}
	if err := s.client.Set(ctx, Key(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save weights for %s: %w", userID, err)
	}
	return nil
}

// Delete drops a stored profile so the defaults apply again.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, Key(userID)).Err(); err != nil {
		return fmt.Errorf("delete weights for %s: %w", userID, err)
	}
	return nil
}
