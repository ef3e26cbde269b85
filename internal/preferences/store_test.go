package preferences

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduprima/internal/matching"
)

func newMiniredisStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, ttl), mr
}

func TestStore_GetDefaultsWhenUnset(t *testing.T) {
	s, _ := newMiniredisStore(t, 0)

	w, err := s.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, matching.DefaultWeights, w)

	w, err = s.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, matching.DefaultWeights, w)
}

func TestStore_SaveThenGet(t *testing.T) {
	s, mr := newMiniredisStore(t, time.Hour)
	ctx := context.Background()

	profile := matching.WeightProfile{Distance: 1, Price: 0.5}
	require.NoError(t, s.Save(ctx, "user-1", profile))

	got, err := s.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, profile, got)

	assert.True(t, mr.Exists("weights:user-1"))
	assert.Equal(t, time.Hour, mr.TTL("weights:user-1"))

	require.NoError(t, s.Delete(ctx, "user-1"))
	got, err = s.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, matching.DefaultWeights, got)
}

func TestStore_SaveRejectsInvalidWeights(t *testing.T) {
	s, mr := newMiniredisStore(t, 0)

	err := s.Save(context.Background(), "user-1", matching.WeightProfile{Rating: -1})
	var vErr *matching.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "weights.rating", vErr.Field)

	err = s.Save(context.Background(), "user-1", matching.WeightProfile{Price: math.NaN()})
	require.ErrorAs(t, err, &vErr)

	err = s.Save(context.Background(), "", matching.DefaultWeights)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "userId", vErr.Field)

	assert.False(t, mr.Exists("weights:user-1"))
}

func TestStore_GetCorruptValue(t *testing.T) {
	s, mr := newMiniredisStore(t, 0)
	require.NoError(t, mr.Set("weights:user-1", "not json"))

	_, err := s.Get(context.Background(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode weights")
}

func TestStore_GetBackendError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectGet("weights:user-1").SetErr(errors.New("connection refused"))

	_, err := NewStore(client, 0).Get(context.Background(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}
