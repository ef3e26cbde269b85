package confirmuserdeletion

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"eduprima/internal/common/errors"
	"eduprima/internal/common/logger"
	"eduprima/internal/deletion"
	"eduprima/internal/store"
	"eduprima/internal/store/memstore"
)

type MockActorResolver struct {
	mock.Mock
}

func (m *MockActorResolver) ResolveActor(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func seeded(restrict bool) *memstore.Store {
	var opts []memstore.Option
	for _, dt := range deletion.DependentTables {
		onDelete := memstore.Cascade
		if restrict && dt.Table == "user_banking_info" {
			onDelete = memstore.Restrict
		}
		opts = append(opts, memstore.WithForeignKey(memstore.ForeignKey{
			Name: "fk_" + dt.Table, Child: dt.Table, Column: dt.Column,
			Parent: deletion.CoreTable, ParentColumn: "id", OnDelete: onDelete, Label: dt.Label,
		}))
	}
	ms := memstore.New(append(opts, memstore.WithAggregatePreview(deletion.CoreTable))...)
	ms.Seed(deletion.CoreTable, store.Row{"id": "u-1", "email": "ada@example.com", "user_code": "TUT-001"})
	ms.Seed("user_banking_info", store.Row{"id": "b-1", "user_id": "u-1"})
	ms.Seed("tutor_management", store.Row{"id": "tm-1", "user_id": "u-1"})
	return ms
}

func createTestHandler(t *testing.T, ms *memstore.Store, actors ActorResolver) *Handler {
	log := logger.NewZapAdapter(zaptest.NewLogger(t))
	orch := deletion.NewOrchestrator(ms,
		deletion.WithLogger(log),
		deletion.WithAuditSink(deletion.NewStoreAuditSink(ms)),
		deletion.WithVerifyRetry(3, time.Millisecond),
	)
	return NewHandler(&Config{Timeout: 5 * time.Second}, orch, actors, nil, log)
}

func TestHandler_Execute_WithActorID(t *testing.T) {
	ms := seeded(false)
	out, err := createTestHandler(t, ms, nil).Execute(context.Background(), &Input{UserID: "u-1", ActorID: "admin-7"})
	require.NoError(t, err)

	assert.True(t, out.Deleted)
	assert.Equal(t, "u-1", out.UserID)
	assert.Equal(t, "admin-7", out.ActorID)
	assert.NotEmpty(t, out.AuditID)
	assert.Equal(t, int64(2), out.RemovedRows)
	assert.Equal(t, "authoritative", out.PreviewSource)

	n, err := ms.Count(context.Background(), "user_banking_info", store.Eq("user_id", "u-1"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHandler_Execute_ResolvesActorFromToken(t *testing.T) {
	actors := &MockActorResolver{}
	actors.On("ResolveActor", mock.Anything, "token-abc").Return("admin-9", nil)

	out, err := createTestHandler(t, seeded(false), actors).
		Execute(context.Background(), &Input{UserID: "u-1", AccessToken: "token-abc"})
	require.NoError(t, err)
	assert.Equal(t, "admin-9", out.ActorID)
	actors.AssertExpectations(t)
}

func TestHandler_Execute_ActorResolutionFails(t *testing.T) {
	actors := &MockActorResolver{}
	actors.On("ResolveActor", mock.Anything, "expired").Return("", stderrors.New("token is not active"))
	ms := seeded(false)

	_, err := createTestHandler(t, ms, actors).
		Execute(context.Background(), &Input{UserID: "u-1", AccessToken: "expired"})
	var stdErr *errors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, errors.ErrCodeActorResolutionFailed, stdErr.Code)

	n, err := ms.Count(context.Background(), deletion.CoreTable, store.Eq("id", "u-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "nothing deleted without an actor")
}

func TestHandler_Execute_ErrorMapping(t *testing.T) {
	t.Run("missing actor", func(t *testing.T) {
		_, err := createTestHandler(t, seeded(false), nil).Execute(context.Background(), &Input{UserID: "u-1"})
		var stdErr *errors.StandardError
		require.ErrorAs(t, err, &stdErr)
		assert.Equal(t, errors.ErrCodeValidation, stdErr.Code)
	})

	t.Run("second deletion is not found", func(t *testing.T) {
		h := createTestHandler(t, seeded(false), nil)
		_, err := h.Execute(context.Background(), &Input{UserID: "u-1", ActorID: "admin-7"})
		require.NoError(t, err)

		_, err = h.Execute(context.Background(), &Input{UserID: "u-1", ActorID: "admin-7"})
		var stdErr *errors.StandardError
		require.ErrorAs(t, err, &stdErr)
		assert.Equal(t, errors.ErrCodeRecordNotFound, stdErr.Code)
	})

	t.Run("constraint", func(t *testing.T) {
		_, err := createTestHandler(t, seeded(true), nil).
			Execute(context.Background(), &Input{UserID: "u-1", ActorID: "admin-7"})
		var stdErr *errors.StandardError
		require.ErrorAs(t, err, &stdErr)
		assert.Equal(t, errors.ErrCodeConstraintViolation, stdErr.Code)
		assert.Equal(t, "user_banking_info", stdErr.Metadata["table"])
		assert.Contains(t, stdErr.Details, "ON DELETE CASCADE")
		assert.Equal(t, 0, errors.ConvertToBPMNError(stdErr).Retries)
	})

	t.Run("verification", func(t *testing.T) {
		ms := seeded(false)
		ms.SetPhantomDelete(deletion.CoreTable, true)
		_, err := createTestHandler(t, ms, nil).
			Execute(context.Background(), &Input{UserID: "u-1", ActorID: "admin-7"})
		var stdErr *errors.StandardError
		require.ErrorAs(t, err, &stdErr)
		assert.Equal(t, errors.ErrCodeVerificationFailed, stdErr.Code)
	})

	t.Run("store failure is retryable", func(t *testing.T) {
		ms := seeded(false)
		ms.FailOn("delete", deletion.CoreTable, stderrors.New("connection reset by peer"))
		_, err := createTestHandler(t, ms, nil).
			Execute(context.Background(), &Input{UserID: "u-1", ActorID: "admin-7"})
		var stdErr *errors.StandardError
		require.ErrorAs(t, err, &stdErr)
		assert.Equal(t, errors.ErrCodeStoreOperationFailed, stdErr.Code)
		assert.True(t, stdErr.Retryable)
	})

	t.Run("unverifiable delete is thrown", func(t *testing.T) {
		ms := seeded(false)
		ms.FailOn("delete", deletion.CoreTable, stderrors.New("connection reset by peer"))
		ms.FailOn("count", deletion.CoreTable, stderrors.New("connection refused"))
		_, err := createTestHandler(t, ms, nil).
			Execute(context.Background(), &Input{UserID: "u-1", ActorID: "admin-7"})
		var stdErr *errors.StandardError
		require.ErrorAs(t, err, &stdErr)
		assert.Equal(t, errors.ErrCodeDeletionUnverified, stdErr.Code)
		assert.False(t, stdErr.Retryable)
		assert.True(t, errors.Decide(stdErr, 3).Throw)
	})
}

func TestParseInput_RequiresActorOrToken(t *testing.T) {
	job := func(vars map[string]interface{}) entities.Job {
		raw, _ := json.Marshal(vars)
		return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1, Type: TaskType, Variables: string(raw)}}
	}

	input, err := parseInput(job(map[string]interface{}{"userId": "u-1", "actorId": "admin-7"}))
	require.NoError(t, err)
	assert.Equal(t, "admin-7", input.ActorID)

	_, err = parseInput(job(map[string]interface{}{"userId": "u-1", "accessToken": "t"}))
	require.NoError(t, err)

	_, err = parseInput(job(map[string]interface{}{"userId": "u-1"}))
	var stdErr *errors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, errors.ErrCodeInvalidJobVariables, stdErr.Code)
}
