package previewuserdeletion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"eduprima/internal/common/errors"
	"eduprima/internal/common/logger"
	"eduprima/internal/deletion"
	"eduprima/internal/store"
	"eduprima/internal/store/memstore"
)

func createTestHandler(t *testing.T, ms *memstore.Store) *Handler {
	log := logger.NewZapAdapter(zaptest.NewLogger(t))
	orch := deletion.NewOrchestrator(ms, deletion.WithLogger(log))
	return NewHandler(&Config{Timeout: 5 * time.Second}, orch, nil, log)
}

func seeded(aggregate bool) *memstore.Store {
	opts := []memstore.Option{}
	for _, dt := range deletion.DependentTables {
		opts = append(opts, memstore.WithForeignKey(memstore.ForeignKey{
			Name: "fk_" + dt.Table, Child: dt.Table, Column: dt.Column,
			Parent: deletion.CoreTable, ParentColumn: "id", OnDelete: memstore.Cascade, Label: dt.Label,
		}))
	}
	if aggregate {
		opts = append(opts, memstore.WithAggregatePreview(deletion.CoreTable))
	}
	ms := memstore.New(opts...)
	ms.Seed(deletion.CoreTable, store.Row{"id": "u-1", "email": "ada@example.com", "user_code": "TUT-001"})
	ms.Seed("user_addresses", store.Row{"id": "a-1", "user_id": "u-1"}, store.Row{"id": "a-2", "user_id": "u-1"})
	ms.Seed("tutor_details", store.Row{"id": "td-1", "user_id": "u-1"})
	return ms
}

func TestHandler_Execute(t *testing.T) {
	out, err := createTestHandler(t, seeded(true)).Execute(context.Background(), &Input{UserID: "u-1"})
	require.NoError(t, err)

	assert.Equal(t, "u-1", out.UserID)
	assert.Equal(t, int64(3), out.TotalRows)
	assert.Equal(t, "authoritative", out.Source)
	assert.False(t, out.Degraded)
	require.Len(t, out.Entries, 2)
	assert.Equal(t, "user_addresses", out.Entries[0].Table)
	assert.Equal(t, "tutor_details", out.Entries[1].Table)
}

func TestHandler_Execute_ManualPreviewIsFlagged(t *testing.T) {
	out, err := createTestHandler(t, seeded(false)).Execute(context.Background(), &Input{UserID: "u-1"})
	require.NoError(t, err)
	assert.Equal(t, "manual", out.Source)
	assert.True(t, out.Degraded)
	assert.NotEmpty(t, out.Warning)
}

func TestHandler_Execute_NoDependents(t *testing.T) {
	ms := seeded(true)
	ms.Seed(deletion.CoreTable, store.Row{"id": "u-2", "email": "ben@example.com"})

	out, err := createTestHandler(t, ms).Execute(context.Background(), &Input{UserID: "u-2"})
	require.NoError(t, err)
	assert.NotNil(t, out.Entries)
	assert.Empty(t, out.Entries)
}

func TestHandler_Execute_NotFound(t *testing.T) {
	_, err := createTestHandler(t, seeded(true)).Execute(context.Background(), &Input{UserID: "u-404"})

	var stdErr *errors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, errors.ErrCodeRecordNotFound, stdErr.Code)
	assert.False(t, stdErr.Retryable)
	assert.Equal(t, "u-404", stdErr.Metadata["recordId"])
}
