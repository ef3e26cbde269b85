package memstore

import (
	"context"
	"errors"
	"testing"

	"eduprima/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(onDelete OnDelete, opts ...Option) *Store {
	opts = append([]Option{
		WithForeignKey(ForeignKey{Child: "user_profiles", Column: "user_id", Parent: "users", OnDelete: Cascade, Label: "Profile"}),
		WithForeignKey(ForeignKey{Child: "user_documents", Column: "user_id", Parent: "users", OnDelete: onDelete, Label: "Documents"}),
		WithForeignKey(ForeignKey{Child: "document_pages", Column: "document_id", Parent: "user_documents", OnDelete: Cascade}),
	}, opts...)
	s := New(opts...)
	s.Seed("users", store.Row{"id": "u-1", "email": "ada@example.com"}, store.Row{"id": "u-2", "email": "bo@example.com"})
	s.Seed("user_profiles", store.Row{"id": "p-1", "user_id": "u-1"})
	s.Seed("user_documents",
		store.Row{"id": "d-1", "user_id": "u-1"},
		store.Row{"id": "d-2", "user_id": "u-1"},
		store.Row{"id": "d-3", "user_id": "u-2"})
	s.Seed("document_pages", store.Row{"id": "pg-1", "document_id": "d-1"})
	return s
}

func TestDelete_Cascades(t *testing.T) {
	s := seeded(Cascade)
	ctx := context.Background()

	n, err := s.Delete(ctx, "users", store.Eq("id", "u-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	for table, want := range map[string]int64{"users": 1, "user_profiles": 0, "user_documents": 1, "document_pages": 0} {
		got, err := s.Count(ctx, table)
		require.NoError(t, err)
		assert.Equal(t, want, got, table)
	}
}

func TestDelete_RestrictAbortsWholeDelete(t *testing.T) {
	s := seeded(Restrict)
	ctx := context.Background()

	_, err := s.Delete(ctx, "users", store.Eq("id", "u-1"))
	var fk *store.ForeignKeyViolation
	require.ErrorAs(t, err, &fk)
	assert.Equal(t, "user_documents", fk.Table)
	assert.Equal(t, "user_documents_user_id_fkey", fk.Constraint)

	profiles, err := s.Count(ctx, "user_profiles", store.Eq("user_id", "u-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), profiles, "nothing removed on restrict")
}

func TestPreviewCascade(t *testing.T) {
	s := seeded(Cascade, WithAggregatePreview("users"))

	counts, err := s.PreviewCascade(context.Background(), "users", "u-1")
	require.NoError(t, err)
	assert.Equal(t, []store.CascadeCount{
		{Table: "user_profiles", Count: 1, DataType: "Profile"},
		{Table: "user_documents", Count: 2, DataType: "Documents"},
		{Table: "document_pages", Count: 1},
	}, counts)

	_, err = seeded(Cascade).PreviewCascade(context.Background(), "users", "u-1")
	assert.ErrorIs(t, err, store.ErrPreviewUnavailable)
}

func TestSelect_FiltersOrderLimit(t *testing.T) {
	s := New()
	s.Seed("tutors",
		store.Row{"id": "t-3", "name": "Citra", "rate": 90.0, "subjects": []string{"math"}},
		store.Row{"id": "t-1", "name": "Ana", "rate": 150.0, "subjects": []string{"physics", "math"}},
		store.Row{"id": "t-2", "name": "anastasia", "rate": 200.0, "subjects": []string{"art"}})
	ctx := context.Background()

	rows, err := s.Select(ctx, "tutors", []string{"id"}, store.SelectOptions{OrderBy: "id"}, store.ILike("name", "ana%"))
	require.NoError(t, err)
	assert.Equal(t, []store.Row{{"id": "t-1"}, {"id": "t-2"}}, rows)

	rows, err = s.Select(ctx, "tutors", nil, store.SelectOptions{OrderBy: "rate", Limit: 1}, store.Overlaps("subjects", []string{"math"}))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "t-3", rows[0]["id"])

	n, err := s.Count(ctx, "tutors", store.Gt("rate", 100), store.In("id", []string{"t-1", "t-9"}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Count(ctx, "tutors", store.Filter{Column: "id", Op: "regex"})
	assert.Error(t, err)
}

func TestInsertUpdate(t *testing.T) {
	s := seeded(Cascade)
	ctx := context.Background()

	err := s.Insert(ctx, "user_profiles", store.Row{"id": "p-9", "user_id": "u-404"})
	var fk *store.ForeignKeyViolation
	assert.ErrorAs(t, err, &fk)

	require.NoError(t, s.Insert(ctx, "user_profiles", store.Row{"id": "p-2", "user_id": "u-2"}))
	n, err := s.Update(ctx, "users", store.Row{"email": "new@example.com"}, store.Eq("id", "u-2"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := s.Select(ctx, "users", []string{"email"}, store.SelectOptions{}, store.Eq("id", "u-2"))
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", rows[0]["email"])
}

func TestFailureInjection(t *testing.T) {
	s := seeded(Cascade)
	ctx := context.Background()
	boom := errors.New("boom")

	s.FailOn("count", "user_documents", boom)
	_, err := s.Count(ctx, "user_documents")
	assert.ErrorIs(t, err, boom)
	s.FailOn("count", "user_documents", nil)
	_, err = s.Count(ctx, "user_documents")
	assert.NoError(t, err)

	s.SetPhantomDelete("users", true)
	n, err := s.Delete(ctx, "users", store.Eq("id", "u-2"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	left, _ := s.Count(ctx, "users", store.Eq("id", "u-2"))
	assert.Equal(t, int64(1), left)
}

func TestCheckSchema(t *testing.T) {
	s := New(WithTable("users", "id", "email"))
	assert.NoError(t, s.CheckSchema(context.Background(), store.Schema{"users": {"id"}}))

	var mismatch *store.SchemaMismatchError
	assert.ErrorAs(t, s.CheckSchema(context.Background(), store.Schema{"users": {"code"}}), &mismatch)
}

func TestUpdateDelete_RequireFilters(t *testing.T) {
	s := seeded(Cascade)
	ctx := context.Background()

	_, err := s.Delete(ctx, "users")
	assert.Error(t, err)
	_, err = s.Update(ctx, "users", store.Row{"email": "x@example.com"})
	assert.Error(t, err)

	n, err := s.Count(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	rows, err := s.Select(ctx, "users", []string{"email"}, store.SelectOptions{}, store.Eq("id", "u-1"))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", rows[0]["email"])
}

func TestEq_StringsCompareExactly(t *testing.T) {
	s := New()
	s.Seed("users", store.Row{"id": "1"}, store.Row{"id": "100"})
	ctx := context.Background()

	for _, id := range []string{"01", "1.0", "1e2"} {
		n, err := s.Count(ctx, "users", store.Eq("id", id))
		require.NoError(t, err)
		assert.Zero(t, n, id)
	}

	n, err := s.Count(ctx, "users", store.Eq("id", "100"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
