package repository

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/entity"
	"github.com/joseph-ayodele/doc-intake/internal/fields"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	drv, err := OpenSQLite(":memory:", logger)
	require.NoError(t, err)
	s, err := NewSQLStore(context.Background(), drv, nil, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func aadharDoc(owner string, at time.Time) *entity.Document {
	return &entity.Document{
		OwnerID:      owner,
		Title:        "Aadhar - Mar 5, 2024",
		DocumentType: "Aadhar",
		Fields: fields.ExtractedFields{
			FullName:    "Ravi Kumar",
			DateOfBirth: "1988-03-05",
			IDNumber:    "1234 5678 9012",
			Gender:      "Male",
			Address:     "12 MG Road, Bangalore",
		},
		OriginalText: "Name: Ravi Kumar",
		ContentHash:  "abc",
		CreatedAt:    at,
	}
}

func TestSQLStore_SaveGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := aadharDoc("user-1", time.Time{})
	doc.Extra = map[string]string{"fatherName": "Suresh Kumar"}
	id, err := s.Save(ctx, doc)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, id, doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())

	got, err := s.Get(ctx, "user-1", id)
	require.NoError(t, err)
	assert.Equal(t, doc.Fields, got.Fields)
	assert.Equal(t, "Aadhar", got.DocumentType)
	assert.Equal(t, map[string]string{"fatherName": "Suresh Kumar"}, got.Extra)
	assert.True(t, doc.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, got.UpdatedAt.Equal(got.CreatedAt))
}

func TestSQLStore_OwnerIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Save(ctx, aadharDoc("user-1", time.Time{}))
	require.NoError(t, err)

	_, err = s.Get(ctx, "user-2", id)
	assert.ErrorIs(t, err, common.ErrNotFound)

	docs, err := s.List(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, docs)

	assert.ErrorIs(t, s.Delete(ctx, "user-2", id), common.ErrNotFound)
	_, err = s.Update(ctx, "user-2", id, entity.DocumentPatch{Title: ptr("x")})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = s.Get(ctx, "user-1", id)
	assert.NoError(t, err)
}

func TestSQLStore_ListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	for i, title := range []string{"first", "second", "third"} {
		d := aadharDoc("user-1", base.Add(time.Duration(i)*time.Minute))
		d.Title = title
		_, err := s.Save(ctx, d)
		require.NoError(t, err)
	}

	docs, err := s.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "third", docs[0].Title)
	assert.Equal(t, "first", docs[2].Title)
}

func TestSQLStore_Update(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	doc := aadharDoc("user-1", created)
	doc.Extra = map[string]string{"fatherName": "Suresh", "village": "Hosur"}
	id, err := s.Save(ctx, doc)
	require.NoError(t, err)

	edited := doc.Fields
	edited.Gender = "Other"
	s.now = func() time.Time { return created.Add(time.Hour) }

	got, err := s.Update(ctx, "user-1", id, entity.DocumentPatch{
		Fields: &edited,
		Extra:  map[string]string{"village": "", "pin": "560001"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Other", got.Fields.Gender)
	assert.Equal(t, map[string]string{"fatherName": "Suresh", "pin": "560001"}, got.Extra)
	assert.True(t, got.UpdatedAt.Equal(created.Add(time.Hour)))

	reloaded, err := s.Get(ctx, "user-1", id)
	require.NoError(t, err)
	assert.Equal(t, got.Fields, reloaded.Fields)
	assert.Equal(t, got.Extra, reloaded.Extra)
	assert.True(t, reloaded.CreatedAt.Equal(created))
}

func TestSQLStore_SchemaValidators(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bad := aadharDoc("user-1", time.Time{})
	bad.DocumentType = "Receipt"
	_, err := s.Save(ctx, bad)
	assert.ErrorIs(t, err, common.ErrValidation)

	bad = aadharDoc("", time.Time{})
	_, err = s.Save(ctx, bad)
	assert.ErrorIs(t, err, common.ErrValidation)

	bad = aadharDoc("user-1", time.Time{})
	bad.Fields.DateOfBirth = "05/03/1988"
	_, err = s.Save(ctx, bad)
	assert.ErrorIs(t, err, common.ErrValidation)

	bad = aadharDoc("user-1", time.Time{})
	bad.Fields.IDNumber = "123456789012"
	_, err = s.Save(ctx, bad)
	assert.ErrorIs(t, err, common.ErrValidation)

	id, err := s.Save(ctx, aadharDoc("user-1", time.Time{}))
	require.NoError(t, err)
	_, err = s.Update(ctx, "user-1", id, entity.DocumentPatch{DocumentType: ptr("Receipt")})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSQLStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Save(ctx, aadharDoc("user-1", time.Time{}))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "user-1", id))

	_, err = s.Get(ctx, "user-1", id)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "user-1", id), common.ErrNotFound)
}

func TestSQLStore_FindByContentHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Save(ctx, aadharDoc("user-1", time.Time{}))
	require.NoError(t, err)

	got, err := s.FindByContentHash(ctx, "user-1", "abc")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)

	_, err = s.FindByContentHash(ctx, "user-2", "abc")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLStore_Ping(t *testing.T) {
	assert.NoError(t, newTestStore(t).Ping(context.Background()))
}

func TestSQLStore_DDLPerDialect(t *testing.T) {
	stmts := (&SQLStore{drv: mustDriver(t, dialect.Postgres), columns: documentColumns()}).ddl()
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], `CREATE TABLE IF NOT EXISTS "documents"`)
	assert.Contains(t, stmts[0], `"created_at" bigint NOT NULL`)
	assert.Contains(t, stmts[0], `"extra" text,`)
	assert.Contains(t, stmts[0], `PRIMARY KEY ("id")`)
	assert.Equal(t, `CREATE INDEX IF NOT EXISTS "documents_owner_id_created_at" ON "documents"("owner_id", "created_at")`, stmts[1])

	lite := (&SQLStore{drv: mustDriver(t, dialect.SQLite), columns: documentColumns()}).ddl()
	assert.Contains(t, lite[0], "`created_at` integer NOT NULL")
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	_, err := OpenStore(context.Background(), common.StoreConfig{Backend: "mongo"}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestOpenStore_SQLite(t *testing.T) {
	s, err := OpenStore(context.Background(), common.StoreConfig{Backend: common.BackendSQLite, SQLitePath: ":memory:"}, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.Ping(context.Background()))
}

func TestDirBlobStore(t *testing.T) {
	ctx := context.Background()
	s := NewDirBlobStore(t.TempDir(), nil)
	key := BlobKey("user-1", "abc", "PDF")
	assert.Equal(t, "user-1/abc.pdf", key)

	require.NoError(t, s.Put(ctx, key, strings.NewReader("first")))
	require.NoError(t, s.Put(ctx, key, strings.NewReader("second")))

	rc, err := s.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "first", string(b))

	_, err = s.Get(ctx, "user-1/missing.pdf")
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, s.Put(ctx, "../escape", strings.NewReader("x")), common.ErrInvalidInput)
}

func TestFirestoreMapping(t *testing.T) {
	doc := aadharDoc("user-1", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	doc.Extra = map[string]string{"fatherName": "Suresh"}

	fd := toFirestore(doc)
	assert.Equal(t, "user-1", fd.UserID)
	assert.Equal(t, "1234 5678 9012", fd.AadharNumber)
	assert.True(t, fd.Timestamp.Equal(doc.CreatedAt))

	back := fromFirestore("doc-1", fd)
	assert.Equal(t, "doc-1", back.ID)
	assert.Equal(t, doc.Fields, back.Fields)
	assert.Equal(t, doc.Extra, back.Extra)

	ups := updates(back)
	paths := make([]string, len(ups))
	for i, u := range ups {
		paths[i] = u.Path
	}
	assert.NotContains(t, paths, "userId")
	assert.NotContains(t, paths, "timestamp")
	assert.Contains(t, paths, "aadharNumber")
}

func mustDriver(t *testing.T, name string) *entsql.Driver {
	t.Helper()
	return entsql.OpenDB(name, nil)
}

func ptr[T any](v T) *T { return &v }
