package repository

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/entity"
	"github.com/joseph-ayodele/doc-intake/internal/fields"
)

// These tests run against the Firestore and Cloud Storage emulators:
//
//	gcloud emulators firestore start --host-port=localhost:8681
//	FIRESTORE_EMULATOR_HOST=localhost:8681 go test ./internal/repository/
//
//	docker run -p 4443:4443 fsouza/fake-gcs-server -scheme http
//	STORAGE_EMULATOR_HOST=http://localhost:4443 go test ./internal/repository/

func newEmulatorFirestore(t *testing.T) *FirestoreStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewFirestoreStore(context.Background(), "demo-doc-intake", "documents-"+uuid.NewString(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFirestoreStore_SaveGet(t *testing.T) {
	s := newEmulatorFirestore(t)
	ctx := context.Background()

	doc := aadharDoc("user-1", time.Date(2024, time.March, 5, 10, 30, 0, 0, time.UTC))
	doc.Extra = map[string]string{"fatherName": "Suresh Kumar"}
	id, err := s.Save(ctx, doc)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.Get(ctx, "user-1", id)
	require.NoError(t, err)
	assert.Equal(t, doc.Fields, got.Fields)
	assert.Equal(t, doc.Extra, got.Extra)
	assert.Equal(t, "abc", got.ContentHash)
	assert.True(t, doc.CreatedAt.Equal(got.CreatedAt))

	_, err = s.Get(ctx, "user-1", "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, s.Ping(ctx))
}

func TestFirestoreStore_OwnerIsolation(t *testing.T) {
	s := newEmulatorFirestore(t)
	ctx := context.Background()

	id, err := s.Save(ctx, aadharDoc("user-1", time.Time{}))
	require.NoError(t, err)

	_, err = s.Get(ctx, "user-2", id)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = s.Update(ctx, "user-2", id, namePatch("Someone Else"))
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "user-2", id), common.ErrNotFound)

	docs, err := s.List(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = s.FindByContentHash(ctx, "user-2", "abc")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFirestoreStore_ListNewestFirst(t *testing.T) {
	s := newEmulatorFirestore(t)
	ctx := context.Background()
	base := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

	for i, title := range []string{"first", "third", "second"} {
		offset := []time.Duration{0, 2 * time.Hour, time.Hour}[i]
		d := aadharDoc("user-1", base.Add(offset))
		d.Title = title
		_, err := s.Save(ctx, d)
		require.NoError(t, err)
	}
	_, err := s.Save(ctx, aadharDoc("user-2", base.Add(3*time.Hour)))
	require.NoError(t, err)

	docs, err := s.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "third", docs[0].Title)
	assert.Equal(t, "second", docs[1].Title)
	assert.Equal(t, "first", docs[2].Title)
}

func TestFirestoreStore_UpdateDelete(t *testing.T) {
	s := newEmulatorFirestore(t)
	ctx := context.Background()
	s.now = func() time.Time { return time.Date(2024, time.April, 1, 9, 0, 0, 0, time.UTC) }

	doc := aadharDoc("user-1", time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC))
	doc.Extra = map[string]string{"fatherName": "Suresh Kumar", "village": "Hebbal"}
	id, err := s.Save(ctx, doc)
	require.NoError(t, err)

	patch := namePatch("Ravi K")
	patch.Extra = map[string]string{"fatherName": ""}
	updated, err := s.Update(ctx, "user-1", id, patch)
	require.NoError(t, err)
	assert.Equal(t, "Ravi K", updated.Fields.FullName)
	assert.Equal(t, map[string]string{"village": "Hebbal"}, updated.Extra)

	got, err := s.Get(ctx, "user-1", id)
	require.NoError(t, err)
	assert.Equal(t, "Ravi K", got.Fields.FullName)
	assert.Equal(t, map[string]string{"village": "Hebbal"}, got.Extra)
	assert.True(t, got.UpdatedAt.Equal(s.now()))
	assert.True(t, got.CreatedAt.Equal(doc.CreatedAt))

	found, err := s.FindByContentHash(ctx, "user-1", "abc")
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)

	require.NoError(t, s.Delete(ctx, "user-1", id))
	_, err = s.Get(ctx, "user-1", id)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "user-1", id), common.ErrNotFound)
}

func TestGCSBlobStore_PutIsIdempotent(t *testing.T) {
	if os.Getenv("STORAGE_EMULATOR_HOST") == "" {
		t.Skip("STORAGE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := storage.NewClient(ctx, option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	bucket := client.Bucket("doc-intake-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	require.NoError(t, bucket.Create(ctx, "demo-doc-intake", nil))

	s := NewGCSBlobStore(bucket, slog.New(slog.NewTextHandler(io.Discard, nil)))
	key := BlobKey("user-1", strings.Repeat("ab", 32), "PNG")

	require.NoError(t, s.Put(ctx, key, bytes.NewReader([]byte("original"))))
	require.NoError(t, s.Put(ctx, key, bytes.NewReader([]byte("replacement"))), "an existing key is already stored")

	rc, err := s.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "original", string(b))

	_, err = s.Get(ctx, "user-1/missing.png")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func namePatch(name string) entity.DocumentPatch {
	f := fields.ExtractedFields{
		FullName:    name,
		DateOfBirth: "1988-03-05",
		IDNumber:    "1234 5678 9012",
		Gender:      "Male",
		Address:     "12 MG Road, Bangalore",
	}
	return entity.DocumentPatch{Fields: &f}
}
