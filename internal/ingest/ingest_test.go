package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/entity"
)

// minimalPDF builds a well-formed PDF with the given number of blank pages.
func minimalPDF(pages int) []byte {
	var objs []string
	kids := ""
	for p := 0; p < pages; p++ {
		kids += fmt.Sprintf("%d 0 R ", 3+p)
	}
	objs = append(objs, "<< /Type /Catalog /Pages 2 0 R >>")
	objs = append(objs, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages))
	for p := 0; p < pages; p++ {
		objs = append(objs, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func write(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

type fakeLookup map[string]string

func (f fakeLookup) FindByContentHash(_ context.Context, ownerID, hash string) (*entity.Document, error) {
	if id, ok := f[ownerID+"/"+hash]; ok {
		return &entity.Document{ID: id, OwnerID: ownerID, ContentHash: hash}, nil
	}
	return nil, common.ErrNotFound
}

func TestIngestPath_TextFile(t *testing.T) {
	content := []byte("Name: Ravi Kumar\nDOB: 05/03/1988\n")
	p := write(t, t.TempDir(), "card.TXT", content)

	res, err := NewFSIngestor(nil, nil).IngestPath(context.Background(), "user-1", p)
	require.NoError(t, err)

	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), res.HashHex)
	assert.Equal(t, "txt", res.FileExt)
	assert.Equal(t, "TXT", res.SourceType)
	assert.Equal(t, int64(len(content)), res.SizeBytes)
	assert.Zero(t, res.PageCount)
	assert.False(t, res.Deduplicated)
	assert.True(t, filepath.IsAbs(res.SourcePath))
}

func TestIngestPath_PDF(t *testing.T) {
	p := write(t, t.TempDir(), "scan.pdf", minimalPDF(2))

	res, err := NewFSIngestor(nil, nil).IngestPath(context.Background(), "user-1", p)
	require.NoError(t, err)
	assert.Equal(t, "PDF", res.SourceType)
	assert.Equal(t, 2, res.PageCount)
}

func TestIngestPath_Rejects(t *testing.T) {
	dir := t.TempDir()
	i := NewFSIngestor(nil, nil)
	i.MaxBytes = 16

	tests := []struct {
		name    string
		owner   string
		path    string
		wantErr error
	}{
		{"no owner", "", write(t, dir, "a.txt", []byte("x")), common.ErrValidation},
		{"extension", "user-1", write(t, dir, "a.docx", []byte("x")), common.ErrInvalidInput},
		{"no extension", "user-1", write(t, dir, "README", []byte("x")), common.ErrInvalidInput},
		{"empty", "user-1", write(t, dir, "empty.png", nil), common.ErrInvalidInput},
		{"too large", "user-1", write(t, dir, "big.jpg", bytes.Repeat([]byte("x"), 17)), common.ErrInvalidInput},
		{"broken pdf", "user-1", write(t, dir, "broken.pdf", []byte("not a pdf")), common.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := i.IngestPath(context.Background(), tt.owner, tt.path)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := i.IngestPath(context.Background(), "user-1", filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIngestPath_Dedup(t *testing.T) {
	content := []byte("png-bytes")
	p := write(t, t.TempDir(), "card.png", content)
	sum := sha256.Sum256(content)
	lookup := fakeLookup{"user-1/" + hex.EncodeToString(sum[:]): "doc-7"}

	i := NewFSIngestor(lookup, nil)
	res, err := i.IngestPath(context.Background(), "user-1", p)
	require.NoError(t, err)
	assert.True(t, res.Deduplicated)
	assert.Equal(t, "doc-7", res.ExistingID)

	res, err = i.IngestPath(context.Background(), "user-2", p)
	require.NoError(t, err)
	assert.False(t, res.Deduplicated)
}

func TestIngestDirectory(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.png", []byte("a"))
	write(t, root, "nested/b.txt", []byte("b"))
	write(t, root, "nested/notes.md", []byte("skip"))
	write(t, root, ".hidden/c.png", []byte("c"))
	write(t, root, ".d.png", []byte("d"))
	write(t, root, "broken.pdf", []byte("not a pdf"))

	results, stats, err := NewFSIngestor(nil, nil).IngestDirectory(context.Background(), "user-1", root, true)
	require.NoError(t, err)

	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(2), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Failed)
	require.Len(t, results, 3)

	var failed []string
	for _, r := range results {
		if r.Err != "" {
			failed = append(failed, filepath.Base(r.SourcePath))
		}
	}
	assert.Equal(t, []string{"broken.pdf"}, failed)

	_, stats, err = NewFSIngestor(nil, nil).IngestDirectory(context.Background(), "user-1", root, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), stats.Matched)
}

func TestIngestDirectory_RequiresRoot(t *testing.T) {
	_, _, err := NewFSIngestor(nil, nil).IngestDirectory(context.Background(), "user-1", "  ", false)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/a/.git"))
	assert.False(t, IsHidden("."))
	assert.False(t, IsHidden("/a/b.png"))
}

func TestCandidate(t *testing.T) {
	tests := []struct {
		path       string
		skipHidden bool
		want       bool
	}{
		{"/in/card.png", true, true},
		{"/in/scan.PDF", true, true},
		{"/in/.card.png", true, false},
		{"/in/.card.png", false, true},
		{"/in/notes.docx", false, false},
		{"/in/~$card.png", false, false},
		{"/in/card.png.part", false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Candidate(tt.path, tt.skipHidden), tt.path)
	}
}

func TestWithinRoots(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(other, "secret.txt"), []byte("x"), 0o600))
	require.NoError(t, os.Symlink(filepath.Join(other, "secret.txt"), filepath.Join(root, "link.txt")))

	roots := []string{"", root}
	assert.True(t, WithinRoots(filepath.Join(root, "sub", "card.png"), roots))
	assert.True(t, WithinRoots(filepath.Join(root, "missing.png"), roots))
	assert.True(t, WithinRoots(root, roots))
	assert.False(t, WithinRoots(filepath.Join(root, "..", filepath.Base(other), "secret.txt"), roots))
	assert.False(t, WithinRoots(filepath.Join(other, "secret.txt"), roots))
	assert.False(t, WithinRoots(filepath.Join(root, "link.txt"), roots))
	assert.False(t, WithinRoots("/etc/passwd", nil))
}

func recv(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher event")
		return ""
	}
}

func TestStartWatcher(t *testing.T) {
	root := t.TempDir()
	existing := write(t, root, "old.png", []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		SkipHidden:  true,
		InitialScan: true,
		Debounce:    50 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, existing, recv(t, events))

	write(t, root, "notes.md", []byte("ignored"))
	created := write(t, root, "new.jpg", []byte("y"))
	assert.Equal(t, created, recv(t, events))

	cancel()
	for range events {
	}
}

func TestStartWatcher_NoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}
