package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docproc/internal/common"
)

type stubIndex struct {
	known map[string]bool
	err   error
}

func (s stubIndex) ExistsByHash(_ context.Context, h string) (bool, error) {
	return s.known[h], s.err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func hashOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestIngestPath(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "lease.PDF")
	writeFile(t, p, "%PDF-1.4 lease")

	r, err := NewFSIngestor(nil, nil).IngestPath(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "pdf", r.FileExt)
	assert.Equal(t, hashOf("%PDF-1.4 lease"), r.HashHex)
	assert.EqualValues(t, len("%PDF-1.4 lease"), r.Size)
	assert.False(t, r.Deduplicated)
	assert.True(t, filepath.IsAbs(r.SourcePath))
}

func TestIngestPathErrors(t *testing.T) {
	dir := t.TempDir()
	ing := NewFSIngestor(nil, nil)

	writeFile(t, filepath.Join(dir, "notes.txt"), "hello")
	_, err := ing.IngestPath(context.Background(), filepath.Join(dir, "notes.txt"))
	assert.ErrorIs(t, err, common.ErrUnsupportedFormat)

	_, err = ing.IngestPath(context.Background(), filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestIngestPathUsesIndex(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "scan.png")
	writeFile(t, p, "png-bytes")

	r, err := NewFSIngestor(stubIndex{known: map[string]bool{hashOf("png-bytes"): true}}, nil).IngestPath(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, r.Deduplicated)

	_, err = NewFSIngestor(stubIndex{err: errors.New("db down")}, nil).IngestPath(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestIngestDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), "same")
	writeFile(t, filepath.Join(root, "sub", "b.jpg"), "same")
	writeFile(t, filepath.Join(root, "sub", "c.png"), "other")
	writeFile(t, filepath.Join(root, "readme.md"), "skip me")
	writeFile(t, filepath.Join(root, ".cache", "d.png"), "hidden")
	writeFile(t, filepath.Join(root, ".e.png"), "hidden too")

	ing := NewFSIngestor(nil, nil)
	results, stats, err := ing.IngestDirectory(context.Background(), root, true)
	require.NoError(t, err)

	assert.EqualValues(t, 3, stats.Matched)
	assert.EqualValues(t, 3, stats.Succeeded)
	assert.EqualValues(t, 1, stats.Deduplicated)
	assert.EqualValues(t, 0, stats.Failed)
	require.Len(t, results, 3)
	// WalkDir is lexical: a.pdf comes before sub/b.jpg
	assert.False(t, results[0].Deduplicated)
	assert.True(t, results[1].Deduplicated)

	// a second pass over the same paths does not flag them as duplicates of themselves
	_, stats, err = ing.IngestDirectory(context.Background(), root, false)
	require.NoError(t, err)
	assert.EqualValues(t, 5, stats.Matched)
	assert.EqualValues(t, 1, stats.Deduplicated)
}

func TestIngestDirectoryRequiresRoot(t *testing.T) {
	_, _, err := NewFSIngestor(nil, nil).IngestDirectory(context.Background(), "  ", false)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/x/.git"))
	assert.False(t, IsHidden("/x/git"))
	assert.False(t, IsHidden("."))
}

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
		return ""
	}
}

func TestWatch(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "existing.pdf")
	writeFile(t, existing, "%PDF")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := Watch(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond}, nil)
	require.NoError(t, err)
	assert.Equal(t, existing, receive(t, events))

	writeFile(t, filepath.Join(root, "ignored.txt"), "x")
	created := filepath.Join(root, "new.png")
	writeFile(t, created, "png")
	assert.Equal(t, created, receive(t, events))

	cancel()
	for range events {
	}
}

func TestWatchRequiresRoots(t *testing.T) {
	_, _, err := Watch(context.Background(), WatchConfig{}, nil)
	require.Error(t, err)
}
