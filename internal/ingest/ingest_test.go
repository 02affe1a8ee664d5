package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-bench/internal/ingest"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.PDF"))
	touch(t, filepath.Join(root, "a.png"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, ".hidden.pdf"))
	touch(t, filepath.Join(root, ".cache", "c.pdf"))
	touch(t, filepath.Join(root, "sub", "d.jpeg"))

	tests := []struct {
		name       string
		skipHidden bool
		wantStems  []string
	}{
		{name: "skip hidden", skipHidden: true, wantStems: []string{"a", "b", "d"}},
		{name: "include hidden", skipHidden: false, wantStems: []string{"c", ".hidden", "a", "b", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, stats, err := ingest.ScanDirectory(context.Background(), root, ingest.ScanOptions{SkipHidden: tt.skipHidden}, nil)
			require.NoError(t, err)
			var stems []string
			for _, d := range docs {
				stems = append(stems, d.Stem)
			}
			assert.Equal(t, tt.wantStems, stems)
			assert.Equal(t, uint32(len(tt.wantStems)), stats.Matched)
		})
	}
}

func TestScanDirectoryCustomMatch(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "inv-1.json"))
	touch(t, filepath.Join(root, "inv-1.pdf"))

	docs, _, err := ingest.ScanDirectory(context.Background(), root, ingest.ScanOptions{Match: ingest.IsReferenceExt}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "json", docs[0].Ext)
	assert.Equal(t, "inv-1", docs[0].Stem)
}

func TestScanDirectoryErrors(t *testing.T) {
	_, _, err := ingest.ScanDirectory(context.Background(), "", ingest.ScanOptions{}, nil)
	assert.Error(t, err)

	_, _, err = ingest.ScanDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"), ingest.ScanOptions{}, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = ingest.ScanDirectory(ctx, t.TempDir(), ingest.ScanOptions{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStem(t *testing.T) {
	assert.Equal(t, "invoice-7", ingest.Stem("/docs/a/invoice-7.pdf"))
	assert.Equal(t, "archive.tar", ingest.Stem("archive.tar.gz"))
	assert.True(t, ingest.IsHidden("/x/.git"))
}

func TestStartWatcherBatchesChanges(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:      []string{root},
		SkipHidden: true,
		Debounce:   50 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "inv-1.pdf"))
	touch(t, filepath.Join(root, "inv-1.json"))

	seen := map[string]bool{}
	deadline := time.After(5 * time.Second)
	for !(seen["inv-1.pdf"] && seen["inv-1.json"]) {
		select {
		case batch := <-events:
			for _, p := range batch {
				seen[filepath.Base(p)] = true
			}
		case <-deadline:
			t.Fatalf("no watcher events, saw %v", seen)
		}
	}
	assert.False(t, seen["notes.txt"])

	cancel()
	for range events {
	}
}

func TestStartWatcherRequiresRoots(t *testing.T) {
	_, _, err := ingest.StartWatcher(context.Background(), ingest.WatchConfig{}, nil)
	assert.Error(t, err)
}
