package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fpang/doc-ingest-pipeline/internal/ingestsvc"
)

// writeTree creates files (slash-separated relative path → content) under a
// fresh temp dir and returns its path.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

// fakeIngester answers by document RelPath. Unlisted documents succeed with
// defaultChunks.
type fakeIngester struct {
	mu            sync.Mutex
	defaultChunks int
	handlers      map[string]func(ctx context.Context, doc ingestsvc.Document) (ingestsvc.Receipt, error)
	seen          []ingestsvc.Document
}

func (f *fakeIngester) Ingest(ctx context.Context, doc ingestsvc.Document) (ingestsvc.Receipt, error) {
	f.mu.Lock()
	f.seen = append(f.seen, doc)
	h := f.handlers[doc.RelPath]
	f.mu.Unlock()
	if h != nil {
		return h(ctx, doc)
	}
	return ingestsvc.Receipt{DocumentID: "doc-" + doc.RelPath, ChunkCount: f.defaultChunks}, nil
}

func (f *fakeIngester) calls() []ingestsvc.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ingestsvc.Document(nil), f.seen...)
}

type fakeCounter struct {
	counts StoreCounts
	err    error
	tags   []string
}

func (f *fakeCounter) CountByTag(ctx context.Context, tag string) (StoreCounts, error) {
	f.tags = append(f.tags, tag)
	return f.counts, f.err
}

type fakeDownloader struct {
	files map[string]string
	err   error
	calls int
}

func (f *fakeDownloader) DownloadPrefix(ctx context.Context, bucket, prefix, dest string) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	for rel, content := range f.files {
		p := filepath.Join(dest, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return 0, err
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return 0, err
		}
	}
	return len(f.files), nil
}

// memArtifacts records artifact names in write order.
type memArtifacts struct {
	names  []string
	values map[string]any
}

func (m *memArtifacts) Write(name string, v any) error {
	if m.values == nil {
		m.values = map[string]any{}
	}
	m.names = append(m.names, name)
	m.values[name] = v
	return nil
}
