package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/doc-ingest-pipeline/internal/config"
	"github.com/fpang/doc-ingest-pipeline/internal/ingestsvc"
)

func ingestOpts() config.Ingest {
	return config.Ingest{
		BatchSize:      10,
		RequestTimeout: time.Second,
		Concurrency:    1,
		RunTag:         "run-test",
	}
}

func discoverAll(t *testing.T, files map[string]string) []ManifestEntry {
	t.Helper()
	manifest, err := Discover(writeTree(t, files), []string{".md", ".txt"})
	require.NoError(t, err)
	return manifest
}

func TestRunRecordsEveryOutcome(t *testing.T) {
	manifest := discoverAll(t, map[string]string{"1.md": "one", "2.md": "two", "3.md": "three"})
	ing := &fakeIngester{
		defaultChunks: 4,
		handlers: map[string]func(context.Context, ingestsvc.Document) (ingestsvc.Receipt, error){
			"2.md": func(context.Context, ingestsvc.Document) (ingestsvc.Receipt, error) {
				return ingestsvc.Receipt{}, &ingestsvc.StatusError{StatusCode: 500, Body: "boom"}
			},
		},
	}
	orch, err := NewOrchestrator(ing, ingestOpts())
	require.NoError(t, err)

	outcomes, summary, err := orch.Run(context.Background(), manifest)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, StatusSucceeded, outcomes[0].Status)
	assert.Equal(t, StatusFailed, outcomes[1].Status)
	assert.Contains(t, outcomes[1].Error, "HTTP 500")
	assert.Nil(t, outcomes[1].Chunks)
	assert.Equal(t, StatusSucceeded, outcomes[2].Status)

	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.TimedOut)
	assert.Equal(t, 8, summary.Chunks)
	assert.Equal(t, "run-test", summary.RunTag)
}

func TestRunTagsEveryDocument(t *testing.T) {
	manifest := discoverAll(t, map[string]string{"guide/intro.md": "hello"})
	ing := &fakeIngester{defaultChunks: 1}
	orch, err := NewOrchestrator(ing, ingestOpts())
	require.NoError(t, err)

	_, _, err = orch.Run(context.Background(), manifest)
	require.NoError(t, err)

	calls := ing.calls()
	require.Len(t, calls, 1)
	doc := calls[0]
	assert.Equal(t, "intro.md", doc.Name)
	assert.Equal(t, []byte("hello"), doc.Content)
	assert.Equal(t, "run-test", doc.Metadata[MetadataSource])
	assert.Equal(t, "guide/intro.md", doc.Metadata["file_path"])
	assert.Equal(t, ".md", doc.Metadata["extension"])
}

func TestRunClassifiesTimeout(t *testing.T) {
	manifest := discoverAll(t, map[string]string{"fast.md": "f", "slow.md": "s"})
	ing := &fakeIngester{
		defaultChunks: 2,
		handlers: map[string]func(context.Context, ingestsvc.Document) (ingestsvc.Receipt, error){
			"slow.md": func(ctx context.Context, _ ingestsvc.Document) (ingestsvc.Receipt, error) {
				<-ctx.Done()
				return ingestsvc.Receipt{}, ctx.Err()
			},
		},
	}
	opts := ingestOpts()
	opts.RequestTimeout = 20 * time.Millisecond
	orch, err := NewOrchestrator(ing, opts)
	require.NoError(t, err)

	outcomes, summary, err := orch.Run(context.Background(), manifest)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, StatusSucceeded, outcomes[0].Status)
	assert.Equal(t, StatusTimedOut, outcomes[1].Status)
	assert.Equal(t, 1, summary.TimedOut)
	assert.Equal(t, 0, summary.Failed)
}

func TestRunEmptyManifest(t *testing.T) {
	ing := &fakeIngester{}
	orch, err := NewOrchestrator(ing, ingestOpts())
	require.NoError(t, err)

	outcomes, summary, err := orch.Run(context.Background(), []ManifestEntry{})
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Zero(t, summary.Attempted)
	assert.Zero(t, summary.Succeeded)
	assert.Zero(t, summary.Chunks)
	assert.Empty(t, ing.calls())
}

func TestRunConcurrentPreservesOrder(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 12; i++ {
		files[fmt.Sprintf("doc%02d.md", i)] = "x"
	}
	manifest := discoverAll(t, files)

	var inFlight, peak atomic.Int32
	handlers := map[string]func(context.Context, ingestsvc.Document) (ingestsvc.Receipt, error){}
	for i, e := range manifest {
		delay := time.Duration(len(manifest)-i) * time.Millisecond
		handlers[e.RelPath] = func(ctx context.Context, d ingestsvc.Document) (ingestsvc.Receipt, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(delay)
			return ingestsvc.Receipt{DocumentID: d.RelPath, ChunkCount: 1}, nil
		}
	}
	ing := &fakeIngester{handlers: handlers}

	opts := ingestOpts()
	opts.BatchSize = 5
	opts.Concurrency = 4
	orch, err := NewOrchestrator(ing, opts)
	require.NoError(t, err)

	outcomes, summary, err := orch.Run(context.Background(), manifest)
	require.NoError(t, err)
	require.Len(t, outcomes, len(manifest))
	for i, o := range outcomes {
		assert.Equal(t, manifest[i].RelPath, o.Document.RelPath)
		assert.Equal(t, manifest[i].RelPath, o.DocumentID)
	}
	assert.Equal(t, 12, summary.Succeeded)
	assert.LessOrEqual(t, peak.Load(), int32(4))
}

func TestRunCancelledKeepsCompleted(t *testing.T) {
	manifest := discoverAll(t, map[string]string{"a.md": "a", "b.md": "b", "c.md": "c"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ing := &fakeIngester{
		defaultChunks: 1,
		handlers: map[string]func(context.Context, ingestsvc.Document) (ingestsvc.Receipt, error){
			"b.md": func(ctx context.Context, _ ingestsvc.Document) (ingestsvc.Receipt, error) {
				cancel()
				return ingestsvc.Receipt{}, ctx.Err()
			},
		},
	}
	opts := ingestOpts()
	opts.BatchSize = 1
	orch, err := NewOrchestrator(ing, opts)
	require.NoError(t, err)

	outcomes, summary, err := orch.Run(ctx, manifest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.Len(t, outcomes, 1)
	assert.Equal(t, "a.md", outcomes[0].Document.RelPath)
	assert.Equal(t, 1, summary.Attempted)
	assert.Len(t, ing.calls(), 2, "c.md must never be sent")
}

func TestRunUnreadableFileFails(t *testing.T) {
	manifest := discoverAll(t, map[string]string{"a.md": "a"})
	manifest = append(manifest, ManifestEntry{RelPath: "gone.md", AbsPath: "/nonexistent/gone.md", Ext: ".md"})

	ing := &fakeIngester{defaultChunks: 3}
	orch, err := NewOrchestrator(ing, ingestOpts())
	require.NoError(t, err)

	outcomes, summary, err := orch.Run(context.Background(), manifest)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, StatusFailed, outcomes[1].Status)
	assert.Contains(t, outcomes[1].Error, "read document")
	assert.Equal(t, 1, summary.Succeeded)
	assert.Len(t, ing.calls(), 1)
}

func TestRunNegativeChunksIsFailure(t *testing.T) {
	manifest := discoverAll(t, map[string]string{"a.md": "a"})
	ing := &fakeIngester{defaultChunks: -1}
	orch, err := NewOrchestrator(ing, ingestOpts())
	require.NoError(t, err)

	outcomes, summary, err := orch.Run(context.Background(), manifest)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, outcomes[0].Status)
	assert.Zero(t, summary.Chunks)
}

func TestRunZeroChunksIsSuccess(t *testing.T) {
	manifest := discoverAll(t, map[string]string{"empty.md": ""})
	orch, err := NewOrchestrator(&fakeIngester{defaultChunks: 0}, ingestOpts())
	require.NoError(t, err)

	outcomes, summary, err := orch.Run(context.Background(), manifest)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, outcomes[0].Status)
	require.NotNil(t, outcomes[0].Chunks)
	assert.Zero(t, *outcomes[0].Chunks)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestRunRecoversPanickingIngester(t *testing.T) {
	manifest := discoverAll(t, map[string]string{"a.md": "a", "b.md": "b"})
	ing := &fakeIngester{
		defaultChunks: 1,
		handlers: map[string]func(context.Context, ingestsvc.Document) (ingestsvc.Receipt, error){
			"a.md": func(context.Context, ingestsvc.Document) (ingestsvc.Receipt, error) { panic("bad state") },
		},
	}
	orch, err := NewOrchestrator(ing, ingestOpts())
	require.NoError(t, err)

	outcomes, _, err := orch.Run(context.Background(), manifest)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, StatusFailed, outcomes[0].Status)
	assert.Equal(t, StatusSucceeded, outcomes[1].Status)
}

func TestNewOrchestratorRejectsBadOptions(t *testing.T) {
	_, err := NewOrchestrator(nil, ingestOpts())
	assert.Error(t, err)

	opts := ingestOpts()
	opts.BatchSize = 0
	_, err = NewOrchestrator(&fakeIngester{}, opts)
	assert.Error(t, err)

	opts = ingestOpts()
	opts.RequestTimeout = 0
	_, err = NewOrchestrator(&fakeIngester{}, opts)
	assert.Error(t, err)
}

func TestRunRateLimited(t *testing.T) {
	manifest := discoverAll(t, map[string]string{"a.md": "a", "b.md": "b", "c.md": "c"})
	opts := ingestOpts()
	opts.RequestsPerSecond = 20
	orch, err := NewOrchestrator(&fakeIngester{defaultChunks: 1}, opts)
	require.NoError(t, err)

	_, summary, err := orch.Run(context.Background(), manifest)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Succeeded)
}

func TestSummarize(t *testing.T) {
	two, five := 2, 5
	s := Summarize("tag", time.Time{}, []Outcome{
		{Status: StatusSucceeded, Chunks: &two},
		{Status: StatusSucceeded, Chunks: &five},
		{Status: StatusFailed},
		{Status: StatusTimedOut},
	})
	assert.Equal(t, RunSummary{RunTag: "tag", StartedAt: time.Time{}.UTC(), Attempted: 4, Succeeded: 2, Failed: 1, TimedOut: 1, Chunks: 7}, s)
	assert.Equal(t, s.Attempted, s.Succeeded+s.Failed+s.TimedOut)
}
