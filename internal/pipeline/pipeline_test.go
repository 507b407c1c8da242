package pipeline

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/doc-ingest-pipeline/internal/config"
)

func runnerConfig(docs string) *config.Config {
	cfg := config.Default()
	cfg.Documents.Path = docs
	cfg.Source.Destination = docs
	cfg.Ingest.RunTag = "run-e2e"
	cfg.Ingest.RequestTimeout = time.Second
	return &cfg
}

func TestRunnerLocalEndToEnd(t *testing.T) {
	docs := writeTree(t, map[string]string{"a.md": "a", "b.txt": "b", "skip.pdf": "p"})
	counter := &fakeCounter{counts: StoreCounts{Documents: 2, Chunks: 6}}
	artifacts := &memArtifacts{}
	var metricsOut bytes.Buffer

	r := &Runner{
		Config:    runnerConfig(docs),
		Ingester:  &fakeIngester{defaultChunks: 3},
		Counter:   counter,
		Artifacts: artifacts,
		Metrics:   &metricsOut,
	}
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, res.Downloaded)
	assert.Len(t, res.Manifest, 2)
	assert.Equal(t, 2, res.Summary.Succeeded)
	assert.Equal(t, 6, res.Summary.Chunks)
	require.NotNil(t, res.Verification)
	assert.True(t, res.Verification.Verified)
	assert.Equal(t, []string{"run-e2e"}, counter.tags)

	assert.Equal(t, []string{ManifestArtifact, OutcomesArtifact, SummaryArtifact, VerificationArtifact}, artifacts.names)
	assert.Contains(t, metricsOut.String(), `"DocumentsSucceeded":2`)
	assert.Contains(t, metricsOut.String(), `"RunVerified":1`)
}

func TestRunnerDownloadsBeforeDiscovery(t *testing.T) {
	dest := t.TempDir()
	cfg := runnerConfig(dest)
	cfg.Source = enabledSource(dest)
	cfg.Verify.Enabled = false

	ing := &fakeIngester{defaultChunks: 1}
	r := &Runner{
		Config:     cfg,
		Downloader: &fakeDownloader{files: map[string]string{"remote/one.md": "1", "remote/two.html": "2"}},
		Ingester:   ing,
	}
	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Downloaded)
	assert.Equal(t, []string{"remote/one.md", "remote/two.html"}, relPaths(res.Manifest))
	assert.Nil(t, res.Verification)
}

func TestRunnerSourceFailureStopsRun(t *testing.T) {
	dest := t.TempDir()
	cfg := runnerConfig(dest)
	cfg.Source = enabledSource(dest)

	ing := &fakeIngester{}
	r := &Runner{
		Config:     cfg,
		Downloader: &fakeDownloader{err: errors.New("NoSuchBucket")},
		Ingester:   ing,
		Counter:    &fakeCounter{},
	}
	res, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.Nil(t, res.Manifest)
	assert.Empty(t, ing.calls())
}

func TestRunnerMissingDocumentsDir(t *testing.T) {
	cfg := runnerConfig(t.TempDir() + "/absent")
	r := &Runner{Config: cfg, Ingester: &fakeIngester{}}
	_, err := r.Run(context.Background())
	assert.Error(t, err)
}

func TestRunnerStoreFailureKeepsOutcomes(t *testing.T) {
	docs := writeTree(t, map[string]string{"a.md": "a"})
	r := &Runner{
		Config:   runnerConfig(docs),
		Ingester: &fakeIngester{defaultChunks: 2},
		Counter:  &fakeCounter{err: errors.New("timeout")},
	}
	res, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.Len(t, res.Outcomes, 1)
	assert.Equal(t, 1, res.Summary.Succeeded)
	assert.Nil(t, res.Verification)
}

func TestRunnerFailedVerificationIsNotAnError(t *testing.T) {
	docs := writeTree(t, map[string]string{"a.md": "a", "b.md": "b"})
	r := &Runner{
		Config:   runnerConfig(docs),
		Ingester: &fakeIngester{defaultChunks: 5},
		Counter:  &fakeCounter{counts: StoreCounts{Documents: 1, Chunks: 5}},
	}
	res, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Verification)
	assert.False(t, res.Verification.Verified)
	assert.Equal(t, ConditionShort, res.Verification.Condition)
}
