package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/doc-ingest-pipeline/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(config.NewViper(), "")
	require.NoError(t, err)

	assert.False(t, cfg.Source.Enabled)
	assert.Equal(t, "/tmp/documents", cfg.Documents.Path)
	assert.Equal(t, cfg.Documents.Path, cfg.Source.Destination)
	assert.Equal(t, []string{".md", ".txt", ".html"}, cfg.Documents.Extensions)
	assert.Equal(t, 10, cfg.Ingest.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Ingest.RequestTimeout)
	assert.Equal(t, 1, cfg.Ingest.Concurrency)
	assert.True(t, strings.HasPrefix(cfg.Ingest.RunTag, "run-"), "generated run tag %q", cfg.Ingest.RunTag)
	assert.Equal(t, config.BackendPostgres, cfg.Store.Backend)
	assert.True(t, cfg.Verify.Enabled)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[documents]
path = "/data/kb"
extensions = ["MD", "pdf", ".md"]

[ingest]
batch_size = 4
request_timeout = "45s"
run_tag = "nightly"

[service]
url = "http://ingest.local:8000/"
`)
	t.Setenv("DOCINGEST_INGEST_BATCH_SIZE", "7")

	cfg, err := config.Load(config.NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, "/data/kb", cfg.Documents.Path)
	assert.Equal(t, []string{".md", ".pdf"}, cfg.Documents.Extensions)
	assert.Equal(t, 7, cfg.Ingest.BatchSize, "environment beats config file")
	assert.Equal(t, 45*time.Second, cfg.Ingest.RequestTimeout)
	assert.Equal(t, "nightly", cfg.Ingest.RunTag)
	assert.Equal(t, "http://ingest.local:8000", cfg.Service.URL)
}

func TestLoadRejectsUnknownOption(t *testing.T) {
	path := writeConfig(t, `
[ingest]
batch_size = 4
resume = true
`)
	_, err := config.Load(config.NewViper(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
	assert.Contains(t, err.Error(), "resume")
}

func TestLoadRejectsMalformedValue(t *testing.T) {
	t.Setenv("DOCINGEST_INGEST_REQUEST_TIMEOUT", "soon")
	_, err := config.Load(config.NewViper(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := config.Default()
	cfg.Source.Enabled = true
	cfg.Ingest.BatchSize = 0
	cfg.Ingest.RequestTimeout = 0
	cfg.Store.Table = "chunks; drop table x"
	cfg.Normalize()

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
	for _, want := range []string{"source.bucket", "source.access_key", "source.secret_key", "ingest.batch_size", "ingest.request_timeout", "store.table"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateSkipsStoreWhenVerifyDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Verify.Enabled = false
	cfg.Store.Backend = "mongo"
	cfg.Normalize()
	assert.NoError(t, cfg.Validate())
}

func TestValidateDataAPIBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = "DataAPI"
	cfg.Normalize()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.cluster_arn")

	cfg.Store.ClusterARN = "arn:aws:rds:us-east-1:123456789012:cluster:rag"
	cfg.Store.SecretARN = "arn:aws:secretsmanager:us-east-1:123456789012:secret:rag"
	assert.NoError(t, cfg.Validate())
}

func TestNormalizeExtensions(t *testing.T) {
	got := config.NormalizeExtensions([]string{" .TXT", "md", "", ".", ".txt", "Html"})
	assert.Equal(t, []string{".txt", ".md", ".html"}, got)
}
