package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fpang/doc-ingest-pipeline/internal/pipeline"
	"github.com/fpang/doc-ingest-pipeline/internal/s3util"
)

func TestFormatDurationShort(t *testing.T) {
	assert.Equal(t, "250ms", FormatDurationShort(250*time.Millisecond))
	assert.Equal(t, "0:05", FormatDurationShort(5*time.Second))
	assert.Equal(t, "2:03", FormatDurationShort(123*time.Second))
	assert.Equal(t, "1:00:01", FormatDurationShort(time.Hour+time.Second))
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, pipeline.RunSummary{
		RunTag: "run-1", Attempted: 76, Succeeded: 75, Failed: 1, Chunks: 380, Elapsed: 2 * time.Second,
	})
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "╭"))
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "380")
	assert.Contains(t, out, "0:02")
}

func TestWriteVerification(t *testing.T) {
	var buf bytes.Buffer
	WriteVerification(&buf, pipeline.VerificationReport{
		ExpectedDocuments: 76, ActualDocuments: 70, DocumentDelta: -6,
		ExpectedChunks: 380, ActualChunks: 350, ChunkDelta: -30,
		Condition: pipeline.ConditionShort, Discrepancies: []string{"fewer documents"},
	})
	out := buf.String()
	assert.Contains(t, out, "-30")
	assert.Contains(t, out, "Verification FAILED (short)")
	assert.Contains(t, out, "  - fewer documents")
}

func TestWriteFailuresSkipsSuccesses(t *testing.T) {
	var buf bytes.Buffer
	WriteFailures(&buf, []pipeline.Outcome{{Status: pipeline.StatusSucceeded}})
	assert.Empty(t, buf.String())

	WriteFailures(&buf, []pipeline.Outcome{{
		Document: pipeline.ManifestEntry{RelPath: "bad.md"},
		Status:   pipeline.StatusTimedOut,
		Error:    strings.Repeat("x", 200),
	}})
	assert.Contains(t, buf.String(), "bad.md")
	assert.Contains(t, buf.String(), "timed_out")
	assert.Contains(t, buf.String(), "...")
}

func TestWriteProbeListsObjects(t *testing.T) {
	var buf bytes.Buffer
	WriteProbe(&buf, "https://minio.local", s3util.ProbeReport{
		Bucket: "kb", Prefix: "docs/",
		Objects:   []s3util.ObjectInfo{{Key: "docs/a.md", Size: 1234}},
		SampleKey: "docs/a.md", SampleBytes: 1234,
	})
	out := buf.String()
	assert.Contains(t, out, "docs/a.md")
	assert.Contains(t, out, "1234")
	assert.Contains(t, out, "Fetched docs/a.md (1234 bytes)")
}

func TestWriteProbeEmptyPrefix(t *testing.T) {
	var buf bytes.Buffer
	WriteProbe(&buf, "https://minio.local", s3util.ProbeReport{Bucket: "kb", Prefix: "none/"})
	assert.Contains(t, buf.String(), `No objects under prefix "none/"`)
}
