package pipeline

import (
	"io"

	"github.com/fpang/doc-ingest-pipeline/internal/metrics"
)

// RecordMetrics flushes one EMF document describing a run. report may be nil
// when verification did not produce one.
func RecordMetrics(w io.Writer, collection string, summary RunSummary, report *VerificationReport) {
	rec := metrics.New(w, metrics.Namespace).
		Dimension("Collection", collection).
		Count("DocumentsAttempted", summary.Attempted).
		Count("DocumentsSucceeded", summary.Succeeded).
		Count("DocumentsFailed", summary.Failed).
		Count("DocumentsTimedOut", summary.TimedOut).
		Count("ChunksCreated", summary.Chunks).
		Metric("IngestDuration", float64(summary.Elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Property("runTag", summary.RunTag)
	if report != nil {
		verified := 0
		if report.Verified {
			verified = 1
		}
		rec.Count("RunVerified", verified).
			Property("verificationCondition", string(report.Condition))
	}
	rec.Flush()
}
