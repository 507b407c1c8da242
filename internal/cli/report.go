// Package cli renders pipeline results for terminal output.
package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/fpang/doc-ingest-pipeline/internal/pipeline"
	"github.com/fpang/doc-ingest-pipeline/internal/s3util"
)

// reportTable is a rounded go-pretty table that renders straight to the
// report writer.
type reportTable struct {
	table.Writer
}

func newReportTable(w io.Writer, header ...any) reportTable {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row(header))
	return reportTable{tw}
}

// alignRight right-justifies the numeric columns, numbered from 1. Headers
// stay left-aligned.
func (t reportTable) alignRight(columns ...int) {
	configs := make([]table.ColumnConfig, 0, len(columns))
	for _, n := range columns {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	t.SetColumnConfigs(configs)
}

// WriteSummary prints the ingest totals for a run.
func WriteSummary(w io.Writer, s pipeline.RunSummary) {
	t := newReportTable(w, "Ingest", "Value")
	t.AppendRows([]table.Row{
		{"Run tag", s.RunTag},
		{"Attempted", s.Attempted},
		{"Succeeded", s.Succeeded},
		{"Failed", s.Failed},
		{"Timed out", s.TimedOut},
		{"Chunks", s.Chunks},
		{"Elapsed", FormatDurationShort(s.Elapsed)},
	})
	t.alignRight(2)
	t.Render()
}

// WriteFailures lists every outcome that did not succeed. Nothing is
// printed when all documents succeeded.
func WriteFailures(w io.Writer, outcomes []pipeline.Outcome) {
	t := newReportTable(w, "Document", "Status", "Error")
	for _, o := range outcomes {
		if o.Status == pipeline.StatusSucceeded {
			continue
		}
		t.AppendRow(table.Row{o.Document.RelPath, o.Status, truncate(o.Error, 80)})
	}
	if t.Length() == 0 {
		return
	}
	t.Render()
}

// WriteVerification prints the expected and actual store counts.
func WriteVerification(w io.Writer, r pipeline.VerificationReport) {
	t := newReportTable(w, "Verify", "Expected", "Actual", "Delta")
	t.AppendRows([]table.Row{
		{"Documents", r.ExpectedDocuments, r.ActualDocuments, fmt.Sprintf("%+d", r.DocumentDelta)},
		{"Chunks", r.ExpectedChunks, r.ActualChunks, fmt.Sprintf("%+d", r.ChunkDelta)},
	})
	t.alignRight(2, 3, 4)
	t.Render()

	verdict := "PASSED"
	if !r.Verified {
		verdict = "FAILED"
	}
	fmt.Fprintf(w, "Verification %s (%s)\n", verdict, r.Condition)
	for _, d := range r.Discrepancies {
		fmt.Fprintf(w, "  - %s\n", d)
	}
}

// WriteProbe prints the objects found by an object-storage probe.
func WriteProbe(w io.Writer, endpoint string, r s3util.ProbeReport) {
	fmt.Fprintf(w, "Bucket %s reachable at %s\n", r.Bucket, endpoint)
	if len(r.Objects) == 0 {
		fmt.Fprintf(w, "No objects under prefix %q\n", r.Prefix)
		return
	}
	t := newReportTable(w, "Key", "Bytes")
	for _, o := range r.Objects {
		t.AppendRow(table.Row{o.Key, o.Size})
	}
	t.alignRight(2)
	t.Render()
	fmt.Fprintf(w, "Fetched %s (%d bytes)\n", r.SampleKey, r.SampleBytes)
}

// FormatDurationShort renders d as M:SS or H:MM:SS. Durations under one
// second keep millisecond precision.
func FormatDurationShort(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	total := int(d.Seconds())
	hours, minutes, seconds := total/3600, (total%3600)/60, total%60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
