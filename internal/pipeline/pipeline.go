package pipeline

import (
	"context"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/fpang/doc-ingest-pipeline/internal/config"
)

// Artifact names written between stages.
const (
	ManifestArtifact     = "manifest.json"
	OutcomesArtifact     = "outcomes.json.gz"
	SummaryArtifact      = "summary.json"
	VerificationArtifact = "verification.json"
)

// ArtifactWriter persists a stage artifact under name.
type ArtifactWriter interface {
	Write(name string, v any) error
}

// Runner composes the four stages for a single run. Downloader may be nil
// when the source is disabled and Counter may be nil when verification is
// disabled. Artifacts and Metrics are optional.
type Runner struct {
	Config     *config.Config
	Downloader Downloader
	Ingester   Ingester
	Counter    StoreCounter
	Artifacts  ArtifactWriter
	Metrics    io.Writer
}

// Run executes Acquire, Discover, Ingest and Reconcile in order. The returned
// Result holds whatever the completed stages produced even when err is
// non-nil. Errors marked ErrStoreUnavailable come from the verify stage
// alone and leave the ingestion outcomes intact.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	cfg := r.Config
	res := &Result{}

	downloaded, err := Acquire(ctx, cfg.Source, r.Downloader)
	res.Downloaded = downloaded
	if err != nil {
		return res, err
	}

	manifest, err := Discover(cfg.Documents.Path, cfg.Documents.Extensions)
	if err != nil {
		return res, err
	}
	res.Manifest = manifest
	r.write(ManifestArtifact, manifest)

	orch, err := NewOrchestrator(r.Ingester, cfg.Ingest)
	if err != nil {
		return res, err
	}
	outcomes, summary, err := orch.Run(ctx, manifest)
	res.Outcomes, res.Summary = outcomes, summary
	r.write(OutcomesArtifact, outcomes)
	r.write(SummaryArtifact, summary)
	if err != nil {
		r.emit(summary, nil)
		return res, err
	}

	if !cfg.Verify.Enabled || r.Counter == nil {
		log.Info().Msg("Verification disabled, skipping reconcile stage")
		r.emit(summary, nil)
		return res, nil
	}

	report, err := Reconcile(ctx, summary, r.Counter)
	if err != nil {
		r.emit(summary, nil)
		return res, err
	}
	res.Verification = &report
	r.write(VerificationArtifact, report)
	r.emit(summary, &report)
	return res, nil
}

func (r *Runner) write(name string, v any) {
	if r.Artifacts == nil {
		return
	}
	if err := r.Artifacts.Write(name, v); err != nil {
		log.Warn().Err(err).Str("artifact", name).Msg("Failed to write artifact")
	}
}

func (r *Runner) emit(summary RunSummary, report *VerificationReport) {
	if r.Metrics == nil {
		return
	}
	RecordMetrics(r.Metrics, r.Config.Service.Collection, summary, report)
}
