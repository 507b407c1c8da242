package main

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/fpang/doc-ingest-pipeline/internal/config"
	"github.com/fpang/doc-ingest-pipeline/internal/ingestsvc"
	"github.com/fpang/doc-ingest-pipeline/internal/pipeline"
)

// Stage names accepted in StageEvent.Stage.
const (
	StageAcquire  = "acquire"
	StageDiscover = "discover"
	StageIngest   = "ingest"
	StageVerify   = "verify"
	StageRun      = "run"
)

// StageEvent selects a stage and carries the artifacts it consumes.
type StageEvent struct {
	Stage    string                   `json:"stage"`
	RunTag   string                   `json:"runTag,omitempty"`
	Manifest []pipeline.ManifestEntry `json:"manifest,omitempty"`
	Summary  *pipeline.RunSummary     `json:"summary,omitempty"`
}

// StageResponse carries the artifacts a stage produced. A verification that
// did not pass is reported in Verification, not as an error, so a state
// machine can branch on it.
type StageResponse struct {
	Stage        string                       `json:"stage"`
	Downloaded   int                          `json:"downloaded,omitempty"`
	Manifest     []pipeline.ManifestEntry     `json:"manifest,omitempty"`
	Outcomes     []pipeline.Outcome           `json:"outcomes,omitempty"`
	Summary      *pipeline.RunSummary         `json:"summary,omitempty"`
	Verification *pipeline.VerificationReport `json:"verification,omitempty"`
}

// ErrBadEvent marks an event the handler cannot act on. Retrying it will not
// help.
var ErrBadEvent = errors.New("bad stage event")

// efsMountRoot is where Lambda mounts EFS access points.
const efsMountRoot = "/mnt"

// sharedStorage reports whether path lives on a file system that every
// container of the function sees.
func sharedStorage(path string) bool {
	rel, err := filepath.Rel(efsMountRoot, filepath.Clean(path))
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

type stageRunner struct {
	cfg *config.Config
	// fixedRunTag is set when the run tag came from configuration. Otherwise
	// every run or ingest invocation gets a fresh one.
	fixedRunTag bool
	// sharedDocuments is set when documents.path is on shared storage, which
	// acquire, discover and ingest need to run as separate invocations.
	sharedDocuments bool
	ingester        pipeline.Ingester
	downloader      func(ctx context.Context) (pipeline.Downloader, error)
	counter         func(ctx context.Context) (pipeline.StoreCounter, func(), error)
	metrics         io.Writer
}

// newStageRunner builds the runner for a loaded configuration. v is the viper
// instance cfg was loaded from.
func newStageRunner(v *viper.Viper, cfg *config.Config) *stageRunner {
	return &stageRunner{
		cfg:             cfg,
		fixedRunTag:     strings.TrimSpace(v.GetString("ingest.run_tag")) != "",
		sharedDocuments: sharedStorage(cfg.Documents.Path),
		ingester:        ingestsvc.NewClient(cfg.Service.URL, cfg.Service.Collection),
	}
}

func (s *stageRunner) handle(ctx context.Context, event StageEvent) (StageResponse, error) {
	cfg := *s.cfg
	switch {
	case event.RunTag != "":
		cfg.Ingest.RunTag = event.RunTag
	case !s.fixedRunTag && (event.Stage == StageRun || event.Stage == StageIngest):
		cfg.Ingest.RunTag = config.NewRunTag()
	}
	resp := StageResponse{Stage: event.Stage}

	switch event.Stage {
	case StageAcquire, StageDiscover, StageIngest:
		if !s.sharedDocuments {
			return resp, errors.WithHintf(
				errors.Wrapf(ErrBadEvent, "stage %q needs documents.path on shared storage, got %s", event.Stage, cfg.Documents.Path),
				"Mount EFS under %s and point documents.path there, or use the %q stage.", efsMountRoot, StageRun)
		}
	}

	switch event.Stage {
	case StageAcquire:
		dl, err := s.downloader(ctx)
		if err != nil {
			return resp, err
		}
		resp.Downloaded, err = pipeline.Acquire(ctx, cfg.Source, dl)
		return resp, err

	case StageDiscover:
		manifest, err := pipeline.Discover(cfg.Documents.Path, cfg.Documents.Extensions)
		resp.Manifest = manifest
		return resp, err

	case StageIngest:
		if event.Manifest == nil {
			return resp, errors.Wrap(ErrBadEvent, "ingest requires a manifest")
		}
		orch, err := pipeline.NewOrchestrator(s.ingester, cfg.Ingest)
		if err != nil {
			return resp, err
		}
		outcomes, summary, err := orch.Run(ctx, event.Manifest)
		resp.Outcomes, resp.Summary = outcomes, &summary
		pipeline.RecordMetrics(s.metrics, cfg.Service.Collection, summary, nil)
		return resp, err

	case StageVerify:
		if event.Summary == nil {
			return resp, errors.Wrap(ErrBadEvent, "verify requires a summary")
		}
		if !cfg.Verify.Enabled {
			log.Info().Msg("Verification disabled, skipping")
			return resp, nil
		}
		counter, release, err := s.counter(ctx)
		if err != nil {
			return resp, err
		}
		defer release()
		report, err := pipeline.Reconcile(ctx, *event.Summary, counter)
		if err != nil {
			return resp, err
		}
		resp.Summary, resp.Verification = event.Summary, &report
		pipeline.RecordMetrics(s.metrics, cfg.Service.Collection, *event.Summary, &report)
		return resp, nil

	case StageRun:
		dl, err := s.downloader(ctx)
		if err != nil {
			return resp, err
		}
		runner := &pipeline.Runner{
			Config:     &cfg,
			Downloader: dl,
			Ingester:   s.ingester,
			Metrics:    s.metrics,
		}
		if cfg.Verify.Enabled {
			counter, release, err := s.counter(ctx)
			if err != nil {
				return resp, err
			}
			defer release()
			runner.Counter = counter
		}
		res, err := runner.Run(ctx)
		if res != nil {
			resp.Downloaded, resp.Manifest, resp.Outcomes = res.Downloaded, res.Manifest, res.Outcomes
			resp.Summary, resp.Verification = &res.Summary, res.Verification
		}
		return resp, err

	default:
		return resp, errors.Wrapf(ErrBadEvent, "unknown stage %q", event.Stage)
	}
}
