package pipeline

import (
	"context"
	"math"
	"net"
	"os"
	"path"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/fpang/doc-ingest-pipeline/internal/config"
	"github.com/fpang/doc-ingest-pipeline/internal/ingestsvc"
)

// MetadataSource is the metadata key carrying the run tag. The store scopes
// verification queries by it.
const MetadataSource = "source"

// Ingester sends one document to the ingestion service.
type Ingester interface {
	Ingest(ctx context.Context, doc ingestsvc.Document) (ingestsvc.Receipt, error)
}

// Orchestrator pushes a manifest through the ingestion service batch by
// batch. Item failures are recorded, never raised.
type Orchestrator struct {
	ingester    Ingester
	runTag      string
	batchSize   int
	timeout     time.Duration
	concurrency int
	limiter     *rate.Limiter
}

// NewOrchestrator builds an Orchestrator from the ingest options.
func NewOrchestrator(ingester Ingester, opts config.Ingest) (*Orchestrator, error) {
	if ingester == nil {
		return nil, errors.New("ingester required")
	}
	if opts.BatchSize < 1 {
		return nil, errors.Newf("batch size must be at least 1, got %d", opts.BatchSize)
	}
	if opts.RequestTimeout <= 0 {
		return nil, errors.Newf("request timeout must be positive, got %s", opts.RequestTimeout)
	}
	o := &Orchestrator{
		ingester:    ingester,
		runTag:      opts.RunTag,
		batchSize:   opts.BatchSize,
		timeout:     opts.RequestTimeout,
		concurrency: max(opts.Concurrency, 1),
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(math.Ceil(opts.RequestsPerSecond))
		o.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return o, nil
}

// Run ingests manifest and returns one outcome per entry in manifest order
// together with the derived summary.
//
// Batches run one after another. Within a batch up to concurrency documents
// are in flight; a failing document never cancels its siblings. If ctx is
// cancelled the stage aborts: the returned outcomes cover only documents
// that had completed, and the context error is returned.
func (o *Orchestrator) Run(ctx context.Context, manifest []ManifestEntry) ([]Outcome, RunSummary, error) {
	start := time.Now()
	batches := Partition(manifest, o.batchSize)

	log.Info().
		Int("documents", len(manifest)).
		Int("batches", len(batches)).
		Int("batch_size", o.batchSize).
		Int("concurrency", o.concurrency).
		Dur("request_timeout", o.timeout).
		Str("run_tag", o.runTag).
		Msg("Starting batch ingestion")

	pool, err := ants.NewPool(o.concurrency)
	if err != nil {
		return nil, RunSummary{}, errors.Wrap(err, "create worker pool")
	}
	defer pool.Release()

	outcomes := make([]Outcome, 0, len(manifest))
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return outcomes, Summarize(o.runTag, start, outcomes), errors.Wrapf(err, "ingest aborted before batch %d/%d", b.Index+1, len(batches))
		}

		log.Info().Int("batch", b.Index+1).Int("of", len(batches)).Int("files", len(b.Entries)).Msg("Processing batch")
		completed := o.runBatch(ctx, pool, b)
		outcomes = append(outcomes, completed...)

		if err := ctx.Err(); err != nil {
			return outcomes, Summarize(o.runTag, start, outcomes), errors.Wrapf(err, "ingest aborted during batch %d/%d", b.Index+1, len(batches))
		}
	}

	summary := Summarize(o.runTag, start, outcomes)
	log.Info().
		Int("attempted", summary.Attempted).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("timed_out", summary.TimedOut).
		Int("chunks", summary.Chunks).
		Dur("elapsed", summary.Elapsed).
		Msgf("Summary: %d/%d files ingested successfully", summary.Succeeded, summary.Attempted)
	return outcomes, summary, nil
}

// runBatch returns the completed outcomes of b in manifest order. Every
// entry completes unless ctx is cancelled.
func (o *Orchestrator) runBatch(ctx context.Context, pool *ants.Pool, b Batch) []Outcome {
	slots := make([]Outcome, len(b.Entries))
	done := make([]bool, len(b.Entries))

	var wg sync.WaitGroup
	for i, entry := range b.Entries {
		i, entry := i, entry
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slots[i] = failedOutcome(entry, 0, errors.Newf("panic while ingesting: %v", r))
					done[i] = true
				}
			}()
			slots[i], done[i] = o.ingestOne(ctx, entry)
		})
		if err != nil {
			wg.Done()
			slots[i] = failedOutcome(entry, 0, errors.Wrap(err, "schedule request"))
			done[i] = true
		}
	}
	wg.Wait()

	completed := make([]Outcome, 0, len(slots))
	for i := range slots {
		if done[i] {
			completed = append(completed, slots[i])
		}
	}
	return completed
}

// ingestOne sends a single document. The boolean is false when the parent
// context was cancelled before the document reached a terminal state.
func (o *Orchestrator) ingestOne(ctx context.Context, entry ManifestEntry) (Outcome, bool) {
	start := time.Now()

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return Outcome{}, false
			}
			return failedOutcome(entry, time.Since(start), errors.Wrap(err, "rate limit")), true
		}
	}

	content, err := os.ReadFile(entry.AbsPath)
	if err != nil {
		out := failedOutcome(entry, time.Since(start), errors.Wrap(err, "read document"))
		logOutcome(out)
		return out, true
	}

	reqCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	receipt, err := o.ingester.Ingest(reqCtx, ingestsvc.Document{
		Name:    path.Base(entry.RelPath),
		RelPath: entry.RelPath,
		Ext:     entry.Ext,
		Content: content,
		Metadata: map[string]string{
			MetadataSource: o.runTag,
			"file_path":    entry.RelPath,
			"filename":     path.Base(entry.RelPath),
			"extension":    entry.Ext,
		},
	})
	elapsed := time.Since(start)

	var out Outcome
	switch {
	case err == nil && receipt.ChunkCount < 0:
		out = failedOutcome(entry, elapsed, errors.Wrapf(ingestsvc.ErrMalformedResponse, "negative chunk count %d", receipt.ChunkCount))
	case err == nil:
		chunks := receipt.ChunkCount
		out = Outcome{Document: entry, Status: StatusSucceeded, Chunks: &chunks, DocumentID: receipt.DocumentID, Elapsed: elapsed}
	case ctx.Err() != nil:
		return Outcome{}, false
	case isTimeout(reqCtx, err):
		out = Outcome{Document: entry, Status: StatusTimedOut, Error: "request exceeded " + o.timeout.String() + ": " + err.Error(), Elapsed: elapsed}
	default:
		out = failedOutcome(entry, elapsed, err)
	}
	logOutcome(out)
	return out, true
}

func failedOutcome(entry ManifestEntry, elapsed time.Duration, err error) Outcome {
	return Outcome{Document: entry, Status: StatusFailed, Error: err.Error(), Elapsed: elapsed}
}

// isTimeout reports whether err was caused by the per-request deadline
// rather than by the service answering with an error.
func isTimeout(reqCtx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func logOutcome(o Outcome) {
	switch o.Status {
	case StatusSucceeded:
		log.Info().
			Str("file", o.Document.RelPath).
			Int("chunks", *o.Chunks).
			Str("document_id", o.DocumentID).
			Dur("elapsed", o.Elapsed).
			Msg("SUCCESS")
	case StatusTimedOut:
		log.Warn().Str("file", o.Document.RelPath).Dur("elapsed", o.Elapsed).Str("error", o.Error).Msg("TIMEOUT")
	default:
		log.Error().Str("file", o.Document.RelPath).Dur("elapsed", o.Elapsed).Str("error", o.Error).Msg("FAILED")
	}
}

// Summarize derives the run summary from outcomes.
func Summarize(runTag string, startedAt time.Time, outcomes []Outcome) RunSummary {
	s := RunSummary{
		RunTag:    runTag,
		StartedAt: startedAt.UTC(),
		Attempted: len(outcomes),
	}
	if !startedAt.IsZero() {
		s.Elapsed = time.Since(startedAt)
	}
	for _, o := range outcomes {
		switch o.Status {
		case StatusSucceeded:
			s.Succeeded++
			if o.Chunks != nil {
				s.Chunks += *o.Chunks
			}
		case StatusTimedOut:
			s.TimedOut++
		default:
			s.Failed++
		}
	}
	return s
}
