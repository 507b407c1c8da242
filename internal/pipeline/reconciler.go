package pipeline

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
)

// ErrStoreUnavailable marks a failure to read counts from the store. It is
// fatal for the verify stage only; ingestion outcomes stay valid.
var ErrStoreUnavailable = errors.New("chunk store unavailable")

// StoreCounter reads persisted totals scoped to one run tag.
type StoreCounter interface {
	CountByTag(ctx context.Context, tag string) (StoreCounts, error)
}

// Reconcile reads the actual document and chunk counts for summary's run tag
// and compares them with the succeeded documents and chunks it expects.
//
// The check is a lower bound: extra rows from retries or earlier runs that
// shared the tag still pass. Counts always come from a fresh query, never
// from the summary.
func Reconcile(ctx context.Context, summary RunSummary, counter StoreCounter) (VerificationReport, error) {
	log.Info().
		Str("run_tag", summary.RunTag).
		Int("expected_documents", summary.Succeeded).
		Int("expected_chunks", summary.Chunks).
		Msg("Verifying ingestion against store")

	counts, err := counter.CountByTag(ctx, summary.RunTag)
	if err != nil {
		return VerificationReport{}, errors.Mark(errors.Wrapf(err, "count rows for run tag %q", summary.RunTag), ErrStoreUnavailable)
	}

	report := Compare(summary, counts)
	evt := log.Info()
	if !report.Verified {
		evt = log.Error().Strs("discrepancies", report.Discrepancies)
	}
	evt.
		Int("actual_documents", report.ActualDocuments).
		Int("actual_chunks", report.ActualChunks).
		Str("condition", string(report.Condition)).
		Bool("verified", report.Verified).
		Msg("Verification complete")
	return report, nil
}

// Compare applies the lower-bound policy to expected and actual totals.
func Compare(summary RunSummary, counts StoreCounts) VerificationReport {
	r := VerificationReport{
		RunTag:            summary.RunTag,
		ExpectedDocuments: summary.Succeeded,
		ExpectedChunks:    summary.Chunks,
		ActualDocuments:   counts.Documents,
		ActualChunks:      counts.Chunks,
		DocumentDelta:     counts.Documents - summary.Succeeded,
		ChunkDelta:        counts.Chunks - summary.Chunks,
	}

	docsOK := r.ActualDocuments >= r.ExpectedDocuments
	chunksOK := r.ActualChunks >= r.ExpectedChunks
	r.Verified = docsOK && chunksOK

	switch {
	case r.Verified:
		r.Condition = ConditionOK
		if r.DocumentDelta > 0 || r.ChunkDelta > 0 {
			r.Discrepancies = append(r.Discrepancies, fmt.Sprintf(
				"store holds %+d documents and %+d chunks beyond expectations (retries or earlier runs sharing tag %q)",
				r.DocumentDelta, r.ChunkDelta, r.RunTag))
		}
	case r.ActualDocuments == 0 && r.ActualChunks == 0:
		r.Condition = ConditionEmpty
		r.Discrepancies = append(r.Discrepancies, fmt.Sprintf(
			"zero rows for tag %q, expected %d documents and %d chunks: likely total pipeline failure or the service wrote elsewhere",
			r.RunTag, r.ExpectedDocuments, r.ExpectedChunks))
	default:
		r.Condition = ConditionShort
		if !docsOK {
			r.Discrepancies = append(r.Discrepancies, fmt.Sprintf(
				"fewer documents than expected: %d of %d (delta %d), likely failed writes",
				r.ActualDocuments, r.ExpectedDocuments, r.DocumentDelta))
		}
		if !chunksOK {
			r.Discrepancies = append(r.Discrepancies, fmt.Sprintf(
				"fewer chunks than expected: %d of %d (delta %d), likely failed writes",
				r.ActualChunks, r.ExpectedChunks, r.ChunkDelta))
		}
	}
	return r
}
