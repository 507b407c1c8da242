// Package pipeline implements the four ingestion stages and their composition.
//
// The stages run strictly in sequence:
//
//	Acquire   pull the corpus from object storage (skipped when disabled)
//	Discover  walk the working directory into an ordered manifest
//	Ingest    push every manifest entry to the ingestion service in batches
//	Reconcile compare persisted chunk/document counts with expectations
//
// Source and discovery failures are fatal for the run. Per-document failures
// and timeouts are recorded as outcomes and never abort ingestion. The
// verification report, not the ingest stage's completion, is the
// correctness signal for a run.
package pipeline
