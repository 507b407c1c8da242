package pipeline

import "time"

// ManifestEntry is one discovered document. RelPath is slash separated and
// relative to the discovery root; Ext is lower-case with a leading dot.
type ManifestEntry struct {
	RelPath string `json:"relPath"`
	AbsPath string `json:"absPath"`
	Size    int64  `json:"size"`
	Ext     string `json:"ext"`
}

// Batch is a contiguous slice of the manifest processed as a unit.
type Batch struct {
	Index   int
	Entries []ManifestEntry
}

// Status is the terminal state of one document.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Outcome is the result of ingesting one manifest entry. Chunks and
// DocumentID are set only on success; Error only on failure or timeout.
type Outcome struct {
	Document   ManifestEntry `json:"document"`
	Status     Status        `json:"status"`
	Chunks     *int          `json:"chunks,omitempty"`
	DocumentID string        `json:"documentId,omitempty"`
	Error      string        `json:"error,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
}

// RunSummary aggregates the outcomes of one ingest stage.
type RunSummary struct {
	RunTag    string        `json:"runTag"`
	StartedAt time.Time     `json:"startedAt"`
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	TimedOut  int           `json:"timedOut"`
	Chunks    int           `json:"chunks"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Condition classifies a verification result.
type Condition string

const (
	// ConditionOK means the store holds at least the expected rows.
	ConditionOK Condition = "ok"
	// ConditionShort means some rows exist but fewer than expected, which
	// usually points at failed writes downstream.
	ConditionShort Condition = "short"
	// ConditionEmpty means the store holds no rows for the run tag at all,
	// which usually points at a total pipeline failure.
	ConditionEmpty Condition = "empty"
)

// VerificationReport compares expected totals with counts read from the store.
type VerificationReport struct {
	RunTag            string    `json:"runTag"`
	ExpectedDocuments int       `json:"expectedDocuments"`
	ExpectedChunks    int       `json:"expectedChunks"`
	ActualDocuments   int       `json:"actualDocuments"`
	ActualChunks      int       `json:"actualChunks"`
	DocumentDelta     int       `json:"documentDelta"`
	ChunkDelta        int       `json:"chunkDelta"`
	Condition         Condition `json:"condition"`
	Verified          bool      `json:"verified"`
	Discrepancies     []string  `json:"discrepancies,omitempty"`
}

// StoreCounts are the document and chunk totals persisted for one run tag.
type StoreCounts struct {
	Documents int
	Chunks    int
}

// Result is everything a pipeline run produced up to the point it stopped.
// Verification is nil when the verify stage was disabled or failed.
type Result struct {
	Downloaded   int                 `json:"downloaded"`
	Manifest     []ManifestEntry     `json:"manifest"`
	Outcomes     []Outcome           `json:"outcomes"`
	Summary      RunSummary          `json:"summary"`
	Verification *VerificationReport `json:"verification,omitempty"`
}
