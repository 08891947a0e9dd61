package domain

import "time"

// Outcome classifies the persistence decision for one processed candidate.
type Outcome string

const (
	OutcomeInserted Outcome = "INSERTED"
	OutcomeUpdated  Outcome = "UPDATED"
	OutcomeSkipped  Outcome = "SKIPPED"
	OutcomeFailed   Outcome = "FAILED"
)

// Anomaly names for auto-corrected data recorded in the run report.
const (
	AnomalyRatingClamped      = "rating_clamped"
	AnomalySalePriceDiscarded = "sale_price_discarded"
)

// ItemError describes a single contained per-item failure.
type ItemError struct {
	URL     string `json:"url,omitempty"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// RunReport summarizes one complete pipeline execution. It is finalized once,
// after the run ends, and never mutated afterwards. It is the single source
// of truth for what happened during the run.
type RunReport struct {
	Category string `json:"category"`

	TotalSeen int `json:"total_seen"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	FetchErrors      int `json:"fetch_errors"`
	ExtractionErrors int `json:"extraction_errors"`

	// Anomalies counts auto-corrections applied during normalization,
	// keyed by anomaly name (e.g. "rating_clamped").
	Anomalies map[string]int `json:"anomalies,omitempty"`

	// Errors lists per-item failure descriptions in arrival order.
	Errors []ItemError `json:"errors,omitempty"`

	// RecordIDs references the touched CourseRecords for audit.
	RecordIDs []string `json:"record_ids,omitempty"`

	TimedOut bool `json:"timed_out"`

	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationSeconds float64   `json:"duration_seconds"`
}
