// Package report accumulates per-run outcome events into an immutable RunReport.
package report

import (
	"sync"
	"time"

	"github.com/coursepulse/ingest/internal/domain"
)

// Reporter is a concurrency-safe accumulator for pipeline outcome events.
// Every processed candidate produces exactly one outcome event; page-level
// fetch and extraction failures are counted separately. Finalize seals the
// accumulated state into a RunReport.
type Reporter struct {
	mu sync.Mutex

	category  string
	startedAt time.Time

	inserted int
	updated  int
	skipped  int
	failed   int

	fetchErrors      int
	extractionErrors int

	anomalies map[string]int
	errors    []domain.ItemError
	recordIDs []string
	timedOut  bool
}

// New creates a reporter for one pipeline run and starts its clock.
func New(category string) *Reporter {
	return &Reporter{
		category:  category,
		startedAt: time.Now().UTC(),
		anomalies: make(map[string]int),
	}
}

// RecordOutcome registers the persistence outcome for one successfully
// processed candidate. Failed items go through RecordFailure, which also
// captures the failure reason.
func (r *Reporter) RecordOutcome(outcome domain.Outcome, record *domain.CourseRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch outcome {
	case domain.OutcomeInserted:
		r.inserted++
	case domain.OutcomeUpdated:
		r.updated++
	case domain.OutcomeSkipped:
		r.skipped++
	}

	if record != nil && record.ID != "" {
		r.recordIDs = append(r.recordIDs, record.ID)
	}
}

// RecordFailure registers a contained per-item failure with its reason.
// The item counts as FAILED.
func (r *Reporter) RecordFailure(url, stage string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failed++
	r.errors = append(r.errors, domain.ItemError{
		URL:     url,
		Stage:   stage,
		Message: err.Error(),
	})
}

// RecordFetchError registers a page that could not be fetched after retries.
func (r *Reporter) RecordFetchError(fetchErr *domain.FetchError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fetchErrors++
	r.errors = append(r.errors, domain.ItemError{
		URL:     fetchErr.URL,
		Stage:   "fetch",
		Message: fetchErr.Error(),
	})
}

// RecordExtractionErrors registers contained fragment failures for a page.
func (r *Reporter) RecordExtractionErrors(errs []*domain.ExtractionError) {
	if len(errs) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.extractionErrors += len(errs)
	for _, err := range errs {
		r.errors = append(r.errors, domain.ItemError{
			URL:     err.PageURL,
			Stage:   "extraction",
			Message: err.Error(),
		})
	}
}

// RecordAnomalies increments the named auto-correction counters.
func (r *Reporter) RecordAnomalies(names []string) {
	if len(names) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		r.anomalies[name]++
	}
}

// MarkTimedOut records that the run timeout elapsed before fetching finished.
func (r *Reporter) MarkTimedOut() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timedOut = true
}

// Finalize seals the accumulated state into a RunReport. The returned report
// is a snapshot; later reporter calls do not affect it.
func (r *Reporter) Finalize() *domain.RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	finishedAt := time.Now().UTC()

	anomalies := make(map[string]int, len(r.anomalies))
	for name, count := range r.anomalies {
		anomalies[name] = count
	}

	return &domain.RunReport{
		Category:         r.category,
		TotalSeen:        r.inserted + r.updated + r.skipped + r.failed,
		Inserted:         r.inserted,
		Updated:          r.updated,
		Skipped:          r.skipped,
		Failed:           r.failed,
		FetchErrors:      r.fetchErrors,
		ExtractionErrors: r.extractionErrors,
		Anomalies:        anomalies,
		Errors:           append([]domain.ItemError(nil), r.errors...),
		RecordIDs:        append([]string(nil), r.recordIDs...),
		TimedOut:         r.timedOut,
		StartedAt:        r.startedAt,
		FinishedAt:       finishedAt,
		DurationSeconds:  finishedAt.Sub(r.startedAt).Seconds(),
	}
}
