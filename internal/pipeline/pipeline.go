// Package pipeline orchestrates one ingestion run: fetch, extract, normalize,
// upsert, report.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/coursepulse/ingest/internal/domain"
	"github.com/coursepulse/ingest/internal/extractor"
	"github.com/coursepulse/ingest/internal/fetcher"
	"github.com/coursepulse/ingest/internal/logger"
	"github.com/coursepulse/ingest/internal/report"
)

// PageSource streams raw listing pages until cancelled or exhausted.
type PageSource interface {
	Pages(ctx context.Context, category string) (<-chan fetcher.Page, <-chan *domain.FetchError)
}

// Extractor parses a page payload into candidates.
type Extractor interface {
	ExtractPage(pageURL string, body []byte) (*extractor.Result, error)
}

// Normalizer validates and normalizes one candidate.
type Normalizer interface {
	Normalize(c domain.CourseCandidate) (domain.CourseCandidate, []string, error)
}

// Upserter persists one normalized candidate.
type Upserter interface {
	Apply(ctx context.Context, c domain.CourseCandidate) (domain.Outcome, *domain.CourseRecord, error)
}

// Config bounds one pipeline run.
type Config struct {
	Category   string
	MaxItems   int
	Workers    int
	RunTimeout time.Duration
}

// Result is what one run produced: the finalized report and the normalized
// candidates that passed validation, for the courses artifact.
type Result struct {
	Report     *domain.RunReport
	Candidates []domain.CourseCandidate
}

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	cfg        Config
	source     PageSource
	extract    Extractor
	normalizer Normalizer
	upserter   Upserter
	log        logger.Interface

	mu         sync.Mutex
	candidates []domain.CourseCandidate
}

// New creates a pipeline.
func New(
	cfg Config,
	source PageSource,
	extract Extractor,
	normalizer Normalizer,
	upserter Upserter,
	log logger.Interface,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		source:     source,
		extract:    extract,
		normalizer: normalizer,
		upserter:   upserter,
		log:        log.WithComponent("pipeline"),
	}
}

// Run executes one complete ingestion run. A report is always produced:
// per-item and page-level failures are contained and recorded, never
// propagated. When the run timeout elapses, no new fetches start but
// in-flight items finish and the report is flagged timed_out.
func (p *Pipeline) Run(ctx context.Context) *Result {
	reporter := report.New(p.cfg.Category)

	p.log.Info("starting ingestion run",
		"category", p.cfg.Category,
		"max_items", p.cfg.MaxItems,
		"workers", p.cfg.Workers,
	)

	fetchCtx, cancelFetch := context.WithCancel(ctx)
	defer cancelFetch()

	if p.cfg.RunTimeout > 0 {
		timer := time.AfterFunc(p.cfg.RunTimeout, func() {
			p.log.Warn("run timeout elapsed, stopping new fetches")
			reporter.MarkTimedOut()
			cancelFetch()
		})
		defer timer.Stop()
	}

	pages, fetchErrs := p.source.Pages(fetchCtx, p.cfg.Category)

	var errWg sync.WaitGroup
	errWg.Add(1)
	go func() {
		defer errWg.Done()
		for fetchErr := range fetchErrs {
			reporter.RecordFetchError(fetchErr)
		}
	}()

	candidateCh := make(chan domain.CourseCandidate)

	var workerWg sync.WaitGroup
	for range p.cfg.Workers {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			for candidate := range candidateCh {
				p.process(ctx, candidate, reporter)
			}
		}()
	}

	p.feed(pages, candidateCh, cancelFetch, reporter)

	close(candidateCh)
	workerWg.Wait()
	errWg.Wait()

	runReport := reporter.Finalize()
	p.log.Info("ingestion run finished",
		"total_seen", runReport.TotalSeen,
		"inserted", runReport.Inserted,
		"updated", runReport.Updated,
		"skipped", runReport.Skipped,
		"failed", runReport.Failed,
		"fetch_errors", runReport.FetchErrors,
		"extraction_errors", runReport.ExtractionErrors,
		"timed_out", runReport.TimedOut,
		"duration_seconds", runReport.DurationSeconds,
	)

	p.mu.Lock()
	collected := append([]domain.CourseCandidate(nil), p.candidates...)
	p.mu.Unlock()

	return &Result{Report: runReport, Candidates: collected}
}

// feed extracts candidates from fetched pages and hands them to the workers,
// stopping the fetcher once the item budget is reached.
func (p *Pipeline) feed(
	pages <-chan fetcher.Page,
	candidateCh chan<- domain.CourseCandidate,
	cancelFetch context.CancelFunc,
	reporter *report.Reporter,
) {
	seen := 0

	for page := range pages {
		result, err := p.extract.ExtractPage(page.URL, page.Body)
		if err != nil {
			if extractionErr, ok := err.(*domain.ExtractionError); ok {
				reporter.RecordExtractionErrors([]*domain.ExtractionError{extractionErr})
			}
			p.log.Error("page extraction failed", "page", page.Number, "error", err.Error())
			continue
		}

		reporter.RecordExtractionErrors(result.Errors)

		for _, candidate := range result.Candidates {
			if seen >= p.cfg.MaxItems {
				break
			}
			seen++
			candidateCh <- candidate
		}

		if seen >= p.cfg.MaxItems {
			p.log.Info("item budget reached, stopping fetches", "seen", seen)
			cancelFetch()
			// Drain remaining pages so the fetcher can shut down.
			for range pages {
			}
			return
		}
	}
}

// process runs one candidate through normalization and persistence. Failures
// are contained to the item.
func (p *Pipeline) process(ctx context.Context, candidate domain.CourseCandidate, reporter *report.Reporter) {
	normalized, anomalies, err := p.normalizer.Normalize(candidate)
	if err != nil {
		p.log.Warn("candidate rejected", "url", candidate.URL, "error", err.Error())
		reporter.RecordFailure(candidate.URL, "validation", err)
		return
	}

	reporter.RecordAnomalies(anomalies)

	p.mu.Lock()
	p.candidates = append(p.candidates, normalized)
	p.mu.Unlock()

	outcome, record, err := p.upserter.Apply(ctx, normalized)
	if err != nil {
		p.log.Error("persistence failed", "url", normalized.URL, "error", err.Error())
		reporter.RecordFailure(normalized.URL, "persistence", err)
		return
	}

	reporter.RecordOutcome(outcome, record)
}
