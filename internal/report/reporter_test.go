package report_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursepulse/ingest/internal/domain"
	"github.com/coursepulse/ingest/internal/report"
)

func TestFinalize_TotalSeenIsSumOfOutcomes(t *testing.T) {
	r := report.New("it-programming")

	r.RecordOutcome(domain.OutcomeInserted, &domain.CourseRecord{ID: "a"})
	r.RecordOutcome(domain.OutcomeInserted, &domain.CourseRecord{ID: "b"})
	r.RecordOutcome(domain.OutcomeUpdated, &domain.CourseRecord{ID: "c"})
	r.RecordOutcome(domain.OutcomeSkipped, &domain.CourseRecord{ID: "d"})
	r.RecordFailure("https://example.com/course/x", "validation", errors.New("missing title"))

	got := r.Finalize()

	assert.Equal(t, "it-programming", got.Category)
	assert.Equal(t, 2, got.Inserted)
	assert.Equal(t, 1, got.Updated)
	assert.Equal(t, 1, got.Skipped)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, 5, got.TotalSeen)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, got.RecordIDs)

	require.Len(t, got.Errors, 1)
	assert.Equal(t, "validation", got.Errors[0].Stage)
	assert.Equal(t, "https://example.com/course/x", got.Errors[0].URL)
}

func TestFetchAndExtractionErrorsCountSeparately(t *testing.T) {
	r := report.New("it-programming")

	r.RecordFetchError(&domain.FetchError{
		Page:     3,
		URL:      "https://example.com/courses/it-programming?page=3",
		Attempts: 4,
		Err:      errors.New("status 500"),
	})
	r.RecordExtractionErrors([]*domain.ExtractionError{
		{PageURL: "https://example.com/courses/it-programming?page=1", Fragment: 7, Err: errors.New("no title")},
		{PageURL: "https://example.com/courses/it-programming?page=1", Fragment: 9, Err: errors.New("no link")},
	})

	got := r.Finalize()

	assert.Equal(t, 1, got.FetchErrors)
	assert.Equal(t, 2, got.ExtractionErrors)
	assert.Zero(t, got.TotalSeen, "page-level failures are not item outcomes")
	assert.Len(t, got.Errors, 3)
}

func TestRecordAnomaliesAccumulates(t *testing.T) {
	r := report.New("it-programming")

	r.RecordAnomalies([]string{domain.AnomalyRatingClamped})
	r.RecordAnomalies([]string{domain.AnomalyRatingClamped, domain.AnomalySalePriceDiscarded})
	r.RecordAnomalies(nil)

	got := r.Finalize()
	assert.Equal(t, 2, got.Anomalies[domain.AnomalyRatingClamped])
	assert.Equal(t, 1, got.Anomalies[domain.AnomalySalePriceDiscarded])
}

func TestFinalize_ReturnsSnapshot(t *testing.T) {
	r := report.New("it-programming")
	r.RecordOutcome(domain.OutcomeInserted, &domain.CourseRecord{ID: "a"})

	first := r.Finalize()
	r.RecordOutcome(domain.OutcomeInserted, &domain.CourseRecord{ID: "b"})
	r.MarkTimedOut()
	second := r.Finalize()

	assert.Equal(t, 1, first.Inserted)
	assert.False(t, first.TimedOut)
	assert.Len(t, first.RecordIDs, 1)

	assert.Equal(t, 2, second.Inserted)
	assert.True(t, second.TimedOut)
	assert.False(t, second.FinishedAt.Before(first.FinishedAt))
}

func TestConcurrentRecording(t *testing.T) {
	r := report.New("it-programming")

	const workers = 8
	const perWorker = 100

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				switch i % 3 {
				case 0:
					r.RecordOutcome(domain.OutcomeInserted, &domain.CourseRecord{ID: "x"})
				case 1:
					r.RecordOutcome(domain.OutcomeSkipped, nil)
				default:
					r.RecordAnomalies([]string{domain.AnomalyRatingClamped})
				}
			}
		}()
	}
	wg.Wait()

	got := r.Finalize()
	assert.Equal(t, workers*34, got.Inserted)
	assert.Equal(t, workers*33, got.Skipped)
	assert.Equal(t, workers*33, got.Anomalies[domain.AnomalyRatingClamped])
	assert.Equal(t, got.Inserted+got.Updated+got.Skipped+got.Failed, got.TotalSeen)
}
