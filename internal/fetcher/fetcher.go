// Package fetcher retrieves raw course-listing pages for a category.
//
// Pages are fetched in waves of bounded parallelism to respect the source's
// rate limits. Transient failures are retried with exponential backoff; a
// page that still fails after the retry budget is reported as a FetchError
// and the run moves on to the next page.
package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	colly "github.com/gocolly/colly/v2"

	"github.com/coursepulse/ingest/internal/domain"
	"github.com/coursepulse/ingest/internal/logger"
)

// pageNumberKey is the request context key carrying the pagination index.
const pageNumberKey = "page_number"

// retryCountKey is the request context key for the retry count in OnError.
const retryCountKey = "retry_count"

// Page is one raw listing page payload.
type Page struct {
	Number int
	URL    string
	Body   []byte
}

// ListingDetector reports how many listing cards a payload contains. A zero
// count ends pagination.
type ListingDetector interface {
	CountListings(body []byte) int
}

// Config holds fetcher settings.
type Config struct {
	BaseURL        string
	UserAgent      string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	Parallelism    int
	MaxPages       int
}

// Fetcher streams listing pages for one category. Each Pages call starts a
// fresh crawl from page one; no state carries over between runs.
type Fetcher struct {
	cfg      Config
	detector ListingDetector
	log      logger.Interface
}

// New creates a fetcher.
func New(cfg Config, detector ListingDetector, log logger.Interface) *Fetcher {
	return &Fetcher{cfg: cfg, detector: detector, log: log.WithComponent("fetcher")}
}

// Pages fetches listing pages for category and streams them in page order.
// It stops when a page has no listings, the page cap is reached, or ctx is
// cancelled. Page-level failures arrive on the error channel. Both channels
// are closed when fetching ends.
func (f *Fetcher) Pages(ctx context.Context, category string) (<-chan Page, <-chan *domain.FetchError) {
	pages := make(chan Page)
	fetchErrs := make(chan *domain.FetchError, f.cfg.MaxPages)

	go func() {
		defer close(pages)
		defer close(fetchErrs)
		f.paginate(ctx, category, pages, fetchErrs)
	}()

	return pages, fetchErrs
}

// paginate fetches waves of cfg.Parallelism pages until done.
func (f *Fetcher) paginate(
	ctx context.Context,
	category string,
	pages chan<- Page,
	fetchErrs chan<- *domain.FetchError,
) {
	for start := 1; start <= f.cfg.MaxPages; start += f.cfg.Parallelism {
		if ctx.Err() != nil {
			f.log.Debug("fetch cancelled", "category", category)
			return
		}

		end := start + f.cfg.Parallelism - 1
		if end > f.cfg.MaxPages {
			end = f.cfg.MaxPages
		}

		bodies := f.fetchWave(ctx, category, start, end, fetchErrs)

		for number := start; number <= end; number++ {
			body, ok := bodies[number]
			if !ok {
				// Failed page, already reported; later pages may still work.
				continue
			}
			if f.detector.CountListings(body) == 0 {
				f.log.Info("no listings on page, pagination complete",
					"category", category, "page", number)
				return
			}

			select {
			case pages <- Page{Number: number, URL: f.pageURL(category, number), Body: body}:
			case <-ctx.Done():
				return
			}
		}
	}

	f.log.Warn("page cap reached before pagination ended",
		"category", category, "max_pages", f.cfg.MaxPages)
}

// fetchWave fetches pages [start, end] concurrently and returns the bodies
// of the successful ones keyed by page number.
func (f *Fetcher) fetchWave(
	ctx context.Context,
	category string,
	start, end int,
	fetchErrs chan<- *domain.FetchError,
) map[int][]byte {
	var mu sync.Mutex
	bodies := make(map[int][]byte, end-start+1)

	c := f.newCollector(ctx)

	c.OnResponse(func(r *colly.Response) {
		number, ok := r.Ctx.GetAny(pageNumberKey).(int)
		if !ok {
			return
		}
		body := make([]byte, len(r.Body))
		copy(body, r.Body)

		mu.Lock()
		bodies[number] = body
		mu.Unlock()
	})

	c.OnError(func(r *colly.Response, visitErr error) {
		f.handleFetchError(ctx, r, visitErr, fetchErrs)
	})

	for number := start; number <= end; number++ {
		reqCtx := colly.NewContext()
		reqCtx.Put(pageNumberKey, number)
		if err := c.Request(http.MethodGet, f.pageURL(category, number), nil, reqCtx, nil); err != nil {
			fetchErrs <- &domain.FetchError{
				Page: number, URL: f.pageURL(category, number), Attempts: 1, Err: err,
			}
		}
	}

	c.Wait()
	return bodies
}

// newCollector builds a collector for one wave.
func (f *Fetcher) newCollector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(f.cfg.UserAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(f.cfg.RequestTimeout)

	// Errors are intentionally ignored here: the rule is static and valid.
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: f.cfg.Parallelism,
	})

	return c
}

// handleFetchError retries transient failures with exponential backoff and
// reports a FetchError once the retry budget is spent.
func (f *Fetcher) handleFetchError(
	ctx context.Context,
	r *colly.Response,
	visitErr error,
	fetchErrs chan<- *domain.FetchError,
) {
	if ctx.Err() != nil {
		return
	}

	number, _ := r.Request.Ctx.GetAny(pageNumberKey).(int)

	count := 0
	if v := r.Request.Ctx.GetAny(retryCountKey); v != nil {
		if n, ok := v.(int); ok {
			count = n
		}
	}

	if !isTransientError(r, visitErr) || count >= f.cfg.MaxRetries {
		f.log.Error("page fetch failed",
			"page", number,
			"url", r.Request.URL.String(),
			"status", r.StatusCode,
			"attempts", count+1,
			"error", visitErr.Error(),
		)
		fetchErrs <- &domain.FetchError{
			Page:     number,
			URL:      r.Request.URL.String(),
			Attempts: count + 1,
			Err:      visitErr,
		}
		return
	}

	r.Request.Ctx.Put(retryCountKey, count+1)
	backoff := f.cfg.RetryDelay << count

	f.log.Warn("retrying page fetch",
		"page", number,
		"attempt", count+1,
		"backoff", backoff.String(),
	)

	select {
	case <-ctx.Done():
		return
	case <-time.After(backoff):
	}

	if retryErr := r.Request.Retry(); retryErr != nil {
		fetchErrs <- &domain.FetchError{
			Page:     number,
			URL:      r.Request.URL.String(),
			Attempts: count + 1,
			Err:      retryErr,
		}
	}
}

// isTransientError returns true for failures worth retrying: 5xx responses,
// 429s, and connection-level errors.
func isTransientError(r *colly.Response, visitErr error) bool {
	if r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= http.StatusInternalServerError {
		return true
	}
	if r.StatusCode >= http.StatusBadRequest {
		return false
	}

	errMsg := strings.ToLower(visitErr.Error())
	transientPatterns := []string{
		"connection refused", "connection reset", "temporary failure",
		"eof", "broken pipe", "no such host", "i/o timeout", "connection timed out",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}

// pageURL builds the listing URL for a category page.
func (f *Fetcher) pageURL(category string, number int) string {
	return fmt.Sprintf("%s/courses/%s?page=%d", strings.TrimRight(f.cfg.BaseURL, "/"), category, number)
}
