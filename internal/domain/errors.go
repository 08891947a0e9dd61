package domain

import (
	"fmt"
	"strings"
)

// FetchError reports a listing page that could not be retrieved after
// exhausting retries. It is contained to the page; the run continues.
type FetchError struct {
	Page     int
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page %d (%s) failed after %d attempts: %v", e.Page, e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionError reports a single listing fragment that could not be parsed.
// It is attributed to the page and never aborts extraction of its siblings.
type ExtractionError struct {
	PageURL  string
	Fragment int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract fragment %d on %s: %v", e.Fragment, e.PageURL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ValidationError reports a candidate that failed field-level validation.
type ValidationError struct {
	URL    string
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid candidate %q (%s): %s", e.URL, strings.Join(e.Fields, ", "), e.Reason)
}

// PersistenceError reports a failed store call. The offending URL is always
// attached; the upserter counts the item as FAILED and moves on.
type PersistenceError struct {
	Op  string
	URL string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s for %s: %v", e.Op, e.URL, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// FatalConfigError reports missing or invalid configuration. It is the only
// error class that aborts the run before any fetch begins.
type FatalConfigError struct {
	Err error
}

func (e *FatalConfigError) Error() string {
	return fmt.Sprintf("fatal configuration error: %v", e.Err)
}

func (e *FatalConfigError) Unwrap() error { return e.Err }
