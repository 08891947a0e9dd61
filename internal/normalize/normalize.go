// Package normalize enforces field-level constraints on course candidates.
//
// Upstream data is known to be messy, so the normalizer favors keeping data
// over rejecting it: correctable anomalies are fixed and flagged for the run
// report, and only structurally broken candidates are rejected.
package normalize

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/coursepulse/ingest/internal/domain"
)

// Rating bounds for clamping.
const (
	minRating = 0.0
	maxRating = 5.0
)

// Normalizer validates and normalizes course candidates.
type Normalizer struct {
	allowedSchemes map[string]struct{}
}

// New creates a normalizer accepting http and https course URLs.
func New() *Normalizer {
	return &Normalizer{
		allowedSchemes: map[string]struct{}{
			"http":  {},
			"https": {},
		},
	}
}

// Normalize returns the normalized candidate and the names of any anomalies
// that were auto-corrected, or a ValidationError naming the failing fields.
func (n *Normalizer) Normalize(c domain.CourseCandidate) (domain.CourseCandidate, []string, error) {
	var anomalies []string

	c.Title = strings.TrimSpace(c.Title)
	c.Instructor = strings.TrimSpace(c.Instructor)

	var badFields []string
	if c.Title == "" {
		badFields = append(badFields, "title")
	}
	if c.Instructor == "" {
		badFields = append(badFields, "instructor")
	}
	if urlErr := n.validateURL(c.URL); urlErr != nil {
		badFields = append(badFields, "url")
	}
	if len(badFields) > 0 {
		return domain.CourseCandidate{}, nil, &domain.ValidationError{
			URL:    c.URL,
			Fields: badFields,
			Reason: "required fields missing or malformed",
		}
	}

	// Negative prices are data-entry noise; treat as absent.
	if c.OriginalPrice != nil && *c.OriginalPrice < 0 {
		c.OriginalPrice = nil
	}
	if c.SalePrice != nil && *c.SalePrice < 0 {
		c.SalePrice = nil
	}

	// A sale price above the original price is a data-entry anomaly, not a
	// fatal error: discard the sale price and keep the course.
	if c.OriginalPrice != nil && c.SalePrice != nil && *c.SalePrice > *c.OriginalPrice {
		c.SalePrice = nil
		anomalies = append(anomalies, domain.AnomalySalePriceDiscarded)
	}

	if c.Rating != nil {
		if clamped, changed := clampRating(*c.Rating); changed {
			c.Rating = domain.Float64Ptr(clamped)
			anomalies = append(anomalies, domain.AnomalyRatingClamped)
		}
	}

	if c.ReviewCount < 0 {
		c.ReviewCount = 0
	}
	if c.StudentCount < 0 {
		c.StudentCount = 0
	}

	return c, anomalies, nil
}

// validateURL requires a well-formed absolute URL with an allowed scheme.
func (n *Normalizer) validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("url %q is not absolute", raw)
	}
	if _, ok := n.allowedSchemes[u.Scheme]; !ok {
		return fmt.Errorf("url scheme %q is not allowed", u.Scheme)
	}
	return nil
}

// clampRating clamps a rating into [0, 5] and reports whether it changed.
func clampRating(r float64) (float64, bool) {
	switch {
	case r < minRating:
		return minRating, true
	case r > maxRating:
		return maxRating, true
	default:
		return r, false
	}
}
