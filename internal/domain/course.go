// Package domain defines the core data types shared across the ingestion pipeline.
package domain

import "time"

// CourseCandidate is a freshly parsed, not-yet-persisted course listing.
// It is produced by the extractor, normalized by the validator, and discarded
// after the persistence decision.
type CourseCandidate struct {
	Title        string   `json:"title"`
	Instructor   string   `json:"instructor"`
	URL          string   `json:"url"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	Category     string   `json:"category,omitempty"`
	Subcategory  string   `json:"subcategory,omitempty"`
	// Prices are KRW integers. Nil means the page did not expose the value.
	OriginalPrice *int64   `json:"original_price,omitempty"`
	SalePrice     *int64   `json:"sale_price,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	ReviewCount   int64    `json:"review_count"`
	StudentCount  int64    `json:"student_count"`
}

// CourseRecord is the durable, store-resident version of a course entry.
// Exactly one record exists per distinct URL.
type CourseRecord struct {
	ID           string  `db:"id" json:"id"`
	Title        string  `db:"title" json:"title"`
	Instructor   string  `db:"instructor" json:"instructor"`
	URL          string  `db:"url" json:"url"`
	ThumbnailURL *string `db:"thumbnail_url" json:"thumbnail_url,omitempty"`

	OriginalPrice *int64   `db:"price_krw" json:"price_krw,omitempty"`
	SalePrice     *int64   `db:"discount_price_krw" json:"discount_price_krw,omitempty"`
	Rating        *float64 `db:"rating" json:"rating,omitempty"`
	ReviewCount   int64    `db:"review_count" json:"review_count"`
	StudentCount  int64    `db:"student_count" json:"student_count"`

	// Classification fields are manually curated. Automated runs only
	// backfill them when unset and never overwrite a non-null value.
	Category        *string `db:"category" json:"category,omitempty"`
	Subcategory     *string `db:"subcategory" json:"subcategory,omitempty"`
	DifficultyLevel *string `db:"difficulty_level" json:"difficulty_level,omitempty"`
	Duration        *string `db:"duration" json:"duration,omitempty"`

	IsTrending bool `db:"is_trending" json:"is_trending"`

	// CreatedAt is immutable after the first insert. UpdatedAt advances
	// monotonically on every successful update.
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Int64Ptr returns a pointer to v. Convenience for building candidates.
func Int64Ptr(v int64) *int64 { return &v }

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// Int64PtrEqual reports whether two optional integers hold the same value.
func Int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Float64PtrEqual reports whether two optional floats hold the same value.
func Float64PtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
