// Package upsert reconciles normalized candidates against stored records.
//
// The insert-or-update-or-skip policy keeps the store idempotent under
// repeated runs: with unchanged upstream data a re-run mutates no rows and
// bumps no timestamps.
package upsert

import (
	"context"

	"github.com/coursepulse/ingest/internal/domain"
	"github.com/coursepulse/ingest/internal/logger"
)

// Store is the narrow persistence gateway the upserter depends on.
type Store interface {
	// FindByURL returns the record for a URL, or nil when absent.
	FindByURL(ctx context.Context, url string) (*domain.CourseRecord, error)
	// Insert stores a new record, returning the stored version and whether
	// this call created the row. False means a concurrent run inserted the
	// URL first and the returned record is that run's row.
	Insert(ctx context.Context, record *domain.CourseRecord) (*domain.CourseRecord, bool, error)
	// Update applies column/value pairs to a record and returns the result.
	Update(ctx context.Context, id string, fields map[string]any) (*domain.CourseRecord, error)
}

// Action is the deduplication verdict for one candidate.
type Action int

const (
	// ActionInsert means no record exists for the candidate's URL.
	ActionInsert Action = iota
	// ActionUpdate means the stored record differs in a tracked field.
	ActionUpdate
	// ActionSkip means the stored record is identical in all tracked fields;
	// writing would only bump updated_at for nothing.
	ActionSkip
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionUpdate:
		return "update"
	case ActionSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Decision is the tagged result of deduplicating one candidate.
type Decision struct {
	Action   Action
	Existing *domain.CourseRecord
	// Fields holds the column/value pairs for ActionUpdate.
	Fields map[string]any
}

// Decide compares a normalized candidate with the stored record for its URL.
// Equality is exact, field by field, over the tracked subset: original
// price, sale price, rating, review count, student count.
//
// Classification fields (category/subcategory) are manually curated and are
// never overwritten once set; an update only backfills them while unset.
func Decide(candidate domain.CourseCandidate, existing *domain.CourseRecord) Decision {
	if existing == nil {
		return Decision{Action: ActionInsert}
	}

	fields := map[string]any{}
	if !domain.Int64PtrEqual(candidate.OriginalPrice, existing.OriginalPrice) {
		fields["price_krw"] = candidate.OriginalPrice
	}
	if !domain.Int64PtrEqual(candidate.SalePrice, existing.SalePrice) {
		fields["discount_price_krw"] = candidate.SalePrice
	}
	if !domain.Float64PtrEqual(candidate.Rating, existing.Rating) {
		fields["rating"] = candidate.Rating
	}
	if candidate.ReviewCount != existing.ReviewCount {
		fields["review_count"] = candidate.ReviewCount
	}
	if candidate.StudentCount != existing.StudentCount {
		fields["student_count"] = candidate.StudentCount
	}

	if len(fields) == 0 {
		return Decision{Action: ActionSkip, Existing: existing}
	}

	// Piggyback classification backfill on a real update.
	if isUnset(existing.Category) && candidate.Category != "" {
		fields["category"] = candidate.Category
	}
	if isUnset(existing.Subcategory) && candidate.Subcategory != "" {
		fields["subcategory"] = candidate.Subcategory
	}

	return Decision{Action: ActionUpdate, Existing: existing, Fields: fields}
}

// isUnset reports whether a classification field has never been curated.
func isUnset(s *string) bool {
	return s == nil || *s == ""
}

// Upserter applies deduplication decisions against the store.
type Upserter struct {
	store Store
	log   logger.Interface
}

// New creates an upserter.
func New(store Store, log logger.Interface) *Upserter {
	return &Upserter{store: store, log: log.WithComponent("upserter")}
}

// Apply looks up the candidate's URL, decides insert/update/skip, and
// executes the decision. Store failures come back as PersistenceErrors with
// the offending URL attached so the caller can count the item as FAILED and
// move on. An insert that loses the URL race to a concurrent run is
// reconciled against the winner's row instead of being counted as an insert.
func (u *Upserter) Apply(
	ctx context.Context,
	candidate domain.CourseCandidate,
) (domain.Outcome, *domain.CourseRecord, error) {
	existing, err := u.store.FindByURL(ctx, candidate.URL)
	if err != nil {
		return domain.OutcomeFailed, nil, &domain.PersistenceError{Op: "find", URL: candidate.URL, Err: err}
	}

	decision := Decide(candidate, existing)

	if decision.Action == ActionInsert {
		record, created, insertErr := u.store.Insert(ctx, newRecord(candidate))
		if insertErr != nil {
			return domain.OutcomeFailed, nil, &domain.PersistenceError{Op: "insert", URL: candidate.URL, Err: insertErr}
		}
		if created {
			u.log.Debug("inserted course", "url", candidate.URL, "id", record.ID)
			return domain.OutcomeInserted, record, nil
		}

		u.log.Debug("lost insert race, reconciling against existing row",
			"url", candidate.URL, "id", record.ID)
		decision = Decide(candidate, record)
	}

	switch decision.Action {
	case ActionUpdate:
		record, updateErr := u.store.Update(ctx, decision.Existing.ID, decision.Fields)
		if updateErr != nil {
			return domain.OutcomeFailed, nil, &domain.PersistenceError{Op: "update", URL: candidate.URL, Err: updateErr}
		}
		u.log.Debug("updated course", "url", candidate.URL, "fields", len(decision.Fields))
		return domain.OutcomeUpdated, record, nil

	default:
		u.log.Debug("skipped unchanged course", "url", candidate.URL)
		return domain.OutcomeSkipped, decision.Existing, nil
	}
}

// newRecord builds the durable record for a first-time candidate.
func newRecord(c domain.CourseCandidate) *domain.CourseRecord {
	record := &domain.CourseRecord{
		Title:         c.Title,
		Instructor:    c.Instructor,
		URL:           c.URL,
		OriginalPrice: c.OriginalPrice,
		SalePrice:     c.SalePrice,
		Rating:        c.Rating,
		ReviewCount:   c.ReviewCount,
		StudentCount:  c.StudentCount,
	}
	if c.ThumbnailURL != "" {
		record.ThumbnailURL = domain.StringPtr(c.ThumbnailURL)
	}
	if c.Category != "" {
		record.Category = domain.StringPtr(c.Category)
	}
	if c.Subcategory != "" {
		record.Subcategory = domain.StringPtr(c.Subcategory)
	}
	return record
}
