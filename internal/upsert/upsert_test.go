package upsert_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursepulse/ingest/internal/domain"
	"github.com/coursepulse/ingest/internal/logger"
	"github.com/coursepulse/ingest/internal/upsert"
)

// memStore is an in-memory Store with the same observable semantics as the
// course repository: URL-unique records, immutable created_at, monotonically
// advancing updated_at.
type memStore struct {
	mu     sync.Mutex
	byURL  map[string]*domain.CourseRecord
	nextID int

	findErr   error
	insertErr error
	updateErr error

	// missFinds makes the next N FindByURL calls come up empty even when the
	// row exists, simulating a concurrent run inserting between the lookup
	// and the insert.
	missFinds int
}

func newMemStore() *memStore {
	return &memStore{byURL: make(map[string]*domain.CourseRecord)}
}

func (s *memStore) FindByURL(_ context.Context, url string) (*domain.CourseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.missFinds > 0 {
		s.missFinds--
		return nil, nil
	}
	record, ok := s.byURL[url]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (s *memStore) Insert(_ context.Context, record *domain.CourseRecord) (*domain.CourseRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, false, s.insertErr
	}
	if existing, ok := s.byURL[record.URL]; ok {
		clone := *existing
		return &clone, false, nil
	}

	s.nextID++
	record.ID = fmt.Sprintf("id-%d", s.nextID)
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	clone := *record
	s.byURL[record.URL] = &clone
	result := *record
	return &result, true, nil
}

func (s *memStore) Update(_ context.Context, id string, fields map[string]any) (*domain.CourseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return nil, s.updateErr
	}

	for _, record := range s.byURL {
		if record.ID != id {
			continue
		}
		applyFields(record, fields)
		now := time.Now().UTC()
		if !now.After(record.UpdatedAt) {
			now = record.UpdatedAt.Add(time.Nanosecond)
		}
		record.UpdatedAt = now
		clone := *record
		return &clone, nil
	}
	return nil, fmt.Errorf("course not found: %s", id)
}

func applyFields(record *domain.CourseRecord, fields map[string]any) {
	for column, value := range fields {
		switch column {
		case "price_krw":
			record.OriginalPrice = value.(*int64)
		case "discount_price_krw":
			record.SalePrice = value.(*int64)
		case "rating":
			record.Rating = value.(*float64)
		case "review_count":
			record.ReviewCount = value.(int64)
		case "student_count":
			record.StudentCount = value.(int64)
		case "category":
			record.Category = domain.StringPtr(value.(string))
		case "subcategory":
			record.Subcategory = domain.StringPtr(value.(string))
		}
	}
}

func candidate() domain.CourseCandidate {
	return domain.CourseCandidate{
		Title:         "스프링 부트 핵심 원리",
		Instructor:    "김영한",
		URL:           "https://example.com/course/spring-boot",
		Category:      "it-programming",
		OriginalPrice: domain.Int64Ptr(99000),
		SalePrice:     domain.Int64Ptr(49500),
		Rating:        domain.Float64Ptr(4.9),
		ReviewCount:   1234,
		StudentCount:  12345,
	}
}

func TestApply_InsertWhenAbsent(t *testing.T) {
	store := newMemStore()
	u := upsert.New(store, logger.NewNoOp())

	outcome, record, err := u.Apply(context.Background(), candidate())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeInserted, outcome)
	require.NotNil(t, record)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, record.CreatedAt, record.UpdatedAt,
		"a fresh insert has created_at == updated_at")

	stored, err := store.FindByURL(context.Background(), candidate().URL)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotNil(t, stored.Category)
	assert.Equal(t, "it-programming", *stored.Category)
}

func TestApply_SkipWhenIdentical(t *testing.T) {
	store := newMemStore()
	u := upsert.New(store, logger.NewNoOp())
	ctx := context.Background()

	_, inserted, err := u.Apply(ctx, candidate())
	require.NoError(t, err)

	outcome, record, err := u.Apply(ctx, candidate())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkipped, outcome)
	assert.Equal(t, inserted.UpdatedAt, record.UpdatedAt,
		"a skip must not bump updated_at")
}

func TestApply_UpdateWhenStudentCountDiffers(t *testing.T) {
	store := newMemStore()
	u := upsert.New(store, logger.NewNoOp())
	ctx := context.Background()

	_, inserted, err := u.Apply(ctx, candidate())
	require.NoError(t, err)

	changed := candidate()
	changed.StudentCount = 20000

	outcome, record, err := u.Apply(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUpdated, outcome)
	assert.Equal(t, int64(20000), record.StudentCount)
	assert.True(t, record.UpdatedAt.After(inserted.UpdatedAt),
		"updated_at must strictly increase on update")
	assert.Equal(t, inserted.CreatedAt, record.CreatedAt,
		"created_at is immutable")
}

// Classification fields are manually curated: automated updates must never
// overwrite one that is already set.
func TestApply_CurationWinsOverRescrape(t *testing.T) {
	store := newMemStore()
	u := upsert.New(store, logger.NewNoOp())
	ctx := context.Background()

	_, inserted, err := u.Apply(ctx, candidate())
	require.NoError(t, err)

	// Simulate manual curation.
	store.mu.Lock()
	store.byURL[inserted.URL].Category = domain.StringPtr("backend")
	store.mu.Unlock()

	changed := candidate()
	changed.StudentCount = 99999
	changed.Category = "it-programming"

	outcome, record, err := u.Apply(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUpdated, outcome)
	require.NotNil(t, record.Category)
	assert.Equal(t, "backend", *record.Category,
		"curated classification survives automated re-scrapes")
}

func TestDecide_BackfillsUnsetClassification(t *testing.T) {
	existing := &domain.CourseRecord{
		ID:            "id-1",
		URL:           "https://example.com/course/spring-boot",
		OriginalPrice: domain.Int64Ptr(99000),
		SalePrice:     domain.Int64Ptr(49500),
		Rating:        domain.Float64Ptr(4.9),
		ReviewCount:   1234,
		StudentCount:  12345,
	}

	changed := candidate()
	changed.StudentCount = 20000

	decision := upsert.Decide(changed, existing)
	require.Equal(t, upsert.ActionUpdate, decision.Action)
	assert.Equal(t, int64(20000), decision.Fields["student_count"])
	assert.Equal(t, "it-programming", decision.Fields["category"],
		"unset classification is backfilled alongside a real update")
}

func TestDecide_SkipComparesAllTrackedFields(t *testing.T) {
	existing := &domain.CourseRecord{
		ID:            "id-1",
		URL:           "https://example.com/course/spring-boot",
		OriginalPrice: domain.Int64Ptr(99000),
		SalePrice:     domain.Int64Ptr(49500),
		Rating:        domain.Float64Ptr(4.9),
		ReviewCount:   1234,
		StudentCount:  12345,
	}

	decision := upsert.Decide(candidate(), existing)
	assert.Equal(t, upsert.ActionSkip, decision.Action)

	// Each tracked field difference alone must flip the decision to update.
	mutations := map[string]func(*domain.CourseCandidate){
		"price_krw":          func(c *domain.CourseCandidate) { c.OriginalPrice = domain.Int64Ptr(88000) },
		"discount_price_krw": func(c *domain.CourseCandidate) { c.SalePrice = nil },
		"rating":             func(c *domain.CourseCandidate) { c.Rating = domain.Float64Ptr(4.8) },
		"review_count":       func(c *domain.CourseCandidate) { c.ReviewCount = 1235 },
		"student_count":      func(c *domain.CourseCandidate) { c.StudentCount = 1 },
	}

	for field, mutate := range mutations {
		t.Run(field, func(t *testing.T) {
			c := candidate()
			mutate(&c)

			decision := upsert.Decide(c, existing)
			require.Equal(t, upsert.ActionUpdate, decision.Action)
			assert.Contains(t, decision.Fields, field)
		})
	}
}

func TestApply_LostInsertRaceIsNotCountedAsInsert(t *testing.T) {
	store := newMemStore()
	u := upsert.New(store, logger.NewNoOp())
	ctx := context.Background()

	// The row exists (inserted by "another run") but the lookup misses it.
	_, winner, err := u.Apply(ctx, candidate())
	require.NoError(t, err)
	store.missFinds = 1

	outcome, record, err := u.Apply(ctx, candidate())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkipped, outcome,
		"the other run's insert must not be counted twice")
	assert.Equal(t, winner.ID, record.ID)
	assert.Equal(t, winner.UpdatedAt, record.UpdatedAt)
}

func TestApply_LostInsertRaceReconcilesDifferences(t *testing.T) {
	store := newMemStore()
	u := upsert.New(store, logger.NewNoOp())
	ctx := context.Background()

	_, winner, err := u.Apply(ctx, candidate())
	require.NoError(t, err)
	store.missFinds = 1

	changed := candidate()
	changed.StudentCount = 20000

	outcome, record, err := u.Apply(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUpdated, outcome,
		"a differing candidate still updates the winner's row")
	assert.Equal(t, winner.ID, record.ID)
	assert.Equal(t, int64(20000), record.StudentCount)
}

func TestApply_PersistenceErrorCarriesURL(t *testing.T) {
	store := newMemStore()
	store.findErr = errors.New("connection reset")
	u := upsert.New(store, logger.NewNoOp())

	outcome, _, err := u.Apply(context.Background(), candidate())
	assert.Equal(t, domain.OutcomeFailed, outcome)

	var persistenceErr *domain.PersistenceError
	require.True(t, errors.As(err, &persistenceErr))
	assert.Equal(t, candidate().URL, persistenceErr.URL)
	assert.Equal(t, "find", persistenceErr.Op)
}
