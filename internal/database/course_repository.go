package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursepulse/ingest/internal/domain"
)

// courseColumns lists every column of the courses table, in schema order.
const courseColumns = `id, title, instructor, url, thumbnail_url,
	price_krw, discount_price_krw, rating, review_count, student_count,
	category, subcategory, difficulty_level, duration, is_trending,
	created_at, updated_at`

// updatableColumns whitelists the columns Update may touch. Anything else in
// the fields map is a programming error.
var updatableColumns = map[string]struct{}{
	"title":              {},
	"instructor":         {},
	"thumbnail_url":      {},
	"price_krw":          {},
	"discount_price_krw": {},
	"rating":             {},
	"review_count":       {},
	"student_count":      {},
	"category":           {},
	"subcategory":        {},
	"difficulty_level":   {},
	"duration":           {},
}

// CourseRepository handles database operations for course records.
// Each method is a single statement and therefore atomic from the caller's
// perspective: a concurrent reader never observes a half-written record.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByURL retrieves the course record for a URL, or nil when absent.
func (r *CourseRepository) FindByURL(ctx context.Context, courseURL string) (*domain.CourseRecord, error) {
	var record domain.CourseRecord
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE url = $1`, courseColumns)

	err := r.db.GetContext(ctx, &record, query, courseURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find course by url: %w", err)
	}

	return &record, nil
}

// Insert stores a new course record. The returned bool reports whether this
// call created the row: on a URL conflict with a concurrent run it is false
// and the pre-existing record is returned, so the caller never creates a
// duplicate for the same URL and never counts the other run's insert as its
// own.
func (r *CourseRepository) Insert(ctx context.Context, record *domain.CourseRecord) (*domain.CourseRecord, bool, error) {
	record.ID = uuid.NewString()

	query := `
		INSERT INTO courses (
			id, title, instructor, url, thumbnail_url,
			price_krw, discount_price_krw, rating, review_count, student_count,
			category, subcategory, difficulty_level, duration, is_trending
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (url) DO NOTHING
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		record.ID,
		record.Title,
		record.Instructor,
		record.URL,
		record.ThumbnailURL,
		record.OriginalPrice,
		record.SalePrice,
		record.Rating,
		record.ReviewCount,
		record.StudentCount,
		record.Category,
		record.Subcategory,
		record.DifficultyLevel,
		record.Duration,
		record.IsTrending,
	).Scan(&record.CreatedAt, &record.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race to a concurrent run: the row already exists.
		existing, findErr := r.FindByURL(ctx, record.URL)
		if findErr != nil {
			return nil, false, findErr
		}
		if existing == nil {
			return nil, false, fmt.Errorf("insert conflict for %s but no existing row found", record.URL)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert course: %w", err)
	}

	return record, true, nil
}

// Update applies the given column/value pairs to a record and bumps
// updated_at. Returns the full updated record.
func (r *CourseRepository) Update(
	ctx context.Context,
	id string,
	fields map[string]any,
) (*domain.CourseRecord, error) {
	if len(fields) == 0 {
		return nil, errors.New("update requires at least one field")
	}

	columns := make([]string, 0, len(fields))
	for column := range fields {
		if _, ok := updatableColumns[column]; !ok {
			return nil, fmt.Errorf("column %q is not updatable", column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	assignments := make([]string, 0, len(columns)+1)
	args := make([]any, 0, len(columns)+1)
	for i, column := range columns {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, i+1))
		args = append(args, fields[column])
	}
	assignments = append(assignments, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(
		`UPDATE courses SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(assignments, ", "), len(args), courseColumns,
	)

	var record domain.CourseRecord
	if err := r.db.GetContext(ctx, &record, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("course not found: %s", id)
		}
		return nil, fmt.Errorf("failed to update course: %w", err)
	}

	return &record, nil
}

// List retrieves stored courses ordered by most recently updated.
func (r *CourseRepository) List(ctx context.Context, limit, offset int) ([]*domain.CourseRecord, error) {
	var records []*domain.CourseRecord
	query := fmt.Sprintf(
		`SELECT %s FROM courses ORDER BY updated_at DESC LIMIT $1 OFFSET $2`,
		courseColumns,
	)

	if err := r.db.SelectContext(ctx, &records, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}

	if records == nil {
		records = []*domain.CourseRecord{}
	}

	return records, nil
}

// Count returns the total number of stored courses.
func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM courses`); err != nil {
		return 0, fmt.Errorf("failed to count courses: %w", err)
	}
	return count, nil
}
