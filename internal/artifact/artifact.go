// Package artifact writes the JSON outputs of a pipeline run.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coursepulse/ingest/internal/domain"
)

// Output file names inside the run's output directory.
const (
	CoursesFileName = "courses.json"
	ReportFileName  = "run-report.json"
)

// dirPerm is the permission mode for created output directories.
const dirPerm = 0o755

// filePerm is the permission mode for written artifacts.
const filePerm = 0o644

// Metadata is the envelope around the collected candidates. It echoes the
// run configuration for reproducibility; credentials are never included.
type Metadata struct {
	ScraperVersion  string     `json:"scraper_version"`
	TotalCourses    int        `json:"total_courses"`
	FailedCourses   int        `json:"failed_courses"`
	ScrapedAt       time.Time  `json:"scraped_at"`
	DurationSeconds float64    `json:"duration_seconds"`
	Config          ConfigEcho `json:"config"`
}

// ConfigEcho records the non-sensitive configuration the run used.
type ConfigEcho struct {
	Category string `json:"category"`
	MaxItems int    `json:"max_items"`
	BaseURL  string `json:"base_url"`
	Headless bool   `json:"headless"`
	Method   string `json:"method"`
}

// CoursesArtifact is the courses.json document.
type CoursesArtifact struct {
	Metadata Metadata                 `json:"metadata"`
	Courses  []domain.CourseCandidate `json:"courses"`
}

// Writer persists run artifacts under one output directory.
type Writer struct {
	outputDir string
}

// NewWriter creates a writer rooted at outputDir, creating it if needed.
func NewWriter(outputDir string) (*Writer, error) {
	if err := os.MkdirAll(outputDir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Writer{outputDir: outputDir}, nil
}

// WriteCourses writes the collected candidates with their metadata envelope.
func (w *Writer) WriteCourses(meta Metadata, courses []domain.CourseCandidate) (string, error) {
	if courses == nil {
		courses = []domain.CourseCandidate{}
	}
	doc := CoursesArtifact{Metadata: meta, Courses: courses}
	return w.writeJSON(CoursesFileName, doc)
}

// WriteReport writes the finalized run report.
func (w *Writer) WriteReport(report *domain.RunReport) (string, error) {
	return w.writeJSON(ReportFileName, report)
}

// writeJSON marshals v with indentation and writes it atomically enough for
// a single-writer pipeline: temp file then rename.
func (w *Writer) writeJSON(name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	path := filepath.Join(w.outputDir, name)
	tmp := path + ".tmp"

	if writeErr := os.WriteFile(tmp, data, filePerm); writeErr != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, writeErr)
	}
	if renameErr := os.Rename(tmp, path); renameErr != nil {
		return "", fmt.Errorf("failed to finalize %s: %w", name, renameErr)
	}

	return path, nil
}
