package common

import (
	"context"
	"fmt"
	"time"

	"github.com/coursepulse/ingest/internal/artifact"
	"github.com/coursepulse/ingest/internal/database"
	"github.com/coursepulse/ingest/internal/extractor"
	"github.com/coursepulse/ingest/internal/fetcher"
	"github.com/coursepulse/ingest/internal/normalize"
	"github.com/coursepulse/ingest/internal/pipeline"
	"github.com/coursepulse/ingest/internal/upsert"
)

// scrapeMethod identifies how listings were collected, echoed in artifacts.
const scrapeMethod = "http"

// RunIngestion wires the pipeline from config, executes one run, and writes
// the courses and run-report artifacts. The returned error is fatal (store
// connection, artifact I/O); per-item failures live in the report.
func RunIngestion(ctx context.Context, deps *Deps) error {
	cfg := deps.Config
	log := deps.Logger

	db, err := database.NewPostgresConnection(cfg.Store.URL, cfg.Store.ServiceKey)
	if err != nil {
		return fmt.Errorf("failed to connect to course store: %w", err)
	}
	defer db.Close()

	repo := database.NewCourseRepository(db)
	extract := extractor.New(cfg.Source.Category)

	fetch := fetcher.New(fetcher.Config{
		BaseURL:        cfg.Source.BaseURL,
		UserAgent:      cfg.Source.UserAgent,
		RequestTimeout: cfg.Fetcher.RequestTimeout,
		MaxRetries:     cfg.Fetcher.MaxRetries,
		RetryDelay:     cfg.Fetcher.RetryDelay,
		Parallelism:    cfg.Fetcher.Parallelism,
		MaxPages:       cfg.Fetcher.MaxPages,
	}, extract, log)

	pipe := pipeline.New(
		pipeline.Config{
			Category:   cfg.Source.Category,
			MaxItems:   cfg.Pipeline.MaxItems,
			Workers:    cfg.Pipeline.Workers,
			RunTimeout: cfg.Pipeline.RunTimeout,
		},
		fetch,
		extract,
		normalize.New(),
		upsert.New(repo, log),
		log,
	)

	started := time.Now().UTC()
	result := pipe.Run(ctx)

	writer, err := artifact.NewWriter(cfg.Pipeline.OutputDir)
	if err != nil {
		return err
	}

	meta := artifact.Metadata{
		ScraperVersion:  cfg.App.Version,
		TotalCourses:    len(result.Candidates),
		FailedCourses:   result.Report.Failed,
		ScrapedAt:       started,
		DurationSeconds: result.Report.DurationSeconds,
		Config: artifact.ConfigEcho{
			Category: cfg.Source.Category,
			MaxItems: cfg.Pipeline.MaxItems,
			BaseURL:  cfg.Source.BaseURL,
			Headless: cfg.Pipeline.Headless,
			Method:   scrapeMethod,
		},
	}

	coursesPath, err := writer.WriteCourses(meta, result.Candidates)
	if err != nil {
		return err
	}
	reportPath, err := writer.WriteReport(result.Report)
	if err != nil {
		return err
	}

	log.Info("artifacts written",
		"courses", coursesPath,
		"report", reportPath,
	)

	return nil
}
