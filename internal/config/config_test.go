package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursepulse/ingest/internal/config"
	"github.com/coursepulse/ingest/internal/domain"
)

// withViper resets the global Viper state around a test.
func withViper(t *testing.T, values map[string]any) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	for key, value := range values {
		viper.Set(key, value)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	withViper(t, map[string]any{
		"store.url":         "postgres://db.example.com:5432/courses",
		"store.service_key": "secret",
	})

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.DefaultBaseURL, cfg.Source.BaseURL)
	assert.Equal(t, config.DefaultCategory, cfg.Source.Category)
	assert.Equal(t, config.DefaultUserAgent, cfg.Source.UserAgent)
	assert.Equal(t, config.DefaultMaxItems, cfg.Pipeline.MaxItems)
	assert.Equal(t, config.DefaultWorkers, cfg.Pipeline.Workers)
	assert.Equal(t, config.DefaultRunTimeout, cfg.Pipeline.RunTimeout)
	assert.Equal(t, config.DefaultOutputDir, cfg.Pipeline.OutputDir)
	assert.Equal(t, config.DefaultParallelism, cfg.Fetcher.Parallelism)
	assert.Equal(t, config.DefaultMaxRetries, cfg.Fetcher.MaxRetries)
	assert.Equal(t, config.DefaultRetryDelay, cfg.Fetcher.RetryDelay)
	assert.Equal(t, config.DefaultRequestTimeout, cfg.Fetcher.RequestTimeout)
	assert.Equal(t, config.DefaultMaxPages, cfg.Fetcher.MaxPages)
}

func TestLoad_OverridesWin(t *testing.T) {
	withViper(t, map[string]any{
		"store.url":           "postgres://db.example.com:5432/courses",
		"store.service_key":   "secret",
		"source.category":     "data-science",
		"pipeline.max_items":  50,
		"pipeline.headless":   true,
		"fetcher.parallelism": 4,
		"fetcher.retry_delay": "500ms",
	})

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "data-science", cfg.Source.Category)
	assert.Equal(t, 50, cfg.Pipeline.MaxItems)
	assert.True(t, cfg.Pipeline.Headless)
	assert.Equal(t, 4, cfg.Fetcher.Parallelism)
	assert.Equal(t, 500*time.Millisecond, cfg.Fetcher.RetryDelay)
}

func TestLoad_MissingStoreURLIsFatal(t *testing.T) {
	withViper(t, map[string]any{
		"store.service_key": "secret",
	})

	_, err := config.Load()
	require.Error(t, err)

	var fatal *domain.FatalConfigError
	require.True(t, errors.As(err, &fatal))
	assert.Contains(t, fatal.Error(), "STORE_URL")
}

func TestLoad_MissingServiceKeyIsFatal(t *testing.T) {
	withViper(t, map[string]any{
		"store.url": "postgres://db.example.com:5432/courses",
	})

	_, err := config.Load()
	require.Error(t, err)

	var fatal *domain.FatalConfigError
	require.True(t, errors.As(err, &fatal))
	assert.Contains(t, fatal.Error(), "STORE_SERVICE_KEY")
}

func TestLoad_ParallelismAboveMaximumIsFatal(t *testing.T) {
	withViper(t, map[string]any{
		"store.url":           "postgres://db.example.com:5432/courses",
		"store.service_key":   "secret",
		"fetcher.parallelism": config.MaxParallelism + 1,
	})

	_, err := config.Load()
	require.Error(t, err)

	var fatal *domain.FatalConfigError
	assert.True(t, errors.As(err, &fatal))
}

func TestLoad_NegativeMaxItemsIsFatal(t *testing.T) {
	withViper(t, map[string]any{
		"store.url":          "postgres://db.example.com:5432/courses",
		"store.service_key":  "secret",
		"pipeline.max_items": -5,
	})

	_, err := config.Load()
	require.Error(t, err, "an explicit invalid value must abort, not fall back to the default")

	var fatal *domain.FatalConfigError
	require.True(t, errors.As(err, &fatal))
	assert.Contains(t, fatal.Error(), "max items")
}

func TestLoad_NegativeLimitsAreFatal(t *testing.T) {
	cases := map[string]any{
		"pipeline.workers":        -1,
		"pipeline.run_timeout":    "-1m",
		"fetcher.max_pages":       -3,
		"fetcher.max_retries":     -1,
		"fetcher.retry_delay":     "-2s",
		"fetcher.parallelism":     -2,
		"fetcher.request_timeout": "-30s",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			withViper(t, map[string]any{
				"store.url":         "postgres://db.example.com:5432/courses",
				"store.service_key": "secret",
				key:                 value,
			})

			_, err := config.Load()
			require.Error(t, err)

			var fatal *domain.FatalConfigError
			assert.True(t, errors.As(err, &fatal))
		})
	}
}

func TestValidate_RejectsNonPositiveMaxItems(t *testing.T) {
	cfg := &config.Config{
		Store:  config.StoreConfig{URL: "postgres://db.example.com:5432/courses", ServiceKey: "secret"},
		Source: config.SourceConfig{Category: "it-programming"},
	}
	cfg.Pipeline.MaxItems = -1

	err := cfg.Validate()
	require.Error(t, err)

	var fatal *domain.FatalConfigError
	assert.True(t, errors.As(err, &fatal))
}
