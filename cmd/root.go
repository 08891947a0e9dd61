// Package cmd implements the command-line interface for the course
// ingestion pipeline.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	coursescmd "github.com/coursepulse/ingest/cmd/courses"
	ingestcmd "github.com/coursepulse/ingest/cmd/ingest"
	schedulecmd "github.com/coursepulse/ingest/cmd/schedule"
	"github.com/coursepulse/ingest/internal/config"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "course-ingest",
		Short: "Course listing ingestion pipeline",
		Long: `course-ingest scrapes a paginated course-listing source for one category,
normalizes the listings, and upserts them into the shared course store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables are available to Viper.
	_ = godotenv.Load()

	// Parse flags early so the debug flag can influence logger setup.
	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("course-ingest version %s\n", viper.GetString("app.version"))
		},
	})

	rootCmd.AddCommand(ingestcmd.Command())
	rootCmd.AddCommand(coursescmd.Command())
	rootCmd.AddCommand(schedulecmd.Command())
}

// initConfig reads the config file and environment variables into Viper.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	// The config file is optional; environment variables and defaults cover
	// everything it would provide.
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config file not found: %v (using defaults and environment)\n", err)
	}

	if err := bindEnvVars(); err != nil {
		return err
	}

	if debug || viper.GetBool("app.debug") {
		viper.Set("logger.level", "debug")
	}
	if viper.GetString("app.environment") == "development" {
		viper.Set("logger.development", true)
		viper.Set("logger.encoding", "console")
	}

	return nil
}

// bindEnvVars maps well-known environment variables to config keys.
// The store credentials are read here and nowhere else.
func bindEnvVars() error {
	bindings := map[string][]string{
		"app.environment":    {"APP_ENV"},
		"app.debug":          {"APP_DEBUG"},
		"logger.level":       {"LOG_LEVEL"},
		"logger.encoding":    {"LOG_FORMAT"},
		"store.url":          {"STORE_URL"},
		"store.service_key":  {"STORE_SERVICE_KEY"},
		"source.base_url":    {"SOURCE_BASE_URL"},
		"source.category":    {"SOURCE_CATEGORY"},
		"pipeline.max_items": {"MAX_COURSES_PER_RUN"},
		"pipeline.headless":  {"HEADLESS_MODE"},
	}

	for key, envVars := range bindings {
		if err := viper.BindEnv(append([]string{key}, envVars...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", envVars[0], err)
		}
	}
	return nil
}

// setDefaults sets production-safe default configuration values.
func setDefaults() {
	viper.SetDefault("app", map[string]any{
		"name":        "course-ingest",
		"version":     "1.0.0",
		"environment": "production",
		"debug":       false,
	})

	viper.SetDefault("logger", map[string]any{
		"level":       "info",
		"development": false,
		"encoding":    "json",
	})

	viper.SetDefault("source", map[string]any{
		"base_url":   config.DefaultBaseURL,
		"category":   config.DefaultCategory,
		"user_agent": config.DefaultUserAgent,
	})

	viper.SetDefault("fetcher", map[string]any{
		"request_timeout": config.DefaultRequestTimeout.String(),
		"max_retries":     config.DefaultMaxRetries,
		"retry_delay":     config.DefaultRetryDelay.String(),
		"parallelism":     config.DefaultParallelism,
		"max_pages":       config.DefaultMaxPages,
	})

	viper.SetDefault("pipeline", map[string]any{
		"max_items":   config.DefaultMaxItems,
		"workers":     config.DefaultWorkers,
		"run_timeout": config.DefaultRunTimeout.String(),
		"output_dir":  config.DefaultOutputDir,
		"headless":    false,
	})
}
