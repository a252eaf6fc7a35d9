package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"off-data-pipeline/internal/model"

	"github.com/joho/godotenv"
)

// Config holds the pipeline settings. Values come from the environment (and an
// optional .env file); the CLI overrides them with flags.
type Config struct {
	InputPath     string
	OutputPath    string
	Country       string
	TopN          int
	Workers       int
	PartitionSize int
	DBPath        string
	Exports       []string
	ExportDB      bool
	HTTPAddr      string
	OutputDir     string
	RunTimeout    string
}

// Defaults
const (
	DefaultOutputPath    = "./afterData.parquet"
	DefaultTopN          = 20
	DefaultPartitionSize = 50000
	DefaultDBPath        = "pipeline.db"
	DefaultHTTPAddr      = ":8080"
	DefaultOutputDir     = "./output"
	DefaultRunTimeout    = "30m"
)

// Load reads the configuration from the environment
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		InputPath:     os.Getenv("OFF_INPUT_PATH"),
		OutputPath:    DefaultOutputPath,
		Country:       model.DefaultCountry,
		TopN:          DefaultTopN,
		Workers:       runtime.NumCPU(),
		PartitionSize: DefaultPartitionSize,
		DBPath:        DefaultDBPath,
		HTTPAddr:      DefaultHTTPAddr,
		OutputDir:     DefaultOutputDir,
		RunTimeout:    DefaultRunTimeout,
	}

	if v := os.Getenv("OFF_OUTPUT_PATH"); v != "" {
		cfg.OutputPath = v
	}
	if v := os.Getenv("OFF_COUNTRY"); v != "" {
		cfg.Country = v
	}
	// an explicitly empty OFF_DB_PATH disables run history
	if v, ok := os.LookupEnv("OFF_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v := os.Getenv("OFF_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("OFF_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("OFF_RUN_TIMEOUT"); v != "" {
		cfg.RunTimeout = v
	}
	if v := os.Getenv("OFF_EXPORTS"); v != "" {
		cfg.Exports = SplitList(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"OFF_TOP_N", &cfg.TopN},
		{"OFF_WORKERS", &cfg.Workers},
		{"OFF_PARTITION_SIZE", &cfg.PartitionSize},
	}
	for _, e := range ints {
		raw := os.Getenv(e.key)
		if raw == "" {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%s is not a valid integer: %w", e.key, err)
		}
		*e.dst = parsed
	}

	if raw := os.Getenv("OFF_EXPORT_DB"); raw != "" {
		parsed, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("OFF_EXPORT_DB is not a valid boolean: %w", err)
		}
		cfg.ExportDB = parsed
	}

	return cfg, nil
}

// Validate checks the settings shared by every command
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.PartitionSize < 1 {
		errs = append(errs, fmt.Errorf("partition size must be at least 1, got %d", c.PartitionSize))
	}
	if strings.TrimSpace(c.Country) == "" {
		errs = append(errs, errors.New("country must not be blank"))
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		errs = append(errs, errors.New("output path must not be empty"))
	}
	return errors.Join(errs...)
}

// ValidateRun additionally requires an input for a batch run
func (c *Config) ValidateRun() error {
	err := c.Validate()
	if strings.TrimSpace(c.InputPath) == "" {
		err = errors.Join(err, errors.New("input path is required (--input or OFF_INPUT_PATH)"))
	}
	return err
}

// RunSpec builds the run settings of a batch run
func (c *Config) RunSpec() model.RunSpec {
	spec := model.RunSpec{
		InputPath:  c.InputPath,
		OutputPath: c.OutputPath,
		Country:    c.Country,
		TopN:       c.TopN,
	}
	if len(c.Exports) > 0 || c.ExportDB {
		spec.Export = &model.Export{Files: c.Exports, DB: c.ExportDB}
	}
	return spec
}

// SplitList splits a comma separated list, dropping blanks
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
