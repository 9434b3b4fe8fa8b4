package sync

import (
	"fmt"
	"os"
	"strconv"
)

// Defaults for worker bounds. All three are overridable via environment.
const (
	DefaultMaxJobs        = 20
	DefaultMaxItemsPerJob = 150
	DefaultInboxBatchSize = 25
)

// Config bounds a single worker invocation.
type Config struct {
	// MaxJobs is the maximum number of jobs one worker invocation claims
	// before exiting.
	MaxJobs int
	// MaxItemsPerJob caps the total inbox items drained for one job.
	MaxItemsPerJob int
	// InboxBatchSize is the page size for each inbox fetch.
	InboxBatchSize int
}

// DefaultConfig returns the built-in worker bounds.
func DefaultConfig() Config {
	return Config{
		MaxJobs:        DefaultMaxJobs,
		MaxItemsPerJob: DefaultMaxItemsPerJob,
		InboxBatchSize: DefaultInboxBatchSize,
	}
}

// LoadConfig reads worker bounds from the environment and validates them.
// Invalid values are a configuration error: the caller must fail fast
// before any processing is attempted.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	var err error
	if cfg.MaxJobs, err = intFromEnv("MAX_JOBS", cfg.MaxJobs); err != nil {
		return Config{}, err
	}
	if cfg.MaxItemsPerJob, err = intFromEnv("MAX_ITEMS_PER_JOB", cfg.MaxItemsPerJob); err != nil {
		return Config{}, err
	}
	if cfg.InboxBatchSize, err = intFromEnv("INBOX_BATCH_SIZE", cfg.InboxBatchSize); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// Validate checks that every bound is a positive integer.
func (c Config) Validate() error {
	if c.MaxJobs <= 0 {
		return fmt.Errorf("MAX_JOBS must be a positive integer, got %d", c.MaxJobs)
	}
	if c.MaxItemsPerJob <= 0 {
		return fmt.Errorf("MAX_ITEMS_PER_JOB must be a positive integer, got %d", c.MaxItemsPerJob)
	}
	if c.InboxBatchSize <= 0 {
		return fmt.Errorf("INBOX_BATCH_SIZE must be a positive integer, got %d", c.InboxBatchSize)
	}
	return nil
}

// intFromEnv parses an integer environment variable, returning the
// fallback when the variable is unset or empty.
func intFromEnv(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q: %w", name, raw, err)
	}
	return v, nil
}
