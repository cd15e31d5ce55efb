package store

import "time"

// Config holds configuration for the Store.
type Config struct {
	// TableName is the document table.
	// Default: "Movies"
	TableName string

	// KeyAttribute is the table's partition key attribute.
	// Default: "tconst"
	KeyAttribute string

	// BatchSize is the number of put requests per BatchWriteItem call.
	// Default: 25
	// Max: 25
	BatchSize int

	// Retry bounds the resubmission of unprocessed items.
	Retry RetryConfig
}

// RetryConfig is the exponential backoff applied between resubmissions of
// unprocessed items. Each wait is drawn from
// [interval*(1-RandomizationFactor), interval*(1+RandomizationFactor)] and
// the interval grows by Multiplier up to MaxInterval.
type RetryConfig struct {
	// MaxRetries is the number of resubmissions per chunk before the write
	// fails with a FatalWriteError.
	// Default: 10
	// Min: 1
	MaxRetries int

	// InitialInterval is the first wait.
	// Default: 1s
	InitialInterval time.Duration

	// MaxInterval caps a single wait.
	// Default: 30s
	MaxInterval time.Duration

	// Multiplier grows the interval after each wait.
	// Default: 2
	Multiplier float64

	// RandomizationFactor is the jitter ratio. The shortest wait is
	// interval*(1-RandomizationFactor).
	// Default: 0.5
	// Max: 0.9
	RandomizationFactor float64
}

// maxRandomization keeps the shortest jittered wait above zero.
const maxRandomization = 0.9

// DefaultConfig returns the defaults for the Movies table.
func DefaultConfig() Config {
	return Config{
		TableName:    "Movies",
		KeyAttribute: "tconst",
		BatchSize:    25,
		Retry: RetryConfig{
			MaxRetries:          10,
			InitialInterval:     time.Second,
			MaxInterval:         30 * time.Second,
			Multiplier:          2,
			RandomizationFactor: 0.5,
		},
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	d := DefaultConfig()
	if c.TableName == "" {
		c.TableName = d.TableName
	}
	if c.KeyAttribute == "" {
		c.KeyAttribute = d.KeyAttribute
	}
	if c.BatchSize < 1 || c.BatchSize > 25 {
		c.BatchSize = d.BatchSize
	}
	if c.Retry.MaxRetries < 1 {
		c.Retry.MaxRetries = d.Retry.MaxRetries
	}
	if c.Retry.InitialInterval <= 0 {
		c.Retry.InitialInterval = d.Retry.InitialInterval
	}
	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		c.Retry.MaxInterval = c.Retry.InitialInterval
	}
	if c.Retry.Multiplier < 1 {
		c.Retry.Multiplier = 1
	}
	if c.Retry.RandomizationFactor < 0 {
		c.Retry.RandomizationFactor = 0
	}
	if c.Retry.RandomizationFactor > maxRandomization {
		c.Retry.RandomizationFactor = maxRandomization
	}
}
