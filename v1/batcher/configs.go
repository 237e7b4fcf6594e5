package batcher

// Config tunes adaptive batch ingestion.
type Config struct {
	// MinBatchSize is the floor the batch size can shrink to.
	MinBatchSize int `yaml:"min_batch_size" env:"BATCHER_MIN_BATCH_SIZE"`

	// MaxBatchSize is the cap the batch size can grow to.
	MaxBatchSize int `yaml:"max_batch_size" env:"BATCHER_MAX_BATCH_SIZE"`

	// Concurrency bounds how many chunks are in flight at once.
	Concurrency int `yaml:"concurrency" env:"BATCHER_CONCURRENCY"`

	// WindowSize is the rolling outcome window capacity.
	WindowSize int `yaml:"window_size" env:"BATCHER_WINDOW_SIZE"`
}

// Adaptation constants: at a window success rate of GrowThreshold or above
// the batch size grows by 20%, below ShrinkThreshold it shrinks by 20%.
const (
	growThreshold   = 0.95
	shrinkThreshold = 0.80
	growthFactor    = 1.2
	shrinkFactor    = 0.8
)

// DefaultConfig provides sensible defaults for most ingestion workloads.
func DefaultConfig() Config {
	return Config{
		MinBatchSize: 50,
		MaxBatchSize: 800,
		Concurrency:  4,
		WindowSize:   10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinBatchSize <= 0 {
		c.MinBatchSize = d.MinBatchSize
	}
	if c.MaxBatchSize < c.MinBatchSize {
		c.MaxBatchSize = c.MinBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.WindowSize <= 0 {
		c.WindowSize = d.WindowSize
	}
	return c
}
