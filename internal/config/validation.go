package config

import (
	"fmt"

	"github.com/LeJamon/goLedgerApply/internal/bucket"
	"github.com/LeJamon/goLedgerApply/internal/bucket/store"
	"go.uber.org/zap/zapcore"
)

// ValidateConfig performs validation on the complete configuration
func ValidateConfig(config *Config) error {
	if err := config.Database.Validate(); err != nil {
		return fmt.Errorf("database config validation failed: %w", err)
	}
	if err := config.Bucket.Validate(); err != nil {
		return fmt.Errorf("bucket config validation failed: %w", err)
	}
	if err := config.Apply.Validate(); err != nil {
		return fmt.Errorf("apply config validation failed: %w", err)
	}
	if config.Cache.Size <= 0 {
		return fmt.Errorf("cache size must be positive, got %d", config.Cache.Size)
	}
	if err := config.Log.Validate(); err != nil {
		return fmt.Errorf("log config validation failed: %w", err)
	}
	return nil
}

// Validate checks the [bucket] section
func (b *BucketConfig) Validate() error {
	switch b.Backend {
	case store.BackendPebble, store.BackendLevelDB:
	default:
		return fmt.Errorf("invalid bucket backend: %s (valid options: %s, %s)",
			b.Backend, store.BackendPebble, store.BackendLevelDB)
	}
	if _, err := store.GetCompressor(b.Compressor); err != nil {
		return err
	}
	if b.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", b.BatchSize)
	}
	return nil
}

// Validate checks the [apply] section
func (a *ApplyConfig) Validate() error {
	if a.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", a.ChunkSize)
	}
	if a.ProgressInterval <= 0 {
		return fmt.Errorf("progress_interval must be positive, got %d", a.ProgressInterval)
	}
	if _, err := bucket.ParseBatching(a.Batching); err != nil {
		return err
	}
	return nil
}

// Validate checks the [log] section
func (l *LogConfig) Validate() error {
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		return err
	}
	switch l.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("invalid log format: %s (valid options: json, console)", l.Format)
	}
}

// ApplicatorConfig converts the [apply] section.
func (a *ApplyConfig) ApplicatorConfig() (bucket.Config, error) {
	batching, err := bucket.ParseBatching(a.Batching)
	if err != nil {
		return bucket.Config{}, err
	}
	return bucket.Config{
		ChunkSize:        a.ChunkSize,
		ProgressInterval: a.ProgressInterval,
		Batching:         batching,
		Instrument:       a.Instrument,
		LedgerSeq:        a.LedgerSeq,
	}, nil
}

// StoreConfig converts the [bucket] section.
func (b *BucketConfig) StoreConfig() store.Config {
	return store.Config{
		Path:       b.Path,
		Backend:    b.Backend,
		Compressor: b.Compressor,
		BatchSize:  b.BatchSize,
	}
}
