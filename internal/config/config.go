package config

import (
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
)

// Config represents the complete ledgerapply configuration
type Config struct {
	Database relationaldb.Config `toml:"database" mapstructure:"database"`
	Bucket   BucketConfig        `toml:"bucket" mapstructure:"bucket"`
	Apply    ApplyConfig         `toml:"apply" mapstructure:"apply"`
	Cache    CacheConfig         `toml:"cache" mapstructure:"cache"`
	Log      LogConfig           `toml:"log" mapstructure:"log"`
	Metrics  MetricsConfig       `toml:"metrics" mapstructure:"metrics"`

	configPath string
}

// BucketConfig represents the [bucket] section
type BucketConfig struct {
	Path       string `toml:"path" mapstructure:"path"`
	Backend    string `toml:"backend" mapstructure:"backend"`
	Compressor string `toml:"compressor" mapstructure:"compressor"`
	BatchSize  int    `toml:"batch_size" mapstructure:"batch_size"`
}

// ApplyConfig represents the [apply] section
type ApplyConfig struct {
	ChunkSize        int    `toml:"chunk_size" mapstructure:"chunk_size"`
	ProgressInterval int    `toml:"progress_interval" mapstructure:"progress_interval"`
	Batching         string `toml:"batching" mapstructure:"batching"`
	Instrument       bool   `toml:"instrument" mapstructure:"instrument"`

	// LedgerSeq stamps lastModified on applied entries; 0 imports them as is.
	LedgerSeq uint32 `toml:"ledger_seq" mapstructure:"ledger_seq"`
}

// CacheConfig represents the [cache] section
type CacheConfig struct {
	Size int `toml:"size" mapstructure:"size"`
}

// LogConfig represents the [log] section
type LogConfig struct {
	Level  string `toml:"level" mapstructure:"level"`
	Format string `toml:"format" mapstructure:"format"`
}

// MetricsConfig represents the [metrics] section. An empty Addr disables the
// metrics endpoint.
type MetricsConfig struct {
	Addr string `toml:"addr" mapstructure:"addr"`
}

// GetConfigPath returns the path of the loaded configuration file, if any.
func (c *Config) GetConfigPath() string {
	return c.configPath
}
