package config

import (
	"github.com/LeJamon/goLedgerApply/internal/bucket"
	"github.com/LeJamon/goLedgerApply/internal/bucket/store"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entrycache"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
	"github.com/spf13/viper"
)

// setDefaults sets all default values
func setDefaults(v *viper.Viper) {
	db := relationaldb.NewConfig()
	v.SetDefault("database.driver", db.Driver)
	v.SetDefault("database.host", db.Host)
	v.SetDefault("database.port", db.Port)
	v.SetDefault("database.database", db.Database)
	v.SetDefault("database.username", db.Username)
	v.SetDefault("database.password", "")
	v.SetDefault("database.connection_string", "")
	v.SetDefault("database.ssl_mode", db.SSLMode)
	v.SetDefault("database.max_open_conns", db.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", db.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", db.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", db.ConnMaxIdleTime)
	v.SetDefault("database.default_timeout", db.DefaultTimeout)
	v.SetDefault("database.enable_wal_mode", db.EnableWALMode)
	v.SetDefault("database.enable_foreign_keys", false)

	bs := store.DefaultConfig()
	v.SetDefault("bucket.path", "bucket")
	v.SetDefault("bucket.backend", bs.Backend)
	v.SetDefault("bucket.compressor", bs.Compressor)
	v.SetDefault("bucket.batch_size", bs.BatchSize)

	v.SetDefault("apply.chunk_size", bucket.DefaultChunkSize)
	v.SetDefault("apply.progress_interval", bucket.DefaultProgressInterval)
	v.SetDefault("apply.batching", bucket.BatchDirect.String())
	v.SetDefault("apply.instrument", false)
	v.SetDefault("apply.ledger_seq", 0)

	v.SetDefault("cache.size", entrycache.DefaultSize)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("metrics.addr", "")
}
