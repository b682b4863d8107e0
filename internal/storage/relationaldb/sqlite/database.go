package sqlite

import (
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// NewDatabase creates a SQLite database handle on modernc.org/sqlite.
func NewDatabase(config *relationaldb.Config, logger *zap.Logger) (*relationaldb.SQLDatabase, error) {
	if err := config.Validate(); err != nil {
		return nil, relationaldb.NewConfigurationError("new_database", "invalid configuration", err)
	}
	if config.Driver != relationaldb.DriverSQLite {
		return nil, relationaldb.NewConfigurationError("new_database",
			"driver "+config.Driver+" is not the SQLite driver", relationaldb.ErrInvalidDriver)
	}

	return relationaldb.NewSQLDatabase(config, Dialect{}, relationaldb.WithLogger(logger))
}
