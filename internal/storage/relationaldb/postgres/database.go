package postgres

import (
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"go.uber.org/zap"
)

// NewDatabase creates a PostgreSQL database handle using the driver named in
// config: "postgres" for lib/pq or "pgx" for pgx. The handle is bulk capable.
func NewDatabase(config *relationaldb.Config, logger *zap.Logger) (*relationaldb.SQLDatabase, error) {
	if err := config.Validate(); err != nil {
		return nil, relationaldb.NewConfigurationError("new_database", "invalid configuration", err)
	}
	if !config.IsPostgres() {
		return nil, relationaldb.NewConfigurationError("new_database",
			"driver "+config.Driver+" is not a PostgreSQL driver", relationaldb.ErrInvalidDriver)
	}

	return relationaldb.NewSQLDatabase(config, NewDialect(config.Driver), relationaldb.WithLogger(logger))
}
