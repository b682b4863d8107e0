package cli

import (
	"context"

	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb/postgres"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb/sqlite"
	"go.uber.org/zap"
)

// openDatabase opens the ledger database named by cfg.Driver.
func openDatabase(ctx context.Context, cfg relationaldb.Config, logger *zap.Logger) (*relationaldb.SQLDatabase, error) {
	var (
		db  *relationaldb.SQLDatabase
		err error
	)
	if cfg.IsPostgres() {
		db, err = postgres.NewDatabase(&cfg, logger)
	} else {
		db, err = sqlite.NewDatabase(&cfg, logger)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Open(ctx); err != nil {
		return nil, err
	}
	return db, nil
}
