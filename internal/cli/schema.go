package cli

import (
	"fmt"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entrycache"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entryframe"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Schema flags
	dropExisting bool
	rollbackFrom uint32
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the ledger database tables",
}

var schemaInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the ledger tables and their staging tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv()
		if err != nil {
			return err
		}
		defer env.close()

		ctx := cmd.Context()
		db, err := openDatabase(ctx, env.config.Database, env.logger)
		if err != nil {
			return err
		}
		defer db.Close(ctx)

		if dropExisting {
			err = entryframe.DropAll(ctx, db)
		} else {
			err = entryframe.CreateSchema(ctx, db)
		}
		if err != nil {
			return err
		}
		env.logger.Info("Ledger schema ready", zap.Bool("dropped", dropExisting))
		return nil
	},
}

var schemaCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of stored entries per type",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv()
		if err != nil {
			return err
		}
		defer env.close()

		ctx := cmd.Context()
		db, err := openDatabase(ctx, env.config.Database, env.logger)
		if err != nil {
			return err
		}
		defer db.Close(ctx)

		for _, t := range entryframe.Types() {
			n, err := entryframe.CountObjects(ctx, db, t)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %d\n", t, n)
		}
		return nil
	},
}

var schemaRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Delete every entry modified on or after a ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if rollbackFrom == 0 {
			return fmt.Errorf("--from-ledger is required")
		}
		env, err := loadEnv()
		if err != nil {
			return err
		}
		defer env.close()

		ctx := cmd.Context()
		db, err := openDatabase(ctx, env.config.Database, env.logger)
		if err != nil {
			return err
		}
		defer db.Close(ctx)

		cache, err := entrycache.New(entrycache.Config{Size: env.config.Cache.Size})
		if err != nil {
			return err
		}
		s := entryframe.NewStore(cache, entryframe.WithLogger(env.logger))

		tx, err := db.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		var total int64
		for _, t := range entryframe.Types() {
			n, err := s.DeleteModifiedOnOrAfterLedger(ctx, tx, t, rollbackFrom)
			if err != nil {
				return err
			}
			total += n
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d entries modified on or after ledger %d\n", total, rollbackFrom)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaInitCmd, schemaCountCmd, schemaRollbackCmd)

	schemaInitCmd.Flags().BoolVar(&dropExisting, "drop", false, "drop and recreate existing tables")
	schemaRollbackCmd.Flags().Uint32Var(&rollbackFrom, "from-ledger", 0, "first ledger to roll back")
}
