package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/LeJamon/goLedgerApply/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configFile string
	debug      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ledgerapply",
	Short: "Apply ledger buckets to relational ledger state",
	Long: `ledgerapply loads key-ordered buckets of ledger entry changes into a
PostgreSQL or SQLite ledger database in bounded transactional chunks.`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path (toml or yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// cmdEnv is the configuration and logger shared by every command.
type cmdEnv struct {
	config *config.Config
	logger *zap.Logger
}

func loadEnv() (*cmdEnv, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	return &cmdEnv{config: cfg, logger: logger}, nil
}

func (r *cmdEnv) close() {
	_ = r.logger.Sync()
}
