package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/LeJamon/goLedgerApply/internal/bucket"
	"github.com/LeJamon/goLedgerApply/internal/bucket/store"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entrycache"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entryframe"
	"github.com/LeJamon/goLedgerApply/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// Apply flags
	applyBatching     string
	applyLedgerSeq    uint32
	applyCreateSchema bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the configured bucket to the ledger database",
	Long: `Apply every entry of the bucket store to the ledger database, one
transaction per chunk. Live entries are inserted or updated and dead entries
deleted. An interrupted run can be restarted; re-applying a bucket is
idempotent.`,
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().StringVar(&applyBatching, "batching", "", "override apply.batching (direct, accumulate, staging)")
	applyCmd.Flags().Uint32Var(&applyLedgerSeq, "ledger-seq", 0, "override apply.ledger_seq")
	applyCmd.Flags().BoolVar(&applyCreateSchema, "create-schema", false, "create missing ledger tables first")
}

func runApply(cmd *cobra.Command, args []string) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer env.close()
	cfg, logger := env.config, env.logger

	if cmd.Flags().Changed("batching") {
		cfg.Apply.Batching = applyBatching
	}
	if cmd.Flags().Changed("ledger-seq") {
		cfg.Apply.LedgerSeq = applyLedgerSeq
	}
	appCfg, err := cfg.Apply.ApplicatorConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close(context.Background())

	if applyCreateSchema {
		if err := entryframe.CreateSchema(ctx, db); err != nil {
			return err
		}
	}

	bs, err := store.Open(cfg.Bucket.StoreConfig(), store.WithLogger(logger))
	if err != nil {
		return err
	}
	defer bs.Close()
	it, err := bs.Iterator()
	if err != nil {
		return err
	}
	defer it.Close()

	cache, err := entrycache.New(entrycache.Config{Size: cfg.Cache.Size})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)
	metrics.RegisterCache(reg, cache)

	app := bucket.NewApplicator(db, it, entryframe.NewStore(cache, entryframe.WithLogger(logger)), appCfg,
		bucket.WithLogger(logger),
		bucket.WithMetrics(m))

	logger.Info("Applying bucket",
		zap.String("bucket", cfg.Bucket.Path),
		zap.String("driver", cfg.Database.Driver),
		zap.Stringer("batching", appCfg.Batching),
		zap.Int("chunk_size", appCfg.ChunkSize),
		zap.Uint32("ledger_seq", appCfg.LedgerSeq))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	start := time.Now()
	g.Go(func() error {
		defer cancel()
		return applyAll(gctx, app)
	})

	if addr := cfg.Metrics.Addr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		g.Go(func() error {
			logger.Info("Serving metrics", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Bucket apply failed",
			zap.Uint64("entries", app.Applied()),
			zap.Error(err))
		return err
	}

	stats := cache.Stats()
	logger.Info("Bucket apply complete",
		zap.Uint64("entries", app.Applied()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Uint64("cache_hits", stats.Hits),
		zap.Uint64("cache_misses", stats.Misses))
	return nil
}

type stepper interface {
	HasMore() bool
	Advance(ctx context.Context) error
}

// applyAll advances app until the bucket is exhausted. ctx is checked between
// chunks only; a chunk that has started runs to commit or rollback.
func applyAll(ctx context.Context, app stepper) error {
	chunkCtx := context.WithoutCancel(ctx)
	for app.HasMore() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := app.Advance(chunkCtx); err != nil {
			return err
		}
	}
	return nil
}
