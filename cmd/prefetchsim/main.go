// Command prefetchsim runs a synthetic swipe session through the
// prefetch engine and serves the ops HTTP surface while it runs.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/swipedine/prefetch/internal/adapters/events"
	"github.com/swipedine/prefetch/internal/adapters/httpapi"
	"github.com/swipedine/prefetch/internal/adapters/kv"
	"github.com/swipedine/prefetch/internal/app"
	"github.com/swipedine/prefetch/internal/config"
	"github.com/swipedine/prefetch/internal/domain/budget"
	"github.com/swipedine/prefetch/internal/domain/model"
	"github.com/swipedine/prefetch/internal/domain/optimizer"
	"github.com/swipedine/prefetch/internal/domain/scoring"
	"github.com/swipedine/prefetch/internal/sim"
	"github.com/swipedine/prefetch/pkg/logger"
)

const (
	httpReadTimeout     = 5 * time.Second
	httpWriteTimeout    = 10 * time.Second
	httpShutdownTimeout = 5 * time.Second

	simQueueSize = 40
	simSeed      = 42
	simLatency   = 30 * time.Millisecond
	simFailRate  = 0.05
)

func main() {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	log := logger.Get().Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Error(ctx, "load config", logger.Error(err))
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log level, keeping default", logger.String("level", cfg.LogLevel))
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "prefetchsim failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	store, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "close counter store", logger.Error(err))
		}
	}()

	cache := sim.NewMemoryCache()
	fetcher := sim.NewStubFetcher(cache, simLatency, simFailRate, simSeed)
	observer := sim.NewStubObserver()
	sink := events.NewRecorder(events.WithCapacity(cfg.EventBufferSize))

	engine := app.New(
		app.WithFetcher(fetcher),
		app.WithCache(cache),
		app.WithObserver(observer),
		app.WithSink(sink),
		app.WithScorer(scoring.NewCardScorer(
			scoring.WithWeights(cfg.ScoreWeights),
			scoring.WithLookahead(cfg.Lookahead),
		)),
		app.WithTracker(budget.New(
			budget.WithStore(store),
			budget.WithCeilings(cfg.SessionBudget, cfg.DailyBudget, cfg.MonthlyBudget),
			budget.WithReserveFraction(cfg.ReserveFraction),
			budget.WithEmergencyFraction(cfg.EmergencyFraction),
		)),
		app.WithOptimizer(optimizer.New(
			optimizer.WithCosts(cfg.DetailCost, cfg.MediaCost),
		)),
		app.WithThresholds(model.Thresholds{
			MinConfidence: cfg.MinConfidence,
			MinScore:      cfg.MinScore,
			MediaMinScore: cfg.MediaMinScore,
			MaxLookahead:  cfg.Lookahead,
		}),
		app.WithMaxConcurrent(cfg.MaxConcurrentRequests),
		app.WithEnabled(cfg.Enabled),
		app.WithDebug(cfg.Debug),
	)
	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Stop()

	srv := serveOps(ctx, cfg.Addr, engine, log)
	defer shutdownOps(srv, log)

	gen := sim.NewGenerator(simSeed)
	runner := sim.NewRunner(engine, observer, gen.Queue(simQueueSize), gen.Preferences())

	stats, err := runner.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	st := engine.BudgetStatus(ctx)
	log.Info(ctx, "session complete",
		logger.Int64("started", stats.Started),
		logger.Int64("succeeded", stats.Succeeded),
		logger.Int64("failed", stats.Failed),
		logger.Int64("used", stats.Used),
		logger.Int64("wasted", stats.Wasted),
		logger.Float64("hitRate", stats.HitRate),
		logger.Float64("sessionSpent", st.SessionSpent),
		logger.Float64("safelySpendable", st.SafelySpendable),
	)
	return nil
}

// newStore picks the counter backend: SQLite when a path is configured,
// otherwise in-memory.
func newStore(cfg *config.Config) (kv.Store, error) {
	if cfg.KVPath == "" {
		return kv.NewMemoryStore(), nil
	}
	return kv.NewSQLiteStore(cfg.KVPath)
}

// serveOps starts the ops HTTP server in the background.
func serveOps(ctx context.Context, addr string, engine *app.Engine, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	httpapi.NewServer(engine).Register(ctx, mux)

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
	}
	go func() {
		log.Info(ctx, "ops server listening", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "ops server", logger.Error(err))
		}
	}()
	return srv
}

func shutdownOps(srv *http.Server, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn(ctx, "ops server shutdown", logger.Error(err))
	}
}
