package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ovaphlow/pitchfork/service-brand-go/internal/audit"
	"github.com/ovaphlow/pitchfork/service-brand-go/internal/brand"
	"github.com/ovaphlow/pitchfork/service-brand-go/internal/brand/entity"
	"github.com/ovaphlow/pitchfork/service-brand-go/internal/brand/repo"
	"github.com/ovaphlow/pitchfork/service-brand-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-brand-go/internal/mirror"
	"github.com/ovaphlow/pitchfork/service-brand-go/internal/query"
	"github.com/ovaphlow/pitchfork/service-brand-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-brand-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-brand-go/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-brand-go")

	cfg := database.ConfigFromEnv()
	if os.Getenv("DATABASE_SKIP_MIGRATE") != "1" {
		if err := database.Migrate(cfg, sugar); err != nil {
			sugar.Fatalf("db migrate: %v", err)
		}
	}
	sqlDB, err := database.Connect(cfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()
	sqlxDB := sqlx.NewDb(sqlDB, "postgres")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	mcfg := mirror.ConfigFromEnv()
	var store mirror.Store = mirror.NopStore{}
	if mcfg.Enabled() {
		store = mirror.NewSurrealStore(mcfg, sugar.Named("mirror"))
		sugar.Infow("mirror enabled", "url", mcfg.URL, "namespace", mcfg.Namespace, "database", mcfg.Database)
	} else {
		sugar.Info("mirror disabled: MIRROR_URL not set")
	}

	flags := repo.NewSyncFlagStore(sqlxDB)
	syncer := mirror.NewSynchronizer(store, flags, "brands",
		mirror.WithTimeout(mcfg.Timeout),
		mirror.WithLogger(sugar.Named("mirror")),
		mirror.WithMetrics(m),
	)
	brands := repo.NewRepo(sqlxDB,
		repo.WithSynchronizer(syncer),
		repo.WithAudit(audit.NewService(sugar.Named("audit"))),
		repo.WithLogger(sugar.Named("brand")),
		repo.WithMetrics(m),
	)
	if err := brands.EnsureTable(ctx); err != nil {
		sugar.Fatalf("ensure brands table: %v", err)
	}

	svc := brand.NewService(brands, sugar.Named("brand"))
	if res, err := svc.List(ctx, query.NewCriteria(nil, 1, 1, "", "")); err != nil {
		sugar.Warnf("brand inventory failed: %v", err)
	} else {
		sugar.Infow("brand inventory", "live", res.Total())
	}

	if mcfg.Enabled() {
		rec := mirror.NewReconciler[*entity.Brand](flags, syncer, mcfg.ReconcileBatch, sugar.Named("reconcile"), m)
		go rec.Run(ctx, mcfg.ReconcileInterval)
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{
		Addr: addr,
		Handler: router.RegisterRoutes(sugar, router.Deps{
			DB:            sqlxDB,
			Gatherer:      prometheus.DefaultGatherer,
			Metrics:       m,
			MirrorEnabled: mcfg.Enabled(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running; press Ctrl+C to stop", "addr", addr)

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	if err := store.Close(doneCtx); err != nil {
		sugar.Warnf("mirror close failed: %v", err)
	}

	sugar.Info("goodbye")
}
