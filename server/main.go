package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"

	"github.com/stackcheck-labs/stackcheck-go/internal/config"
	"github.com/stackcheck-labs/stackcheck-go/internal/jobtrigger"
	"github.com/stackcheck-labs/stackcheck-go/internal/platform/env"
	"github.com/stackcheck-labs/stackcheck-go/internal/platform/httpserver"
	"github.com/stackcheck-labs/stackcheck-go/internal/platform/notify"
	"github.com/stackcheck-labs/stackcheck-go/internal/platform/objectstore"
	"github.com/stackcheck-labs/stackcheck-go/internal/platform/postgres"
	repopg "github.com/stackcheck-labs/stackcheck-go/internal/repo/postgres"
	"github.com/stackcheck-labs/stackcheck-go/internal/service/admission"
	"github.com/stackcheck-labs/stackcheck-go/internal/service/ingest"
	"github.com/stackcheck-labs/stackcheck-go/internal/service/launch"
	"github.com/stackcheck-labs/stackcheck-go/internal/service/query"
	"github.com/stackcheck-labs/stackcheck-go/internal/service/testenv"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("STACKCHECK_HTTP_ADDR", ":8080")
	shutdownTimeout, err := env.Duration("STACKCHECK_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}
	triggerURL := env.String("STACKCHECK_BUILD_SERVICE_URL", "http://localhost:8090")
	triggerTimeout, err := env.Duration("STACKCHECK_BUILD_TRIGGER_TIMEOUT", 30*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}
	syncInterval, err := env.Duration("STACKCHECK_REPORT_SYNC_INTERVAL", time.Minute)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	cfg, err := config.Load(env.String("STACKCHECK_CONFIG_PATH", ""))
	if err != nil {
		logger.Error("invalid orchestration config", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	if err := repopg.EnsureSchema(ctx, db); err != nil {
		logger.Error("schema migration failed", "error", err)
		os.Exit(1)
	}

	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid object store config", "error", err)
		os.Exit(2)
	}
	storeClient, err := objectstore.NewMinIOClient(storeCfg)
	if err != nil {
		logger.Error("object store client init failed", "error", err)
		os.Exit(2)
	}
	startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := objectstore.EnsureBuckets(startupCtx, storeClient, storeCfg); err != nil {
		cancel()
		logger.Error("object store unavailable", "error", err)
		os.Exit(1)
	}
	cancel()

	notifyCfg, err := notify.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid notifier config", "error", err)
		os.Exit(2)
	}
	notifier, err := notify.NewRedis(notifyCfg)
	if err != nil {
		logger.Error("notifier unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = notifier.Close() }()

	trigger, err := jobtrigger.NewHTTPTrigger(triggerURL, triggerTimeout)
	if err != nil {
		logger.Error("invalid build trigger config", "error", err)
		os.Exit(2)
	}

	runStore := repopg.NewRunStore(db)
	markerStore := repopg.NewMarkerStore(db)
	projectStore := repopg.NewProjectStore(db)
	envStore := repopg.NewEnvironmentStore(db)

	guard := admission.NewGuard(runStore, cfg.ExclusiveWith, cfg.ExclusionWindow, cfg.RecentRuns)
	launcher := launch.NewLauncher(runStore, markerStore, projectStore, guard, trigger, cfg.ProjectTypes, logger)
	ingestor := ingest.NewIngestor(runStore, markerStore, projectStore, envStore, notifier, logger)
	queries := query.NewService(runStore, markerStore)
	envService := testenv.NewService(envStore, notifier, logger)

	source := &minioReportSource{client: storeClient, bucket: storeCfg.BucketReports}
	marks := &redisMarks{client: notifier.Client()}
	startReportSyncer(ctx, logger, source, marks, ingestor, syncInterval)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("stackcheck"))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			"stackcheck",
			httpserver.ReadinessCheck{
				Name: "postgres",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return db.PingContext(checkCtx)
				},
			},
			httpserver.ReadinessCheck{
				Name: "minio",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return objectstore.CheckBuckets(checkCtx, storeClient, storeCfg)
				},
			},
			httpserver.ReadinessCheck{
				Name: "redis",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return notifier.Client().Ping(checkCtx).Err()
				},
			},
		),
	)

	fetch := func(ctx context.Context, bucket, key string) ([]byte, error) {
		object, err := storeClient.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return nil, err
		}
		defer func() { _ = object.Close() }()
		return io.ReadAll(io.LimitReader(object, 32<<20))
	}

	api := newStackcheckAPI(logger, db, launcher, ingestor, queries, envService, fetch, storeCfg.BucketReports)
	api.register(mux)

	serverCfg := httpserver.Config{
		Service:         "stackcheck",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, serverCfg, httpserver.Wrap(logger, "stackcheck", mux)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
