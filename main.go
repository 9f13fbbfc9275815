package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/kikokaraba/srei-sub004/config"
	fingerprintrepo "github.com/kikokaraba/srei-sub004/internal/repositories/fingerprint"
	listingrepo "github.com/kikokaraba/srei-sub004/internal/repositories/listing"
	matchrepo "github.com/kikokaraba/srei-sub004/internal/repositories/match"
	"github.com/kikokaraba/srei-sub004/pkg/database"
	"github.com/kikokaraba/srei-sub004/pkg/dedupe"
	"github.com/kikokaraba/srei-sub004/pkg/fingerprint"
	"github.com/kikokaraba/srei-sub004/pkg/grouping"
	"github.com/kikokaraba/srei-sub004/pkg/kafka"
	"github.com/kikokaraba/srei-sub004/pkg/logging"
	"github.com/kikokaraba/srei-sub004/pkg/matching"
	"github.com/kikokaraba/srei-sub004/pkg/middleware"
	"github.com/kikokaraba/srei-sub004/pkg/normalizer"
	"github.com/kikokaraba/srei-sub004/pkg/routes/group"
	"github.com/kikokaraba/srei-sub004/pkg/routes/health"
	matchroutes "github.com/kikokaraba/srei-sub004/pkg/routes/match"
	"github.com/kikokaraba/srei-sub004/pkg/routes/run"
	"github.com/kikokaraba/srei-sub004/pkg/tiebreak"
	"github.com/kikokaraba/srei-sub004/pkg/tracing"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind environment: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.PrettyLogs)
	shutdownTracing := tracing.Init(cfg.AppName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.WithError(err).Warn("Failed to shut down tracer provider")
		}
	}()

	if err := runApp(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}

func runApp(ctx context.Context, cfg config.Config, logger ectologger.Logger) error {
	db, err := database.Connect(ctx, database.ConnectionConfig{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
		MaxPingAttempts: cfg.StartupMaxAttempts,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	instance, ok := db.(*database.DatabaseInstance)
	if !ok {
		return fmt.Errorf("unexpected database instance type")
	}

	driver, err := migratepg.WithInstance(instance.DB.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
	})
	if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	listingRepo := listingrepo.NewRepository(db, logger)
	fingerprintRepo := fingerprintrepo.NewRepository(db, logger)
	matchRepo := matchrepo.NewRepository(db, logger)

	text := normalizer.NewTextNormalizer(cfg.BoilerplateKeywords)
	generator := fingerprint.NewGenerator(fingerprint.Config{
		AreaBucketSize:     cfg.AreaBucketSize,
		PriceBucketPercent: cfg.PriceBucketPercent,
	}, text)

	searcher := matching.NewSearcher(logger, listingRepo, matchRepo, matching.SearchConfig{
		AreaTolerancePercent:  cfg.AreaTolerancePercent,
		PriceTolerancePercent: cfg.PriceTolerancePercent,
		MaxCandidates:         cfg.MaxCandidates,
	})

	var tieBreaker matching.TieBreaker
	if cfg.AIEnabled && cfg.AIAPIKey != "" {
		tieBreaker = tiebreak.NewClient(tiebreak.Config{
			APIKey:         cfg.AIAPIKey,
			BaseURL:        cfg.AIBaseURL,
			Model:          cfg.AIModel,
			Timeout:        cfg.AITimeout,
			MaxConcurrent:  cfg.AIMaxConcurrent,
			RequestsPerSec: cfg.AIRequestsPerSec,
		}, logger)
	}

	scorer := matching.NewPairScorer(text, matching.DefaultScoreWeights())
	engine := matching.NewEngine(logger, scorer, matchRepo, tieBreaker, matching.EngineConfig{
		ConfirmThreshold: cfg.ConfirmThreshold,
		RejectThreshold:  cfg.RejectThreshold,
	})

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer producer.Close()

	runner := dedupe.NewRunner(logger, listingRepo, fingerprintRepo, matchRepo, generator, searcher, engine, producer, dedupe.Config{
		BatchSize:          cfg.RunBatchSize,
		FingerprintWorkers: cfg.FingerprintWorkerCount,
		ScoreWorkers:       cfg.ScoreWorkerCount,
		RetryMaxAttempts:   cfg.StorageRetryMaxAttempts,
		Interval:           cfg.RunInterval,
	})

	builder := grouping.NewBuilder(logger, listingRepo, matchRepo)

	if err := registerDependencies(logger, listingRepo, fingerprintRepo, matchRepo, runner, builder); err != nil {
		return fmt.Errorf("failed to register dependencies: %w", err)
	}

	var kafkaHealth func() bool
	if cfg.KafkaConsumerEnabled {
		consumer := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaInputTopic,
			ConsumerGroup: cfg.KafkaConsumerGroup,
		}, logger, listingChangeHandler(listingRepo))
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start kafka consumer: %w", err)
		}
		defer consumer.Stop()
		kafkaHealth = consumer.Health
	}

	go runner.Start(ctx)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{AllowOrigins: cfg.AllowOrigins}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	checker := health.NewChecker(instance.DB, version)
	if kafkaHealth != nil {
		checker.SetKafkaCheck(kafkaHealth)
	}
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	run.Register(api.Group("/dedupe"))
	group.Register(api.Group("/groups"))
	group.RegisterListing(api.Group("/listings"))
	matchroutes.Register(api.Group("/matches"))

	checker.SetReady(true)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(fmt.Sprintf(":%d", cfg.Port))
	}()
	logger.WithField("port", cfg.Port).Info("HTTP server started")

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

// registerDependencies wires the shared singletons into the default DI
// container so route handlers can resolve them from the request context.
func registerDependencies(
	logger ectologger.Logger,
	listingRepo *listingrepo.Repository,
	fingerprintRepo *fingerprintrepo.Repository,
	matchRepo *matchrepo.Repository,
	runner *dedupe.Runner,
	builder *grouping.Builder,
) error {
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return err
	}

	if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*listingrepo.Repository](container, listingRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*fingerprintrepo.Repository](container, fingerprintRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*matchrepo.Repository](container, matchRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*dedupe.Runner](container, runner); err != nil {
		return err
	}
	return ectoinject.RegisterInstance[*grouping.Builder](container, builder)
}

// listingChangeHandler marks changed listings stale so the next run picks
// them up. The scraper pipeline writes the listing row itself; the event only
// nudges updated_at past the stored fingerprint.
func listingChangeHandler(listingRepo *listingrepo.Repository) kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.IncomingMessage) error {
		listingID := msg.GetListingID()
		if listingID == "" {
			return nil
		}
		at := msg.ChangeEvent.Timestamp
		if at.IsZero() {
			at = time.Now().UTC()
		}
		return listingRepo.Touch(ctx, listingID, at)
	}
}
