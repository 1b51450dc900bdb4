package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/monsoonwatch/flood-risk-service/internal/adapter/httpapi"
	kafkaadapter "github.com/monsoonwatch/flood-risk-service/internal/adapter/kafka"
	"github.com/monsoonwatch/flood-risk-service/internal/adapter/postgres"
	"github.com/monsoonwatch/flood-risk-service/internal/adapter/predictor"
	"github.com/monsoonwatch/flood-risk-service/internal/adapter/weather"
	"github.com/monsoonwatch/flood-risk-service/internal/aggregate"
	"github.com/monsoonwatch/flood-risk-service/internal/config"
	"github.com/monsoonwatch/flood-risk-service/internal/dispatch"
	"github.com/monsoonwatch/flood-risk-service/internal/domain"
	"github.com/monsoonwatch/flood-risk-service/internal/incident"
	"github.com/monsoonwatch/flood-risk-service/internal/observability"
)

func main() {
	// Local development keeps settings in a .env file; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	thresholds := domain.Thresholds{
		CriticalRatio:           cfg.CriticalRatio,
		AlertRatio:              cfg.AlertRatio,
		MPICritical:             cfg.MPICriticalScore,
		MPIAlert:                cfg.MPIAlertScore,
		DefaultFailureThreshold: cfg.DefaultFailureThreshold,
	}
	policy := domain.DefaultAlertPolicy()
	policy.RatioCutoff = cfg.AlertRatio
	policy.Cap = cfg.AlertFeedCap
	policy.DefaultThreshold = cfg.DefaultFailureThreshold

	// Ward and incident store. The service runs without it, serving from
	// the in-memory snapshot only.
	var (
		wardRepo     *postgres.WardRepository
		incidentRepo *postgres.IncidentRepository
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Warn("postgres unavailable, running without persistence", "error", err)
		} else {
			defer db.Close()
			if err := postgres.EnsureSchema(ctx, db); err != nil {
				logger.Error("schema setup failed", "error", err)
				os.Exit(1)
			}
			wardRepo = postgres.NewWardRepository(db)
			incidentRepo = postgres.NewIncidentRepository(db)
		}
	} else {
		logger.Info("no postgres DSN configured, running without persistence")
	}

	// Weather source with a redis grid-cell cache in front when configured.
	const weatherTimeout = 10 * time.Second
	var weatherSource weather.Source = weather.NewClient(cfg.OpenWeatherKey, cfg.OpenWeatherURL, weatherTimeout, logger)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		weatherSource = weather.NewCachedSource(weatherSource, rdb, cfg.WeatherCacheTTL, metrics, logger)
		logger.Info("weather cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.WeatherCacheTTL)
	}

	var predictionSource aggregate.PredictionSource
	if cfg.PredictorEnabled {
		predictionSource = predictor.NewClient(cfg.PredictorURL, true, cfg.PredictorTimeout,
			cfg.DetailBatchSize, cfg.DetailConcurrency, metrics, logger)
		logger.Info("prediction service enabled", "url", cfg.PredictorURL)
	} else {
		logger.Info("prediction service disabled")
	}

	var stored aggregate.StoredSource
	if wardRepo != nil {
		stored = storedWards{repo: wardRepo}
	}

	agg := aggregate.New(weatherSource, predictionSource, stored, thresholds, metrics, logger)

	bus := kafkaadapter.NewBus(cfg, metrics, logger)
	defer bus.Close()

	var wardWriter dispatch.WardWriter
	if wardRepo != nil {
		wardWriter = wardRepo
	}

	var incidentStore incident.Store
	if incidentRepo != nil {
		incidentStore = incidentRepo
	}

	dispatcher := dispatch.New(cfg, agg, bus, wardWriter, nil, policy, metrics, logger)
	incidents := incident.NewService(dispatcher, incidentStore, bus, cfg.IncidentFeedCap, metrics, logger)
	dispatcher.SetIncidentFeed(incidents)

	simulator := incident.NewSimulator(incidents, dispatcher, logger)
	if err := simulator.Start(ctx); err != nil {
		logger.Error("starting incident simulator failed", "error", err)
		os.Exit(1)
	}
	defer simulator.Stop()

	// New incidents and alerts published on the bus pull the next refresh
	// forward, and a broker outage, once healed, forces a full resync.
	subscriber := kafkaadapter.NewSubscriber(cfg,
		[]string{kafkaadapter.TopicIncidentNew, kafkaadapter.TopicAlertNew}, metrics, logger)
	subscriber.OnReconnect = dispatcher.ForceRefresh
	refreshOnEvent := func(context.Context, kafkago.Message) error {
		dispatcher.ForceRefresh()
		return nil
	}
	subscriber.Handle(kafkaadapter.TopicIncidentNew, refreshOnEvent)
	subscriber.Handle(kafkaadapter.TopicAlertNew, refreshOnEvent)

	srv := httpapi.NewServer(cfg, dispatcher, wardStoreOrNil(wardRepo), incidents, incidentStoreOrNil(incidentRepo), logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("dispatcher error", "error", err)
		}
	}()

	go func() {
		if err := subscriber.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("bus subscriber error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// storedWards adapts the ward repository to the aggregator's roster source.
type storedWards struct {
	repo *postgres.WardRepository
}

func (s storedWards) ListWards(ctx context.Context) ([]domain.Ward, error) {
	return s.repo.List(ctx, postgres.WardFilter{})
}

// wardStoreOrNil keeps the typed-nil interface trap out of the server wiring.
func wardStoreOrNil(repo *postgres.WardRepository) httpapi.WardStore {
	if repo == nil {
		return nil
	}
	return repo
}

func incidentStoreOrNil(repo *postgres.IncidentRepository) httpapi.IncidentStore {
	if repo == nil {
		return nil
	}
	return repo
}
