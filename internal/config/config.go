package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Postgres ward/incident store.
	PostgresDSN string

	// Redis weather cache.
	RedisAddr       string
	RedisPassword   string
	WeatherCacheTTL time.Duration

	// Kafka push channel.
	KafkaBrokers []string
	KafkaGroupID string

	// External flood prediction service.
	PredictorURL     string
	PredictorTimeout time.Duration
	PredictorEnabled bool

	// OpenWeather.
	OpenWeatherKey string
	OpenWeatherURL string

	// Refresh scheduling.
	WardRefreshInterval     time.Duration
	IncidentRefreshInterval time.Duration

	// Per-ward detail fetches are chunked and run with bounded concurrency.
	DetailBatchSize   int
	DetailConcurrency int

	// Risk classification tunables. The cutoffs differed slightly between
	// historical dashboard builds; these are the operational values.
	CriticalRatio           float64 // ratio above which a ward is critical
	AlertRatio              float64 // ratio above which a ward is on alert
	MPICriticalScore        int     // preparedness below this is critical
	MPIAlertScore           int     // preparedness below this is on alert
	DefaultFailureThreshold float64 // mm, used when a ward has no threshold

	// Feed caps.
	AlertFeedCap    int
	IncidentFeedCap int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	predictorTimeout, err := parseDuration("PREDICTOR_TIMEOUT", "20s")
	if err != nil {
		return nil, err
	}

	cacheTTL, err := parseDuration("WEATHER_CACHE_TTL", "10m")
	if err != nil {
		return nil, err
	}

	wardInterval, err := parseDuration("WARD_REFRESH_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}

	incidentInterval, err := parseDuration("INCIDENT_REFRESH_INTERVAL", "2m")
	if err != nil {
		return nil, err
	}

	predictorURL := os.Getenv("PREDICTOR_URL")
	predictorEnabled := predictorURL != ""
	if v := os.Getenv("PREDICTOR_ENABLED"); v != "" {
		predictorEnabled, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PREDICTOR_ENABLED %q: %w", v, err)
		}
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PostgresDSN: envOrDefault("POSTGRES_DSN",
			"host=localhost port=5432 user=floodrisk password=floodrisk dbname=floodrisk sslmode=disable"),

		RedisAddr:       envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		WeatherCacheTTL: cacheTTL,

		KafkaBrokers: parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaGroupID: envOrDefault("KAFKA_GROUP_ID", "flood-risk-service"),

		PredictorURL:     predictorURL,
		PredictorTimeout: predictorTimeout,
		PredictorEnabled: predictorEnabled,

		OpenWeatherKey: os.Getenv("OPENWEATHER_API_KEY"),
		OpenWeatherURL: envOrDefault("OPENWEATHER_URL", "https://api.openweathermap.org/data/2.5"),

		WardRefreshInterval:     wardInterval,
		IncidentRefreshInterval: incidentInterval,

		DetailBatchSize:   parsePositiveInt("DETAIL_BATCH_SIZE", 10),
		DetailConcurrency: parsePositiveInt("DETAIL_CONCURRENCY", 4),

		CriticalRatio:           parseFloat("RISK_CRITICAL_RATIO", 0.70),
		AlertRatio:              parseFloat("RISK_ALERT_RATIO", 0.30),
		MPICriticalScore:        parsePositiveInt("MPI_CRITICAL_SCORE", 40),
		MPIAlertScore:           parsePositiveInt("MPI_ALERT_SCORE", 70),
		DefaultFailureThreshold: parseFloat("DEFAULT_FAILURE_THRESHOLD", 60),

		AlertFeedCap:    parsePositiveInt("ALERT_FEED_CAP", 12),
		IncidentFeedCap: parsePositiveInt("INCIDENT_FEED_CAP", 50),
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.PredictorEnabled && cfg.PredictorURL == "" {
		return nil, errors.New("PREDICTOR_ENABLED is true but PREDICTOR_URL is not set")
	}
	if cfg.AlertRatio >= cfg.CriticalRatio {
		return nil, errors.New("RISK_ALERT_RATIO must be below RISK_CRITICAL_RATIO")
	}
	if cfg.MPICriticalScore >= cfg.MPIAlertScore {
		return nil, errors.New("MPI_CRITICAL_SCORE must be below MPI_ALERT_SCORE")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func parseFloat(key string, def float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}
