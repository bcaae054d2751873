package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"retention-analytics-service/internal/analytics"
)

// Config holds application configuration
type Config struct {
	Port        string
	DatabaseURL string
	Environment string
	RedisURL    string
	NatsURL     string

	// PipelineInterval is the cadence of the background daily run. The
	// reference date itself is always explicit per run, never derived inside
	// the computation.
	PipelineInterval time.Duration

	StatusThresholds analytics.StatusThresholds
	RiskConfig       analytics.RiskConfig
	AlertConfig      analytics.AlertConfig
}

// New creates a new configuration from environment variables
func New() *Config {
	return &Config{
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      buildDatabaseURL(),
		Environment:      getEnv("ENVIRONMENT", "development"),
		RedisURL:         os.Getenv("REDIS_URL"),
		NatsURL:          getEnv("NATS_URL", "nats://nats.nats.svc.cluster.local:4222"),
		PipelineInterval: getEnvDuration("PIPELINE_INTERVAL", 24*time.Hour),
		StatusThresholds: statusThresholdsFromEnv(),
		RiskConfig:       riskConfigFromEnv(),
		AlertConfig:      alertConfigFromEnv(),
	}
}

// buildDatabaseURL constructs the database URL from individual components
func buildDatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "password")
	dbname := getEnv("DB_NAME", "retention_analytics")
	sslmode := getEnv("DB_SSLMODE", "disable")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, dbname, sslmode)
}

func statusThresholdsFromEnv() analytics.StatusThresholds {
	defaults := analytics.DefaultStatusThresholds()
	return analytics.StatusThresholds{
		ActiveDays: getEnvInt("STATUS_ACTIVE_DAYS", defaults.ActiveDays),
		AtRiskDays: getEnvInt("STATUS_AT_RISK_DAYS", defaults.AtRiskDays),
	}
}

func riskConfigFromEnv() analytics.RiskConfig {
	defaults := analytics.DefaultRiskConfig()
	return analytics.RiskConfig{
		FrequencyDropWeight:       getEnvInt("RISK_FREQUENCY_DROP_WEIGHT", defaults.FrequencyDropWeight),
		ValueDropWeight:           getEnvInt("RISK_VALUE_DROP_WEIGHT", defaults.ValueDropWeight),
		StatusInconsistencyWeight: getEnvInt("RISK_STATUS_INCONSISTENCY_WEIGHT", defaults.StatusInconsistencyWeight),
		FrequencyDropMultiplier:   getEnvFloat("RISK_FREQUENCY_DROP_MULTIPLIER", defaults.FrequencyDropMultiplier),
		StatusDriftMultiplier:     getEnvFloat("RISK_STATUS_DRIFT_MULTIPLIER", defaults.StatusDriftMultiplier),
		NewCustomerOrderCeiling:   getEnvInt("RISK_NEW_CUSTOMER_ORDER_CEILING", defaults.NewCustomerOrderCeiling),
		ValueDropRatio:            getEnvFloat("RISK_VALUE_DROP_RATIO", defaults.ValueDropRatio),
		MediumScoreFloor:          getEnvInt("RISK_MEDIUM_SCORE_FLOOR", defaults.MediumScoreFloor),
		HighScoreFloor:            getEnvInt("RISK_HIGH_SCORE_FLOOR", defaults.HighScoreFloor),
	}
}

func alertConfigFromEnv() analytics.AlertConfig {
	defaults := analytics.DefaultAlertConfig()
	return analytics.AlertConfig{
		WarningPct:         getEnvFloat("ALERT_WARNING_PCT", defaults.WarningPct),
		CriticalPct:        getEnvFloat("ALERT_CRITICAL_PCT", defaults.CriticalPct),
		BaselineWindowDays: getEnvInt("ALERT_BASELINE_WINDOW_DAYS", defaults.BaselineWindowDays),
		MinSampleSize:      getEnvInt("ALERT_MIN_SAMPLE_SIZE", defaults.MinSampleSize),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
