package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"lifesign/internal/batcher"
	"lifesign/internal/evaluator"
	"lifesign/internal/geothrottle"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// GetDSN builds the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig holds MQTT broker settings.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Config is the full service configuration.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	Monitor struct {
		// Batch holds the activity batching thresholds.
		Batch batcher.Config
		// Location holds the GPS throttling thresholds.
		Location geothrottle.Config
		// SurvivalThreshold is awake hours of phone silence before the
		// survival alert triggers.
		SurvivalThreshold time.Duration
		// FoodThreshold is awake hours without a logged meal before the
		// food alert triggers.
		FoodThreshold time.Duration
		// EvalInterval is the periodic alert evaluation tick.
		EvalInterval time.Duration
		// StateKeyPrefix prefixes all per-device Redis state keys.
		StateKeyPrefix string
		// Topics for phone-observed events and family notifications.
		PhoneTopic  string
		FamilyTopic string
	}

	Sleep struct {
		// Default sleep window applied to devices without their own.
		Enabled   bool
		StartTime string // "22:00"
		EndTime   string // "06:00"
	}

	Secret struct {
		// ProfileKey encrypts profile contact fields at rest.
		ProfileKey string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "lifesign")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "lifesign-monitor")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.Monitor.Batch.BatchInterval = getEnvDuration("MONITOR_BATCH_INTERVAL", batcher.DefaultBatchInterval)
	cfg.Monitor.Batch.LongInactivity = getEnvDuration("MONITOR_LONG_INACTIVITY", batcher.DefaultLongInactivity)
	cfg.Monitor.Location.SignificantDistanceKm = getEnvFloat("MONITOR_SIGNIFICANT_DISTANCE_KM", geothrottle.DefaultSignificantDistanceKm)
	cfg.Monitor.Location.MaxStaleness = getEnvDuration("MONITOR_LOCATION_MAX_STALENESS", geothrottle.DefaultMaxStaleness)
	cfg.Monitor.SurvivalThreshold = getEnvDuration("MONITOR_SURVIVAL_THRESHOLD", evaluator.DefaultSurvivalThreshold)
	cfg.Monitor.FoodThreshold = getEnvDuration("MONITOR_FOOD_THRESHOLD", evaluator.DefaultFoodThreshold)
	cfg.Monitor.EvalInterval = getEnvDuration("MONITOR_EVAL_INTERVAL", time.Hour)
	cfg.Monitor.StateKeyPrefix = getEnv("MONITOR_STATE_PREFIX", "lifesign:device:")
	cfg.Monitor.PhoneTopic = getEnv("MONITOR_PHONE_TOPIC", "lifesign/phone/+/+")
	cfg.Monitor.FamilyTopic = getEnv("MONITOR_FAMILY_TOPIC", "lifesign/family")

	cfg.Sleep.Enabled = getEnv("SLEEP_ENABLED", "true") == "true"
	cfg.Sleep.StartTime = getEnv("SLEEP_START", "22:00")
	cfg.Sleep.EndTime = getEnv("SLEEP_END", "06:00")

	cfg.Secret.ProfileKey = getEnv("PROFILE_SECRET_KEY", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
