package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	SQLiteDriver          string
	SQLiteDSN             string
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration
	// SQLiteLogStatements wraps the driver so every statement is logged at debug level.
	SQLiteLogStatements bool

	OpenWeatherAPIKey      string
	OpenWeatherBaseURL     string
	OpenWeatherIconBaseURL string
	OpenWeatherTimeout     time.Duration

	SessionTTL           time.Duration
	SessionPurgeInterval time.Duration

	// MQTTBroker empty disables publishing.
	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string
}

// MQTTEnabled reports whether a broker was configured.
func (c Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

// LoadDotEnv reads path (usually ".env") into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	store, err := LoadDBFromEnv()
	if err != nil {
		return Config{}, err
	}

	apiKey := strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY"))
	if apiKey == "" {
		return Config{}, errors.New("OPENWEATHER_API_KEY is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("OPENWEATHER_BASE_URL")), "/")
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org/data/2.5"
	}
	iconBaseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("OPENWEATHER_ICON_BASE_URL")), "/")
	if iconBaseURL == "" {
		iconBaseURL = "https://openweathermap.org/img/wn"
	}
	timeout, err := durationFromEnv("OPENWEATHER_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	if timeout <= 0 {
		return Config{}, fmt.Errorf("OPENWEATHER_TIMEOUT must be positive, got %v", timeout)
	}

	sessionTTL, err := durationFromEnv("SESSION_TTL", 12*time.Hour)
	if err != nil {
		return Config{}, err
	}
	if sessionTTL <= 0 {
		return Config{}, fmt.Errorf("SESSION_TTL must be positive, got %v", sessionTTL)
	}
	purgeInterval, err := durationFromEnv("SESSION_PURGE_INTERVAL", 10*time.Minute)
	if err != nil {
		return Config{}, err
	}
	if purgeInterval <= 0 {
		return Config{}, fmt.Errorf("SESSION_PURGE_INTERVAL must be positive, got %v", purgeInterval)
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	mqttPort, err := intFromEnv("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}
	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "weathersense"
	}
	mqttTopicPrefix := strings.Trim(strings.TrimSpace(os.Getenv("MQTT_TOPIC_PREFIX")), "/")
	if mqttTopicPrefix == "" {
		mqttTopicPrefix = "weathersense"
	}

	return Config{
		AppEnv:                 appEnv,
		LogLevel:               level,
		HTTPAddr:               httpAddr,
		SQLiteDriver:           store.SQLiteDriver,
		SQLiteDSN:              store.SQLiteDSN,
		SQLitePath:             store.SQLitePath,
		SQLiteMaxOpenConns:     store.SQLiteMaxOpenConns,
		SQLiteMaxIdleConns:     store.SQLiteMaxIdleConns,
		SQLiteConnMaxLifetime:  store.SQLiteConnMaxLifetime,
		SQLiteLogStatements:    store.SQLiteLogStatements,
		OpenWeatherAPIKey:      apiKey,
		OpenWeatherBaseURL:     baseURL,
		OpenWeatherIconBaseURL: iconBaseURL,
		OpenWeatherTimeout:     timeout,
		SessionTTL:             sessionTTL,
		SessionPurgeInterval:   purgeInterval,
		MQTTBroker:             mqttBroker,
		MQTTPort:               mqttPort,
		MQTTClientID:           mqttClientID,
		MQTTTopicPrefix:        mqttTopicPrefix,
	}, nil
}

// LoadDBFromEnv reads only the session store settings (DB_*, SQLITE_PATH),
// so maintenance commands open the same database as the server without
// needing the rest of its configuration.
func LoadDBFromEnv() (Config, error) {
	driver := strings.TrimSpace(os.Getenv("DB_DRIVER"))
	if driver == "" {
		driver = "sqlite3"
	}
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	path := strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	if path == "" {
		path = "data/weathersense.db"
	}

	maxOpenConns, err := intFromEnv("DB_MAX_OPEN_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := intFromEnv("DB_MAX_IDLE_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := durationFromEnv("DB_CONN_MAX_LIFETIME", 0)
	if err != nil {
		return Config{}, err
	}
	logStatements, err := boolFromEnv("DB_LOG_SQL", false)
	if err != nil {
		return Config{}, err
	}

	return Config{
		SQLiteDriver:          driver,
		SQLiteDSN:             dsn,
		SQLitePath:            path,
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteMaxIdleConns:    maxIdleConns,
		SQLiteConnMaxLifetime: connMaxLifetime,
		SQLiteLogStatements:   logStatements,
	}, nil
}

func intFromEnv(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func boolFromEnv(key string, def bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
