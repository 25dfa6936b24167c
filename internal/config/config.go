// Package config loads LinguaFlow settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

// Config holds every setting of the service
type Config struct {
	// --- HTTP ---
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`

	// --- Database ---
	DBType     string `envconfig:"DB_TYPE" default:"sqlite"`
	DBPath     string `envconfig:"DB_PATH" default:"data/linguaflow.db"`
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"linguaflow"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"linguaflow"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	SeedFile   string `envconfig:"SEED_FILE" default:"data/seed.yaml"`

	// --- Application ---
	LearnerID   string `envconfig:"LEARNER_ID" default:"me"`
	LearnerName string `envconfig:"LEARNER_NAME" default:"You"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"text"`

	// Simulated latency of content lookups, off by default
	ContentLatencyMin time.Duration `envconfig:"CONTENT_LATENCY_MIN" default:"0s"`
	ContentLatencyMax time.Duration `envconfig:"CONTENT_LATENCY_MAX" default:"0s"`

	// --- Downloads ---
	DownloadStep time.Duration `envconfig:"DOWNLOAD_STEP" default:"500ms"`
	DownloadCap  int           `envconfig:"DOWNLOAD_CAP" default:"50"`

	// --- Reminders ---
	ReminderTime string `envconfig:"REMINDER_DEFAULT_TIME" default:"19:00"`

	// --- Telegram ---
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64   `envconfig:"TELEGRAM_CHAT_ID"`
	TelegramAdminIDs []int64 `envconfig:"TELEGRAM_ADMIN_IDS"`

	// --- OpenAI ---
	OpenAIKey   string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel string `envconfig:"OPENAI_MODEL" default:"gpt-3.5-turbo"`

	// --- RabbitMQ ---
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"linguaflow.progress"`
}

// Load reads .env (if present) and the environment into a validated Config
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("failed to read .env file")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot check by itself
func (c *Config) Validate() error {
	switch c.DBType {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_TYPE must be sqlite or postgres, got %q", c.DBType)
	}
	if _, err := time.LoadLocation(c.AppTimezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.AppTimezone, err)
	}
	if c.ContentLatencyMin < 0 || c.ContentLatencyMax < c.ContentLatencyMin {
		return fmt.Errorf("invalid content latency bounds %s..%s", c.ContentLatencyMin, c.ContentLatencyMax)
	}
	if _, err := time.Parse("15:04", c.ReminderTime); err != nil {
		return fmt.Errorf("invalid REMINDER_DEFAULT_TIME %q: %w", c.ReminderTime, err)
	}
	if c.DownloadCap <= 0 {
		return fmt.Errorf("DOWNLOAD_CAP must be > 0")
	}
	if c.DownloadStep <= 0 {
		return fmt.Errorf("DOWNLOAD_STEP must be > 0")
	}
	if c.LearnerID == "" {
		return fmt.Errorf("LEARNER_ID must not be empty")
	}
	return nil
}

// Location returns the timezone reminders and calendar days are computed in
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// DatabaseDSN returns the connection string for the configured driver
func (c *Config) DatabaseDSN() string {
	if c.DBType == "postgres" {
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
		)
	}
	return c.DBPath
}

// SetupLogging configures the global logrus logger
func SetupLogging(c *Config) {
	if strings.EqualFold(c.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithField("level", c.LogLevel).Warn("unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
