package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	DB struct {
		DSN string
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		FromName   string
		RateLimit  int // messages per second
		// Directory maps recipient user ids to addresses until the identity
		// service exposes a lookup API.
		Directory map[int64]string
	}
	API struct {
		Port     string
		BasePath string
	}
	Logging struct {
		Dir   string
		Level string
	}
	Alerts struct {
		ScanBatchSize    int
		RetentionDays    int
		DefaultRecipient int64
		Tables           []string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Database DSN
	cfg.DB.DSN = os.Getenv("DB_DSN")

	// Kafka settings (optional; consumer is disabled when broker is unset)
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// Email settings
	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	if p, err := strconv.Atoi(os.Getenv("EMAIL_SMTP_PORT")); err == nil {
		cfg.Email.SMTPPort = p
	}
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.FromName = os.Getenv("EMAIL_FROM_NAME")
	if r, err := strconv.Atoi(os.Getenv("EMAIL_RATE_LIMIT")); err == nil {
		cfg.Email.RateLimit = r
	}
	// EMAIL_DIRECTORY is "user_id=address" pairs, comma separated
	if dir := os.Getenv("EMAIL_DIRECTORY"); dir != "" {
		cfg.Email.Directory = map[int64]string{}
		for _, pair := range strings.Split(dir, ",") {
			parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
			if len(parts) != 2 {
				continue
			}
			if id, err := strconv.ParseInt(parts[0], 10, 64); err == nil {
				cfg.Email.Directory[id] = parts[1]
			}
		}
	}

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Logging
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Alert engine settings
	if bs, err := strconv.Atoi(os.Getenv("SCAN_BATCH_SIZE")); err == nil {
		cfg.Alerts.ScanBatchSize = bs
	}
	if rd, err := strconv.Atoi(os.Getenv("ALERT_RETENTION_DAYS")); err == nil {
		cfg.Alerts.RetentionDays = rd
	}
	if dr, err := strconv.ParseInt(os.Getenv("DEFAULT_RECIPIENT_ID"), 10, 64); err == nil {
		cfg.Alerts.DefaultRecipient = dr
	}
	if tables := os.Getenv("MONITORED_TABLES"); tables != "" {
		for _, t := range strings.Split(tables, ",") {
			if t = strings.TrimSpace(t); t != "" {
				cfg.Alerts.Tables = append(cfg.Alerts.Tables, t)
			}
		}
	}

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.Alerts.DefaultRecipient == 0 {
		missing = append(missing, "DEFAULT_RECIPIENT_ID")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v1"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "inventory_events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "expiry-alert-service"
	}
	if cfg.Email.RateLimit == 0 {
		cfg.Email.RateLimit = 5
	}
	if cfg.Alerts.ScanBatchSize == 0 {
		cfg.Alerts.ScanBatchSize = 500
	}
	if cfg.Alerts.RetentionDays == 0 {
		cfg.Alerts.RetentionDays = 90
	}
	if len(cfg.Alerts.Tables) == 0 {
		cfg.Alerts.Tables = []string{"inventory_items"}
	}

	return cfg, nil
}
