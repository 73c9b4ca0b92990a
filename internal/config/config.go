// Package config loads settings from a YAML file, a .env file and the
// environment. Secrets and infrastructure come from the environment; alert
// behavior comes from the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/trogers1052/stock-price-alerts/internal/models"
	"github.com/trogers1052/stock-price-alerts/internal/quote"
	"github.com/trogers1052/stock-price-alerts/internal/schedule"
)

// Config holds all application configuration
type Config struct {
	Watchlist            []string              `yaml:"watchlist"`
	AlertSchedule        []models.ScheduleRule `yaml:"alert_schedule"`
	PriceAlerts          PriceAlertsConfig     `yaml:"price_alerts"`
	MarketHours          MarketHoursConfig     `yaml:"market_hours"`
	Storage              StorageConfig         `yaml:"storage"`
	RateLimiting         RateLimitConfig       `yaml:"rate_limiting"`
	Notifications        NotificationsConfig   `yaml:"notifications"`
	Timezone             string                `yaml:"timezone"`
	ScheduleCheckSeconds int                   `yaml:"schedule_check_seconds"`

	Server       ServerConfig       `yaml:"-"`
	Database     DatabaseConfig     `yaml:"-"`
	Kafka        KafkaConfig        `yaml:"-"`
	Redis        RedisConfig        `yaml:"-"`
	AlphaVantage AlphaVantageConfig `yaml:"-"`
	Twilio       TwilioConfig       `yaml:"-"`
	SMTP         SMTPConfig         `yaml:"-"`
	Log          LogConfig          `yaml:"-"`
}

// PriceAlertsConfig controls price-change alerts
type PriceAlertsConfig struct {
	Enabled              bool    `yaml:"enabled"`
	ThresholdPercentage  float64 `yaml:"threshold_percentage"`
	CheckIntervalMinutes int     `yaml:"check_interval_minutes"`
}

// MarketHoursConfig restricts monitoring to the trading session
type MarketHoursConfig struct {
	OnlyDuringMarketHours bool   `yaml:"only_during_market_hours"`
	Open                  string `yaml:"open"`
	Close                 string `yaml:"close"`
}

// StorageConfig controls quote history retention
type StorageConfig struct {
	RetentionDays      int `yaml:"retention_days"`
	PruneIntervalHours int `yaml:"prune_interval_hours"`
}

// RateLimitConfig controls the quote provider gate and retries
type RateLimitConfig struct {
	APIDelaySeconds   int    `yaml:"api_delay_seconds"`
	MaxRetries        int    `yaml:"max_retries"`
	RetryDelaySeconds int    `yaml:"retry_delay_seconds"`
	MaxDelaySeconds   int    `yaml:"max_delay_seconds"`
	Backoff           string `yaml:"backoff"`
}

// NotificationsConfig selects channels and message detail
type NotificationsConfig struct {
	Channels           []string `yaml:"channels"`
	IncludeVolume      bool     `yaml:"include_volume"`
	IncludeDayHighLow  bool     `yaml:"include_day_high_low"`
	SendTimeoutSeconds int      `yaml:"send_timeout_seconds"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

// KafkaConfig holds Kafka configuration. No brokers disables Kafka.
type KafkaConfig struct {
	Brokers        []string
	AlertsTopic    string
	WatchlistTopic string
	GroupID        string
}

// RedisConfig holds Redis configuration. An empty Addr keeps schedule fire
// state in memory only.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// AlphaVantageConfig holds quote provider settings
type AlphaVantageConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// TwilioConfig holds SMS credentials
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	ToNumber   string
}

// SMTPConfig holds email credentials
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	Recipient string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string
}

// Load builds the configuration. path overrides CONFIG_FILE; a missing file
// or .env is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path == "" {
		path = getEnv("CONFIG_FILE", "config.yaml")
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		PriceAlerts: PriceAlertsConfig{
			Enabled:              true,
			ThresholdPercentage:  5.0,
			CheckIntervalMinutes: 15,
		},
		MarketHours: MarketHoursConfig{
			Open:  "09:30",
			Close: "16:00",
		},
		Storage: StorageConfig{
			RetentionDays:      90,
			PruneIntervalHours: 24,
		},
		RateLimiting: RateLimitConfig{
			APIDelaySeconds:   12,
			MaxRetries:        3,
			RetryDelaySeconds: 12,
			MaxDelaySeconds:   120,
			Backoff:           quote.BackoffExponential,
		},
		Notifications: NotificationsConfig{
			Channels:           []string{models.ChannelSMS, models.ChannelEmail},
			IncludeVolume:      true,
			IncludeDayHighLow:  true,
			SendTimeoutSeconds: 30,
		},
		Timezone:             "America/New_York",
		ScheduleCheckSeconds: 60,
	}
}

func (c *Config) applyEnv() {
	c.Timezone = getEnv("TIMEZONE", c.Timezone)

	c.Server = ServerConfig{
		Port: getEnv("SERVER_PORT", "8080"),
		Host: getEnv("SERVER_HOST", "0.0.0.0"),
	}
	c.Database = DatabaseConfig{
		Host:           getEnv("DB_HOST", "localhost"),
		Port:           getEnv("DB_PORT", "5432"),
		User:           getEnv("DB_USER", "postgres"),
		Password:       getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "stock_alerts"),
		SSLMode:        getEnv("DB_SSLMODE", "disable"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "db/migrations"),
	}
	c.Kafka = KafkaConfig{
		Brokers:        getEnvList("KAFKA_BROKERS"),
		AlertsTopic:    getEnv("KAFKA_ALERTS_TOPIC", "stock-alerts"),
		WatchlistTopic: getEnv("KAFKA_WATCHLIST_TOPIC", "watchlist-commands"),
		GroupID:        getEnv("KAFKA_GROUP_ID", "stock-price-alerts"),
	}
	c.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
		Prefix:   getEnv("REDIS_PREFIX", "stock-alerts"),
	}
	c.AlphaVantage = AlphaVantageConfig{
		APIKey:  getEnv("ALPHA_VANTAGE_API_KEY", ""),
		BaseURL: getEnv("ALPHA_VANTAGE_BASE_URL", "https://www.alphavantage.co"),
		Timeout: time.Duration(getEnvInt("ALPHA_VANTAGE_TIMEOUT_SECONDS", 10)) * time.Second,
	}
	c.Twilio = TwilioConfig{
		AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		FromNumber: getEnv("TWILIO_PHONE_NUMBER", ""),
		ToNumber:   getEnv("USER_PHONE_NUMBER", ""),
	}
	c.SMTP = SMTPConfig{
		Host:      getEnv("SMTP_SERVER", "smtp.gmail.com"),
		Port:      getEnvInt("SMTP_PORT", 587),
		Username:  getEnv("EMAIL_ADDRESS", ""),
		Password:  getEnv("EMAIL_PASSWORD", ""),
		Recipient: getEnv("RECIPIENT_EMAIL", ""),
	}
	c.Log = LogConfig{
		Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}
}

func (c *Config) normalize() {
	seen := make(map[string]bool, len(c.Watchlist))
	symbols := c.Watchlist[:0]
	for _, s := range c.Watchlist {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	c.Watchlist = symbols

	for i, ch := range c.Notifications.Channels {
		c.Notifications.Channels[i] = strings.ToLower(strings.TrimSpace(ch))
	}
	c.RateLimiting.Backoff = strings.ToLower(c.RateLimiting.Backoff)
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.AlphaVantage.APIKey == "" {
		errs = append(errs, errors.New("ALPHA_VANTAGE_API_KEY is not set"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err))
	}
	for _, r := range c.AlertSchedule {
		if _, err := schedule.ParseTimeOfDay(r.Time); err != nil {
			errs = append(errs, fmt.Errorf("alert_schedule %q: %w", r.Key(), err))
		}
	}
	if c.MarketHours.OnlyDuringMarketHours {
		if _, err := schedule.NewMarketHours(true, c.MarketHours.Open, c.MarketHours.Close, time.UTC); err != nil {
			errs = append(errs, fmt.Errorf("market_hours: %w", err))
		}
	}
	if c.PriceAlerts.ThresholdPercentage < 0 {
		errs = append(errs, errors.New("price_alerts.threshold_percentage must be >= 0"))
	}
	if c.PriceAlerts.CheckIntervalMinutes <= 0 {
		errs = append(errs, errors.New("price_alerts.check_interval_minutes must be > 0"))
	}
	if c.ScheduleCheckSeconds <= 0 {
		errs = append(errs, errors.New("schedule_check_seconds must be > 0"))
	}
	if c.Storage.RetentionDays <= 0 {
		errs = append(errs, errors.New("storage.retention_days must be > 0"))
	}
	if c.Storage.PruneIntervalHours <= 0 {
		errs = append(errs, errors.New("storage.prune_interval_hours must be > 0"))
	}
	if c.RateLimiting.APIDelaySeconds < 0 {
		errs = append(errs, errors.New("rate_limiting.api_delay_seconds must be >= 0"))
	}
	if err := c.RetryPolicy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("rate_limiting: %w", err))
	}
	for _, ch := range c.Notifications.Channels {
		switch ch {
		case models.ChannelSMS, models.ChannelEmail:
		case models.ChannelKafka:
			if len(c.Kafka.Brokers) == 0 {
				errs = append(errs, errors.New("kafka notification channel requires KAFKA_BROKERS"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown notification channel %q", ch))
		}
	}

	return errors.Join(errs...)
}

// Location returns the configured timezone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Threshold returns the price-change threshold percentage.
func (c *Config) Threshold() decimal.Decimal {
	return decimal.NewFromFloat(c.PriceAlerts.ThresholdPercentage)
}

// RetryPolicy returns the quote retry policy.
func (c *Config) RetryPolicy() quote.RetryPolicy {
	return quote.RetryPolicy{
		MaxRetries: c.RateLimiting.MaxRetries,
		Strategy:   c.RateLimiting.Backoff,
		BaseDelay:  time.Duration(c.RateLimiting.RetryDelaySeconds) * time.Second,
		MaxDelay:   time.Duration(c.RateLimiting.MaxDelaySeconds) * time.Second,
	}
}

// APIDelay is the minimum interval between quote provider calls.
func (c *Config) APIDelay() time.Duration {
	return time.Duration(c.RateLimiting.APIDelaySeconds) * time.Second
}

// PriceInterval is the cadence of price-change cycles.
func (c *Config) PriceInterval() time.Duration {
	return time.Duration(c.PriceAlerts.CheckIntervalMinutes) * time.Minute
}

// ScheduleInterval is the cadence of schedule checks.
func (c *Config) ScheduleInterval() time.Duration {
	return time.Duration(c.ScheduleCheckSeconds) * time.Second
}

// Retention is how long quote and alert history is kept.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Storage.RetentionDays) * 24 * time.Hour
}

// PruneInterval is the cadence of history pruning.
func (c *Config) PruneInterval() time.Duration {
	return time.Duration(c.Storage.PruneIntervalHours) * time.Hour
}

// SendTimeout bounds each notification channel send.
func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.Notifications.SendTimeoutSeconds) * time.Second
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
