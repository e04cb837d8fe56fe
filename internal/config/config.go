package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Email     EmailConfig
	WhatsApp  WhatsAppConfig
	Sheets    SheetsConfig
	Reminders ReminderConfig
	Auth      AuthConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// EmailConfig contains the SendGrid credentials and sender identity.
type EmailConfig struct {
	SendGridAPIKey string
	FromName       string
	FromAddress    string
	RefillURL      string
}

// WhatsAppConfig contains credentials for the Meta WhatsApp Cloud API.
// The channel is disabled when AccessToken is empty.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
}

// Enabled reports whether WhatsApp reminders are configured.
func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != "" && c.PhoneNumberID != ""
}

// SheetsConfig configures the optional dispatch report export.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	Range           string
}

// Enabled reports whether dispatch reports should be exported to Google Sheets.
func (c SheetsConfig) Enabled() bool {
	return c.CredentialsPath != "" && c.SpreadsheetID != ""
}

// ReminderConfig holds scheduler and dispatch settings.
type ReminderConfig struct {
	DailySchedule     string
	WeeklySchedule    string
	Timezone          string
	DailyHorizonDays  int
	WeeklyHorizonDays int
	DispatchWorkers   int
	SendTimeout       time.Duration
	RunTimeout        time.Duration
	SchedulerEnabled  bool
	HistoryLimit      int64
}

// Location resolves the configured reminder timezone.
func (c ReminderConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", c.Timezone, err)
	}
	return loc, nil
}

// AuthConfig holds the bearer token verification settings.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// A missing .env is fine when the environment is set directly.
		_ = godotenv.Load()
	}

	dailyHorizon, err := getenvInt("REMINDER_DAILY_HORIZON_DAYS", 7)
	if err != nil {
		return nil, err
	}
	weeklyHorizon, err := getenvInt("REMINDER_WEEKLY_HORIZON_DAYS", 14)
	if err != nil {
		return nil, err
	}
	workers, err := getenvInt("REMINDER_DISPATCH_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	historyLimit, err := getenvInt("REMINDER_HISTORY_LIMIT", 20)
	if err != nil {
		return nil, err
	}
	sendTimeout, err := getenvDuration("REMINDER_SEND_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	runTimeout, err := getenvDuration("REMINDER_RUN_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	schedulerEnabled, err := getenvBool("REMINDER_SCHEDULER_ENABLED", true)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "medrefill"),
		},
		Email: EmailConfig{
			SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
			FromName:       getenvWithDefault("EMAIL_FROM_NAME", "Smart Medicine Refill"),
			FromAddress:    os.Getenv("EMAIL_FROM_ADDRESS"),
			RefillURL:      getenvWithDefault("REFILL_SEARCH_URL", "https://www.1mg.com/search/all?name="),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_REPORTS_ID"),
			Range:           getenvWithDefault("GOOGLE_SHEET_REPORTS_RANGE", "Dispatch!A:G"),
		},
		Reminders: ReminderConfig{
			DailySchedule:     getenvWithDefault("REMINDER_DAILY_CRON", "0 9 * * *"),
			WeeklySchedule:    getenvWithDefault("REMINDER_WEEKLY_CRON", "0 10 * * 1"),
			Timezone:          getenvWithDefault("TIMEZONE", "UTC"),
			DailyHorizonDays:  dailyHorizon,
			WeeklyHorizonDays: weeklyHorizon,
			DispatchWorkers:   workers,
			SendTimeout:       sendTimeout,
			RunTimeout:        runTimeout,
			SchedulerEnabled:  schedulerEnabled,
			HistoryLimit:      int64(historyLimit),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			Issuer:    os.Getenv("JWT_ISSUER"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch {
	case c.MongoDB.URI == "":
		return errors.New("MONGODB_URI must be provided")
	case c.MongoDB.DBName == "":
		return errors.New("MONGODB_DB_NAME must be provided")
	}

	switch {
	case c.Email.SendGridAPIKey == "":
		return errors.New("SENDGRID_API_KEY must be provided")
	case c.Email.FromAddress == "":
		return errors.New("EMAIL_FROM_ADDRESS must be provided")
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be provided")
	}

	if c.Reminders.DailySchedule == "" || c.Reminders.WeeklySchedule == "" {
		return errors.New("REMINDER_DAILY_CRON and REMINDER_WEEKLY_CRON must not be empty")
	}

	if _, err := c.Reminders.Location(); err != nil {
		return err
	}

	if c.Reminders.DailyHorizonDays < 0 || c.Reminders.WeeklyHorizonDays < 0 {
		return errors.New("reminder horizons must not be negative")
	}

	if c.Reminders.DispatchWorkers < 1 {
		c.Reminders.DispatchWorkers = 1
	}

	if c.Reminders.HistoryLimit < 1 {
		c.Reminders.HistoryLimit = 20
	}

	if c.Sheets.CredentialsPath != "" && c.Sheets.SpreadsheetID == "" {
		return errors.New("GOOGLE_SHEET_REPORTS_ID must be provided with GOOGLE_SHEETS_CREDENTIALS_PATH")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return parsed, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return parsed, nil
}
