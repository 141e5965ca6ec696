package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverREST     = "rest"
	StoreDriverPostgres = "postgres"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Supabase  SupabaseConfig
	Store     StoreConfig
	Sync      SyncConfig
	Reporting ReportingConfig
	MongoDB   MongoDBConfig
	Sheets    SheetsConfig
	S3        S3Config
	AMQP      AMQPConfig
	WhatsApp  WhatsAppConfig
	LogLevel  string
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port              string
	WebDir            string
	AllowedOrigins    []string
	AllowRegistration bool
}

// SupabaseConfig points at the hosted auth and table API.
type SupabaseConfig struct {
	URL        string
	AnonKey    string
	ServiceKey string
	JWTSecret  string
}

// StoreConfig selects the remote table driver and the local store location.
type StoreConfig struct {
	Driver      string
	DatabaseURL string
	LocalPath   string
}

// SyncConfig tunes the outbox flush.
type SyncConfig struct {
	CronSchedule string
	MaxAttempts  int
	BatchSize    int
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	SnapshotCron string
	WeeklyCron   string
	Timezone     string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// S3Config names the bucket rendered reports are archived to.
type S3Config struct {
	Bucket string
	Region string
}

// AMQPConfig configures record event publishing.
type AMQPConfig struct {
	URL   string
	Queue string
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
type WhatsAppConfig struct {
	AccessToken     string
	PhoneNumberID   string
	BaseURL         string
	APIVersion      string
	ReportRecipient string
}

// Enabled reports whether the snapshot archive is configured.
func (c MongoDBConfig) Enabled() bool { return c.URI != "" }

// Enabled reports whether report rows can be appended to a spreadsheet.
func (c SheetsConfig) Enabled() bool { return c.CredentialsPath != "" && c.SpreadsheetID != "" }

// Enabled reports whether rendered reports can be uploaded.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Enabled reports whether record events are published.
func (c AMQPConfig) Enabled() bool { return c.URL != "" }

// Enabled reports whether weekly summaries can be delivered.
func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != "" && c.PhoneNumberID != "" && c.ReportRecipient != ""
}

// Location resolves the configured timezone.
func (c ReportingConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", c.Timezone, err)
	}
	return loc, nil
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
		_ = godotenv.Load()
	}

	maxAttempts, err := getenvInt("SYNC_MAX_ATTEMPTS", 10)
	if err != nil {
		return nil, err
	}
	batchSize, err := getenvInt("SYNC_BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}

	anonKey := os.Getenv("SUPABASE_ANON_KEY")

	cfg := &Config{
		Server: ServerConfig{
			Port:              getenvWithDefault("APP_PORT", "8080"),
			WebDir:            getenvWithDefault("WEB_DIR", "./web"),
			AllowedOrigins:    splitList(getenvWithDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
			AllowRegistration: strings.EqualFold(os.Getenv("ALLOW_REGISTRATION"), "true"),
		},
		Supabase: SupabaseConfig{
			URL:        strings.TrimSuffix(os.Getenv("SUPABASE_URL"), "/"),
			AnonKey:    anonKey,
			ServiceKey: getenvWithDefault("SUPABASE_SERVICE_KEY", anonKey),
			JWTSecret:  os.Getenv("SUPABASE_JWT_SECRET"),
		},
		Store: StoreConfig{
			Driver:      getenvWithDefault("STORE_DRIVER", StoreDriverREST),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			LocalPath:   getenvWithDefault("LOCAL_DB_PATH", "./data/ledger.db"),
		},
		Sync: SyncConfig{
			CronSchedule: getenvWithDefault("SYNC_CRON", "@every 1m"),
			MaxAttempts:  maxAttempts,
			BatchSize:    batchSize,
		},
		Reporting: ReportingConfig{
			SnapshotCron: getenvWithDefault("SNAPSHOT_CRON", "0 20 * * *"),
			WeeklyCron:   getenvWithDefault("REPORT_CRON", "0 20 * * 5"),
			Timezone:     getenvWithDefault("TIMEZONE", "Africa/Nairobi"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "starland"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_EXPORT_ID"),
		},
		S3: S3Config{
			Bucket: os.Getenv("REPORTS_S3_BUCKET"),
			Region: getenvWithDefault("AWS_REGION", "eu-west-1"),
		},
		AMQP: AMQPConfig{
			URL:   os.Getenv("AMQP_URL"),
			Queue: getenvWithDefault("AMQP_QUEUE", "ledger.events"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:     os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID:   os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:         getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:      getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			ReportRecipient: os.Getenv("WHATSAPP_REPORT_RECIPIENT"),
		},
		LogLevel: os.Getenv("LOG_LEVEL"),
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
	case c.Supabase.URL == "":
		return errors.New("SUPABASE_URL must be provided")
	case c.Supabase.AnonKey == "":
		return errors.New("SUPABASE_ANON_KEY must be provided")
	}

	switch c.Store.Driver {
	case StoreDriverREST:
	case StoreDriverPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be provided when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverREST, StoreDriverPostgres, c.Store.Driver)
	}

	if c.Store.LocalPath == "" {
		return errors.New("LOCAL_DB_PATH must not be empty")
	}

	if c.Sync.MaxAttempts <= 0 {
		return errors.New("SYNC_MAX_ATTEMPTS must be positive")
	}
	if c.Sync.BatchSize <= 0 {
		return errors.New("SYNC_BATCH_SIZE must be positive")
	}

	if c.Sync.CronSchedule == "" {
		return errors.New("SYNC_CRON must be provided")
	}

	if c.Reporting.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}
	if _, err := c.Reporting.Location(); err != nil {
		return err
	}

	if c.WhatsApp.AccessToken != "" && c.WhatsApp.PhoneNumberID == "" {
		return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided with WHATSAPP_TOKEN")
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
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
