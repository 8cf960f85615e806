package config

import (
	"errors"
	"fmt"
	"time"
	// Zone data for TIME_ZONE on hosts without a system database.
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	StoreDriver    string        `mapstructure:"STORE_DRIVER"`
	MigrateOnStart bool          `mapstructure:"MIGRATE_ON_START"`
	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	TokenTTL       time.Duration `mapstructure:"TOKEN_TTL"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`

	MaxUploadSizeMB int64  `mapstructure:"MAX_UPLOAD_MB"`
	UploadDir       string `mapstructure:"UPLOAD_DIR"`
	PublicBaseURL   string `mapstructure:"PUBLIC_BASE_URL"`

	NotifyMode         string        `mapstructure:"NOTIFY_MODE"`
	MailDriver         string        `mapstructure:"MAIL_DRIVER"`
	SMTPHost           string        `mapstructure:"SMTP_HOST"`
	SMTPPort           int           `mapstructure:"SMTP_PORT"`
	SMTPUser           string        `mapstructure:"SMTP_USER"`
	SMTPPassword       string        `mapstructure:"SMTP_PASSWORD"`
	MailFrom           string        `mapstructure:"MAIL_FROM"`
	OutboxPollInterval time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`
	OutboxBatchSize    int           `mapstructure:"OUTBOX_BATCH_SIZE"`
	OutboxMaxAttempts  int           `mapstructure:"OUTBOX_MAX_ATTEMPTS"`
	OutboxLease        time.Duration `mapstructure:"OUTBOX_LEASE"`
	OutboxBackoff      time.Duration `mapstructure:"OUTBOX_RETRY_BACKOFF"`
	OutboxMaxBackoff   time.Duration `mapstructure:"OUTBOX_RETRY_MAX_BACKOFF"`

	DefaultMaxResponseDays int `mapstructure:"DEFAULT_MAX_RESPONSE_DAYS"`
	// TimeZone is the IANA zone whose calendar date goes into consecutive codes.
	TimeZone string `mapstructure:"TIME_ZONE"`

	BootstrapEntityName    string `mapstructure:"BOOTSTRAP_ENTITY_NAME"`
	BootstrapEntityCode    string `mapstructure:"BOOTSTRAP_ENTITY_CODE"`
	BootstrapEntityEmail   string `mapstructure:"BOOTSTRAP_ENTITY_EMAIL"`
	BootstrapAdminEmail    string `mapstructure:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `mapstructure:"BOOTSTRAP_ADMIN_PASSWORD"`

	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
}

var defaults = map[string]any{
	"ENV":                         "dev",
	"PORT":                        "8080",
	"STORE_DRIVER":                "postgres",
	"MIGRATE_ON_START":            false,
	"TOKEN_TTL":                   "24h",
	"REQUEST_TIMEOUT":             "30s",
	"LOG_LEVEL":                   "info",
	"CORS_ALLOWED_ORIGINS":        "*",
	"MAX_UPLOAD_MB":               20,
	"UPLOAD_DIR":                  "./uploads",
	"PUBLIC_BASE_URL":             "http://localhost:3000",
	"NOTIFY_MODE":                 "outbox",
	"MAIL_DRIVER":                 "log",
	"SMTP_PORT":                   587,
	"MAIL_FROM":                   "no-reply@pqrs.local",
	"OUTBOX_POLL_INTERVAL":        "10s",
	"OUTBOX_BATCH_SIZE":           50,
	"OUTBOX_MAX_ATTEMPTS":         5,
	"OUTBOX_LEASE":                "5m",
	"OUTBOX_RETRY_BACKOFF":        "30s",
	"OUTBOX_RETRY_MAX_BACKOFF":    "1h",
	"DEFAULT_MAX_RESPONSE_DAYS":   15,
	"TIME_ZONE":                   "UTC",
	"BOOTSTRAP_ENTITY_CODE":       "PQR",
	"OTEL_EXPORTER_OTLP_INSECURE": false,
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	// AutomaticEnv only resolves keys viper already knows about.
	for _, k := range []string{"DATABASE_URL", "JWT_SECRET", "SMTP_HOST", "SMTP_USER", "SMTP_PASSWORD",
		"BOOTSTRAP_ENTITY_NAME", "BOOTSTRAP_ENTITY_EMAIL", "BOOTSTRAP_ADMIN_EMAIL", "BOOTSTRAP_ADMIN_PASSWORD",
		"OTEL_EXPORTER_OTLP_ENDPOINT"} {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.NotifyMode != "outbox" && c.NotifyMode != "sync" {
		errs = append(errs, fmt.Errorf("unknown NOTIFY_MODE %q", c.NotifyMode))
	}
	switch c.MailDriver {
	case "log":
	case "smtp":
		if c.SMTPHost == "" {
			errs = append(errs, errors.New("SMTP_HOST is required for the smtp mail driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_DRIVER %q", c.MailDriver))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("invalid TIME_ZONE %q: %w", c.TimeZone, err))
	}
	return errors.Join(errs...)
}

// Location resolves TimeZone. An empty zone means UTC.
func (c Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.TimeZone)
}
