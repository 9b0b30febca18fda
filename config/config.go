package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env  string `mapstructure:"APP_ENV"`
	Port string `mapstructure:"PORT"`

	// Store selects the persistence backend: "mongo" or "memory".
	Store        string `mapstructure:"STORE"`
	MongoURI     string `mapstructure:"MONGODB_URI"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`

	JWTSecret        string `mapstructure:"JWT_SECRET"`
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	AccessTTLMinutes int    `mapstructure:"ACCESS_TOKEN_TTL_MINUTES"`
	RefreshTTLDays   int    `mapstructure:"REFRESH_TOKEN_TTL_DAYS"`
	CookieDomain     string `mapstructure:"COOKIE_DOMAIN"`
	CookieSecure     bool   `mapstructure:"COOKIE_SECURE"`

	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`

	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	// BlobBackend is "r2", "gcs" or "none".
	BlobBackend             string `mapstructure:"BLOB_BACKEND"`
	R2Bucket                string `mapstructure:"R2_BUCKET"`
	R2AccessKeyID           string `mapstructure:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey       string `mapstructure:"R2_SECRET_ACCESS_KEY"`
	R2Endpoint              string `mapstructure:"R2_ENDPOINT"`
	R2PublicDomain          string `mapstructure:"R2_PUBLIC_DOMAIN"`
	GCSBucket               string `mapstructure:"GCS_BUCKET"`
	CredentialsFile         string `mapstructure:"CREDENTIALS_FILE_LOCATION"`
	MaxUploadSizeMB         int    `mapstructure:"MAX_UPLOAD_SIZE_MB"`
	AllowedFileExtensions   string `mapstructure:"ALLOWED_FILE_EXTENSIONS"`
	AllowedFileMimeTypes    string `mapstructure:"ALLOWED_FILE_MIME_TYPES"`
	MaxAttachmentsPerNotice int    `mapstructure:"MAX_ATTACHMENTS_PER_NOTICE"`

	NotificationDisplayLimit  int    `mapstructure:"NOTIFICATION_DISPLAY_LIMIT"`
	NotificationRetentionMode string `mapstructure:"NOTIFICATION_RETENTION_MODE"`

	OutboxPollInterval time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`
	OutboxBatchSize    int           `mapstructure:"OUTBOX_BATCH_SIZE"`
	OutboxMaxAttempts  int           `mapstructure:"OUTBOX_MAX_ATTEMPTS"`

	HiddenCutoffReservations time.Duration `mapstructure:"HIDDEN_CUTOFF_RESERVATIONS"`
	HiddenCutoffPurchases    time.Duration `mapstructure:"HIDDEN_CUTOFF_PURCHASES"`
	HiddenCutoffSupport      time.Duration `mapstructure:"HIDDEN_CUTOFF_SUPPORT"`

	Timezone string `mapstructure:"TIMEZONE"`

	ReadQueryMaxLimit     int `mapstructure:"READ_QUERY_MAX_LIMIT"`
	DefaultReadQueryLimit int `mapstructure:"DEFAULT_READ_QUERY_LIMIT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORE", "mongo")
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("DATABASE_NAME", "escola")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 15)
	v.SetDefault("REFRESH_TOKEN_TTL_DAYS", 14)
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("BLOB_BACKEND", "none")
	v.SetDefault("R2_BUCKET", "")
	v.SetDefault("R2_ACCESS_KEY_ID", "")
	v.SetDefault("R2_SECRET_ACCESS_KEY", "")
	v.SetDefault("R2_ENDPOINT", "")
	v.SetDefault("R2_PUBLIC_DOMAIN", "")
	v.SetDefault("GCS_BUCKET", "")
	v.SetDefault("CREDENTIALS_FILE_LOCATION", "")
	v.SetDefault("MAX_UPLOAD_SIZE_MB", 5)
	v.SetDefault("ALLOWED_FILE_EXTENSIONS", ".pdf,.jpg,.jpeg,.png,.webp")
	v.SetDefault("ALLOWED_FILE_MIME_TYPES", "application/pdf,image/jpeg,image/png,image/webp")
	v.SetDefault("MAX_ATTACHMENTS_PER_NOTICE", 4)
	v.SetDefault("NOTIFICATION_DISPLAY_LIMIT", 5)
	v.SetDefault("NOTIFICATION_RETENTION_MODE", "archive")
	v.SetDefault("OUTBOX_POLL_INTERVAL", 2*time.Second)
	v.SetDefault("OUTBOX_BATCH_SIZE", 50)
	v.SetDefault("OUTBOX_MAX_ATTEMPTS", 10)
	v.SetDefault("HIDDEN_CUTOFF_RESERVATIONS", 7*24*time.Hour)
	v.SetDefault("HIDDEN_CUTOFF_PURCHASES", 30*24*time.Hour)
	v.SetDefault("HIDDEN_CUTOFF_SUPPORT", 14*24*time.Hour)
	v.SetDefault("TIMEZONE", "America/Sao_Paulo")
	v.SetDefault("READ_QUERY_MAX_LIMIT", 100)
	v.SetDefault("DEFAULT_READ_QUERY_LIMIT", 20)
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.BlobBackend = strings.ToLower(strings.TrimSpace(cfg.BlobBackend))
	cfg.AdminEmail = strings.ToLower(strings.TrimSpace(cfg.AdminEmail))

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.JWTSecret == "" || c.JWTRefreshSecret == "" {
		return fmt.Errorf("config: JWT_SECRET and JWT_REFRESH_SECRET are required")
	}
	switch c.Store {
	case "mongo", "memory":
	default:
		return fmt.Errorf("config: unknown STORE %q", c.Store)
	}
	switch c.BlobBackend {
	case "r2", "gcs", "none":
	default:
		return fmt.Errorf("config: unknown BLOB_BACKEND %q", c.BlobBackend)
	}
	switch c.NotificationRetentionMode {
	case "archive", "global-delete":
	default:
		return fmt.Errorf("config: unknown NOTIFICATION_RETENTION_MODE %q", c.NotificationRetentionMode)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: TIMEZONE: %w", err)
	}
	return nil
}

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) AccessTTL() time.Duration {
	if c.AccessTTLMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.AccessTTLMinutes) * time.Minute
}

func (c Config) RefreshTTL() time.Duration {
	if c.RefreshTTLDays <= 0 {
		return 14 * 24 * time.Hour
	}
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

func (c Config) Origins() map[string]bool {
	allowed := map[string]bool{}
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowed[origin] = true
		}
	}
	return allowed
}
