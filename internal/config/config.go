package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr        string
	DatabaseURL string
	// Shared content secrets. When PublishSecret is empty the publish
	// capability falls back to EditSecret (single-secret mode).
	EditSecret    string
	PublishSecret string
	CapabilityTTL time.Duration

	SessionSecret string
	OwnerOpenID   string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	MigrationsDir string
	ReposDir      string
	CORSOrigin    string

	MeiliURL       string
	MeiliMasterKey string

	// Object storage for project images. Disabled when MinioEndpoint is empty.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// SMTP Configuration
	SMTPHost        string
	SMTPPort        string
	SMTPUsername    string
	SMTPPassword    string
	SMTPFrom        string
	SMTPFromName    string
	ContactNotifyTo string

	// Redis Configuration
	RedisURL string
}

func Load() Config {
	return Config{
		Addr: getenv("API_ADDR", ":8788"),
		// Empty by default: the API starts in degraded mode without a
		// database and keeps the public site browsable.
		DatabaseURL:   getenv("DATABASE_URL", ""),
		EditSecret:    getenv("FOLIO_EDIT_SECRET", "folio-dev-edit"),
		PublishSecret: getenv("FOLIO_PUBLISH_SECRET", ""),
		CapabilityTTL: time.Duration(getenvInt("FOLIO_CAPABILITY_TTL_SECONDS", 1800)) * time.Second,
		SessionSecret: getenv("FOLIO_SESSION_SECRET", "folio-dev-secret"),
		OwnerOpenID:   getenv("FOLIO_OWNER_OPEN_ID", ""),
		AccessTTL:     time.Duration(getenvInt("FOLIO_ACCESS_TTL_SECONDS", 900)) * time.Second,
		RefreshTTL:    time.Duration(getenvInt("FOLIO_REFRESH_TTL_SECONDS", 2592000)) * time.Second,
		MigrationsDir: getenv("FOLIO_MIGRATIONS_DIR", "./db/migrations"),
		ReposDir:      getenv("FOLIO_REPOS_DIR", "./data/revisions"),
		CORSOrigin:    getenv("FOLIO_CORS_ORIGIN", "*"),

		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),

		MinioEndpoint:  getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "folio-media"),
		MinioUseSSL:    getenvInt("MINIO_USE_SSL", 0) == 1,

		// SMTP - empty by default, email disabled if not configured
		SMTPHost:        getenv("SMTP_HOST", ""),
		SMTPPort:        getenv("SMTP_PORT", "587"),
		SMTPUsername:    getenv("SMTP_USERNAME", ""),
		SMTPPassword:    getenv("SMTP_PASSWORD", ""),
		SMTPFrom:        getenv("SMTP_FROM", ""),
		SMTPFromName:    getenv("SMTP_FROM_NAME", "Folio"),
		ContactNotifyTo: getenv("FOLIO_CONTACT_NOTIFY_TO", ""),

		// Redis - optional, used for refresh tokens and capability records
		RedisURL: getenv("REDIS_URL", ""),
	}
}

// EffectivePublishSecret resolves the single-secret fallback.
func (c Config) EffectivePublishSecret() string {
	if c.PublishSecret != "" {
		return c.PublishSecret
	}
	return c.EditSecret
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
