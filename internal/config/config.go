package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DB     DBConfig
	MinIO  MinIOConfig
	JWT    JWTConfig
	Server ServerConfig
	AMQP   AMQPConfig
	Invite InviteConfig
	Audit  AuditConfig
	Report ReportConfig
	Admin  AdminConfig
}

type DBConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

// MinIOConfig drives the optional archive of rendered PDF reports.
type MinIOConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type ServerConfig struct {
	Port        string
	CORSOrigins string
}

// AMQPConfig configures the domain event publisher. An empty URL disables it.
type AMQPConfig struct {
	URL            string
	Exchange       string
	PublishTimeout time.Duration
}

type InviteConfig struct {
	TTL time.Duration
}

type AuditConfig struct {
	QueueSize int
}

// ReportConfig controls PDF rendering and the lifetime of archive download
// links.
type ReportConfig struct {
	Currency string
	LinkTTL  time.Duration
}

// AdminConfig seeds the first system administrator on an empty database.
type AdminConfig struct {
	Email    string
	Password string
	Name     string
}

// Load reads configuration from the environment. Values from a .env file in
// the working directory are applied first and never override real variables.
func Load() *Config {
	loadDotEnv(getEnv("ENV_FILE", ".env"))

	return &Config{
		DB: DBConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "splitbill"),
			Password:   getEnv("DB_PASSWORD", "splitbill_secret"),
			Name:       getEnv("DB_NAME", "splitbill"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("DB_SQLITE_PATH", "split-the-bill.db"),
		},
		MinIO: MinIOConfig{
			Enabled:   getEnvAsBool("MINIO_ENABLED", false),
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "splitbill"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "splitbill_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "split-reports"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		AMQP: AMQPConfig{
			URL:            getEnv("AMQP_URL", ""),
			Exchange:       getEnv("AMQP_EXCHANGE", "split.events"),
			PublishTimeout: getEnvAsDuration("AMQP_PUBLISH_TIMEOUT", 5*time.Second),
		},
		Invite: InviteConfig{
			TTL: getEnvAsDuration("INVITE_TTL", 7*24*time.Hour),
		},
		Audit: AuditConfig{
			QueueSize: getEnvAsInt("AUDIT_QUEUE_SIZE", 1000),
		},
		Report: ReportConfig{
			Currency: strings.ToUpper(getEnv("REPORT_CURRENCY", "IDR")),
			LinkTTL:  getEnvAsDuration("REPORT_LINK_TTL", 15*time.Minute),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
			Name:     getEnv("ADMIN_NAME", "System Admin"),
		},
	}
}

func loadDotEnv(path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		// A malformed file is reported on stderr; the logger is not up yet.
		os.Stderr.WriteString("config: ignoring " + path + ": " + err.Error() + "\n")
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
