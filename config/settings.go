package config

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageS3       = "s3"

	SessionsCookie = "cookie"
	SessionsRedis  = "redis"

	UploadsDisk = "disk"
	UploadsS3   = "s3"
)

// Settings is the typed view of the environment used to wire the server.
type Settings struct {
	Port        string
	Environment string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	AllowedOrigins []string

	AdminKey       string
	SessionSecret  []byte
	SessionMaxAge  time.Duration
	SessionBackend string
	RedisURL       string
	SecureCookies  bool
	LoginRateLimit int

	StorageBackend string
	StoreTimeout   time.Duration
	DataFile       string
	DatabaseURL    string
	DocumentName   string

	S3Bucket          string
	S3DocumentKey     string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	UploadBackend       string
	UploadDir           string
	UploadPrefix        string
	UploadPublicBaseURL string
	UploadTimeout       time.Duration
	ClamdAddr           string

	MetricsEnabled bool
}

func (s Settings) IsProduction() bool {
	return s.Environment == "production"
}

// Load builds Settings from an environment map and checks that each chosen backend has what it needs.
func Load(c map[string]string) (Settings, error) {
	environment := strings.ToLower(GetString(c, "ENVIRONMENT", "development"))

	s := Settings{
		Port:         GetString(c, "PORT", "8080"),
		Environment:  environment,
		ReadTimeout:  GetSeconds(c, "READ_TIMEOUT_SECONDS", 180*time.Second),
		WriteTimeout: GetSeconds(c, "WRITE_TIMEOUT_SECONDS", 180*time.Second),
		IdleTimeout:  GetSeconds(c, "IDLE_TIMEOUT_SECONDS", 180*time.Second),

		AllowedOrigins: GetList(c, "ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),

		AdminKey:       GetString(c, "ADMIN_KEY", ""),
		SessionMaxAge:  GetSeconds(c, "SESSION_MAX_AGE_SECONDS", 7*24*time.Hour),
		SessionBackend: strings.ToLower(GetString(c, "SESSION_BACKEND", SessionsCookie)),
		RedisURL:       GetString(c, "REDIS_URL", ""),
		SecureCookies:  GetBool(c, "COOKIE_SECURE", environment == "production"),
		LoginRateLimit: GetInt(c, "LOGIN_RATE_LIMIT_PER_MINUTE", 10),

		StorageBackend: strings.ToLower(GetString(c, "STORAGE_BACKEND", StorageFile)),
		StoreTimeout:   GetSeconds(c, "STORE_TIMEOUT_SECONDS", 10*time.Second),
		DataFile:       GetString(c, "DATA_FILE", "data/site-config.json"),
		DatabaseURL:    GetString(c, "DATABASE_URL", ""),
		DocumentName:   GetString(c, "DOCUMENT_NAME", "site"),

		S3Bucket:          GetString(c, "S3_BUCKET", ""),
		S3DocumentKey:     GetString(c, "S3_DOCUMENT_KEY", "site-config.json"),
		S3Endpoint:        GetString(c, "S3_ENDPOINT", ""),
		S3Region:          GetString(c, "S3_REGION", "us-east-1"),
		S3AccessKeyID:     GetString(c, "S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: GetString(c, "S3_SECRET_ACCESS_KEY", ""),

		UploadBackend:       strings.ToLower(GetString(c, "UPLOAD_BACKEND", UploadsDisk)),
		UploadDir:           GetString(c, "UPLOAD_DIR", "data/uploads"),
		UploadPrefix:        GetString(c, "UPLOAD_PREFIX", "uploads"),
		UploadPublicBaseURL: GetString(c, "UPLOAD_PUBLIC_BASE_URL", ""),
		UploadTimeout:       GetSeconds(c, "UPLOAD_TIMEOUT_SECONDS", 30*time.Second),
		ClamdAddr:           GetString(c, "CLAMD_ADDR", ""),

		MetricsEnabled: GetBool(c, "METRICS_ENABLED", true),
	}

	secret := GetString(c, "SESSION_SECRET", "")
	switch {
	case secret == "":
		generated := make([]byte, 32)
		if _, err := rand.Read(generated); err != nil {
			return Settings{}, fmt.Errorf("generate session secret: %w", err)
		}
		s.SessionSecret = generated
		log.Warn().Msg("SESSION_SECRET is not set, using a random secret; sessions will not survive restarts")
	case len(secret) < 32:
		return Settings{}, fmt.Errorf("SESSION_SECRET must be at least 32 characters")
	default:
		s.SessionSecret = []byte(secret)
	}

	if s.AdminKey == "" {
		log.Warn().Msg("ADMIN_KEY is not set, admin login is disabled")
	}

	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) validate() error {
	switch s.StorageBackend {
	case StorageFile:
		if s.DataFile == "" {
			return fmt.Errorf("DATA_FILE is required for the file storage backend")
		}
	case StoragePostgres:
		if s.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres storage backend")
		}
	case StorageS3:
		if s.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 storage backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", s.StorageBackend)
	}

	switch s.SessionBackend {
	case SessionsCookie:
	case SessionsRedis:
		if s.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis session backend")
		}
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", s.SessionBackend)
	}

	switch s.UploadBackend {
	case UploadsDisk:
	case UploadsS3:
		if s.S3Bucket == "" || s.UploadPublicBaseURL == "" {
			return fmt.Errorf("S3_BUCKET and UPLOAD_PUBLIC_BASE_URL are required for the s3 upload backend")
		}
	default:
		return fmt.Errorf("unknown UPLOAD_BACKEND %q", s.UploadBackend)
	}
	return nil
}

// UsesS3 reports whether any component needs an S3 client.
func (s Settings) UsesS3() bool {
	return s.StorageBackend == StorageS3 || s.UploadBackend == UploadsS3
}
