package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ErfanAalam/MyFootFirst2-sub000/capture"
)

// Blob store backends
const (
	BlobStoreS3       = "s3"
	BlobStoreSupabase = "supabase"
)

// Purge orders for superseded scan photos
const (
	PurgeBeforeUpload = "before_upload"
	PurgeAfterCommit  = "after_commit"
)

// Auth modes
const (
	AuthModeAuth0  = "auth0"
	AuthModeShared = "shared_secret"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL string
	Port        string
	GoEnv       string
	LogLevel    string

	AuthMode      string
	Auth0Domain   string
	Auth0Audience string
	JWTSecret     string
	RequiredScope string

	BlobStore          string
	AWSRegion          string
	AWSS3Bucket        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSEndpoint        string
	SupabaseURL        string
	SupabaseKey        string
	SupabaseBucket     string

	DetectorURL     string
	DetectorTimeout time.Duration

	CaptureDir         string
	SessionIdleTimeout time.Duration
	Thresholds         capture.Thresholds
	MaxPhotoEdge       int
	PurgeOrder         string
	QuestionnaireURL   string
	CORSOrigins        []string
}

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		// In production environment variables are set directly
		if err := godotenv.Load(); err != nil {
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	defaults := capture.DefaultThresholds()

	config := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Port:        getEnv("PORT", "8080"),
		GoEnv:       getEnv("GO_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		AuthMode:      getEnv("AUTH_MODE", AuthModeAuth0),
		Auth0Domain:   getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience: getEnv("AUTH0_AUDIENCE", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		RequiredScope: getEnv("AUTH_REQUIRED_SCOPE", ""),

		BlobStore:          strings.ToLower(getEnv("BLOB_STORE", BlobStoreS3)),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSS3Bucket:        getEnv("AWS_S3_BUCKET", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpoint:        getEnv("AWS_ENDPOINT", ""),
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseKey:        getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseBucket:     getEnv("SUPABASE_BUCKET", "scans"),

		DetectorURL:     getEnv("DETECTOR_URL", ""),
		DetectorTimeout: getEnvDuration("DETECTOR_TIMEOUT", 0),

		CaptureDir:         getEnv("CAPTURE_DIR", "captures"),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		Thresholds: capture.Thresholds{
			SideMinX:       getEnvFloat("ORIENTATION_SIDE_MIN_X", defaults.SideMinX),
			MaxForwardTilt: getEnvFloat("ORIENTATION_MAX_FORWARD_TILT", defaults.MaxForwardTilt),
			VerticalMinZ:   getEnvFloat("ORIENTATION_VERTICAL_MIN_Z", defaults.VerticalMinZ),
			TopMaxXY:       getEnvFloat("ORIENTATION_TOP_MAX_XY", defaults.TopMaxXY),
			TopMinZ:        getEnvFloat("ORIENTATION_TOP_MIN_Z", defaults.TopMinZ),
		},
		MaxPhotoEdge:     getEnvInt("MAX_PHOTO_EDGE", 2048),
		PurgeOrder:       getEnv("PURGE_ORDER", PurgeBeforeUpload),
		QuestionnaireURL: getEnv("QUESTIONNAIRE_URL", "/insoles/questionnaire"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DetectorURL == "" {
		return fmt.Errorf("DETECTOR_URL is required")
	}

	switch c.BlobStore {
	case BlobStoreS3:
		if c.AWSS3Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required when BLOB_STORE=s3")
		}
	case BlobStoreSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required when BLOB_STORE=supabase")
		}
	default:
		return fmt.Errorf("unknown BLOB_STORE %q", c.BlobStore)
	}

	switch c.AuthMode {
	case AuthModeAuth0:
		if c.Auth0Domain == "" || c.Auth0Audience == "" {
			return fmt.Errorf("AUTH0_DOMAIN and AUTH0_AUDIENCE are required when AUTH_MODE=auth0")
		}
	case AuthModeShared:
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=shared_secret is not allowed in production")
		}
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=shared_secret")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}

	if c.PurgeOrder != PurgeBeforeUpload && c.PurgeOrder != PurgeAfterCommit {
		return fmt.Errorf("PURGE_ORDER must be %q or %q", PurgeBeforeUpload, PurgeAfterCommit)
	}
	if c.DetectorTimeout < 0 {
		return fmt.Errorf("DETECTOR_TIMEOUT must not be negative")
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive")
	}
	if _, ok := logLevels[strings.ToLower(c.LogLevel)]; !ok && c.LogLevel != "" {
		return fmt.Errorf("unknown LOG_LEVEL %q", c.LogLevel)
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// GetDatabaseURL returns the database URL
func (c *Config) GetDatabaseURL() string {
	return c.DatabaseURL
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("warning: invalid %s=%q, using %v", key, raw, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("warning: invalid %s=%q, using %d", key, raw, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("warning: invalid %s=%q, using %s", key, raw, defaultValue)
		return defaultValue
	}
	return value
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
