package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// MaxPipefyTimeout is the ceiling applied to PIPEFY_TIMEOUT
const MaxPipefyTimeout = 30 * time.Second

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Supabase      SupabaseConfig
	Pipefy        PipefyConfig
	Tenancy       TenancyConfig
	Webhook       WebhookConfig
	Database      *DatabaseConfig // Optional: direct Postgres connection for events. When nil, events go through PostgREST.
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// SupabaseConfig holds the auth + data backend settings.
// ServiceRoleKey is the elevated credential that bypasses row-level security.
type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
	Timeout        time.Duration
}

// PipefyConfig holds the workflow tool API settings
type PipefyConfig struct {
	APIToken      string
	APIURL        string
	Timeout       time.Duration
	WebhookSecret string // When set, inbound webhooks must carry X-Pipefy-Signature
}

// TenancyConfig holds tenant resolution settings
type TenancyConfig struct {
	DefaultOrganizationID string            // Tenant for card_details_fetched events (ORGANIZATION_ID)
	PipeOrganizations     map[string]string // Static pipe id -> organization id map
}

// WebhookConfig holds inbound webhook limits
type WebhookConfig struct {
	RateLimit    float64 // requests per second across all webhook routes; 0 disables
	RateBurst    int
	MaxBodyBytes int64
}

// DatabaseConfig holds PostgreSQL database configuration
type DatabaseConfig struct {
	ConnectionString string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// CORSConfig holds allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or text; defaults to text in development
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	pipeMap, err := parsePipeOrganizations(getEnv("PIPE_ORGANIZATION_MAP", ""))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Supabase: SupabaseConfig{
			URL:            strings.TrimSuffix(getEnv("SUPABASE_URL", ""), "/"),
			ServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			Timeout:        getEnvAsDuration("SUPABASE_TIMEOUT", 10*time.Second),
		},
		Pipefy: PipefyConfig{
			APIToken:      getEnv("PIPEFY_API_TOKEN", ""),
			APIURL:        getEnv("PIPEFY_API_URL", "https://api.pipefy.com/graphql"),
			Timeout:       capDuration(getEnvAsDuration("PIPEFY_TIMEOUT", MaxPipefyTimeout), MaxPipefyTimeout),
			WebhookSecret: getEnv("PIPEFY_WEBHOOK_SECRET", ""),
		},
		Tenancy: TenancyConfig{
			DefaultOrganizationID: getEnv("ORGANIZATION_ID", ""),
			PipeOrganizations:     pipeMap,
		},
		Webhook: WebhookConfig{
			RateLimit:    getEnvAsFloat("WEBHOOK_RATE_LIMIT", 50),
			RateBurst:    getEnvAsInt("WEBHOOK_RATE_BURST", 100),
			MaxBodyBytes: int64(getEnvAsInt("WEBHOOK_MAX_BODY_BYTES", 1<<20)),
		},
		Database: loadDatabaseConfig(),
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{
				"https://yourapp.vercel.app",
				"http://localhost:3000",
			}),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", ""),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
		if cfg.IsDevelopment() {
			cfg.Observability.LogFormat = "text"
		}
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Supabase.URL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if u, err := url.Parse(c.Supabase.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("SUPABASE_URL must be an absolute URL: %q", c.Supabase.URL)
	}
	if c.Supabase.ServiceRoleKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required")
	}
	if c.Supabase.Timeout <= 0 {
		return fmt.Errorf("SUPABASE_TIMEOUT must be positive, got %s", c.Supabase.Timeout)
	}
	if c.Tenancy.DefaultOrganizationID == "" {
		return fmt.Errorf("ORGANIZATION_ID is required")
	}
	if _, err := uuid.Parse(c.Tenancy.DefaultOrganizationID); err != nil {
		return fmt.Errorf("ORGANIZATION_ID must be a UUID: %w", err)
	}
	if c.Pipefy.APIToken == "" {
		return fmt.Errorf("PIPEFY_API_TOKEN is required")
	}
	for pipeID, orgID := range c.Tenancy.PipeOrganizations {
		if _, err := uuid.Parse(orgID); err != nil {
			return fmt.Errorf("PIPE_ORGANIZATION_MAP: organization for pipe %s must be a UUID", pipeID)
		}
	}
	if c.Webhook.RateLimit < 0 {
		return fmt.Errorf("WEBHOOK_RATE_LIMIT must not be negative")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// LogString returns a safe string for logging (no password)
func (c *DatabaseConfig) LogString() string {
	u, err := url.Parse(c.ConnectionString)
	if err != nil || u.Host == "" {
		return "host=<from DATABASE_URL>"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	db := strings.TrimPrefix(u.Path, "/")
	return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, db)
}

// loadDatabaseConfig loads the optional direct database config from DATABASE_URL.
// Returns nil when not set (events use the PostgREST API).
func loadDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil
	}
	return &DatabaseConfig{
		ConnectionString: dbURL,
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// parsePipeOrganizations parses "pipeA=org-uuid,pipeB=org-uuid"
func parsePipeOrganizations(raw string) (map[string]string, error) {
	mapping := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		pipeID, orgID, ok := strings.Cut(pair, "=")
		pipeID, orgID = strings.TrimSpace(pipeID), strings.TrimSpace(orgID)
		if !ok || pipeID == "" || orgID == "" {
			return nil, fmt.Errorf("PIPE_ORGANIZATION_MAP: malformed entry %q, want pipe=organization", pair)
		}
		mapping[pipeID] = orgID
	}
	return mapping, nil
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func capDuration(d, ceiling time.Duration) time.Duration {
	if d <= 0 || d > ceiling {
		return ceiling
	}
	return d
}
