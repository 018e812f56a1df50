// Package config manages environment variables.
//
// It reads variables from the process environment (and from a `.env`
// file when present), loads them into structured Go types, and
// validates that required values are present so they can be reused
// across the application runtime.
//
// Responsibilities:
//   - Load environment variables (optionally from a `.env` file).
//   - Map env vars into a structured Go config (structs).
//   - Validate required values so the app fails fast on bad/missing config.
//   - Provide sane defaults for optional config blocks (observability, repository).
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	// Side-effect import: if a `.env` file exists, it gets loaded into the
	// process env before any variable is read.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

/*
	Env vars are read using the prefix ONTOAPI_.
	Keys are normalized (lowercased, prefix removed) and nested struct
	fields are addressed with the "." delimiter:

	  ONTOAPI_SERVER.PORT          -> server.port          -> Config.Server.Port
	  ONTOAPI_REPOSITORY.BASE_URI  -> repository.base_uri  -> Config.Repository.BaseURI
*/

// EnvPrefix is the prefix every configuration variable must carry.
const EnvPrefix = "ONTOAPI_"

// ServiceName tags logs, traces and metrics emitted by this service.
const ServiceName = "ontology-api"

// Config is the root configuration object for the application.
//
// Observability is a pointer because it is optional. If not provided,
// defaults are injected at load time.
type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Database      DatabaseConfig       `koanf:"database" validate:"required"`
	Redis         RedisConfig          `koanf:"redis"`
	Auth          AuthConfig           `koanf:"auth"`
	Integration   IntegrationConfig    `koanf:"integration"`
	Repository    RepositoryConfig     `koanf:"repository"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// Primary holds top-level information about the runtime environment.
type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

// ServerConfig groups settings for the HTTP server runtime.
// Timeouts are expressed in seconds.
type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"required"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"required"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"required"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins" validate:"required"`
}

// DatabaseConfig contains PostgreSQL connection parameters and pool tuning.
type DatabaseConfig struct {
	Host            string `koanf:"host" validate:"required"`
	Port            int    `koanf:"port" validate:"required"`
	User            string `koanf:"user" validate:"required"`
	Password        string `koanf:"password" validate:"required"`
	Name            string `koanf:"name" validate:"required"`
	SSLMode         string `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int    `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int    `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime int    `koanf:"conn_max_idle_time" validate:"required"`
}

// DSN builds the postgres URL for this database.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
		d.User,
		url.QueryEscape(d.Password),
		net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		d.Name,
		d.SSLMode,
	)
}

// RedisConfig contains Redis connection details.
// Address is "host:port". Empty disables the statistics cache and the
// background job server.
type RedisConfig struct {
	Address string `koanf:"address"`
}

// AuthConfig stores authentication-related secrets.
// When SecretKey is empty, write routes are not protected.
type AuthConfig struct {
	SecretKey string `koanf:"secret_key"`
}

// IntegrationConfig holds credentials for third-party integrations.
type IntegrationConfig struct {
	ResendAPIKey string `koanf:"resend_api_key"`
	EmailFrom    string `koanf:"email_from" validate:"omitempty,email"`
}

// RepositoryConfig tunes the ontology repository itself.
type RepositoryConfig struct {
	// BaseURI prefixes every ontology, submission and mapping URI.
	BaseURI string `koanf:"base_uri" validate:"omitempty,url"`

	// FilesFolder is where uploaded ontology files are copied.
	FilesFolder string `koanf:"files_folder"`

	DefaultPageSize int `koanf:"default_page_size" validate:"gte=0"`
	MaxPageSize     int `koanf:"max_page_size" validate:"gte=0"`

	StatsCacheTTL        time.Duration `koanf:"stats_cache_ttl"`
	StatsRefreshSchedule string        `koanf:"stats_refresh_schedule"`

	// PullTimeout bounds the download of a submission's pullLocation.
	PullTimeout time.Duration `koanf:"pull_timeout"`

	// RateLimit is requests per second per client on write routes; 0 disables it.
	RateLimit float64 `koanf:"rate_limit" validate:"gte=0"`
	RateBurst int     `koanf:"rate_burst" validate:"gte=0"`
}

// DefaultRepositoryConfig returns the values used for unset repository keys.
func DefaultRepositoryConfig() RepositoryConfig {
	return RepositoryConfig{
		BaseURI:              "http://data.ontology-api.local",
		FilesFolder:          "./repository",
		DefaultPageSize:      50,
		MaxPageSize:          500,
		StatsCacheTTL:        10 * time.Minute,
		StatsRefreshSchedule: "@every 30m",
		PullTimeout:          60 * time.Second,
		RateLimit:            0,
		RateBurst:            20,
	}
}

// LoadConfig loads configuration from environment variables, unmarshals it into
// Config structs, validates it, applies defaults, and returns the resulting config.
//
// Behavior summary:
//   - Loads env vars with prefix ONTOAPI_
//   - Unmarshals into Config
//   - Validates required config blocks/fields
//   - Fills in repository and observability defaults
//   - Validates observability config as well
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load initial env variables: %w", err)
	}

	mainConfig := &Config{}
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("could not unmarshal main config: %w", err)
	}

	mainConfig.applyDefaults()

	validate := validator.New()
	if err := validate.Struct(mainConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Service name and environment are forced regardless of what the user set
	// so telemetry sees consistent naming.
	mainConfig.Observability.ServiceName = ServiceName
	mainConfig.Observability.Environment = mainConfig.Primary.Env

	if err := mainConfig.Observability.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	return mainConfig, nil
}

// applyDefaults fills zero values with the defaults of optional blocks.
func (c *Config) applyDefaults() {
	if c.Observability == nil {
		c.Observability = DefaultObservabilityConfig()
	} else {
		o := c.Observability
		def := DefaultObservabilityConfig()
		if o.Logging.Level == "" {
			o.Logging.Level = def.Logging.Level
		}
		if o.Logging.Format == "" {
			o.Logging.Format = def.Logging.Format
		}
		if o.HealthChecks.Timeout == 0 {
			o.HealthChecks.Timeout = def.HealthChecks.Timeout
		}
		if o.Metrics.Path == "" {
			o.Metrics.Path = def.Metrics.Path
		}
		// ServiceName/Environment are forced after validation anyway.
		o.ServiceName = def.ServiceName
		o.Environment = c.Primary.Env
	}

	d := DefaultRepositoryConfig()
	r := &c.Repository
	if r.BaseURI == "" {
		r.BaseURI = d.BaseURI
	}
	r.BaseURI = strings.TrimSuffix(r.BaseURI, "/")
	if r.FilesFolder == "" {
		r.FilesFolder = d.FilesFolder
	}
	if r.DefaultPageSize == 0 {
		r.DefaultPageSize = d.DefaultPageSize
	}
	if r.MaxPageSize == 0 {
		r.MaxPageSize = d.MaxPageSize
	}
	if r.DefaultPageSize > r.MaxPageSize {
		r.DefaultPageSize = r.MaxPageSize
	}
	if r.StatsCacheTTL == 0 {
		r.StatsCacheTTL = d.StatsCacheTTL
	}
	if r.StatsRefreshSchedule == "" {
		r.StatsRefreshSchedule = d.StatsRefreshSchedule
	}
	if r.PullTimeout == 0 {
		r.PullTimeout = d.PullTimeout
	}
	if r.RateBurst == 0 {
		r.RateBurst = d.RateBurst
	}
}
