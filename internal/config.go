package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Heartbeat     HeartbeatConfig     `mapstructure:"heartbeat"`
	Site          SiteConfig          `mapstructure:"site"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	// JWTSecret signs operator access tokens (HS256).
	JWTSecret           string        `mapstructure:"jwt_secret"`
	AccessTokenDuration time.Duration `mapstructure:"access_token_duration"`
	// OperatorUsername/OperatorPasswordHash is the single management-API
	// credential; the hash is a bcrypt digest.
	OperatorUsername     string `mapstructure:"operator_username"`
	OperatorPasswordHash string `mapstructure:"operator_password_hash"`
	// DeviceKey authenticates the SMS-forwarding device on the ingest endpoint.
	DeviceKey string `mapstructure:"device_key"`
}

type GatewayConfig struct {
	DeviceID   string `mapstructure:"device_id"`
	DeviceName string `mapstructure:"device_name"`
	AppVersion string `mapstructure:"app_version"`
	// ConfidenceThreshold gates PaymentEvent creation from classifications.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	Currency            string  `mapstructure:"currency"`
}

type HeartbeatConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	RegistrarURL  string        `mapstructure:"registrar_url"`
	Interval      time.Duration `mapstructure:"interval"`
	ErrorInterval time.Duration `mapstructure:"error_interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// SiteConfig drives the reference destination-site server (`site` command).
type SiteConfig struct {
	Port          int           `mapstructure:"port"`
	Name          string        `mapstructure:"name"`
	APIKey        string        `mapstructure:"api_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	OrderLifetime time.Duration `mapstructure:"order_lifetime"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ----------------- DEFAULTS -----------------

const (
	DefaultConfidenceThreshold = 0.75
	DefaultHeartbeatInterval   = 15 * time.Second
	DefaultErrorInterval       = 5 * time.Second
	DefaultOrderLifetime       = 15 * time.Minute
	DefaultSweepInterval       = 30 * time.Second
)

func (c *Config) ApplyDefaults() {
	if c.Gateway.ConfidenceThreshold <= 0 {
		c.Gateway.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if c.Gateway.Currency == "" {
		c.Gateway.Currency = "THB"
	}
	if c.Heartbeat.Interval <= 0 {
		c.Heartbeat.Interval = DefaultHeartbeatInterval
	}
	if c.Heartbeat.ErrorInterval <= 0 {
		c.Heartbeat.ErrorInterval = DefaultErrorInterval
	}
	if c.Heartbeat.Timeout <= 0 {
		c.Heartbeat.Timeout = 10 * time.Second
	}
	if c.Security.AccessTokenDuration <= 0 {
		c.Security.AccessTokenDuration = 15 * time.Minute
	}
	if c.Site.OrderLifetime <= 0 {
		c.Site.OrderLifetime = DefaultOrderLifetime
	}
	if c.Site.SweepInterval <= 0 {
		c.Site.SweepInterval = DefaultSweepInterval
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// LoadConfigFromEnv builds the configuration purely from environment
// variables, for container deployments without a config file.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:           getEnv("SERVER_BASE_URL", ""),
			AllowedOrigins:    getEnv("SERVER_ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("SERVER_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DB_SOURCE", ""),
		},
		Security: SecurityConfig{
			JWTSecret:            getEnv("SECURITY_JWT_SECRET", ""),
			AccessTokenDuration:  getEnvAsDuration("SECURITY_ACCESS_TOKEN_DURATION", 15*time.Minute),
			OperatorUsername:     getEnv("SECURITY_OPERATOR_USERNAME", ""),
			OperatorPasswordHash: getEnv("SECURITY_OPERATOR_PASSWORD_HASH", ""),
			DeviceKey:            getEnv("SECURITY_DEVICE_KEY", ""),
		},
		Gateway: GatewayConfig{
			DeviceID:   getEnv("GATEWAY_DEVICE_ID", ""),
			DeviceName: getEnv("GATEWAY_DEVICE_NAME", ""),
			AppVersion: getEnv("GATEWAY_APP_VERSION", "dev"),
			Currency:   getEnv("GATEWAY_CURRENCY", "THB"),
		},
		Heartbeat: HeartbeatConfig{
			Enabled:       getEnv("HEARTBEAT_ENABLED", "true") == "true",
			RegistrarURL:  getEnv("HEARTBEAT_REGISTRAR_URL", ""),
			Interval:      getEnvAsDuration("HEARTBEAT_INTERVAL", DefaultHeartbeatInterval),
			ErrorInterval: getEnvAsDuration("HEARTBEAT_ERROR_INTERVAL", DefaultErrorInterval),
			Timeout:       getEnvAsDuration("HEARTBEAT_TIMEOUT", 10*time.Second),
		},
		Site: SiteConfig{
			Port:          getEnvAsInt("SITE_PORT", 8090),
			Name:          getEnv("SITE_NAME", ""),
			APIKey:        getEnv("SITE_API_KEY", ""),
			SecretKey:     getEnv("SITE_SECRET_KEY", ""),
			OrderLifetime: getEnvAsDuration("SITE_ORDER_LIFETIME", DefaultOrderLifetime),
			SweepInterval: getEnvAsDuration("SITE_SWEEP_INTERVAL", DefaultSweepInterval),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}
	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}
	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}
	if err := c.Gateway.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("gateway config: %v", err))
	}
	if err := c.Heartbeat.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("heartbeat config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		for _, origin := range strings.Split(c.AllowedOrigins, ",") {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 characters")
	}
	if c.OperatorUsername == "" || c.OperatorPasswordHash == "" {
		return errors.New("operator credentials are required")
	}
	if c.DeviceKey == "" {
		return errors.New("device_key is required")
	}
	return nil
}

func (c *GatewayConfig) Validate() error {
	if c.DeviceID == "" {
		return errors.New("device_id is required")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return errors.New("confidence_threshold must be within [0,1]")
	}
	return nil
}

func (c *HeartbeatConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RegistrarURL == "" {
		return errors.New("registrar_url is required when heartbeat is enabled")
	}
	if _, err := url.Parse(c.RegistrarURL); err != nil {
		return fmt.Errorf("invalid registrar_url: %w", err)
	}
	if c.ErrorInterval > c.Interval {
		return errors.New("error_interval should not exceed the normal interval")
	}
	return nil
}
