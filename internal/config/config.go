package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration required by the gateway process.
// Values come from an optional YAML file (GATEWAY_CONFIG_FILE), overridden by the environment
// (optionally seeded from a local .env file). No other package reads raw environment variables.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Provider string         `yaml:"provider"`
	Twilio   TwilioConfig   `yaml:"twilio"`
	Telnyx   TelnyxConfig   `yaml:"telnyx"`
	Plivo    PlivoConfig    `yaml:"plivo"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Outbound OutboundConfig `yaml:"outbound"`
	Operator OperatorConfig `yaml:"operator"`
	DB       DBConfig       `yaml:"db"`
	Redis    RedisConfig    `yaml:"redis"`
}

type AppConfig struct {
	Env       string `yaml:"env"`
	LogFormat string `yaml:"log_format"`
}

// ServerConfig configures the webhook ingress listener.
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	WebhookPath string `yaml:"webhook_path"`
	StatusPath  string `yaml:"status_path"`

	// PublicURL is the externally visible URL providers sign against, when a proxy or
	// tunnel rewrites the host.
	PublicURL string `yaml:"public_url"`

	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
}

type TwilioConfig struct {
	AccountSID          string `yaml:"account_sid"`
	AuthToken           string `yaml:"auth_token"`
	FromNumber          string `yaml:"from_number"`
	MessagingServiceSID string `yaml:"messaging_service_sid"`
	BaseURL             string `yaml:"base_url"`
}

type TelnyxConfig struct {
	APIKey             string `yaml:"api_key"`
	PublicKey          string `yaml:"public_key"`
	FromNumber         string `yaml:"from_number"`
	MessagingProfileID string `yaml:"messaging_profile_id"`
	ConnectionID       string `yaml:"connection_id"`
	BaseURL            string `yaml:"base_url"`
}

type PlivoConfig struct {
	AuthID     string `yaml:"auth_id"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
	AnswerURL  string `yaml:"answer_url"`
	BaseURL    string `yaml:"base_url"`
}

type ChunkingConfig struct {
	Mode             string `yaml:"mode"`
	MaxLength        int    `yaml:"max_length"`
	SegmentNumbering *bool  `yaml:"segment_numbering"`
}

type OutboundConfig struct {
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// SendConcurrency caps concurrent sends per provider when Redis is configured. 0 disables.
	SendConcurrency int           `yaml:"send_concurrency"`
	SendSlotTTL     time.Duration `yaml:"send_slot_ttl"`
}

// OperatorConfig configures the authenticated operator API. Disabled when Port is 0.
type OperatorConfig struct {
	Port        int           `yaml:"port"`
	JWTSecret   string        `yaml:"jwt_secret"`
	JWTIssuer   string        `yaml:"jwt_issuer"`
	JWTAudience string        `yaml:"jwt_audience"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
}

// DBConfig configures the optional Postgres audit store. Disabled when Host is empty.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string `yaml:"sslmode"`
}

// RedisConfig configures the optional send concurrency cap. Disabled when Host is empty.
type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

const (
	defaultPort         = 3334
	defaultWebhookPath  = "/telephony/webhook"
	defaultStatusPath   = "/telephony/status"
	defaultMaxBodyBytes = 512 * 1024
	defaultReadTimeout  = 30 * time.Second
	defaultHTTPTimeout  = 30 * time.Second
	defaultSlotTTL      = 60 * time.Second
	defaultTokenTTL     = 12 * time.Hour
)

// Load reads .env (if present), the YAML file named by GATEWAY_CONFIG_FILE (if set) and the
// environment, applies defaults and validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	c := Config{}
	if path := strings.TrimSpace(os.Getenv("GATEWAY_CONFIG_FILE")); path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		c = fc
	}

	if err := c.applyEnv(); err != nil {
		return Config{}, err
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadFile parses a YAML configuration file without applying defaults.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	var parseErrs []error

	setString(&c.App.Env, "APP_ENV")
	setString(&c.App.LogFormat, "LOG_FORMAT")

	setString(&c.Server.Host, "SERVER_HOST")
	parseErrs = setInt(parseErrs, &c.Server.Port, "SERVER_PORT")
	setString(&c.Server.WebhookPath, "WEBHOOK_PATH")
	setString(&c.Server.StatusPath, "STATUS_PATH")
	setString(&c.Server.PublicURL, "PUBLIC_URL")
	parseErrs = setInt64(parseErrs, &c.Server.MaxBodyBytes, "MAX_BODY_BYTES")
	parseErrs = setDuration(parseErrs, &c.Server.ReadTimeout, "READ_TIMEOUT")

	setString(&c.Provider, "PROVIDER")

	setString(&c.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	setSecret(&c.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	setString(&c.Twilio.FromNumber, "TWILIO_FROM_NUMBER")
	setString(&c.Twilio.MessagingServiceSID, "TWILIO_MESSAGING_SERVICE_SID")
	setString(&c.Twilio.BaseURL, "TWILIO_BASE_URL")

	setSecret(&c.Telnyx.APIKey, "TELNYX_API_KEY")
	setString(&c.Telnyx.PublicKey, "TELNYX_PUBLIC_KEY")
	setString(&c.Telnyx.FromNumber, "TELNYX_FROM_NUMBER")
	setString(&c.Telnyx.MessagingProfileID, "TELNYX_MESSAGING_PROFILE_ID")
	setString(&c.Telnyx.ConnectionID, "TELNYX_CONNECTION_ID")
	setString(&c.Telnyx.BaseURL, "TELNYX_BASE_URL")

	setString(&c.Plivo.AuthID, "PLIVO_AUTH_ID")
	setSecret(&c.Plivo.AuthToken, "PLIVO_AUTH_TOKEN")
	setString(&c.Plivo.FromNumber, "PLIVO_FROM_NUMBER")
	setString(&c.Plivo.AnswerURL, "PLIVO_ANSWER_URL")
	setString(&c.Plivo.BaseURL, "PLIVO_BASE_URL")

	setString(&c.Chunking.Mode, "SMS_CHUNK_MODE")
	parseErrs = setInt(parseErrs, &c.Chunking.MaxLength, "SMS_MAX_LENGTH")
	if v := strings.TrimSpace(os.Getenv("SMS_SEGMENT_NUMBERING")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("SMS_SEGMENT_NUMBERING must be a boolean, got %q", v))
		} else {
			c.Chunking.SegmentNumbering = &b
		}
	}

	parseErrs = setDuration(parseErrs, &c.Outbound.HTTPTimeout, "OUTBOUND_HTTP_TIMEOUT")
	parseErrs = setInt(parseErrs, &c.Outbound.SendConcurrency, "OUTBOUND_SEND_CONCURRENCY")
	parseErrs = setDuration(parseErrs, &c.Outbound.SendSlotTTL, "OUTBOUND_SEND_SLOT_TTL")

	parseErrs = setInt(parseErrs, &c.Operator.Port, "OPERATOR_PORT")
	setSecret(&c.Operator.JWTSecret, "OPERATOR_JWT_SECRET")
	setString(&c.Operator.JWTIssuer, "OPERATOR_JWT_ISSUER")
	setString(&c.Operator.JWTAudience, "OPERATOR_JWT_AUDIENCE")
	parseErrs = setDuration(parseErrs, &c.Operator.TokenTTL, "OPERATOR_TOKEN_TTL")

	setString(&c.DB.Host, "DB_HOST")
	parseErrs = setInt(parseErrs, &c.DB.Port, "DB_PORT")
	setString(&c.DB.User, "DB_USER")
	setSecret(&c.DB.Password, "DB_PASSWORD")
	setString(&c.DB.Name, "DB_NAME")
	setString(&c.DB.SSLMode, "DB_SSLMODE")

	setString(&c.Redis.Host, "REDIS_HOST")
	parseErrs = setInt(parseErrs, &c.Redis.Port, "REDIS_PORT")

	return joinErrors(parseErrs)
}

// ApplyDefaults fills unset values. Production must set DB_SSLMODE explicitly.
func (c *Config) ApplyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "local"
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.WebhookPath == "" {
		c.Server.WebhookPath = defaultWebhookPath
	}
	if c.Server.StatusPath == "" {
		c.Server.StatusPath = defaultStatusPath
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = defaultReadTimeout
	}
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = "mock"
	}
	if c.Chunking.SegmentNumbering == nil {
		on := true
		c.Chunking.SegmentNumbering = &on
	}
	if c.Outbound.HTTPTimeout <= 0 {
		c.Outbound.HTTPTimeout = defaultHTTPTimeout
	}
	if c.Outbound.SendSlotTTL <= 0 {
		c.Outbound.SendSlotTTL = defaultSlotTTL
	}
	if c.Operator.TokenTTL <= 0 {
		c.Operator.TokenTTL = defaultTokenTTL
	}
	if c.DB.Host != "" {
		if c.DB.Port == 0 {
			c.DB.Port = 5432
		}
		if c.DB.SSLMode == "" && !c.IsProduction() {
			c.DB.SSLMode = "disable"
		}
	}
	if c.Redis.Host != "" && c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
}

func (c Config) Validate() error {
	var errs []error

	if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	switch c.App.LogFormat {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.App.LogFormat))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT must be a valid port, got %d", c.Server.Port))
	}
	if !strings.HasPrefix(c.Server.WebhookPath, "/") {
		errs = append(errs, fmt.Errorf("WEBHOOK_PATH must start with /, got %q", c.Server.WebhookPath))
	}
	if !strings.HasPrefix(c.Server.StatusPath, "/") {
		errs = append(errs, fmt.Errorf("STATUS_PATH must start with /, got %q", c.Server.StatusPath))
	}

	switch c.Provider {
	case "twilio", "telnyx", "plivo", "mock":
	default:
		errs = append(errs, fmt.Errorf("PROVIDER must be one of twilio, telnyx, plivo, mock, got %q", c.Provider))
	}

	switch strings.ToLower(c.Chunking.Mode) {
	case "", "auto", "single", "multi":
	default:
		errs = append(errs, fmt.Errorf("SMS_CHUNK_MODE must be one of auto, single, multi, got %q", c.Chunking.Mode))
	}
	if c.Chunking.MaxLength < 0 {
		errs = append(errs, fmt.Errorf("SMS_MAX_LENGTH must be positive, got %d", c.Chunking.MaxLength))
	}

	if c.Outbound.SendConcurrency < 0 {
		errs = append(errs, fmt.Errorf("OUTBOUND_SEND_CONCURRENCY must be >= 0, got %d", c.Outbound.SendConcurrency))
	}

	if c.OperatorEnabled() {
		if c.Operator.Port < 0 || c.Operator.Port > 65535 || c.Operator.Port == c.Server.Port {
			errs = append(errs, fmt.Errorf("OPERATOR_PORT must be a valid port distinct from SERVER_PORT, got %d", c.Operator.Port))
		}
		if c.Operator.JWTSecret == "" {
			errs = append(errs, errors.New("OPERATOR_JWT_SECRET is required when OPERATOR_PORT is set"))
		}
		if c.IsProduction() {
			if c.Operator.JWTIssuer == "" {
				errs = append(errs, errors.New("OPERATOR_JWT_ISSUER is required in production"))
			}
			if c.Operator.JWTAudience == "" {
				errs = append(errs, errors.New("OPERATOR_JWT_AUDIENCE is required in production"))
			}
		}
	}

	if c.DB.Host != "" {
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required when DB_HOST is set"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required when DB_HOST is set"))
		}
		if c.DB.SSLMode == "" {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else if !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) OperatorEnabled() bool {
	return c.Operator.Port != 0
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c Config) OperatorAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Operator.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// setSecret keeps surrounding whitespace; secrets are used byte-for-byte.
func setSecret(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(errs []error, dst *int, key string) []error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	*dst = n
	return errs
}

func setInt64(errs []error, dst *int64, key string) []error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return errs
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	*dst = n
	return errs
}

func setDuration(errs []error, dst *time.Duration, key string) []error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return append(errs, fmt.Errorf("%s must be a duration, got %q", key, v))
	}
	*dst = d
	return errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
