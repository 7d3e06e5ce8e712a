package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Email sending modes for Site.EmailsDisabled.
const (
	EmailsEnabled     = "no"
	EmailsDisabledAll = "yes"
	EmailsNonStaff    = "non-staff"
)

// Outbound provider identifiers. Provider identity is an explicit setting,
// never inferred from the transport endpoint address.
const (
	ProviderSparkPost = "sparkpost"
	ProviderMailjet   = "mailjet"
	ProviderMandrill  = "mandrill"
	ProviderSES       = "ses"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Site      SiteConfig      `yaml:"site"`
	Transport TransportConfig `yaml:"transport"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Worker    WorkerConfig    `yaml:"worker"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// SiteConfig is the snapshot of site settings the delivery pipeline reads.
type SiteConfig struct {
	Title               string   `yaml:"title"`
	BaseURL             string   `yaml:"base_url"`
	NotificationEmail   string   `yaml:"notification_email"`
	ReplyByEmailAddress string   `yaml:"reply_by_email_address"`
	EmailsDisabled      string   `yaml:"emails_disabled"` // "no", "yes" or "non-staff"
	CustomHeaders       []string `yaml:"custom_headers"`  // "Name: value" entries

	BounceableReplyAddress bool `yaml:"bounceable_reply_address"`

	StripImagesFromShortEmails bool `yaml:"strip_images_from_short_emails"`
	ShortEmailThresholdBytes   int  `yaml:"short_email_threshold_bytes"`
	SecureMediaAllowEmbed      bool `yaml:"secure_media_allow_embed"`

	PrivateEmail bool `yaml:"private_email"` // suppress topic URLs in headers
}

// Host returns the bare hostname of the site base URL.
func (c SiteConfig) Host() string {
	host := c.BaseURL
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}

// BounceAddress returns the envelope return-path address for a bounce key,
// derived from the notification address: "noreply@x" becomes
// "noreply+verp-KEY@x".
func (c SiteConfig) BounceAddress(bounceKey string) string {
	at := strings.IndexByte(c.NotificationEmail, '@')
	if at < 0 {
		return c.NotificationEmail
	}
	return fmt.Sprintf("%s+verp-%s@%s", c.NotificationEmail[:at], bounceKey, c.NotificationEmail[at+1:])
}

// TransportConfig selects and configures the outbound transport.
type TransportConfig struct {
	Provider  string          `yaml:"provider"` // sparkpost, mailjet, mandrill, ses or empty
	SparkPost SparkPostConfig `yaml:"sparkpost"`
	SES       SESConfig       `yaml:"ses"`
}

// SparkPostConfig holds SparkPost API configuration
type SparkPostConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c SparkPostConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SESConfig holds AWS SES API configuration
type SESConfig struct {
	Region         string `yaml:"region"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds redis connection settings for the send queue
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// WorkerConfig holds send dispatcher settings
type WorkerConfig struct {
	NumWorkers int    `yaml:"num_workers"`
	Queue      string `yaml:"queue"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Site.EmailsDisabled == "" {
		cfg.Site.EmailsDisabled = EmailsEnabled
	}
	if cfg.Site.ShortEmailThresholdBytes == 0 {
		cfg.Site.ShortEmailThresholdBytes = 2803
	}
	if cfg.Transport.SparkPost.BaseURL == "" {
		cfg.Transport.SparkPost.BaseURL = "https://api.sparkpost.com/api/v1"
	}
	if cfg.Transport.SparkPost.TimeoutSeconds == 0 {
		cfg.Transport.SparkPost.TimeoutSeconds = 30
	}
	if cfg.Transport.SES.TimeoutSeconds == 0 {
		cfg.Transport.SES.TimeoutSeconds = 30
	}
	if cfg.Transport.SES.Region == "" {
		cfg.Transport.SES.Region = "us-west-2"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Worker.NumWorkers == 0 {
		cfg.Worker.NumWorkers = 4
	}
	if cfg.Worker.Queue == "" {
		cfg.Worker.Queue = "mailroom:queue:outbound"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets
// can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SPARKPOST_API_KEY"); v != "" {
		cfg.Transport.SparkPost.APIKey = v
	}
	if v := os.Getenv("SPARKPOST_BASE_URL"); v != "" {
		cfg.Transport.SparkPost.BaseURL = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Transport.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Transport.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Transport.SES.Region = v
	}
	if v := os.Getenv("MAIL_PROVIDER"); v != "" {
		cfg.Transport.Provider = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Site.EmailsDisabled {
	case EmailsEnabled, EmailsDisabledAll, EmailsNonStaff:
	default:
		return fmt.Errorf("config: invalid emails_disabled mode %q", c.Site.EmailsDisabled)
	}
	switch c.Transport.Provider {
	case "", ProviderSparkPost, ProviderMailjet, ProviderMandrill, ProviderSES:
	default:
		return fmt.Errorf("config: unknown provider %q", c.Transport.Provider)
	}
	return nil
}
