package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	appjobs "github.com/bryanwahyu/brandsentry/internal/application/jobs"
	appscans "github.com/bryanwahyu/brandsentry/internal/application/scans"
	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/infra/ai/openai"
	"github.com/bryanwahyu/brandsentry/internal/infra/dns"
	"github.com/bryanwahyu/brandsentry/internal/infra/evidence"
	"github.com/bryanwahyu/brandsentry/internal/infra/ratelimit"
	"github.com/bryanwahyu/brandsentry/internal/infra/social"
)

// Database drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
		// EmbeddedWorker runs a job worker inside the API process.
		EmbeddedWorker bool `yaml:"embeddedWorker"`
	} `yaml:"server"`

	Database struct {
		Driver      string `yaml:"driver"`
		DSN         string `yaml:"dsn"` // overrides the fields below
		Host        string `yaml:"host"`
		Port        int    `yaml:"port"`
		User        string `yaml:"user"`
		Password    string `yaml:"password"`
		Name        string `yaml:"name"`
		SSLMode     string `yaml:"sslMode"`
		AutoMigrate bool   `yaml:"autoMigrate"`
	} `yaml:"database"`

	Minio struct {
		Endpoint      string        `yaml:"endpoint"`
		AccessKey     string        `yaml:"accessKey"`
		SecretKey     string        `yaml:"secretKey"`
		BucketName    string        `yaml:"bucketName"`
		Region        string        `yaml:"region"`
		UseSSL        bool          `yaml:"useSSL"`
		PresignExpiry time.Duration `yaml:"presignExpiry"`
	} `yaml:"minio"`

	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subjectPrefix"`
	} `yaml:"nats"`

	Alerts struct {
		WebhookTimeout time.Duration `yaml:"webhookTimeout"`
	} `yaml:"alerts"`

	Auth struct {
		APIKeys       map[string]string `yaml:"apiKeys"` // tenant -> key
		RatePerSecond float64           `yaml:"ratePerSecond"`
		RateBurst     int               `yaml:"rateBurst"`
	} `yaml:"auth"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`

	// Brands seeds the memory driver; SQL drivers read brands from the database.
	Brands []BrandSeed `yaml:"brands"`

	OpenAI   openai.Config       `yaml:"openai"`
	DNS      dns.Config          `yaml:"dns"`
	Evidence evidence.Config     `yaml:"evidence"`
	Social   social.Config       `yaml:"social"`
	Limits   ratelimit.SetConfig `yaml:"limits"`
	Scan     appscans.Options    `yaml:"scan"`
	Worker   appjobs.Config      `yaml:"worker"`
}

// Load baca file config.yaml, then applies env overrides and defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Path returns CONFIG_PATH or config.yaml.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "config.yaml"
}

// applyEnv lets secrets stay out of the file.
func (c *Config) applyEnv() {
	setString(&c.Database.Password, "DATABASE_PASSWORD")
	setString(&c.Database.DSN, "DATABASE_DSN")
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.NATS.URL, "NATS_URL")
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverMySQL
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case DriverPostgres:
			c.Database.Port = 5432
		default:
			c.Database.Port = 3306
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Minio.PresignExpiry <= 0 {
		c.Minio.PresignExpiry = 15 * time.Minute
	}
	if c.Alerts.WebhookTimeout <= 0 {
		c.Alerts.WebhookTimeout = 10 * time.Second
	}
	if c.Auth.RateBurst <= 0 {
		c.Auth.RateBurst = 20
	}
	c.Limits = c.Limits.WithDefaults()
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("database.driver: unsupported %q (mysql, postgres, memory)", c.Database.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: out of range: %d", c.Server.Port)
	}
	for i, b := range c.Brands {
		if b.ID == "" || b.PrimaryDomain == "" {
			return fmt.Errorf("brands[%d]: id and primaryDomain are required", i)
		}
	}
	return nil
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	if c.Database.Driver == DriverPostgres {
		return c.PostgresDSN()
	}
	return c.MySQLDSN()
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: url.Values{"sslmode": {c.Database.SSLMode}}.Encode(),
	}
	return u.String()
}

// BrandSeed is a brand declared in the config file.
type BrandSeed struct {
	ID             string            `yaml:"id"`
	Name           string            `yaml:"name"`
	PrimaryDomain  string            `yaml:"primaryDomain"`
	Keywords       []string          `yaml:"keywords"`
	SocialHandles  map[string]string `yaml:"socialHandles"`
	LogoURL        string            `yaml:"logoUrl"`
	AlertEmail     string            `yaml:"alertEmail"`
	AlertWebhook   string            `yaml:"alertWebhook"`
	AlertThreshold string            `yaml:"alertThreshold"`
}

func (b BrandSeed) Brand() *brands.Brand {
	return &brands.Brand{
		ID:             b.ID,
		Name:           b.Name,
		PrimaryDomain:  b.PrimaryDomain,
		Keywords:       b.Keywords,
		SocialHandles:  b.SocialHandles,
		LogoURL:        b.LogoURL,
		AlertEmail:     b.AlertEmail,
		AlertWebhook:   b.AlertWebhook,
		AlertThreshold: b.AlertThreshold,
	}
}
