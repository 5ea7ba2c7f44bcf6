package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/mmeshcher/link-tracker/internal/models"
)

type TenantConfig struct {
	URL   string `env:"URL"`
	Token string `env:"TOKEN"`
}

func (t TenantConfig) configured() bool {
	return t.URL != "" || t.Token != ""
}

type Config struct {
	ServerAddress string `env:"SERVER_ADDRESS"`
	BaseURL       string `env:"BASE_URL"`
	DatabaseDSN   string `env:"DATABASE_DSN"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	NotifyTimeout         time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`
	NotifyBreakerFailures int           `env:"NOTIFY_BREAKER_FAILURES" envDefault:"5"`
	NotifyBreakerReset    time.Duration `env:"NOTIFY_BREAKER_RESET" envDefault:"30s"`

	SecureCookie bool `env:"VISITOR_COOKIE_SECURE" envDefault:"false"`

	Default       TenantConfig `envPrefix:"DEFAULT_"`
	CRM           TenantConfig `envPrefix:"CRM_"`
	CRMDemo       TenantConfig `envPrefix:"CRM_DEMO_"`
	Mentalaba     TenantConfig `envPrefix:"MENTALABA_"`
	MentalabaDemo TenantConfig `envPrefix:"MENTALABA_DEMO_"`
}

func ParseFlags() (*Config, error) {
	// .env is optional and never overrides variables already set.
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	envServerAddress := cfg.ServerAddress
	envBaseURL := cfg.BaseURL
	envDatabaseDSN := cfg.DatabaseDSN

	flag.StringVar(&cfg.ServerAddress, "a", "localhost:8080", "Address of the server")
	flag.StringVar(&cfg.BaseURL, "b", "http://localhost:8080", "Base URL for short URLs")
	flag.StringVar(&cfg.DatabaseDSN, "d", "", "Database DSN (postgres://, libsql:// or a sqlite file)")

	flag.Parse()

	if envServerAddress != "" {
		cfg.ServerAddress = envServerAddress
	}
	if envBaseURL != "" {
		cfg.BaseURL = envBaseURL
	}
	if envDatabaseDSN != "" {
		cfg.DatabaseDSN = envDatabaseDSN
	}

	cfg.applyDefaultValues()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("notify timeout must be positive")
	}
	for name, t := range c.tenantConfigs() {
		if !t.configured() {
			continue
		}
		if t.URL == "" || t.Token == "" {
			return fmt.Errorf("tenant %q needs both url and token", tenantName(name))
		}
	}
	return nil
}

// Tenants returns the static tenant table. Only tenants with a configured
// endpoint and token are present.
func (c *Config) Tenants() models.Tenants {
	tenants := make(models.Tenants)
	for linkType, t := range c.tenantConfigs() {
		if !t.configured() {
			continue
		}
		tenants[linkType] = models.Tenant{BaseURL: t.URL, Token: t.Token}
	}
	return tenants
}

func (c *Config) tenantConfigs() map[models.LinkType]TenantConfig {
	return map[models.LinkType]TenantConfig{
		models.LinkTypeDefault:       c.Default,
		models.LinkTypeCRM:           c.CRM,
		models.LinkTypeCRMDemo:       c.CRMDemo,
		models.LinkTypeMentalaba:     c.Mentalaba,
		models.LinkTypeMentalabaDemo: c.MentalabaDemo,
	}
}

func tenantName(linkType models.LinkType) string {
	if linkType == models.LinkTypeDefault {
		return "default"
	}
	return string(linkType)
}

func (c *Config) applyDefaultValues() {
	if c.ServerAddress == "" {
		c.ServerAddress = getDefaultServerAddress()
	}

	if c.BaseURL == "" {
		c.BaseURL = getDefaultBaseURL()
	}

	if c.DatabaseDSN == "" {
		c.DatabaseDSN = getDefaultDatabaseDSN()
	}
}

func getDefaultServerAddress() string {
	return "localhost:8080"
}

func getDefaultBaseURL() string {
	return "http://localhost:8080"
}

func getDefaultDatabaseDSN() string {
	return "file:shortener.db?_pragma=foreign_keys(1)"
}
