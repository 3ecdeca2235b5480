package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultLogLevel      = "info"
	defaultLogEnv        = "prod"
	defaultProvider      = ProviderRoute53
	defaultIPLookupURL   = "https://ifconfig.me"
	defaultRunTimeout    = 2 * time.Minute
	defaultMissingPolicy = MissingRecordCreate
	defaultSubject       = "DNS record updated"
)

const (
	ProviderRoute53    = "route53"
	ProviderCloudflare = "cloudflare"
)

const (
	MissingRecordCreate = "create"
	MissingRecordFail   = "fail"
)

type Config struct {
	DomainName  string        `yaml:"domainName" env:"DOMAIN_NAME"`
	Subdomains  []string      `yaml:"subdomains" env:"SUBDOMAINS" envSeparator:","`
	IPLookupURL string        `yaml:"ipLookupUrl" env:"IP_LOOKUP_URL"`
	RunTimeout  time.Duration `yaml:"runTimeout" env:"RUN_TIMEOUT"`
	Log         Log           `yaml:"log"`
	DNS         DNS           `yaml:"dns"`
	Reconcile   Reconcile     `yaml:"reconcile"`
	Notify      Notify        `yaml:"notify"`
	Metrics     Metrics       `yaml:"metrics"`
}

type Log struct {
	Level string `yaml:"level" env:"LOGLEVEL"`
	Env   string `yaml:"env" env:"LOG_ENV"`
}

type DNS struct {
	Provider string `yaml:"provider" env:"DNS_PROVIDER"`
	Region   string `yaml:"region" env:"AWS_REGION"`
	Token    string `yaml:"token" env:"CLOUDFLARE_API_TOKEN"`
}

type Reconcile struct {
	DryRun              bool   `yaml:"dryRun" env:"DRY_RUN"`
	MissingRecordPolicy string `yaml:"missingRecordPolicy" env:"MISSING_RECORD_POLICY"`
}

type Notify struct {
	Enabled   bool   `yaml:"enabled" env:"NOTIFY_ENABLED"`
	Required  bool   `yaml:"required" env:"NOTIFY_REQUIRED"`
	Sender    string `yaml:"sender" env:"NOTIFY_SENDER"`
	Recipient string `yaml:"recipient" env:"NOTIFY_RECIPIENT"`
	Subject   string `yaml:"subject" env:"NOTIFY_SUBJECT"`
}

type Metrics struct {
	PushgatewayURL string `yaml:"pushgatewayUrl" env:"METRICS_PUSHGATEWAY_URL"`
}

// Load reads the optional yaml file at path, applies .env and environment
// overrides, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Default().Debug("config file not found, using environment only", "path", path)
	} else {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("fail load .env file", "error", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		f.Close()
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		slog.Default().Warn("fail close config file", "path", path, "error", err)
	}
	return nil
}

func (c *Config) setDefaults() {
	c.DomainName = strings.TrimSuffix(strings.TrimSpace(c.DomainName), ".")
	c.Subdomains = cleanList(c.Subdomains)

	if c.IPLookupURL == "" {
		c.IPLookupURL = defaultIPLookupURL
	}
	if c.RunTimeout == 0 {
		c.RunTimeout = defaultRunTimeout
	}

	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Log.Env == "" {
		c.Log.Env = defaultLogEnv
	}

	if c.DNS.Provider == "" {
		c.DNS.Provider = defaultProvider
	}
	c.DNS.Provider = strings.ToLower(c.DNS.Provider)

	if c.Reconcile.MissingRecordPolicy == "" {
		c.Reconcile.MissingRecordPolicy = defaultMissingPolicy
	}
	c.Reconcile.MissingRecordPolicy = strings.ToLower(c.Reconcile.MissingRecordPolicy)

	if c.Notify.Subject == "" {
		c.Notify.Subject = defaultSubject
	}
}

func (c *Config) Validate() error {
	if c.DomainName == "" {
		return errors.New("DOMAIN_NAME is required")
	}
	if len(c.Subdomains) == 0 {
		return errors.New("SUBDOMAINS is required")
	}

	switch c.DNS.Provider {
	case ProviderRoute53:
	case ProviderCloudflare:
		if c.DNS.Token == "" {
			return errors.New("CLOUDFLARE_API_TOKEN is required for the cloudflare provider")
		}
	default:
		return fmt.Errorf("unknown DNS_PROVIDER %q", c.DNS.Provider)
	}

	switch c.Reconcile.MissingRecordPolicy {
	case MissingRecordCreate, MissingRecordFail:
	default:
		return fmt.Errorf("unknown MISSING_RECORD_POLICY %q", c.Reconcile.MissingRecordPolicy)
	}

	if c.Notify.Enabled {
		if c.Notify.Sender == "" {
			return errors.New("NOTIFY_SENDER is required when notifications are enabled")
		}
		if c.Notify.Recipient == "" {
			return errors.New("NOTIFY_RECIPIENT is required when notifications are enabled")
		}
	}
	return nil
}

// cleanList trims whitespace and drops empty entries, keeping order.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
