package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider is a configured fallback provider.
type Provider struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Priority int    `yaml:"priority"`
}

// Config holds configuration loaded from an optional YAML file and
// environment variables.
type Config struct {
	ListenAddr              string
	RedisAddr               string
	GracefulShutdownTimeout int // seconds

	RateLimitWindowMs   int64
	RateLimitMax        int64
	RateLimitIdleTTL    time.Duration
	RateLimitJanitorInt time.Duration

	Providers       []Provider
	ProviderTimeout time.Duration

	MetadataCacheTTL  time.Duration
	MetadataCacheSize int

	GlobalRPS      float64 // 0 disables the global guard
	GlobalBurst    int
	TrustForwarded bool

	JWTSecret string
	JWTIssuer string

	LogLevel  string
	LogFormat string
}

// fileConfig mirrors the YAML overlay. Durations are Go duration strings.
type fileConfig struct {
	Server struct {
		Listen string `yaml:"listen"`
	} `yaml:"server"`
	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`
	RateLimit struct {
		WindowMs        int64  `yaml:"windowMs"`
		MaxRequests     int64  `yaml:"maxRequests"`
		IdleTTL         string `yaml:"idleTTL"`
		JanitorInterval string `yaml:"janitorInterval"`
	} `yaml:"rateLimit"`
	Providers       []Provider `yaml:"providers"`
	ProviderTimeout string     `yaml:"providerTimeout"`
	Metadata        struct {
		CacheTTL  string `yaml:"cacheTTL"`
		CacheSize int    `yaml:"cacheSize"`
	} `yaml:"metadata"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		ListenAddr:              ":8080",
		GracefulShutdownTimeout: 15,
		RateLimitWindowMs:       60_000,
		RateLimitMax:            10,
		RateLimitIdleTTL:        10 * time.Minute,
		RateLimitJanitorInt:     time.Minute,
		ProviderTimeout:         8 * time.Second,
		MetadataCacheTTL:        5 * time.Minute,
		MetadataCacheSize:       256,
		TrustForwarded:          true,
		LogLevel:                "info",
	}
}

// Load builds a Config from defaults, the YAML file at path (or
// MEDIAGATE_CONFIG when path is empty) and environment variables, in that
// order of precedence, lowest first.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		path = os.Getenv("MEDIAGATE_CONFIG")
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&c.ListenAddr, fc.Server.Listen)
	setString(&c.RedisAddr, fc.Redis.Addr)
	if fc.RateLimit.WindowMs != 0 {
		c.RateLimitWindowMs = fc.RateLimit.WindowMs
	}
	if fc.RateLimit.MaxRequests != 0 {
		c.RateLimitMax = fc.RateLimit.MaxRequests
	}
	if fc.Metadata.CacheSize != 0 {
		c.MetadataCacheSize = fc.Metadata.CacheSize
	}
	if len(fc.Providers) > 0 {
		c.Providers = fc.Providers
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"rateLimit.idleTTL", fc.RateLimit.IdleTTL, &c.RateLimitIdleTTL},
		{"rateLimit.janitorInterval", fc.RateLimit.JanitorInterval, &c.RateLimitJanitorInt},
		{"providerTimeout", fc.ProviderTimeout, &c.ProviderTimeout},
		{"metadata.cacheTTL", fc.Metadata.CacheTTL, &c.MetadataCacheTTL},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.ListenAddr, os.Getenv("LISTEN_ADDR"))
	setString(&c.RedisAddr, os.Getenv("REDIS_ADDR"))
	setString(&c.JWTSecret, os.Getenv("JWT_SECRET"))
	setString(&c.JWTIssuer, os.Getenv("JWT_ISS"))
	setString(&c.LogLevel, os.Getenv("LOG_LEVEL"))
	setString(&c.LogFormat, os.Getenv("LOG_FORMAT"))

	ints := []struct {
		key string
		dst *int
	}{
		{"GRACEFUL_SHUTDOWN_TIMEOUT", &c.GracefulShutdownTimeout},
		{"METADATA_CACHE_SIZE", &c.MetadataCacheSize},
		{"GLOBAL_BURST", &c.GlobalBurst},
	}
	for _, e := range ints {
		if v := os.Getenv(e.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = n
		}
	}

	int64s := []struct {
		key string
		dst *int64
	}{
		{"RATE_LIMIT_WINDOW_MS", &c.RateLimitWindowMs},
		{"RATE_LIMIT_MAX_REQUESTS", &c.RateLimitMax},
	}
	for _, e := range int64s {
		if v := os.Getenv(e.key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = n
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"RATE_LIMIT_IDLE_TTL", &c.RateLimitIdleTTL},
		{"RATE_LIMIT_JANITOR_INTERVAL", &c.RateLimitJanitorInt},
		{"PROVIDER_TIMEOUT", &c.ProviderTimeout},
		{"METADATA_CACHE_TTL", &c.MetadataCacheTTL},
	}
	for _, e := range durations {
		if v := os.Getenv(e.key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = d
		}
	}

	if v := os.Getenv("GLOBAL_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("GLOBAL_RPS: %w", err)
		}
		c.GlobalRPS = f
	}
	if v := os.Getenv("TRUST_FORWARDED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TRUST_FORWARDED: %w", err)
		}
		c.TrustForwarded = b
	}
	if v := os.Getenv("PROVIDERS"); v != "" {
		ps, err := ParseProviders(v)
		if err != nil {
			return err
		}
		c.Providers = ps
	}
	return nil
}

// ParseProviders reads a comma separated list of name=url pairs. List order
// is priority order.
func ParseProviders(s string) ([]Provider, error) {
	var out []Provider
	for i, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, u, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("PROVIDERS: entry %d: want name=url, got %q", i, part)
		}
		out = append(out, Provider{Name: strings.TrimSpace(name), URL: strings.TrimSpace(u), Priority: i})
	}
	return out, nil
}

// Validate checks the limits and provider URLs.
func (c Config) Validate() error {
	if c.RateLimitWindowMs <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %d", c.RateLimitWindowMs)
	}
	if c.RateLimitMax <= 0 {
		return fmt.Errorf("rate limit max requests must be positive, got %d", c.RateLimitMax)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("provider timeout must be positive, got %s", c.ProviderTimeout)
	}
	for _, p := range c.Providers {
		u, err := url.Parse(p.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("provider %q: invalid url %q", p.Name, p.URL)
		}
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
