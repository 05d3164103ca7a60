// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from an optional config.yaml and
// environment variables. Environment variables win over the file; the file
// itself may reference them as ${VAR}.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath = "config.yaml"

	// maxDeliveryAttempts bounds retries so a request stays within its
	// timeout.
	maxDeliveryAttempts = 10
)

// Delivery providers.
const (
	ProviderResend = "resend"
	ProviderGraph  = "graph"
	ProviderQueue  = "queue"
)

// Rate limit backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// TurnstileConfig holds the anti-spam verifier settings.
type TurnstileConfig struct {
	SecretKey string `yaml:"secret_key"`
	VerifyURL string `yaml:"verify_url"`
}

// GraphConfig holds the Microsoft Graph app registration used by the graph
// delivery provider.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	SenderUser   string `yaml:"sender_user"`
}

// EmailConfig holds the notification addresses and the delivery chain.
type EmailConfig struct {
	To            string `yaml:"to"`
	From          string `yaml:"from"`
	FromName      string `yaml:"from_name"`
	SubjectPrefix string `yaml:"subject_prefix"`

	Provider         string        `yaml:"provider"`
	FallbackProvider string        `yaml:"fallback_provider"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxAttempts      int           `yaml:"max_attempts"`
	BaseDelay        time.Duration `yaml:"base_delay"`

	ResendAPIKey  string      `yaml:"resend_api_key"`
	ResendBaseURL string      `yaml:"resend_base_url"`
	Graph         GraphConfig `yaml:"graph"`
	QueueName     string      `yaml:"queue_name"`
}

// RateLimitConfig holds the per-address quota.
type RateLimitConfig struct {
	Max           int           `yaml:"max"`
	Window        time.Duration `yaml:"window"`
	Backend       string        `yaml:"backend"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Config holds all configuration for the contact service.
type Config struct {
	Env             string        `yaml:"env"`
	Port            int           `yaml:"port"`
	LogDebug        bool          `yaml:"log_debug"`
	TrustProxy      bool          `yaml:"trust_proxy"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ProblemTypeBase string        `yaml:"problem_type_base"`

	Turnstile TurnstileConfig `yaml:"turnstile"`
	Email     EmailConfig     `yaml:"email"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Env:             "production",
		Port:            8080,
		RequestTimeout:  15 * time.Second,
		ProblemTypeBase: "/problems/",
		Email: EmailConfig{
			FromName:    "Portfolio Contact",
			Provider:    ProviderResend,
			Timeout:     10 * time.Second,
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			Max:           5,
			Window:        time.Hour,
			Backend:       BackendMemory,
			SweepInterval: 5 * time.Minute,
		},
	}
}

// Load reads CONFIG_PATH (default config.yaml) and applies environment
// overrides. A missing file is only an error when CONFIG_PATH names it
// explicitly. Load does not validate; call Validate before use.
func Load() (*Config, error) {
	return load(os.LookupEnv)
}

type lookupFunc func(key string) (string, bool)

func load(lookup lookupFunc) (*Config, error) {
	cfg := Defaults()

	path, explicit := lookup("CONFIG_PATH")
	if !explicit || path == "" {
		path = defaultConfigPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decodeYAML(data, lookup, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeYAML expands ${VAR} references and decodes strictly, so a typo in
// a key is an error rather than a silently ignored setting.
func decodeYAML(data []byte, lookup lookupFunc, cfg *Config) error {
	expanded := os.Expand(string(data), func(key string) string {
		v, _ := lookup(key)
		return v
	})

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overrides cfg from the environment. Malformed numbers, durations
// and booleans are collected and returned together.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.setString("APP_ENV", &cfg.Env)
	e.setInt("PORT", &cfg.Port)
	e.setBool("LOG_DEBUG", &cfg.LogDebug)
	e.setBool("TRUST_PROXY", &cfg.TrustProxy)
	e.setDuration("REQUEST_TIMEOUT", &cfg.RequestTimeout)
	e.setString("PROBLEM_TYPE_BASE", &cfg.ProblemTypeBase)

	e.setString("TURNSTILE_SECRET_KEY", &cfg.Turnstile.SecretKey)
	e.setString("TURNSTILE_VERIFY_URL", &cfg.Turnstile.VerifyURL)

	e.setString("CONTACT_EMAIL_TO", &cfg.Email.To)
	e.setString("CONTACT_EMAIL_FROM", &cfg.Email.From)
	e.setString("CONTACT_EMAIL_FROM_NAME", &cfg.Email.FromName)
	e.setString("CONTACT_SUBJECT_PREFIX", &cfg.Email.SubjectPrefix)
	e.setString("DELIVERY_PROVIDER", &cfg.Email.Provider)
	e.setString("DELIVERY_FALLBACK_PROVIDER", &cfg.Email.FallbackProvider)
	e.setDuration("DELIVERY_TIMEOUT", &cfg.Email.Timeout)
	e.setInt("DELIVERY_MAX_ATTEMPTS", &cfg.Email.MaxAttempts)
	e.setDuration("DELIVERY_BASE_DELAY", &cfg.Email.BaseDelay)
	e.setString("RESEND_API_KEY", &cfg.Email.ResendAPIKey)
	e.setString("RESEND_BASE_URL", &cfg.Email.ResendBaseURL)
	e.setString("GRAPH_TENANT_ID", &cfg.Email.Graph.TenantID)
	e.setString("GRAPH_CLIENT_ID", &cfg.Email.Graph.ClientID)
	e.setString("GRAPH_CLIENT_SECRET", &cfg.Email.Graph.ClientSecret)
	e.setString("GRAPH_SENDER_USER", &cfg.Email.Graph.SenderUser)
	e.setString("MAIL_QUEUE_NAME", &cfg.Email.QueueName)

	e.setInt("RATE_LIMIT_MAX", &cfg.RateLimit.Max)
	e.setDuration("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)
	e.setString("RATE_LIMIT_BACKEND", &cfg.RateLimit.Backend)
	e.setDuration("RATE_LIMIT_SWEEP_INTERVAL", &cfg.RateLimit.SweepInterval)

	e.setString("REDIS_URL", &cfg.RedisURL)
	e.setString("DATABASE_URL", &cfg.DatabaseURL)

	return errors.Join(e.errs...)
}

type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return
	}
	*dst = n
}

func (e *envReader) setBool(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return
	}
	*dst = b
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return
	}
	*dst = d
}

// Validate reports every configuration problem at once. The service must
// refuse to start if it returns an error.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Port <= 0 || c.Port > 65535 {
		add("port %d out of range", c.Port)
	}
	if c.RequestTimeout <= 0 {
		add("request_timeout must be positive")
	}

	if c.Turnstile.SecretKey == "" {
		add("TURNSTILE_SECRET_KEY is required")
	}

	if err := checkAddress(c.Email.To); err != nil {
		add("CONTACT_EMAIL_TO: %w", err)
	}
	if err := checkAddress(c.Email.From); err != nil {
		add("CONTACT_EMAIL_FROM: %w", err)
	}
	if c.Email.MaxAttempts < 1 || c.Email.MaxAttempts > maxDeliveryAttempts {
		add("delivery max_attempts must be between 1 and %d", maxDeliveryAttempts)
	}
	if c.Email.BaseDelay < 0 {
		add("delivery base_delay must not be negative")
	}

	if !knownProvider(c.Email.Provider) {
		add("unknown delivery provider %q", c.Email.Provider)
	}
	if fb := c.Email.FallbackProvider; fb != "" {
		if !knownProvider(fb) {
			add("unknown fallback delivery provider %q", fb)
		} else if fb == c.Email.Provider {
			add("fallback delivery provider must differ from the primary")
		}
	}
	for _, p := range c.providers() {
		errs = append(errs, c.checkProvider(p)...)
	}

	if c.RateLimit.Max <= 0 {
		add("RATE_LIMIT_MAX must be positive")
	}
	if c.RateLimit.Window <= 0 {
		add("RATE_LIMIT_WINDOW must be positive")
	}
	switch c.RateLimit.Backend {
	case BackendMemory:
		if c.RateLimit.SweepInterval <= 0 {
			add("rate_limit sweep_interval must be positive")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			add("REDIS_URL is required for the redis rate limit backend")
		}
	default:
		add("unknown rate limit backend %q", c.RateLimit.Backend)
	}

	if c.RedisURL != "" {
		if u, err := url.Parse(c.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			add("REDIS_URL must be a redis:// or rediss:// URL")
		}
	}

	return errors.Join(errs...)
}

// Development reports whether the service runs in a development environment.
func (c *Config) Development() bool {
	switch strings.ToLower(c.Env) {
	case "development", "dev", "local":
		return true
	}
	return false
}

// UsesRedis reports whether any selected component needs Redis.
func (c *Config) UsesRedis() bool {
	if c.RateLimit.Backend == BackendRedis {
		return true
	}
	for _, p := range c.providers() {
		if p == ProviderQueue {
			return true
		}
	}
	return false
}

func (c *Config) providers() []string {
	out := []string{c.Email.Provider}
	if c.Email.FallbackProvider != "" && c.Email.FallbackProvider != c.Email.Provider {
		out = append(out, c.Email.FallbackProvider)
	}
	return out
}

func (c *Config) checkProvider(p string) []error {
	var errs []error
	switch p {
	case ProviderResend:
		if c.Email.ResendAPIKey == "" {
			errs = append(errs, errors.New("RESEND_API_KEY is required for the resend provider"))
		}
	case ProviderGraph:
		g := c.Email.Graph
		if g.TenantID == "" || g.ClientID == "" || g.ClientSecret == "" || g.SenderUser == "" {
			errs = append(errs, errors.New("GRAPH_TENANT_ID, GRAPH_CLIENT_ID, GRAPH_CLIENT_SECRET and GRAPH_SENDER_USER are required for the graph provider"))
		}
	case ProviderQueue:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the queue provider"))
		}
	}
	return errs
}

func knownProvider(p string) bool {
	switch p {
	case ProviderResend, ProviderGraph, ProviderQueue:
		return true
	}
	return false
}

func checkAddress(addr string) error {
	if addr == "" {
		return errors.New("required")
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q", addr)
	}
	if parsed.Address != addr {
		return fmt.Errorf("expected a bare address, got %q", addr)
	}
	return nil
}
