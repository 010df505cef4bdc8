package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NodeConfig locates the settlement node RPC the gateway fronts.
type NodeConfig struct {
	Endpoint string        `yaml:"endpoint"`
	RPCToken string        `yaml:"rpcToken"`
	Timeout  time.Duration `yaml:"timeout"`
}

type RateLimitConfig struct {
	ID                string  `yaml:"id"`
	RequestsPerMinute float64 `yaml:"requestsPerMinute"`
	Burst             int     `yaml:"burst"`
}

type ObservabilityConfig struct {
	ServiceName   string `yaml:"serviceName"`
	Metrics       bool   `yaml:"metrics"`
	Tracing       bool   `yaml:"tracing"`
	LogRequests   bool   `yaml:"logRequests"`
	MetricsPrefix string `yaml:"metricsPrefix"`
}

type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowedMethods   []string `yaml:"allowedMethods"`
	AllowedHeaders   []string `yaml:"allowedHeaders"`
	AllowCredentials bool     `yaml:"allowCredentials"`
}

type Config struct {
	ListenAddress string              `yaml:"listen"`
	Environment   string              `yaml:"env"`
	ReadTimeout   time.Duration       `yaml:"readTimeout"`
	WriteTimeout  time.Duration       `yaml:"writeTimeout"`
	IdleTimeout   time.Duration       `yaml:"idleTimeout"`
	Node          NodeConfig          `yaml:"node"`
	RateLimits    []RateLimitConfig   `yaml:"rateLimits"`
	Observability ObservabilityConfig `yaml:"observability"`
	Auth          AuthConfig          `yaml:"auth"`
	CORS          CORSConfig          `yaml:"cors"`
	Security      SecurityConfig      `yaml:"security"`
}

type AuthConfig struct {
	Enabled           bool          `yaml:"enabled"`
	HMACSecret        string        `yaml:"hmacSecret"`
	Issuer            string        `yaml:"issuer"`
	Audience          string        `yaml:"audience"`
	ScopeClaim        string        `yaml:"scopeClaim"`
	OptionalPaths     []string      `yaml:"optionalPaths"`
	AllowAnonymous    bool          `yaml:"allowAnonymous"`
	ClockSkew         time.Duration `yaml:"clockSkew"`
	allowAnonymousSet bool          `yaml:"-"`
	enabledSet        bool          `yaml:"-"`
}

// UnmarshalYAML tracks whether enabled/allowAnonymous were written in the
// file. A sensitive deployment must spell them out rather than inherit them.
func (a *AuthConfig) UnmarshalYAML(node *yaml.Node) error {
	type rawAuthConfig struct {
		Enabled        *bool         `yaml:"enabled"`
		HMACSecret     string        `yaml:"hmacSecret"`
		Issuer         string        `yaml:"issuer"`
		Audience       string        `yaml:"audience"`
		ScopeClaim     string        `yaml:"scopeClaim"`
		OptionalPaths  []string      `yaml:"optionalPaths"`
		AllowAnonymous *bool         `yaml:"allowAnonymous"`
		ClockSkew      time.Duration `yaml:"clockSkew"`
	}
	var raw rawAuthConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Enabled != nil {
		a.Enabled = *raw.Enabled
		a.enabledSet = true
	} else {
		a.Enabled = false
		a.enabledSet = false
	}
	a.HMACSecret = raw.HMACSecret
	a.Issuer = raw.Issuer
	a.Audience = raw.Audience
	a.ScopeClaim = raw.ScopeClaim
	a.OptionalPaths = raw.OptionalPaths
	if raw.AllowAnonymous != nil {
		a.AllowAnonymous = *raw.AllowAnonymous
		a.allowAnonymousSet = true
	} else {
		a.AllowAnonymous = false
		a.allowAnonymousSet = false
	}
	a.ClockSkew = raw.ClockSkew
	return nil
}

type SecurityConfig struct {
	AutoUpgradeHTTP bool   `yaml:"autoUpgradeHTTP"`
	AllowInsecure   bool   `yaml:"allowInsecure"`
	TLSCertFile     string `yaml:"tlsCertFile"`
	TLSKeyFile      string `yaml:"tlsKeyFile"`
	TLSClientCAFile string `yaml:"tlsClientCAFile"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: ":8081",
		Environment:   "dev",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   120 * time.Second,
		Node: NodeConfig{
			Endpoint: "http://127.0.0.1:8080",
			Timeout:  15 * time.Second,
		},
		Observability: ObservabilityConfig{
			ServiceName:   "slither-gateway",
			Metrics:       true,
			Tracing:       true,
			LogRequests:   true,
			MetricsPrefix: "gateway",
		},
		Auth: AuthConfig{
			Enabled:        true,
			ScopeClaim:     "scope",
			AllowAnonymous: false,
			ClockSkew:      2 * time.Minute,
			enabledSet:     true,
		},
	}
	if path == "" {
		cfg.applyDefaults()
		if err := cfg.Validate(); err != nil {
			return Config{}, fmt.Errorf("validate config: %w", err)
		}
		return cfg, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg == nil {
		return
	}
	if !cfg.Auth.enabledSet {
		cfg.Auth.Enabled = true
		cfg.Auth.enabledSet = true
	}
	if cfg.Auth.ClockSkew <= 0 {
		cfg.Auth.ClockSkew = 2 * time.Minute
	}
	if cfg.Auth.ScopeClaim == "" {
		cfg.Auth.ScopeClaim = "scope"
	}
	if !cfg.Auth.allowAnonymousSet {
		cfg.Auth.AllowAnonymous = false
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "dev"
	}
	if cfg.Node.Timeout <= 0 {
		cfg.Node.Timeout = 15 * time.Second
	}
	if strings.TrimSpace(cfg.Node.RPCToken) == "" {
		cfg.Node.RPCToken = strings.TrimSpace(os.Getenv("MSL_RPC_TOKEN"))
	}
}

var ErrAuthEnabledNotConfigured = errors.New("auth.enabled must be explicitly set for sensitive deployments")

func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.isSensitiveDeployment() && !cfg.Auth.enabledSet {
		return ErrAuthEnabledNotConfigured
	}
	if cfg.Auth.AllowAnonymous && !cfg.Auth.allowAnonymousSet {
		return fmt.Errorf("auth.allowAnonymous must be explicitly set to true to enable anonymous access")
	}
	trimmed := make([]string, len(cfg.Auth.OptionalPaths))
	for i, path := range cfg.Auth.OptionalPaths {
		trimmedPath := strings.TrimSpace(path)
		if trimmedPath == "" {
			return fmt.Errorf("auth.optionalPaths[%d] cannot be empty", i)
		}
		if !strings.HasPrefix(trimmedPath, "/") {
			return fmt.Errorf("auth.optionalPaths[%d] must start with '/'", i)
		}
		trimmed[i] = trimmedPath
	}
	cfg.Auth.OptionalPaths = trimmed
	if cfg.Auth.Enabled && cfg.Auth.AllowAnonymous && len(cfg.Auth.OptionalPaths) == 0 {
		return fmt.Errorf("auth.optionalPaths must list at least one entry when auth.allowAnonymous is true")
	}
	if strings.TrimSpace(cfg.Node.Endpoint) == "" {
		return fmt.Errorf("node.endpoint is required")
	}
	for i, limit := range cfg.RateLimits {
		if strings.TrimSpace(limit.ID) == "" {
			return fmt.Errorf("rateLimits[%d].id cannot be empty", i)
		}
		if limit.RequestsPerMinute < 0 {
			return fmt.Errorf("rateLimits[%d].requestsPerMinute cannot be negative", i)
		}
	}
	return nil
}

// NodeURL parses the configured node endpoint.
func (cfg Config) NodeURL() (*url.URL, error) {
	endpoint := strings.TrimSpace(cfg.Node.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("node endpoint missing")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse node endpoint: %w", err)
	}
	return parsed, nil
}

func (cfg *Config) isSensitiveDeployment() bool {
	if cfg == nil {
		return false
	}
	if cfg.Security.AutoUpgradeHTTP {
		return true
	}
	if strings.TrimSpace(cfg.Security.TLSCertFile) != "" {
		return true
	}
	if strings.TrimSpace(cfg.Security.TLSKeyFile) != "" {
		return true
	}
	if strings.TrimSpace(cfg.Security.TLSClientCAFile) != "" {
		return true
	}
	return false
}

// EnforceSecureScheme ensures the supplied URL uses HTTPS outside of the dev environment.
// If autoUpgrade is enabled, insecure HTTP URLs are transparently upgraded to HTTPS.
// The returned boolean indicates whether an upgrade occurred.
func EnforceSecureScheme(env string, target *url.URL, autoUpgrade bool) (*url.URL, bool, error) {
	if target == nil {
		return nil, false, fmt.Errorf("target URL is nil")
	}
	scheme := strings.ToLower(strings.TrimSpace(target.Scheme))
	switch scheme {
	case "https":
		return target, false, nil
	case "http":
		if isDevEnv(env) {
			return target, false, nil
		}
		if autoUpgrade {
			upgraded := *target
			upgraded.Scheme = "https"
			return &upgraded, true, nil
		}
		if strings.TrimSpace(env) == "" {
			env = "(unset)"
		}
		return nil, false, fmt.Errorf("plaintext HTTP endpoints are not permitted for environment %s", env)
	case "":
		return nil, false, fmt.Errorf("URL scheme is required")
	default:
		return nil, false, fmt.Errorf("unsupported URL scheme %q", target.Scheme)
	}
}

func isDevEnv(env string) bool {
	return strings.EqualFold(strings.TrimSpace(env), "dev")
}
