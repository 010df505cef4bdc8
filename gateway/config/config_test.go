package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsSecureByDefault(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.Auth.Enabled {
		t.Fatalf("expected auth.enabled to default to true")
	}
	if !cfg.Auth.enabledSet {
		t.Fatalf("expected auth.enabled default to mark enabledSet true")
	}
	if cfg.Auth.AllowAnonymous {
		t.Fatalf("expected auth.allowAnonymous to default to false")
	}
	if cfg.Node.Endpoint != "http://127.0.0.1:8080" {
		t.Fatalf("expected default node endpoint, got %q", cfg.Node.Endpoint)
	}
	if cfg.Environment != "dev" {
		t.Fatalf("expected default environment dev, got %q", cfg.Environment)
	}
}

func TestLoadReadsNodeSection(t *testing.T) {
	path := writeConfig(t, "node:\n  endpoint: https://settlement.internal:8080\n  rpcToken: secret\n  timeout: 5s\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Node.Endpoint != "https://settlement.internal:8080" {
		t.Fatalf("unexpected node endpoint %q", cfg.Node.Endpoint)
	}
	if cfg.Node.RPCToken != "secret" {
		t.Fatalf("unexpected node token %q", cfg.Node.RPCToken)
	}
	if cfg.Node.Timeout != 5*time.Second {
		t.Fatalf("unexpected node timeout %s", cfg.Node.Timeout)
	}
	target, err := cfg.NodeURL()
	if err != nil {
		t.Fatalf("node url: %v", err)
	}
	if target.Host != "settlement.internal:8080" {
		t.Fatalf("unexpected node host %q", target.Host)
	}
}

func TestLoadFallsBackToTokenEnv(t *testing.T) {
	t.Setenv("MSL_RPC_TOKEN", "env-token")
	path := writeConfig(t, "node:\n  endpoint: http://127.0.0.1:8080\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Node.RPCToken != "env-token" {
		t.Fatalf("expected env token fallback, got %q", cfg.Node.RPCToken)
	}
}

func TestLoadRequiresOptionalPathsWhenAllowAnonymousEnabled(t *testing.T) {
	path := writeConfig(t, "auth:\n  enabled: true\n  allowAnonymous: true\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected load to fail when auth.allowAnonymous is true without optional paths")
	}
}

func TestLoadDefaultsEnableAuthForSensitiveTLSConfig(t *testing.T) {
	yaml := "security:\n  tlsCertFile: /etc/gateway/cert.pem\n  tlsKeyFile: /etc/gateway/key.pem\n"
	path := writeConfig(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.Auth.Enabled {
		t.Fatalf("expected auth.enabled to default to true for TLS configuration")
	}
}

func TestLoadAllowsExplicitAuthDisabledForSensitiveTLSConfig(t *testing.T) {
	yaml := "auth:\n  enabled: false\nsecurity:\n  tlsCertFile: /etc/gateway/cert.pem\n  tlsKeyFile: /etc/gateway/key.pem\n"
	path := writeConfig(t, yaml)
	if _, err := Load(path); err != nil {
		t.Fatalf("load config: %v", err)
	}
}

func TestLoadNormalizesOptionalPaths(t *testing.T) {
	yaml := "auth:\n  enabled: true\n  allowAnonymous: true\n  optionalPaths:\n    - /healthz\n    - \"   /v1/settlement/pools   \"\n"
	path := writeConfig(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	expected := []string{"/healthz", "/v1/settlement/pools"}
	if len(cfg.Auth.OptionalPaths) != len(expected) {
		t.Fatalf("expected %d optional paths, got %d", len(expected), len(cfg.Auth.OptionalPaths))
	}
	for i, path := range expected {
		if cfg.Auth.OptionalPaths[i] != path {
			t.Fatalf("optional path %d mismatch: expected %q, got %q", i, path, cfg.Auth.OptionalPaths[i])
		}
	}
}

func TestLoadRejectsOptionalPathsWithoutLeadingSlash(t *testing.T) {
	yaml := "auth:\n  enabled: true\n  allowAnonymous: true\n  optionalPaths:\n    - v1/settlement/pools\n"
	path := writeConfig(t, yaml)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for optional path without leading slash")
	}
}

func TestLoadRejectsUnnamedRateLimit(t *testing.T) {
	yaml := "rateLimits:\n  - requestsPerMinute: 60\n    burst: 10\n"
	path := writeConfig(t, yaml)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for rate limit without id")
	}
}

func TestValidateRejectsImplicitAnonymousAccess(t *testing.T) {
	cfg := Config{
		Node: NodeConfig{Endpoint: "http://127.0.0.1:8080"},
		Auth: AuthConfig{
			Enabled:        true,
			OptionalPaths:  []string{"/healthz"},
			AllowAnonymous: true,
			enabledSet:     true,
		},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error when auth.allowAnonymous is true without explicit opt-in")
	}
	if !strings.Contains(err.Error(), "auth.allowAnonymous must be explicitly set") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnforceSecureSchemeUpgrades(t *testing.T) {
	path := writeConfig(t, "env: prod\nnode:\n  endpoint: http://settlement.internal:8080\nsecurity:\n  autoUpgradeHTTP: true\nauth:\n  enabled: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	target, err := cfg.NodeURL()
	if err != nil {
		t.Fatalf("node url: %v", err)
	}
	upgraded, changed, err := EnforceSecureScheme(cfg.Environment, target, cfg.Security.AutoUpgradeHTTP)
	if err != nil {
		t.Fatalf("enforce scheme: %v", err)
	}
	if !changed || upgraded.Scheme != "https" {
		t.Fatalf("expected http endpoint upgraded to https, got %q (changed=%v)", upgraded.Scheme, changed)
	}

	if _, _, err := EnforceSecureScheme("prod", target, false); err == nil {
		t.Fatalf("expected plaintext endpoint rejected outside dev without auto upgrade")
	}
	if _, _, err := EnforceSecureScheme("dev", target, false); err != nil {
		t.Fatalf("dev environment should allow http: %v", err)
	}
}
