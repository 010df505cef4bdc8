package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/BenjDW/maitre-slither/gateway/config"
	"github.com/BenjDW/maitre-slither/gateway/middleware"
	"github.com/BenjDW/maitre-slither/gateway/routes"
	"github.com/BenjDW/maitre-slither/observability/logging"
	telemetry "github.com/BenjDW/maitre-slither/observability/otel"
)

func main() {
	var cfgPath string
	var allowInsecureFlag bool
	flag.StringVar(&cfgPath, "config", "", "path to gateway configuration")
	flag.BoolVar(&allowInsecureFlag, "allow-insecure", false, "DEV ONLY: permit plaintext listeners on loopback interfaces")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("MSL_ENV"))
	logger := logging.Setup("slither-gateway", env)

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "slither-gateway",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		logger.Error("failed to initialise telemetry", "err", err)
		os.Exit(1)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatal(logger, "load config", err)
	}
	if env == "" {
		env = cfg.Environment
	}

	configDir := ""
	if strings.TrimSpace(cfgPath) != "" {
		configDir = filepath.Dir(cfgPath)
	}

	nodeURL, err := cfg.NodeURL()
	if err != nil {
		fatal(logger, "parse node endpoint", err)
	}
	autoUpgrade := cfg.Security.AutoUpgradeHTTP
	if override := strings.TrimSpace(os.Getenv("MSL_GATEWAY_AUTO_HTTPS")); override != "" {
		parsed, err := strconv.ParseBool(override)
		if err != nil {
			fatal(logger, "parse MSL_GATEWAY_AUTO_HTTPS", err)
		}
		autoUpgrade = parsed
	}
	securedNodeURL, upgraded, err := config.EnforceSecureScheme(env, nodeURL, autoUpgrade)
	if err != nil {
		fatal(logger, "enforce HTTPS for node endpoint", err)
	}
	if upgraded {
		logger.Info("auto-upgraded node endpoint to HTTPS")
	}
	if cfg.Node.RPCToken == "" {
		logger.Warn("node RPC token not configured; mutating calls will be rejected by the node")
	}

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName:   cfg.Observability.ServiceName,
		MetricsPrefix: cfg.Observability.MetricsPrefix,
		LogRequests:   cfg.Observability.LogRequests,
		Enabled:       cfg.Observability.Metrics || cfg.Observability.Tracing,
	}, logger)

	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:        cfg.Auth.Enabled,
		HMACSecret:     cfg.Auth.HMACSecret,
		Issuer:         cfg.Auth.Issuer,
		Audience:       cfg.Auth.Audience,
		ScopeClaim:     cfg.Auth.ScopeClaim,
		OptionalPaths:  cfg.Auth.OptionalPaths,
		AllowAnonymous: cfg.Auth.AllowAnonymous,
		ClockSkew:      cfg.Auth.ClockSkew,
	}, logger)

	rateLimits := make(map[string]middleware.RateLimit)
	for _, entry := range cfg.RateLimits {
		if entry.ID == "" {
			continue
		}
		rateLimits[entry.ID] = middleware.RateLimit{
			RequestsPerMinute: entry.RequestsPerMinute,
			Burst:             entry.Burst,
		}
	}
	if len(rateLimits) == 0 {
		rateLimits["settlement"] = middleware.RateLimit{RequestsPerMinute: 600, Burst: 50}
		rateLimits["rpc"] = middleware.RateLimit{RequestsPerMinute: 300, Burst: 30}
	}
	rateLimiter := middleware.NewRateLimiter(rateLimits, logger)
	defer rateLimiter.Stop()

	cors := middleware.CORSConfig{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
	}
	if len(cors.AllowedMethods) == 0 {
		cors.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cors.AllowedHeaders) == 0 {
		cors.AllowedHeaders = []string{"Content-Type", "Authorization"}
	}

	router, err := routes.New(routes.Config{
		Node: routes.NodeRoute{
			Target: securedNodeURL,
			Token:  cfg.Node.RPCToken,
		},
		Authenticator: auth,
		RateLimiter:   rateLimiter,
		Observability: obs,
		CORS:          cors,
	})
	if err != nil {
		fatal(logger, "configure routes", err)
	}

	handler := http.Handler(router)
	if cfg.Observability.Tracing {
		handler = otelhttp.NewHandler(router, "slither-gateway")
	}

	tlsConfig, err := buildTLSConfig(configDir, cfg.Security)
	if err != nil {
		fatal(logger, "configure TLS", err)
	}

	allowInsecure := cfg.Security.AllowInsecure || allowInsecureFlag
	if tlsConfig == nil {
		if !allowInsecure {
			fatal(logger, "listener security", fmt.Errorf("TLS certificate and key are required; provide security.tlsCertFile/tlsKeyFile or start with --allow-insecure in dev"))
		}
		if !strings.EqualFold(env, "dev") && !isLoopbackAddress(cfg.ListenAddress) {
			fatal(logger, "listener security", fmt.Errorf("plaintext gateway mode is restricted to loopback listeners or dev environment"))
		}
	}

	server := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	if tlsConfig != nil {
		server.TLSConfig = tlsConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		fatal(logger, "listen", err)
	}
	go func() {
		scheme := "http"
		if tlsConfig != nil {
			scheme = "https"
		}
		logger.Info("gateway listening", "address", fmt.Sprintf("%s://%s", scheme, listener.Addr()), "node", securedNodeURL.String())
		var serveErr error
		if tlsConfig != nil {
			serveErr = server.Serve(tls.NewListener(listener, tlsConfig))
		} else {
			serveErr = server.Serve(listener)
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			fatal(logger, "listen and serve", serveErr)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}

func buildTLSConfig(baseDir string, sec config.SecurityConfig) (*tls.Config, error) {
	certPath := resolveTLSPath(baseDir, sec.TLSCertFile)
	keyPath := resolveTLSPath(baseDir, sec.TLSKeyFile)
	caPath := resolveTLSPath(baseDir, sec.TLSClientCAFile)
	if strings.TrimSpace(certPath) == "" && strings.TrimSpace(keyPath) == "" && strings.TrimSpace(caPath) == "" {
		return nil, nil
	}
	if strings.TrimSpace(certPath) == "" || strings.TrimSpace(keyPath) == "" {
		return nil, fmt.Errorf("security.tlsCertFile and security.tlsKeyFile must both be provided when enabling TLS")
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load TLS key pair: %w", err)
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if strings.TrimSpace(caPath) != "" {
		data, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("read client CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("parse client CA file %s", caPath)
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return tlsCfg, nil
}

func resolveTLSPath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	if baseDir == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(baseDir, trimmed)
}

func isLoopbackAddress(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}
