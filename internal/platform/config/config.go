package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile         = ".env"
	defaultPort            = "8080"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultGatewayTimeout  = 10 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
	defaultUpsellPrice     = 27.0
	defaultUpsellName      = "Pacote de Bônus"
	defaultPixTTL          = 15 * time.Minute
	defaultPixCode         = "00020126580014br.gov.bcb.pix0136PIX_PLACEHOLDER_CODE52040000530398654041.005802BR"
	defaultRedirectAfter   = 10 * time.Second
	defaultRedirectURL     = "/"
	defaultSessionTTL      = time.Hour
	defaultSweepInterval   = time.Minute
	defaultKafkaTopic      = "checkout-events"
	defaultRateLimitPerMin = 60
	defaultIdempotencyKey  = "Idempotency-Key"
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultLogLevel        = "info"
	maxUpsellPrice         = 100000.0
	minimumGatewayTimeout  = 100 * time.Millisecond
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Gateway     GatewayConfig
	Offer       OfferConfig
	Pix         PixConfig
	Session     SessionConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
	Idempotency IdempotencyConfig
	LogLevel    string
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// GatewayConfig lists the remote endpoints the checkout flow talks to.
type GatewayConfig struct {
	TokenEndpoint       string
	PaymentEndpoint     string
	LeadWebhookEndpoint string
	Timeout             time.Duration
	BreakerFailures     int
	BreakerCooldown     time.Duration
}

// OfferConfig holds the one-time upsell offered between data entry and payment.
type OfferConfig struct {
	UpsellPrice float64
	UpsellName  string
}

// PixConfig controls the PIX charge shown on the payment step.
type PixConfig struct {
	TTL  time.Duration
	Code string
}

// SessionConfig controls session lifetime and the post-confirmation redirect.
type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	RedirectAfter time.Duration
	RedirectURL   string
}

// RedisConfig selects the Redis deadline store when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig enables outcome events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RateLimitConfig controls request throttling on mutating endpoints.
type RateLimitConfig struct {
	PerMinute int
}

// IdempotencyConfig controls replay protection on payment submissions.
type IdempotencyConfig struct {
	Header string
	TTL    time.Duration
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// and environment variables.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "CHECKOUT_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "CHECKOUT_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "CHECKOUT_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "CHECKOUT_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Gateway: GatewayConfig{
			TokenEndpoint:       stringWithDefault(lookup, "CHECKOUT_TOKEN_ENDPOINT", ""),
			PaymentEndpoint:     stringWithDefault(lookup, "CHECKOUT_PAYMENT_ENDPOINT", ""),
			LeadWebhookEndpoint: stringWithDefault(lookup, "CHECKOUT_LEAD_WEBHOOK_ENDPOINT", ""),
			Timeout:             durationWithDefault(lookup, "CHECKOUT_GATEWAY_TIMEOUT", defaultGatewayTimeout),
			BreakerFailures:     intWithDefault(lookup, "CHECKOUT_BREAKER_FAILURES", defaultBreakerFailures),
			BreakerCooldown:     durationWithDefault(lookup, "CHECKOUT_BREAKER_COOLDOWN", defaultBreakerCooldown),
		},
		Offer: OfferConfig{
			UpsellPrice: floatWithDefault(lookup, "CHECKOUT_UPSELL_PRICE", defaultUpsellPrice),
			UpsellName:  stringWithDefault(lookup, "CHECKOUT_UPSELL_NAME", defaultUpsellName),
		},
		Pix: PixConfig{
			TTL:  durationWithDefault(lookup, "CHECKOUT_PIX_TTL", defaultPixTTL),
			Code: stringWithDefault(lookup, "CHECKOUT_PIX_CODE", defaultPixCode),
		},
		Session: SessionConfig{
			TTL:           durationWithDefault(lookup, "CHECKOUT_SESSION_TTL", defaultSessionTTL),
			SweepInterval: durationWithDefault(lookup, "CHECKOUT_SESSION_SWEEP_INTERVAL", defaultSweepInterval),
			RedirectAfter: durationWithDefault(lookup, "CHECKOUT_REDIRECT_AFTER", defaultRedirectAfter),
			RedirectURL:   stringWithDefault(lookup, "CHECKOUT_REDIRECT_URL", defaultRedirectURL),
		},
		Redis: RedisConfig{
			Addr:     stringWithDefault(lookup, "CHECKOUT_REDIS_ADDR", ""),
			Password: stringWithDefault(lookup, "CHECKOUT_REDIS_PASSWORD", ""),
			DB:       intWithDefault(lookup, "CHECKOUT_REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: csvWithDefault(lookup, "CHECKOUT_KAFKA_BROKERS"),
			Topic:   stringWithDefault(lookup, "CHECKOUT_KAFKA_TOPIC", defaultKafkaTopic),
		},
		RateLimit: RateLimitConfig{
			PerMinute: intWithDefault(lookup, "CHECKOUT_RATELIMIT_PER_MIN", defaultRateLimitPerMin),
		},
		Idempotency: IdempotencyConfig{
			Header: stringWithDefault(lookup, "CHECKOUT_IDEMPOTENCY_HEADER", defaultIdempotencyKey),
			TTL:    durationWithDefault(lookup, "CHECKOUT_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
		},
		LogLevel: stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel),
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if !isHTTPURL(cfg.Gateway.TokenEndpoint) {
		missing = append(missing, "Gateway.TokenEndpoint")
	}
	if !isHTTPURL(cfg.Gateway.PaymentEndpoint) {
		missing = append(missing, "Gateway.PaymentEndpoint")
	}
	if cfg.Gateway.LeadWebhookEndpoint != "" && !isHTTPURL(cfg.Gateway.LeadWebhookEndpoint) {
		missing = append(missing, "Gateway.LeadWebhookEndpoint")
	}
	if cfg.Gateway.Timeout < minimumGatewayTimeout {
		missing = append(missing, "Gateway.Timeout")
	}
	if cfg.Gateway.BreakerFailures <= 0 {
		missing = append(missing, "Gateway.BreakerFailures")
	}
	if cfg.Offer.UpsellPrice < 0 || cfg.Offer.UpsellPrice > maxUpsellPrice {
		missing = append(missing, "Offer.UpsellPrice")
	}
	if cfg.Pix.TTL <= 0 {
		missing = append(missing, "Pix.TTL")
	}
	if strings.TrimSpace(cfg.Pix.Code) == "" {
		missing = append(missing, "Pix.Code")
	}
	if cfg.Session.TTL <= 0 {
		missing = append(missing, "Session.TTL")
	}
	if cfg.Session.SweepInterval <= 0 {
		missing = append(missing, "Session.SweepInterval")
	}
	if cfg.Session.RedirectAfter <= 0 {
		missing = append(missing, "Session.RedirectAfter")
	}
	if len(cfg.Kafka.Brokers) > 0 && strings.TrimSpace(cfg.Kafka.Topic) == "" {
		missing = append(missing, "Kafka.Topic")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isHTTPURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(parts[1]), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

// floatWithDefault accepts both "27.5" and the pt-BR "27,5".
func floatWithDefault(lookup func(string) (string, bool), key string, fallback float64) float64 {
	if value, ok := lookup(key); ok && value != "" {
		normalized := strings.ReplaceAll(strings.TrimSpace(value), ",", ".")
		if parsed, err := strconv.ParseFloat(normalized, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
