package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func requiredEnv() map[string]string {
	return map[string]string{
		"CHECKOUT_TOKEN_ENDPOINT":   "https://hooks.example.com/validate-token",
		"CHECKOUT_PAYMENT_ENDPOINT": "https://hooks.example.com/payment",
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(WithEnvMap(requiredEnv()), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Gateway.Timeout != defaultGatewayTimeout {
		t.Errorf("unexpected gateway timeout: %s", cfg.Gateway.Timeout)
	}
	if cfg.Gateway.BreakerFailures != 5 {
		t.Errorf("unexpected breaker failures: %d", cfg.Gateway.BreakerFailures)
	}
	if cfg.Offer.UpsellPrice != 27 {
		t.Errorf("expected default upsell price 27, got %v", cfg.Offer.UpsellPrice)
	}
	if cfg.Pix.TTL != 15*time.Minute {
		t.Errorf("expected pix ttl 15m, got %s", cfg.Pix.TTL)
	}
	if cfg.Session.RedirectAfter != 10*time.Second || cfg.Session.RedirectURL != "/" {
		t.Errorf("unexpected redirect settings: %+v", cfg.Session)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("expected redis disabled by default, got %q", cfg.Redis.Addr)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("expected no kafka brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.Topic != "checkout-events" {
		t.Errorf("unexpected kafka topic: %s", cfg.Kafka.Topic)
	}
	if cfg.RateLimit.PerMinute != 60 {
		t.Errorf("unexpected rate limit: %d", cfg.RateLimit.PerMinute)
	}
	if cfg.Idempotency.Header != "Idempotency-Key" || cfg.Idempotency.TTL != 24*time.Hour {
		t.Errorf("unexpected idempotency config: %+v", cfg.Idempotency)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := requiredEnv()
	env["CHECKOUT_SERVER_PORT"] = "9090"
	env["CHECKOUT_SERVER_IDLE_TIMEOUT"] = "2m"
	env["CHECKOUT_UPSELL_PRICE"] = "19,90"
	env["CHECKOUT_UPSELL_NAME"] = "Mentoria Extra"
	env["CHECKOUT_PIX_TTL"] = "5m"
	env["CHECKOUT_REDIS_ADDR"] = "localhost:6379"
	env["CHECKOUT_REDIS_DB"] = "2"
	env["CHECKOUT_KAFKA_BROKERS"] = "kafka-1:9092, kafka-2:9092,,"
	env["CHECKOUT_RATELIMIT_PER_MIN"] = "10"
	env["LOG_LEVEL"] = "debug"

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port override, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Offer.UpsellPrice != 19.9 {
		t.Errorf("expected upsell price 19.9, got %v", cfg.Offer.UpsellPrice)
	}
	if cfg.Offer.UpsellName != "Mentoria Extra" {
		t.Errorf("unexpected upsell name: %s", cfg.Offer.UpsellName)
	}
	if cfg.Pix.TTL != 5*time.Minute {
		t.Errorf("unexpected pix ttl: %s", cfg.Pix.TTL)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis config: %+v", cfg.Redis)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
	if cfg.RateLimit.PerMinute != 10 {
		t.Errorf("unexpected rate limit: %d", cfg.RateLimit.PerMinute)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("unexpected log level: %s", cfg.LogLevel)
	}
}

func TestLoadMissingEndpoints(t *testing.T) {
	env := map[string]string{
		"CHECKOUT_PAYMENT_ENDPOINT":      "ftp://hooks.example.com/payment",
		"CHECKOUT_LEAD_WEBHOOK_ENDPOINT": "not a url",
	}
	_, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error")
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := vErr.Fields()
	want := []string{"Gateway.TokenEndpoint", "Gateway.PaymentEndpoint", "Gateway.LeadWebhookEndpoint"}
	if len(fields) != len(want) {
		t.Fatalf("expected fields %v, got %v", want, fields)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("field %d: expected %s, got %s", i, want[i], fields[i])
		}
	}
}

func TestLoadFromDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\n" +
		"export CHECKOUT_TOKEN_ENDPOINT=\"http://localhost:5678/validate\"\n" +
		"CHECKOUT_PAYMENT_ENDPOINT='http://localhost:5678/pay'\n" +
		"CHECKOUT_SERVER_PORT=7070\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(WithEnvFile(path), WithoutSystemEnv(), WithEnvMap(map[string]string{
		"CHECKOUT_SERVER_PORT": "6060",
	}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Gateway.TokenEndpoint != "http://localhost:5678/validate" {
		t.Errorf("unexpected token endpoint: %s", cfg.Gateway.TokenEndpoint)
	}
	if cfg.Gateway.PaymentEndpoint != "http://localhost:5678/pay" {
		t.Errorf("unexpected payment endpoint: %s", cfg.Gateway.PaymentEndpoint)
	}
	if cfg.Server.Port != "6060" {
		t.Errorf("expected explicit map to win over .env, got %s", cfg.Server.Port)
	}
}

func TestLoadRejectsInvalidUpsellPrice(t *testing.T) {
	env := requiredEnv()
	env["CHECKOUT_UPSELL_PRICE"] = "-1"
	_, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if got := vErr.Fields(); len(got) != 1 || got[0] != "Offer.UpsellPrice" {
		t.Fatalf("unexpected fields: %v", got)
	}
}
