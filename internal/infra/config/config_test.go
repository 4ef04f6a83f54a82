package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("CHECKOUT_SESSION_TTL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("RETRY_BACKOFF", "")
	t.Setenv("CURRENCY", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Env != "dev" || cfg.HTTPAddr == "" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.CheckoutSessionTTL != 30*time.Minute {
		t.Fatalf("session ttl = %s", cfg.CheckoutSessionTTL)
	}
	if len(cfg.RetryBackoff) != 3 || cfg.RetryBackoff[2] != 30*time.Second {
		t.Fatalf("backoff = %v", cfg.RetryBackoff)
	}
	if cfg.Currency != "USD" {
		t.Fatalf("currency = %s", cfg.Currency)
	}
}

func TestLoadParsesBrokersAndDurations(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RETRY_BACKOFF", "2s,10s")
	t.Setenv("IDEMP_TTL", "1h")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
	if cfg.IdempotencyTTL != time.Hour || len(cfg.RetryBackoff) != 2 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"short ttl":      {"CHECKOUT_SESSION_TTL", "5m"},
		"bad duration":   {"IDEMP_TTL", "soon"},
		"bad currency":   {"CURRENCY", "dollars"},
		"bad rate limit": {"RATE_LIMIT_PER_MINUTE", "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}

func TestStripeRequiresWebhookSecret(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_x")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "STRIPE_WEBHOOK_SECRET") {
		t.Fatalf("got %v", err)
	}
}
