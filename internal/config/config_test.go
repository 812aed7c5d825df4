package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// chdir switches the working directory for the duration of the test
// (testing.T.Chdir is unavailable before Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Errorf("restore wd: %v", err)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TokenAlgorithm != "RS256" || cfg.AccessTTL != 30*time.Minute || cfg.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("token defaults: %+v", cfg)
	}
	if !cfg.BlacklistEnabled || cfg.TokenLeeway != 0 {
		t.Fatalf("blacklist/leeway defaults: %v %v", cfg.BlacklistEnabled, cfg.TokenLeeway)
	}
	if topo := cfg.Topology(); topo.Exchange != "user_events" || topo.DeadLetterQueue != "user_projection.dead" {
		t.Fatalf("topology defaults: %+v", topo)
	}
	if cfg.ReconnectMaxRetries != 10 || cfg.ReconnectBase != 500*time.Millisecond {
		t.Fatalf("reconnect defaults: %d %s", cfg.ReconnectMaxRetries, cfg.ReconnectBase)
	}
	if cfg.PublishMaxRetries != 3 || cfg.RequeueDelay != time.Second {
		t.Fatalf("publish/requeue defaults: %d %s", cfg.PublishMaxRetries, cfg.RequeueDelay)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ACCESS_TOKEN_TTL", "90s")
	t.Setenv("TOKEN_BLACKLIST_ENABLED", "false")
	t.Setenv("TOKEN_ALGORITHM", "EdDSA")
	t.Setenv("CONSUMER_WORKERS", "8")
	t.Setenv("PUBLISH_MAX_RETRIES", "5")
	t.Setenv("BROKER_RECONNECT_MAX_RETRIES", "2")
	t.Setenv("BROKER_RECONNECT_BASE", "50ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AccessTTL != 90*time.Second || cfg.BlacklistEnabled || cfg.TokenAlgorithm != "EdDSA" ||
		cfg.ConsumerWorkers != 8 || cfg.PublishMaxRetries != 5 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.ReconnectMaxRetries != 2 || cfg.ReconnectBase != 50*time.Millisecond {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestValidate_Rejects(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.AccessTTL = 0
	cfg.RevocationBackend = "memcached"
	cfg.ConsumerWorkers = 0
	cfg.ReconnectBase = 0

	err = cfg.Validate()
	if err == nil {
		t.Fatal("want validation error")
	}
	for _, want := range []string{"ACCESS_TOKEN_TTL", "REVOCATION_BACKEND", "CONSUMER_WORKERS", "BROKER_RECONNECT_BASE"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := &Config{
		IdentityDSN:   "postgres://user:s3cret@db:5432/identity",
		RabbitURL:     "amqp://guest:hunter2@mq:5672/",
		RedisPassword: "redispw",
	}
	s := cfg.String()
	for _, secret := range []string{"s3cret", "hunter2", "redispw"} {
		if strings.Contains(s, secret) {
			t.Fatalf("secret %q leaked: %s", secret, s)
		}
	}
	if !strings.Contains(s, "postgres://user:********@db:5432/identity") {
		t.Fatalf("unexpected masking: %s", s)
	}
}
