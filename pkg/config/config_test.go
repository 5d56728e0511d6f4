package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "production" {
		t.Fatalf("expected App.Env to be production, got %q", cfg.App.Env)
	}

	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Fatalf("unexpected Redis URL: %q", cfg.Redis.URL)
	}

	if got := cfg.Push.TokenTTL; got != 720*time.Hour {
		t.Fatalf("expected default token ttl 720h, got %v", got)
	}

	if cfg.PubSub.FanoutSubscription != "fanout-sub" {
		t.Fatalf("unexpected fanout subscription %q", cfg.PubSub.FanoutSubscription)
	}

	if cfg.Outbox.Enabled || cfg.Outbox.MaxAttempts != 10 {
		t.Fatalf("unexpected outbox defaults %+v", cfg.Outbox)
	}

	if len(cfg.CORS.AllowedOrigins) != 2 {
		t.Fatalf("expected default cors origins, got %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStoreDriver, "mongo")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown store driver to fail")
	}
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStoreDriver, StoreDriverPostgres)

	if _, err := Load(); err == nil {
		t.Fatal("expected postgres driver without dsn to fail")
	}

	t.Setenv(EnvDBHost, "localhost")
	t.Setenv(EnvDBUser, "studyhub")
	t.Setenv(EnvDBName, "studyhub")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DB.DSN != "postgres://studyhub@localhost:5432/studyhub?sslmode=disable" {
		t.Fatalf("unexpected dsn %q", cfg.DB.DSN)
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "production")
	t.Setenv(EnvPort, "8081")
	t.Setenv(EnvStoreDriver, StoreDriverFirestore)
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(EnvFirebaseProject, "studyhub-test")
	t.Setenv(EnvFanoutSub, "fanout-sub")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
}

func TestStoreConfigUsesSQL(t *testing.T) {
	cases := map[string]bool{
		"firestore": false,
		"postgres":  true,
		"SQLite":    true,
	}
	for driver, want := range cases {
		if got := (StoreConfig{Driver: driver}).UsesSQL(); got != want {
			t.Fatalf("driver %q: expected UsesSQL=%v got %v", driver, want, got)
		}
	}
}
