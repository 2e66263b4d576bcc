package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Environment != "local" {
		t.Errorf("expected local environment, got %s", cfg.Environment)
	}
	if !cfg.IsLocal() {
		t.Errorf("expected IsLocal to be true")
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("expected memory backend, got %s", cfg.Storage.Backend)
	}
	if cfg.Storage.Redis.Prefix != defaultRedisPrefix {
		t.Errorf("unexpected redis prefix %q", cfg.Storage.Redis.Prefix)
	}
	if cfg.Storage.Firestore.Collection != defaultFirestoreColl {
		t.Errorf("unexpected firestore collection %q", cfg.Storage.Firestore.Collection)
	}
	if cfg.Storefront.Currency != "EUR" {
		t.Errorf("expected EUR, got %s", cfg.Storefront.Currency)
	}
	if cfg.Session.CookieName != defaultCookieName {
		t.Errorf("unexpected cookie name %q", cfg.Session.CookieName)
	}
	if cfg.Session.IdleTimeout != defaultSessionIdle {
		t.Errorf("unexpected idle timeout %s", cfg.Session.IdleTimeout)
	}
	if cfg.Catalog.Source != "" {
		t.Errorf("expected bundled catalog, got %q", cfg.Catalog.Source)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"STOREFRONT_ENVIRONMENT":          "Prod",
		"STOREFRONT_SERVER_PORT":          "9090",
		"STOREFRONT_SERVER_READ_TIMEOUT":  "20s",
		"STOREFRONT_LOG_LEVEL":            "debug",
		"STOREFRONT_STORAGE_BACKEND":      "REDIS",
		"STOREFRONT_REDIS_ADDR":           "localhost:6379",
		"STOREFRONT_REDIS_PASSWORD":       "sm://redis/password",
		"STOREFRONT_REDIS_DB":             "2",
		"STOREFRONT_REDIS_TTL":            "1h",
		"STOREFRONT_FIRESTORE_PROJECT_ID": "sf-prod",
		"STOREFRONT_CURRENCY":             "usd",
		"STOREFRONT_SESSION_HASH_KEY":     "secret://session/hash",
		"STOREFRONT_SESSION_BLOCK_KEY":    "0123456789abcdef",
		"STOREFRONT_SESSION_SECURE":       "yes",
		"STOREFRONT_EVENTS_ORDER_TOPIC":   "orders-confirmed",
	}

	secrets := map[string]string{
		"secret://redis/password": "redis-pass",
		"secret://session/hash":   "0123456789abcdef0123456789abcdef",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", errors.New("unknown secret")
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Environment != "prod" || cfg.IsLocal() {
		t.Errorf("expected prod environment, got %q", cfg.Environment)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("expected port override, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 20*time.Second {
		t.Errorf("unexpected read timeout %s", cfg.Server.ReadTimeout)
	}
	if cfg.Storage.Backend != BackendRedis {
		t.Errorf("expected redis backend, got %s", cfg.Storage.Backend)
	}
	if cfg.Storage.Redis.Password != "redis-pass" {
		t.Errorf("expected resolved redis password, got %q", cfg.Storage.Redis.Password)
	}
	if cfg.Storage.Redis.DB != 2 || cfg.Storage.Redis.TTL != time.Hour {
		t.Errorf("unexpected redis settings %+v", cfg.Storage.Redis)
	}
	if cfg.Storefront.Currency != "USD" {
		t.Errorf("expected upper-cased currency, got %s", cfg.Storefront.Currency)
	}
	if cfg.Session.HashKey != "0123456789abcdef0123456789abcdef" {
		t.Errorf("expected resolved hash key")
	}
	if !cfg.Session.Secure {
		t.Errorf("expected secure cookies")
	}
	if cfg.Events.ProjectID != "sf-prod" {
		t.Errorf("expected events project to default to firestore project, got %q", cfg.Events.ProjectID)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	env := map[string]string{
		"STOREFRONT_ENVIRONMENT":       "staging",
		"STOREFRONT_STORAGE_BACKEND":   "firestore",
		"STOREFRONT_CURRENCY":          "XXXX",
		"STOREFRONT_SESSION_BLOCK_KEY": "short",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	want := map[string]bool{
		"Storage.Firestore.ProjectID": false,
		"Storefront.Currency":         false,
		"Session.HashKey":             false,
		"Session.BlockKey":            false,
	}
	for _, field := range vErr.Fields() {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Errorf("expected %s in validation fields %v", field, vErr.Fields())
		}
	}
}

func TestLoadUnknownBackend(t *testing.T) {
	env := map[string]string{"STOREFRONT_STORAGE_BACKEND": "sqlite"}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if fields := vErr.Fields(); len(fields) != 1 || fields[0] != "Storage.Backend" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestLoadSecretWithoutResolver(t *testing.T) {
	env := map[string]string{"STOREFRONT_SESSION_HASH_KEY": "secret://session/hash"}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var sErr *SecretError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if sErr.Ref != "secret://session/hash" {
		t.Fatalf("unexpected ref %q", sErr.Ref)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\nexport STOREFRONT_SERVER_PORT=7070\nSTOREFRONT_STORAGE_BACKEND='file'\nSTOREFRONT_STORAGE_FILE_DIR=\"/tmp/cart\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(path), WithoutSystemEnv(), WithEnvMap(map[string]string{
		"STOREFRONT_SERVER_PORT": "6060",
	}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "6060" {
		t.Errorf("expected env map to win over dotenv, got %s", cfg.Server.Port)
	}
	if cfg.Storage.Backend != BackendFile || cfg.Storage.FileDir != "/tmp/cart" {
		t.Errorf("unexpected storage config %+v", cfg.Storage)
	}
}

func TestEnvironmentValuesPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("A=dotenv\nB=dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	values, err := EnvironmentValues(WithEnvFile(path), WithoutSystemEnv(), WithEnvMap(map[string]string{"B": "map"}))
	if err != nil {
		t.Fatalf("EnvironmentValues error: %v", err)
	}
	if values["A"] != "dotenv" || values["B"] != "map" {
		t.Fatalf("unexpected values %v", values)
	}
}
