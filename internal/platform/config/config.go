package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"
)

const (
	defaultEnvFile         = ".env"
	defaultEnvironment     = "local"
	defaultPort            = "8080"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultLogLevel        = "info"
	defaultStorageBackend  = BackendMemory
	defaultFileDir         = ".storefront"
	defaultRedisPrefix     = "storefront:"
	defaultRedisTTL        = 30 * 24 * time.Hour
	defaultFirestoreColl   = "storefront_kv"
	defaultCurrency        = "EUR"
	defaultCookieName      = "storefront_session"
	defaultSessionLifetime = 30 * 24 * time.Hour
	defaultSessionIdle     = 2 * time.Hour
	defaultSessionSweep    = 5 * time.Minute
	defaultSecretsFallback = ".secrets.local"
	envPrefix              = "STOREFRONT_"
)

// Storage backends understood by the key-value layer.
const (
	BackendMemory    = "memory"
	BackendFile      = "file"
	BackendRedis     = "redis"
	BackendFirestore = "firestore"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Logging     LoggingConfig
	Storage     StorageConfig
	Catalog     CatalogConfig
	Storefront  StorefrontConfig
	Session     SessionConfig
	Events      EventsConfig
	Secrets     SecretsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig selects the log level and encoder.
type LoggingConfig struct {
	Level       string
	Development bool
}

// StorageConfig selects and configures the cart snapshot storage backend.
type StorageConfig struct {
	Backend   string
	FileDir   string
	Redis     RedisConfig
	Firestore FirestoreConfig
}

// RedisConfig configures the Redis storage backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
	Collection   string
}

// CatalogConfig points at the product catalog definition. An empty source uses the bundled catalog.
type CatalogConfig struct {
	Source string
}

// StorefrontConfig holds presentation defaults.
type StorefrontConfig struct {
	Currency string
}

// SessionConfig controls the storefront session cookie and in-memory workspaces.
type SessionConfig struct {
	CookieName    string
	HashKey       string
	BlockKey      string
	Secure        bool
	Lifetime      time.Duration
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// EventsConfig enables the optional order-confirmed announcement topic.
type EventsConfig struct {
	ProjectID  string
	OrderTopic string
}

// SecretsConfig controls Secret Manager lookups.
type SecretsConfig struct {
	ProjectID    string
	FallbackFile string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
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

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
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

// WithSecretResolver sets a custom secret resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// EnvironmentValues returns the effective key/value environment map after applying the same
// precedence rules as Load (dotenv < OS env < explicit env map).
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	for key, value := range dotEnvValues {
		values[key] = value
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			values[strings.TrimSpace(key)] = value
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

// Load assembles the storefront configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		key = envPrefix + key
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "ENVIRONMENT", defaultEnvironment)),
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Logging: LoggingConfig{
			Level:       stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel),
			Development: boolWithDefault(lookup, "LOG_DEVELOPMENT", false),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(stringWithDefault(lookup, "STORAGE_BACKEND", defaultStorageBackend)),
			FileDir: stringWithDefault(lookup, "STORAGE_FILE_DIR", defaultFileDir),
			Redis: RedisConfig{
				Addr:     stringWithDefault(lookup, "REDIS_ADDR", ""),
				Password: stringWithDefault(lookup, "REDIS_PASSWORD", ""),
				DB:       intWithDefault(lookup, "REDIS_DB", 0),
				Prefix:   stringWithDefault(lookup, "REDIS_PREFIX", defaultRedisPrefix),
				TTL:      durationWithDefault(lookup, "REDIS_TTL", defaultRedisTTL),
			},
			Firestore: FirestoreConfig{
				ProjectID:    stringWithDefault(lookup, "FIRESTORE_PROJECT_ID", ""),
				EmulatorHost: stringWithDefault(lookup, "FIRESTORE_EMULATOR_HOST", ""),
				Collection:   stringWithDefault(lookup, "FIRESTORE_COLLECTION", defaultFirestoreColl),
			},
		},
		Catalog: CatalogConfig{
			Source: stringWithDefault(lookup, "CATALOG_SOURCE", ""),
		},
		Storefront: StorefrontConfig{
			Currency: strings.ToUpper(stringWithDefault(lookup, "CURRENCY", defaultCurrency)),
		},
		Session: SessionConfig{
			CookieName:    stringWithDefault(lookup, "SESSION_COOKIE_NAME", defaultCookieName),
			HashKey:       stringWithDefault(lookup, "SESSION_HASH_KEY", ""),
			BlockKey:      stringWithDefault(lookup, "SESSION_BLOCK_KEY", ""),
			Secure:        boolWithDefault(lookup, "SESSION_SECURE", false),
			Lifetime:      durationWithDefault(lookup, "SESSION_LIFETIME", defaultSessionLifetime),
			IdleTimeout:   durationWithDefault(lookup, "SESSION_IDLE_TIMEOUT", defaultSessionIdle),
			SweepInterval: durationWithDefault(lookup, "SESSION_SWEEP_INTERVAL", defaultSessionSweep),
		},
		Events: EventsConfig{
			ProjectID:  stringWithDefault(lookup, "EVENTS_PROJECT_ID", ""),
			OrderTopic: stringWithDefault(lookup, "EVENTS_ORDER_TOPIC", ""),
		},
		Secrets: SecretsConfig{
			ProjectID:    stringWithDefault(lookup, "SECRETS_PROJECT_ID", ""),
			FallbackFile: stringWithDefault(lookup, "SECRETS_FALLBACK_FILE", defaultSecretsFallback),
		},
	}

	// Pub/Sub defaults to the Firestore project when unspecified.
	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Storage.Firestore.ProjectID
	}

	secretFields := []*string{
		&cfg.Session.HashKey,
		&cfg.Session.BlockKey,
		&cfg.Storage.Redis.Password,
	}
	for _, field := range secretFields {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsLocal reports whether the process runs in the local development environment.
func (c Config) IsLocal() bool {
	return c.Environment == "" || c.Environment == defaultEnvironment
}

func defaultOptions() loaderOptions {
	return loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", errSecretResolverNotConfigured
		}),
	}
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if strings.TrimSpace(cfg.Server.Port) == "" {
		invalid = append(invalid, "Server.Port")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		invalid = append(invalid, "Server.ShutdownTimeout")
	}

	switch cfg.Storage.Backend {
	case BackendMemory:
	case BackendFile:
		if strings.TrimSpace(cfg.Storage.FileDir) == "" {
			invalid = append(invalid, "Storage.FileDir")
		}
	case BackendRedis:
		if strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
			invalid = append(invalid, "Storage.Redis.Addr")
		}
		if cfg.Storage.Redis.TTL < 0 {
			invalid = append(invalid, "Storage.Redis.TTL")
		}
	case BackendFirestore:
		if strings.TrimSpace(cfg.Storage.Firestore.ProjectID) == "" {
			invalid = append(invalid, "Storage.Firestore.ProjectID")
		}
		if strings.TrimSpace(cfg.Storage.Firestore.Collection) == "" {
			invalid = append(invalid, "Storage.Firestore.Collection")
		}
	default:
		invalid = append(invalid, "Storage.Backend")
	}

	if _, err := currency.ParseISO(cfg.Storefront.Currency); err != nil {
		invalid = append(invalid, "Storefront.Currency")
	}

	if strings.TrimSpace(cfg.Session.CookieName) == "" {
		invalid = append(invalid, "Session.CookieName")
	}
	if !cfg.IsLocal() && len(cfg.Session.HashKey) < 32 {
		invalid = append(invalid, "Session.HashKey")
	}
	switch len(cfg.Session.BlockKey) {
	case 0, 16, 24, 32:
	default:
		invalid = append(invalid, "Session.BlockKey")
	}
	if cfg.Session.IdleTimeout <= 0 {
		invalid = append(invalid, "Session.IdleTimeout")
	}

	if cfg.Events.OrderTopic != "" && cfg.Events.ProjectID == "" {
		invalid = append(invalid, "Events.ProjectID")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
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
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
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

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
