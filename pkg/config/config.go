// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is resolved once at process start and passed into every component
// that needs it. Components never read the environment themselves.
type Config struct {
	Env      string
	HTTPAddr string

	// Public base URL of this app; webhook target URLs and the manifest
	// derive from it.
	AppBaseURL string

	// App spec file (features, permissions, webhook templates).
	AppSpecPath string

	// Auth record store: memory | redis | postgres.
	StoreBackend string
	DatabaseURL  string
	RedisURL     string

	// Optional key for encrypting stored instance tokens at rest.
	TokenEncryptionKey string

	// Key set cache TTL.
	KeySetTTL time.Duration

	// Bounded concurrency for webhook reconciliation.
	ReconcileWorkers int

	// Platform versions this app installs against (semver range).
	SupportedVersions string

	// Shared secret authenticating server-originated calls.
	InternalToken string

	// Optional rego policy file gating mutating operations.
	PolicyPath string

	CORSOrigins []string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                env("TENON_ENV", "dev"),
		HTTPAddr:           env("TENON_HTTP_ADDR", ":8080"),
		AppBaseURL:         env("APP_BASE_URL", "http://localhost:8080"),
		AppSpecPath:        env("APP_SPEC_PATH", "app.yaml"),
		StoreBackend:       env("AUTH_STORE", ""),
		DatabaseURL:        env("DATABASE_URL", ""),
		RedisURL:           env("REDIS_URL", ""),
		TokenEncryptionKey: env("TOKEN_ENCRYPTION_KEY", ""),
		KeySetTTL:          envDur("KEYSET_TTL_SEC", 21600) * time.Second,
		ReconcileWorkers:   envInt("RECONCILE_WORKERS", 4),
		SupportedVersions:  env("SUPPORTED_VERSIONS", ">=3.10"),
		InternalToken:      env("INTERNAL_TOKEN", ""),
		PolicyPath:         env("POLICY_PATH", ""),
		CORSOrigins:        envList("CORS_ORIGINS", "*"),
	}
	if cfg.StoreBackend == "" {
		switch {
		case cfg.DatabaseURL != "":
			cfg.StoreBackend = "postgres"
		case cfg.RedisURL != "":
			cfg.StoreBackend = "redis"
		default:
			cfg.StoreBackend = "memory"
			log.Println("[WARN] no DATABASE_URL or REDIS_URL set, using in-memory auth store for dev")
		}
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
func envList(k, def string) []string {
	v := os.Getenv(k)
	if v == "" {
		v = def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
