// Package config loads application configuration from environment variables.
// A .env file in the working directory is read first when present; real
// environment variables always win over it.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevSecret is used when no signing secret is configured.  It is only
// acceptable outside production and is reported as insecure.
const DevSecret = "dev-only-secret-change-me"

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // application environment (dev, test, prod)
	Port string // HTTP port to listen on

	DBDriver string // "mysql" or "sqlite"
	DBUser   string
	DBPass   string
	DBHost   string
	DBPort   string
	DBName   string
	DBPath   string // sqlite file, ":memory:" allowed

	JWTSecret      string
	InsecureSecret bool // true when DevSecret is in use
	JWTIssuer      string
	JWTAudience    string
	JWTKeyVersion  string
	TokenTTL       time.Duration

	PasswordIterations int
	WriteRoles         []string
	CookieSecure       bool

	AMQPURL       string
	AuditConsumer bool
}

// Load reads the environment into a Config.  The signing secret is looked up
// under JWT_SIGNING_KEY, then JWT_SECRET, then falls back to DevSecret.  The
// fallback is refused when APP_ENV is prod.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:                strings.ToLower(envStr("APP_ENV", "dev")),
		Port:               envStr("APP_PORT", "8080"),
		DBDriver:           strings.ToLower(envStr("DB_DRIVER", "mysql")),
		DBUser:             envStr("DB_USER", "root"),
		DBPass:             os.Getenv("DB_PASS"),
		DBHost:             envStr("DB_HOST", "127.0.0.1"),
		DBPort:             envStr("DB_PORT", "3306"),
		DBName:             envStr("DB_NAME", "cereal"),
		DBPath:             envStr("DB_PATH", "cereal.db"),
		JWTIssuer:          strings.TrimSpace(os.Getenv("JWT_ISSUER")),
		JWTAudience:        strings.TrimSpace(os.Getenv("JWT_AUDIENCE")),
		JWTKeyVersion:      envStr("JWT_KEY_VERSION", "v1"),
		TokenTTL:           envDur("TOKEN_TTL", 8*time.Hour),
		PasswordIterations: envInt("PASSWORD_ITERATIONS", 120_000),
		WriteRoles:         splitList(envStr("WRITE_ROLES", "admin")),
		CookieSecure:       envBool("COOKIE_SECURE", false),
		AMQPURL:            amqpURL(),
		AuditConsumer:      envBool("AUDIT_CONSUMER_ENABLED", false),
	}

	cfg.JWTSecret = firstNonEmpty(os.Getenv("JWT_SIGNING_KEY"), os.Getenv("JWT_SECRET"))
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = DevSecret
		cfg.InsecureSecret = true
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.InsecureSecret && c.IsProd() {
		return errors.New("config: JWT_SIGNING_KEY or JWT_SECRET must be set in prod")
	}
	switch c.DBDriver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.PasswordIterations < 1 {
		return fmt.Errorf("config: PASSWORD_ITERATIONS must be positive, got %d", c.PasswordIterations)
	}
	if len(c.WriteRoles) == 0 {
		return errors.New("config: WRITE_ROLES is empty")
	}
	if c.AuditConsumer && c.AMQPURL == "" {
		return errors.New("config: AUDIT_CONSUMER_ENABLED needs RABBITMQ_URL or AMQP_URL")
	}
	return nil
}

// IsProd reports whether the service runs in production.
func (c Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

// DSN returns the data source name for the configured driver.  For MySQL,
// clientFoundRows makes UPDATE report matched rather than changed rows so an
// update that rewrites identical values is not mistaken for "not found".
func (c Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.DBPath
	}
	auth := c.DBUser
	if c.DBPass != "" {
		auth = c.DBUser + ":" + c.DBPass
	}
	q := url.Values{}
	q.Set("charset", "utf8mb4")
	q.Set("parseTime", "true")
	q.Set("loc", "UTC")
	q.Set("clientFoundRows", "true")
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?%s", auth, c.DBHost, c.DBPort, c.DBName, q.Encode())
}

// amqpURL returns the broker URL.  Empty means no broker: events are
// dropped and the audit consumer cannot run.
func amqpURL() string {
	return firstNonEmpty(os.Getenv("RABBITMQ_URL"), os.Getenv("AMQP_URL"))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
