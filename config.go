package gopanel

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/gopanel/gopanel/logstore"
)

// Config is the panel's construction-time configuration. There is no
// global default; build one explicitly or load it from the environment.
type Config struct {
	// Name is shown in the panel header and page titles.
	Name string
	// URLPrefix is where the panel mounts, e.g. "/admin".
	URLPrefix string
	// AssetsPrefix is where static assets are served. Defaults to
	// URLPrefix + "/assets".
	AssetsPrefix string
	// PageSize caps list and search pages.
	PageSize int
	// LogLevel selects which actions reach the log store.
	LogLevel logstore.Level
	// LogCapacity bounds the default in-memory log store.
	LogCapacity int

	// Session
	JWTSecret  string
	SessionTTL time.Duration

	// RedisURL, when set, backs the log store with Redis instead of the
	// in-memory store.
	RedisURL string
}

// DefaultConfig returns a usable development configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:        "Admin",
		URLPrefix:   "/admin",
		PageSize:    20,
		LogLevel:    logstore.LevelInstanceView,
		LogCapacity: 1000,
		SessionTTL:  24 * time.Hour,
	}
}

// LoadConfig reads the configuration from the environment (and .env when
// present).
func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Name:        getEnv("PANEL_NAME", "Admin"),
		URLPrefix:   getEnv("PANEL_URL_PREFIX", "/admin"),
		AssetsPrefix: getEnv("PANEL_ASSETS_PREFIX", ""),
		PageSize:    getEnvInt("PANEL_PAGE_SIZE", 20),
		LogLevel:    parseLogLevel(getEnv("PANEL_LOG_LEVEL", "instance_view")),
		LogCapacity: getEnvInt("PANEL_LOG_CAPACITY", 1000),
		JWTSecret:   getEnv("PANEL_JWT_SECRET", "change-me-in-production"),
		SessionTTL:  time.Duration(getEnvInt("PANEL_SESSION_TTL_HOURS", 24)) * time.Hour,
		RedisURL:    getEnv("REDIS_URL", ""),
	}
	cfg.normalize()
	return cfg
}

func (c *Config) normalize() {
	if c.URLPrefix == "" {
		c.URLPrefix = "/admin"
	}
	if c.AssetsPrefix == "" {
		c.AssetsPrefix = c.URLPrefix + "/assets"
	}
	if c.PageSize <= 0 {
		c.PageSize = 20
	}
	if c.LogCapacity <= 0 {
		c.LogCapacity = 1000
	}
}

func (c *Config) Validate(log *zap.Logger) {
	if c.JWTSecret == "" || c.JWTSecret == "change-me-in-production" {
		log.Warn("PANEL_JWT_SECRET is default, change in production")
	}
}

func parseLogLevel(s string) logstore.Level {
	switch s {
	case "off":
		return logstore.LevelOff
	case "panel_view":
		return logstore.LevelPanelView
	case "list_view":
		return logstore.LevelListView
	case "instance_view":
		return logstore.LevelInstanceView
	case "update":
		return logstore.LevelUpdate
	case "create":
		return logstore.LevelCreate
	case "delete":
		return logstore.LevelDelete
	default:
		return logstore.LevelInstanceView
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
