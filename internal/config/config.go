// Package config holds the environment-driven configuration for the catalog
// scraper service and CLI. Everything has a working default; Validate catches
// the combinations that cannot work.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Browser  BrowserConfig
	Scraper  ScraperConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Name        string
	SSLMode     string
	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type BrowserConfig struct {
	Headless       bool
	SlowMo         time.Duration
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
}

// ScraperConfig carries the pacing ranges and the challenge-recovery policy.
// Pacing is the primary anti-detection control, so the defaults are slow on
// purpose.
type ScraperConfig struct {
	PreRequestMin        time.Duration
	PreRequestMax        time.Duration
	InterRequestMin      time.Duration
	InterRequestMax      time.Duration
	SaveErrorScreenshots bool
	AllowHumanSolve      bool
	AbortOnRepeatBlock   bool
	SolveWait            time.Duration
	SolvePollInterval    time.Duration
	ArtifactDir          string
	CookieDir            string
}

type LoggingConfig struct {
	Enabled bool
	Level   string
	Format  string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:        getEnvOrDefault("DB_HOST", "localhost"),
			Port:        getIntOrDefault("DB_PORT", 5432),
			User:        getEnvOrDefault("DB_USER", "postgres"),
			Password:    getEnvOrDefault("DB_PASSWORD", ""),
			Name:        getEnvOrDefault("DB_NAME", "catalog_scraper"),
			SSLMode:     getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns:    int32(getIntOrDefault("DB_MAX_CONNS", 10)),
			MinConns:    int32(getIntOrDefault("DB_MIN_CONNS", 2)),
			MaxConnLife: getDurationOrDefault("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdle: getDurationOrDefault("DB_MAX_CONN_IDLE", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:catalog_events"),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			SlowMo:         getDurationOrDefault("BROWSER_SLOW_MO", 0),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", defaultUserAgent),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "uk-UA,uk;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Kyiv"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "uk-UA"),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Scraper: ScraperConfig{
			PreRequestMin:        getDurationOrDefault("SCRAPER_PRE_REQUEST_MIN", 5*time.Second),
			PreRequestMax:        getDurationOrDefault("SCRAPER_PRE_REQUEST_MAX", 10*time.Second),
			InterRequestMin:      getDurationOrDefault("SCRAPER_INTER_REQUEST_MIN", 15*time.Second),
			InterRequestMax:      getDurationOrDefault("SCRAPER_INTER_REQUEST_MAX", 25*time.Second),
			SaveErrorScreenshots: getBoolOrDefault("SCRAPER_SAVE_ERROR_SCREENSHOTS", false),
			AllowHumanSolve:      getBoolOrDefault("SCRAPER_ALLOW_HUMAN_SOLVE", false),
			AbortOnRepeatBlock:   getBoolOrDefault("SCRAPER_ABORT_ON_REPEAT_BLOCK", true),
			SolveWait:            getDurationOrDefault("SCRAPER_SOLVE_WAIT", 3*time.Minute),
			SolvePollInterval:    getDurationOrDefault("SCRAPER_SOLVE_POLL_INTERVAL", 5*time.Second),
			ArtifactDir:          getEnvOrDefault("SCRAPER_ARTIFACT_DIR", "artifacts"),
			CookieDir:            getEnvOrDefault("SCRAPER_COOKIE_DIR", "cookies"),
		},
		Logging: LoggingConfig{
			Enabled: getBoolOrDefault("LOG_ENABLED", true),
			Level:   getEnvOrDefault("LOG_LEVEL", "info"),
			Format:  getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.PreRequestMin > c.Scraper.PreRequestMax {
		return fmt.Errorf("SCRAPER_PRE_REQUEST_MIN cannot be greater than SCRAPER_PRE_REQUEST_MAX")
	}

	if c.Scraper.InterRequestMin > c.Scraper.InterRequestMax {
		return fmt.Errorf("SCRAPER_INTER_REQUEST_MIN cannot be greater than SCRAPER_INTER_REQUEST_MAX")
	}

	if c.Scraper.SolvePollInterval <= 0 {
		return fmt.Errorf("SCRAPER_SOLVE_POLL_INTERVAL must be positive")
	}

	if c.Scraper.SolveWait <= 0 {
		return fmt.Errorf("SCRAPER_SOLVE_WAIT must be positive")
	}

	if c.Database.MaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1")
	}

	if c.Browser.Timeout <= 0 {
		return fmt.Errorf("BROWSER_TIMEOUT must be positive")
	}

	return nil
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
