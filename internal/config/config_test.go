package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Scraper.PreRequestMin)
	assert.Equal(t, 10*time.Second, cfg.Scraper.PreRequestMax)
	assert.Equal(t, 15*time.Second, cfg.Scraper.InterRequestMin)
	assert.Equal(t, 25*time.Second, cfg.Scraper.InterRequestMax)
	assert.True(t, cfg.Browser.Headless)
	assert.True(t, cfg.Scraper.AbortOnRepeatBlock)
	assert.False(t, cfg.Scraper.AllowHumanSolve)
	assert.True(t, cfg.Logging.Enabled)
	assert.Equal(t, "stream:catalog_events", cfg.Redis.Stream)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("BROWSER_SLOW_MO", "250ms")
	t.Setenv("SCRAPER_ALLOW_HUMAN_SOLVE", "true")
	t.Setenv("SCRAPER_PRE_REQUEST_MIN", "1s")
	t.Setenv("SCRAPER_PRE_REQUEST_MAX", "2s")
	t.Setenv("DB_NAME", "catalog_test")
	t.Setenv("LOG_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 250*time.Millisecond, cfg.Browser.SlowMo)
	assert.True(t, cfg.Scraper.AllowHumanSolve)
	assert.Equal(t, time.Second, cfg.Scraper.PreRequestMin)
	assert.Equal(t, 2*time.Second, cfg.Scraper.PreRequestMax)
	assert.Equal(t, "catalog_test", cfg.Database.Name)
	assert.False(t, cfg.Logging.Enabled)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("BROWSER_HEADLESS", "not-a-bool")
	t.Setenv("DB_PORT", "not-a-number")
	t.Setenv("SCRAPER_SOLVE_WAIT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 3*time.Minute, cfg.Scraper.SolveWait)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "pre-request range inverted",
			mutate:  func(c *Config) { c.Scraper.PreRequestMin = 20 * time.Second },
			wantErr: "SCRAPER_PRE_REQUEST_MIN",
		},
		{
			name:    "inter-request range inverted",
			mutate:  func(c *Config) { c.Scraper.InterRequestMax = time.Second },
			wantErr: "SCRAPER_INTER_REQUEST_MIN",
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Scraper.SolvePollInterval = 0 },
			wantErr: "SCRAPER_SOLVE_POLL_INTERVAL",
		},
		{
			name:    "zero solve wait",
			mutate:  func(c *Config) { c.Scraper.SolveWait = 0 },
			wantErr: "SCRAPER_SOLVE_WAIT",
		},
		{
			name:    "no database connections",
			mutate:  func(c *Config) { c.Database.MaxConns = 0 },
			wantErr: "DB_MAX_CONNS",
		},
		{
			name:    "zero browser timeout",
			mutate:  func(c *Config) { c.Browser.Timeout = 0 },
			wantErr: "BROWSER_TIMEOUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
