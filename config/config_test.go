package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"whoami/game"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T) (*pflag.FlagSet, *Config) {
	t.Helper()
	cfg := &Config{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, cfg)
	return fs, cfg
}

func TestDefaults(t *testing.T) {
	fs, cfg := newFlags(t)
	require.NoError(t, fs.Parse(nil))
	require.NoError(t, Resolve(fs, ""))

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, StoreMemory, cfg.CharacterStore)
	assert.Equal(t, StoreMemory, cfg.SessionStore)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, game.DefaultRules, cfg.Rules())
	assert.Equal(t, game.DefaultTolerance, cfg.Tolerance())
	assert.True(t, cfg.RevealAnswerOnMiss)
}

func TestResolve_EnvironmentFillsUnsetFlags(t *testing.T) {
	t.Setenv("WHOAMI_PORT", "9090")
	t.Setenv("WHOAMI_SESSION_STORE", "redis")
	t.Setenv("WHOAMI_ROUND_DURATION", "45s")
	t.Setenv("WHOAMI_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("WHOAMI_DB_HOST", "from-env")

	fs, cfg := newFlags(t)
	require.NoError(t, fs.Parse([]string{"--db-host", "from-flag"}))
	require.NoError(t, Resolve(fs, ""))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, StoreRedis, cfg.SessionStore)
	assert.Equal(t, 45*time.Second, cfg.RoundDuration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "from-flag", cfg.DBHost)
}

func TestResolve_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whoami.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scoring-policy: hints\nmax-strikes: 5\n"), 0o644))

	fs, cfg := newFlags(t)
	require.NoError(t, fs.Parse(nil))
	require.NoError(t, Resolve(fs, path))

	assert.Equal(t, "hints", cfg.ScoringPolicy)
	assert.Equal(t, 5, cfg.MaxStrikes)

	assert.Error(t, Resolve(fs, filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestResolve_InvalidEnvironmentValue(t *testing.T) {
	t.Setenv("WHOAMI_MAX_STRIKES", "many")

	fs, _ := newFlags(t)
	require.NoError(t, fs.Parse(nil))
	assert.Error(t, Resolve(fs, ""))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port out of range", func(c *Config) { c.Port = 70000 }},
		{"unknown store", func(c *Config) { c.CharacterStore = "sqlite" }},
		{"unknown session store", func(c *Config) { c.SessionStore = "postgres" }},
		{"unknown scoring policy", func(c *Config) { c.ScoringPolicy = "random" }},
		{"zero round", func(c *Config) { c.RoundDuration = 0 }},
		{"slack longer than round", func(c *Config) { c.ReadingSlack = c.RoundDuration }},
		{"no strikes", func(c *Config) { c.MaxStrikes = 0 }},
		{"no difficulty tiers", func(c *Config) { c.MaxDifficulty = 0 }},
		{"no exclusion window", func(c *Config) { c.ExclusionWindow = 0 }},
		{"negative match distance", func(c *Config) { c.ShortDistance = -1 }},
		{"ttl shorter than round", func(c *Config) { c.SessionTTL = time.Second }},
		{"empty share secret", func(c *Config) { c.ShareSecret = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, cfg := newFlags(t)
			require.NoError(t, fs.Parse(nil))
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
