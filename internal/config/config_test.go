package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "**/*.sql", cfg.SQLGlob)
	assert.Equal(t, 0.55, cfg.Correlation.Thresholds.CorrelateMin)
	assert.Equal(t, 0.80, cfg.Correlation.Thresholds.BlockMin)
	assert.Equal(t, 3, cfg.Correlation.Limits.TopKPerSource)
	assert.Equal(t, 100, cfg.Correlation.Limits.MaxPairsHighCost)
	require.NoError(t, cfg.Validate())
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "driftgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
openapi_path: api/openapi.yaml
cost_threshold: 500
correlation:
  thresholds:
    correlate_min: 0.6
  rules:
    - type: depends_on
      source: config/app.yaml
      target: users
      reason: schema read at boot
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "api/openapi.yaml", cfg.OpenAPIPath)
	assert.Equal(t, 500.0, cfg.CostThreshold)
	assert.Equal(t, 0.6, cfg.Correlation.Thresholds.CorrelateMin)
	assert.Equal(t, 0.80, cfg.Correlation.Thresholds.BlockMin, "unset keys keep defaults")
	require.Len(t, cfg.Correlation.Rules, 1)
	assert.Equal(t, "depends_on", cfg.Correlation.Rules[0].Type)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"correlate above block", func(c *Config) {
			c.Correlation.Thresholds.CorrelateMin = 0.9
			c.Correlation.Thresholds.BlockMin = 0.8
		}, false},
		{"threshold out of range", func(c *Config) { c.Correlation.Thresholds.BlockMin = 1.5 }, false},
		{"zero fanout", func(c *Config) { c.Fetch.Fanout = 0 }, false},
		{"bad strategy budget", func(c *Config) {
			c.Correlation.Strategies = map[string]StrategyConfig{"entity": {Budget: "extreme"}}
		}, false},
		{"negative weight", func(c *Config) {
			c.Correlation.Strategies = map[string]StrategyConfig{"entity": {Weight: -1}}
		}, false},
		{"rule without target", func(c *Config) {
			c.Correlation.Rules = []Rule{{Type: "ignore", Source: "x"}}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestStrategyConfigIsEnabled(t *testing.T) {
	off := false
	on := true
	assert.True(t, StrategyConfig{}.IsEnabled(true))
	assert.False(t, StrategyConfig{}.IsEnabled(false))
	assert.False(t, StrategyConfig{Enabled: &off}.IsEnabled(true))
	assert.True(t, StrategyConfig{Enabled: &on}.IsEnabled(false))
}
