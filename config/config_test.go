package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growth-screener/internal/analysis"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Engines.MonteCarlo.PathCount)
	assert.Equal(t, int64(42), cfg.Engines.MonteCarlo.Seed)
	assert.Equal(t, 0.10, cfg.Engines.DCF.DiscountRate)
	assert.Equal(t, 5, cfg.Engines.Patterns.Window)
	assert.False(t, cfg.Database.Enabled)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
server:
  port: 9090
engines:
  monte_carlo:
    path_count: 250
    percentiles: [10, 50, 90]
  dcf:
    discount_rate: 0.12
  levels:
    source: high_low
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 250, cfg.Engines.MonteCarlo.PathCount)
	assert.Equal(t, 30, cfg.Engines.MonteCarlo.HorizonDays, "unset fields keep defaults")
	assert.Equal(t, []float64{10, 50, 90}, cfg.Engines.MonteCarlo.Percentiles)
	assert.Equal(t, 0.12, cfg.Engines.DCF.DiscountRate)
	assert.Equal(t, 0.025, cfg.Engines.DCF.TerminalGrowthRate)
	assert.Equal(t, analysis.SourceHighLow, cfg.Engines.Levels.Source)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "server:\n  port: 9090\n")
	t.Setenv("WEB_PORT", "7070")
	t.Setenv("MC_SEED", "7")
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("LOG_JSON", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, int64(7), cfg.Engines.MonteCarlo.Seed)
	assert.True(t, cfg.Database.Enabled)
	assert.False(t, cfg.Logging.JSONFormat)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "server: [unclosed"},
		{"port out of range", "server:\n  port: 70000\n"},
		{"zero paths", "engines:\n  monte_carlo:\n    path_count: 0\n"},
		{"paths above limit", "engines:\n  monte_carlo:\n    path_count: 500\n    max_path_count: 100\n"},
		{"discount below terminal growth", "engines:\n  dcf:\n    discount_rate: 0.02\n"},
		{"inverted rsi band", "engines:\n  checklist:\n    rsi_floor: 80\n"},
		{"tiny pattern window", "engines:\n  patterns:\n    window: 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestEngines_Apply(t *testing.T) {
	base := DefaultEngines()
	paths := 50
	rate := 0.08
	source := analysis.SourceHighLow

	got := base.Apply(&EngineOverrides{
		MonteCarlo: &MonteCarloOverrides{PathCount: &paths},
		DCF:        &DCFOverrides{DiscountRate: &rate, GrowthRate: &rate},
		Levels:     &LevelOverrides{Source: &source},
	})

	assert.Equal(t, 50, got.MonteCarlo.PathCount)
	assert.Equal(t, base.MonteCarlo.HorizonDays, got.MonteCarlo.HorizonDays)
	assert.Equal(t, 0.08, got.DCF.DiscountRate)
	require.NotNil(t, got.DCF.GrowthRate)
	assert.Equal(t, 0.08, *got.DCF.GrowthRate)
	assert.Equal(t, analysis.SourceHighLow, got.Levels.Source)

	// the receiver is not modified
	assert.Equal(t, 1000, base.MonteCarlo.PathCount)
	assert.Nil(t, base.DCF.GrowthRate)

	assert.Equal(t, base, base.Apply(nil))
}
