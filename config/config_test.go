package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dvf-analyzer/models"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "https://api.cquest.org/dvf", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, "Appartement", cfg.API.PropertyType)
	assert.Equal(t, 100, cfg.Analysis.MaxResults)
	assert.Equal(t, []float64{5, 6, 7}, cfg.Analysis.YieldRates)
	assert.Equal(t, "quartile", cfg.Analysis.OutlierPolicy)
	assert.Equal(t, "inclusive", cfg.Analysis.QuartileMethod)
	assert.Equal(t, 5, cfg.Analysis.ExamplesLimit)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ANALYSIS_MAX_RESULTS", "30")
	t.Setenv("ANALYSIS_YIELD_RATES", "4,4.5")
	t.Setenv("ANALYSIS_OUTLIER_POLICY", "trim")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("STORE_DRIVER", "postgres")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Analysis.MaxResults)
	assert.Equal(t, []float64{4, 4.5}, cfg.Analysis.YieldRates)
	assert.Equal(t, "trim", cfg.Analysis.OutlierPolicy)
	assert.Contains(t, cfg.DSN(), "host=db")
	assert.Contains(t, cfg.DSN(), "dbname=dvf_db")
}

func TestFromEnvRejectsInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"STORE_DRIVER", "mysql"},
		{"ANALYSIS_OUTLIER_POLICY", "zscore"},
		{"ANALYSIS_QUARTILE_METHOD", "nearest"},
		{"ANALYSIS_MAX_RESULTS", "0"},
		{"ANALYSIS_YIELD_RATES", "5,-1"},
		{"LOG_LEVEL", "trace"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	t.Setenv("STORE_SQLITE_PATH", "/tmp/x.db")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.DSN())
}

func TestAnalyzerOptions(t *testing.T) {
	t.Setenv("ANALYSIS_OUTLIER_POLICY", "trim")
	t.Setenv("ANALYSIS_EXAMPLES_LIMIT", "3")
	cfg, err := FromEnv()
	require.NoError(t, err)

	opts, err := cfg.AnalyzerOptions()
	require.NoError(t, err)
	assert.Equal(t, models.PolicyTrim, opts.Outliers.Policy)
	assert.Equal(t, models.QuartileInclusive, opts.Outliers.Method)
	assert.Equal(t, 3, opts.ExamplesLimit)
	assert.Equal(t, []float64{5, 6, 7}, opts.YieldRates)
}

func TestProfileOverridesAnalysis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_results: 50\nyield_rates: [4.5, 5.5]\nquartile_method: exclusive\n"), 0o644))
	t.Setenv("ANALYSIS_PROFILE", path)
	t.Setenv("ANALYSIS_OUTLIER_POLICY", "trim")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Analysis.MaxResults)
	assert.Equal(t, []float64{4.5, 5.5}, cfg.Analysis.YieldRates)
	assert.Equal(t, "exclusive", cfg.Analysis.QuartileMethod)
	assert.Equal(t, "trim", cfg.Analysis.OutlierPolicy, "unset profile fields keep the env value")
	assert.Equal(t, 5, cfg.Analysis.ExamplesLimit)
}

func TestProfileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("outlier_policy: median\n"), 0o644))
	t.Setenv("ANALYSIS_PROFILE", path)

	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("ANALYSIS_PROFILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = FromEnv()
	assert.Error(t, err)
}
