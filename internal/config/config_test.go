package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv removes every SCANNER_ env var this package reads, so tests
// don't leak state between runs or pick up the host environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SCANNER_ENV_FILE", "SCANNER_DATA_DIR", "SCANNER_DB_PATH", "SCANNER_METRICS_ADDR",
		"SCANNER_HEALTH_ADDR", "SCANNER_ADMIN_ADDR", "SCANNER_LOG_LEVEL", "SCANNER_LOG_FORMAT",
		"SCANNER_FACE_DETECTION_PROVIDER", "SCANNER_AI_DETECTION_PROVIDER", "SCANNER_MATCH_SCORING_PROVIDER",
		"SCANNER_ML_REFRESH_EVERY", "SCANNER_INSIGHTFACE_ENDPOINT", "SCANNER_HIVE_API_KEY",
		"SCANNER_TINEYE_API_BASE", "SCANNER_TINEYE_API_KEY", "SCANNER_PLATFORMS",
		"SCANNER_LINK_HARVEST_PATTERNS", "SCANNER_THRESHOLD_LOW", "SCANNER_THRESHOLD_MEDIUM",
		"SCANNER_THRESHOLD_HIGH", "SCANNER_TICK_INTERVAL", "SCANNER_STALE_JOB_MAX_AGE",
		"SCANNER_SHUTDOWN_GRACE", "SCANNER_MAX_DOWNLOAD_BYTES", "SCANNER_DOWNLOAD_TIMEOUT",
	} {
		t.Setenv(k, "")
	}
	// An empty SCANNER_ENV_FILE makes getenvDefault fall back to ./.env,
	// so point it at a path that does not exist (os.Stat fails harmlessly)
	// — avoids tests picking up a developer's local .env file.
	t.Setenv("SCANNER_ENV_FILE", "/nonexistent-scanner-env-file")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/scanner", cfg.DataDir)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, ":8080", cfg.HealthAddr)
	assert.Equal(t, ":8081", cfg.AdminAddr)
	assert.Equal(t, "insightface", cfg.FaceDetectionProvider)
	assert.Equal(t, "hive", cfg.AIDetectionProvider)
	assert.Equal(t, "static", cfg.MatchScoringProvider)
	assert.Equal(t, DefaultThresholds(), cfg.Thresholds)
	assert.Empty(t, cfg.Platforms)
}

func TestLoad_RejectsInvalidThresholdOrdering(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCANNER_THRESHOLD_LOW", "0.9")
	t.Setenv("SCANNER_THRESHOLD_MEDIUM", "0.5")
	t.Setenv("SCANNER_THRESHOLD_HIGH", "0.95")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_PlatformsFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCANNER_PLATFORMS", "civitai, deviantart")
	t.Setenv("SCANNER_PLATFORM_CIVITAI_API_BASE", "https://civitai.com/api/v1")
	t.Setenv("SCANNER_PLATFORM_CIVITAI_TAGS", "nsfw,portrait")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Platforms, 2)

	assert.Equal(t, "civitai", cfg.Platforms[0].Name)
	assert.Equal(t, "https://civitai.com/api/v1", cfg.Platforms[0].APIBase)
	assert.Equal(t, []string{"nsfw", "portrait"}, cfg.Platforms[0].Tags)

	assert.Equal(t, "deviantart", cfg.Platforms[1].Name)
	assert.Empty(t, cfg.Platforms[1].APIBase)
}

func TestGetenvCSV_TrimsAndDropsEmpties(t *testing.T) {
	t.Setenv("SCANNER_TEST_CSV", " a , , b,c ")
	assert.Equal(t, []string{"a", "b", "c"}, getenvCSV("SCANNER_TEST_CSV"))
}

func TestGetenvCSV_UnsetReturnsNil(t *testing.T) {
	t.Setenv("SCANNER_TEST_CSV_UNSET", "")
	assert.Nil(t, getenvCSV("SCANNER_TEST_CSV_UNSET"))
}

func TestTierTable_LookupFallsBackToFree(t *testing.T) {
	table := DefaultTierTable()
	assert.Equal(t, table["free"], table.Lookup("nonexistent-tier"))
	assert.Equal(t, table["premium"], table.Lookup("premium"))
}

func TestThresholds_Valid(t *testing.T) {
	assert.True(t, Thresholds{Low: 0.5, Medium: 0.6, High: 0.9}.Valid())
	assert.False(t, Thresholds{Low: 0.6, Medium: 0.5, High: 0.9}.Valid())
	assert.False(t, Thresholds{Low: -0.1, Medium: 0.5, High: 0.9}.Valid())
}
