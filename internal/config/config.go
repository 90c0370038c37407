// Package config loads the scanner's environment-driven configuration,
// mirroring the teacher's env-first loading style (cmd/pulse/main.go,
// config.go) but scoped to the scanning control plane: DB path, provider
// selection, tier table, threshold defaults, and scheduler tuning.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// TierFlags are the per-tier feature gates from spec §6.
type TierFlags struct {
	ReverseImageIntervalHours float64
	ReverseImageMaxPhotos     int
	CrawlPrimaryOnly          bool
	CaptureEvidence           bool
	AIDetection               bool
	GenerateTakedown          bool
	URLCheck                  bool
	NotifyOnMatch             bool
	StoreMatch                bool
	PlatformCrawlMatching     bool
	ShowFullDetails           bool
	MaxKnownAccounts          int
	PriorityScanning          bool
}

// TierTable maps a tier name to its flags. Unknown tiers fall back to free
// (models.Tier.Normalize handles that before lookup).
type TierTable map[string]TierFlags

// DefaultTierTable is the spec §6 tier matrix.
func DefaultTierTable() TierTable {
	return TierTable{
		"free": {
			ReverseImageIntervalHours: 168,
			ReverseImageMaxPhotos:     3,
			CrawlPrimaryOnly:          true,
			CaptureEvidence:           false,
			AIDetection:               false,
			GenerateTakedown:          false,
			URLCheck:                  false,
			NotifyOnMatch:             true,
			StoreMatch:                true,
			PlatformCrawlMatching:     true,
			ShowFullDetails:           false,
			MaxKnownAccounts:          3,
			PriorityScanning:          false,
		},
		"protected": {
			ReverseImageIntervalHours: 24,
			ReverseImageMaxPhotos:     10,
			CrawlPrimaryOnly:          false,
			CaptureEvidence:           true,
			AIDetection:               true,
			GenerateTakedown:          true,
			URLCheck:                  true,
			NotifyOnMatch:             true,
			StoreMatch:                true,
			PlatformCrawlMatching:     true,
			ShowFullDetails:           true,
			MaxKnownAccounts:          10,
			PriorityScanning:          false,
		},
		"premium": {
			ReverseImageIntervalHours: 6,
			ReverseImageMaxPhotos:     25,
			CrawlPrimaryOnly:          false,
			CaptureEvidence:           true,
			AIDetection:               true,
			GenerateTakedown:          true,
			URLCheck:                  true,
			NotifyOnMatch:             true,
			StoreMatch:                true,
			PlatformCrawlMatching:     true,
			ShowFullDetails:           true,
			MaxKnownAccounts:          25,
			PriorityScanning:          true,
		},
	}
}

// Lookup returns the flags for a tier, normalizing unknown tiers to free.
func (t TierTable) Lookup(tier string) TierFlags {
	if flags, ok := t[tier]; ok {
		return flags
	}
	return t["free"]
}

// Thresholds are the confidence-tier boundaries applied to raw cosine
// similarity. Invariant: Low <= Medium <= High, Low >= 0.
type Thresholds struct {
	Low    float32
	Medium float32
	High   float32
}

// DefaultThresholds are the spec §6 static defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 0.50, Medium: 0.65, High: 0.85}
}

// Valid reports whether the threshold set satisfies the invariant in spec §6.
func (t Thresholds) Valid() bool {
	return t.Low >= 0 && t.Low <= t.Medium && t.Medium <= t.High
}

// SchedulerConfig tunes the tick loop's cadence and concurrency caps.
type SchedulerConfig struct {
	TickInterval          time.Duration
	StaleJobMaxAge        time.Duration
	ShutdownGrace         time.Duration
	DueJobsLimitPerKind   int
	ConcurrencyPerKind    map[string]int
}

// DefaultSchedulerConfig matches spec §4.F/§4.G defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TickInterval:        5 * time.Second,
		StaleJobMaxAge:      30 * time.Minute,
		ShutdownGrace:       15 * time.Second,
		DueJobsLimitPerKind: 20,
		ConcurrencyPerKind: map[string]int{
			"contributor_scan": 4,
			"platform_crawl":   2,
			"cleanup":          1,
			"mapper":           2,
			"scout":            2,
			"analyzer":         1,
		},
	}
}

// ObserverConfig tunes the feedback-signal buffer (spec §4.H).
type ObserverConfig struct {
	FlushThreshold int
	FlushInterval  time.Duration
	MaxBufferSize  int
}

// DefaultObserverConfig matches spec §4.H constants.
func DefaultObserverConfig() ObserverConfig {
	return ObserverConfig{FlushThreshold: 50, FlushInterval: 30 * time.Second, MaxBufferSize: 500}
}

// RetentionConfig tunes the cleanup job's per-class age thresholds (spec §4.I).
type RetentionConfig struct {
	NoFaceImages       time.Duration
	NoMatchImages      time.Duration
	FaceEmbeddings     time.Duration
	TerminalScanJobs   time.Duration
	ReadNotifications  time.Duration
	ScratchTempFiles   time.Duration
}

// DefaultRetentionConfig matches the spec §4.I table.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		NoFaceImages:      7 * 24 * time.Hour,
		NoMatchImages:     30 * 24 * time.Hour,
		FaceEmbeddings:    60 * 24 * time.Hour,
		TerminalScanJobs:  30 * 24 * time.Hour,
		ReadNotifications: 90 * 24 * time.Hour,
		ScratchTempFiles:  24 * time.Hour,
	}
}

// IngestConfig tunes the download/detect ingestion stage (spec §4.D).
type IngestConfig struct {
	MaxDownloadBytes int64
	DownloadTimeout  time.Duration
	ScratchDir       string
}

// DefaultIngestConfig matches spec §4.D constants.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		MaxDownloadBytes: 20 << 20,
		DownloadTimeout:  30 * time.Second,
		ScratchDir:       os.TempDir(),
	}
}

// Config is the scanner's full runtime configuration.
type Config struct {
	DataDir            string
	DatabasePath       string
	MetricsAddr        string
	HealthAddr         string
	AdminAddr          string
	LogLevel           string
	LogFormat          string
	FaceDetectionProvider string
	AIDetectionProvider   string
	MatchScoringProvider  string
	MLThresholdRefreshEvery int

	InsightFaceEndpoint string
	HiveAPIKey          string
	TineyeAPIBase       string
	TineyeAPIKey        string

	Platforms             []PlatformConfig
	LinkHarvestPatterns   []string

	Tiers       TierTable
	Thresholds  Thresholds
	Scheduler   SchedulerConfig
	Observer    ObserverConfig
	Retention   RetentionConfig
	Ingest      IngestConfig
}

// PlatformConfig describes one platform crawl source: its public
// gallery/search API base and the tags to paginate through.
type PlatformConfig struct {
	Name    string
	APIBase string
	Tags    []string
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getenvCSV(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadPlatforms reads SCANNER_PLATFORMS (a CSV of platform names) and, per
// platform, SCANNER_PLATFORM_<NAME>_API_BASE and
// SCANNER_PLATFORM_<NAME>_TAGS — mirrors the original's per-source crawl
// config (discovery/platform_crawl.py, deviantart_crawl.py) but collapsed
// to one generic env-driven shape instead of one module per platform.
func loadPlatforms() []PlatformConfig {
	names := getenvCSV("SCANNER_PLATFORMS")
	out := make([]PlatformConfig, 0, len(names))
	for _, name := range names {
		upper := strings.ToUpper(name)
		out = append(out, PlatformConfig{
			Name:    name,
			APIBase: getenvDefault("SCANNER_PLATFORM_"+upper+"_API_BASE", ""),
			Tags:    getenvCSV("SCANNER_PLATFORM_" + upper + "_TAGS"),
		})
	}
	return out
}

// Load reads configuration from the environment, optionally overlaying a
// .env file (SCANNER_ENV_FILE, default ./.env if present) — mirrors the
// teacher's godotenv-backed env loading.
func Load() (*Config, error) {
	envFile := getenvDefault("SCANNER_ENV_FILE", ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("config.Load: load env file %s: %w", envFile, err)
		}
	}

	dataDir := getenvDefault("SCANNER_DATA_DIR", "/var/lib/scanner")

	thresholds := Thresholds{
		Low:    float32(getenvFloat("SCANNER_THRESHOLD_LOW", 0.50)),
		Medium: float32(getenvFloat("SCANNER_THRESHOLD_MEDIUM", 0.65)),
		High:   float32(getenvFloat("SCANNER_THRESHOLD_HIGH", 0.85)),
	}
	if !thresholds.Valid() {
		return nil, fmt.Errorf("config.Load: invalid threshold set %+v: require 0 <= low <= medium <= high", thresholds)
	}

	sched := DefaultSchedulerConfig()
	sched.TickInterval = getenvDuration("SCANNER_TICK_INTERVAL", sched.TickInterval)
	sched.StaleJobMaxAge = getenvDuration("SCANNER_STALE_JOB_MAX_AGE", sched.StaleJobMaxAge)
	sched.ShutdownGrace = getenvDuration("SCANNER_SHUTDOWN_GRACE", sched.ShutdownGrace)

	ingest := DefaultIngestConfig()
	ingest.MaxDownloadBytes = int64(getenvInt("SCANNER_MAX_DOWNLOAD_BYTES", int(ingest.MaxDownloadBytes)))
	ingest.DownloadTimeout = getenvDuration("SCANNER_DOWNLOAD_TIMEOUT", ingest.DownloadTimeout)

	cfg := &Config{
		DataDir:                 dataDir,
		DatabasePath:            getenvDefault("SCANNER_DB_PATH", dataDir+"/scanner.db"),
		MetricsAddr:             getenvDefault("SCANNER_METRICS_ADDR", ":9090"),
		HealthAddr:              getenvDefault("SCANNER_HEALTH_ADDR", ":8080"),
		AdminAddr:               getenvDefault("SCANNER_ADMIN_ADDR", ":8081"),
		LogLevel:                strings.ToLower(getenvDefault("SCANNER_LOG_LEVEL", "info")),
		LogFormat:               strings.ToLower(getenvDefault("SCANNER_LOG_FORMAT", "console")),
		FaceDetectionProvider:   getenvDefault("SCANNER_FACE_DETECTION_PROVIDER", "insightface"),
		AIDetectionProvider:     getenvDefault("SCANNER_AI_DETECTION_PROVIDER", "hive"),
		MatchScoringProvider:    getenvDefault("SCANNER_MATCH_SCORING_PROVIDER", "static"),
		MLThresholdRefreshEvery: getenvInt("SCANNER_ML_REFRESH_EVERY", 100),
		InsightFaceEndpoint:     getenvDefault("SCANNER_INSIGHTFACE_ENDPOINT", "http://localhost:8500/detect"),
		HiveAPIKey:              os.Getenv("SCANNER_HIVE_API_KEY"),
		TineyeAPIBase:           getenvDefault("SCANNER_TINEYE_API_BASE", "https://api.tineye.com"),
		TineyeAPIKey:            os.Getenv("SCANNER_TINEYE_API_KEY"),
		Platforms:               loadPlatforms(),
		LinkHarvestPatterns:     getenvCSV("SCANNER_LINK_HARVEST_PATTERNS"),
		Tiers:                   DefaultTierTable(),
		Thresholds:              thresholds,
		Scheduler:               sched,
		Observer:                DefaultObserverConfig(),
		Retention:               DefaultRetentionConfig(),
		Ingest:                  ingest,
	}

	return cfg, nil
}
