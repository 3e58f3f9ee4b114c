package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Host string
	Port string

	// Database settings
	DatabasePath string

	// Logging settings
	LogLevel  string
	LogFormat string
	LogFile   string

	// Cache settings
	CacheSize int
	CacheTTL  time.Duration

	// Browser settings
	HeadlessMode     bool
	UserAgent        string
	BrowserPath      string
	BrowserRemoteURL string

	// Pipeline settings
	SiteProfilePath    string
	NavigationTimeout  time.Duration
	SelectorTimeout    time.Duration
	CaptchaMaxAttempts int
	FormMinFilled      int
	DetailRowDelay     time.Duration
	MinWalkBudget      time.Duration

	// Batch settings
	QueryDelay       time.Duration
	RunDeadline      time.Duration
	BatchParallelism int
	BatchSchedule    string
	BatchFile        string

	// Captcha services
	TwoCaptchaKey  string
	AntiCaptchaKey string
	CaptchaDir     string

	// Documents
	DocumentDir string

	// Profile is the parsed site profile, filled by Load.
	Profile *SiteProfile
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not an error if .env doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Host:             getEnv("HOST", "0.0.0.0"),
		Port:             getEnv("PORT", "8080"),
		DatabasePath:     getEnv("DATABASE_PATH", "./data/court_cases.db"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		LogFile:          getEnv("LOG_FILE", ""),
		UserAgent:        getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
		BrowserPath:      getEnv("ROD_BROWSER_PATH", ""),
		BrowserRemoteURL: getEnv("BROWSER_REMOTE_URL", ""),
		SiteProfilePath:  getEnv("SITE_PROFILE", ""),
		BatchSchedule:    getEnv("BATCH_SCHEDULE", ""),
		BatchFile:        getEnv("BATCH_FILE", "./data/batch.yaml"),
		TwoCaptchaKey:    getEnv("TWOCAPTCHA_API_KEY", ""),
		AntiCaptchaKey:   getEnv("ANTICAPTCHA_API_KEY", ""),
		CaptchaDir:       getEnv("CAPTCHA_DIR", ""),
		DocumentDir:      getEnv("DOCUMENT_DIR", "./data/documents"),
	}

	cfg.HeadlessMode = getEnv("HEADLESS_MODE", "true") == "true"

	var err error
	if cfg.CacheSize, err = getInt("CACHE_SIZE", "1000"); err != nil {
		return nil, err
	}
	if cfg.CaptchaMaxAttempts, err = getInt("CAPTCHA_MAX_ATTEMPTS", "4"); err != nil {
		return nil, err
	}
	if cfg.FormMinFilled, err = getInt("FORM_MIN_FILLED", "3"); err != nil {
		return nil, err
	}
	if cfg.BatchParallelism, err = getInt("BATCH_PARALLELISM", "1"); err != nil {
		return nil, err
	}

	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"CACHE_TTL", "30m", &cfg.CacheTTL},
		{"NAVIGATION_TIMEOUT", "60s", &cfg.NavigationTimeout},
		{"SELECTOR_TIMEOUT", "10s", &cfg.SelectorTimeout},
		{"DETAIL_ROW_DELAY", "1s", &cfg.DetailRowDelay},
		{"MIN_WALK_BUDGET", "20s", &cfg.MinWalkBudget},
		{"QUERY_DELAY", "2s", &cfg.QueryDelay},
		{"RUN_DEADLINE", "9m", &cfg.RunDeadline},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dest = v
	}

	if cfg.CaptchaMaxAttempts < 1 {
		return nil, fmt.Errorf("invalid CAPTCHA_MAX_ATTEMPTS: must be at least 1")
	}
	if cfg.BatchParallelism < 1 {
		cfg.BatchParallelism = 1
	}

	cfg.Profile, err = LoadProfile(cfg.SiteProfilePath)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key, defaultValue string) (int, error) {
	v, err := strconv.Atoi(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
