package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	CronSpec string

	BasicAuthUser string
	BasicAuthPass string

	// Search API endpoints. Keys are source-specific: the breaking source takes
	// the key as a query param, the analysis source as a request header.
	BreakingAPIURL string
	BreakingAPIKey string
	AnalysisAPIURL string
	AnalysisAPIKey string

	// Monthly call caps per search source; daily allowances are derived from these.
	BreakingMonthlyLimit int
	AnalysisMonthlyLimit int

	// RSS outlet feeds, comma separated.
	FeedURLs []string

	// Home-market region offset from UTC in hours. Drives the time-of-day query
	// tiers and the freshness window of the breaking source.
	RegionUTCOffset int

	RetentionDays int
	DedupLookback time.Duration
	MaxPerRun     int
	FetchDelay    time.Duration
	FetchTimeout  time.Duration
	RunDeadline   time.Duration
}

func Load() *Config {
	cfg := &Config{
		AppPort:     getEnv("APP_PORT", "9000"),
		PostgresDSN: getEnv("POSTGRES_DSN", "host=localhost user=newswire password=newswire dbname=newswire port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6380"),
		CronSpec:    getEnv("CRON_SPEC", "*/30 * * * *"),

		BasicAuthUser: getEnv("APP_BASIC_USER", ""),
		BasicAuthPass: getEnv("APP_BASIC_PASS", ""),

		BreakingAPIURL: getEnv("BREAKING_API_URL", "https://gnews.io/api/v4/search"),
		BreakingAPIKey: getEnv("BREAKING_API_KEY", ""),
		AnalysisAPIURL: getEnv("ANALYSIS_API_URL", "https://newsapi.org/v2/everything"),
		AnalysisAPIKey: getEnv("ANALYSIS_API_KEY", ""),

		BreakingMonthlyLimit: getIntEnv("BREAKING_MONTHLY_LIMIT", 2000),
		AnalysisMonthlyLimit: getIntEnv("ANALYSIS_MONTHLY_LIMIT", 1500),

		FeedURLs: getListEnv("FEED_URLS", defaultFeeds),

		RegionUTCOffset: getIntEnv("REGION_UTC_OFFSET", 0),

		RetentionDays: getIntEnv("RETENTION_DAYS", 6),
		DedupLookback: getDurationEnv("DEDUP_LOOKBACK", "24h"),
		MaxPerRun:     getIntEnv("MAX_PER_RUN", 100),
		FetchDelay:    getDurationEnv("FETCH_DELAY", "400ms"),
		FetchTimeout:  getDurationEnv("FETCH_TIMEOUT", "20s"),
		RunDeadline:   getDurationEnv("RUN_DEADLINE", "4m"),
	}

	log.Printf("config loaded: port=%s cron=%s region_offset=%+d feeds=%d",
		cfg.AppPort, cfg.CronSpec, cfg.RegionUTCOffset, len(cfg.FeedURLs))
	return cfg
}

var defaultFeeds = []string{
	"https://feeds.bbci.co.uk/sport/football/rss.xml",
	"https://www.theguardian.com/football/rss",
	"https://www.skysports.com/rss/12040",
}

// Region returns the home-market timezone as a fixed offset from UTC.
func (c *Config) Region() *time.Location {
	return time.FixedZone("region", c.RegionUTCOffset*3600)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDurationEnv(key, def string) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	d, _ := time.ParseDuration(def)
	return d
}

func getListEnv(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// Now returns current time, kept as an indirection point for tests.
func Now() time.Time {
	return time.Now()
}
