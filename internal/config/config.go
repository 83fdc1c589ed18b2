package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BlacklistFile          = "file"
	BlacklistElasticsearch = "elasticsearch"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// YouTube configures the video search adapter.
type YouTube struct {
	APIKey     string
	Endpoint   string
	MaxResults int
	RPS        float64
}

// Naver configures the news search adapter.
type Naver struct {
	ClientID     string
	ClientSecret string
	Endpoint     string
	MaxResults   int
	RPS          float64
}

// API describes the aggregator service.
type API struct {
	Common
	BindAddr           string
	YouTube            YouTube
	Naver              Naver
	UpdateInterval     time.Duration
	DefaultKeywords    []string
	UpstreamTimeout    time.Duration
	CollectConcurrency int
	BlacklistBackend   string
	BlacklistPath      string
	KafkaBrokers       []string
	KafkaTopic         string
}

// LoadDotEnv reads variables from the given files (".env" when none) without
// overriding the environment. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common: Common{
			ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
			ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "kpop-blacklist"),
		},
		BindAddr: bindAddr(),
		YouTube: YouTube{
			APIKey:     os.Getenv("YOUTUBE_API_KEY"),
			Endpoint:   os.Getenv("YOUTUBE_ENDPOINT"),
			MaxResults: getInt("MAX_RESULTS_YOUTUBE", 50),
			RPS:        getFloat("YOUTUBE_RPS", 0),
		},
		Naver: Naver{
			ClientID:     os.Getenv("NAVER_CLIENT_ID"),
			ClientSecret: os.Getenv("NAVER_CLIENT_SECRET"),
			Endpoint:     os.Getenv("NAVER_ENDPOINT"),
			MaxResults:   getInt("MAX_RESULTS_NEWS", 50),
			RPS:          getFloat("NAVER_RPS", 0),
		},
		UpdateInterval:     time.Duration(getInt("UPDATE_INTERVAL", 15)) * time.Minute,
		DefaultKeywords:    splitAndTrim(getEnv("DEFAULT_KEYWORDS", "BTS,BLACKPINK,NewJeans,IVE,LE SSERAFIM")),
		UpstreamTimeout:    getDuration("UPSTREAM_TIMEOUT", "10s"),
		CollectConcurrency: getInt("COLLECT_CONCURRENCY", 4),
		BlacklistBackend:   strings.ToLower(getEnv("BLACKLIST_BACKEND", BlacklistFile)),
		BlacklistPath:      getEnv("BLACKLIST_PATH", "data/blacklist.json"),
		KafkaBrokers:       splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "kpop_reports"),
	}

	if c.UpdateInterval <= 0 {
		return nil, fmt.Errorf("UPDATE_INTERVAL must be positive")
	}
	if c.YouTube.MaxResults <= 0 {
		return nil, fmt.Errorf("MAX_RESULTS_YOUTUBE must be positive")
	}
	if c.Naver.MaxResults <= 0 {
		return nil, fmt.Errorf("MAX_RESULTS_NEWS must be positive")
	}
	if c.UpstreamTimeout <= 0 || c.UpstreamTimeout > 10*time.Second {
		return nil, fmt.Errorf("UPSTREAM_TIMEOUT must be between 0 and 10s")
	}
	if c.CollectConcurrency <= 0 {
		return nil, fmt.Errorf("COLLECT_CONCURRENCY must be positive")
	}
	if c.YouTube.RPS < 0 || c.Naver.RPS < 0 {
		return nil, fmt.Errorf("YOUTUBE_RPS and NAVER_RPS cannot be negative")
	}
	switch c.BlacklistBackend {
	case BlacklistFile:
		if c.BlacklistPath == "" {
			return nil, fmt.Errorf("BLACKLIST_PATH is required for the file backend")
		}
	case BlacklistElasticsearch:
	default:
		return nil, fmt.Errorf("BLACKLIST_BACKEND must be %q or %q", BlacklistFile, BlacklistElasticsearch)
	}

	return c, nil
}

// bindAddr honours PORT when API_BIND_ADDR is unset.
func bindAddr() string {
	if v := os.Getenv("API_BIND_ADDR"); v != "" {
		return v
	}
	if port := os.Getenv("PORT"); port != "" {
		return "0.0.0.0:" + port
	}
	return "0.0.0.0:5000"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
