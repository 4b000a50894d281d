package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vats98754/aus-job-fetcher/internal/filter"
)

const (
	StoreFile       = "file"
	StoreClickHouse = "clickhouse"
	StorePostgres   = "postgres"

	MergeRefresh      = "refresh"
	MergeKeepPostedAt = "keep_posted_at"
)

type Config struct {
	Environment string
	LogLevel    string

	Incremental      bool
	SourceTimeout    time.Duration
	SourceWorkers    int
	Schedule         string
	MergePolicy      string
	PrevettedSources []string
	RunLockTTL       time.Duration

	StoreBackend  string
	StoreJSONPath string
	StoreCSVPath  string

	ClickHouseDSN          string
	ClickHouseMaxOpenConns int
	ClickHouseMaxIdleConns int
	ClickHouseConnMaxLife  time.Duration
	ClickHouseUsername     string
	ClickHousePassword     string
	ClickHouseDatabase     string

	DatabaseURL      string
	PostgresMaxConns int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	NATSURL         string
	NATSConnTimeout time.Duration

	OTelCollectorURL string
	OTelSampleRatio  float64

	RoleKeywords        []string
	RegionKeywords      []string
	StrictAbbreviations bool

	UserAgent string

	CuratedListURL string

	SeekBaseURL      string
	SeekSearches     []string
	SeekMaxPerSearch int

	AdzunaBaseURL        string
	AdzunaAppID          string
	AdzunaAppKey         string
	AdzunaCountry        string
	AdzunaSearches       []string
	AdzunaResultsPerPage int
	AdzunaMaxDaysOld     int

	HNAPIBaseURL       string
	HNSearchAPIBaseURL string
	HNMaxComments      int
	HNWorkers          int
}

// LoadEnvFile loads KEY=VALUE pairs from path without overriding variables
// already present in the environment. A missing file is not an error.
func LoadEnvFile(path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("load env file %s: %w", path, err)
	}
	return true, nil
}

func LoadConfig() (*Config, error) {
	config := &Config{
		Environment: getEnvString("ENVIRONMENT", "production"),
		LogLevel:    getEnvString("LOG_LEVEL", "info"),

		Incremental:      getEnvBool("INCREMENTAL", true),
		SourceTimeout:    getEnvDuration("SOURCE_TIMEOUT", 45*time.Second),
		SourceWorkers:    getEnvInt("SOURCE_WORKERS", 4),
		Schedule:         getEnvString("SCHEDULE", ""),
		MergePolicy:      getEnvString("MERGE_POLICY", MergeRefresh),
		PrevettedSources: getEnvList("PREVETTED_SOURCES", []string{"GitHub-AusJobs"}),
		RunLockTTL:       getEnvDuration("RUN_LOCK_TTL", 10*time.Minute),

		StoreBackend:  getEnvString("STORE_BACKEND", StoreFile),
		StoreJSONPath: getEnvString("STORE_JSON_PATH", "jobs.json"),
		StoreCSVPath:  getEnvString("STORE_CSV_PATH", "jobs.csv"),

		ClickHouseDSN:          getEnvString("CLICKHOUSE_DSN", "localhost:9000"),
		ClickHouseMaxOpenConns: getEnvInt("CLICKHOUSE_MAX_OPEN_CONNS", 10),
		ClickHouseMaxIdleConns: getEnvInt("CLICKHOUSE_MAX_IDLE_CONNS", 5),
		ClickHouseConnMaxLife:  getEnvDuration("CLICKHOUSE_CONN_MAX_LIFE", time.Hour),
		ClickHouseUsername:     getEnvString("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword:     getEnvString("CLICKHOUSE_PASSWORD", ""),
		ClickHouseDatabase:     getEnvString("CLICKHOUSE_DATABASE", "ausjobs"),

		DatabaseURL:      getEnvString("DATABASE_URL", ""),
		PostgresMaxConns: getEnvInt("POSTGRES_MAX_CONNS", 4),

		RedisAddr:     getEnvString("REDIS_ADDR", ""),
		RedisPassword: getEnvString("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 30*time.Minute),

		NATSURL:         getEnvString("NATS_URL", ""),
		NATSConnTimeout: getEnvDuration("NATS_CONN_TIMEOUT", 10*time.Second),

		OTelCollectorURL: getEnvString("OTEL_COLLECTOR_URL", ""),
		OTelSampleRatio:  getEnvFloat("OTEL_SAMPLE_RATIO", 1),

		RoleKeywords:        getEnvList("ROLE_KEYWORDS", filter.DefaultRoleKeywords()),
		RegionKeywords:      getEnvList("REGION_KEYWORDS", filter.DefaultRegionKeywords()),
		StrictAbbreviations: getEnvBool("FILTER_STRICT_ABBREVIATIONS", false),

		UserAgent: getEnvString("USER_AGENT",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"),

		CuratedListURL: getEnvString("CURATED_LIST_URL",
			"https://raw.githubusercontent.com/AusJobs/Australia-Tech-Internship/main/README.md"),

		SeekBaseURL: getEnvString("SEEK_BASE_URL", "https://www.seek.com.au"),
		SeekSearches: getEnvList("SEEK_SEARCHES", []string{
			"software-engineer-intern-jobs",
			"graduate-software-developer-jobs",
			"junior-developer-jobs",
			"data-engineer-intern-jobs",
		}),
		SeekMaxPerSearch: getEnvInt("SEEK_MAX_PER_SEARCH", 10),

		AdzunaBaseURL: getEnvString("ADZUNA_BASE_URL", "https://api.adzuna.com/v1/api/jobs"),
		AdzunaAppID:   getEnvString("ADZUNA_APP_ID", ""),
		AdzunaAppKey:  getEnvString("ADZUNA_APP_KEY", ""),
		AdzunaCountry: getEnvString("ADZUNA_COUNTRY", "au"),
		AdzunaSearches: getEnvList("ADZUNA_SEARCHES", []string{
			"software intern",
			"graduate developer",
			"junior engineer",
		}),
		AdzunaResultsPerPage: getEnvInt("ADZUNA_RESULTS_PER_PAGE", 20),
		AdzunaMaxDaysOld:     getEnvInt("ADZUNA_MAX_DAYS_OLD", 30),

		HNAPIBaseURL:       getEnvString("HN_API_BASE_URL", "https://hacker-news.firebaseio.com/v0"),
		HNSearchAPIBaseURL: getEnvString("HN_SEARCH_API_BASE_URL", "https://hn.algolia.com/api/v1"),
		HNMaxComments:      getEnvInt("HN_MAX_COMMENTS", 200),
		HNWorkers:          getEnvInt("HN_WORKERS", 10),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreFile:
		if strings.TrimSpace(c.StoreJSONPath) == "" {
			return fmt.Errorf("STORE_JSON_PATH is required for the file store")
		}
	case StoreClickHouse:
		if strings.TrimSpace(c.ClickHouseDSN) == "" {
			return fmt.Errorf("CLICKHOUSE_DSN is required for the clickhouse store")
		}
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of %s, %s, %s; got %q",
			StoreFile, StoreClickHouse, StorePostgres, c.StoreBackend)
	}

	switch c.MergePolicy {
	case MergeRefresh, MergeKeepPostedAt:
	default:
		return fmt.Errorf("MERGE_POLICY must be %s or %s; got %q", MergeRefresh, MergeKeepPostedAt, c.MergePolicy)
	}

	if c.SourceTimeout <= 0 {
		return fmt.Errorf("SOURCE_TIMEOUT must be positive")
	}
	if c.SourceWorkers < 1 {
		return fmt.Errorf("SOURCE_WORKERS must be >= 1")
	}
	if c.SeekMaxPerSearch < 1 {
		return fmt.Errorf("SEEK_MAX_PER_SEARCH must be >= 1")
	}
	if c.HNWorkers < 1 {
		return fmt.Errorf("HN_WORKERS must be >= 1")
	}
	return nil
}

// AdzunaEnabled reports whether both Adzuna credentials are configured.
func (c *Config) AdzunaEnabled() bool {
	return c.AdzunaAppID != "" && c.AdzunaAppKey != ""
}

func (c *Config) IsLocal() bool {
	return strings.EqualFold(c.Environment, "local")
}

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping blanks. An unset or
// blank variable yields defaultValue.
func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			list = append(list, p)
		}
	}
	return list
}
