package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	os.Unsetenv("STORE_BACKEND")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StoreBackend != StoreFile || cfg.StoreJSONPath != "jobs.json" || cfg.StoreCSVPath != "jobs.csv" {
		t.Fatalf("unexpected store defaults: %+v", cfg)
	}
	if !cfg.Incremental || cfg.MergePolicy != MergeRefresh {
		t.Fatalf("unexpected run defaults: incremental=%v merge=%q", cfg.Incremental, cfg.MergePolicy)
	}
	if cfg.SourceTimeout != 45*time.Second {
		t.Fatalf("unexpected source timeout: %v", cfg.SourceTimeout)
	}
	if len(cfg.PrevettedSources) != 1 || cfg.PrevettedSources[0] != "GitHub-AusJobs" {
		t.Fatalf("unexpected pre-vetted sources: %v", cfg.PrevettedSources)
	}
	if len(cfg.RoleKeywords) == 0 || len(cfg.RegionKeywords) == 0 {
		t.Fatal("expected default vocabulary")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("INCREMENTAL", "false")
	t.Setenv("SOURCE_TIMEOUT", "5s")
	t.Setenv("MERGE_POLICY", MergeKeepPostedAt)
	t.Setenv("ROLE_KEYWORDS", " intern, ,graduate ,")
	t.Setenv("SEEK_MAX_PER_SEARCH", "not a number")
	t.Setenv("ADZUNA_APP_ID", "id")
	t.Setenv("ADZUNA_APP_KEY", "key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Incremental || cfg.SourceTimeout != 5*time.Second || cfg.MergePolicy != MergeKeepPostedAt {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if strings.Join(cfg.RoleKeywords, "|") != "intern|graduate" {
		t.Fatalf("unexpected role keywords: %q", cfg.RoleKeywords)
	}
	if cfg.SeekMaxPerSearch != 10 {
		t.Fatalf("expected unparseable value to fall back to default, got %d", cfg.SeekMaxPerSearch)
	}
	if !cfg.AdzunaEnabled() {
		t.Fatal("expected adzuna to be enabled")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		return &Config{
			StoreBackend:     StoreFile,
			StoreJSONPath:    "jobs.json",
			MergePolicy:      MergeRefresh,
			SourceTimeout:    time.Second,
			SourceWorkers:    1,
			SeekMaxPerSearch: 1,
			HNWorkers:        1,
		}
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.StoreBackend = "s3" }, want: "STORE_BACKEND"},
		{name: "clickhouse without dsn", mutate: func(c *Config) { c.StoreBackend = StoreClickHouse }, want: "CLICKHOUSE_DSN"},
		{name: "postgres without url", mutate: func(c *Config) { c.StoreBackend = StorePostgres }, want: "DATABASE_URL"},
		{name: "bad merge policy", mutate: func(c *Config) { c.MergePolicy = "newest" }, want: "MERGE_POLICY"},
		{name: "zero timeout", mutate: func(c *Config) { c.SourceTimeout = 0 }, want: "SOURCE_TIMEOUT"},
		{name: "no workers", mutate: func(c *Config) { c.SourceWorkers = 0 }, want: "SOURCE_WORKERS"},
		{name: "no hn workers", mutate: func(c *Config) { c.HNWorkers = 0 }, want: "HN_WORKERS"},
	}
	for _, c := range cases {
		cfg := valid()
		c.mutate(cfg)
		err := cfg.Validate()
		if c.want == "" {
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", c.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Fatalf("%s: expected error mentioning %s, got %v", c.name, c.want, err)
		}
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()

	loaded, err := LoadEnvFile(filepath.Join(dir, "missing.env"))
	if err != nil || loaded {
		t.Fatalf("missing file: loaded=%v err=%v", loaded, err)
	}

	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("AJF_TEST_FROM_FILE=file\nAJF_TEST_PRESET=file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AJF_TEST_PRESET", "env")
	t.Setenv("AJF_TEST_FROM_FILE", "")
	os.Unsetenv("AJF_TEST_FROM_FILE")

	loaded, err = LoadEnvFile(path)
	if err != nil || !loaded {
		t.Fatalf("expected file to load: loaded=%v err=%v", loaded, err)
	}
	if got := os.Getenv("AJF_TEST_FROM_FILE"); got != "file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("AJF_TEST_PRESET"); got != "env" {
		t.Fatalf("existing environment must win, got %q", got)
	}
}
