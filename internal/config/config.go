package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "MANGAVOTE_CONFIG"
	envFile         = ".env"

	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	logLevelEnv       = "LOG_LEVEL"
	logFormatEnv      = "LOG_FORMAT"
	mangadexURLEnv    = "MANGADEX_BASE_URL"
	valkeyAddressEnv  = "VALKEY_ADDRESS"
	valkeyPasswordEnv = "VALKEY_PASSWORD"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Database    DatabaseConfig    `yaml:"database"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Upstream    UpstreamConfig    `yaml:"upstream"`
	RateControl RateControlConfig `yaml:"rateControl"`
	Categories  CategoriesConfig  `yaml:"categories"`
	Voting      VotingConfig      `yaml:"voting"`
	Guard       GuardConfig       `yaml:"guard"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig picks the SQL backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines when the monthly catalog sync fires.
type SchedulerConfig struct {
	DayOfMonth int            `yaml:"dayOfMonth"`
	Hour       int            `yaml:"hour"`
	Minute     int            `yaml:"minute"`
	Timezone   string         `yaml:"timezone"`
	location   *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	return time.UTC
}

// UpstreamConfig describes the catalog API and the listing filter.
type UpstreamConfig struct {
	BaseURL           string        `yaml:"baseUrl"`
	CoverBaseURL      string        `yaml:"coverBaseUrl"`
	UserAgent         string        `yaml:"userAgent"`
	Timeout           time.Duration `yaml:"timeout"`
	PageSize          int           `yaml:"pageSize"`
	StatsChunkSize    int           `yaml:"statsChunkSize"`
	IncludedTags      []string      `yaml:"includedTags"`
	IncludedTagsMode  string        `yaml:"includedTagsMode"`
	OriginalLanguages []string      `yaml:"originalLanguages"`
	Includes          []string      `yaml:"includes"`
}

// RateControlConfig tunes the adaptive request delay.
type RateControlConfig struct {
	BaseDelay          time.Duration `yaml:"baseDelay"`
	MaxDelay           time.Duration `yaml:"maxDelay"`
	Step               time.Duration `yaml:"step"`
	SuccessThreshold   int           `yaml:"successThreshold"`
	ChunkBackoffFactor float64       `yaml:"chunkBackoffFactor"`
}

// CategoriesConfig holds the category literals.
type CategoriesConfig struct {
	AdaptationTag   string `yaml:"adaptationTag"`
	AwardWinningTag string `yaml:"awardWinningTag"`
	TopRankedLimit  int    `yaml:"topRankedLimit"`
}

// VotingConfig bounds incoming ballots.
type VotingConfig struct {
	MaxChoices int      `yaml:"maxChoices"`
	MinAge     int      `yaml:"minAge"`
	MaxAge     int      `yaml:"maxAge"`
	Genders    []string `yaml:"genders"`
}

// GuardConfig enables the optional Valkey submission claim.
type GuardConfig struct {
	Valkey ValkeyConfig `yaml:"valkey"`
}

// ValkeyConfig is disabled when Address is empty.
type ValkeyConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	TLS      bool          `yaml:"tls"`
	TTL      time.Duration `yaml:"ttl"`
}

// Load reads .env (if present), the YAML file at path or $MANGAVOTE_CONFIG (if set), applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	if err := gotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := cfg.decode(raw); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode overlays YAML onto the current values; unknown keys are rejected.
func (c *Config) decode(raw []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(logFormatEnv); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(mangadexURLEnv); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := os.Getenv(valkeyAddressEnv); v != "" {
		c.Guard.Valkey.Address = v
	}
	if v := os.Getenv(valkeyPasswordEnv); v != "" {
		c.Guard.Valkey.Password = v
	}
}

func (c *Config) bindTimezone() error {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("scheduler timezone %q: %w", tz, err)
	}
	c.Scheduler.location = loc
	return nil
}

// Validate reports every out-of-range setting at once.
func (c Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("database.driver %q must be sqlite or postgres", c.Database.Driver))
	}
	check(c.Database.DSN != "", "database.dsn is required")

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be text, console or json", c.Logging.Format))
	}

	check(c.Scheduler.DayOfMonth >= 1 && c.Scheduler.DayOfMonth <= 31, "scheduler.dayOfMonth must be within 1..31")
	check(c.Scheduler.Hour >= 0 && c.Scheduler.Hour <= 23, "scheduler.hour must be within 0..23")
	check(c.Scheduler.Minute >= 0 && c.Scheduler.Minute <= 59, "scheduler.minute must be within 0..59")

	check(c.Upstream.BaseURL != "", "upstream.baseUrl is required")
	check(c.Upstream.PageSize > 0, "upstream.pageSize must be positive")
	check(c.Upstream.StatsChunkSize > 0, "upstream.statsChunkSize must be positive")
	check(c.Upstream.Timeout >= 0, "upstream.timeout must not be negative")

	rc := c.RateControl
	check(rc.BaseDelay > 0, "rateControl.baseDelay must be positive")
	check(rc.MaxDelay >= rc.BaseDelay, "rateControl.maxDelay must be at least baseDelay")
	check(rc.Step > 0, "rateControl.step must be positive")
	check(rc.SuccessThreshold > 0, "rateControl.successThreshold must be positive")
	check(rc.ChunkBackoffFactor > 1, "rateControl.chunkBackoffFactor must exceed 1")

	check(c.Categories.AdaptationTag != "", "categories.adaptationTag is required")
	check(c.Categories.AwardWinningTag != "", "categories.awardWinningTag is required")
	check(c.Categories.TopRankedLimit > 0, "categories.topRankedLimit must be positive")

	check(c.Voting.MaxChoices > 0, "voting.maxChoices must be positive")
	check(c.Voting.MinAge >= 0 && c.Voting.MinAge <= c.Voting.MaxAge, "voting age bounds must satisfy 0 <= minAge <= maxAge")
	check(len(c.Voting.Genders) > 0, "voting.genders must not be empty")

	if c.Guard.Valkey.Address != "" {
		check(c.Guard.Valkey.TTL >= time.Second, "guard.valkey.ttl must be at least 1s")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Default returns the production settings.
func Default() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "data/mangavote.db"},
		Scheduler: SchedulerConfig{
			DayOfMonth: 1,
			Timezone:   defaultTimezone,
			location:   time.UTC,
		},
		Upstream: UpstreamConfig{
			BaseURL:           "https://api.mangadex.org",
			CoverBaseURL:      "https://mangadex.org/covers",
			UserAgent:         "MangaVote/1.0",
			Timeout:           30 * time.Second,
			PageSize:          100,
			StatsChunkSize:    100,
			IncludedTags:      []string{"f4122d1c-3b44-44d0-9936-ff7502c39ad3", "0a39b5a1-b235-4886-a747-1d05d216532d"},
			IncludedTagsMode:  "OR",
			OriginalLanguages: []string{"ja"},
			Includes:          []string{"cover_art"},
		},
		RateControl: RateControlConfig{
			BaseDelay:          200 * time.Millisecond,
			MaxDelay:           2000 * time.Millisecond,
			Step:               20 * time.Millisecond,
			SuccessThreshold:   5,
			ChunkBackoffFactor: 1.5,
		},
		Categories: CategoriesConfig{
			AdaptationTag:   "Adaptation",
			AwardWinningTag: "Award Winning",
			TopRankedLimit:  500,
		},
		Voting: VotingConfig{
			MaxChoices: 10,
			MinAge:     0,
			MaxAge:     100,
			Genders:    []string{"male", "female"},
		},
		Guard: GuardConfig{Valkey: ValkeyConfig{TTL: time.Minute}},
	}
}
