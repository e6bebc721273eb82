package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "ONBOARDING_CONFIG"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	newsAPIKeyEnv     = "NEWS_API_KEY"
	newsAPIKeyPubEnv  = "NEXT_PUBLIC_NEWS_API_KEY"
	cronScheduleEnv   = "ONBOARDING_CRON_SCHEDULE"
	logLevelEnv       = "LOG_LEVEL"
)

// DefaultTopics are the headline categories batches draw from.
var DefaultTopics = []string{"general", "business", "entertainment", "health", "science", "sports", "technology"}

// Config holds high-level settings required across the application.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Onboarding OnboardingConfig `yaml:"onboarding"`
	NewsAPI    NewsAPIConfig    `yaml:"newsApi"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Sites      []SiteConfig     `yaml:"sites"`
}

// DatabaseConfig describes the store connection; driver is "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines when the batch refresh should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// OnboardingConfig tunes batch generation and assignment.
type OnboardingConfig struct {
	Topics          []string      `yaml:"topics"`
	TopicsPerBatch  int           `yaml:"topicsPerBatch"`
	CandidateLimit  int           `yaml:"candidateLimit"`
	AssignmentCount int           `yaml:"assignmentCount"`
	FetchTimeout    time.Duration `yaml:"fetchTimeout"`
}

// NewsAPIConfig holds credentials for the headline API scanner.
type NewsAPIConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// LoggingConfig selects slog level and handler format ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus listener; an empty address disables it.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// SiteConfig describes a single site with its scanner strategy.
// A site without topics serves any topic it is asked for.
type SiteConfig struct {
	Name    string            `yaml:"name"`
	Scanner string            `yaml:"scanner"`
	Topics  []TopicConfig     `yaml:"topics"`
	Options map[string]string `yaml:"options"`
}

// TopicConfig maps a topic to its section page for page-based scanners.
type TopicConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg, err := Parse(raw)
			if err != nil {
				log.Printf("config: %v (falling back to defaults)", err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sites) == 0 {
		cfg.Sites = defaultConfig().Sites
	}

	return cfg
}

// Parse decodes a YAML document without applying defaults.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the values the onboarding core depends on.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver %q must be sqlite or postgres", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if len(c.Onboarding.Topics) == 0 {
		return fmt.Errorf("onboarding.topics must not be empty")
	}
	if c.Onboarding.TopicsPerBatch <= 0 {
		return fmt.Errorf("onboarding.topicsPerBatch must be positive")
	}
	if c.Onboarding.AssignmentCount <= 0 {
		return fmt.Errorf("onboarding.assignmentCount must be positive")
	}
	if c.Onboarding.CandidateLimit < c.Onboarding.AssignmentCount {
		return fmt.Errorf("onboarding.candidateLimit %d is below assignmentCount %d",
			c.Onboarding.CandidateLimit, c.Onboarding.AssignmentCount)
	}
	if c.Onboarding.FetchTimeout <= 0 {
		return fmt.Errorf("onboarding.fetchTimeout must be positive")
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

	if v := os.Getenv(newsAPIKeyEnv); v != "" {
		c.NewsAPI.APIKey = v
	} else if v := os.Getenv(newsAPIKeyPubEnv); v != "" {
		c.NewsAPI.APIKey = v
	}

	if v := os.Getenv(cronScheduleEnv); v != "" {
		c.Scheduler.CronExpression = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if len(override.Onboarding.Topics) > 0 {
		base.Onboarding.Topics = normalizeTopics(override.Onboarding.Topics)
	}
	if override.Onboarding.TopicsPerBatch > 0 {
		base.Onboarding.TopicsPerBatch = override.Onboarding.TopicsPerBatch
	}
	if override.Onboarding.CandidateLimit > 0 {
		base.Onboarding.CandidateLimit = override.Onboarding.CandidateLimit
	}
	if override.Onboarding.AssignmentCount > 0 {
		base.Onboarding.AssignmentCount = override.Onboarding.AssignmentCount
	}
	if override.Onboarding.FetchTimeout > 0 {
		base.Onboarding.FetchTimeout = override.Onboarding.FetchTimeout
	}

	if override.NewsAPI.Endpoint != "" {
		base.NewsAPI.Endpoint = override.NewsAPI.Endpoint
	}
	if override.NewsAPI.APIKey != "" {
		base.NewsAPI.APIKey = override.NewsAPI.APIKey
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Metrics.Address != "" {
		base.Metrics.Address = override.Metrics.Address
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	return base
}

func normalizeTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	seen := map[string]struct{}{}
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database:  DatabaseConfig{Driver: "sqlite", DSN: "./onboarding.db"},
		Scheduler: SchedulerConfig{CronExpression: "0 6 * * *", Timezone: defaultTimezone, location: tz},
		Onboarding: OnboardingConfig{
			Topics:          append([]string(nil), DefaultTopics...),
			TopicsPerBatch:  3,
			CandidateLimit:  30,
			AssignmentCount: 7,
			FetchTimeout:    15 * time.Second,
		},
		NewsAPI: NewsAPIConfig{Endpoint: "https://newsapi.org/v2/top-headlines"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Sites: []SiteConfig{
			{
				Name:    "newsapi",
				Scanner: "newsapi",
				Options: map[string]string{"language": "en"},
			},
		},
	}
}
