package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SelectorConfig holds the CSS selectors of the listing markup. They are
// tied to the site's current layout and are the first thing to break.
type SelectorConfig struct {
	Card          string `yaml:"card"`
	Link          string `yaml:"link"`
	CurrentPrice  string `yaml:"current_price"`
	OriginalPrice string `yaml:"original_price"`
}

// CrawlerConfig holds the settings of the crawl itself.
type CrawlerConfig struct {
	Domain            string         `yaml:"domain"`
	SearchURL         string         `yaml:"search_url"`
	FreeMarker        string         `yaml:"free_marker"`
	SettleDelay       time.Duration  `yaml:"settle_delay"`
	NavigationTimeout time.Duration  `yaml:"navigation_timeout"`
	MaxPages          int            `yaml:"max_pages"` // 0 means no cap
	Selectors         SelectorConfig `yaml:"selectors"`
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	Headless  bool   `yaml:"headless"`
	NoSandbox bool   `yaml:"no_sandbox"`
	Stealth   bool   `yaml:"stealth"`
	Bin       string `yaml:"bin"`
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // "debug", "release", "test"

	// ShutdownTimeout bounds how long in-flight requests, including a
	// running crawl storing its records, may take after a stop signal.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type SchedulerConfig struct {
	Spec       string `yaml:"spec"`
	RunOnStart bool   `yaml:"run_on_start"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// Config is the complete structure for the config.yml file.
type Config struct {
	Crawler   CrawlerConfig   `yaml:"crawler"`
	Browser   BrowserConfig   `yaml:"browser"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
}

// Default returns the configuration used when config.yml sets nothing.
func Default() *Config {
	return &Config{
		Crawler: CrawlerConfig{
			Domain:            "inflearn",
			SearchURL:         "https://www.inflearn.com/courses",
			FreeMarker:        "무료",
			SettleDelay:       3 * time.Second,
			NavigationTimeout: 30 * time.Second,
			Selectors: SelectorConfig{
				Card: "section:nth-child(2) > ul.css-sdr7qd.mantine-1avyp1d > li, " +
					"section:nth-child(2) > ul.css-2ldd65.mantine-1avyp1d > li",
				Link:          "a",
				CurrentPrice:  "div.css-4542l5.mantine-1avyp1d > div:nth-child(1) > div > div:nth-child(2) > p:last-child",
				OriginalPrice: "div.css-4542l5.mantine-1avyp1d > div:nth-child(1) > div > div:nth-child(1) > p",
			},
		},
		Browser: BrowserConfig{
			Headless:  true,
			NoSandbox: true,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "lectures.db",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Mode:            "release",
			ShutdownTimeout: 30 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Spec:       "@every 24h",
			RunOnStart: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig reads the YAML file on top of the defaults, then applies
// CRAWLER_* environment overrides. A missing file is not an error.
func LoadConfig(filepath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config %s: %w", filepath, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", filepath, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on settings the crawl cannot run without.
func (c *Config) Validate() error {
	switch {
	case c.Crawler.Domain == "":
		return errors.New("crawler.domain is required")
	case c.Crawler.SearchURL == "":
		return errors.New("crawler.search_url is required")
	case c.Crawler.Selectors.Card == "" || c.Crawler.Selectors.Link == "" || c.Crawler.Selectors.CurrentPrice == "":
		return errors.New("crawler.selectors.card, link and current_price are required")
	case c.Crawler.MaxPages < 0:
		return fmt.Errorf("crawler.max_pages must not be negative, got %d", c.Crawler.MaxPages)
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		// gin.SetMode panics on anything else.
		return fmt.Errorf("unknown server.mode %q", c.Server.Mode)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Crawler.SearchURL = envOr("CRAWLER_SEARCH_URL", cfg.Crawler.SearchURL)
	cfg.Crawler.SettleDelay = envDurationOr("CRAWLER_SETTLE_DELAY", cfg.Crawler.SettleDelay)
	cfg.Crawler.NavigationTimeout = envDurationOr("CRAWLER_NAV_TIMEOUT", cfg.Crawler.NavigationTimeout)
	cfg.Crawler.MaxPages = envIntOr("CRAWLER_MAX_PAGES", cfg.Crawler.MaxPages)

	cfg.Browser.Headless = envBoolOr("CRAWLER_HEADLESS", cfg.Browser.Headless)
	cfg.Browser.NoSandbox = envBoolOr("CRAWLER_NO_SANDBOX", cfg.Browser.NoSandbox)
	cfg.Browser.Stealth = envBoolOr("CRAWLER_STEALTH", cfg.Browser.Stealth)
	cfg.Browser.Bin = envOr("CRAWLER_BROWSER_BIN", cfg.Browser.Bin)

	cfg.Database.Driver = envOr("CRAWLER_DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Path = envOr("CRAWLER_DB_PATH", cfg.Database.Path)
	cfg.Database.DSN = envOr("DATABASE_URL", cfg.Database.DSN)

	cfg.Server.Host = envOr("CRAWLER_HOST", cfg.Server.Host)
	cfg.Server.Port = envIntOr("CRAWLER_PORT", cfg.Server.Port)
	cfg.Server.ShutdownTimeout = envDurationOr("CRAWLER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Scheduler.Spec = envOr("CRAWLER_SCHEDULE", cfg.Scheduler.Spec)

	cfg.Log.Level = strings.ToLower(envOr("CRAWLER_LOG_LEVEL", cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(envOr("CRAWLER_LOG_FORMAT", cfg.Log.Format))
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
