package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var defaultYAML []byte

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Member     MemberConfig     `yaml:"member"`
	Assembly   AssemblyConfig   `yaml:"assembly"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Refresh    RefreshConfig    `yaml:"refresh"`
	Cache      CacheConfig      `yaml:"cache"`
}

type ServerConfig struct {
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	AdminSecret string   `yaml:"admin_secret"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // postgres:// or sqlite:<path>; empty means sqlite:tracker.db
}

// MemberConfig names the legislator preloaded at startup. Code is the
// portal's member code used by the co-sponsorship listing.
type MemberConfig struct {
	Name string `yaml:"name"`
	Code string `yaml:"code"`
}

type AssemblyConfig struct {
	OpenAPIBaseURL  string        `yaml:"open_api_base_url"`
	PortalBaseURL   string        `yaml:"portal_base_url"`
	DetailURL       string        `yaml:"detail_url"`
	APIKey          string        `yaml:"api_key"`
	Age             string        `yaml:"age"` // legislative session number
	BillPageSize    int           `yaml:"bill_page_size"`
	SessionPageSize int           `yaml:"session_page_size"`
	PortalRowSize   int           `yaml:"portal_row_size"`
	PortalRepresent string        `yaml:"portal_represent"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`
	VoteConcurrency int           `yaml:"vote_concurrency"`
	Timeout         time.Duration `yaml:"timeout"`
}

type SummarizerConfig struct {
	Provider      string        `yaml:"provider"` // "openai" or "ollama"
	OpenAIBaseURL string        `yaml:"openai_base_url"`
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	OllamaHost    string        `yaml:"ollama_host"`
	OllamaModel   string        `yaml:"ollama_model"`
	Temperature   float64       `yaml:"temperature"`
	MaxChars      int           `yaml:"max_chars"`
	MaxAttempts   int           `yaml:"max_attempts"`
	BaseDelay     time.Duration `yaml:"base_delay"`
	Timeout       time.Duration `yaml:"timeout"`
}

type RefreshConfig struct {
	Hour                 int           `yaml:"hour"`
	Timezone             string        `yaml:"timezone"`
	Timeout              time.Duration `yaml:"timeout"`
	SummaryRetryInterval time.Duration `yaml:"summary_retry_interval"` // 0 disables the retry daemon
}

type CacheConfig struct {
	MaxEntries int           `yaml:"max_entries"`
	DetailTTL  time.Duration `yaml:"detail_ttl"`
}

// Load reads the embedded defaults, merges CONFIG_FILE on top when set and
// finally applies environment overrides.
func Load() (*Config, error) {
	var cfg Config
	if err := decode(defaultYAML, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing default config: %w", err)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		if err := decode(data, &cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decode expands ${VAR} references before unmarshalling, the same way the
// source registry is loaded.
func decode(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))
	return yaml.Unmarshal([]byte(expanded), cfg)
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("PORT", &c.Server.Port)
	setString("DATABASE_URL", &c.Database.URL)
	setString("API_KEY", &c.Assembly.APIKey)
	setString("OPENAI_API_KEY", &c.Summarizer.APIKey)
	setString("SUMMARIZER_PROVIDER", &c.Summarizer.Provider)
	setString("OLLAMA_HOST", &c.Summarizer.OllamaHost)
	setString("MEMBER_NAME", &c.Member.Name)
	setString("MEMBER_CODE", &c.Member.Code)
	setString("TIMEZONE", &c.Refresh.Timezone)
	setString("ADMIN_SECRET", &c.Server.AdminSecret)

	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, o)
			}
		}
	}

	if v := os.Getenv("REFRESH_HOUR"); v != "" {
		hour, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REFRESH_HOUR %q: %w", v, err)
		}
		c.Refresh.Hour = hour
	}
	if v := os.Getenv("CACHE_MAX_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CACHE_MAX_ENTRIES %q: %w", v, err)
		}
		c.Cache.MaxEntries = n
	}
	if v := os.Getenv("DETAIL_CACHE_TTL"); v != "" {
		ttl, err := parseTTL(v)
		if err != nil {
			return fmt.Errorf("invalid DETAIL_CACHE_TTL %q: %w", v, err)
		}
		c.Cache.DetailTTL = ttl
	}
	return nil
}

// parseTTL accepts a Go duration ("24h") or a plain number of seconds ("14400").
func parseTTL(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func (c *Config) Validate() error {
	if c.Refresh.Hour < 0 || c.Refresh.Hour > 23 {
		return fmt.Errorf("refresh hour must be within 0-23, got %d", c.Refresh.Hour)
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.DetailTTL < 0 {
		return fmt.Errorf("detail ttl must not be negative")
	}
	switch c.Summarizer.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unknown summarizer provider %q", c.Summarizer.Provider)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Member.Name == "" {
		return fmt.Errorf("member name is required")
	}
	return nil
}

// Location resolves the configured timezone used for day boundaries.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Refresh.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Refresh.Timezone, err)
	}
	return loc, nil
}

// DatabaseURL returns the configured DSN, falling back to a local SQLite file.
func (c *Config) DatabaseURL() string {
	if c.Database.URL == "" {
		return "sqlite:tracker.db"
	}
	return c.Database.URL
}
