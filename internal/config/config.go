package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/leadgen-cli/internal/browser"
)

// Config holds the full application configuration.
type Config struct {
	Browser   browser.Config  `yaml:"browser" mapstructure:"browser"`
	Directory DirectoryConfig `yaml:"directory" mapstructure:"directory"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Supabase  SupabaseConfig  `yaml:"supabase" mapstructure:"supabase"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DirectoryConfig identifies the contractor directory being scraped.
type DirectoryConfig struct {
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Distance   int    `yaml:"distance" mapstructure:"distance"`
	LinkFilter string `yaml:"link_filter" mapstructure:"link_filter"`
}

// ScrapeConfig configures the scrape run.
type ScrapeConfig struct {
	MaxPages         int    `yaml:"max_pages" mapstructure:"max_pages"`
	Concurrency      int    `yaml:"concurrency" mapstructure:"concurrency"`
	PageIntervalSecs int    `yaml:"page_interval_secs" mapstructure:"page_interval_secs"`
	StepTimeoutSecs  int    `yaml:"step_timeout_secs" mapstructure:"step_timeout_secs"`
	OutputFile       string `yaml:"output_file" mapstructure:"output_file"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SupabaseConfig holds Supabase REST credentials.
type SupabaseConfig struct {
	URL   string `yaml:"url" mapstructure:"url"`
	Key   string `yaml:"key" mapstructure:"key"`
	Table string `yaml:"table" mapstructure:"table"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the insights API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the fields required by the given command mode are
// present. Modes: scrape, upload, serve, migrate.
func (c *Config) Validate(mode string) error {
	var missing []string

	switch mode {
	case "scrape":
		if c.Directory.BaseURL == "" {
			missing = append(missing, "directory.base_url is required")
		}
		if c.Scrape.MaxPages < 1 {
			missing = append(missing, "scrape.max_pages must be >= 1")
		}
		if c.Scrape.Concurrency < 1 || c.Scrape.Concurrency > 8 {
			missing = append(missing, "scrape.concurrency must be between 1 and 8")
		}
	case "upload":
		if c.Supabase.URL == "" {
			missing = append(missing, "supabase.url is required")
		}
		if c.Supabase.Key == "" {
			missing = append(missing, "supabase.key is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
	case "migrate":
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: invalid configuration:\n  - %s", strings.Join(missing, "\n  - "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	def := browser.DefaultConfig()
	v.SetDefault("browser.headless", def.Headless)
	v.SetDefault("browser.no_sandbox", def.NoSandbox)
	v.SetDefault("browser.disable_dev_shm", def.DisableDevShm)
	v.SetDefault("browser.user_agent", def.UserAgent)
	v.SetDefault("browser.window_width", def.WindowWidth)
	v.SetDefault("browser.window_height", def.WindowHeight)
	v.SetDefault("directory.base_url", "https://www.gaf.com/en-us/roofing-contractors/residential")
	v.SetDefault("directory.distance", 25)
	v.SetDefault("directory.link_filter", "contractor")
	v.SetDefault("scrape.max_pages", 3)
	v.SetDefault("scrape.concurrency", 1)
	v.SetDefault("scrape.page_interval_secs", 2)
	v.SetDefault("scrape.step_timeout_secs", 15)
	v.SetDefault("scrape.output_file", "contractors.json")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 300)
	v.SetDefault("supabase.table", "contractors")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadgen.db")
	v.SetDefault("server.port", 8000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
