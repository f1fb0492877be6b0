package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	State  string       `yaml:"state" mapstructure:"state"`
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Render RenderConfig `yaml:"render" mapstructure:"render"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Serve  ServeConfig  `yaml:"serve" mapstructure:"serve"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// DataConfig points at the census and food-access source data.
type DataConfig struct {
	Dir              string `yaml:"dir" mapstructure:"dir"`
	CensusPath       string `yaml:"census_path" mapstructure:"census_path"`
	CensusIDProperty string `yaml:"census_id_property" mapstructure:"census_id_property"`
	CensusYear       int    `yaml:"census_year" mapstructure:"census_year"`
	CensusURL        string `yaml:"census_url" mapstructure:"census_url"`
	FoodPath         string `yaml:"food_path" mapstructure:"food_path"`
	FoodURL          string `yaml:"food_url" mapstructure:"food_url"`
	FoodSheet        string `yaml:"food_sheet" mapstructure:"food_sheet"`
}

// OutputConfig configures where and how figures are written.
type OutputConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Format string `yaml:"format" mapstructure:"format"`
	DPI    int    `yaml:"dpi" mapstructure:"dpi"`
}

// RenderConfig configures choropleth rendering.
type RenderConfig struct {
	StylePath string `yaml:"style_path" mapstructure:"style_path"`
	Palette   string `yaml:"palette" mapstructure:"palette"`
	Scale     string `yaml:"scale" mapstructure:"scale"`
	Workers   int    `yaml:"workers" mapstructure:"workers"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures source data downloads.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries     int     `yaml:"retries" mapstructure:"retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
	FTPFallback bool    `yaml:"ftp_fallback" mapstructure:"ftp_fallback"`
}

// ServeConfig configures the read-only HTTP server.
type ServeConfig struct {
	Addr           string   `yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An explicit file path
// wins over the default lookup of foodatlas.yaml in the working directory.
func Load(file string) (*Config, error) {
	v := viper.New()

	// Config file
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("foodatlas")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("FOODATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("state", "WA")
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.census_id_property", "CTIDFP00")
	v.SetDefault("data.census_year", 2010)
	v.SetDefault("data.food_sheet", "Food Access Research Atlas")
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.format", "png")
	v.SetDefault("output.dpi", 150)
	v.SetDefault("render.palette", "kindlmann")
	v.SetDefault("render.scale", "linear")
	v.SetDefault("render.workers", 3)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("fetch.timeout_secs", 300)
	v.SetDefault("fetch.retries", 3)
	v.SetDefault("fetch.rate_per_sec", 2)
	v.SetDefault("fetch.burst", 4)
	v.SetDefault("fetch.ftp_fallback", true)
	v.SetDefault("serve.addr", ":8080")
	v.SetDefault("serve.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional unless explicitly given)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the keys the given command scope depends on. Scopes are
// "pipeline" (run/render/export), "store" (ingest/stats/status), "fetch",
// and "serve".
func (c *Config) Validate(scope string) error {
	var problems []string

	if len(c.State) != 2 {
		problems = append(problems, "state must be a two-letter USPS code")
	}

	switch scope {
	case "pipeline":
		if c.Output.Format != "png" && c.Output.Format != "svg" {
			problems = append(problems, "output.format must be png or svg")
		}
		if c.Output.DPI <= 0 {
			problems = append(problems, "output.dpi must be positive")
		}
		if c.Render.Scale != "linear" && c.Render.Scale != "quantile" {
			problems = append(problems, "render.scale must be linear or quantile")
		}
	case "store":
		if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for postgres")
		}
	case "fetch":
		if c.Fetch.TimeoutSecs <= 0 {
			problems = append(problems, "fetch.timeout_secs must be positive")
		}
		if c.Data.CensusYear < 2000 {
			problems = append(problems, "data.census_year must be 2000 or later")
		}
	case "serve":
		if c.Serve.Addr == "" {
			problems = append(problems, "serve.addr is required")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
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
