// Package config loads application configuration from an optional YAML
// file and SOLAR_-prefixed environment variables, and owns global logger
// setup.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aerosolar/solar-cli/internal/solar"
)

// Config holds the full application configuration.
type Config struct {
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Query  QueryConfig  `yaml:"query" mapstructure:"query"`
	Solar  SolarConfig  `yaml:"solar" mapstructure:"solar"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host                string   `yaml:"host" mapstructure:"host"`
	Port                int      `yaml:"port" mapstructure:"port"`
	ReadTimeoutSecs     int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs    int      `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
	RateLimitPerSec     float64  `yaml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
	RateBurst           int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	CORSOrigins         []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// DataConfig points at the on-disk inputs: footprint sources, the
// airport registry CSV, regional constant overrides, and the per-airport
// result cache directory.
type DataConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir"`
	AirportsCSV  string `yaml:"airports_csv" mapstructure:"airports_csv"`
	RegionsFile  string `yaml:"regions_file" mapstructure:"regions_file"`
	DiskCacheDir string `yaml:"disk_cache_dir" mapstructure:"disk_cache_dir"`
}

// CacheConfig configures the in-memory result cache.
type CacheConfig struct {
	Capacity   int `yaml:"capacity" mapstructure:"capacity"`
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// TTL returns the configured entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// QueryConfig holds the default geometry filters for a resolution query.
type QueryConfig struct {
	RadiusKM          float64 `yaml:"radius_km" mapstructure:"radius_km"`
	MinBuildingAreaM2 float64 `yaml:"min_building_area_m2" mapstructure:"min_building_area_m2"`
}

// SolarConfig holds the default financial-model parameters.
type SolarConfig struct {
	UsableFraction         float64 `yaml:"usable_fraction" mapstructure:"usable_fraction"`
	PanelEfficiencyWM2     float64 `yaml:"panel_efficiency_w_m2" mapstructure:"panel_efficiency_w_m2"`
	ElectricityPriceUSDKWh float64 `yaml:"electricity_price_usd_kwh" mapstructure:"electricity_price_usd_kwh"`
	IncludeITC             bool    `yaml:"include_itc" mapstructure:"include_itc"`
}

// Params converts the configured defaults into clamped solar parameters.
func (c SolarConfig) Params() solar.Params {
	return solar.Params{
		UsableFraction:         c.UsableFraction,
		PanelEfficiencyWM2:     c.PanelEfficiencyWM2,
		ElectricityPriceUSDKWh: c.ElectricityPriceUSDKWh,
		IncludeITC:             c.IncludeITC,
	}.Clamped()
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the configured values that would otherwise fail deep
// inside a request. Every problem is reported, not just the first.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	if c.Server.RateLimitPerSec <= 0 {
		problems = append(problems, "server.rate_limit_per_sec must be > 0")
	}
	if c.Server.RateBurst < 1 {
		problems = append(problems, "server.rate_burst must be >= 1")
	}
	if c.Cache.Capacity < 1 {
		problems = append(problems, "cache.capacity must be >= 1")
	}
	if c.Cache.TTLMinutes < 1 {
		problems = append(problems, "cache.ttl_minutes must be >= 1")
	}
	if c.Query.RadiusKM <= 0 {
		problems = append(problems, "query.radius_km must be > 0")
	}
	if c.Query.MinBuildingAreaM2 < 0 {
		problems = append(problems, "query.min_building_area_m2 must be >= 0")
	}
	if c.Data.AirportsCSV == "" {
		problems = append(problems, "data.airports_csv is required")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment. The config file is
// optional; every key has a default.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SOLAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_secs", 15)
	v.SetDefault("server.write_timeout_secs", 60)
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("server.rate_limit_per_sec", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.airports_csv", "data/airports.csv")
	v.SetDefault("data.regions_file", "")
	v.SetDefault("data.disk_cache_dir", "data/cache")
	v.SetDefault("cache.capacity", 64)
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("query.radius_km", 5.0)
	v.SetDefault("query.min_building_area_m2", 100.0)
	v.SetDefault("solar.usable_fraction", 0.65)
	v.SetDefault("solar.panel_efficiency_w_m2", 200.0)
	v.SetDefault("solar.electricity_price_usd_kwh", 0.12)
	v.SetDefault("solar.include_itc", true)
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
