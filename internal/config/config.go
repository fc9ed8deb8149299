package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultPrimaryURL is the public ZIP/county/state CSV used as the base mapping.
const DefaultPrimaryURL = "https://raw.githubusercontent.com/scpike/us-state-county-zip/refs/heads/master/geo-data.csv"

// Config holds the full application configuration.
type Config struct {
	Primary   PrimaryConfig   `yaml:"primary" mapstructure:"primary"`
	Secondary SecondaryConfig `yaml:"secondary" mapstructure:"secondary"`
	FIPS      FIPSConfig      `yaml:"fips" mapstructure:"fips"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// PrimaryConfig configures the primary ZIP/county CSV source.
type PrimaryConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// Timeout returns the primary fetch timeout as a duration.
func (c PrimaryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// SecondaryConfig configures the optional crosswalk warehouse.
type SecondaryConfig struct {
	Driver      string  `yaml:"driver" mapstructure:"driver"`
	DSN         string  `yaml:"dsn" mapstructure:"dsn"`
	Table       string  `yaml:"table" mapstructure:"table"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MinResRatio float64 `yaml:"min_res_ratio" mapstructure:"min_res_ratio"`
}

// Timeout returns the secondary query timeout as a duration.
func (c SecondaryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Enabled reports whether a warehouse driver and DSN are configured.
func (c SecondaryConfig) Enabled() bool {
	d := strings.ToLower(strings.TrimSpace(c.Driver))
	return d != "" && d != "none" && c.DSN != ""
}

// FIPSConfig selects the FIPS reference table.
type FIPSConfig struct {
	TablePath     string `yaml:"table_path" mapstructure:"table_path"`
	TableEncoding string `yaml:"table_encoding" mapstructure:"table_encoding"`
}

// FetchConfig holds settings shared by all downloads.
type FetchConfig struct {
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// ServerConfig configures the lookup server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ZIPCOUNTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("primary.url", DefaultPrimaryURL)
	v.SetDefault("primary.timeout_secs", 60)
	v.SetDefault("primary.user_agent", "zipcounty/1.0")
	v.SetDefault("secondary.driver", "none")
	v.SetDefault("secondary.dsn", "")
	v.SetDefault("secondary.table", "zip_county_crosswalk")
	v.SetDefault("secondary.timeout_secs", 60)
	v.SetDefault("secondary.min_res_ratio", 0.5)
	v.SetDefault("fips.table_path", "")
	v.SetDefault("fips.table_encoding", "utf8")
	v.SetDefault("fetch.temp_dir", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Secondary.Driver)) {
	case "", "none", "postgres", "sqlite":
	default:
		return eris.Errorf("config: unknown secondary.driver %q (valid: none, postgres, sqlite)", c.Secondary.Driver)
	}
	switch strings.ToLower(c.FIPS.TableEncoding) {
	case "", "utf8", "utf-8", "latin1", "iso-8859-1":
	default:
		return eris.Errorf("config: unknown fips.table_encoding %q (valid: utf8, latin1)", c.FIPS.TableEncoding)
	}
	if c.Primary.TimeoutSecs <= 0 {
		return eris.New("config: primary.timeout_secs must be positive")
	}
	if c.Secondary.MinResRatio < 0 || c.Secondary.MinResRatio > 1 {
		return eris.Errorf("config: secondary.min_res_ratio %v out of range [0,1]", c.Secondary.MinResRatio)
	}
	return nil
}

// InitLogger initializes the global zap logger. Both formats write to stderr
// so stdout stays reserved for report output.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.DisableStacktrace = true
	}
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

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
