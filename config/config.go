package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"dvf-analyzer/models"
	"dvf-analyzer/services"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Store    StoreConfig    `envconfig:"STORE"`
	Postgres PostgresConfig `envconfig:"POSTGRES"`
	API      APIConfig      `envconfig:"DVF_API"`
	Analysis AnalysisConfig `envconfig:"ANALYSIS"`
	HTTP     HTTPConfig     `envconfig:"HTTP"`
	Watcher  WatcherConfig  `envconfig:"WATCH"`
	Logging  LoggingConfig  `envconfig:"LOG"`
	Export   ExportConfig   `envconfig:"EXPORT"`
}

// StoreConfig selects the SQL cache backend. "none" disables caching.
type StoreConfig struct {
	Driver     string `envconfig:"DRIVER" default:"sqlite" validate:"oneof=postgres sqlite none"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"./output/dvf.db"`
}

// PostgresConfig holds the connection parameters used when STORE_DRIVER=postgres.
type PostgresConfig struct {
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     string `envconfig:"PORT" default:"5432"`
	User     string `envconfig:"USER" default:"dvf"`
	Password string `envconfig:"PASSWORD" default:"dvf123"`
	DB       string `envconfig:"DB" default:"dvf_db"`
	SSLMode  string `envconfig:"SSLMODE" default:"disable"`
}

// APIConfig points at the DVF transactions API.
type APIConfig struct {
	BaseURL      string        `envconfig:"BASE_URL" default:"https://api.cquest.org/dvf" validate:"required,url"`
	Timeout      time.Duration `envconfig:"TIMEOUT" default:"30s" validate:"gt=0"`
	PropertyType string        `envconfig:"PROPERTY_TYPE" default:"Appartement" validate:"required"`
}

// AnalysisConfig holds the analyzer options.
type AnalysisConfig struct {
	MaxResults     int       `envconfig:"MAX_RESULTS" default:"100" yaml:"max_results" validate:"gt=0"`
	YieldRates     []float64 `envconfig:"YIELD_RATES" default:"5,6,7" yaml:"yield_rates" validate:"min=1,dive,gt=0"`
	OutlierPolicy  string    `envconfig:"OUTLIER_POLICY" default:"quartile" yaml:"outlier_policy" validate:"oneof=quartile trim"`
	QuartileMethod string    `envconfig:"QUARTILE_METHOD" default:"inclusive" yaml:"quartile_method" validate:"oneof=inclusive exclusive"`
	ExamplesLimit  int       `envconfig:"EXAMPLES_LIMIT" default:"5" yaml:"examples_limit" validate:"gt=0"`
	Profile        string    `envconfig:"PROFILE" yaml:"-"`
}

// HTTPConfig configures the tool server.
type HTTPConfig struct {
	Addr         string        `envconfig:"ADDR" default:":8080" validate:"required"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"60s"`
	SessionTTL   time.Duration `envconfig:"SESSION_TTL" default:"1h"`
}

// WatcherConfig configures the inbox watcher.
type WatcherConfig struct {
	InboxDir  string `envconfig:"INBOX_DIR" default:"./inbox" validate:"required"`
	OutputDir string `envconfig:"OUTPUT_DIR" default:"./output/reports" validate:"required"`
	Workers   int    `envconfig:"WORKERS" default:"2" validate:"gt=0"`
}

// LoggingConfig configures utils.Logger.
type LoggingConfig struct {
	Level      string `envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format     string `envconfig:"FORMAT" default:"text" validate:"oneof=text json"`
	Output     string `envconfig:"OUTPUT" default:"stdout"`
	MaxAgeDays int    `envconfig:"MAX_AGE_DAYS" default:"7" validate:"gte=0"`
}

// ExportConfig holds default export paths. Empty disables the export.
type ExportConfig struct {
	CSVPath  string `envconfig:"CSV_PATH"`
	XLSXPath string `envconfig:"XLSX_PATH"`
}

// Load reads the .env file when present, decodes the environment into a
// Config, applies the optional analysis profile and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv is Load without the .env file.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if cfg.Analysis.Profile != "" {
		p, err := LoadProfile(cfg.Analysis.Profile)
		if err != nil {
			return nil, err
		}
		p.Apply(&cfg.Analysis)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: invalid %s (%s=%s): %w", fe.Namespace(), fe.Tag(), fe.Param(), err)
		}
		return fmt.Errorf("config: validate: %w", err)
	}
	return nil
}

// DSN returns the connection string of the configured store driver.
func (c *Config) DSN() string {
	if c.Store.Driver == "sqlite" {
		return c.Store.SQLitePath
	}
	p := c.Postgres
	return "host=" + p.Host +
		" port=" + p.Port +
		" user=" + p.User +
		" password=" + p.Password +
		" dbname=" + p.DB +
		" sslmode=" + p.SSLMode
}

// AnalyzerOptions converts the analysis group into services.Options.
func (c *Config) AnalyzerOptions() (services.Options, error) {
	policy, err := models.ParseOutlierPolicy(c.Analysis.OutlierPolicy)
	if err != nil {
		return services.Options{}, fmt.Errorf("config: %w", err)
	}
	method, err := models.ParseQuartileMethod(c.Analysis.QuartileMethod)
	if err != nil {
		return services.Options{}, fmt.Errorf("config: %w", err)
	}
	return services.Options{
		Outliers:      services.OutlierConfig{Policy: policy, Method: method},
		YieldRates:    c.Analysis.YieldRates,
		ExamplesLimit: c.Analysis.ExamplesLimit,
	}, nil
}

// EnvFileExists reports whether a .env file is present in the working directory.
func EnvFileExists() bool {
	_, err := os.Stat(".env")
	return err == nil
}
