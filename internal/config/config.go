package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceLevelDB  = "leveldb"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	RecordsSource   string        `mapstructure:"RECORDS_SOURCE"`
	RecordsPath     string        `mapstructure:"RECORDS_PATH"`
	RecordsKey      string        `mapstructure:"RECORDS_KEY"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	LevelDBPath     string        `mapstructure:"LEVELDB_PATH"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	MetricsEnabled  bool          `mapstructure:"METRICS_ENABLED"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"RECORDS_SOURCE", "RECORDS_PATH", "RECORDS_KEY",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"LEVELDB_PATH", "CORS_ORIGINS", "METRICS_ENABLED", "SHUTDOWN_TIMEOUT",
	"REQUEST_TIMEOUT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

// Load reads configuration from the environment, falling back to a .env
// file in the working directory when present.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("RECORDS_SOURCE", SourceFile)
	v.SetDefault("RECORDS_PATH", "data/healthRecords.json")
	v.SetDefault("RECORDS_KEY", "healthRecords")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("LEVELDB_PATH", "data/records.ldb")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("REQUEST_TIMEOUT", "5s")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)

	// Bind explicitly so Unmarshal sees variables that have no default.
	for _, k := range keys {
		v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	cfg.RecordsSource = strings.ToLower(strings.TrimSpace(cfg.RecordsSource))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the selected dataset source has what it needs.
func (c *Config) Validate() error {
	switch c.RecordsSource {
	case SourceFile:
		if c.RecordsPath == "" {
			return fmt.Errorf("RECORDS_PATH is required when RECORDS_SOURCE is %q", SourceFile)
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when RECORDS_SOURCE is %q", SourcePostgres)
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	case SourceLevelDB:
		if c.LevelDBPath == "" {
			return fmt.Errorf("LEVELDB_PATH is required when RECORDS_SOURCE is %q", SourceLevelDB)
		}
	default:
		return fmt.Errorf("RECORDS_SOURCE must be %q, %q or %q, got %q",
			SourceFile, SourcePostgres, SourceLevelDB, c.RecordsSource)
	}

	if c.RecordsSource != SourceFile && c.RecordsKey == "" {
		return fmt.Errorf("RECORDS_KEY is required when RECORDS_SOURCE is %q", c.RecordsSource)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}
