package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"go.yaml.in/yaml/v4"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=stockflow port=5432 sslmode=disable"

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	DBDriver    string // postgres | sqlite
	DBLogLevel  string // silent | error | warn | info
	JWTSecret   string
	CORSOrigins string
	ImportKey   string // shared secret for the sync/import/bulk routes
	BodyLimitMB int

	Import ImportConfig
}

// ImportConfig holds the spreadsheet and batch tuning knobs. Zero values fall
// back to the defaults below.
type ImportConfig struct {
	HeaderScanRows int `yaml:"header_scan_rows"`
	HeaderMinScore int `yaml:"header_min_score"`
	MaxRowErrors   int `yaml:"max_row_errors"`
	BulkChunkSize  int `yaml:"bulk_chunk_size"`
}

type fileConfig struct {
	Import ImportConfig `yaml:"import"`
}

func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		HeaderScanRows: 40,
		HeaderMinScore: 4,
		MaxRowErrors:   50,
		BulkChunkSize:  200,
	}
}

// Load reads the environment (and the optional CONFIG_PATH file) and stops the
// process on anything unusable.
func Load() *Config {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	if cfg.DatabaseDSN == defaultDSN {
		log.Println("[WARN] DATABASE_DSN is using the default value, set your own Postgres connection for production.")
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		log.Println("[WARN] CORS_ALLOWED_ORIGINS is using the default value, set your own domain for production.")
	}
	if cfg.ImportKey == "" {
		log.Println("[WARN] IMPORT_KEY is not set, key-gated import routes will reject every request.")
	}

	return cfg
}

func Parse() (*Config, error) {
	cfg := &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseDSN: getEnv("DATABASE_DSN", defaultDSN),
		DBDriver:    getEnv("DB_DRIVER", "postgres"),
		DBLogLevel:  getEnv("DB_LOG_LEVEL", "warn"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		ImportKey:   getEnv("IMPORT_KEY", ""),
		Import:      DefaultImportConfig(),
	}

	limit, err := strconv.Atoi(getEnv("BODY_LIMIT_MB", "20"))
	if err != nil || limit <= 0 {
		return nil, fmt.Errorf("BODY_LIMIT_MB must be a positive integer")
	}
	cfg.BodyLimitMB = limit

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		return nil, fmt.Errorf("DB_DRIVER must be 'postgres' or 'sqlite', got %q", cfg.DBDriver)
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func applyFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	if fc.Import.HeaderScanRows > 0 {
		cfg.Import.HeaderScanRows = fc.Import.HeaderScanRows
	}
	if fc.Import.HeaderMinScore > 0 {
		cfg.Import.HeaderMinScore = fc.Import.HeaderMinScore
	}
	if fc.Import.MaxRowErrors > 0 {
		cfg.Import.MaxRowErrors = fc.Import.MaxRowErrors
	}
	if fc.Import.BulkChunkSize > 0 {
		cfg.Import.BulkChunkSize = fc.Import.BulkChunkSize
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
