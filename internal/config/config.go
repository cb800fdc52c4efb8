package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"

	"github.com/MimeLyc/term-linker/internal/hyperlink"
	"github.com/MimeLyc/term-linker/internal/library"
	"github.com/MimeLyc/term-linker/pkg/log"
)

// Config holds all application configuration.
//
// Environment Variables:
// Link Configuration:
// - LINK_SOURCE_DIRS: Comma-separated document roots (required)
// - LINK_RULES_FILE: Rules file used when no link_rules file is found near a document
// - LINK_OUTPUT_DIR: Output root; empty rewrites documents in place
// - LINK_EXTENSIONS: Comma-separated extensions to scan (default: .html,.htm,.md,.markdown,.txt)
// - LINK_DEFAULT_LANGUAGE: Language of documents that cannot be detected (default: en)
// - LINK_CAPITALIZE: always | leading-upper | any-upper (default: always)
// - LINK_CONCURRENCY: Documents linked in parallel (default: 4)
// - CRON_EXPR: Library pass schedule (default: 0 * * * *)
// - LINK_WATCH: Queue a pass when documents or rules change (default: false)
//
// HTTP Configuration:
// - HTTP_ADDR: Listen address (default: :8080)
// - HTTP_UI_ENABLED: Serve a static UI from HTTP_UI_DIR (default: false)
// - HTTP_UI_DIR: Static UI directory (default: /app/web)
//
// System Configuration:
// - DATA_DIR: Data directory (default: /app/data)
// - DB_PATH: SQLite database (default: $DATA_DIR/linker.db)
// - LOG_LEVEL: debug | info | warn | error (default: info)
// - LOG_FILE: Write logs to this file instead of stdout (optional)
type Config struct {
	Link   LinkConfig   `json:"link"`
	HTTP   HTTPConfig   `json:"http"`
	System SystemConfig `json:"system"`
}

type LinkConfig struct {
	SourceDirs      []string                   `json:"source_dirs"`
	RulesFile       string                     `json:"rules_file"`
	OutputDir       string                     `json:"output_dir"`
	Extensions      []string                   `json:"extensions"`
	DefaultLanguage language.Tag               `json:"default_language"`
	Capitalize      hyperlink.CapitalizePolicy `json:"capitalize"`
	Concurrency     int                        `json:"concurrency"`
	CronExpr        string                     `json:"cron_expr"`
	Watch           bool                       `json:"watch"`
}

// Sources returns one library source per configured directory. IDs are the
// directory base names, suffixed when two directories share one.
func (c LinkConfig) Sources() []library.SourceConfig {
	ret := make([]library.SourceConfig, 0, len(c.SourceDirs))
	seen := make(map[string]int)
	for _, dir := range c.SourceDirs {
		name := filepath.Base(filepath.Clean(dir))
		id := name
		seen[name]++
		if n := seen[name]; n > 1 {
			id = fmt.Sprintf("%s-%d", name, n)
		}
		ret = append(ret, library.SourceConfig{
			ID:   id,
			Name: name,
			Path: dir,
		})
	}
	return ret
}

type HTTPConfig struct {
	Addr        string `json:"addr"`
	UIEnabled   bool   `json:"ui_enabled"`
	UIStaticDir string `json:"ui_static_dir"`
}

type SystemConfig struct {
	DataDir  string `json:"data_dir"`
	DBFile   string `json:"db_file"`
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`
}

// DBPath returns DB_PATH when set, else linker.db inside the data directory.
func (c *Config) DBPath() string {
	if c.System.DBFile != "" {
		return c.System.DBFile
	}
	return filepath.Join(c.System.DataDir, "linker.db")
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	defaultLanguage, err := language.Parse(getEnvString("LINK_DEFAULT_LANGUAGE", "en"))
	if err != nil {
		return nil, fmt.Errorf("invalid LINK_DEFAULT_LANGUAGE: %w", err)
	}
	capitalize, err := hyperlink.ParseCapitalizePolicy(getEnvString("LINK_CAPITALIZE", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid LINK_CAPITALIZE: %w", err)
	}

	config := &Config{
		Link: LinkConfig{
			SourceDirs:      getEnvList("LINK_SOURCE_DIRS", nil),
			RulesFile:       getEnvString("LINK_RULES_FILE", ""),
			OutputDir:       getEnvString("LINK_OUTPUT_DIR", ""),
			Extensions:      getEnvList("LINK_EXTENSIONS", library.DefaultExtensions),
			DefaultLanguage: defaultLanguage,
			Capitalize:      capitalize,
			Concurrency:     getEnvInt("LINK_CONCURRENCY", 4),
			CronExpr:        getEnvString("CRON_EXPR", "0 * * * *"),
			Watch:           getEnvBool("LINK_WATCH", false),
		},
		HTTP: HTTPConfig{
			Addr:        getEnvString("HTTP_ADDR", ":8080"),
			UIEnabled:   getEnvBool("HTTP_UI_ENABLED", false),
			UIStaticDir: getEnvString("HTTP_UI_DIR", "/app/web"),
		},
		System: SystemConfig{
			DataDir:  getEnvString("DATA_DIR", "/app/data"),
			DBFile:   getEnvString("DB_PATH", ""),
			LogLevel: getEnvString("LOG_LEVEL", "info"),
			LogFile:  getEnvString("LOG_FILE", ""),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	log.Debug("Config: %+v", config)

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// WithSourceDirs overrides LINK_SOURCE_DIRS.
func WithSourceDirs(dirs ...string) Option {
	return func(c *Config) {
		c.Link.SourceDirs = dirs
	}
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if len(c.Link.SourceDirs) == 0 {
		return fmt.Errorf("LINK_SOURCE_DIRS is required")
	}
	if c.Link.Concurrency < 1 {
		return fmt.Errorf("LINK_CONCURRENCY must be at least 1, got %d", c.Link.Concurrency)
	}
	if _, err := cron.ParseStandard(c.Link.CronExpr); err != nil {
		return fmt.Errorf("invalid CRON_EXPR %q: %w", c.Link.CronExpr, err)
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	ret := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ret = append(ret, part)
		}
	}
	return ret
}
