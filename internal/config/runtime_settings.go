package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"

	"github.com/MimeLyc/term-linker/internal/hyperlink"
)

const DefaultRuntimeSettingsFile = "/app/config/settings.json"

// RuntimeSettings are the settings that can change while the service runs.
type RuntimeSettings struct {
	CronExpr        string `json:"cron_expr"`
	DefaultLanguage string `json:"default_language"`
	Capitalize      string `json:"capitalize"`
	Concurrency     int    `json:"concurrency"`
}

func RuntimeSettingsFilePath() string {
	return getEnvString("SETTINGS_FILE", DefaultRuntimeSettingsFile)
}

func (s RuntimeSettings) Validate() error {
	if strings.TrimSpace(s.CronExpr) == "" {
		return fmt.Errorf("cron_expr is required")
	}
	if _, err := cron.ParseStandard(s.CronExpr); err != nil {
		return fmt.Errorf("invalid cron_expr: %w", err)
	}
	if strings.TrimSpace(s.DefaultLanguage) == "" {
		return fmt.Errorf("default_language is required")
	}
	if _, err := language.Parse(s.DefaultLanguage); err != nil {
		return fmt.Errorf("invalid default_language: %w", err)
	}
	if _, err := hyperlink.ParseCapitalizePolicy(s.Capitalize); err != nil {
		return fmt.Errorf("invalid capitalize: %w", err)
	}
	if s.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	return nil
}

func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		CronExpr:        c.Link.CronExpr,
		DefaultLanguage: c.Link.DefaultLanguage.String(),
		Capitalize:      c.Link.Capitalize.String(),
		Concurrency:     c.Link.Concurrency,
	}
}

// Apply overlays the usable fields of settings onto c.
func (c *LinkConfig) Apply(settings RuntimeSettings) {
	if strings.TrimSpace(settings.CronExpr) != "" {
		c.CronExpr = settings.CronExpr
	}
	if tag, err := language.Parse(settings.DefaultLanguage); err == nil {
		c.DefaultLanguage = tag
	}
	if strings.TrimSpace(settings.Capitalize) != "" {
		if policy, err := hyperlink.ParseCapitalizePolicy(settings.Capitalize); err == nil {
			c.Capitalize = policy
		}
	}
	if settings.Concurrency > 0 {
		c.Concurrency = settings.Concurrency
	}
}

func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		c.Link.Apply(settings)
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}
