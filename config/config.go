package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is read when Load is called with an empty path.
const ConfigPath = "library.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	DBFile    string `yaml:"dbFile"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
	Autosave  bool   `yaml:"autosave"`
}

// Default returns the configuration used when no file is present.
func Default() FileConfig {
	return FileConfig{
		DBFile:    "library.db",
		LogLevel:  "info",
		LogFormat: "text",
		Autosave:  true,
	}
}

// Load reads config from path (defaults to library.yaml). A missing file is
// not an error; the defaults are used and env overrides still apply.
func Load(path string) (FileConfig, error) {
	cfg := Default()
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	// Override with environment variables
	if v := os.Getenv("LIBRARY_DB_FILE"); v != "" {
		cfg.DBFile = v
	}
	if v := os.Getenv("LIBRARY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LIBRARY_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("LIBRARY_AUTOSAVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Autosave = b
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.DBFile) == "" {
		return errors.New("config: dbFile is required")
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return err
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: logFormat must be text or json, got %q", cfg.LogFormat)
	}
	return nil
}

// NewLogger builds the slog logger described by cfg, writing to w.
func (cfg FileConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown logLevel %q", s)
	}
}
