package settings

import (
	"fmt"
	"github.com/sardine-ai/go-installer-config/mirror"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INSTALLER_"

// Settings is the configuration of the installer backend itself.
type Settings struct {
	Listen  string          `yaml:"listen"`
	Root    string          `yaml:"root"`
	Log     LogSettings     `yaml:"log"`
	History HistorySettings `yaml:"history"`
	Mirror  mirror.Config   `yaml:"mirror"`
}

// LogSettings holds logging options
type LogSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// HistorySettings controls git history of config writes
type HistorySettings struct {
	Enabled     bool   `yaml:"enabled"`
	AuthorName  string `yaml:"authorName"`
	AuthorEmail string `yaml:"authorEmail"`
}

// Default returns the default settings
func Default() *Settings {
	return &Settings{
		Listen: ":8000",
		Root:   ".",
		Log: LogSettings{
			Level:  "info",
			Format: "text",
		},
		History: HistorySettings{
			Enabled:     false,
			AuthorName:  "installer",
			AuthorEmail: "installer@localhost",
		},
	}
}

// Load builds settings from defaults, the YAML file at path (skipped when
// path is empty) and environment overrides, then validates them.
func Load(path string) (*Settings, error) {
	s := Default()

	if path != "" {
		if err := loadFromFile(s, path); err != nil {
			return nil, fmt.Errorf("failed to load settings from %s: %w", path, err)
		}
	}

	applyEnvOverrides(s)

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("settings validation failed: %w", err)
	}
	return s, nil
}

// loadFromFile loads settings from a YAML file
func loadFromFile(s *Settings, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, s)
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(s *Settings) {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	str("LISTEN", &s.Listen)
	str("ROOT", &s.Root)
	str("LOG_LEVEL", &s.Log.Level)
	str("LOG_FORMAT", &s.Log.Format)
	str("MIRROR_TYPE", &s.Mirror.Type)
	str("MIRROR_BUCKET", &s.Mirror.Bucket)
	str("MIRROR_PREFIX", &s.Mirror.Prefix)
	str("MIRROR_REGION", &s.Mirror.Region)
	str("MIRROR_ENDPOINT", &s.Mirror.Endpoint)
	str("MIRROR_URL", &s.Mirror.URL)
	str("MIRROR_API_KEY", &s.Mirror.APIKey)
	str("MIRROR_PATH", &s.Mirror.Path)

	if v := os.Getenv(EnvPrefix + "HISTORY"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			s.History.Enabled = enabled
		} else {
			logrus.WithError(err).Warnf("ignoring %sHISTORY=%q", EnvPrefix, v)
		}
	}
}

// Validate checks the settings for values the server cannot run with.
func (s *Settings) Validate() error {
	if s.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if s.Root == "" {
		return fmt.Errorf("root directory is required")
	}
	if _, err := logrus.ParseLevel(s.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(s.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %s, must be one of: [text json]", s.Log.Format)
	}
	if s.History.Enabled && (s.History.AuthorName == "" || s.History.AuthorEmail == "") {
		return fmt.Errorf("history author name and email are required when history is enabled")
	}
	if _, err := mirror.New(s.Mirror); err != nil {
		return err
	}
	return nil
}

// ConfigureLogging applies the log settings to the standard logrus logger.
func (s *Settings) ConfigureLogging() error {
	level, err := logrus.ParseLevel(s.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	if strings.ToLower(s.Log.Format) == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
