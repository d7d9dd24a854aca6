package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	settingsName     = "quill"
	settingsType     = "yaml"
	settingsFileMode = 0o644
)

// Settings is the kernel's own configuration, separate from the per-launch
// connection file: identity the kernel reports and operational switches.
type Settings struct {
	// Language and LanguageVersion identify the evaluator in kernel_info
	// replies.
	Language        string `yaml:"language" mapstructure:"language"`
	LanguageVersion string `yaml:"language_version" mapstructure:"language_version"`

	// Banner is the greeting front-ends show; empty lets the kernel build
	// one from the language identity.
	Banner string `yaml:"banner" mapstructure:"banner"`

	// LogRequests turns on per-request logging.
	LogRequests bool `yaml:"log_requests" mapstructure:"log_requests"`

	// MetricsAddr exposes Prometheus metrics over HTTP when non-empty,
	// e.g. "127.0.0.1:9090".
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr"`
}

// DefaultSettings returns the values used when no settings file exists.
func DefaultSettings() Settings {
	return Settings{
		Language:        "plain",
		LanguageVersion: "",
		Banner:          "",
		LogRequests:     false,
		MetricsAddr:     "",
	}
}

// SettingsDir returns the directory searched for quill.yaml.
func SettingsDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve config directory: %w", err)
	}
	return filepath.Join(base, "quill"), nil
}

// LoadSettings reads quill.yaml from dir, falling back to defaults when the
// file does not exist. An empty dir searches the user config directory.
func LoadSettings(dir string) (Settings, error) {
	if dir == "" {
		var err error
		dir, err = SettingsDir()
		if err != nil {
			return Settings{}, err
		}
	}

	defaults := DefaultSettings()
	v := viper.New()
	v.SetConfigName(settingsName)
	v.SetConfigType(settingsType)
	v.AddConfigPath(dir)
	v.SetDefault("language", defaults.Language)
	v.SetDefault("language_version", defaults.LanguageVersion)
	v.SetDefault("banner", defaults.Banner)
	v.SetDefault("log_requests", defaults.LogRequests)
	v.SetDefault("metrics_addr", defaults.MetricsAddr)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("config: read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("config: decode settings: %w", err)
	}
	return s, nil
}

// Write stores the settings as dir/quill.yaml.
func (s Settings) Write(dir string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("config: encode settings: %w", err)
	}
	path := filepath.Join(dir, settingsName+"."+settingsType)
	if err := writeFileAtomic(path, data, settingsFileMode); err != nil {
		return fmt.Errorf("config: write settings: %w", err)
	}
	return nil
}
