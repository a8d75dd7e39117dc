package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".voxrelay"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("VOXRELAY_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // Use defaults if we can't find config path
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	// If file doesn't exist, continue with defaults

	// Override with environment variables for each group
	envconfig.Process("VOXRELAY_PATHS", &cfg.Paths)
	envconfig.Process("VOXRELAY_MODEL", &cfg.Model)
	envconfig.Process("VOXRELAY_VOICE", &cfg.Voice)
	envconfig.Process("VOXRELAY_OPENAI", &cfg.Providers.OpenAI)
	envconfig.Process("VOXRELAY_CHANNELS_TELEGRAM", &cfg.Channels.Telegram)
	envconfig.Process("VOXRELAY_CHANNELS_SLACK", &cfg.Channels.Slack)
	envconfig.Process("VOXRELAY_CHANNELS_WHATSAPP", &cfg.Channels.WhatsApp)
	envconfig.Process("VOXRELAY_GATEWAY", &cfg.Gateway)
	envconfig.Process("VOXRELAY_AUDIT", &cfg.Audit)

	// Fallback for API key and bot token
	if cfg.Providers.OpenAI.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.Providers.OpenAI.APIKey = key
		}
	}
	if cfg.Channels.Telegram.Token == "" {
		if tok := os.Getenv("TELEGRAM_BOT_TOKEN"); tok != "" {
			cfg.Channels.Telegram.Token = tok
		}
	}

	// Expand ~ in paths
	if strings.HasPrefix(cfg.Paths.DataDir, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Paths.DataDir = filepath.Join(home, cfg.Paths.DataDir[1:])
		}
	}

	if cfg.Model.DefaultPersonality == "" {
		cfg.Model.DefaultPersonality = DefaultPersonality
	}

	return cfg, nil
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
