package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rbright/voicecmd/internal/logging"
)

const appDir = "voicecmd"

// ResolvePath applies CLI/XDG/home fallback rules for config.jsonc location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.jsonc"), nil
}

// Dir returns $XDG_CONFIG_HOME/voicecmd or ~/.config/voicecmd.
func Dir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns $XDG_DATA_HOME/voicecmd or ~/.local/share/voicecmd.
func DataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env string, fallback string) (string, error) {
	if base := strings.TrimSpace(os.Getenv(env)); base != "" {
		return filepath.Join(base, appDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(home, fallback, appDir), nil
}

// resolvePaths fills empty store paths with their XDG defaults.
func resolvePaths(cfg *Config) error {
	if cfg.Paths.Profiles == "" || cfg.Paths.Settings == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if cfg.Paths.Profiles == "" {
			cfg.Paths.Profiles = filepath.Join(dir, "profiles")
		}
		if cfg.Paths.Settings == "" {
			cfg.Paths.Settings = filepath.Join(dir, "settings.json")
		}
	}
	if cfg.Paths.Models == "" {
		dir, err := DataDir()
		if err != nil {
			return err
		}
		cfg.Paths.Models = filepath.Join(dir, "models")
	}
	if cfg.History.Path == "" {
		dir, err := logging.StateDir()
		if err != nil {
			return err
		}
		cfg.History.Path = filepath.Join(dir, "history.db")
	}
	return nil
}
