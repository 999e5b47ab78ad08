package config

import (
	"os"
	"path/filepath"
)

// configExtensions are the formats viper is asked to read, in lookup order
var configExtensions = []string{"yml", "yaml", "json", "toml"}

// FindLocalConfig finds local config file by walking up directories
func FindLocalConfig(dir string) string {
	for {
		for _, ext := range configExtensions {
			path := filepath.Join(dir, ".bundler."+ext)

			if _, err := os.Stat(path); err == nil {
				return path
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}

// FindGlobalConfig returns the first config.<ext> found in the user config directory
func FindGlobalConfig(configDir string) string {
	if configDir == "" {
		return ""
	}

	globalDir := filepath.Join(configDir, "bundler")
	for _, ext := range configExtensions {
		path := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
