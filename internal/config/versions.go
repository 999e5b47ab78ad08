package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadLibraryVersions merges the versions file with LIBRARY=version overrides.
// Overrides win over the file.
func LoadLibraryVersions(versionsFile string, overrides []string) (map[string]string, error) {
	versions := make(map[string]string)

	if versionsFile != "" {
		v := viper.New()
		v.SetConfigFile(versionsFile)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read versions file %s: %w", versionsFile, err)
		}

		for name, value := range v.AllSettings() {
			version, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("version of %s in %s must be a string", name, versionsFile)
			}

			versions[strings.ToLower(name)] = version
		}
	}

	for _, override := range overrides {
		name, version, ok := strings.Cut(override, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		version = strings.TrimSpace(version)

		if !ok || name == "" || version == "" {
			return nil, fmt.Errorf("invalid library version %q, expected LIBRARY=version", override)
		}

		versions[name] = version
	}

	return versions, nil
}
