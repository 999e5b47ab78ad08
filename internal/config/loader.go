package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Norgate-AV/bundler/internal/codes"
)

// flagKeys maps viper keys to the command flags that override them
var flagKeys = map[string]string{
	"verbose":               "verbose",
	"release":               "release",
	"include_debug_symbols": "include-debug-symbols",
	"target":                "target",
	"target_dir":            "target-dir",
	"bundle_dir":            "bundle-dir",
	"workspace_dir":         "workspace-dir",
	"app_name":              "app-name",
	"identifier":            "identifier",
	"author":                "author",
	"version":               "app-version",
	"executable_name":       "executable-name",
	"icons":                 "icons",
	"plist_file":            "plist-file",
	"libraries":             "libraries",
	"libraries_versions":    "libraries-versions",
	"library_version":       "library-version",
	"runner_vm":             "runner-vm",
	"runner_image":          "runner-image",
	"executables":           "executables",
	"features":              "features",
}

// Loader handles configuration loading from various sources
type Loader struct {
	// configDir is the user configuration directory holding bundler/config.<ext>
	configDir string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = os.Getenv("APPDATA")
	}

	return &Loader{configDir: configDir}
}

// Load resolves the options of a compile, bundle or build invocation.
// Any failure is a configuration error.
func (l *Loader) Load(cmd *cobra.Command) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.bindCommandFlags(cmd)
	l.loadLocalConfig()

	cfg, err := Load()
	if err != nil {
		return nil, codes.New(codes.Configuration, "could not resolve options", "", err)
	}

	if err := l.loadDotEnv(cfg); err != nil {
		return nil, codes.New(codes.Configuration, "could not read .env", cfg.WorkspaceDir, err)
	}

	return cfg, nil
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("app_name", DefaultAppName)
	viper.SetDefault("verbose", DefaultVerbose)
	viper.SetDefault("release", DefaultRelease)
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	if path := FindGlobalConfig(l.configDir); path != "" {
		viper.SetConfigFile(path)
		_ = viper.ReadInConfig()
	}
}

// loadLocalConfig merges the nearest .bundler.<ext> above the workspace
func (l *Loader) loadLocalConfig() {
	dir := viper.GetString("workspace_dir")
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return // Load reports the working directory failure
		}

		dir = cwd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return
	}

	if localPath := FindLocalConfig(abs); localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	for key, name := range flagKeys {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			_ = viper.BindPFlag(key, flag)
		}
	}
}

// loadDotEnv reads <workspace>/.env without touching the process environment.
// Values from the config file win over the .env file.
func (l *Loader) loadDotEnv(cfg *Config) error {
	path := filepath.Join(cfg.WorkspaceDir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return err
	}

	if cfg.Env == nil {
		cfg.Env = make(map[string]string, len(values))
	}

	for k, v := range values {
		if _, ok := cfg.Env[k]; !ok {
			cfg.Env[k] = v
		}
	}

	return nil
}
