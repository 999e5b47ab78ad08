package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/Norgate-AV/bundler/internal/target"
)

// Default configuration values
const (
	DefaultAppName  = "App"
	DefaultBuildDir = "target"
	DefaultVerbose  = 0
	DefaultRelease  = false
)

// Config is the fully resolved snapshot of what the user asked for.
// It is built once by Load and never mutated afterwards.
type Config struct {
	// Verbosity level, 0 is quiet
	Verbose int

	// Build in release profile
	Release bool

	// Copy debug symbol bundles next to bundled libraries
	IncludeDebugSymbols bool

	// Compilation target
	Target target.Target

	// Root directory of the project being bundled
	WorkspaceDir string

	// Root of the toolchain build directory
	TargetDir string

	// Output location of the bundle, empty means the default location
	BundleDir string

	// Application metadata
	AppName        string
	Identifier     string
	Author         string
	ExecutableName string
	Version        Version

	// Icon files or, for android, icon resource directories
	Icons []string

	// Mac only: a plist template to use instead of the built-in one
	PlistFile string

	// Third-party libraries to compile and bundle, and their pinned versions
	Libraries       []string
	LibraryVersions map[string]string

	// Optional runtime used by the toolchain while compiling the executables
	RunnerVM    string
	RunnerImage string

	// Executables to compile and bundle
	Executables []Executable

	// Extra toolchain features
	Features []string

	// Explicit paths of external tools, keyed by tool name
	Tools map[string]string

	// Environment handed to every spawned tool in addition to the process environment
	Env map[string]string
}

// Load builds a Config from viper. Defaults are filled from the environment:
// the working directory and the host target.
func Load() (*Config, error) {
	cfg := &Config{
		Verbose:             viper.GetInt("verbose"),
		Release:             viper.GetBool("release"),
		IncludeDebugSymbols: viper.GetBool("include_debug_symbols"),
		WorkspaceDir:        viper.GetString("workspace_dir"),
		TargetDir:           viper.GetString("target_dir"),
		BundleDir:           viper.GetString("bundle_dir"),
		AppName:             viper.GetString("app_name"),
		Identifier:          viper.GetString("identifier"),
		Author:              viper.GetString("author"),
		ExecutableName:      viper.GetString("executable_name"),
		Icons:               viper.GetStringSlice("icons"),
		PlistFile:           viper.GetString("plist_file"),
		Libraries:           viper.GetStringSlice("libraries"),
		RunnerVM:            viper.GetString("runner_vm"),
		RunnerImage:         viper.GetString("runner_image"),
		Features:            viper.GetStringSlice("features"),
		Tools:               viper.GetStringMapString("tools"),
		Env:                 upperKeys(viper.GetStringMapString("env")),
	}

	if cfg.WorkspaceDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}

		cfg.WorkspaceDir = cwd
	}

	var err error
	if t := viper.GetString("target"); t != "" {
		cfg.Target, err = target.Parse(t)
	} else {
		cfg.Target, err = target.Host()
	}
	if err != nil {
		return nil, err
	}

	if cfg.AppName == "" {
		cfg.AppName = DefaultAppName
	}

	if cfg.Identifier == "" {
		cfg.Identifier = cfg.AppName
	}

	if cfg.ExecutableName == "" {
		cfg.ExecutableName = cfg.AppName
	}

	if v := viper.GetString("version"); v != "" {
		if cfg.Version, err = ParseVersion(v); err != nil {
			return nil, err
		}
	} else if cfg.Version, err = DefaultVersion(cfg.WorkspaceDir); err != nil {
		return nil, fmt.Errorf("failed to compute default version: %w", err)
	}

	cfg.Executables, err = parseExecutables(viper.GetStringSlice("executables"), cfg.Target)
	if err != nil {
		return nil, err
	}

	cfg.LibraryVersions, err = LoadLibraryVersions(
		viper.GetString("libraries_versions"),
		viper.GetStringSlice("library_version"),
	)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseExecutables(values []string, t target.Target) ([]Executable, error) {
	if len(values) == 0 {
		if t.Platform() == target.Android {
			return []Executable{AndroidLib}, nil
		}

		return []Executable{Cli, App}, nil
	}

	executables := make([]Executable, 0, len(values))
	for _, value := range values {
		e, err := ParseExecutable(value)
		if err != nil {
			return nil, err
		}

		executables = append(executables, e)
	}

	return executables, nil
}

// Validate checks names and resolves every path to an absolute one
func (c *Config) Validate() error {
	if strings.ContainsAny(c.AppName, `/\`) {
		return fmt.Errorf("invalid app name: %q", c.AppName)
	}

	if strings.ContainsAny(c.ExecutableName, `/\`) {
		return fmt.Errorf("invalid executable name: %q", c.ExecutableName)
	}

	if abs, err := filepath.Abs(c.WorkspaceDir); err == nil {
		c.WorkspaceDir = abs
	}

	if c.TargetDir == "" {
		c.TargetDir = filepath.Join(c.WorkspaceDir, DefaultBuildDir)
	}

	for _, path := range []*string{&c.TargetDir, &c.BundleDir, &c.PlistFile, &c.RunnerVM, &c.RunnerImage} {
		if *path == "" {
			continue
		}

		abs, err := filepath.Abs(*path)
		if err != nil {
			return fmt.Errorf("invalid path %q: %v", *path, err)
		}

		*path = abs
	}

	for i, icon := range c.Icons {
		abs, err := filepath.Abs(icon)
		if err != nil {
			return fmt.Errorf("invalid icon path: %v", err)
		}

		c.Icons[i] = abs
	}

	for i, name := range c.Libraries {
		c.Libraries[i] = strings.ToLower(strings.TrimSpace(name))
	}

	return nil
}

// Profile is "release" or "debug"
func (c *Config) Profile() string {
	if c.Release {
		return "release"
	}

	return "debug"
}

// Platform of the resolved target
func (c *Config) Platform() target.Platform {
	return c.Target.Platform()
}

// CompilationDir is where the toolchain leaves compiled executables
func (c *Config) CompilationDir() string {
	return filepath.Join(c.TargetDir, c.Target.String(), c.Profile())
}

// CompiledExecutablePath is the path of e after compilation
func (c *Config) CompiledExecutablePath(e Executable) string {
	return filepath.Join(c.CompilationDir(), c.CompiledExecutableName(e))
}

// DefaultBundleLocation is used when no bundle directory is given
func (c *Config) DefaultBundleLocation() string {
	return filepath.Join(c.TargetDir, c.Target.String(), c.Profile(), "bundle")
}

// BundleLocation is the directory the bundle root is created in
func (c *Config) BundleLocation() string {
	if c.BundleDir != "" {
		return c.BundleDir
	}

	return c.DefaultBundleLocation()
}

// CompiledLibrariesDir holds the compiled third-party libraries of this target and profile
func (c *Config) CompiledLibrariesDir() string {
	return filepath.Join(c.CompilationDir(), "shared_libraries")
}

// ThirdPartySourcesDir is shared between targets and profiles
func (c *Config) ThirdPartySourcesDir() string {
	return filepath.Join(c.WorkspaceDir, "libs")
}

// ThirdPartyBuildDir is the per target and profile third-party cache root
func (c *Config) ThirdPartyBuildDir() string {
	return filepath.Join(c.TargetDir, "third_party", c.Target.String(), c.Profile())
}

// Tool returns the configured path of an external tool, or its bare name
func (c *Config) Tool(name string) string {
	if path, ok := c.Tools[name]; ok && path != "" {
		return path
	}

	return name
}

// viper folds keys to lower case, environment variable names are upper case
func upperKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToUpper(k)] = v
	}

	return out
}

// EnvList returns Env as sorted KEY=VALUE pairs
func (c *Config) EnvList() []string {
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k+"="+c.Env[k])
	}

	return list
}
