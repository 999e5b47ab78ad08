// Package bundler assembles compiled executables and libraries into the
// bundle layout of each platform.
package bundler

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/Norgate-AV/bundler/internal/cache"
	"github.com/Norgate-AV/bundler/internal/codes"
	"github.com/Norgate-AV/bundler/internal/compiler"
	"github.com/Norgate-AV/bundler/internal/config"
	"github.com/Norgate-AV/bundler/internal/target"
)

// ExecutableOptions is what one executable is compiled with. Hooks may add
// to Env, which is handed to the toolchain as is.
type ExecutableOptions struct {
	Config     *config.Config
	Executable config.Executable
	Env        compiler.Env
}

// NewExecutableOptions starts from the environment shared by all executables
func NewExecutableOptions(cfg *config.Config, exe config.Executable, env compiler.Env) *ExecutableOptions {
	return &ExecutableOptions{
		Config:     cfg,
		Executable: exe,
		Env:        slices.Clone(env),
	}
}

// Bundler is implemented once per platform
type Bundler interface {
	// Requirements lists the platform tools needed by the hooks and Bundle
	Requirements(cfg *config.Config) []compiler.Requirement

	PreCompile(ctx context.Context, opts *ExecutableOptions) error
	CompileBinary(ctx context.Context, opts *ExecutableOptions) error
	PostCompile(ctx context.Context, opts *ExecutableOptions) error

	// Bundle recreates the bundle from the compiled executables and libraries
	Bundle(ctx context.Context, cfg *config.Config) error

	BundledExecutableDirectory(cfg *config.Config) string
	BundledResourcesDirectory(cfg *config.Config) string
}

// New selects the bundler of the configured target's platform
func New(cfg *config.Config, runner compiler.Runner, logger *log.Logger) (Bundler, error) {
	switch cfg.Platform() {
	case target.Mac:
		return NewMac(runner, logger), nil
	case target.Windows:
		return NewWindows(runner, logger), nil
	case target.Linux:
		return NewLinux(runner, logger), nil
	case target.Android:
		return NewAndroid(runner, logger), nil
	}

	return nil, codes.Configurationf("no bundler for target %s", cfg.Target)
}

// CompileBinary runs the toolchain for one executable. It is the compile
// step of every platform.
func CompileBinary(ctx context.Context, runner compiler.Runner, logger *log.Logger, opts *ExecutableOptions) error {
	cmd := compiler.GetBuildCommand(opts.Config, opts.Executable, opts.Env)

	logger.Info("compiling", "executable", opts.Executable, "target", opts.Config.Target, "profile", opts.Config.Profile())

	if err := runner.Run(ctx, cmd); err != nil {
		return codes.New(codes.Toolchain, "could not compile "+string(opts.Executable), opts.Config.CompiledExecutablePath(opts.Executable), err)
	}

	return nil
}

// hooks provides the compile step and no-op hooks shared by the platforms
type hooks struct {
	runner compiler.Runner
	logger *log.Logger
}

func (h hooks) PreCompile(context.Context, *ExecutableOptions) error {
	return nil
}

func (h hooks) CompileBinary(ctx context.Context, opts *ExecutableOptions) error {
	return CompileBinary(ctx, h.runner, h.logger, opts)
}

func (h hooks) PostCompile(context.Context, *ExecutableOptions) error {
	return nil
}

// CompiledLibraries lists the shared libraries installed for the build,
// sorted by name. Debug symbols next to them are left out.
func CompiledLibraries(cfg *config.Config) ([]string, error) {
	dir := cfg.CompiledLibrariesDir()

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, codes.FS("could not list compiled libraries", dir, err)
	}

	suffix := "." + cfg.Target.SharedLibraryExtension()

	var libs []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}

		libs = append(libs, filepath.Join(dir, e.Name()))
	}

	sort.Strings(libs)
	return libs, nil
}

// recreate deletes dir and creates it again, empty, along with the
// directories in subdirs
func recreate(dir string, subdirs ...string) error {
	if err := os.RemoveAll(dir); err != nil {
		return codes.FS("could not remove", dir, err)
	}

	for _, path := range append([]string{dir}, subdirs...) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return codes.FS("could not create directory", path, err)
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	if err := cache.CopyFile(src, dst); err != nil {
		return codes.FS("could not copy "+src, dst, err)
	}

	return nil
}

func copyDir(src, dst string) error {
	if err := cache.CopyDir(src, dst); err != nil {
		return codes.FS("could not copy "+src, dst, err)
	}

	return nil
}

// copyContents merges the tree under src into dst
func copyContents(src, dst string) error {
	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		out := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(out, 0o755)
		}

		return cache.CopyFile(path, out)
	})
	if err != nil {
		return codes.FS("could not copy "+src, dst, err)
	}

	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func requirement(cfg *config.Config, tool, reason string) compiler.Requirement {
	return compiler.Requirement{Tool: cfg.Tool(tool), Reason: reason}
}
