package bundler

import (
	"context"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/Norgate-AV/bundler/internal/codes"
	"github.com/Norgate-AV/bundler/internal/compiler"
	"github.com/Norgate-AV/bundler/internal/config"
	"github.com/Norgate-AV/bundler/internal/postprocess"
)

// ResourceCompiler compiles the staged resource script while the executable links
const ResourceCompiler = "rc"

// Windows builds <App>/bin directories with executables and DLLs side by side
type Windows struct {
	hooks
}

// NewWindows creates the Windows bundler
func NewWindows(runner compiler.Runner, logger *log.Logger) *Windows {
	return &Windows{hooks{runner: runner, logger: logger}}
}

func (w *Windows) Requirements(cfg *config.Config) []compiler.Requirement {
	return []compiler.Requirement{
		requirement(cfg, ResourceCompiler, "embed version resources"),
		requirement(cfg, postprocess.Editbin, "set the stack size of executables"),
	}
}

// TempDir is where resource scripts are staged during compilation
func (w *Windows) TempDir(cfg *config.Config) string {
	return filepath.Join(cfg.WorkspaceDir, "temp")
}

// PreCompile stages the resource script and manifest of the executable and
// points the toolchain at them
func (w *Windows) PreCompile(_ context.Context, opts *ExecutableOptions) error {
	info := postprocess.NewResourceInfo(opts.Config, opts.Executable)

	rc, err := postprocess.StageResources(w.TempDir(opts.Config), info)
	if err != nil {
		return err
	}

	w.logger.Debug("staged resources", "script", rc)
	opts.Env = opts.Env.With(compiler.EnvEmbedResources, rc)

	return nil
}

// PostCompile removes the staged resources and enlarges the stack of the
// compiled executable
func (w *Windows) PostCompile(ctx context.Context, opts *ExecutableOptions) error {
	temp := w.TempDir(opts.Config)
	if err := os.RemoveAll(temp); err != nil {
		return codes.FS("could not remove", temp, err)
	}

	patcher := postprocess.NewStackPatcher(w.runner, opts.Config.Tool(postprocess.Editbin), w.logger)
	return patcher.Patch(ctx, opts.Config.CompiledExecutablePath(opts.Executable))
}

func (w *Windows) appDir(cfg *config.Config) string {
	return filepath.Join(cfg.BundleLocation(), cfg.AppName)
}

func (w *Windows) BundledExecutableDirectory(cfg *config.Config) string {
	return filepath.Join(w.appDir(cfg), "bin")
}

func (w *Windows) BundledResourcesDirectory(cfg *config.Config) string {
	return filepath.Join(w.appDir(cfg), "share")
}

func (w *Windows) Bundle(_ context.Context, cfg *config.Config) error {
	w.logger.Info("bundling", "app", w.appDir(cfg))
	return bundleFlat(cfg, w.appDir(cfg), w.BundledExecutableDirectory(cfg), !cfg.Release)
}

// bundleFlat copies executables and libraries into one directory. With
// symbols set, executables must come with their debug symbols and libraries
// bring theirs when they have any.
func bundleFlat(cfg *config.Config, appDir, binDir string, symbols bool) error {
	if err := recreate(appDir, binDir); err != nil {
		return err
	}

	for _, exe := range cfg.Executables {
		src := cfg.CompiledExecutablePath(exe)
		dst := filepath.Join(binDir, cfg.BundledExecutableName(exe))

		if err := copyFile(src, dst); err != nil {
			return err
		}

		name := cfg.Target.DebugSymbolsName(filepath.Base(src))
		if !symbols || name == "" {
			continue
		}

		if err := copyFile(filepath.Join(filepath.Dir(src), name), filepath.Join(binDir, cfg.Target.DebugSymbolsName(filepath.Base(dst)))); err != nil {
			return err
		}
	}

	libs, err := CompiledLibraries(cfg)
	if err != nil {
		return err
	}

	for _, lib := range libs {
		if err := copyFile(lib, filepath.Join(binDir, filepath.Base(lib))); err != nil {
			return err
		}

		name := cfg.Target.DebugSymbolsName(filepath.Base(lib))
		if !symbols || name == "" {
			continue
		}

		if src := filepath.Join(filepath.Dir(lib), name); exists(src) {
			if err := copyFile(src, filepath.Join(binDir, name)); err != nil {
				return err
			}
		}
	}

	return nil
}
