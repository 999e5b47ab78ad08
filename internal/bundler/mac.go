package bundler

import (
	"context"
	"path"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/Norgate-AV/bundler/internal/codes"
	"github.com/Norgate-AV/bundler/internal/compiler"
	"github.com/Norgate-AV/bundler/internal/config"
	"github.com/Norgate-AV/bundler/internal/postprocess"
)

// PluginsDir holds the bundled libraries, relative to the executables
const PluginsDir = "Plugins"

// Mac builds <App>.app bundles
type Mac struct {
	hooks
}

// NewMac creates the macOS bundler
func NewMac(runner compiler.Runner, logger *log.Logger) *Mac {
	return &Mac{hooks{runner: runner, logger: logger}}
}

func (m *Mac) Requirements(cfg *config.Config) []compiler.Requirement {
	return []compiler.Requirement{
		requirement(cfg, postprocess.InstallNameTool, "rewrite library search paths"),
	}
}

func (m *Mac) appDir(cfg *config.Config) string {
	return filepath.Join(cfg.BundleLocation(), cfg.AppName+".app")
}

func (m *Mac) BundledExecutableDirectory(cfg *config.Config) string {
	return filepath.Join(m.appDir(cfg), "Contents", "MacOS")
}

func (m *Mac) BundledResourcesDirectory(cfg *config.Config) string {
	return filepath.Join(m.appDir(cfg), "Contents", "Resources")
}

func (m *Mac) Bundle(ctx context.Context, cfg *config.Config) error {
	appDir := m.appDir(cfg)
	macosDir := m.BundledExecutableDirectory(cfg)
	resourcesDir := m.BundledResourcesDirectory(cfg)
	pluginsDir := filepath.Join(macosDir, PluginsDir)

	m.logger.Info("bundling", "app", appDir)

	if err := recreate(appDir, macosDir, resourcesDir, pluginsDir); err != nil {
		return err
	}

	libs, err := CompiledLibraries(cfg)
	if err != nil {
		return err
	}

	renames, err := installNames(libs)
	if err != nil {
		return err
	}

	rewriter := postprocess.NewRewriter(m.runner, cfg.Tool(postprocess.InstallNameTool), m.logger)

	for _, exe := range cfg.Executables {
		src := cfg.CompiledExecutablePath(exe)
		dst := filepath.Join(macosDir, cfg.BundledExecutableName(exe))

		if err := copyFile(src, dst); err != nil {
			return err
		}

		if err := rewriter.Rewrite(ctx, dst, PluginsDir, renames); err != nil {
			return err
		}
	}

	for _, lib := range libs {
		dst := filepath.Join(pluginsDir, filepath.Base(lib))

		if err := copyFile(lib, dst); err != nil {
			return err
		}

		if cfg.IncludeDebugSymbols {
			symbols := filepath.Join(filepath.Dir(lib), cfg.Target.DebugSymbolsName(filepath.Base(lib)))
			if exists(symbols) {
				if err := copyDir(symbols, filepath.Join(pluginsDir, filepath.Base(symbols))); err != nil {
					return err
				}
			}
		}

		if err := rewriter.Rewrite(ctx, dst, PluginsDir, renames); err != nil {
			return err
		}
	}

	var icon string
	if src := postprocess.FindIcon(cfg.Icons, "icns"); src != "" {
		icon = cfg.AppName + ".icns"
		if err := copyFile(src, filepath.Join(resourcesDir, icon)); err != nil {
			return err
		}
	}

	info := PlistInfo{
		BundleName:        cfg.AppName,
		BundleDisplayName: cfg.AppName,
		ExecutableName:    cfg.BundledExecutableName(mainExecutable(cfg)),
		Identifier:        cfg.Identifier,
		Version:           cfg.Version.String(),
		Icon:              icon,
	}

	plist := filepath.Join(appDir, "Contents", "Info.plist")
	if err := WritePlist(plist, cfg.PlistFile, info); err != nil {
		return err
	}

	// macOS reads Contents/Info.plist, the resources copy sits next to the build metadata
	return copyFile(plist, filepath.Join(resourcesDir, "Info.plist"))
}

// installNames maps the file name in each library's identity to the name it
// is bundled under, so references to e.g. libz.1.dylib resolve to libzlib.dylib
func installNames(libs []string) (map[string]string, error) {
	renames := make(map[string]string, len(libs))

	for _, lib := range libs {
		lc, err := postprocess.ReadLoadCommands(lib)
		if err != nil {
			return nil, codes.Edit("could not read load commands", lib, err)
		}

		if lc.ID != "" {
			renames[path.Base(lc.ID)] = filepath.Base(lib)
		}
	}

	return renames, nil
}

// mainExecutable is the one launched when the bundle is opened
func mainExecutable(cfg *config.Config) config.Executable {
	for _, exe := range cfg.Executables {
		if exe == config.App {
			return exe
		}
	}

	if len(cfg.Executables) > 0 {
		return cfg.Executables[0]
	}

	return config.App
}
