package bundler

import (
	"context"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/Norgate-AV/bundler/internal/compiler"
	"github.com/Norgate-AV/bundler/internal/config"
)

// Linux builds <App>/bin directories like Windows, without resources
type Linux struct {
	hooks
}

// NewLinux creates the Linux bundler
func NewLinux(runner compiler.Runner, logger *log.Logger) *Linux {
	return &Linux{hooks{runner: runner, logger: logger}}
}

func (l *Linux) Requirements(*config.Config) []compiler.Requirement {
	return nil
}

func (l *Linux) appDir(cfg *config.Config) string {
	return filepath.Join(cfg.BundleLocation(), cfg.AppName)
}

func (l *Linux) BundledExecutableDirectory(cfg *config.Config) string {
	return filepath.Join(l.appDir(cfg), "bin")
}

func (l *Linux) BundledResourcesDirectory(cfg *config.Config) string {
	return filepath.Join(l.appDir(cfg), "share")
}

func (l *Linux) Bundle(_ context.Context, cfg *config.Config) error {
	l.logger.Info("bundling", "app", l.appDir(cfg))
	return bundleFlat(cfg, l.appDir(cfg), l.BundledExecutableDirectory(cfg), false)
}
