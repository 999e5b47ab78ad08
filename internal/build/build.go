// Package build drives one build through its stages, from resolved options
// to a bundle with exported metadata.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/Norgate-AV/bundler/internal/bundler"
	"github.com/Norgate-AV/bundler/internal/cache"
	"github.com/Norgate-AV/bundler/internal/codes"
	"github.com/Norgate-AV/bundler/internal/compiler"
	"github.com/Norgate-AV/bundler/internal/config"
	"github.com/Norgate-AV/bundler/internal/deps"
	"github.com/Norgate-AV/bundler/internal/library"
)

// Stage is how far a build got. Stages are entered in order, once.
type Stage int

const (
	Resolved Stage = iota
	RequirementsChecked
	ExecutablesCompiled
	LibrariesCompiled
	PostProcessed
	Bundled
	MetadataExported
)

var stageNames = map[Stage]string{
	Resolved:            "resolved",
	RequirementsChecked: "requirements checked",
	ExecutablesCompiled: "executables compiled",
	LibrariesCompiled:   "libraries compiled",
	PostProcessed:       "post-processed",
	Bundled:             "bundled",
	MetadataExported:    "metadata exported",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}

	return fmt.Sprintf("stage(%d)", int(s))
}

// Metadata file names
const (
	BuildInfoFile = "build-info.json"
	VMInfoFile    = "vm-info.json"
)

// RequirementChecker verifies that external tools exist before any work starts
type RequirementChecker interface {
	Check(requirements []compiler.Requirement) error
}

// Options are the collaborators of a pipeline
type Options struct {
	Registry *library.Registry
	Cache    *cache.Cache
	Fetcher  deps.Fetcher
	Runner   compiler.Runner
	Checker  RequirementChecker
	Logger   *log.Logger
}

// Pipeline runs the stages of one build
type Pipeline struct {
	cfg      *config.Config
	registry *library.Registry
	bundler  bundler.Bundler
	deps     *deps.Compiler
	checker  RequirementChecker
	logger   *log.Logger

	libraries   []*library.Library
	executables []*bundler.ExecutableOptions
	stage       Stage
}

// New resolves the requested libraries and selects the bundler of the target
func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	b, err := bundler.New(cfg, opts.Runner, opts.Logger)
	if err != nil {
		return nil, err
	}

	libs, err := opts.Registry.Resolve(cfg.Libraries)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:       cfg,
		registry:  opts.Registry,
		bundler:   b,
		deps:      deps.New(cfg, opts.Registry, opts.Cache, opts.Fetcher, opts.Runner, opts.Logger),
		checker:   opts.Checker,
		logger:    opts.Logger,
		libraries: libs,
		stage:     Resolved,
	}, nil
}

// Stage is the last stage the pipeline completed
func (p *Pipeline) Stage() Stage {
	return p.stage
}

// Bundler is the platform bundler selected for the target
func (p *Pipeline) Bundler() bundler.Bundler {
	return p.bundler
}

// Libraries are the requested libraries, without their dependencies
func (p *Pipeline) Libraries() []*library.Library {
	return p.libraries
}

// BuildInfoPath is where build-info.json is exported
func (p *Pipeline) BuildInfoPath() string {
	return filepath.Join(p.bundler.BundledResourcesDirectory(p.cfg), BuildInfoFile)
}

// advance runs step and moves to the next stage. A failed step leaves the
// pipeline where it was.
func (p *Pipeline) advance(to Stage, step func() error) error {
	if p.stage != to-1 {
		return fmt.Errorf("cannot enter %q after %q", to, p.stage)
	}

	if err := step(); err != nil {
		return err
	}

	p.logger.Debug("stage completed", "stage", to)
	p.stage = to

	return nil
}

// Requirements lists every tool the whole build needs
func (p *Pipeline) Requirements() ([]compiler.Requirement, error) {
	reqs := []compiler.Requirement{
		{Tool: p.cfg.Tool(compiler.DefaultToolchain), Reason: "compile executables"},
	}

	reqs = append(reqs, p.bundler.Requirements(p.cfg)...)

	libs, err := p.deps.Requirements(p.libraries)
	if err != nil {
		return nil, err
	}

	return append(reqs, libs...), nil
}

// CheckRequirements fails when any tool of the build is missing
func (p *Pipeline) CheckRequirements() error {
	return p.advance(RequirementsChecked, func() error {
		reqs, err := p.Requirements()
		if err != nil {
			return err
		}

		return p.checker.Check(reqs)
	})
}

// CompileExecutables compiles every configured executable with the platform hooks
func (p *Pipeline) CompileExecutables(ctx context.Context) error {
	return p.advance(ExecutablesCompiled, func() error {
		env := compiler.ExecutableEnv(p.cfg).With(compiler.EnvBuildInfo, p.BuildInfoPath())

		for _, exe := range p.cfg.Executables {
			opts := bundler.NewExecutableOptions(p.cfg, exe, env)

			if err := p.bundler.PreCompile(ctx, opts); err != nil {
				return err
			}

			if err := p.bundler.CompileBinary(ctx, opts); err != nil {
				return err
			}

			p.executables = append(p.executables, opts)
		}

		return nil
	})
}

// CompileLibraries compiles the requested libraries with their dependencies
// and installs them where the bundler picks them up
func (p *Pipeline) CompileLibraries(ctx context.Context) error {
	return p.advance(LibrariesCompiled, func() error {
		dir := p.cfg.CompiledLibrariesDir()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return codes.FS("could not create directory", dir, err)
		}

		artifacts, err := p.deps.CompileAll(ctx, p.libraries)
		if err != nil {
			return err
		}

		_, err = p.deps.Install(artifacts)
		return err
	})
}

// PostProcess runs the post-compile hook of every compiled executable
func (p *Pipeline) PostProcess(ctx context.Context) error {
	return p.advance(PostProcessed, func() error {
		for _, opts := range p.executables {
			if err := p.bundler.PostCompile(ctx, opts); err != nil {
				return err
			}
		}

		return nil
	})
}

// Bundle assembles the bundle
func (p *Pipeline) Bundle(ctx context.Context) error {
	return p.advance(Bundled, func() error {
		kept := p.keepBuildInfo()

		if err := p.bundler.Bundle(ctx, p.cfg); err != nil {
			if kept != "" {
				_ = os.Remove(kept)
			}
			return err
		}

		if kept != "" {
			p.restoreBuildInfo(kept)
		}

		return nil
	})
}

// keepBuildInfo moves the exported build-info.json out of the bundle root,
// which the bundler recreates, so an unchanged export can leave it untouched.
// Returns where it was kept, or "" when there was nothing to keep.
func (p *Pipeline) keepBuildInfo() string {
	kept := filepath.Join(p.cfg.BundleLocation(), "."+BuildInfoFile)
	_ = os.Remove(kept)

	if err := os.Rename(p.BuildInfoPath(), kept); err != nil {
		return ""
	}

	return kept
}

// restoreBuildInfo puts a kept build-info.json back. The file is only an
// optimization, a failure just means it is written again.
func (p *Pipeline) restoreBuildInfo(kept string) {
	path := p.BuildInfoPath()

	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err == nil {
		err = os.Rename(kept, path)
	}

	if err != nil {
		p.logger.Debug("could not restore build info", "path", path, "err", err)
		_ = os.Remove(kept)
	}
}

// ExportMetadata writes build-info.json and copies vm-info.json into the
// bundled resources
func (p *Pipeline) ExportMetadata() error {
	return p.advance(MetadataExported, func() error {
		info, err := NewBuildInfo(p.cfg, p.registry, p.libraries)
		if err != nil {
			return err
		}

		written, err := info.Export(p.BuildInfoPath())
		if err != nil {
			return err
		}

		if !written {
			p.logger.Debug("build info unchanged", "path", p.BuildInfoPath())
		}

		src := filepath.Join(p.cfg.CompilationDir(), VMInfoFile)
		dst := filepath.Join(p.bundler.BundledResourcesDirectory(p.cfg), VMInfoFile)
		if err := cache.CopyFile(src, dst); err != nil {
			return codes.FS("could not copy "+src, dst, err)
		}

		return nil
	})
}

// Compile checks requirements and compiles executables and libraries
func (p *Pipeline) Compile(ctx context.Context) error {
	if err := p.CheckRequirements(); err != nil {
		return err
	}

	if err := p.CompileExecutables(ctx); err != nil {
		return err
	}

	if err := p.CompileLibraries(ctx); err != nil {
		return err
	}

	return p.PostProcess(ctx)
}

// Package bundles and exports metadata. Run on a freshly resolved pipeline
// it reuses what an earlier compile left in the compilation directory.
func (p *Pipeline) Package(ctx context.Context) error {
	if p.stage == Resolved {
		if err := p.checker.Check(p.bundler.Requirements(p.cfg)); err != nil {
			return err
		}

		p.logger.Debug("reusing compiled executables and libraries", "dir", p.cfg.CompilationDir())
		p.stage = PostProcessed
	}

	if err := p.Bundle(ctx); err != nil {
		return err
	}

	return p.ExportMetadata()
}

// Run goes through every stage
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.Compile(ctx); err != nil {
		return err
	}

	return p.Package(ctx)
}
