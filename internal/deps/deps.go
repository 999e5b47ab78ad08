// Package deps compiles third-party libraries in dependency order, at most
// once per (library, target, profile).
package deps

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/Norgate-AV/bundler/internal/cache"
	"github.com/Norgate-AV/bundler/internal/codes"
	"github.com/Norgate-AV/bundler/internal/compiler"
	"github.com/Norgate-AV/bundler/internal/config"
	"github.com/Norgate-AV/bundler/internal/library"
	"github.com/Norgate-AV/bundler/internal/target"
)

// Fetcher makes the sources of a library available on disk
type Fetcher interface {
	Ensure(ctx context.Context, l *library.Library, libsDir, workspace string) error
}

// Artifact is a compiled shared library
type Artifact struct {
	Name    string
	Version string
	Target  target.Target

	// Path of the compiled file inside the cache
	Path string

	// FileName the library is installed and bundled under
	FileName string

	// Prefix the library was installed into
	Prefix string
}

// Compiler walks the dependency graph of the requested libraries
type Compiler struct {
	cfg      *config.Config
	registry *library.Registry
	cache    *cache.Cache
	fetcher  Fetcher
	runner   compiler.Runner
	logger   *log.Logger

	compiled map[string]*node
	visiting []string
}

type node struct {
	artifact Artifact

	// install prefixes of the library and everything it depends on, dependencies first
	prefixes []string
}

// New creates a dependency compiler for one build
func New(cfg *config.Config, registry *library.Registry, c *cache.Cache, fetcher Fetcher, runner compiler.Runner, logger *log.Logger) *Compiler {
	return &Compiler{
		cfg:      cfg,
		registry: registry,
		cache:    c,
		fetcher:  fetcher,
		runner:   runner,
		logger:   logger,
		compiled: make(map[string]*node),
	}
}

// Requirements lists the tools needed to compile libs and their dependencies
func (c *Compiler) Requirements(libs []*library.Library) ([]compiler.Requirement, error) {
	var reqs []compiler.Requirement
	seen := make(map[string]bool)

	var walk func(l *library.Library) error
	walk = func(l *library.Library) error {
		if seen[l.Name] {
			return nil
		}

		seen[l.Name] = true

		for _, name := range l.Dependencies {
			dep, err := c.registry.Get(name)
			if err != nil {
				return err
			}

			if err := walk(dep); err != nil {
				return err
			}
		}

		for _, tool := range l.Recipe.Tools() {
			reqs = append(reqs, compiler.Requirement{Tool: c.cfg.Tool(tool), Reason: "compile " + l.Name})
		}

		return nil
	}

	for _, l := range libs {
		if err := walk(l); err != nil {
			return nil, err
		}
	}

	return reqs, nil
}

// CompileAll compiles every requested library. The result holds each library
// of the graph once, every dependency before its dependents.
func (c *Compiler) CompileAll(ctx context.Context, libs []*library.Library) ([]Artifact, error) {
	var artifacts []Artifact
	seen := make(map[string]bool)

	for _, l := range libs {
		if _, err := c.Compile(ctx, l); err != nil {
			return nil, err
		}

		for _, name := range c.order(l, map[string]bool{}) {
			if seen[name] {
				continue
			}

			seen[name] = true
			artifacts = append(artifacts, c.compiled[name].artifact)
		}
	}

	return artifacts, nil
}

// order returns l and its dependencies, dependencies first
func (c *Compiler) order(l *library.Library, visited map[string]bool) []string {
	if visited[l.Name] {
		return nil
	}

	visited[l.Name] = true

	var names []string
	for _, name := range l.Dependencies {
		if dep, err := c.registry.Get(name); err == nil {
			names = append(names, c.order(dep, visited)...)
		}
	}

	return append(names, l.Name)
}

// Compile makes sure l and all its dependencies are compiled and returns the
// artifact of l. Sources are always ensured, compilation is skipped when the
// cache directory of l exists.
func (c *Compiler) Compile(ctx context.Context, l *library.Library) (Artifact, error) {
	if n, ok := c.compiled[l.Name]; ok {
		return n.artifact, nil
	}

	for _, name := range c.visiting {
		if name == l.Name {
			cycle := strings.Join(c.visiting, " -> ") + " -> " + l.Name
			return Artifact{}, codes.New(codes.Configuration, "could not compile "+l.Name, "", fmt.Errorf("dependency cycle %s", cycle))
		}
	}

	c.visiting = append(c.visiting, l.Name)
	defer func() { c.visiting = c.visiting[:len(c.visiting)-1] }()

	if err := c.fetcher.Ensure(ctx, l, c.cfg.ThirdPartySourcesDir(), c.cfg.WorkspaceDir); err != nil {
		return Artifact{}, err
	}

	var prefixes []string
	seen := make(map[string]bool)

	for _, name := range l.Dependencies {
		dep, err := c.registry.Get(name)
		if err != nil {
			return Artifact{}, err
		}

		if _, err := c.Compile(ctx, dep); err != nil {
			return Artifact{}, err
		}

		for _, prefix := range c.compiled[dep.Name].prefixes {
			if !seen[prefix] {
				seen[prefix] = true
				prefixes = append(prefixes, prefix)
			}
		}
	}

	lctx := library.NewContext(c.cfg, l)
	fingerprint := cache.Fingerprint(l.Describe())

	hit := c.cache.Hit(lctx.BuildDir)
	if hit {
		c.logger.Debug("cache hit", "library", l.Name, "key", lctx.Key(), "dir", lctx.BuildDir)
		c.warnIfStale(lctx.Key(), fingerprint)
	} else if err := c.forceCompile(ctx, l, lctx, prefixes); err != nil {
		return Artifact{}, err
	}

	path, err := l.Artifact(lctx)
	if err != nil {
		return Artifact{}, err
	}

	artifact := Artifact{
		Name:     l.Name,
		Version:  l.Version,
		Target:   lctx.Target,
		Path:     path,
		FileName: l.FileName(lctx.Target),
		Prefix:   lctx.Prefix(),
	}

	if err := c.record(lctx.Key(), l, fingerprint, path, !hit); err != nil {
		return Artifact{}, err
	}

	c.compiled[l.Name] = &node{artifact: artifact, prefixes: append(prefixes, lctx.Prefix())}

	return artifact, nil
}

func (c *Compiler) forceCompile(ctx context.Context, l *library.Library, lctx library.Context, prefixes []string) error {
	c.logger.Info("compiling", "library", l.Name, "version", l.Version, "target", lctx.Target, "profile", lctx.Profile())

	env := library.ToolchainEnv(compiler.Env(c.cfg.EnvList()), prefixes, l.Env)

	cmds, err := l.Commands(lctx, env, c.cfg.Tool)
	if err != nil {
		return err
	}

	for _, cmd := range cmds {
		if err := os.MkdirAll(cmd.Dir, 0o755); err != nil {
			return codes.FS("could not create directory", cmd.Dir, err)
		}

		if err := c.runner.Run(ctx, cmd); err != nil {
			// a half built directory would be taken for a compiled library next time
			_ = os.RemoveAll(lctx.BuildDir)
			return codes.New(codes.Toolchain, "could not compile "+l.Name, lctx.BuildDir, err)
		}
	}

	return nil
}

// warnIfStale compares the recipe with the one the cached directory was compiled from
func (c *Compiler) warnIfStale(key library.Key, fingerprint string) {
	entry, err := c.cache.Get(key)
	if err != nil {
		c.logger.Warn("could not read cache entry", "key", key, "err", err)
		return
	}

	if entry != nil && entry.Fingerprint != fingerprint {
		c.logger.Warn("cached library was compiled from a different recipe, remove its directory to rebuild",
			"key", key, "compiled", entry.Version)
	}
}

// record stores the entry of a fresh compilation. On a hit the existing entry
// is kept, it describes what the directory was really compiled from.
func (c *Compiler) record(key library.Key, l *library.Library, fingerprint, path string, fresh bool) error {
	if !fresh {
		existing, err := c.cache.Get(key)
		if err != nil {
			return err
		}

		if existing != nil {
			return nil
		}
	}

	checksum, err := cache.HashFile(path)
	if err != nil {
		return codes.FS("could not hash", path, err)
	}

	return c.cache.Store(key, cache.Entry{
		Version:     l.Version,
		Fingerprint: fingerprint,
		Artifact:    path,
		Checksum:    checksum,
	})
}

// Install copies the artifacts into the compiled libraries directory of the
// build, where bundlers pick them up
func (c *Compiler) Install(artifacts []Artifact) ([]string, error) {
	dest := c.cfg.CompiledLibrariesDir()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, codes.FS("could not create directory", dest, err)
	}

	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		path, err := cache.Install(a.Path, dest, a.FileName, a.Target)
		if err != nil {
			return nil, err
		}

		c.logger.Debug("installed", "library", a.Name, "path", path)
		paths = append(paths, path)
	}

	return paths, nil
}
