package deps

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/bundler/internal/cache"
	"github.com/Norgate-AV/bundler/internal/codes"
	"github.com/Norgate-AV/bundler/internal/compiler"
	"github.com/Norgate-AV/bundler/internal/config"
	"github.com/Norgate-AV/bundler/internal/library"
	"github.com/Norgate-AV/bundler/internal/logging"
	"github.com/Norgate-AV/bundler/internal/target"
	"github.com/Norgate-AV/bundler/internal/testutil"
)

type fakeFetcher struct {
	calls []string
}

func (f *fakeFetcher) Ensure(_ context.Context, l *library.Library, libsDir, workspace string) error {
	f.calls = append(f.calls, l.Name)
	return os.MkdirAll(l.SourcesDir(libsDir, workspace), 0o755)
}

// fakeCargo leaves a shared library where cargo would
func fakeCargo(cfg *config.Config) func(cmd *compiler.ShellCommand) error {
	return func(cmd *compiler.ShellCommand) error {
		var targetDir, manifest string
		for i, arg := range cmd.Args {
			switch arg {
			case "--target-dir":
				targetDir = cmd.Args[i+1]
			case "--manifest-path":
				manifest = cmd.Args[i+1]
			}
		}

		name := filepath.Base(filepath.Dir(manifest))
		out := filepath.Join(targetDir, cfg.Target.String(), cfg.Profile(), cfg.Target.SharedLibraryName(name))
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}

		return os.WriteFile(out, []byte(name), 0o644)
	}
}

func testConfig(t *testing.T) *config.Config {
	workspace := t.TempDir()

	return &config.Config{
		WorkspaceDir: workspace,
		TargetDir:    filepath.Join(workspace, "target"),
		Target:       target.X8664UnknownLinuxGNU,
	}
}

// graph: app -> (ui, net), ui -> core, net -> core
func testRegistry() *library.Registry {
	r := library.NewRegistry(nil)

	add := func(name string, deps ...string) {
		r.Register(name, func(version string) *library.Library {
			return &library.Library{
				Version:      "1.0.0",
				Location:     library.GitHub("example", name),
				Recipe:       library.Cargo,
				Dependencies: deps,
			}
		})
	}

	add("app", "ui", "net")
	add("ui", "core")
	add("net", "core")
	add("core")
	add("loop-a", "loop-b")
	add("loop-b", "loop-a")

	return r
}

type fixture struct {
	cfg      *config.Config
	registry *library.Registry
	cache    *cache.Cache
	fetcher  *fakeFetcher
	runner   *testutil.RecordingRunner
	logs     *bytes.Buffer
	compiler *Compiler
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()

	c, err := cache.Open(filepath.Join(cfg.TargetDir, "third_party"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	f := &fixture{
		cfg:      cfg,
		registry: testRegistry(),
		cache:    c,
		fetcher:  &fakeFetcher{},
		runner:   testutil.NewRecordingRunner(),
		logs:     &bytes.Buffer{},
	}

	f.runner.Handle("cargo", fakeCargo(cfg))
	f.compiler = New(cfg, f.registry, c, f.fetcher, f.runner, logging.NewWithWriter(f.logs, 1))

	return f
}

func (f *fixture) get(t *testing.T, name string) *library.Library {
	t.Helper()

	l, err := f.registry.Get(name)
	require.NoError(t, err)

	return l
}

// compiledOrder returns the libraries in the order the toolchain was invoked for them
func compiledOrder(runner *testutil.RecordingRunner) []string {
	var names []string
	for _, cmd := range runner.Invocations("cargo") {
		names = append(names, filepath.Base(cmd.Dir))
	}

	return names
}

func TestCompileAll_DependenciesFirst(t *testing.T) {
	f := newFixture(t, testConfig(t))

	artifacts, err := f.compiler.CompileAll(context.Background(), []*library.Library{f.get(t, "app")})
	require.NoError(t, err)

	assert.Equal(t, []string{"core", "ui", "net", "app"}, compiledOrder(f.runner))

	var names []string
	for _, a := range artifacts {
		names = append(names, a.Name)
	}

	assert.Equal(t, []string{"core", "ui", "net", "app"}, names, "Each library once, dependencies before dependents")

	app := artifacts[3]
	assert.Equal(t, "libapp.so", app.FileName)
	assert.Equal(t, target.X8664UnknownLinuxGNU, app.Target)
	assert.FileExists(t, app.Path)
	assert.Equal(t, filepath.Join(f.cfg.ThirdPartyBuildDir(), "app"), app.Prefix)
}

func TestCompile_EnvironmentIsDependencyFirst(t *testing.T) {
	f := newFixture(t, testConfig(t))
	f.cfg.Env = map[string]string{"RUSTFLAGS": "-Dwarnings"}

	_, err := f.compiler.Compile(context.Background(), f.get(t, "app"))
	require.NoError(t, err)

	cmds := f.runner.Invocations("cargo")
	require.Len(t, cmds, 4)

	appEnv := cmds[3].Env
	prefixes, ok := appEnv.Get(library.EnvCMakePrefixPath)
	require.True(t, ok)

	root := f.cfg.ThirdPartyBuildDir()
	assert.Equal(t, filepath.Join(root, "core")+string(filepath.ListSeparator)+
		filepath.Join(root, "ui")+string(filepath.ListSeparator)+
		filepath.Join(root, "net"), prefixes)

	flags, _ := appEnv.Get("RUSTFLAGS")
	assert.Equal(t, "-Dwarnings", flags)

	_, ok = cmds[0].Env.Get(library.EnvCMakePrefixPath)
	assert.False(t, ok, "A library without dependencies gets no search paths")
}

func TestCompile_CacheHitRunsToolchainOnce(t *testing.T) {
	for _, release := range []bool{false, true} {
		cfg := testConfig(t)
		cfg.Release = release

		first := newFixture(t, cfg)
		a1, err := first.compiler.Compile(context.Background(), first.get(t, "core"))
		require.NoError(t, err)
		require.NoError(t, first.cache.Close())

		second := newFixture(t, cfg)
		a2, err := second.compiler.Compile(context.Background(), second.get(t, "core"))
		require.NoError(t, err)

		assert.Len(t, first.runner.Invocations("cargo"), 1)
		assert.Empty(t, second.runner.Invocations("cargo"), "Second compilation should be a cache hit")
		assert.Equal(t, a1.Path, a2.Path)
		assert.Equal(t, []string{"core"}, second.fetcher.calls, "Sources are ensured even on a hit")
	}
}

func TestCompile_ProfilesAreCachedSeparately(t *testing.T) {
	cfg := testConfig(t)

	debug := newFixture(t, cfg)
	_, err := debug.compiler.Compile(context.Background(), debug.get(t, "core"))
	require.NoError(t, err)
	require.NoError(t, debug.cache.Close())

	releaseCfg := *cfg
	releaseCfg.Release = true

	release := newFixture(t, &releaseCfg)
	_, err = release.compiler.Compile(context.Background(), release.get(t, "core"))
	require.NoError(t, err)

	assert.Len(t, release.runner.Invocations("cargo"), 1)
}

func TestCompile_StaleRecipeIsReported(t *testing.T) {
	cfg := testConfig(t)

	first := newFixture(t, cfg)
	_, err := first.compiler.Compile(context.Background(), first.get(t, "core"))
	require.NoError(t, err)
	require.NoError(t, first.cache.Close())

	second := newFixture(t, cfg)
	second.registry.Register("core", func(string) *library.Library {
		return &library.Library{Version: "2.0.0", Location: library.GitHub("example", "core"), Recipe: library.Cargo}
	})

	_, err = second.compiler.Compile(context.Background(), second.get(t, "core"))
	require.NoError(t, err)

	assert.Empty(t, second.runner.Invocations("cargo"))
	assert.Contains(t, second.logs.String(), "different recipe")

	entry, err := second.cache.Get(library.Key{Name: "core", Target: cfg.Target, Profile: "debug"})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "1.0.0", entry.Version, "The entry keeps describing what was compiled")
}

func TestCompile_Cycle(t *testing.T) {
	f := newFixture(t, testConfig(t))

	_, err := f.compiler.Compile(context.Background(), f.get(t, "loop-a"))
	require.Error(t, err)
	assert.True(t, codes.IsKind(err, codes.Configuration))
	assert.Contains(t, err.Error(), "could not compile loop-a")
	assert.Contains(t, err.Error(), "loop-a -> loop-b -> loop-a")
	assert.Empty(t, f.runner.Invocations("cargo"))
}

func TestCompile_FailureIsFatalAndNotCached(t *testing.T) {
	cfg := testConfig(t)
	f := newFixture(t, cfg)
	f.runner.Handle("cargo", func(cmd *compiler.ShellCommand) error {
		if filepath.Base(cmd.Dir) == "ui" {
			return codes.ToolchainErr("cargo build exited with status 101", errors.New("exit status 101"))
		}

		return fakeCargo(cfg)(cmd)
	})

	_, err := f.compiler.CompileAll(context.Background(), []*library.Library{f.get(t, "app")})
	require.Error(t, err)
	assert.True(t, codes.IsKind(err, codes.Toolchain))
	assert.Contains(t, err.Error(), "could not compile ui")

	assert.Equal(t, []string{"core", "ui"}, compiledOrder(f.runner), "Nothing runs after a failure")
	assert.NoDirExists(t, filepath.Join(cfg.ThirdPartyBuildDir(), "ui"))
	assert.DirExists(t, filepath.Join(cfg.ThirdPartyBuildDir(), "core"))
}

func TestRequirements(t *testing.T) {
	f := newFixture(t, testConfig(t))
	f.cfg.Tools = map[string]string{"cargo": "/opt/cargo"}

	reqs, err := f.compiler.Requirements([]*library.Library{f.get(t, "ui"), f.get(t, "net")})
	require.NoError(t, err)

	assert.Equal(t, []compiler.Requirement{
		{Tool: "/opt/cargo", Reason: "compile core"},
		{Tool: "/opt/cargo", Reason: "compile ui"},
		{Tool: "/opt/cargo", Reason: "compile net"},
	}, reqs)
}

func TestInstall(t *testing.T) {
	f := newFixture(t, testConfig(t))

	artifacts, err := f.compiler.CompileAll(context.Background(), []*library.Library{f.get(t, "ui")})
	require.NoError(t, err)

	paths, err := f.compiler.Install(artifacts)
	require.NoError(t, err)

	dir := f.cfg.CompiledLibrariesDir()
	assert.Equal(t, []string{filepath.Join(dir, "libcore.so"), filepath.Join(dir, "libui.so")}, paths)

	content, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "ui", string(content))
}
