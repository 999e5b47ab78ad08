package bundler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/bundler/internal/codes"
	"github.com/Norgate-AV/bundler/internal/compiler"
	"github.com/Norgate-AV/bundler/internal/config"
	"github.com/Norgate-AV/bundler/internal/logging"
	"github.com/Norgate-AV/bundler/internal/target"
	"github.com/Norgate-AV/bundler/internal/testutil"
)

func newConfig(t *testing.T, tgt target.Target) *config.Config {
	t.Helper()

	workspace := t.TempDir()

	return &config.Config{
		Target:         tgt,
		WorkspaceDir:   workspace,
		TargetDir:      filepath.Join(workspace, "target"),
		AppName:        "Sample",
		Identifier:     "com.example.sample",
		ExecutableName: "Sample",
		Version:        config.Version{Major: 1, Minor: 2, Patch: 3},
		Executables:    []config.Executable{config.App},
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
}

func TestNew(t *testing.T) {
	tests := []struct {
		target target.Target
		want   Bundler
	}{
		{target.AArch64AppleDarwin, &Mac{}},
		{target.X8664AppleDarwin, &Mac{}},
		{target.X8664PcWindowsMsvc, &Windows{}},
		{target.X8664UnknownLinuxGNU, &Linux{}},
		{target.AArch64LinuxAndroid, &Android{}},
	}

	for _, tt := range tests {
		t.Run(tt.target.String(), func(t *testing.T) {
			b, err := New(&config.Config{Target: tt.target}, testutil.NewRecordingRunner(), logging.Discard())
			require.NoError(t, err)
			assert.IsType(t, tt.want, b)
		})
	}
}

func TestCompileBinary(t *testing.T) {
	cfg := newConfig(t, target.X8664UnknownLinuxGNU)
	runner := testutil.NewRecordingRunner()
	b := NewLinux(runner, logging.Discard())

	opts := NewExecutableOptions(cfg, config.Cli, compiler.Env{"A=1"})
	require.NoError(t, b.PreCompile(context.Background(), opts))
	require.NoError(t, b.CompileBinary(context.Background(), opts))
	require.NoError(t, b.PostCompile(context.Background(), opts))

	require.Len(t, runner.Commands, 1)
	cmd := runner.Commands[0]
	assert.Equal(t, "cargo", cmd.Path)
	assert.Contains(t, cmd.Args, "app-desktop-cli")
	assert.Equal(t, compiler.Env{"A=1"}, cmd.Env)
}

func TestCompileBinary_Failure(t *testing.T) {
	cfg := newConfig(t, target.X8664UnknownLinuxGNU)
	runner := testutil.NewRecordingRunner()
	runner.Handle("cargo", func(*compiler.ShellCommand) error { return errors.New("exit status 101") })

	err := CompileBinary(context.Background(), runner, logging.Discard(), NewExecutableOptions(cfg, config.App, nil))
	require.Error(t, err)
	assert.True(t, codes.IsKind(err, codes.Toolchain))
	assert.Contains(t, err.Error(), "could not compile app")
}

func TestNewExecutableOptions_CopiesEnv(t *testing.T) {
	shared := compiler.Env{"A=1"}
	opts := NewExecutableOptions(&config.Config{}, config.App, shared)

	opts.Env = opts.Env.With("B", "2")
	opts.Env[0] = "A=2"

	assert.Equal(t, compiler.Env{"A=1"}, shared)
}

func TestCompiledLibraries(t *testing.T) {
	cfg := newConfig(t, target.X8664PcWindowsMsvc)

	libs, err := CompiledLibraries(cfg)
	require.NoError(t, err)
	assert.Empty(t, libs, "A missing directory has no libraries")

	dir := cfg.CompiledLibrariesDir()
	writeFile(t, filepath.Join(dir, "zlib.dll"), "dll")
	writeFile(t, filepath.Join(dir, "zlib.pdb"), "pdb")
	writeFile(t, filepath.Join(dir, "cairo.dll"), "dll")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested.dll"), 0o755))

	libs, err = CompiledLibraries(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "cairo.dll"), filepath.Join(dir, "zlib.dll")}, libs)
}

func TestRecreate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bundle")
	writeFile(t, filepath.Join(dir, "stale.txt"), "old")

	require.NoError(t, recreate(dir, filepath.Join(dir, "a", "b")))

	assert.NoFileExists(t, filepath.Join(dir, "stale.txt"))
	assert.DirExists(t, filepath.Join(dir, "a", "b"))
}

func TestCopyContents_Merges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "one", "mipmap-hdpi", "ic_launcher.png"), "1")
	writeFile(t, filepath.Join(root, "two", "mipmap-hdpi", "ic_round.png"), "2")
	dst := filepath.Join(root, "res")

	require.NoError(t, copyContents(filepath.Join(root, "one"), dst))
	require.NoError(t, copyContents(filepath.Join(root, "two"), dst))

	assert.FileExists(t, filepath.Join(dst, "mipmap-hdpi", "ic_launcher.png"))
	assert.FileExists(t, filepath.Join(dst, "mipmap-hdpi", "ic_round.png"))
}
