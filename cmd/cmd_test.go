package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/bundler/internal/cache"
	"github.com/Norgate-AV/bundler/internal/library"
	"github.com/Norgate-AV/bundler/internal/target"
	"github.com/Norgate-AV/bundler/internal/testutil"
)

// execute runs the root command with args and returns everything it printed
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	for _, f := range []string{"lib", "path", "dry-run", "tool"} {
		flag := rpathCmd.Flags().Lookup(f)
		require.NoError(t, flag.Value.Set(flag.DefValue))
		flag.Changed = false
	}

	libraries := cacheClearCmd.Flags().Lookup("library")
	require.NoError(t, libraries.Value.(interface{ Replace([]string) error }).Replace(nil))
	libraries.Changed = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "bundler", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Version)
	assert.True(t, rootCmd.SilenceErrors)

	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}

	for _, name := range []string{"build", "compile", "bundle", "rpath", "cache"} {
		assert.Contains(t, names, name)
	}
}

func TestRootCommand_Flags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	tests := []struct {
		name      string
		shorthand string
	}{
		{"verbose", "v"},
		{"release", "r"},
		{"target", "t"},
		{"libraries", "l"},
		{"include-debug-symbols", ""},
		{"target-dir", ""},
		{"bundle-dir", ""},
		{"workspace-dir", ""},
		{"app-name", ""},
		{"identifier", ""},
		{"author", ""},
		{"app-version", ""},
		{"executable-name", ""},
		{"icons", ""},
		{"plist-file", ""},
		{"libraries-versions", ""},
		{"library-version", ""},
		{"runner-vm", ""},
		{"runner-image", ""},
		{"executables", ""},
		{"features", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := flags.Lookup(tt.name)
			require.NotNil(t, flag, "flag %s should be registered", tt.name)
			assert.Equal(t, tt.shorthand, flag.Shorthand)
		})
	}

	assert.Equal(t, "false", flags.Lookup("release").DefValue)
	assert.Equal(t, "0", flags.Lookup("verbose").DefValue)
}

func TestPipelineCommands(t *testing.T) {
	for _, c := range []*cobra.Command{buildCmd, compileCmd, bundleCmd} {
		assert.NotNil(t, c.RunE, c.Name())
		assert.True(t, c.SilenceUsage, c.Name())
	}

	// Running without a subcommand builds
	assert.NotNil(t, rootCmd.RunE)
}

func TestRpath_DryRun(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libzlib.dylib")
	require.NoError(t, testutil.WriteMachO(lib, testutil.MachO{ID: "@rpath/libz.1.dylib"}))

	out, err := execute(t, "rpath", "--lib", lib, "--dry-run")
	require.NoError(t, err)

	assert.Equal(t,
		"install_name_tool -add_rpath @executable_path/Plugins -id @executable_path/Plugins/libzlib.dylib "+lib+"\n"+
			"id: @executable_path/Plugins/libzlib.dylib\n"+
			"rpath: @executable_path/Plugins\n",
		out)
}

func TestRpath_DryRunCustomPath(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "app")
	require.NoError(t, testutil.WriteMachO(exe, testutil.MachO{
		Dylibs: []string{"@rpath/libzlib.dylib", "/usr/lib/libSystem.B.dylib"},
	}))

	out, err := execute(t, "rpath", "--lib", exe, "--path", "Frameworks", "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, out, "-add_rpath @executable_path/Frameworks -change @rpath/libzlib.dylib @executable_path/Frameworks/libzlib.dylib")
	assert.Contains(t, out, "dylib: @executable_path/Frameworks/libzlib.dylib\n")
	assert.Contains(t, out, "dylib: /usr/lib/libSystem.B.dylib\n")
}

func TestRpath_UpToDate(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libzlib.dylib")
	require.NoError(t, testutil.WriteMachO(lib, testutil.MachO{
		ID:     "@executable_path/Plugins/libzlib.dylib",
		Rpaths: []string{"@executable_path/Plugins"},
	}))

	out, err := execute(t, "rpath", "--lib", lib, "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, lib+": up to date\n", out)
}

func TestRpath_RequiresLib(t *testing.T) {
	_, err := execute(t, "rpath", "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lib")
}

func TestCache_ListAndClear(t *testing.T) {
	dir := t.TempDir()

	c, err := cache.Open(filepath.Join(dir, "third_party"))
	require.NoError(t, err)
	require.NoError(t, c.Store(
		library.Key{Name: "zlib", Target: target.X8664AppleDarwin, Profile: "release"},
		cache.Entry{Version: "1.2.11", Timestamp: time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)},
	))
	require.NoError(t, c.Close())

	out, err := execute(t, "cache", "list", "--target-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "zlib")
	assert.Contains(t, out, "1.2.11")
	assert.Contains(t, out, "x86_64-apple-darwin")
	assert.Contains(t, out, "2024-03-01 12:30")

	out, err = execute(t, "cache", "clear", "--target-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 libraries")

	out, err = execute(t, "cache", "list", "--target-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "No compiled libraries\n", out)
}

func TestCache_ClearLibrary(t *testing.T) {
	dir := t.TempDir()

	c, err := cache.Open(filepath.Join(dir, "third_party"))
	require.NoError(t, err)

	keys := []library.Key{
		{Name: "zlib", Target: target.X8664AppleDarwin, Profile: "release"},
		{Name: "zlib", Target: target.X8664AppleDarwin, Profile: "debug"},
		{Name: "png", Target: target.X8664AppleDarwin, Profile: "debug"},
	}
	for _, key := range keys {
		require.NoError(t, os.MkdirAll(filepath.Join(c.Dir(key), "lib"), 0o755))
		require.NoError(t, c.Store(key, cache.Entry{Version: "1"}))
	}
	require.NoError(t, c.Close())

	out, err := execute(t, "cache", "clear", "--target-dir", dir, "--library", "zlib", "--library", "sdl2")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed zlib (2 builds)")
	assert.Contains(t, out, "sdl2: not compiled")

	c, err = cache.Open(filepath.Join(dir, "third_party"))
	require.NoError(t, err)
	defer c.Close()

	assert.NoDirExists(t, c.Dir(keys[0]))
	assert.NoDirExists(t, c.Dir(keys[1]))
	assert.DirExists(t, c.Dir(keys[2]))

	entries, err := c.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "png", entries[0].Name)
}
