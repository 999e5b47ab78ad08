package library

import (
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/bundler/internal/codes"
	"github.com/Norgate-AV/bundler/internal/compiler"
	"github.com/Norgate-AV/bundler/internal/target"
)

// Toolchain variables assembled from dependencies
const (
	EnvPkgConfigPath   = "PKG_CONFIG_PATH"
	EnvCPPFlags        = "CPPFLAGS"
	EnvLDFlags         = "LDFLAGS"
	EnvCMakePrefixPath = "CMAKE_PREFIX_PATH"
	EnvAndroidNDK      = "ANDROID_NDK_HOME"
)

// Android API level native libraries are compiled against
const AndroidPlatform = "android-30"

// ToolchainEnv returns base extended with the search paths of the given
// dependency prefixes, followed by the library's own variables. Dependencies
// come first, so flags of the library itself take precedence.
func ToolchainEnv(base compiler.Env, prefixes []string, own map[string]string) compiler.Env {
	env := base

	if len(prefixes) > 0 {
		var pkgConfig, cppFlags, ldFlags []string
		for _, prefix := range prefixes {
			pkgConfig = append(pkgConfig, filepath.Join(prefix, "lib", "pkgconfig"))
			cppFlags = append(cppFlags, "-I"+filepath.Join(prefix, "include"))
			ldFlags = append(ldFlags, "-L"+filepath.Join(prefix, "lib"))
		}

		if existing, ok := base.Get(EnvPkgConfigPath); ok && existing != "" {
			pkgConfig = append(pkgConfig, existing)
		}

		env = env.
			With(EnvPkgConfigPath, strings.Join(pkgConfig, string(filepath.ListSeparator))).
			With(EnvCMakePrefixPath, strings.Join(prefixes, string(filepath.ListSeparator))).
			With(EnvCPPFlags, joinFlags(base, EnvCPPFlags, cppFlags, own)).
			With(EnvLDFlags, joinFlags(base, EnvLDFlags, ldFlags, own))
	}

	for _, k := range sortedKeys(own) {
		if len(prefixes) > 0 && (k == EnvCPPFlags || k == EnvLDFlags) {
			continue
		}

		env = env.With(k, own[k])
	}

	return env
}

// joinFlags orders a flag variable as: inherited value, dependency flags, own flags
func joinFlags(base compiler.Env, key string, deps []string, own map[string]string) string {
	var parts []string
	if existing, ok := base.Get(key); ok && existing != "" {
		parts = append(parts, existing)
	}

	parts = append(parts, deps...)

	if v, ok := own[key]; ok && v != "" {
		parts = append(parts, v)
	}

	return strings.Join(parts, " ")
}

// Commands returns the ordered invocations that compile and install the
// library into its context's prefix. tool resolves a tool name to its path.
func (l *Library) Commands(c Context, env compiler.Env, tool func(string) string) ([]*compiler.ShellCommand, error) {
	switch l.Recipe {
	case Autotools:
		return l.autotoolsCommands(c, env, tool)
	case Cargo:
		return l.cargoCommands(c, env, tool), nil
	}

	return l.cmakeCommands(c, env, tool), nil
}

func (l *Library) cmakeCommands(c Context, env compiler.Env, tool func(string) string) []*compiler.ShellCommand {
	buildType := "Debug"
	if c.Release {
		buildType = "Release"
	}

	buildDir := filepath.Join(c.BuildDir, "build")

	configure := []string{
		"-S", c.SourcesDir,
		"-B", buildDir,
		"-DCMAKE_INSTALL_PREFIX=" + c.Prefix(),
		"-DCMAKE_BUILD_TYPE=" + buildType,
		"-DBUILD_SHARED_LIBS=ON",
	}

	switch c.Target.Platform() {
	case target.Mac:
		arch := c.Target.Arch()
		if arch == "aarch64" {
			arch = "arm64"
		}

		configure = append(configure, "-DCMAKE_OSX_ARCHITECTURES="+arch, "-DCMAKE_MACOSX_RPATH=ON")
	case target.Windows:
		configure = append(configure, "-A", "x64")
	case target.Android:
		configure = append(configure, "-DANDROID_ABI=arm64-v8a", "-DANDROID_PLATFORM="+AndroidPlatform)
		if ndk, ok := env.Get(EnvAndroidNDK); ok && ndk != "" {
			configure = append(configure, "-DCMAKE_TOOLCHAIN_FILE="+filepath.Join(ndk, "build", "cmake", "android.toolchain.cmake"))
		}
	}

	for _, k := range sortedKeys(l.Defines) {
		configure = append(configure, "-D"+k+"="+l.Defines[k])
	}

	cmake := tool("cmake")

	return []*compiler.ShellCommand{
		{Path: cmake, Args: configure, Dir: c.SourcesDir, Env: env},
		{Path: cmake, Args: []string{"--build", buildDir, "--config", buildType, "--parallel"}, Dir: c.SourcesDir, Env: env},
		{Path: cmake, Args: []string{"--install", buildDir, "--config", buildType}, Dir: c.SourcesDir, Env: env},
	}
}

func (l *Library) autotoolsCommands(c Context, env compiler.Env, tool func(string) string) ([]*compiler.ShellCommand, error) {
	if c.Target.IsWindows() {
		return nil, codes.Configurationf("%s is built with autotools and cannot be compiled for %s", l.Name, c.Target)
	}

	buildDir := filepath.Join(c.BuildDir, "build")

	configure := []string{
		"--prefix=" + c.Prefix(),
		"--exec-prefix=" + c.Prefix(),
		"--libdir=" + filepath.Join(c.Prefix(), "lib"),
	}

	if c.Target.Platform() == target.Android {
		configure = append(configure, "--host="+c.Target.String())
	}

	configure = append(configure, l.ConfigureArgs...)

	makeTool := tool("make")

	return []*compiler.ShellCommand{
		{Path: filepath.Join(c.SourcesDir, "configure"), Args: configure, Dir: buildDir, Env: env},
		{Path: makeTool, Dir: buildDir, Env: env},
		{Path: makeTool, Args: []string{"install"}, Dir: buildDir, Env: env},
	}, nil
}

func (l *Library) cargoCommands(c Context, env compiler.Env, tool func(string) string) []*compiler.ShellCommand {
	args := []string{
		"build", "--lib",
		"--manifest-path", filepath.Join(c.SourcesDir, "Cargo.toml"),
		"--target", c.Target.String(),
		"--target-dir", c.BuildDir,
	}

	if c.Release {
		args = append(args, "--release")
	}

	return []*compiler.ShellCommand{
		{Path: tool("cargo"), Args: args, Dir: c.SourcesDir, Env: env},
	}
}
