package library

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/bundler/internal/codes"
	"github.com/Norgate-AV/bundler/internal/compiler"
	"github.com/Norgate-AV/bundler/internal/target"
)

func bareTool(name string) string {
	return name
}

func TestToolchainEnv_DependencyFirst(t *testing.T) {
	sep := string(filepath.ListSeparator)
	base := compiler.Env{"CPPFLAGS=-DBASE", "PKG_CONFIG_PATH=/usr/lib/pkgconfig"}

	env := ToolchainEnv(base, []string{"/p/zlib", "/p/png"}, map[string]string{
		"CPPFLAGS": "-DOWN",
		"LIBS":     "-lbz2",
	})

	pkg, _ := env.Get(EnvPkgConfigPath)
	assert.Equal(t, strings.Join([]string{
		filepath.Join("/p/zlib", "lib", "pkgconfig"),
		filepath.Join("/p/png", "lib", "pkgconfig"),
		"/usr/lib/pkgconfig",
	}, sep), pkg)

	cpp, _ := env.Get(EnvCPPFlags)
	assert.Equal(t, "-DBASE -I"+filepath.Join("/p/zlib", "include")+" -I"+filepath.Join("/p/png", "include")+" -DOWN", cpp)

	ld, _ := env.Get(EnvLDFlags)
	assert.Equal(t, "-L"+filepath.Join("/p/zlib", "lib")+" -L"+filepath.Join("/p/png", "lib"), ld)

	prefixes, _ := env.Get(EnvCMakePrefixPath)
	assert.Equal(t, "/p/zlib"+sep+"/p/png", prefixes)

	libs, _ := env.Get("LIBS")
	assert.Equal(t, "-lbz2", libs)

	assert.Equal(t, compiler.Env{"CPPFLAGS=-DBASE", "PKG_CONFIG_PATH=/usr/lib/pkgconfig"}, base)
}

func TestToolchainEnv_NoDependencies(t *testing.T) {
	env := ToolchainEnv(compiler.Env{"A=1"}, nil, map[string]string{"CPPFLAGS": "-DOWN"})

	_, ok := env.Get(EnvPkgConfigPath)
	assert.False(t, ok)

	cpp, _ := env.Get(EnvCPPFlags)
	assert.Equal(t, "-DOWN", cpp)
}

func TestCommands_CMake(t *testing.T) {
	c := Context{Name: "png", SourcesDir: "/src/png", BuildDir: "/out/png", Target: target.AArch64AppleDarwin}
	l := &Library{Name: "png", Recipe: CMake, Defines: map[string]string{"PNG_TESTS": "OFF", "A": "B"}}

	cmds, err := l.Commands(c, compiler.Env{"X=1"}, bareTool)
	require.NoError(t, err)
	require.Len(t, cmds, 3)

	build := filepath.Join("/out/png", "build")

	assert.Equal(t, "cmake", cmds[0].Path)
	assert.Equal(t, []string{
		"-S", "/src/png", "-B", build,
		"-DCMAKE_INSTALL_PREFIX=/out/png", "-DCMAKE_BUILD_TYPE=Debug", "-DBUILD_SHARED_LIBS=ON",
		"-DCMAKE_OSX_ARCHITECTURES=arm64", "-DCMAKE_MACOSX_RPATH=ON",
		"-DA=B", "-DPNG_TESTS=OFF",
	}, cmds[0].Args)
	assert.Equal(t, []string{"--build", build, "--config", "Debug", "--parallel"}, cmds[1].Args)
	assert.Equal(t, []string{"--install", build, "--config", "Debug"}, cmds[2].Args)

	for _, cmd := range cmds {
		assert.Equal(t, compiler.Env{"X=1"}, cmd.Env)
	}
}

func TestCommands_CMakeTargets(t *testing.T) {
	l := &Library{Name: "zlib", Recipe: CMake}

	cmds, err := l.Commands(Context{BuildDir: "/o", Target: target.X8664PcWindowsMsvc, Release: true}, nil, func(string) string { return "C:/cmake.exe" })
	require.NoError(t, err)
	assert.Equal(t, "C:/cmake.exe", cmds[0].Path)
	assert.Contains(t, cmds[0].Args, "-DCMAKE_BUILD_TYPE=Release")
	assert.Contains(t, cmds[0].Args, "x64")

	cmds, err = l.Commands(Context{BuildDir: "/o", Target: target.AArch64LinuxAndroid}, compiler.Env{"ANDROID_NDK_HOME=/ndk"}, bareTool)
	require.NoError(t, err)
	assert.Contains(t, cmds[0].Args, "-DANDROID_ABI=arm64-v8a")
	assert.Contains(t, cmds[0].Args, "-DCMAKE_TOOLCHAIN_FILE="+filepath.Join("/ndk", "build", "cmake", "android.toolchain.cmake"))
}

func TestCommands_Autotools(t *testing.T) {
	c := Context{Name: "pixman", SourcesDir: "/src/pixman", BuildDir: "/out/pixman", Target: target.X8664UnknownLinuxGNU}
	l := &Library{Name: "pixman", Recipe: Autotools, ConfigureArgs: []string{"--disable-gtk"}}

	cmds, err := l.Commands(c, nil, bareTool)
	require.NoError(t, err)
	require.Len(t, cmds, 3)

	build := filepath.Join("/out/pixman", "build")

	assert.Equal(t, filepath.Join("/src/pixman", "configure"), cmds[0].Path)
	assert.Equal(t, []string{
		"--prefix=/out/pixman", "--exec-prefix=/out/pixman", "--libdir=" + filepath.Join("/out/pixman", "lib"), "--disable-gtk",
	}, cmds[0].Args)
	assert.Equal(t, build, cmds[0].Dir)
	assert.Equal(t, "make", cmds[1].String())
	assert.Equal(t, "make install", cmds[2].String())

	_, err = l.Commands(Context{Target: target.X8664PcWindowsMsvc}, nil, bareTool)
	require.Error(t, err)
	assert.True(t, codes.IsKind(err, codes.Configuration))
}

func TestCommands_Cargo(t *testing.T) {
	c := Context{Name: "boxer", SourcesDir: "/src/boxer", BuildDir: "/out/boxer", Target: target.X8664UnknownLinuxGNU, Release: true}
	l := &Library{Name: "boxer", Recipe: Cargo}

	cmds, err := l.Commands(c, nil, bareTool)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, []string{
		"build", "--lib", "--manifest-path", filepath.Join("/src/boxer", "Cargo.toml"),
		"--target", "x86_64-unknown-linux-gnu", "--target-dir", "/out/boxer", "--release",
	}, cmds[0].Args)
	assert.Equal(t, "/src/boxer", cmds[0].Dir)
}
