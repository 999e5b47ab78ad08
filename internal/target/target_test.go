package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		want     Target
		platform Platform
		wantErr  bool
	}{
		{"x86_64-apple-darwin", X8664AppleDarwin, Mac, false},
		{"AArch64-Apple-Darwin", AArch64AppleDarwin, Mac, false},
		{"x86_64-pc-windows-msvc", X8664PcWindowsMsvc, Windows, false},
		{" x86_64-unknown-linux-gnu ", X8664UnknownLinuxGNU, Linux, false},
		{"aarch64-linux-android", AArch64LinuxAndroid, Android, false},
		{"riscv64-unknown-none", "", 0, true},
		{"", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unknown target")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.platform, got.Platform())
		})
	}
}

func TestEveryTargetHasOnePlatform(t *testing.T) {
	for _, name := range Possible() {
		tgt, err := Parse(name)
		require.NoError(t, err)
		assert.NotEqual(t, "unknown", tgt.Platform().String(), name)
	}
}

func TestHostFor(t *testing.T) {
	got, err := hostFor("darwin", "arm64")
	require.NoError(t, err)
	assert.Equal(t, AArch64AppleDarwin, got)

	_, err = hostFor("plan9", "386")
	assert.Error(t, err)
}

func TestSharedLibraryName(t *testing.T) {
	assert.Equal(t, "libzlib.dylib", X8664AppleDarwin.SharedLibraryName("zlib"))
	assert.Equal(t, "zlib.dll", X8664PcWindowsMsvc.SharedLibraryName("zlib"))
	assert.Equal(t, "libzlib.so", X8664UnknownLinuxGNU.SharedLibraryName("zlib"))
	assert.Equal(t, "libzlib.so", AArch64LinuxAndroid.SharedLibraryName("zlib"))
}

func TestExecutableExtension(t *testing.T) {
	assert.Equal(t, "exe", X8664PcWindowsMsvc.ExecutableExtension())
	assert.Equal(t, "so", AArch64LinuxAndroid.ExecutableExtension())
	assert.Empty(t, X8664AppleDarwin.ExecutableExtension())
	assert.Empty(t, X8664UnknownLinuxGNU.ExecutableExtension())
}

func TestUnixWindowsBranch(t *testing.T) {
	assert.True(t, X8664AppleDarwin.IsUnix())
	assert.True(t, AArch64LinuxAndroid.IsUnix())
	assert.False(t, X8664PcWindowsMsvc.IsUnix())
	assert.True(t, X8664PcWindowsMsvc.IsWindows())
	assert.Equal(t, "aarch64", AArch64LinuxAndroid.Arch())
}

func TestDebugSymbolsName(t *testing.T) {
	assert.Equal(t, "app_cli.pdb", X8664PcWindowsMsvc.DebugSymbolsName("app-cli.exe"))
	assert.Equal(t, "zlib.pdb", X8664PcWindowsMsvc.DebugSymbolsName("zlib.dll"))
	assert.Equal(t, "libzlib.dylib.dSYM", AArch64AppleDarwin.DebugSymbolsName("libzlib.dylib"))
	assert.Equal(t, "", X8664UnknownLinuxGNU.DebugSymbolsName("libzlib.so"))
}
