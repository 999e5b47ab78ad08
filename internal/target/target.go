// Package target describes the compilation destinations the bundler supports
// and the platform family each of them belongs to.
package target

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Platform is the OS family a Target belongs to. It decides the bundle layout.
type Platform int

const (
	Mac Platform = iota
	Windows
	Linux
	Android
)

func (p Platform) String() string {
	switch p {
	case Mac:
		return "mac"
	case Windows:
		return "windows"
	case Linux:
		return "linux"
	case Android:
		return "android"
	}

	return "unknown"
}

// Target is a (cpu architecture, os, abi) triple
type Target string

const (
	X8664AppleDarwin       Target = "x86_64-apple-darwin"
	AArch64AppleDarwin     Target = "aarch64-apple-darwin"
	X8664PcWindowsMsvc     Target = "x86_64-pc-windows-msvc"
	X8664UnknownLinuxGNU   Target = "x86_64-unknown-linux-gnu"
	AArch64UnknownLinuxGNU Target = "aarch64-unknown-linux-gnu"
	AArch64LinuxAndroid    Target = "aarch64-linux-android"
)

var platforms = map[Target]Platform{
	X8664AppleDarwin:       Mac,
	AArch64AppleDarwin:     Mac,
	X8664PcWindowsMsvc:     Windows,
	X8664UnknownLinuxGNU:   Linux,
	AArch64UnknownLinuxGNU: Linux,
	AArch64LinuxAndroid:    Android,
}

// hosts maps GOOS/GOARCH to the triple the toolchain uses for the host
var hosts = map[string]Target{
	"darwin/amd64":  X8664AppleDarwin,
	"darwin/arm64":  AArch64AppleDarwin,
	"windows/amd64": X8664PcWindowsMsvc,
	"linux/amd64":   X8664UnknownLinuxGNU,
	"linux/arm64":   AArch64UnknownLinuxGNU,
}

// Parse resolves a triple, case-insensitively
func Parse(s string) (Target, error) {
	t := Target(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := platforms[t]; !ok {
		return "", fmt.Errorf("unknown target %q (possible values: %s)", s, strings.Join(Possible(), ", "))
	}

	return t, nil
}

// Host returns the target of the machine the bundler runs on
func Host() (Target, error) {
	return hostFor(runtime.GOOS, runtime.GOARCH)
}

func hostFor(goos, goarch string) (Target, error) {
	t, ok := hosts[goos+"/"+goarch]
	if !ok {
		return "", fmt.Errorf("unsupported host platform %s/%s", goos, goarch)
	}

	return t, nil
}

// Possible lists every supported triple in a stable order
func Possible() []string {
	all := make([]string, 0, len(platforms))
	for t := range platforms {
		all = append(all, string(t))
	}

	sort.Strings(all)
	return all
}

func (t Target) String() string {
	return string(t)
}

// Platform returns the OS family of t. Every known target maps to exactly one.
func (t Target) Platform() Platform {
	return platforms[t]
}

// IsUnix reports whether post-processing follows the unix branch
func (t Target) IsUnix() bool {
	return t.Platform() != Windows
}

func (t Target) IsWindows() bool {
	return t.Platform() == Windows
}

// Arch returns the cpu architecture part of the triple
func (t Target) Arch() string {
	arch, _, _ := strings.Cut(string(t), "-")
	return arch
}

// ExecutableExtension is the file extension of a compiled executable, without a dot.
// Android executables are shared objects loaded by the native activity.
func (t Target) ExecutableExtension() string {
	switch t.Platform() {
	case Windows:
		return "exe"
	case Android:
		return "so"
	}

	return ""
}

// SharedLibraryExtension is the extension of a dynamic library, without a dot
func (t Target) SharedLibraryExtension() string {
	switch t.Platform() {
	case Mac:
		return "dylib"
	case Windows:
		return "dll"
	}

	return "so"
}

// SharedLibraryName returns the canonical file name of library name on t:
// libname.so, name.dll or libname.dylib
func (t Target) SharedLibraryName(name string) string {
	if t.IsWindows() {
		return name + "." + t.SharedLibraryExtension()
	}

	return "lib" + name + "." + t.SharedLibraryExtension()
}

// DebugSymbolsName returns the name of the debug symbols that accompany a
// compiled binary, or "" when the platform keeps them inside the binary.
// Windows names the .pdb after the binary with dashes turned into underscores.
func (t Target) DebugSymbolsName(binary string) string {
	switch t.Platform() {
	case Windows:
		stem := strings.TrimSuffix(binary, filepath.Ext(binary))
		return strings.ReplaceAll(stem, "-", "_") + ".pdb"
	case Mac:
		return binary + ".dSYM"
	}

	return ""
}
