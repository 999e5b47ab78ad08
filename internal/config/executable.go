package config

import (
	"fmt"
	"strings"
)

// Executable is one of the binaries the toolchain can produce for the bundle
type Executable string

const (
	App        Executable = "app"
	Cli        Executable = "cli"
	AndroidLib Executable = "android"
)

// ParseExecutable resolves an executable name given on the command line
func ParseExecutable(s string) (Executable, error) {
	switch e := Executable(strings.ToLower(strings.TrimSpace(s))); e {
	case App, Cli, AndroidLib:
		return e, nil
	}

	return "", fmt.Errorf("unknown executable %q (possible values: app, cli, android)", s)
}

// PackageName is the toolchain package that produces the executable
func (e Executable) PackageName() string {
	switch e {
	case Cli:
		return "app-desktop-cli"
	case AndroidLib:
		return "app-android"
	}

	return "app-desktop"
}

// BinaryName is the name of the compiled binary, without extension
func (e Executable) BinaryName() string {
	switch e {
	case Cli:
		return "app-cli"
	case AndroidLib:
		return "libapp_android"
	}

	return "app"
}

// CompiledExecutableName is the file name of e as it appears in the compilation directory
func (c *Config) CompiledExecutableName(e Executable) string {
	return withExtension(e.BinaryName(), c.Target.ExecutableExtension())
}

// BundledExecutableName is the file name of e inside the bundle. It derives
// from the executable name chosen by the user.
func (c *Config) BundledExecutableName(e Executable) string {
	var name string

	switch e {
	case Cli:
		name = c.ExecutableName + "-cli"
	case AndroidLib:
		name = "lib" + c.ExecutableName
	default:
		name = c.ExecutableName
	}

	return withExtension(name, c.Target.ExecutableExtension())
}

func withExtension(name, ext string) string {
	if ext == "" {
		return name
	}

	return name + "." + ext
}
