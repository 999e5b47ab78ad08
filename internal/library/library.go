// Package library describes the third-party native libraries a bundle can ship:
// where their sources live, how they are compiled and what the compiled
// artifact is called on each target.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Norgate-AV/bundler/internal/codes"
	"github.com/Norgate-AV/bundler/internal/target"
)

// Recipe is the build system used to compile a library
type Recipe int

const (
	CMake Recipe = iota
	Autotools
	Cargo
)

func (r Recipe) String() string {
	switch r {
	case Autotools:
		return "autotools"
	case Cargo:
		return "cargo"
	}

	return "cmake"
}

// Tools lists the external tools the recipe drives
func (r Recipe) Tools() []string {
	switch r {
	case Autotools:
		return []string{"make"}
	case Cargo:
		return []string{"cargo"}
	}

	return []string{"cmake"}
}

// CompiledName decides how the compiled artifact is found. The zero value
// expects the canonical name (libname.so, name.dll, libname.dylib); Matching
// accepts any shared library whose file name matches one of the glob patterns.
type CompiledName struct {
	patterns []string
}

// Matching returns a policy that searches for files matching any of patterns
func Matching(patterns ...string) CompiledName {
	return CompiledName{patterns: patterns}
}

// IsDefault reports whether the canonical name is expected
func (n CompiledName) IsDefault() bool {
	return len(n.patterns) == 0
}

func (n CompiledName) String() string {
	if n.IsDefault() {
		return "default"
	}

	return "matching(" + strings.Join(n.patterns, ",") + ")"
}

// Library is an immutable recipe for one third-party library. Dependencies
// are names resolved through the Registry that created it.
type Library struct {
	Name    string
	Version string

	// Stem of the artifact file name, Name when empty
	Stem string

	Location     Location
	Recipe       Recipe
	Dependencies []string
	CompiledName CompiledName

	// CMake cache entries passed as -DKEY=VALUE
	Defines map[string]string

	// Extra arguments of the configure script
	ConfigureArgs []string

	// Toolchain variables of the library itself, applied after those of its dependencies
	Env map[string]string
}

// FileStem is the base name the artifact is canonically named after
func (l *Library) FileStem() string {
	if l.Stem != "" {
		return l.Stem
	}

	return l.Name
}

// FileName is the canonical name of the compiled artifact on t. It is the
// name the library is bundled under, whatever the build system called it.
func (l *Library) FileName(t target.Target) string {
	return t.SharedLibraryName(l.FileStem())
}

// SourcesDir is where the sources are read from. libsDir holds fetched sources
// and workspace anchors relative local paths.
func (l *Library) SourcesDir(libsDir, workspace string) string {
	switch loc := l.Location.(type) {
	case PathLocation:
		if filepath.IsAbs(loc.Path) {
			return loc.Path
		}

		return filepath.Join(workspace, loc.Path)
	case TarLocation:
		return filepath.Join(libsDir, l.Name, loc.Sources)
	}

	return filepath.Join(libsDir, l.Name)
}

// CheckoutDir is where a remote location is fetched to
func (l *Library) CheckoutDir(libsDir string) string {
	return filepath.Join(libsDir, l.Name)
}

// Describe renders every input of the recipe in a stable order. Two libraries
// with the same description compile to the same artifact.
func (l *Library) Describe() string {
	var b strings.Builder

	fmt.Fprintf(&b, "name=%s\nversion=%s\nstem=%s\n", l.Name, l.Version, l.FileStem())
	fmt.Fprintf(&b, "location=%s\nrecipe=%s\ncompiled=%s\n", l.Location, l.Recipe, l.CompiledName)
	fmt.Fprintf(&b, "dependencies=%s\n", strings.Join(l.Dependencies, ","))

	for _, k := range sortedKeys(l.Defines) {
		fmt.Fprintf(&b, "define %s=%s\n", k, l.Defines[k])
	}

	fmt.Fprintf(&b, "configure=%s\n", strings.Join(l.ConfigureArgs, " "))

	for _, k := range sortedKeys(l.Env) {
		fmt.Fprintf(&b, "env %s=%s\n", k, l.Env[k])
	}

	return b.String()
}

// CompiledDirs lists the directories the build leaves shared libraries in
func (l *Library) CompiledDirs(c Context) []string {
	if l.Recipe == Cargo {
		return []string{filepath.Join(c.BuildDir, c.Target.String(), c.Profile())}
	}

	if c.Target.IsWindows() {
		return []string{filepath.Join(c.BuildDir, "bin"), filepath.Join(c.BuildDir, "lib")}
	}

	return []string{filepath.Join(c.BuildDir, "lib")}
}

// Artifact locates the compiled shared library
func (l *Library) Artifact(c Context) (string, error) {
	dirs := l.CompiledDirs(c)

	if l.CompiledName.IsDefault() {
		name := l.FileName(c.Target)
		for _, dir := range dirs {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		return "", codes.FS("could not find compiled "+name, strings.Join(dirs, ", "), os.ErrNotExist)
	}

	ext := "." + c.Target.SharedLibraryExtension()
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		var found []string
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
				continue
			}

			if l.CompiledName.matches(entry.Name()) {
				found = append(found, entry.Name())
			}
		}

		// the unversioned name wins over libz.1.2.11.dylib
		if len(found) > 0 {
			sort.Slice(found, func(i, j int) bool {
				if len(found[i]) != len(found[j]) {
					return len(found[i]) < len(found[j])
				}

				return found[i] < found[j]
			})

			return filepath.Join(dir, found[0]), nil
		}
	}

	return "", codes.FS(fmt.Sprintf("could not find compiled %s %s", l.Name, l.CompiledName), strings.Join(dirs, ", "), os.ErrNotExist)
}

func (n CompiledName) matches(name string) bool {
	for _, pattern := range n.patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}

	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	return keys
}
