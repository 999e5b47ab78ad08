package library

import (
	"sort"
	"strings"

	"github.com/Norgate-AV/bundler/internal/codes"
)

// Constructor builds a library at the given version, or at its default
// version when the string is empty
type Constructor func(version string) *Library

// Registry resolves library names to recipes. Dependencies refer to entries
// of the same registry by name.
type Registry struct {
	constructors map[string]Constructor
	versions     map[string]string
	libraries    map[string]*Library
}

// NewRegistry creates an empty registry pinned to the given versions
func NewRegistry(versions map[string]string) *Registry {
	pinned := make(map[string]string, len(versions))
	for name, v := range versions {
		pinned[strings.ToLower(name)] = v
	}

	return &Registry{
		constructors: make(map[string]Constructor),
		versions:     pinned,
		libraries:    make(map[string]*Library),
	}
}

// DefaultRegistry holds every library the bundler knows how to compile
func DefaultRegistry(versions map[string]string) *Registry {
	r := NewRegistry(versions)

	r.Register("zlib", zlib)
	r.Register("png", png)
	r.Register("freetype", freetype)
	r.Register("pixman", pixman)
	r.Register("cairo", cairo)
	r.Register("ssh2", ssh2)
	r.Register("git2", git2)
	r.Register("sdl2", sdl2)
	r.Register("boxer", boxer)
	r.Register("winit", winit)
	r.Register("clipboard", clipboard)
	r.Register("process", process)
	r.Register("test-library", testLibrary)

	return r
}

// Register adds or replaces a constructor
func (r *Registry) Register(name string, c Constructor) {
	name = strings.ToLower(name)
	r.constructors[name] = c
	delete(r.libraries, name)
}

// Names returns the known library names, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

// Get returns the library called name. Each library is constructed once.
func (r *Registry) Get(name string) (*Library, error) {
	name = strings.ToLower(name)

	if l, ok := r.libraries[name]; ok {
		return l, nil
	}

	c, ok := r.constructors[name]
	if !ok {
		return nil, codes.Configurationf("unknown library %q (possible values: %s)", name, strings.Join(r.Names(), ", "))
	}

	l := c(r.versions[name])
	l.Name = name
	r.libraries[name] = l

	return l, nil
}

// Resolve returns the requested libraries, checking that every transitive
// dependency is known as well
func (r *Registry) Resolve(names []string) ([]*Library, error) {
	libs := make([]*Library, 0, len(names))
	seen := make(map[string]bool)

	for _, name := range names {
		l, err := r.Get(name)
		if err != nil {
			return nil, err
		}

		if seen[l.Name] {
			continue
		}

		seen[l.Name] = true

		if err := r.checkDependencies(l, map[string]bool{}); err != nil {
			return nil, err
		}

		libs = append(libs, l)
	}

	return libs, nil
}

func (r *Registry) checkDependencies(l *Library, checked map[string]bool) error {
	for _, name := range l.Dependencies {
		if checked[name] {
			continue
		}

		checked[name] = true

		dep, err := r.Get(name)
		if err != nil {
			return codes.Configurationf("library %s depends on unknown library %q", l.Name, name)
		}

		if err := r.checkDependencies(dep, checked); err != nil {
			return err
		}
	}

	return nil
}

// Versions returns the version of every library constructed so far
func (r *Registry) Versions() map[string]string {
	versions := make(map[string]string, len(r.libraries))
	for name, l := range r.libraries {
		versions[name] = l.Version
	}

	return versions
}
