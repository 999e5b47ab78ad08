package library

import (
	"path/filepath"

	"github.com/Norgate-AV/bundler/internal/config"
	"github.com/Norgate-AV/bundler/internal/target"
)

// Key identifies one cached compilation unit
type Key struct {
	Name    string
	Target  target.Target
	Profile string
}

func (k Key) String() string {
	return k.Name + "/" + k.Target.String() + "/" + k.Profile
}

// Context carries everything a compile call needs to know about where it
// runs. It is a value and is never changed once created.
type Context struct {
	Name       string
	SourcesDir string
	BuildDir   string
	Target     target.Target
	Release    bool
}

// NewContext derives the compilation context of l from the resolved options
func NewContext(cfg *config.Config, l *Library) Context {
	return Context{
		Name:       l.Name,
		SourcesDir: l.SourcesDir(cfg.ThirdPartySourcesDir(), cfg.WorkspaceDir),
		BuildDir:   filepath.Join(cfg.ThirdPartyBuildDir(), l.Name),
		Target:     cfg.Target,
		Release:    cfg.Release,
	}
}

func (c Context) Profile() string {
	if c.Release {
		return "release"
	}

	return "debug"
}

// Key is the cache key: (library name, target, profile)
func (c Context) Key() Key {
	return Key{Name: c.Name, Target: c.Target, Profile: c.Profile()}
}

// Prefix is the install prefix of the compiled library
func (c Context) Prefix() string {
	return c.BuildDir
}
