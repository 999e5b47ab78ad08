package build

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/Norgate-AV/bundler/internal/codes"
	"github.com/Norgate-AV/bundler/internal/config"
	"github.com/Norgate-AV/bundler/internal/library"
	"github.com/Norgate-AV/bundler/internal/version"
)

// LibraryInfo is a bundled third-party library
type LibraryInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Source  string `json:"source"`
}

// BuildInfo is the snapshot of resolved options exported with the bundle.
// It carries no timestamp so that an unchanged build exports the same bytes.
type BuildInfo struct {
	AppName        string         `json:"app_name"`
	Identifier     string         `json:"identifier"`
	Author         string         `json:"author,omitempty"`
	ExecutableName string         `json:"executable_name"`
	Version        config.Version `json:"version"`
	Target         string         `json:"target"`
	Profile        string         `json:"profile"`
	Executables    []string       `json:"executables"`
	Features       []string       `json:"features,omitempty"`
	Libraries      []LibraryInfo  `json:"libraries"`
	Bundler        string         `json:"bundler"`
}

// NewBuildInfo describes cfg and every library of the build, dependencies
// included, sorted by name
func NewBuildInfo(cfg *config.Config, registry *library.Registry, libs []*library.Library) (*BuildInfo, error) {
	info := &BuildInfo{
		AppName:        cfg.AppName,
		Identifier:     cfg.Identifier,
		Author:         cfg.Author,
		ExecutableName: cfg.ExecutableName,
		Version:        cfg.Version,
		Target:         cfg.Target.String(),
		Profile:        cfg.Profile(),
		Features:       cfg.Features,
		Libraries:      []LibraryInfo{},
		Bundler:        version.Version,
	}

	for _, exe := range cfg.Executables {
		info.Executables = append(info.Executables, cfg.BundledExecutableName(exe))
	}

	seen := make(map[string]bool)
	var walk func(l *library.Library) error
	walk = func(l *library.Library) error {
		if seen[l.Name] {
			return nil
		}

		seen[l.Name] = true
		info.Libraries = append(info.Libraries, LibraryInfo{
			Name:    l.Name,
			Version: l.Version,
			Source:  l.Location.String(),
		})

		for _, name := range l.Dependencies {
			dep, err := registry.Get(name)
			if err != nil {
				return err
			}

			if err := walk(dep); err != nil {
				return err
			}
		}

		return nil
	}

	for _, l := range libs {
		if err := walk(l); err != nil {
			return nil, err
		}
	}

	sort.Slice(info.Libraries, func(i, j int) bool {
		return info.Libraries[i].Name < info.Libraries[j].Name
	})

	return info, nil
}

// Marshal encodes the info as indented JSON with a trailing newline
func (b *BuildInfo) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, err
	}

	return append(data, '\n'), nil
}

// Export writes the info to path unless the file already holds the same
// bytes. Reports whether the file was written.
func (b *BuildInfo) Export(path string) (bool, error) {
	data, err := b.Marshal()
	if err != nil {
		return false, codes.FS("could not encode build info", path, err)
	}

	return WriteIfChanged(path, data)
}

// WriteIfChanged writes data to path unless the file already holds it,
// leaving its modification time alone. Reports whether the file was written.
func WriteIfChanged(path string, data []byte) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, codes.FS("could not create directory", filepath.Dir(path), err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, codes.FS("could not write", path, err)
	}

	return true, nil
}
