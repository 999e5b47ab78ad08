// Package postprocess edits compiled binaries so they work once moved into a
// bundle: Mach-O library search paths, Windows resources and stack size, and
// the shared library closure of Android native code.
package postprocess

import (
	"bytes"
	"debug/macho"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
)

// Mach-O load commands that reference or identify a dynamic library
const (
	LoadCmdIDDylib       macho.LoadCmd = 0xd
	LoadCmdLoadDylib     macho.LoadCmd = 0xc
	LoadCmdLoadWeakDylib macho.LoadCmd = 0x80000018
	LoadCmdReexportDylib macho.LoadCmd = 0x8000001f
	LoadCmdUpwardDylib   macho.LoadCmd = 0x80000023
	LoadCmdLazyLoadDylib macho.LoadCmd = 0x20
	LoadCmdRpath         macho.LoadCmd = 0x8000001c
)

// Dylib is a dynamic library reference
type Dylib struct {
	Cmd  macho.LoadCmd
	Name string
}

// LoadCommands is the part of a Mach-O binary the rpath rewriter cares about
type LoadCommands struct {
	// ID is the identity of a dynamic library, empty for executables
	ID     string
	Dylibs []Dylib
	Rpaths []string
}

// ReadLoadCommands parses a thin or universal Mach-O file. For a universal
// file the commands of every architecture are merged.
func ReadLoadCommands(path string) (LoadCommands, error) {
	fat, err := macho.OpenFat(path)
	if err == nil {
		defer fat.Close()

		var merged LoadCommands
		for _, arch := range fat.Arches {
			lc, err := loadCommands(arch.File)
			if err != nil {
				return LoadCommands{}, err
			}

			merged = merged.merge(lc)
		}

		return merged, nil
	}

	if !errors.Is(err, macho.ErrNotFat) {
		return LoadCommands{}, err
	}

	f, err := macho.Open(path)
	if err != nil {
		return LoadCommands{}, err
	}
	defer f.Close()

	return loadCommands(f)
}

func loadCommands(f *macho.File) (LoadCommands, error) {
	var lc LoadCommands

	for _, load := range f.Loads {
		raw := load.Raw()
		if len(raw) < 12 {
			continue
		}

		cmd := macho.LoadCmd(f.ByteOrder.Uint32(raw[0:4]))

		switch cmd {
		case LoadCmdIDDylib, LoadCmdLoadDylib, LoadCmdLoadWeakDylib, LoadCmdReexportDylib, LoadCmdUpwardDylib, LoadCmdLazyLoadDylib:
			name, err := lcString(raw, f.ByteOrder)
			if err != nil {
				return LoadCommands{}, err
			}

			if cmd == LoadCmdIDDylib {
				lc.ID = name
			} else {
				lc.Dylibs = append(lc.Dylibs, Dylib{Cmd: cmd, Name: name})
			}
		case LoadCmdRpath:
			path, err := lcString(raw, f.ByteOrder)
			if err != nil {
				return LoadCommands{}, err
			}

			lc.Rpaths = append(lc.Rpaths, path)
		}
	}

	return lc, nil
}

// lcString reads the string a load command points at with the offset stored
// right after cmd and cmdsize
func lcString(raw []byte, order binary.ByteOrder) (string, error) {
	offset := order.Uint32(raw[8:12])
	if offset >= uint32(len(raw)) {
		return "", fmt.Errorf("invalid string offset %d in load command", offset)
	}

	s := raw[offset:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}

	return string(s), nil
}

func (lc LoadCommands) merge(other LoadCommands) LoadCommands {
	if lc.ID == "" {
		lc.ID = other.ID
	}

	for _, d := range other.Dylibs {
		if !slices.Contains(lc.Dylibs, d) {
			lc.Dylibs = append(lc.Dylibs, d)
		}
	}

	for _, r := range other.Rpaths {
		if !slices.Contains(lc.Rpaths, r) {
			lc.Rpaths = append(lc.Rpaths, r)
		}
	}

	return lc
}
