package testutil

import (
	"bytes"
	"encoding/binary"
	"os"
)

// Mach-O cpu types used by fixtures
const (
	CPUAmd64 uint32 = 0x01000007
	CPUArm64 uint32 = 0x0100000c
)

// Mach-O load command codes used by fixtures
const (
	lcIDDylib       uint32 = 0xd
	lcLoadDylib     uint32 = 0xc
	lcLoadWeakDylib uint32 = 0x80000018
	lcRpath         uint32 = 0x8000001c
)

// MachO describes a minimal 64-bit little-endian Mach-O file
type MachO struct {
	CPU uint32

	// ID makes the file a dynamic library
	ID         string
	Dylibs     []string
	WeakDylibs []string
	Rpaths     []string
}

// Bytes encodes the header and load commands
func (m MachO) Bytes() []byte {
	var cmds bytes.Buffer
	ncmds := 0

	dylib := func(cmd uint32, name string) {
		payload := padded(name)
		size := uint32(24 + len(payload))
		for _, v := range []uint32{cmd, size, 24, 2, 0x10000, 0x10000} {
			_ = binary.Write(&cmds, binary.LittleEndian, v)
		}
		cmds.Write(payload)
		ncmds++
	}

	if m.ID != "" {
		dylib(lcIDDylib, m.ID)
	}

	for _, name := range m.Dylibs {
		dylib(lcLoadDylib, name)
	}

	for _, name := range m.WeakDylibs {
		dylib(lcLoadWeakDylib, name)
	}

	for _, path := range m.Rpaths {
		payload := padded(path)
		for _, v := range []uint32{lcRpath, uint32(12 + len(payload)), 12} {
			_ = binary.Write(&cmds, binary.LittleEndian, v)
		}
		cmds.Write(payload)
		ncmds++
	}

	cpu := m.CPU
	if cpu == 0 {
		cpu = CPUArm64
	}

	fileType := uint32(2) // executable
	if m.ID != "" {
		fileType = 6 // dylib
	}

	var out bytes.Buffer
	for _, v := range []uint32{0xfeedfacf, cpu, 0, fileType, uint32(ncmds), uint32(cmds.Len()), 0, 0} {
		_ = binary.Write(&out, binary.LittleEndian, v)
	}
	out.Write(cmds.Bytes())

	return out.Bytes()
}

// padded NUL-terminates s and pads it to a multiple of 8 bytes
func padded(s string) []byte {
	b := append([]byte(s), 0)
	for len(b)%8 != 0 {
		b = append(b, 0)
	}

	return b
}

// WriteMachO writes a thin Mach-O file
func WriteMachO(path string, m MachO) error {
	return os.WriteFile(path, m.Bytes(), 0o755)
}

// WriteFatMachO writes a universal file holding one slice per description.
// Every slice needs a distinct CPU.
func WriteFatMachO(path string, slices ...MachO) error {
	const align = 12 // 4096

	var out bytes.Buffer
	for _, v := range []uint32{0xcafebabe, uint32(len(slices))} {
		_ = binary.Write(&out, binary.BigEndian, v)
	}

	offset := uint32(1 << align)
	var bodies [][]byte
	for _, m := range slices {
		body := m.Bytes()
		bodies = append(bodies, body)

		cpu := m.CPU
		if cpu == 0 {
			cpu = CPUArm64
		}

		for _, v := range []uint32{cpu, 0, offset, uint32(len(body)), align} {
			_ = binary.Write(&out, binary.BigEndian, v)
		}

		offset += uint32(len(body))
		offset = (offset + (1 << align) - 1) &^ ((1 << align) - 1)
	}

	for _, body := range bodies {
		for out.Len()%(1<<align) != 0 {
			out.WriteByte(0)
		}
		out.Write(body)
	}

	return os.WriteFile(path, out.Bytes(), 0o755)
}

// WriteELF writes a minimal 64-bit little-endian aarch64 shared object whose
// dynamic section lists needed as DT_NEEDED entries
func WriteELF(path string, needed ...string) error {
	const (
		ehsize  = 64
		shsize  = 64
		dtNeed  = 1
		shtStr  = 3
		shtDyn  = 6
		etDyn   = 3
		emArm64 = 183
	)

	dynstr := []byte{0}
	var offsets []uint64
	for _, name := range needed {
		offsets = append(offsets, uint64(len(dynstr)))
		dynstr = append(dynstr, name...)
		dynstr = append(dynstr, 0)
	}

	var dynamic bytes.Buffer
	for _, off := range offsets {
		_ = binary.Write(&dynamic, binary.LittleEndian, int64(dtNeed))
		_ = binary.Write(&dynamic, binary.LittleEndian, off)
	}
	_ = binary.Write(&dynamic, binary.LittleEndian, [2]uint64{}) // DT_NULL

	shstrtab := []byte("\x00.dynstr\x00.dynamic\x00.shstrtab\x00")

	dynstrOff := uint64(ehsize)
	dynamicOff := dynstrOff + uint64(len(dynstr))
	for dynamicOff%8 != 0 {
		dynamicOff++
	}
	shstrOff := dynamicOff + uint64(dynamic.Len())
	shOff := shstrOff + uint64(len(shstrtab))
	for shOff%8 != 0 {
		shOff++
	}

	var out bytes.Buffer
	out.Write([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	_ = binary.Write(&out, binary.LittleEndian, struct {
		Type, Machine              uint16
		Version                    uint32
		Entry, Phoff, Shoff        uint64
		Flags                      uint32
		Ehsize, Phentsize, Phnum   uint16
		Shentsize, Shnum, Shstrndx uint16
	}{etDyn, emArm64, 1, 0, 0, shOff, 0, ehsize, 56, 0, shsize, 4, 3})

	out.Write(dynstr)
	for uint64(out.Len()) < dynamicOff {
		out.WriteByte(0)
	}
	out.Write(dynamic.Bytes())
	out.Write(shstrtab)
	for uint64(out.Len()) < shOff {
		out.WriteByte(0)
	}

	type section struct {
		Name, Type         uint32
		Flags, Addr        uint64
		Offset, Size       uint64
		Link, Info         uint32
		Addralign, Entsize uint64
	}

	for _, s := range []section{
		{},
		{Name: 1, Type: shtStr, Offset: dynstrOff, Size: uint64(len(dynstr)), Addralign: 1},
		{Name: 9, Type: shtDyn, Offset: dynamicOff, Size: uint64(dynamic.Len()), Link: 1, Addralign: 8, Entsize: 16},
		{Name: 18, Type: shtStr, Offset: shstrOff, Size: uint64(len(shstrtab)), Addralign: 1},
	} {
		_ = binary.Write(&out, binary.LittleEndian, s)
	}

	return os.WriteFile(path, out.Bytes(), 0o755)
}
