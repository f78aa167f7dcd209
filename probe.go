package tracker

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
)

// Arch is the target executable's instruction-set architecture.
type Arch int

const (
	// UnknownArch is reported for any e_machine value other than the two
	// below.
	UnknownArch Arch = iota
	// X86_32 is e_machine == 0x03 (EM_386).
	X86_32
	// X86_64 is e_machine == 0x3E (EM_X86_64).
	X86_64
)

func (a Arch) String() string {
	switch a {
	case X86_32:
		return "x86-32"
	case X86_64:
		return "x86-64"
	default:
		return "unknown"
	}
}

// TextSection describes the `.text` section's bounds, when the probe was
// able to locate them.
type TextSection struct {
	Addr uint64
	Size uint64
}

// Probe validates that a path names a regular, executable ELF file and
// reports its architecture and (optionally) its `.text` section bounds.
//
// It deliberately reads the handful of header fields it needs directly off
// the file rather than through a general ELF-parsing library: no such
// library is vendored as an importable module anywhere in the retrieved
// corpus (the nearest relative is a single standalone reference file, not
// a go.mod dependency), and the original C tracker.c implementation this
// tool is modeled on does the same hand-parsing of e_machine and the
// section header table. See DESIGN.md for the full justification.
type Probe struct {
	path string
	arch Arch
}

// NewProbe validates path and reports its architecture. It fails with
// NotFound, NotExecutable, NotELF or UnsupportedArch per spec.md §4.G/§7.
func NewProbe(path string) (*Probe, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(newError(NotFound, "%s", path), "%v", err)
		}
		return nil, errors.Wrapf(newError(NotFound, "%s", path), "%v", err)
	}
	if !info.Mode().IsRegular() || info.Mode()&0o111 == 0 {
		return nil, newError(NotExecutable, "%s is not a regular, executable file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(newError(NotFound, "%s", path), "%v", err)
	}
	defer f.Close()

	var ident [0x14]byte
	if _, err := f.ReadAt(ident[:], 0); err != nil {
		return nil, errors.Wrapf(newError(NotELF, "%s: cannot read ELF header", path), "%v", err)
	}

	if ident[0] != 0x7f || ident[1] != 'E' || ident[2] != 'L' || ident[3] != 'F' {
		return nil, newError(NotELF, "%s is not an ELF binary", path)
	}

	var arch Arch
	switch ident[0x12] {
	case 0x03:
		arch = X86_32
	case 0x3e:
		arch = X86_64
	default:
		return nil, newError(UnsupportedArch, "%s: unsupported e_machine 0x%02x", path, ident[0x12])
	}

	return &Probe{path: path, arch: arch}, nil
}

// Arch returns the executable's architecture.
func (p *Probe) Arch() Arch { return p.arch }

// TextBounds parses the ELF section header table to locate `.text`'s
// address and size. It is best-effort: spec.md §4.G marks this optional,
// so a malformed or absent section table yields ok == false rather than
// an error.
func (p *Probe) TextBounds() (section TextSection, ok bool) {
	f, err := os.Open(p.path)
	if err != nil {
		return TextSection{}, false
	}
	defer f.Close()

	is64 := p.arch == X86_64

	var shoff uint64
	var shentsize, shnum, shstrndx uint16

	if is64 {
		var hdr [0x40]byte
		if _, err := f.ReadAt(hdr[:], 0); err != nil {
			return TextSection{}, false
		}
		shoff = binary.LittleEndian.Uint64(hdr[0x28:])
		shentsize = binary.LittleEndian.Uint16(hdr[0x3a:])
		shnum = binary.LittleEndian.Uint16(hdr[0x3c:])
		shstrndx = binary.LittleEndian.Uint16(hdr[0x3e:])
	} else {
		var hdr [0x34]byte
		if _, err := f.ReadAt(hdr[:], 0); err != nil {
			return TextSection{}, false
		}
		shoff = uint64(binary.LittleEndian.Uint32(hdr[0x20:]))
		shentsize = binary.LittleEndian.Uint16(hdr[0x2e:])
		shnum = binary.LittleEndian.Uint16(hdr[0x30:])
		shstrndx = binary.LittleEndian.Uint16(hdr[0x32:])
	}

	if shnum == 0 || shentsize == 0 {
		return TextSection{}, false
	}

	readSectionHeader := func(index uint16, buf []byte) bool {
		_, err := f.ReadAt(buf, int64(shoff)+int64(shentsize)*int64(index))
		return err == nil
	}

	// sh_name sits at offset 0 in both layouts; addrField/sizeField
	// (sh_addr/sh_size) differ between the 32- and 64-bit layouts.
	var nameOff = func(buf []byte) uint32 { return binary.LittleEndian.Uint32(buf[0:4]) }
	var addrField, sizeField func(buf []byte) uint64
	if is64 {
		addrField = func(buf []byte) uint64 { return binary.LittleEndian.Uint64(buf[0x10:]) }
		sizeField = func(buf []byte) uint64 { return binary.LittleEndian.Uint64(buf[0x20:]) }
	} else {
		addrField = func(buf []byte) uint64 { return uint64(binary.LittleEndian.Uint32(buf[0x0c:])) }
		sizeField = func(buf []byte) uint64 { return uint64(binary.LittleEndian.Uint32(buf[0x14:])) }
	}

	strtabHeader := make([]byte, shentsize)
	if !readSectionHeader(shstrndx, strtabHeader) {
		return TextSection{}, false
	}
	strtabOff := addrFieldForOffset(is64, strtabHeader)

	hdr := make([]byte, shentsize)
	for i := uint16(0); i < shnum; i++ {
		if !readSectionHeader(i, hdr) {
			return TextSection{}, false
		}
		off := nameOff(hdr)

		var name [5]byte
		if _, err := f.ReadAt(name[:], int64(strtabOff)+int64(off)); err != nil {
			continue
		}
		if string(name[:]) == ".text" {
			return TextSection{Addr: addrField(hdr), Size: sizeField(hdr)}, true
		}
	}

	return TextSection{}, false
}

// addrFieldForOffset reads sh_offset (not sh_addr) out of a section header,
// used once to resolve the section header string table's file offset.
func addrFieldForOffset(is64 bool, buf []byte) uint64 {
	if is64 {
		return binary.LittleEndian.Uint64(buf[0x18:])
	}
	return uint64(binary.LittleEndian.Uint32(buf[0x10:]))
}
