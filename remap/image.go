package remap

import (
	"debug/elf"
	"fmt"
)

// Target is a symbolic write location: an address inside a named section.
type Target struct {
	Section string
	Address uint32
}

func (t Target) String() string {
	return fmt.Sprintf("%s:0x%08x", t.Section, t.Address)
}

// Placement is a concrete write location: a file and a byte offset in it.
type Placement struct {
	Path   string
	Offset int64
}

// Image resolves targets to file offsets.
type Image interface {
	Resolve(section string, addr uint32) (Placement, error)
}

// Section describes one file of the destination image.
//
// For a plain memory dump, Base is the load address of file offset 0.
// With ELF set, Base is ignored and the address is looked up in the PT_LOAD
// segments of the file (decrypted EBOOT.BIN / PRX).
type Section struct {
	Path string
	Base uint32
	ELF  bool
}

// Sections is an Image made of named sections, e.g. "eboot".
type Sections map[string]Section

func (s Sections) Resolve(name string, addr uint32) (Placement, error) {
	sec, ok := s[name]
	if !ok {
		return Placement{}, fmt.Errorf("unknown section %q", name)
	}
	if sec.ELF {
		off, err := elfOffset(sec.Path, addr)
		if err != nil {
			return Placement{}, err
		}
		return Placement{Path: sec.Path, Offset: off}, nil
	}
	if addr < sec.Base {
		return Placement{}, fmt.Errorf("address 0x%08x is below base 0x%08x of section %q",
			addr, sec.Base, name)
	}
	return Placement{Path: sec.Path, Offset: int64(addr - sec.Base)}, nil
}

func elfOffset(path string, addr uint32) (int64, error) {
	f, err := elf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open ELF %s: %w", path, err)
	}
	defer f.Close()
	a := uint64(addr)
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if a >= p.Vaddr && a < p.Vaddr+p.Filesz {
			tracer().Debugf("address 0x%08x in segment vaddr=0x%x off=0x%x", addr, p.Vaddr, p.Off)
			return int64(p.Off + (a - p.Vaddr)), nil
		}
	}
	return 0, fmt.Errorf("address 0x%08x is not inside a loadable segment of %s", addr, path)
}
