package vme

import (
	"fmt"
	"strings"
)

// AddrMode is a VME address space
type AddrMode uint32

// Config is the configuration word of a region
type Config uint32

// Capability is a set of optional features a module variant carries
type Capability uint32

const (
	// A16 is the 16-bit (short) address space
	A16 AddrMode = 0x1

	// A24 is the 24-bit (standard) address space
	A24 AddrMode = 0x2

	// A32 is the 32-bit (extended) address space.  It parses, but none of
	// the Highland modules here decode it
	A32 AddrMode = 0x3

	// ModeMask selects the address mode bits of a Config
	ModeMask Config = 0x3

	// SMax lets the controller pick the largest bus cycle (auto-size)
	SMax Config = 1 << 4

	// EAuto auto-increments the bus address across a region access
	EAuto Config = 1 << 5

	// RW maps the region read/write
	RW Config = 1 << 6

	// D16 restricts accesses to 16-bit data transfers
	D16 Config = 1 << 7
)

var topOfSpace = map[AddrMode]uint64{
	A16: 1 << 16,
	A24: 1 << 24,
}

// ParseAddrMode converts "a16", "a24" or "a32" (case insensitive) to an AddrMode
func ParseAddrMode(s string) (AddrMode, error) {
	switch strings.ToLower(s) {
	case "a16":
		return A16, nil
	case "a24":
		return A24, nil
	case "a32":
		return A32, nil
	default:
		return 0, fmt.Errorf("%w: %q, must be a member of {a16, a24, a32}", ErrInvalidMode, s)
	}
}

func (m AddrMode) String() string {
	switch m {
	case A16:
		return "A16"
	case A24:
		return "A24"
	case A32:
		return "A32"
	default:
		return fmt.Sprintf("AddrMode(%d)", uint32(m))
	}
}

// Module describes one module type: the size of its register map, the host
// buffer its bulk transfers need and its optional capabilities
type Module struct {
	// Name is the model name, e.g. "V230-21"
	Name string

	// Size is the byte length of the register map
	Size uintptr

	// Caps is the set of optional features this variant carries
	Caps Capability

	// BufferWords is the length of the host buffer allocated at bind for
	// block transfers, zero for none
	BufferWords int

	// BufferOffset is the byte offset into the register map where block
	// transfers start
	BufferOffset uintptr
}

// Has returns true if every capability in c is present
func (m Module) Has(c Capability) bool {
	return m.Caps&c == c
}

// Ceiling returns the largest legal base address for the module in mode,
// the top of the address space less the register map
func (m Module) Ceiling(mode AddrMode) (uint32, error) {
	top, ok := topOfSpace[mode]
	if !ok {
		return 0, ErrInvalidMode
	}
	return uint32(top - uint64(m.Size)), nil
}

// Validate returns nil if addr is a legal base address for the module in mode.
// It never touches the bus.
func (m Module) Validate(addr uint32, mode AddrMode) error {
	ceil, err := m.Ceiling(mode)
	if err != nil {
		return fmt.Errorf("%s: %w", m.Name, err)
	}
	if addr > ceil {
		return fmt.Errorf("%s: %w: 0x%08X exceeds 0x%08X for %s", m.Name, ErrInvalidAddress, addr, ceil, mode)
	}
	return nil
}
