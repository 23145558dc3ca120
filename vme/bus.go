package vme

import "io"

// XferFlags encode the address and data width of a block transfer
type XferFlags uint32

// Direction is the direction of a block transfer
type Direction int

const (
	// XferA16 performs the transfer in the A16 space
	XferA16 XferFlags = 1 << iota

	// XferA24 performs the transfer in the A24 space
	XferA24

	// XferD16 uses 16-bit data cycles
	XferD16

	// XferEShort swaps bytes of each 16-bit word for the host
	XferEShort
)

const (
	// FromBus copies module registers into the host buffer
	FromBus Direction = iota

	// ToBus copies the host buffer into module registers
	ToBus
)

// Memory is a live view of a mapped register block.  Offsets are in bytes
// from the start of the region and must be even.
type Memory interface {
	// Read16 returns the register at off as it is now
	Read16(off uintptr) uint16

	// Write16 stores v in the register at off; side effects in hardware
	// happen immediately
	Write16(off uintptr, v uint16)
}

// Xfer describes one synchronous block transfer
type Xfer struct {
	// Flags encodes address and data width
	Flags XferFlags

	// Dir is the direction of the copy
	Dir Direction

	// Addr is the bus address of the first word
	Addr uint32

	// Buf is the host side of the transfer; its length is the word count
	Buf []uint16
}

// Bus is the bus controller collaborator.  Regions are registered with
// AddRegion, then Allocate maps every pending region in one call.
type Bus interface {
	io.Closer

	// AddRegion registers r.  The region is not usable until Allocate succeeds.
	AddRegion(r *Region) error

	// Allocate maps all pending regions and sets their Mem
	Allocate() error

	// Transfer performs a block transfer and returns when it is complete
	Transfer(x Xfer) error
}

// RegionRemover is implemented by buses that can forget a region
type RegionRemover interface {
	RemoveRegion(r *Region) error
}

// Flags returns the block transfer flags matching an address mode
func (m AddrMode) Flags() XferFlags {
	f := XferD16 | XferEShort
	if m == A24 {
		return f | XferA24
	}
	return f | XferA16
}
