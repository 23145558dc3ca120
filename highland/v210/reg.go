package v210

import "unsafe"

// regs is the V210 register map.  It is never instantiated; it exists so the
// offsets below are computed by the compiler and checked against the manual.
type regs struct {
	BoardID uint16
	CSR     uint16
	VXIMfr  uint16
	VXIType uint16
	FPGARev uint16
	_       [3]uint16
	Ctl     [4]uint16
	Rcon    [4]uint16
}

const (
	offBoardID = unsafe.Offsetof(regs{}.BoardID)
	offCSR     = unsafe.Offsetof(regs{}.CSR)
	offVXIMfr  = unsafe.Offsetof(regs{}.VXIMfr)
	offVXIType = unsafe.Offsetof(regs{}.VXIType)
	offFPGARev = unsafe.Offsetof(regs{}.FPGARev)
	offCtl     = unsafe.Offsetof(regs{}.Ctl)
	offRcon    = unsafe.Offsetof(regs{}.Rcon)

	// Size is the byte length of the register map
	Size = unsafe.Sizeof(regs{})
)

// these fail to compile if the layout drifts from the manual
var (
	_ = [1]struct{}{}[offCSR-0x02]
	_ = [1]struct{}{}[offFPGARev-0x08]
	_ = [1]struct{}{}[offCtl-0x10]
	_ = [1]struct{}{}[offRcon-0x18]
	_ = [1]struct{}{}[Size-0x20]
)

const (
	// csrErrLED is the error LED bit, active low
	csrErrLED uint16 = 1 << 15

	// csrP4TM enables the relay drivers on the P4 connector
	csrP4TM uint16 = 1 << 14

	// csrP3TM enables the relay drivers on the P3 connector
	csrP3TM uint16 = 1 << 13

	maskWords = 4
)
