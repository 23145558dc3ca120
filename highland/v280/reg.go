package v280

import "unsafe"

type regs struct {
	VXIMfr  uint16
	VXIType uint16
	ModRev  uint16
	Serial  uint16
	ROMID   uint16
	ROMRev  uint16
	MCount  uint16
	Dash    uint16
	CalID   uint16
	YCal    uint16
	DCal    uint16
	_       uint16
	ULED    uint16
	_       [3]uint16
	Macro   uint16
	MP      [4]uint16
	_       [3]uint16
	State   [groups]uint16
	_       uint16
	Rise    [groups]uint16
	_       uint16
	Fall    [groups]uint16
	_       uint16
	Err     [groups]uint16
	_       [89]uint16
	Buf     [BufferWords]uint16
}

const (
	offVXIMfr  = unsafe.Offsetof(regs{}.VXIMfr)
	offVXIType = unsafe.Offsetof(regs{}.VXIType)
	offModRev  = unsafe.Offsetof(regs{}.ModRev)
	offSerial  = unsafe.Offsetof(regs{}.Serial)
	offROMID   = unsafe.Offsetof(regs{}.ROMID)
	offROMRev  = unsafe.Offsetof(regs{}.ROMRev)
	offMCount  = unsafe.Offsetof(regs{}.MCount)
	offDash    = unsafe.Offsetof(regs{}.Dash)
	offCalID   = unsafe.Offsetof(regs{}.CalID)
	offYCal    = unsafe.Offsetof(regs{}.YCal)
	offDCal    = unsafe.Offsetof(regs{}.DCal)
	offULED    = unsafe.Offsetof(regs{}.ULED)
	offMacro   = unsafe.Offsetof(regs{}.Macro)
	offMP      = unsafe.Offsetof(regs{}.MP)
	offState   = unsafe.Offsetof(regs{}.State)
	offRise    = unsafe.Offsetof(regs{}.Rise)
	offFall    = unsafe.Offsetof(regs{}.Fall)
	offErr     = unsafe.Offsetof(regs{}.Err)
	offBuf     = unsafe.Offsetof(regs{}.Buf)

	// Size is the byte length of the register map
	Size = unsafe.Sizeof(regs{})
)

var (
	_ = [1]struct{}{}[offULED-0x18]
	_ = [1]struct{}{}[offMacro-0x20]
	_ = [1]struct{}{}[offState-0x30]
	_ = [1]struct{}{}[offRise-0x38]
	_ = [1]struct{}{}[offFall-0x40]
	_ = [1]struct{}{}[offErr-0x48]
	_ = [1]struct{}{}[offBuf-0x100]
	_ = [1]struct{}{}[Size-0x200]
)

const (
	macroBusy uint16 = 1 << 15

	// macroStatus is the completion status field of the macro register
	macroStatus uint16 = 0xFF00

	groups          = 3
	channelsPerWord = 16
)
