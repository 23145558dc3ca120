package v230

import "unsafe"

// regs is the V230 register map, used only to compute offsets
type regs struct {
	VXIMfr  uint16
	VXIType uint16
	_       uint16
	Serial  uint16
	ROMID   uint16
	ROMRev  uint16
	MCount  uint16
	Dash    uint16
	Scan    uint16
	_       [2]uint16
	Relays  uint16
	ULED    uint16
	Mode    uint16
	CalID   uint16
	Cher    uint16
	Macro   uint16
	MP      [3]uint16
	YCal    uint16
	DCal    uint16
	Bern    uint16
	BMux    uint16
	_       [40]uint16
	Ctl     [Channels]uint16
	RDat    [Channels]uint16
	BIST    [32]uint16
	_       [16]uint16
	PErr    uint16
	EP1     uint16
	EP2     uint16
	EP2_5   uint16
	EP3     uint16
	EP5     uint16
	EP15    uint16
	EM15    uint16
	_       [6]uint16
	UTest   uint16
	HTest   uint16
}

const (
	offVXIMfr  = unsafe.Offsetof(regs{}.VXIMfr)
	offVXIType = unsafe.Offsetof(regs{}.VXIType)
	offSerial  = unsafe.Offsetof(regs{}.Serial)
	offROMID   = unsafe.Offsetof(regs{}.ROMID)
	offROMRev  = unsafe.Offsetof(regs{}.ROMRev)
	offMCount  = unsafe.Offsetof(regs{}.MCount)
	offDash    = unsafe.Offsetof(regs{}.Dash)
	offScan    = unsafe.Offsetof(regs{}.Scan)
	offRelays  = unsafe.Offsetof(regs{}.Relays)
	offULED    = unsafe.Offsetof(regs{}.ULED)
	offMode    = unsafe.Offsetof(regs{}.Mode)
	offCalID   = unsafe.Offsetof(regs{}.CalID)
	offCher    = unsafe.Offsetof(regs{}.Cher)
	offMacro   = unsafe.Offsetof(regs{}.Macro)
	offMP      = unsafe.Offsetof(regs{}.MP)
	offYCal    = unsafe.Offsetof(regs{}.YCal)
	offDCal    = unsafe.Offsetof(regs{}.DCal)
	offBern    = unsafe.Offsetof(regs{}.Bern)
	offBMux    = unsafe.Offsetof(regs{}.BMux)
	offCtl     = unsafe.Offsetof(regs{}.Ctl)
	offRDat    = unsafe.Offsetof(regs{}.RDat)
	offBIST    = unsafe.Offsetof(regs{}.BIST)
	offPErr    = unsafe.Offsetof(regs{}.PErr)
	offEP1     = unsafe.Offsetof(regs{}.EP1)
	offUTest   = unsafe.Offsetof(regs{}.UTest)
	offHTest   = unsafe.Offsetof(regs{}.HTest)

	// Size is the byte length of the register map
	Size = unsafe.Sizeof(regs{})
)

// these fail to compile if the layout drifts from the manual
var (
	_ = [1]struct{}{}[offSerial-0x006]
	_ = [1]struct{}{}[offRelays-0x016]
	_ = [1]struct{}{}[offMacro-0x020]
	_ = [1]struct{}{}[offYCal-0x028]
	_ = [1]struct{}{}[offCtl-0x080]
	_ = [1]struct{}{}[offRDat-0x100]
	_ = [1]struct{}{}[offBIST-0x180]
	_ = [1]struct{}{}[offPErr-0x1E0]
	_ = [1]struct{}{}[offUTest-0x1FC]
	_ = [1]struct{}{}[offHTest-0x1FE]
	_ = [1]struct{}{}[Size-0x200]
)

// RELAYS register
const (
	relayKMask uint16 = 0x3F
	relayC     uint16 = 1 << 7
	relayB0    uint16 = 1 << 8
)

// MODE register
const (
	modeMask uint16 = 0x3
	modeSlow uint16 = 1 << 8
)

// MACRO register
const macroBusy uint16 = 1 << 15

// BMUX register
const (
	bmuxNegMask uint16 = 0x7
	bmuxPosMask uint16 = 0x7 << 4
)

// CTL register
const (
	ctlRangeMask  uint16 = 0x3
	ctlFilterMask uint16 = 0x3 << 4
	ctlEnable     uint16 = 1 << 8
)

// BIST reporting flags, one byte per channel
const (
	bistZER uint16 = 1 << 4
	bistPER uint16 = 1 << 5
	bistNER uint16 = 1 << 6
	bistCER uint16 = 1 << 7
)
