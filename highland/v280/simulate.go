package v280

import (
	"github.com/nasa-jpl/golab-vme/vme"
	"github.com/nasa-jpl/golab-vme/vme/sim"
)

// Simulate populates a V280 at addr in crate c with the given input states.
// A self test holds the busy bit for busyReads reads, then reports the
// channels in faults as failed.
func Simulate(c *sim.Crate, mode vme.AddrMode, addr uint32, inputs, faults uint64, busyReads int) (*sim.Memory, *sim.Firmware) {
	mem := c.Card(mode, addr, Size)
	ident := map[uintptr]uint16{
		offVXIMfr:  Manufacturer,
		offVXIType: ModelType,
		offModRev:  3,
		offSerial:  517,
		offROMID:   22280,
		offROMRev:  'B',
		offCalID:   1,
		offYCal:    2022,
		offDCal:    0x0B1C,
	}
	for off, v := range ident {
		mem.Poke(off, v)
		mem.ReadOnly(off)
	}
	vme.WriteConcat(mem, offState, groups, inputs)
	for i := 0; i < groups; i++ {
		mem.ReadOnly(offState + uintptr(2*i))
		mem.ReadOnly(offErr + uintptr(2*i))
	}
	mem.OnRead(offMCount, func(m *sim.Memory, stored uint16) uint16 {
		m.Poke(offMCount, stored+1)
		return stored + 1
	})
	fw := &sim.Firmware{
		Reg:        offMacro,
		Busy:       macroBusy,
		StatusMask: macroStatus,
		BusyReads:  busyReads,
		Exec: func(m *sim.Memory, code uint16) uint16 {
			if code != BISTMacro {
				return 0
			}
			words := vme.SplitWords(faults, groups)
			for i, w := range words {
				m.Poke(offErr+uintptr(2*i), w)
			}
			if faults != 0 {
				return 1
			}
			return 0
		},
	}
	fw.Install(mem)
	return mem, fw
}
