package v210

import (
	"github.com/nasa-jpl/golab-vme/vme"
	"github.com/nasa-jpl/golab-vme/vme/sim"
)

// Simulate populates a V210 at addr in crate c.  The identity registers are
// read only and the contact readback follows the commanded relays.
func Simulate(c *sim.Crate, mode vme.AddrMode, addr uint32) *sim.Memory {
	mem := c.Card(mode, addr, Size)
	mem.Poke(offBoardID, 0x1B00)
	mem.Poke(offVXIMfr, Manufacturer)
	mem.Poke(offVXIType, ModelType)
	mem.Poke(offFPGARev, 'A')
	for _, off := range []uintptr{offBoardID, offVXIMfr, offVXIType, offFPGARev} {
		mem.ReadOnly(off)
	}
	for i := 0; i < maskWords; i++ {
		ctl, rcon := offCtl+uintptr(2*i), offRcon+uintptr(2*i)
		mem.OnWrite(ctl, func(m *sim.Memory, v uint16) uint16 {
			m.Poke(rcon, v)
			return v
		})
		mem.ReadOnly(rcon)
	}
	return mem
}
