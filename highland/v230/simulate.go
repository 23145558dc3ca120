package v230

import (
	"math"

	"github.com/nasa-jpl/golab-vme/vme"
	"github.com/nasa-jpl/golab-vme/vme/sim"
)

// supply telemetry reported by a healthy module, in millivolts
var simSupplies = [NumSupplies]int16{1200, 2048, 2500, 3300, 5000, 15000, -15000}

// SimulatedInput is the voltage the simulated module sees on channel ch
func SimulatedInput(ch int) float64 {
	return float64(ch-32) * 0.25
}

// Simulate populates a V230 of variant m at addr in crate c.  Samples follow
// SimulatedInput, clipped to each channel's range.  Macros hold the busy bit
// for busyReads reads of the macro register.  The returned firmware records
// every macro issued.
func Simulate(c *sim.Crate, m vme.Module, mode vme.AddrMode, addr uint32, busyReads int) (*sim.Memory, *sim.Firmware) {
	mem := c.Card(mode, addr, Size)
	dash := uint16(0)
	switch m.Name {
	case Module2.Name:
		dash = 2
	case Module21.Name:
		dash = 21
	}
	ident := map[uintptr]uint16{
		offVXIMfr:  Manufacturer,
		offVXIType: ModelType,
		offSerial:  1042,
		offROMID:   22230,
		offROMRev:  'C',
		offDash:    dash,
		offCalID:   1,
		offYCal:    2023,
		offDCal:    0x0315,
		offHTest:   HTestPattern,
	}
	for off, v := range ident {
		mem.Poke(off, v)
		mem.ReadOnly(off)
	}
	mem.Poke(offCher, vme.NoChannel)
	for _, counter := range []uintptr{offScan, offMCount} {
		off := counter
		mem.OnRead(off, func(m *sim.Memory, stored uint16) uint16 {
			m.Poke(off, stored+1)
			return stored + 1
		})
	}
	mem.OnRead(offCher, func(m *sim.Memory, _ uint16) uint16 {
		for ch := 0; ch < Channels; ch++ {
			cfg := decodeConfig(m.Peek(offCtl + uintptr(2*ch)))
			if cfg.Enable && (!cfg.Range.Valid() || !cfg.Filter.Valid()) {
				return uint16(ch)
			}
		}
		return vme.NoChannel
	})
	for i := 0; i < Channels; i++ {
		ch := i
		mem.OnRead(offRDat+uintptr(2*ch), func(m *sim.Memory, _ uint16) uint16 {
			return sample(m.Peek(offCtl+uintptr(2*ch)), SimulatedInput(ch))
		})
	}
	writeSupplies(mem)

	fw := &sim.Firmware{
		Reg:       offMacro,
		Busy:      macroBusy,
		BusyReads: busyReads,
		Exec: func(m *sim.Memory, code uint16) uint16 {
			switch MacroCode(code) {
			case FullBIST:
				for i := 0; i < 32; i++ {
					m.Poke(offBIST+uintptr(2*i), 0)
				}
				m.Poke(offBern, 0)
			case ChannelTest:
				ch := int(m.Peek(offMP))
				m.Poke(offBIST, 0)
				for i := 1; i <= bistMeasurements; i++ {
					m.Poke(offBIST+uintptr(2*i), uint16(int16(ch*100+i)))
				}
			case PSTest:
				writeSupplies(m)
			}
			return 0
		},
	}
	fw.Install(mem)
	return mem, fw
}

func writeSupplies(m *sim.Memory) {
	m.Poke(offPErr, 0)
	for i, mv := range simSupplies {
		m.Poke(offEP1+uintptr(2*i), uint16(mv))
	}
}

func sample(ctl uint16, volts float64) uint16 {
	scale, err := decodeConfig(ctl).Range.Scale()
	if err != nil {
		return 0
	}
	counts := math.Round(volts / scale)
	counts = math.Max(math.Min(counts, math.MaxInt16), math.MinInt16)
	return uint16(int16(counts))
}
