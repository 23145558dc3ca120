/*Package sim provides an in-memory VME crate that satisfies vme.Bus.

Each card is a block of 16-bit registers at a base address in one address
space.  Registers are plain storage unless a read or write hook is attached,
which is how module firmware (busy bits, self tests, read-only identity
registers) is modeled.  Block transfers read through the hooks just as bus
cycles would.
*/
package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nasa-jpl/golab-vme/vme"
)

// ErrNoCard is generated by Transfer when no card answers the address
var ErrNoCard = errors.New("sim: no card at address (bus error)")

// ReadHook is called on a register read with the stored value; it returns
// the value the bus sees
type ReadHook func(m *Memory, stored uint16) uint16

// WriteHook is called on a register write with the written value; it returns
// the value to store
type WriteHook func(m *Memory, v uint16) uint16

// Memory is the register file of one simulated card
type Memory struct {
	mu     sync.Mutex
	words  []uint16
	reads  map[uintptr]ReadHook
	writes map[uintptr]WriteHook
	nwrite map[uintptr]int
}

// NewMemory returns a card register file of size bytes
func NewMemory(size uintptr) *Memory {
	return &Memory{
		words:  make([]uint16, (size+1)/2),
		reads:  make(map[uintptr]ReadHook),
		writes: make(map[uintptr]WriteHook),
		nwrite: make(map[uintptr]int),
	}
}

// Len returns the size of the register file in bytes
func (m *Memory) Len() uintptr {
	return uintptr(2 * len(m.words))
}

func (m *Memory) grow(size uintptr) {
	n := int((size + 1) / 2)
	if n > len(m.words) {
		m.words = append(m.words, make([]uint16, n-len(m.words))...)
	}
}

// Read16 satisfies vme.Memory
func (m *Memory) Read16(off uintptr) uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.Peek(off)
	if h, ok := m.reads[off]; ok {
		v = h(m, v)
	}
	return v
}

// Write16 satisfies vme.Memory
func (m *Memory) Write16(off uintptr, v uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nwrite[off]++
	if h, ok := m.writes[off]; ok {
		v = h(m, v)
	}
	m.Poke(off, v)
}

// Peek returns the stored value at off, bypassing hooks.  Peek does not
// lock the memory; it is meant for test setup and for use inside hooks.
func (m *Memory) Peek(off uintptr) uint16 {
	i := int(off / 2)
	if i >= len(m.words) {
		return 0xFFFF
	}
	return m.words[i]
}

// Poke stores v at off, bypassing hooks.  Like Peek it does not lock.
func (m *Memory) Poke(off uintptr, v uint16) {
	i := int(off / 2)
	if i < len(m.words) {
		m.words[i] = v
	}
}

// OnRead attaches a read hook to the register at off, replacing any existing one
func (m *Memory) OnRead(off uintptr, h ReadHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads[off] = h
}

// OnWrite attaches a write hook to the register at off, replacing any existing one
func (m *Memory) OnWrite(off uintptr, h WriteHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes[off] = h
}

// ReadOnly makes the register at off ignore writes
func (m *Memory) ReadOnly(off uintptr) {
	m.OnWrite(off, func(m *Memory, v uint16) uint16 {
		return m.Peek(off)
	})
}

// Writes returns the number of bus writes made to the register at off
func (m *Memory) Writes(off uintptr) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nwrite[off]
}

type slotKey struct {
	mode vme.AddrMode
	addr uint32
}

// Crate is a simulated VME crate and controller
type Crate struct {
	mu      sync.Mutex
	cards   map[slotKey]*Memory
	pending []*vme.Region
	mapped  map[*vme.Region]struct{}
	closed  bool

	// AddErr, if set, is returned by AddRegion
	AddErr error

	// AllocErr, if set, is returned by Allocate
	AllocErr error

	// XferErr, if set, is returned by Transfer
	XferErr error
}

// New returns an empty crate
func New() *Crate {
	return &Crate{
		cards:  make(map[slotKey]*Memory),
		mapped: make(map[*vme.Region]struct{}),
	}
}

// Card returns the register file at addr in mode, creating one of size bytes
// if the slot is empty.  An existing card smaller than size is grown.
func (c *Crate) Card(mode vme.AddrMode, addr uint32, size uintptr) *Memory {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.card(mode, addr, size)
}

func (c *Crate) card(mode vme.AddrMode, addr uint32, size uintptr) *Memory {
	k := slotKey{mode, addr}
	m, ok := c.cards[k]
	if !ok {
		m = NewMemory(size)
		c.cards[k] = m
		return m
	}
	m.grow(size)
	return m
}

// AddRegion satisfies vme.Bus
func (c *Crate) AddRegion(r *vme.Region) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("sim: crate is closed")
	}
	if c.AddErr != nil {
		return c.AddErr
	}
	c.pending = append(c.pending, r)
	return nil
}

// RemoveRegion satisfies vme.RegionRemover
func (c *Crate) RemoveRegion(r *vme.Region) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.mapped, r)
	for i, p := range c.pending {
		if p == r {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			break
		}
	}
	return nil
}

// Allocate satisfies vme.Bus.  Every pending region is attached to the card
// at its base address, creating an empty one if the slot is unpopulated.
func (c *Crate) Allocate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.AllocErr != nil {
		return c.AllocErr
	}
	for _, r := range c.pending {
		r.Mem = c.card(r.Mode, r.VMEAddr, r.Len)
		c.mapped[r] = struct{}{}
	}
	c.pending = nil
	return nil
}

// Regions returns the number of regions that are registered or mapped
func (c *Crate) Regions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) + len(c.mapped)
}

// Transfer satisfies vme.Bus.  Words are read and written through the card's
// hooks.  The simulated host shares the card's byte order, so XferEShort has
// no effect.
func (c *Crate) Transfer(x vme.Xfer) error {
	c.mu.Lock()
	if c.XferErr != nil {
		c.mu.Unlock()
		return c.XferErr
	}
	mode := vme.A16
	if x.Flags&vme.XferA24 != 0 {
		mode = vme.A24
	}
	var (
		mem  *Memory
		base uint32
	)
	end := uint64(x.Addr) + uint64(2*len(x.Buf))
	for k, m := range c.cards {
		if k.mode == mode && x.Addr >= k.addr && end <= uint64(k.addr)+uint64(m.Len()) {
			mem, base = m, k.addr
			break
		}
	}
	c.mu.Unlock()
	if mem == nil {
		return fmt.Errorf("%w: %s 0x%08X, %d words", ErrNoCard, mode, x.Addr, len(x.Buf))
	}
	off := uintptr(x.Addr - base)
	for i := range x.Buf {
		o := off + uintptr(2*i)
		if x.Dir == vme.ToBus {
			mem.Write16(o, x.Buf[i])
		} else {
			x.Buf[i] = mem.Read16(o)
		}
	}
	return nil
}

// Close satisfies io.Closer.  Mapped regions keep their memory; no new
// regions may be added.
func (c *Crate) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.pending = nil
	return nil
}

// Firmware models a macro register.  Writing a value with Busy set calls Exec
// with the opcode; the register then reads busy BusyReads times before
// settling to the opcode with Busy cleared and the returned status placed
// in the field selected by StatusMask.
type Firmware struct {
	Reg        uintptr
	Busy       uint16
	StatusMask uint16
	BusyReads  int
	Exec       func(m *Memory, code uint16) (status uint16)

	remaining int
	final     uint16
	issued    []uint16
}

// Install attaches the firmware to m
func (f *Firmware) Install(m *Memory) {
	m.OnWrite(f.Reg, func(m *Memory, v uint16) uint16 {
		if v&f.Busy == 0 {
			return v
		}
		f.issued = append(f.issued, v)
		var st uint16
		if f.Exec != nil {
			st = f.Exec(m, v)
		}
		shift := uint(0)
		for mask := f.StatusMask; mask != 0 && mask&1 == 0; mask >>= 1 {
			shift++
		}
		f.final = v&^f.Busy&^f.StatusMask | (st<<shift)&f.StatusMask
		f.remaining = f.BusyReads
		if f.remaining == 0 {
			return f.final
		}
		return v
	})
	m.OnRead(f.Reg, func(m *Memory, stored uint16) uint16 {
		if f.remaining == 0 {
			return stored
		}
		f.remaining--
		if f.remaining == 0 {
			m.Poke(f.Reg, f.final)
		}
		return stored
	})
}

// Issued returns every opcode written with the busy bit set, oldest first
func (f *Firmware) Issued() []uint16 {
	return append([]uint16(nil), f.issued...)
}
