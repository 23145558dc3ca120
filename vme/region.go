package vme

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Region is a module's register block bound to a bus controller
type Region struct {
	// Module is the module type descriptor the region was bound with
	Module Module

	// VMEAddr is the base address on the bus
	VMEAddr uint32

	// Mode is the address space
	Mode AddrMode

	// Len is the byte length of the register block
	Len uintptr

	// Config is the configuration word given to the bus
	Config Config

	// Tag is a human readable name for the region
	Tag string

	// Mem is the live register view.  It is nil until the bus allocates the region.
	Mem Memory

	// Buf is the host buffer used for block transfers, owned by the region
	Buf []uint16

	bus      Bus
	log      *zap.Logger
	released bool
}

type bindOptions struct {
	log *zap.Logger
}

// Option configures Bind
type Option func(*bindOptions)

// WithLogger sets the logger used for bind-time failures
func WithLogger(l *zap.Logger) Option {
	return func(o *bindOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// Bind validates addr and mode for the module, then registers a region with
// the bus.  The bus must still Allocate before registers may be accessed.
// On failure nothing is left registered and any host buffer is dropped.
func Bind(bus Bus, m Module, addr uint32, mode AddrMode, tag string, opts ...Option) (*Region, error) {
	o := bindOptions{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.With(zap.String("module", m.Name), zap.String("tag", tag))
	if bus == nil {
		return nil, fmt.Errorf("%w: bus is nil", ErrInvalidArgument)
	}
	if err := m.Validate(addr, mode); err != nil {
		log.Warn("rejected region", zap.Uint32("addr", addr), zap.Stringer("mode", mode), zap.Error(err))
		return nil, err
	}
	r := &Region{
		Module:  m,
		VMEAddr: addr,
		Mode:    mode,
		Len:     m.Size,
		Config:  Config(mode) | SMax | EAuto | RW | D16,
		Tag:     tag,
		bus:     bus,
		log:     log,
	}
	if m.BufferWords > 0 {
		r.Buf = make([]uint16, m.BufferWords)
	}
	if err := bus.AddRegion(r); err != nil {
		log.Error("bus rejected region", zap.Uint32("addr", addr), zap.Error(err))
		r.Buf = nil
		return nil, fmt.Errorf("adding %s region %q: %w", m.Name, tag, err)
	}
	return r, nil
}

// Unbind releases the region and its host buffer.  It is safe to call on a
// nil or already released region.
func (r *Region) Unbind() error {
	if r == nil || r.released {
		return nil
	}
	r.released = true
	r.Buf = nil
	r.Mem = nil
	if rm, ok := r.bus.(RegionRemover); ok {
		return rm.RemoveRegion(r)
	}
	return nil
}

// Regs returns the live register view, ErrNilRegion or ErrNotMapped
func (r *Region) Regs() (Memory, error) {
	if r == nil || r.released {
		return nil, ErrNilRegion
	}
	if r.Mem == nil {
		return nil, ErrNotMapped
	}
	return r.Mem, nil
}

// Mapped returns true once the bus has allocated the region
func (r *Region) Mapped() bool {
	return r != nil && !r.released && r.Mem != nil
}

// Require returns ErrUnsupported unless the module has every capability in c
func (r *Region) Require(c Capability) error {
	if r == nil || r.released {
		return ErrNilRegion
	}
	if !r.Module.Has(c) {
		return fmt.Errorf("%s: %w", r.Module.Name, ErrUnsupported)
	}
	return nil
}

// Logger returns the logger the region was bound with
func (r *Region) Logger() *zap.Logger {
	if r == nil || r.log == nil {
		return zap.NewNop()
	}
	return r.log
}

// ReadBlock fills the region's host buffer with a single block transfer
// starting at the module's BufferOffset.  The buffer is returned.
func (r *Region) ReadBlock() ([]uint16, error) {
	if _, err := r.Regs(); err != nil {
		return nil, err
	}
	off := r.Module.BufferOffset
	if len(r.Buf) == 0 {
		return nil, fmt.Errorf("%w: %s region has no transfer buffer", ErrInvalidArgument, r.Module.Name)
	}
	if off+uintptr(2*len(r.Buf)) > r.Len {
		return nil, fmt.Errorf("%w: transfer of %d words at 0x%03X overruns the register map", ErrChannelRange, len(r.Buf), off)
	}
	x := Xfer{
		Flags: r.Mode.Flags(),
		Dir:   FromBus,
		Addr:  r.VMEAddr + uint32(off),
		Buf:   r.Buf,
	}
	if err := r.bus.Transfer(x); err != nil {
		r.log.Error("block transfer failed", zap.Uint32("addr", x.Addr), zap.Int("words", len(x.Buf)), zap.Error(err))
		return nil, fmt.Errorf("block transfer from 0x%08X: %w", x.Addr, err)
	}
	return r.Buf, nil
}

// String prints the region information, one field per line
func (r *Region) String() string {
	if r == nil {
		return "<nil region>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s.module = %s\n", r.Tag, r.Module.Name)
	fmt.Fprintf(&b, "%s.mapped = %t\n", r.Tag, r.Mapped())
	fmt.Fprintf(&b, "%s.vme_addr = 0x%08X\n", r.Tag, r.VMEAddr)
	fmt.Fprintf(&b, "%s.mode = %s\n", r.Tag, r.Mode)
	fmt.Fprintf(&b, "%s.len = %d\n", r.Tag, r.Len)
	fmt.Fprintf(&b, "%s.config = 0x%08X\n", r.Tag, uint32(r.Config))
	fmt.Fprintf(&b, "%s.buffer_words = %d", r.Tag, len(r.Buf))
	return b.String()
}
