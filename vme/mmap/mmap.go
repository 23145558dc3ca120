//go:build linux
// +build linux

/*Package mmap provides a vme.Bus backed by a character device whose file
offsets are bus addresses.

Each address space occupies a window of the device file; a region at VME
address a in mode m lives at file offset Window(m) + a.  Allocate maps every
pending region with mmap(2) and register access is then a plain 16-bit load
or store on the mapping.  Block transfers use pread(2)/pwrite(2) on the same
descriptor, which the driver is expected to turn into DMA.
*/
package mmap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"unsafe"

	"github.com/nasa-jpl/golab-vme/vme"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// ErrClosed is returned by operations on a closed bus
var ErrClosed = errors.New("mmap: bus is closed")

// DefaultWindows is the file offset of each address space
var DefaultWindows = map[vme.AddrMode]int64{
	vme.A16: 0,
	vme.A24: 1 << 24,
}

// DevicePath returns the conventional device node of crate controller id
func DevicePath(id int) string {
	return fmt.Sprintf("/dev/v120_q%d", id)
}

// Option configures a Bus
type Option func(*Bus)

// WithWindow places the address space of mode at file offset off
func WithWindow(mode vme.AddrMode, off int64) Option {
	return func(b *Bus) { b.windows[mode] = off }
}

// WithSwap byte-reverses every register access made through a mapping.  Use
// it when the bridge presents bus (big endian) order to a little endian host.
func WithSwap(swap bool) Option {
	return func(b *Bus) { b.swap = swap }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.log = l
		}
	}
}

// Bus is a crate controller opened through a device node
type Bus struct {
	mu      sync.Mutex
	fd      int
	path    string
	windows map[vme.AddrMode]int64
	swap    bool
	log     *zap.Logger
	pending []*vme.Region
	maps    map[*vme.Region][]byte
	closed  bool
}

// Open opens the device node at path
func Open(path string, opts ...Option) (*Bus, error) {
	b := &Bus{
		path:    path,
		windows: make(map[vme.AddrMode]int64, len(DefaultWindows)),
		log:     zap.NewNop(),
		maps:    make(map[*vme.Region][]byte),
	}
	for k, v := range DefaultWindows {
		b.windows[k] = v
	}
	for _, opt := range opts {
		opt(b)
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap: opening %s: %w", path, err)
	}
	b.fd = fd
	b.log.Debug("opened crate controller", zap.String("device", path))
	return b, nil
}

func (b *Bus) offset(mode vme.AddrMode, addr uint32) (int64, error) {
	w, ok := b.windows[mode]
	if !ok {
		return 0, fmt.Errorf("%w: no window for %s", vme.ErrInvalidMode, mode)
	}
	return w + int64(addr), nil
}

// AddRegion satisfies vme.Bus
func (b *Bus) AddRegion(r *vme.Region) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if _, err := b.offset(r.Mode, r.VMEAddr); err != nil {
		return err
	}
	b.pending = append(b.pending, r)
	return nil
}

// Allocate satisfies vme.Bus.  If any region fails to map, the regions mapped
// by this call are unmapped again and remain pending.
func (b *Bus) Allocate() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	page := int64(unix.Getpagesize())
	done := make([]*vme.Region, 0, len(b.pending))
	for _, r := range b.pending {
		start, _ := b.offset(r.Mode, r.VMEAddr)
		aligned := start &^ (page - 1)
		delta := start - aligned
		length := int((delta + int64(r.Len) + page - 1) &^ (page - 1))
		mapping, err := unix.Mmap(b.fd, aligned, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			b.log.Error("mapping region failed",
				zap.String("tag", r.Tag), zap.Uint32("addr", r.VMEAddr), zap.Stringer("mode", r.Mode), zap.Error(err))
			for _, d := range done {
				unix.Munmap(b.maps[d])
				delete(b.maps, d)
				d.Mem = nil
			}
			return fmt.Errorf("mmap: mapping %s at 0x%08X: %w", r.Tag, r.VMEAddr, err)
		}
		b.maps[r] = mapping
		r.Mem = &window{b: mapping[delta : delta+int64(r.Len)], swap: b.swap}
		done = append(done, r)
	}
	b.pending = nil
	return nil
}

// RemoveRegion satisfies vme.RegionRemover
func (b *Bus) RemoveRegion(r *vme.Region) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.pending {
		if p == r {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			return nil
		}
	}
	if m, ok := b.maps[r]; ok {
		delete(b.maps, r)
		r.Mem = nil
		return unix.Munmap(m)
	}
	return nil
}

// Transfer satisfies vme.Bus.  Without XferEShort the words are copied in
// device byte order.
func (b *Bus) Transfer(x vme.Xfer) error {
	if len(x.Buf) == 0 {
		return nil
	}
	mode := vme.A16
	if x.Flags&vme.XferA24 != 0 {
		mode = vme.A24
	}
	b.mu.Lock()
	closed := b.closed
	off, err := b.offset(mode, x.Addr)
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err != nil {
		return err
	}
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&x.Buf[0])), 2*len(x.Buf))
	swap := x.Flags&vme.XferEShort != 0
	if x.Dir == vme.ToBus {
		out := raw
		if swap {
			out = make([]byte, len(raw))
			for i, w := range x.Buf {
				binary.BigEndian.PutUint16(out[2*i:], w)
			}
		}
		return full(unix.Pwrite(b.fd, out, off))(len(out), "write")
	}
	in := raw
	if swap {
		in = make([]byte, len(raw))
	}
	if err := full(unix.Pread(b.fd, in, off))(len(in), "read"); err != nil {
		return err
	}
	if swap {
		for i := range x.Buf {
			x.Buf[i] = binary.BigEndian.Uint16(in[2*i:])
		}
	}
	return nil
}

// full turns a short pread/pwrite into an error
func full(n int, err error) func(want int, op string) error {
	return func(want int, op string) error {
		if err != nil {
			return fmt.Errorf("mmap: block %s: %w", op, err)
		}
		if n != want {
			return fmt.Errorf("mmap: short block %s, %d of %d bytes", op, n, want)
		}
		return nil
	}
}

// Close unmaps every region and closes the device
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for r, m := range b.maps {
		unix.Munmap(m)
		r.Mem = nil
	}
	b.maps = nil
	b.pending = nil
	return unix.Close(b.fd)
}

// window is the live view of one mapped region
type window struct {
	b    []byte
	swap bool
}

func (w *window) addr(off uintptr) *uint16 {
	_ = w.b[off+1]
	return (*uint16)(unsafe.Pointer(&w.b[off]))
}

func (w *window) Read16(off uintptr) uint16 {
	v := *w.addr(off)
	if w.swap {
		v = bits.ReverseBytes16(v)
	}
	return v
}

func (w *window) Write16(off uintptr, v uint16) {
	if w.swap {
		v = bits.ReverseBytes16(v)
	}
	*w.addr(off) = v
}
