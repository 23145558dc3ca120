package vme

import (
	"fmt"
	"math/bits"
)

// NoChannel is the value of a "first channel in error" register when no
// channel is in error
const NoChannel = 0xFFFF

// Flag returns true if every bit of mask is set in the register at off
func Flag(mem Memory, off uintptr, mask uint16) bool {
	return mem.Read16(off)&mask == mask
}

// SetFlags performs a read-modify-write setting the bits of mask
func SetFlags(mem Memory, off uintptr, mask uint16) {
	mem.Write16(off, mem.Read16(off)|mask)
}

// ClearFlags performs a read-modify-write clearing the bits of mask
func ClearFlags(mem Memory, off uintptr, mask uint16) {
	mem.Write16(off, mem.Read16(off)&^mask)
}

// SetFlagsTo sets or clears the bits of mask according to on
func SetFlagsTo(mem Memory, off uintptr, mask uint16, on bool) {
	if on {
		SetFlags(mem, off, mask)
		return
	}
	ClearFlags(mem, off, mask)
}

// Field returns the bits of mask in the register at off, shifted down so the
// lowest bit of mask is bit zero
func Field(mem Memory, off uintptr, mask uint16) uint16 {
	return (mem.Read16(off) & mask) >> bits.TrailingZeros16(mask)
}

// UpdateField replaces the bits of mask in the register at off with v,
// leaving the other bits as they were.  v is given unshifted.
func UpdateField(mem Memory, off uintptr, mask uint16, v uint16) {
	shift := bits.TrailingZeros16(mask)
	cur := mem.Read16(off)
	mem.Write16(off, cur&^mask|(v<<shift)&mask)
}

// JoinWords concatenates 16-bit words into one integer, the first word most
// significant.  At most four words are used.
func JoinWords(words []uint16) uint64 {
	var out uint64
	for _, w := range words {
		out = out<<16 | uint64(w)
	}
	return out
}

// SplitWords is the inverse of JoinWords, filling n words with the first
// word most significant
func SplitWords(v uint64, n int) []uint16 {
	out := make([]uint16, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = uint16(v & 0xFFFF)
		v >>= 16
	}
	return out
}

// ReadConcat reads n consecutive registers starting at off and concatenates
// them, the lowest address most significant
func ReadConcat(mem Memory, off uintptr, n int) uint64 {
	words := make([]uint16, n)
	for i := range words {
		words[i] = mem.Read16(off + uintptr(2*i))
	}
	return JoinWords(words)
}

// WriteConcat writes v into n consecutive registers starting at off, the
// lowest address receiving the most significant word.  The registers are
// written from the highest address down.
func WriteConcat(mem Memory, off uintptr, n int, v uint64) {
	words := SplitWords(v, n)
	for i := n - 1; i >= 0; i-- {
		mem.Write16(off+uintptr(2*i), words[i])
	}
}

// Scale interprets raw as a two's complement sample and multiplies it by factor
func Scale(raw uint16, factor float64) float64 {
	return float64(int16(raw)) * factor
}

// CalDate formats a calibration year and a month/day register (month in the
// high byte) as MM/DD/YYYY
func CalDate(year, monthDay uint16) string {
	return fmt.Sprintf("%02d/%02d/%04d", monthDay>>8, monthDay&0xFF, year)
}

// ChannelInError converts a "first channel in error" register to a channel
// number and a flag that is false when no channel is in error
func ChannelInError(v uint16) (int, bool) {
	if v == NoChannel {
		return -1, false
	}
	return int(v), true
}

// CheckChannel returns ErrChannelRange unless 0 <= ch < n
func CheckChannel(ch, n int) error {
	if ch < 0 || ch >= n {
		return fmt.Errorf("%w: %d is not in [0, %d)", ErrChannelRange, ch, n)
	}
	return nil
}
