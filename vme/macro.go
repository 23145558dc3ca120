package vme

import (
	"context"
	"fmt"
	"math/bits"
	"time"

	"github.com/cenkalti/backoff"
)

// MacroState is the state of a module's macro register
type MacroState int

const (
	// Idle means no macro is executing
	Idle MacroState = iota

	// Busy means the module is executing a macro
	Busy
)

func (s MacroState) String() string {
	if s == Busy {
		return "busy"
	}
	return "idle"
}

// Macro describes the macro register of a module.  Writing an opcode with the
// busy bit set starts a macro; firmware clears the bit when it is done and may
// leave a status in the error field.
type Macro struct {
	// Reg is the byte offset of the macro register
	Reg uintptr

	// Params is the byte offset of the first parameter register
	Params uintptr

	// NParams is the number of parameter registers
	NParams int

	// Busy is the busy bit
	Busy uint16

	// ErrMask selects the completion status field, zero if the module has none
	ErrMask uint16
}

// State returns the current state of the macro register
func (m Macro) State(mem Memory) MacroState {
	if mem.Read16(m.Reg)&m.Busy != 0 {
		return Busy
	}
	return Idle
}

// Issue starts code on the module.  Parameters are written before the
// opcode.  If a macro is already executing, ErrMacroBusy is returned and
// nothing is written.
func (m Macro) Issue(mem Memory, code uint16, params ...uint16) error {
	if len(params) > m.NParams {
		return fmt.Errorf("%w: macro 0x%04X given %d parameters, module has %d", ErrInvalidArgument, code, len(params), m.NParams)
	}
	if m.State(mem) == Busy {
		return ErrMacroBusy
	}
	for i, p := range params {
		mem.Write16(m.Params+uintptr(2*i), p)
	}
	mem.Write16(m.Reg, code)
	return nil
}

// Wait polls the macro register every poll until the module is idle or ctx
// is done.  A zero poll interval spins.
func (m Macro) Wait(ctx context.Context, mem Memory, poll time.Duration) error {
	errStill := fmt.Errorf("macro still %s", Busy)
	op := func() error {
		if m.State(mem) == Busy {
			return errStill
		}
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(poll), ctx))
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("waiting for macro: %w", cerr)
		}
		return err
	}
	return nil
}

// Status returns the completion status field of the macro register, shifted down
func (m Macro) Status(mem Memory) uint16 {
	if m.ErrMask == 0 {
		return 0
	}
	return (mem.Read16(m.Reg) & m.ErrMask) >> bits.TrailingZeros16(m.ErrMask)
}

// Run issues code, waits for completion and checks the status field.  A
// non-zero status is returned as a *MacroError.
func (m Macro) Run(ctx context.Context, mem Memory, poll time.Duration, code uint16, params ...uint16) error {
	if err := m.Issue(mem, code, params...); err != nil {
		return err
	}
	if err := m.Wait(ctx, mem, poll); err != nil {
		return err
	}
	if st := m.Status(mem); st != 0 {
		return &MacroError{Code: code, Status: st}
	}
	return nil
}
