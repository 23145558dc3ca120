package bench

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/nasa-jpl/golab-vme/vme"
	"github.com/nasa-jpl/golab-vme/vme/sim"
	"github.com/spf13/pflag"
)

func TestParse(t *testing.T) {
	var variant string
	extra := func(fs *pflag.FlagSet) { fs.StringVar(&variant, "v230_variant", "V230", "") }
	args := []string{"--v120_id", "2", "--v230_address", "0xD000", "--v230_addr_mode", "a16", "--v230_name", "adc", "--v230_variant", "V230-21"}
	s, err := Parse("v230test", "v230", args, io.Discard, extra)
	if err != nil {
		t.Fatal(err)
	}
	if s.ControllerID != 2 || s.Address != 0xD000 || s.Mode != vme.A16 || s.Name != "adc" || s.Bus != "mmap" {
		t.Errorf("unexpected setup %+v", s)
	}
	if variant != "V230-21" {
		t.Errorf("expected the extra flag to be parsed, got %q", variant)
	}
}

func TestParseUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"help", []string{"--help"}},
		{"missing name", []string{"--v120_id", "0", "--v210_address", "0xC000", "--v210_addr_mode", "a16"}},
		{"bad address", []string{"--bus", "sim", "--v210_address", "cafe", "--v210_addr_mode", "a16", "--v210_name", "x"}},
		{"bad mode", []string{"--bus", "sim", "--v210_address", "0xC000", "--v210_addr_mode", "a64", "--v210_name", "x"}},
		{"unknown flag", []string{"--v211_address", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			_, err := Parse("v210test", "v210", tt.args, &out, nil)
			if !errors.Is(err, ErrUsage) {
				t.Errorf("expected ErrUsage, got %v", err)
			}
			if out.Len() == 0 {
				t.Error("expected something to be printed")
			}
		})
	}
}

func TestOpenSim(t *testing.T) {
	s := Setup{Bus: "sim", Mode: vme.A24, Address: 0x200000}
	called := false
	bus, err := s.Open(func(c *sim.Crate, mode vme.AddrMode, addr uint32) {
		called = mode == vme.A24 && addr == 0x200000
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Close()
	if !called {
		t.Error("the simulated module was not installed at the configured address")
	}
	if _, err := (Setup{Bus: "vxi"}).Open(nil, nil); !errors.Is(err, vme.ErrInvalidArgument) {
		t.Errorf("an unknown bus should be an argument error, got %v", err)
	}
}

func TestLog(t *testing.T) {
	var out bytes.Buffer
	l := Log{W: &out}
	l.Section("Relays")
	if !l.Check("set relays", nil) {
		t.Error("nil error should pass")
	}
	if l.Check("get relays", errors.New("bus error")) {
		t.Error("an error should fail")
	}
	if l.Failures != 1 {
		t.Errorf("expected one failure, got %d", l.Failures)
	}
	want := "\n--- Relays ---\nError: Failed to get relays: bus error\n"
	if out.String() != want {
		t.Errorf("expected %q, got %q", want, out.String())
	}
}

func TestWaitReturnsResult(t *testing.T) {
	boom := errors.New("boom")
	if err := Wait(io.Discard, "waiting", func() error { return boom }); err != boom {
		t.Errorf("expected the error of fcn, got %v", err)
	}
	ran := false
	if err := Wait(io.Discard, "waiting", func() error { ran = true; return nil }); err != nil || !ran {
		t.Errorf("expected fcn to run cleanly, ran=%v err=%v", ran, err)
	}
}

func TestUsageMentionsPrefix(t *testing.T) {
	var out bytes.Buffer
	Parse("v280test", "v280", []string{"-h"}, &out, nil)
	if !strings.Contains(out.String(), "--v280_address") {
		t.Errorf("usage does not name the address flag:\n%s", out.String())
	}
}
