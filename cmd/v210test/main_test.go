package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunOnSimulatedCrate(t *testing.T) {
	var out bytes.Buffer
	args := []string{"--bus", "sim", "--v210_address", "0xC000", "--v210_addr_mode", "a16", "--v210_name", "rly", "--settle", "0", "--step", "0"}
	if code := run(args, &out); code != 0 {
		t.Fatalf("expected exit 0, got %d:\n%s", code, out.String())
	}
	s := out.String()
	for _, want := range []string{
		"Board ID: 0x1B00",
		"VXI Model Type: 22210",
		"FPGA Revision: A",
		"Relay states: 0x0000000100000000",
		"Contact states: 0xFFFFFFFFFFFFFFFF",
		"relay states: 0x0000000000000000",
		"Error LED is on",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("output is missing %q", want)
		}
	}
	if strings.Contains(s, "Error: Failed") {
		t.Errorf("unexpected failure in output:\n%s", s)
	}
}

func TestRunRejectsAddressAboveCeiling(t *testing.T) {
	var out bytes.Buffer
	args := []string{"--bus", "sim", "--v210_address", "0xFFE1", "--v210_addr_mode", "a16", "--v210_name", "rly"}
	if code := run(args, &out); code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
}

func TestRunUsage(t *testing.T) {
	var out bytes.Buffer
	if code := run([]string{"--help"}, &out); code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
}
