package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func simArgs(extra ...string) []string {
	args := []string{"--bus", "sim", "--v280_address", "0x200000", "--v280_addr_mode", "a24", "--v280_name", "din", "--poll", "0"}
	return append(args, extra...)
}

func TestRunOnSimulatedCrate(t *testing.T) {
	var out bytes.Buffer
	if code := run(context.Background(), simArgs(), &out); code != 0 {
		t.Fatalf("expected exit 0, got %d:\n%s", code, out.String())
	}
	s := out.String()
	for _, want := range []string{
		"VXI Model Type: 22280",
		"Calibration Date: 11/28/2022",
		"User LED Pattern: 0x5A5A",
		"rise time delay for channel 0: 1000",
		"fall time delay for channel 0: 500",
		"Input States: 0xA5A50000FFFF",
		"Read 0xABCD from buffer index 32",
		"BIST completed successfully",
		"BIST Error Flags: 0x000000000000",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("output is missing %q", want)
		}
	}
}

func TestRunReportsSelfTestFaults(t *testing.T) {
	var out bytes.Buffer
	if code := run(context.Background(), simArgs("--sim_faults", "0x800000000004"), &out); code != 0 {
		t.Fatalf("a failing self test is a result, not a setup failure; got exit %d", code)
	}
	s := out.String()
	if !strings.Contains(s, "Error: Failed to pass BIST") {
		t.Errorf("expected the self test failure to be reported:\n%s", s)
	}
	if !strings.Contains(s, "BIST Error Flags: 0x800000000004") {
		t.Errorf("expected the failing channels to be printed:\n%s", s)
	}
}
