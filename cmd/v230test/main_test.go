package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func simArgs(variant string) []string {
	return []string{
		"--bus", "sim", "--v230_address", "0xD000", "--v230_addr_mode", "a16", "--v230_name", "adc",
		"--v230_variant", variant, "--reboot_delay", "0", "--poll", "0", "--settle", "0",
	}
}

func TestRunExtendedVariant(t *testing.T) {
	var out bytes.Buffer
	if code := run(context.Background(), simArgs("v230-21"), &out); code != 0 {
		t.Fatalf("expected exit 0, got %d:\n%s", code, out.String())
	}
	s := out.String()
	for _, want := range []string{
		"Hardware Test Register value is 0xABCD",
		"User Test Register value is 0x55AA",
		"Dash (Module Version) Number: 21",
		"Calibration Date: 03/21/2023",
		"Executed reboot",
		"0 of 64 channels failed",
		"Channel 7 measurements: [701 702",
		"Operating mode is both",
		"K relay: 12, C relay: true",
		"No channels have setup errors",
		"Current scan speed is fast",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("output is missing %q", want)
		}
	}
}

func TestRunPlainVariantSkipsExtendedTests(t *testing.T) {
	var out bytes.Buffer
	if code := run(context.Background(), simArgs("V230"), &out); code != 0 {
		t.Fatalf("expected exit 0, got %d:\n%s", code, out.String())
	}
	s := out.String()
	if strings.Contains(s, "Full BIST") {
		t.Error("the plain variant should not run the self test")
	}
	// only channel 12 is configured, so the bulk read refuses the whole block
	if !strings.Contains(s, "Error: Failed to get all channel voltages") {
		t.Errorf("expected the bulk read to fail on unconfigured channels:\n%s", s)
	}
}

func TestRunUnknownVariant(t *testing.T) {
	var out bytes.Buffer
	if code := run(context.Background(), simArgs("V231"), &out); code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
}
