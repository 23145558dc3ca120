package v230

import (
	"errors"
	"math"
	"testing"
)

func TestConvertScalesEachChannelByItsOwnRange(t *testing.T) {
	config := make([]uint16, Channels)
	raw := make([]uint16, Channels)
	for ch := range config {
		config[ch] = uint16(Range1+Range(ch%3)) | ctlEnable
		raw[ch] = 16384
	}
	out, err := convert(config, raw)
	if err != nil {
		t.Fatal(err)
	}
	want := [3]float64{0.0512, 0.512, 5.12}
	for ch, v := range out {
		if math.Abs(v-want[ch%3]) > 1e-12 {
			t.Errorf("channel %d: expected %f got %f", ch, want[ch%3], v)
		}
	}
}

func TestConvertNegativeSample(t *testing.T) {
	config := make([]uint16, Channels)
	raw := make([]uint16, Channels)
	for ch := range config {
		config[ch] = uint16(Range3)
		raw[ch] = 0xC000 // -16384
	}
	out, err := convert(config, raw)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(out[0]+5.12) > 1e-12 {
		t.Errorf("expected -5.12 V, got %f", out[0])
	}
}

func TestConvertFailsWholeBlockOnUnknownRange(t *testing.T) {
	config := make([]uint16, Channels)
	raw := make([]uint16, Channels)
	for ch := range config {
		config[ch] = uint16(Range2)
		raw[ch] = 100
	}
	config[40] = 0 // range code 0 is not a range
	out, err := convert(config, raw)
	if !errors.Is(err, ErrUnknownRange) {
		t.Fatalf("expected ErrUnknownRange, got %v", err)
	}
	for ch, v := range out {
		if v != 0 {
			t.Fatalf("no channel should be reported, channel %d holds %f", ch, v)
		}
	}
}

func TestConvertShortBlock(t *testing.T) {
	if _, err := convert(make([]uint16, 10), make([]uint16, Channels)); !errors.Is(err, ErrInvalidBlock) {
		t.Errorf("expected ErrInvalidBlock, got %v", err)
	}
}

func TestChannelConfigRoundTrip(t *testing.T) {
	cfgs := []ChannelConfig{
		{Range: Range3, Filter: FilterNone, Enable: true},
		{Range: Range1, Filter: Filter17Hz, Enable: false},
		{Range: Range2, Filter: Filter200Hz, Enable: true},
	}
	for _, c := range cfgs {
		v, err := c.encode()
		if err != nil {
			t.Fatal(err)
		}
		if got := decodeConfig(v); got != c {
			t.Errorf("expected %+v got %+v", c, got)
		}
	}
}

func TestChannelConfigRejectsUnknownCodes(t *testing.T) {
	if _, err := (ChannelConfig{Range: 0}).encode(); !errors.Is(err, ErrUnknownRange) {
		t.Errorf("expected ErrUnknownRange, got %v", err)
	}
	if _, err := (ChannelConfig{Range: Range1, Filter: 3}).encode(); !errors.Is(err, ErrUnknownFilter) {
		t.Errorf("expected ErrUnknownFilter, got %v", err)
	}
	if got := decodeConfig(0x0030); got.Filter.Valid() || got.Range.Valid() {
		t.Errorf("filter code 3 and range code 0 should decode as unknown, got %+v", got)
	}
	if s := decodeConfig(0x0030).Filter.String(); s != "unknown" {
		t.Errorf("expected \"unknown\", got %q", s)
	}
}

func TestRelayConfigRoundTrip(t *testing.T) {
	c := RelayConfig{Channel: 12, C: true}
	c.B[0], c.B[7] = true, true
	v, err := c.encode()
	if err != nil {
		t.Fatal(err)
	}
	if v != 12|1<<7|1<<8|1<<15 {
		t.Errorf("unexpected relay word 0x%04X", v)
	}
	if got := decodeRelays(v); got != c {
		t.Errorf("expected %+v got %+v", c, got)
	}
}

func TestDecodeBIST(t *testing.T) {
	f := decodeBIST(bistCER | bistZER | 1<<2)
	if !f.CER || !f.ZER || f.NER || f.PER || !f.Range[2] || f.Range[0] {
		t.Errorf("unexpected flags %+v", f)
	}
	if !f.Failed() {
		t.Error("flags should report failure")
	}
}

func TestValidateRange(t *testing.T) {
	r, err := ValidateRange("10.24")
	if err != nil || r != Range3 {
		t.Errorf("expected Range3, got %v %v", r, err)
	}
	if _, err := ValidateRange("5"); err == nil {
		t.Error("5 V is not a range")
	}
}
