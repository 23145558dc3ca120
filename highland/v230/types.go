package v230

import (
	"fmt"
	"strings"

	"github.com/nasa-jpl/golab-vme/vme"
)

// Range is an input range code, the low two bits of a channel control register
type Range uint16

// Filter is an input filter code, bits 4 and 5 of a channel control register
type Filter uint16

// OperatingMode is the BIST operating mode of the module
type OperatingMode uint16

// Source is a BIST mux calibration source
type Source uint16

// Supply is one of the on-board power supplies
type Supply int

const (
	// Range1 is the ±0.1024 V input range
	Range1 Range = 1

	// Range2 is the ±1.024 V input range
	Range2 Range = 2

	// Range3 is the ±10.24 V input range
	Range3 Range = 3
)

const (
	// FilterNone disables the input filter
	FilterNone Filter = iota

	// Filter200Hz is a 200 Hz low pass filter
	Filter200Hz

	// Filter17Hz is a 17 Hz low pass filter
	Filter17Hz
)

const (
	// ModeOff disables both test modes
	ModeOff OperatingMode = iota

	// ModeChannelTest connects the cal bus for channel tests
	ModeChannelTest

	// ModeBIST enables the BIST engine
	ModeBIST

	// ModeBoth enables channel test and BIST
	ModeBoth
)

const (
	// P1V2 is the +1.2 V supply
	P1V2 Supply = iota
	// P2V048 is the +2.048 V reference supply
	P2V048
	// P2V5 is the +2.5 V supply
	P2V5
	// P3V3 is the +3.3 V supply
	P3V3
	// P5V is the +5 V supply
	P5V
	// P15V is the +15 V supply
	P15V
	// M15V is the -15 V supply
	M15V

	// NumSupplies is the number of monitored supplies
	NumSupplies = 7
)

// NumSources is the number of BIST mux sources
const NumSources = 8

var fullScale = map[Range]float64{
	Range1: 0.1024,
	Range2: 1.024,
	Range3: 10.24,
}

var sourceNames = [NumSources]string{
	"+10.00 V",
	"+911 mV",
	"+83.1 mV",
	"+8.25 mV",
	"-10.00 V",
	"-90.5 mV",
	"+10.00 V through 1 MOhm",
	"GND",
}

var supplyNames = [NumSupplies]string{"+1.2V", "+2.048V", "+2.5V", "+3.3V", "+5V", "+15V", "-15V"}

// Valid returns true if r is one of the three input ranges
func (r Range) Valid() bool {
	_, ok := fullScale[r]
	return ok
}

// FullScale returns the full scale voltage of the range, zero if the range is unknown
func (r Range) FullScale() float64 {
	return fullScale[r]
}

// Scale returns the volts per count of the range
func (r Range) Scale() (float64, error) {
	fs, ok := fullScale[r]
	if !ok {
		return 0, fmt.Errorf("%w: code %d", ErrUnknownRange, uint16(r))
	}
	return fs / 32768, nil
}

func (r Range) String() string {
	return FormatRange(r)
}

// ValidateRange converts a full scale voltage string such as "10.24" to a Range
func ValidateRange(s string) (Range, error) {
	switch strings.TrimPrefix(s, "±") {
	case "0.1024":
		return Range1, nil
	case "1.024":
		return Range2, nil
	case "10.24":
		return Range3, nil
	default:
		return 0, fmt.Errorf("%w: %q, must be a member of {0.1024, 1.024, 10.24}", ErrUnknownRange, s)
	}
}

// FormatRange is the inverse of ValidateRange; unknown codes format as "unknown"
func FormatRange(r Range) string {
	switch r {
	case Range1:
		return "0.1024"
	case Range2:
		return "1.024"
	case Range3:
		return "10.24"
	default:
		return "unknown"
	}
}

// Valid returns true if f is a known filter setting
func (f Filter) Valid() bool {
	return f <= Filter17Hz
}

func (f Filter) String() string {
	return FormatFilter(f)
}

// ValidateFilter converts "none", "200Hz" or "17Hz" (case insensitive) to a Filter
func ValidateFilter(s string) (Filter, error) {
	switch strings.ToLower(s) {
	case "none":
		return FilterNone, nil
	case "200hz":
		return Filter200Hz, nil
	case "17hz":
		return Filter17Hz, nil
	default:
		return 0, fmt.Errorf("%w: %q, must be a member of {none, 200Hz, 17Hz}", ErrUnknownFilter, s)
	}
}

// FormatFilter is the inverse of ValidateFilter
func FormatFilter(f Filter) string {
	switch f {
	case FilterNone:
		return "none"
	case Filter200Hz:
		return "200Hz"
	case Filter17Hz:
		return "17Hz"
	default:
		return "unknown"
	}
}

func (m OperatingMode) String() string {
	return FormatMode(m)
}

// ValidateMode converts "off", "chan_test", "bist" or "both" to an OperatingMode
func ValidateMode(s string) (OperatingMode, error) {
	switch strings.ToLower(s) {
	case "off":
		return ModeOff, nil
	case "chan_test":
		return ModeChannelTest, nil
	case "bist":
		return ModeBIST, nil
	case "both":
		return ModeBoth, nil
	default:
		return 0, fmt.Errorf("%w: mode %q, must be a member of {off, chan_test, bist, both}", vme.ErrInvalidArgument, s)
	}
}

// FormatMode is the inverse of ValidateMode
func FormatMode(m OperatingMode) string {
	switch m {
	case ModeOff:
		return "off"
	case ModeChannelTest:
		return "chan_test"
	case ModeBIST:
		return "bist"
	case ModeBoth:
		return "both"
	default:
		return "unknown"
	}
}

// Valid returns true if s is one of the eight mux sources
func (s Source) Valid() bool {
	return s < NumSources
}

func (s Source) String() string {
	if !s.Valid() {
		return "unknown"
	}
	return sourceNames[s]
}

func (s Supply) String() string {
	if s < 0 || s >= NumSupplies {
		return "unknown"
	}
	return supplyNames[s]
}

// ChannelConfig is the configuration of one input channel
type ChannelConfig struct {
	Range  Range  `json:"range"`
	Filter Filter `json:"filter"`
	Enable bool   `json:"enable"`
}

func (c ChannelConfig) encode() (uint16, error) {
	if !c.Range.Valid() {
		return 0, fmt.Errorf("%w: code %d", ErrUnknownRange, uint16(c.Range))
	}
	if !c.Filter.Valid() {
		return 0, fmt.Errorf("%w: code %d", ErrUnknownFilter, uint16(c.Filter))
	}
	v := uint16(c.Range)&ctlRangeMask | (uint16(c.Filter)<<4)&ctlFilterMask
	if c.Enable {
		v |= ctlEnable
	}
	return v, nil
}

func decodeConfig(v uint16) ChannelConfig {
	return ChannelConfig{
		Range:  Range(v & ctlRangeMask),
		Filter: Filter((v & ctlFilterMask) >> 4),
		Enable: v&ctlEnable != 0,
	}
}

// RelayConfig is the state of the optional cal-bus relays
type RelayConfig struct {
	// Channel selects the K relay, 0-63
	Channel int `json:"channel"`

	// C is the C relay
	C bool `json:"c"`

	// B are the eight B relays
	B [8]bool `json:"b"`
}

func (c RelayConfig) encode() (uint16, error) {
	if c.Channel < 0 || c.Channel >= Channels {
		return 0, fmt.Errorf("%w: K relay channel %d", vme.ErrChannelRange, c.Channel)
	}
	v := uint16(c.Channel) & relayKMask
	if c.C {
		v |= relayC
	}
	for i, b := range c.B {
		if b {
			v |= relayB0 << uint(i)
		}
	}
	return v, nil
}

func decodeRelays(v uint16) RelayConfig {
	c := RelayConfig{Channel: int(v & relayKMask), C: v&relayC != 0}
	for i := range c.B {
		c.B[i] = v&(relayB0<<uint(i)) != 0
	}
	return c
}

// BISTFlags are the self test flags of one channel
type BISTFlags struct {
	// CER is a calibration error
	CER bool `json:"cer"`
	// NER is a negative full scale error
	NER bool `json:"ner"`
	// PER is a positive full scale error
	PER bool `json:"per"`
	// ZER is a zero error
	ZER bool `json:"zer"`
	// Range holds an error flag for each of the three input ranges
	Range [3]bool `json:"range"`
}

// Failed returns true if any flag is raised
func (b BISTFlags) Failed() bool {
	return b.CER || b.NER || b.PER || b.ZER || b.Range[0] || b.Range[1] || b.Range[2]
}

func decodeBIST(v uint16) BISTFlags {
	f := BISTFlags{
		CER: v&bistCER != 0,
		NER: v&bistNER != 0,
		PER: v&bistPER != 0,
		ZER: v&bistZER != 0,
	}
	for i := range f.Range {
		f.Range[i] = v&(1<<uint(i)) != 0
	}
	return f
}

// ChannelBIST is the result of a single channel test
type ChannelBIST struct {
	Flags        BISTFlags `json:"flags"`
	Measurements [15]int16 `json:"measurements"`
}

// BMux is the BIST mux configuration
type BMux struct {
	CalPos Source `json:"calPos"`
	CalNeg Source `json:"calNeg"`
}

// SupplyStatus is the state of one power supply
type SupplyStatus struct {
	Error   bool    `json:"error"`
	Voltage float64 `json:"voltage"`
}
