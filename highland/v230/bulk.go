package v230

import "fmt"

// convert scales raw samples by the range in the matching configuration word.
// One unknown range anywhere fails the whole conversion.
func convert(config, raw []uint16) ([Channels]float64, error) {
	var out [Channels]float64
	if len(config) < Channels || len(raw) < Channels {
		return out, fmt.Errorf("%w: block holds %d configs and %d samples, need %d of each",
			ErrInvalidBlock, len(config), len(raw), Channels)
	}
	for ch := 0; ch < Channels; ch++ {
		scale, err := decodeConfig(config[ch]).Range.Scale()
		if err != nil {
			return [Channels]float64{}, fmt.Errorf("channel %d: %w", ch, err)
		}
		out[ch] = float64(int16(raw[ch])) * scale
	}
	return out, nil
}
