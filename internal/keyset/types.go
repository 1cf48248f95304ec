package keyset

import "fmt"

// minIntraSigPauseCycles floors the inter-signal pause so that repeat
// bursts generated from real RedRat datasets don't glitch on fast
// repeat hardware; some datasets carry pauses below what the device
// reliably honours.
const minIntraSigPauseCycles = 10

// IRWaveform is the canonical, device-ready representation of one
// named IR signal: alternating pulse/space durations in integer
// modulation cycles, split into a base segment played once and an
// optional repeat segment played on each additional repetition.
type IRWaveform struct {
	ModulationFreqHz    float64
	BaseCycles          []int
	RepeatCycles        []int
	RepeatCountDefault  int
	IntraSigPauseCycles int
}

// BaseDurationMs returns the wall-clock duration of the base segment.
func (w IRWaveform) BaseDurationMs() float64 {
	return cyclesToMs(sumInts(w.BaseCycles), w.ModulationFreqHz)
}

// RepeatDurationMs returns the wall-clock duration of one repeat
// segment, including the intra-signal pause that precedes it.
func (w IRWaveform) RepeatDurationMs() float64 {
	if len(w.RepeatCycles) == 0 {
		return 0
	}
	return cyclesToMs(w.IntraSigPauseCycles+sumInts(w.RepeatCycles), w.ModulationFreqHz)
}

// BaseDurationMicros is BaseDurationMs at microsecond resolution, used
// by the dispatcher's continuous-hold fallback where millisecond
// rounding would accumulate visible drift over many bursts.
func (w IRWaveform) BaseDurationMicros() float64 {
	return w.BaseDurationMs() * 1000
}

// RepeatDurationMicros is RepeatDurationMs at microsecond resolution.
func (w IRWaveform) RepeatDurationMicros() float64 {
	return w.RepeatDurationMs() * 1000
}

func cyclesToMs(cycles int, freqHz float64) float64 {
	if freqHz == 0 {
		return 0
	}
	return float64(cycles) / freqHz * 1000
}

func sumInts(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}

// deviceKeys maps key name to waveform within one AVDevice.
type deviceKeys map[string]IRWaveform

// KeysetCatalogue is the immutable, in-memory mapping of
// (device name -> (key name -> IRWaveform)) produced by Decode. It is
// safe for concurrent reads without locking; a reload builds a new
// Catalogue and swaps the shared reference atomically rather than
// mutating this one in place.
type KeysetCatalogue struct {
	devices map[string]deviceKeys
}

// ListDevices returns the device names present in the catalogue.
func (c *KeysetCatalogue) ListDevices() []string {
	names := make([]string, 0, len(c.devices))
	for name := range c.devices {
		names = append(names, name)
	}
	return names
}

// ListKeys returns the key names defined for a device.
func (c *KeysetCatalogue) ListKeys(deviceName string) ([]string, error) {
	keys, ok := c.devices[deviceName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, deviceName)
	}
	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	return names, nil
}

// Lookup resolves a (device, key) pair to its waveform.
func (c *KeysetCatalogue) Lookup(deviceName, keyName string) (IRWaveform, error) {
	keys, ok := c.devices[deviceName]
	if !ok {
		return IRWaveform{}, fmt.Errorf("%w: %q", ErrUnknownDevice, deviceName)
	}
	wave, ok := keys[keyName]
	if !ok {
		return IRWaveform{}, fmt.Errorf("%w: %q/%q", ErrUnknownKey, deviceName, keyName)
	}
	return wave, nil
}
