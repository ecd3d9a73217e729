package board

import "math"

// ADCMax is the full-scale count of the oversampled ADC.
const ADCMax uint16 = 0xFFF0

// DAC8162 limits after the onboard amplifier.
const (
	DACMaxCount uint16  = 1<<14 - 1
	DACMaxVout  float32 = 5.0

	dacCountsPerVolt = float32(DACMaxCount) / DACMaxVout
)

// NormalizeADC maps a raw ADC count to [0.0, 1.0]. Counts above ADCMax clamp.
func NormalizeADC(count uint16) float32 {
	if count > ADCMax {
		count = ADCMax
	}
	return float32(count) / float32(ADCMax)
}

// ADCCount is the inverse of NormalizeADC.
func ADCCount(v float32) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return ADCMax
	}
	return uint16(math.Round(float64(v) * float64(ADCMax)))
}

// DACCount is the DAC code for volts, clamped to the DAC range.
func DACCount(volts float32) uint16 {
	if volts < 0 {
		volts = 0
	}
	if volts > DACMaxVout {
		volts = DACMaxVout
	}
	c := uint16(volts * dacCountsPerVolt)
	if c > DACMaxCount {
		c = DACMaxCount
	}
	return c
}

// DACFrame is the 3 byte SPI write that sets ch to volts and updates the
// output. The 14 bit code sits above the two don't-care bits DB0 and DB1.
func DACFrame(volts float32, ch OutputChannel) [3]byte {
	code := DACCount(volts) << 2
	return [3]byte{
		byte(ch) | 0b0001_1000,
		byte(code >> 8),
		byte(code & 0xFF),
	}
}

// DecodeModeSwitch maps the two switch pins to a position. The switch is an
// on-off-on SPDT that grounds one pin, the other or neither.
func DecodeModeSwitch(aLow, bLow bool) Switch3Way {
	switch {
	case aLow && !bLow:
		return SwitchUp
	case !aLow && !bLow:
		return SwitchMiddle
	}
	// both low means a broken switch, but the show must go on
	return SwitchDown
}

// DecodeChannelSwitch reads the coded rotary switch. levels holds the pin
// levels for the 1s, 2s, 4s and 8s bits; a grounded (false) pin is a one.
func DecodeChannelSwitch(levels [4]bool) uint8 {
	var ch uint8
	for i := len(levels) - 1; i >= 0; i-- {
		ch <<= 1
		if !levels[i] {
			ch |= 1
		}
	}
	return ch
}
