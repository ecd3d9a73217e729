// Package board is the boundary between the control core and the hardware:
// analog inputs, the pitch and mod DAC, the gate pin, the panel switches and
// the MIDI serial output.
package board

// AnalogChannel is an analog input, in scan order.
type AnalogChannel int

const (
	AnalogGlide      AnalogChannel = iota // front panel glide knob
	AnalogMainRibbon                      // ribbon played for pitch
	AnalogModRibbon                       // short ribbon used like a mod wheel

	NumAnalogChannels = 3
)

func (c AnalogChannel) String() string {
	switch c {
	case AnalogGlide:
		return "glide"
	case AnalogMainRibbon:
		return "main-ribbon"
	case AnalogModRibbon:
		return "mod-ribbon"
	}
	return "unknown"
}

// OutputChannel is a DAC output. The value is the DAC8162 channel address.
type OutputChannel uint8

const (
	DACPitch OutputChannel = 0b000 // channel A, 1 V/octave pitch
	DACMod   OutputChannel = 0b001 // channel B, mod ribbon
)

// Switch3Way is the position of a 3-way panel switch.
type Switch3Way int

const (
	SwitchUp Switch3Way = iota
	SwitchMiddle
	SwitchDown
)

func (s Switch3Way) String() string {
	switch s {
	case SwitchUp:
		return "up"
	case SwitchMiddle:
		return "middle"
	case SwitchDown:
		return "down"
	}
	return "unknown"
}

// Board is everything the control loop needs from the hardware.
type Board interface {
	// ReadAnalog is the latest reading of ch in [0.0, 1.0].
	ReadAnalog(ch AnalogChannel) float32
	// WriteVoltage drives ch to volts, clamped to the DAC range.
	WriteVoltage(volts float32, ch OutputChannel)
	// WriteSerial transmits bytes on the MIDI output.
	WriteSerial(b []byte)
	ReadModeSwitch() Switch3Way
	// ReadChannelSelect is the MIDI channel switch, 0-15.
	ReadChannelSelect() uint8
	SetGate(on bool)
	// DelayMS blocks for ms milliseconds. Startup only.
	DelayMS(ms uint32)
}
