// Package pitch decides the output pitch from the ribbon position and its
// quantized step, according to the front panel pitch mode.
package pitch

// Mode is the position of the front panel pitch switch.
type Mode int

const (
	// HardQuantize plays discrete semitone steps only.
	HardQuantize Mode = iota
	// Assist lands each press on a step, then follows the finger smoothly.
	Assist
	// Smooth follows the finger with no quantization.
	Smooth
)

func (m Mode) String() string {
	switch m {
	case HardQuantize:
		return "hard-quantize"
	case Assist:
		return "assist"
	case Smooth:
		return "smooth"
	}
	return "unknown"
}

// Input is everything one output tick knows about the ribbon, in volts.
type Input struct {
	Position    float32 // continuous ribbon pitch
	Stairstep   float32 // quantized step for Position
	Fraction    float32 // Position minus Stairstep
	JustPressed bool    // the finger landed since the previous tick
}

// Selector combines ribbon position and quantizer output per Mode. It keeps
// the offset that assist mode records when a press begins. The offset
// survives the release so the held pitch doesn't move after the finger
// lifts; the next press replaces it.
type Selector struct {
	calibration float32
	offset      float32
}

// NewSelector is a Selector. calibration is subtracted from the position in
// smooth mode so that it stays in tune with the quantized steps.
func NewSelector(calibration float32) *Selector {
	return &Selector{calibration: calibration}
}

// Select is the pitch for one output tick.
func (s *Selector) Select(mode Mode, in Input) float32 {
	switch mode {
	case HardQuantize:
		return Quantized(in)
	case Smooth:
		return Smoothed(in, s.calibration)
	case Assist:
		var out float32
		out, s.offset = Assisted(in, s.offset)
		return out
	}
	return in.Position
}

// Offset is the assist offset recorded at the last press.
func (s *Selector) Offset() float32 { return s.offset }

// Quantized is the hard-quantize pitch.
func Quantized(in Input) float32 { return in.Stairstep }

// Smoothed is the smooth-mode pitch.
func Smoothed(in Input, calibration float32) float32 { return in.Position - calibration }

// Assisted is the assist-mode pitch and the offset to carry into the next tick.
// On the tick a press begins the distance between the finger and its step is
// recorded and the step itself is played, so the attack is always in tune.
// While the finger stays down the smooth position is played minus that offset.
func Assisted(in Input, offset float32) (out, nextOffset float32) {
	if in.JustPressed {
		return in.Stairstep, in.Fraction
	}
	return in.Position - offset, offset
}
