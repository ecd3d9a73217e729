// Package panel holds the front panel controls: the pitch mode switch and the
// glide knob.
package panel

import (
	"github.com/chase3718/ribbon-synth/internal/board"
	"github.com/chase3718/ribbon-synth/internal/pitch"
)

// MaxGlideTime is the glide time with the knob fully clockwise, in seconds.
const MaxGlideTime = 3.0

// Controls is the part of a board the panel reads.
type Controls interface {
	ReadModeSwitch() board.Switch3Way
	ReadAnalog(ch board.AnalogChannel) float32
}

// State is the last panel reading. The zero value is not ready; use New.
type State struct {
	mode      pitch.Mode
	glideKnob float32
	glideTime float32
}

// New is the power-on panel state: smooth mode and no glide.
func New() *State {
	return &State{mode: pitch.Smooth}
}

// Update reads the controls. It only needs calling often enough that the
// knob doesn't feel sluggish.
func (s *State) Update(c Controls) {
	s.mode = ModeFor(c.ReadModeSwitch())
	s.glideKnob = c.ReadAnalog(board.AnalogGlide)
	s.glideTime = GlideTaper(s.glideKnob)
}

func (s *State) PitchMode() pitch.Mode { return s.mode }

// GlideTime is the glide time constant in seconds.
func (s *State) GlideTime() float32 { return s.glideTime }

// GlideKnob is the raw knob position in [0.0, 1.0].
func (s *State) GlideKnob() float32 { return s.glideKnob }

// ModeFor maps the mode switch to a pitch mode.
func ModeFor(sw board.Switch3Way) pitch.Mode {
	switch sw {
	case board.SwitchUp:
		return pitch.HardQuantize
	case board.SwitchMiddle:
		return pitch.Assist
	}
	return pitch.Smooth
}

// GlideTaper bends the linear knob into a square law so short glides get
// most of the travel.
func GlideTaper(v float32) float32 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v * v * MaxGlideTime
}
