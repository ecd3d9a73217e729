// Package quantizer snaps a continuous pitch onto semitone steps.
//
// Quantizers are used in musical systems to force smoothly changing signals to
// take on discrete note values so that the musician can more easily play in
// tune. A hysteresis band around each step keeps sensor noise near a step
// boundary from flickering between two notes.
package quantizer

import "math"

// Pitch signals are 1 volt per octave.
const (
	SemitonesPerOctave = 12

	SemitoneWidth     float32 = 1.0 / SemitonesPerOctave
	HalfSemitoneWidth float32 = SemitoneWidth / 2
)

// HysteresisFraction is the dead zone past the bucket edge, as a fraction of
// the bucket width. Derived empirically.
const HysteresisFraction = 0.1

// Conversion is the result of quantizing one value.
type Conversion struct {
	// Stairstep is the lower edge of the committed bucket, i.e. the in-tune
	// pitch of the step.
	Stairstep float32
	// Fraction is the input minus Stairstep.
	Fraction float32
	// Offset is the input minus the center of the committed bucket.
	Offset float32
	// NoteNum is the index of the committed bucket, counted from zero.
	NoteNum int
}

// Quantizer converts smooth inputs into stairsteps. It remembers the last
// committed bucket, so results depend on history.
type Quantizer struct {
	width      float32
	halfWidth  float32
	hysteresis float32

	lastBucket float32
	lastNote   int
}

// New is a quantizer whose buckets split fullScale into semitones+1 steps, so
// a range spanning N semitones lands exactly on its top note.
func New(fullScale float32, semitones int) *Quantizer {
	if semitones < 0 {
		semitones = 0
	}
	return newWithWidth(fullScale / float32(semitones+1))
}

// NewVoltPerOctave is a quantizer with one bucket per 1/12 volt.
func NewVoltPerOctave() *Quantizer {
	return newWithWidth(SemitoneWidth)
}

func newWithWidth(w float32) *Quantizer {
	return &Quantizer{
		width:      w,
		halfWidth:  w / 2,
		hysteresis: w * HysteresisFraction,
	}
}

// Width is the bucket width.
func (q *Quantizer) Width() float32 { return q.width }

// HalfWidth is half the bucket width.
func (q *Quantizer) HalfWidth() float32 { return q.halfWidth }

// Convert quantizes val. Negative inputs are treated as zero.
func (q *Quantizer) Convert(val float32) Conversion {
	if val < 0 {
		val = 0
	}

	// only commit a new bucket if the input has strayed far enough from the
	// center of the current one
	center := q.lastBucket + q.halfWidth
	if diff := val - center; diff > q.halfWidth+q.hysteresis || -diff > q.halfWidth+q.hysteresis {
		n := int(math.Floor(float64(val / q.width)))
		q.lastNote = n
		q.lastBucket = float32(n) * q.width
	}

	return Conversion{
		Stairstep: q.lastBucket,
		Fraction:  val - q.lastBucket,
		Offset:    val - (q.lastBucket + q.halfWidth),
		NoteNum:   q.lastNote,
	}
}
