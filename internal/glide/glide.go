// Package glide slews a pitch signal toward its target (portamento).
package glide

import "math"

// Processor is a single-pole exponential smoother run at a fixed rate.
type Processor struct {
	period       float32 // seconds between Process calls
	timeConstant float32
	gain         float32
	out          float32
}

// New is a Processor called sampleRateHz times per second. It starts with no
// glide.
func New(sampleRateHz float32) *Processor {
	p := &Processor{period: 1 / sampleRateHz}
	p.SetTime(0)
	return p
}

// SetTime sets the glide time constant in seconds. Zero or less is instant.
func (p *Processor) SetTime(seconds float32) {
	if seconds < 0 {
		seconds = 0
	}
	p.timeConstant = seconds
	p.gain = StepGain(seconds, p.period)
}

// Time is the current time constant in seconds.
func (p *Processor) Time() float32 { return p.timeConstant }

// Process moves the output toward target by one step and returns it.
func (p *Processor) Process(target float32) float32 {
	d := target - p.out
	next := p.out + d*p.gain
	if (d > 0 && next > target) || (d < 0 && next < target) {
		next = target
	}
	p.out = next
	return p.out
}

// Output is the last value returned by Process.
func (p *Processor) Output() float32 { return p.out }

// StepGain is the fraction of the remaining distance covered per step for a
// time constant tau and step period, both in seconds. It saturates at 1.
func StepGain(tau, period float32) float32 {
	if tau <= 0 || period <= 0 {
		return 1
	}
	g := float32(1 - math.Exp(-float64(period)/float64(tau)))
	if g > 1 {
		g = 1
	}
	return g
}
