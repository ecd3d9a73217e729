// Package ribbon turns a stream of raw softpot readings into a debounced
// finger position and a gate.
//
// The ribbon is a resistive strip wired as a voltage divider with the wiper
// pulled up to the reference. With nobody touching it the wiper floats to
// full scale; a finger connects the wiper to the track and pulls the reading
// down. The position is held after the finger lifts, like a sample-and-hold.
package ribbon

// Calibration describes the analog front end of one ribbon. The zero value
// means "uncalibrated": readings are used as-is and the press threshold sits
// just below full scale.
type Calibration struct {
	EndToEndOhms float32 // softpot track resistance, as measured
	SeriesOhms   float32 // resistor from the top of the track to the reference
	PullupOhms   float32 // wiper pull-up to the reference
}

// HistoryDuration is how much sample history a Controller averages over.
const HistoryDuration = 0.064 // seconds

// uncalibratedThreshold is the press boundary used without a Calibration.
const uncalibratedThreshold = 1.0 - 1.0/90.0

// pressMargin places the press threshold between the highest reading a finger
// can produce and full scale.
const pressMargin = 0.5

// SampleRateToCapacity is the history capacity for a poll rate in Hz.
func SampleRateToCapacity(sampleRateHz float32) int {
	c := int(sampleRateHz * HistoryDuration)
	if c < 8 {
		c = 8
	}
	if c > MaxCapacity {
		c = MaxCapacity
	}
	return c
}

// TopReading is the normalized reading produced by a finger at the very top
// of the track. Readings at or below it are presses.
func (c Calibration) TopReading() float32 {
	if c.EndToEndOhms <= 0 || c.SeriesOhms <= 0 || c.PullupOhms <= 0 {
		return 1
	}
	// wiper node: series and pull-up to the reference, the whole track to ground
	up := 1/c.SeriesOhms + 1/c.PullupOhms
	down := 1 / c.EndToEndOhms
	return up / (up + down)
}

// Threshold is the highest normalized reading still classified as a press.
func (c Calibration) Threshold() float32 {
	top := c.TopReading()
	if top >= 1 {
		return uncalibratedThreshold
	}
	return top + (1-top)*pressMargin
}

// Controller is one ribbon. It must be polled once per fast tick.
type Controller struct {
	threshold float32
	fullScale float32

	minValid int // samples required before a position is reported
	ignore   int // most recent samples left out of the average

	buf history

	currentVal  float32
	currentGate bool

	observedGate bool // gate as last seen by Edges
}

// New is a Controller for a ribbon polled at sampleRateHz.
func New(sampleRateHz float32, cal Calibration) *Controller {
	capacity := SampleRateToCapacity(sampleRateHz)
	return &Controller{
		threshold: cal.Threshold(),
		fullScale: cal.TopReading(),
		minValid:  capacity / 2,
		ignore:    capacity / 8,
		buf:       newHistory(capacity),
	}
}

// Poll feeds one raw reading in [0.0, 1.0].
func (c *Controller) Poll(raw float32) {
	if raw > c.threshold {
		// released: forget the history but hold on to the last position
		c.buf.clear()
		c.currentGate = false
		return
	}

	c.buf.write(raw)
	if c.buf.len() < c.minValid {
		return
	}

	// the newest few samples are left out, they are the ones most likely to
	// be caught mid-transition as the finger lands or lifts
	mean := c.buf.oldestMean(c.buf.len() - c.ignore)
	v := mean / c.fullScale
	if v > 1 {
		v = 1
	}
	c.currentVal = v
	c.currentGate = true
}

// Value is the current position in [0.0, 1.0]. After the finger lifts it is
// the last valid position.
func (c *Controller) Value() float32 { return c.currentVal }

// Gate is true while a finger is pressing and enough samples have been
// collected for a stable position.
func (c *Controller) Gate() bool { return c.currentGate }

// Edges reports whether the gate rose or fell since the previous call. Each
// edge is reported exactly once; a press and release that both happen between
// two calls are not reported at all.
func (c *Controller) Edges() (pressed, released bool) {
	pressed = c.currentGate && !c.observedGate
	released = !c.currentGate && c.observedGate
	c.observedGate = c.currentGate
	return pressed, released
}

// Capacity is the size of the sample history.
func (c *Controller) Capacity() int { return c.buf.size }

// MinValid is the number of consecutive pressed samples needed for a gate.
func (c *Controller) MinValid() int { return c.minValid }

// Ignored is the number of newest samples left out of the average.
func (c *Controller) Ignored() int { return c.ignore }
