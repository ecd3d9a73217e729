package board

import (
	"log/slog"
	"sync"
	"time"
)

// Segment is one stretch of a simulated gesture. Positions are in semitones
// from the bottom of the ribbon and are interpolated linearly over Duration.
type Segment struct {
	Duration time.Duration
	Pressed  bool
	From, To float32
}

// DefaultGesture presses, slides up a minor third, holds and lets go.
var DefaultGesture = []Segment{
	{Duration: 400 * time.Millisecond, Pressed: true, From: 12.5, To: 12.5},
	{Duration: 500 * time.Millisecond, Pressed: true, From: 12.5, To: 15.5},
	{Duration: 500 * time.Millisecond, Pressed: true, From: 15.5, To: 15.5},
	{Duration: 600 * time.Millisecond},
}

// SimConfig describes a Sim board.
type SimConfig struct {
	Semitones  float32 // semitones spanned by the whole ribbon
	TopReading float32 // reading at the top of the ribbon, 1 if uncalibrated
	Gesture    []Segment
	Mode       Switch3Way
	Channel    uint8
	Glide      float32 // glide knob in [0.0, 1.0]
}

// Sim is a Board that plays a looping gesture on the main ribbon. The mod
// ribbon is left untouched.
type Sim struct {
	cfg    SimConfig
	total  time.Duration
	now    func() time.Time
	start  time.Time
	sinks  []MIDISink
	logger *slog.Logger

	mu    sync.Mutex
	volts [2]float32
	gate  bool
	bytes uint64
}

// NewSim is a Sim whose gesture starts now. now may be nil for wall time.
func NewSim(cfg SimConfig, now func() time.Time, logger *slog.Logger, sinks ...MIDISink) *Sim {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Gesture) == 0 {
		cfg.Gesture = DefaultGesture
	}
	if cfg.TopReading <= 0 {
		cfg.TopReading = 1
	}
	s := &Sim{cfg: cfg, now: now, start: now(), sinks: sinks, logger: logger}
	for _, seg := range cfg.Gesture {
		s.total += seg.Duration
	}
	return s
}

// ribbonReading is the raw main ribbon reading at elapsed time t.
func (s *Sim) ribbonReading(t time.Duration) float32 {
	if s.total <= 0 {
		return 1
	}
	t %= s.total
	for _, seg := range s.cfg.Gesture {
		if t >= seg.Duration {
			t -= seg.Duration
			continue
		}
		if !seg.Pressed {
			return 1
		}
		frac := float32(t) / float32(seg.Duration)
		pos := seg.From + (seg.To-seg.From)*frac
		v := pos / s.cfg.Semitones
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return v * s.cfg.TopReading
	}
	return 1
}

func (s *Sim) ReadAnalog(ch AnalogChannel) float32 {
	switch ch {
	case AnalogGlide:
		return s.cfg.Glide
	case AnalogMainRibbon:
		return s.ribbonReading(s.now().Sub(s.start))
	}
	return 1
}

func (s *Sim) WriteVoltage(volts float32, ch OutputChannel) {
	if volts < 0 {
		volts = 0
	}
	if volts > DACMaxVout {
		volts = DACMaxVout
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(ch) < len(s.volts) {
		s.volts[ch] = volts
	}
}

func (s *Sim) WriteSerial(b []byte) {
	s.mu.Lock()
	s.bytes += uint64(len(b))
	s.mu.Unlock()
	for _, k := range s.sinks {
		k.Send(b)
	}
}

func (s *Sim) ReadModeSwitch() Switch3Way { return s.cfg.Mode }

func (s *Sim) ReadChannelSelect() uint8 { return s.cfg.Channel & 0x0F }

func (s *Sim) SetGate(on bool) {
	s.mu.Lock()
	changed := s.gate != on
	s.gate = on
	pitch := s.volts[DACPitch]
	s.mu.Unlock()
	if changed {
		s.logger.Info("sim: gate", "on", on, "pitch_volts", pitch)
	}
}

func (s *Sim) DelayMS(ms uint32) { time.Sleep(time.Duration(ms) * time.Millisecond) }

// Voltage is the last voltage written to ch.
func (s *Sim) Voltage(ch OutputChannel) float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(ch) >= len(s.volts) {
		return 0
	}
	return s.volts[ch]
}

// Gate is the gate output.
func (s *Sim) Gate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate
}

// SerialBytes is the number of MIDI bytes written so far.
func (s *Sim) SerialBytes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}
