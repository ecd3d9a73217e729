// Package engine runs the control loop: it polls the ribbons, reads the front
// panel and drives the pitch CV, the mod CV, the gate and MIDI.
package engine

import (
	"context"
	"log/slog"

	"github.com/chase3718/ribbon-synth/internal/board"
	"github.com/chase3718/ribbon-synth/internal/clock"
	"github.com/chase3718/ribbon-synth/internal/glide"
	"github.com/chase3718/ribbon-synth/internal/miditx"
	"github.com/chase3718/ribbon-synth/internal/panel"
	"github.com/chase3718/ribbon-synth/internal/pitch"
	"github.com/chase3718/ribbon-synth/internal/quantizer"
	"github.com/chase3718/ribbon-synth/internal/ribbon"
)

// Config holds the fixed parameters of the loop.
type Config struct {
	FastHz   float32 // ribbon polling rate
	OutputHz float32 // CV and MIDI update rate
	SlowHz   float32 // front panel rate

	// Semitones is the pitch range of the whole main ribbon. The ribbon is
	// scaled to Semitones/12 volts at 1 V/octave.
	Semitones  float32
	LowestNote uint8 // MIDI note played at the bottom of the ribbon
	Velocity   uint8
	SettleMS   uint32 // startup delay before the first reading

	MainRibbon ribbon.Calibration
	ModRibbon  ribbon.Calibration
}

// DefaultConfig matches the stock hardware: about two and a half octaves
// from F up to C.
func DefaultConfig() Config {
	return Config{
		FastHz:     1000,
		OutputHz:   300,
		SlowHz:     30,
		Semitones:  32,
		LowestNote: 5,
		Velocity:   miditx.MaxVelocity,
		SettleMS:   100,
		MainRibbon: ribbon.Calibration{EndToEndOhms: 19_876, SeriesOhms: 10_000, PullupOhms: 1e6},
		ModRibbon:  ribbon.Calibration{EndToEndOhms: 10_271, SeriesOhms: 10_000, PullupOhms: 1e6},
	}
}

// MaxPitchVolts is the pitch CV with a finger at the top of the main ribbon.
func (c Config) MaxPitchVolts() float32 {
	return c.Semitones / quantizer.SemitonesPerOctave
}

// Scheduler owns every component of the loop. It is not safe for concurrent
// use; one goroutine calls Start and then Step or Run.
type Scheduler struct {
	cfg    Config
	board  board.Board
	clock  clock.Source
	logger *slog.Logger

	main *ribbon.Controller
	mod  *ribbon.Controller

	pitchQuantizer *quantizer.Quantizer
	midiQuantizer  *quantizer.Quantizer
	selector       *pitch.Selector
	glide          *glide.Processor
	panel          *panel.State
	midi           *miditx.Transmitter

	lastNote uint8
	lastBend uint16
	lastMode pitch.Mode
}

// New wires a Scheduler to b, paced by clk.
func New(cfg Config, b board.Board, clk clock.Source, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Velocity == 0 {
		cfg.Velocity = miditx.MaxVelocity
	}
	return &Scheduler{
		cfg:    cfg,
		board:  b,
		clock:  clk,
		logger: logger,

		main: ribbon.New(cfg.FastHz, cfg.MainRibbon),
		mod:  ribbon.New(cfg.FastHz, cfg.ModRibbon),

		pitchQuantizer: quantizer.NewVoltPerOctave(),
		midiQuantizer:  quantizer.NewVoltPerOctave(),
		selector:       pitch.NewSelector(quantizer.HalfSemitoneWidth),
		glide:          glide.New(cfg.OutputHz),
		panel:          panel.New(),
		midi:           miditx.NewTransmitter(logger),

		lastBend: miditx.PitchBendCenter,
	}
}

// Start waits for the ribbon voltages to settle and takes a first panel
// reading.
func (s *Scheduler) Start() {
	s.board.DelayMS(s.cfg.SettleMS)
	s.updatePanel()
	s.lastMode = s.panel.PitchMode()
	s.logger.Info("engine: started",
		"mode", s.lastMode.String(),
		"glide_s", s.panel.GlideTime(),
		"fast_hz", s.cfg.FastHz,
		"output_hz", s.cfg.OutputHz,
		"slow_hz", s.cfg.SlowHz,
	)
}

// Step is one pass of the loop. Each due timer's work runs once, in the
// order slow, fast, output, so the output sees the freshest ribbon reading.
func (s *Scheduler) Step() {
	if s.clock.Expired(clock.Slow) {
		s.updatePanel()
	}
	if s.clock.Expired(clock.Fast) {
		s.main.Poll(s.board.ReadAnalog(board.AnalogMainRibbon))
		s.mod.Poll(s.board.ReadAnalog(board.AnalogModRibbon))
	}
	if s.clock.Expired(clock.Output) {
		s.updateOutputs()
	}
}

// Run calls Step until ctx is done. A clock that can wait is waited on
// between passes; otherwise the loop spins.
func (s *Scheduler) Run(ctx context.Context) error {
	w, canWait := s.clock.(clock.Waiter)
	for {
		if canWait {
			if err := w.Wait(ctx); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		s.Step()
	}
}

func (s *Scheduler) updatePanel() {
	s.panel.Update(s.board)
	s.glide.SetTime(s.panel.GlideTime())
	if m := s.panel.PitchMode(); m != s.lastMode {
		s.logger.Debug("engine: pitch mode changed", "from", s.lastMode.String(), "to", m.String())
		s.lastMode = m
	}
}

func (s *Scheduler) updateOutputs() {
	position := s.main.Value() * s.cfg.MaxPitchVolts()
	step := s.pitchQuantizer.Convert(position)

	pressed, released := s.main.Edges()
	holding := s.main.Gate()

	target := s.selector.Select(s.panel.PitchMode(), pitch.Input{
		Position:    position,
		Stairstep:   step.Stairstep,
		Fraction:    step.Fraction,
		JustPressed: pressed,
	})

	s.board.WriteVoltage(s.glide.Process(target), board.DACPitch)
	s.board.WriteVoltage(s.mod.Value()*board.DACMaxVout, board.DACMod)
	s.board.SetGate(holding)

	// the half step lead keeps the MIDI note in tune with the CV
	conv := s.midiQuantizer.Convert(target + quantizer.HalfSemitoneWidth)
	note := noteNumber(conv.NoteNum, s.cfg.LowestNote)
	bend := miditx.BendValue(conv.Offset, s.midiQuantizer.Width())
	ch := s.board.ReadChannelSelect() & 0x0F

	switch {
	case pressed:
		s.midi.Push(miditx.NoteOn(ch, note, s.cfg.Velocity))
	case holding && note != s.lastNote:
		s.midi.Push(miditx.NoteOn(ch, note, s.cfg.Velocity))
		s.midi.Push(miditx.NoteOff(ch, s.lastNote, miditx.MinVelocity))
	case released:
		s.midi.Push(miditx.NoteOff(ch, note, miditx.MinVelocity))
		if note != s.lastNote {
			s.midi.Push(miditx.NoteOff(ch, s.lastNote, miditx.MinVelocity))
		}
	}
	s.lastNote = note

	if bend != s.lastBend {
		s.midi.Push(miditx.PitchBend(ch, bend))
		s.lastBend = bend
	}

	s.midi.SendQueue(s.board)
}

// noteNumber is the MIDI note for quantizer bucket n, clamped to 0-127.
func noteNumber(n int, lowest uint8) uint8 {
	v := n + int(lowest)
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}

// Stats is a snapshot of the MIDI counters.
type Stats struct {
	MIDISent    uint64
	MIDIDropped uint64
}

func (s *Scheduler) Stats() Stats {
	return Stats{MIDISent: s.midi.Sent(), MIDIDropped: s.midi.Dropped()}
}

// PitchMode is the pitch mode read at the last panel update.
func (s *Scheduler) PitchMode() pitch.Mode { return s.panel.PitchMode() }
