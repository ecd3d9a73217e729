package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chase3718/ribbon-synth/internal/board"
	"github.com/chase3718/ribbon-synth/internal/engine"
	"github.com/chase3718/ribbon-synth/internal/midiout"
	"github.com/chase3718/ribbon-synth/internal/ribbon"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// BridgeConfig names the serial devices.
type BridgeConfig struct {
	Port     string `json:"port,omitempty"`
	Baud     int    `json:"baud,omitempty"`
	MIDIPort string `json:"midiPort,omitempty"` // 31250 baud MIDI UART
}

// MIDIOutConfig picks the host MIDI output port.
type MIDIOutConfig struct {
	Enabled   bool     `json:"enabled"`
	Preferred []string `json:"preferred,omitempty"`
	Excluded  []string `json:"excluded,omitempty"`
}

// RatesConfig are the loop timer rates in Hz.
type RatesConfig struct {
	Fast   float32 `json:"fast"`
	Output float32 `json:"output"`
	Slow   float32 `json:"slow"`
}

// RibbonConfig is the measured analog front end of one ribbon.
type RibbonConfig struct {
	EndToEndOhms float32 `json:"endToEndOhms"`
	SeriesOhms   float32 `json:"seriesOhms"`
	PullupOhms   float32 `json:"pullupOhms"`
}

// Config is the main configuration structure
type Config struct {
	Bridge     BridgeConfig  `json:"bridge"`
	MIDIOut    MIDIOutConfig `json:"midiOut"`
	Rates      RatesConfig   `json:"rates"`
	MainRibbon RibbonConfig  `json:"mainRibbon"`
	ModRibbon  RibbonConfig  `json:"modRibbon"`
	Semitones  float32       `json:"semitones"`
	LowestNote int           `json:"lowestNote"`
	SettleMS   uint32        `json:"settleMs"`
}

// DefaultConfig returns a config for the stock hardware.
func DefaultConfig() *Config {
	e := engine.DefaultConfig()
	return &Config{
		Bridge: BridgeConfig{Baud: 115200},
		MIDIOut: MIDIOutConfig{
			Enabled:  true,
			Excluded: midiout.DefaultExcluded,
		},
		Rates:      RatesConfig{Fast: e.FastHz, Output: e.OutputHz, Slow: e.SlowHz},
		MainRibbon: RibbonConfig(e.MainRibbon),
		ModRibbon:  RibbonConfig(e.ModRibbon),
		Semitones:  e.Semitones,
		LowestNote: int(e.LowestNote),
		SettleMS:   e.SettleMS,
	}
}

// DefaultPath returns ~/.config/ribbon/config.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ribbon", "config.json"), nil
}

// Load reads the config at path over the defaults. A missing file is not an
// error. The result is validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the loop cannot run with.
func (c *Config) Validate() error {
	r := c.Rates
	if r.Fast <= 0 || r.Output <= 0 || r.Slow <= 0 {
		return fmt.Errorf("%w: rates must be positive", ErrInvalid)
	}
	if !(r.Fast >= r.Output && r.Output >= r.Slow) {
		return fmt.Errorf("%w: rates must satisfy fast >= output >= slow, got %v/%v/%v", ErrInvalid, r.Fast, r.Output, r.Slow)
	}
	for name, rb := range map[string]RibbonConfig{"mainRibbon": c.MainRibbon, "modRibbon": c.ModRibbon} {
		if rb.EndToEndOhms <= 0 || rb.SeriesOhms <= 0 || rb.PullupOhms <= 0 {
			return fmt.Errorf("%w: %s resistances must be positive", ErrInvalid, name)
		}
	}
	if c.Semitones <= 0 || c.Semitones/12 > board.DACMaxVout {
		return fmt.Errorf("%w: semitones %v outside the DAC range", ErrInvalid, c.Semitones)
	}
	if c.LowestNote < 0 || c.LowestNote > 127 {
		return fmt.Errorf("%w: lowestNote %d", ErrInvalid, c.LowestNote)
	}
	if c.Bridge.Baud < 0 {
		return fmt.Errorf("%w: baud %d", ErrInvalid, c.Bridge.Baud)
	}
	return nil
}

// Engine is the loop configuration.
func (c *Config) Engine() engine.Config {
	e := engine.DefaultConfig()
	e.FastHz = c.Rates.Fast
	e.OutputHz = c.Rates.Output
	e.SlowHz = c.Rates.Slow
	e.Semitones = c.Semitones
	e.LowestNote = uint8(c.LowestNote)
	e.SettleMS = c.SettleMS
	e.MainRibbon = ribbon.Calibration(c.MainRibbon)
	e.ModRibbon = ribbon.Calibration(c.ModRibbon)
	return e
}

// Serial is the bridge serial configuration.
func (c *Config) Serial() board.SerialConfig {
	return board.SerialConfig{Port: c.Bridge.Port, Baud: c.Bridge.Baud, MIDIPort: c.Bridge.MIDIPort}
}

// MIDIOptions is the host MIDI output port selection.
func (c *Config) MIDIOptions() midiout.Options {
	return midiout.Options{Preferred: c.MIDIOut.Preferred, Excluded: c.MIDIOut.Excluded}
}
