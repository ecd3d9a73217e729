package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Rates.Fast != 1000 || cfg.Rates.Output != 300 || cfg.Rates.Slow != 30 {
		t.Errorf("rates = %+v", cfg.Rates)
	}
	if cfg.Semitones != 32 || cfg.LowestNote != 5 || cfg.SettleMS != 100 {
		t.Errorf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"bridge": {"port": "/dev/ttyACM0"}, "lowestNote": 29, "rates": {"fast": 2000, "output": 300, "slow": 30}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bridge.Port != "/dev/ttyACM0" || cfg.Bridge.Baud != 115200 {
		t.Errorf("bridge = %+v", cfg.Bridge)
	}
	e := cfg.Engine()
	if e.LowestNote != 29 || e.FastHz != 2000 || e.MainRibbon.EndToEndOhms != 19_876 {
		t.Errorf("engine config = %+v", e)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed JSON accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero rate", func(c *Config) { c.Rates.Slow = 0 }},
		{"output faster than fast", func(c *Config) { c.Rates.Output = 5000 }},
		{"zero resistance", func(c *Config) { c.ModRibbon.SeriesOhms = 0 }},
		{"too many semitones", func(c *Config) { c.Semitones = 72 }},
		{"note out of range", func(c *Config) { c.LowestNote = 128 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate = %v, want ErrInvalid", err)
			}
		})
	}
}
