package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chase3718/ribbon-synth/internal/board"
	"github.com/chase3718/ribbon-synth/internal/clock"
	"github.com/chase3718/ribbon-synth/internal/config"
	"github.com/chase3718/ribbon-synth/internal/engine"
	"github.com/chase3718/ribbon-synth/internal/midiout"
	"github.com/spf13/cobra"
)

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Bridge.Port == "" {
		return usageErr(errNoPort)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []board.BridgeOption
	watcher, stopMIDIOut := startMIDIOut(ctx, cfg)
	defer stopMIDIOut()
	if watcher != nil {
		opts = append(opts, board.WithMIDISink(watcher))
	}

	b, err := board.OpenBridge(cfg.Serial(), logger, opts...)
	if err != nil {
		return err
	}
	defer b.Close()

	err = runLoop(ctx, cfg.Engine(), b)
	reports, frameErrors := b.Stats()
	logger.Info("bridge: closing", "reports", reports, "frame_errors", frameErrors)
	return err
}

func runSim(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	mode, err := parseSwitch(simMode)
	if err != nil {
		return usageErr(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sinks []board.MIDISink
	watcher, stopMIDIOut := startMIDIOut(ctx, cfg)
	defer stopMIDIOut()
	if watcher != nil {
		sinks = append(sinks, watcher)
	}

	ecfg := cfg.Engine()
	sim := board.NewSim(board.SimConfig{
		Semitones:  ecfg.Semitones,
		TopReading: ecfg.MainRibbon.TopReading(),
		Mode:       mode,
		Channel:    simChannel,
		Glide:      simGlide,
	}, nil, logger, sinks...)

	err = runLoop(ctx, ecfg, sim)
	logger.Info("sim: done", "midi_bytes", sim.SerialBytes())
	return err
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := board.ListPorts()
	if err != nil {
		return err
	}
	fmt.Println("Serial devices:")
	for _, p := range ports {
		fmt.Println("  " + p)
	}

	w, err := midiout.Open(midiout.Options{}, logger)
	if err != nil {
		return err
	}
	defer w.Close()
	names, err := w.Outputs()
	if err != nil {
		return err
	}
	fmt.Println("MIDI outputs:")
	for _, n := range names {
		fmt.Println("  " + n)
	}
	return nil
}

// startMIDIOut starts the host MIDI output watcher, or returns nil when it is
// disabled or unavailable. A missing MIDI backend is not fatal. The returned
// func stops the rescan goroutine before closing the driver.
func startMIDIOut(ctx context.Context, cfg *config.Config) (*midiout.Watcher, func()) {
	if !cfg.MIDIOut.Enabled {
		return nil, func() {}
	}
	w, err := midiout.Open(cfg.MIDIOptions(), logger)
	if err != nil {
		logger.Warn("midi: host output unavailable", "err", err)
		return nil, func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	return w, func() {
		cancel()
		<-done
		if err := w.Close(); err != nil {
			logger.Warn("midi: close failed", "err", err)
		}
	}
}

func runLoop(ctx context.Context, cfg engine.Config, b board.Board) error {
	clk, err := clock.NewTickers(float64(cfg.FastHz), float64(cfg.OutputHz), float64(cfg.SlowHz))
	if err != nil {
		return err
	}
	defer clk.Stop()

	s := engine.New(cfg, b, clk, logger)
	s.Start()
	err = s.Run(ctx)
	st := s.Stats()
	logger.Info("engine: stopped", "midi_sent", st.MIDISent, "midi_dropped", st.MIDIDropped)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func parseSwitch(s string) (board.Switch3Way, error) {
	switch strings.ToLower(s) {
	case "up", "hard", "hard-quantize":
		return board.SwitchUp, nil
	case "middle", "assist":
		return board.SwitchMiddle, nil
	case "down", "smooth":
		return board.SwitchDown, nil
	}
	return 0, fmt.Errorf("unknown mode switch position %q", s)
}
