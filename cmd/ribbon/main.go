package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/chase3718/ribbon-synth/internal/config"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// -------------------- Logger --------------------

// logger is the process-wide structured logger.
var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault so
// the stdlib log package also routes through the same handler.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug, // include file:line in debug mode
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

// -------------------- Flags --------------------

var (
	debug      bool
	configPath string

	bridgePort string
	bridgeBaud int
	midiPort   string
	noMIDIOut  bool
	preferred  []string

	simMode    string
	simChannel uint8
	simGlide   float32
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ribbon",
	Short: "Ribbon controller instrument host",
	Long: `ribbon runs the control loop of a ribbon controller instrument: it
reads the ribbons and front panel, and drives the pitch CV, mod CV, gate and
MIDI output.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(debug)
	},
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run against the microcontroller front end",
	Long: `Run the control loop against the microcontroller that owns the ADC,
DAC and panel switches.

Examples:
  ribbon run --port /dev/ttyACM0
  ribbon run -p /dev/ttyACM0 --midi-port /dev/ttyUSB0 --prefer "Minilogue"`,
	RunE: runRun,
}

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run the control loop on a simulated ribbon",
	Long: `Play a looping gesture on a simulated ribbon, sending MIDI to the
host MIDI output. Useful for checking a synth setup without hardware.`,
	RunE: runSim,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial devices and MIDI outputs",
	RunE:  runPorts,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(simCmd)
	rootCmd.AddCommand(portsCmd)

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.config/ribbon/config.json)")
	rootCmd.PersistentFlags().BoolVar(&noMIDIOut, "no-midi-out", false, "Do not mirror MIDI to a host output port")
	rootCmd.PersistentFlags().StringSliceVar(&preferred, "prefer", nil, "Preferred host MIDI output name patterns")

	runCmd.Flags().StringVarP(&bridgePort, "port", "p", "", "Serial device of the front end")
	runCmd.Flags().IntVarP(&bridgeBaud, "baud", "b", 115200, "Front end baud rate")
	runCmd.Flags().StringVar(&midiPort, "midi-port", "", "Serial device of the 31250 baud MIDI UART")

	simCmd.Flags().StringVar(&simMode, "mode", "middle", "Mode switch position (up, middle, down)")
	simCmd.Flags().Uint8Var(&simChannel, "channel", 0, "MIDI channel switch, 0-15")
	simCmd.Flags().Float32Var(&simGlide, "glide", 0.3, "Glide knob position, 0-1")
}

// loadConfig reads the config file and applies flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			logger.Warn("config: no home directory, using defaults", "err", err)
			return config.DefaultConfig(), nil
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Bridge.Port = bridgePort
	}
	if flags.Changed("baud") {
		cfg.Bridge.Baud = bridgeBaud
	}
	if flags.Changed("midi-port") {
		cfg.Bridge.MIDIPort = midiPort
	}
	if flags.Changed("prefer") {
		cfg.MIDIOut.Preferred = preferred
	}
	if noMIDIOut {
		cfg.MIDIOut.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("config: loaded", "path", path)
	return cfg, nil
}

var errNoPort = errors.New("no front end serial port configured (use --port)")

func usageErr(err error) error { return fmt.Errorf("ribbon: %w", err) }
