package board

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"
)

// MIDIBaud is the MIDI wire rate. The MIDI UART is always 8N1.
const MIDIBaud = 31250

// MIDISink receives every MIDI byte buffer the core transmits.
type MIDISink interface {
	Send(b []byte)
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithMIDIUART sends MIDI bytes to w, normally a 31250 baud serial port.
func WithMIDIUART(w io.Writer) BridgeOption {
	return func(b *Bridge) { b.midiUART = w }
}

// WithMIDISink also hands MIDI bytes to s.
func WithMIDISink(s MIDISink) BridgeOption {
	return func(b *Bridge) { b.sinks = append(b.sinks, s) }
}

// Bridge is a Board backed by a microcontroller front end on a serial link.
// The MCU streams SensorReport frames; DAC and gate writes go back as frames.
type Bridge struct {
	link     io.ReadWriteCloser
	midiUART io.Writer
	sinks    []MIDISink
	logger   *slog.Logger

	mu          sync.Mutex
	report      SensorReport
	reports     uint64
	frameErrors uint64
	readErr     error

	// only touched by the control loop
	lastDAC  map[OutputChannel][3]byte
	gate     bool
	gateSent bool
	out      []byte

	done chan struct{}
}

// idleReport is what the bridge reports before the MCU has said anything:
// both ribbons untouched, knob at zero, switches at rest.
var idleReport = SensorReport{
	ADC:         [NumAnalogChannels]uint16{AnalogGlide: 0, AnalogMainRibbon: ADCMax, AnalogModRibbon: ADCMax},
	ChannelBits: 0b1111,
}

// NewBridge starts reading sensor reports from link.
func NewBridge(link io.ReadWriteCloser, logger *slog.Logger, opts ...BridgeOption) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		link:    link,
		logger:  logger,
		report:  idleReport,
		lastDAC: make(map[OutputChannel][3]byte),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	go b.readLoop()
	return b
}

// SerialConfig names the serial devices of a Bridge.
type SerialConfig struct {
	Port     string // MCU link
	Baud     int
	MIDIPort string // optional MIDI UART
}

// OpenBridge opens the serial devices in cfg and starts a Bridge on them.
func OpenBridge(cfg SerialConfig, logger *slog.Logger, opts ...BridgeOption) (*Bridge, error) {
	if logger == nil {
		logger = slog.Default()
	}
	link, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.Baud})
	if err != nil {
		return nil, fmt.Errorf("open bridge port %s: %w", cfg.Port, err)
	}
	logger.Info("serial: port opened", "device", cfg.Port, "baud", cfg.Baud)

	if cfg.MIDIPort != "" {
		uart, err := serial.Open(cfg.MIDIPort, &serial.Mode{
			BaudRate: MIDIBaud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			_ = link.Close()
			return nil, fmt.Errorf("open MIDI port %s: %w", cfg.MIDIPort, err)
		}
		logger.Info("serial: port opened", "device", cfg.MIDIPort, "baud", MIDIBaud)
		opts = append(opts, WithMIDIUART(uart))
	}
	return NewBridge(link, logger, opts...), nil
}

// ListPorts is the serial devices present on the host.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

func (b *Bridge) readLoop() {
	defer close(b.done)
	var fr FrameReader
	buf := make([]byte, 256)
	for {
		n, err := b.link.Read(buf)
		for _, c := range buf[:n] {
			cmd, payload, ok, ferr := fr.Feed(c)
			if ferr != nil {
				b.frameError(ferr)
				continue
			}
			if !ok {
				continue
			}
			if cmd != CmdSensorReport {
				b.logger.Debug("bridge: unexpected frame", "cmd", cmd)
				continue
			}
			r, perr := ParseSensorReport(payload)
			if perr != nil {
				b.frameError(perr)
				continue
			}
			b.mu.Lock()
			b.report = r
			b.reports++
			b.mu.Unlock()
		}
		if err != nil {
			if !isClosed(err) {
				b.logger.Error("bridge: read failed", "err", err)
			}
			b.mu.Lock()
			b.readErr = err
			b.mu.Unlock()
			return
		}
	}
}

func isClosed(err error) bool {
	var pe *serial.PortError
	if errors.As(err, &pe) && pe.Code() == serial.PortClosed {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe)
}

func (b *Bridge) frameError(err error) {
	b.mu.Lock()
	b.frameErrors++
	b.mu.Unlock()
	b.logger.Warn("bridge: bad frame", "err", err)
}

func (b *Bridge) snapshot() SensorReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.report
}

// Stats is the number of sensor reports accepted and frames rejected so far.
func (b *Bridge) Stats() (reports, frameErrors uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reports, b.frameErrors
}

// Err is the error that stopped the reader, if it has stopped.
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readErr
}

func (b *Bridge) ReadAnalog(ch AnalogChannel) float32 {
	if ch < 0 || ch >= NumAnalogChannels {
		return 0
	}
	return NormalizeADC(b.snapshot().ADC[ch])
}

// WriteVoltage sends a DAC frame for ch unless it would repeat the last one.
func (b *Bridge) WriteVoltage(volts float32, ch OutputChannel) {
	f := DACFrame(volts, ch)
	if last, ok := b.lastDAC[ch]; ok && last == f {
		return
	}
	b.lastDAC[ch] = f
	b.send(CmdDACWrite, f[:])
}

func (b *Bridge) SetGate(on bool) {
	if b.gateSent && b.gate == on {
		return
	}
	b.gate, b.gateSent = on, true
	var v byte
	if on {
		v = 1
	}
	b.send(CmdGate, []byte{v})
}

func (b *Bridge) send(cmd byte, payload []byte) {
	b.out = AppendFrame(b.out[:0], cmd, payload)
	if _, err := b.link.Write(b.out); err != nil {
		b.logger.Warn("bridge: write failed", "cmd", cmd, "err", err)
	}
}

func (b *Bridge) WriteSerial(p []byte) {
	if b.midiUART != nil {
		if _, err := b.midiUART.Write(p); err != nil {
			b.logger.Warn("bridge: MIDI write failed", "err", err)
		}
	}
	for _, s := range b.sinks {
		s.Send(p)
	}
}

func (b *Bridge) ReadModeSwitch() Switch3Way { return b.snapshot().Mode() }

func (b *Bridge) ReadChannelSelect() uint8 { return b.snapshot().Channel() }

func (b *Bridge) DelayMS(ms uint32) { time.Sleep(time.Duration(ms) * time.Millisecond) }

// Close closes the link and any MIDI UART and waits for the reader to stop.
func (b *Bridge) Close() error {
	err := b.link.Close()
	<-b.done
	if c, ok := b.midiUART.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
