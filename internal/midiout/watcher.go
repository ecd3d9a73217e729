// Package midiout mirrors the instrument's MIDI stream to a host MIDI output
// port. The port is picked by name and followed across unplug and replug.
package midiout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// DefaultRescanInterval is how often the output list is rescanned.
const DefaultRescanInterval = time.Second

// DefaultExcluded are virtual and system ports that are never auto-connected.
var DefaultExcluded = []string{"Midi Through", "Through Port", "Dummy"}

// Driver lists output ports. *rtmididrv.Driver implements it.
type Driver interface {
	Outs() ([]drivers.Out, error)
	Close() error
}

// Options selects which port a Watcher connects to.
type Options struct {
	// Preferred patterns are tried in order. With no match, a single
	// remaining port is used.
	Preferred []string
	Excluded  []string
	Rescan    time.Duration
}

// Watcher keeps a connection to the preferred MIDI output and forwards
// bytes to it. Bytes sent while nothing is connected are discarded.
type Watcher struct {
	mu           sync.Mutex
	drv          Driver
	opts         Options
	logger       *slog.Logger
	now          func() time.Time
	out          drivers.Out
	send         func(midi.Message) error
	connected    bool
	closed       bool
	selectedName string
	lastRescanAt time.Time
}

// Open is a Watcher over the rtmidi driver. Call Close when done.
func Open(opts Options, logger *slog.Logger) (*Watcher, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	return New(drv, opts, logger), nil
}

// New is a Watcher over drv. It does not connect until the first Tick.
func New(drv Driver, opts Options, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Excluded == nil {
		opts.Excluded = DefaultExcluded
	}
	if opts.Rescan <= 0 {
		opts.Rescan = DefaultRescanInterval
	}
	return &Watcher{drv: drv, opts: opts, logger: logger, now: time.Now}
}

// Close drops the connection and shuts the driver down. Later Ticks and
// Sends do nothing.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.closeConn()
	return w.drv.Close()
}

// Connected is the name of the connected port, if any.
func (w *Watcher) Connected() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectedName, w.connected
}

// Outputs is the names of the output ports the driver can see.
func (w *Watcher) Outputs() ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ListOutputs(w.drv)
}

// Send forwards a buffer of complete 3 byte messages.
func (w *Watcher) Send(b []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return
	}
	for len(b) >= 3 {
		if err := w.send(midi.Message(b[:3])); err != nil {
			w.logger.Warn("midi: output write failed", "device", w.selectedName, "err", err)
			w.closeConn()
			w.lastRescanAt = time.Time{} // rescan on the next tick
			return
		}
		b = b[3:]
	}
}

// Run calls Tick every rescan interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	w.Tick()
	t := time.NewTicker(w.opts.Rescan)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if ctx.Err() != nil {
				return
			}
			w.Tick()
		}
	}
}

// Tick rescans the outputs if the rescan interval has passed, connects to a
// preferred port and notices when the connected one goes away.
func (w *Watcher) Tick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	now := w.now()
	if !w.lastRescanAt.IsZero() && now.Sub(w.lastRescanAt) < w.opts.Rescan {
		return
	}
	w.lastRescanAt = now

	outs := w.listOutputs()

	if w.connected {
		for _, o := range outs {
			if o.String() == w.selectedName {
				return
			}
		}
		w.logger.Warn("midi: output disappeared", "device", w.selectedName)
		w.closeConn()
		w.lastRescanAt = time.Time{}
		return
	}

	cand, ok := pickPreferred(outs, w.opts.Preferred)
	if !ok {
		return
	}
	if err := w.connect(cand); err != nil {
		w.logger.Error("midi: connect failed", "device", cand.String(), "err", err)
	}
}

func (w *Watcher) listOutputs() []drivers.Out {
	all, err := w.drv.Outs()
	if err != nil {
		w.logger.Error("midi: list outputs failed", "err", err)
		return nil
	}
	outs := filterExcluded(all, w.opts.Excluded)
	w.logger.Debug("midi: outputs found", "count", len(outs))
	return outs
}

func (w *Watcher) connect(out drivers.Out) error {
	send, err := midi.SendTo(out)
	if err != nil {
		return fmt.Errorf("open %q: %w", out.String(), err)
	}
	w.out = out
	w.send = send
	w.connected = true
	w.selectedName = out.String()
	w.logger.Info("midi: output connected", "device", w.selectedName)
	return nil
}

func (w *Watcher) closeConn() {
	if w.out != nil {
		_ = w.out.Close()
		w.out = nil
	}
	w.send = nil
	w.connected = false
	w.selectedName = ""
}

// ListOutputs is the names of the output ports drv can see.
func ListOutputs(drv Driver) ([]string, error) {
	outs, err := drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("list MIDI outputs: %w", err)
	}
	names := make([]string, 0, len(outs))
	for _, o := range outs {
		names = append(names, o.String())
	}
	return names, nil
}

func filterExcluded(outs []drivers.Out, excluded []string) []drivers.Out {
	var kept []drivers.Out
	for _, o := range outs {
		skip := false
		for _, pat := range excluded {
			if containsCI(o.String(), pat) {
				skip = true
				break
			}
		}
		if !skip {
			kept = append(kept, o)
		}
	}
	return kept
}

func pickPreferred(outs []drivers.Out, preferred []string) (drivers.Out, bool) {
	for _, pat := range preferred {
		for _, o := range outs {
			if containsCI(o.String(), pat) {
				return o, true
			}
		}
	}
	if len(outs) == 1 {
		return outs[0], true
	}
	return nil, false
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
