// Package clock provides the periodic timer flags that pace the control loop.
package clock

import (
	"context"
	"fmt"
	"time"
)

// TimerID names one of the loop timers.
type TimerID int

const (
	Fast   TimerID = iota // ribbon polling
	Output                // CV and MIDI output
	Slow                  // front panel

	numTimers
)

func (id TimerID) String() string {
	switch id {
	case Fast:
		return "fast"
	case Output:
		return "output"
	case Slow:
		return "slow"
	}
	return fmt.Sprintf("timer(%d)", int(id))
}

// Source reports timer expiry. Expired is self-clearing: it is true at most
// once per elapsed period and never blocks.
type Source interface {
	Expired(id TimerID) bool
}

// Waiter is a Source that can block until some timer has expired.
type Waiter interface {
	Source
	Wait(ctx context.Context) error
}

// Manual is a Source driven by hand, for tests.
type Manual struct {
	fired [numTimers]bool
}

// Fire marks ids as expired.
func (m *Manual) Fire(ids ...TimerID) {
	for _, id := range ids {
		m.fired[id] = true
	}
}

func (m *Manual) Expired(id TimerID) bool {
	if id < 0 || id >= numTimers {
		return false
	}
	f := m.fired[id]
	m.fired[id] = false
	return f
}

// Tickers is a wall-clock Source with one time.Ticker per timer. Ticks missed
// while the loop is busy are coalesced.
type Tickers struct {
	tickers [numTimers]*time.Ticker
	pending [numTimers]bool
}

// NewTickers starts the three timers at the given rates in Hz.
func NewTickers(fastHz, outputHz, slowHz float64) (*Tickers, error) {
	t := &Tickers{}
	for id, hz := range [numTimers]float64{fastHz, outputHz, slowHz} {
		if hz <= 0 {
			t.Stop()
			return nil, fmt.Errorf("clock: %v rate must be positive, got %v", TimerID(id), hz)
		}
		t.tickers[id] = time.NewTicker(time.Duration(float64(time.Second) / hz))
	}
	return t, nil
}

func (t *Tickers) Expired(id TimerID) bool {
	if id < 0 || id >= numTimers {
		return false
	}
	if t.pending[id] {
		t.pending[id] = false
		return true
	}
	select {
	case <-t.tickers[id].C:
		return true
	default:
		return false
	}
}

// Wait blocks until at least one timer has expired or ctx is done. The
// expiry is kept for the next Expired call.
func (t *Tickers) Wait(ctx context.Context) error {
	for _, p := range t.pending {
		if p {
			return nil
		}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.tickers[Fast].C:
		t.pending[Fast] = true
	case <-t.tickers[Output].C:
		t.pending[Output] = true
	case <-t.tickers[Slow].C:
		t.pending[Slow] = true
	}
	return nil
}

// Stop releases the tickers.
func (t *Tickers) Stop() {
	for _, tk := range t.tickers {
		if tk != nil {
			tk.Stop()
		}
	}
}
