package board

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"
)

// fakeLink feeds the Bridge from a pipe and records what it writes.
type fakeLink struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
}

func newFakeLink() *fakeLink {
	r, w := io.Pipe()
	return &fakeLink{r: r, w: w}
}

func (l *fakeLink) Read(p []byte) (int, error) { return l.r.Read(p) }

func (l *fakeLink) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written.Write(p)
}

func (l *fakeLink) Close() error { return l.r.Close() }

func (l *fakeLink) take() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := append([]byte(nil), l.written.Bytes()...)
	l.written.Reset()
	return out
}

type recordingSink struct{ got [][]byte }

func (s *recordingSink) Send(b []byte) { s.got = append(s.got, append([]byte(nil), b...)) }

func waitReports(t *testing.T, b *Bridge, n uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r, _ := b.Stats(); r >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sensor reports", n)
}

func TestBridgeIdleBeforeFirstReport(t *testing.T) {
	link := newFakeLink()
	b := NewBridge(link, nil)
	defer b.Close()

	if got := b.ReadAnalog(AnalogMainRibbon); got != 1 {
		t.Errorf("main ribbon = %v, want 1 (untouched)", got)
	}
	if b.ReadModeSwitch() != SwitchMiddle || b.ReadChannelSelect() != 0 {
		t.Errorf("switches = %v / %d", b.ReadModeSwitch(), b.ReadChannelSelect())
	}
}

func TestBridgeReadsReports(t *testing.T) {
	link := newFakeLink()
	b := NewBridge(link, nil)
	defer b.Close()

	r := SensorReport{ADC: [3]uint16{ADCMax / 2, ADCMax / 4, ADCMax}, ModeBits: 0b10, ChannelBits: 0b0110}
	var stream []byte
	stream = AppendFrame(stream, CmdSensorReport, []byte{1, 2}) // too short
	stream = AppendFrame(stream, CmdSensorReport, r.Encode())
	go link.w.Write(stream)
	waitReports(t, b, 1)

	if got := b.ReadAnalog(AnalogGlide); got < 0.499 || got > 0.501 {
		t.Errorf("glide = %v", got)
	}
	if got := b.ReadAnalog(AnalogMainRibbon); got < 0.249 || got > 0.251 {
		t.Errorf("main ribbon = %v", got)
	}
	if b.ReadModeSwitch() != SwitchDown {
		t.Errorf("mode = %v, want down", b.ReadModeSwitch())
	}
	if b.ReadChannelSelect() != 9 {
		t.Errorf("channel = %d, want 9", b.ReadChannelSelect())
	}
	if _, errs := b.Stats(); errs != 1 {
		t.Errorf("frame errors = %d, want 1", errs)
	}
}

func TestBridgeWritesDeduplicated(t *testing.T) {
	link := newFakeLink()
	uart := &bytes.Buffer{}
	sink := &recordingSink{}
	b := NewBridge(link, nil, WithMIDIUART(uart), WithMIDISink(sink))
	defer b.Close()

	b.WriteVoltage(1, DACPitch)
	b.WriteVoltage(1, DACPitch)
	b.WriteVoltage(1, DACMod)
	b.SetGate(false)
	b.SetGate(false)
	b.SetGate(true)

	pitch := DACFrame(1, DACPitch)
	mod := DACFrame(1, DACMod)
	var want []byte
	want = AppendFrame(want, CmdDACWrite, pitch[:])
	want = AppendFrame(want, CmdDACWrite, mod[:])
	want = AppendFrame(want, CmdGate, []byte{0})
	want = AppendFrame(want, CmdGate, []byte{1})
	if got := link.take(); !bytes.Equal(got, want) {
		t.Errorf("link bytes\n got % X\nwant % X", got, want)
	}

	msg := []byte{0x90, 60, 127}
	b.WriteSerial(msg)
	if !bytes.Equal(uart.Bytes(), msg) {
		t.Errorf("uart = % X", uart.Bytes())
	}
	if len(sink.got) != 1 || !bytes.Equal(sink.got[0], msg) {
		t.Errorf("sink = %v", sink.got)
	}
}

func TestBridgeCloseStopsReader(t *testing.T) {
	link := newFakeLink()
	b := NewBridge(link, nil)
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if b.Err() == nil {
		t.Error("reader error not recorded after close")
	}
}
