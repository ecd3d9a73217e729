package miditx

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

type recorder struct {
	writes [][]byte
}

func (r *recorder) WriteSerial(b []byte) {
	r.writes = append(r.writes, append([]byte(nil), b...))
}

func TestRenderWireFormat(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want []byte
	}{
		{"note on", NoteOn(0, 60, 127), []byte{0x90, 60, 127}},
		{"note on ch 15", NoteOn(15, 61, 127), []byte{0x9F, 61, 127}},
		{"note off", NoteOff(3, 60, 0), []byte{0x83, 60, 0}},
		{"bend center", PitchBend(0, PitchBendCenter), []byte{0xE0, 0x00, 0x40}},
		{"bend max", PitchBend(1, PitchBendMax), []byte{0xE1, 0x7F, 0x7F}},
		{"bend min", PitchBend(2, 0), []byte{0xE2, 0x00, 0x00}},
		{"bend odd", PitchBend(0, 0x1234), []byte{0xE0, 0x34, 0x24}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var b [MaxBytesPerMessage]byte
			if n := tc.msg.Render(b[:]); n != MaxBytesPerMessage {
				t.Fatalf("Render wrote %d bytes", n)
			}
			if !bytes.Equal(b[:], tc.want) {
				t.Errorf("Render = % X, want % X", b, tc.want)
			}
		})
	}
}

func TestPitchBendRoundTrip(t *testing.T) {
	var b [MaxBytesPerMessage]byte
	for v := 0; v <= int(PitchBendMax); v++ {
		PitchBend(9, uint16(v)).Render(b[:])
		got, err := Decode(b[:])
		if err != nil {
			t.Fatalf("Decode(% X): %v", b, err)
		}
		if got.Kind != KindPitchBend || got.Channel != 9 || got.Bend != uint16(v) {
			t.Fatalf("round trip of %d gave %+v", v, got)
		}
	}
}

func TestNoteRoundTrip(t *testing.T) {
	for _, m := range []Message{NoteOn(4, 60, 127), NoteOff(4, 61, 0), NoteOff(0, 127, 64)} {
		got, err := Decode(m.Bytes())
		if err != nil {
			t.Fatalf("Decode(%v): %v", m, err)
		}
		if got != m {
			t.Errorf("Decode(%v) = %+v", m, got)
		}
	}
	if _, err := Decode([]byte{0x90, 1}); err == nil {
		t.Error("short buffer decoded")
	}
	if _, err := Decode([]byte{0xB0, 7, 100}); err == nil {
		t.Error("control change decoded")
	}
}

func TestSendQueueFIFO(t *testing.T) {
	tx := NewTransmitter(nil)
	tx.Push(NoteOn(0, 61, 127))
	tx.Push(NoteOff(0, 60, 0))
	tx.Push(PitchBend(0, 9000))

	var r recorder
	tx.SendQueue(&r)

	want := []byte{0x90, 61, 127, 0x80, 60, 0, 0xE0, 9000 & 0x7F, 9000 >> 7}
	if len(r.writes) != 1 || !bytes.Equal(r.writes[0], want) {
		t.Fatalf("writes = % X, want one write of % X", r.writes, want)
	}
	if tx.Len() != 0 || tx.Sent() != 3 {
		t.Errorf("after send: len=%d sent=%d", tx.Len(), tx.Sent())
	}

	tx.SendQueue(&r)
	if len(r.writes) != 1 {
		t.Errorf("empty queue wrote %d more times", len(r.writes)-1)
	}
}

func TestOverflowIsCounted(t *testing.T) {
	tx := NewTransmitter(nil)
	for i := 0; i < QueueCapacity+5; i++ {
		tx.Push(NoteOn(0, uint8(i), 127))
	}
	if tx.Len() != QueueCapacity || tx.Dropped() != 5 {
		t.Fatalf("len=%d dropped=%d", tx.Len(), tx.Dropped())
	}

	var r recorder
	tx.SendQueue(&r)
	if got := len(r.writes[0]); got != BufferLen {
		t.Errorf("full queue encoded to %d bytes, want %d", got, BufferLen)
	}
	// the oldest messages survive, the newest were dropped
	if r.writes[0][1] != 0 || r.writes[0][BufferLen-2] != QueueCapacity-1 {
		t.Errorf("unexpected notes kept: % X", r.writes[0])
	}
}

func TestBendValue(t *testing.T) {
	const w = float32(1.0 / 12)
	tests := []struct {
		offset float32
		want   uint16
	}{
		{0, PitchBendCenter},
		{w, PitchBendCenter + PitchBendCenter/2},
		{-w, PitchBendCenter / 2},
		{10 * w, PitchBendMax},
		{-10 * w, 0},
	}
	for _, tc := range tests {
		if got := BendValue(tc.offset, w); got != tc.want {
			t.Errorf("BendValue(%v) = %d, want %d", tc.offset, got, tc.want)
		}
	}
}

func TestSendQueueLogsDecodedWire(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tx := NewTransmitter(logger)
	tx.Push(NoteOn(2, 64, 100))
	tx.Push(PitchBend(2, 12000))
	tx.SendQueue(&recorder{})

	out := logs.String()
	if n := strings.Count(out, "midi: send"); n != 2 {
		t.Errorf("logged %d sends, want 2:\n%s", n, out)
	}
	if strings.Contains(out, "undecodable") {
		t.Errorf("rendered bytes did not decode:\n%s", out)
	}
	if !strings.Contains(out, "90 40 64") {
		t.Errorf("note on bytes missing from log:\n%s", out)
	}
}
