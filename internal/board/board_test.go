package board

import (
	"bytes"
	"errors"
	"testing"
)

func TestDACFrame(t *testing.T) {
	tests := []struct {
		name  string
		volts float32
		ch    OutputChannel
		want  [3]byte
	}{
		{"zero", 0, DACPitch, [3]byte{0b0001_1000, 0, 0}},
		{"negative clamps", -1, DACMod, [3]byte{0b0001_1001, 0, 0}},
		{"full scale", DACMaxVout, DACPitch, [3]byte{0b0001_1000, 0xFF, 0xFC}},
		{"over range clamps", 12, DACMod, [3]byte{0b0001_1001, 0xFF, 0xFC}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DACFrame(tc.volts, tc.ch); got != tc.want {
				t.Errorf("DACFrame(%v) = %08b, want %08b", tc.volts, got, tc.want)
			}
		})
	}

	// one volt is a fifth of full scale
	if c := DACCount(1); c < DACMaxCount/5-1 || c > DACMaxCount/5+1 {
		t.Errorf("DACCount(1) = %d", c)
	}
}

func TestNormalizeADC(t *testing.T) {
	if NormalizeADC(0) != 0 || NormalizeADC(ADCMax) != 1 || NormalizeADC(0xFFFF) != 1 {
		t.Error("ADC end points")
	}
	for _, v := range []float32{0, 0.25, 0.5, 1} {
		if got := NormalizeADC(ADCCount(v)); got-v > 1e-4 || v-got > 1e-4 {
			t.Errorf("NormalizeADC(ADCCount(%v)) = %v", v, got)
		}
	}
}

func TestSwitchDecoding(t *testing.T) {
	modes := []struct {
		a, b bool
		want Switch3Way
	}{
		{true, false, SwitchUp},
		{false, false, SwitchMiddle},
		{false, true, SwitchDown},
		{true, true, SwitchDown},
	}
	for _, tc := range modes {
		if got := DecodeModeSwitch(tc.a, tc.b); got != tc.want {
			t.Errorf("DecodeModeSwitch(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}

	channels := []struct {
		levels [4]bool
		want   uint8
	}{
		{[4]bool{true, true, true, true}, 0},
		{[4]bool{false, true, true, true}, 1},
		{[4]bool{true, false, true, true}, 2},
		{[4]bool{true, true, true, false}, 8},
		{[4]bool{false, true, false, true}, 5},
		{[4]bool{false, false, false, false}, 15},
	}
	for _, tc := range channels {
		if got := DecodeChannelSwitch(tc.levels); got != tc.want {
			t.Errorf("DecodeChannelSwitch(%v) = %d, want %d", tc.levels, got, tc.want)
		}
	}
}

func TestFrameReaderResyncs(t *testing.T) {
	report := SensorReport{ADC: [3]uint16{100, 0x8000, ADCMax}, ModeBits: 0b01, ChannelBits: 0b1010}

	var stream []byte
	stream = append(stream, 0x00, SOF0, 0x13) // noise
	stream = AppendFrame(stream, CmdSensorReport, report.Encode())
	bad := AppendFrame(nil, CmdGate, []byte{1})
	bad[len(bad)-1] ^= 0xFF
	stream = append(stream, bad...)
	stream = AppendFrame(stream, CmdGate, []byte{1})

	var fr FrameReader
	var cmds []byte
	var checksumErrs int
	for _, b := range stream {
		cmd, payload, done, err := fr.Feed(b)
		if errors.Is(err, ErrBadChecksum) {
			checksumErrs++
		}
		if !done {
			continue
		}
		cmds = append(cmds, cmd)
		if cmd == CmdSensorReport {
			got, err := ParseSensorReport(payload)
			if err != nil {
				t.Fatal(err)
			}
			if got != report {
				t.Errorf("report = %+v, want %+v", got, report)
			}
			if got.Mode() != SwitchUp || got.Channel() != 5 {
				t.Errorf("mode=%v channel=%d", got.Mode(), got.Channel())
			}
		}
	}
	if !bytes.Equal(cmds, []byte{CmdSensorReport, CmdGate}) || checksumErrs != 1 {
		t.Errorf("frames %X, checksum errors %d", cmds, checksumErrs)
	}
}

func TestFrameReaderRejectsLength(t *testing.T) {
	var fr FrameReader
	fr.Feed(SOF0)
	fr.Feed(SOF1)
	if _, _, _, err := fr.Feed(MaxPayload + 2); !errors.Is(err, ErrBadLength) {
		t.Errorf("oversized length: err = %v", err)
	}
	if _, err := ParseSensorReport([]byte{1, 2}); !errors.Is(err, ErrShortFrame) {
		t.Errorf("short report: err = %v", err)
	}
}
